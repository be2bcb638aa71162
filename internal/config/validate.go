package config

import "fmt"

// Validate checks that thresholds are usable before any pipeline run.
// Values are range-checked, not pinned: tau and quorum remain open
// product decisions.
func (c *Config) Validate() error {
	if c.Consensus.TauCategory <= 0 || c.Consensus.TauCategory > 1 {
		return fmt.Errorf("consensus.tau_category must be in (0, 1], got %v", c.Consensus.TauCategory)
	}
	if c.Consensus.TauItem <= 0 || c.Consensus.TauItem > 1 {
		return fmt.Errorf("consensus.tau_item must be in (0, 1], got %v", c.Consensus.TauItem)
	}
	if c.Consensus.Quorum <= 0 || c.Consensus.Quorum > 1 {
		return fmt.Errorf("consensus.quorum must be in (0, 1], got %v", c.Consensus.Quorum)
	}
	if c.Consensus.LookbackDays < 0 {
		return fmt.Errorf("consensus.lookback_days must be >= 0, got %d", c.Consensus.LookbackDays)
	}
	if c.Consensus.MaxFacts < 1 {
		return fmt.Errorf("consensus.max_facts must be >= 1, got %d", c.Consensus.MaxFacts)
	}
	if c.Consensus.Similarity <= 0 || c.Consensus.Similarity > 1 {
		return fmt.Errorf("consensus.similarity must be in (0, 1], got %v", c.Consensus.Similarity)
	}
	if c.Consensus.SimilarityRelaxed <= 0 || c.Consensus.SimilarityRelaxed > c.Consensus.Similarity {
		return fmt.Errorf("consensus.similarity_relaxed must be in (0, %v], got %v",
			c.Consensus.Similarity, c.Consensus.SimilarityRelaxed)
	}
	if c.Trend.Tolerance <= 0 || c.Trend.Tolerance > 1 {
		return fmt.Errorf("trend.tolerance must be in (0, 1], got %v", c.Trend.Tolerance)
	}
	if c.Trend.Days < 1 {
		return fmt.Errorf("trend.days must be >= 1, got %d", c.Trend.Days)
	}
	switch c.Summarizer.Mode {
	case "facts", "openai", "none":
	default:
		return fmt.Errorf("summarizer.mode must be facts, openai or none, got %q", c.Summarizer.Mode)
	}
	if c.Summarizer.Mode == "openai" && c.Summarizer.APIKey == "" {
		return fmt.Errorf("summarizer.mode openai requires summarizer.api_key (or SIPBOARD_SUMMARIZER_API_KEY)")
	}
	return nil
}
