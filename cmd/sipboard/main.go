// sipboard — cross-source investment advice consensus and weekly trends.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sipboard/sipboard/internal/config"
	"github.com/sipboard/sipboard/internal/pipeline"
	"github.com/sipboard/sipboard/internal/store"
	"github.com/sipboard/sipboard/internal/summary"
	"github.com/sipboard/sipboard/internal/taxonomy"
	"github.com/sipboard/sipboard/pkg/models"
	"github.com/sipboard/sipboard/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sipboard",
	Short: "sipboard — cross-source investment advice consensus and weekly trends",
	Long: `sipboard turns one advice document per source per day into a single
daily consensus report, and a week of those into a trend report.
Advice goes in, agreement comes out; the engine never authors advice.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Logging.Level = level
		}
		configureLogging(cfg.Logging)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/sipboard.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(weeklyCmd)
	rootCmd.AddCommand(rewriteCmd)
	rootCmd.AddCommand(statusCmd)
}

// configureLogging applies the logging section to the standard logger
// that all packages share.
func configureLogging(lc config.LoggingConfig) {
	log := logrus.StandardLogger()
	if lc.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if level, err := logrus.ParseLevel(lc.Level); err == nil {
		log.SetLevel(level)
	}
}

// openPipeline wires the engine from the loaded config. The returned
// func closes the artifact store.
func openPipeline() (*pipeline.Pipeline, func(), error) {
	st, err := store.Open(cfg.Paths.Store)
	if err != nil {
		return nil, nil, err
	}
	ix, err := loadTaxonomy()
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	summarizer, err := summary.FromConfig(cfg.Summarizer)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	p, err := pipeline.New(pipeline.Options{
		Config:     cfg,
		Store:      st,
		Taxonomy:   ix,
		Summarizer: summarizer,
	})
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return p, func() { st.Close() }, nil
}

// loadTaxonomy reads the reference taxonomy. A missing file degrades
// to an empty reference (everything will diff as extra); a malformed
// file is fatal.
func loadTaxonomy() (*taxonomy.Index, error) {
	tax, err := taxonomy.Load(cfg.Paths.Taxonomy)
	if errors.Is(err, os.ErrNotExist) {
		logrus.Warnf("taxonomy %s not found, validating against an empty reference", cfg.Paths.Taxonomy)
		return taxonomy.NewIndex(&models.Taxonomy{}), nil
	}
	if err != nil {
		return nil, err
	}
	return taxonomy.NewIndex(tax), nil
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sipboard %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", buildDate)
	},
}

// --- Validate Command ---

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Diff the day's advice documents against the reference taxonomy",
	Long: `Parse each source document for the date and compare its categories and
items against the reference taxonomy. Exits non-zero on any mismatch;
nothing is written.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		date, _ := cmd.Flags().GetString("date")

		p, closeStore, err := openPipeline()
		if err != nil {
			return err
		}
		defer closeStore()

		diff, err := p.Validate(cmd.Context(), date)
		if err != nil {
			return err
		}
		printDiff(diff)
		if !diff.Clean() {
			return fmt.Errorf("taxonomy mismatch on %s", date)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().String("date", utils.FormatDate(time.Now()), "ISO date to validate")
}

// --- Build Command ---

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build, store, and export the daily consensus",
	Long: `Run the full daily batch: discover the date's advice documents, parse
them in parallel, gate on the reference taxonomy, compute the consensus
artifact, persist it, and render the markdown export. An existing
artifact for the date is refused unless --force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		date, _ := cmd.Flags().GetString("date")
		force, _ := cmd.Flags().GetBool("force")
		accept, _ := cmd.Flags().GetBool("accept-mismatch")
		doPublish, _ := cmd.Flags().GetBool("publish")
		dryRun, _ := cmd.Flags().GetBool("publish-dry-run")

		p, closeStore, err := openPipeline()
		if err != nil {
			return err
		}
		defer closeStore()

		art, err := p.BuildDaily(cmd.Context(), date, pipeline.DailyOptions{
			Force:          force,
			AcceptMismatch: accept,
			Publish:        doPublish,
			PublishDryRun:  dryRun,
		})
		var mismatch pipeline.TaxonomyMismatchError
		if errors.As(err, &mismatch) {
			printDiff(mismatch.Diff)
			return fmt.Errorf("%v (fix the reference data or pass --accept-mismatch)", err)
		}
		if err != nil {
			return err
		}

		fmt.Printf("Daily consensus %s: %d sources, %d categories, %d items, %d new directions\n",
			art.Date, len(art.Sources), len(art.Categories), len(art.Items), len(art.NewDirections))
		return nil
	},
}

func init() {
	buildCmd.Flags().String("date", utils.FormatDate(time.Now()), "ISO date to build")
	buildCmd.Flags().Bool("force", false, "replace an existing artifact for the date")
	buildCmd.Flags().Bool("accept-mismatch", false, "proceed past taxonomy drift")
	buildCmd.Flags().Bool("publish", false, "commit and push the export")
	buildCmd.Flags().Bool("publish-dry-run", false, "run the publish checks without touching the repository")
}

// --- Weekly Command ---

var weeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Aggregate the trailing week of dailies into a trend report",
	RunE: func(cmd *cobra.Command, args []string) error {
		end, _ := cmd.Flags().GetString("end")
		days, _ := cmd.Flags().GetInt("days")
		force, _ := cmd.Flags().GetBool("force")
		doPublish, _ := cmd.Flags().GetBool("publish")
		dryRun, _ := cmd.Flags().GetBool("publish-dry-run")

		p, closeStore, err := openPipeline()
		if err != nil {
			return err
		}
		defer closeStore()

		art, err := p.BuildWeekly(cmd.Context(), end, days, pipeline.WeeklyOptions{
			Force:         force,
			Publish:       doPublish,
			PublishDryRun: dryRun,
		})
		if err != nil {
			return err
		}

		total := len(art.DaysPresent) + len(art.DaysMissing)
		fmt.Printf("Weekly trend %s: %d/%d days present, %d categories, %d items tracked\n",
			art.RangeKey(), len(art.DaysPresent), total, len(art.Categories), len(art.Items))
		return nil
	},
}

func init() {
	weeklyCmd.Flags().String("end", utils.FormatDate(time.Now()), "last ISO date of the window")
	weeklyCmd.Flags().Int("days", 0, "window length in days (default from config)")
	weeklyCmd.Flags().Bool("force", false, "replace an existing artifact for the range")
	weeklyCmd.Flags().Bool("publish", false, "commit and push the export")
	weeklyCmd.Flags().Bool("publish-dry-run", false, "run the publish checks without touching the repository")
}

// --- Rewrite Command ---

var rewriteCmd = &cobra.Command{
	Use:   "rewrite",
	Short: "Re-parse exported dailies and re-render them in the current format",
	Long: `Read previously exported daily documents back into artifacts, force
them into the store, and render them again. Run this after a renderer
change to migrate old exports; without --from/--to every exported date
is rewritten.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		if (from == "") != (to == "") {
			return fmt.Errorf("--from and --to must be given together")
		}

		p, closeStore, err := openPipeline()
		if err != nil {
			return err
		}
		defer closeStore()

		res, err := p.Rewrite(cmd.Context(), from, to)
		if res != nil {
			fmt.Printf("Rewrite: %d rewritten, %d skipped\n", len(res.Rewritten), len(res.Skipped))
		}
		return err
	},
}

func init() {
	rewriteCmd.Flags().String("from", "", "first ISO date to rewrite")
	rewriteCmd.Flags().String("to", "", "last ISO date to rewrite")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  sipboard — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:  %s (%s)\n", version, commit)
		fmt.Println()

		fmt.Println("  Paths:")
		fmt.Printf("    Inbox:     %s\n", cfg.Paths.Inbox)
		fmt.Printf("    Exports:   %s\n", cfg.Paths.Exports)
		fmt.Printf("    Taxonomy:  %s\n", cfg.Paths.Taxonomy)
		fmt.Printf("    Store:     %s\n", cfg.Paths.Store)
		fmt.Println()

		fmt.Println("  Consensus:")
		fmt.Printf("    tau (category/item):  %.2f / %.2f\n", cfg.Consensus.TauCategory, cfg.Consensus.TauItem)
		fmt.Printf("    quorum:               %.2f\n", cfg.Consensus.Quorum)
		fmt.Printf("    lookback:             %d days\n", cfg.Consensus.LookbackDays)
		fmt.Printf("    trend tolerance:      %.2f over %d days\n", cfg.Trend.Tolerance, cfg.Trend.Days)
		fmt.Println()

		fmt.Printf("  Summarizer:  %s\n", cfg.Summarizer.Mode)
		fmt.Printf("  Publish:     remote %s", cfg.Publish.Remote)
		if cfg.Publish.Branch != "" {
			fmt.Printf(", branch %s", cfg.Publish.Branch)
		}
		fmt.Println()
		fmt.Println()

		fmt.Println("  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

// printDiff renders a taxonomy diff for the terminal.
func printDiff(diff *models.TaxonomyDiff) {
	fmt.Printf("Taxonomy check — %s\n", diff.Date)
	for i := range diff.PerSource {
		d := &diff.PerSource[i]
		if d.Clean() {
			fmt.Printf("  ✅ %s\n", d.Source)
			continue
		}
		fmt.Printf("  ❌ %s\n", d.Source)
		for _, name := range d.ExtraItems {
			fmt.Printf("     extra item:       %s\n", name)
		}
		for _, name := range d.MissingItems {
			fmt.Printf("     missing item:     %s\n", name)
		}
		for _, r := range d.RenamedItems {
			fmt.Printf("     renamed item:     %q -> %q (similarity %.2f)\n", r.Raw, r.Canonical, r.Similarity)
		}
		for _, name := range d.ExtraCategories {
			fmt.Printf("     extra category:   %s\n", name)
		}
		for _, name := range d.MissingCategories {
			fmt.Printf("     missing category: %s\n", name)
		}
	}
}
