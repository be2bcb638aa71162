package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/sipboard/sipboard/internal/config"
	"github.com/sipboard/sipboard/internal/render"
	"github.com/sipboard/sipboard/internal/store"
	"github.com/sipboard/sipboard/internal/summary"
	"github.com/sipboard/sipboard/internal/taxonomy"
	"github.com/sipboard/sipboard/internal/trend"
	"github.com/sipboard/sipboard/pkg/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		Paths: config.PathsConfig{
			Inbox:   filepath.Join(root, "advice"),
			Exports: filepath.Join(root, "reports"),
			Store:   filepath.Join(root, "db"),
		},
		Sources: config.SourcesConfig{AllowPartial: true},
		Consensus: config.ConsensusConfig{
			TauCategory:       0.05,
			TauItem:           0.05,
			Quorum:            0.60,
			LookbackDays:      30,
			MaxFacts:          5,
			Similarity:        0.60,
			SimilarityRelaxed: 0.55,
		},
		Trend: config.TrendConfig{Tolerance: 0.05, Days: 7},
	}
}

func testTaxonomy() *models.Taxonomy {
	return &models.Taxonomy{Categories: []models.TaxonomyCategory{
		{
			Name:          "Bonds",
			SubCategories: []string{"Treasury"},
			Instruments:   []models.TaxonomyInstrument{{Code: "007339", Name: "Treasury Bond 5-10Y"}},
		},
		{
			Name:          "CN Equity",
			SubCategories: []string{"Broad Index"},
			Instruments:   []models.TaxonomyInstrument{{Code: "510300", Name: "CSI 300 ETF"}},
		},
	}}
}

func newTestPipeline(t *testing.T) (*Pipeline, *config.Config) {
	t.Helper()
	cfg := testConfig(t)
	st, err := store.Open(cfg.Paths.Store)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	p, err := New(Options{
		Config:     cfg,
		Store:      st,
		Taxonomy:   taxonomy.NewIndex(testTaxonomy()),
		Summarizer: summary.FactsSummarizer{},
		Logger:     log,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, cfg
}

// writeAdvice places a canonical advice document in the inbox. The
// bonds/equity percents are the category allocations; extraRows are
// appended to the plan table.
func writeAdvice(t *testing.T, cfg *config.Config, date, source, bonds, equity string, extraRows ...string) {
	t.Helper()
	dir := filepath.Join(cfg.Paths.Inbox, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir inbox: %v", err)
	}
	doc := "# Investment Advice - " + source + " - " + date + "\n\n" +
		"## Category Allocation\n\n" +
		"| Category | Ratio | Weekly Amount |\n" +
		"| --- | --- | --- |\n" +
		"| Bonds | " + bonds + " | 1,500 |\n" +
		"| CN Equity | " + equity + " | 2,000 |\n\n" +
		"## Investment Plan\n\n" +
		"| Category | Sub-category | Fund Code | Fund Name | Ratio in Category | Weekly Amount | Day | Long-term View | Mid-term View | Short-term View | Current Holding |\n" +
		"| --- | --- | --- | --- | --- | --- | --- | --- | --- | --- | --- |\n" +
		"| Bonds | Treasury | 007339 | Treasury Bond 5-10Y | 60% | 900 | Mon | hold | hold | add |  |\n" +
		"| CN Equity | Broad Index | 510300 | CSI 300 ETF | 50% | 1,000 | Tue | add | hold | hold |  |\n"
	for _, row := range extraRows {
		doc += row + "\n"
	}
	if err := os.WriteFile(filepath.Join(dir, source+".md"), []byte(doc), 0o644); err != nil {
		t.Fatalf("write advice: %v", err)
	}
}

// writeStandardDay writes three clean sources whose Bonds allocations
// agree and whose CN Equity allocations split wide.
func writeStandardDay(t *testing.T, cfg *config.Config, date string) {
	t.Helper()
	writeAdvice(t, cfg, date, "alpha", "30%", "70%")
	writeAdvice(t, cfg, date, "beta", "28%", "72%")
	writeAdvice(t, cfg, date, "gamma", "26%", "60%")
}

// ────────────────────────────────────────────────────────────────────
// Discovery
// ────────────────────────────────────────────────────────────────────

func TestDiscoverKeysAndOrder(t *testing.T) {
	p, cfg := newTestPipeline(t)
	writeStandardDay(t, cfg, "2026-08-25")

	docs, err := p.Discover("2026-08-25")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("got %d documents, want 3", len(docs))
	}
	for i, want := range []string{"alpha", "beta", "gamma"} {
		if docs[i].Source != want {
			t.Errorf("docs[%d].Source = %q, want %q", i, docs[i].Source, want)
		}
		if docs[i].Date != "2026-08-25" {
			t.Errorf("docs[%d].Date = %q", i, docs[i].Date)
		}
	}
}

func TestDiscoverEmptyInbox(t *testing.T) {
	p, _ := newTestPipeline(t)

	_, err := p.Discover("2029-01-01")
	var noInput NoInputError
	if !errors.As(err, &noInput) {
		t.Fatalf("want NoInputError, got %v", err)
	}
	if noInput.Date != "2029-01-01" {
		t.Errorf("NoInputError.Date = %q", noInput.Date)
	}
}

// ────────────────────────────────────────────────────────────────────
// Daily runs
// ────────────────────────────────────────────────────────────────────

func TestDailyRunEndToEnd(t *testing.T) {
	p, cfg := newTestPipeline(t)
	writeStandardDay(t, cfg, "2026-08-25")

	art, err := p.BuildDaily(context.Background(), "2026-08-25", DailyOptions{})
	if err != nil {
		t.Fatalf("BuildDaily: %v", err)
	}

	if len(art.Sources) != 3 || art.Sources[0] != "alpha" {
		t.Errorf("Sources = %v", art.Sources)
	}
	if got := art.Category("Bonds"); got == nil || got.State != models.Consistent {
		t.Errorf("Bonds state = %+v, want consistent", got)
	}
	if got := art.Category("CN Equity"); got == nil || got.State != models.Divergent {
		t.Errorf("CN Equity state = %+v, want divergent", got)
	}
	if got := art.Item("510300"); got == nil || got.State != models.Consistent || len(got.Supporting) != 3 {
		t.Errorf("item 510300 = %+v, want consistent with 3 supporters", got)
	}
	if art.Narration == "" {
		t.Error("Narration empty, facts summarizer did not run")
	}
	if art.Meta.RunID == "" || art.Meta.GeneratedAt.IsZero() {
		t.Errorf("Meta not stamped: %+v", art.Meta)
	}

	stored, err := p.store.GetDaily("2026-08-25")
	if err != nil {
		t.Fatalf("GetDaily: %v", err)
	}
	if !stored.SemanticallyEquals(art) {
		t.Error("stored artifact differs from returned artifact")
	}

	exported, err := os.ReadFile(filepath.Join(cfg.Paths.Exports, "daily", "2026-08-25.md"))
	if err != nil {
		t.Fatalf("export not written: %v", err)
	}
	reparsed, err := render.ParseDaily(exported)
	if err != nil {
		t.Fatalf("ParseDaily(export): %v", err)
	}
	if !reparsed.SemanticallyEquals(art) {
		t.Error("export does not round-trip to the stored artifact")
	}
	if reparsed.Meta.RunID != art.Meta.RunID {
		t.Errorf("export RunID = %q, want %q", reparsed.Meta.RunID, art.Meta.RunID)
	}
}

func TestDailyRefusesExistingWithoutForce(t *testing.T) {
	p, cfg := newTestPipeline(t)
	writeStandardDay(t, cfg, "2026-08-25")
	ctx := context.Background()

	first, err := p.BuildDaily(ctx, "2026-08-25", DailyOptions{})
	if err != nil {
		t.Fatalf("first BuildDaily: %v", err)
	}

	_, err = p.BuildDaily(ctx, "2026-08-25", DailyOptions{})
	var exists store.ExistsError
	if !errors.As(err, &exists) {
		t.Fatalf("want ExistsError, got %v", err)
	}

	forced, err := p.BuildDaily(ctx, "2026-08-25", DailyOptions{Force: true})
	if err != nil {
		t.Fatalf("forced BuildDaily: %v", err)
	}
	if !forced.SemanticallyEquals(first) {
		t.Error("forced re-run over identical inputs changed the verdicts")
	}
	if forced.Meta.RunID == first.Meta.RunID {
		t.Error("forced re-run kept the old run ID")
	}
}

func TestDailyTaxonomyGate(t *testing.T) {
	p, cfg := newTestPipeline(t)
	writeAdvice(t, cfg, "2026-08-25", "alpha", "30%", "70%")
	writeAdvice(t, cfg, "2026-08-25", "beta", "28%", "72%",
		"| CN Equity | Theme |  | Robotics Index ETF | 10% | 200 | Wed | add | add | add |  |")
	ctx := context.Background()

	_, err := p.BuildDaily(ctx, "2026-08-25", DailyOptions{})
	var mismatch TaxonomyMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("want TaxonomyMismatchError, got %v", err)
	}
	if mismatch.Diff == nil || mismatch.Diff.Clean() {
		t.Error("mismatch carries no diff")
	}

	art, err := p.BuildDaily(ctx, "2026-08-25", DailyOptions{AcceptMismatch: true})
	if err != nil {
		t.Fatalf("BuildDaily with accepted mismatch: %v", err)
	}
	if len(art.NewDirections) != 1 {
		t.Fatalf("NewDirections = %+v, want the robotics theme", art.NewDirections)
	}
	if got := art.NewDirections[0].Sources; len(got) != 1 || got[0] != "beta" {
		t.Errorf("NewDirections[0].Sources = %v, want [beta]", got)
	}
}

func TestDailyStrictSourceRoster(t *testing.T) {
	p, cfg := newTestPipeline(t)
	cfg.Sources.Expected = []string{"alpha", "beta"}
	cfg.Sources.AllowPartial = false
	writeAdvice(t, cfg, "2026-08-25", "alpha", "30%", "70%")
	ctx := context.Background()

	_, err := p.BuildDaily(ctx, "2026-08-25", DailyOptions{})
	var missing MissingSourcesError
	if !errors.As(err, &missing) {
		t.Fatalf("want MissingSourcesError, got %v", err)
	}
	if len(missing.Missing) != 1 || missing.Missing[0] != "beta" {
		t.Errorf("Missing = %v", missing.Missing)
	}

	cfg.Sources.AllowPartial = true
	if _, err := p.BuildDaily(ctx, "2026-08-25", DailyOptions{}); err != nil {
		t.Fatalf("partial run refused: %v", err)
	}
}

func TestDailyExcludesUnparseableSource(t *testing.T) {
	p, cfg := newTestPipeline(t)
	writeAdvice(t, cfg, "2026-08-25", "alpha", "30%", "70%")
	writeAdvice(t, cfg, "2026-08-25", "beta", "28%", "72%")
	dir := filepath.Join(cfg.Paths.Inbox, "2026-08-25")
	if err := os.WriteFile(filepath.Join(dir, "gamma.md"), []byte("not an advice document"), 0o644); err != nil {
		t.Fatal(err)
	}

	art, err := p.BuildDaily(context.Background(), "2026-08-25", DailyOptions{})
	if err != nil {
		t.Fatalf("BuildDaily: %v", err)
	}
	if len(art.Sources) != 2 {
		t.Errorf("Sources = %v, want alpha and beta only", art.Sources)
	}
}

func TestValidateReportsDrift(t *testing.T) {
	p, cfg := newTestPipeline(t)
	writeAdvice(t, cfg, "2026-08-25", "alpha", "30%", "70%")
	writeAdvice(t, cfg, "2026-08-25", "beta", "28%", "72%",
		"| CN Equity | Theme |  | Quantum Computing Fund | 5% | 100 | Thu | add | add | add |  |")

	diff, err := p.Validate(context.Background(), "2026-08-25")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if diff.Clean() {
		t.Fatal("diff reported clean despite an unknown item")
	}
	if len(diff.PerSource) != 2 {
		t.Fatalf("PerSource = %d, want 2", len(diff.PerSource))
	}
	if !diff.PerSource[0].Clean() {
		t.Errorf("alpha should be clean: %+v", diff.PerSource[0])
	}
	if got := diff.PerSource[1].ExtraItems; len(got) != 1 {
		t.Errorf("beta ExtraItems = %v", got)
	}
}

// ────────────────────────────────────────────────────────────────────
// Weekly runs
// ────────────────────────────────────────────────────────────────────

func TestWeeklyRunEndToEnd(t *testing.T) {
	p, cfg := newTestPipeline(t)
	ctx := context.Background()
	for _, date := range []string{"2026-08-18", "2026-08-19", "2026-08-20"} {
		writeStandardDay(t, cfg, date)
		if _, err := p.BuildDaily(ctx, date, DailyOptions{}); err != nil {
			t.Fatalf("BuildDaily %s: %v", date, err)
		}
	}

	art, err := p.BuildWeekly(ctx, "2026-08-24", 0, WeeklyOptions{})
	if err != nil {
		t.Fatalf("BuildWeekly: %v", err)
	}
	if art.StartDate != "2026-08-18" || art.EndDate != "2026-08-24" {
		t.Errorf("range = %s..%s", art.StartDate, art.EndDate)
	}
	if len(art.DaysPresent) != 3 || len(art.DaysMissing) != 4 {
		t.Errorf("days present/missing = %d/%d, want 3/4", len(art.DaysPresent), len(art.DaysMissing))
	}

	stored, err := p.store.GetWeekly("2026-08-18", "2026-08-24")
	if err != nil {
		t.Fatalf("GetWeekly: %v", err)
	}
	if !stored.SemanticallyEquals(art) {
		t.Error("stored weekly differs from returned artifact")
	}

	if _, err := os.Stat(filepath.Join(cfg.Paths.Exports, "weekly", "2026-08-18..2026-08-24.md")); err != nil {
		t.Errorf("weekly export not written: %v", err)
	}

	_, err = p.BuildWeekly(ctx, "2026-08-24", 0, WeeklyOptions{})
	var exists store.ExistsError
	if !errors.As(err, &exists) {
		t.Fatalf("want ExistsError on re-run, got %v", err)
	}
}

func TestWeeklyWithoutDailies(t *testing.T) {
	p, _ := newTestPipeline(t)

	_, err := p.BuildWeekly(context.Background(), "2026-08-24", 7, WeeklyOptions{})
	var empty trend.NoArtifactsError
	if !errors.As(err, &empty) {
		t.Fatalf("want NoArtifactsError, got %v", err)
	}
}

// ────────────────────────────────────────────────────────────────────
// Rewrite
// ────────────────────────────────────────────────────────────────────

func TestRewriteRoundTrip(t *testing.T) {
	p, cfg := newTestPipeline(t)
	ctx := context.Background()
	writeStandardDay(t, cfg, "2026-08-25")
	first, err := p.BuildDaily(ctx, "2026-08-25", DailyOptions{})
	if err != nil {
		t.Fatalf("BuildDaily: %v", err)
	}

	exportPath := filepath.Join(cfg.Paths.Exports, "daily", "2026-08-25.md")
	before, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.Rewrite(ctx, "2026-08-25", "2026-08-25")
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if len(res.Rewritten) != 1 || res.Rewritten[0] != "2026-08-25" {
		t.Fatalf("Rewritten = %v", res.Rewritten)
	}

	after, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("rewrite with an unchanged renderer altered the export")
	}

	stored, err := p.store.GetDaily("2026-08-25")
	if err != nil {
		t.Fatalf("GetDaily: %v", err)
	}
	if !stored.SemanticallyEquals(first) {
		t.Error("rewrite changed the stored verdicts")
	}
	if stored.Meta.RunID != first.Meta.RunID {
		t.Errorf("rewrite replaced RunID %q with %q", first.Meta.RunID, stored.Meta.RunID)
	}
}

func TestRewriteWholeExportTree(t *testing.T) {
	p, cfg := newTestPipeline(t)
	ctx := context.Background()
	for _, date := range []string{"2026-08-18", "2026-08-19"} {
		writeStandardDay(t, cfg, date)
		if _, err := p.BuildDaily(ctx, date, DailyOptions{}); err != nil {
			t.Fatalf("BuildDaily %s: %v", date, err)
		}
	}

	res, err := p.Rewrite(ctx, "", "")
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if len(res.Rewritten) != 2 {
		t.Errorf("Rewritten = %v, want both exported dates", res.Rewritten)
	}
	if len(res.Skipped) != 0 {
		t.Errorf("Skipped = %v", res.Skipped)
	}
}

func TestRewriteSkipsMissingExports(t *testing.T) {
	p, cfg := newTestPipeline(t)
	ctx := context.Background()
	writeStandardDay(t, cfg, "2026-08-18")
	if _, err := p.BuildDaily(ctx, "2026-08-18", DailyOptions{}); err != nil {
		t.Fatalf("BuildDaily: %v", err)
	}

	res, err := p.Rewrite(ctx, "2026-08-18", "2026-08-19")
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if len(res.Rewritten) != 1 || res.Rewritten[0] != "2026-08-18" {
		t.Errorf("Rewritten = %v", res.Rewritten)
	}
	if len(res.Skipped) != 1 || res.Skipped[0] != "2026-08-19" {
		t.Errorf("Skipped = %v", res.Skipped)
	}
}
