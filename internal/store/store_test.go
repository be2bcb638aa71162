package store

import (
	"errors"
	"testing"
	"time"

	"github.com/sipboard/sipboard/pkg/models"
)

// ────────────────────────────────────────────────────────────────────
// Fixtures
// ────────────────────────────────────────────────────────────────────

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func daily(date string) *models.DailyConsensusArtifact {
	return &models.DailyConsensusArtifact{
		Date:    date,
		Sources: []string{"alpha", "beta"},
		Categories: []models.ConsensusCategoryResult{{
			Category: "Bonds",
			Opinions: []models.RatioOpinion{
				{Source: "alpha", Ratio: 0.30},
				{Source: "beta", Ratio: 0.32},
			},
			Min: 0.30, Max: 0.32, Mean: 0.31, Spread: 0.02,
			State: models.Consistent,
		}},
		Facts: models.SummaryFacts{SourceCount: 2, CategoryCount: 1},
		Meta: models.RunMeta{
			RunID:       "run-a",
			GeneratedAt: time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC),
		},
	}
}

func weekly(start, end string) *models.WeeklyTrendArtifact {
	return &models.WeeklyTrendArtifact{
		StartDate:    start,
		EndDate:      end,
		DaysPresent:  []string{start},
		SourceCounts: map[string]int{start: 2},
		Categories: []models.TrendRecord{{
			Key: "Bonds", Kind: models.KindCategory, DisplayName: "Bonds",
			Observations: []models.Observation{{Date: start, Value: 0.31, State: models.Consistent}},
			Direction:    models.TrendInsufficient,
			Transition: models.ConsensusTransition{
				Start: models.Consistent, End: models.Consistent,
				DayCounts: map[models.ConsensusState]int{models.Consistent: 1},
			},
		}},
	}
}

// ────────────────────────────────────────────────────────────────────
// Daily
// ────────────────────────────────────────────────────────────────────

func TestPutGetDaily(t *testing.T) {
	s := openTestStore(t)
	want := daily("2026-08-25")
	if err := s.PutDaily(want, false); err != nil {
		t.Fatalf("PutDaily: %v", err)
	}

	got, err := s.GetDaily("2026-08-25")
	if err != nil {
		t.Fatalf("GetDaily: %v", err)
	}
	if !got.SemanticallyEquals(want) {
		t.Errorf("stored artifact differs:\ngot  %+v\nwant %+v", got, want)
	}
	if got.Meta.RunID != "run-a" || !got.Meta.GeneratedAt.Equal(want.Meta.GeneratedAt) {
		t.Errorf("run metadata lost: %+v", got.Meta)
	}
}

func TestPutDailyRejectsExistingWithoutForce(t *testing.T) {
	s := openTestStore(t)
	if err := s.PutDaily(daily("2026-08-25"), false); err != nil {
		t.Fatalf("first PutDaily: %v", err)
	}

	second := daily("2026-08-25")
	second.Meta.RunID = "run-b"
	err := s.PutDaily(second, false)
	var exists ExistsError
	if !errors.As(err, &exists) {
		t.Fatalf("want ExistsError, got %v", err)
	}
	if exists.Key != "2026-08-25" {
		t.Errorf("ExistsError.Key = %q", exists.Key)
	}

	got, err := s.GetDaily("2026-08-25")
	if err != nil {
		t.Fatalf("GetDaily: %v", err)
	}
	if got.Meta.RunID != "run-a" {
		t.Errorf("original artifact was replaced: %+v", got.Meta)
	}
}

func TestPutDailyForceReplaces(t *testing.T) {
	s := openTestStore(t)
	if err := s.PutDaily(daily("2026-08-25"), false); err != nil {
		t.Fatalf("first PutDaily: %v", err)
	}

	replacement := daily("2026-08-25")
	replacement.Categories[0].Mean = 0.35
	replacement.Meta.RunID = "run-b"
	if err := s.PutDaily(replacement, true); err != nil {
		t.Fatalf("forced PutDaily: %v", err)
	}

	got, err := s.GetDaily("2026-08-25")
	if err != nil {
		t.Fatalf("GetDaily: %v", err)
	}
	if got.Categories[0].Mean != 0.35 || got.Meta.RunID != "run-b" {
		t.Errorf("replacement not visible: %+v", got)
	}
}

func TestGetDailyMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetDaily("2026-08-25")
	var nf NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("want NotFoundError, got %v", err)
	}
}

func TestHasDaily(t *testing.T) {
	s := openTestStore(t)
	ok, err := s.HasDaily("2026-08-25")
	if err != nil || ok {
		t.Fatalf("HasDaily on empty store = %v, %v", ok, err)
	}
	if err := s.PutDaily(daily("2026-08-25"), false); err != nil {
		t.Fatalf("PutDaily: %v", err)
	}
	ok, err = s.HasDaily("2026-08-25")
	if err != nil || !ok {
		t.Fatalf("HasDaily after put = %v, %v", ok, err)
	}
}

func TestListDailyRange(t *testing.T) {
	s := openTestStore(t)
	for _, d := range []string{"2026-08-25", "2026-08-22", "2026-09-01", "2026-08-23"} {
		if err := s.PutDaily(daily(d), false); err != nil {
			t.Fatalf("PutDaily %s: %v", d, err)
		}
	}

	got, err := s.ListDailyRange("2026-08-22", "2026-08-25")
	if err != nil {
		t.Fatalf("ListDailyRange: %v", err)
	}
	var dates []string
	for _, a := range got {
		dates = append(dates, a.Date)
	}
	want := []string{"2026-08-22", "2026-08-23", "2026-08-25"}
	if len(dates) != len(want) {
		t.Fatalf("dates = %v, want %v", dates, want)
	}
	for i := range want {
		if dates[i] != want[i] {
			t.Fatalf("dates = %v, want %v", dates, want)
		}
	}

	empty, err := s.ListDailyRange("2025-01-01", "2025-01-31")
	if err != nil {
		t.Fatalf("ListDailyRange empty: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("want no artifacts, got %d", len(empty))
	}
}

// ────────────────────────────────────────────────────────────────────
// Weekly
// ────────────────────────────────────────────────────────────────────

func TestPutGetWeekly(t *testing.T) {
	s := openTestStore(t)
	want := weekly("2026-08-18", "2026-08-24")
	if err := s.PutWeekly(want, false); err != nil {
		t.Fatalf("PutWeekly: %v", err)
	}

	got, err := s.GetWeekly("2026-08-18", "2026-08-24")
	if err != nil {
		t.Fatalf("GetWeekly: %v", err)
	}
	if !got.SemanticallyEquals(want) {
		t.Errorf("stored artifact differs:\ngot  %+v\nwant %+v", got, want)
	}
}

func TestPutWeeklyExistsContract(t *testing.T) {
	s := openTestStore(t)
	if err := s.PutWeekly(weekly("2026-08-18", "2026-08-24"), false); err != nil {
		t.Fatalf("first PutWeekly: %v", err)
	}

	err := s.PutWeekly(weekly("2026-08-18", "2026-08-24"), false)
	var exists ExistsError
	if !errors.As(err, &exists) {
		t.Fatalf("want ExistsError, got %v", err)
	}
	if exists.Key != "2026-08-18..2026-08-24" {
		t.Errorf("ExistsError.Key = %q", exists.Key)
	}

	if err := s.PutWeekly(weekly("2026-08-18", "2026-08-24"), true); err != nil {
		t.Errorf("forced PutWeekly: %v", err)
	}
}

func TestGetWeeklyMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetWeekly("2026-08-18", "2026-08-24")
	var nf NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("want NotFoundError, got %v", err)
	}
}

func TestHasWeekly(t *testing.T) {
	s := openTestStore(t)
	ok, err := s.HasWeekly("2026-08-18", "2026-08-24")
	if err != nil || ok {
		t.Fatalf("HasWeekly on empty store = %v, %v", ok, err)
	}
	if err := s.PutWeekly(weekly("2026-08-18", "2026-08-24"), false); err != nil {
		t.Fatalf("PutWeekly: %v", err)
	}
	ok, err = s.HasWeekly("2026-08-18", "2026-08-24")
	if err != nil || !ok {
		t.Fatalf("HasWeekly after put = %v, %v", ok, err)
	}
}

func TestGCAfterForceWrites(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 5; i++ {
		a := daily("2026-08-25")
		a.Meta.RunID = "run"
		if err := s.PutDaily(a, true); err != nil {
			t.Fatalf("forced PutDaily #%d: %v", i, err)
		}
	}
	// A fresh store rarely has anything to reclaim; ErrNoRewrite must
	// not surface as a failure.
	if err := s.GC(); err != nil {
		t.Errorf("GC: %v", err)
	}
}
