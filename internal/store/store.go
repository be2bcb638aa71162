// Package store persists consensus artifacts in a local badger
// database. Artifacts are immutable once written: a write to an
// occupied key fails with ExistsError unless the caller forces a
// replace. Each write is a single transaction.
package store

import (
	"fmt"
	"os"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/sipboard/sipboard/pkg/models"
)

// Store holds daily artifacts keyed by ISO date and weekly artifacts
// keyed by their range string.
type Store struct {
	db *badgerhold.Store
}

// Open opens the artifact database at dir, creating it if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", dir, err)
	}
	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil
	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GC runs one value-log garbage collection pass. Bulk force-writes
// (rewrite runs) leave stale versions behind; badger reports
// ErrNoRewrite when there was nothing to reclaim.
func (s *Store) GC() error {
	err := s.db.Badger().RunValueLogGC(0.5)
	if err != nil && err != badger.ErrNoRewrite {
		return fmt.Errorf("store: value log gc: %w", err)
	}
	return nil
}

// ════════════════════════════════════════════════════════════════════
// Daily artifacts
// ════════════════════════════════════════════════════════════════════

// PutDaily writes a daily artifact under its date. An occupied date is
// ExistsError unless force is set, in which case the artifact is
// replaced.
func (s *Store) PutDaily(a *models.DailyConsensusArtifact, force bool) error {
	if a.Date == "" {
		return fmt.Errorf("store: daily artifact has no date")
	}
	if force {
		if err := s.db.Upsert(a.Date, a); err != nil {
			return fmt.Errorf("store: put daily %s: %w", a.Date, err)
		}
		return nil
	}
	err := s.db.Insert(a.Date, a)
	if err == badgerhold.ErrKeyExists {
		return ExistsError{Key: a.Date}
	}
	if err != nil {
		return fmt.Errorf("store: put daily %s: %w", a.Date, err)
	}
	return nil
}

// GetDaily loads the daily artifact for an ISO date.
func (s *Store) GetDaily(date string) (*models.DailyConsensusArtifact, error) {
	var a models.DailyConsensusArtifact
	err := s.db.Get(date, &a)
	if err == badgerhold.ErrNotFound {
		return nil, NotFoundError{Key: date}
	}
	if err != nil {
		return nil, fmt.Errorf("store: get daily %s: %w", date, err)
	}
	return &a, nil
}

// HasDaily reports whether an artifact exists for the date.
func (s *Store) HasDaily(date string) (bool, error) {
	var a models.DailyConsensusArtifact
	err := s.db.Get(date, &a)
	if err == badgerhold.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: probe daily %s: %w", date, err)
	}
	return true, nil
}

// ListDailyRange returns the stored daily artifacts with
// start <= date <= end, ascending by date. Dates without an artifact
// are simply absent from the result.
func (s *Store) ListDailyRange(start, end string) ([]*models.DailyConsensusArtifact, error) {
	var found []models.DailyConsensusArtifact
	query := badgerhold.Where("Date").Ge(start).And("Date").Le(end)
	if err := s.db.Find(&found, query); err != nil {
		return nil, fmt.Errorf("store: list dailies %s..%s: %w", start, end, err)
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Date < found[j].Date })
	out := make([]*models.DailyConsensusArtifact, len(found))
	for i := range found {
		out[i] = &found[i]
	}
	return out, nil
}

// ════════════════════════════════════════════════════════════════════
// Weekly artifacts
// ════════════════════════════════════════════════════════════════════

// PutWeekly writes a weekly artifact under its range key, with the
// same exists/force contract as PutDaily.
func (s *Store) PutWeekly(a *models.WeeklyTrendArtifact, force bool) error {
	key := a.RangeKey()
	if a.StartDate == "" || a.EndDate == "" {
		return fmt.Errorf("store: weekly artifact has no range")
	}
	if force {
		if err := s.db.Upsert(key, a); err != nil {
			return fmt.Errorf("store: put weekly %s: %w", key, err)
		}
		return nil
	}
	err := s.db.Insert(key, a)
	if err == badgerhold.ErrKeyExists {
		return ExistsError{Key: key}
	}
	if err != nil {
		return fmt.Errorf("store: put weekly %s: %w", key, err)
	}
	return nil
}

// GetWeekly loads the weekly artifact for a start..end range.
func (s *Store) GetWeekly(start, end string) (*models.WeeklyTrendArtifact, error) {
	key := start + ".." + end
	var a models.WeeklyTrendArtifact
	err := s.db.Get(key, &a)
	if err == badgerhold.ErrNotFound {
		return nil, NotFoundError{Key: key}
	}
	if err != nil {
		return nil, fmt.Errorf("store: get weekly %s: %w", key, err)
	}
	return &a, nil
}

// HasWeekly reports whether an artifact exists for the range.
func (s *Store) HasWeekly(start, end string) (bool, error) {
	key := start + ".." + end
	var a models.WeeklyTrendArtifact
	err := s.db.Get(key, &a)
	if err == badgerhold.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: probe weekly %s: %w", key, err)
	}
	return true, nil
}
