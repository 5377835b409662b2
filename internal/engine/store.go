package engine

import (
	"sync/atomic"

	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/catalog"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/series"
)

// Store is the cumulative model: global catalogs plus the rate series. It
// has a single writer. Commit refuses, rather than corrupts, when a second
// writer enters while one is committing.
type Store struct {
	catalog *catalog.Catalog
	series  *series.Series

	committing atomic.Bool
	merged     int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{catalog: catalog.New(), series: series.New()}
}

// Commit adds the catalog delta and every event of o. Both parts land or
// neither does. Commit is not idempotent: committing the same outcome twice
// counts its events twice.
func (s *Store) Commit(o *SourceOutcome) error {
	if o == nil {
		return &MergeError{Reason: "nil outcome"}
	}
	if !s.committing.CompareAndSwap(false, true) {
		return &MergeError{Source: o.Source, Reason: "concurrent merge in progress"}
	}
	defer s.committing.Store(false)

	s.catalog.Merge(o.CatalogDelta)
	for _, ev := range o.Events {
		s.series.Add(ev)
	}
	s.merged++
	return nil
}

// Catalog returns the live catalog. Callers must not mutate it.
func (s *Store) Catalog() *catalog.Catalog { return s.catalog }

// Series returns the live rate series. Callers must not mutate it.
func (s *Store) Series() *series.Series { return s.series }

// Merged returns the number of committed outcomes.
func (s *Store) Merged() int { return s.merged }
