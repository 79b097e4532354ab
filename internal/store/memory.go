package store

import (
	"context"
	"sync"

	"cloud.google.com/go/civil"

	"github.com/AngelCh415/quasr/internal/models"
)

// MemoryStore serves a fixed set of rows for every statement. It stands in
// for the database in tests and in DB_DRIVER=memory mode.
type MemoryStore struct {
	mu      sync.RWMutex
	rows    []models.InputDataRow
	queries []string
	err     error
}

func NewMemoryStore(rows ...models.InputDataRow) *MemoryStore {
	return &MemoryStore{rows: rows}
}

// DemoRows is the fixture served when no database is configured.
func DemoRows() []models.InputDataRow {
	d := civil.Date{Year: 2020, Month: 1, Day: 1}
	return []models.InputDataRow{{
		Value:         140,
		Date:          &d,
		MetricName:    "Cost",
		MarketingNode: models.Ptr("mnode1"),
		AdPlatform:    "mock",
	}}
}

func (s *MemoryStore) Add(rows ...models.InputDataRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, rows...)
}

// FailWith makes every following Load return err.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *MemoryStore) Load(ctx context.Context, query string) ([]models.InputDataRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.InputDataRow, len(s.rows))
	copy(out, s.rows)
	return out, nil
}

// Queries returns the statements received so far.
func (s *MemoryStore) Queries() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.queries))
	copy(out, s.queries)
	return out
}
