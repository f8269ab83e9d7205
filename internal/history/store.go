// Package history keeps completed analyses in memory so the results surface
// can list and re-fetch them. Process-lifetime only, nothing is persisted.
package history

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/clearbill/billscan/internal/model"
)

// ErrNotFound is returned when no record exists for an id.
var ErrNotFound = eris.New("history: record not found")

// Store is an in-memory analysis record store safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records map[string]model.AnalysisRecord
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{records: make(map[string]model.AnalysisRecord)}
}

// Add saves an analysis under a fresh id and returns the stored record.
func (s *Store) Add(billText string, data model.AnalysisData) model.AnalysisRecord {
	record := model.AnalysisRecord{
		ID:        uuid.NewString(),
		BillText:  billText,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.records[record.ID] = record
	s.mu.Unlock()

	return record
}

// Get returns the record for id, or ErrNotFound.
func (s *Store) Get(id string) (model.AnalysisRecord, error) {
	s.mu.RLock()
	record, ok := s.records[id]
	s.mu.RUnlock()

	if !ok {
		return model.AnalysisRecord{}, ErrNotFound
	}
	return record, nil
}

// List returns all records, newest first.
func (s *Store) List() []model.AnalysisRecord {
	s.mu.RLock()
	out := make([]model.AnalysisRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
