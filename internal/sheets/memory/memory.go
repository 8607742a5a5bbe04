package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ports "budgetmail/internal/sheets"
)

var _ ports.ReportArchiver = (*Store)(nil)

// Store keeps archived report records in process memory.
type Store struct {
	mu    sync.Mutex
	items []ports.ReportRecord
}

func New() *Store {
	return &Store{}
}

// ArchiveReport stores the record and returns a synthetic row reference.
func (s *Store) ArchiveReport(_ context.Context, r ports.ReportRecord) (string, error) {
	if r.Period == "" {
		return "", errors.New("report record has no period")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, r)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Records returns a copy of everything archived so far.
func (s *Store) Records() []ports.ReportRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.ReportRecord(nil), s.items...)
}
