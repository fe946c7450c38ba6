// Package memory is an in-process transaction store. It backs tests and the
// default data backend when no SQLite path is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"khata/internal/core"
)

type Store struct {
	mu      sync.Mutex
	records []core.TransactionRecord
	nextID  int
}

func New() *Store {
	return &Store{}
}

// Save upserts by MessageID: re-classifying a message replaces its record
// instead of duplicating it.
func (s *Store) Save(_ context.Context, t core.TransactionRecord) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.records {
		if existing.MessageID == t.MessageID {
			t.ID = existing.ID
			t.CreatedAt = existing.CreatedAt
			s.records[i] = t
			return t.ID, nil
		}
	}

	if t.ID == "" {
		s.nextID++
		t.ID = fmt.Sprintf("mem:%d", s.nextID)
	}
	s.records = append(s.records, t)
	return t.ID, nil
}

// List filters and sorts by OccurredAt descending.
func (s *Store) List(_ context.Context, f core.ListFilter) ([]core.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.TransactionRecord
	for _, r := range s.records {
		if !f.Start.IsZero() && r.OccurredAt.Before(f.Start) {
			continue
		}
		// End is inclusive through the whole closing day.
		if !f.End.IsZero() && !r.OccurredAt.Before(f.End.AddDate(0, 0, 1)) {
			continue
		}
		if f.Category != "" && r.Category != f.Category {
			continue
		}
		if f.Bank != "" && r.Bank != f.Bank {
			continue
		}
		if f.Mode != "" && r.Mode != f.Mode {
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) UpdateByID(_ context.Context, id string, fields core.UpdateFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID != id {
			continue
		}
		r := &s.records[i]
		if fields.Amount != nil {
			r.Amount = *fields.Amount
		}
		if fields.Category != nil {
			r.Category = *fields.Category
		}
		if fields.Mode != nil {
			r.Mode = *fields.Mode
		}
		if fields.Receiver != nil {
			r.Receiver = *fields.Receiver
		}
		if fields.Bank != nil {
			r.Bank = *fields.Bank
		}
		return nil
	}
	return fmt.Errorf("transaction %s not found", id)
}

func (s *Store) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("transaction %s not found", id)
}

// Len reports the number of stored records, for tests.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
