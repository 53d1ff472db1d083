package service

import (
	"context"
	"fmt"

	"github.com/phantom-eng/bytefood-web/internal/core/domain"
	"github.com/phantom-eng/bytefood-web/internal/port"
)

// LineStore holds the raw cart entries of one session and mirrors them to a repository.
// Persistence is best effort: a failed save is returned but the in-memory change stands.
type LineStore struct {
	repo    port.LineRepository
	key     string
	entries []domain.LineEntry
}

func NewLineStore(repo port.LineRepository, key string) *LineStore {
	return &LineStore{repo: repo, key: key, entries: make([]domain.LineEntry, 0)}
}

// Restore loads the persisted snapshot. A missing snapshot is an empty cart; a malformed
// or inconsistent one also leaves the cart empty and reports ErrPersistenceLoad.
func (s *LineStore) Restore(ctx context.Context) error {
	s.entries = make([]domain.LineEntry, 0)

	loaded, err := s.repo.Load(ctx, s.key)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceLoad, err)
	}
	for _, e := range loaded {
		if _, err := domain.NewLineEntry(e.Name, e.UnitPrice); err != nil {
			return fmt.Errorf("%w: entry %q: %v", domain.ErrPersistenceLoad, e.Name, err)
		}
	}
	if err := domain.CheckConsistentPrices(loaded); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceLoad, err)
	}

	s.entries = append(s.entries, loaded...)
	return nil
}

// Add appends entry. Callers validate the entry first.
func (s *LineStore) Add(ctx context.Context, entry domain.LineEntry) error {
	s.entries = append(s.entries, entry)
	return s.save(ctx)
}

// RemoveOne drops the first entry named name. It reports false, and touches nothing,
// when no entry matches.
func (s *LineStore) RemoveOne(ctx context.Context, name string) (bool, error) {
	for i, e := range s.entries {
		if e.Name == name {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true, s.save(ctx)
		}
	}
	return false, nil
}

func (s *LineStore) Clear(ctx context.Context) error {
	s.entries = make([]domain.LineEntry, 0)
	return s.save(ctx)
}

// PriceOf returns the captured price for name if the cart already holds it.
func (s *LineStore) PriceOf(name string) (domain.LineEntry, bool) {
	for _, e := range s.entries {
		if e.Name == name {
			return e, true
		}
	}
	return domain.LineEntry{}, false
}

func (s *LineStore) Entries() []domain.LineEntry {
	out := make([]domain.LineEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *LineStore) Len() int {
	return len(s.entries)
}

func (s *LineStore) Aggregate() domain.Order {
	return domain.Aggregate(s.entries)
}

// Discard removes the persisted snapshot without touching memory.
func (s *LineStore) Discard(ctx context.Context) error {
	return s.repo.Delete(ctx, s.key)
}

func (s *LineStore) save(ctx context.Context) error {
	if err := s.repo.Save(ctx, s.key, s.Entries()); err != nil {
		return fmt.Errorf("save cart %s: %w", s.key, err)
	}
	return nil
}
