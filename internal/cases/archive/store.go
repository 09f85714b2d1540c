package archive

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"casedesk/internal/cases/models"
	"casedesk/pkg/platform/sentinel"
)

// Store persists archive entries. Missing entries are reported as
// sentinel.ErrNotFound.
type Store interface {
	Insert(ctx context.Context, entry *models.ArchivedCase) error
	Delete(ctx context.Context, id uuid.UUID) error
	// FindLatestByNumber returns the most recently archived entry for number.
	FindLatestByNumber(ctx context.Context, number string) (*models.ArchivedCase, error)
	// List returns all entries, most recently deleted first.
	List(ctx context.Context) ([]*models.ArchivedCase, error)
	// PurgeExpired removes entries with ExpiresAt <= now and reports how many.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// InMemoryStore is a map-backed Store for tests and database-less runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*models.ArchivedCase
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[uuid.UUID]*models.ArchivedCase)}
}

func (s *InMemoryStore) Insert(_ context.Context, entry *models.ArchivedCase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entry.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.entries[entry.ID] = entry.Clone()
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *InMemoryStore) FindLatestByNumber(_ context.Context, number string) (*models.ArchivedCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.ArchivedCase
	for _, e := range s.entries {
		if e.OriginalCase.CaseNumber != number {
			continue
		}
		if latest == nil || e.DeletedAt.After(latest.DeletedAt) {
			latest = e
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	return latest.Clone(), nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.ArchivedCase, error) {
	s.mu.RLock()
	out := make([]*models.ArchivedCase, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Clone())
	}
	s.mu.RUnlock()
	sortByDeletedAtDesc(out)
	return out, nil
}

func (s *InMemoryStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for id, e := range s.entries {
		if e.Expired(now) {
			delete(s.entries, id)
			purged++
		}
	}
	return purged, nil
}

func sortByDeletedAtDesc(entries []*models.ArchivedCase) {
	slices.SortFunc(entries, func(a, b *models.ArchivedCase) int {
		if c := b.DeletedAt.Compare(a.DeletedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID.String(), a.ID.String())
	})
}
