package store

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"

	"casedesk/internal/cases/models"
	"casedesk/internal/cases/numbering"
	"casedesk/pkg/platform/sentinel"
)

// InMemoryCollection is a goroutine-safe map-backed Collection for tests and
// database-less runs.
type InMemoryCollection struct {
	mu    sync.RWMutex
	cases map[string]*models.Case
}

func NewInMemoryCollection() *InMemoryCollection {
	return &InMemoryCollection{cases: make(map[string]*models.Case)}
}

func (s *InMemoryCollection) Insert(_ context.Context, c *models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[c.CaseNumber]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.cases[c.CaseNumber] = c.Clone()
	return nil
}

func (s *InMemoryCollection) FindByNumber(_ context.Context, number string) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[number]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *InMemoryCollection) Exists(_ context.Context, number string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cases[number]
	return ok, nil
}

func (s *InMemoryCollection) MaxNumberForYear(_ context.Context, year int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := strconv.Itoa(year)
	highest := ""
	for number := range s.cases {
		if numbering.IsSequenceBearing(number) && strings.HasPrefix(number, prefix) && number > highest {
			highest = number
		}
	}
	return highest, nil
}

func (s *InMemoryCollection) Update(_ context.Context, c *models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[c.CaseNumber]; !ok {
		return sentinel.ErrNotFound
	}
	s.cases[c.CaseNumber] = c.Clone()
	return nil
}

func (s *InMemoryCollection) Delete(_ context.Context, number string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[number]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.cases, number)
	return nil
}

func (s *InMemoryCollection) Search(_ context.Context, q models.Query) ([]*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Case, 0)
	for _, c := range s.cases {
		if q.Matches(c) {
			out = append(out, c.Clone())
		}
	}
	sortByReportedAtDesc(out)
	return out, nil
}

func (s *InMemoryCollection) ListAll(ctx context.Context) ([]*models.Case, error) {
	return s.Search(ctx, models.Query{})
}

func sortByReportedAtDesc(cases []*models.Case) {
	slices.SortStableFunc(cases, func(a, b *models.Case) int {
		if c := b.ReportedAt.Compare(a.ReportedAt); c != 0 {
			return c
		}
		return strings.Compare(b.CaseNumber, a.CaseNumber)
	})
}
