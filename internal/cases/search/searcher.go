package search

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"casedesk/internal/cases/models"
	"casedesk/internal/cases/numbering"
)

// Store runs a compiled query against the collection of one case type.
type Store interface {
	Search(ctx context.Context, t models.CaseType, q models.Query) ([]*models.Case, error)
}

// Searcher executes compiled queries over one or both collections.
type Searcher struct {
	store Store
}

func New(store Store) *Searcher {
	return &Searcher{store: store}
}

// Search compiles criteria and executes it.
func (s *Searcher) Search(ctx context.Context, criteria models.SearchCriteria) ([]*models.Case, error) {
	q, err := Compile(criteria)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, q)
}

// Execute runs q. With a type, only that collection is read and results are
// ordered by reportedAt desc unless sortBy=caseNumber. Without a type both
// collections are queried concurrently and merged by numeric case number desc.
func (s *Searcher) Execute(ctx context.Context, q models.Query) ([]*models.Case, error) {
	if q.Type != "" {
		cases, err := s.store.Search(ctx, q.Type, q)
		if err != nil {
			return nil, err
		}
		if q.SortBy == models.SortByCaseNumber {
			SortByCaseNumber(cases)
		} else {
			SortByReportedAt(cases)
		}
		return cases, nil
	}

	types := models.CaseTypes()
	results := make([][]*models.Case, len(types))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range types {
		g.Go(func() error {
			cases, err := s.store.Search(gctx, t, q.ForType(t))
			if err != nil {
				return err
			}
			results[i] = cases
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := slices.Concat(results...)
	if q.SortBy == models.SortByReportedAt {
		SortByReportedAt(merged)
	} else {
		SortByCaseNumber(merged)
	}
	return merged, nil
}

// SortByCaseNumber orders by the numeric value of the case number, highest
// first. Numbers that do not parse count as 0. Ties go to the most recent report.
func SortByCaseNumber(cases []*models.Case) {
	slices.SortStableFunc(cases, func(a, b *models.Case) int {
		na, nb := numbering.NumericValue(a.CaseNumber), numbering.NumericValue(b.CaseNumber)
		switch {
		case na > nb:
			return -1
		case na < nb:
			return 1
		}
		return b.ReportedAt.Compare(a.ReportedAt)
	})
}

// SortByReportedAt orders by report time, most recent first.
func SortByReportedAt(cases []*models.Case) {
	slices.SortStableFunc(cases, func(a, b *models.Case) int {
		return b.ReportedAt.Compare(a.ReportedAt)
	})
}
