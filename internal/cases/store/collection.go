// Package store persists live cases in one collection per case type.
//
// Collections return sentinel errors (sentinel.ErrNotFound, sentinel.ErrAlreadyUsed)
// for expected outcomes. CaseStore wraps them with domain codes while keeping
// the sentinel reachable through errors.Is.
package store

import (
	"context"

	"casedesk/internal/cases/models"
)

// Collection is the storage primitive for one case type.
type Collection interface {
	// Insert stores c under c.CaseNumber. Returns sentinel.ErrAlreadyUsed when taken.
	Insert(ctx context.Context, c *models.Case) error
	// FindByNumber returns sentinel.ErrNotFound when absent.
	FindByNumber(ctx context.Context, number string) (*models.Case, error)
	Exists(ctx context.Context, number string) (bool, error)
	// MaxNumberForYear returns the highest plain <YYYY><NNNN> number of year, or "".
	MaxNumberForYear(ctx context.Context, year int) (string, error)
	// Update replaces the stored record. Returns sentinel.ErrNotFound when absent.
	Update(ctx context.Context, c *models.Case) error
	// Delete returns sentinel.ErrNotFound when absent.
	Delete(ctx context.Context, number string) error
	// Search returns matches ordered by reportedAt descending.
	Search(ctx context.Context, q models.Query) ([]*models.Case, error)
	ListAll(ctx context.Context) ([]*models.Case, error)
}
