// Package numbering assigns year-scoped sequential case numbers.
//
// A number is <YYYY><NNNN>: the current year followed by a zero-padded
// sequence that restarts every year, independently per case type. The
// allocator reads the highest plain number of the year, increments it and
// re-checks that the result is free. That check-then-act sequence is not
// atomic across processes; callers that need a hard guarantee wrap
// allocate+insert in a Locker and rely on the store's unique key.
package numbering

import (
	"context"
	"errors"
	"fmt"

	"casedesk/internal/cases/models"
	dErrors "casedesk/pkg/domain-errors"
)

var (
	// ErrAllocationConflict means the computed number is already taken.
	ErrAllocationConflict = errors.New("allocation conflict")
	// ErrSequenceExhausted means the year's four-digit sequence is used up.
	ErrSequenceExhausted = errors.New("sequence exhausted")
)

// Store is the read side of a case collection the allocator needs.
type Store interface {
	// MaxNumberForYear returns the highest plain (unsuffixed) number of year
	// in the collection of t, or "" when there is none.
	MaxNumberForYear(ctx context.Context, t models.CaseType, year int) (string, error)
	Exists(ctx context.Context, t models.CaseType, number string) (bool, error)
}

// Config carries per-type starting sequences. Types absent from the map start at 1.
type Config struct {
	InitialSequence map[models.CaseType]int
}

// Allocator is stateless; every call reads the store.
type Allocator struct {
	store Store
	cfg   Config
}

func New(store Store, cfg Config) *Allocator {
	return &Allocator{store: store, cfg: cfg}
}

func (a *Allocator) initial(t models.CaseType) int {
	if seq, ok := a.cfg.InitialSequence[t]; ok && seq > 0 {
		return seq
	}
	return 1
}

// Allocate computes the next case number for t in year.
func (a *Allocator) Allocate(ctx context.Context, t models.CaseType, year int) (string, error) {
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "typeCase must be Preventive or Corrective")
	}

	highest, err := a.store.MaxNumberForYear(ctx, t, year)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to read highest case number")
	}

	seq := a.initial(t)
	if highest != "" {
		highestYear, highestSeq, parseErr := Parse(highest)
		if parseErr == nil && highestYear == year {
			seq = highestSeq + 1
		}
	}
	if seq > MaxSequence {
		return "", dErrors.Wrap(ErrSequenceExhausted, dErrors.CodeInvariantViolation,
			fmt.Sprintf("%s case numbers for %d are exhausted", t, year))
	}

	number := Format(year, seq)
	taken, err := a.store.Exists(ctx, t, number)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check case number")
	}
	if taken {
		return "", dErrors.Wrap(ErrAllocationConflict, dErrors.CodeConflict,
			fmt.Sprintf("case number %s already exists", number))
	}
	return number, nil
}
