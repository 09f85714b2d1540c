package numbering

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/suite"

	"casedesk/internal/cases/models"
	dErrors "casedesk/pkg/domain-errors"
)

// fakeStore answers allocator reads from a fixed set of numbers per type.
type fakeStore struct {
	numbers   map[models.CaseType][]string
	maxErr    error
	existsErr error
	// forceExists makes Exists report true regardless of contents.
	forceExists bool
}

func (f *fakeStore) MaxNumberForYear(_ context.Context, t models.CaseType, year int) (string, error) {
	if f.maxErr != nil {
		return "", f.maxErr
	}
	prefix := strconv.Itoa(year)
	highest := ""
	for _, n := range f.numbers[t] {
		if IsSequenceBearing(n) && n[:4] == prefix && n > highest {
			highest = n
		}
	}
	return highest, nil
}

func (f *fakeStore) Exists(_ context.Context, t models.CaseType, number string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	if f.forceExists {
		return true, nil
	}
	for _, n := range f.numbers[t] {
		if n == number {
			return true, nil
		}
	}
	return false, nil
}

type AllocatorSuite struct {
	suite.Suite
	ctx   context.Context
	store *fakeStore
}

func TestAllocatorSuite(t *testing.T) {
	suite.Run(t, new(AllocatorSuite))
}

func (s *AllocatorSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = &fakeStore{numbers: map[models.CaseType][]string{}}
}

func (s *AllocatorSuite) TestFirstNumberOfYear() {
	s.Run("empty store starts at one", func() {
		a := New(s.store, Config{})
		number, err := a.Allocate(s.ctx, models.CaseTypePreventive, 2024)
		s.Require().NoError(err)
		s.Equal("20240001", number)
	})

	s.Run("configured initial sequence", func() {
		a := New(s.store, Config{InitialSequence: map[models.CaseType]int{models.CaseTypeCorrective: 500}})
		number, err := a.Allocate(s.ctx, models.CaseTypeCorrective, 2024)
		s.Require().NoError(err)
		s.Equal("20240500", number)
	})

	s.Run("prior year numbers restart the sequence", func() {
		s.store.numbers[models.CaseTypePreventive] = []string{"20230117"}
		a := New(s.store, Config{})
		number, err := a.Allocate(s.ctx, models.CaseTypePreventive, 2024)
		s.Require().NoError(err)
		s.Equal("20240001", number)
	})
}

func (s *AllocatorSuite) TestIncrementsWithinYear() {
	s.store.numbers[models.CaseTypePreventive] = []string{"20240001", "20240002"}
	s.store.numbers[models.CaseTypeCorrective] = []string{"20240009"}
	a := New(s.store, Config{})

	number, err := a.Allocate(s.ctx, models.CaseTypePreventive, 2024)
	s.Require().NoError(err)
	s.Equal("20240003", number)

	number, err = a.Allocate(s.ctx, models.CaseTypeCorrective, 2024)
	s.Require().NoError(err)
	s.Equal("20240010", number, "sequences are independent per type")
}

func (s *AllocatorSuite) TestIgnoresRestoreSuffixes() {
	s.store.numbers[models.CaseTypeCorrective] = []string{"20240001", "20240002(1)", "20240002(2)"}
	a := New(s.store, Config{})

	number, err := a.Allocate(s.ctx, models.CaseTypeCorrective, 2024)
	s.Require().NoError(err)
	s.Equal("20240002", number)
}

func (s *AllocatorSuite) TestSequenceExhausted() {
	s.store.numbers[models.CaseTypePreventive] = []string{"20249999"}
	a := New(s.store, Config{})

	_, err := a.Allocate(s.ctx, models.CaseTypePreventive, 2024)
	s.Require().Error(err)
	s.True(errors.Is(err, ErrSequenceExhausted))
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *AllocatorSuite) TestConflictWhenComputedNumberExists() {
	s.store.forceExists = true
	a := New(s.store, Config{})

	_, err := a.Allocate(s.ctx, models.CaseTypePreventive, 2024)
	s.True(errors.Is(err, ErrAllocationConflict))
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *AllocatorSuite) TestStoreFailures() {
	s.Run("max lookup fails", func() {
		store := &fakeStore{maxErr: errors.New("db down")}
		_, err := New(store, Config{}).Allocate(s.ctx, models.CaseTypePreventive, 2024)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("exists check fails", func() {
		store := &fakeStore{existsErr: errors.New("db down")}
		_, err := New(store, Config{}).Allocate(s.ctx, models.CaseTypePreventive, 2024)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("unknown type", func() {
		_, err := New(s.store, Config{}).Allocate(s.ctx, models.CaseType("Predictive"), 2024)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
