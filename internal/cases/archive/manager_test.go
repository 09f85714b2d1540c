package archive

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"casedesk/internal/cases/models"
	"casedesk/internal/cases/numbering"
	"casedesk/internal/cases/store"
	dErrors "casedesk/pkg/domain-errors"
)

type ManagerSuite struct {
	suite.Suite
	ctx     context.Context
	live    *store.CaseStore
	archive *InMemoryStore
	manager *Manager
	now     time.Time
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.ctx = context.Background()
	s.live = store.NewInMemory(numbering.Config{})
	s.archive = NewInMemoryStore()
	s.manager = New(s.live, s.archive)
	s.now = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
}

func (s *ManagerSuite) create(t models.CaseType) *models.Case {
	c, err := s.live.Create(s.ctx, t, &models.Case{
		ServiceType: "Electrical",
		Dependency:  "ICU",
		ReportedAt:  s.now,
		ReportedBy:  models.UserRef{ID: "u-1", Name: "Ana Ruiz"},
	}, 2024)
	s.Require().NoError(err)
	return c
}

func (s *ManagerSuite) TestDelete() {
	s.Run("moves case to archive", func() {
		c := s.create(models.CaseTypeCorrective)

		entry, err := s.manager.Delete(s.ctx, c.CaseNumber, models.CaseTypeCorrective, "jdoe", s.now)
		s.Require().NoError(err)
		s.Equal("jdoe", entry.DeletedBy)
		s.Equal(models.CaseTypeCorrective, entry.OriginalCollection)
		s.Equal(s.now.Add(DefaultRetention), entry.ExpiresAt)

		exists, err := s.live.Exists(s.ctx, models.CaseTypeCorrective, c.CaseNumber)
		s.Require().NoError(err)
		s.False(exists)

		got, err := s.manager.Get(s.ctx, c.CaseNumber)
		s.Require().NoError(err)
		s.Equal(entry.ID, got.ID)
	})

	s.Run("wrong type is not found", func() {
		c := s.create(models.CaseTypePreventive)
		_, err := s.manager.Delete(s.ctx, c.CaseNumber, models.CaseTypeCorrective, "jdoe", s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("type required", func() {
		_, err := s.manager.Delete(s.ctx, "20240001", "", "jdoe", s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ManagerSuite) TestRestoreSameNumber() {
	c := s.create(models.CaseTypeCorrective)
	_, err := s.manager.Delete(s.ctx, c.CaseNumber, models.CaseTypeCorrective, "jdoe", s.now)
	s.Require().NoError(err)

	res, err := s.manager.Restore(s.ctx, c.CaseNumber, s.now)
	s.Require().NoError(err)
	s.False(res.Renumbered)
	s.Equal(c, res.Case)

	_, err = s.manager.Get(s.ctx, c.CaseNumber)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ManagerSuite) TestRestoreCollisionSuffixes() {
	first := s.create(models.CaseTypeCorrective)
	_, err := s.manager.Delete(s.ctx, first.CaseNumber, models.CaseTypeCorrective, "jdoe", s.now)
	s.Require().NoError(err)

	// The allocator reuses the freed number.
	reused := s.create(models.CaseTypeCorrective)
	s.Require().Equal(first.CaseNumber, reused.CaseNumber)

	res, err := s.manager.Restore(s.ctx, first.CaseNumber, s.now)
	s.Require().NoError(err)
	s.True(res.Renumbered)
	s.Equal(first.CaseNumber+"(1)", res.Case.CaseNumber)
	s.Equal(first.CaseNumber, res.OriginalNumber)

	// Archive the reused case and a fresh one with the same number again.
	_, err = s.manager.Delete(s.ctx, reused.CaseNumber, models.CaseTypeCorrective, "jdoe", s.now.Add(time.Minute))
	s.Require().NoError(err)
	third := s.create(models.CaseTypeCorrective)
	s.Require().Equal(first.CaseNumber, third.CaseNumber)

	res, err = s.manager.Restore(s.ctx, first.CaseNumber, s.now)
	s.Require().NoError(err)
	s.Equal(first.CaseNumber+"(2)", res.Case.CaseNumber)
}

func (s *ManagerSuite) TestRestoreFallsBackToTimestamp() {
	manager := New(s.live, s.archive, WithMaxRestoreSuffix(1))
	c := s.create(models.CaseTypePreventive)
	_, err := manager.Delete(s.ctx, c.CaseNumber, models.CaseTypePreventive, "jdoe", s.now)
	s.Require().NoError(err)

	s.create(models.CaseTypePreventive)
	blocker := &models.Case{
		CaseNumber: c.CaseNumber + "(1)", TypeCase: models.CaseTypePreventive,
		ServiceType: "x", Dependency: "y", Status: models.StatusOpen,
	}
	s.Require().NoError(s.live.InsertExisting(s.ctx, blocker))

	res, err := manager.Restore(s.ctx, c.CaseNumber, s.now)
	s.Require().NoError(err)
	s.Equal(numbering.WithTimestampSuffix(c.CaseNumber, s.now), res.Case.CaseNumber)
}

func (s *ManagerSuite) TestListAndPurge() {
	a := s.create(models.CaseTypeCorrective)
	b := s.create(models.CaseTypeCorrective)
	_, err := s.manager.Delete(s.ctx, a.CaseNumber, models.CaseTypeCorrective, "jdoe", s.now)
	s.Require().NoError(err)
	_, err = s.manager.Delete(s.ctx, b.CaseNumber, models.CaseTypeCorrective, "jdoe", s.now.Add(time.Hour))
	s.Require().NoError(err)

	entries, err := s.manager.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(b.CaseNumber, entries[0].OriginalCase.CaseNumber)

	n, err := s.manager.PurgeExpired(s.ctx, s.now.Add(DefaultRetention))
	s.Require().NoError(err)
	s.Equal(1, n)

	entries, err = s.manager.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(b.CaseNumber, entries[0].OriginalCase.CaseNumber)
}

// failingLive fails Remove while delegating everything else.
type failingLive struct {
	LiveStore
	removeErr error
}

func (f *failingLive) Remove(ctx context.Context, t models.CaseType, number string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	return f.LiveStore.Remove(ctx, t, number)
}

// failingArchive fails Delete while delegating everything else.
type failingArchive struct {
	Store
	deleteErr error
}

func (f *failingArchive) Delete(ctx context.Context, id uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Store.Delete(ctx, id)
}

func (s *ManagerSuite) TestDeleteCompensation() {
	s.Run("live delete failure rolls back archive entry", func() {
		c := s.create(models.CaseTypeCorrective)
		manager := New(&failingLive{LiveStore: s.live, removeErr: errors.New("disk full")}, s.archive)

		_, err := manager.Delete(s.ctx, c.CaseNumber, models.CaseTypeCorrective, "jdoe", s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))

		entries, err := s.archive.List(s.ctx)
		s.Require().NoError(err)
		s.Empty(entries)
		exists, err := s.live.Exists(s.ctx, models.CaseTypeCorrective, c.CaseNumber)
		s.Require().NoError(err)
		s.True(exists)
	})

	s.Run("failed compensation names the orphan", func() {
		c := s.create(models.CaseTypePreventive)
		manager := New(
			&failingLive{LiveStore: s.live, removeErr: errors.New("disk full")},
			&failingArchive{Store: s.archive, deleteErr: errors.New("connection reset")},
		)

		_, err := manager.Delete(s.ctx, c.CaseNumber, models.CaseTypePreventive, "jdoe", s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))

		entries, lerr := s.archive.List(s.ctx)
		s.Require().NoError(lerr)
		s.Require().Len(entries, 1)
		s.True(strings.Contains(err.Error(), entries[0].ID.String()), "error should name orphaned archive id")
	})
}

func (s *ManagerSuite) TestRestoreCompensation() {
	c := s.create(models.CaseTypeCorrective)
	_, err := s.manager.Delete(s.ctx, c.CaseNumber, models.CaseTypeCorrective, "jdoe", s.now)
	s.Require().NoError(err)

	manager := New(s.live, &failingArchive{Store: s.archive, deleteErr: errors.New("connection reset")})
	_, err = manager.Restore(s.ctx, c.CaseNumber, s.now)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	exists, err := s.live.Exists(s.ctx, models.CaseTypeCorrective, c.CaseNumber)
	s.Require().NoError(err)
	s.False(exists, "reinserted case should be rolled back")

	_, err = s.manager.Get(s.ctx, c.CaseNumber)
	s.NoError(err, "archive entry should remain")
}

// racingLive reports a candidate free but loses the insert for it once.
type racingLive struct {
	LiveStore
	lose string
	lost bool
}

func (r *racingLive) InsertExisting(ctx context.Context, c *models.Case) error {
	if c.CaseNumber == r.lose && !r.lost {
		r.lost = true
		blocker := c.Clone()
		if err := r.LiveStore.InsertExisting(ctx, blocker); err != nil {
			return err
		}
	}
	return r.LiveStore.InsertExisting(ctx, c)
}

func (s *ManagerSuite) TestRestoreRetriesLostInsertRace() {
	c := s.create(models.CaseTypeCorrective)
	_, err := s.manager.Delete(s.ctx, c.CaseNumber, models.CaseTypeCorrective, "jdoe", s.now)
	s.Require().NoError(err)

	manager := New(&racingLive{LiveStore: s.live, lose: c.CaseNumber}, s.archive)
	res, err := manager.Restore(s.ctx, c.CaseNumber, s.now)
	s.Require().NoError(err)
	s.Equal(c.CaseNumber+"(1)", res.Case.CaseNumber)
}
