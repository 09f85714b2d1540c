//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"casedesk/internal/cases/models"
	"casedesk/internal/cases/numbering"
	"casedesk/internal/cases/store"
	"casedesk/pkg/platform/sentinel"
	"casedesk/pkg/testutil/containers"
)

type PostgresCaseStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.CaseStore
	now      time.Time
}

func TestPostgresCaseStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresCaseStoreSuite))
}

func (s *PostgresCaseStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.Pool, numbering.Config{})
	s.now = time.Date(2024, 4, 2, 15, 30, 0, 0, time.UTC)
}

func (s *PostgresCaseStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "preventive_cases", "corrective_cases")
	s.Require().NoError(err)
}

func (s *PostgresCaseStoreSuite) draft() *models.Case {
	return &models.Case{
		ServiceType: "Electrical",
		Dependency:  "ICU",
		Priority:    "High",
		ReportedAt:  s.now,
		ReportedBy:  models.UserRef{ID: "u-7", Name: "Marta Gil", Position: "Nurse"},
		ServiceData: models.ServiceData{
			Kind:       models.ServiceDataEquipment,
			Equipments: []models.Equipment{{Name: "Infusion Pump", Serial: "SN-1"}},
		},
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
}

func (s *PostgresCaseStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	d := s.draft()
	d.AssignedTechnician = &models.UserRef{ID: "t-1", Name: "Carlos Peña"}
	d.EffectivenessRating = &models.Rating{Value: 3}

	created, err := s.store.Create(ctx, models.CaseTypeCorrective, d, 2024)
	s.Require().NoError(err)
	s.Equal("20240001", created.CaseNumber)

	found, err := s.store.FindByNumber(ctx, created.CaseNumber, "")
	s.Require().NoError(err)
	s.Equal(created.ReportedBy, found.ReportedBy)
	s.Equal(created.AssignedTechnician, found.AssignedTechnician)
	s.Equal(3, found.EffectivenessRating.Value)
	s.Nil(found.SatisfactionRating)
	s.Equal("Infusion Pump", found.ServiceData.Equipments[0].Name)
	s.True(found.ReportedAt.Equal(s.now))
}

func (s *PostgresCaseStoreSuite) TestMaxNumberIgnoresSuffixes() {
	ctx := context.Background()
	for _, n := range []string{"20240001", "20240002(1)", "20230999"} {
		c := s.draft()
		c.CaseNumber = n
		c.TypeCase = models.CaseTypePreventive
		c.Status = models.StatusOpen
		s.Require().NoError(s.store.InsertExisting(ctx, c))
	}

	next, err := s.store.NextNumber(ctx, models.CaseTypePreventive, 2024)
	s.Require().NoError(err)
	s.Equal("20240002", next)
}

func (s *PostgresCaseStoreSuite) TestSearchTranslatesCriteria() {
	ctx := context.Background()
	a, err := s.store.Create(ctx, models.CaseTypeCorrective, s.draft(), 2024)
	s.Require().NoError(err)

	other := s.draft()
	other.ServiceData = models.ServiceData{Kind: models.ServiceDataGeneric, Name: "Boiler 100%"}
	other.ReportedAt = s.now.Add(48 * time.Hour)
	b, err := s.store.Create(ctx, models.CaseTypeCorrective, other, 2024)
	s.Require().NoError(err)

	s.Run("equipment name in equipments array", func() {
		got, err := s.store.Search(ctx, models.CaseTypeCorrective, models.Query{EquipmentName: "infusion"})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(a.CaseNumber, got[0].CaseNumber)
	})

	s.Run("equipment name with like metacharacter", func() {
		got, err := s.store.Search(ctx, models.CaseTypeCorrective, models.Query{EquipmentName: "100%"})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(b.CaseNumber, got[0].CaseNumber)
	})

	s.Run("date window", func() {
		from := s.now.Add(24 * time.Hour)
		got, err := s.store.Search(ctx, models.CaseTypeCorrective, models.Query{From: &from})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(b.CaseNumber, got[0].CaseNumber)
	})

	s.Run("rating threshold excludes unrated", func() {
		min := 1
		got, err := s.store.Search(ctx, models.CaseTypeCorrective, models.Query{MinEffectiveness: &min})
		s.Require().NoError(err)
		s.Empty(got)
	})
}

// TestConcurrentInsertSameNumber verifies the primary key turns a lost race
// into ErrAlreadyUsed.
func (s *PostgresCaseStoreSuite) TestConcurrentInsertSameNumber() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := s.draft()
			c.CaseNumber = "20240042"
			c.TypeCase = models.CaseTypeCorrective
			c.Status = models.StatusOpen
			err := s.store.InsertExisting(ctx, c)
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrAlreadyUsed) {
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one insert should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should conflict")
}
