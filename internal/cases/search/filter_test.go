package search

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casedesk/internal/cases/models"
	dErrors "casedesk/pkg/domain-errors"
)

func ptr[T any](v T) *T { return &v }

func TestCompile(t *testing.T) {
	t.Run("trims and parses every field", func(t *testing.T) {
		got, err := Compile(models.SearchCriteria{
			CaseNumber:       " 20240001 ",
			ServiceType:      "Electrical",
			Status:           "inprogress",
			CaseType:         "corrective",
			ReportedByName:   "  ana ",
			EquipmentName:    "pump",
			MinEffectiveness: "3",
			StartDate:        "2024-01-10",
			EndDate:          "2024-01-20",
			SortBy:           "caseNumber",
		})
		require.NoError(t, err)

		want := models.Query{
			CaseNumber:       "20240001",
			ServiceType:      "Electrical",
			Status:           models.StatusInProgress,
			Type:             models.CaseTypeCorrective,
			ReportedByName:   "ana",
			EquipmentName:    "pump",
			MinEffectiveness: ptr(3),
			From:             ptr(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)),
			To:               ptr(time.Date(2024, 1, 20, 23, 59, 59, int(999*time.Millisecond), time.UTC)),
			SortBy:           models.SortByCaseNumber,
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("Compile mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty criteria match everything", func(t *testing.T) {
		got, err := Compile(models.SearchCriteria{})
		require.NoError(t, err)
		assert.Equal(t, models.Query{}, got)
	})

	t.Run("alias and typeCase must agree", func(t *testing.T) {
		_, err := Compile(models.SearchCriteria{TypeCase: "Preventive", CaseType: "Corrective"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		got, err := Compile(models.SearchCriteria{TypeCase: "Preventive", CaseType: "preventive"})
		require.NoError(t, err)
		assert.Equal(t, models.CaseTypePreventive, got.Type)
	})

	t.Run("rejects bad values", func(t *testing.T) {
		cases := map[string]models.SearchCriteria{
			"unknown type":          {TypeCase: "Emergency"},
			"unknown status":        {Status: "Pending"},
			"threshold too high":    {MinEffectiveness: "5"},
			"threshold negative":    {MinSatisfaction: "-1"},
			"threshold not integer": {MinSatisfaction: "2.5"},
			"malformed date":        {StartDate: "01/02/2024"},
			"unknown sort":          {SortBy: "priority"},
		}
		for name, c := range cases {
			_, err := Compile(c)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), name)
		}
	})
}

func TestDateRange(t *testing.T) {
	t.Run("end before start is an invalid range", func(t *testing.T) {
		_, _, err := DateRange("2024-02-01", "2024-01-01")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidRange))
	})

	t.Run("same day is valid", func(t *testing.T) {
		from, to, err := DateRange("2024-02-01", "2024-02-01")
		require.NoError(t, err)
		assert.Equal(t, 24*time.Hour-time.Millisecond, to.Sub(*from))
	})

	t.Run("only start covers that day", func(t *testing.T) {
		from, to, err := DateRange("2024-03-05", "")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), *from)
		assert.Equal(t, time.Date(2024, 3, 5, 23, 59, 59, int(999*time.Millisecond), time.UTC), *to)
	})

	t.Run("only end leaves start open", func(t *testing.T) {
		from, to, err := DateRange("", "2024-03-05")
		require.NoError(t, err)
		assert.Nil(t, from)
		assert.Equal(t, time.Date(2024, 3, 5, 23, 59, 59, int(999*time.Millisecond), time.UTC), *to)
	})

	t.Run("rfc3339 is converted to utc before truncation", func(t *testing.T) {
		from, _, err := DateRange("2024-03-05T22:00:00-05:00", "")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), *from)
	})

	t.Run("neither bound", func(t *testing.T) {
		from, to, err := DateRange("", "")
		require.NoError(t, err)
		assert.Nil(t, from)
		assert.Nil(t, to)
	})
}
