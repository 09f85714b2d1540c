package search

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "casedesk/pkg/domain-errors"
)

func TestWindow(t *testing.T) {
	bogota, err := time.LoadLocation("America/Bogota")
	require.NoError(t, err)
	now := time.Date(2025, 7, 15, 12, 0, 0, 0, bogota)
	last := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), bogota)
	}
	first := func(y int, m time.Month) time.Time {
		return time.Date(y, m, 1, 0, 0, 0, 0, bogota)
	}

	tests := []struct {
		name string
		req  WindowRequest
		want Range
	}{
		{"annual defaults to current year", WindowRequest{Interval: IntervalAnnual},
			Range{first(2025, time.January), last(2025, time.December, 31)}},
		{"second semester", WindowRequest{Interval: IntervalSemiannual, Year: 2024, Period: 2},
			Range{first(2024, time.July), last(2024, time.December, 31)}},
		{"first quarter", WindowRequest{Interval: IntervalQuarterly, Year: 2024, Period: 1},
			Range{first(2024, time.January), last(2024, time.March, 31)}},
		{"leap february", WindowRequest{Interval: IntervalMonthly, Year: 2024, Period: 2},
			Range{first(2024, time.February), last(2024, time.February, 29)}},
		{"custom", WindowRequest{Interval: IntervalCustom, StartDate: "2024-03-10", EndDate: "2024-03-12"},
			Range{time.Date(2024, 3, 10, 0, 0, 0, 0, bogota), last(2024, time.March, 12)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Window(tt.req, now, bogota)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Window mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWindowRejects(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	invalid := map[string]WindowRequest{
		"unknown interval":     {Interval: "weekly"},
		"semester period":      {Interval: IntervalSemiannual, Period: 3},
		"quarter period":       {Interval: IntervalQuarterly},
		"month period":         {Interval: IntervalMonthly, Period: 13},
		"custom missing end":   {Interval: IntervalCustom, StartDate: "2024-01-01"},
		"custom malformed day": {Interval: IntervalCustom, StartDate: "2024-01-01", EndDate: "soon"},
	}
	for name, req := range invalid {
		_, err := Window(req, now, time.UTC)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), name)
	}

	_, err := Window(WindowRequest{Interval: IntervalCustom, StartDate: "2024-02-01", EndDate: "2024-01-01"}, now, time.UTC)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidRange))
}
