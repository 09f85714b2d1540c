package search

import (
	"fmt"
	"strings"
	"time"

	dErrors "casedesk/pkg/domain-errors"
)

// Interval names a reporting period.
type Interval string

const (
	IntervalAnnual     Interval = "annual"
	IntervalSemiannual Interval = "semiannual"
	IntervalQuarterly  Interval = "quarterly"
	IntervalMonthly    Interval = "monthly"
	IntervalCustom     Interval = "custom"
)

// WindowRequest selects a report window. Year 0 means the current year.
// Period is the half (1-2), quarter (1-4) or month (1-12) of the year.
type WindowRequest struct {
	Interval  Interval
	Year      int
	Period    int
	StartDate string
	EndDate   string
}

// Range is an inclusive time window.
type Range struct {
	From time.Time
	To   time.Time
}

// Window resolves req to calendar bounds in loc. now supplies the default year.
func Window(req WindowRequest, now time.Time, loc *time.Location) (Range, error) {
	if loc == nil {
		loc = time.UTC
	}
	year := req.Year
	if year == 0 {
		year = now.In(loc).Year()
	}
	if year < 1 || year > 9999 {
		return Range{}, dErrors.New(dErrors.CodeValidation, "year must be between 1 and 9999")
	}

	switch Interval(strings.ToLower(string(req.Interval))) {
	case IntervalAnnual:
		return months(year, 1, 12, loc), nil
	case IntervalSemiannual:
		if req.Period < 1 || req.Period > 2 {
			return Range{}, periodError(IntervalSemiannual, 2)
		}
		first := (req.Period-1)*6 + 1
		return months(year, first, first+5, loc), nil
	case IntervalQuarterly:
		if req.Period < 1 || req.Period > 4 {
			return Range{}, periodError(IntervalQuarterly, 4)
		}
		first := (req.Period-1)*3 + 1
		return months(year, first, first+2, loc), nil
	case IntervalMonthly:
		if req.Period < 1 || req.Period > 12 {
			return Range{}, periodError(IntervalMonthly, 12)
		}
		return months(year, req.Period, req.Period, loc), nil
	case IntervalCustom:
		return custom(req.StartDate, req.EndDate, loc)
	default:
		return Range{}, dErrors.New(dErrors.CodeValidation,
			"interval must be one of annual, semiannual, quarterly, monthly, custom")
	}
}

// months spans the first day of month first through the last instant of month last.
func months(year, first, last int, loc *time.Location) Range {
	from := time.Date(year, time.Month(first), 1, 0, 0, 0, 0, loc)
	to := time.Date(year, time.Month(last)+1, 1, 0, 0, 0, 0, loc).Add(-time.Millisecond)
	return Range{From: from, To: to}
}

func custom(start, end string, loc *time.Location) (Range, error) {
	if strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
		return Range{}, dErrors.New(dErrors.CodeValidation, "custom interval requires startDate and endDate")
	}
	from, err := time.ParseInLocation(dayLayout, strings.TrimSpace(start), loc)
	if err != nil {
		return Range{}, dErrors.New(dErrors.CodeValidation, "startDate must be YYYY-MM-DD")
	}
	endDay, err := time.ParseInLocation(dayLayout, strings.TrimSpace(end), loc)
	if err != nil {
		return Range{}, dErrors.New(dErrors.CodeValidation, "endDate must be YYYY-MM-DD")
	}
	to := endDay.AddDate(0, 0, 1).Add(-time.Millisecond)
	if !to.After(from) {
		return Range{}, dErrors.New(dErrors.CodeInvalidRange, "endDate must be after startDate")
	}
	return Range{From: from, To: to}, nil
}

func periodError(i Interval, max int) error {
	return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s interval requires period between 1 and %d", i, max))
}
