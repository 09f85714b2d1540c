// Package search compiles raw search criteria into a validated models.Query
// and executes it across the case collections.
package search

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"casedesk/internal/cases/models"
	dErrors "casedesk/pkg/domain-errors"
)

const dayLayout = "2006-01-02"

// endOfDay is the inclusive upper bound of a calendar day, at millisecond precision.
const endOfDay = 24*time.Hour - time.Millisecond

// Compile validates criteria and turns it into a Query.
func Compile(c models.SearchCriteria) (models.Query, error) {
	q := models.Query{
		CaseNumber:     strings.TrimSpace(c.CaseNumber),
		ServiceType:    strings.TrimSpace(c.ServiceType),
		Dependency:     strings.TrimSpace(c.Dependency),
		Priority:       strings.TrimSpace(c.Priority),
		ReportedByName: strings.TrimSpace(c.ReportedByName),
		TechnicianName: strings.TrimSpace(c.TechnicianName),
		EquipmentName:  strings.TrimSpace(c.EquipmentName),
		ReportedByID:   strings.TrimSpace(c.ReportedByID),
		TechnicianID:   strings.TrimSpace(c.TechnicianID),
	}

	t, err := compileType(c.TypeCase, c.CaseType)
	if err != nil {
		return models.Query{}, err
	}
	q.Type = t

	if strings.TrimSpace(c.Status) != "" {
		st, err := models.ParseStatus(c.Status)
		if err != nil {
			return models.Query{}, err
		}
		q.Status = st
	}

	if q.MinEffectiveness, err = threshold("minEffectiveness", c.MinEffectiveness); err != nil {
		return models.Query{}, err
	}
	if q.MinSatisfaction, err = threshold("minSatisfaction", c.MinSatisfaction); err != nil {
		return models.Query{}, err
	}

	if q.From, q.To, err = DateRange(c.StartDate, c.EndDate); err != nil {
		return models.Query{}, err
	}

	switch strings.TrimSpace(c.SortBy) {
	case "":
	case string(models.SortByReportedAt):
		q.SortBy = models.SortByReportedAt
	case string(models.SortByCaseNumber):
		q.SortBy = models.SortByCaseNumber
	default:
		return models.Query{}, dErrors.New(dErrors.CodeValidation, "sortBy must be reportedAt or caseNumber")
	}
	return q, nil
}

// compileType resolves typeCase and its caseType alias. Both may be given only
// when they agree.
func compileType(typeCase, alias string) (models.CaseType, error) {
	var out models.CaseType
	for _, raw := range []string{typeCase, alias} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		t, err := models.ParseCaseType(raw)
		if err != nil {
			return "", err
		}
		if out != "" && out != t {
			return "", dErrors.New(dErrors.CodeValidation, "typeCase and caseType disagree")
		}
		out = t
	}
	return out, nil
}

func threshold(field, raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < models.MinRatingValue || v > models.MaxRatingValue {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("%s must be an integer between %d and %d", field, models.MinRatingValue, models.MaxRatingValue))
	}
	return &v, nil
}

// DateRange normalises a startDate/endDate pair to inclusive UTC day bounds.
// A lone start covers that calendar day; a lone end leaves the start open.
// An end at or before the start yields CodeInvalidRange.
func DateRange(start, end string) (from, to *time.Time, err error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start != "" {
		d, err := parseDay("startDate", start)
		if err != nil {
			return nil, nil, err
		}
		from = &d
	}
	if end != "" {
		d, err := parseDay("endDate", end)
		if err != nil {
			return nil, nil, err
		}
		e := d.Add(endOfDay)
		to = &e
	}

	switch {
	case from != nil && to == nil:
		e := from.Add(endOfDay)
		to = &e
	case from != nil && to != nil && !to.After(*from):
		return nil, nil, dErrors.New(dErrors.CodeInvalidRange, "endDate must be after startDate")
	}
	return from, to, nil
}

// parseDay accepts YYYY-MM-DD or RFC 3339 and returns UTC midnight of that day.
func parseDay(field, raw string) (time.Time, error) {
	t, err := time.Parse(dayLayout, raw)
	if err != nil {
		t, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("%s must be YYYY-MM-DD or RFC 3339", field))
		}
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
