package handler

import (
	"casedesk/internal/cases/models"
	"casedesk/pkg/platform/audit"
)

type caseList struct {
	Cases []*models.Case `json:"cases"`
	Total int            `json:"total"`
}

func newCaseList(cases []*models.Case) caseList {
	if cases == nil {
		cases = []*models.Case{}
	}
	return caseList{Cases: cases, Total: len(cases)}
}

type archivedList struct {
	Archived []*models.ArchivedCase `json:"archived"`
	Total    int                    `json:"total"`
}

func newArchivedList(entries []*models.ArchivedCase) archivedList {
	if entries == nil {
		entries = []*models.ArchivedCase{}
	}
	return archivedList{Archived: entries, Total: len(entries)}
}

type historyList struct {
	Events []audit.Event `json:"events"`
	Total  int           `json:"total"`
}

func newHistoryList(events []audit.Event) historyList {
	if events == nil {
		events = []audit.Event{}
	}
	return historyList{Events: events, Total: len(events)}
}
