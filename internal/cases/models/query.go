package models

import (
	"slices"
	"strings"
	"time"
)

// SearchCriteria is the raw, uncompiled search input as received from the API.
// Every field is optional; the search package compiles it into a Query.
type SearchCriteria struct {
	CaseNumber       string
	ServiceType      string
	Dependency       string
	Status           string
	TypeCase         string
	CaseType         string
	Priority         string
	ReportedByName   string
	TechnicianName   string
	EquipmentName    string
	ReportedByID     string
	TechnicianID     string
	MinEffectiveness string
	MinSatisfaction  string
	StartDate        string
	EndDate          string
	SortBy           string
}

// SortField orders search results.
type SortField string

const (
	SortByReportedAt SortField = "reportedAt"
	SortByCaseNumber SortField = "caseNumber"
)

// Query is a compiled, validated filter. Zero-valued fields do not constrain.
// Name fields hold lower-cased needles for substring matching.
type Query struct {
	CaseNumber       string
	ServiceType      string
	Dependency       string
	Priority         string
	Status           Status
	Type             CaseType
	ReportedByName   string
	TechnicianName   string
	EquipmentName    string
	ReportedByID     string
	TechnicianID     string
	MinEffectiveness *int
	MinSatisfaction  *int
	From             *time.Time
	To               *time.Time
	SortBy           SortField
}

// ForType returns a copy of q restricted to t.
func (q Query) ForType(t CaseType) Query {
	q.Type = t
	return q
}

// Matches evaluates q against c in memory. Date bounds are inclusive.
func (q Query) Matches(c *Case) bool {
	if q.CaseNumber != "" && c.CaseNumber != q.CaseNumber {
		return false
	}
	if q.ServiceType != "" && c.ServiceType != q.ServiceType {
		return false
	}
	if q.Dependency != "" && c.Dependency != q.Dependency {
		return false
	}
	if q.Priority != "" && c.Priority != q.Priority {
		return false
	}
	if q.Status != "" && c.Status != q.Status {
		return false
	}
	if q.Type != "" && c.TypeCase != q.Type {
		return false
	}
	if q.ReportedByID != "" && c.ReportedBy.ID != q.ReportedByID {
		return false
	}
	if q.ReportedByName != "" && !containsFold(c.ReportedBy.Name, q.ReportedByName) {
		return false
	}
	if q.TechnicianID != "" && (c.AssignedTechnician == nil || c.AssignedTechnician.ID != q.TechnicianID) {
		return false
	}
	if q.TechnicianName != "" && (c.AssignedTechnician == nil || !containsFold(c.AssignedTechnician.Name, q.TechnicianName)) {
		return false
	}
	if q.EquipmentName != "" && !slices.ContainsFunc(c.ServiceData.EquipmentNames(), func(name string) bool {
		return containsFold(name, q.EquipmentName)
	}) {
		return false
	}
	if q.MinEffectiveness != nil && (c.EffectivenessRating == nil || c.EffectivenessRating.Value < *q.MinEffectiveness) {
		return false
	}
	if q.MinSatisfaction != nil && (c.SatisfactionRating == nil || c.SatisfactionRating.Value < *q.MinSatisfaction) {
		return false
	}
	if q.From != nil && c.ReportedAt.Before(*q.From) {
		return false
	}
	if q.To != nil && c.ReportedAt.After(*q.To) {
		return false
	}
	return true
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
