package models

import (
	"strings"
	"time"

	dErrors "casedesk/pkg/domain-errors"
)

// CaseType selects the collection a case lives in. It never changes after creation.
type CaseType string

const (
	CaseTypePreventive CaseType = "Preventive"
	CaseTypeCorrective CaseType = "Corrective"
)

// CaseTypes lists every type in lookup order: a number without a type hint is
// probed against Preventive first, then Corrective.
func CaseTypes() []CaseType {
	return []CaseType{CaseTypePreventive, CaseTypeCorrective}
}

func (t CaseType) IsValid() bool {
	return t == CaseTypePreventive || t == CaseTypeCorrective
}

func (t CaseType) String() string {
	return string(t)
}

// Collection names the backing table/collection for the type.
func (t CaseType) Collection() string {
	return strings.ToLower(string(t)) + "_cases"
}

// ParseCaseType accepts either type name, case-insensitively.
func ParseCaseType(s string) (CaseType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "preventive":
		return CaseTypePreventive, nil
	case "corrective":
		return CaseTypeCorrective, nil
	case "":
		return "", dErrors.New(dErrors.CodeValidation, "typeCase is required")
	default:
		return "", dErrors.New(dErrors.CodeValidation, "typeCase must be Preventive or Corrective")
	}
}

// Status is the workflow state of a case.
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "InProgress"
	StatusClosed     Status = "Closed"
	StatusEscalated  Status = "Escalated"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusClosed, StatusEscalated:
		return true
	}
	return false
}

// ParseStatus matches a status name case-insensitively. Empty input yields StatusOpen.
func ParseStatus(s string) (Status, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return StatusOpen, nil
	}
	for _, st := range []Status{StatusOpen, StatusInProgress, StatusClosed, StatusEscalated} {
		if strings.EqualFold(trimmed, string(st)) {
			return st, nil
		}
	}
	return "", dErrors.New(dErrors.CodeValidation, "status must be one of Open, InProgress, Closed, Escalated")
}

// UserRef is a snapshot of a person at the time it was recorded on the case.
type UserRef struct {
	ID         string `json:"id" validate:"required,max=64"`
	Name       string `json:"name" validate:"required,max=128"`
	Position   string `json:"position" validate:"max=128"`
	Department string `json:"department,omitempty" validate:"max=128"`
	Signature  string `json:"signature,omitempty" validate:"max=65536"`
}

const (
	MinRatingValue = 0
	MaxRatingValue = 4
)

// Rating is an optional 0..4 score.
type Rating struct {
	Value int `json:"value" validate:"min=0,max=4"`
}

func (r *Rating) valid() bool {
	return r == nil || (r.Value >= MinRatingValue && r.Value <= MaxRatingValue)
}

// Case is a maintenance service ticket.
//
// Invariants:
//   - CaseNumber is unique within the collection of its TypeCase
//   - TypeCase never changes after creation
//   - ServiceType and Dependency are non-empty
//   - Ratings, when present, are within 0..4
type Case struct {
	CaseNumber          string      `json:"caseNumber"`
	TypeCase            CaseType    `json:"typeCase"`
	ServiceType         string      `json:"serviceType"`
	Dependency          string      `json:"dependency"`
	Priority            string      `json:"priority,omitempty"`
	Status              Status      `json:"status"`
	ReportedAt          time.Time   `json:"reportedAt"`
	ReportedBy          UserRef     `json:"reportedBy"`
	AssignedTechnician  *UserRef    `json:"assignedTechnician,omitempty"`
	EffectivenessRating *Rating     `json:"effectivenessRating,omitempty"`
	SatisfactionRating  *Rating     `json:"satisfactionRating,omitempty"`
	ToRating            bool        `json:"toRating"`
	Rated               bool        `json:"rated"`
	ServiceData         ServiceData `json:"serviceData"`
	Observations        string      `json:"observations,omitempty"`
	CreatedAt           time.Time   `json:"createdAt"`
	UpdatedAt           time.Time   `json:"updatedAt"`
}

// Validate checks the record-level invariants. The case number is not checked
// here because it is assigned by the allocator after validation.
func (c *Case) Validate() error {
	if !c.TypeCase.IsValid() {
		if c.TypeCase == "" {
			return dErrors.New(dErrors.CodeValidation, "typeCase is required")
		}
		return dErrors.New(dErrors.CodeValidation, "typeCase must be Preventive or Corrective")
	}
	if strings.TrimSpace(c.ServiceType) == "" {
		return dErrors.New(dErrors.CodeValidation, "serviceType is required")
	}
	if strings.TrimSpace(c.Dependency) == "" {
		return dErrors.New(dErrors.CodeValidation, "dependency is required")
	}
	if !c.Status.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "status must be one of Open, InProgress, Closed, Escalated")
	}
	if !c.EffectivenessRating.valid() {
		return dErrors.New(dErrors.CodeValidation, "effectivenessRating must be between 0 and 4")
	}
	if !c.SatisfactionRating.valid() {
		return dErrors.New(dErrors.CodeValidation, "satisfactionRating must be between 0 and 4")
	}
	return nil
}

// RefreshRated keeps Rated in step with the rating fields.
func (c *Case) RefreshRated() {
	c.Rated = c.EffectivenessRating != nil || c.SatisfactionRating != nil
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (c *Case) Clone() *Case {
	if c == nil {
		return nil
	}
	out := *c
	if c.AssignedTechnician != nil {
		tech := *c.AssignedTechnician
		out.AssignedTechnician = &tech
	}
	if c.EffectivenessRating != nil {
		r := *c.EffectivenessRating
		out.EffectivenessRating = &r
	}
	if c.SatisfactionRating != nil {
		r := *c.SatisfactionRating
		out.SatisfactionRating = &r
	}
	out.ServiceData = c.ServiceData.Clone()
	return &out
}
