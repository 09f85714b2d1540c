package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	dErrors "casedesk/pkg/domain-errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError converts validator output into a single coded error naming
// the first offending field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid request")
	}
	fe := verrs[0]
	_, field, found := strings.Cut(fe.Namespace(), ".")
	if !found {
		field = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s is required", field))
	case "max":
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
	case "min":
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
	case "oneof":
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
	default:
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s is invalid", field))
	}
}

// CreateCaseRequest is the body of POST /cases.
type CreateCaseRequest struct {
	TypeCase            string      `json:"typeCase" validate:"required"`
	ServiceType         string      `json:"serviceType" validate:"required,max=128"`
	Dependency          string      `json:"dependency" validate:"required,max=128"`
	Priority            string      `json:"priority,omitempty" validate:"max=64"`
	Status              string      `json:"status,omitempty"`
	ReportedBy          *UserRef    `json:"reportedBy,omitempty"`
	AssignedTechnician  *UserRef    `json:"assignedTechnician,omitempty"`
	EffectivenessRating *Rating     `json:"effectivenessRating,omitempty"`
	SatisfactionRating  *Rating     `json:"satisfactionRating,omitempty"`
	ToRating            bool        `json:"toRating"`
	ServiceData         ServiceData `json:"serviceData"`
	Observations        string      `json:"observations,omitempty" validate:"max=4096"`
}

// Normalize trims free-form fields.
func (r *CreateCaseRequest) Normalize() {
	if r == nil {
		return
	}
	r.TypeCase = strings.TrimSpace(r.TypeCase)
	r.ServiceType = strings.TrimSpace(r.ServiceType)
	r.Dependency = strings.TrimSpace(r.Dependency)
	r.Priority = strings.TrimSpace(r.Priority)
	r.Status = strings.TrimSpace(r.Status)
	r.Observations = strings.TrimSpace(r.Observations)
	r.ServiceData.Normalize()
}

// Validate checks the request shape. Call Normalize first.
func (r *CreateCaseRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	if _, err := ParseCaseType(r.TypeCase); err != nil {
		return err
	}
	if _, err := ParseStatus(r.Status); err != nil {
		return err
	}
	return nil
}

// ToCase builds the unnumbered case. reporter is used when the request names
// no reporter.
func (r *CreateCaseRequest) ToCase(reporter UserRef, now time.Time) (*Case, error) {
	caseType, err := ParseCaseType(r.TypeCase)
	if err != nil {
		return nil, err
	}
	status, err := ParseStatus(r.Status)
	if err != nil {
		return nil, err
	}
	reportedBy := reporter
	if r.ReportedBy != nil {
		reportedBy = *r.ReportedBy
	}
	c := &Case{
		TypeCase:            caseType,
		ServiceType:         r.ServiceType,
		Dependency:          r.Dependency,
		Priority:            r.Priority,
		Status:              status,
		ReportedAt:          now,
		ReportedBy:          reportedBy,
		AssignedTechnician:  r.AssignedTechnician,
		EffectivenessRating: r.EffectivenessRating,
		SatisfactionRating:  r.SatisfactionRating,
		ToRating:            r.ToRating,
		ServiceData:         r.ServiceData.Clone(),
		Observations:        r.Observations,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	c.RefreshRated()
	return c, nil
}

// UpdateCaseRequest is a partial update. Nil fields are left untouched.
// caseNumber, reportedAt and createdAt are not patchable.
type UpdateCaseRequest struct {
	TypeCase            *string      `json:"typeCase,omitempty"`
	ServiceType         *string      `json:"serviceType,omitempty" validate:"omitempty,min=1,max=128"`
	Dependency          *string      `json:"dependency,omitempty" validate:"omitempty,min=1,max=128"`
	Priority            *string      `json:"priority,omitempty" validate:"omitempty,max=64"`
	Status              *string      `json:"status,omitempty"`
	AssignedTechnician  *UserRef     `json:"assignedTechnician,omitempty"`
	EffectivenessRating *Rating      `json:"effectivenessRating,omitempty"`
	SatisfactionRating  *Rating      `json:"satisfactionRating,omitempty"`
	ToRating            *bool        `json:"toRating,omitempty"`
	ServiceData         *ServiceData `json:"serviceData,omitempty"`
	Observations        *string      `json:"observations,omitempty" validate:"omitempty,max=4096"`
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

// Normalize trims free-form fields.
func (r *UpdateCaseRequest) Normalize() {
	if r == nil {
		return
	}
	trimPtr(r.TypeCase)
	trimPtr(r.ServiceType)
	trimPtr(r.Dependency)
	trimPtr(r.Priority)
	trimPtr(r.Status)
	trimPtr(r.Observations)
	if r.ServiceData != nil {
		r.ServiceData.Normalize()
	}
}

// Validate checks the patch shape. Whether typeCase matches the stored case
// is decided by ApplyTo.
func (r *UpdateCaseRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	if r.TypeCase != nil {
		if _, err := ParseCaseType(*r.TypeCase); err != nil {
			return err
		}
	}
	if r.Status != nil {
		if *r.Status == "" {
			return dErrors.New(dErrors.CodeValidation, "status cannot be empty")
		}
		if _, err := ParseStatus(*r.Status); err != nil {
			return err
		}
	}
	return nil
}

// ApplyTo merges the patch into c. c is left unchanged when an error is returned.
func (r *UpdateCaseRequest) ApplyTo(c *Case, now time.Time) error {
	if r.TypeCase != nil {
		t, err := ParseCaseType(*r.TypeCase)
		if err != nil {
			return err
		}
		if t != c.TypeCase {
			return dErrors.New(dErrors.CodeValidation, "typeCase cannot be changed")
		}
	}

	next := c.Clone()
	if r.ServiceType != nil {
		next.ServiceType = *r.ServiceType
	}
	if r.Dependency != nil {
		next.Dependency = *r.Dependency
	}
	if r.Priority != nil {
		next.Priority = *r.Priority
	}
	if r.Status != nil {
		st, err := ParseStatus(*r.Status)
		if err != nil {
			return err
		}
		next.Status = st
	}
	if r.AssignedTechnician != nil {
		tech := *r.AssignedTechnician
		next.AssignedTechnician = &tech
	}
	if r.EffectivenessRating != nil {
		rating := *r.EffectivenessRating
		next.EffectivenessRating = &rating
	}
	if r.SatisfactionRating != nil {
		rating := *r.SatisfactionRating
		next.SatisfactionRating = &rating
	}
	if r.ToRating != nil {
		next.ToRating = *r.ToRating
	}
	if r.ServiceData != nil {
		next.ServiceData = r.ServiceData.Clone()
	}
	if r.Observations != nil {
		next.Observations = *r.Observations
	}
	next.RefreshRated()
	if err := next.Validate(); err != nil {
		return err
	}
	next.UpdatedAt = now
	*c = *next
	return nil
}
