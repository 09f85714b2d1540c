package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "casedesk/pkg/domain-errors"
)

type CreateCaseRequestSuite struct {
	suite.Suite
}

func TestCreateCaseRequestSuite(t *testing.T) {
	suite.Run(t, new(CreateCaseRequestSuite))
}

func (s *CreateCaseRequestSuite) validRequest() *CreateCaseRequest {
	return &CreateCaseRequest{
		TypeCase:    "Corrective",
		ServiceType: "Electrical",
		Dependency:  "Radiology",
		ServiceData: ServiceData{Kind: ServiceDataEquipment, Name: "X-Ray 3000"},
	}
}

func (s *CreateCaseRequestSuite) TestValidate() {
	s.Run("valid request passes", func() {
		req := s.validRequest()
		req.Normalize()
		s.NoError(req.Validate())
	})

	s.Run("nil request", func() {
		var req *CreateCaseRequest
		s.True(dErrors.HasCode(req.Validate(), dErrors.CodeBadRequest))
	})

	s.Run("missing service type", func() {
		req := s.validRequest()
		req.ServiceType = "   "
		req.Normalize()
		err := req.Validate()
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "serviceType")
	})

	s.Run("missing dependency", func() {
		req := s.validRequest()
		req.Dependency = ""
		err := req.Validate()
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "dependency")
	})

	s.Run("missing type", func() {
		req := s.validRequest()
		req.TypeCase = ""
		s.True(dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
	})

	s.Run("unknown type", func() {
		req := s.validRequest()
		req.TypeCase = "Predictive"
		s.True(dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
	})

	s.Run("rating out of range", func() {
		req := s.validRequest()
		req.EffectivenessRating = &Rating{Value: 5}
		err := req.Validate()
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "effectivenessRating.value")
	})

	s.Run("unknown service data kind", func() {
		req := s.validRequest()
		req.ServiceData.Kind = "spreadsheet"
		s.True(dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
	})

	s.Run("too many extensions", func() {
		req := s.validRequest()
		req.ServiceData.Extensions = map[string]string{}
		for i := 0; i < 33; i++ {
			req.ServiceData.Extensions[string(rune('a'+i%26))+string(rune('A'+i/26))] = "v"
		}
		s.True(dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
	})

	s.Run("unknown status", func() {
		req := s.validRequest()
		req.Status = "Paused"
		s.True(dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
	})
}

func (s *CreateCaseRequestSuite) TestNormalize() {
	s.Run("trims fields and defaults kind", func() {
		req := &CreateCaseRequest{TypeCase: " preventive ", ServiceType: " HVAC ", ServiceData: ServiceData{Name: " Chiller "}}
		req.Normalize()
		s.Equal("preventive", req.TypeCase)
		s.Equal("HVAC", req.ServiceType)
		s.Equal(ServiceDataGeneric, req.ServiceData.Kind)
		s.Equal("Chiller", req.ServiceData.Name)
	})

	s.Run("nil request does not panic", func() {
		var req *CreateCaseRequest
		s.NotPanics(func() { req.Normalize() })
	})
}

func (s *CreateCaseRequestSuite) TestToCase() {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	reporter := UserRef{ID: "u-1", Name: "Ana Ruiz", Position: "Nurse"}

	s.Run("defaults reporter and status", func() {
		req := s.validRequest()
		c, err := req.ToCase(reporter, now)
		s.Require().NoError(err)
		s.Equal(CaseTypeCorrective, c.TypeCase)
		s.Equal(StatusOpen, c.Status)
		s.Equal(reporter, c.ReportedBy)
		s.Equal(now, c.ReportedAt)
		s.Empty(c.CaseNumber)
		s.False(c.Rated)
	})

	s.Run("explicit reporter wins", func() {
		req := s.validRequest()
		req.ReportedBy = &UserRef{ID: "u-2", Name: "Luis"}
		req.SatisfactionRating = &Rating{Value: 3}
		c, err := req.ToCase(reporter, now)
		s.Require().NoError(err)
		s.Equal("u-2", c.ReportedBy.ID)
		s.True(c.Rated)
	})
}

type UpdateCaseRequestSuite struct {
	suite.Suite
	now  time.Time
	base *Case
}

func TestUpdateCaseRequestSuite(t *testing.T) {
	suite.Run(t, new(UpdateCaseRequestSuite))
}

func (s *UpdateCaseRequestSuite) SetupTest() {
	s.now = time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)
	s.base = &Case{
		CaseNumber:  "20240001",
		TypeCase:    CaseTypePreventive,
		ServiceType: "HVAC",
		Dependency:  "ICU",
		Status:      StatusOpen,
		ReportedAt:  s.now.Add(-24 * time.Hour),
		CreatedAt:   s.now.Add(-24 * time.Hour),
	}
}

func strPtr(s string) *string { return &s }

func (s *UpdateCaseRequestSuite) TestApplyTo() {
	s.Run("type change rejected and record unchanged", func() {
		c := s.base.Clone()
		req := &UpdateCaseRequest{TypeCase: strPtr("Corrective"), Observations: strPtr("changed")}
		err := req.ApplyTo(c, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal(s.base, c)
	})

	s.Run("same type accepted", func() {
		c := s.base.Clone()
		req := &UpdateCaseRequest{TypeCase: strPtr("preventive"), Status: strPtr("Closed")}
		s.Require().NoError(req.ApplyTo(c, s.now))
		s.Equal(StatusClosed, c.Status)
		s.Equal(s.now, c.UpdatedAt)
		s.Equal(s.base.ReportedAt, c.ReportedAt)
		s.Equal("20240001", c.CaseNumber)
	})

	s.Run("rating merge sets rated", func() {
		c := s.base.Clone()
		req := &UpdateCaseRequest{EffectivenessRating: &Rating{Value: 4}}
		s.Require().NoError(req.ApplyTo(c, s.now))
		s.Equal(4, c.EffectivenessRating.Value)
		s.True(c.Rated)
	})

	s.Run("invalid rating leaves record unchanged", func() {
		c := s.base.Clone()
		req := &UpdateCaseRequest{SatisfactionRating: &Rating{Value: 9}, Observations: strPtr("x")}
		err := req.ApplyTo(c, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal(s.base, c)
	})
}

func (s *UpdateCaseRequestSuite) TestValidate() {
	s.Run("empty status rejected", func() {
		req := &UpdateCaseRequest{Status: strPtr("")}
		s.True(dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
	})

	s.Run("empty service type rejected", func() {
		req := &UpdateCaseRequest{ServiceType: strPtr("")}
		s.True(dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
	})

	s.Run("empty patch is valid", func() {
		s.NoError((&UpdateCaseRequest{}).Validate())
	})
}
