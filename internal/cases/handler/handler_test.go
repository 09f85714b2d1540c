package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"casedesk/internal/cases/handler/mocks"
	"casedesk/internal/cases/models"
	"casedesk/internal/cases/search"
	dErrors "casedesk/pkg/domain-errors"
	"casedesk/pkg/platform/audit"
	"casedesk/pkg/requestcontext"
	"casedesk/pkg/testutil"
)

type CaseHandlerSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	mockService *mocks.MockService
	router      chi.Router
	now         time.Time
}

func TestCaseHandlerSuite(t *testing.T) {
	suite.Run(t, new(CaseHandlerSuite))
}

func (s *CaseHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockService = mocks.NewMockService(s.ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(s.mockService, logger).Register(s.router)
	s.now = time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)
}

func (s *CaseHandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *CaseHandlerSuite) principal() requestcontext.Principal {
	return requestcontext.Principal{Username: "jdoe", Name: "Jane Doe"}
}

func (s *CaseHandlerSuite) do(method, target string, body any) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(s.T(), method, target, body)
	req = testutil.WithRequestContext(req, s.principal(), "req-1", s.now)
	return testutil.DoRequest(s.router, req)
}

func (s *CaseHandlerSuite) sampleCase(number string) *models.Case {
	return &models.Case{
		CaseNumber:  number,
		TypeCase:    models.CaseTypePreventive,
		ServiceType: "Electrical",
		Dependency:  "Library",
		Status:      models.StatusOpen,
		ReportedAt:  s.now,
	}
}

func (s *CaseHandlerSuite) TestCreate() {
	s.Run("created", func() {
		s.mockService.EXPECT().CreateCase(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req *models.CreateCaseRequest) (*models.Case, error) {
				s.Equal("Electrical", req.ServiceType, "body is normalized before the service sees it")
				return s.sampleCase("20240001"), nil
			})

		rr := s.do(http.MethodPost, "/cases", map[string]any{
			"typeCase":    "Preventive",
			"serviceType": "  Electrical ",
			"dependency":  "Library",
		})
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		got := testutil.UnmarshalResponse[models.Case](s.T(), rr)
		s.Equal("20240001", got.CaseNumber)
	})

	s.Run("invalid body never reaches the service", func() {
		rr := s.do(http.MethodPost, "/cases", map[string]any{"typeCase": "Preventive"})
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("unknown field", func() {
		rr := s.do(http.MethodPost, "/cases", map[string]any{"caseNumber": "20240001"})
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("conflict", func() {
		s.mockService.EXPECT().CreateCase(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "case number already taken"))

		rr := s.do(http.MethodPost, "/cases", map[string]any{
			"typeCase": "Corrective", "serviceType": "Plumbing", "dependency": "Dorms",
		})
		s.Equal(http.StatusConflict, rr.Code)
	})
}

func (s *CaseHandlerSuite) TestGet() {
	s.mockService.EXPECT().GetCase(gomock.Any(), "20240002(1)", "Preventive").Return(s.sampleCase("20240002(1)"), nil)
	rr := s.do(http.MethodGet, "/cases/20240002(1)?type=Preventive", nil)
	s.Equal(http.StatusOK, rr.Code)

	s.mockService.EXPECT().GetCase(gomock.Any(), "20249999", "").
		Return(nil, dErrors.New(dErrors.CodeNotFound, "case not found"))
	rr = s.do(http.MethodGet, "/cases/20249999", nil)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	testutil.AssertJSONContains(s.T(), rr, "error_description", "case not found")
}

func (s *CaseHandlerSuite) TestSearchMapsQueryParameters() {
	s.mockService.EXPECT().SearchCases(gomock.Any(), models.SearchCriteria{
		TypeCase:         "Corrective",
		EquipmentName:    "pump",
		MinEffectiveness: "3",
		StartDate:        "2024-01-01",
		EndDate:          "2024-01-31",
		ReportedByID:     "jdoe",
		SortBy:           "caseNumber",
	}).Return(nil, nil)

	rr := s.do(http.MethodGet,
		"/cases?typeCase=Corrective&equipmentName=pump&minEffectiveness=3&startDate=2024-01-01&endDate=2024-01-31&reportedById=jdoe&sortBy=caseNumber", nil)
	s.Equal(http.StatusOK, rr.Code)
	s.JSONEq(`{"cases":[],"total":0}`, rr.Body.String())
}

func (s *CaseHandlerSuite) TestSearchInvalidRange() {
	s.mockService.EXPECT().SearchCases(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeInvalidRange, "endDate must be after startDate"))

	rr := s.do(http.MethodGet, "/cases?startDate=2024-02-01&endDate=2024-01-01", nil)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_range")
}

func (s *CaseHandlerSuite) TestUpdate() {
	s.mockService.EXPECT().UpdateCase(gomock.Any(), "20240001", "", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, req *models.UpdateCaseRequest) (*models.Case, error) {
			s.Require().NotNil(req.Status)
			s.Equal("Closed", *req.Status)
			s.Nil(req.Dependency)
			c := s.sampleCase("20240001")
			c.Status = models.StatusClosed
			return c, nil
		})

	rr := s.do(http.MethodPatch, "/cases/20240001", map[string]any{"status": "Closed"})
	s.Equal(http.StatusOK, rr.Code)

	s.Run("type change", func() {
		s.mockService.EXPECT().UpdateCase(gomock.Any(), "20240001", "", gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeValidation, "typeCase cannot be changed"))
		rr := s.do(http.MethodPatch, "/cases/20240001", map[string]any{"typeCase": "Corrective"})
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("type hint forwarded", func() {
		c := s.sampleCase("20240001")
		c.TypeCase = models.CaseTypeCorrective
		s.mockService.EXPECT().UpdateCase(gomock.Any(), "20240001", "Corrective", gomock.Any()).Return(c, nil)
		rr := s.do(http.MethodPatch, "/cases/20240001?type=Corrective", map[string]any{"observations": "fixed"})
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		got := testutil.UnmarshalResponse[models.Case](s.T(), rr)
		s.Equal(models.CaseTypeCorrective, got.TypeCase)
	})
}

func (s *CaseHandlerSuite) TestDelete() {
	entry := models.NewArchivedCase(s.sampleCase("20240002"), "jdoe", s.now, time.Hour)
	s.mockService.EXPECT().DeleteCase(gomock.Any(), "20240002", "Preventive").Return(entry, nil)

	rr := s.do(http.MethodDelete, "/cases/20240002?type=Preventive", nil)
	s.Equal(http.StatusNoContent, rr.Code)
	s.Empty(rr.Body.Bytes())
}

func (s *CaseHandlerSuite) TestArchivedRoutesAreNotCaseNumbers() {
	entry := models.NewArchivedCase(s.sampleCase("20240002"), "jdoe", s.now, time.Hour)
	s.mockService.EXPECT().ListArchived(gomock.Any(), "20240002").Return([]*models.ArchivedCase{entry}, nil)

	rr := s.do(http.MethodGet, "/cases/archived?number=20240002", nil)
	s.Equal(http.StatusOK, rr.Code)
	body := testutil.UnmarshalResponse[struct {
		Archived []models.ArchivedCase `json:"archived"`
		Total    int                   `json:"total"`
	}](s.T(), rr)
	s.Equal(1, body.Total)
	s.Equal(models.CaseTypePreventive, body.Archived[0].OriginalCollection)

	restored := s.sampleCase("20240002(1)")
	s.mockService.EXPECT().RestoreCase(gomock.Any(), "20240002").Return(restored, nil)
	rr = s.do(http.MethodPost, "/cases/archived/20240002/restore", nil)
	s.Equal(http.StatusOK, rr.Code)
	got := testutil.UnmarshalResponse[models.Case](s.T(), rr)
	s.Equal("20240002(1)", got.CaseNumber)
}

func (s *CaseHandlerSuite) TestReport() {
	s.mockService.EXPECT().ListForReport(gomock.Any(), "Preventive", search.WindowRequest{
		Interval: search.IntervalQuarterly, Year: 2024, Period: 2,
	}).Return([]*models.Case{s.sampleCase("20240001")}, nil)

	rr := s.do(http.MethodGet, "/cases/report?type=Preventive&interval=Quarterly&year=2024&period=2", nil)
	s.Equal(http.StatusOK, rr.Code)

	s.Run("non numeric year", func() {
		rr := s.do(http.MethodGet, "/cases/report?type=Preventive&interval=annual&year=last", nil)
		s.Equal(http.StatusBadRequest, rr.Code)
	})
}

func (s *CaseHandlerSuite) TestHistory() {
	s.mockService.EXPECT().ListHistory(gomock.Any(), "jdoe", "2024-03-01", "").
		Return([]audit.Event{{Actor: "jdoe", Action: audit.ActionCaseCreated, CaseNumber: "20240001"}}, nil)

	rr := s.do(http.MethodGet, "/history?username=jdoe&startDate=2024-03-01", nil)
	s.Equal(http.StatusOK, rr.Code)
	body := testutil.UnmarshalResponse[struct {
		Events []audit.Event `json:"events"`
		Total  int           `json:"total"`
	}](s.T(), rr)
	s.Equal(1, body.Total)
	s.Equal(audit.ActionCaseCreated, body.Events[0].Action)
}

func (s *CaseHandlerSuite) TestInternalErrorHidesDetail() {
	s.mockService.EXPECT().ListArchived(gomock.Any(), "").
		Return(nil, dErrors.New(dErrors.CodeInternal, "pq: relation archived_cases does not exist"))

	rr := s.do(http.MethodGet, "/cases/archived", nil)
	s.Equal(http.StatusInternalServerError, rr.Code)
	s.JSONEq(`{"error":"internal_error"}`, rr.Body.String())
}
