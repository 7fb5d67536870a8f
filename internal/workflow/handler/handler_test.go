package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"disposisi/internal/workflow/handler/mocks"
	"disposisi/internal/workflow/models"
	"disposisi/pkg/domain"
	dErrors "disposisi/pkg/domain-errors"
	"disposisi/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/workflow-mocks.go -package=mocks Service

var (
	tuActor    = domain.Actor{ID: "tu1", Username: "admin", Name: "Administrator TU", Role: domain.RoleTU}
	coordActor = domain.Actor{ID: "coord1", Username: "suwati", Name: "Suwati, S.h", Role: domain.RoleCoordinator}
)

type WorkflowHandlerSuite struct {
	suite.Suite
	ctx    context.Context
	svc    *mocks.MockService
	router chi.Router
}

func TestWorkflowHandlerSuite(t *testing.T) {
	suite.Run(t, new(WorkflowHandlerSuite))
}

func (s *WorkflowHandlerSuite) SetupTest() {
	s.ctx = context.Background()
	ctrl := gomock.NewController(s.T())
	s.svc = mocks.NewMockService(ctrl)
	s.router = s.newRouter(true)
}

func (s *WorkflowHandlerSuite) newRouter(redact bool) chi.Router {
	h := New(s.svc, slog.New(slog.NewTextHandler(io.Discard, nil)), redact)
	r := chi.NewRouter()
	h.RegisterTU(r)
	h.Register(r)
	h.RegisterPublic(r)
	return r
}

func sampleRecord() *models.Record {
	rec := models.NewRecord(domain.NewRecordID(), models.Fields{
		LetterNumber: "SPT/001/2024", Subject: "Rapat Koordinasi Bulanan", Origin: "Kepala Dinas", Sender: "Kepala Dinas",
		Confidentiality: []string{"Penting"}, Urgency: []string{"Segera"},
	}, &models.Attachment{Name: "surat.pdf", Locator: "sha256:" + strings.Repeat("a", 64)},
		"Administrator TU", time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC))
	notes := "Koordinasi agenda rapat"
	rec.ApplyTransition(models.StatusSentToCoordinator, "Forwarded to coordinators: Suwati, S.h", "Administrator TU",
		time.Date(2024, 1, 15, 9, 15, 0, 0, time.UTC), models.Effects{AssignedCoordinators: []string{"Suwati, S.h"}})
	rec.ApplyTransition(models.StatusAssignedToStaff, "Assigned to staff: Ahmad Fauzi", "Suwati, S.h",
		time.Date(2024, 1, 15, 11, 30, 0, 0, time.UTC), models.Effects{
			AssignedStaff: []string{"Ahmad Fauzi"}, TodoList: []string{"Siapkan bahan"}, Notes: &notes,
		})
	return rec
}

func (s *WorkflowHandlerSuite) do(req *http.Request) (int, string) {
	rr := testutil.DoRequest(s.router, req)
	return rr.Code, rr.Body.String()
}

func (s *WorkflowHandlerSuite) TestCreateRecord() {
	t := s.T()
	rec := sampleRecord()

	testutil.Given(t, "a TU submits a valid record", func(t *testing.T) {
		s.svc.EXPECT().CreateRecord(gomock.Any(), tuActor, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ domain.Actor, req *models.CreateRecordRequest) (*models.Record, error) {
				s.Equal("SPT/001/2024", req.LetterNumber)
				return rec, nil
			})
		s.svc.EXPECT().AllowedActions(rec, tuActor).Return([]models.Action{models.ActionForwardToCoordinator})

		req := testutil.WithActor(testutil.NewJSONRequest(t, http.MethodPost, "/records", map[string]any{
			"letter_number": "SPT/001/2024", "subject": "Rapat", "origin": "Kepala Dinas", "sender": "Kepala Dinas",
		}), tuActor)
		rr := testutil.DoRequest(s.router, req)

		testutil.Then(t, "the record is returned with its label and actions", func(t *testing.T) {
			s.Equal(http.StatusCreated, rr.Code)
			body := testutil.UnmarshalResponse[map[string]any](t, rr)
			s.Equal(rec.ID.String(), (*body)["id"])
			s.Equal("Ditugaskan ke Staff", (*body)["status_label"])
			s.Equal([]any{"forward_to_coordinator"}, (*body)["allowed_actions"])
			s.Equal("SPT/001/2024", (*body)["letter_number"])
		})
	})

	testutil.Given(t, "a body with an unknown field", func(t *testing.T) {
		req := testutil.WithActor(testutil.NewJSONRequest(t, http.MethodPost, "/records", map[string]any{
			"letter_number": "SPT/001/2024", "status": "approved",
		}), tuActor)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	testutil.Given(t, "the service rejects the fields", func(t *testing.T) {
		s.svc.EXPECT().CreateRecord(gomock.Any(), tuActor, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeValidation, "letter_number is required"))
		req := testutil.WithActor(testutil.NewJSONRequest(t, http.MethodPost, "/records", map[string]any{"subject": "x"}), tuActor)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}

func (s *WorkflowHandlerSuite) TestListRecords() {
	rec := sampleRecord()
	s.svc.EXPECT().ListVisible(gomock.Any(), coordActor, models.StatusAssignedToStaff, models.StatusApproved).
		Return([]*models.Record{rec}, nil)
	s.svc.EXPECT().AllowedActions(rec, coordActor).Return(nil)

	req := testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodGet, "/records?status=assigned_to_staff,approved", nil), coordActor)
	rr := testutil.DoRequest(s.router, req)

	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	body := testutil.UnmarshalResponse[struct {
		Records []map[string]any `json:"records"`
		Count   int              `json:"count"`
	}](s.T(), rr)
	s.Equal(1, body.Count)
	s.Equal([]any{}, body.Records[0]["allowed_actions"])
}

func (s *WorkflowHandlerSuite) TestListRejectsUnknownStatus() {
	req := testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodGet, "/records?status=archived", nil), coordActor)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
}

func (s *WorkflowHandlerSuite) TestGetRecord() {
	rec := sampleRecord()
	s.svc.EXPECT().GetRecord(gomock.Any(), rec.ID).Return(rec, nil)
	s.svc.EXPECT().AllowedActions(rec, coordActor).Return(nil)

	code, body := s.do(testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodGet, "/records/"+rec.ID.String(), nil), coordActor))
	s.Equal(http.StatusOK, code)
	s.Contains(body, `"assigned_staff":["Ahmad Fauzi"]`)
	s.Contains(body, `"notes":"Koordinasi agenda rapat"`)
}

func (s *WorkflowHandlerSuite) TestGetRecordErrors() {
	rr := testutil.DoRequest(s.router, testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodGet, "/records/not-a-uuid", nil), coordActor))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))

	missing := domain.NewRecordID()
	s.svc.EXPECT().GetRecord(gomock.Any(), missing).Return(nil, dErrors.New(dErrors.CodeNotFound, "record not found"))
	rr = testutil.DoRequest(s.router, testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodGet, "/records/"+missing.String(), nil), coordActor))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
}

func (s *WorkflowHandlerSuite) TestGetRecordHonoursDashboardVisibility() {
	rec := sampleRecord()
	assigned := domain.Actor{ID: "staff1", Username: "ahmad", Name: "Ahmad Fauzi", Role: domain.RoleStaff}
	s.svc.EXPECT().GetRecord(gomock.Any(), rec.ID).Return(rec, nil).Times(3)
	s.svc.EXPECT().AllowedActions(rec, assigned).Return([]models.Action{models.ActionCompleteTask})

	code, _ := s.do(testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodGet, "/records/"+rec.ID.String(), nil), assigned))
	s.Equal(http.StatusOK, code)

	outsiders := []domain.Actor{
		{ID: "staff2", Username: "budi", Name: "Budi Santoso", Role: domain.RoleStaff},
		{ID: "coord2", Username: "rina", Name: "Rina Wulandari", Role: domain.RoleCoordinator},
	}
	for _, actor := range outsiders {
		rr := testutil.DoRequest(s.router, testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodGet, "/records/"+rec.ID.String(), nil), actor))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
		s.NotContains(rr.Body.String(), "SPT/001/2024", actor.Username)
	}
}

func (s *WorkflowHandlerSuite) TestUpdateRecord() {
	rec := sampleRecord()
	s.svc.EXPECT().UpdateFields(gomock.Any(), tuActor, rec.ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ domain.Actor, _ domain.RecordID, req *models.UpdateFieldsRequest) (*models.Record, error) {
			s.Require().NotNil(req.Subject)
			s.Equal("Rapat Triwulan", *req.Subject)
			s.Nil(req.LetterNumber)
			return rec, nil
		})
	s.svc.EXPECT().AllowedActions(rec, tuActor).Return(nil)

	req := testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPatch, "/records/"+rec.ID.String(),
		map[string]any{"subject": "Rapat Triwulan"}), tuActor)
	code, _ := s.do(req)
	s.Equal(http.StatusOK, code)
}

func (s *WorkflowHandlerSuite) TestUpdateOutsideDraftIsForbidden() {
	recordID := domain.NewRecordID()
	s.svc.EXPECT().UpdateFields(gomock.Any(), tuActor, recordID, gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeForbidden, "records can only be edited while in draft"))

	req := testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPatch, "/records/"+recordID.String(),
		map[string]any{"subject": "x"}), tuActor)
	testutil.AssertStatusAndError(s.T(), testutil.DoRequest(s.router, req), http.StatusForbidden, string(dErrors.CodeForbidden))
}

func (s *WorkflowHandlerSuite) TestUpdateCannotSetStatus() {
	recordID := domain.NewRecordID()
	req := testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPatch, "/records/"+recordID.String(),
		map[string]any{"status": "approved"}), tuActor)
	testutil.AssertStatusAndError(s.T(), testutil.DoRequest(s.router, req), http.StatusBadRequest, string(dErrors.CodeBadRequest))
}

func (s *WorkflowHandlerSuite) TestDeleteRecord() {
	recordID := domain.NewRecordID()
	s.svc.EXPECT().DeleteRecord(gomock.Any(), tuActor, recordID).Return(nil)

	code, body := s.do(testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodDelete, "/records/"+recordID.String(), nil), tuActor))
	s.Equal(http.StatusNoContent, code)
	s.Empty(body)

	s.svc.EXPECT().DeleteRecord(gomock.Any(), tuActor, recordID).
		Return(dErrors.New(dErrors.CodeForbidden, "only draft records can be deleted"))
	rr := testutil.DoRequest(s.router, testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodDelete, "/records/"+recordID.String(), nil), tuActor))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, string(dErrors.CodeForbidden))
}

func (s *WorkflowHandlerSuite) TestTransition() {
	rec := sampleRecord()
	s.svc.EXPECT().ApplyTransition(gomock.Any(), coordActor, rec.ID, &models.TransitionRequest{
		Action:   models.ActionAssignToStaff,
		Staff:    []string{"Ahmad Fauzi"},
		TodoList: []string{"Siapkan bahan"},
	}).Return(rec, nil)
	s.svc.EXPECT().AllowedActions(rec, coordActor).Return(nil)

	req := testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPost, "/records/"+rec.ID.String()+"/transitions",
		map[string]any{"action": "assign_to_staff", "staff": []string{"Ahmad Fauzi"}, "todo_list": []string{"Siapkan bahan"}}), coordActor)
	rr := testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	body := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
	s.Equal("assigned_to_staff", (*body)["status"])
	s.Len((*body)["timeline"], 3)
}

func (s *WorkflowHandlerSuite) TestTransitionErrors() {
	recordID := domain.NewRecordID()
	cases := []struct {
		name   string
		err    error
		status int
		code   dErrors.Code
	}{
		{"illegal", dErrors.New(dErrors.CodeIllegalTransition, "not allowed"), http.StatusConflict, dErrors.CodeIllegalTransition},
		{"unauthorized", dErrors.New(dErrors.CodeUnauthorized, "not assigned"), http.StatusForbidden, dErrors.CodeUnauthorized},
		{"validation", dErrors.New(dErrors.CodeValidation, "staff required"), http.StatusBadRequest, dErrors.CodeValidation},
		{"conflict", dErrors.New(dErrors.CodeConflict, "modified"), http.StatusConflict, dErrors.CodeConflict},
		{"internal", dErrors.New(dErrors.CodeInternal, "db down"), http.StatusInternalServerError, dErrors.CodeInternal},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.svc.EXPECT().ApplyTransition(gomock.Any(), coordActor, recordID, gomock.Any()).Return(nil, tc.err)
			req := testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPost, "/records/"+recordID.String()+"/transitions",
				map[string]any{"action": "approve"}), coordActor)
			rr := testutil.DoRequest(s.router, req)
			testutil.AssertStatusAndError(s.T(), rr, tc.status, string(tc.code))
			if tc.code == dErrors.CodeInternal {
				s.NotContains(rr.Body.String(), "db down")
			}
		})
	}
}

func (s *WorkflowHandlerSuite) TestPublicLookup() {
	t := s.T()
	rec := sampleRecord()

	testutil.Given(t, "redaction is on", func(t *testing.T) {
		s.svc.EXPECT().Search(gomock.Any(), "SPT/001").Return(rec, nil)
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodGet, "/public/records?letter_number=SPT/001", nil))

		testutil.Then(t, "status and timeline are shown without assignees or notes", func(t *testing.T) {
			s.Equal(http.StatusOK, rr.Code)
			body := rr.Body.String()
			s.Contains(body, `"status_label":"Ditugaskan ke Staff"`)
			s.Contains(body, `"attachment_name":"surat.pdf"`)
			s.NotContains(body, "assigned_staff")
			s.NotContains(body, "Koordinasi agenda rapat")
			s.NotContains(body, "sha256:")
			resp := testutil.UnmarshalResponse[PublicRecordResponse](t, rr)
			s.Require().Len(resp.Timeline, 3)
			for i, entry := range resp.Timeline {
				s.Equal(rec.Timeline[i].Status, entry.Status)
				s.True(rec.Timeline[i].Timestamp.Equal(entry.Timestamp))
				s.Equal(entry.Status.Label(), entry.Action)
				s.Empty(entry.User)
			}
		})

		testutil.Then(t, "no directory name appears anywhere in the body", func(t *testing.T) {
			for _, name := range []string{"Suwati, S.h", "Ahmad Fauzi", "Administrator TU"} {
				s.NotContains(rr.Body.String(), name)
			}
		})

		testutil.Then(t, "the stored record keeps its timeline text", func(t *testing.T) {
			s.Equal("Assigned to staff: Ahmad Fauzi", rec.Timeline[2].Action)
			s.Equal("Suwati, S.h", rec.Timeline[2].User)
		})
	})

	testutil.Given(t, "redaction is off", func(t *testing.T) {
		router := s.newRouter(false)
		s.svc.EXPECT().Search(gomock.Any(), "SPT/001").Return(rec, nil)
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/public/records?letter_number=SPT/001", nil))
		resp := testutil.UnmarshalResponse[PublicRecordResponse](t, rr)
		s.Equal([]string{"Ahmad Fauzi"}, resp.AssignedStaff)
		s.Equal("Koordinasi agenda rapat", resp.Notes)
		s.Equal(rec.Attachment.Locator, resp.AttachmentLocator)
		s.Equal("Assigned to staff: Ahmad Fauzi", resp.Timeline[2].Action)
	})

	testutil.Given(t, "no record matches", func(t *testing.T) {
		s.svc.EXPECT().Search(gomock.Any(), "NOPE").Return(nil, dErrors.New(dErrors.CodeNotFound, "no record matches letter number NOPE"))
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodGet, "/public/records?letter_number=NOPE", nil))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})
}
