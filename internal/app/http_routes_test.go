package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"redline/api/internal/auth"
	"redline/api/internal/contentrepo"
	"redline/api/internal/session"
	"redline/api/internal/store"
	"redline/api/internal/workflow"
)

func authedRequest(t *testing.T, svc *Service, method, path, body string) *http.Request {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	token := issueTestToken(t, svc, auth.Claims{Sub: "usr_1", Name: "Avery", Role: "AUTHOR", JTI: "jti_1"})
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return response
}

func TestCreateDocumentEndpointReturnsCreated(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeContent{})
	server := newTestServer(svc)

	req := authedRequest(t, svc, http.MethodPost, "/api/documents", `{"title":"AFI 36-2903","content":"1.1. Dress standards."}`)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	response := decodeResponse(t, rr)
	wf, _ := response["workflow"].(map[string]any)
	if wf["currentStage"] != string(workflow.FirstStage()) {
		t.Errorf("expected workflow at %s, got %v", workflow.FirstStage(), wf["currentStage"])
	}
}

func TestUpdateContentStaleVersionReturnsConflict(t *testing.T) {
	fc := &fakeContent{
		setContentFn: func(_, _, _, _, _ string) (contentrepo.Version, error) {
			return contentrepo.Version{}, contentrepo.ErrVersionConflict
		},
	}
	svc := newTestService(&fakeStore{}, fc)
	server := newTestServer(svc)

	req := authedRequest(t, svc, http.MethodPut, "/api/documents/doc_1/content", `{"content":"new","expectedVersion":"stale"}`)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
	if response := decodeResponse(t, rr); response["code"] != "VERSION_CONFLICT" {
		t.Errorf("expected code VERSION_CONFLICT, got %v", response["code"])
	}
}

func TestAdvanceWithoutRequiredRoleReturnsForbidden(t *testing.T) {
	fs := &fakeStore{
		getUserByIDFn: func(_ context.Context, userID string) (store.User, error) {
			return store.User{ID: userID, DisplayName: "Lee", Role: string(workflow.RoleLegalReviewer)}, nil
		},
	}
	svc := newTestService(fs, &fakeContent{})
	server := newTestServer(svc)

	req := authedRequest(t, svc, http.MethodPost, "/api/workflows/wf_1/advance", "")
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d: %s", rr.Code, rr.Body.String())
	}
	if response := decodeResponse(t, rr); response["code"] != "FORBIDDEN" {
		t.Errorf("expected code FORBIDDEN, got %v", response["code"])
	}
}

func TestRetreatWithoutReasonReturnsUnprocessable(t *testing.T) {
	fs := &fakeStore{
		getUserByIDFn: func(_ context.Context, userID string) (store.User, error) {
			return store.User{ID: userID, DisplayName: "Morgan", Role: string(workflow.RoleWorkflowAdmin)}, nil
		},
		getWorkflowFn: func(_ context.Context, workflowID string) (store.Workflow, error) {
			return store.Workflow{ID: workflowID, DocumentID: "doc_1", CurrentStage: "INTERNAL_COORDINATION", IsActive: true}, nil
		},
	}
	svc := newTestService(fs, &fakeContent{})
	server := newTestServer(svc)

	req := authedRequest(t, svc, http.MethodPost, "/api/workflows/wf_1/retreat", `{"targetStage":"DRAFT_CREATION","reason":"  "}`)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d: %s", rr.Code, rr.Body.String())
	}
	if response := decodeResponse(t, rr); response["code"] != "VALIDATION_ERROR" {
		t.Errorf("expected code VALIDATION_ERROR, got %v", response["code"])
	}
}

func TestRetreatUnknownStageReturnsUnprocessable(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeContent{})
	server := newTestServer(svc)

	req := authedRequest(t, svc, http.MethodPost, "/api/workflows/wf_1/retreat", `{"targetStage":"NOT_A_STAGE","reason":"typo"}`)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
}

func TestPublishMidPipelineReturnsConflict(t *testing.T) {
	fs := &fakeStore{
		getUserByIDFn: func(_ context.Context, userID string) (store.User, error) {
			return store.User{ID: userID, DisplayName: "Pat", Role: string(workflow.RolePublisher)}, nil
		},
		getWorkflowFn: func(_ context.Context, workflowID string) (store.Workflow, error) {
			return store.Workflow{ID: workflowID, DocumentID: "doc_1", CurrentStage: "LEGAL_REVIEW", IsActive: true}, nil
		},
	}
	svc := newTestService(fs, &fakeContent{})
	server := newTestServer(svc)

	req := authedRequest(t, svc, http.MethodPost, "/api/workflows/wf_1/publish", "")
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", rr.Code, rr.Body.String())
	}
	if response := decodeResponse(t, rr); response["code"] != "WORKFLOW_STATE" {
		t.Errorf("expected code WORKFLOW_STATE, got %v", response["code"])
	}
}

func TestMergeWhileLockedReturnsConflict(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeContent{})
	svc.locks = &fakeLocks{
		acquireFn: func(_ context.Context, _, _ string, _ time.Duration) error {
			return session.ErrMergeLocked
		},
	}
	server := newTestServer(svc)

	req := authedRequest(t, svc, http.MethodPost, "/api/documents/doc_1/feedback/merge", `{"feedbackIds":[]}`)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", rr.Code, rr.Body.String())
	}
	if response := decodeResponse(t, rr); response["code"] != "MERGE_IN_PROGRESS" {
		t.Errorf("expected code MERGE_IN_PROGRESS, got %v", response["code"])
	}
}

func TestUnknownRouteReturnsNotFound(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeContent{})
	server := newTestServer(svc)

	req := authedRequest(t, svc, http.MethodGet, "/api/documents/doc_1/unknown", "")
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}
