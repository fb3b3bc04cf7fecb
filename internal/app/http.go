package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"redline/api/internal/auth"
	"redline/api/internal/authpw"
	"redline/api/internal/contentrepo"
	"redline/api/internal/search"
	"redline/api/internal/session"
	"redline/api/internal/workflow"
)

type HTTPServer struct {
	service    *Service
	accounts   *authpw.Service
	corsOrigin string
}

func NewHTTPServer(service *Service, accounts *authpw.Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, accounts: accounts, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	// Auth routes (no session required)
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signup" {
		s.handleAuthSignUp(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signin" {
		s.handleAuthSignIn(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "userName": session.UserName, "userId": session.UserID, "role": session.Role})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
			return
		}
		writeJSON(w, http.StatusOK, sessionPayload(session))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/logout" {
		session := Session{}
		if token := bearerToken(r); token != "" {
			if parsed, err := s.service.SessionFromToken(r.Context(), token); err == nil {
				session = parsed
			}
		}
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		_ = s.service.Logout(r.Context(), session, body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	// Everything below requires a session.
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/documents" {
		payload, err := s.service.ListDocuments(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not list documents", nil)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/documents" {
		var body struct {
			Title   string `json:"title"`
			Content string `json:"content"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateDocument(r.Context(), body.Title, body.Content, session)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
		return
	}

	parts := splitPath(r.URL.Path)

	// /api/documents/{id}...
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "documents" {
		s.handleDocumentRoutes(w, r, session, parts[2], parts[3:])
		return
	}

	// /api/workflows/{id}...
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "workflows" {
		s.handleWorkflowRoutes(w, r, session, parts[2], parts[3:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleDocumentRoutes(w http.ResponseWriter, r *http.Request, session Session, documentID string, rest []string) {
	ctx := r.Context()

	respond := func(payload map[string]any, err error) {
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	}

	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		respond(s.service.GetDocument(ctx, documentID))
		return

	case len(rest) == 1 && rest[0] == "content" && r.Method == http.MethodGet:
		respond(s.service.GetContent(ctx, documentID))
		return

	case len(rest) == 1 && rest[0] == "content" && r.Method == http.MethodPut:
		var body struct {
			Content         string `json:"content"`
			ExpectedVersion string `json:"expectedVersion"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		respond(s.service.UpdateContent(ctx, documentID, body.Content, body.ExpectedVersion, session))
		return

	case len(rest) == 2 && rest[0] == "content" && rest[1] == "history" && r.Method == http.MethodGet:
		limit := parseIntQuery(r, "limit", 0)
		respond(s.service.ContentHistory(ctx, documentID, limit))
		return

	case len(rest) == 1 && rest[0] == "workflow" && r.Method == http.MethodGet:
		respond(s.service.WorkflowByDocument(ctx, documentID))
		return

	case len(rest) == 1 && rest[0] == "feedback" && r.Method == http.MethodGet:
		pending := r.URL.Query().Get("pending")
		pendingOnly := pending == "1" || strings.EqualFold(pending, "true")
		respond(s.service.ListFeedback(ctx, documentID, pendingOnly))
		return

	case len(rest) == 1 && rest[0] == "feedback" && r.Method == http.MethodPost:
		var body FeedbackInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.SubmitFeedback(ctx, documentID, body, session)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, payload)
		return

	case len(rest) == 2 && rest[0] == "feedback" && rest[1] == "search" && r.Method == http.MethodGet:
		q := search.Query{
			Text:        strings.TrimSpace(r.URL.Query().Get("q")),
			DocumentID:  documentID,
			CommentType: strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("commentType"))),
			Component:   strings.TrimSpace(r.URL.Query().Get("component")),
			Limit:       parseIntQuery(r, "limit", 50),
			Offset:      parseIntQuery(r, "offset", 0),
		}
		respond(s.service.SearchFeedback(ctx, q))
		return

	case len(rest) == 2 && rest[0] == "feedback" && rest[1] == "merge" && r.Method == http.MethodPost:
		var body struct {
			FeedbackIDs []string `json:"feedbackIds"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		respond(s.service.RunMerge(ctx, documentID, body.FeedbackIDs, false, session))
		return

	case len(rest) == 3 && rest[0] == "feedback" && rest[1] == "merge" && rest[2] == "commit" && r.Method == http.MethodPost:
		var body struct {
			FeedbackIDs []string `json:"feedbackIds"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		respond(s.service.RunMerge(ctx, documentID, body.FeedbackIDs, true, session))
		return

	case len(rest) == 1 && rest[0] == "outcomes" && r.Method == http.MethodGet:
		respond(s.service.ListOutcomes(ctx, documentID))
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleWorkflowRoutes(w http.ResponseWriter, r *http.Request, session Session, workflowID string, rest []string) {
	ctx := r.Context()

	respond := func(payload map[string]any, err error) {
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	}

	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		respond(s.service.WorkflowState(ctx, workflowID))
		return

	case len(rest) == 1 && rest[0] == "history" && r.Method == http.MethodGet:
		respond(s.service.WorkflowHistory(ctx, workflowID))
		return

	case len(rest) == 1 && rest[0] == "advance" && r.Method == http.MethodPost:
		respond(s.service.AdvanceWorkflow(ctx, workflowID, session))
		return

	case len(rest) == 1 && rest[0] == "retreat" && r.Method == http.MethodPost:
		var body struct {
			TargetStage string `json:"targetStage"`
			Reason      string `json:"reason"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		respond(s.service.RetreatWorkflow(ctx, workflowID, body.TargetStage, body.Reason, session))
		return

	case len(rest) == 1 && rest[0] == "reset" && r.Method == http.MethodPost:
		respond(s.service.ResetWorkflow(ctx, workflowID, session))
		return

	case len(rest) == 1 && rest[0] == "publish" && r.Method == http.MethodPost:
		respond(s.service.PublishWorkflow(ctx, workflowID, session))
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// Auth handlers for email/password authentication

func (s *HTTPServer) handleAuthSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
		Role        string `json:"role"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	user, err := s.accounts.SignUp(r.Context(), authpw.SignUpRequest{
		Email:       body.Email,
		Password:    body.Password,
		DisplayName: body.DisplayName,
		Role:        body.Role,
	})
	if err != nil {
		if err.Error() == "email already registered" {
			writeError(w, http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
			return
		}
		writeError(w, http.StatusBadRequest, "SIGNUP_FAILED", err.Error(), nil)
		return
	}

	session, err := s.service.IssueSession(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not issue session", nil)
		return
	}
	writeJSON(w, http.StatusCreated, sessionPayload(session))
}

func (s *HTTPServer) handleAuthSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	user, err := s.accounts.SignIn(r.Context(), authpw.SignInRequest{
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password", nil)
		return
	}

	session, err := s.service.IssueSession(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not issue session", nil)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(session))
}

func sessionPayload(session Session) map[string]any {
	return map[string]any{
		"token":        session.Token,
		"refreshToken": session.RefreshToken,
		"userId":       session.UserID,
		"userName":     session.UserName,
		"role":         session.Role,
	}
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func parseIntQuery(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	if errors.Is(err, workflow.ErrUnauthorized) {
		return http.StatusForbidden, "FORBIDDEN", err.Error(), nil
	}
	if errors.Is(err, workflow.ErrMissingReason) || errors.Is(err, workflow.ErrInvalidTarget) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	}
	if errors.Is(err, workflow.ErrNotActive) || errors.Is(err, workflow.ErrTerminalStage) || errors.Is(err, workflow.ErrNotAtTerminal) {
		return http.StatusConflict, "WORKFLOW_STATE", err.Error(), nil
	}
	if errors.Is(err, workflow.ErrStageConflict) {
		return http.StatusConflict, "STAGE_CONFLICT", err.Error(), nil
	}
	if errors.Is(err, contentrepo.ErrVersionConflict) {
		return http.StatusConflict, "VERSION_CONFLICT", err.Error(), nil
	}
	if errors.Is(err, session.ErrMergeLocked) {
		return http.StatusConflict, "MERGE_IN_PROGRESS", err.Error(), nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
