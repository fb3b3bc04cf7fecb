package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"redline/api/internal/auth"
	"redline/api/internal/config"
	"redline/api/internal/contentrepo"
	"redline/api/internal/merge"
	"redline/api/internal/search"
	"redline/api/internal/session"
	"redline/api/internal/store"
	"redline/api/internal/util"
	"redline/api/internal/workflow"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

// FeedbackInput is a reviewer's submission payload.
type FeedbackInput struct {
	Page                     string `json:"page"`
	ParagraphNumber          string `json:"paragraphNumber"`
	LineNumber               string `json:"lineNumber"`
	ChangeFrom               string `json:"changeFrom"`
	ChangeTo                 string `json:"changeTo"`
	CommentType              string `json:"commentType"`
	POCName                  string `json:"pocName"`
	POCEmail                 string `json:"pocEmail"`
	POCPhone                 string `json:"pocPhone"`
	Component                string `json:"component"`
	CoordinatorComment       string `json:"coordinatorComment"`
	CoordinatorJustification string `json:"coordinatorJustification"`
}

var allowedCommentTypes = map[string]struct{}{
	"CRITICAL":       {},
	"MAJOR":          {},
	"SUBSTANTIVE":    {},
	"ADMINISTRATIVE": {},
}

type dataStore interface {
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)

	CreateDocument(ctx context.Context, id, title, updatedBy string) (store.Document, error)
	GetDocument(ctx context.Context, documentID string) (store.Document, error)
	ListDocuments(ctx context.Context) ([]store.Document, error)
	TouchDocument(ctx context.Context, documentID, status, updatedBy string) error

	CreateWorkflow(ctx context.Context, id, documentID, firstStage string) (store.Workflow, error)
	GetWorkflow(ctx context.Context, workflowID string) (store.Workflow, error)
	GetWorkflowByDocument(ctx context.Context, documentID string) (store.Workflow, error)
	SetWorkflowStage(ctx context.Context, workflowID, expectedStage, newStage string, isActive bool) (bool, error)
	InsertTransition(ctx context.Context, record store.TransitionRecord) error
	ListTransitions(ctx context.Context, workflowID string) ([]store.TransitionRecord, error)

	InsertFeedbackItem(ctx context.Context, item store.FeedbackItem) (store.FeedbackItem, error)
	GetFeedbackItem(ctx context.Context, feedbackID string) (store.FeedbackItem, error)
	ListFeedbackItems(ctx context.Context, documentID string, pendingOnly bool) ([]store.FeedbackItem, error)
	MarkFeedbackResolved(ctx context.Context, feedbackIDs []string) error

	InsertMergeOutcome(ctx context.Context, outcome store.MergeOutcome) (store.MergeOutcome, error)
	ListMergeOutcomes(ctx context.Context, documentID string) ([]store.MergeOutcome, error)

	Ping(ctx context.Context) error
}

type contentStore interface {
	EnsureDocument(documentID, initialContent, author string) error
	GetContent(documentID string) (string, contentrepo.Version, error)
	SetContent(documentID, content, expectedVersion, author, message string) (contentrepo.Version, error)
	GetContentByVersion(documentID, version string) (string, error)
	History(documentID string, limit int) ([]contentrepo.Version, error)
}

// refreshStore holds refresh tokens. Backed by Redis when configured,
// Postgres otherwise.
type refreshStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type mergeLocker interface {
	AcquireMergeLock(ctx context.Context, documentID, ownerID string, ttl time.Duration) error
	ReleaseMergeLock(ctx context.Context, documentID, ownerID string) error
}

type feedbackSearcher interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexFeedback(record search.FeedbackRecord)
	IndexFeedbackBatch(records []search.FeedbackRecord)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	content  contentStore
	sessions refreshStore
	machine  *workflow.Machine
	merger   *merge.Runner
	locks    mergeLocker      // nil when Redis is not configured
	search   feedbackSearcher // nil when search is not configured
}

func New(
	cfg config.Config,
	pg *store.PostgresStore,
	content *contentrepo.Service,
	redisStore *session.RedisStore,
	searchSvc *search.Service,
	improver merge.Improver,
) *Service {
	svc := &Service{
		cfg:      cfg,
		store:    pg,
		content:  content,
		sessions: pg,
		machine:  workflow.NewMachine(pg),
		merger:   merge.NewRunner(merge.NewExecutor(improver)),
	}
	if redisStore != nil {
		svc.sessions = redisStore
		svc.locks = redisStore
	}
	if searchSvc != nil {
		svc.search = searchSvc
	}
	return svc
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// --- sessions ---

func (s *Service) IssueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	ref, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	// The Redis backend stores only the user ID; hydrate the rest.
	user, err := s.store.GetUserByID(ctx, ref.ID)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.IssueSession(ctx, user)
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) actor(session Session) workflow.Actor {
	return workflow.Actor{
		ID:   session.UserID,
		Name: session.UserName,
		Role: workflow.Role(session.Role),
	}
}

// --- documents ---

// CreateDocument creates the document row, seeds its content repository,
// and opens its workflow at the first stage.
func (s *Service) CreateDocument(ctx context.Context, title, content string, session Session) (map[string]any, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}

	documentID := util.NewID("doc")
	doc, err := s.store.CreateDocument(ctx, documentID, title, session.UserName)
	if err != nil {
		return nil, err
	}
	if err := s.content.EnsureDocument(documentID, content, session.UserName); err != nil {
		return nil, err
	}
	wf, err := s.store.CreateWorkflow(ctx, util.NewID("wf"), documentID, string(workflow.FirstStage()))
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"document": documentPayload(doc),
		"workflow": workflowPayload(wf),
	}, nil
}

func (s *Service) ListDocuments(ctx context.Context) (map[string]any, error) {
	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		items = append(items, documentPayload(doc))
	}
	return map[string]any{"documents": items}, nil
}

func (s *Service) GetDocument(ctx context.Context, documentID string) (map[string]any, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{"document": documentPayload(doc)}
	if wf, err := s.store.GetWorkflowByDocument(ctx, documentID); err == nil {
		payload["workflow"] = workflowPayload(wf)
	}
	return payload, nil
}

func (s *Service) GetContent(ctx context.Context, documentID string) (map[string]any, error) {
	if _, err := s.store.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	content, version, err := s.content.GetContent(documentID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"documentId": documentID,
		"content":    content,
		"version":    version.Hash,
	}, nil
}

// UpdateContent commits new content. expectedVersion guards against a
// lost update; empty skips the check.
func (s *Service) UpdateContent(ctx context.Context, documentID, content, expectedVersion string, session Session) (map[string]any, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	version, err := s.content.SetContent(documentID, content, expectedVersion, session.UserName, "Update document content")
	if err != nil {
		return nil, err
	}
	if err := s.store.TouchDocument(ctx, documentID, doc.Status, session.UserName); err != nil {
		return nil, err
	}
	return map[string]any{
		"documentId": documentID,
		"version":    version.Hash,
	}, nil
}

func (s *Service) ContentHistory(ctx context.Context, documentID string, limit int) (map[string]any, error) {
	if _, err := s.store.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	versions, err := s.content.History(documentID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(versions))
	for _, version := range versions {
		items = append(items, map[string]any{
			"version":   version.Hash,
			"message":   version.Message,
			"author":    version.Author,
			"createdAt": version.CreatedAt,
		})
	}
	return map[string]any{"documentId": documentID, "versions": items}, nil
}

// --- workflow ---

func (s *Service) AdvanceWorkflow(ctx context.Context, workflowID string, session Session) (map[string]any, error) {
	wf, err := s.machine.Advance(ctx, workflowID, s.actor(session))
	if err != nil {
		return nil, err
	}
	return map[string]any{"workflow": workflowPayload(wf)}, nil
}

func (s *Service) RetreatWorkflow(ctx context.Context, workflowID, target, reason string, session Session) (map[string]any, error) {
	if !workflow.IsValidStage(workflow.Stage(target)) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("unknown stage %q", target), nil)
	}
	wf, err := s.machine.Retreat(ctx, workflowID, workflow.Stage(target), reason, s.actor(session))
	if err != nil {
		return nil, err
	}
	return map[string]any{"workflow": workflowPayload(wf)}, nil
}

func (s *Service) ResetWorkflow(ctx context.Context, workflowID string, session Session) (map[string]any, error) {
	wf, err := s.machine.Reset(ctx, workflowID, s.actor(session))
	if err != nil {
		return nil, err
	}
	return map[string]any{"workflow": workflowPayload(wf)}, nil
}

func (s *Service) PublishWorkflow(ctx context.Context, workflowID string, session Session) (map[string]any, error) {
	wf, err := s.machine.CompleteTerminalStage(ctx, workflowID, s.actor(session))
	if err != nil {
		return nil, err
	}
	if err := s.store.TouchDocument(ctx, wf.DocumentID, "Published", session.UserName); err != nil {
		return nil, err
	}
	return map[string]any{"workflow": workflowPayload(wf)}, nil
}

func (s *Service) WorkflowState(ctx context.Context, workflowID string) (map[string]any, error) {
	wf, err := s.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"workflow": workflowPayload(wf)}, nil
}

func (s *Service) WorkflowByDocument(ctx context.Context, documentID string) (map[string]any, error) {
	wf, err := s.store.GetWorkflowByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"workflow": workflowPayload(wf)}, nil
}

func (s *Service) WorkflowHistory(ctx context.Context, workflowID string) (map[string]any, error) {
	if _, err := s.store.GetWorkflow(ctx, workflowID); err != nil {
		return nil, err
	}
	records, err := s.machine.History(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(records))
	for _, record := range records {
		items = append(items, transitionPayload(record))
	}
	return map[string]any{"workflowId": workflowID, "transitions": items}, nil
}

// --- feedback ---

func (s *Service) SubmitFeedback(ctx context.Context, documentID string, input FeedbackInput, session Session) (map[string]any, error) {
	if _, err := s.store.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.ChangeFrom) == "" && strings.TrimSpace(input.CoordinatorComment) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "changeFrom or coordinatorComment is required", nil)
	}
	commentType := strings.ToUpper(strings.TrimSpace(input.CommentType))
	if commentType == "" {
		commentType = "ADMINISTRATIVE"
	}
	if _, ok := allowedCommentTypes[commentType]; !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("unknown comment type %q", input.CommentType), nil)
	}

	item, err := s.store.InsertFeedbackItem(ctx, store.FeedbackItem{
		ID:                       util.NewID("fb"),
		DocumentID:               documentID,
		Page:                     input.Page,
		ParagraphNumber:          input.ParagraphNumber,
		LineNumber:               input.LineNumber,
		ChangeFrom:               input.ChangeFrom,
		ChangeTo:                 input.ChangeTo,
		CommentType:              commentType,
		POCName:                  firstNonEmpty(input.POCName, session.UserName),
		POCEmail:                 input.POCEmail,
		POCPhone:                 input.POCPhone,
		Component:                input.Component,
		CoordinatorComment:       input.CoordinatorComment,
		CoordinatorJustification: input.CoordinatorJustification,
	})
	if err != nil {
		return nil, err
	}

	if s.search != nil {
		s.search.IndexFeedback(feedbackRecord(item))
	}
	return map[string]any{"feedback": feedbackPayload(item)}, nil
}

func (s *Service) ListFeedback(ctx context.Context, documentID string, pendingOnly bool) (map[string]any, error) {
	if _, err := s.store.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	items, err := s.store.ListFeedbackItems(ctx, documentID, pendingOnly)
	if err != nil {
		return nil, err
	}
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, feedbackPayload(item))
	}
	return map[string]any{"documentId": documentID, "feedback": payload}, nil
}

func (s *Service) SearchFeedback(ctx context.Context, q search.Query) (map[string]any, error) {
	if s.search == nil {
		return nil, domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search is not configured", nil)
	}
	resp := s.search.Search(ctx, q)
	return map[string]any{
		"results": resp.Results,
		"total":   resp.Total,
		"query":   resp.Query,
		"source":  resp.Source,
	}, nil
}

func (s *Service) ListOutcomes(ctx context.Context, documentID string) (map[string]any, error) {
	if _, err := s.store.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	outcomes, err := s.store.ListMergeOutcomes(ctx, documentID)
	if err != nil {
		return nil, err
	}
	payload := make([]map[string]any, 0, len(outcomes))
	for _, outcome := range outcomes {
		payload = append(payload, outcomePayload(outcome))
	}
	return map[string]any{"documentId": documentID, "outcomes": payload}, nil
}

// --- merge ---

// RunMerge executes a merge session over the document's pending feedback
// (optionally narrowed to feedbackIDs). The per-document lock allows one
// session at a time. With commit=false the result is a preview: outcomes
// are recorded but the document content is left untouched. With
// commit=true the merged content is committed against the version the
// session started from and successful items are marked resolved.
func (s *Service) RunMerge(ctx context.Context, documentID string, feedbackIDs []string, commit bool, session Session) (map[string]any, error) {
	if _, err := s.store.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}

	if s.locks != nil {
		if err := s.locks.AcquireMergeLock(ctx, documentID, session.UserID, s.cfg.MergeLockTTL); err != nil {
			return nil, err
		}
		defer func() {
			if err := s.locks.ReleaseMergeLock(context.WithoutCancel(ctx), documentID, session.UserID); err != nil {
				log.Printf("merge: release lock for %s: %v", documentID, err)
			}
		}()
	}

	content, version, err := s.content.GetContent(documentID)
	if err != nil {
		return nil, err
	}

	items, err := s.store.ListFeedbackItems(ctx, documentID, true)
	if err != nil {
		return nil, err
	}
	if len(feedbackIDs) > 0 {
		wanted := make(map[string]struct{}, len(feedbackIDs))
		for _, id := range feedbackIDs {
			wanted[id] = struct{}{}
		}
		filtered := items[:0]
		for _, item := range items {
			if _, ok := wanted[item.ID]; ok {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}
	if len(items) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "NO_PENDING_FEEDBACK", "No pending feedback items to merge", nil)
	}

	result := s.merger.Run(ctx, documentID, content, items)

	var succeeded []string
	outcomes := make([]map[string]any, 0, len(result.Outcomes))
	for _, outcome := range result.Outcomes {
		saved, err := s.store.InsertMergeOutcome(ctx, outcome)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcomePayload(saved))
		if saved.Status == merge.StatusSuccess {
			succeeded = append(succeeded, saved.FeedbackID)
		}
	}

	payload := map[string]any{
		"documentId":      documentID,
		"startingVersion": version.Hash,
		"content":         result.FinalContent,
		"outcomes":        outcomes,
		"committed":       false,
	}

	if !commit {
		return payload, nil
	}

	message := fmt.Sprintf("Apply feedback batch (%d items, %d succeeded)", len(items), len(succeeded))
	newVersion, err := s.content.SetContent(documentID, result.FinalContent, version.Hash, session.UserName, message)
	if err != nil {
		return nil, err
	}
	if err := s.store.MarkFeedbackResolved(ctx, succeeded); err != nil {
		return nil, err
	}
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if err := s.store.TouchDocument(ctx, documentID, doc.Status, session.UserName); err != nil {
		return nil, err
	}
	if s.search != nil && len(succeeded) > 0 {
		records := make([]search.FeedbackRecord, 0, len(succeeded))
		for _, id := range succeeded {
			if item, err := s.store.GetFeedbackItem(ctx, id); err == nil {
				record := feedbackRecord(item)
				record.Resolved = true
				records = append(records, record)
			}
		}
		s.search.IndexFeedbackBatch(records)
	}

	payload["committed"] = true
	payload["version"] = newVersion.Hash
	return payload, nil
}

// --- payload helpers ---

func documentPayload(doc store.Document) map[string]any {
	return map[string]any{
		"id":        doc.ID,
		"title":     doc.Title,
		"status":    doc.Status,
		"updatedBy": doc.UpdatedBy,
		"createdAt": doc.CreatedAt,
		"updatedAt": doc.UpdatedAt,
	}
}

func workflowPayload(wf store.Workflow) map[string]any {
	return map[string]any{
		"id":           wf.ID,
		"documentId":   wf.DocumentID,
		"currentStage": wf.CurrentStage,
		"stageOrder":   workflow.StageOrder(workflow.Stage(wf.CurrentStage)),
		"requiredRole": string(workflow.RequiredRole(workflow.Stage(wf.CurrentStage))),
		"isActive":     wf.IsActive,
		"createdAt":    wf.CreatedAt,
	}
}

func transitionPayload(record store.TransitionRecord) map[string]any {
	return map[string]any{
		"id":         record.ID,
		"workflowId": record.WorkflowID,
		"fromStage":  record.FromStage,
		"toStage":    record.ToStage,
		"direction":  record.Direction,
		"actorId":    record.ActorID,
		"actorName":  record.ActorName,
		"actorRole":  record.ActorRole,
		"reason":     record.Reason,
		"occurredAt": record.OccurredAt,
	}
}

func feedbackPayload(item store.FeedbackItem) map[string]any {
	return map[string]any{
		"id":                       item.ID,
		"documentId":               item.DocumentID,
		"page":                     item.Page,
		"paragraphNumber":          item.ParagraphNumber,
		"lineNumber":               item.LineNumber,
		"changeFrom":               item.ChangeFrom,
		"changeTo":                 item.ChangeTo,
		"commentType":              item.CommentType,
		"pocName":                  item.POCName,
		"pocEmail":                 item.POCEmail,
		"pocPhone":                 item.POCPhone,
		"component":                item.Component,
		"coordinatorComment":       item.CoordinatorComment,
		"coordinatorJustification": item.CoordinatorJustification,
		"resolvedAt":               item.ResolvedAt,
		"createdAt":                item.CreatedAt,
	}
}

func outcomePayload(outcome store.MergeOutcome) map[string]any {
	payload := map[string]any{
		"id":              outcome.ID,
		"documentId":      outcome.DocumentID,
		"feedbackId":      outcome.FeedbackID,
		"status":          outcome.Status,
		"textFoundBefore": outcome.TextFoundBefore,
		"oldTextRemoved":  outcome.OldTextRemoved,
		"newTextPresent":  outcome.NewTextPresent,
		"createdAt":       outcome.CreatedAt,
	}
	if outcome.NearMatch != "" {
		payload["nearMatch"] = outcome.NearMatch
	}
	return payload
}

func feedbackRecord(item store.FeedbackItem) search.FeedbackRecord {
	return search.FeedbackRecord{
		ID:            item.ID,
		DocumentID:    item.DocumentID,
		ChangeFrom:    item.ChangeFrom,
		ChangeTo:      item.ChangeTo,
		CommentType:   item.CommentType,
		Component:     item.Component,
		Comment:       item.CoordinatorComment,
		Justification: item.CoordinatorJustification,
		Resolved:      item.ResolvedAt != nil,
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
