package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) CreateUser(ctx context.Context, displayName, email, passwordHash, role string) (User, error) {
	const query = `
		INSERT INTO users (display_name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, display_name, email, password_hash, role, created_at
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, displayName, email, passwordHash, role).
		Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const query = `SELECT id, display_name, email, password_hash, role, created_at FROM users WHERE email = $1`
	var user User
	err := s.db.QueryRowContext(ctx, query, email).
		Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	const query = `SELECT id, display_name, email, password_hash, role, created_at FROM users WHERE id = $1`
	var user User
	err := s.db.QueryRowContext(ctx, query, userID).
		Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.display_name, u.email, u.password_hash, u.role, u.created_at
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).
		Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, expiresAt)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1 AND expires_at > NOW())
	`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, id, title, updatedBy string) (Document, error) {
	const query = `
		INSERT INTO documents (id, title, updated_by_name)
		VALUES ($1, $2, $3)
		RETURNING id, title, status, updated_by_name, created_at, updated_at
	`
	var doc Document
	err := s.db.QueryRowContext(ctx, query, id, title, updatedBy).
		Scan(&doc.ID, &doc.Title, &doc.Status, &doc.UpdatedBy, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (Document, error) {
	const query = `SELECT id, title, status, updated_by_name, created_at, updated_at FROM documents WHERE id = $1`
	var doc Document
	err := s.db.QueryRowContext(ctx, query, documentID).
		Scan(&doc.ID, &doc.Title, &doc.Status, &doc.UpdatedBy, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, status, updated_by_name, created_at, updated_at
		FROM documents
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Status, &doc.UpdatedBy, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) TouchDocument(ctx context.Context, documentID, status, updatedBy string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status=$2, updated_by_name=$3, updated_at=NOW() WHERE id=$1
	`, documentID, status, updatedBy)
	if err != nil {
		return fmt.Errorf("touch document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch document rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) CreateWorkflow(ctx context.Context, id, documentID, firstStage string) (Workflow, error) {
	const query = `
		INSERT INTO workflows (id, document_id, current_stage)
		VALUES ($1, $2, $3)
		RETURNING id, document_id, current_stage, is_active, created_at
	`
	var wf Workflow
	err := s.db.QueryRowContext(ctx, query, id, documentID, firstStage).
		Scan(&wf.ID, &wf.DocumentID, &wf.CurrentStage, &wf.IsActive, &wf.CreatedAt)
	if err != nil {
		return Workflow{}, fmt.Errorf("insert workflow: %w", err)
	}
	return wf, nil
}

func (s *PostgresStore) GetWorkflow(ctx context.Context, workflowID string) (Workflow, error) {
	const query = `SELECT id, document_id, current_stage, is_active, created_at FROM workflows WHERE id = $1`
	var wf Workflow
	err := s.db.QueryRowContext(ctx, query, workflowID).
		Scan(&wf.ID, &wf.DocumentID, &wf.CurrentStage, &wf.IsActive, &wf.CreatedAt)
	if err != nil {
		return Workflow{}, err
	}
	return wf, nil
}

func (s *PostgresStore) GetWorkflowByDocument(ctx context.Context, documentID string) (Workflow, error) {
	const query = `SELECT id, document_id, current_stage, is_active, created_at FROM workflows WHERE document_id = $1`
	var wf Workflow
	err := s.db.QueryRowContext(ctx, query, documentID).
		Scan(&wf.ID, &wf.DocumentID, &wf.CurrentStage, &wf.IsActive, &wf.CreatedAt)
	if err != nil {
		return Workflow{}, err
	}
	return wf, nil
}

// SetWorkflowStage swaps the stage only when the row still holds
// expectedStage. Returns false when a concurrent transition won the race.
func (s *PostgresStore) SetWorkflowStage(ctx context.Context, workflowID, expectedStage, newStage string, isActive bool) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE workflows SET current_stage=$3, is_active=$4
		WHERE id=$1 AND current_stage=$2
	`, workflowID, expectedStage, newStage, isActive)
	if err != nil {
		return false, fmt.Errorf("update workflow stage: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update workflow stage rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) InsertTransition(ctx context.Context, record TransitionRecord) error {
	const query = `
		INSERT INTO workflow_transitions (workflow_id, from_stage, to_stage, direction, actor_id, actor_name, actor_role, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.WorkflowID, record.FromStage, record.ToStage, record.Direction,
		record.ActorID, record.ActorName, record.ActorRole, record.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTransitions(ctx context.Context, workflowID string) ([]TransitionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workflow_id, from_stage, to_stage, direction, actor_id, actor_name, actor_role, reason, occurred_at
		FROM workflow_transitions
		WHERE workflow_id = $1
		ORDER BY occurred_at, id
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var records []TransitionRecord
	for rows.Next() {
		var record TransitionRecord
		if err := rows.Scan(
			&record.ID, &record.WorkflowID, &record.FromStage, &record.ToStage, &record.Direction,
			&record.ActorID, &record.ActorName, &record.ActorRole, &record.Reason, &record.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *PostgresStore) InsertFeedbackItem(ctx context.Context, item FeedbackItem) (FeedbackItem, error) {
	const query = `
		INSERT INTO feedback_items (
			id, document_id, page, paragraph_number, line_number,
			change_from, change_to, comment_type,
			poc_name, poc_email, poc_phone, component,
			coordinator_comment, coordinator_justification
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING submitted_seq, created_at
	`
	err := s.db.QueryRowContext(ctx, query,
		item.ID, item.DocumentID, item.Page, item.ParagraphNumber, item.LineNumber,
		item.ChangeFrom, item.ChangeTo, item.CommentType,
		item.POCName, item.POCEmail, item.POCPhone, item.Component,
		item.CoordinatorComment, item.CoordinatorJustification,
	).Scan(&item.SubmittedSeq, &item.CreatedAt)
	if err != nil {
		return FeedbackItem{}, fmt.Errorf("insert feedback item: %w", err)
	}
	return item, nil
}

const feedbackColumns = `
	id, document_id, page, paragraph_number, line_number,
	change_from, change_to, comment_type,
	poc_name, poc_email, poc_phone, component,
	coordinator_comment, coordinator_justification,
	submitted_seq, resolved_at, created_at
`

func scanFeedbackItem(rows *sql.Rows) (FeedbackItem, error) {
	var item FeedbackItem
	err := rows.Scan(
		&item.ID, &item.DocumentID, &item.Page, &item.ParagraphNumber, &item.LineNumber,
		&item.ChangeFrom, &item.ChangeTo, &item.CommentType,
		&item.POCName, &item.POCEmail, &item.POCPhone, &item.Component,
		&item.CoordinatorComment, &item.CoordinatorJustification,
		&item.SubmittedSeq, &item.ResolvedAt, &item.CreatedAt,
	)
	return item, err
}

func (s *PostgresStore) GetFeedbackItem(ctx context.Context, feedbackID string) (FeedbackItem, error) {
	query := `SELECT ` + feedbackColumns + ` FROM feedback_items WHERE id = $1`
	var item FeedbackItem
	err := s.db.QueryRowContext(ctx, query, feedbackID).Scan(
		&item.ID, &item.DocumentID, &item.Page, &item.ParagraphNumber, &item.LineNumber,
		&item.ChangeFrom, &item.ChangeTo, &item.CommentType,
		&item.POCName, &item.POCEmail, &item.POCPhone, &item.Component,
		&item.CoordinatorComment, &item.CoordinatorJustification,
		&item.SubmittedSeq, &item.ResolvedAt, &item.CreatedAt,
	)
	if err != nil {
		return FeedbackItem{}, err
	}
	return item, nil
}

// ListFeedbackItems returns items in submission order. With pendingOnly,
// items already consumed by a merge commit are excluded.
func (s *PostgresStore) ListFeedbackItems(ctx context.Context, documentID string, pendingOnly bool) ([]FeedbackItem, error) {
	query := `SELECT ` + feedbackColumns + ` FROM feedback_items WHERE document_id = $1`
	if pendingOnly {
		query += ` AND resolved_at IS NULL`
	}
	query += ` ORDER BY submitted_seq`

	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("list feedback items: %w", err)
	}
	defer rows.Close()

	var items []FeedbackItem
	for rows.Next() {
		item, err := scanFeedbackItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feedback item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) MarkFeedbackResolved(ctx context.Context, feedbackIDs []string) error {
	if len(feedbackIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin resolve tx: %w", err)
	}
	for _, id := range feedbackIDs {
		if _, err := tx.ExecContext(ctx, `
			UPDATE feedback_items SET resolved_at=NOW() WHERE id=$1 AND resolved_at IS NULL
		`, id); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("resolve feedback %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit resolve tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertMergeOutcome(ctx context.Context, outcome MergeOutcome) (MergeOutcome, error) {
	const query = `
		INSERT INTO merge_outcomes (document_id, feedback_id, status, text_found_before, old_text_removed, new_text_present, near_match)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err := s.db.QueryRowContext(ctx, query,
		outcome.DocumentID, outcome.FeedbackID, outcome.Status,
		outcome.TextFoundBefore, outcome.OldTextRemoved, outcome.NewTextPresent, outcome.NearMatch,
	).Scan(&outcome.ID, &outcome.CreatedAt)
	if err != nil {
		return MergeOutcome{}, fmt.Errorf("insert merge outcome: %w", err)
	}
	return outcome, nil
}

func (s *PostgresStore) ListMergeOutcomes(ctx context.Context, documentID string) ([]MergeOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, feedback_id, status, text_found_before, old_text_removed, new_text_present, near_match, created_at
		FROM merge_outcomes
		WHERE document_id = $1
		ORDER BY created_at, id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list merge outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []MergeOutcome
	for rows.Next() {
		var outcome MergeOutcome
		if err := rows.Scan(
			&outcome.ID, &outcome.DocumentID, &outcome.FeedbackID, &outcome.Status,
			&outcome.TextFoundBefore, &outcome.OldTextRemoved, &outcome.NewTextPresent,
			&outcome.NearMatch, &outcome.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan merge outcome: %w", err)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, rows.Err()
}

// SearchFeedbackFallback is the Postgres path used when the search index
// is unreachable.
func (s *PostgresStore) SearchFeedbackFallback(ctx context.Context, documentID, query string, limit int) ([]FeedbackItem, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+feedbackColumns+`
		FROM feedback_items
		WHERE document_id = $1
			AND (change_from ILIKE $2 OR change_to ILIKE $2 OR coordinator_comment ILIKE $2 OR coordinator_justification ILIKE $2 OR component ILIKE $2)
		ORDER BY submitted_seq
		LIMIT $3
	`, documentID, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search feedback fallback: %w", err)
	}
	defer rows.Close()

	var items []FeedbackItem
	for rows.Next() {
		item, err := scanFeedbackItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feedback item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// IsNotFound reports whether err is the driver's no-rows sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
