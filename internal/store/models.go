package store

import "time"

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type Document struct {
	ID        string
	Title     string
	Status    string
	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Workflow struct {
	ID           string
	DocumentID   string
	CurrentStage string
	IsActive     bool
	CreatedAt    time.Time
}

// TransitionRecord is one append-only row of workflow history. Rows are
// created once per transition and never mutated or deleted.
type TransitionRecord struct {
	ID         int64
	WorkflowID string
	FromStage  string
	ToStage    string
	Direction  string
	ActorID    string
	ActorName  string
	ActorRole  string
	Reason     string
	OccurredAt time.Time
}

// FeedbackItem is a reviewer's proposed literal replacement. ChangeFrom is
// the verbatim span expected in the document; the row is immutable after
// submission except for ResolvedAt, set when a merge commit consumes it.
type FeedbackItem struct {
	ID                       string
	DocumentID               string
	Page                     string
	ParagraphNumber          string
	LineNumber               string
	ChangeFrom               string
	ChangeTo                 string
	CommentType              string
	POCName                  string
	POCEmail                 string
	POCPhone                 string
	Component                string
	CoordinatorComment       string
	CoordinatorJustification string
	SubmittedSeq             int64
	ResolvedAt               *time.Time
	CreatedAt                time.Time
}

// MergeOutcome is the verified result of one merge attempt for one item.
// Append-only audit data; NearMatch holds the fuzzy-locate excerpt when
// the exact span was absent but a prefix match existed.
type MergeOutcome struct {
	ID              int64
	DocumentID      string
	FeedbackID      string
	Status          string
	TextFoundBefore bool
	OldTextRemoved  bool
	NewTextPresent  bool
	NearMatch       string
	CreatedAt       time.Time
}
