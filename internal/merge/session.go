package merge

import (
	"context"

	"redline/api/internal/store"
)

// Session is one batch-application run against a working copy of document
// content. It never aliases the document's stored copy; committing
// FinalContent back is the caller's explicit step.
type Session struct {
	DocumentID      string
	StartingContent string
	Items           []store.FeedbackItem
	FinalContent    string
	Outcomes        []store.MergeOutcome
}

// Runner orchestrates batch merges through a single executor.
type Runner struct {
	executor *Executor
}

func NewRunner(executor *Executor) *Runner {
	return &Runner{executor: executor}
}

// Run orders the batch and folds it over the content: each step's output
// is the next step's input, so items are applied strictly sequentially.
// A failed item leaves the content unchanged and the fold keeps going;
// the session always finishes the full batch with one outcome per item.
func (r *Runner) Run(ctx context.Context, documentID, startingContent string, items []store.FeedbackItem) Session {
	ordered := Order(items)
	session := Session{
		DocumentID:      documentID,
		StartingContent: startingContent,
		Items:           ordered,
		Outcomes:        make([]store.MergeOutcome, 0, len(ordered)),
	}

	content := startingContent
	for _, item := range ordered {
		attempt := r.executor.Apply(ctx, content, item)
		content = attempt.Content
		session.Outcomes = append(session.Outcomes, attempt.Outcome)
	}
	session.FinalContent = content
	return session
}
