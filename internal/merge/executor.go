package merge

import (
	"context"
	"log"
	"strings"
	"unicode/utf8"

	"redline/api/internal/store"
)

const (
	StatusSuccess = "SUCCESS"
	StatusPartial = "PARTIAL"
	StatusFailed  = "FAILED"
	StatusError   = "ERROR"
)

// fuzzyPrefixLen is how much of ChangeFrom the diagnostic locate uses
// when the exact span is absent.
const fuzzyPrefixLen = 20

// nearMatchWindow bounds the excerpt recorded around a fuzzy hit.
const nearMatchWindow = 80

// Improver is the external text-improvement collaborator. It is consulted
// only when an item carries no literal ChangeTo; its output is then
// treated exactly as a literal replacement.
type Improver interface {
	Suggest(ctx context.Context, original string, item store.FeedbackItem) (string, error)
}

// Executor applies a single feedback item to content and verifies the
// result. It never touches persistent storage.
type Executor struct {
	improver Improver
}

func NewExecutor(improver Improver) *Executor {
	return &Executor{improver: improver}
}

// Attempt is the result of applying one item: the new content and the
// verified outcome. Content equals the input when nothing was replaced.
type Attempt struct {
	Content string
	Outcome store.MergeOutcome
}

// Apply replaces the first occurrence of item.ChangeFrom with the
// replacement and verifies the result. Replacement only ever happens
// against a verbatim source span; a fuzzy prefix hit is recorded for
// diagnostics but never completes a replacement.
func (e *Executor) Apply(ctx context.Context, content string, item store.FeedbackItem) Attempt {
	outcome := store.MergeOutcome{
		DocumentID: item.DocumentID,
		FeedbackID: item.ID,
	}

	changeTo := item.ChangeTo
	if changeTo == "" {
		if e.improver == nil {
			outcome.Status = StatusError
			return Attempt{Content: content, Outcome: outcome}
		}
		suggested, err := e.improver.Suggest(ctx, item.ChangeFrom, item)
		if err != nil {
			log.Printf("merge: improvement suggestion failed for feedback %s: %v", item.ID, err)
			outcome.Status = StatusError
			return Attempt{Content: content, Outcome: outcome}
		}
		changeTo = suggested
	}

	if item.ChangeFrom == "" || !strings.Contains(content, item.ChangeFrom) {
		outcome.Status = StatusFailed
		outcome.NearMatch = nearMatch(content, item.ChangeFrom)
		if outcome.NearMatch != "" {
			log.Printf("merge: feedback %s source span absent, similar text: %q", item.ID, outcome.NearMatch)
		}
		return Attempt{Content: content, Outcome: outcome}
	}
	outcome.TextFoundBefore = true

	next := strings.Replace(content, item.ChangeFrom, changeTo, 1)
	outcome.OldTextRemoved = !strings.Contains(next, item.ChangeFrom)
	outcome.NewTextPresent = strings.Contains(next, changeTo)

	if outcome.OldTextRemoved && outcome.NewTextPresent {
		outcome.Status = StatusSuccess
	} else {
		outcome.Status = StatusPartial
	}
	return Attempt{Content: next, Outcome: outcome}
}

// nearMatch looks for the leading fuzzyPrefixLen runes of changeFrom and
// returns an excerpt of the surrounding content, or "" when nothing close
// exists. Diagnostic only.
func nearMatch(content, changeFrom string) string {
	runes := []rune(changeFrom)
	if len(runes) < fuzzyPrefixLen {
		return ""
	}
	prefix := string(runes[:fuzzyPrefixLen])
	idx := strings.Index(content, prefix)
	if idx < 0 {
		return ""
	}
	end := idx + nearMatchWindow
	if end >= len(content) {
		return content[idx:]
	}
	// Back the window edge off to a rune boundary so the excerpt stays
	// valid UTF-8.
	for end > idx && !utf8.RuneStart(content[end]) {
		end--
	}
	return content[idx:end]
}
