package merge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redline/api/internal/store"
)

type stubImprover struct {
	suggestion string
	err        error
	calls      int
}

func (s *stubImprover) Suggest(ctx context.Context, original string, item store.FeedbackItem) (string, error) {
	s.calls++
	return s.suggestion, s.err
}

func TestApplyReplacesFirstOccurrenceOnly(t *testing.T) {
	exec := NewExecutor(nil)
	content := "the cat sat. the cat slept."

	attempt := exec.Apply(context.Background(), content, store.FeedbackItem{
		ID: "fb_1", ChangeFrom: "the cat", ChangeTo: "the dog",
	})

	assert.Equal(t, "the dog sat. the cat slept.", attempt.Content)
	assert.True(t, attempt.Outcome.TextFoundBefore)
	// Replacement verified present, but a later duplicate of the source
	// span remains, so removal verification fails and the outcome is
	// downgraded.
	assert.Equal(t, StatusPartial, attempt.Outcome.Status)
	assert.False(t, attempt.Outcome.OldTextRemoved)
	assert.True(t, attempt.Outcome.NewTextPresent)
}

func TestApplySuccessWhenSpanUnique(t *testing.T) {
	exec := NewExecutor(nil)

	attempt := exec.Apply(context.Background(), "alpha beta gamma", store.FeedbackItem{
		ID: "fb_1", ChangeFrom: "beta", ChangeTo: "delta",
	})

	assert.Equal(t, "alpha delta gamma", attempt.Content)
	assert.Equal(t, StatusSuccess, attempt.Outcome.Status)
	assert.True(t, attempt.Outcome.OldTextRemoved)
	assert.True(t, attempt.Outcome.NewTextPresent)
}

func TestApplyFailsWhenSpanAbsent(t *testing.T) {
	exec := NewExecutor(nil)
	content := "nothing relevant here"

	attempt := exec.Apply(context.Background(), content, store.FeedbackItem{
		ID: "fb_1", ChangeFrom: "does not appear", ChangeTo: "anything",
	})

	assert.Equal(t, content, attempt.Content, "failed item leaves content untouched")
	assert.Equal(t, StatusFailed, attempt.Outcome.Status)
	assert.False(t, attempt.Outcome.TextFoundBefore)
}

func TestApplyFailsOnEmptyChangeFrom(t *testing.T) {
	exec := NewExecutor(nil)
	content := "some content"

	attempt := exec.Apply(context.Background(), content, store.FeedbackItem{
		ID: "fb_1", ChangeFrom: "", ChangeTo: "anything",
	})

	assert.Equal(t, content, attempt.Content)
	assert.Equal(t, StatusFailed, attempt.Outcome.Status)
}

func TestApplyRecordsNearMatchDiagnostic(t *testing.T) {
	exec := NewExecutor(nil)
	// Document drifted after the feedback was written: prefix intact,
	// tail changed.
	content := "Section 2: maintenance procedures must be reviewed quarterly by the duty officer."
	changeFrom := "maintenance procedures shall be reviewed monthly"

	attempt := exec.Apply(context.Background(), content, store.FeedbackItem{
		ID: "fb_1", ChangeFrom: changeFrom, ChangeTo: "updated text",
	})

	assert.Equal(t, StatusFailed, attempt.Outcome.Status)
	assert.Equal(t, content, attempt.Content, "a near match never completes a replacement")
	assert.Contains(t, attempt.Outcome.NearMatch, "maintenance procedures")
}

func TestApplyNearMatchExcerptStaysValidUTF8(t *testing.T) {
	exec := NewExecutor(nil)
	// The excerpt window lands mid-rune: 23 ASCII bytes then two-byte
	// runes, so a raw 80-byte slice would split one.
	content := "maintenance procedures " + strings.Repeat("ü", 60)
	changeFrom := "maintenance procedures shall be reviewed monthly"

	attempt := exec.Apply(context.Background(), content, store.FeedbackItem{
		ID: "fb_1", ChangeFrom: changeFrom, ChangeTo: "updated text",
	})

	require.NotEmpty(t, attempt.Outcome.NearMatch)
	assert.True(t, utf8.ValidString(attempt.Outcome.NearMatch))
}

func TestApplyNoNearMatchForShortSpans(t *testing.T) {
	exec := NewExecutor(nil)

	attempt := exec.Apply(context.Background(), "short words here", store.FeedbackItem{
		ID: "fb_1", ChangeFrom: "missing", ChangeTo: "x",
	})

	assert.Equal(t, StatusFailed, attempt.Outcome.Status)
	assert.Empty(t, attempt.Outcome.NearMatch)
}

func TestApplyConsultsImproverOnlyWithoutChangeTo(t *testing.T) {
	improver := &stubImprover{suggestion: "polished wording"}
	exec := NewExecutor(improver)

	// Literal ChangeTo present: improver not consulted.
	attempt := exec.Apply(context.Background(), "rough wording stands", store.FeedbackItem{
		ID: "fb_1", ChangeFrom: "rough wording", ChangeTo: "plain wording",
	})
	require.Equal(t, StatusSuccess, attempt.Outcome.Status)
	assert.Zero(t, improver.calls)

	// Empty ChangeTo: improver output used as the literal replacement.
	attempt = exec.Apply(context.Background(), "rough wording stands", store.FeedbackItem{
		ID: "fb_2", ChangeFrom: "rough wording",
	})
	require.Equal(t, StatusSuccess, attempt.Outcome.Status)
	assert.Equal(t, 1, improver.calls)
	assert.Equal(t, "polished wording stands", attempt.Content)
}

func TestApplyErrorWhenImproverFails(t *testing.T) {
	improver := &stubImprover{err: errors.New("upstream down")}
	exec := NewExecutor(improver)
	content := "rough wording stands"

	attempt := exec.Apply(context.Background(), content, store.FeedbackItem{
		ID: "fb_1", ChangeFrom: "rough wording",
	})

	assert.Equal(t, StatusError, attempt.Outcome.Status)
	assert.Equal(t, content, attempt.Content)
}

func TestApplyErrorWithoutImprover(t *testing.T) {
	exec := NewExecutor(nil)
	content := "rough wording stands"

	attempt := exec.Apply(context.Background(), content, store.FeedbackItem{
		ID: "fb_1", ChangeFrom: "rough wording",
	})

	assert.Equal(t, StatusError, attempt.Outcome.Status)
	assert.Equal(t, content, attempt.Content)
}
