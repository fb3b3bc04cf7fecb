// Package merge applies reviewer feedback items to document content:
// ordering a batch so large edits land before the small edits nested
// inside them, applying each item against a verbatim source span, and
// verifying every result.
package merge

import (
	"sort"
	"strings"

	"redline/api/internal/store"
)

// Order fixes the application order for a batch: word count of ChangeFrom
// descending, submission order for ties. Sentence-level edits are applied
// before single-word edits so a short replacement cannot corrupt a longer
// span that a later item still needs to match verbatim. The sort is stable,
// so the same input batch always yields the same sequence.
func Order(items []store.FeedbackItem) []store.FeedbackItem {
	ordered := make([]store.FeedbackItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return wordCount(ordered[i].ChangeFrom) > wordCount(ordered[j].ChangeFrom)
	})
	return ordered
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}
