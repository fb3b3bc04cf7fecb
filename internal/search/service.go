package search

import (
	"context"
	"log"

	"redline/api/internal/store"
)

// Fallback is the Postgres search path used when Meilisearch is down.
type Fallback interface {
	SearchFeedbackFallback(ctx context.Context, documentID, query string, limit int) ([]store.FeedbackItem, error)
}

// Service is the facade that tries Meilisearch first and falls back to
// a Postgres ILIKE scan.
type Service struct {
	meili    *Meili
	fallback Fallback
}

// NewService creates a search service. meili may be nil if Meilisearch
// is not configured.
func NewService(meili *Meili, fallback Fallback) *Service {
	return &Service{meili: meili, fallback: fallback}
}

// Search tries Meilisearch if healthy, otherwise falls back to Postgres.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Source: "meilisearch"}
		}
		log.Printf("search: meilisearch error, falling back to postgres: %v", err)
	}

	items, err := s.fallback.SearchFeedbackFallback(ctx, q.DocumentID, q.Text, q.Limit)
	if err != nil {
		log.Printf("search: postgres fallback error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text, Source: "postgres"}
	}

	results := make([]Result, 0, len(items))
	for _, item := range items {
		if q.CommentType != "" && item.CommentType != q.CommentType {
			continue
		}
		if q.Component != "" && item.Component != q.Component {
			continue
		}
		results = append(results, Result{
			ID:          item.ID,
			DocumentID:  item.DocumentID,
			CommentType: item.CommentType,
			Component:   item.Component,
			Snippet:     firstNonBlank(item.ChangeFrom, item.CoordinatorComment),
		})
	}
	return Response{Results: results, Total: len(results), Query: q.Text, Source: "postgres"}
}

// IndexFeedback pushes a feedback item to Meilisearch (fire-and-forget).
func (s *Service) IndexFeedback(record FeedbackRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexFeedback(record); err != nil {
			log.Printf("search: index feedback %s: %v", record.ID, err)
		}
	}()
}

// IndexFeedbackBatch pushes a batch of feedback items to Meilisearch.
func (s *Service) IndexFeedbackBatch(records []FeedbackRecord) {
	if s.meili == nil || !s.meili.Healthy() || len(records) == 0 {
		return
	}
	go func() {
		if err := s.meili.IndexFeedbackBatch(records); err != nil {
			log.Printf("search: index feedback batch: %v", err)
		}
	}()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
