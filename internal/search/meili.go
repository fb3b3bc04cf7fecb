package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxFeedback = "redline_feedback"

// Meili indexes and searches feedback items via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the feedback index.
// The instance starts unhealthy if the initial connection fails; the
// background monitor flips it back when the server recovers.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxFeedback,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxFeedback, err)
	}

	index := m.client.Index(idxFeedback)
	filterable := []interface{}{"documentId", "commentType", "component", "resolved"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs for %s: %v", idxFeedback, err)
	}
	searchable := []string{"changeFrom", "changeTo", "comment", "justification", "component"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs for %s: %v", idxFeedback, err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the feedback index.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 50
	}

	sr := &meili.SearchRequest{
		Limit:                 limit,
		Offset:                int64(q.Offset),
		AttributesToHighlight: []string{"*"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
	}

	var filters []string
	if q.DocumentID != "" {
		filters = append(filters, fmt.Sprintf("documentId = %q", q.DocumentID))
	}
	if q.CommentType != "" {
		filters = append(filters, fmt.Sprintf("commentType = %q", q.CommentType))
	}
	if q.Component != "" {
		filters = append(filters, fmt.Sprintf("component = %q", q.Component))
	}
	if len(filters) > 0 {
		sr.Filter = filters
	}

	resp, err := m.client.Index(idxFeedback).Search(q.Text, sr)
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]Result, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, hitToResult(hit))
	}
	return results, int(resp.EstimatedTotalHits), nil
}

func hitToResult(hit meili.Hit) Result {
	r := Result{
		ID:          decodeString(hit, "id"),
		DocumentID:  decodeString(hit, "documentId"),
		CommentType: decodeString(hit, "commentType"),
		Component:   decodeString(hit, "component"),
	}
	r.Snippet = firstNonBlank(
		decodeFormattedString(hit, "changeFrom"),
		decodeFormattedString(hit, "comment"),
		decodeString(hit, "changeFrom"),
		decodeString(hit, "comment"),
	)
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return strings.TrimSpace(formatted[key])
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexFeedback adds or updates a feedback item in the search index.
func (m *Meili) IndexFeedback(record FeedbackRecord) error {
	_, err := m.client.Index(idxFeedback).AddDocuments([]FeedbackRecord{record}, nil)
	return err
}

// IndexFeedbackBatch bulk-indexes feedback items.
func (m *Meili) IndexFeedbackBatch(records []FeedbackRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxFeedback).AddDocuments(records, nil)
	return err
}

// DeleteFeedback removes a feedback item from the search index.
func (m *Meili) DeleteFeedback(id string) error {
	_, err := m.client.Index(idxFeedback).DeleteDocument(id, nil)
	return err
}
