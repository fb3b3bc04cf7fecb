// Package improve is the client for the external text-improvement
// collaborator. The merge engine treats its output as a literal
// replacement span; generation itself happens entirely on the other side.
package improve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"redline/api/internal/store"
)

// Client talks to the improvement service over JSON/HTTP. A per-call
// timeout keeps a slow collaborator from stalling the rest of a merge
// batch; the caller absorbs the error as a per-item ERROR outcome.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type suggestRequest struct {
	Original      string `json:"original"`
	CommentType   string `json:"commentType"`
	Comment       string `json:"comment"`
	Justification string `json:"justification"`
}

type suggestResponse struct {
	Suggestion string `json:"suggestion"`
	Error      string `json:"error,omitempty"`
}

// Suggest asks the collaborator for a replacement for the original span.
func (c *Client) Suggest(ctx context.Context, original string, item store.FeedbackItem) (string, error) {
	payload, err := json.Marshal(suggestRequest{
		Original:      original,
		CommentType:   item.CommentType,
		Comment:       item.CoordinatorComment,
		Justification: item.CoordinatorJustification,
	})
	if err != nil {
		return "", fmt.Errorf("marshal suggest request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/suggest", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build suggest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call improvement service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("improvement service returned %d", resp.StatusCode)
	}

	var decoded suggestResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode suggest response: %w", err)
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("improvement service error: %s", decoded.Error)
	}
	if strings.TrimSpace(decoded.Suggestion) == "" {
		return "", fmt.Errorf("improvement service returned an empty suggestion")
	}
	return decoded.Suggestion, nil
}
