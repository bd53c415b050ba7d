// Package workerclient is the HTTP client workers use to report job
// completion or failure back to the API's worker-facing end endpoint.
package workerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spectraml/spectrajobs/pkg/models"
)

// EndReport carries the execution window of a finished or failed job.
type EndReport struct {
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Client reports end actions to the job API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a Client. token is the shared worker callback token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// EndJob reports a COMPLETE or ERROR outcome for jobID. The server computes
// the execution duration from the reported window.
func (c *Client) EndJob(ctx context.Context, jobID uuid.UUID, action models.EndAction, report EndReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal end report: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/worker/jobs/%s/end/%s", c.baseURL, jobID, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build end request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post end report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("end report rejected: status %d", resp.StatusCode)
	}
	return nil
}
