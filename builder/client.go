// Package builder is the client side of the external build service: it hands
// a source tarball reference over and gets no answer back beyond acceptance.
// The builder reports lifecycle changes later through the internal build
// status route.
package builder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNotConfigured is returned when no builder endpoint is set.
var ErrNotConfigured = errors.New("builder endpoint not configured")

// Job is the build work handed to the builder service.
type Job struct {
	BuildID    string `json:"buildId"`
	PluginID   string `json:"pluginId"`
	Version    string `json:"version"`
	TarballURL string `json:"tarballUrl"`
	Subpath    string `json:"subpath,omitempty"`
}

type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

func NewClient(endpoint, token string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		token:    token,
		http:     &http.Client{Timeout: timeout},
	}
}

// Trigger submits the job to the builder. Callers dispatch this off the
// request path; an error here leaves the build record pending.
func (c *Client) Trigger(ctx context.Context, job Job) error {
	if c.endpoint == "" {
		return ErrNotConfigured
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal build job: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.endpoint,
		bytes.NewReader(payload),
	)
	if err != nil {
		return fmt.Errorf("create builder request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch build job %s: %w", job.BuildID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf(
			"builder rejected job %s with status %d",
			job.BuildID,
			resp.StatusCode,
		)
	}

	return nil
}
