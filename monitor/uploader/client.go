// Package uploader is the client for the evidence upload endpoint. Uploads
// bind evidence media to an already created alert; the client keeps no state.
package uploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"

	"incident-monitor/models"
)

// Error is a failed upload. The response status and raw body are kept for
// diagnostics; callers decide whether the failure is fatal.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("evidence upload failed (status %d): %s", e.StatusCode, e.Body)
}

// Client calls the evidence storage endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an upload client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Upload submits the evidence bound to alertID. Single attempt, no retry.
func (c *Client) Upload(ctx context.Context, alertID int64, ev models.Evidence) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", ev.Filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(ev.Data); err != nil {
		return fmt.Errorf("failed to copy evidence data: %w", err)
	}

	if err := writer.WriteField("alert_id", strconv.FormatInt(alertID, 10)); err != nil {
		return fmt.Errorf("failed to write alert_id field: %w", err)
	}

	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/aws/upload/file", &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	log.Infof("uploading evidence for alert %d: %s, %d bytes", alertID, ev.Filename, len(ev.Data))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call upload service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &Error{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return nil
}
