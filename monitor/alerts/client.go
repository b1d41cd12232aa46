// Package alerts is the client for the alert-creation endpoint of the
// monitoring backend.
package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apex/log"

	"incident-monitor/models"
)

// CreationError is a rejected alert creation. Fields, when present, preserve
// the backend's ordering.
type CreationError struct {
	StatusCode int
	Message    string
	Fields     []models.FieldError
}

func (e *CreationError) Error() string {
	if len(e.Fields) > 0 {
		msgs := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			msgs[i] = fmt.Sprintf("%s: %s", strings.Join(f.Loc, "."), f.Message)
		}
		return fmt.Sprintf("alert creation rejected (status %d): %s", e.StatusCode, strings.Join(msgs, "; "))
	}
	return fmt.Sprintf("alert creation failed (status %d): %s", e.StatusCode, e.Message)
}

// Client calls the alert service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an alert service client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateAlert issues POST /alerts/ and returns the created alert id.
//
// A non-success response is parsed for the structured error envelope; field
// errors are surfaced in backend order. A success response without an
// alert_id is treated as a creation failure.
func (c *Client) CreateAlert(ctx context.Context, req models.AlertCreateRequest) (int64, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal alert request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/alerts/", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	log.Infof("creating alert: camera %d, type %s", req.CameraID, req.EventType)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("failed to call alert service: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read alert service response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, creationErrorFromBody(resp.StatusCode, respBody)
	}

	var record models.AlertRecord
	if err := json.Unmarshal(respBody, &record); err != nil {
		return 0, fmt.Errorf("failed to decode alert service response: %w", err)
	}
	if record.AlertID == 0 {
		return 0, &CreationError{
			StatusCode: resp.StatusCode,
			Message:    "alert service response missing alert_id",
		}
	}

	return record.AlertID, nil
}

// creationErrorFromBody maps an error response to a CreationError, keeping
// the backend message(s) verbatim when the envelope parses.
func creationErrorFromBody(status int, body []byte) *CreationError {
	var env models.ErrorEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		if msg, fields, ok := env.Decode(); ok {
			return &CreationError{StatusCode: status, Message: msg, Fields: fields}
		}
	}
	return &CreationError{
		StatusCode: status,
		Message:    fmt.Sprintf("alert creation failed with status %d", status),
	}
}
