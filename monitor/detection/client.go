// Package detection is the client for the external inference service that
// issues verdicts on evidence media.
package detection

import (
	"bytes"
	"context"
	"encoding/json"
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

// Error is a failed detection call, transport or upstream. Status and message
// are preserved for the caller.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("detection failed (status %d): %s", e.StatusCode, e.Message)
}

// Client calls the inference endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a detection client. The timeout should be generous:
// the service runs a model over the whole clip before answering.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Detect submits the evidence clip and camera id to the inference service and
// blocks until the verdict arrives.
func (c *Client) Detect(ctx context.Context, cameraID int, ev models.Evidence) (*models.DetectionResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("video", ev.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(ev.Data); err != nil {
		return nil, fmt.Errorf("failed to copy evidence data: %w", err)
	}

	if err := writer.WriteField("camera_id", strconv.Itoa(cameraID)); err != nil {
		return nil, fmt.Errorf("failed to write camera_id field: %w", err)
	}

	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/model/api/v1/detect", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	log.Infof("sending evidence to detection service: camera %d, %d bytes", cameraID, len(ev.Data))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &Error{
			StatusCode: resp.StatusCode,
			Message:    detailMessage(body, resp.StatusCode),
		}
	}

	var result models.DetectionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode detection response: %w", err)
	}

	log.Infof("detection verdict: %s (%s, confidence %.2f)", result.Prediction, result.AlertType, result.Confidence)
	return &result, nil
}

func detailMessage(body []byte, status int) string {
	var env models.ErrorEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		if msg, _, ok := env.Decode(); ok {
			return msg
		}
	}
	if len(body) > 0 {
		return string(body)
	}
	return fmt.Sprintf("detection service returned status %d", status)
}
