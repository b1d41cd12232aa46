package models

import (
	"encoding/json"
	"time"
)

// AlertType classifies an incident.
type AlertType string

const (
	AlertTypeTheft    AlertType = "theft"
	AlertTypeViolence AlertType = "violence"
	AlertTypeOther    AlertType = "other"
)

// ValidIncidentType reports whether t is one of the closed set of incident
// types a user may report.
func ValidIncidentType(t AlertType) bool {
	switch t {
	case AlertTypeTheft, AlertTypeViolence, AlertTypeOther:
		return true
	}
	return false
}

// Priority of an alert in the feed.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// AlertState tracks what the user has done with a feed entry.
type AlertState string

const (
	AlertStateNew          AlertState = "new"
	AlertStateAcknowledged AlertState = "acknowledged"
	AlertStateDismissed    AlertState = "dismissed"
)

// ReportStatus is the status attached to a user-initiated report.
type ReportStatus string

const (
	ReportStatusPending  ReportStatus = "pending"
	ReportStatusUrgent   ReportStatus = "urgent"
	ReportStatusVerified ReportStatus = "verified"
)

// Alert is a record of a detected or manually reported security incident,
// as shown in the feed.
type Alert struct {
	ID          int64      `json:"id"`
	Type        AlertType  `json:"type"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	OccurredAt  time.Time  `json:"occurred_at"`
	Priority    Priority   `json:"priority"`
	Location    string     `json:"location"`
	Camera      string     `json:"camera"`
	MediaURL    string     `json:"media_url"`
	State       AlertState `json:"state"`
}

// Camera is one entry of the camera inventory shown on the home screen.
type Camera struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Evidence is binary media submitted as proof tied to an alert.
type Evidence struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ReportDraft is the transient state of one report attempt. It is created when
// the user opens the report flow, consumed by exactly one submission, and
// discarded afterwards. Never persisted.
type ReportDraft struct {
	CameraID     int
	IncidentType AlertType
	Status       ReportStatus
	CreatedAt    time.Time
	Evidence     Evidence
}

// DetectionResult is the inference service verdict on a piece of evidence.
type DetectionResult struct {
	Prediction          string  `json:"prediction"`
	AlertType           string  `json:"alert_type"`
	Confidence          float64 `json:"confidence"`
	ClipDurationSeconds float64 `json:"clip_duration_seconds"`
	AlertStatus         string  `json:"alert_status"`
}

// PredictionNormal is the verdict that suppresses evidence upload.
const PredictionNormal = "normal"

// AlertEvent is a single inbound push message on the streaming channel.
// Every field is optional; ingest.AlertFromEvent supplies the fallbacks.
type AlertEvent struct {
	AlertID      int64     `json:"alert_id,omitempty"`
	IncidentType AlertType `json:"incident_type,omitempty"`
	Title        string    `json:"title,omitempty"`
	Message      string    `json:"message,omitempty"`
	Priority     Priority  `json:"priority,omitempty"`
	Location     string    `json:"location,omitempty"`
	CameraID     string    `json:"camera_id,omitempty"`
	MediaURL     string    `json:"media_url,omitempty"`
}

// AlertCreateRequest is the body of POST /alerts/.
type AlertCreateRequest struct {
	EventType AlertType    `json:"event_type"`
	CameraID  int          `json:"camera_id"`
	Status    ReportStatus `json:"status"`
	SentAt    time.Time    `json:"sent_at"`
}

// AlertRecord is a stored alert as returned by the alert service.
type AlertRecord struct {
	AlertID   int64        `json:"alert_id"`
	CameraID  int          `json:"camera_id"`
	EventType AlertType    `json:"event_type"`
	Status    ReportStatus `json:"status"`
	SentAt    time.Time    `json:"sent_at"`
	Timestamp time.Time    `json:"timestamp"`
}

// FieldError is one entry of a structured validation error list. The loc path
// and ordering are exactly what the backend returned.
type FieldError struct {
	Loc     []string `json:"loc"`
	Message string   `json:"msg"`
}

// ErrorEnvelope is the error body shape of the alert service: detail is either
// a plain string or an ordered list of FieldError.
type ErrorEnvelope struct {
	Detail json.RawMessage `json:"detail"`
}

// Decode splits the envelope into a message and an optional field error list.
// Returns ok=false when the body is not an envelope at all.
func (e *ErrorEnvelope) Decode() (msg string, fields []FieldError, ok bool) {
	if len(e.Detail) == 0 {
		return "", nil, false
	}
	if err := json.Unmarshal(e.Detail, &msg); err == nil {
		return msg, nil, true
	}
	if err := json.Unmarshal(e.Detail, &fields); err == nil && len(fields) > 0 {
		return fields[0].Message, fields, true
	}
	return "", nil, false
}
