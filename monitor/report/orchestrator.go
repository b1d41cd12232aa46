// Package report drives a manual incident report through alert creation,
// detection and conditional evidence upload as one logical operation.
package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"

	"incident-monitor/metrics"
	"incident-monitor/models"
)

// State of one submission attempt.
type State string

const (
	StateIdle          State = "idle"
	StateValidating    State = "validating"
	StateCreatingAlert State = "creating_alert"
	StateDetecting     State = "detecting"
	StateUploading     State = "uploading"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// UploadOutcome of the conditional evidence upload step.
type UploadOutcome string

const (
	UploadSuccess UploadOutcome = "success"
	UploadFailed  UploadOutcome = "failed"
	UploadSkipped UploadOutcome = "skipped"
)

// ErrSubmissionInFlight is returned when Submit is called while a previous
// attempt has not reached a terminal state.
var ErrSubmissionInFlight = errors.New("a report submission is already in flight")

// ValidationError is a local, pre-network rejection of a draft.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid report: %s %s", e.Field, e.Message)
}

// CancelledError marks a submission aborted by context cancellation,
// recording the step it was cancelled in.
type CancelledError struct {
	State State
	Err   error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("submission cancelled during %s: %v", e.State, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

// AlertCreator creates the alert record and returns its id.
type AlertCreator interface {
	CreateAlert(ctx context.Context, req models.AlertCreateRequest) (int64, error)
}

// Detector obtains a verdict for the evidence.
type Detector interface {
	Detect(ctx context.Context, cameraID int, ev models.Evidence) (*models.DetectionResult, error)
}

// Uploader stores the evidence bound to an alert id.
type Uploader interface {
	Upload(ctx context.Context, alertID int64, ev models.Evidence) error
}

// SubmissionResult is the composite outcome of a submission that reached Done.
type SubmissionResult struct {
	AlertID       int64                   `json:"alert_id"`
	Detection     *models.DetectionResult `json:"detection"`
	UploadOutcome UploadOutcome           `json:"upload_outcome"`
	UploadWarning string                  `json:"upload_warning,omitempty"`
}

// Orchestrator runs one submission attempt at a time through the state
// machine Idle -> Validating -> CreatingAlert -> Detecting -> (Uploading) ->
// Done | Failed. UI rendering is meant to be a pure function of the observed
// state; the orchestrator never touches the alert feed.
type Orchestrator struct {
	alerts   AlertCreator
	detector Detector
	uploader Uploader

	mu    sync.Mutex
	state State

	// OnTransition, when set, observes every state change.
	OnTransition func(State)

	// OnDetection, when set, receives the verdict as soon as it arrives,
	// before the upload decision is evaluated.
	OnDetection func(models.DetectionResult)
}

// New creates an orchestrator in the Idle state.
func New(alerts AlertCreator, detector Detector, uploader Uploader) *Orchestrator {
	return &Orchestrator{
		alerts:   alerts,
		detector: detector,
		uploader: uploader,
		state:    StateIdle,
	}
}

// State returns the current state of the machine.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) transition(s State) {
	o.mu.Lock()
	o.state = s
	cb := o.OnTransition
	o.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

// Submit runs one report attempt to a terminal state. The draft is consumed
// exactly once; a terminal state returns the machine to Idle so the next
// Submit starts fresh. A second Submit while the machine is busy fails
// immediately with ErrSubmissionInFlight.
//
// ValidationError, alert-creation and detection errors are fatal to the
// attempt. An upload failure is not: the alert stays created, the machine
// reaches Done and the failure is attached as a warning.
func (o *Orchestrator) Submit(ctx context.Context, draft models.ReportDraft) (*SubmissionResult, error) {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	o.state = StateValidating
	cb := o.OnTransition
	o.mu.Unlock()
	if cb != nil {
		cb(StateValidating)
	}

	res, err := o.run(ctx, draft)
	if err != nil {
		o.transition(StateFailed)
		metrics.SubmissionsTotal.WithLabelValues("failed").Inc()
	} else {
		o.transition(StateDone)
		metrics.SubmissionsTotal.WithLabelValues("done").Inc()
	}

	// Terminal; the next Submit starts an independent machine.
	o.transition(StateIdle)
	return res, err
}

func (o *Orchestrator) run(ctx context.Context, draft models.ReportDraft) (*SubmissionResult, error) {
	if err := validate(draft); err != nil {
		return nil, err
	}

	status := draft.Status
	if status == "" {
		status = models.ReportStatusPending
	}
	sentAt := draft.CreatedAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}

	// CreatingAlert
	o.transition(StateCreatingAlert)
	if err := ctx.Err(); err != nil {
		return nil, &CancelledError{State: StateCreatingAlert, Err: err}
	}
	alertID, err := o.alerts.CreateAlert(ctx, models.AlertCreateRequest{
		EventType: draft.IncidentType,
		CameraID:  draft.CameraID,
		Status:    status,
		SentAt:    sentAt,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, &CancelledError{State: StateCreatingAlert, Err: ctx.Err()}
		}
		return nil, err
	}
	log.Infof("alert %d created for camera %d", alertID, draft.CameraID)

	// Detecting
	o.transition(StateDetecting)
	if err := ctx.Err(); err != nil {
		return nil, &CancelledError{State: StateDetecting, Err: err}
	}
	verdict, err := o.detector.Detect(ctx, draft.CameraID, draft.Evidence)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &CancelledError{State: StateDetecting, Err: ctx.Err()}
		}
		return nil, err
	}
	if o.OnDetection != nil {
		o.OnDetection(*verdict)
	}

	result := &SubmissionResult{
		AlertID:   alertID,
		Detection: verdict,
	}

	// Upload decision: the alert record stands regardless of what happens
	// to the evidence from here on.
	if verdict.Prediction == models.PredictionNormal {
		result.UploadOutcome = UploadSkipped
		return result, nil
	}

	o.transition(StateUploading)
	if err := ctx.Err(); err != nil {
		return nil, &CancelledError{State: StateUploading, Err: err}
	}
	if err := o.uploader.Upload(ctx, alertID, draft.Evidence); err != nil {
		if ctx.Err() != nil {
			return nil, &CancelledError{State: StateUploading, Err: ctx.Err()}
		}
		metrics.UploadWarningsTotal.Inc()
		log.WithError(err).Warnf("evidence upload failed, alert %d kept without media", alertID)
		result.UploadOutcome = UploadFailed
		result.UploadWarning = err.Error()
		return result, nil
	}

	result.UploadOutcome = UploadSuccess
	return result, nil
}

func validate(draft models.ReportDraft) error {
	if draft.IncidentType == "" {
		return &ValidationError{Field: "incident_type", Message: "is required"}
	}
	if !models.ValidIncidentType(draft.IncidentType) {
		return &ValidationError{Field: "incident_type", Message: fmt.Sprintf("%q is not a recognized incident type", draft.IncidentType)}
	}
	if draft.CameraID <= 0 {
		return &ValidationError{Field: "camera_id", Message: "a camera must be selected"}
	}
	return nil
}
