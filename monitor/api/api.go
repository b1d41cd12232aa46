// Package api exposes the monitor daemon's local HTTP surface: the alert
// feed, the camera inventory and report submission. Rendering state is a pure
// function of what these endpoints return.
package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"incident-monitor/models"
	"incident-monitor/monitor/alerts"
	"incident-monitor/monitor/detection"
	"incident-monitor/monitor/feed"
	"incident-monitor/monitor/report"
)

// maxEvidenceBytes caps one evidence clip read into memory.
const maxEvidenceBytes = 64 << 20

// Handlers contains the daemon's HTTP handlers.
type Handlers struct {
	feed    *feed.Feed
	orch    *report.Orchestrator
	cameras []models.Camera
}

// NewHandlers creates the handlers around the daemon's feed and orchestrator.
func NewHandlers(f *feed.Feed, o *report.Orchestrator, cameras []models.Camera) *Handlers {
	return &Handlers{feed: f, orch: o, cameras: cameras}
}

// Router assembles the daemon's gin engine.
func Router(h *Handlers) *gin.Engine {
	router := gin.Default()

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/alerts", h.ListAlerts)
		v1.POST("/alerts/:id/ack", h.AcknowledgeAlert)
		v1.POST("/alerts/:id/dismiss", h.DismissAlert)
		v1.GET("/cameras", h.ListCameras)
		v1.POST("/reports", h.SubmitReport)
	}

	return router
}

// Health reports daemon liveness and the current submission state.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"service":          "incident-monitor",
		"feed_length":      h.feed.Len(),
		"submission_state": h.orch.State(),
	})
}

// ListAlerts returns the feed snapshot, optionally filtered by type.
func (h *Handlers) ListAlerts(c *gin.Context) {
	var list []models.Alert
	if t := c.Query("type"); t != "" {
		list = h.feed.ByType(models.AlertType(t))
	} else {
		list = h.feed.Alerts()
	}
	if list == nil {
		list = []models.Alert{}
	}
	c.JSON(http.StatusOK, gin.H{"alerts": list, "count": len(list)})
}

// AcknowledgeAlert marks one feed entry as acknowledged.
func (h *Handlers) AcknowledgeAlert(c *gin.Context) {
	h.mutateAlert(c, h.feed.Acknowledge)
}

// DismissAlert marks one feed entry as dismissed.
func (h *Handlers) DismissAlert(c *gin.Context) {
	h.mutateAlert(c, h.feed.Dismiss)
}

func (h *Handlers) mutateAlert(c *gin.Context, op func(int64) bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return
	}
	if !op(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ListCameras returns the camera inventory.
func (h *Handlers) ListCameras(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cameras": h.cameras})
}

// SubmitReport accepts a multipart report (incident_type, camera_id, optional
// status, optional video evidence) and drives it through the orchestrator.
func (h *Handlers) SubmitReport(c *gin.Context) {
	cameraID, _ := strconv.Atoi(c.PostForm("camera_id"))

	draft := models.ReportDraft{
		CameraID:     cameraID,
		IncidentType: models.AlertType(c.PostForm("incident_type")),
		Status:       models.ReportStatus(c.PostForm("status")),
	}

	if file, err := c.FormFile("video"); err == nil {
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open evidence"})
			return
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxEvidenceBytes))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read evidence"})
			return
		}
		draft.Evidence = models.Evidence{
			Filename:    file.Filename,
			ContentType: file.Header.Get("Content-Type"),
			Data:        data,
		}
	}

	result, err := h.orch.Submit(c.Request.Context(), draft)
	if err != nil {
		status, body := submissionErrorResponse(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, result)
}

func submissionErrorResponse(err error) (int, gin.H) {
	var verr *report.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field}
	}
	if errors.Is(err, report.ErrSubmissionInFlight) {
		return http.StatusConflict, gin.H{"error": err.Error()}
	}
	var cerr *alerts.CreationError
	if errors.As(err, &cerr) {
		body := gin.H{"error": cerr.Message}
		if len(cerr.Fields) > 0 {
			body["detail"] = cerr.Fields
		}
		return http.StatusBadGateway, body
	}
	var derr *detection.Error
	if errors.As(err, &derr) {
		return http.StatusBadGateway, gin.H{"error": derr.Message, "upstream_status": derr.StatusCode}
	}
	var canc *report.CancelledError
	if errors.As(err, &canc) {
		// Client went away mid-submission.
		return 499, gin.H{"error": canc.Error()}
	}
	return http.StatusInternalServerError, gin.H{"error": err.Error()}
}
