// Package handlers exposes the alert service HTTP surface: alert creation,
// the push stream, and evidence upload.
package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"incident-monitor/alertapi/database"
	"incident-monitor/alertapi/rabbitmq"
	ws "incident-monitor/alertapi/websocket"
	"incident-monitor/metrics"
	"incident-monitor/models"
)

const maxUploadBytes = 64 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handlers holds the dependencies shared by all routes.
type Handlers struct {
	db        *database.Database
	hub       *ws.Hub
	publisher *rabbitmq.Publisher
}

// New creates the handler set. publisher may be nil when no broker is
// configured.
func New(db *database.Database, hub *ws.Hub, publisher *rabbitmq.Publisher) *Handlers {
	return &Handlers{db: db, hub: hub, publisher: publisher}
}

// alertCreateBody mirrors models.AlertCreateRequest with pointer fields so
// missing keys are distinguishable from zero values during validation.
type alertCreateBody struct {
	EventType *models.AlertType    `json:"event_type"`
	CameraID  *int                 `json:"camera_id"`
	Status    *models.ReportStatus `json:"status"`
	SentAt    *time.Time           `json:"sent_at"`
}

func fieldError(field, msg string) models.FieldError {
	return models.FieldError{Loc: []string{"body", field}, Message: msg}
}

// validate checks fields in declaration order so the error list is stable.
func (b *alertCreateBody) validate() []models.FieldError {
	var errs []models.FieldError
	if b.EventType == nil {
		errs = append(errs, fieldError("event_type", "field required"))
	} else if !models.ValidIncidentType(*b.EventType) {
		errs = append(errs, fieldError("event_type", fmt.Sprintf("value is not a valid enumeration member; permitted: 'theft', 'violence', 'other', got %q", *b.EventType)))
	}
	if b.CameraID == nil {
		errs = append(errs, fieldError("camera_id", "field required"))
	} else if *b.CameraID <= 0 {
		errs = append(errs, fieldError("camera_id", "ensure this value is greater than 0"))
	}
	if b.Status == nil {
		errs = append(errs, fieldError("status", "field required"))
	} else {
		switch *b.Status {
		case models.ReportStatusPending, models.ReportStatusUrgent, models.ReportStatusVerified:
		default:
			errs = append(errs, fieldError("status", fmt.Sprintf("value is not a valid enumeration member; permitted: 'pending', 'urgent', 'verified', got %q", *b.Status)))
		}
	}
	if b.SentAt == nil {
		errs = append(errs, fieldError("sent_at", "field required"))
	}
	return errs
}

// CreateAlert handles POST /alerts/. Validation failures answer 422 with an
// ordered detail list; success persists the alert, broadcasts it on the push
// channel and publishes it to the broker.
func (h *Handlers) CreateAlert(c *gin.Context) {
	var body alertCreateBody
	if err := json.NewDecoder(c.Request.Body).Decode(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"detail": []models.FieldError{fieldError("", "value is not a valid dict")},
		})
		return
	}

	if errs := body.validate(); len(errs) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": errs})
		return
	}

	req := models.AlertCreateRequest{
		EventType: *body.EventType,
		CameraID:  *body.CameraID,
		Status:    *body.Status,
		SentAt:    *body.SentAt,
	}

	alertID, err := h.db.InsertAlert(c.Request.Context(), req)
	if err != nil {
		log.Errorf("Failed to insert alert: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to create alert"})
		return
	}

	rec := models.AlertRecord{
		AlertID:   alertID,
		CameraID:  req.CameraID,
		EventType: req.EventType,
		Status:    req.Status,
		SentAt:    req.SentAt,
		Timestamp: time.Now().UTC(),
	}

	h.hub.BroadcastAlert(models.AlertEvent{
		AlertID:      rec.AlertID,
		IncidentType: rec.EventType,
		CameraID:     fmt.Sprintf("CAM-%02d", rec.CameraID),
	})

	if err := h.publisher.PublishAlert(rec); err != nil {
		log.Warnf("Failed to publish alert %d: %v", rec.AlertID, err)
	}

	metrics.AlertsCreatedTotal.Inc()
	c.JSON(http.StatusOK, rec)
}

// ListAlerts handles GET /alerts/ returning the most recent records.
func (h *Handlers) ListAlerts(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"detail": []models.FieldError{{Loc: []string{"query", "limit"}, Message: "value is not a valid integer"}},
			})
			return
		}
		limit = n
	}

	alerts, err := h.db.GetLastAlerts(c.Request.Context(), limit)
	if err != nil {
		log.Errorf("Failed to list alerts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to list alerts"})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// ServeWS handles GET /ws, upgrading the connection and attaching it to the
// hub. The stream is push-only.
func (h *Handlers) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("Failed to upgrade websocket: %v", err)
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

// UploadFile handles POST /aws/upload/file: multipart file plus alert_id form
// field. The stored key is uploads/<uuid><ext> and the response carries the
// retrieval URL.
func (h *Handlers) UploadFile(c *gin.Context) {
	alertIDRaw := c.PostForm("alert_id")
	alertID, err := strconv.ParseInt(alertIDRaw, 10, 64)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"detail": []models.FieldError{fieldError("alert_id", "value is not a valid integer")},
		})
		return
	}

	rec, err := h.db.GetAlert(c.Request.Context(), alertID)
	if err != nil {
		log.Errorf("Failed to look up alert %d: %v", alertID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to store file"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Alert not found"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"detail": []models.FieldError{fieldError("file", "field required")},
		})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "File too large"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to store file"})
		return
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to store file"})
		return
	}

	key := "uploads/" + uuid.New().String() + filepath.Ext(fileHeader.Filename)
	mediaType := fileHeader.Header.Get("Content-Type")
	if err := h.db.SaveMedia(c.Request.Context(), alertID, key, mediaType, content); err != nil {
		log.Errorf("Failed to save media for alert %d: %v", alertID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to store file"})
		return
	}

	log.WithFields(log.Fields{
		"alert_id": alertID,
		"key":      key,
		"bytes":    len(content),
	}).Info("Stored evidence file")
	c.JSON(http.StatusOK, gin.H{"url": key})
}

// GetFileURL handles GET /aws/upload/file?alert_id= returning the stored key
// for the alert's evidence, or 404 when none was uploaded.
func (h *Handlers) GetFileURL(c *gin.Context) {
	alertID, err := strconv.ParseInt(c.Query("alert_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"detail": []models.FieldError{{Loc: []string{"query", "alert_id"}, Message: "value is not a valid integer"}},
		})
		return
	}

	url, err := h.db.GetMediaURL(c.Request.Context(), alertID)
	if err != nil {
		log.Errorf("Failed to look up media for alert %d: %v", alertID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to look up file"})
		return
	}
	if url == "" {
		c.JSON(http.StatusNotFound, gin.H{"detail": "File not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Health reports service liveness plus hub statistics.
func (h *Handlers) Health(c *gin.Context) {
	clients, lastID := h.hub.GetStats()
	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"connected_clients": clients,
		"last_alert_id":     lastID,
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
	})
}
