package ingest

import (
	"time"

	"incident-monitor/models"
)

// Fallbacks applied by AlertFromEvent when an inbound field is missing.
// They form the visible contract of the mapping; a server that omits a field
// gets exactly these values, nothing implicit.
const (
	FallbackTitle       = "New Incident"
	FallbackDescription = "Model detected an incident."
	FallbackLocation    = "Unknown Location"
	FallbackCamera      = "CAM-XX"
	FallbackMediaURL    = "https://placeholder.com/image"
)

// FallbackType is the incident type assumed for untyped events.
const FallbackType = models.AlertTypeTheft

// FallbackPriority is the priority assumed for events the server did not
// prioritize.
const FallbackPriority = models.PriorityCritical

// AlertFromEvent maps one inbound push event to a feed alert. The mapping is
// total: every Alert field is assigned, from the event when present, from the
// fallback otherwise.
//
//	ID          <- alert_id,      else millisecond timestamp of receipt
//	Type        <- incident_type, else FallbackType
//	Title       <- title,         else FallbackTitle
//	Description <- message,       else FallbackDescription
//	Priority    <- priority,      else FallbackPriority
//	Location    <- location,      else FallbackLocation
//	Camera      <- camera_id,     else FallbackCamera
//	MediaURL    <- media_url,     else FallbackMediaURL
//	OccurredAt  <- time of receipt
func AlertFromEvent(ev models.AlertEvent, receivedAt time.Time) models.Alert {
	a := models.Alert{
		ID:          ev.AlertID,
		Type:        ev.IncidentType,
		Title:       ev.Title,
		Description: ev.Message,
		OccurredAt:  receivedAt,
		Priority:    ev.Priority,
		Location:    ev.Location,
		Camera:      ev.CameraID,
		MediaURL:    ev.MediaURL,
		State:       models.AlertStateNew,
	}

	if a.ID == 0 {
		a.ID = receivedAt.UnixMilli()
	}
	if a.Type == "" {
		a.Type = FallbackType
	}
	if a.Title == "" {
		a.Title = FallbackTitle
	}
	if a.Description == "" {
		a.Description = FallbackDescription
	}
	if a.Priority == "" {
		a.Priority = FallbackPriority
	}
	if a.Location == "" {
		a.Location = FallbackLocation
	}
	if a.Camera == "" {
		a.Camera = FallbackCamera
	}
	if a.MediaURL == "" {
		a.MediaURL = FallbackMediaURL
	}
	return a
}
