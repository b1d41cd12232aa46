// Package feed holds the ordered, user-visible alert feed. The feed is owned
// by the display layer: the ingestion channel prepends, UI actions mutate the
// state of individual entries, and nothing ever removes or reorders existing
// entries.
package feed

import (
	"sync"

	"incident-monitor/models"
)

// Feed is an ordered sequence of alerts, most recent first.
type Feed struct {
	mu     sync.RWMutex
	alerts []models.Alert
}

// New creates an empty feed, optionally seeded with initial alerts
// (head = most recent).
func New(initial ...models.Alert) *Feed {
	f := &Feed{}
	f.alerts = append(f.alerts, initial...)
	return f
}

// Prepend inserts a new alert at the head of the feed.
func (f *Feed) Prepend(a models.Alert) {
	if a.State == "" {
		a.State = models.AlertStateNew
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append([]models.Alert{a}, f.alerts...)
}

// Len returns the number of alerts in the feed.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.alerts)
}

// Head returns the most recent alert.
func (f *Feed) Head() (models.Alert, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.alerts) == 0 {
		return models.Alert{}, false
	}
	return f.alerts[0], true
}

// Alerts returns a snapshot copy of the feed, most recent first.
func (f *Feed) Alerts() []models.Alert {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]models.Alert, len(f.alerts))
	copy(out, f.alerts)
	return out
}

// ByType returns a snapshot of the alerts matching the given type,
// preserving feed order.
func (f *Feed) ByType(t models.AlertType) []models.Alert {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []models.Alert
	for _, a := range f.alerts {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

// Acknowledge marks the alert with the given id as acknowledged.
// Returns false when no such alert exists.
func (f *Feed) Acknowledge(id int64) bool {
	return f.setState(id, models.AlertStateAcknowledged)
}

// Dismiss marks the alert with the given id as dismissed.
// Returns false when no such alert exists.
func (f *Feed) Dismiss(id int64) bool {
	return f.setState(id, models.AlertStateDismissed)
}

func (f *Feed) setState(id int64, state models.AlertState) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.alerts {
		if f.alerts[i].ID == id {
			f.alerts[i].State = state
			return true
		}
	}
	return false
}
