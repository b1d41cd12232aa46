// Package ingest owns the streaming connection that merges server-pushed
// incident events into the alert feed.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/gorilla/websocket"

	"incident-monitor/metrics"
	"incident-monitor/models"
	"incident-monitor/monitor/feed"
)

// Channel is one streaming connection to the alert push endpoint. It is a
// best-effort channel: no acknowledgement, no replay, messages applied in
// arrival order. The channel itself never reconnects; see Supervisor.
type Channel struct {
	conn *websocket.Conn
	feed *feed.Feed

	closeOnce sync.Once
	done      chan struct{}

	now func() time.Time
}

// Open dials {wsBase}/ws and starts reading push events into the feed.
// The caller must Close the channel on every exit path of the owning scope.
func Open(ctx context.Context, wsBase string, f *feed.Feed) (*Channel, error) {
	url := wsBase + "/ws"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to alert stream %s: %w", url, err)
	}

	c := &Channel{
		conn: conn,
		feed: f,
		done: make(chan struct{}),
		now:  time.Now,
	}

	log.Infof("alert stream connected to %s", url)
	go c.readLoop()

	return c, nil
}

// Done is closed when the read loop exits, whether through Close or through
// connection loss. Connection loss is reported, not retried.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Close tears the connection down. Idempotent; safe to call when the
// connection is already gone.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

func (c *Channel) readLoop() {
	defer close(c.done)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			log.WithError(err).Warn("alert stream closed")
			return
		}
		c.onMessage(raw)
	}
}

// onMessage parses one push payload and prepends the mapped alert to the feed.
// A malformed payload is counted and logged; the feed is left unchanged and
// the connection stays open.
func (c *Channel) onMessage(raw []byte) {
	var ev models.AlertEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		metrics.IngestParseErrorsTotal.Inc()
		log.WithError(err).Errorf("dropping malformed alert event (%d bytes)", len(raw))
		return
	}

	alert := AlertFromEvent(ev, c.now())
	c.feed.Prepend(alert)
	metrics.IngestedAlertsTotal.Inc()

	log.Infof("ingested alert %d (%s) from %s", alert.ID, alert.Type, alert.Camera)
}
