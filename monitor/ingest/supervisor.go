package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/apex/log"

	"incident-monitor/metrics"
	"incident-monitor/monitor/feed"
)

// Supervisor keeps a Channel open across connection loss by re-dialing with
// exponential backoff. It wraps the channel from the outside: the parse and
// merge logic stays oblivious to reconnection.
type Supervisor struct {
	wsBase string
	feed   *feed.Feed

	minBackoff time.Duration
	maxBackoff time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewSupervisor creates a supervisor for the given stream endpoint.
func NewSupervisor(wsBase string, f *feed.Feed, minBackoff, maxBackoff time.Duration) *Supervisor {
	if minBackoff <= 0 {
		minBackoff = time.Second
	}
	if maxBackoff < minBackoff {
		maxBackoff = minBackoff
	}
	return &Supervisor{
		wsBase:     wsBase,
		feed:       f,
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
		stopChan:   make(chan struct{}),
	}
}

// Start launches the supervision loop.
func (s *Supervisor) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop closes the current connection, stops reconnecting and waits for the
// loop to finish.
func (s *Supervisor) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

func (s *Supervisor) run() {
	defer s.wg.Done()

	backoff := s.minBackoff
	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		ch, err := Open(context.Background(), s.wsBase, s.feed)
		if err != nil {
			metrics.ChannelReconnectsTotal.Inc()
			log.WithError(err).Warnf("alert stream dial failed, retrying in %s", backoff)
			select {
			case <-s.stopChan:
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > s.maxBackoff {
				backoff = s.maxBackoff
			}
			continue
		}

		backoff = s.minBackoff

		select {
		case <-s.stopChan:
			ch.Close()
			<-ch.Done()
			return
		case <-ch.Done():
			ch.Close()
			metrics.ChannelReconnectsTotal.Inc()
			log.Warn("alert stream lost, reconnecting")
		}
	}
}
