package jobs

import (
	"context"
	"time"

	"github.com/phuslu/log"
)

const maxBackoff = time.Minute

// Drainer runs one batch of queued work and reports how much it handled.
type Drainer interface {
	Drain(ctx context.Context) (int, error)
}

// Poller drives a Drainer. A batch that found work is followed at once by
// another; an empty batch waits one interval; failures back off
// exponentially up to maxBackoff.
type Poller struct {
	drainer  Drainer
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewPoller(drainer Drainer, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{
		drainer:  drainer,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start blocks until ctx is cancelled or Stop is called. The first batch
// runs immediately.
func (p *Poller) Start(ctx context.Context) {
	defer close(p.done)

	log.Info().Dur("poll_interval", p.interval).Msg("ingest poller started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("ingest poller stopped: context cancelled")
			return
		case <-p.stop:
			log.Info().Msg("ingest poller stopped")
			return
		case <-timer.C:
		}

		n, err := p.drainer.Drain(ctx)
		switch {
		case err != nil:
			failures++
			wait := p.backoff(failures)
			log.Error().Err(err).Int("failures", failures).Dur("retry_in", wait).Msg("ingest batch failed")
			timer.Reset(wait)
		case n > 0:
			failures = 0
			timer.Reset(0)
		default:
			failures = 0
			timer.Reset(p.interval)
		}
	}
}

func (p *Poller) backoff(failures int) time.Duration {
	wait := p.interval
	for i := 1; i < failures && wait < maxBackoff; i++ {
		wait *= 2
	}
	return min(wait, maxBackoff)
}

// Stop ends the loop and waits for the running batch to finish.
func (p *Poller) Stop() {
	close(p.stop)
	<-p.done
}
