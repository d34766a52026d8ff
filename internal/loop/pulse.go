// Package loop drives live sessions: a once-a-second pulse advances every
// session's clocks, and a dispatcher applies capture frames.
package loop

import (
	"context"
	"log/slog"
	"time"

	"debatecoach/agent/internal/orchestrator"
)

// Source lists the sessions to pulse.
type Source interface {
	Sessions() []*orchestrator.Session
}

type Pulser struct {
	src      Source
	interval time.Duration
	log      *slog.Logger
}

func NewPulser(src Source, log *slog.Logger) *Pulser {
	if log == nil {
		log = slog.Default()
	}
	return &Pulser{src: src, interval: time.Second, log: log}
}

// Run ticks every session once per interval until ctx is done.
func (p *Pulser) Run(ctx context.Context) {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	p.log.Info("pulse loop started", "interval", p.interval)
	for {
		select {
		case <-ctx.Done():
			p.log.Info("pulse loop stopped")
			return
		case <-t.C:
			p.TickAll()
		}
	}
}

// TickAll advances each session by one second and returns how many were ticked.
func (p *Pulser) TickAll() int {
	start := time.Now()
	sessions := p.src.Sessions()
	for _, s := range sessions {
		s.Tick()
	}
	metricPulseDuration.Observe(time.Since(start).Seconds())
	gaugeSessions.Set(float64(len(sessions)))
	return len(sessions)
}
