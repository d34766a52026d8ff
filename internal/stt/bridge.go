package stt

import (
	"context"
	"errors"
	"log/slog"

	"debatecoach/agent/internal/capture"
	"debatecoach/agent/internal/transcript"
)

var ErrNotConfigured = errors.New("stt: deepgram api key not configured")

// Bridge opens one Deepgram connection per capture socket.
type Bridge struct {
	cfg    DGConfig
	apiKey string
	log    *slog.Logger
}

func NewBridge(cfg DGConfig, apiKey string, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{cfg: cfg, apiKey: apiKey, log: log}
}

func (b *Bridge) Open(ctx context.Context, sessionID string) (capture.Stream, error) {
	if b.apiKey == "" {
		return nil, ErrNotConfigured
	}
	d := NewDeepgramConn(ctx, b.cfg, b.apiKey, b.log.With("session_id", sessionID))
	d.Start()
	gaugeSessions.Inc()
	return &stream{d: d}, nil
}

type stream struct{ d *DeepgramConn }

func (s *stream) Send(pcm []byte) bool {
	metricAudioBytes.Add(float64(len(pcm)))
	metricFrames.Inc()
	if !s.d.Send(pcm) {
		metricDrops.Inc()
		return false
	}
	return true
}

func (s *stream) Fragments() <-chan transcript.Fragment { return s.d.Fragments }

func (s *stream) Close() {
	s.d.Close()
	gaugeSessions.Dec()
}
