package loop

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"debatecoach/agent/internal/capture"
	"debatecoach/agent/internal/orchestrator"
	"debatecoach/agent/internal/store"
)

// Dispatcher applies capture frames to their sessions.
type Dispatcher struct {
	reg   *capture.Registry
	store *store.Store
	log   *slog.Logger
}

func New(reg *capture.Registry, st *store.Store, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{reg: reg, store: st, log: log}
}

// OnMessage processes a capture message and may reply to the client.
func (d *Dispatcher) OnMessage(sessionID string, msg capture.Message) {
	sess := d.store.GetSession(sessionID)
	if sess == nil {
		metricDispatch.WithLabelValues(msg.Type, "unknown_session").Inc()
		return
	}

	var err error
	switch msg.Type {
	case capture.TypeFragment:
		err = sess.AddFragment(msg.Fragment())
	case capture.TypePOIResponse:
		_, err = sess.RespondPOI(msg.Accept)
	default:
		err = errors.New("unknown message type")
	}
	if err == nil {
		metricDispatch.WithLabelValues(msg.Type, "ok").Inc()
		return
	}

	result := "rejected"
	var te *orchestrator.TransitionError
	if errors.As(err, &te) {
		result = "invalid_transition"
	}
	metricDispatch.WithLabelValues(msg.Type, result).Inc()
	d.log.Debug("capture message rejected", "session_id", sessionID, "type", msg.Type, "seq", msg.Seq, "error", err)
	d.store.AppendEvent(sessionID, "capture_rejected", map[string]any{"type": msg.Type, "seq": msg.Seq, "error": err.Error()})

	// Best-effort reply; the event log has the record regardless.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = d.reg.SendJSON(ctx, sessionID, capture.Outbound{Type: "error", SessionID: sessionID, Error: err.Error()})
	cancel()
}
