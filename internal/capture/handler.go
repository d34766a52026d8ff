// Package capture serves the live capture socket a speaker's client opens
// during a speech. The client sends transcript fragments as JSON text frames
// or raw PCM16@16k audio as binary frames; the server pushes session events
// back on the same socket.
package capture

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"debatecoach/agent/internal/auth"
	"debatecoach/agent/internal/config"
	"debatecoach/agent/internal/store"
	"debatecoach/agent/internal/transcript"
	"debatecoach/agent/internal/types"

	ws "nhooyr.io/websocket"
)

// Message is an inbound capture frame. A frame without a type is a transcript
// fragment.
type Message struct {
	Type    string `json:"type,omitempty"` // fragment | poi_response | ping
	Seq     int64  `json:"seq,omitempty"`
	Text    string `json:"text,omitempty"`
	IsFinal bool   `json:"is_final,omitempty"`
	Accept  bool   `json:"accept,omitempty"`
}

const (
	TypeFragment    = "fragment"
	TypePOIResponse = "poi_response"
	TypePing        = "ping"
)

func (m Message) Fragment() transcript.Fragment {
	return transcript.Fragment{Text: m.Text, IsFinal: m.IsFinal}
}

// Outbound is a frame pushed to the capture client.
type Outbound struct {
	Type      string       `json:"type"` // ready | event | pong | error
	SessionID string       `json:"session_id,omitempty"`
	Event     *types.Event `json:"event,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// Stream is one live transcription of a capture socket's audio.
type Stream interface {
	Send(pcm []byte) bool
	Fragments() <-chan transcript.Fragment
	Close()
}

// Transcriber opens a transcription stream for a session.
type Transcriber interface {
	Open(ctx context.Context, sessionID string) (Stream, error)
}

type Server struct {
	Cfg   config.Config
	Store *store.Store
	Reg   *Registry
	// STT handles binary audio frames. Without it audio is ignored.
	STT Transcriber
	// OnMessage receives every decoded frame, including fragments produced
	// by STT.
	OnMessage func(sessionID string, msg Message)
	Log       *slog.Logger
}

func NewServer(cfg config.Config, st *store.Store, reg *Registry) *Server {
	return &Server{Cfg: cfg, Store: st, Reg: reg, Log: slog.Default()}
}

func bearer(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimPrefix(authz, "Bearer ")
	}
	// Browsers cannot set headers on a websocket upgrade.
	return r.URL.Query().Get("token")
}

func (s *Server) HandleCaptureWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "missing session_id", http.StatusBadRequest)
		return
	}
	if s.Store.GetSession(sessionID) == nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	token := bearer(r)
	if token == "" {
		metricAuthFailures.Inc()
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}
	if s.Cfg.Capture.TokenSecret == "" {
		metricAuthFailures.Inc()
		http.Error(w, "capture auth not configured", http.StatusUnauthorized)
		return
	}
	if _, _, err := auth.ValidateCaptureToken(s.Cfg.Capture.TokenSecret, token, sessionID, time.Now(), s.Cfg.Capture.TokenSkewSecs); err != nil {
		metricAuthFailures.Inc()
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	c, err := ws.Accept(w, r, nil)
	if err != nil {
		s.Log.Warn("capture accept failed", "session_id", sessionID, "error", err)
		return
	}
	if s.Reg.Replace(sessionID, c) {
		s.Store.AppendEvent(sessionID, "capture_replaced", nil)
	}
	s.Store.AppendEvent(sessionID, "capture_connected", nil)
	log := s.Log.With("session_id", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	_ = s.Reg.SendJSON(ctx, sessionID, Outbound{Type: "ready", SessionID: sessionID})

	var stream Stream
	defer func() {
		if stream != nil {
			stream.Close()
		}
	}()

	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			break
		}
		switch typ {
		case ws.MessageBinary:
			metricFrames.WithLabelValues("binary").Inc()
			if s.STT == nil {
				continue
			}
			if stream == nil {
				if stream, err = s.STT.Open(ctx, sessionID); err != nil {
					log.Warn("stt open failed", "error", err)
					s.Store.AppendEvent(sessionID, "stt_unavailable", map[string]any{"error": err.Error()})
					stream = nil
					continue
				}
				go s.pumpSTT(ctx, sessionID, stream)
			}
			stream.Send(data)
		case ws.MessageText:
			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				metricFrames.WithLabelValues("invalid").Inc()
				s.Store.AppendEvent(sessionID, "capture_msg_invalid", map[string]any{"error": err.Error()})
				continue
			}
			metricFrames.WithLabelValues("text").Inc()
			if msg.Type == "" {
				msg.Type = TypeFragment
			}
			if msg.Type == TypePing {
				_ = s.Reg.SendJSON(ctx, sessionID, Outbound{Type: "pong"})
				continue
			}
			s.dispatch(sessionID, msg)
		}
	}
	_ = c.Close(ws.StatusNormalClosure, "done")
	if s.Reg.Remove(sessionID, c) {
		s.Store.AppendEvent(sessionID, "capture_disconnected", nil)
	}
}

func (s *Server) pumpSTT(ctx context.Context, sessionID string, st Stream) {
	_ = transcript.Pump(ctx, st.Fragments(), func(f transcript.Fragment) error {
		s.dispatch(sessionID, Message{Type: TypeFragment, Text: f.Text, IsFinal: f.IsFinal})
		return nil
	})
}

func (s *Server) dispatch(sessionID string, msg Message) {
	if s.OnMessage != nil {
		s.OnMessage(sessionID, msg)
	}
}
