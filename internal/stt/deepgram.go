// Package stt bridges capture audio to Deepgram live transcription and turns
// its results into transcript fragments.
package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"debatecoach/agent/internal/transcript"

	"nhooyr.io/websocket"
)

var errCircuitOpen = errors.New("circuit open")

// DeepgramConn maintains a single live websocket connection to Deepgram
// for a session, sending PCM16@16k audio and receiving transcript events.
type DeepgramConn struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger

	apiKey string
	url    string

	// Outbound audio queue; Send drops when full.
	sendQ chan []byte
	// Fragments carries interim and final transcripts; closed when the
	// connection shuts down.
	Fragments chan transcript.Fragment

	fails   []time.Time
	circuit time.Time
	maxAge  time.Duration

	// Interim text not yet covered by a final, flushed on UtteranceEnd.
	pending string
}

type DGConfig struct {
	Model         string
	Language      string
	EndpointingMs int
	UtterEndMs    int
	BaseURL       string
	SocketMaxAgeS int
}

func NewDeepgramConn(parent context.Context, cfg DGConfig, apiKey string, log *slog.Logger) *DeepgramConn {
	ctx, cancel := context.WithCancel(parent)
	q := url.Values{}
	q.Set("model", orDefault(cfg.Model, "nova-2"))
	q.Set("language", orDefault(cfg.Language, "en-US"))
	q.Set("smart_format", "true")
	q.Set("punctuate", "true")
	q.Set("endpointing", fmt.Sprintf("%d", nzd(cfg.EndpointingMs, 1000)))
	q.Set("interim_results", "true")
	q.Set("utterance_end_ms", fmt.Sprintf("%d", nzd(cfg.UtterEndMs, 1500)))
	q.Set("vad_events", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", "16000")
	q.Set("channels", "1")
	base := orDefault(cfg.BaseURL, "wss://api.deepgram.com/v1/listen")
	if log == nil {
		log = slog.Default()
	}
	return &DeepgramConn{
		ctx:       ctx,
		cancel:    cancel,
		log:       log,
		apiKey:    apiKey,
		url:       base + "?" + q.Encode(),
		sendQ:     make(chan []byte, 8),
		Fragments: make(chan transcript.Fragment, 32),
		maxAge:    time.Duration(nzd(cfg.SocketMaxAgeS, 900)) * time.Second,
	}
}

func (d *DeepgramConn) Start() { go d.run() }

func (d *DeepgramConn) Close() { d.cancel() }

func (d *DeepgramConn) Send(pcm16k []byte) bool {
	select {
	case d.sendQ <- pcm16k:
		return true
	default:
		return false
	}
}

func (d *DeepgramConn) QueueLen() int { return len(d.sendQ) }

func (d *DeepgramConn) run() {
	defer close(d.Fragments)
	for {
		if err := d.connectAndPump(); err != nil {
			if d.ctx.Err() != nil {
				return
			}
			d.addFailure()
			d.log.Warn("deepgram connection ended", "error", err)
		} else {
			d.resetFailures()
		}
		if d.ctx.Err() != nil {
			return
		}
		select {
		case <-d.ctx.Done():
			return
		case <-time.After(d.nextBackoff()):
		}
	}
}

func (d *DeepgramConn) connectAndPump() error {
	if time.Now().Before(d.circuit) {
		return errCircuitOpen
	}

	hdr := make(http.Header)
	if d.apiKey != "" {
		hdr.Set("Authorization", "Token "+d.apiKey)
	}
	ctx, cancel := context.WithTimeout(d.ctx, 10*time.Second)
	defer cancel()
	start := time.Now()
	c, _, err := websocket.Dial(ctx, d.url, &websocket.DialOptions{HTTPHeader: hdr})
	if err != nil {
		return err
	}
	d.log.Debug("deepgram connected", "ms", time.Since(start).Milliseconds())
	metricConnectMS.Observe(float64(time.Since(start).Milliseconds()))
	metricReconnects.Inc()
	defer c.Close(websocket.StatusNormalClosure, "bye")

	go func() {
		for {
			select {
			case <-d.ctx.Done():
				return
			case b := <-d.sendQ:
				if b == nil {
					continue
				}
				wctx, cancel := context.WithTimeout(d.ctx, 5*time.Second)
				err := c.Write(wctx, websocket.MessageBinary, b)
				cancel()
				if err != nil {
					d.log.Warn("deepgram write failed", "error", err)
					return
				}
				gaugeQueueDepth.Set(float64(len(d.sendQ)))
			}
		}
	}()

	rctx := d.ctx
	if d.maxAge > 0 {
		var rcancel context.CancelFunc
		rctx, rcancel = context.WithTimeout(d.ctx, d.maxAge)
		defer rcancel()
	}
	for {
		_, data, err := c.Read(rctx)
		if err != nil {
			// Session end or socket rotation.
			if rctx.Err() != nil {
				return nil
			}
			return err
		}
		d.handle(data)
	}
}

// handle parses one provider frame. Deepgram sends Results, Metadata,
// SpeechStarted, UtteranceEnd and Error frames.
func (d *DeepgramConn) handle(data []byte) {
	if len(data) == 0 {
		return
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		d.log.Debug("deepgram frame not json", "error", err)
		return
	}
	typ := toString(m["type"])
	switch {
	case strings.EqualFold(typ, "Error") || m["error"] != nil:
		msg := toString(m["error"])
		if msg == "" {
			msg = toString(m["message"])
		}
		d.log.Warn("deepgram provider error", "message", msg)
		metricProviderErrors.Inc()
	case strings.EqualFold(typ, "Metadata"):
	case strings.EqualFold(typ, "SpeechStarted"):
		metricUtteranceEvents.WithLabelValues("speech_started").Inc()
	case strings.EqualFold(typ, "UtteranceEnd"):
		metricUtteranceEvents.WithLabelValues("utterance_end").Inc()
		// A final already covered the utterance unless interim text is pending.
		if d.pending != "" {
			d.emit(transcript.Fragment{Text: d.pending, IsFinal: true})
			metricFinalEmitted.WithLabelValues("interim_fallback").Inc()
			d.pending = ""
		}
	case strings.EqualFold(typ, "Results") || m["channel"] != nil:
		text := resultText(m)
		if toBool(m["is_final"]) || toBool(m["speech_final"]) {
			d.pending = ""
			if text == "" {
				metricEmptyFinalSkipped.Inc()
				return
			}
			d.emit(transcript.Fragment{Text: text, IsFinal: true})
			metricFinalEmitted.WithLabelValues("provider").Inc()
			return
		}
		if text != "" {
			d.pending = text
			d.emit(transcript.Fragment{Text: text})
		}
	}
}

// resultText reads channel.alternatives[0].transcript.
func resultText(m map[string]any) string {
	channel, _ := m["channel"].(map[string]any)
	if channel == nil {
		return ""
	}
	alts, _ := channel["alternatives"].([]any)
	if len(alts) == 0 {
		return ""
	}
	a0, _ := alts[0].(map[string]any)
	return strings.TrimSpace(toString(a0["transcript"]))
}

func (d *DeepgramConn) emit(f transcript.Fragment) {
	select {
	case d.Fragments <- f:
	default:
		metricEventDrops.Inc()
	}
}

func (d *DeepgramConn) addFailure() {
	d.fails = append(d.fails, time.Now())
	cutoff := time.Now().Add(-60 * time.Second)
	j := 0
	for _, t := range d.fails {
		if t.After(cutoff) {
			d.fails[j] = t
			j++
		}
	}
	d.fails = d.fails[:j]
	if len(d.fails) >= 3 {
		d.circuit = time.Now().Add(30 * time.Second)
		metricCircuitOpens.Inc()
	}
}

func (d *DeepgramConn) resetFailures() { d.fails = nil }

func (d *DeepgramConn) nextBackoff() time.Duration {
	n := len(d.fails)
	if n <= 0 {
		return time.Second
	}
	if n > 5 {
		n = 5
	}
	return time.Duration(1<<uint(n-1)) * time.Second
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func nzd(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true")
	default:
		return false
	}
}
