// Package tts turns AI speech text into audio with ElevenLabs.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("tts: elevenlabs api key or voice not configured")

const defaultBaseURL = "https://api.elevenlabs.io"

// Audio is one synthesized clip.
type Audio struct {
	ContentType string
	Data        []byte
}

type Synthesizer struct {
	BaseURL string
	APIKey  string
	VoiceID string
	ModelID string
	Client  *http.Client
}

func New(apiKey, voiceID string) *Synthesizer {
	return &Synthesizer{
		BaseURL: defaultBaseURL,
		APIKey:  apiKey,
		VoiceID: voiceID,
		ModelID: "eleven_turbo_v2",
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *Synthesizer) Configured() bool { return s != nil && s.APIKey != "" && s.VoiceID != "" }

// Synthesize renders text as MP3.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (Audio, error) {
	if !s.Configured() {
		ttsSynthesisTotal.WithLabelValues("unconfigured").Inc()
		return Audio{}, ErrNotConfigured
	}
	if strings.TrimSpace(text) == "" {
		return Audio{}, errors.New("tts: empty text")
	}
	start := time.Now()
	url := fmt.Sprintf("%s/v1/text-to-speech/%s", strings.TrimRight(s.BaseURL, "/"), s.VoiceID)
	body := map[string]any{"text": text}
	if s.ModelID != "" {
		body["model_id"] = s.ModelID
	}
	reqBytes, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
	if err != nil {
		return Audio{}, err
	}
	req.Header.Set("xi-api-key", s.APIKey)
	req.Header.Set("accept", "audio/mpeg")
	req.Header.Set("content-type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		ttsSynthesisTotal.WithLabelValues("error").Inc()
		return Audio{}, fmt.Errorf("tts: request: %w", err)
	}
	defer resp.Body.Close()
	ttsElevenLabsLatencyMS.Observe(float64(time.Since(start).Milliseconds()))
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		ttsSynthesisTotal.WithLabelValues("http_error").Inc()
		return Audio{}, fmt.Errorf("tts: status=%d body=%s", resp.StatusCode, string(b))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		ttsSynthesisTotal.WithLabelValues("error").Inc()
		return Audio{}, fmt.Errorf("tts: read: %w", err)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "audio/mpeg"
	}
	ttsSynthesisTotal.WithLabelValues("ok").Inc()
	ttsTotalDurationMS.Observe(float64(time.Since(start).Milliseconds()))
	ttsAudioBytes.Add(float64(len(data)))
	return Audio{ContentType: ct, Data: data}, nil
}
