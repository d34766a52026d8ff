package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"debatecoach/agent/internal/config"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestCheckAllUnconfigured(t *testing.T) {
	var cfg config.Config
	cfg.Content.Mode = "llm"
	h := CheckAll(context.Background(), cfg, nil, DefaultEndpoints)
	if h.OK {
		t.Fatalf("expected failure without llm config")
	}
	if len(h.Checks) != 3 || h.Checks[0].Name != "llm" || !strings.Contains(h.Checks[0].Error, "LLM_ENDPOINT") {
		t.Fatalf("checks = %+v", h.Checks)
	}
	if !strings.Contains(h.String(), "Health: FAIL") || !strings.Contains(h.String(), "[optional]") {
		t.Fatalf("string = %q", h.String())
	}
}

func TestOptionalProvidersDoNotFailReadiness(t *testing.T) {
	var cfg config.Config
	cfg.Content.Mode = "llm"
	cfg.LLM.Endpoint, cfg.LLM.APIKey, cfg.LLM.Deployment = "https://x", "k", "gpt"
	if h := CheckAll(context.Background(), cfg, nil, DefaultEndpoints); !h.OK {
		t.Fatalf("status = %s", h)
	}
}

func TestContentPing(t *testing.T) {
	var cfg config.Config
	cfg.Content.Mode = "grpc"
	if h := CheckAll(context.Background(), cfg, pinger{}, DefaultEndpoints); !h.OK || h.Checks[0].Name != "content_rpc" {
		t.Fatalf("status = %+v", h)
	}
	if h := CheckAll(context.Background(), cfg, pinger{err: errors.New("down")}, DefaultEndpoints); h.OK {
		t.Fatalf("expected failure when ping fails")
	}
}

func TestProviderProbes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/voices/v1" && r.Header.Get("xi-api-key") == "el":
			w.Write([]byte(`{}`))
		case r.URL.Path == "/v1/projects" && r.Header.Get("Authorization") == "Token dg":
			w.Write([]byte(`{"projects":[]}`))
		case strings.HasPrefix(r.URL.Path, "/v1/voices/"):
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()
	ep := Endpoints{ElevenLabs: srv.URL, Deepgram: srv.URL}

	var cfg config.Config
	cfg.Eleven.APIKey, cfg.Eleven.VoiceID = "el", "v1"
	cfg.Deepgram.APIKey = "dg"
	if r := checkElevenLabs(context.Background(), cfg, ep.ElevenLabs); !r.OK {
		t.Fatalf("elevenlabs = %+v", r)
	}
	if r := checkDeepgram(context.Background(), cfg, ep.Deepgram); !r.OK {
		t.Fatalf("deepgram = %+v", r)
	}

	cfg.Eleven.VoiceID = "missing"
	if r := checkElevenLabs(context.Background(), cfg, ep.ElevenLabs); r.OK || !strings.Contains(r.Error, "not found") {
		t.Fatalf("elevenlabs = %+v", r)
	}
	cfg.Deepgram.APIKey = "bad"
	if r := checkDeepgram(context.Background(), cfg, ep.Deepgram); r.OK || !strings.Contains(r.Error, "401") {
		t.Fatalf("deepgram = %+v", r)
	}
}
