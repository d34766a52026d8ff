package content

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"debatecoach/agent/internal/types"
)

// sseServer replies to every chat completion with the given deltas.
func sseServer(t *testing.T, deltas ...string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("api-key") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !strings.Contains(r.URL.Path, "/openai/deployments/gpt/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range deltas {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", d)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestLLMStructureNotesJoinsStream(t *testing.T) {
	srv, _ := sseServer(t, "1. Harms", "\n2. Benefits")
	l := NewLLM(LLMConfig{Endpoint: srv.URL, APIKey: "k", Deployment: "gpt"})
	out, err := l.StructureNotes(context.Background(), "m", types.RolePM, "harms benefits")
	if err != nil {
		t.Fatalf("structure: %v", err)
	}
	if out != "1. Harms\n2. Benefits" {
		t.Fatalf("out = %q", out)
	}
}

func TestLLMPOINoneMeansAbsent(t *testing.T) {
	srv, _ := sseServer(t, "NONE")
	l := NewLLM(LLMConfig{Endpoint: srv.URL, APIKey: "k", Deployment: "gpt"})
	out, err := l.GeneratePOI(context.Background(), POIRequest{Role: types.RoleLO, Elapsed: 90})
	if err != nil || out != "" {
		t.Fatalf("poi = %q, %v", out, err)
	}
}

func TestLLMGradeRoundParsesJSON(t *testing.T) {
	reply := `Here you go: {"performanceMetrics":{"averageArgumentQuality":7,"clashEngagement":6,"structuralCoherence":8,"evidenceUsage":5,"rhetoricalEffectiveness":7,"strategicAwareness":6},"overallScore":6.5,"ranking":2,"improvements":["Engage more"]}`
	srv, _ := sseServer(t, reply[:40], reply[40:])
	l := NewLLM(LLMConfig{Endpoint: srv.URL, APIKey: "k", Deployment: "gpt"})
	rep, err := l.GradeRound(context.Background(), []types.Speech{{Role: types.RolePM, Content: "Hello. "}}, "m", types.SkillAdvanced)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if rep.Ranking != 2 || rep.Metrics.StructuralCoherence != 8 || rep.Improvements[0] != "Engage more" {
		t.Fatalf("report = %+v", rep)
	}
}

func TestLLMFailuresAreUnavailable(t *testing.T) {
	srv, _ := sseServer(t, "x")
	l := NewLLM(LLMConfig{Endpoint: srv.URL, APIKey: "wrong", Deployment: "gpt"})
	if _, err := l.GenerateSpeech(context.Background(), SpeechRequest{Role: types.RoleLO}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	l = NewLLM(LLMConfig{})
	if _, err := l.GeneratePOI(context.Background(), POIRequest{}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("unconfigured llm should be unavailable, got %v", err)
	}
}

func TestParseReportRejectsGarbage(t *testing.T) {
	if _, err := ParseReport("no json here"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := ParseReport("{not json}"); err == nil {
		t.Fatalf("expected decode error")
	}
}

type countingGen struct {
	Offline
	calls int
}

func (c *countingGen) StructureNotes(ctx context.Context, motion string, role types.Role, notes string) (string, error) {
	c.calls++
	return "structured:" + notes, nil
}

func TestCachedStructureNotes(t *testing.T) {
	inner := &countingGen{}
	c := NewCached(inner, time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		out, err := c.StructureNotes(context.Background(), "m", types.RolePM, "a")
		if err != nil || out != "structured:a" {
			t.Fatalf("out = %q, %v", out, err)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.calls)
	}
	c.StructureNotes(context.Background(), "m", types.RoleLO, "a")
	if inner.calls != 2 {
		t.Fatalf("different role must miss the cache")
	}
	now = now.Add(2 * time.Minute)
	c.StructureNotes(context.Background(), "m", types.RolePM, "a")
	if inner.calls != 3 {
		t.Fatalf("expired entry served from cache")
	}
	// Other calls pass through to the wrapped generator.
	if _, err := c.GeneratePOI(context.Background(), POIRequest{}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("passthrough = %v", err)
	}
}

func TestCacheKeySeparatesParts(t *testing.T) {
	if cacheKey("ab", "c") == cacheKey("a", "bc") {
		t.Fatalf("cache key collides across part boundaries")
	}
}
