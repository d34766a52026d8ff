package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"debatecoach/agent/internal/auth"
	"debatecoach/agent/internal/config"
	"debatecoach/agent/internal/content"
	"debatecoach/agent/internal/store"
	"debatecoach/agent/internal/tts"
	"debatecoach/agent/internal/types"
)

type grader struct{ content.Offline }

func (grader) GradeRound(context.Context, []types.Speech, string, types.SkillLevel) (types.Report, error) {
	return types.Report{
		Metrics:      types.Metrics{AverageArgumentQuality: 8.5, ClashEngagement: 7, StructuralCoherence: 9, EvidenceUsage: 6, RhetoricalEffectiveness: 7, StrategicAwareness: 8},
		OverallScore: 8.1,
		Ranking:      2,
		Improvements: []string{"Weigh impacts explicitly"},
	}, nil
}

type firstPick struct{}

func (firstPick) IntN(int) int { return 0 }

func newServer(t *testing.T, cfg config.Config, deps Deps) (*httptest.Server, *store.Store) {
	t.Helper()
	st := store.New()
	srv := httptest.NewServer(NewRouter(NewHandlers(cfg, st, deps)))
	t.Cleanup(func() {
		srv.Close()
		for _, id := range st.ListSessionIDs() {
			st.DeleteSession(id)
		}
	})
	return srv, st
}

func do(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, _ := json.Marshal(b)
		rd = bytes.NewReader(raw)
	}
	req, _ := http.NewRequest(method, url, rd)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func create(t *testing.T, base string) string {
	t.Helper()
	code, out := do(t, http.MethodPost, base+"/sessions", nil)
	if code != http.StatusCreated {
		t.Fatalf("create: %d %v", code, out)
	}
	return out["session_id"].(string)
}

func mustOK(t *testing.T, code int, out map[string]any, what string) {
	t.Helper()
	if code/100 != 2 {
		t.Fatalf("%s: status %d body %v", what, code, out)
	}
}

func TestFullRoundOverHTTP(t *testing.T) {
	srv, _ := newServer(t, config.Config{}, Deps{Generator: grader{}})
	id := create(t, srv.URL)
	base := srv.URL + "/sessions/" + id

	code, out := do(t, http.MethodPost, base+"/skill", map[string]any{"level": "Advanced"})
	mustOK(t, code, out, "skill")
	if out["skill_level"] != "advanced" {
		t.Fatalf("skill = %v", out["skill_level"])
	}
	code, out = do(t, http.MethodPost, base+"/motion", map[string]any{"motion": "This House would abolish homework"})
	mustOK(t, code, out, "motion")
	code, out = do(t, http.MethodPost, base+"/role", map[string]any{"role": "pm"})
	mustOK(t, code, out, "role")
	if out["team"] != "OG" || out["title"] != "Prime Minister" || out["side"] != "government" {
		t.Fatalf("role = %v", out)
	}
	code, out = do(t, http.MethodPost, base+"/prep/start", nil)
	mustOK(t, code, out, "prep/start")
	if out["phase"] != "PREPARATION" {
		t.Fatalf("phase = %v", out["phase"])
	}

	// Offline content: structure falls back to the raw notes with 200.
	code, out = do(t, http.MethodPost, base+"/prep/notes", map[string]any{"notes": "burden: harms"})
	if code != http.StatusOK || out["fallback"] != true || out["structured_notes"] != "burden: harms" {
		t.Fatalf("notes: %d %v", code, out)
	}
	code, out = do(t, http.MethodPost, base+"/prep/clock", map[string]any{"action": "pause"})
	mustOK(t, code, out, "prep/clock")
	code, out = do(t, http.MethodPost, base+"/prep/finish", nil)
	mustOK(t, code, out, "prep/finish")
	if out["prep_notes"] != "No preparation notes provided" {
		t.Fatalf("prep notes = %v", out["prep_notes"])
	}

	code, out = do(t, http.MethodPost, base+"/speech/start", nil)
	mustOK(t, code, out, "speech/start")
	code, _ = do(t, http.MethodPost, base+"/speech/fragments", map[string]any{"text": "Madam Speaker", "is_final": true})
	if code != http.StatusNoContent {
		t.Fatalf("fragment status = %d", code)
	}
	code, out = do(t, http.MethodPost, base+"/speech/complete", nil)
	mustOK(t, code, out, "speech/complete")
	sp := out["speech"].(map[string]any)
	if sp["content"] != "Madam Speaker " || out["fallback"] != false {
		t.Fatalf("speech = %v", out)
	}

	code, out = do(t, http.MethodPost, base+"/speeches/ai", map[string]any{"role": "LO", "content": "We oppose."})
	if code != http.StatusCreated || out["is_ai"] != true {
		t.Fatalf("ai speech: %d %v", code, out)
	}

	code, out = do(t, http.MethodPost, base+"/report", nil)
	if code != http.StatusAccepted {
		t.Fatalf("report: %d %v", code, out)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		code, out = do(t, http.MethodGet, base+"/report", nil)
		if out["status"] == "ready" || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if out["status"] != "ready" || out["grade"] != "A" || out["ranking_label"] != "2nd Place" {
		t.Fatalf("report = %v", out)
	}
	if badges, _ := out["badges"].([]any); len(badges) != 3 {
		t.Fatalf("badges = %v", out["badges"])
	}

	code, out = do(t, http.MethodGet, base+"/events", nil)
	mustOK(t, code, out, "events")
	if evs, _ := out["events"].([]any); len(evs) < 10 {
		t.Fatalf("only %d events", len(evs))
	}

	code, out = do(t, http.MethodPost, base+"/reset", nil)
	if code != http.StatusOK || out["phase"] != "SETUP" || out["skill_level"] != "advanced" {
		t.Fatalf("reset: %d %v", code, out)
	}
}

func TestErrorMapping(t *testing.T) {
	srv, _ := newServer(t, config.Config{}, Deps{})
	id := create(t, srv.URL)
	base := srv.URL + "/sessions/" + id

	code, out := do(t, http.MethodPost, base+"/speech/start", nil)
	if code != http.StatusConflict || out["op"] != "start_speech" || out["phase"] != "SETUP" {
		t.Fatalf("invalid transition: %d %v", code, out)
	}
	if code, _ := do(t, http.MethodPost, base+"/skill", map[string]any{"level": "expert"}); code != http.StatusBadRequest {
		t.Fatalf("bad skill: %d", code)
	}
	if code, _ := do(t, http.MethodPost, base+"/motion", "{not json"); code != http.StatusBadRequest {
		t.Fatalf("bad json: %d", code)
	}
	do(t, http.MethodPost, base+"/motion", map[string]any{"motion": "This House would X"})
	if code, _ := do(t, http.MethodPost, base+"/role", map[string]any{"role": "chair"}); code != http.StatusBadRequest {
		t.Fatalf("bad role: %d", code)
	}
	if code, _ := do(t, http.MethodPost, base+"/prep/clock", map[string]any{"action": "start"}); code != http.StatusConflict {
		t.Fatalf("prep clock before prep: %d", code)
	}
	if code, _ := do(t, http.MethodGet, srv.URL+"/sessions/nope", nil); code != http.StatusNotFound {
		t.Fatalf("unknown session: %d", code)
	}
	if code, _ := do(t, http.MethodPost, srv.URL+"/sessions/nope/reset", nil); code != http.StatusNotFound {
		t.Fatalf("unknown session action: %d", code)
	}
	if code, _ := do(t, http.MethodGet, base+"/reset", nil); code != http.StatusMethodNotAllowed {
		t.Fatalf("wrong method: %d", code)
	}
	if code, _ := do(t, http.MethodPost, base+"/bogus", nil); code != http.StatusNotFound {
		t.Fatalf("unknown action: %d", code)
	}
	if code, _ := do(t, http.MethodDelete, base, nil); code != http.StatusNoContent {
		t.Fatalf("delete: %d", code)
	}
}

func TestMotionDrawAndRandomRole(t *testing.T) {
	srv, _ := newServer(t, config.Config{}, Deps{Rand: firstPick{}})
	id := create(t, srv.URL)
	base := srv.URL + "/sessions/" + id

	code, out := do(t, http.MethodPost, base+"/motion", map[string]any{"category": "environment"})
	mustOK(t, code, out, "motion")
	if m, _ := out["motion"].(string); !strings.Contains(strings.ToLower(m), "climate") {
		t.Fatalf("motion = %v", out["motion"])
	}
	code, out = do(t, http.MethodPost, base+"/role", nil)
	mustOK(t, code, out, "random role")
	if r, err := types.ParseRole(out["role"].(string)); err != nil || out["order"].(float64) != float64(r.Order()) {
		t.Fatalf("role = %v", out)
	}

	id2 := create(t, srv.URL)
	if code, _ := do(t, http.MethodPost, srv.URL+"/sessions/"+id2+"/motion", map[string]any{"category": "astrology"}); code != http.StatusBadRequest {
		t.Fatalf("unknown category: %d", code)
	}

	code, out = do(t, http.MethodGet, srv.URL+"/motions?category=politics", nil)
	mustOK(t, code, out, "motions")
	if list, _ := out["motions"].([]any); len(list) == 0 {
		t.Fatalf("no politics motions")
	}
}

func TestCaptureToken(t *testing.T) {
	var cfg config.Config
	cfg.Capture.TokenSecret = "sekret"
	cfg.Capture.TokenTTLMin = 5
	srv, _ := newServer(t, cfg, Deps{})
	id := create(t, srv.URL)

	code, out := do(t, http.MethodPost, srv.URL+"/sessions/"+id+"/capture-token", nil)
	mustOK(t, code, out, "token")
	if _, _, err := auth.ValidateCaptureToken("sekret", out["token"].(string), id, time.Now(), 0); err != nil {
		t.Fatalf("minted token invalid: %v", err)
	}

	srv2, _ := newServer(t, config.Config{}, Deps{})
	id2 := create(t, srv2.URL)
	if code, _ := do(t, http.MethodPost, srv2.URL+"/sessions/"+id2+"/capture-token", nil); code != http.StatusServiceUnavailable {
		t.Fatalf("without secret: %d", code)
	}
}

func TestSpeechAudio(t *testing.T) {
	el := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3"))
	}))
	defer el.Close()
	synth := tts.New("key", "voice")
	synth.BaseURL = el.URL

	srv, st := newServer(t, config.Config{}, Deps{Synth: synth})
	id := create(t, srv.URL)
	sess := st.GetSession(id)
	sess.LockMotion("This House would X")
	sess.AssignRole(types.RolePM)
	sess.BeginPreparation()
	sess.FinishPreparation("n")
	if _, err := sess.RecordSimulatedSpeech(types.RoleLO, "We oppose."); err != nil {
		t.Fatalf("simulated: %v", err)
	}

	resp, err := http.Get(srv.URL + "/sessions/" + id + "/speeches/0/audio")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(b) != "mp3" || resp.Header.Get("Content-Type") != "audio/mpeg" {
		t.Fatalf("audio: %d %q", resp.StatusCode, b)
	}
	if code, _ := do(t, http.MethodGet, srv.URL+"/sessions/"+id+"/speeches/7/audio", nil); code != http.StatusNotFound {
		t.Fatalf("missing speech: %d", code)
	}
}
