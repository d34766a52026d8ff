package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"debatecoach/agent/internal/auth"
	"debatecoach/agent/internal/config"
	"debatecoach/agent/internal/content"
	"debatecoach/agent/internal/motions"
	"debatecoach/agent/internal/orchestrator"
	"debatecoach/agent/internal/report"
	"debatecoach/agent/internal/store"
	"debatecoach/agent/internal/transcript"
	"debatecoach/agent/internal/tts"
	"debatecoach/agent/internal/types"
)

// Deps are the collaborators handed to every new session.
type Deps struct {
	Generator content.Generator
	// Sink receives session events. Defaults to the store.
	Sink   orchestrator.Sink
	Synth  *tts.Synthesizer
	Rand   motions.Rand
	Logger *slog.Logger
}

type Handlers struct {
	cfg   config.Config
	store *store.Store
	deps  Deps
	log   *slog.Logger
	now   func() time.Time
}

func NewHandlers(cfg config.Config, st *store.Store, deps Deps) *Handlers {
	if deps.Sink == nil {
		deps.Sink = st
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Rand == nil {
		deps.Rand = globalRand{}
	}
	return &Handlers{cfg: cfg, store: st, deps: deps, log: deps.Logger, now: time.Now}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps session errors onto status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, orchestrator.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, orchestrator.ErrInvalidArgument), errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, content.ErrUnavailable), errors.Is(err, tts.ErrNotConfigured):
		status = http.StatusServiceUnavailable
	}
	body := map[string]any{"error": err.Error()}
	var te *orchestrator.TransitionError
	if errors.As(err, &te) {
		body["op"] = te.Op
		body["phase"] = te.Phase
	}
	writeJSON(w, status, body)
}

var errBadRequest = errors.New("bad request")

// decode reads an optional JSON body into v.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return errors.Join(errBadRequest, err)
}

func (h *Handlers) session(w http.ResponseWriter, r *http.Request, id string) *orchestrator.Session {
	sess := h.store.GetSession(id)
	if sess == nil {
		http.NotFound(w, r)
	}
	return sess
}

func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.New().String()
	sess := orchestrator.New(id, orchestrator.Options{
		Generator:      h.deps.Generator,
		Sink:           h.deps.Sink,
		Logger:         h.log,
		RequestTimeout: h.cfg.Content.Timeout,
	})
	if err := h.store.CreateSession(sess); err != nil {
		sess.Close()
		writeError(w, err)
		return
	}
	h.store.AppendEvent(id, "session_created", nil)
	writeJSON(w, http.StatusCreated, map[string]any{"session_id": id, "session": sess.Snapshot()})
}

func (h *Handlers) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": h.store.ListSessionIDs()})
}

func (h *Handlers) HandleGetSession(w http.ResponseWriter, r *http.Request, id string) {
	if sess := h.session(w, r, id); sess != nil {
		writeJSON(w, http.StatusOK, sess.Snapshot())
	}
}

func (h *Handlers) HandleDeleteSession(w http.ResponseWriter, r *http.Request, id string) {
	if !h.store.DeleteSession(id) {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// snapshot runs op and replies with the session's new state.
func (h *Handlers) snapshot(w http.ResponseWriter, sess *orchestrator.Session, op func() error) {
	if err := op(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *Handlers) HandleSkill(w http.ResponseWriter, r *http.Request, sess *orchestrator.Session) {
	var body struct {
		Level string `json:"level"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	level := types.SkillLevel(strings.ToLower(strings.TrimSpace(body.Level)))
	h.snapshot(w, sess, func() error { return sess.SelectSkillLevel(level) })
}

// HandleMotion locks the given motion, or draws one from the bank when the
// body names a category or none at all.
func (h *Handlers) HandleMotion(w http.ResponseWriter, r *http.Request, sess *orchestrator.Session) {
	var body struct {
		Motion   string `json:"motion"`
		Category string `json:"category"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	motion := body.Motion
	if strings.TrimSpace(motion) == "" {
		pool := motions.All()
		if body.Category != "" {
			if pool = motions.ByCategory(body.Category); len(pool) == 0 {
				writeError(w, errors.Join(errBadRequest, errors.New("unknown motion category "+strconv.Quote(body.Category))))
				return
			}
		}
		motion = pool[h.intN(len(pool))]
	}
	h.snapshot(w, sess, func() error { return sess.LockMotion(motion) })
}

func (h *Handlers) intN(n int) int { return h.deps.Rand.IntN(n) }

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// HandleRole assigns the named seat, or a random one when none is given.
func (h *Handlers) HandleRole(w http.ResponseWriter, r *http.Request, sess *orchestrator.Session) {
	var body struct {
		Role string `json:"role"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	var role types.Role
	var err error
	if strings.TrimSpace(body.Role) == "" {
		role, err = sess.AssignRandomRole()
	} else {
		role, err = types.ParseRole(body.Role)
		if err != nil {
			writeError(w, errors.Join(errBadRequest, err))
			return
		}
		err = sess.AssignRole(role)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"role":    role,
		"title":   role.Title(),
		"team":    role.Team(),
		"side":    role.Team().Side(),
		"order":   role.Order(),
		"session": sess.Snapshot(),
	})
}

func (h *Handlers) HandlePrepClock(w http.ResponseWriter, r *http.Request, sess *orchestrator.Session) {
	var body struct {
		Action string `json:"action"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	var op func() error
	switch body.Action {
	case "start":
		op = sess.StartPrepClock
	case "pause":
		op = sess.PausePrepClock
	case "reset":
		op = sess.ResetPrepClock
	default:
		writeError(w, errors.Join(errBadRequest, errors.New("action must be start, pause or reset")))
		return
	}
	h.snapshot(w, sess, op)
}

// HandleStructureNotes never fails on a collaborator outage: the raw notes
// come back flagged as a fallback.
func (h *Handlers) HandleStructureNotes(w http.ResponseWriter, r *http.Request, sess *orchestrator.Session) {
	var body struct {
		Notes string `json:"notes"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	text, err := sess.StructureNotes(r.Context(), body.Notes)
	if err != nil && !errors.Is(err, content.ErrUnavailable) {
		writeError(w, err)
		return
	}
	resp := map[string]any{"structured_notes": text, "fallback": err != nil}
	if err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) HandleFinishPrep(w http.ResponseWriter, r *http.Request, sess *orchestrator.Session) {
	var body struct {
		Notes string `json:"notes"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	h.snapshot(w, sess, func() error { return sess.FinishPreparation(body.Notes) })
}

func (h *Handlers) HandleFragment(w http.ResponseWriter, r *http.Request, sess *orchestrator.Session) {
	var f transcript.Fragment
	if err := decode(r, &f); err != nil {
		writeError(w, err)
		return
	}
	if err := sess.AddFragment(f); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) HandleCompleteSpeech(w http.ResponseWriter, r *http.Request, sess *orchestrator.Session) {
	sp, err := sess.CompleteSpeech()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"speech": sp, "fallback": sp.Content == transcript.Fallback && strings.TrimSpace(sp.Transcript) == ""})
}

func (h *Handlers) HandlePOI(w http.ResponseWriter, r *http.Request, sess *orchestrator.Session, accept bool) {
	poi, err := sess.RespondPOI(accept)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poi)
}

// HandleAISpeech records a speech for another seat. Without content the
// collaborator writes it.
func (h *Handlers) HandleAISpeech(w http.ResponseWriter, r *http.Request, sess *orchestrator.Session) {
	var body struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	role, err := types.ParseRole(body.Role)
	if err != nil {
		writeError(w, errors.Join(errBadRequest, err))
		return
	}
	var sp types.Speech
	if strings.TrimSpace(body.Content) != "" {
		sp, err = sess.RecordSimulatedSpeech(role, body.Content)
	} else {
		sp, err = sess.SimulateSpeech(r.Context(), role)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sp)
}

// HandleSpeechAudio renders the n-th speech of the log (0-based) as audio.
// Only AI speeches have audio.
func (h *Handlers) HandleSpeechAudio(w http.ResponseWriter, r *http.Request, sess *orchestrator.Session, n string) {
	idx, err := strconv.Atoi(n)
	speeches := sess.Speeches()
	if err != nil || idx < 0 || idx >= len(speeches) {
		http.NotFound(w, r)
		return
	}
	sp := speeches[idx]
	if !sp.IsAI {
		writeError(w, errors.Join(errBadRequest, errors.New("only AI speeches have audio")))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()
	audio, err := h.deps.Synth.Synthesize(ctx, sp.Content)
	if err != nil {
		if errors.Is(err, tts.ErrNotConfigured) {
			writeError(w, err)
			return
		}
		h.log.Warn("speech synthesis failed", "session_id", sess.ID(), "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", audio.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(audio.Data)))
	_, _ = w.Write(audio.Data)
}

func (h *Handlers) HandleRequestReport(w http.ResponseWriter, r *http.Request, sess *orchestrator.Session) {
	// Grading outlives the request.
	if err := sess.RequestReport(context.WithoutCancel(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, reportView(sess.Report()))
}

type reportBody struct {
	report.Result
	Grade        string   `json:"grade,omitempty"`
	RankingLabel string   `json:"ranking_label,omitempty"`
	Badges       []string `json:"badges,omitempty"`
}

func reportView(res report.Result) reportBody {
	out := reportBody{Result: res}
	if res.Report != nil {
		out.Grade = types.Grade(res.Report.OverallScore)
		out.RankingLabel = types.RankingLabel(res.Report.Ranking)
		out.Badges = types.Badges(res.Report.Metrics)
	}
	return out
}

func (h *Handlers) HandleGetReport(w http.ResponseWriter, r *http.Request, sess *orchestrator.Session) {
	writeJSON(w, http.StatusOK, reportView(sess.Report()))
}

func (h *Handlers) HandleReset(w http.ResponseWriter, r *http.Request, sess *orchestrator.Session) {
	sess.ResetToSetup()
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *Handlers) HandleMintCaptureToken(w http.ResponseWriter, r *http.Request, id string) {
	if h.store.GetSession(id) == nil {
		http.NotFound(w, r)
		return
	}
	ttl := time.Duration(h.cfg.Capture.TokenTTLMin) * time.Minute
	tok, exp, err := auth.IssueCaptureToken(h.cfg.Capture.TokenSecret, id, h.now(), ttl)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
		return
	}
	h.store.AppendEvent(id, "capture_token_minted", map[string]any{"exp": exp.Unix()})
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      tok,
		"expires_at": exp,
		"ws_path":    "/ws/capture?session_id=" + id,
	})
}

func (h *Handlers) HandleListEvents(w http.ResponseWriter, r *http.Request, id string) {
	if h.store.GetSession(id) == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"events":     h.store.ListEvents(id),
	})
}

func (h *Handlers) HandleMotions(w http.ResponseWriter, r *http.Request) {
	cat := r.URL.Query().Get("category")
	list := motions.All()
	if cat != "" {
		list = motions.ByCategory(cat)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": motions.Categories(),
		"motions":    list,
	})
}
