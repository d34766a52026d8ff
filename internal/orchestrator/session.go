// Package orchestrator drives one practice round through its phases. A
// Session owns the preparation countdown, the speech clock, the interjection
// scheduler and the transcript buffer, and gates every action by phase.
//
// Sessions are pulse driven: the owner calls Tick once per second. All
// operations take the session lock, so a tick and a pause can never overlap.
// The only asynchronous work is the two collaborator requests (interjection
// text and grading); each is tagged with the speech or round it belongs to
// and dropped if that identity no longer matches when the reply arrives.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"debatecoach/agent/internal/content"
	"debatecoach/agent/internal/floor"
	"debatecoach/agent/internal/report"
	"debatecoach/agent/internal/timer"
	"debatecoach/agent/internal/transcript"
	"debatecoach/agent/internal/types"
)

const (
	PrepSeconds = 900

	// NotesPlaceholder stands in for preparation notes the speaker never wrote.
	NotesPlaceholder = "No preparation notes provided"

	defaultRequestTimeout = 20 * time.Second
)

// Sink receives session events. Publish is always called without the
// session lock held.
type Sink interface {
	Publish(sessionID string, ev types.Event)
}

type SinkFunc func(sessionID string, ev types.Event)

func (f SinkFunc) Publish(sessionID string, ev types.Event) { f(sessionID, ev) }

// MultiSink fans events out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Publish(sessionID string, ev types.Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(sessionID, ev)
		}
	}
}

type Options struct {
	Generator content.Generator
	Rand      floor.Rand
	Sink      Sink
	Logger    *slog.Logger
	// RequestTimeout bounds each collaborator call; zero means 20s.
	RequestTimeout time.Duration
	Now            func() time.Time
}

// speechState is the per-speech bundle created by finishPreparation.
type speechState struct {
	id      string
	clock   *timer.Timer
	sched   *floor.Scheduler
	agg     *transcript.Aggregator
	started bool
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
}

// tag identifies the context an outbound request was issued for.
type tag struct {
	round  int
	speech string
}

type Session struct {
	id      string
	gen     content.Generator
	rng     floor.Rand
	sink    Sink
	log     *slog.Logger
	timeout time.Duration
	now     func() time.Time
	created time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	report *report.Aggregator

	mu          sync.Mutex
	round       int
	phase       Phase
	motion      string
	role        types.Role
	team        types.Team
	skill       types.SkillLevel
	skillChosen bool
	prep        *timer.Timer
	prepNotes   string
	structured  string
	speech      *speechState
	speeches    []types.Speech
	answered    []types.POI
}

// New returns a session in SETUP. An empty id is replaced by a fresh UUID.
func New(id string, opts Options) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	if opts.Generator == nil {
		opts.Generator = content.Offline{}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Rand == nil {
		opts.Rand = defaultRand{}
	}
	prep, _ := timer.NewCountdown(PrepSeconds)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:      id,
		gen:     opts.Generator,
		rng:     opts.Rand,
		sink:    opts.Sink,
		log:     opts.Logger.With("session_id", id),
		timeout: opts.RequestTimeout,
		now:     opts.Now,
		ctx:     ctx,
		cancel:  cancel,
		phase:   PhaseSetup,
		skill:   types.SkillIntermediate,
		prep:    prep,
	}
	s.created = s.now()
	s.report = report.New(opts.Generator, s.onReport)
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// guard checks op against the transition table. Callers hold s.mu.
func (s *Session) guard(op Op) error {
	if s.phase.allows(op) {
		return nil
	}
	return s.reject(op, nil)
}

func (s *Session) reject(op Op, cause error) error {
	metricInvalidTransitions.WithLabelValues(string(op)).Inc()
	s.log.Debug("invalid transition", "op", op, "phase", s.phase, "cause", cause)
	return &TransitionError{Op: op, Phase: s.phase, Err: cause}
}

func (s *Session) setPhase(to Phase) types.Event {
	from := s.phase
	s.phase = to
	metricStateTransitions.WithLabelValues(from.String(), to.String()).Inc()
	s.log.Info("phase", "from", from, "to", to)
	return s.event("phase_changed", map[string]any{"from": from.String(), "to": to.String()})
}

func (s *Session) event(typ string, payload map[string]any) types.Event {
	return types.Event{Type: typ, Ts: s.now(), Payload: payload}
}

func (s *Session) publish(evs []types.Event) {
	if s.sink == nil {
		return
	}
	for _, ev := range evs {
		s.sink.Publish(s.id, ev)
	}
}

// locked runs fn under the session lock and publishes whatever events it
// produced after the lock is released.
func (s *Session) locked(fn func(out *[]types.Event) error) error {
	var out []types.Event
	s.mu.Lock()
	err := fn(&out)
	s.mu.Unlock()
	s.publish(out)
	return err
}

// SelectSkillLevel fixes the difficulty for the round. It may be called
// once, before the motion is locked; unchosen rounds play at intermediate.
func (s *Session) SelectSkillLevel(level types.SkillLevel) error {
	lvl, err := types.ParseSkillLevel(string(level))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return s.locked(func(out *[]types.Event) error {
		if err := s.guard(OpSelectSkill); err != nil {
			return err
		}
		if s.skillChosen {
			return s.reject(OpSelectSkill, errors.New("skill level already chosen"))
		}
		s.skill = lvl
		s.skillChosen = true
		*out = append(*out, s.event("skill_selected", map[string]any{"skill_level": string(lvl)}))
		return nil
	})
}

func (s *Session) LockMotion(text string) error {
	return s.locked(func(out *[]types.Event) error {
		if err := s.guard(OpLockMotion); err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return s.reject(OpLockMotion, errors.New("motion is empty"))
		}
		s.motion = text
		*out = append(*out, s.setPhase(PhaseMotionLocked))
		return nil
	})
}

func (s *Session) AssignRole(role types.Role) error {
	return s.locked(func(out *[]types.Event) error {
		return s.assignRoleLocked(role, out)
	})
}

// AssignRandomRole draws a seat from the injected source.
func (s *Session) AssignRandomRole() (types.Role, error) {
	var role types.Role
	err := s.locked(func(out *[]types.Event) error {
		if err := s.guard(OpAssignRole); err != nil {
			return err
		}
		role = types.Roles[s.rng.IntN(len(types.Roles))]
		return s.assignRoleLocked(role, out)
	})
	if err != nil {
		return "", err
	}
	return role, nil
}

func (s *Session) assignRoleLocked(role types.Role, out *[]types.Event) error {
	if err := s.guard(OpAssignRole); err != nil {
		return err
	}
	if !role.Valid() {
		return s.reject(OpAssignRole, fmt.Errorf("unknown role %q", role))
	}
	s.role = role
	s.team = role.Team()
	*out = append(*out, s.setPhase(PhaseRoleAssigned))
	return nil
}

// BeginPreparation re-arms the countdown at PrepSeconds and starts it.
func (s *Session) BeginPreparation() error {
	return s.locked(func(out *[]types.Event) error {
		if err := s.guard(OpBeginPrep); err != nil {
			return err
		}
		if err := s.prep.Reset(PrepSeconds); err != nil {
			return err
		}
		s.prep.Start()
		*out = append(*out, s.setPhase(PhasePreparation))
		return nil
	})
}

func (s *Session) StartPrepClock() error { return s.prepClock("started", (*timer.Timer).Start) }
func (s *Session) PausePrepClock() error { return s.prepClock("paused", (*timer.Timer).Pause) }

// ResetPrepClock returns the countdown to PrepSeconds, stopped.
func (s *Session) ResetPrepClock() error {
	return s.prepClock("reset", func(t *timer.Timer) { _ = t.Reset(PrepSeconds) })
}

func (s *Session) prepClock(action string, fn func(*timer.Timer)) error {
	return s.locked(func(out *[]types.Event) error {
		if err := s.guard(OpPrepClock); err != nil {
			return err
		}
		fn(s.prep)
		*out = append(*out, s.event("prep_clock", map[string]any{
			"action":    action,
			"remaining": s.prep.Remaining(),
			"running":   s.prep.IsRunning(),
		}))
		return nil
	})
}

// StructureNotes asks the collaborator to format raw notes. When the call
// fails the raw notes come back with an error wrapping content.ErrUnavailable.
// A reply that arrives after preparation has ended is discarded.
func (s *Session) StructureNotes(ctx context.Context, raw string) (string, error) {
	s.mu.Lock()
	if err := s.guard(OpStructureNotes); err != nil {
		s.mu.Unlock()
		return "", err
	}
	t := tag{round: s.round}
	motion, role := s.motion, s.role
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	out, err := s.gen.StructureNotes(ctx, motion, role, raw)
	if err == nil && strings.TrimSpace(out) == "" {
		err = content.Unavailable("structure_notes", errors.New("empty response"))
	}
	if err != nil {
		s.log.Warn("structure notes failed, keeping raw notes", "err", err)
		return raw, content.Unavailable("structure_notes", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.round != t.round || s.phase != PhasePreparation {
		metricStaleResponses.WithLabelValues("structure_notes").Inc()
		return out, nil
	}
	s.structured = out
	return out, nil
}

// FinishPreparation records the notes and opens the speech. Empty notes fall
// back to the structured notes, then to NotesPlaceholder.
func (s *Session) FinishPreparation(notes string) error {
	return s.locked(func(out *[]types.Event) error {
		if err := s.guard(OpFinishPrep); err != nil {
			return err
		}
		switch {
		case strings.TrimSpace(notes) != "":
			s.prepNotes = notes
		case strings.TrimSpace(s.structured) != "":
			s.prepNotes = s.structured
		default:
			s.prepNotes = NotesPlaceholder
		}
		s.prep.Pause()
		s.speech = s.newSpeech()
		*out = append(*out, s.setPhase(PhaseSpeech))
		return nil
	})
}

func (s *Session) newSpeech() *speechState {
	ctx, cancel := context.WithCancel(s.ctx)
	return &speechState{
		id:     uuid.NewString(),
		clock:  timer.NewCountUp(),
		sched:  floor.New(s.rng),
		agg:    transcript.New(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Tick advances the clock the current phase owns by one second and drives
// the interjection scheduler.
func (s *Session) Tick() {
	_ = s.locked(func(out *[]types.Event) error {
		switch s.phase {
		case PhasePreparation:
			if s.prep.Tick() {
				*out = append(*out, s.event("prep_time_up", nil))
			}
		case PhaseSpeech:
			s.tickSpeech(out)
		case PhaseSetup, PhaseMotionLocked, PhaseRoleAssigned, PhaseFeedback:
		}
		return nil
	})
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:              s.id,
		Round:           s.round,
		Phase:           s.phase,
		Motion:          s.motion,
		Role:            s.role,
		Team:            s.team,
		SkillLevel:      s.skill,
		PrepNotes:       s.prepNotes,
		StructuredNotes: s.structured,
		Speeches:        append([]types.Speech{}, s.speeches...),
		AnsweredPOIs:    append([]types.POI(nil), s.answered...),
		Report:          s.report.Result(),
		CreatedAt:       s.created,
	}
	if s.phase == PhasePreparation {
		snap.Prep = &ClockView{
			Remaining: s.prep.Remaining(),
			Elapsed:   s.prep.Elapsed(),
			Duration:  s.prep.Duration(),
			Running:   s.prep.IsRunning(),
		}
	}
	if sp := s.speech; sp != nil {
		v := &SpeechView{
			ID:         sp.id,
			Started:    sp.started,
			Stopped:    sp.stopped,
			Elapsed:    sp.clock.Elapsed(),
			Running:    sp.clock.IsRunning(),
			Transcript: sp.agg.Text(),
			Interim:    sp.agg.Interim(),
			POIState:   sp.sched.State().String(),
		}
		if p, ok := sp.sched.Live(); ok {
			v.POI = &p
			v.POIExpiresIn = sp.sched.ExpiresIn()
		}
		snap.Speech = v
	}
	return snap
}

// Speeches returns a copy of the speech log.
func (s *Session) Speeches() []types.Speech {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Speech(nil), s.speeches...)
}

// ResetToSetup abandons the round from any phase. Pending timers, requests
// and reports are cancelled. The skill level survives the reset.
func (s *Session) ResetToSetup() {
	_ = s.locked(func(out *[]types.Event) error {
		s.endSpeechWork(s.speech)
		s.speech = nil
		s.report.Discard()
		s.round++
		s.motion = ""
		s.role = ""
		s.team = ""
		s.prepNotes = ""
		s.structured = ""
		s.speeches = nil
		s.answered = nil
		_ = s.prep.Reset(PrepSeconds)
		if s.phase != PhaseSetup {
			*out = append(*out, s.setPhase(PhaseSetup))
		}
		return nil
	})
}

// Close cancels all background work for good. The session must not be used
// afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	s.endSpeechWork(s.speech)
	s.report.Discard()
	s.mu.Unlock()
	s.cancel()
}

// Wait blocks until outstanding collaborator requests have returned.
func (s *Session) Wait() {
	s.wg.Wait()
	s.report.Wait()
}

func (s *Session) roundTag() string { return s.id + "/" + strconv.Itoa(s.round) }

// Snapshot is a read-only copy of the session for display.
type Snapshot struct {
	ID              string           `json:"id"`
	Round           int              `json:"round"`
	Phase           Phase            `json:"phase"`
	Motion          string           `json:"motion,omitempty"`
	Role            types.Role       `json:"user_role,omitempty"`
	Team            types.Team       `json:"user_team,omitempty"`
	SkillLevel      types.SkillLevel `json:"skill_level"`
	PrepNotes       string           `json:"prep_notes,omitempty"`
	StructuredNotes string           `json:"structured_notes,omitempty"`
	Prep            *ClockView       `json:"prep_clock,omitempty"`
	Speech          *SpeechView      `json:"speech,omitempty"`
	Speeches        []types.Speech   `json:"speeches"`
	AnsweredPOIs    []types.POI      `json:"answered_pois,omitempty"`
	Report          report.Result    `json:"report"`
	CreatedAt       time.Time        `json:"created_at"`
}

type ClockView struct {
	Remaining int  `json:"remaining"`
	Elapsed   int  `json:"elapsed"`
	Duration  int  `json:"duration"`
	Running   bool `json:"running"`
}

type SpeechView struct {
	ID           string     `json:"id"`
	Started      bool       `json:"started"`
	Stopped      bool       `json:"stopped"`
	Elapsed      int        `json:"elapsed"`
	Running      bool       `json:"running"`
	Transcript   string     `json:"transcript"`
	Interim      string     `json:"interim,omitempty"`
	POIState     string     `json:"poi_state"`
	POI          *types.POI `json:"poi,omitempty"`
	POIExpiresIn int        `json:"poi_expires_in,omitempty"`
}
