package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"

	"debatecoach/agent/internal/content"
	"debatecoach/agent/internal/floor"
	"debatecoach/agent/internal/transcript"
	"debatecoach/agent/internal/types"
)

var errClockIdle = errors.New("speech clock not running")

type defaultRand struct{}

func (defaultRand) IntN(n int) int { return rand.IntN(n) }

// currentSpeech returns the live speech if op is allowed now.
func (s *Session) currentSpeech(op Op) (*speechState, error) {
	if err := s.guard(op); err != nil {
		return nil, err
	}
	if s.speech == nil {
		return nil, s.reject(op, errors.New("no speech in progress"))
	}
	return s.speech, nil
}

// StartSpeech starts the count-up clock and arms the single interjection
// draw for this speech.
func (s *Session) StartSpeech() error {
	return s.locked(func(out *[]types.Event) error {
		sp, err := s.currentSpeech(OpStartSpeech)
		if err != nil {
			return err
		}
		if sp.started {
			return s.reject(OpStartSpeech, errors.New("speech already started"))
		}
		delay, err := sp.sched.Arm()
		if err != nil {
			return s.reject(OpStartSpeech, err)
		}
		sp.started = true
		sp.clock.Start()
		metricPOI.WithLabelValues("armed").Inc()
		s.log.Debug("speech started", "speech_id", sp.id, "poi_delay", delay)
		*out = append(*out, s.event("speech_started", map[string]any{"speech_id": sp.id}))
		return nil
	})
}

// PauseSpeechClock pauses the clock only. The scheduler keeps counting and
// re-checks eligibility when its delay runs out.
func (s *Session) PauseSpeechClock() error {
	return s.speechClock("paused", func(sp *speechState) { sp.clock.Pause() })
}

func (s *Session) ResumeSpeechClock() error {
	return s.speechClock("resumed", func(sp *speechState) { sp.clock.Start() })
}

func (s *Session) speechClock(action string, fn func(*speechState)) error {
	return s.locked(func(out *[]types.Event) error {
		sp, err := s.currentSpeech(OpSpeechClock)
		if err != nil {
			return err
		}
		if !sp.started || sp.stopped {
			return s.reject(OpSpeechClock, errClockIdle)
		}
		fn(sp)
		*out = append(*out, s.event("speech_clock", map[string]any{
			"action":  action,
			"elapsed": sp.clock.Elapsed(),
		}))
		return nil
	})
}

// StopSpeech is the explicit stop: the clock halts and every pending fire,
// request and expiry is cancelled. The speech can still be completed.
func (s *Session) StopSpeech() error {
	return s.locked(func(out *[]types.Event) error {
		sp, err := s.currentSpeech(OpStopSpeech)
		if err != nil {
			return err
		}
		if !sp.started || sp.stopped {
			return s.reject(OpStopSpeech, errClockIdle)
		}
		sp.clock.Pause()
		sp.stopped = true
		s.endSpeechWork(sp)
		*out = append(*out, s.event("speech_stopped", map[string]any{"elapsed": sp.clock.Elapsed()}))
		return nil
	})
}

// endSpeechWork cancels the scheduler and any in-flight request. Callers
// hold s.mu.
func (s *Session) endSpeechWork(sp *speechState) {
	if sp == nil {
		return
	}
	if sp.sched.Cancel() {
		metricPOI.WithLabelValues("cancelled").Inc()
	}
	sp.cancel()
}

// AddFragment feeds one capture result into the speech transcript. Only
// final fragments are kept.
func (s *Session) AddFragment(f transcript.Fragment) error {
	return s.locked(func(out *[]types.Event) error {
		sp, err := s.currentSpeech(OpAddFragment)
		if err != nil {
			return err
		}
		kind := "interim"
		if f.IsFinal {
			kind = "final"
		}
		metricFragments.WithLabelValues(kind).Inc()
		sp.agg.Add(f)
		return nil
	})
}

// RespondPOI answers the live point of information. Either answer clears it
// and no replacement is armed; the answer is kept in the session's POI log.
func (s *Session) RespondPOI(accept bool) (types.POI, error) {
	var answered types.POI
	err := s.locked(func(out *[]types.Event) error {
		sp, err := s.currentSpeech(OpRespondPOI)
		if err != nil {
			return err
		}
		p, err := sp.sched.Respond(accept)
		if err != nil {
			return s.reject(OpRespondPOI, err)
		}
		outcome := "rejected"
		if accept {
			outcome = "accepted"
		}
		metricPOI.WithLabelValues(outcome).Inc()
		s.answered = append(s.answered, p)
		answered = p
		*out = append(*out, s.event("poi_answered", map[string]any{"id": p.ID, "accepted": accept}))
		return nil
	})
	return answered, err
}

// CompleteSpeech finalizes the user's speech and moves to FEEDBACK.
func (s *Session) CompleteSpeech() (types.Speech, error) {
	var done types.Speech
	err := s.locked(func(out *[]types.Event) error {
		sp, err := s.currentSpeech(OpCompleteSpeech)
		if err != nil {
			return err
		}
		sp.clock.Pause()
		s.endSpeechWork(sp)
		text, err := sp.agg.Finish()
		if errors.Is(err, transcript.ErrEmptyCapture) {
			metricEmptyCaptures.Inc()
			s.log.Warn("speech completed with empty capture, using fallback", "speech_id", sp.id)
		}
		done = types.Speech{
			Role:       s.role,
			Content:    text,
			Transcript: sp.agg.Text(),
			IsAI:       false,
			SkillLevel: s.skill,
			TimeSpoken: sp.clock.Elapsed(),
		}
		metricSpeechSeconds.Observe(float64(done.TimeSpoken))
		s.speeches = append(s.speeches, done)
		s.speech = nil
		*out = append(*out,
			s.event("speech_completed", map[string]any{"role": string(done.Role), "time_spoken": done.TimeSpoken}),
			s.setPhase(PhaseFeedback),
		)
		return nil
	})
	return done, err
}

// RecordSimulatedSpeech appends an AI-authored speech for another seat.
func (s *Session) RecordSimulatedSpeech(role types.Role, text string) (types.Speech, error) {
	var sp types.Speech
	err := s.locked(func(out *[]types.Event) error {
		if err := s.guard(OpSimulatedSpeech); err != nil {
			return err
		}
		if err := s.checkSimulated(role, text); err != nil {
			return err
		}
		sp = s.appendSimulated(role, text, out)
		return nil
	})
	return sp, err
}

func (s *Session) checkSimulated(role types.Role, text string) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidArgument, role)
	}
	if role == s.role {
		return fmt.Errorf("%w: %s is the user's seat", ErrInvalidArgument, role)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: empty speech", ErrInvalidArgument)
	}
	return nil
}

func (s *Session) appendSimulated(role types.Role, text string, out *[]types.Event) types.Speech {
	sp := types.Speech{Role: role, Content: text, IsAI: true, SkillLevel: s.skill}
	s.speeches = append(s.speeches, sp)
	*out = append(*out, s.event("simulated_speech", map[string]any{"role": string(role)}))
	return sp
}

// SimulateSpeech asks the collaborator to write a speech for role and
// records it. The reply is dropped if the round was reset meanwhile.
func (s *Session) SimulateSpeech(ctx context.Context, role types.Role) (types.Speech, error) {
	s.mu.Lock()
	if err := s.guard(OpSimulatedSpeech); err != nil {
		s.mu.Unlock()
		return types.Speech{}, err
	}
	if err := s.checkSimulated(role, "-"); err != nil {
		s.mu.Unlock()
		return types.Speech{}, err
	}
	round := s.round
	req := content.SpeechRequest{
		Motion:     s.motion,
		Role:       role,
		SkillLevel: s.skill,
		Previous:   append([]types.Speech(nil), s.speeches...),
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	text, err := s.gen.GenerateSpeech(ctx, req)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty response")
	}
	if err != nil {
		return types.Speech{}, content.Unavailable("generate_speech", err)
	}

	var sp types.Speech
	err = s.locked(func(out *[]types.Event) error {
		if s.round != round {
			metricStaleResponses.WithLabelValues("speech").Inc()
			return s.reject(OpSimulatedSpeech, errors.New("round ended before the speech arrived"))
		}
		if err := s.guard(OpSimulatedSpeech); err != nil {
			return err
		}
		sp = s.appendSimulated(role, text, out)
		return nil
	})
	return sp, err
}

func (s *Session) tickSpeech(out *[]types.Event) {
	sp := s.speech
	if sp == nil {
		return
	}
	sp.clock.Tick()
	dec := sp.sched.Tick(sp.clock.IsRunning(), sp.clock.Elapsed())
	switch {
	case dec.Fire:
		s.requestPOI(sp)
	case dec.Suppressed:
		metricPOI.WithLabelValues("suppressed_" + dec.Reason).Inc()
		s.log.Debug("poi suppressed", "speech_id", sp.id, "reason", dec.Reason, "elapsed", sp.clock.Elapsed())
		*out = append(*out, s.event("poi_suppressed", map[string]any{"reason": dec.Reason}))
	case dec.Expired != nil:
		metricPOI.WithLabelValues("expired").Inc()
		*out = append(*out, s.event("poi_expired", map[string]any{"id": dec.Expired.ID}))
	}
}

// requestPOI issues the interjection request for sp. Callers hold s.mu.
func (s *Session) requestPOI(sp *speechState) {
	req := content.POIRequest{
		Transcript: sp.agg.Text(),
		Role:       s.role,
		Motion:     s.motion,
		Elapsed:    sp.clock.Elapsed(),
		SkillLevel: s.skill,
	}
	t := tag{round: s.round, speech: sp.id}
	ctx, cancel := context.WithTimeout(sp.ctx, s.timeout)
	s.wg.Add(1)
	go s.fetchPOI(ctx, cancel, t, req)
}

func (s *Session) fetchPOI(ctx context.Context, cancel context.CancelFunc, t tag, req content.POIRequest) {
	defer s.wg.Done()
	defer cancel()

	text, err := s.gen.GeneratePOI(ctx, req)

	_ = s.locked(func(out *[]types.Event) error {
		sp := s.speech
		if s.round != t.round || s.phase != PhaseSpeech || sp == nil || sp.id != t.speech ||
			sp.sched.State() != floor.StateRequesting {
			metricStaleResponses.WithLabelValues("poi").Inc()
			s.log.Debug("dropping stale poi response", "speech_id", t.speech)
			return nil
		}
		if err != nil || strings.TrimSpace(text) == "" {
			sp.sched.Abandon()
			outcome := "empty"
			if err != nil {
				outcome = "unavailable"
				s.log.Warn("poi generation failed", "err", err)
			}
			metricPOI.WithLabelValues(outcome).Inc()
			return nil
		}
		p := types.POI{
			ID:         uuid.NewString(),
			Content:    strings.TrimSpace(text),
			Context:    fmt.Sprintf("Point of Information during the %s's speech", s.role.Title()),
			TargetRole: s.role,
			Timestamp:  s.now(),
			Elapsed:    req.Elapsed,
		}
		if err := sp.sched.Offer(p); err != nil {
			return nil
		}
		metricPOI.WithLabelValues("offered").Inc()
		*out = append(*out, s.event("poi_offered", map[string]any{
			"id":         p.ID,
			"content":    p.Content,
			"expires_in": floor.ExpirySeconds,
		}))
		return nil
	})
}
