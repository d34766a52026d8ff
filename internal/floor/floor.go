// Package floor decides when someone other than the speaker may take the
// floor with a point of information.
//
// A Scheduler is armed once per speech with a single random delay. It is
// pulse driven: the owner calls Tick once per second with the speech clock
// reading and acts on the returned Decision. Eligibility is checked when the
// delay runs out, not when it is drawn, so a paused clock that has drifted
// out of the open window suppresses the opportunity.
package floor

import (
	"errors"

	"debatecoach/agent/internal/types"
)

const (
	MinDelay = 60
	MaxDelay = 360

	// Protected time: no interjection before OpenAt or after CloseAt.
	OpenAt  = 60
	CloseAt = 360

	ExpirySeconds = 10
)

var (
	ErrAlreadyArmed = errors.New("floor: scheduler already armed for this speech")
	ErrNotAwaiting  = errors.New("floor: no opportunity is being requested")
	ErrNoneLive     = errors.New("floor: no live opportunity")
)

// Rand is the subset of *math/rand/v2.Rand the scheduler draws from.
type Rand interface {
	IntN(n int) int
}

type State int

const (
	StateIdle State = iota
	StateArmed
	StateRequesting
	StateLive
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateRequesting:
		return "requesting"
	case StateLive:
		return "live"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Decision represents the action the owner should take after a tick.
type Decision struct {
	// Fire asks the owner to request interjection text now.
	Fire bool
	// Suppressed is set when the delay ran out outside the open window.
	Suppressed bool
	Reason     string // "protected_time" | "clock_stopped"
	// Expired carries the opportunity that went unanswered.
	Expired *types.POI
}

type Scheduler struct {
	rng Rand

	state     State
	delay     int
	waited    int
	live      *types.POI
	expiresIn int
}

func New(rng Rand) *Scheduler { return &Scheduler{rng: rng} }

// Draw returns a delay uniformly distributed over [MinDelay, MaxDelay].
func Draw(rng Rand) int {
	return MinDelay + rng.IntN(MaxDelay-MinDelay+1)
}

// Eligible reports whether an interjection may be offered right now.
func Eligible(running bool, elapsed int) bool {
	return running && elapsed >= OpenAt && elapsed <= CloseAt
}

// Arm draws the single delay for this speech. A scheduler arms at most once.
func (s *Scheduler) Arm() (int, error) {
	if s.state != StateIdle {
		return 0, ErrAlreadyArmed
	}
	s.delay = Draw(s.rng)
	s.waited = 0
	s.state = StateArmed
	return s.delay, nil
}

// Tick advances pending work by one second.
func (s *Scheduler) Tick(running bool, elapsed int) Decision {
	switch s.state {
	case StateArmed:
		s.waited++
		if s.waited < s.delay {
			return Decision{}
		}
		if !Eligible(running, elapsed) {
			s.state = StateDone
			reason := "protected_time"
			if !running {
				reason = "clock_stopped"
			}
			return Decision{Suppressed: true, Reason: reason}
		}
		s.state = StateRequesting
		return Decision{Fire: true}
	case StateLive:
		s.expiresIn--
		if s.expiresIn > 0 {
			return Decision{}
		}
		p := *s.live
		s.live = nil
		s.state = StateDone
		return Decision{Expired: &p}
	default:
		return Decision{}
	}
}

// Offer makes p the live opportunity and starts its expiry countdown.
func (s *Scheduler) Offer(p types.POI) error {
	if s.state != StateRequesting {
		return ErrNotAwaiting
	}
	s.live = &p
	s.expiresIn = ExpirySeconds
	s.state = StateLive
	return nil
}

// Abandon gives up on an outstanding request; nothing is re-armed.
func (s *Scheduler) Abandon() {
	if s.state == StateRequesting {
		s.state = StateDone
	}
}

// Respond clears the live opportunity, recording whether it was taken.
func (s *Scheduler) Respond(accept bool) (types.POI, error) {
	if s.state != StateLive || s.live == nil {
		return types.POI{}, ErrNoneLive
	}
	p := *s.live
	p.IsAccepted = &accept
	s.live = nil
	s.state = StateDone
	return p, nil
}

// Cancel drops any pending fire, request or expiry. It reports whether
// anything was outstanding.
func (s *Scheduler) Cancel() bool {
	pending := s.state == StateArmed || s.state == StateRequesting || s.state == StateLive
	s.live = nil
	s.state = StateDone
	return pending
}

func (s *Scheduler) State() State { return s.state }

// Delay is the drawn delay, 0 before Arm.
func (s *Scheduler) Delay() int { return s.delay }

// Live returns a copy of the live opportunity, if any.
func (s *Scheduler) Live() (types.POI, bool) {
	if s.live == nil {
		return types.POI{}, false
	}
	return *s.live, true
}

// ExpiresIn is the seconds left before the live opportunity lapses.
func (s *Scheduler) ExpiresIn() int {
	if s.state != StateLive {
		return 0
	}
	return s.expiresIn
}

// Pending reports whether an opportunity is scheduled, requested or live.
func (s *Scheduler) Pending() bool {
	return s.state == StateArmed || s.state == StateRequesting || s.state == StateLive
}
