// Package timer implements the one-second phase clocks used by a round:
// a countdown for preparation and an open-ended count-up for speeches.
//
// A Timer never reads the wall clock. It advances only when Tick is called
// by the owner's pulse, so pausing cannot drift. Timers are not safe for
// concurrent use; the owning session serialises access.
package timer

import "errors"

var ErrNegativeDuration = errors.New("timer: negative duration")

type Mode int

const (
	Countdown Mode = iota
	CountUp
)

func (m Mode) String() string {
	switch m {
	case Countdown:
		return "countdown"
	case CountUp:
		return "count_up"
	default:
		return "unknown"
	}
}

type Timer struct {
	mode     Mode
	duration int
	value    int
	running  bool
}

// NewCountdown returns a stopped countdown armed at seconds.
func NewCountdown(seconds int) (*Timer, error) {
	t := &Timer{mode: Countdown}
	if err := t.Reset(seconds); err != nil {
		return nil, err
	}
	return t, nil
}

// NewCountUp returns a stopped clock at zero with no ceiling.
func NewCountUp() *Timer { return &Timer{mode: CountUp} }

func (t *Timer) Mode() Mode { return t.mode }

// Start resumes ticking. A countdown already at zero stays stopped.
func (t *Timer) Start() {
	if t.mode == Countdown && t.value == 0 {
		return
	}
	t.running = true
}

func (t *Timer) Pause() { t.running = false }

// Reset re-arms the timer and leaves it stopped. For a count-up clock the
// duration is ignored and the clock returns to zero.
func (t *Timer) Reset(seconds int) error {
	if seconds < 0 {
		return ErrNegativeDuration
	}
	t.running = false
	if t.mode == CountUp {
		t.duration = 0
		t.value = 0
		return nil
	}
	t.duration = seconds
	t.value = seconds
	return nil
}

// Tick advances the clock by one second if it is running. It reports true
// when a countdown reaches zero on this tick; the timer stops itself then.
func (t *Timer) Tick() bool {
	if !t.running {
		return false
	}
	if t.mode == CountUp {
		t.value++
		return false
	}
	if t.value > 0 {
		t.value--
	}
	if t.value == 0 {
		t.running = false
		return true
	}
	return false
}

// Remaining is the countdown value; for a count-up clock it is always 0.
func (t *Timer) Remaining() int {
	if t.mode == CountUp {
		return 0
	}
	return t.value
}

// Elapsed is seconds counted so far in either mode.
func (t *Timer) Elapsed() int {
	if t.mode == CountUp {
		return t.value
	}
	return t.duration - t.value
}

func (t *Timer) Duration() int  { return t.duration }
func (t *Timer) IsRunning() bool { return t.running }
