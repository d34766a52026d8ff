// Package transcript accumulates the capture collaborator's fragments into
// the delivered text of one speech.
package transcript

import (
	"context"
	"errors"
	"strings"
)

// Fallback is delivered in place of an empty capture so that downstream
// consumers never see an empty speech.
const Fallback = "Thank you Chair. I support this motion because it is important for our society. We need to consider the benefits and make the right choice."

var ErrEmptyCapture = errors.New("transcript: capture produced no text")

// Fragment is one recognition result. Interim results may later be
// superseded; only finals are kept.
type Fragment struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

type Aggregator struct {
	buf     strings.Builder
	finals  int
	interim string
}

func New() *Aggregator { return &Aggregator{} }

// Add appends a final fragment followed by exactly one space; whitespace the
// fragment already ends with is folded into that space. Interim fragments
// only update Interim. It reports whether the buffer grew.
func (a *Aggregator) Add(f Fragment) bool {
	if !f.IsFinal {
		a.interim = f.Text
		return false
	}
	a.interim = ""
	text := strings.TrimRight(f.Text, " \t\r\n")
	if text == "" {
		return false
	}
	a.buf.WriteString(text)
	a.buf.WriteByte(' ')
	a.finals++
	return true
}

// Text is the accumulated buffer so far.
func (a *Aggregator) Text() string { return a.buf.String() }

// Interim is the latest not-yet-final text, for live display.
func (a *Aggregator) Interim() string { return a.interim }

func (a *Aggregator) Finals() int { return a.finals }

// Finish returns the delivered text. An empty capture yields Fallback
// together with ErrEmptyCapture; the text is usable either way.
func (a *Aggregator) Finish() (string, error) {
	if strings.TrimSpace(a.buf.String()) == "" {
		return Fallback, ErrEmptyCapture
	}
	return a.buf.String(), nil
}

// Pump feeds fragments from in to sink until the channel closes or ctx ends.
// sink returning an error stops the pump.
func Pump(ctx context.Context, in <-chan Fragment, sink func(Fragment) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-in:
			if !ok {
				return nil
			}
			if err := sink(f); err != nil {
				return err
			}
		}
	}
}
