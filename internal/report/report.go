// Package report packages a finished round for the grading collaborator and
// holds the verdict for display. It performs no scoring of its own.
package report

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"debatecoach/agent/internal/types"
)

var (
	ErrMalformedReport = errors.New("report: malformed grading result")
	ErrNoSpeeches      = errors.New("report: no speeches to grade")
)

// Grader is the slice of the content collaborator the aggregator needs.
type Grader interface {
	GradeRound(ctx context.Context, speeches []types.Speech, motion string, level types.SkillLevel) (types.Report, error)
}

type Status string

const (
	StatusIdle       Status = "idle"
	StatusPending    Status = "pending"
	StatusReady      Status = "ready"
	StatusIncomplete Status = "incomplete"
)

// Result is what callers display. Report is set only when Status is ready;
// an incomplete result never carries fabricated scores.
type Result struct {
	Status Status        `json:"status"`
	Report *types.Report `json:"report,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// Aggregator issues at most one outstanding grading request. Each request is
// tagged; a response whose tag no longer matches is dropped.
type Aggregator struct {
	grader Grader
	done   func(tag string, r Result)

	mu     sync.Mutex
	tag    string
	status Status
	report *types.Report
	err    error
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns an idle aggregator. done, if non-nil, is called from the
// request goroutine once a current (non-stale) result lands.
func New(g Grader, done func(tag string, r Result)) *Aggregator {
	return &Aggregator{grader: g, done: done, status: StatusIdle}
}

// Submit starts grading speeches under tag. Resubmitting the pending tag is
// a no-op; any other tag supersedes the previous request. The request
// outlives ctx's cancellation but keeps its values.
func (a *Aggregator) Submit(ctx context.Context, tag string, speeches []types.Speech, motion string, level types.SkillLevel) error {
	if len(speeches) == 0 {
		return ErrNoSpeeches
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status == StatusPending && a.tag == tag {
		return nil
	}
	if a.cancel != nil {
		a.cancel()
	}
	rctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.tag = tag
	a.status = StatusPending
	a.report = nil
	a.err = nil
	a.cancel = cancel
	metricSubmitted.Inc()

	batch := append([]types.Speech(nil), speeches...)
	a.wg.Add(1)
	go a.run(rctx, cancel, tag, batch, motion, level)
	return nil
}

func (a *Aggregator) run(ctx context.Context, cancel context.CancelFunc, tag string, speeches []types.Speech, motion string, level types.SkillLevel) {
	defer a.wg.Done()
	defer cancel()

	rep, err := a.grader.GradeRound(ctx, speeches, motion, level)
	if err == nil {
		err = Validate(rep)
	}

	a.mu.Lock()
	if a.tag != tag || a.status != StatusPending {
		a.mu.Unlock()
		metricStale.Inc()
		return
	}
	a.cancel = nil
	if err != nil {
		a.status = StatusIncomplete
		a.err = err
		metricResults.WithLabelValues(string(StatusIncomplete)).Inc()
	} else {
		a.status = StatusReady
		a.report = &rep
		metricResults.WithLabelValues(string(StatusReady)).Inc()
	}
	res := a.resultLocked()
	a.mu.Unlock()

	if a.done != nil {
		a.done(tag, res)
	}
}

// Result returns the current status and, when ready, a copy of the report.
func (a *Aggregator) Result() Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resultLocked()
}

func (a *Aggregator) resultLocked() Result {
	r := Result{Status: a.status}
	if a.report != nil {
		cp := *a.report
		cp.Improvements = append([]string(nil), a.report.Improvements...)
		r.Report = &cp
	}
	if a.err != nil {
		r.Error = a.err.Error()
	}
	return r
}

// Discard cancels any outstanding request and returns to idle. A response
// still in flight will be dropped.
func (a *Aggregator) Discard() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.tag = ""
	a.status = StatusIdle
	a.report = nil
	a.err = nil
}

// Wait blocks until every request goroutine has returned.
func (a *Aggregator) Wait() { a.wg.Wait() }

// Validate rejects grader output outside the documented ranges.
func Validate(r types.Report) error {
	named := r.Metrics.Named()
	for _, name := range types.MetricNames {
		if v := named[name]; !inRange(v) {
			return fmt.Errorf("%w: %s=%v outside [0,10]", ErrMalformedReport, name, v)
		}
	}
	if !inRange(r.OverallScore) {
		return fmt.Errorf("%w: overallScore=%v outside [0,10]", ErrMalformedReport, r.OverallScore)
	}
	if r.Ranking < 1 || r.Ranking > 4 {
		return fmt.Errorf("%w: ranking=%d outside 1..4", ErrMalformedReport, r.Ranking)
	}
	return nil
}

func inRange(v float64) bool { return !math.IsNaN(v) && v >= 0 && v <= 10 }
