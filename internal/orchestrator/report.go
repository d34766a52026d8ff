package orchestrator

import (
	"context"

	"debatecoach/agent/internal/report"
	"debatecoach/agent/internal/types"
)

// RequestReport hands the speech log to the grader. It returns immediately;
// poll Report or watch for report_ready / report_incomplete events.
func (s *Session) RequestReport(ctx context.Context) error {
	return s.locked(func(out *[]types.Event) error {
		if err := s.guard(OpRequestReport); err != nil {
			return err
		}
		if err := s.report.Submit(ctx, s.roundTag(), s.speeches, s.motion, s.skill); err != nil {
			return s.reject(OpRequestReport, err)
		}
		*out = append(*out, s.event("report_requested", map[string]any{"speeches": len(s.speeches)}))
		return nil
	})
}

func (s *Session) Report() report.Result { return s.report.Result() }

// onReport runs on the grading goroutine once a current result lands.
func (s *Session) onReport(t string, r report.Result) {
	s.mu.Lock()
	current := t == s.roundTag()
	s.mu.Unlock()
	if !current {
		metricStaleResponses.WithLabelValues("report").Inc()
		return
	}
	typ := "report_ready"
	payload := map[string]any{}
	if r.Status == report.StatusIncomplete {
		typ = "report_incomplete"
		payload["error"] = r.Error
		s.log.Warn("grading failed, report incomplete", "err", r.Error)
	} else if r.Report != nil {
		payload["overall_score"] = r.Report.OverallScore
		payload["ranking"] = r.Report.Ranking
	}
	s.publish([]types.Event{s.event(typ, payload)})
}
