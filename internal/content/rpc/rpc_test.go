package rpc

import (
	"context"
	"errors"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"debatecoach/agent/internal/content"
	"debatecoach/agent/internal/types"
)

type stubGen struct {
	content.Offline
	lastPOI content.POIRequest
}

func (s *stubGen) StructureNotes(ctx context.Context, motion string, role types.Role, notes string) (string, error) {
	return string(role) + ":" + notes, nil
}

func (s *stubGen) GeneratePOI(ctx context.Context, req content.POIRequest) (string, error) {
	s.lastPOI = req
	return "What about the costs?", nil
}

func (s *stubGen) GradeRound(ctx context.Context, speeches []types.Speech, motion string, level types.SkillLevel) (types.Report, error) {
	return types.Report{OverallScore: 7.5, Ranking: len(speeches), Improvements: []string{motion}}, nil
}

func startServer(t *testing.T, gen content.Generator) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s, _ := NewGRPCServer(gen)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	c := NewClient("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRoundTrip(t *testing.T) {
	gen := &stubGen{}
	c := startServer(t, gen)
	ctx := context.Background()

	out, err := c.StructureNotes(ctx, "m", types.RoleDLO, "notes")
	if err != nil || out != "DLO:notes" {
		t.Fatalf("structure = %q, %v", out, err)
	}

	poi, err := c.GeneratePOI(ctx, content.POIRequest{Role: types.RolePM, Elapsed: 75, Transcript: "so far", SkillLevel: types.SkillAdvanced})
	if err != nil || poi != "What about the costs?" {
		t.Fatalf("poi = %q, %v", poi, err)
	}
	if gen.lastPOI.Elapsed != 75 || gen.lastPOI.SkillLevel != types.SkillAdvanced {
		t.Fatalf("request not carried intact: %+v", gen.lastPOI)
	}

	rep, err := c.GradeRound(ctx, []types.Speech{{Role: types.RolePM}, {Role: types.RoleLO, IsAI: true}}, "motion", types.SkillBeginner)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if rep.Ranking != 2 || rep.OverallScore != 7.5 || rep.Improvements[0] != "motion" {
		t.Fatalf("report = %+v", rep)
	}

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestServerErrorsAreUnavailable(t *testing.T) {
	c := startServer(t, &stubGen{})
	_, err := c.GenerateSpeech(context.Background(), content.SpeechRequest{Role: types.RoleMO})
	if !errors.Is(err, content.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := c.GradeRound(context.Background(), nil, "m", types.SkillBeginner); !errors.Is(err, content.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for empty round, got %v", err)
	}
}
