// Package content is the boundary to the content-generation collaborator:
// structuring notes, drafting points of information, grading rounds and
// writing simulated speeches.
package content

import (
	"context"
	"errors"
	"fmt"

	"debatecoach/agent/internal/types"
)

// ErrUnavailable marks any failed or timed-out collaborator call. Callers
// degrade to a safe default rather than failing the round.
var ErrUnavailable = errors.New("content: collaborator unavailable")

// POIRequest carries what the generator sees when an interjection fires.
type POIRequest struct {
	Transcript string           `json:"transcript"`
	Role       types.Role       `json:"role"`
	Motion     string           `json:"motion"`
	Elapsed    int              `json:"elapsed_seconds"`
	SkillLevel types.SkillLevel `json:"skill_level"`
}

// SpeechRequest asks for a simulated speech for a seat the user does not hold.
type SpeechRequest struct {
	Motion     string           `json:"motion"`
	Role       types.Role       `json:"role"`
	SkillLevel types.SkillLevel `json:"skill_level"`
	Previous   []types.Speech   `json:"previous,omitempty"`
}

type Generator interface {
	StructureNotes(ctx context.Context, motion string, role types.Role, notes string) (string, error)
	// GeneratePOI returns "" when the generator has nothing to offer.
	GeneratePOI(ctx context.Context, req POIRequest) (string, error)
	GradeRound(ctx context.Context, speeches []types.Speech, motion string, level types.SkillLevel) (types.Report, error)
	GenerateSpeech(ctx context.Context, req SpeechRequest) (string, error)
}

// Unavailable wraps err so that errors.Is(err, ErrUnavailable) holds.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// Offline is the generator used when no backend is configured. Every call
// fails with ErrUnavailable so callers take their fallback paths.
type Offline struct{}

func (Offline) StructureNotes(context.Context, string, types.Role, string) (string, error) {
	return "", ErrUnavailable
}

func (Offline) GeneratePOI(context.Context, POIRequest) (string, error) { return "", ErrUnavailable }

func (Offline) GradeRound(context.Context, []types.Speech, string, types.SkillLevel) (types.Report, error) {
	return types.Report{}, ErrUnavailable
}

func (Offline) GenerateSpeech(context.Context, SpeechRequest) (string, error) {
	return "", ErrUnavailable
}
