package orchestrator

import (
	"errors"
	"fmt"
)

// Phase is the round's position in SETUP → MOTION_LOCKED → ROLE_ASSIGNED →
// PREPARATION → SPEECH → FEEDBACK.
type Phase int

const (
	PhaseSetup Phase = iota
	PhaseMotionLocked
	PhaseRoleAssigned
	PhasePreparation
	PhaseSpeech
	PhaseFeedback
)

func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "SETUP"
	case PhaseMotionLocked:
		return "MOTION_LOCKED"
	case PhaseRoleAssigned:
		return "ROLE_ASSIGNED"
	case PhasePreparation:
		return "PREPARATION"
	case PhaseSpeech:
		return "SPEECH"
	case PhaseFeedback:
		return "FEEDBACK"
	default:
		return "UNKNOWN"
	}
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Op names a session operation for guards, errors and metrics.
type Op string

const (
	OpSelectSkill     Op = "select_skill_level"
	OpLockMotion      Op = "lock_motion"
	OpAssignRole      Op = "assign_role"
	OpBeginPrep       Op = "begin_preparation"
	OpPrepClock       Op = "prep_clock"
	OpStructureNotes  Op = "structure_notes"
	OpFinishPrep      Op = "finish_preparation"
	OpStartSpeech     Op = "start_speech"
	OpSpeechClock     Op = "speech_clock"
	OpStopSpeech      Op = "stop_speech"
	OpAddFragment     Op = "add_fragment"
	OpRespondPOI      Op = "respond_poi"
	OpCompleteSpeech  Op = "complete_speech"
	OpSimulatedSpeech Op = "simulated_speech"
	OpRequestReport   Op = "request_report"
	OpReset           Op = "reset_to_setup"
)

// allows is the transition table. Every phase lists the operations it
// accepts; anything else is an invalid transition.
func (p Phase) allows(op Op) bool {
	if op == OpReset {
		return true
	}
	switch p {
	case PhaseSetup:
		return op == OpSelectSkill || op == OpLockMotion
	case PhaseMotionLocked:
		return op == OpAssignRole
	case PhaseRoleAssigned:
		return op == OpBeginPrep
	case PhasePreparation:
		return op == OpPrepClock || op == OpStructureNotes || op == OpFinishPrep
	case PhaseSpeech:
		switch op {
		case OpStartSpeech, OpSpeechClock, OpStopSpeech, OpAddFragment,
			OpRespondPOI, OpCompleteSpeech, OpSimulatedSpeech:
			return true
		}
		return false
	case PhaseFeedback:
		return op == OpSimulatedSpeech || op == OpRequestReport
	default:
		return false
	}
}

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// TransitionError reports an operation attempted outside its guard. The
// session is left unchanged.
type TransitionError struct {
	Op    Op
	Phase Phase
	// Err optionally narrows the cause, e.g. floor.ErrNoneLive.
	Err error
}

func (e *TransitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s not allowed in %s: %v", e.Op, e.Phase, e.Err)
	}
	return fmt.Sprintf("%s not allowed in %s", e.Op, e.Phase)
}

func (e *TransitionError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidTransition, e.Err}
	}
	return []error{ErrInvalidTransition}
}
