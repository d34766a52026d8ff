package types

import (
	"fmt"
	"strings"
	"time"
)

type Event struct {
	Type    string         `json:"type"`
	Ts      time.Time      `json:"timestamp"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Role is one of the eight British Parliamentary seats.
type Role string

const (
	RolePM  Role = "PM"
	RoleLO  Role = "LO"
	RoleDPM Role = "DPM"
	RoleDLO Role = "DLO"
	RoleMG  Role = "MG"
	RoleMO  Role = "MO"
	RoleGW  Role = "GW"
	RoleOW  Role = "OW"
)

// Roles lists every seat in speaking order.
var Roles = []Role{RolePM, RoleLO, RoleDPM, RoleDLO, RoleMG, RoleMO, RoleGW, RoleOW}

type Team string

const (
	TeamOG Team = "OG"
	TeamOO Team = "OO"
	TeamCG Team = "CG"
	TeamCO Team = "CO"
)

var roleTeams = map[Role]Team{
	RolePM:  TeamOG,
	RoleDPM: TeamOG,
	RoleLO:  TeamOO,
	RoleDLO: TeamOO,
	RoleMG:  TeamCG,
	RoleGW:  TeamCG,
	RoleMO:  TeamCO,
	RoleOW:  TeamCO,
}

var roleTitles = map[Role]string{
	RolePM:  "Prime Minister",
	RoleLO:  "Leader of Opposition",
	RoleDPM: "Deputy Prime Minister",
	RoleDLO: "Deputy Leader of Opposition",
	RoleMG:  "Member of Government",
	RoleMO:  "Member of Opposition",
	RoleGW:  "Government Whip",
	RoleOW:  "Opposition Whip",
}

// ParseRole accepts a seat abbreviation in any case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := roleTeams[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	_, ok := roleTeams[r]
	return ok
}

// Team returns the bench the seat belongs to, or "" for an unknown role.
func (r Role) Team() Team { return roleTeams[r] }

func (r Role) Title() string {
	if t, ok := roleTitles[r]; ok {
		return t
	}
	return string(r)
}

// Order is the 1-based speaking position, 0 if the role is unknown.
func (r Role) Order() int {
	for i, x := range Roles {
		if x == r {
			return i + 1
		}
	}
	return 0
}

// Side reports "government" or "opposition".
func (t Team) Side() string {
	switch t {
	case TeamOG, TeamCG:
		return "government"
	case TeamOO, TeamCO:
		return "opposition"
	default:
		return ""
	}
}

type SkillLevel string

const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
)

func ParseSkillLevel(s string) (SkillLevel, error) {
	switch l := SkillLevel(strings.ToLower(strings.TrimSpace(s))); l {
	case SkillBeginner, SkillIntermediate, SkillAdvanced:
		return l, nil
	default:
		return "", fmt.Errorf("unknown skill level %q", s)
	}
}

// Speech is one delivered speech. It is never mutated after creation.
type Speech struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Transcript string     `json:"transcript,omitempty"`
	IsAI       bool       `json:"is_ai"`
	SkillLevel SkillLevel `json:"skill_level,omitempty"`
	TimeSpoken int        `json:"time_spoken"`
}

// POI is a point of information offered to the speaker.
type POI struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Context    string    `json:"context"`
	TargetRole Role      `json:"target_role"`
	Timestamp  time.Time `json:"timestamp"`
	// Elapsed is the speech clock reading when the POI was offered.
	Elapsed    int   `json:"elapsed"`
	IsAccepted *bool `json:"is_accepted,omitempty"`
}
