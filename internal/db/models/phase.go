package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Phase is one of the twelve canonical swing phases, or PhaseOther.
type Phase string

const (
	PhaseAddress       Phase = "address"
	PhaseTakeaway      Phase = "takeaway"
	PhaseHalfwayBack   Phase = "halfway_back"
	PhaseBackswing     Phase = "backswing"
	PhaseTop           Phase = "top"
	PhaseTransition    Phase = "transition"
	PhaseDownswing     Phase = "downswing"
	PhaseImpact        Phase = "impact"
	PhaseRelease       Phase = "release"
	PhaseFollowThrough Phase = "follow_through"
	PhaseFinish1       Phase = "finish_1"
	PhaseFinish2       Phase = "finish_2"
	PhaseOther         Phase = "other"
)

var phaseCodes = map[Phase]string{
	PhaseAddress:       "AD",
	PhaseTakeaway:      "TA",
	PhaseHalfwayBack:   "HB",
	PhaseBackswing:     "BS",
	PhaseTop:           "TP",
	PhaseTransition:    "TR",
	PhaseDownswing:     "DS",
	PhaseImpact:        "IM",
	PhaseRelease:       "RL",
	PhaseFollowThrough: "FT",
	PhaseFinish1:       "F1",
	PhaseFinish2:       "F2",
	PhaseOther:         "OT",
}

// Phases lists all phases in swing order, PhaseOther last.
var Phases = []Phase{
	PhaseAddress, PhaseTakeaway, PhaseHalfwayBack, PhaseBackswing,
	PhaseTop, PhaseTransition, PhaseDownswing, PhaseImpact,
	PhaseRelease, PhaseFollowThrough, PhaseFinish1, PhaseFinish2,
	PhaseOther,
}

func (p Phase) Valid() bool {
	_, ok := phaseCodes[p]
	return ok
}

// Code returns the two-letter capture code, e.g. impact -> IM.
func (p Phase) Code() string {
	return phaseCodes[p]
}

// ParsePhase accepts a phase name ("impact", "Follow-Through") or its code ("IM").
func ParsePhase(s string) (Phase, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	if p := Phase(norm); p.Valid() {
		return p, nil
	}
	upper := strings.ToUpper(strings.TrimSpace(s))
	for p, code := range phaseCodes {
		if code == upper {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown swing phase %q", s)
}

// PhaseSet is a section's tag set, stored as a comma-separated column.
type PhaseSet []Phase

// ParsePhaseSet parses comma-separated phases, dropping duplicates and blanks.
func ParsePhaseSet(s string) (PhaseSet, error) {
	var out PhaseSet
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		p, err := ParsePhase(part)
		if err != nil {
			return nil, err
		}
		out = out.add(p)
	}
	return out, nil
}

// NewPhaseSet validates and de-duplicates phases, keeping first-seen order.
func NewPhaseSet(phases []string) (PhaseSet, error) {
	var out PhaseSet
	for _, s := range phases {
		p, err := ParsePhase(s)
		if err != nil {
			return nil, err
		}
		out = out.add(p)
	}
	return out, nil
}

func (s PhaseSet) add(p Phase) PhaseSet {
	if s.Contains(p) {
		return s
	}
	return append(s, p)
}

func (s PhaseSet) Contains(p Phase) bool {
	for _, q := range s {
		if q == p {
			return true
		}
	}
	return false
}

func (s PhaseSet) String() string {
	parts := make([]string, len(s))
	for i, p := range s {
		parts[i] = string(p)
	}
	return strings.Join(parts, ",")
}

func (s PhaseSet) Value() (driver.Value, error) {
	return s.String(), nil
}

func (s *PhaseSet) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("scan PhaseSet: unsupported type %T", src)
	}
	parsed, err := ParsePhaseSet(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s PhaseSet) MarshalJSON() ([]byte, error) {
	if len(s) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal([]Phase(s))
}
