package domain

import (
	"fmt"
	"strings"
)

// Priority is the importance of a task.
type Priority int

const (
	PriorityHigh Priority = iota + 1
	PriorityMedium
	PriorityLow
)

// Priorities lists every priority from highest to lowest.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p >= PriorityHigh && p <= PriorityLow
}

// Normalize maps unknown values to PriorityMedium.
func (p Priority) Normalize() Priority {
	if !p.Valid() {
		return PriorityMedium
	}
	return p
}

// Rank orders priorities: HIGH=0, MEDIUM=1, LOW=2.
func (p Priority) Rank() int {
	return int(p.Normalize()) - 1
}

// Code is the stable wire value stored in task documents.
func (p Priority) Code() string {
	switch p.Normalize() {
	case PriorityHigh:
		return "P1"
	case PriorityLow:
		return "P3"
	default:
		return "P2"
	}
}

// Label is the user facing name.
func (p Priority) Label() string {
	switch p.Normalize() {
	case PriorityHigh:
		return "Alta"
	case PriorityLow:
		return "Baja"
	default:
		return "Media"
	}
}

func (p Priority) String() string {
	switch p.Normalize() {
	case PriorityHigh:
		return "HIGH"
	case PriorityLow:
		return "LOW"
	default:
		return "MEDIUM"
	}
}

// ParsePriority accepts a wire code ("P1") or a name ("high").
func ParsePriority(s string) (Priority, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "P1", "HIGH":
		return PriorityHigh, nil
	case "P2", "MEDIUM":
		return PriorityMedium, nil
	case "P3", "LOW":
		return PriorityLow, nil
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.Code()), nil
}

func (p *Priority) UnmarshalText(b []byte) error {
	parsed, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
