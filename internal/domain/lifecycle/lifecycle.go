// Package lifecycle holds the status transition tables shared by health
// requests and medicine orders, and the append-only history of accepted
// transitions.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownStatus     = errors.New("unknown status")
)

// TransitionError reports a rejected move between two statuses.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid %s status transition from %s to %s", e.Entity, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Machine is a directed table of allowed status moves for one entity kind.
type Machine struct {
	entity  string
	initial string
	allowed map[string]map[string]bool
	states  map[string]bool
}

// NewMachine builds a Machine from an adjacency list. Every status that
// appears as a source or a target is a known status.
func NewMachine(entity, initial string, transitions map[string][]string) *Machine {
	m := &Machine{
		entity:  entity,
		initial: initial,
		allowed: make(map[string]map[string]bool, len(transitions)),
		states:  map[string]bool{initial: true},
	}
	for from, targets := range transitions {
		m.states[from] = true
		if m.allowed[from] == nil {
			m.allowed[from] = make(map[string]bool, len(targets))
		}
		for _, to := range targets {
			m.allowed[from][to] = true
			m.states[to] = true
		}
	}
	return m
}

func (m *Machine) Initial() string { return m.initial }

// Known reports whether status belongs to this machine.
func (m *Machine) Known(status string) bool {
	return m.states[status]
}

// Validate returns nil when from -> to is an allowed move. Same-status
// writes are rejected like any other move that is not in the table.
func (m *Machine) Validate(from, to string) error {
	if !m.states[to] {
		return fmt.Errorf("%w: %s %q", ErrUnknownStatus, m.entity, to)
	}
	if !m.allowed[from][to] {
		return &TransitionError{Entity: m.entity, From: from, To: to}
	}
	return nil
}

// Next lists the statuses reachable from status in one step, sorted.
func (m *Machine) Next(status string) []string {
	out := make([]string, 0, len(m.allowed[status]))
	for to := range m.allowed[status] {
		out = append(out, to)
	}
	sort.Strings(out)
	return out
}

// Terminal reports whether status has no outgoing moves.
func (m *Machine) Terminal(status string) bool {
	return m.states[status] && len(m.allowed[status]) == 0
}

// StatusChange is one accepted transition.
type StatusChange struct {
	Entity    string    `json:"entity" db:"entity"`
	EntityID  string    `json:"entityId" db:"entity_id"`
	From      string    `json:"from" db:"from_status"`
	To        string    `json:"to" db:"to_status"`
	ChangedBy string    `json:"changedBy,omitempty" db:"changed_by"`
	ChangedAt time.Time `json:"changedAt" db:"changed_at"`
}

// HistoryRepository stores status changes in the order they were accepted.
type HistoryRepository interface {
	Append(ctx context.Context, c StatusChange) error
	List(ctx context.Context, entity, entityID string) ([]StatusChange, error)
}
