package appointment

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition indicates an attempted state change the machine does
// not declare. Callers treat it as a logic or race bug, never retryable.
var ErrInvalidTransition = errors.New("appointment: invalid status transition")

// Status is the lifecycle state of a queue entry.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusCompleted Status = "Completed"
	StatusSkipped   Status = "Skipped"
	StatusNoShow    Status = "No-show"
	StatusCancelled Status = "Cancelled"
)

// transitions declares every legal edge. Completed, Skipped, No-show, and
// Cancelled are terminal: nothing resurrects them.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusSkipped, StatusNoShow, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusSkipped, StatusNoShow, StatusCancelled},
}

// Valid reports whether s is a declared status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusSkipped, StatusNoShow, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the machine declares no edges out of s.
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanTransitionTo reports whether the edge s -> next is declared.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition applies the edge to the in-memory record, stamping noShowTime
// when the entry is marked a no-show. The record is untouched on error.
func Transition(a *Appointment, next Status, now time.Time) error {
	if a == nil {
		return errors.New("appointment: appointment cannot be nil")
	}
	if !a.Status.CanTransitionTo(next) {
		return fmt.Errorf("appointment: %s -> %s: %w", a.Status, next, ErrInvalidTransition)
	}
	a.Status = next
	a.UpdatedAt = now.UTC().Format(time.RFC3339)
	if next == StatusNoShow {
		a.NoShowTime = now.UTC().Format(time.RFC3339)
	}
	return nil
}
