// Package status is the canonical registry of declaration states and the
// legal transition graph. Every status string persisted or accepted over the
// API must resolve through this package; nothing else may invent states.
package status

import (
	dErrors "habita/pkg/domain-errors"
)

// Status is a declaration lifecycle state.
type Status string

const (
	New                        Status = "new"
	Transmitted                Status = "transmitted"
	AwaitingDiagnosticMeeting  Status = "awaiting_diagnostic_meeting"
	DiagnosticMeetingScheduled Status = "diagnostic_meeting_scheduled"
	QuoteReceived              Status = "quote_received"
	InRepair                   Status = "in_repair"
	Resolved                   Status = "resolved"
	Cancelled                  Status = "cancelled"
)

// ordered is the canonical presentation order. AllStates returns a copy.
var ordered = []Status{
	New,
	Transmitted,
	AwaitingDiagnosticMeeting,
	DiagnosticMeetingScheduled,
	QuoteReceived,
	InRepair,
	Resolved,
	Cancelled,
}

// transitions is the legal edge set, as data. Cancelled is reachable from any
// non-terminal state; Resolved and Cancelled have no outgoing edges, so a
// cancellation request against a terminal declaration fails like any other
// transition out of it.
var transitions = map[Status][]Status{
	New:                        {Transmitted, Cancelled},
	Transmitted:                {AwaitingDiagnosticMeeting, Cancelled},
	AwaitingDiagnosticMeeting:  {DiagnosticMeetingScheduled, Cancelled},
	DiagnosticMeetingScheduled: {QuoteReceived, Cancelled},
	QuoteReceived:              {InRepair, Cancelled},
	InRepair:                   {Resolved, Cancelled},
	Resolved:                   {},
	Cancelled:                  {},
}

// AllStates returns the closed state set in canonical order.
func AllStates() []Status {
	out := make([]Status, len(ordered))
	copy(out, ordered)
	return out
}

// IsValid reports whether s is a member of the closed set.
func IsValid(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether s admits no further transitions.
func IsTerminal(s Status) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// IsValidTransition reports whether from → to is an edge of the graph.
// Unknown states are never part of any edge.
func IsValidTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Parse resolves a raw string to a registry member.
func Parse(raw string) (Status, error) {
	s := Status(raw)
	if !IsValid(s) {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown status %q", raw)
	}
	return s, nil
}
