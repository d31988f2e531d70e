package domain

import "fmt"

// Urgency ranks how quickly a declaration needs attention.
type Urgency string

const (
	UrgencyLow       Urgency = "low"
	UrgencyMedium    Urgency = "medium"
	UrgencyHigh      Urgency = "high"
	UrgencyEmergency Urgency = "emergency"
)

var urgencies = map[Urgency]struct{}{
	UrgencyLow:       {},
	UrgencyMedium:    {},
	UrgencyHigh:      {},
	UrgencyEmergency: {},
}

// Valid reports membership of the closed set.
func (u Urgency) Valid() bool {
	_, ok := urgencies[u]
	return ok
}

// ParseUrgency resolves a raw string to an urgency level.
func ParseUrgency(raw string) (Urgency, error) {
	u := Urgency(raw)
	if !u.Valid() {
		return "", fmt.Errorf("unknown urgency %q", raw)
	}
	return u, nil
}
