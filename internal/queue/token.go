package queue

import "fmt"

// BookedVia identifies the channel an appointment was created through.
type BookedVia string

const (
	ViaApp    BookedVia = "App"
	ViaWalkIn BookedVia = "Walk-in"
)

// TokenPrefix returns the single-letter display prefix for the channel.
// The prefix is fixed at creation time and never changes afterwards.
func (v BookedVia) TokenPrefix() string {
	if v == ViaWalkIn {
		return "W"
	}
	return "A"
}

func (v BookedVia) Valid() bool {
	return v == ViaApp || v == ViaWalkIn
}

// TokenNumber formats the patient-facing token for a zero-based position
// within a session, e.g. position 0 booked in person becomes "W1".
func TokenNumber(via BookedVia, position int) string {
	return fmt.Sprintf("%s%d", via.TokenPrefix(), position+1)
}
