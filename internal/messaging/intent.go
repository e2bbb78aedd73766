package messaging

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/klinicq/queue-platform/internal/clinic"
)

// intent is the reply path chosen for one inbound text.
type intent string

const (
	intentClinicCode intent = "clinic_code"
	intentBooking    intent = "booking"
	intentUnknown    intent = "unknown"
)

var bookingWords = regexp.MustCompile(`(?i)\b(book(ing)?|appointment|token)\b`)

// classify picks the reply path for an inbound text. A short code anywhere
// in the message wins over booking keywords, so "book at KQ-7P2M" resolves
// the clinic rather than sending the generic link.
func classify(text string) (intent, string) {
	if code, ok := clinic.FindCodeInText(text); ok {
		return intentClinicCode, code
	}
	if bookingWords.MatchString(text) {
		return intentBooking, ""
	}
	return intentUnknown, ""
}

// replyComposer renders outbound reply bodies. baseURL is the public site
// root hosting the per-clinic booking pages.
type replyComposer struct {
	baseURL string
}

func (c replyComposer) bookingLink(clinicID string) string {
	return strings.TrimRight(c.baseURL, "/") + "/c/" + clinicID
}

// clinicDirectory renders the directory card for a resolved short code:
// clinic identity, the published consulting sessions, and the booking link.
func (c replyComposer) clinicDirectory(cl *clinic.Clinic) string {
	var b strings.Builder

	b.WriteString(cl.Name)
	if cl.Address != "" {
		b.WriteString(", ")
		b.WriteString(cl.Address)
	}
	b.WriteString(".")

	if len(cl.Sessions) == 0 {
		b.WriteString("\nNo consulting sessions are published yet.")
	} else {
		b.WriteString("\nToday's sessions:")
		for _, s := range cl.Sessions {
			b.WriteString("\n- ")
			b.WriteString(doctorLabel(s))
			fmt.Fprintf(&b, ": %s to %s", s.StartTime, s.EndTime)
		}
	}

	fmt.Fprintf(&b, "\nBook a token: %s", c.bookingLink(cl.ID))
	return b.String()
}

func (c replyComposer) unknownCode(code string) string {
	return fmt.Sprintf("We could not find a clinic for code %s. Please check the code on your clinic's poster and try again.", code)
}

func (c replyComposer) lookupUnavailable() string {
	return "Sorry, we could not look that up right now. Please try again in a few minutes."
}

func (c replyComposer) bookingPrompt() string {
	return fmt.Sprintf("To book a token, open %s or reply with your clinic's code (it looks like KQ-7P2M).", strings.TrimRight(c.baseURL, "/"))
}

func (c replyComposer) help() string {
	return "Hi! Reply with your clinic's code (it looks like KQ-7P2M) to see today's sessions, or text \"book\" for a booking link."
}

func doctorLabel(s clinic.Session) string {
	if s.DoctorName != "" {
		return s.DoctorName
	}
	return s.DoctorID
}
