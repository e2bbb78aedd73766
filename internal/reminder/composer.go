package reminder

import (
	"fmt"
	"strings"
	"time"

	"github.com/klinicq/queue-platform/internal/appointment"
	"github.com/klinicq/queue-platform/internal/clinic"
)

// buildReminder renders one message covering all of a patient's entries for
// the day. Times are shown on the clinic's wall clock.
func buildReminder(c *clinic.Clinic, appts []appointment.Appointment) string {
	loc := c.Location()

	greeting := "Hi"
	if name := strings.TrimSpace(appts[0].PatientName); name != "" {
		greeting = "Hi " + name
	}

	if len(appts) == 1 {
		return fmt.Sprintf("%s, a reminder from %s: %s.", greeting, c.Name, describeVisit(appts[0], loc))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s, a reminder from %s for today:\n", greeting, c.Name)
	for _, a := range appts {
		fmt.Fprintf(&b, "- %s\n", describeVisit(a, loc))
	}
	return strings.TrimRight(b.String(), "\n")
}

func describeVisit(a appointment.Appointment, loc *time.Location) string {
	at := formatClock(a.Time, loc)
	if a.ArriveBy != "" && a.ArriveBy != a.Time {
		return fmt.Sprintf("token %s at %s, please arrive by %s", a.TokenNumber, at, formatClock(a.ArriveBy, loc))
	}
	return fmt.Sprintf("token %s at %s", a.TokenNumber, at)
}

func formatClock(stamp string, loc *time.Location) string {
	t, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return stamp
	}
	return t.In(loc).Format("3:04 PM")
}
