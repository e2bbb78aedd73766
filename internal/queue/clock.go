package queue

import (
	"strings"
	"time"

	"github.com/klinicq/queue-platform/pkg/logging"
)

// PrebookedArrivalLead is how far ahead of their slot pre-booked patients are
// asked to arrive. Walk-ins are already on site, so no lead applies to them.
const PrebookedArrivalLead = 15 * time.Minute

// clockLayouts are tried in order; 12-hour forms first so a trailing AM/PM is
// never left dangling.
var clockLayouts = []string{"3:04 PM", "3:04PM", "15:04", "15:04:05"}

// ParseClockTime interprets a clock-time string in 12-hour ("2:30 pm") or
// 24-hour ("14:30") form and anchors it to the given day in that day's
// location. Unparseable input does not fail the caller: the fallback is
// midnight of the day, with a warning logged. This feeds queue display, so
// degrading beats erroring.
func ParseClockTime(text string, day time.Time, logger *logging.Logger) time.Time {
	if logger == nil {
		logger = logging.Default()
	}

	normalized := strings.ToUpper(strings.Join(strings.Fields(text), " "))
	for _, layout := range clockLayouts {
		parsed, err := time.Parse(layout, normalized)
		if err != nil {
			continue
		}
		return time.Date(day.Year(), day.Month(), day.Day(),
			parsed.Hour(), parsed.Minute(), parsed.Second(), 0, day.Location())
	}

	logger.Warn("unparseable clock time, falling back to midnight", "input", text)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
}

// ArriveBy computes the time a patient should be at the clinic. Pre-booked
// entries get the arrival lead subtracted; walk-ins keep the slot time.
func ArriveBy(appointmentTime time.Time, via BookedVia) time.Time {
	if via == ViaApp {
		return appointmentTime.Add(-PrebookedArrivalLead)
	}
	return appointmentTime
}
