package clinic

import (
	"fmt"
	"strings"
	"time"
)

// Accepted clock layouts for session and reminder-window times.
var clockLayouts = []string{"15:04", "3:04 PM", "3:04PM"}

func parseClockMinutes(v string) (int, error) {
	v = strings.ToUpper(strings.Join(strings.Fields(v), " "))
	if v == "" {
		return 0, fmt.Errorf("empty clock")
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Hour()*60 + t.Minute(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized clock %q", v)
}

func minuteOfDay(local time.Time) int {
	return local.Hour()*60 + local.Minute()
}

// inWindow reports whether minute falls in [start, end). A window whose
// start equals its end is empty. Start after end means the window crosses
// midnight.
func inWindow(start, end, minute int) bool {
	if start == end {
		return false
	}
	if start < end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}

// Contains reports whether the given moment falls inside the window in the
// given location. Disabled or unparseable windows contain nothing.
func (w ReminderWindow) Contains(at time.Time, loc *time.Location) bool {
	if !w.Enabled {
		return false
	}
	start, err := parseClockMinutes(w.StartTime)
	if err != nil {
		return false
	}
	end, err := parseClockMinutes(w.EndTime)
	if err != nil {
		return false
	}
	return inWindow(start, end, minuteOfDay(at.In(loc)))
}

// ReminderEligible reports whether the clinic is due a reminder run at the
// given moment: the clinic's local clock is inside its reminder window and
// no run has been recorded for the clinic's current local date.
func ReminderEligible(c *Clinic, at time.Time) bool {
	if c == nil {
		return false
	}
	if !c.Reminder.Contains(at, c.Location()) {
		return false
	}
	return c.LastReminderRunDate != c.LocalDate(at)
}
