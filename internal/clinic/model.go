package clinic

import (
	"fmt"
	"strings"
	"time"
)

// Session is one doctor's daily consulting block. Times are local clock
// strings ("09:00" or "9:00 AM") interpreted in the clinic's timezone.
type Session struct {
	Index      int    `dynamodbav:"index" json:"index"`
	DoctorID   string `dynamodbav:"doctorId" json:"doctorId"`
	DoctorName string `dynamodbav:"doctorName,omitempty" json:"doctorName,omitempty"`
	StartTime  string `dynamodbav:"startTime" json:"startTime"`
	EndTime    string `dynamodbav:"endTime" json:"endTime"`
}

// ReminderWindow is the daily local-time window during which the batch
// dispatcher may send this clinic's reminders.
type ReminderWindow struct {
	Enabled   bool   `dynamodbav:"enabled" json:"enabled"`
	StartTime string `dynamodbav:"startTime,omitempty" json:"startTime,omitempty"`
	EndTime   string `dynamodbav:"endTime,omitempty" json:"endTime,omitempty"`
}

// Clinic is the registry record for one clinic: identity, directory short
// code, consulting sessions, and reminder dispatch state.
type Clinic struct {
	ID                  string         `dynamodbav:"id" json:"id"`
	Name                string         `dynamodbav:"name" json:"name"`
	ShortCode           string         `dynamodbav:"shortCode,omitempty" json:"shortCode,omitempty"`
	Timezone            string         `dynamodbav:"timezone" json:"timezone"`
	Address             string         `dynamodbav:"address,omitempty" json:"address,omitempty"`
	Phone               string         `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
	SessionStride       int            `dynamodbav:"sessionStride,omitempty" json:"sessionStride,omitempty"`
	Sessions            []Session      `dynamodbav:"sessions,omitempty" json:"sessions"`
	Reminder            ReminderWindow `dynamodbav:"reminder" json:"reminder"`
	LastReminderRunDate string         `dynamodbav:"lastReminderRunDate,omitempty" json:"lastReminderRunDate,omitempty"`
	CreatedAt           string         `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt           string         `dynamodbav:"updatedAt" json:"updatedAt"`
}

// Location resolves the clinic's timezone, falling back to UTC when the
// stored name does not load.
func (c *Clinic) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LocalDate formats the given moment as a YYYY-MM-DD queue date in the
// clinic's timezone.
func (c *Clinic) LocalDate(at time.Time) string {
	return at.In(c.Location()).Format("2006-01-02")
}

// StrideOrDefault returns the clinic's configured session stride, or the
// given default when the clinic does not override it.
func (c *Clinic) StrideOrDefault(def int) int {
	if c.SessionStride > 0 {
		return c.SessionStride
	}
	return def
}

// ActiveSession returns the session whose [start, end) window contains the
// given moment in the clinic's local time. Sessions with unparseable times
// are skipped.
func (c *Clinic) ActiveSession(at time.Time) (Session, bool) {
	return c.ActiveSessionFor(at, "")
}

// ActiveSessionFor is ActiveSession restricted to one doctor's sessions when
// doctorID is non-empty.
func (c *Clinic) ActiveSessionFor(at time.Time, doctorID string) (Session, bool) {
	minute := minuteOfDay(at.In(c.Location()))
	for _, sess := range c.Sessions {
		if doctorID != "" && sess.DoctorID != doctorID {
			continue
		}
		start, err := parseClockMinutes(sess.StartTime)
		if err != nil {
			continue
		}
		end, err := parseClockMinutes(sess.EndTime)
		if err != nil {
			continue
		}
		if inWindow(start, end, minute) {
			return sess, true
		}
	}
	return Session{}, false
}

// SessionByIndex looks up a configured session by its index.
func (c *Clinic) SessionByIndex(index int) (Session, bool) {
	for _, sess := range c.Sessions {
		if sess.Index == index {
			return sess, true
		}
	}
	return Session{}, false
}

// ValidateSessions checks that every session has a doctor, parseable
// start/end times, and a unique non-negative index.
func ValidateSessions(sessions []Session) error {
	seen := make(map[int]bool, len(sessions))
	for i, sess := range sessions {
		if sess.Index < 0 {
			return fmt.Errorf("clinic: session %d: index must be >= 0", i)
		}
		if seen[sess.Index] {
			return fmt.Errorf("clinic: session %d: duplicate index %d", i, sess.Index)
		}
		seen[sess.Index] = true
		if strings.TrimSpace(sess.DoctorID) == "" {
			return fmt.Errorf("clinic: session %d: doctorId required", i)
		}
		if _, err := parseClockMinutes(sess.StartTime); err != nil {
			return fmt.Errorf("clinic: session %d: invalid startTime %q", i, sess.StartTime)
		}
		if _, err := parseClockMinutes(sess.EndTime); err != nil {
			return fmt.Errorf("clinic: session %d: invalid endTime %q", i, sess.EndTime)
		}
	}
	return nil
}

// Validate checks the window's times parse when the window is enabled.
func (w ReminderWindow) Validate() error {
	if !w.Enabled {
		return nil
	}
	if _, err := parseClockMinutes(w.StartTime); err != nil {
		return fmt.Errorf("clinic: invalid reminder startTime %q", w.StartTime)
	}
	if _, err := parseClockMinutes(w.EndTime); err != nil {
		return fmt.Errorf("clinic: invalid reminder endTime %q", w.EndTime)
	}
	return nil
}
