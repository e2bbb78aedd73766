package reminder

import (
	"strings"
	"testing"

	"github.com/klinicq/queue-platform/internal/appointment"
	"github.com/klinicq/queue-platform/internal/clinic"
)

func composerClinic() *clinic.Clinic {
	return &clinic.Clinic{ID: "clinic-1", Name: "City Care", Timezone: "Asia/Kolkata"}
}

func TestBuildReminderSingleVisit(t *testing.T) {
	appt := appointment.Appointment{
		PatientName: "Asha",
		TokenNumber: "A5",
		Time:        "2025-06-02T05:00:00Z", // 10:30 AM IST
		ArriveBy:    "2025-06-02T04:45:00Z", // 10:15 AM IST
	}

	msg := buildReminder(composerClinic(), []appointment.Appointment{appt})

	for _, want := range []string{"Hi Asha", "City Care", "A5", "10:30 AM", "arrive by 10:15 AM"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q: %s", want, msg)
		}
	}
}

func TestBuildReminderWalkInOmitsArrivalLead(t *testing.T) {
	appt := appointment.Appointment{
		PatientName: "Ravi",
		TokenNumber: "W3",
		Time:        "2025-06-02T05:00:00Z",
		ArriveBy:    "2025-06-02T05:00:00Z",
	}

	msg := buildReminder(composerClinic(), []appointment.Appointment{appt})

	if strings.Contains(msg, "arrive by") {
		t.Errorf("walk-in arrival equals the slot time, no lead expected: %s", msg)
	}
	if !strings.Contains(msg, "W3 at 10:30 AM") {
		t.Errorf("message missing token and time: %s", msg)
	}
}

func TestBuildReminderMultipleVisits(t *testing.T) {
	appts := []appointment.Appointment{
		{PatientName: "Asha", TokenNumber: "W1", Time: "2025-06-02T04:00:00Z", ArriveBy: "2025-06-02T04:00:00Z"},
		{PatientName: "Asha", TokenNumber: "A7", Time: "2025-06-02T09:30:00Z", ArriveBy: "2025-06-02T09:15:00Z"},
	}

	msg := buildReminder(composerClinic(), appts)

	if strings.Count(msg, "Hi Asha") != 1 {
		t.Errorf("expected a single greeting: %s", msg)
	}
	if !strings.Contains(msg, "- token W1 at 9:30 AM") {
		t.Errorf("missing first visit line: %s", msg)
	}
	if !strings.Contains(msg, "- token A7 at 3:00 PM, please arrive by 2:45 PM") {
		t.Errorf("missing second visit line: %s", msg)
	}
}

func TestBuildReminderWithoutName(t *testing.T) {
	appt := appointment.Appointment{
		TokenNumber: "W2",
		Time:        "2025-06-02T05:00:00Z",
		ArriveBy:    "2025-06-02T05:00:00Z",
	}

	msg := buildReminder(composerClinic(), []appointment.Appointment{appt})

	if !strings.HasPrefix(msg, "Hi, a reminder from City Care") {
		t.Errorf("expected anonymous greeting, got: %s", msg)
	}
}

func TestFormatClockFallsBackToRaw(t *testing.T) {
	if got := formatClock("not-a-time", composerClinic().Location()); got != "not-a-time" {
		t.Errorf("expected raw passthrough, got %s", got)
	}
}
