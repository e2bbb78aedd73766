package clinic

import (
	"testing"
	"time"
)

func kolkata(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestClinicLocationFallsBackToUTC(t *testing.T) {
	c := &Clinic{Timezone: "Not/AZone"}
	if got := c.Location(); got != time.UTC {
		t.Fatalf("expected UTC fallback, got %v", got)
	}

	c = &Clinic{Timezone: "Asia/Kolkata"}
	if got := c.Location(); got.String() != "Asia/Kolkata" {
		t.Fatalf("expected Asia/Kolkata, got %v", got)
	}
}

func TestClinicLocalDate(t *testing.T) {
	c := &Clinic{Timezone: "Asia/Kolkata"}
	// 2025-03-09 20:30 UTC is already 2025-03-10 in Kolkata (+05:30).
	at := time.Date(2025, 3, 9, 20, 30, 0, 0, time.UTC)
	if got := c.LocalDate(at); got != "2025-03-10" {
		t.Fatalf("expected 2025-03-10, got %s", got)
	}
}

func TestStrideOrDefault(t *testing.T) {
	c := &Clinic{SessionStride: 500}
	if got := c.StrideOrDefault(1000); got != 500 {
		t.Fatalf("expected 500, got %d", got)
	}
	c = &Clinic{}
	if got := c.StrideOrDefault(1000); got != 1000 {
		t.Fatalf("expected default 1000, got %d", got)
	}
}

func TestActiveSession(t *testing.T) {
	loc := kolkata(t)
	c := &Clinic{
		Timezone: "Asia/Kolkata",
		Sessions: []Session{
			{Index: 0, DoctorID: "dr-rao", StartTime: "09:00", EndTime: "1:00 PM"},
			{Index: 1, DoctorID: "dr-iyer", StartTime: "14:00", EndTime: "18:00"},
		},
	}

	tests := []struct {
		name      string
		hour, min int
		wantIdx   int
		wantOK    bool
	}{
		{"session start is inclusive", 9, 0, 0, true},
		{"inside morning session", 12, 59, 0, true},
		{"session end is exclusive", 13, 0, 0, false},
		{"gap between sessions", 13, 30, 0, false},
		{"afternoon session", 14, 0, 1, true},
		{"last minute of afternoon", 17, 59, 1, true},
		{"after close", 18, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := time.Date(2025, 6, 2, tt.hour, tt.min, 0, 0, loc)
			sess, ok := c.ActiveSession(at)
			if ok != tt.wantOK {
				t.Fatalf("ActiveSession ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && sess.Index != tt.wantIdx {
				t.Fatalf("ActiveSession index = %d, want %d", sess.Index, tt.wantIdx)
			}
		})
	}
}

func TestActiveSessionSkipsUnparseableTimes(t *testing.T) {
	loc := kolkata(t)
	c := &Clinic{
		Timezone: "Asia/Kolkata",
		Sessions: []Session{
			{Index: 0, DoctorID: "dr-rao", StartTime: "whenever", EndTime: "13:00"},
			{Index: 1, DoctorID: "dr-iyer", StartTime: "09:00", EndTime: "13:00"},
		},
	}
	sess, ok := c.ActiveSession(time.Date(2025, 6, 2, 10, 0, 0, 0, loc))
	if !ok || sess.Index != 1 {
		t.Fatalf("expected fallthrough to session 1, got ok=%v index=%d", ok, sess.Index)
	}
}

func TestActiveSessionCrossesMidnight(t *testing.T) {
	loc := kolkata(t)
	c := &Clinic{
		Timezone: "Asia/Kolkata",
		Sessions: []Session{
			{Index: 0, DoctorID: "dr-night", StartTime: "22:00", EndTime: "02:00"},
		},
	}
	if _, ok := c.ActiveSession(time.Date(2025, 6, 2, 23, 30, 0, 0, loc)); !ok {
		t.Fatal("expected 23:30 to fall inside overnight session")
	}
	if _, ok := c.ActiveSession(time.Date(2025, 6, 3, 1, 30, 0, 0, loc)); !ok {
		t.Fatal("expected 01:30 to fall inside overnight session")
	}
	if _, ok := c.ActiveSession(time.Date(2025, 6, 3, 3, 0, 0, 0, loc)); ok {
		t.Fatal("expected 03:00 to fall outside overnight session")
	}
}

func TestSessionByIndex(t *testing.T) {
	c := &Clinic{Sessions: []Session{{Index: 2, DoctorID: "dr-rao"}}}
	if _, ok := c.SessionByIndex(0); ok {
		t.Fatal("expected miss for index 0")
	}
	sess, ok := c.SessionByIndex(2)
	if !ok || sess.DoctorID != "dr-rao" {
		t.Fatalf("expected dr-rao at index 2, got ok=%v %+v", ok, sess)
	}
}

func TestValidateSessions(t *testing.T) {
	tests := []struct {
		name     string
		sessions []Session
		wantErr  bool
	}{
		{"empty is fine", nil, false},
		{"valid pair", []Session{
			{Index: 0, DoctorID: "dr-a", StartTime: "09:00", EndTime: "13:00"},
			{Index: 1, DoctorID: "dr-b", StartTime: "2:00 PM", EndTime: "6:00 PM"},
		}, false},
		{"negative index", []Session{{Index: -1, DoctorID: "dr-a", StartTime: "09:00", EndTime: "13:00"}}, true},
		{"duplicate index", []Session{
			{Index: 0, DoctorID: "dr-a", StartTime: "09:00", EndTime: "13:00"},
			{Index: 0, DoctorID: "dr-b", StartTime: "14:00", EndTime: "18:00"},
		}, true},
		{"missing doctor", []Session{{Index: 0, StartTime: "09:00", EndTime: "13:00"}}, true},
		{"bad start", []Session{{Index: 0, DoctorID: "dr-a", StartTime: "soonish", EndTime: "13:00"}}, true},
		{"bad end", []Session{{Index: 0, DoctorID: "dr-a", StartTime: "09:00", EndTime: "13"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSessions(tt.sessions)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateSessions() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestReminderWindowValidate(t *testing.T) {
	if err := (ReminderWindow{Enabled: false}).Validate(); err != nil {
		t.Fatalf("disabled window should not validate times: %v", err)
	}
	if err := (ReminderWindow{Enabled: true, StartTime: "08:00", EndTime: "8:30 AM"}).Validate(); err != nil {
		t.Fatalf("expected valid window, got %v", err)
	}
	if err := (ReminderWindow{Enabled: true, StartTime: "dawn", EndTime: "08:30"}).Validate(); err == nil {
		t.Fatal("expected error for unparseable start")
	}
	if err := (ReminderWindow{Enabled: true, StartTime: "08:00", EndTime: ""}).Validate(); err == nil {
		t.Fatal("expected error for empty end")
	}
}
