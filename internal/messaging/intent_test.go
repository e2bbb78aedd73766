package messaging

import (
	"strings"
	"testing"

	"github.com/klinicq/queue-platform/internal/clinic"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		text string
		want intent
		code string
	}{
		{"KQ-7P2M", intentClinicCode, "KQ-7P2M"},
		{"hi, is kq-7p2m open today?", intentClinicCode, "KQ-7P2M"},
		{"book at KQ-7P2M please", intentClinicCode, "KQ-7P2M"},
		{"I want to book a visit", intentBooking, ""},
		{"Appointment please", intentBooking, ""},
		{"need a TOKEN for tomorrow", intentBooking, ""},
		{"online booking?", intentBooking, ""},
		{"hello", intentUnknown, ""},
		{"tokenize this", intentUnknown, ""},
	}

	for _, tc := range cases {
		kind, code := classify(tc.text)
		if kind != tc.want || code != tc.code {
			t.Fatalf("classify(%q) = (%s, %q), want (%s, %q)", tc.text, kind, code, tc.want, tc.code)
		}
	}
}

func TestClinicDirectoryReply(t *testing.T) {
	composer := replyComposer{baseURL: "https://app.klinicq.com/"}
	cl := &clinic.Clinic{
		ID:      "clinic-1",
		Name:    "City Care Clinic",
		Address: "12 MG Road, Kochi",
		Sessions: []clinic.Session{
			{Index: 0, DoctorID: "dr-rao", DoctorName: "Dr. Rao", StartTime: "09:00", EndTime: "13:00"},
			{Index: 1, DoctorID: "dr-iyer", StartTime: "2:00 PM", EndTime: "6:00 PM"},
		},
	}

	body := composer.clinicDirectory(cl)

	if !strings.HasPrefix(body, "City Care Clinic, 12 MG Road, Kochi.") {
		t.Fatalf("unexpected header: %q", body)
	}
	if !strings.Contains(body, "- Dr. Rao: 09:00 to 13:00") {
		t.Fatalf("expected named doctor line, got %q", body)
	}
	if !strings.Contains(body, "- dr-iyer: 2:00 PM to 6:00 PM") {
		t.Fatalf("expected doctor id fallback line, got %q", body)
	}
	if !strings.Contains(body, "Book a token: https://app.klinicq.com/c/clinic-1") {
		t.Fatalf("expected booking link without double slash, got %q", body)
	}
}

func TestClinicDirectoryReplyWithoutSessions(t *testing.T) {
	composer := replyComposer{baseURL: "https://app.klinicq.com"}
	cl := &clinic.Clinic{ID: "clinic-2", Name: "Lakeside Clinic"}

	body := composer.clinicDirectory(cl)

	if !strings.Contains(body, "No consulting sessions are published yet.") {
		t.Fatalf("expected empty-sessions notice, got %q", body)
	}
	if !strings.Contains(body, "/c/clinic-2") {
		t.Fatalf("expected booking link, got %q", body)
	}
}
