package reminder

import (
	"context"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestDispatchLogRecord(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	log := newDispatchLogWithExec(mock)

	mock.ExpectExec("INSERT INTO reminder_dispatch_log").
		WithArgs(pgxmock.AnyArg(), "run-1", "clinic-1", "2025-06-02", "success", 3, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	err = log.Record(context.Background(), LogEntry{
		RunID: "run-1", ClinicID: "clinic-1", RunDate: "2025-06-02",
		Status: StatusSuccess, Appointments: 3,
	})
	if err != nil {
		t.Fatalf("record success row: %v", err)
	}

	mock.ExpectExec("INSERT INTO reminder_dispatch_log").
		WithArgs(pgxmock.AnyArg(), "run-1", "clinic-2", "2025-06-02", "failed", 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	err = log.Record(context.Background(), LogEntry{
		RunID: "run-1", ClinicID: "clinic-2", RunDate: "2025-06-02",
		Status: StatusFailed, Appointments: 1, Error: "send reminders: 1 of 1 patient message(s) failed",
	})
	if err != nil {
		t.Fatalf("record failed row: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
