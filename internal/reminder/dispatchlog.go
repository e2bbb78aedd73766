package reminder

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LogEntry is one clinic's outcome within a run, persisted for audit.
type LogEntry struct {
	RunID        string
	ClinicID     string
	RunDate      string
	Status       string
	Appointments int
	Error        string
}

type rowExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DispatchLog writes reminder run outcomes to Postgres.
type DispatchLog struct {
	pool rowExecer
}

func NewDispatchLog(pool *pgxpool.Pool) *DispatchLog {
	if pool == nil {
		panic("reminder: pgx pool required")
	}
	return &DispatchLog{pool: pool}
}

func newDispatchLogWithExec(exec rowExecer) *DispatchLog {
	if exec == nil {
		panic("reminder: exec required")
	}
	return &DispatchLog{pool: exec}
}

// Record inserts one row for a processed clinic.
func (l *DispatchLog) Record(ctx context.Context, e LogEntry) error {
	query := `
		INSERT INTO reminder_dispatch_log (id, run_id, clinic_id, run_date, status, appointments, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	var errText *string
	if e.Error != "" {
		errText = &e.Error
	}
	_, err := l.pool.Exec(ctx, query,
		uuid.NewString(), e.RunID, e.ClinicID, e.RunDate, e.Status, e.Appointments, errText)
	if err != nil {
		return fmt.Errorf("reminder: record dispatch log: %w", err)
	}
	return nil
}
