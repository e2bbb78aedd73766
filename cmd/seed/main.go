// Seed populates demo clinics, sessions, short codes, and a day of queue
// entries so the API and dispatcher have something to work with locally.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/klinicq/queue-platform/cmd/mainconfig"
	"github.com/klinicq/queue-platform/internal/appointment"
	"github.com/klinicq/queue-platform/internal/clinic"
	appconfig "github.com/klinicq/queue-platform/internal/config"
	"github.com/klinicq/queue-platform/internal/queue"
	"github.com/klinicq/queue-platform/pkg/logging"
)

const (
	clinicCount       = 3
	prebookedPerDay   = 12
	walkInsPerClinic  = 6
	seedClockTime     = "10:30"
	reminderWindowLen = 30 // minutes
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New("warn")
	ctx := context.Background()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("load AWS config: %v", err)
	}
	dynamoClient := dynamodb.NewFromConfig(awsCfg)

	clinicStore := clinic.NewStore(dynamoClient, cfg.ClinicsTable, cfg.ClinicCodesTable, logger)
	directory := clinic.NewDirectory(clinicStore, nil, logger)
	apptStore := appointment.NewStore(dynamoClient, cfg.AppointmentsTable, logger)
	allocator := queue.NewAllocator(dynamoClient, cfg.AppointmentsTable, logger)

	gofakeit.Seed(time.Now().UnixNano())

	for i := 0; i < clinicCount; i++ {
		if err := seedClinic(ctx, clinicStore, directory, apptStore, allocator, cfg, logger); err != nil {
			log.Fatalf("seed clinic %d: %v", i+1, err)
		}
	}

	log.Println("seed complete")
}

func seedClinic(ctx context.Context, clinicStore *clinic.Store, directory *clinic.Directory, apptStore *appointment.Store, allocator *queue.Allocator, cfg *appconfig.Config, logger *logging.Logger) error {
	c := &clinic.Clinic{
		ID:       uuid.NewString(),
		Name:     gofakeit.LastName() + " Clinic",
		Timezone: "Asia/Kolkata",
		Address:  gofakeit.Street() + ", " + gofakeit.City(),
		Phone:    gofakeit.Phone(),
		Sessions: []clinic.Session{
			{Index: 0, DoctorID: uuid.NewString(), DoctorName: "Dr. " + gofakeit.Name(), StartTime: "09:00", EndTime: "13:00"},
			{Index: 1, DoctorID: uuid.NewString(), DoctorName: "Dr. " + gofakeit.Name(), StartTime: "14:00", EndTime: "17:00"},
			{Index: 2, DoctorID: uuid.NewString(), DoctorName: "Dr. " + gofakeit.Name(), StartTime: "18:00", EndTime: "21:00"},
		},
		Reminder: clinic.ReminderWindow{
			Enabled:   true,
			StartTime: "08:00",
			EndTime:   fmt.Sprintf("08:%02d", reminderWindowLen),
		},
	}
	if err := clinicStore.Create(ctx, c); err != nil {
		return fmt.Errorf("create clinic: %w", err)
	}
	c, err := directory.AssignCode(ctx, c.ID, "")
	if err != nil {
		return fmt.Errorf("assign short code: %w", err)
	}
	log.Printf("clinic %q id=%s code=%s", c.Name, c.ID, c.ShortCode)

	// Pin the service clock inside the morning session so walk-ins resolve a
	// session the same way they would at the front desk.
	day := time.Now().In(c.Location())
	seedNow := queue.ParseClockTime(seedClockTime, day, logger)
	svc := appointment.NewService(clinicStore, allocator, apptStore, cfg.DefaultSessionStride, logger,
		appointment.WithClock(func() time.Time { return seedNow }),
	)

	for i := 0; i < prebookedPerDay; i++ {
		sess := c.Sessions[gofakeit.Number(0, len(c.Sessions)-1)]
		slot, err := randomClockWithin(sess)
		if err != nil {
			return err
		}
		_, err = svc.BookPrebooked(ctx, appointment.PrebookedRequest{
			ClinicID:     c.ID,
			PatientName:  gofakeit.Name(),
			PatientPhone: gofakeit.Phone(),
			DoctorID:     sess.DoctorID,
			Time:         slot,
		})
		if err != nil {
			return fmt.Errorf("book prebooked: %w", err)
		}
	}

	for i := 0; i < walkInsPerClinic; i++ {
		_, err := svc.BookWalkIn(ctx, appointment.WalkInRequest{
			ClinicID:     c.ID,
			PatientName:  gofakeit.Name(),
			PatientPhone: gofakeit.Phone(),
		})
		if err != nil {
			return fmt.Errorf("book walk-in: %w", err)
		}
	}

	log.Printf("booked %d prebooked + %d walk-in entries for %s",
		prebookedPerDay, walkInsPerClinic, c.ShortCode)
	return nil
}

// randomClockWithin picks an HH:MM inside the session's [start, end) window.
func randomClockWithin(sess clinic.Session) (string, error) {
	start, err := time.Parse("15:04", sess.StartTime)
	if err != nil {
		return "", fmt.Errorf("parse session start: %w", err)
	}
	end, err := time.Parse("15:04", sess.EndTime)
	if err != nil {
		return "", fmt.Errorf("parse session end: %w", err)
	}
	span := int(end.Sub(start).Minutes())
	at := start.Add(time.Duration(gofakeit.Number(0, span-1)) * time.Minute)
	return at.Format("15:04"), nil
}
