package appointment

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/klinicq/queue-platform/internal/queue"
)

// Appointment is one queue entry: a patient's claim on a position within a
// doctor-session on a given clinic day. Instants are RFC3339 strings so the
// stored item and the API response share one representation.
type Appointment struct {
	PK             string          `dynamodbav:"pk" json:"-"`
	SK             string          `dynamodbav:"sk" json:"-"`
	ID             string          `dynamodbav:"id" json:"id"`
	ClinicID       string          `dynamodbav:"clinicId" json:"clinicId"`
	Date           string          `dynamodbav:"date" json:"date"`
	SessionIndex   int             `dynamodbav:"sessionIndex" json:"sessionIndex"`
	Position       int             `dynamodbav:"position" json:"position"`
	SlotIndex      int             `dynamodbav:"slotIndex" json:"slotIndex"`
	TokenNumber    string          `dynamodbav:"tokenNumber" json:"tokenNumber"`
	BookedVia      queue.BookedVia `dynamodbav:"bookedVia" json:"bookedVia"`
	Status         Status          `dynamodbav:"status" json:"status"`
	PatientID      string          `dynamodbav:"patientId" json:"patientId"`
	PatientName    string          `dynamodbav:"patientName,omitempty" json:"patientName,omitempty"`
	PatientPhone   string          `dynamodbav:"patientPhone,omitempty" json:"patientPhone,omitempty"`
	DoctorID       string          `dynamodbav:"doctorId,omitempty" json:"doctorId,omitempty"`
	Time           string          `dynamodbav:"time" json:"time"`
	ArriveBy       string          `dynamodbav:"arriveBy" json:"arriveBy"`
	CutOffTime     string          `dynamodbav:"cutOffTime,omitempty" json:"cutOffTime,omitempty"`
	NoShowTime     string          `dynamodbav:"noShowTime,omitempty" json:"noShowTime,omitempty"`
	ReminderSentAt string          `dynamodbav:"reminderSentAt,omitempty" json:"reminderSentAt,omitempty"`
	CreatedAt      string          `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt      string          `dynamodbav:"updatedAt" json:"updatedAt"`
}

// SetKeys derives the table keys from the entry's clinic, date, and slot.
func (a *Appointment) SetKeys() {
	a.PK = queue.DayPartitionKey(a.ClinicID, a.Date)
	a.SK = queue.SlotSortKey(a.SlotIndex)
}

// Keys returns the item's primary key for targeted writes.
func (a *Appointment) Keys() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: queue.DayPartitionKey(a.ClinicID, a.Date)},
		"sk": &types.AttributeValueMemberS{Value: queue.SlotSortKey(a.SlotIndex)},
	}
}

// Active reports whether the entry still occupies the live queue (it has not
// reached a terminal state).
func (a *Appointment) Active() bool {
	return a.Status == StatusPending || a.Status == StatusConfirmed
}
