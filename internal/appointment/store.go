package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/klinicq/queue-platform/internal/queue"
	"github.com/klinicq/queue-platform/pkg/logging"
)

// ErrNotFound indicates the appointment ID does not exist.
var ErrNotFound = errors.New("appointment: not found")

// appointmentIDIndex is the sparse GSI keyed by the plain id attribute;
// counter items carry no id and never appear in it.
const appointmentIDIndex = "id-index"

type dynamoAPI interface {
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Store reads and mutates persisted queue entries. Creation happens inside
// the allocator's transaction, never here.
type Store struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

// NewStore builds a store backed by the provided DynamoDB client.
func NewStore(client dynamoAPI, tableName string, logger *logging.Logger) *Store {
	if client == nil {
		panic("appointment: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("appointment: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// GetByID point-reads an appointment through the id index.
func (s *Store) GetByID(ctx context.Context, id string) (*Appointment, error) {
	if id == "" {
		return nil, errors.New("appointment: id required")
	}
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(appointmentIDIndex),
		KeyConditionExpression: aws.String("id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: id},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("appointment: failed to query by id: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("appointment: get %s: %w", id, ErrNotFound)
	}
	var a Appointment
	if err := attributevalue.UnmarshalMap(out.Items[0], &a); err != nil {
		return nil, fmt.Errorf("appointment: failed to unmarshal appointment: %w", err)
	}
	return &a, nil
}

// ListDay returns the clinic's queue entries for a date in slot order. The
// zero-padded sort key makes item order numeric slot order.
func (s *Store) ListDay(ctx context.Context, clinicID, date string) ([]Appointment, error) {
	return s.queryDay(ctx, clinicID, date, nil, nil)
}

// ListUnnotified returns the day's Pending and Confirmed entries that no
// reminder has covered yet.
func (s *Store) ListUnnotified(ctx context.Context, clinicID, date string) ([]Appointment, error) {
	filter := aws.String("attribute_not_exists(reminderSentAt) AND (#status = :pending OR #status = :confirmed)")
	values := map[string]types.AttributeValue{
		":pending":   &types.AttributeValueMemberS{Value: string(StatusPending)},
		":confirmed": &types.AttributeValueMemberS{Value: string(StatusConfirmed)},
	}
	return s.queryDay(ctx, clinicID, date, filter, values)
}

func (s *Store) queryDay(ctx context.Context, clinicID, date string, filter *string, extraValues map[string]types.AttributeValue) ([]Appointment, error) {
	if clinicID == "" || date == "" {
		return nil, errors.New("appointment: clinicID and date required")
	}
	values := map[string]types.AttributeValue{
		":pk":   &types.AttributeValueMemberS{Value: queue.DayPartitionKey(clinicID, date)},
		":slot": &types.AttributeValueMemberS{Value: "SLOT#"},
	}
	for k, v := range extraValues {
		values[k] = v
	}
	var names map[string]string
	if filter != nil {
		names = map[string]string{"#status": "status"}
	}

	var appointments []Appointment
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.tableName),
			KeyConditionExpression:    aws.String("pk = :pk AND begins_with(sk, :slot)"),
			FilterExpression:          filter,
			ExpressionAttributeValues: values,
			ExpressionAttributeNames:  names,
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("appointment: failed to query day queue: %w", err)
		}
		var page []Appointment
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("appointment: failed to unmarshal queue page: %w", err)
		}
		appointments = append(appointments, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return appointments, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// UpdateStatus applies a status edge with a compare-and-set on the current
// status, so a lost race surfaces as ErrInvalidTransition instead of
// clobbering a concurrent change. Returns the updated record.
func (s *Store) UpdateStatus(ctx context.Context, a *Appointment, to Status, now time.Time) (*Appointment, error) {
	if a == nil {
		return nil, errors.New("appointment: appointment cannot be nil")
	}
	stamp := now.UTC().Format(time.RFC3339)
	expr := "SET #status = :to, updatedAt = :updated"
	values := map[string]types.AttributeValue{
		":from":    &types.AttributeValueMemberS{Value: string(a.Status)},
		":to":      &types.AttributeValueMemberS{Value: string(to)},
		":updated": &types.AttributeValueMemberS{Value: stamp},
	}
	if to == StatusNoShow {
		expr += ", noShowTime = :noshow"
		values[":noshow"] = &types.AttributeValueMemberS{Value: stamp}
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       a.Keys(),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(pk) AND #status = :from"),
		ExpressionAttributeNames:  map[string]string{"#status": "status"},
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, fmt.Errorf("appointment: %s %s -> %s lost the race: %w", a.ID, a.Status, to, ErrInvalidTransition)
		}
		return nil, fmt.Errorf("appointment: failed to update status: %w", err)
	}
	var updated Appointment
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		return nil, fmt.Errorf("appointment: failed to unmarshal updated appointment: %w", err)
	}
	return &updated, nil
}

// SetCutoff stamps the hard arrival cutoff while the entry is still active.
func (s *Store) SetCutoff(ctx context.Context, a *Appointment, cutoff time.Time) (*Appointment, error) {
	if a == nil {
		return nil, errors.New("appointment: appointment cannot be nil")
	}
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 a.Keys(),
		UpdateExpression:    aws.String("SET cutOffTime = :cutoff, updatedAt = :updated"),
		ConditionExpression: aws.String("attribute_exists(pk) AND (#status = :pending OR #status = :confirmed)"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cutoff":    &types.AttributeValueMemberS{Value: cutoff.UTC().Format(time.RFC3339)},
			":updated":   &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
			":pending":   &types.AttributeValueMemberS{Value: string(StatusPending)},
			":confirmed": &types.AttributeValueMemberS{Value: string(StatusConfirmed)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, fmt.Errorf("appointment: set cutoff on %s (%s): %w", a.ID, a.Status, ErrInvalidTransition)
		}
		return nil, fmt.Errorf("appointment: failed to set cutoff: %w", err)
	}
	var updated Appointment
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		return nil, fmt.Errorf("appointment: failed to unmarshal updated appointment: %w", err)
	}
	return &updated, nil
}

// MarkReminderSent records that a reminder covering this entry was sent.
func (s *Store) MarkReminderSent(ctx context.Context, a *Appointment, at time.Time) error {
	if a == nil {
		return errors.New("appointment: appointment cannot be nil")
	}
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 a.Keys(),
		UpdateExpression:    aws.String("SET reminderSentAt = :at, updatedAt = :updated"),
		ConditionExpression: aws.String("attribute_exists(pk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":at":      &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339)},
			":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("appointment: failed to mark reminder sent: %w", err)
	}
	return nil
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
