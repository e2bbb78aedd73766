package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/klinicq/queue-platform/pkg/logging"
)

var (
	// ErrNotFound indicates the clinic ID does not exist.
	ErrNotFound = errors.New("clinic: not found")
	// ErrExists indicates a clinic with the same ID already exists.
	ErrExists = errors.New("clinic: already exists")
	// ErrCodeNotFound indicates a well-formed short code with no mapping.
	ErrCodeNotFound = errors.New("clinic: short code not found")
	// ErrCodeTaken indicates the short code is already assigned.
	ErrCodeTaken = errors.New("clinic: short code already taken")
	// ErrCodeAlreadyAssigned indicates the clinic already holds a code.
	// Codes are immutable once assigned.
	ErrCodeAlreadyAssigned = errors.New("clinic: short code already assigned to this clinic")
	// ErrMalformedCode indicates input that is not shaped like a short code.
	ErrMalformedCode = errors.New("clinic: malformed short code")
	// ErrAlreadyMarked indicates a reminder run was already recorded for the date.
	ErrAlreadyMarked = errors.New("clinic: reminder run already recorded for date")
)

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// codeRecord maps a directory short code to its clinic.
type codeRecord struct {
	Code       string `dynamodbav:"code"`
	ClinicID   string `dynamodbav:"clinicId"`
	AssignedAt string `dynamodbav:"assignedAt"`
}

// Store persists clinic records and short-code mappings to DynamoDB.
type Store struct {
	client       dynamoAPI
	clinicsTable string
	codesTable   string
	logger       *logging.Logger
}

// NewStore builds a store backed by the provided DynamoDB client.
func NewStore(client dynamoAPI, clinicsTable, codesTable string, logger *logging.Logger) *Store {
	if client == nil {
		panic("clinic: dynamodb client cannot be nil")
	}
	if clinicsTable == "" || codesTable == "" {
		panic("clinic: table names cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		client:       client,
		clinicsTable: clinicsTable,
		codesTable:   codesTable,
		logger:       logger,
	}
}

// Create inserts a new clinic record. The ID must not already exist.
func (s *Store) Create(ctx context.Context, c *Clinic) error {
	if c == nil {
		return errors.New("clinic: clinic cannot be nil")
	}
	if c.ID == "" {
		return errors.New("clinic: id required")
	}
	now := time.Now().UTC().Format(time.RFC3339)
	c.CreatedAt = now
	c.UpdatedAt = now

	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("clinic: failed to marshal clinic: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.clinicsTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return fmt.Errorf("clinic: create %s: %w", c.ID, ErrExists)
		}
		return fmt.Errorf("clinic: failed to persist clinic: %w", err)
	}
	return nil
}

// Get loads a clinic by ID.
func (s *Store) Get(ctx context.Context, id string) (*Clinic, error) {
	if id == "" {
		return nil, errors.New("clinic: id required")
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.clinicsTable),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clinic: failed to load clinic: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("clinic: get %s: %w", id, ErrNotFound)
	}
	var c Clinic
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, fmt.Errorf("clinic: failed to unmarshal clinic: %w", err)
	}
	return &c, nil
}

// UpdateSessions replaces the clinic's session table and stride and returns
// the updated record.
func (s *Store) UpdateSessions(ctx context.Context, id string, sessions []Session, stride int) (*Clinic, error) {
	sessAttr, err := attributevalue.Marshal(sessions)
	if err != nil {
		return nil, fmt.Errorf("clinic: failed to marshal sessions: %w", err)
	}
	return s.updateClinic(ctx, id,
		"SET sessions = :sessions, sessionStride = :stride, updatedAt = :updated",
		map[string]types.AttributeValue{
			":sessions": sessAttr,
			":stride":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", stride)},
			":updated":  &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		nil,
	)
}

// UpdateReminderWindow replaces the clinic's reminder window and returns the
// updated record.
func (s *Store) UpdateReminderWindow(ctx context.Context, id string, w ReminderWindow) (*Clinic, error) {
	winAttr, err := attributevalue.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("clinic: failed to marshal reminder window: %w", err)
	}
	return s.updateClinic(ctx, id,
		"SET reminder = :reminder, updatedAt = :updated",
		map[string]types.AttributeValue{
			":reminder": winAttr,
			":updated":  &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		nil,
	)
}

// MarkReminderRun records that the reminder batch ran for the clinic on the
// given local date. Returns ErrAlreadyMarked when a run is already recorded
// for that date, which keeps the daily batch at-most-once per clinic.
func (s *Store) MarkReminderRun(ctx context.Context, id, date string) error {
	if id == "" || date == "" {
		return errors.New("clinic: id and date required")
	}
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.clinicsTable),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:    aws.String("SET lastReminderRunDate = :date, updatedAt = :updated"),
		ConditionExpression: aws.String("attribute_exists(id) AND (attribute_not_exists(lastReminderRunDate) OR lastReminderRunDate <> :date)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":date":    &types.AttributeValueMemberS{Value: date},
			":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return fmt.Errorf("clinic: mark reminder run %s %s: %w", id, date, ErrAlreadyMarked)
		}
		return fmt.Errorf("clinic: failed to mark reminder run: %w", err)
	}
	return nil
}

// List returns every registered clinic, following scan pagination.
func (s *Store) List(ctx context.Context) ([]Clinic, error) {
	var clinics []Clinic
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.clinicsTable),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("clinic: failed to scan clinics: %w", err)
		}
		var page []Clinic
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("clinic: failed to unmarshal clinics: %w", err)
		}
		clinics = append(clinics, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return clinics, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// updateClinic applies an update expression conditioned on the clinic
// existing and returns the new record.
func (s *Store) updateClinic(ctx context.Context, id, expr string, values map[string]types.AttributeValue, names map[string]string) (*Clinic, error) {
	if id == "" {
		return nil, errors.New("clinic: id required")
	}
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.clinicsTable),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(id)"),
		ExpressionAttributeValues: values,
		ExpressionAttributeNames:  names,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, fmt.Errorf("clinic: update %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("clinic: failed to update clinic: %w", err)
	}
	var c Clinic
	if err := attributevalue.UnmarshalMap(out.Attributes, &c); err != nil {
		return nil, fmt.Errorf("clinic: failed to unmarshal updated clinic: %w", err)
	}
	return &c, nil
}

// claimCode reserves a short code for a clinic. The code must be unassigned.
func (s *Store) claimCode(ctx context.Context, code, clinicID string) error {
	item, err := attributevalue.MarshalMap(codeRecord{
		Code:       code,
		ClinicID:   clinicID,
		AssignedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("clinic: failed to marshal code record: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.codesTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(code)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return fmt.Errorf("clinic: claim %s: %w", code, ErrCodeTaken)
		}
		return fmt.Errorf("clinic: failed to claim short code: %w", err)
	}
	return nil
}

// releaseCode removes a short-code mapping.
func (s *Store) releaseCode(ctx context.Context, code string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.codesTable),
		Key: map[string]types.AttributeValue{
			"code": &types.AttributeValueMemberS{Value: code},
		},
	})
	if err != nil {
		return fmt.Errorf("clinic: failed to release short code: %w", err)
	}
	return nil
}

// resolveCode returns the clinic ID a short code is assigned to.
func (s *Store) resolveCode(ctx context.Context, code string) (string, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.codesTable),
		Key: map[string]types.AttributeValue{
			"code": &types.AttributeValueMemberS{Value: code},
		},
	})
	if err != nil {
		return "", fmt.Errorf("clinic: failed to resolve short code: %w", err)
	}
	if len(out.Item) == 0 {
		return "", fmt.Errorf("clinic: resolve %s: %w", code, ErrCodeNotFound)
	}
	var rec codeRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return "", fmt.Errorf("clinic: failed to unmarshal code record: %w", err)
	}
	return rec.ClinicID, nil
}

// setClinicCode writes the short code onto the clinic record.
func (s *Store) setClinicCode(ctx context.Context, id, code string) (*Clinic, error) {
	return s.updateClinic(ctx, id,
		"SET shortCode = :code, updatedAt = :updated",
		map[string]types.AttributeValue{
			":code":    &types.AttributeValueMemberS{Value: code},
			":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		nil,
	)
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
