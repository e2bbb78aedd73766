package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/klinicq/queue-platform/internal/observability/metrics"
	"github.com/klinicq/queue-platform/pkg/logging"
)

var (
	// ErrSessionFull indicates the session reached its position capacity.
	ErrSessionFull = errors.New("queue: session is at capacity")
	// ErrAllocationConflict indicates contention persisted past the retry budget.
	ErrAllocationConflict = errors.New("queue: allocation conflict not resolved")
)

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	TransactWriteItems(context.Context, *dynamodb.TransactWriteItemsInput, ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Slot is the outcome of a successful allocation.
type Slot struct {
	Position    int
	SlotIndex   int
	TokenNumber string
}

// AllocationRequest describes one position grab within a clinic session.
// BuildItem marshals the appointment item persisted together with the counter
// bump; it is invoked once per attempt with that attempt's slot, because the
// slot can change between retries.
type AllocationRequest struct {
	ClinicID     string
	SessionIndex int
	Date         string
	Via          BookedVia
	Stride       int
	BuildItem    func(Slot) (map[string]types.AttributeValue, error)
}

type positionCounter struct {
	PK           string `dynamodbav:"pk"`
	SK           string `dynamodbav:"sk"`
	NextPosition int    `dynamodbav:"nextPosition"`
}

// Allocator hands out queue positions. The read-then-write is one
// TransactWriteItems call conditioned on the counter still holding the value
// that was read, so two concurrent allocations for the same session can never
// commit the same position; the loser re-reads and retries.
type Allocator struct {
	client     dynamoAPI
	tableName  string
	maxRetries int
	backoff    time.Duration
	logger     *logging.Logger
	metrics    *metrics.QueueMetrics
}

type allocatorConfig struct {
	maxRetries int
	backoff    time.Duration
	metrics    *metrics.QueueMetrics
}

// AllocatorOption customizes allocator behavior.
type AllocatorOption func(*allocatorConfig)

const (
	defaultAllocateRetries = 5
	defaultAllocateBackoff = 25 * time.Millisecond
)

func WithMaxRetries(n int) AllocatorOption {
	return func(c *allocatorConfig) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

func WithRetryBackoff(d time.Duration) AllocatorOption {
	return func(c *allocatorConfig) {
		if d > 0 {
			c.backoff = d
		}
	}
}

func WithQueueMetrics(m *metrics.QueueMetrics) AllocatorOption {
	return func(c *allocatorConfig) {
		c.metrics = m
	}
}

// NewAllocator builds an allocator over the appointments table.
func NewAllocator(client dynamoAPI, tableName string, logger *logging.Logger, opts ...AllocatorOption) *Allocator {
	if client == nil {
		panic("queue: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("queue: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := allocatorConfig{
		maxRetries: defaultAllocateRetries,
		backoff:    defaultAllocateBackoff,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Allocator{
		client:     client,
		tableName:  tableName,
		maxRetries: cfg.maxRetries,
		backoff:    cfg.backoff,
		logger:     logger,
		metrics:    cfg.metrics,
	}
}

// Allocate assigns the next position in (clinic, session, date) order and
// persists the appointment item in the same atomic unit. Walk-ins and
// pre-booked entries draw from one counter, so positions reflect arrival
// order at this call regardless of channel.
func (a *Allocator) Allocate(ctx context.Context, req AllocationRequest) (Slot, error) {
	if err := req.validate(); err != nil {
		return Slot{}, err
	}
	codec := NewCodec(req.Stride)

	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			a.metrics.ObserveConflict()
			select {
			case <-ctx.Done():
				return Slot{}, fmt.Errorf("queue: allocation cancelled: %w", ctx.Err())
			case <-time.After(time.Duration(attempt) * a.backoff):
			}
		}

		current, err := a.readNextPosition(ctx, req.ClinicID, req.SessionIndex, req.Date)
		if err != nil {
			return Slot{}, err
		}
		if current >= codec.Stride() {
			a.metrics.ObserveSessionFull()
			return Slot{}, fmt.Errorf("queue: clinic %s session %d on %s holds %d entries: %w",
				req.ClinicID, req.SessionIndex, req.Date, current, ErrSessionFull)
		}

		slot := Slot{
			Position:    current,
			SlotIndex:   codec.SlotIndex(req.SessionIndex, current),
			TokenNumber: TokenNumber(req.Via, current),
		}
		item, err := req.BuildItem(slot)
		if err != nil {
			return Slot{}, fmt.Errorf("queue: build appointment item: %w", err)
		}

		err = a.commit(ctx, req, current, item)
		if err == nil {
			a.metrics.ObserveAllocation(string(req.Via))
			return slot, nil
		}

		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			a.logger.Debug("allocation lost the race, retrying",
				"clinicId", req.ClinicID,
				"sessionIndex", req.SessionIndex,
				"date", req.Date,
				"attempt", attempt+1,
			)
			continue
		}
		return Slot{}, fmt.Errorf("queue: allocation transaction: %w", err)
	}

	return Slot{}, fmt.Errorf("queue: clinic %s session %d on %s: %w",
		req.ClinicID, req.SessionIndex, req.Date, ErrAllocationConflict)
}

func (r AllocationRequest) validate() error {
	if r.ClinicID == "" {
		return errors.New("queue: clinic id required")
	}
	if r.SessionIndex < 0 {
		return errors.New("queue: session index must be >= 0")
	}
	if r.Date == "" {
		return errors.New("queue: date required")
	}
	if !r.Via.Valid() {
		return fmt.Errorf("queue: unknown booking channel %q", r.Via)
	}
	if r.BuildItem == nil {
		return errors.New("queue: item builder required")
	}
	return nil
}

// readNextPosition returns the position the next allocation would take,
// which equals one past the current maximum. Uses a consistent read so the
// transaction condition usually passes on the first try.
func (a *Allocator) readNextPosition(ctx context.Context, clinicID string, sessionIndex int, date string) (int, error) {
	out, err := a.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(a.tableName),
		ConsistentRead: aws.Bool(true),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: DayPartitionKey(clinicID, date)},
			"sk": &types.AttributeValueMemberS{Value: CounterSortKey(sessionIndex)},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("queue: read position counter: %w", err)
	}
	if out.Item == nil {
		return 0, nil
	}
	var counter positionCounter
	if err := attributevalue.UnmarshalMap(out.Item, &counter); err != nil {
		return 0, fmt.Errorf("queue: decode position counter: %w", err)
	}
	return counter.NextPosition, nil
}

func (a *Allocator) commit(ctx context.Context, req AllocationRequest, current int, item map[string]types.AttributeValue) error {
	_, err := a.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName: aws.String(a.tableName),
					Key: map[string]types.AttributeValue{
						"pk": &types.AttributeValueMemberS{Value: DayPartitionKey(req.ClinicID, req.Date)},
						"sk": &types.AttributeValueMemberS{Value: CounterSortKey(req.SessionIndex)},
					},
					UpdateExpression:    aws.String("SET nextPosition = :next"),
					ConditionExpression: aws.String("attribute_not_exists(nextPosition) OR nextPosition = :current"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":next":    &types.AttributeValueMemberN{Value: strconv.Itoa(current + 1)},
						":current": &types.AttributeValueMemberN{Value: strconv.Itoa(current)},
					},
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(a.tableName),
					Item:                item,
					ConditionExpression: aws.String("attribute_not_exists(pk)"),
				},
			},
		},
	})
	return err
}
