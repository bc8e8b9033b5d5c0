package lambdautils

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/aws/aws-sdk-go/service/dynamodb/expression"
	"github.com/pkg/errors"
)

// InvocationLock claims lambda request ids in a dynamodb table so a retried
// delivery of an invocation that is already being handled can be refused.
// A claim lasts TTL seconds; after that the same request id may be claimed
// again.
//
// RetryWait (milliseconds) is the pause before retrying a put whose
// connection was reset.
type InvocationLock struct {
	Region    string `json:"region"`
	Table     string `json:"table"`
	TTL       int64  `json:"ttl"`
	RetryWait int64  `json:"retry-wait"`

	nowFunc func() time.Time
	svcFunc func(client.ConfigProvider) dynamodbiface.DynamoDBAPI

	mu     sync.Mutex
	client dynamodbiface.DynamoDBAPI
}

// invocationRecord is the item stored for each claimed request id.
type invocationRecord struct {
	RequestID string `dynamodbav:"id"`
	Function  string `dynamodbav:"function,omitempty"`
	ClaimedAt string `dynamodbav:"claimed-at"`
	Expire    int64  `dynamodbav:"expire"`
}

const maxLockAttempts = 12

// NewInvocationLock returns a lock backed by table in region.
func NewInvocationLock(region string, table string, ttl int64, retry int64) *InvocationLock {
	lock := &InvocationLock{
		Region:    region,
		Table:     table,
		TTL:       ttl,
		RetryWait: retry,
	}

	lock.applyDefaults()
	return lock
}

// NewInvocationLockFromJson returns the lock described by s.
func NewInvocationLockFromJson(s string) (*InvocationLock, error) {
	lock := new(InvocationLock)

	if err := json.Unmarshal([]byte(s), lock); err != nil {
		return nil, err
	}

	if lock.Region == "" {
		return nil, errors.New("region is required")
	}

	if lock.Table == "" {
		return nil, errors.New("table is required")
	}

	lock.applyDefaults()
	return lock, nil
}

func (lock *InvocationLock) applyDefaults() {
	if lock.TTL == 0 {
		lock.TTL = 300
	}

	if lock.RetryWait == 0 {
		lock.RetryWait = 500
	}
}

// now is used internally to assist stubs on time.Now() for testing
func (lock *InvocationLock) now() time.Time {
	if lock.nowFunc != nil {
		return lock.nowFunc()
	}

	return time.Now()
}

// dynamo returns the table client, creating the session on first use.
func (lock *InvocationLock) dynamo() (dynamodbiface.DynamoDBAPI, error) {
	lock.mu.Lock()
	defer lock.mu.Unlock()

	if lock.client != nil {
		return lock.client, nil
	}

	s, err := session.NewSession(&aws.Config{
		Region: aws.String(lock.Region),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed getting session")
	}

	if lock.svcFunc != nil {
		lock.client = lock.svcFunc(s)
	} else {
		lock.client = dynamodb.New(s)
	}

	return lock.client, nil
}

// record describes the claim of id made from the invocation in ctx.
func (lock *InvocationLock) record(ctx context.Context, id string) invocationRecord {
	meta := GetLambdaMetaData(ctx)
	now := lock.now()

	function := meta.InvokedFunctionArn
	if function == "" {
		function = meta.FunctionName
	}

	return invocationRecord{
		RequestID: id,
		Function:  function,
		ClaimedAt: now.UTC().Format(time.RFC3339),
		Expire:    now.Add(time.Duration(lock.TTL) * time.Second).Unix(),
	}
}

// putItemInput writes rec unless its request id holds a claim that hasn't
// expired yet.
func (lock *InvocationLock) putItemInput(rec invocationRecord) (*dynamodb.PutItemInput, error) {
	item, err := dynamodbattribute.MarshalMap(rec)
	if err != nil {
		return nil, errors.Wrap(err, "failed marshalling invocation record")
	}

	unclaimed := expression.AttributeNotExists(expression.Name("id")).
		Or(expression.Name("expire").LessThan(expression.Value(lock.now().Unix())))

	expr, err := expression.NewBuilder().WithCondition(unclaimed).Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed building claim condition")
	}

	return &dynamodb.PutItemInput{
		TableName:                 aws.String(lock.Table),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, nil
}

// Acquire claims the request id id for the invocation in ctx. It returns false
// if another delivery of the invocation holds the claim.
func (lock *InvocationLock) Acquire(ctx context.Context, id string) (bool, error) {
	svc, err := lock.dynamo()
	if err != nil {
		return false, err
	}

	input, err := lock.putItemInput(lock.record(ctx, id))
	if err != nil {
		return false, err
	}

	for attempts := 1; ; attempts++ {
		_, err = svc.PutItemWithContext(ctx, input)
		if err == nil || !isConnectionReset(err) || attempts == maxLockAttempts {
			break
		}

		select {
		case <-time.After(time.Duration(lock.RetryWait) * time.Millisecond):
		case <-ctx.Done():
			return false, errors.Wrapf(ctx.Err(), "gave up claiming %v in %v", id, lock.Table)
		}
	}

	if err == nil {
		return true, nil
	}

	var aerr awserr.Error
	if errors.As(err, &aerr) && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
		return false, nil
	}

	return false, errors.Wrapf(err, "failed claiming %v in %v", id, lock.Table)
}

func isConnectionReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) || strings.Contains(err.Error(), "connection reset by peer")
}
