package okapi

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fivetwenty-io/okapi/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrUnsupportedOperationType = errors.New("unsupported operation type")
	ErrMissingOperationObject   = errors.New("operation requires an object")
	ErrMissingOperationName     = errors.New("operation requires a name")
)

// BatchOperation represents a single operation in a batch.
type BatchOperation struct {
	// ID correlates the operation with its result.
	ID string

	// Type is one of "create", "update", "delete", "get".
	Type string

	// Resource is the registry name of the target collection.
	Resource string

	// Namespace overrides the client default for this operation.
	Namespace string

	// Name addresses the item for update, delete, and get.
	Name string

	// Object carries the payload for create and update.
	Object *Object

	// Callback, when set, is invoked with the result as soon as the
	// operation completes.
	Callback func(result *BatchResult)
}

// BatchResult represents the result of a batch operation.
type BatchResult struct {
	ID       string
	Success  bool
	Object   *Object
	Error    error
	Duration time.Duration
}

// BatchExecutor runs independent operations concurrently against one
// client, bounded by a concurrency limit. Results preserve operation order
// regardless of completion order.
type BatchExecutor struct {
	client      Client
	concurrency int
	timeout     time.Duration
}

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor(client Client, concurrency int) *BatchExecutor {
	if concurrency <= 0 {
		concurrency = constants.DefaultBatchConcurrency
	}

	return &BatchExecutor{
		client:      client,
		concurrency: concurrency,
		timeout:     constants.DefaultBatchTimeout,
	}
}

// SetTimeout sets the per-operation timeout.
func (b *BatchExecutor) SetTimeout(timeout time.Duration) {
	b.timeout = timeout
}

// Execute runs a batch of operations.
func (b *BatchExecutor) Execute(ctx context.Context, operations []BatchOperation) ([]BatchResult, error) {
	results := make([]BatchResult, len(operations))

	var waitGroup sync.WaitGroup

	semaphore := make(chan struct{}, b.concurrency)

	for index, operation := range operations {
		waitGroup.Add(1)

		go func(index int, operation BatchOperation) {
			defer waitGroup.Done()

			semaphore <- struct{}{}

			defer func() { <-semaphore }()

			opCtx, cancel := context.WithTimeout(ctx, b.timeout)
			defer cancel()

			start := time.Now()
			result := b.executeOperation(opCtx, operation)
			result.Duration = time.Since(start)
			results[index] = *result

			if operation.Callback != nil {
				operation.Callback(result)
			}
		}(index, operation)
	}

	waitGroup.Wait()

	return results, nil
}

// executeOperation executes a single operation.
func (b *BatchExecutor) executeOperation(ctx context.Context, operation BatchOperation) *BatchResult {
	result := &BatchResult{ID: operation.ID}

	resourceClient, err := b.client.Resource(operation.Resource)
	if err != nil {
		result.Error = err

		return result
	}

	var opts *RequestOptions
	if operation.Namespace != "" {
		opts = &RequestOptions{Namespace: operation.Namespace}
	}

	switch operation.Type {
	case "create":
		if operation.Object == nil {
			result.Error = fmt.Errorf("%w: %s", ErrMissingOperationObject, operation.ID)

			return result
		}

		result.Object, result.Error = resourceClient.Create(ctx, operation.Object, opts)

	case "update":
		if operation.Object == nil {
			result.Error = fmt.Errorf("%w: %s", ErrMissingOperationObject, operation.ID)

			return result
		}

		name := operation.Name
		if name == "" {
			name = operation.Object.Name()
		}

		result.Object, result.Error = resourceClient.Update(ctx, name, operation.Object, opts)

	case "delete":
		if operation.Name == "" {
			result.Error = fmt.Errorf("%w: %s", ErrMissingOperationName, operation.ID)

			return result
		}

		result.Error = resourceClient.Delete(ctx, operation.Name, opts)

	case "get":
		if operation.Name == "" {
			result.Error = fmt.Errorf("%w: %s", ErrMissingOperationName, operation.ID)

			return result
		}

		result.Object, result.Error = resourceClient.Get(ctx, operation.Name, opts)

	default:
		result.Error = fmt.Errorf("%w: %s", ErrUnsupportedOperationType, operation.Type)
	}

	result.Success = result.Error == nil

	return result
}
