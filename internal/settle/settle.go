// Package settle runs independent tasks concurrently, waits for every one of
// them to finish and keeps each failure instead of stopping at the first.
package settle

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of work whose outcome is captured rather than propagated.
type Task[T any] func(ctx context.Context) (T, error)

// Result holds the settled outcomes of RunAll, in task order.
type Result[T any] struct {
	Successes []T
	Failures  []error
}

// Err returns nil when every task succeeded and an *AggregateError otherwise.
func (result Result[T]) Err() error {
	if len(result.Failures) == 0 {
		return nil
	}
	return &AggregateError{Errors: result.Failures}
}

type outcome[T any] struct {
	value T
	err   error
}

// RunAll starts every task at once and returns after all of them settled.
// A failing or panicking task never cancels its siblings.
func RunAll[T any](ctx context.Context, tasks []Task[T]) Result[T] {
	outcomes := make([]outcome[T], len(tasks))

	var group errgroup.Group
	for index, task := range tasks {
		group.Go(func() error {
			outcomes[index] = runTask(ctx, task)
			return nil
		})
	}
	_ = group.Wait()

	result := Result[T]{}
	for _, item := range outcomes {
		if item.err != nil {
			result.Failures = append(result.Failures, item.err)
			continue
		}
		result.Successes = append(result.Successes, item.value)
	}
	return result
}

func runTask[T any](ctx context.Context, task Task[T]) (result outcome[T]) {
	defer func() {
		if recovered := recover(); recovered != nil {
			result = outcome[T]{err: fmt.Errorf("task panicked: %v", recovered)}
		}
	}()
	value, err := task(ctx)
	return outcome[T]{value: value, err: err}
}

// AggregateError carries every failure of a settled batch with its original detail.
type AggregateError struct {
	Errors []error
}

func (err *AggregateError) Error() string {
	return Messages(err.Errors)
}

func (err *AggregateError) Unwrap() []error {
	return err.Errors
}

// Flatten expands nested aggregates into their individual errors and drops nils.
func Flatten(errs ...error) []error {
	flat := []error{}
	for _, err := range errs {
		if err == nil {
			continue
		}
		if aggregate, ok := err.(*AggregateError); ok {
			flat = append(flat, Flatten(aggregate.Errors...)...)
			continue
		}
		flat = append(flat, err)
	}
	return flat
}

// Messages renders error messages as a JSON array.
func Messages(errs []error) string {
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		messages = append(messages, err.Error())
	}
	encoded, err := json.Marshal(messages)
	if err != nil {
		return fmt.Sprint(messages)
	}
	return string(encoded)
}
