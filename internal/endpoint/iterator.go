package endpoint

import "context"

// Iterator provides streaming access to values.
type Iterator[T any] interface {
	// Next advances to the next value. Returns false when done or on error.
	Next() bool

	// Value returns the current value. Only valid after Next() returns true.
	Value() T

	// Err returns any error encountered during iteration.
	Err() error

	// Close releases resources. Must be called when done.
	Close() error
}

// Collect drains it and closes it.
func Collect[T any](it Iterator[T]) ([]T, error) {
	defer it.Close()
	var out []T
	for it.Next() {
		out = append(out, it.Value())
	}
	return out, it.Err()
}

// =============================================================================
// SLICE ITERATOR
// =============================================================================

type sliceIterator[T any] struct {
	items []T
	index int
}

// NewSliceIterator iterates over items in order.
func NewSliceIterator[T any](items []T) Iterator[T] {
	return &sliceIterator[T]{items: items, index: -1}
}

func (it *sliceIterator[T]) Next() bool {
	if it.index < len(it.items)-1 {
		it.index++
		return true
	}
	return false
}

func (it *sliceIterator[T]) Value() T {
	var zero T
	if it.index >= 0 && it.index < len(it.items) {
		return it.items[it.index]
	}
	return zero
}

func (it *sliceIterator[T]) Err() error { return nil }

func (it *sliceIterator[T]) Close() error {
	it.items = nil
	return nil
}

// =============================================================================
// RESOURCE ITERATOR
// =============================================================================

// ProduceFunc turns one resource into a value. ok=false skips the resource
// (filtered or failed; the producer records why).
type ProduceFunc[T any] func(ctx context.Context, resource string) (value T, ok bool)

type resourceIterator[T any] struct {
	ctx       context.Context
	resources []string
	produce   ProduceFunc[T]
	index     int
	current   T
	err       error
}

// NewResourceIterator calls produce lazily, one resource per Next, in order.
// Iteration stops with ctx.Err() when ctx is done.
func NewResourceIterator[T any](ctx context.Context, resources []string, produce ProduceFunc[T]) Iterator[T] {
	return &resourceIterator[T]{ctx: ctx, resources: resources, produce: produce}
}

func (it *resourceIterator[T]) Next() bool {
	for it.err == nil && it.index < len(it.resources) {
		if err := it.ctx.Err(); err != nil {
			it.err = err
			return false
		}
		resource := it.resources[it.index]
		it.index++
		if v, ok := it.produce(it.ctx, resource); ok {
			it.current = v
			return true
		}
	}
	return false
}

func (it *resourceIterator[T]) Value() T   { return it.current }
func (it *resourceIterator[T]) Err() error { return it.err }

func (it *resourceIterator[T]) Close() error {
	it.index = len(it.resources)
	return nil
}
