// Package sequencer reorders out-of-order completions into position order.
//
// Producers push (position, events) batches as they finish. The buffer keeps them in a
// priority queue keyed by position and hands a batch to the sink only once every lower
// position has been handed over. Positions are dense: every position from first onward
// must eventually be pushed exactly once.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/emirpasic/gods/queues/priorityqueue"

	"github.com/ariel-frischer/stepflow/pkg/event"
)

// ErrDuplicate is returned when a position is pushed twice.
var ErrDuplicate = errors.New("position already pushed")

// Batch is the event group completed for one position.
type Batch struct {
	Position uint64
	Events   []event.Event
}

// Buffer is a reorder buffer with an optional watermark. It is safe for concurrent use.
type Buffer struct {
	mu        sync.Mutex
	queue     *priorityqueue.Queue
	held      map[uint64]struct{}
	next      uint64
	watermark int
	sink      func(Batch)
	// released is closed and replaced every time at least one batch is released.
	released chan struct{}
}

// New creates a buffer whose first released position is first.
// A watermark of 0 or less disables backpressure. sink is called with the buffer lock
// held, one batch at a time in position order; it must not call back into the buffer.
func New(first uint64, watermark int, sink func(Batch)) *Buffer {
	return &Buffer{
		queue: priorityqueue.NewWith(func(a, b interface{}) int {
			pa, pb := a.(Batch).Position, b.(Batch).Position
			switch {
			case pa < pb:
				return -1
			case pa > pb:
				return 1
			default:
				return 0
			}
		}),
		held:      make(map[uint64]struct{}),
		next:      first,
		watermark: watermark,
		sink:      sink,
		released:  make(chan struct{}),
	}
}

// Push hands over the completed batch for pos and releases every batch that is now ready.
func (b *Buffer) Push(pos uint64, events []event.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pos < b.next {
		return fmt.Errorf("position %d: %w (already released)", pos, ErrDuplicate)
	}
	if _, ok := b.held[pos]; ok {
		return fmt.Errorf("position %d: %w", pos, ErrDuplicate)
	}

	b.held[pos] = struct{}{}
	b.queue.Enqueue(Batch{Position: pos, Events: events})

	releasedAny := false
	for {
		head, ok := b.queue.Peek()
		if !ok || head.(Batch).Position != b.next {
			break
		}
		b.queue.Dequeue()
		batch := head.(Batch)
		delete(b.held, batch.Position)
		b.next++
		releasedAny = true
		if b.sink != nil {
			b.sink(batch)
		}
	}

	if releasedAny {
		close(b.released)
		b.released = make(chan struct{})
	}
	return nil
}

// Pending returns the number of completed batches waiting for a lower position.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queue.Size()
}

// Next returns the lowest position not yet released.
func (b *Buffer) Next() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.next
}

// Saturated reports whether the pending count has reached the watermark.
func (b *Buffer) Saturated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saturated()
}

func (b *Buffer) saturated() bool {
	return b.watermark > 0 && b.queue.Size() >= b.watermark
}

// Wait blocks until the pending count is below the watermark or ctx is done.
func (b *Buffer) Wait(ctx context.Context) error {
	for {
		b.mu.Lock()
		if !b.saturated() {
			b.mu.Unlock()
			return nil
		}
		ch := b.released
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}
