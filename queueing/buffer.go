// Package queueing provides the bounded FIFO used throughout the simulator.
package queueing

import (
	"github.com/sarchlab/twinrouter/sim"
)

// HookPosBufPush marks when an element is committed into the buffer.
var HookPosBufPush = &sim.HookPos{Name: "Buffer Push"}

// HookPosBufPop marks when an element is committed out of the buffer.
var HookPosBufPop = &sim.HookPos{Name: "Buffer Pop"}

// A Meter reports the fill level of a buffer without knowing its element type.
type Meter interface {
	sim.Named

	Size() int
	Capacity() int
}

// A MeterOwner exposes the buffers that it owns.
type MeterOwner interface {
	Meters() []Meter
}

// A Buffer is a bounded FIFO queue with clocked semantics. Enqueue and Dequeue
// are judged against the content committed at the end of the previous cycle
// and only become visible after Commit. An Enqueue and a Dequeue in the same
// cycle are both honored if each is legal on its own.
type Buffer[T any] interface {
	Meter
	sim.Hookable
	sim.Committer

	// CanPush returns true if Enqueue would succeed in this cycle.
	CanPush() bool

	// Enqueue stages an element. It returns false if the buffer is full.
	Enqueue(e T) bool

	// Dequeue stages the removal of the oldest element that has not been
	// dequeued in this cycle. It returns false if there is no such element.
	Dequeue() (T, bool)

	// Peek returns the element that the next Dequeue would return.
	Peek() (T, bool)

	// IsEmpty returns true if no committed element is left to dequeue.
	IsEmpty() bool

	// Clear removes all the elements, including the staged ones.
	Clear()
}

// BufferBuilder builds buffers.
type BufferBuilder struct {
	capacity int
}

// MakeBufferBuilder creates a BufferBuilder with a capacity of one.
func MakeBufferBuilder() BufferBuilder {
	return BufferBuilder{capacity: 1}
}

// WithCapacity sets the number of elements the buffer can hold.
func (b BufferBuilder) WithCapacity(capacity int) BufferBuilder {
	b.capacity = capacity
	return b
}

// Build creates the buffer. It panics if the capacity is not positive.
func Build[T any](b BufferBuilder, name string) Buffer[T] {
	sim.NameMustBeValid(name)

	if b.capacity <= 0 {
		panic("buffer capacity must be positive")
	}

	return &bufferImpl[T]{
		HookableBase: sim.NewHookableBase(),
		name:         name,
		capacity:     b.capacity,
	}
}

// NewBuffer creates a buffer with the given capacity.
func NewBuffer[T any](name string, capacity int) Buffer[T] {
	return Build[T](MakeBufferBuilder().WithCapacity(capacity), name)
}

type bufferImpl[T any] struct {
	*sim.HookableBase

	name     string
	capacity int

	elements []T
	pushes   []T
	numPops  int
}

func (b *bufferImpl[T]) Name() string {
	return b.name
}

func (b *bufferImpl[T]) Capacity() int {
	return b.capacity
}

func (b *bufferImpl[T]) Size() int {
	return len(b.elements)
}

func (b *bufferImpl[T]) IsEmpty() bool {
	return b.numPops >= len(b.elements)
}

func (b *bufferImpl[T]) CanPush() bool {
	return len(b.elements)+len(b.pushes) < b.capacity
}

func (b *bufferImpl[T]) Enqueue(e T) bool {
	if !b.CanPush() {
		return false
	}

	b.pushes = append(b.pushes, e)

	return true
}

func (b *bufferImpl[T]) Dequeue() (T, bool) {
	e, ok := b.Peek()
	if !ok {
		return e, false
	}

	b.numPops++

	return e, true
}

func (b *bufferImpl[T]) Peek() (T, bool) {
	if b.IsEmpty() {
		var zero T
		return zero, false
	}

	return b.elements[b.numPops], true
}

func (b *bufferImpl[T]) Commit() {
	if b.numPops == 0 && len(b.pushes) == 0 {
		return
	}

	popped := b.elements[:b.numPops]
	remaining := b.elements[b.numPops:]

	elements := make([]T, 0, len(remaining)+len(b.pushes))
	elements = append(elements, remaining...)
	elements = append(elements, b.pushes...)

	pushed := b.pushes
	b.elements = elements
	b.pushes = nil
	b.numPops = 0

	if b.NumHooks() == 0 {
		return
	}

	for _, e := range popped {
		b.InvokeHook(sim.HookCtx{Domain: b, Pos: HookPosBufPop, Item: e})
	}

	for _, e := range pushed {
		b.InvokeHook(sim.HookCtx{Domain: b, Pos: HookPosBufPush, Item: e})
	}
}

func (b *bufferImpl[T]) Clear() {
	b.elements = nil
	b.pushes = nil
	b.numPops = 0
}
