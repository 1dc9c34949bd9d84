package queue

import "errors"

var (
	// ErrQueueFull is returned when the queue is at capacity. Callers should
	// treat it as backpressure.
	ErrQueueFull = errors.New("event queue full")
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("event queue closed")
)
