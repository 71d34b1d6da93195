package queue

import "errors"

// Sentinel errors for queue producers.
var (
	ErrQueueFull   = errors.New("queue full")
	ErrQueueClosed = errors.New("queue closed")
)
