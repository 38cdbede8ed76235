/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package events

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrDetached is returned by Emit once the consumer has gone away.
	ErrDetached = errors.New("event consumer detached")
	// ErrTerminated is returned by Emit after a terminal event was emitted.
	ErrTerminated = errors.New("event stream already terminated")
)

// DefaultBuffer is the number of events that may be queued ahead of the consumer.
const DefaultBuffer = 16

// Stream is a bounded, ordered channel of events with exactly one producer
// and one consumer. The producer blocks when the buffer is full, and stops
// with ErrDetached as soon as the consumer detaches.
type Stream struct {
	ch         chan Event
	detached   chan struct{}
	detachOnce sync.Once
	closeOnce  sync.Once

	mu         sync.Mutex
	terminated bool
}

// NewStream returns a stream buffering up to buffer events.
func NewStream(buffer int) *Stream {
	if buffer < 0 {
		buffer = 0
	}
	return &Stream{
		ch:       make(chan Event, buffer),
		detached: make(chan struct{}),
	}
}

// Events is the consumer side. It is closed by Close.
func (s *Stream) Events() <-chan Event {
	return s.ch
}

// Detach tells the producer that nobody is listening any more.
func (s *Stream) Detach() {
	s.detachOnce.Do(func() { close(s.detached) })
}

// Detached is closed once the consumer detached.
func (s *Stream) Detached() <-chan struct{} {
	return s.detached
}

// Emit delivers ev in order. At most one terminal event is ever delivered.
func (s *Stream) Emit(ctx context.Context, ev Event) error {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return ErrTerminated
	}
	if ev.Terminal() {
		s.terminated = true
	}
	s.mu.Unlock()

	select {
	case <-s.detached:
		return ErrDetached
	default:
	}

	select {
	case s.ch <- ev:
		return nil
	case <-s.detached:
		return ErrDetached
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the producer side; the consumer's range loop finishes after
// draining buffered events.
func (s *Stream) Close() {
	s.closeOnce.Do(func() { close(s.ch) })
}
