// Package session implements the per-connection protocol state machine
// and outbound message queueing for the game server.
package session

import (
	"fmt"
	"sync"
)

// Outbox is a bounded mailbox of outbound protocol lines for one session.
// Producers (command responses, room broadcasts) push without blocking; a
// single writer goroutine drains the mailbox to the connection. A full or
// closed mailbox rejects the push instead of stalling the producer.
type Outbox struct {
	uid    string
	lines  chan string
	mu     sync.Mutex
	closed bool
}

// NewOutbox creates an Outbox for the given session UID.
//
// Precondition: uid must be non-empty.
// Postcondition: Returns an Outbox with an open lines channel.
func NewOutbox(uid string, bufferSize int) *Outbox {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Outbox{
		uid:   uid,
		lines: make(chan string, bufferSize),
	}
}

// Push enqueues one line for delivery.
//
// Postcondition: The line is enqueued, or an error is returned if the
// outbox is closed or full. Push never blocks.
func (o *Outbox) Push(line string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("outbox %s is closed", o.uid)
	}
	select {
	case o.lines <- line:
		return nil
	default:
		return fmt.Errorf("outbox %s is full", o.uid)
	}
}

// Lines returns the read-only channel the writer goroutine drains.
// The channel is closed by Close; buffered lines remain readable.
func (o *Outbox) Lines() <-chan string {
	return o.lines
}

// Close marks the outbox as closed and closes the lines channel.
// Closing twice is a no-op.
//
// Postcondition: Further Push calls return an error.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.lines)
	}
}

// IsClosed reports whether the outbox has been closed.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
