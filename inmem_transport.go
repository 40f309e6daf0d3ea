package synod

import "context"

// InmemMailbox is a channel-backed PeerHandle that owns a single
// Process: Run is the one goroutine ever allowed to call the
// Process's Handle method, which is what lets Process itself stay
// free of any locking.
type InmemMailbox struct {
	proc *Process
	in   chan Message
}

// NewInmemMailbox wraps proc in a mailbox buffering up to capacity
// undelivered messages before Tell starts blocking its caller.
func NewInmemMailbox(proc *Process, capacity int) *InmemMailbox {
	return &InmemMailbox{
		proc: proc,
		in:   make(chan Message, capacity),
	}
}

// Tell queues msg for delivery. It blocks only if the mailbox is
// already full, which in a correctly sized simulation should not
// happen; it never blocks waiting for the message to actually be
// handled.
func (m *InmemMailbox) Tell(msg Message) {
	m.in <- msg
}

// Run drains the mailbox, handing each message to the owned Process
// one at a time, until ctx is done or the mailbox is closed.
func (m *InmemMailbox) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-m.in:
			if !ok {
				return
			}
			m.proc.Handle(msg)
		}
	}
}

// Close stops accepting new deliveries for Run's select to drain.
// Calling Tell after Close panics, mirroring a send on a closed
// channel; callers should stop using the mailbox once they Close it.
func (m *InmemMailbox) Close() {
	close(m.in)
}
