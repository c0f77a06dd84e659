// Package transport declares the contract the core state machine
// requires from whatever owns the actual socket (the Connection
// collaborator in spec terms). Nothing in this package does I/O; the
// tcpconn package provides the concrete implementation, and tests use a
// fake so the rest of the client runs without a real Redis server.
package transport

import (
	"context"

	"github.com/2lambda123/Ericsson-ered/resp"
)

// TaggedReply pairs a reply with the tag it was submitted under. The
// core matches replies by position, not by tag, and stops reading a
// handle's Replies once it has abandoned that handle.
type TaggedReply struct {
	Tag    uint64
	Result interface{}
}

// Handle is a single live connection. Ownership starts with whoever
// calls Dial and transfers to the core only once the handshake (if any)
// succeeds.
type Handle interface {
	// Do submits a pipelined batch and blocks for the reply vector, one
	// element per command in order. It exists only for the handshake,
	// which runs before the handle is handed to the core and can
	// therefore safely block its caller (the reconnect supervisor, a
	// dedicated goroutine). At most one Do call is ever in flight on a
	// given handle.
	Do(ctx context.Context, batch []resp.Command) ([]interface{}, error)

	// Submit hands an already-serialized payload to the wire. For every
	// payload submitted exactly one TaggedReply bearing the same tag is
	// eventually delivered on Replies, unless the handle closes first,
	// in which case no reply for that payload is guaranteed. Submit
	// never blocks.
	Submit(tag uint64, payload []byte)

	// Replies returns the channel replies are delivered on, in
	// submission order. The channel is never closed; the end of the
	// handle is reported on Closed.
	Replies() <-chan TaggedReply

	// Closed fires at most once, with the reason the handle stopped
	// being usable. It fires even if Replies was never read.
	Closed() <-chan error

	// Close releases any resources held by the handle. Safe to call
	// more than once.
	Close()
}

// Dialer establishes new connections. At most one Dial is in flight per
// endpoint at a time; the reconnect supervisor enforces that serially.
type Dialer interface {
	Dial(ctx context.Context, host string, port int) (Handle, error)
}
