package node

import "github.com/2lambda123/Ericsson-ered/resp"

// ReplyFunc receives a command's final outcome exactly once.
type ReplyFunc func(Reply)

// command is a single request sitting in the waiting or pending queue.
// payload is already wire-encoded so the core never touches resp types
// on the hot path.
type command struct {
	cmd     resp.Command
	payload []byte
	sink    ReplyFunc
}

func deliver(c *command, r Reply) {
	if c.sink != nil {
		c.sink(r)
	}
}
