package node

import "errors"

// ErrQueueOverflow is the error a waiting command receives when it is
// dropped from the front of the waiting queue because the queue grew
// past MaxWaiting before the server could drain it.
var ErrQueueOverflow = errors.New("node: waiting queue overflow")

// ErrNodeDown is the error every queued command receives once the node
// has been continuously disconnected for longer than NodeDownTimeout.
var ErrNodeDown = errors.New("node: down")

// ClientStoppedError is returned to any command still queued, or
// submitted after, a call to Stop.
type ClientStoppedError struct {
	Cause error
}

func (e *ClientStoppedError) Error() string {
	if e.Cause == nil {
		return "node: client stopped"
	}
	return "node: client stopped: " + e.Cause.Error()
}

func (e *ClientStoppedError) Unwrap() error { return e.Cause }

// Reply is what a command's sink eventually receives: either Result is
// populated and Err is nil, or Err is populated and Result is nil. A
// ServerError surfaced by the wire protocol is a successful reply from
// the pipeline's point of view — Err here is reserved for pipeline-level
// failures (overflow, node down, client stopped).
type Reply struct {
	Result interface{}
	Err    error
}
