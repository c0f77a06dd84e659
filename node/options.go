package node

import "time"

// Options configures a Node's queueing, reconnect and status-reporting
// behavior. Zero values resolve to the documented defaults, the same
// "document the zero value, resolve it at Start" idiom the teacher uses
// for redisconn.Opts.
type Options struct {
	// MaxWaiting bounds the waiting queue. Exceeding it drops from the
	// front, replying ErrQueueOverflow. Zero means 5000.
	MaxWaiting int
	// MaxPending bounds the in-flight window toward the server. Zero
	// means 128.
	MaxPending int
	// QueueOkLevel is the waiting-queue length below which a prior
	// QueueFull status is cleared with a QueueOk status. Must be less
	// than MaxWaiting. Zero means 2000.
	QueueOkLevel int
	// ReconnectWait is the delay between connect attempts and between
	// handshake retries. Zero means one second.
	ReconnectWait time.Duration
	// NodeDownTimeout is how long a continuous disconnection is
	// tolerated before the node is declared down, draining both queues
	// and short-circuiting new submissions. Zero means three seconds.
	NodeDownTimeout time.Duration
	// RespVersion selects whether the handshake sends HELLO 3. Must be
	// 2 or 3. Zero means 3.
	RespVersion int
	// UseClusterID requests CLUSTER MYID during the handshake.
	UseClusterID bool
	// StatusCh, if non-nil, receives deduplicated lifecycle events. The
	// send is fire-and-forget: a full or absent channel never blocks
	// the core.
	StatusCh chan<- StatusEvent
}

func (o Options) withDefaults() Options {
	if o.MaxWaiting == 0 {
		o.MaxWaiting = 5000
	}
	if o.MaxPending == 0 {
		o.MaxPending = 128
	}
	if o.QueueOkLevel == 0 {
		o.QueueOkLevel = 2000
	}
	if o.ReconnectWait == 0 {
		o.ReconnectWait = time.Second
	}
	if o.NodeDownTimeout == 0 {
		o.NodeDownTimeout = 3 * time.Second
	}
	if o.RespVersion == 0 {
		o.RespVersion = 3
	}
	return o
}

// ConfigError reports an Options value that violates a cross-field
// invariant Start refuses to paper over. Per spec, an invalid
// configuration is a fatal error at init, not a runtime fallback.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "node: invalid options: " + e.Msg }

func (o Options) validate() error {
	if o.MaxWaiting <= 0 {
		return &ConfigError{Msg: "MaxWaiting must be positive"}
	}
	if o.MaxPending <= 0 {
		return &ConfigError{Msg: "MaxPending must be positive"}
	}
	if o.QueueOkLevel >= o.MaxWaiting {
		return &ConfigError{Msg: "QueueOkLevel must be less than MaxWaiting"}
	}
	if o.RespVersion != 2 && o.RespVersion != 3 {
		return &ConfigError{Msg: "RespVersion must be 2 or 3"}
	}
	if o.NodeDownTimeout < 0 {
		return &ConfigError{Msg: "NodeDownTimeout must not be negative"}
	}
	if o.ReconnectWait < 0 {
		return &ConfigError{Msg: "ReconnectWait must not be negative"}
	}
	return nil
}
