// Package node implements the per-connection leaf of a Redis Cluster
// client: a single-goroutine state machine that owns one logical
// connection to one node, pipelines commands over it within a bounded
// in-flight window, reconnects on failure, and reports its lifecycle
// through a deduplicated status stream.
package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/2lambda123/Ericsson-ered/queue"
	"github.com/2lambda123/Ericsson-ered/resp"
	"github.com/2lambda123/Ericsson-ered/transport"
)

// Node is a running connection state machine. Create one with Start and
// release it with Stop.
type Node struct {
	id   uuid.UUID
	host string
	port int
	opts Options
	log  *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	eg     *errgroup.Group

	submitCh chan *command
	eventCh  chan supervisorEvent

	stopOnce sync.Once

	// Everything below is touched only from run's goroutine.
	waiting   *queue.Queue[*command]
	pending   *queue.Queue[*command]
	conn      transport.Handle
	tag       uint64
	clusterID string
	queueFull bool
	status    *statusReporter
}

// Start dials host:port through dialer and begins the state machine in
// the background. It returns once Options has been validated; the
// first connection attempt happens asynchronously, exactly like the
// teacher never blocking Connect's caller on the network.
func Start(host string, port int, dialer transport.Dialer, opts Options) (*Node, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		id:       uuid.New(),
		host:     host,
		port:     port,
		opts:     opts,
		log:      logrus.WithFields(logrus.Fields{"component": "node", "host": host, "port": port}),
		ctx:      ctx,
		cancel:   cancel,
		submitCh: make(chan *command, opts.MaxWaiting+opts.MaxPending+64),
		eventCh:  make(chan supervisorEvent, 1),
		waiting:  queue.New[*command](),
		pending:  queue.New[*command](),
		status:   newStatusReporter(opts.StatusCh),
	}

	eg, egCtx := errgroup.WithContext(ctx)
	n.eg = eg
	sup := &supervisor{host: host, port: port, dialer: dialer, opts: opts, events: n.eventCh, log: n.log}
	eg.Go(func() error { n.run(egCtx); return nil })
	eg.Go(func() error { sup.run(egCtx); return nil })

	return n, nil
}

// ID identifies this Node instance for the lifetime of the process.
func (n *Node) ID() uuid.UUID { return n.id }

// Stop tears the state machine down: both goroutines exit, every queued
// command is answered with a ClientStoppedError, and the current
// connection, if any, is closed. Stop blocks until cleanup completes
// and is safe to call more than once.
func (n *Node) Stop() {
	n.stopOnce.Do(func() {
		n.cancel()
		n.eg.Wait()
	})
}

// CommandAsync submits a command for pipelined execution. sink is
// invoked exactly once with the outcome, normally from the Node's
// internal goroutine. If cmd cannot be encoded, or the Node has been
// stopped, sink is invoked synchronously before this call returns.
func (n *Node) CommandAsync(cmd resp.Command, sink ReplyFunc) {
	payload, err := resp.AppendCommand(nil, cmd)
	if err != nil {
		sink(Reply{Err: err})
		return
	}
	if err := n.ctx.Err(); err != nil {
		sink(Reply{Err: &ClientStoppedError{Cause: err}})
		return
	}
	c := &command{cmd: cmd, payload: payload, sink: sink}
	select {
	case n.submitCh <- c:
	case <-n.ctx.Done():
		sink(Reply{Err: &ClientStoppedError{Cause: n.ctx.Err()}})
	}
}

// Command submits cmd and blocks for its outcome. The caller's own
// deadline governs the wait: if ctx is done first, Command abandons the
// reply and returns ctx.Err() without affecting the command's delivery
// to the pipeline, which still runs to completion and invokes the
// internal sink exactly once.
func (n *Node) Command(ctx context.Context, cmd resp.Command) Reply {
	done := make(chan Reply, 1)
	n.CommandAsync(cmd, func(r Reply) { done <- r })
	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		return Reply{Err: ctx.Err()}
	}
}

func (n *Node) run(ctx context.Context) {
	var nodeDown bool
	var nodeDownTimer *time.Timer

	for {
		var repliesC <-chan transport.TaggedReply
		if n.conn != nil {
			repliesC = n.conn.Replies()
		}
		var timerC <-chan time.Time
		if nodeDownTimer != nil {
			timerC = nodeDownTimer.C
		}

		select {
		case <-ctx.Done():
			n.drainOnStop(ctx.Err())
			if nodeDownTimer != nil {
				nodeDownTimer.Stop()
			}
			if n.conn != nil {
				n.conn.Close()
			}
			return

		case c := <-n.submitCh:
			if nodeDown {
				deliver(c, Reply{Err: ErrNodeDown})
				continue
			}
			n.waiting.PushBack(c)
			n.driveOnce()

		case tr := <-repliesC:
			n.onReply(tr)

		case ev := <-n.eventCh:
			switch ev.kind {
			case "connected":
				if nodeDownTimer != nil {
					nodeDownTimer.Stop()
					nodeDownTimer = nil
				}
				nodeDown = false
				n.conn = ev.handle
				n.clusterID = ev.clusterID
				n.log.WithField("cluster_id", ev.clusterID).Info("connected")
				n.emitStatus(StatusConnectionUp, 0, nil)
				n.driveOnce()

			case "connect_error":
				n.handleDisconnect(ReasonConnectError, ev.err, &nodeDownTimer)

			case "init_error":
				n.handleDisconnect(ReasonInitError, ev.err, &nodeDownTimer)

			case "socket_closed":
				n.handleDisconnect(ReasonSocketClosed, ev.err, &nodeDownTimer)
			}

		case <-timerC:
			n.declareNodeDown()
			nodeDown = true
			nodeDownTimer = nil
		}
	}
}

// handleDisconnect requeues any in-flight commands to the front of
// waiting, drops the dead handle, reports connection_down, and arms the
// node-down timer if one is not already running.
func (n *Node) handleDisconnect(reason DownReason, err error, timerRef **time.Timer) {
	n.waiting.PrependAll(n.pending)
	n.conn = nil
	n.driveOnce()
	n.log.WithError(err).WithField("reason", reason).Warn("disconnected")
	n.emitStatus(StatusConnectionDown, reason, err)
	if *timerRef == nil {
		*timerRef = time.NewTimer(n.opts.NodeDownTimeout)
	}
}

func (n *Node) declareNodeDown() {
	n.log.Error("node down: node-down timeout elapsed with no connection")
	for _, c := range n.pending.Clear() {
		deliver(c, Reply{Err: ErrNodeDown})
	}
	for _, c := range n.waiting.Clear() {
		deliver(c, Reply{Err: ErrNodeDown})
	}
	n.queueFull = false
}

func (n *Node) drainOnStop(cause error) {
	for {
		select {
		case c := <-n.submitCh:
			deliver(c, Reply{Err: &ClientStoppedError{Cause: cause}})
		default:
			for _, c := range n.pending.Clear() {
				deliver(c, Reply{Err: &ClientStoppedError{Cause: cause}})
			}
			for _, c := range n.waiting.Clear() {
				deliver(c, Reply{Err: &ClientStoppedError{Cause: cause}})
			}
			n.emitStatus(StatusConnectionDown, ReasonClientStopped, cause)
			return
		}
	}
}

func (n *Node) String() string {
	return fmt.Sprintf("node.Node{%s:%d}", n.host, n.port)
}

func (n *Node) GoString() string {
	return fmt.Sprintf("node.Node{id: %s, host: %q, port: %d}", n.id, n.host, n.port)
}
