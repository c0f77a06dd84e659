package node

import "github.com/2lambda123/Ericsson-ered/transport"

// driveOnce admits as many waiting commands as the in-flight window
// allows, then enforces the overflow/hysteresis policy on whatever is
// left. It runs after every event that can change either queue's
// length: a new submission, a reply, a reconnect, or a disconnect.
func (n *Node) driveOnce() {
	for n.waiting.Len() > 0 && n.pending.Len() < n.opts.MaxPending && n.conn != nil {
		c, _ := n.waiting.PopFront()
		n.pending.PushBack(c)
		n.tag++
		n.conn.Submit(n.tag, c.payload)
	}
	n.enforceOverflow()
}

func (n *Node) enforceOverflow() {
	w := n.waiting.Len()
	switch {
	case w > n.opts.MaxWaiting:
		if !n.queueFull {
			n.queueFull = true
			n.log.WithField("waiting", w).Warn("queue full")
			n.emitStatus(StatusQueueFull, 0, nil)
		}
		for n.waiting.Len() > n.opts.MaxWaiting {
			c, _ := n.waiting.PopFront()
			deliver(c, Reply{Err: ErrQueueOverflow})
		}
	case n.queueFull && w < n.opts.QueueOkLevel:
		n.queueFull = false
		n.emitStatus(StatusQueueOk, 0, nil)
	}
}

// onReply matches a wire reply to the oldest in-flight command. Matching
// is positional, not tag-keyed: the contract guarantees replies arrive
// in submission order on a given handle's channel, and a defunct
// handle's channel is never read again once the core replaces its conn
// reference, so there is nothing left to key on.
func (n *Node) onReply(tr transport.TaggedReply) {
	c, ok := n.pending.PopFront()
	if !ok {
		return
	}
	deliver(c, Reply{Result: tr.Result})
	n.driveOnce()
}

func (n *Node) emitStatus(s Status, reason DownReason, err error) {
	n.status.emit(StatusEvent{
		Host:      n.host,
		Port:      n.port,
		ClusterID: n.clusterID,
		Status:    s,
		Reason:    reason,
		Err:       err,
	})
}
