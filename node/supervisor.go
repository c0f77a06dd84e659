package node

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/2lambda123/Ericsson-ered/resp"
	"github.com/2lambda123/Ericsson-ered/transport"
)

// supervisorEvent is the sum type the reconnect supervisor reports to
// the core. Exactly one of the event kinds below is meaningful per
// value, selected by kind.
type supervisorEvent struct {
	kind      string // "connected", "connect_error", "init_error", "socket_closed"
	handle    transport.Handle
	clusterID string
	err       error
}

// supervisor owns the dial-handshake-monitor cycle for one node,
// entirely independent of the core: it never touches the waiting or
// pending queues, only ever talking to the core through events. This is
// the same separation the teacher draws between redisconn.Connection
// and whatever drives reconnect above it — here made an explicit,
// dedicated goroutine instead of callback hooks.
type supervisor struct {
	host   string
	port   int
	dialer transport.Dialer
	opts   Options
	events chan<- supervisorEvent
	log    *logrus.Entry
}

func (s *supervisor) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		h, err := s.dialer.Dial(ctx, s.host, s.port)
		if err != nil {
			s.log.WithError(err).Warn("connect failed, will retry")
			if !s.send(ctx, supervisorEvent{kind: "connect_error", err: err}) {
				return
			}
			if !s.wait(ctx) {
				return
			}
			continue
		}

		// handshake retries reply-level errors on h itself, reporting
		// init_error for each attempt; it only returns an error here
		// once h itself has died (a transport failure or a socket
		// closure during a retry wait), which is a terminal handshake
		// failure caused by socket closure per spec.md §4.3/§4.4 — so
		// it is reported as socket_closed, not init_error, and redialed
		// immediately rather than after reconnect_wait.
		clusterID, err := s.handshake(ctx, h)
		if err != nil {
			if ctx.Err() != nil {
				h.Close()
				return
			}
			s.log.WithError(err).Warn("connection lost during handshake")
			h.Close()
			if !s.send(ctx, supervisorEvent{kind: "socket_closed", err: err}) {
				return
			}
			continue
		}

		if !s.send(ctx, supervisorEvent{kind: "connected", handle: h, clusterID: clusterID}) {
			h.Close()
			return
		}

		select {
		case <-ctx.Done():
			h.Close()
			return
		case err := <-h.Closed():
			if !s.send(ctx, supervisorEvent{kind: "socket_closed", err: err}) {
				return
			}
		}
	}
}

// handshake runs CLUSTER MYID and/or HELLO, as configured, as a single
// pipelined batch and returns the cluster ID when requested.
//
// A reply-level error (the server rejecting HELLO 3, say) does not kill
// h: per spec.md §4.3, handshake reports init_error and retries on the
// very same handle after reconnect_wait, looping here until either a
// clean handshake succeeds or h itself dies. Only h.Do erroring, or
// h.Closed() firing while waiting to retry, is a real socket failure;
// that is reported to the caller as a plain error, which run() turns
// into socket_closed with no further wait.
func (s *supervisor) handshake(ctx context.Context, h transport.Handle) (string, error) {
	var batch []resp.Command
	wantClusterID := s.opts.UseClusterID
	if wantClusterID {
		batch = append(batch, resp.Command{Name: "CLUSTER MYID"})
	}
	if s.opts.RespVersion == 3 {
		batch = append(batch, resp.Command{Name: "HELLO", Args: []interface{}{"3"}})
	}
	if len(batch) == 0 {
		return "", nil
	}

	for {
		replies, err := h.Do(ctx, batch)
		if err != nil {
			return "", err
		}

		var replyErr error
		for _, r := range replies {
			if serr := resp.AsError(r); serr != nil {
				replyErr = serr
				break
			}
		}
		if replyErr == nil {
			var clusterID string
			if wantClusterID {
				switch v := replies[0].(type) {
				case []byte:
					clusterID = string(v)
				case string:
					clusterID = v
				}
			}
			return clusterID, nil
		}

		s.log.WithError(replyErr).Warn("handshake rejected, retrying on the same connection")
		if !s.send(ctx, supervisorEvent{kind: "init_error", err: replyErr}) {
			return "", ctx.Err()
		}
		if err := s.waitOrClosed(ctx, h); err != nil {
			return "", err
		}
	}
}

// waitOrClosed sleeps ReconnectWait, same as wait, but also watches h for
// a socket closure during the sleep, so a dead handle aborts the retry
// loop immediately instead of sleeping out the full interval first.
func (s *supervisor) waitOrClosed(ctx context.Context, h transport.Handle) error {
	t := time.NewTimer(s.opts.ReconnectWait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case err := <-h.Closed():
		if err == nil {
			err = fmt.Errorf("tcpconn: closed during handshake retry")
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *supervisor) send(ctx context.Context, ev supervisorEvent) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *supervisor) wait(ctx context.Context) bool {
	t := time.NewTimer(s.opts.ReconnectWait)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
