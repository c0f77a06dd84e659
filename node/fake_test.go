package node

import (
	"context"
	"errors"
	"sync"

	"github.com/2lambda123/Ericsson-ered/resp"
	"github.com/2lambda123/Ericsson-ered/transport"
)

// submitted records one payload handed to a fakeHandle, for assertions
// about admission order and in-flight width.
type submitted struct {
	tag     uint64
	payload []byte
}

// fakeHandle is a transport.Handle the tests drive entirely by hand:
// no real socket, no real reply timing.
type fakeHandle struct {
	submittedCh chan submitted
	repliesCh   chan transport.TaggedReply
	closedCh    chan error
	closeOnce   sync.Once
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{
		submittedCh: make(chan submitted, 256),
		repliesCh:   make(chan transport.TaggedReply, 256),
		closedCh:    make(chan error, 1),
	}
}

func (h *fakeHandle) Do(ctx context.Context, batch []resp.Command) ([]interface{}, error) {
	out := make([]interface{}, len(batch))
	for i := range batch {
		out[i] = "OK"
	}
	return out, nil
}

func (h *fakeHandle) Submit(tag uint64, payload []byte) {
	h.submittedCh <- submitted{tag: tag, payload: payload}
}

func (h *fakeHandle) Replies() <-chan transport.TaggedReply { return h.repliesCh }
func (h *fakeHandle) Closed() <-chan error                  { return h.closedCh }

func (h *fakeHandle) Close() {
	h.closeOnce.Do(func() {
		h.closedCh <- errors.New("fake: closed")
		close(h.closedCh)
	})
}

// reply delivers a reply for the oldest outstanding submission, by
// reading the next recorded submission's tag.
func (h *fakeHandle) reply(result interface{}) {
	s := <-h.submittedCh
	h.repliesCh <- transport.TaggedReply{Tag: s.tag, Result: result}
}

// fakeDialer delegates every Dial to its dialFn.
type fakeDialer struct {
	mu     sync.Mutex
	dialFn func(ctx context.Context, host string, port int) (transport.Handle, error)
}

func (d *fakeDialer) Dial(ctx context.Context, host string, port int) (transport.Handle, error) {
	d.mu.Lock()
	fn := d.dialFn
	d.mu.Unlock()
	return fn(ctx, host, port)
}

// blockingDialer never returns until its context is cancelled, for
// tests that only care about queue behavior with no connection ever.
func blockingDialer() *fakeDialer {
	return &fakeDialer{dialFn: func(ctx context.Context, host string, port int) (transport.Handle, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
}

// erroringDialer always fails to connect, immediately.
func erroringDialer(err error) *fakeDialer {
	return &fakeDialer{dialFn: func(ctx context.Context, host string, port int) (transport.Handle, error) {
		return nil, err
	}}
}

// sequenceDialer returns the handles in hs in order, one per Dial call;
// once the sequence is exhausted, Dial blocks until its context is
// cancelled and then returns the context's error.
func sequenceDialer(hs ...*fakeHandle) *fakeDialer {
	i := 0
	var mu sync.Mutex
	return &fakeDialer{dialFn: func(ctx context.Context, host string, port int) (transport.Handle, error) {
		mu.Lock()
		defer mu.Unlock()
		if i >= len(hs) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		h := hs[i]
		i++
		return h, nil
	}}
}
