package sphero

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/basilfx/go-utilities/taskrunner"
	log "github.com/sirupsen/logrus"
	"github.com/twinj/uuid"
)

// DefaultRequestTimeout is a reasonable time to wait for a reply.
const DefaultRequestTimeout = 5 * time.Second

// ReadBufferSize is the size of the chunks read from the stream by Serve.
const ReadBufferSize = 256

// Option configures a Link.
type Option func(*Link)

// WithMetrics reports link activity to the given collectors.
func WithMetrics(m *Metrics) Option {
	return func(l *Link) {
		l.metrics = m
	}
}

// Link represents a connection to one device.
type Link struct {
	writer     io.Writer
	writerLock sync.Mutex

	taskRunner *taskrunner.TaskRunner

	// lock guards seq and pending as one unit.
	seq     uint8
	pending *pendingTable
	lock    sync.Mutex

	assembler     *Assembler
	assemblerLock sync.Mutex

	subscribers     map[AsyncID]NotificationHandler
	subscribersLock sync.RWMutex

	err     error
	errLock sync.Mutex

	metrics *Metrics
	log     *log.Entry
}

// New returns a new initialized instance of Link that writes commands to w.
// Received bytes are passed in with Receive, or read by Serve.
func New(w io.Writer, opts ...Option) *Link {
	l := &Link{
		writer:      w,
		taskRunner:  taskrunner.New(),
		pending:     newPendingTable(),
		assembler:   NewAssembler(),
		subscribers: map[AsyncID]NotificationHandler{},
		log:         log.WithField("link", uuid.NewV4().String()),
	}

	l.assembler.OnMalformed = l.malformed

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Send writes a command to the device. The handler, if not nil, is called
// once when the matching reply is dispatched. The sequence number assigned
// to the command is returned.
func (l *Link) Send(cmd Command, handler ResponseHandler) (uint8, error) {
	seq, _, err := l.send(cmd, handler)

	return seq, err
}

func (l *Link) send(cmd Command, handler ResponseHandler) (uint8, uint64, error) {
	if !cmd.valid {
		return 0, 0, ErrInvalidCommand
	}

	// Register before writing: the reply may be dispatched before Write
	// returns.
	l.lock.Lock()

	seq := l.seq
	l.seq++

	var generation uint64

	if handler != nil {
		var replaced bool

		generation, replaced = l.pending.put(seq, handler)

		if replaced {
			l.log.Warnf("Sequence %d is still pending, discarding its handler.", seq)
		}
	}

	l.updatePending()
	l.lock.Unlock()

	frame := cmd.Encode(seq)

	l.log.Debugf("Link outgoing: %s seq=%d % x", cmd, seq, frame)

	l.writerLock.Lock()
	_, err := l.writer.Write(frame)
	l.writerLock.Unlock()

	if err != nil {
		if handler != nil {
			l.lock.Lock()
			l.pending.remove(seq, generation)
			l.updatePending()
			l.lock.Unlock()
		}

		return seq, 0, &TransportError{Op: "write", Err: err}
	}

	if l.metrics != nil {
		l.metrics.FramesSent.Inc()
	}

	return seq, generation, nil
}

// Request sends a command and waits for its reply, or until ctx is done.
// A request that is given up on is removed from the pending requests, and
// a reply that arrives later is dropped.
func (l *Link) Request(ctx context.Context, cmd Command) (Response, error) {
	type result struct {
		response Response
		err      error
	}

	done := make(chan result, 1)

	seq, generation, err := l.send(cmd, func(response Response, err error) {
		done <- result{response, err}
	})

	if err != nil {
		return Response{}, err
	}

	select {
	case r := <-done:
		return r.response, r.err
	case <-ctx.Done():
		l.lock.Lock()
		l.pending.remove(seq, generation)
		l.updatePending()
		l.lock.Unlock()

		// The reply may have been dispatched in the meantime.
		select {
		case r := <-done:
			return r.response, r.err
		default:
			return Response{}, ctx.Err()
		}
	}
}

// OnNotification registers the handler for notifications with the given
// id, replacing any previous one. A nil handler unsubscribes.
func (l *Link) OnNotification(id AsyncID, handler NotificationHandler) {
	l.subscribersLock.Lock()
	defer l.subscribersLock.Unlock()

	if handler == nil {
		delete(l.subscribers, id)
		return
	}

	l.subscribers[id] = handler
}

// OnCollision subscribes to decoded collision notifications.
func (l *Link) OnCollision(handler func(CollisionEvent)) {
	if handler == nil {
		l.OnNotification(AsyncCollision, nil)
		return
	}

	l.OnNotification(AsyncCollision, func(n Notification) {
		event, err := DecodeCollision(n.Data)

		if err != nil {
			l.log.Warnf("Dropping collision notification: %v", err)
			return
		}

		handler(event)
	})
}

// OnPowerState subscribes to decoded power notifications.
func (l *Link) OnPowerState(handler func(PowerState)) {
	if handler == nil {
		l.OnNotification(AsyncPowerNotification, nil)
		return
	}

	l.OnNotification(AsyncPowerNotification, func(n Notification) {
		state, err := DecodePowerState(n.Data)

		if err != nil {
			l.log.Warnf("Dropping power notification: %v", err)
			return
		}

		handler(state)
	})
}

// Pending returns the number of commands waiting for a reply.
func (l *Link) Pending() int {
	l.lock.Lock()
	defer l.lock.Unlock()

	return l.pending.len()
}

// Receive processes bytes received from the device. Complete frames are
// dispatched before Receive returns, in the order they arrived.
func (l *Link) Receive(b []byte) {
	l.assemblerLock.Lock()
	defer l.assemblerLock.Unlock()

	for _, frame := range l.assembler.Feed(b) {
		l.dispatch(frame)
	}
}

// Serve reads from the stream until it fails or the link is shut down. The
// read error is returned as a *TransportError, or nil after Shutdown.
func (l *Link) Serve(stream io.Reader) error {
	l.taskRunner.RunWithCancel("Link.Reader", func(ctx context.Context) {
		l.readerTask(ctx, stream)
	})

	l.taskRunner.Wait()

	l.errLock.Lock()
	defer l.errLock.Unlock()

	return l.err
}

// Shutdown the link. This does not close the underlying stream.
func (l *Link) Shutdown() {
	if l.taskRunner != nil {
		l.taskRunner.Cancel()
	}
}

// updatePending must be called with lock held.
func (l *Link) updatePending() {
	if l.metrics != nil {
		l.metrics.PendingRequests.Set(float64(l.pending.len()))
	}
}

func (l *Link) malformed(err error) {
	l.log.Warnf("Dropping frame: %v", err)

	if l.metrics != nil {
		l.metrics.MalformedFrames.Inc()
	}
}
