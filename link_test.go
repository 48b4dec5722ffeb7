package sphero

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a transport that keeps every written frame. If onWrite is set,
// it is called synchronously from Write.
type recorder struct {
	frames  [][]byte
	err     error
	onWrite func(frame []byte)
}

func (r *recorder) Write(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}

	r.frames = append(r.frames, append([]byte(nil), p...))

	if r.onWrite != nil {
		r.onWrite(p)
	}

	return len(p), nil
}

func mustCommand(t *testing.T, device DeviceID, command CommandID, data ...byte) Command {
	t.Helper()

	cmd, err := NewCommand(device, command, data...)
	require.NoError(t, err)

	return cmd
}

type result struct {
	response Response
	err      error
}

func collect(results *[]result) ResponseHandler {
	return func(response Response, err error) {
		*results = append(*results, result{response, err})
	}
}

func TestSendWritesFrame(t *testing.T) {
	w := &recorder{}
	l := New(w)

	seq, err := l.Send(mustCommand(t, DeviceCore, CmdPing), nil)
	require.NoError(t, err)

	assert.Equal(t, uint8(0), seq)
	require.Len(t, w.frames, 1)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x00, 0x01, 0x00, 0x01, 0xFD}, w.frames[0])
	assert.Equal(t, 0, l.Pending())
}

func TestSendRejectsZeroCommand(t *testing.T) {
	w := &recorder{}
	l := New(w)

	_, err := l.Send(Command{}, nil)

	assert.ErrorIs(t, err, ErrInvalidCommand)
	assert.ErrorIs(t, err, ErrUsage)
	assert.Empty(t, w.frames)
}

func TestSequenceWraparound(t *testing.T) {
	w := &recorder{}
	l := New(w)
	cmd := mustCommand(t, DeviceCore, CmdPing)

	for i := 0; i < 256; i++ {
		seq, err := l.Send(cmd, nil)
		require.NoError(t, err)
		require.Equal(t, uint8(i), seq)
	}

	seq, err := l.Send(cmd, nil)
	require.NoError(t, err)

	assert.Equal(t, uint8(0), seq)
	assert.Equal(t, byte(0x00), w.frames[256][4])
}

func TestReplyDeliveredDuringWrite(t *testing.T) {
	w := &recorder{}
	l := New(w)

	w.onWrite = func(frame []byte) {
		_, seq, err := ParseCommand(frame)
		require.NoError(t, err)

		l.Receive(EncodeResponse(StatusOK, seq, []byte{0x42}))
	}

	var results []result

	_, err := l.Send(mustCommand(t, DeviceCore, CmdVersioning), collect(&results))
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.NoError(t, results[0].err)
	assert.Equal(t, []byte{0x42}, results[0].response.Data)
	assert.Equal(t, 0, l.Pending())
}

func TestDispatchOnce(t *testing.T) {
	l := New(&recorder{})

	var results []result

	seq, err := l.Send(mustCommand(t, DeviceCore, CmdPing), collect(&results))
	require.NoError(t, err)
	assert.Equal(t, 1, l.Pending())

	reply := EncodeResponse(StatusOK, seq, nil)

	l.Receive(reply)
	assert.Equal(t, 0, l.Pending())

	l.Receive(reply)

	assert.Len(t, results, 1)
	assert.Equal(t, 0, l.Pending())
}

func TestStatusRouting(t *testing.T) {
	kinds := map[Status]error{
		StatusGeneric:       ErrGeneric,
		StatusChecksum:      ErrChecksum,
		StatusFragmentation: ErrFragmentation,
		StatusBadCommand:    ErrBadCommand,
		StatusUnsupported:   ErrUnsupported,
		StatusBadMessage:    ErrBadMessage,
		StatusBadParameter:  ErrBadParameter,
		StatusExecution:     ErrExecution,
		StatusBadDevice:     ErrBadDevice,
		StatusPowerNoGood:   ErrPowerNoGood,
		StatusPageIllegal:   ErrPageIllegal,
		StatusFlashFail:     ErrFlashFail,
		StatusMACorrupt:     ErrMACorrupt,
		StatusMsgTimeout:    ErrMsgTimeout,
		Status(0x7F):        ErrUnknownStatus,
	}

	for status, kind := range kinds {
		t.Run(status.String(), func(t *testing.T) {
			l := New(&recorder{})

			var results []result

			seq, err := l.Send(mustCommand(t, DeviceSphero, CmdRoll), collect(&results))
			require.NoError(t, err)

			l.Receive(EncodeResponse(status, seq, []byte{0x01}))

			require.Len(t, results, 1)

			var protocolErr *ProtocolError

			require.True(t, errors.As(results[0].err, &protocolErr))
			assert.Equal(t, status, protocolErr.Status)
			assert.Equal(t, seq, protocolErr.Response.Seq)
			assert.ErrorIs(t, results[0].err, kind)
			assert.Equal(t, status, results[0].response.Status)
		})
	}
}

func TestStatusOK(t *testing.T) {
	l := New(&recorder{})

	var results []result

	seq, err := l.Send(mustCommand(t, DeviceCore, CmdPing), collect(&results))
	require.NoError(t, err)

	l.Receive(EncodeResponse(StatusOK, seq, nil))

	require.Len(t, results, 1)
	assert.NoError(t, results[0].err)
	assert.Equal(t, StatusOK, results[0].response.Status)
}

func TestRepliesMatchedBySequence(t *testing.T) {
	l := New(&recorder{})

	var first, second []result

	seq1, err := l.Send(mustCommand(t, DeviceCore, CmdPing), collect(&first))
	require.NoError(t, err)

	seq2, err := l.Send(mustCommand(t, DeviceCore, CmdVersioning), collect(&second))
	require.NoError(t, err)

	b := EncodeResponse(StatusOK, seq2, []byte{0x02})
	b = append(b, EncodeResponse(StatusOK, seq1, []byte{0x01})...)

	l.Receive(b[:3])
	l.Receive(b[3:])

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, []byte{0x01}, first[0].response.Data)
	assert.Equal(t, []byte{0x02}, second[0].response.Data)
}

func TestOrphanReplyDropped(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	l := New(&recorder{}, WithMetrics(m))

	var results []result

	seq, err := l.Send(mustCommand(t, DeviceCore, CmdPing), collect(&results))
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		l.Receive(EncodeResponse(StatusOK, seq+1, nil))
	})

	assert.Empty(t, results)
	assert.Equal(t, 1, l.Pending())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OrphanReplies))
}

func TestWriteErrorSurfaced(t *testing.T) {
	w := &recorder{err: errors.New("link down")}
	l := New(w)

	var results []result

	seq, err := l.Send(mustCommand(t, DeviceCore, CmdPing), collect(&results))

	var transportErr *TransportError

	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, "write", transportErr.Op)
	assert.Equal(t, uint8(0), seq)
	assert.Equal(t, 0, l.Pending())
	assert.Empty(t, results)

	// The sequence number is consumed regardless.
	w.err = nil

	seq, err = l.Send(mustCommand(t, DeviceCore, CmdPing), nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), seq)
}

func TestSequenceCollisionReplacesHandler(t *testing.T) {
	l := New(&recorder{})
	cmd := mustCommand(t, DeviceCore, CmdPing)

	var first, second []result

	_, err := l.Send(cmd, collect(&first))
	require.NoError(t, err)

	for i := 0; i < 255; i++ {
		_, err := l.Send(cmd, nil)
		require.NoError(t, err)
	}

	seq, err := l.Send(cmd, collect(&second))
	require.NoError(t, err)
	require.Equal(t, uint8(0), seq)

	l.Receive(EncodeResponse(StatusOK, 0, nil))

	assert.Empty(t, first)
	assert.Len(t, second, 1)
}

func TestRequest(t *testing.T) {
	w := &recorder{}
	l := New(w)

	w.onWrite = func(frame []byte) {
		_, seq, err := ParseCommand(frame)
		require.NoError(t, err)

		l.Receive(EncodeResponse(StatusBadParameter, seq, nil))
	}

	_, err := l.Request(context.Background(), mustCommand(t, DeviceSphero, CmdSetHeading, 0x00, 0x5A))

	assert.ErrorIs(t, err, ErrBadParameter)
}

func TestRequestCancelled(t *testing.T) {
	l := New(&recorder{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := l.Request(ctx, mustCommand(t, DeviceCore, CmdPing))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, l.Pending())

	// The late reply is an orphan.
	assert.NotPanics(t, func() {
		l.Receive(EncodeResponse(StatusOK, 0, nil))
	})
}

func TestNotificationSubscriber(t *testing.T) {
	l := New(&recorder{})

	var first, second []Notification

	l.OnNotification(AsyncPreSleepWarning, func(n Notification) {
		first = append(first, n)
	})

	l.Receive(EncodeNotification(AsyncPreSleepWarning, nil))

	l.OnNotification(AsyncPreSleepWarning, func(n Notification) {
		second = append(second, n)
	})

	l.Receive(EncodeNotification(AsyncPreSleepWarning, nil))

	l.OnNotification(AsyncPreSleepWarning, nil)

	l.Receive(EncodeNotification(AsyncPreSleepWarning, nil))

	assert.Len(t, first, 1)
	assert.Len(t, second, 1)
	assert.Equal(t, AsyncPreSleepWarning, second[0].ID)
}

func TestNotificationWithoutSubscriber(t *testing.T) {
	l := New(&recorder{})

	assert.NotPanics(t, func() {
		l.Receive(EncodeNotification(AsyncDiagnostic, []byte("hello")))
	})
}

func TestNotificationBypassesPending(t *testing.T) {
	l := New(&recorder{})

	var results []result
	var events []CollisionEvent

	seq, err := l.Send(mustCommand(t, DeviceCore, CmdPing), collect(&results))
	require.NoError(t, err)

	l.OnCollision(func(e CollisionEvent) {
		events = append(events, e)
	})

	b := EncodeNotification(AsyncCollision, collisionSample)
	b = append(b, EncodeResponse(StatusOK, seq, nil)...)

	l.Receive(b)

	assert.Len(t, events, 1)
	assert.Len(t, results, 1)
}

func TestOnCollision(t *testing.T) {
	l := New(&recorder{})

	var events []CollisionEvent

	l.OnCollision(func(e CollisionEvent) {
		events = append(events, e)
	})

	l.Receive(EncodeNotification(AsyncCollision, collisionSample))

	// Too short, dropped.
	l.Receive(EncodeNotification(AsyncCollision, collisionSample[:8]))

	require.Len(t, events, 1)
	assert.Equal(t, collisionExpected, events[0])
}

func TestOnPowerState(t *testing.T) {
	l := New(&recorder{})

	var states []PowerState

	l.OnPowerState(func(s PowerState) {
		states = append(states, s)
	})

	l.Receive(EncodeNotification(AsyncPowerNotification, []byte{0x03}))
	l.Receive(EncodeNotification(AsyncPowerNotification, nil))

	assert.Equal(t, []PowerState{PowerLow}, states)
}

func TestMalformedFrameCounted(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	l := New(&recorder{}, WithMetrics(m))

	var results []result

	seq, err := l.Send(mustCommand(t, DeviceCore, CmdPing), collect(&results))
	require.NoError(t, err)

	bad := EncodeResponse(StatusOK, seq, nil)
	bad[len(bad)-1]++

	l.Receive(bad)
	assert.Empty(t, results)

	l.Receive(EncodeResponse(StatusOK, seq, nil))
	assert.Len(t, results, 1)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.MalformedFrames))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FramesSent))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FramesReceived.WithLabelValues("reply")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Replies.WithLabelValues("OK")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.PendingRequests))
}
