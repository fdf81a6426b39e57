package manager

import (
	"testing"
	"time"

	"github.com/mwindels/galaxy/internal/buffer"
	"github.com/mwindels/galaxy/internal/message"
	"github.com/mwindels/galaxy/internal/transport"
	"github.com/mwindels/galaxy/internal/work"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeComm is a minimal transport.Communicator recording every Send call, standing in for
// a one-process world (no children, no real sockets).
type fakeComm struct {
	rank, size int
	recv       chan transport.Frame
	recvColl   chan transport.Frame

	sent []sentRecord
}

type sentRecord struct {
	dest    int
	header  message.Header
	payload []byte
}

func newFakeComm(rank, size int) *fakeComm {
	return &fakeComm{
		rank:     rank,
		size:     size,
		recv:     make(chan transport.Frame, 8),
		recvColl: make(chan transport.Frame, 8),
	}
}

func (f *fakeComm) Rank() int { return f.rank }
func (f *fakeComm) Size() int { return f.size }
func (f *fakeComm) Send(dest int, h message.Header, payload []byte) error {
	f.sent = append(f.sent, sentRecord{dest: dest, header: h, payload: payload})
	return nil
}
func (f *fakeComm) Recv() <-chan transport.Frame           { return f.recv }
func (f *fakeComm) RecvCollective() <-chan transport.Frame { return f.recvColl }
func (f *fakeComm) BroadcastChildren(root int) []int {
	return transport.BroadcastChildren(f.rank, root, f.size)
}
func (f *fakeComm) AllReduceSum(local []float64) ([]float64, error) { return local, nil }
func (f *fakeComm) Close() error                                    { return nil }

// echoWork is a trivial work.Work whose NonCollective/Collective just record that they ran.
type echoWork struct {
	id      uint32
	payload []byte
}

func (w *echoWork) Type() uint32 { return w.id }
func (w *echoWork) Serialize() (*buffer.Shared, error) {
	return buffer.Wrap(append([]byte(nil), w.payload...)), nil
}
func (w *echoWork) NonCollective(ctx work.Context) error { return nil }
func (w *echoWork) Collective(ctx work.Context, isRoot bool) error { return nil }

func TestSendWorkToSelfLoopsOntoIncomingWithoutTransport(t *testing.T) {
	comm := newFakeComm(0, 1)
	ran := make(chan []byte, 1)

	m := New(comm, func(message.Header, []byte, bool) error { return nil })
	m.Start(func(h message.Header, payload []byte) error {
		ran <- payload
		return nil
	})
	defer m.Stop()

	require.NoError(t, m.SendWork(&echoWork{id: 1, payload: []byte("hello")}, 0))

	select {
	case got := <-ran:
		assert.Equal(t, []byte("hello"), got)
	case <-time.After(time.Second):
		t.Fatal("onWork never ran for a self-addressed SendWork")
	}
	assert.Empty(t, comm.sent, "a self-addressed message should never reach the transport")
}

func TestSendWorkToPeerGoesThroughTransport(t *testing.T) {
	comm := newFakeComm(0, 2)
	m := New(comm, func(message.Header, []byte, bool) error { return nil })
	m.Start(func(message.Header, []byte) error { return nil })
	defer m.Stop()

	require.NoError(t, m.SendWork(&echoWork{id: 2, payload: []byte("to-peer")}, 1))

	require.Eventually(t, func() bool { return len(comm.sent) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, comm.sent[0].dest)
	assert.Equal(t, []byte("to-peer"), comm.sent[0].payload)
}

func TestBroadcastWorkBlockingWaitsForLocalAction(t *testing.T) {
	comm := newFakeComm(0, 1)
	var collectiveRan bool

	m := New(comm, func(h message.Header, payload []byte, isRoot bool) error {
		collectiveRan = true
		assert.True(t, isRoot)
		return nil
	})
	m.Start(func(message.Header, []byte) error { return nil })
	defer m.Stop()

	require.NoError(t, m.BroadcastWork(&echoWork{id: 3}, true, true))
	assert.True(t, collectiveRan)
}

func TestInboundCollectiveFrameForwardsToChildrenBeforeRunningAction(t *testing.T) {
	comm := newFakeComm(0, 4) // children of root 0 in a 4-rank world: 1, 2
	actioned := make(chan bool, 1)

	m := New(comm, func(h message.Header, payload []byte, isRoot bool) error {
		actioned <- isRoot
		return nil
	})
	m.Start(func(message.Header, []byte) error { return nil })
	defer m.Stop()

	comm.recvColl <- transport.Frame{
		Header:  message.Header{BroadcastRoot: 0, Sender: 0, Type: 5, Collective: true},
		Payload: []byte("bcast"),
	}

	select {
	case isRoot := <-actioned:
		assert.True(t, isRoot)
	case <-time.After(time.Second):
		t.Fatal("collective action never ran")
	}
	require.Eventually(t, func() bool { return len(comm.sent) == 2 }, time.Second, time.Millisecond)
}
