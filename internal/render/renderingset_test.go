package render

import (
	"testing"

	"github.com/mwindels/galaxy/internal/message"
	"github.com/mwindels/galaxy/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sumComm is a minimal transport.Communicator fake that just sums whatever vector it's
// given, standing in for a one-process world in these unit tests.
type sumComm struct{}

func (sumComm) Rank() int                             { return 0 }
func (sumComm) Size() int                             { return 1 }
func (sumComm) Send(int, message.Header, []byte) error { panic("not used") }
func (sumComm) Recv() <-chan transport.Frame           { panic("not used") }
func (sumComm) RecvCollective() <-chan transport.Frame { panic("not used") }
func (sumComm) BroadcastChildren(int) []int            { return nil }
func (sumComm) AllReduceSum(local []float64) ([]float64, error) {
	return local, nil
}
func (sumComm) Close() error { return nil }

func TestLocalStateRuleBecomesBusyOnEnqueue(t *testing.T) {
	rs := New(0, 1)
	changed, busy := rs.CheckLocalState()
	assert.True(t, changed)
	assert.False(t, busy)

	rs.EnqueueRay()
	changed, busy = rs.CheckLocalState()
	assert.True(t, changed)
	assert.True(t, busy)
}

func TestAckRaysDecrementsBothCounters(t *testing.T) {
	rs := New(0, 1)
	rs.SendRays(3)
	rs.EnqueueRay()
	rs.EnqueueRay()
	rs.EnqueueRay()
	rs.AckRays(3)

	v := rs.Vector()
	assert.Equal(t, 0.0, v[0])
	assert.Equal(t, 0, rs.localInflightCount)
}

func TestResetForcesLastBusyTrue(t *testing.T) {
	rs := New(0, 1)
	rs.CheckLocalState() // consume the initial forced transition
	rs.Reset()

	changed, busy := rs.CheckLocalState()
	assert.True(t, changed)
	assert.False(t, busy)
}

func TestCompletionCheckQuiescentClosesDone(t *testing.T) {
	rs := New(0, 1)
	quiescent, err := rs.CompletionCheck(sumComm{})
	require.NoError(t, err)
	assert.True(t, quiescent)

	select {
	case <-rs.Done():
	default:
		t.Fatal("Done() should be closed once quiescent")
	}
}

func TestCompletionCheckBusyForcesLastBusyTrue(t *testing.T) {
	rs := New(0, 1)
	rs.CheckLocalState()
	rs.EnqueueRay()

	quiescent, err := rs.CompletionCheck(sumComm{})
	require.NoError(t, err)
	assert.False(t, quiescent)

	changed, busy := rs.CheckLocalState()
	assert.False(t, changed)
	assert.True(t, busy)
}
