package app

import (
	"testing"
	"time"

	"github.com/mwindels/galaxy/internal/config"
	"github.com/mwindels/galaxy/internal/keyed"
	"github.com/mwindels/galaxy/internal/message"
	"github.com/mwindels/galaxy/internal/transport"
	"github.com/mwindels/galaxy/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopComm is a one-process transport.Communicator fake: Send is never expected to be
// called for a single-rank world, since SendWork/BroadcastWork always loop back locally.
type loopComm struct {
	recv     chan transport.Frame
	recvColl chan transport.Frame
	sent     int
}

func newLoopComm() *loopComm {
	return &loopComm{recv: make(chan transport.Frame, 4), recvColl: make(chan transport.Frame, 4)}
}

func (c *loopComm) Rank() int { return 0 }
func (c *loopComm) Size() int { return 1 }
func (c *loopComm) Send(int, message.Header, []byte) error {
	c.sent++
	return nil
}
func (c *loopComm) Recv() <-chan transport.Frame           { return c.recv }
func (c *loopComm) RecvCollective() <-chan transport.Frame { return c.recvColl }
func (c *loopComm) BroadcastChildren(int) []int            { return nil }
func (c *loopComm) AllReduceSum(local []float64) ([]float64, error) { return local, nil }
func (c *loopComm) Close() error { return nil }

func testConfig() config.Config {
	return config.Config{NThreads: 2, RaysPerPacket: 100}
}

func TestQuitApplicationClosesDone(t *testing.T) {
	a := New(testConfig(), newLoopComm())
	a.Start()
	defer a.Shutdown(t.TempDir())

	require.NoError(t, a.QuitApplication())

	select {
	case <-a.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() never closed after QuitApplication")
	}
	assert.False(t, a.Running())
}

func TestSyncApplicationBlocksUntilLocalActionRuns(t *testing.T) {
	a := New(testConfig(), newLoopComm())
	a.Start()
	defer a.Shutdown(t.TempDir())

	require.NoError(t, a.SyncApplication())
}

func TestLogAccumulatesForDumpLog(t *testing.T) {
	a := New(testConfig(), newLoopComm())
	a.Log("hello")
	a.Log("world")

	dir := t.TempDir()
	require.NoError(t, a.DumpLog(dir))
}

type fakeCommitObject struct {
	Value     int32
	committed int
}

func (f *fakeCommitObject) ClassType() string { return "fake" }
func (f *fakeCommitObject) SerialSize() int   { return 4 }
func (f *fakeCommitObject) Serialize(buf []byte) []byte {
	return wire.PutInt32(buf, f.Value)
}
func (f *fakeCommitObject) Deserialize(buf []byte) ([]byte, error) {
	v, rest, err := wire.GetInt32(buf)
	if err != nil {
		return buf, err
	}
	f.Value = v
	return rest, nil
}
func (f *fakeCommitObject) LocalCommit() error {
	f.committed++
	return nil
}

func TestCommitObjectAppliesLocallyExactlyOnce(t *testing.T) {
	a := New(testConfig(), newLoopComm())
	a.Objects().RegisterClass("fake", func() keyed.Object { return &fakeCommitObject{} })
	a.Start()
	defer a.Shutdown(t.TempDir())

	key := a.Objects().NewKey()
	obj := &fakeCommitObject{Value: 42}
	require.NoError(t, a.CommitObject(key, obj))

	got := a.Objects().Get(key).(*fakeCommitObject)
	assert.Equal(t, int32(42), got.Value)
	assert.Equal(t, 1, got.committed)
}
