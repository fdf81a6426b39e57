package manager

import (
	"net"
	"testing"
	"time"

	"github.com/mwindels/galaxy/internal/message"
	"github.com/mwindels/galaxy/internal/transport/tcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freeAddr reserves an ephemeral TCP port on loopback and releases it immediately, so a peer
// map can name an address before the Comm that will bind it exists.
func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

// TestTwoProcessForwarding drives two Managers over real tcp.Comm sockets, one pair of ranks
// in a two-rank world, and checks that a root-broadcast collective reaches rank 1's Collective
// action over the wire rather than its NonCollective one. This is the regression the
// fakeComm-based tests in manager_test.go cannot cover: fakeComm.Send records a header
// directly, so it can never reproduce a transport that mislabels a forwarded broadcast's class
// byte (internal/transport/tcp.Comm.Send must tag header.Collective frames classCollective, or
// rank 1 demultiplexes the forward onto its ordinary channel and runs the wrong action).
func TestTwoProcessForwarding(t *testing.T) {
	peers := tcp.Peers{0: freeAddr(t), 1: freeAddr(t)}

	comm0, err := tcp.Listen(0, peers)
	require.NoError(t, err)
	defer comm0.Close()

	comm1, err := tcp.Listen(1, peers)
	require.NoError(t, err)
	defer comm1.Close()

	rank0Collective := make(chan bool, 1)
	rank1Collective := make(chan bool, 1)
	rank1NonCollective := make(chan uint32, 1)

	m0 := New(comm0, func(h message.Header, payload []byte, isRoot bool) error {
		rank0Collective <- isRoot
		return nil
	})
	m0.Start(func(message.Header, []byte) error { return nil })
	defer m0.Stop()

	m1 := New(comm1, func(h message.Header, payload []byte, isRoot bool) error {
		rank1Collective <- isRoot
		return nil
	})
	m1.Start(func(h message.Header, payload []byte) error {
		rank1NonCollective <- h.Type
		return nil
	})
	defer m1.Stop()

	require.NoError(t, m0.BroadcastWork(&echoWork{id: 11, payload: []byte("frame")}, true, true))

	select {
	case isRoot := <-rank0Collective:
		assert.True(t, isRoot, "the originating rank's own collective action should see isRoot")
	case <-time.After(2 * time.Second):
		t.Fatal("rank 0's local collective action never ran")
	}

	select {
	case isRoot := <-rank1Collective:
		assert.False(t, isRoot, "rank 1 is not the broadcast root")
	case <-time.After(2 * time.Second):
		t.Fatal("the forwarded broadcast never reached rank 1's Collective action")
	}

	select {
	case typ := <-rank1NonCollective:
		t.Fatalf("forwarded collective broadcast ran as a NonCollective action (type %d) instead", typ)
	case <-time.After(100 * time.Millisecond):
	}
}
