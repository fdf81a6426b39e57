package tcp

import (
	"testing"
	"time"

	"github.com/mwindels/galaxy/internal/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePeers(t *testing.T, n int) Peers {
	t.Helper()
	peers := make(Peers, n)
	for i := 0; i < n; i++ {
		peers[i] = "127.0.0.1:0"
	}
	return peers
}

// listenAll starts n Comms bound to ephemeral ports, then rewrites the peer map to the
// actual bound addresses before returning, so every Comm can dial every other one.
func listenAll(t *testing.T, n int) []*Comm {
	t.Helper()
	peers := freePeers(t, n)
	comms := make([]*Comm, n)
	for i := 0; i < n; i++ {
		c, err := Listen(i, peers)
		require.NoError(t, err)
		comms[i] = c
		peers[i] = c.listener.Addr().String()
	}
	for _, c := range comms {
		c.peers = peers
	}
	return comms
}

func TestSendRecvPointToPoint(t *testing.T) {
	comms := listenAll(t, 2)
	defer comms[0].Close()
	defer comms[1].Close()

	header := message.Header{BroadcastRoot: message.NoBroadcastRoot, Sender: 0, Type: 7, ContentSize: 3}
	require.NoError(t, comms[0].Send(1, header, []byte{1, 2, 3}))

	select {
	case frame := <-comms[1].Recv():
		assert.Equal(t, uint32(7), frame.Header.Type)
		assert.Equal(t, []byte{1, 2, 3}, frame.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("frame never arrived")
	}
}

func TestAllReduceSumAcrossFour(t *testing.T) {
	comms := listenAll(t, 4)
	defer func() {
		for _, c := range comms {
			c.Close()
		}
	}()

	results := make([][]float64, 4)
	errs := make([]error, 4)
	done := make(chan int, 4)

	for i, c := range comms {
		go func(i int, c *Comm) {
			r, err := c.AllReduceSum([]float64{float64(i + 1), 1})
			results[i] = r
			errs[i] = err
			done <- i
		}(i, c)
	}

	for i := 0; i < 4; i++ {
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Fatal("AllReduceSum never completed for all ranks")
		}
	}

	for i := 0; i < 4; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, []float64{10, 4}, results[i])
	}
}
