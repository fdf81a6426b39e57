package render

import (
	"sync"

	"github.com/mwindels/galaxy/internal/metrics"
	"github.com/mwindels/galaxy/internal/transport"
)

// Reducer is the one collective primitive CompletionCheck needs. transport.Communicator
// satisfies it, and so does anything else (such as internal/app.Application, which doesn't
// implement the rest of Communicator) that can perform the collective sum.
type Reducer interface {
	AllReduceSum(local []float64) ([]float64, error)
}

// RenderingSet tracks one frame's in-flight work across the process tree and implements the
// distributed quiescence protocol from spec.md §4.9: a fixed binary tree by
// parent=(r-1)/2, asynchronous busy-state up-propagation, and a synchronous completion
// check via AllReduceSum once the root observes a transition to idle.
type RenderingSet struct {
	mu sync.Mutex

	rank, size int
	parent     int
	children   []int

	localRaylistCount  int
	localInflightCount int
	activeCameraCount  int
	leftBusy, rightBusy bool
	lastBusy           bool

	pixelsSent, pixelsReceived int64

	done chan struct{}
}

// New returns a RenderingSet for a process of the given rank within a world of the given
// size, with last_busy forced true so the first state update is always a transition (same
// reset behavior spec.md §4.9 describes for ResetMsg).
func New(rank, size int) *RenderingSet {
	return &RenderingSet{
		rank:     rank,
		size:     size,
		parent:   transport.QuiescenceParent(rank),
		children: transport.QuiescenceChildren(rank, size),
		lastBusy: true,
		done:     make(chan struct{}),
	}
}

// locallyBusy implements the local state rule: local_raylist_count > 0 OR
// active_camera_count > 0 OR left_busy OR right_busy.
func (rs *RenderingSet) locallyBusy() bool {
	return rs.localRaylistCount > 0 || rs.activeCameraCount > 0 || rs.leftBusy || rs.rightBusy
}

// CheckLocalState recomputes local busy-ness under the set's mutex, per SPEC_FULL.md §5's
// "CheckLocalState is always invoked under [the per-set mutex]". It returns whether the
// state changed and, if so, the new value to propagate to the parent (or to the root's
// completion check if this is rank 0).
func (rs *RenderingSet) CheckLocalState() (changed bool, busy bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	busy = rs.locallyBusy()
	if busy == rs.lastBusy {
		return false, busy
	}
	rs.lastBusy = busy
	return true, busy
}

// EnqueueRay records one packet entering the local queue or pool.
func (rs *RenderingSet) EnqueueRay() {
	rs.mu.Lock()
	rs.localRaylistCount++
	rs.mu.Unlock()
	metrics.RayPacketsInFlight.Inc()
}

// DequeueRay records one packet leaving the local queue (retired, forwarded, or merged).
func (rs *RenderingSet) DequeueRay() {
	rs.mu.Lock()
	rs.localRaylistCount--
	rs.mu.Unlock()
	metrics.RayPacketsInFlight.Dec()
}

// BeginCameraPass records a camera pass starting to spawn primaries.
func (rs *RenderingSet) BeginCameraPass() {
	rs.mu.Lock()
	rs.activeCameraCount++
	rs.mu.Unlock()
}

// EndCameraPass records a camera pass finishing.
func (rs *RenderingSet) EndCameraPass() {
	rs.mu.Lock()
	rs.activeCameraCount--
	rs.mu.Unlock()
}

// SendRays records a packet of n rays sent to a peer, incrementing in-flight count.
func (rs *RenderingSet) SendRays(n int) {
	rs.mu.Lock()
	rs.localInflightCount += n
	rs.mu.Unlock()
}

// AckRays records the acknowledgement of n previously-sent rays (SPEC_FULL.md testable
// property 3: ack balance), decrementing in-flight and raylist counts together.
func (rs *RenderingSet) AckRays(n int) {
	rs.mu.Lock()
	rs.localInflightCount -= n
	rs.localRaylistCount -= n
	rs.mu.Unlock()
	metrics.RayPacketsInFlight.Sub(float64(n))
}

// RetireRay records one ray retiring with a pixel shipped to its rendering's owner.
func (rs *RenderingSet) RetireRay() {
	rs.mu.Lock()
	rs.localRaylistCount--
	rs.pixelsSent++
	rs.mu.Unlock()
	metrics.RayPacketsInFlight.Dec()
}

// ReceivePixel records one pixel applied to a locally-owned framebuffer.
func (rs *RenderingSet) ReceivePixel() {
	rs.mu.Lock()
	rs.pixelsReceived++
	rs.mu.Unlock()
}

// SetChildBusy updates the recorded busy state of one of this node's two quiescence-tree
// children (PropagateStateMsg from below).
func (rs *RenderingSet) SetChildBusy(child int, busy bool) {
	rs.mu.Lock()
	if len(rs.children) > 0 && rs.children[0] == child {
		rs.leftBusy = busy
	} else if len(rs.children) > 1 && rs.children[1] == child {
		rs.rightBusy = busy
	}
	rs.mu.Unlock()
}

// Parent returns this node's quiescence-tree parent, or -1 at the root.
func (rs *RenderingSet) Parent() int { return rs.parent }

// Children returns this node's quiescence-tree children.
func (rs *RenderingSet) Children() []int { return rs.children }

// Vector returns the four-vector (local_raylist, pixels_sent, pixels_received,
// camera_active) this node contributes to the synchronous completion check's AllReduceSum.
func (rs *RenderingSet) Vector() []float64 {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	active := 0.0
	if rs.activeCameraCount > 0 {
		active = 1
	}
	return []float64{float64(rs.localRaylistCount), float64(rs.pixelsSent), float64(rs.pixelsReceived), active}
}

// CompletionCheck performs the root's synchronous completion check: every process
// contributes its Vector() into an AllReduceSum; if the summed local_raylist and
// camera_active are both zero, the frame is quiescent and every waiter on Done() is
// released. Otherwise last_busy is forced back to true so another up-propagation will
// eventually occur, per spec.md §4.9.
func (rs *RenderingSet) CompletionCheck(comm Reducer) (quiescent bool, err error) {
	sum, err := comm.AllReduceSum(rs.Vector())
	if err != nil {
		return false, err
	}

	quiescent = sum[0] == 0 && sum[3] == 0
	if quiescent {
		metrics.QuiescenceChecks.WithLabelValues("quiescent").Inc()
	} else {
		metrics.QuiescenceChecks.WithLabelValues("busy").Inc()
	}
	rs.mu.Lock()
	if quiescent {
		close(rs.done)
	} else {
		rs.lastBusy = true
	}
	rs.mu.Unlock()
	return quiescent, nil
}

// Done returns a channel closed once CompletionCheck observes global quiescence for this
// set's frame.
func (rs *RenderingSet) Done() <-chan struct{} { return rs.done }

// Reset reinitializes all counters for a re-render, forcing last_busy true so the first
// post-reset state update is always a transition, per spec.md §4.9's ResetMsg.
func (rs *RenderingSet) Reset() {
	rs.mu.Lock()
	rs.localRaylistCount, rs.localInflightCount, rs.activeCameraCount = 0, 0, 0
	rs.leftBusy, rs.rightBusy = false, false
	rs.pixelsSent, rs.pixelsReceived = 0, 0
	rs.lastBusy = true
	rs.done = make(chan struct{})
	rs.mu.Unlock()
}
