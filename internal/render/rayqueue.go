package render

import (
	"sync"

	"github.com/mwindels/galaxy/internal/colour"
	"github.com/mwindels/galaxy/internal/geom"
	"github.com/mwindels/galaxy/internal/keyed"
	"github.com/mwindels/galaxy/internal/raylist"
)

// RayQueueManager batches outgoing rays by destination rank into raylist.RayList packets,
// flushing a destination's batch once it reaches maxBatch rays or on an explicit Flush. This
// is the Ray Queue Manager named in spec.md §3: there is no teacher equivalent (the teacher
// never forwarded a ray across a process boundary), so this is grounded directly on
// spec.md's description of the component and on the RayList type it batches.
type RayQueueManager struct {
	renderer, renderingSet, rendering keyed.Key
	frame                             int32
	maxBatch                          int
	send                              func(dest int, rl *raylist.RayList) error

	mu      sync.Mutex
	pending map[int]*raylist.RayList
}

// NewRayQueueManager returns a RayQueueManager that tags every outgoing RayList with the
// given correlation keys and frame, flushing a destination automatically once its batch
// reaches maxBatch rays; send is called once per flushed packet, with chunking already
// applied (RayList.Split) if the batch somehow exceeds maxBatch.
func NewRayQueueManager(renderer, renderingSet, rendering keyed.Key, frame int32, maxBatch int, send func(int, *raylist.RayList) error) *RayQueueManager {
	return &RayQueueManager{
		renderer:     renderer,
		renderingSet: renderingSet,
		rendering:    rendering,
		frame:        frame,
		maxBatch:     maxBatch,
		send:         send,
		pending:      make(map[int]*raylist.RayList),
	}
}

// Enqueue appends one ray bound for dest, flushing immediately once the batch reaches
// maxBatch.
func (q *RayQueueManager) Enqueue(dest int, rayType raylist.Type, origin, dir geom.Vector, col colour.RGB, accumT float64, pixelX, pixelY, rayIndex int32) error {
	q.mu.Lock()
	rl, ok := q.pending[dest]
	if !ok {
		rl = raylist.New(q.renderer, q.renderingSet, q.rendering, q.frame, rayType)
		q.pending[dest] = rl
	}
	rl.Append(origin, dir, col, accumT, pixelX, pixelY, rayIndex)
	full := rl.Len() >= q.maxBatch
	q.mu.Unlock()

	if full {
		return q.Flush(dest)
	}
	return nil
}

// Flush sends dest's accumulated batch, if any, splitting it first in case it somehow grew
// past maxBatch between Enqueue calls.
func (q *RayQueueManager) Flush(dest int) error {
	q.mu.Lock()
	rl, ok := q.pending[dest]
	delete(q.pending, dest)
	q.mu.Unlock()

	if !ok || rl.Len() == 0 {
		return nil
	}
	for _, chunk := range rl.Split(q.maxBatch) {
		if err := q.send(dest, chunk); err != nil {
			return err
		}
	}
	return nil
}

// FlushAll flushes every destination with a non-empty pending batch, used once a camera
// pass has finished generating primaries so nothing is left stranded below the batch
// threshold.
func (q *RayQueueManager) FlushAll() error {
	q.mu.Lock()
	dests := make([]int, 0, len(q.pending))
	for d := range q.pending {
		dests = append(dests, d)
	}
	q.mu.Unlock()

	for _, d := range dests {
		if err := q.Flush(d); err != nil {
			return err
		}
	}
	return nil
}
