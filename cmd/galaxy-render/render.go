package main

import (
	"sync"

	"github.com/mwindels/galaxy/internal/app"
	"github.com/mwindels/galaxy/internal/buffer"
	"github.com/mwindels/galaxy/internal/colour"
	"github.com/mwindels/galaxy/internal/geom"
	"github.com/mwindels/galaxy/internal/keyed"
	"github.com/mwindels/galaxy/internal/metrics"
	"github.com/mwindels/galaxy/internal/partition"
	"github.com/mwindels/galaxy/internal/pixel"
	"github.com/mwindels/galaxy/internal/raylist"
	"github.com/mwindels/galaxy/internal/render"
	"github.com/mwindels/galaxy/internal/scene"
	"github.com/mwindels/galaxy/internal/threadpool"
	"github.com/mwindels/galaxy/internal/wire"
	"github.com/mwindels/galaxy/internal/work"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// primaryPriority is the pool priority bucket for camera-originated and forwarded primary
// rays, per SPEC_FULL.md §4.3.
const primaryPriority = 3

// maxRayBatch bounds the number of rays a RayQueueManager batches into one RayList before
// flushing, per spec.md §4.8's "oversized retained packets are split before re-enqueue".
const maxRayBatch = 256

var backgroundColor = colour.RGB{R: 0, G: 0, B: 0.05, O: 1}

// frameOutDir holds this process's --out directory, consulted only by the rank that turns
// out to own a Rendering's framebuffer; set once in run() before Start.
var frameOutDir string

// renderFrame is everything one rank needs to answer ray traffic for one committed Rendering:
// the resolved scene objects, its partition subbox table, a RenderingSet tracking this rank's
// contribution to the distributed quiescence protocol, a RayQueueManager batching rays
// forwarded to neighbors, and (only on the owning rank) the framebuffer pixels accumulate
// into. Looked up by Rendering key from frames, since every Work a render in progress touches
// (rayListMsg, pixelMsg, the quiescence messages) is addressed by that key rather than by a
// direct pointer a closure could capture at registration time.
type renderFrame struct {
	a               *app.Application
	renderingKey    keyed.Key
	rendering       *render.Rendering
	cam             scene.Camera
	renderer        *render.Renderer
	reverseLighting bool
	part            *partition.Partitioning
	rs              *render.RenderingSet
	rqm             *render.RayQueueManager
	pool            *threadpool.Pool
	frame           int32

	fb      *pixel.Framebuffer
	outPath string
}

var frames sync.Map // keyed.Key -> *renderFrame

func registerFrame(f *renderFrame) { frames.Store(f.renderingKey, f) }
func dropFrame(key keyed.Key)      { frames.Delete(key) }
func lookupFrame(key keyed.Key) (*renderFrame, bool) {
	v, ok := frames.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*renderFrame), true
}

// classLabel turns a raylist.Class into a stable metrics label, since raylist.Class's
// String form (if it had one) isn't guaranteed to stay constant across refactors and a
// Prometheus label should.
func classLabel(c raylist.Class) string {
	switch c {
	case raylist.ClassKeep:
		return "keep"
	case raylist.ClassDrop:
		return "drop"
	case raylist.ClassTerminated:
		return "terminated"
	case raylist.ClassBoundary:
		return "boundary"
	default:
		return "unknown"
	}
}

// buildFrame resolves a committed Rendering's dependent keyed objects and assembles the
// per-rank tracking state needed to answer its ray traffic, run identically by every rank's
// renderMsg.Collective action.
func buildFrame(a *app.Application, renderingKey keyed.Key) (*renderFrame, error) {
	rendering, ok := a.Objects().Get(renderingKey).(*render.Rendering)
	if !ok {
		return nil, errors.New("galaxy-render: rendering object missing or wrong type")
	}
	cam, ok := a.Objects().Get(rendering.Camera).(*scene.Camera)
	if !ok {
		return nil, errors.New("galaxy-render: camera object missing or wrong type")
	}
	vis, ok := a.Objects().Get(rendering.Visualization).(*scene.Visualization)
	if !ok {
		return nil, errors.New("galaxy-render: visualization object missing or wrong type")
	}
	mesh, ok := a.Objects().Get(vis.Dataset).(*scene.Mesh)
	if !ok {
		return nil, errors.New("galaxy-render: dataset object missing or wrong type")
	}
	lighting, ok := a.Objects().Get(vis.Lighting).(*scene.Lighting)
	if !ok {
		return nil, errors.New("galaxy-render: lighting object missing or wrong type")
	}
	part, ok := a.Objects().Get(rendering.Partitioning).(*partition.Partitioning)
	if !ok {
		return nil, errors.New("galaxy-render: partitioning object missing or wrong type")
	}

	f := &renderFrame{
		a:               a,
		renderingKey:    renderingKey,
		rendering:       rendering,
		cam:             *cam,
		renderer:        &render.Renderer{Mesh: mesh, Lighting: lighting},
		reverseLighting: vis.ReverseLighting,
		part:            part,
		rs:              render.New(a.Rank(), a.Size()),
		pool:            a.Pool(),
		frame:           0,
	}
	f.rqm = render.NewRayQueueManager(rendering.Visualization, renderingKey, renderingKey, f.frame, maxRayBatch, func(dest int, rl *raylist.RayList) error {
		return a.SendWork(&rayListMsg{rl: rl}, dest)
	})
	if a.Rank() == int(rendering.OwnerRank) {
		f.fb = pixel.NewFramebuffer(cam.Width, cam.Height)
		f.outPath = frameOutDir + "/frame_0.png"
	}
	return f, nil
}

// beginFrame drives this rank's share of primary-ray origination: for every pixel whose
// camera ray enters the global box within the subbox this rank owns, it fires the ray; every
// other pixel is left to whichever rank does own its entry point, save for rays that never
// enter the global box at all (e.g. a camera pointed away from the dataset), which the
// Rendering's owner ships straight to background so every pixel still gets exactly one
// sample. Runs on its own goroutine so it never blocks the manager's comms loop.
func beginFrame(f *renderFrame) {
	f.rs.BeginCameraPass()
	rank := f.a.Rank()

	order := f.cam.PixelOrder(false)
	for _, idx := range order {
		x, y := idx%f.cam.Width, idx/f.cam.Width
		dir := f.cam.RayDirection(x, y)

		entry, entered := f.part.Global.Enter(f.cam.Pos, dir)
		owner := -1
		if entered {
			owner = f.part.PointOwner(entry)
		}

		if !entered || owner < 0 {
			if rank == int(f.rendering.OwnerRank) {
				f.rs.EnqueueRay()
				finishRay(f, int32(x), int32(y), backgroundColor)
			}
			continue
		}
		if owner != rank {
			continue
		}

		x, y, idx := x, y, idx
		f.rs.EnqueueRay()
		f.pool.AddTask(threadpool.NewTask(primaryPriority, func() int {
			dispatchRay(f, raylist.Primary, f.cam.Pos, dir, colour.RGB{O: 1}, 0, int32(x), int32(y), int32(idx))
			return 0
		}))
	}

	f.rs.EndCameraPass()
	if err := f.rqm.FlushAll(); err != nil {
		f.a.Log("galaxy-render: flushing ray queues: " + err.Error())
	}
	propagate(f.a, f)
}

// dispatchRay traces one ray against this rank's owned subbox, shading and shipping a pixel
// on a hit, forwarding to the neighbor across whichever face the ray left through, or
// terminating at background colour if that face has no neighbor (the ray left the dataset
// entirely). Grounded on tracer.trace+tracer.phong's original per-pixel loop, reworked to
// run per box-clipped ray segment instead of per whole-mesh pixel.
func dispatchRay(f *renderFrame, rayType raylist.Type, origin, dir geom.Vector, col colour.RGB, accumT float64, pixelX, pixelY, rayIndex int32) {
	rank := f.a.Rank()
	box := f.part.Box(rank)
	out := f.renderer.Trace(box, origin, dir)

	if out.Hit {
		class := render.Classify(rayType, raylist.TermSurface, f.reverseLighting)
		metrics.RaysTraced.WithLabelValues(classLabel(class)).Inc()
		finishRay(f, pixelX, pixelY, out.Color)
		return
	}

	neighbor := f.part.Neighbor(rank, origin, dir)
	if neighbor < 0 {
		class := render.Classify(rayType, raylist.TermOpaque, f.reverseLighting)
		metrics.RaysTraced.WithLabelValues(classLabel(class)).Inc()
		finishRay(f, pixelX, pixelY, backgroundColor)
		return
	}

	class := render.Classify(rayType, raylist.TermBoundary, f.reverseLighting)
	metrics.RaysTraced.WithLabelValues(classLabel(class)).Inc()

	f.rs.DequeueRay()
	if err := f.rqm.Enqueue(neighbor, rayType, out.Exit, dir, col, accumT, pixelX, pixelY, rayIndex); err != nil {
		f.a.Log("galaxy-render: forwarding ray: " + err.Error())
	}
	propagate(f.a, f)
}

// finishRay retires a ray that has reached a terminal outcome (hit, background, or an
// already-boundary ray the owner ships directly), shipping its one pixel.Sample to the
// Rendering's owner rank.
func finishRay(f *renderFrame, x, y int32, col colour.RGB) {
	f.rs.RetireRay()
	metrics.PixelsSent.Inc()

	sample := pixel.Sample{X: int(x), Y: int(y), Color: col, Frame: f.frame}
	msg := &pixelMsg{rendering: f.renderingKey, frame: f.frame, samples: []pixel.Sample{sample}}
	if err := f.a.SendWork(msg, int(f.rendering.OwnerRank)); err != nil {
		f.a.Log("galaxy-render: sending pixel: " + err.Error())
	}
	propagate(f.a, f)
}

// pixelMsg carries one rank's shaded samples to the owning rank's framebuffer, grounded on
// spec.md §4.8's SendPixelsMsg. It is point-to-point and non-collective: every rank sends
// directly to the Rendering's owner rather than routing pixels back up a broadcast tree.
type pixelMsg struct {
	rendering keyed.Key
	frame     int32
	samples   []pixel.Sample
}

var pixelWorkType uint32

func registerPixelWork(works *work.Registry) {
	pixelWorkType = works.Register("gxy.Pixels", func(b *buffer.Shared) (work.Work, error) {
		buf := b.Get()
		renderingKey, buf, err := wire.GetInt64(buf)
		if err != nil {
			return nil, err
		}
		frame, samples, err := decodePixelPayload(buf)
		if err != nil {
			return nil, err
		}
		return &pixelMsg{rendering: keyed.Key(renderingKey), frame: frame, samples: samples}, nil
	})
}

func (m *pixelMsg) Type() uint32 { return pixelWorkType }

func (m *pixelMsg) Serialize() (*buffer.Shared, error) {
	buf := wire.PutInt64(nil, int64(m.rendering))
	buf = wire.PutInt32(buf, m.frame)
	buf = wire.PutInt32(buf, int32(len(m.samples)))
	for _, s := range m.samples {
		buf = wire.PutInt32(buf, int32(s.X))
		buf = wire.PutInt32(buf, int32(s.Y))
		buf = wire.PutFloat64(buf, s.Color.R)
		buf = wire.PutFloat64(buf, s.Color.G)
		buf = wire.PutFloat64(buf, s.Color.B)
		buf = wire.PutFloat64(buf, s.Color.O)
	}
	return buffer.Wrap(buf), nil
}

func decodePixelPayload(buf []byte) (int32, []pixel.Sample, error) {
	frame, buf, err := wire.GetInt32(buf)
	if err != nil {
		return 0, nil, err
	}
	n, buf, err := wire.GetInt32(buf)
	if err != nil {
		return 0, nil, err
	}
	samples := make([]pixel.Sample, n)
	for i := range samples {
		var x, y int32
		if x, buf, err = wire.GetInt32(buf); err != nil {
			return 0, nil, err
		}
		if y, buf, err = wire.GetInt32(buf); err != nil {
			return 0, nil, err
		}
		var col colour.RGB
		if col.R, buf, err = wire.GetFloat64(buf); err != nil {
			return 0, nil, err
		}
		if col.G, buf, err = wire.GetFloat64(buf); err != nil {
			return 0, nil, err
		}
		if col.B, buf, err = wire.GetFloat64(buf); err != nil {
			return 0, nil, err
		}
		if col.O, buf, err = wire.GetFloat64(buf); err != nil {
			return 0, nil, err
		}
		samples[i] = pixel.Sample{X: int(x), Y: int(y), Color: col, Frame: frame}
	}
	return frame, samples, nil
}

func (m *pixelMsg) NonCollective(ctx work.Context) error {
	a, ok := ctx.(*app.Application)
	if !ok {
		return errors.New("galaxy-render: pixelMsg requires an *app.Application context")
	}
	f, ok := lookupFrame(m.rendering)
	if !ok {
		return errors.Errorf("galaxy-render: pixels for unknown rendering %v", m.rendering)
	}
	for _, s := range m.samples {
		f.fb.Apply(s)
		f.rs.ReceivePixel()
	}
	metrics.PixelsReceived.Add(float64(len(m.samples)))
	propagate(a, f)
	return nil
}

func (*pixelMsg) Collective(work.Context, bool) error { return nil }

// rayListMsg carries one batch of forwarded rays to the rank whose owned subbox their
// origins now fall within, grounded on spec.md §4.8's RayList forwarding: the distributed
// subject this entrypoint exists to exercise. It is point-to-point and non-collective.
type rayListMsg struct {
	rl *raylist.RayList
}

var rayListWorkType uint32

func registerRayListWork(works *work.Registry) {
	rayListWorkType = works.Register("gxy.RayList", func(b *buffer.Shared) (work.Work, error) {
		rl, _, err := raylist.Deserialize(b.Get())
		if err != nil {
			return nil, err
		}
		return &rayListMsg{rl: rl}, nil
	})
}

func (*rayListMsg) Type() uint32 { return rayListWorkType }

func (m *rayListMsg) Serialize() (*buffer.Shared, error) {
	buf := make([]byte, 0, m.rl.SerialSize())
	buf = m.rl.Serialize(buf)
	return buffer.Wrap(buf), nil
}

func (*rayListMsg) Collective(work.Context, bool) error { return nil }

func (m *rayListMsg) NonCollective(ctx work.Context) error {
	a, ok := ctx.(*app.Application)
	if !ok {
		return errors.New("galaxy-render: rayListMsg requires an *app.Application context")
	}
	f, ok := lookupFrame(m.rl.Rendering)
	if !ok {
		return errors.Errorf("galaxy-render: ray list for unknown rendering %v", m.rl.Rendering)
	}

	for i := 0; i < m.rl.Len(); i++ {
		i := i
		f.rs.EnqueueRay()
		origin, dir, col := m.rl.Origin(i), m.rl.Dir(i), m.rl.Color(i)
		rayType, accumT := m.rl.RayType, m.rl.AccumT[i]
		pixelX, pixelY, rayIndex := m.rl.PixelX[i], m.rl.PixelY[i], m.rl.RayIndex[i]
		f.pool.AddTask(threadpool.NewTask(primaryPriority, func() int {
			dispatchRay(f, rayType, origin, dir, col, accumT, pixelX, pixelY, rayIndex)
			return 0
		}))
	}
	propagate(a, f)
	return nil
}

// renderMsg is the collective trigger rank 0 broadcasts once a Rendering and its dependent
// keyed objects are committed: every rank's Collective action (including rank 0's own)
// assembles the frame's local tracking state and spawns a goroutine to originate its share of
// primary rays, so the manager's comms goroutine is never blocked for the duration of a trace.
type renderMsg struct {
	rendering keyed.Key
}

var renderWorkType uint32

func registerRenderWork(works *work.Registry) {
	renderWorkType = works.Register("gxy.Render", func(b *buffer.Shared) (work.Work, error) {
		renderingKey, _, err := wire.GetInt64(b.Get())
		if err != nil {
			return nil, err
		}
		return &renderMsg{rendering: keyed.Key(renderingKey)}, nil
	})
}

func (*renderMsg) Type() uint32 { return renderWorkType }

func (m *renderMsg) Serialize() (*buffer.Shared, error) {
	return buffer.Wrap(wire.PutInt64(nil, int64(m.rendering))), nil
}

func (*renderMsg) NonCollective(work.Context) error { return nil }

func (m *renderMsg) Collective(ctx work.Context, isRoot bool) error {
	a, ok := ctx.(*app.Application)
	if !ok {
		return errors.New("galaxy-render: renderMsg requires an *app.Application context")
	}
	f, err := buildFrame(a, m.rendering)
	if err != nil {
		return err
	}
	registerFrame(f)
	logrus.WithField("rank", a.Rank()).Info("galaxy-render: tracing local pixel share")
	go beginFrame(f)
	return nil
}
