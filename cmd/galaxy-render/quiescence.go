package main

import (
	"github.com/mwindels/galaxy/internal/app"
	"github.com/mwindels/galaxy/internal/buffer"
	"github.com/mwindels/galaxy/internal/keyed"
	"github.com/mwindels/galaxy/internal/wire"
	"github.com/mwindels/galaxy/internal/work"
	"github.com/pkg/errors"
)

// propagate recomputes a frame's local busy state and, if it changed, pushes the update
// toward the root of the quiescence tree: up to the parent if there is one, or (at the root,
// once idle) out as a collective completion check to every rank. Called after every local
// event that can flip busy-ness: a ray enqueued, dequeued, retired, or forwarded, and a
// camera pass beginning or ending. Grounded on spec.md §4.9's up-propagation rule.
func propagate(a *app.Application, f *renderFrame) {
	changed, busy := f.rs.CheckLocalState()
	if !changed {
		return
	}

	if parent := f.rs.Parent(); parent >= 0 {
		msg := &propagateStateMsg{rendering: f.renderingKey, from: int32(a.Rank()), busy: busy}
		if err := a.SendWork(msg, parent); err != nil {
			a.Log("galaxy-render: propagating quiescence state: " + err.Error())
		}
		return
	}

	if !busy {
		if err := a.BroadcastWork(&syncCheckMsg{rendering: f.renderingKey}, true, false); err != nil {
			a.Log("galaxy-render: broadcasting quiescence check: " + err.Error())
		}
	}
}

// propagateStateMsg carries one quiescence-tree child's busy-state transition up to its
// parent, point-to-point and non-collective, grounded on spec.md §4.9's PropagateStateMsg.
type propagateStateMsg struct {
	rendering keyed.Key
	from      int32
	busy      bool
}

var propagateStateWorkType uint32

func registerPropagateStateWork(works *work.Registry) {
	propagateStateWorkType = works.Register("gxy.PropagateState", func(b *buffer.Shared) (work.Work, error) {
		buf := b.Get()
		renderingKey, buf, err := wire.GetInt64(buf)
		if err != nil {
			return nil, err
		}
		from, buf, err := wire.GetInt32(buf)
		if err != nil {
			return nil, err
		}
		busy, _, err := wire.GetBool(buf)
		if err != nil {
			return nil, err
		}
		return &propagateStateMsg{rendering: keyed.Key(renderingKey), from: from, busy: busy}, nil
	})
}

func (*propagateStateMsg) Type() uint32 { return propagateStateWorkType }

func (m *propagateStateMsg) Serialize() (*buffer.Shared, error) {
	buf := wire.PutInt64(nil, int64(m.rendering))
	buf = wire.PutInt32(buf, m.from)
	buf = wire.PutBool(buf, m.busy)
	return buffer.Wrap(buf), nil
}

func (*propagateStateMsg) Collective(work.Context, bool) error { return nil }

func (m *propagateStateMsg) NonCollective(ctx work.Context) error {
	a, ok := ctx.(*app.Application)
	if !ok {
		return errors.New("galaxy-render: propagateStateMsg requires an *app.Application context")
	}
	f, ok := lookupFrame(m.rendering)
	if !ok {
		return errors.Errorf("galaxy-render: quiescence state for unknown rendering %v", m.rendering)
	}
	f.rs.SetChildBusy(int(m.from), m.busy)
	propagate(a, f)
	return nil
}

// syncCheckMsg is the root's synchronous completion check, broadcast collectively once the
// root itself observes idle, grounded on spec.md §4.9's SyncCheckMsg. Every rank's Collective
// action contributes its RenderingSet.Vector() into the same AllReduceSum, so every rank
// reaches the same quiescent/not-quiescent verdict independently; the Rendering's owner rank
// writes its framebuffer out, and the root alone (isRoot) issues the final Quit.
type syncCheckMsg struct {
	rendering keyed.Key
}

var syncCheckWorkType uint32

func registerSyncCheckWork(works *work.Registry) {
	syncCheckWorkType = works.Register("gxy.SyncCheck", func(b *buffer.Shared) (work.Work, error) {
		renderingKey, _, err := wire.GetInt64(b.Get())
		if err != nil {
			return nil, err
		}
		return &syncCheckMsg{rendering: keyed.Key(renderingKey)}, nil
	})
}

func (*syncCheckMsg) Type() uint32 { return syncCheckWorkType }

func (m *syncCheckMsg) Serialize() (*buffer.Shared, error) {
	return buffer.Wrap(wire.PutInt64(nil, int64(m.rendering))), nil
}

func (*syncCheckMsg) NonCollective(work.Context) error { return nil }

func (m *syncCheckMsg) Collective(ctx work.Context, isRoot bool) error {
	a, ok := ctx.(*app.Application)
	if !ok {
		return errors.New("galaxy-render: syncCheckMsg requires an *app.Application context")
	}
	f, ok := lookupFrame(m.rendering)
	if !ok {
		return errors.Errorf("galaxy-render: completion check for unknown rendering %v", m.rendering)
	}

	quiescent, err := f.rs.CompletionCheck(a)
	if err != nil {
		return errors.Wrap(err, "galaxy-render: checking render completion")
	}
	if !quiescent {
		return nil
	}

	if f.fb != nil {
		if err := f.fb.WritePNG(f.outPath); err != nil {
			a.Fatal(errors.Wrap(err, "galaxy-render: writing output image"))
			return nil
		}
	}
	dropFrame(f.renderingKey)

	if isRoot {
		return a.QuitApplication()
	}
	return nil
}
