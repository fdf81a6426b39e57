package app

import (
	"github.com/mwindels/galaxy/internal/buffer"
	"github.com/mwindels/galaxy/internal/metrics"
	"github.com/mwindels/galaxy/internal/wire"
	"github.com/mwindels/galaxy/internal/work"
	"github.com/pkg/errors"
)

// quitMsg is the collective broadcast that stops every process's message processing,
// grounded on Application::QuitMsg. It carries no payload.
type quitMsg struct{}

func decodeQuitMsg(*buffer.Shared) (work.Work, error) { return &quitMsg{}, nil }

func (*quitMsg) Type() uint32                                { return typeQuit }
func (*quitMsg) Serialize() (*buffer.Shared, error)          { return buffer.New(0), nil }
func (*quitMsg) NonCollective(work.Context) error            { return nil }
func (*quitMsg) Collective(work.Context, bool) error         { return nil }

// syncMsg is the collective broadcast that acts as a barrier, grounded on
// Application::SyncMsg. The barrier effect comes entirely from BroadcastWork's blocking
// semantics (the sender's WaitLocal doesn't return until this process's own local action
// has run); the action itself does nothing.
type syncMsg struct{}

func decodeSyncMsg(*buffer.Shared) (work.Work, error) { return &syncMsg{}, nil }

func (*syncMsg) Type() uint32                        { return typeSync }
func (*syncMsg) Serialize() (*buffer.Shared, error)  { return buffer.New(0), nil }
func (*syncMsg) NonCollective(work.Context) error    { return nil }
func (*syncMsg) Collective(work.Context, bool) error { return nil }

// printMsg carries a string to be printed on whichever process receives it, grounded on
// Application::PrintMsg. Unlike Quit/Sync it is point-to-point and non-collective.
type printMsg struct {
	text string
	app  *Application
}

func decodePrintMsg(b *buffer.Shared) (work.Work, error) {
	if b == nil {
		return &printMsg{}, nil
	}
	text, _, err := wire.GetBytes(b.Get())
	if err != nil {
		return nil, err
	}
	return &printMsg{text: string(text)}, nil
}

func (*printMsg) Type() uint32 { return typePrint }

func (m *printMsg) Serialize() (*buffer.Shared, error) {
	return buffer.Wrap(wire.PutBytes(nil, []byte(m.text))), nil
}

func (m *printMsg) NonCollective(ctx work.Context) error {
	if a, ok := ctx.(*Application); ok {
		a.Print(m.text)
	}
	return nil
}

func (*printMsg) Collective(work.Context, bool) error { return nil }

// commitMsg is the collective broadcast that replicates one keyed object's committed state
// to every process, grounded on KeyedObject::Commit/CollectiveAction. payload is the
// object's full wire form (keyed.SerializeObject's {key, class bytes, sentinel}); className
// picks the registered keyed.Factory a non-root process materializes a fresh replica from on
// first sight of the key.
type commitMsg struct {
	className string
	payload   []byte
}

func decodeCommitMsg(b *buffer.Shared) (work.Work, error) {
	if b == nil {
		return &commitMsg{}, nil
	}
	className, rest, err := wire.GetBytes(b.Get())
	if err != nil {
		return nil, err
	}
	return &commitMsg{className: string(className), payload: rest}, nil
}

func (*commitMsg) Type() uint32 { return typeCommit }

func (m *commitMsg) Serialize() (*buffer.Shared, error) {
	buf := wire.PutBytes(nil, []byte(m.className))
	buf = append(buf, m.payload...)
	return buffer.Wrap(buf), nil
}

func (*commitMsg) NonCollective(work.Context) error { return nil }

func (m *commitMsg) Collective(ctx work.Context, isRoot bool) error {
	a, ok := ctx.(*Application)
	if !ok {
		return errors.New("app: commitMsg requires an *Application context")
	}
	if err := a.objects.ApplyCommit(m.className, m.payload, isRoot); err != nil {
		return err
	}
	metrics.CommitsApplied.WithLabelValues(m.className).Inc()
	return nil
}
