// Package manager implements the per-process message manager: the comms goroutine that
// drains the transport and the outgoing queue, and the worker goroutine that runs
// non-collective actions, per SPEC_FULL.md §4.4. Grounded directly on
// original_source/src/framework/MessageManager.{h,cpp}'s messageThread/workThread split,
// with MPI's Isend/Test-based in-flight bookkeeping replaced by Go's synchronous
// transport.Communicator.Send (SPEC_FULL.md §4.10: no teacher or pack transport needs
// async-send polling, since net.Conn.Write already blocks until the kernel accepts the
// bytes).
package manager

import (
	"github.com/mwindels/galaxy/internal/buffer"
	"github.com/mwindels/galaxy/internal/message"
	"github.com/mwindels/galaxy/internal/queue"
	"github.com/mwindels/galaxy/internal/transport"
	"github.com/mwindels/galaxy/internal/work"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// outboundEnvelope pairs a queued message with its point-to-point destination; dest is
// unused for broadcasts, whose destinations come from transport.BroadcastChildren instead.
type outboundEnvelope struct {
	msg  *message.Message
	dest int
}

// Manager owns a process's incoming and outgoing message queues and drives the comms and
// worker goroutines over a transport.Communicator. It implements work.Context so a Work's
// actions can read this process's rank and size.
type Manager struct {
	comm transport.Communicator

	incoming *queue.Queue[message.Message]
	outgoing *queue.Queue[outboundEnvelope]

	// collectiveFn runs a received or self-originated collective broadcast's action. It is
	// supplied by internal/app, which knows how to turn a payload back into a work.Work via
	// its work registry and call its Collective method.
	collectiveFn func(h message.Header, payload []byte, isRoot bool) error

	group *errgroup.Group
	quit  chan struct{}

	log *logrus.Entry
}

// New returns a Manager over comm, with collectiveFn invoked for every collective broadcast
// this process must act on (see SPEC_FULL.md §4.4's "the action ... runs on the comms
// thread"). Decoding a Work from a message's payload is internal/app's job, not the
// manager's: it's done inside collectiveFn and the onWork callback passed to Start.
func New(comm transport.Communicator, collectiveFn func(message.Header, []byte, bool) error) *Manager {
	return &Manager{
		comm:         comm,
		incoming:     queue.New[message.Message](),
		outgoing:     queue.New[outboundEnvelope](),
		collectiveFn: collectiveFn,
		quit:         make(chan struct{}),
		log:          logrus.WithField("rank", comm.Rank()),
	}
}

// Rank implements work.Context.
func (m *Manager) Rank() int { return m.comm.Rank() }

// Size implements work.Context.
func (m *Manager) Size() int { return m.comm.Size() }

// Start launches the comms and worker goroutines under a shared errgroup.Group, so Stop can
// jointly tear both down and surface whichever one failed first, the way the teacher's
// master/pool used x/sync for a bounded, jointly-managed goroutine set. onWork runs a Work's
// NonCollective action for every message the worker goroutine dequeues; it is supplied by
// internal/app, which looks the Work up in its work registry by the message's Type.
func (m *Manager) Start(onWork func(h message.Header, payload []byte) error) {
	var group errgroup.Group
	m.group = &group
	m.group.Go(func() error {
		m.commsLoop()
		return nil
	})
	m.group.Go(func() error {
		m.workLoop(onWork)
		return nil
	})
}

// Stop drains both queues and waits for both goroutines to exit, mirroring
// MessageManager::~MessageManager's ordered shutdown (kill both queues, then join).
func (m *Manager) Stop() error {
	close(m.quit)
	m.outgoing.Kill()
	m.incoming.Kill()
	return m.group.Wait()
}

// SendWork enqueues w for delivery to dest, following MessageManager::SendWork: a message
// addressed to this process's own rank is looped directly onto the incoming queue rather
// than round-tripping through the transport.
func (m *Manager) SendWork(w work.Work, dest int) error {
	content, err := w.Serialize()
	if err != nil {
		return err
	}
	msg := message.New(int32(m.Rank()), w.Type(), false, content)
	if dest == m.Rank() {
		m.incoming.Enqueue(msg)
	} else {
		m.outgoing.Enqueue(&outboundEnvelope{msg: msg, dest: dest})
	}
	return nil
}

// BroadcastWork enqueues w as a broadcast rooted at this process, following
// MessageManager::BroadcastWork. If block is true, BroadcastWork waits for this process's
// own local action (collective or non-collective) to complete before returning, matching
// the original's blocking-broadcast semantics (SPEC_FULL.md §4.4).
func (m *Manager) BroadcastWork(w work.Work, collective bool, block bool) error {
	content, err := w.Serialize()
	if err != nil {
		return err
	}
	msg := message.NewBroadcast(int32(m.Rank()), int32(m.Rank()), w.Type(), collective, content)
	if block {
		msg.MarkBlocking()
	}
	m.outgoing.Enqueue(&outboundEnvelope{msg: msg})
	if block {
		msg.WaitLocal()
	}
	return nil
}

// commsLoop is the messageThread equivalent: it alternates between draining inbound frames
// off the transport and inbound entries off the outgoing queue, exporting broadcasts to
// this process's broadcast-tree children and running collective actions inline, exactly as
// MessageManager::check_mpi/check_outgoing do. Like the original's MPI_Iprobe-driven loop,
// this is an intentional busy-poll: every iteration checks both sources without blocking on
// either.
func (m *Manager) commsLoop() {
	for {
		select {
		case <-m.quit:
			for {
				out, ok := m.outgoing.TryDequeue()
				if !ok {
					return
				}
				m.handleOutgoing(out)
			}
		case frame, ok := <-m.comm.Recv():
			if !ok {
				return
			}
			m.handleInboundFrame(frame)
		case frame, ok := <-m.comm.RecvCollective():
			if !ok {
				return
			}
			m.handleCollectiveFrame(frame)
		default:
		}

		if out, ok := m.outgoing.TryDequeue(); ok {
			m.handleOutgoing(out)
		} else if !m.outgoing.Running() {
			return
		}
	}
}

// handleInboundFrame enqueues ordinary point-to-point or non-collective broadcast traffic
// for the worker goroutine, re-exporting broadcasts down this process's subtree first.
func (m *Manager) handleInboundFrame(f transport.Frame) {
	if f.Header.IsBroadcast() {
		m.forward(f.Header, f.Payload)
	}
	m.incoming.Enqueue(&message.Message{Header: f.Header, Content: buffer.Wrap(f.Payload)})
}

// handleCollectiveFrame forwards a collective broadcast down the tree and then runs its
// action inline on the comms goroutine, matching check_mpi's
// "Export, then if collective, CollectiveAction directly".
func (m *Manager) handleCollectiveFrame(f transport.Frame) {
	m.forward(f.Header, f.Payload)

	isRoot := int32(m.Rank()) == f.Header.BroadcastRoot
	if err := m.collectiveFn(f.Header, f.Payload, isRoot); err != nil {
		m.log.WithError(err).Error("manager: collective action failed")
	}
}

// handleOutgoing is the check_outgoing equivalent: a message pulled off the outgoing queue
// is exported to the transport (if it needs to leave this process at all) and, for
// broadcasts, its local action is run or queued.
func (m *Manager) handleOutgoing(out *outboundEnvelope) {
	msg := out.msg

	if msg.Header.IsBroadcast() {
		m.forward(msg.Header, msg.Bytes())

		if msg.Header.Collective {
			isRoot := int32(m.Rank()) == msg.Header.BroadcastRoot
			if err := m.collectiveFn(msg.Header, msg.Bytes(), isRoot); err != nil {
				m.log.WithError(err).Error("manager: collective action failed")
			}
			if msg.IsBlocking() {
				msg.SignalDone()
			}
			return
		}

		m.incoming.Enqueue(msg)
		return
	}

	if out.dest != m.Rank() {
		if err := m.comm.Send(out.dest, msg.Header, msg.Bytes()); err != nil {
			m.log.WithError(err).Error("manager: send failed")
		}
	}
}

// forward exports a broadcast down this process's broadcast tree (transport's
// `2d+1,2d+2` relative-position rule via BroadcastChildren), matching
// MessageManager::Export's two-Isend fan-out.
func (m *Manager) forward(h message.Header, payload []byte) {
	for _, child := range m.comm.BroadcastChildren(int(h.BroadcastRoot)) {
		if err := m.comm.Send(child, h, payload); err != nil {
			m.log.WithError(err).Error("manager: broadcast forward failed")
		}
	}
}

// workLoop is the workThread equivalent: it dequeues incoming messages and runs their
// non-collective action, signaling a blocking sender or root once done, per the original's
// "its possible someone is waiting for this message" rule.
func (m *Manager) workLoop(onWork func(h message.Header, payload []byte) error) {
	for {
		msg, ok := m.incoming.Dequeue()
		if !ok {
			return
		}

		if err := onWork(msg.Header, msg.Bytes()); err != nil {
			m.log.WithError(err).Error("manager: work action failed")
		}

		if msg.IsBlocking() && (int(msg.Header.Sender) == m.Rank() || int(msg.Header.BroadcastRoot) == m.Rank()) {
			msg.SignalDone()
		}
	}
}
