// Package app wires together transport, the keyed-object registry, the work registry, the
// message manager, and the thread pool into a single running process, and exposes the small
// set of framework-level operations every entrypoint needs (start, quit, sync, logging).
// Grounded on original_source/src/framework/Application.{h,cpp}'s public surface, adapted
// from pthread/MPI primitives to goroutines, channels, and internal/manager.
package app

import (
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/mwindels/galaxy/internal/buffer"
	"github.com/mwindels/galaxy/internal/config"
	"github.com/mwindels/galaxy/internal/eventlog"
	"github.com/mwindels/galaxy/internal/keyed"
	"github.com/mwindels/galaxy/internal/manager"
	"github.com/mwindels/galaxy/internal/message"
	"github.com/mwindels/galaxy/internal/metrics"
	"github.com/mwindels/galaxy/internal/threadpool"
	"github.com/mwindels/galaxy/internal/transport"
	"github.com/mwindels/galaxy/internal/work"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	typeQuit uint32 = iota
	typeSync
	typePrint
	typeCommit
	firstUserType
)

// Application is one process's handle onto the running framework: its rank and size, its
// keyed-object registry, its work registry and manager, and a worker thread pool for
// CPU-bound actions (SPEC_FULL.md §4.3's "primary" and "secondary" priority buckets).
type Application struct {
	cfg config.Config

	comm     transport.Communicator
	objects  *keyed.Registry
	works    *work.Registry
	mgr      *manager.Manager
	pool     *threadpool.Pool
	events   *eventlog.Registry

	mu         sync.Mutex
	log        []string
	done       chan struct{}
	quitErr    error
	metricsSrv *http.Server
}

// New constructs an Application over comm, ready for Start. Every built-in Work (Quit,
// Sync, Print, Commit) is registered here so they always have stable, low-numbered type ids shared
// by every process in the world.
func New(cfg config.Config, comm transport.Communicator) *Application {
	a := &Application{
		cfg:     cfg,
		comm:    comm,
		objects: keyed.NewRegistry(comm.Rank()),
		works:   work.NewRegistry(),
		pool:    threadpool.New(cfg.NThreads),
		events:  eventlog.NewRegistry(),
		done:    make(chan struct{}),
	}

	a.works.Register("gxy.Quit", decodeQuitMsg)
	a.works.Register("gxy.Sync", decodeSyncMsg)
	a.works.Register("gxy.Print", decodePrintMsg)
	a.works.Register("gxy.Commit", decodeCommitMsg)

	a.mgr = manager.New(comm, a.runCollective)
	return a
}

// Rank returns this process's rank in the world.
func (a *Application) Rank() int { return a.comm.Rank() }

// Size returns the world size.
func (a *Application) Size() int { return a.comm.Size() }

// Objects returns the keyed-object registry, for registering scene classes before Start.
func (a *Application) Objects() *keyed.Registry { return a.objects }

// Works returns the work registry, for registering domain Work classes before Start.
func (a *Application) Works() *work.Registry { return a.works }

// Pool returns the worker thread pool, for submitting CPU-bound tasks such as ray packet
// tracing (SPEC_FULL.md §4.3).
func (a *Application) Pool() *threadpool.Pool { return a.pool }

// Events returns the per-process event-log registry.
func (a *Application) Events() *eventlog.Registry { return a.events }

// Start launches the comms and worker goroutines, following Application::Start /
// MessageManager::Start: once called, SendWork/BroadcastWork may be used and every
// non-collective message dequeued by the worker goroutine is decoded via the work
// registry and run through NonCollective, matching workThread's
// "Deserialize then Action" sequence.
func (a *Application) Start() {
	a.mgr.Start(a.runNonCollective)
}

// runNonCollective is the manager's worker-goroutine callback: look the message's Work type
// up in the registry, decode its payload, and run its NonCollective action with this
// Application as the work.Context.
func (a *Application) runNonCollective(h message.Header, payload []byte) error {
	d, err := a.works.Lookup(h.Type)
	if err != nil {
		return err
	}
	w, err := d(buffer.Wrap(payload))
	if err != nil {
		return err
	}
	return w.NonCollective(a)
}

// SendWork ships w to a single destination rank, looping back locally if dest is this
// process's own rank (MessageManager::SendWork).
func (a *Application) SendWork(w work.Work, dest int) error {
	return a.mgr.SendWork(w, dest)
}

// BroadcastWork ships w to every process rooted at this one (MessageManager::BroadcastWork).
func (a *Application) BroadcastWork(w work.Work, collective bool, block bool) error {
	return a.mgr.BroadcastWork(w, collective, block)
}

// CommitObject inserts obj into the local keyed registry under key and broadcasts it to
// every other process as a collective, blocking Commit, following
// KeyedObject::Commit/CollectiveAction (SPEC_FULL.md §4.6). obj.LocalCommit runs exactly
// once, on every process including this one, as part of the broadcast's collective action
// rather than being called here directly.
func (a *Application) CommitObject(key keyed.Key, obj keyed.Object) error {
	a.objects.Insert(key, obj)
	payload := keyed.SerializeObject(key, obj)
	return a.BroadcastWork(&commitMsg{className: obj.ClassType(), payload: payload}, true, true)
}

// runCollective is the manager's collectiveFn: it looks w up by the header's Type, rebuilds
// it from the payload, and runs its Collective action. Quit and Sync are handled here
// directly since neither carries a payload worth round-tripping through work.Registry.
func (a *Application) runCollective(h message.Header, payload []byte, isRoot bool) error {
	switch h.Type {
	case typeQuit:
		a.finish(nil)
		return nil
	case typeSync:
		return nil // the barrier effect comes from blocking BroadcastWork itself
	}

	d, err := a.works.Lookup(h.Type)
	if err != nil {
		return err
	}
	w, err := d(buffer.Wrap(payload))
	if err != nil {
		return err
	}
	return w.Collective(a, isRoot)
}

// AllReduceSum performs a collective sum-reduction across every process, exposed directly
// on Application because work.Context's minimal Rank/Size surface doesn't reach the
// transport: a Work whose Collective action needs the primitive (the quiescence protocol's
// completion check, SPEC_FULL.md §4.9) type-asserts its ctx to *Application and calls this.
func (a *Application) AllReduceSum(local []float64) ([]float64, error) {
	return a.comm.AllReduceSum(local)
}

// ServeMetrics starts the optional Prometheus /metrics endpoint on addr (SPEC_FULL.md §2's
// metrics component); it is never started automatically since nothing in the framework
// requires it, matching spec.md's treatment of observability surfaces as out-of-scope for
// the core but available to an entrypoint that wants one.
func (a *Application) ServeMetrics(addr string) error {
	srv, err := metrics.Serve(addr)
	if err != nil {
		return errors.Wrap(err, "app: starting metrics server")
	}
	a.metricsSrv = srv
	return nil
}

// QuitApplication broadcasts a collective Quit to every process, following
// Application::QuitApplication. It does not block for the broadcast to complete locally;
// callers that need to know the process has actually stopped should select on Done().
func (a *Application) QuitApplication() error {
	return a.BroadcastWork(&quitMsg{}, true, false)
}

// SyncApplication broadcasts a collective Sync and blocks until this process's own local
// action has completed (Application::SyncApplication). It does not wait for the other
// processes to reach the sync.
func (a *Application) SyncApplication() error {
	return a.BroadcastWork(&syncMsg{}, true, true)
}

// finish marks the application done and releases every Wait() caller, idempotent.
func (a *Application) finish(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	select {
	case <-a.done:
		return
	default:
	}
	a.quitErr = err
	close(a.done)
}

// Done returns a channel closed once QuitApplication's broadcast has been locally applied.
func (a *Application) Done() <-chan struct{} { return a.done }

// Wait blocks until Done() closes and returns the error passed to Fatal, if any.
func (a *Application) Wait() error {
	<-a.done
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.quitErr
}

// Running reports whether neither Fatal nor QuitApplication has yet been locally applied.
func (a *Application) Running() bool {
	select {
	case <-a.done:
		return false
	default:
		return true
	}
}

// Fatal logs err and marks the application done with it, so Wait returns it; it does not
// stop the manager's goroutines itself (Shutdown does that). It is the Go equivalent of
// the original's "work-registry miss is unrecoverable" policy (SPEC_FULL.md §7): callers
// that hit an unrecoverable condition call this instead of trying to continue.
func (a *Application) Fatal(err error) {
	a.Log(err.Error())
	a.finish(err)
}

// Print logs msg at info level tagged with this process's rank, the Go equivalent of
// Application::Print's rank-prefixed stderr write.
func (a *Application) Print(msg string) {
	logrus.WithField("rank", a.Rank()).Info(msg)
}

// Log appends msg to this process's in-memory log for later DumpLog, and also emits it at
// debug level immediately.
func (a *Application) Log(msg string) {
	a.mu.Lock()
	a.log = append(a.log, msg)
	a.mu.Unlock()
	logrus.WithField("rank", a.Rank()).Debug(msg)
}

// DumpLog writes this process's accumulated log lines to "gxy_log_<rank>" in dir, mirroring
// Application::DumpLog's per-rank log file naming.
func (a *Application) DumpLog(dir string) error {
	a.mu.Lock()
	lines := append([]string(nil), a.log...)
	a.mu.Unlock()

	if len(lines) == 0 {
		return nil
	}

	path := fmt.Sprintf("%s/gxy_log_%d", dir, a.Rank())
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "app: creating log file %s", path)
	}
	defer f.Close()

	for _, l := range lines {
		if _, err := fmt.Fprintln(f, l); err != nil {
			return errors.Wrapf(err, "app: writing log file %s", path)
		}
	}
	return nil
}

// Shutdown stops the manager and thread pool and dumps this process's log and event
// trackers to dir, following Application's destructor-time cleanup ordering (stop
// accepting work before tearing down the pool it depends on).
func (a *Application) Shutdown(dir string) error {
	mgrErr := a.mgr.Stop()
	a.pool.Stop()
	if a.metricsSrv != nil {
		_ = a.metricsSrv.Close()
	}

	logErr := a.DumpLog(dir)
	eventsErr := a.events.DumpAll(dir)
	if mgrErr != nil {
		return mgrErr
	}
	if logErr != nil {
		return logErr
	}
	return eventsErr
}
