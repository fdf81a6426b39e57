// Package work defines the Work interface and the registry mapping integer type ids to
// deserializers, so a message received off the wire can be reconstructed into the right Go
// type.
package work

import (
	"sync"

	"github.com/mwindels/galaxy/internal/buffer"
	"github.com/pkg/errors"
)

// Deserializer reconstructs a Work from a message payload.
type Deserializer func(b *buffer.Shared) (Work, error)

// Work is a serializable action.  NonCollective runs on the worker thread for ordinary
// messages; Collective runs on the communications thread while holding the collective
// communicator, for broadcasts marked collective (see SPEC_FULL.md §4.4).
type Work interface {
	// Type returns the work's registered type id.
	Type() uint32
	// Serialize returns the wire payload for this Work.
	Serialize() (*buffer.Shared, error)
	// NonCollective executes the work's non-collective action. Returning an error stops
	// processing of this message only; it does not abort the process.
	NonCollective(ctx Context) error
	// Collective executes the work's collective action, if any. isRoot is true only on
	// the process that originated the broadcast. Most Work implementations that are
	// never sent as collective broadcasts can return nil unconditionally.
	Collective(ctx Context, isRoot bool) error
}

// Context is the minimal runtime surface a Work's action needs. It is implemented by
// internal/manager.Manager; defined here to avoid a cyclic import between work and manager.
type Context interface {
	Rank() int
	Size() int
}

// Registry maps a registered name to a stable type id and a deserializer. Registration is
// idempotent: registering the same name twice returns the same id and updates the
// deserializer.
type Registry struct {
	mu     sync.RWMutex
	ids    map[string]uint32
	decode map[uint32]Deserializer
	next   uint32
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		ids:    make(map[string]uint32),
		decode: make(map[uint32]Deserializer),
	}
}

// Register associates name with d, returning its type id. Calling Register again with the
// same name returns the same id, updating d.
func (r *Registry) Register(name string, d Deserializer) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.ids[name]
	if !ok {
		id = r.next
		r.next++
		r.ids[name] = id
	}
	r.decode[id] = d
	return id
}

// Lookup returns the deserializer for a type id. A miss is a fatal condition per
// SPEC_FULL.md §7 (work-registry miss): the message manager should treat the returned error
// as unrecoverable for the message, and in the Application.Fatal path for the whole process
// if the miss happens on a broadcast every process must apply.
func (r *Registry) Lookup(id uint32) (Deserializer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.decode[id]
	if !ok {
		return nil, errors.Errorf("work: no deserializer registered for type %d", id)
	}
	return d, nil
}
