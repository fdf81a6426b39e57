// Package keyed implements the per-process replicated object registry: a map from Key to
// local object, kept consistent across every process by a commit-broadcast protocol, per
// SPEC_FULL.md §4.6. Grounded directly on
// original_source/src/framework/KeyedObject.cpp: Key-prefix + class bytes + trailing
// sentinel wire form, and the CollectiveAction that deserializes on non-root processes only.
package keyed

import (
	"sync"
	"sync/atomic"

	"github.com/mwindels/galaxy/internal/wire"
	"github.com/pkg/errors"
)

// Key is the opaque cross-process identifier for a replicated object.
type Key int64

// sentinel is the trailing value every keyed-object wire form ends with; the original used
// the literal 12345, widened here to a uint16 per the wire-format table in SPEC_FULL.md §6.
const sentinel uint16 = 12345

// Object is a polymorphic replicated object. SerialSize/Serialize/Deserialize must advance
// by the same number of bytes in the same order (SPEC_FULL.md §4.6's serialization
// contract); LocalCommit runs after every commit is applied locally and may allocate
// resources bound to the new state.
type Object interface {
	ClassType() string
	SerialSize() int
	Serialize(buf []byte) []byte
	Deserialize(buf []byte) ([]byte, error)
	LocalCommit() error
}

// Factory constructs a new, zero-value Object of a registered class, ready to be
// deserialized into.
type Factory func() Object

// Registry is the per-process map from Key to local replica, plus the class factories
// needed to materialize a replica the first time a Key is seen.
type Registry struct {
	mu        sync.RWMutex
	objects   map[Key]Object
	factories map[string]Factory
	nextKey   int64 // master-only: always-increasing counter
	rank      int
}

// NewRegistry returns an empty Registry for the given process rank.
func NewRegistry(rank int) *Registry {
	return &Registry{
		objects:   make(map[Key]Object),
		factories: make(map[string]Factory),
		rank:      rank,
	}
}

// RegisterClass associates a class name with a Factory. Idempotent: registering the same
// name again replaces the factory.
func (r *Registry) RegisterClass(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// NewKey allocates the next Key. Only the master process should call this; the allocated
// Key is embedded in the commit broadcast that creates remote replicas.
func (r *Registry) NewKey() Key {
	return Key(atomic.AddInt64(&r.nextKey, 1))
}

// Insert inserts obj under key, used both for the master-side CommitObject and for a
// non-master process's first sight of a Key during commit.
func (r *Registry) Insert(key Key, obj Object) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[key] = obj
}

// Get returns the local replica for key, or nil if it is not present.
func (r *Registry) Get(key Key) Object {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.objects[key]
}

// Drop removes the local entry for key.
func (r *Registry) Drop(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.objects, key)
}

// factory returns the registered Factory for className, or an error if none was registered
// (SPEC_FULL.md §7: work-registry / class misses are fatal, no recovery is attempted).
func (r *Registry) factory(className string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[className]
	if !ok {
		return nil, errors.Errorf("keyed: no factory registered for class %q", className)
	}
	return f, nil
}

// SerializeObject writes obj's full wire form: {Key, class-specific bytes, sentinel}.
func SerializeObject(key Key, obj Object) []byte {
	buf := make([]byte, 0, 8+obj.SerialSize()+2)
	buf = wire.PutInt64(buf, int64(key))
	buf = obj.Serialize(buf)
	buf = wire.PutUint16(buf, sentinel)
	return buf
}

// ApplyCommit applies an incoming CommitMsg payload to the local registry, following
// KeyedObject::CollectiveAction: on the root (isRoot==true) the replica already has the
// committed state locally and is not re-deserialized; on every other process the payload is
// deserialized into the (possibly newly-created) replica.  LocalCommit always runs, on every
// process including the root, matching the original's `return kop->local_commit(c)`.
func (r *Registry) ApplyCommit(className string, buf []byte, isRoot bool) error {
	keyVal, rest, err := wire.GetInt64(buf)
	if err != nil {
		return errors.Wrap(err, "keyed: reading key")
	}
	key := Key(keyVal)

	obj := r.Get(key)
	if obj == nil {
		f, err := r.factory(className)
		if err != nil {
			return err
		}
		obj = f()
		r.Insert(key, obj)
	}

	if !isRoot {
		rest, err = obj.Deserialize(rest)
		if err != nil {
			return errors.Wrapf(err, "keyed: deserializing key %d", key)
		}
	} else {
		rest = rest[obj.SerialSize():]
	}

	got, rest, err := wire.GetUint16(rest)
	if err != nil {
		return errors.Wrap(err, "keyed: reading sentinel")
	}
	if got != sentinel {
		return errors.Errorf("keyed: bad sentinel %d for key %d (deserialization integrity failure)", got, key)
	}
	if len(rest) != 0 {
		return errors.Errorf("keyed: %d trailing bytes after key %d", len(rest), key)
	}

	return obj.LocalCommit()
}
