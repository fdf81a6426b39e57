// Package eventlog records per-thread timestamped events and dumps them per process+thread
// at shutdown, the way the original framework's EventTracker did (one file per rank+thread).
package eventlog

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Event marks a point in time with a label.
type Event struct {
	Time  time.Time
	Label string
}

// Tracker accumulates Events for a single goroutine/thread.  It is not safe for concurrent
// use by design: the original framework's EventTracker was per-thread with no sharing, and
// this package preserves that (see SPEC_FULL.md §5 shared-resource policy: "Event log:
// per-thread, no sharing").
type Tracker struct {
	rank   int
	thread string
	events []Event
}

// NewTracker returns a Tracker for the given rank and named thread (e.g. "comms", "worker",
// "rayq", or "pool-3").
func NewTracker(rank int, thread string) *Tracker {
	return &Tracker{rank: rank, thread: thread}
}

// Add records an event with the given label at the current time.
func (t *Tracker) Add(label string) {
	t.events = append(t.events, Event{Time: time.Now(), Label: label})
}

// IsEmpty reports whether any events have been added.
func (t *Tracker) IsEmpty() bool {
	return len(t.events) == 0
}

// runID tags every dumped file from this process so repeated local runs don't clobber one
// another's event logs.
var runID = uuid.New().String()[:8]

// DumpEvents writes the tracker's events to "gxy_events_<rank>_<thread>_<runID>" in dir,
// mirroring the original's "gxy_events_R_T" naming with a run id suffix appended.
func (t *Tracker) DumpEvents(dir string) error {
	if t.IsEmpty() {
		return nil
	}

	path := fmt.Sprintf("%s/gxy_events_%d_%s_%s", dir, t.rank, t.thread, runID)
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "eventlog: creating dump file %s", path)
	}
	defer f.Close()

	for _, e := range t.events {
		if _, err := fmt.Fprintf(f, "%s %s\n", e.Time.Format(time.RFC3339Nano), e.Label); err != nil {
			return errors.Wrapf(err, "eventlog: writing dump file %s", path)
		}
	}

	logrus.WithFields(logrus.Fields{"rank": t.rank, "thread": t.thread, "events": len(t.events)}).Debug("event log dumped")
	return nil
}

// Registry holds every Tracker created by a process so the application can dump them all at
// shutdown without each goroutine needing a direct reference to its sibling.
type Registry struct {
	mu       sync.Mutex
	trackers []*Tracker
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// New creates a Tracker for the given rank and thread name and registers it for later dump.
func (r *Registry) New(rank int, thread string) *Tracker {
	t := NewTracker(rank, thread)
	r.mu.Lock()
	r.trackers = append(r.trackers, t)
	r.mu.Unlock()
	return t
}

// DumpAll dumps every registered tracker's events to dir, returning the first error
// encountered (after attempting every tracker).
func (r *Registry) DumpAll(dir string) error {
	r.mu.Lock()
	trackers := append([]*Tracker(nil), r.trackers...)
	r.mu.Unlock()

	var first error
	for _, t := range trackers {
		if err := t.DumpEvents(dir); err != nil && first == nil {
			first = err
		}
	}
	return first
}
