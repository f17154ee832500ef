// Package trace records the logical decisions a deployment makes while
// resolving a graph — which task ran, which was skipped and why, which
// was reused from cache — independent of wall-clock timing or goroutine
// scheduling. Adapted from the teacher's internal/trace package: the
// same Sink/Recorder/SafeRecord shape, with the artifact-restoration and
// canonical-JSON-hash machinery dropped (there is no file-cache or build
// artifact concept in this domain) and a logrus-backed Sink added in its
// place for ambient structured logging.
package trace

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// EventKind is a stable, logical discriminator for Event. The
// string values are part of the trace's canonical ordering; don't rename.
type EventKind string

const (
	EventStarted   EventKind = "TaskStarted"
	EventCompleted EventKind = "TaskCompleted"
	EventReused    EventKind = "TaskReused"
	EventFailed    EventKind = "TaskFailed"
	EventSkipped   EventKind = "TaskSkipped"
)

func kindOrder(k EventKind) int {
	switch k {
	case EventStarted:
		return 10
	case EventReused:
		return 20
	case EventCompleted:
		return 30
	case EventFailed:
		return 40
	case EventSkipped:
		return 50
	default:
		return 1000
	}
}

// Event is a single logical decision made while resolving a graph.
type Event struct {
	Kind   EventKind
	TaskID string
	Reason string
	Cause  string
}

// Sink receives events as they're recorded. Record must never panic or
// return an error — SafeRecord guarantees that even if an implementation
// misbehaves.
type Sink interface {
	Record(event Event)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Record(Event) {}

// SafeRecord records an event through s, recovering from (and silently
// discarding) any panic a misbehaving Sink implementation raises.
func SafeRecord(s Sink, event Event) {
	if s == nil {
		return
	}
	defer func() { _ = recover() }()
	s.Record(event)
}

// Recorder is a concurrency-safe in-memory event collector.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Record(event Event) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Snapshot returns a deterministically ordered, point-in-time copy of
// every recorded event: sorted by (TaskID, kind, Reason, Cause), so the
// snapshot is independent of recording order under concurrent dispatch.
func (r *Recorder) Snapshot() []Event {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TaskID != b.TaskID {
			return a.TaskID < b.TaskID
		}
		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		if a.Reason != b.Reason {
			return a.Reason < b.Reason
		}
		return a.Cause < b.Cause
	})
	return out
}

// LogrusSink forwards every event to a logrus.FieldLogger as a single
// structured log line, at a level chosen by the event kind.
type LogrusSink struct {
	Logger logrus.FieldLogger
}

// NewLogrusSink returns a Sink backed by logger. A nil logger falls back
// to logrus.StandardLogger().
func NewLogrusSink(logger logrus.FieldLogger) *LogrusSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogrusSink{Logger: logger}
}

func (s *LogrusSink) Record(event Event) {
	entry := s.Logger.WithFields(logrus.Fields{
		"task":   event.TaskID,
		"kind":   string(event.Kind),
		"reason": event.Reason,
	})
	if event.Cause != "" {
		entry = entry.WithField("cause", event.Cause)
	}
	switch event.Kind {
	case EventFailed:
		entry.Error("task failed")
	case EventSkipped:
		entry.Warn("task skipped")
	default:
		entry.Debug("task event")
	}
}
