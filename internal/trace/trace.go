// Package trace implements the core's scoped profiling events: a
// "start/stop around a named region" hook with free-form structured
// fields, delegated to a possibly-null Collector. Generalized from the
// teacher's metrics.go stack-based duration tracker (push/pop around
// time.Since), but exposed as an explicit Span value instead of an
// implicit solver-wide stack, since the core has multiple concurrent
// fan-out goroutines rather than one single-threaded solve loop.
package trace

import (
	"time"
)

// Collector receives named events with structured fields. Implementations
// must be safe for concurrent use; the installer emits events from
// multiple goroutines during fan-out.
type Collector interface {
	Event(name string, fields map[string]interface{})
}

// Discard is a Collector that does nothing, used when no profiling
// sink is configured and in tests.
var Discard Collector = discard{}

type discard struct{}

func (discard) Event(string, map[string]interface{}) {}

// Span tracks one scoped region. Naming convention is
// "resource.operation", e.g. "install.total", "runtime.ensure".
type Span struct {
	collector Collector
	name      string
	fields    map[string]interface{}
	started   time.Time
	stopped   bool
}

// Start begins a new span, emitting a "<name>.start" event immediately.
// If c is nil, the span is a no-op. Callers must defer Stop so the
// "<name>.stop" event (and its duration) fires on every exit path.
func Start(c Collector, name string, fields map[string]interface{}) *Span {
	if c == nil {
		c = Discard
	}
	c.Event(name+".start", fields)
	return &Span{collector: c, name: name, fields: fields, started: time.Now()}
}

// Stop emits the "<name>.stop" event with a "duration_ms" field added to
// the span's original fields. Safe to call multiple times; only the
// first call emits.
func (s *Span) Stop() {
	if s == nil || s.stopped {
		return
	}
	s.stopped = true
	fields := make(map[string]interface{}, len(s.fields)+1)
	for k, v := range s.fields {
		fields[k] = v
	}
	fields["duration_ms"] = time.Since(s.started).Milliseconds()
	s.collector.Event(s.name+".stop", fields)
}
