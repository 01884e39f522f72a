// Package metrics defines prometheus metric types and provides convenience
// methods to add accounting to the session statistics engine.
//
// When instrumenting a new code path, these are helpful values to track:
//   - things flowing into or out of the engine: sessions opened, records read.
//   - the success or error status of any of the above.
//   - the distribution of processing latency.
package metrics

import (
	"fmt"
	"log"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionCount counts sessions parsed, by outcome ("ok", "error").
	//
	// Provides metrics:
	//   owstats_session_count{status}
	SessionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "owstats_session_count",
			Help: "Number of sessions parsed, by outcome.",
		},
		[]string{"status"},
	)

	// ParseErrorCount counts parse failures by the owerrors kind that caused
	// them.
	//
	// Provides metrics:
	//   owstats_parse_error_count{kind}
	ParseErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "owstats_parse_error_count",
			Help: "Number of parse errors, by kind.",
		},
		[]string{"kind"},
	)

	// ParseDuration records the wall time spent inside Driver.Parse.
	//
	// Provides metrics:
	//   owstats_parse_duration_seconds
	ParseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "owstats_parse_duration_seconds",
			Help:    "Time spent parsing one session file range.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)

	// RecordsProcessed counts records read from the session file.
	//
	// Provides metrics:
	//   owstats_records_processed_total
	RecordsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "owstats_records_processed_total",
			Help: "Number of data records read from session files.",
		},
	)

	// WindowExtensionCount counts dynamic arena growth events of the packet
	// window ("packet") and the bucket histogram ("bucket").
	//
	// Provides metrics:
	//   owstats_window_extension_count{arena}
	WindowExtensionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "owstats_window_extension_count",
			Help: "Number of times an arena (packet window or bucket) grew.",
		},
		[]string{"arena"},
	)

	// PanicCount counts the number of panics recovered while parsing.
	//
	// Provides metrics:
	//   owstats_panic_count{source}
	PanicCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "owstats_panic_count",
			Help: "Number of panics encountered and recovered.",
		},
		[]string{"source"},
	)
)

// CountPanics updates the PanicCount metric, then re-panics.
// It must be wrapped in a defer.
func CountPanics(r interface{}, tag string) {
	if r != nil {
		err, ok := r.(error)
		if !ok {
			err = fmt.Errorf("pkg: %v", r)
		}
		log.Println("recovering from panic:", err)
		PanicCount.WithLabelValues(tag).Inc()
		debug.PrintStack()
		panic(r)
	}
}

// PanicToErr captures a panic and converts it to an error instead of letting
// it propagate, so that callers can surface InternalInvariantViolation
// conditions as ordinary errors at the Driver.Parse boundary. Use with care:
// a panic here means an invariant was violated and accumulated state may be
// inconsistent; the caller should treat the returned error as fatal for this
// Driver instance.
// It must be wrapped in a defer:
//
//	func (d *Driver) Parse() (err error) {
//	    defer func() { err = metrics.PanicToErr(err, recover(), "driver.Parse") }()
//	    ...
//	}
func PanicToErr(prior error, r interface{}, tag string) error {
	if r == nil {
		return prior
	}
	PanicCount.WithLabelValues(tag).Inc()
	if err, ok := r.(error); ok {
		return fmt.Errorf("%s: %w", tag, err)
	}
	return fmt.Errorf("%s: %v", tag, r)
}
