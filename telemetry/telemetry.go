// Package telemetry provides hierarchical timing collection for
// operations. Timers nest in a tree, so a report shows where a run spent
// its time without changing any function signatures: the collector
// travels through context and is a no-op unless one was attached.
//
// Example usage:
//
//	collector := telemetry.NewTimingCollector()
//	ctx := telemetry.WithCollector(context.Background(), collector)
//
//	timer := telemetry.FromContext(ctx).Start("Load vestings")
//	defer timer.End()
//
//	child := timer.Child("Parse CSV")
//	// ... work ...
//	child.End()
//
//	collector.Report(os.Stderr, nil)
package telemetry

import (
	"context"
	"io"

	"github.com/mkuiper/rsutax/output"
)

type contextKey struct{}

var collectorKey = contextKey{}

// Collector collects telemetry data.
type Collector interface {
	// Start begins timing an operation. End the returned Timer when the
	// operation completes.
	Start(name string) Timer

	// Report writes the collected telemetry. A nil styles writes plain
	// text.
	Report(w io.Writer, styles *output.Styles)
}

// Timer tracks a single operation's timing. Timers nest via Child.
type Timer interface {
	// End stops the timer and records the duration.
	End()

	// Child creates a nested timer under this one.
	Child(name string) Timer
}

// WithCollector attaches a collector to a context.
func WithCollector(ctx context.Context, collector Collector) context.Context {
	return context.WithValue(ctx, collectorKey, collector)
}

// FromContext extracts the collector from a context. When none is
// present it returns a collector that does nothing, never nil.
func FromContext(ctx context.Context) Collector {
	if collector, ok := ctx.Value(collectorKey).(Collector); ok {
		return collector
	}
	return noOpCollector{}
}
