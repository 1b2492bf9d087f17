// Package observability defines the logging and metrics contracts shared by
// every component of the capture pipeline. Concrete adapters live in the
// stdout and prommetrics subpackages.
package observability

// Logger is a structured key-value logger. Fields are alternating key/value
// pairs appended to the message.
type Logger interface {
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})

	// WithFields returns a new Logger that includes the given fields in
	// every subsequent entry. Used to scope loggers per component.
	WithFields(fields map[string]interface{}) Logger
}

// Metrics collects counters and histograms. Tag maps may be nil.
type Metrics interface {
	IncrementCounter(name string, tags map[string]string)
	RecordHistogram(name string, value float64, tags map[string]string)

	// WithTags returns a Metrics instance that applies the given tags to
	// every recorded sample.
	WithTags(tags map[string]string) Metrics
}

// NopLogger discards everything. Useful as a default and in tests.
type NopLogger struct{}

func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Debug(string, ...interface{}) {}

func (n NopLogger) WithFields(map[string]interface{}) Logger { return n }

// NopMetrics discards all samples.
type NopMetrics struct{}

func (NopMetrics) IncrementCounter(string, map[string]string)         {}
func (NopMetrics) RecordHistogram(string, float64, map[string]string) {}

func (n NopMetrics) WithTags(map[string]string) Metrics { return n }
