// Package metrics provides the observability hooks for timetracker.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no call site needs a nil check:
//
//	t := tracker.New(tracker.Options{Recorder: metrics.NoopRecorder{}})
//
// When the metrics server is enabled the daemon swaps in a PrometheusRecorder
// registered on its own registry and exposes it through HTTPHandler.
package metrics
