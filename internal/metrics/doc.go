// Package metrics records build and publish timings.
//
// Components receive a Recorder and default to NoopRecorder, so no caller has
// to check whether metrics are configured. The Prometheus implementation is
// exported either as a textfile after each run (for node_exporter's textfile
// collector) or over HTTP by the scheduler.
package metrics
