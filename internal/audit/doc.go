// Package audit evaluates captured page snapshots against performance best
// practices.
//
// # Purpose
//
// Each check is an Audit: a static descriptor (Meta) plus a Run method that
// turns a snapshot's artifacts into a model.AuditResult. Audits never gather
// data themselves; they read what the gatherers recorded.
//
// # Registry
//
// The Registry holds the audits to run, in order. It checks each audit's
// required artifacts, runs the audit, and tags the outcome with a sequence
// number from the guid package.
//
// # Results
//
// Missing or failed gatherer artifacts are reported as results with
// RawValue NotRun and a debug string, never as Go errors. A Go error from Run
// means the snapshot could not be evaluated at all.
//
// # Usage
//
//	registry := audit.NewRegistry()
//	outcomes, err := registry.Run(ctx, artifacts)
//
// # Built-in audits
//
//   - uses-passive-event-listeners: first-party scroll-blocking listeners on
//     window, document or body must be passive unless they call
//     preventDefault().
package audit
