// Package model defines the core data structures used throughout passivescan.
//
// This package contains the following main types:
//   - Artifacts: A captured page snapshot as produced by the gatherers
//   - ListenerRecord: One observed event-listener registration
//   - AuditResult: The outcome of evaluating one audit against a snapshot
//   - Report: All audit outcomes for one snapshot plus a Summary
//
// Models live in their own package so that the audit, pipeline, report and
// database packages can share them without import cycles.
//
// The models serialize to JSON using the gatherer's field names so that a
// stored report can be read back by other tools.
package model
