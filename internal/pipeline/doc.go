// Package pipeline runs snapshots through a fixed sequence of steps:
// loading the artifacts, breaking listeners down by origin, running the
// audits and optionally storing the report.
//
// Each step receives the report built so far and adds to it. A pipeline
// handles one snapshot; BatchProcessor fans many snapshots out over a
// bounded number of goroutines using errgroup.
package pipeline
