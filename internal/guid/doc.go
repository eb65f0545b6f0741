// Package guid allocates identifiers used to tag audit runs and outcomes.
//
// Two modes are provided:
//   - Simple: a process-wide counter starting at 1. Fast and cheap, but the
//     values repeat across process restarts.
//   - UUID4: random version 4 UUIDs in the canonical 8-4-4-4-12 layout. These
//     are practically unique across runs and can be stored or compared with
//     results from other processes.
//
// # Usage
//
//	id := guid.AllocateSimple()   // 1, 2, 3, ...
//	last := guid.LastSimple()     // peek without allocating
//	runID := guid.AllocateUUID4() // "3f2b0c1e-8d4a-4f7e-9b21-5c6d7e8f9a0b"
//
// All functions are safe for concurrent use.
package guid
