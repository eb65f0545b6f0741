// Package artifact reads captured page snapshots from disk.
//
// A snapshot is a JSON object keyed by artifact name, as written by the
// gatherers:
//
//	{
//	  "URL": {"finalUrl": "https://example.com/"},
//	  "PageLevelEventListeners": [ ... ]
//	}
//
// PageLevelEventListeners may also be -1, null, absent, or an object whose
// rawValue is -1. Artifacts that no registered audit reads are ignored.
// Any other shape is rejected with ErrMalformedArtifact.
package artifact
