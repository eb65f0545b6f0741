package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// blockingSnapshot has one same-host wheel listener that is neither
// passive nor calls preventDefault.
const blockingSnapshot = `{
  "URL": {"finalUrl": "https://example.com/"},
  "PageLevelEventListeners": [
    {
      "type": "wheel",
      "url": "https://example.com/app.js",
      "line": 10,
      "col": 4,
      "objectId": "window",
      "handler": {"description": "function(e){ zoom(e) }"},
      "passive": false
    },
    {
      "type": "touchstart",
      "url": "https://cdn.tracker.net/t.js",
      "line": 1,
      "col": 0,
      "objectId": "document",
      "handler": {"description": "function(){}"},
      "passive": false
    }
  ]
}`

// passiveSnapshot is blockingSnapshot after the wheel listener was made
// passive.
const passiveSnapshot = `{
  "URL": {"finalUrl": "https://example.com/"},
  "PageLevelEventListeners": [
    {
      "type": "wheel",
      "url": "https://example.com/app.js",
      "line": 10,
      "col": 4,
      "objectId": "window",
      "handler": {"description": "function(e){ zoom(e) }"},
      "passive": true
    }
  ]
}`

// writeSnapshot writes content to name inside dir and returns the path.
func writeSnapshot(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// discardLogger returns a logger that drops all output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
