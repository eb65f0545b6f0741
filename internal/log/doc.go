// Package log provides secure logging built on top of the standard slog
// package.
//
// The SecureHandler wraps any slog.Handler and sanitizes records before
// they are written:
//   - attributes with sensitive keys (cookie, token, password, ...) are masked
//   - values that look like secrets (JWT, bearer tokens, private keys) are masked
//   - URLs lose their userinfo and the values of sensitive query parameters
//   - handler source snippets are truncated
//
// Snapshot files are captured from real browsing sessions, so script URLs
// and handler bodies can carry session tokens. Even in verbose mode they
// are sanitized before reaching the log.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, verbose)
//	logger.Debug("listener", "url", "https://user:pw@example.com/app.js?token=abc")
//	// url=https://example.com/app.js?token=***REDACTED***
//
//	slog.SetDefault(logger)
package log
