// Package main provides the entry point for the passivescan CLI.
//
// passivescan audits captured page snapshots for scroll-blocking event
// listeners that could have been registered as passive, and keeps a history
// of runs so regressions can be compared.
//
// Usage:
//
//	passivescan audit snapshot.json
//	passivescan audit snapshots/
//	passivescan compare https://example.com/
//
// See --help for all available options.
package main

// main is the entry point for passivescan.
func main() {
	Execute()
}
