// Package config provides configuration structures and utilities for
// passivescan. It defines the options for auditing snapshots, report
// generation preferences, the optional .passivescan file and the XDG
// locations of the history database.
package config
