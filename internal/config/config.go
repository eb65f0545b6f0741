package config

import (
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultBatchSize is the number of snapshots audited concurrently.
	// Auditing is CPU bound, so a handful of workers is enough.
	DefaultBatchSize = 4

	// DefaultTimeout bounds the audit of a single snapshot.
	// Zero disables the limit.
	DefaultTimeout = 30 * time.Second

	// AppName is the application name used for XDG directory paths.
	AppName = "passivescan"
)

// Config holds all configuration options for passivescan.
// It is populated from CLI flags, optionally merged with a .passivescan
// file, and passed through the application rather than held globally.
type Config struct {
	// Verbose enables detailed log output using slog.LevelDebug.
	Verbose bool

	// BatchSize is the number of snapshots audited concurrently.
	BatchSize int

	// Timeout bounds the audit of a single snapshot. Zero means no limit.
	Timeout time.Duration

	// ConfigFilePath is the path to the configuration file.
	// If empty, .passivescan is searched in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// File is the parsed configuration file, or nil when none was found.
	File *File

	// JSONReport enables JSON report output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When empty, the report is written to stdout.
	ReportFile string

	// Inputs are snapshot files, directories of snapshots, or "-" for stdin.
	Inputs []string

	// DBDir is the directory holding the history database.
	// Defaults to the XDG data directory (~/.local/share/passivescan on Linux).
	DBDir string

	// SaveToDB indicates whether reports are stored for later comparison.
	SaveToDB bool

	// FailOnViolation makes the audit command exit non-zero when any audit fails.
	FailOnViolation bool

	// DisabledAudits names audits that are not run.
	DisabledAudits []string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		BatchSize: DefaultBatchSize,
		Timeout:   DefaultTimeout,
		DBDir:     XDGDataDir(),
		SaveToDB:  true,
	}
}

// XDGDataDir returns the XDG data directory for passivescan.
// On Linux: ~/.local/share/passivescan
// On macOS: ~/Library/Application Support/passivescan
// On Windows: %LOCALAPPDATA%\passivescan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for passivescan.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ApplyFile merges settings from a configuration file.
// Command-line choices win: a default format is only applied when no
// format flag was given, and FailOnViolation can only be switched on.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	c.File = f

	if !c.JSONReport && !c.MarkdownReport {
		switch f.Defaults.Format {
		case FormatJSON:
			c.JSONReport = true
		case FormatMarkdown:
			c.MarkdownReport = true
		}
	}
	if f.Defaults.FailOnViolation {
		c.FailOnViolation = true
	}
	for _, name := range f.Audits.Disabled {
		if !slices.Contains(c.DisabledAudits, name) {
			c.DisabledAudits = append(c.DisabledAudits, name)
		}
	}
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error.
func (c *Config) Validate() error {
	if len(c.Inputs) == 0 {
		return ErrNoInput
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.File != nil {
		return c.File.Validate()
	}
	return nil
}
