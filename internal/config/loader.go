package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".passivescan"

// Report formats accepted in the configuration file.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// Defaults holds default command-line choices.
type Defaults struct {
	// Format is the report format used when no format flag is given.
	Format string `yaml:"format,omitempty"`

	// FailOnViolation makes failing audits produce a non-zero exit status.
	FailOnViolation bool `yaml:"failOnViolation,omitempty"`
}

// Audits selects which audits are run.
type Audits struct {
	// Disabled names audits to skip.
	Disabled []string `yaml:"disabled,omitempty"`
}

// File represents the structure of the .passivescan configuration file.
type File struct {
	Defaults Defaults `yaml:"defaults,omitempty"`
	Audits   Audits   `yaml:"audits,omitempty"`
}

// Validate checks the values read from the file.
func (f *File) Validate() error {
	switch f.Defaults.Format {
	case "", FormatText, FormatJSON, FormatMarkdown:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFormat, f.Defaults.Format)
	}
}

// LoadConfigFile loads a configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cf.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .passivescan in the current directory
// 3. Look for .passivescan in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
