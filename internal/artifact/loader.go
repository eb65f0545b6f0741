package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nao1215/passivescan/internal/model"
)

// StdinSource is the source name that reads a snapshot from standard input.
const StdinSource = "-"

// snapshotExt is the file extension collected from directories.
const snapshotExt = ".json"

// ErrMalformedArtifact is returned when a snapshot holds an artifact of an
// unexpected shape.
var ErrMalformedArtifact = model.ErrMalformedArtifact

// ErrNoSnapshots is returned when a directory holds no snapshot files.
var ErrNoSnapshots = errors.New("no snapshot files found")

// Decode reads one snapshot from r.
func Decode(r io.Reader) (*model.Artifacts, error) {
	var artifacts model.Artifacts
	dec := json.NewDecoder(r)
	if err := dec.Decode(&artifacts); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &artifacts, nil
}

// LoadFile reads the snapshot at path. The path "-" reads from stdin.
func LoadFile(path string) (*model.Artifacts, error) {
	if path == StdinSource {
		return Decode(os.Stdin)
	}

	f, err := os.Open(path) //nolint:gosec // User-provided snapshot path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	artifacts, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return artifacts, nil
}

// Collect expands the given paths into snapshot sources.
// Directories contribute their *.json files (not recursive), sorted by name.
// Files and "-" are kept as given. Duplicates are dropped.
func Collect(paths []string) ([]string, error) {
	sources := make([]string, 0, len(paths))
	seen := make(map[string]bool)

	add := func(p string) {
		if seen[p] {
			return
		}
		seen[p] = true
		sources = append(sources, p)
	}

	for _, p := range paths {
		if p == StdinSource {
			add(p)
			continue
		}

		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !info.IsDir() {
			add(p)
			continue
		}

		files, err := snapshotFiles(p)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("%s: %w", p, ErrNoSnapshots)
		}
		for _, f := range files {
			add(f)
		}
	}

	return sources, nil
}

// snapshotFiles lists the snapshot files directly inside dir.
func snapshotFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), snapshotExt) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
