// Package loader registers file-based migrations. A migration is a pair of
// script files named {version}_{name}.up.{sql|json} and
// {version}_{name}.down.{sql|json}; the numeric prefix is the registry
// version and the script dialect is whatever the configured store executes.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/toolsascode/lockstep/internal/migrate"
	"github.com/toolsascode/lockstep/internal/store"
)

var fileNamePattern = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.(sql|json)$`)

// Loader scans a directory for migration script pairs
type Loader struct {
	dir string
}

// scriptPair collects the up and down scripts of one version
type scriptPair struct {
	version int64
	name    string
	up      string
	down    string
	hasUp   bool
	hasDown bool
}

// New creates a loader for the given directory
func New(dir string) *Loader {
	return &Loader{dir: dir}
}

// Load scans the directory and registers every complete script pair into
// the registry. It returns the number of migrations registered.
func (l *Loader) Load(reg *migrate.Registry) (int, error) {
	pairs := make(map[int64]*scriptPair)

	err := filepath.Walk(l.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		matches := fileNamePattern.FindStringSubmatch(info.Name())
		if matches == nil {
			return nil
		}

		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil || version <= 0 {
			return fmt.Errorf("invalid migration version in %s", info.Name())
		}
		name := matches[2]
		direction := matches[3]

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", path, err)
		}

		pair, ok := pairs[version]
		if !ok {
			pair = &scriptPair{version: version, name: name}
			pairs[version] = pair
		} else if pair.name != name {
			return fmt.Errorf("conflicting names for migration version %d: %s vs %s", version, pair.name, name)
		}

		if direction == "up" {
			if pair.hasUp {
				return fmt.Errorf("duplicate up script for migration version %d", version)
			}
			pair.up = string(content)
			pair.hasUp = true
		} else {
			if pair.hasDown {
				return fmt.Errorf("duplicate down script for migration version %d", version)
			}
			pair.down = string(content)
			pair.hasDown = true
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	// Register in ascending order so a failure points at the first
	// offending version.
	versions := make([]int64, 0, len(pairs))
	for version := range pairs {
		versions = append(versions, version)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	for _, version := range versions {
		pair := pairs[version]
		if !pair.hasUp {
			return 0, fmt.Errorf("missing up script for migration %d_%s", pair.version, pair.name)
		}
		if !pair.hasDown {
			return 0, fmt.Errorf("missing down script for migration %d_%s", pair.version, pair.name)
		}

		if err := reg.Add(migrate.Migration{
			Version: pair.version,
			Name:    strings.ReplaceAll(pair.name, "_", " "),
			Up:      scriptAction(pair.up),
			Down:    scriptAction(pair.down),
		}); err != nil {
			return 0, fmt.Errorf("failed to register migration %d_%s: %w", pair.version, pair.name, err)
		}
	}

	return len(versions), nil
}

// scriptAction wraps a script body as a migration action
func scriptAction(script string) migrate.Action {
	return func(ctx context.Context, st store.Store, log migrate.LogFunc) error {
		return st.Exec(ctx, script)
	}
}
