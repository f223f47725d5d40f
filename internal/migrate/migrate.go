// Package migrate upgrades versioned on-disk documents one schema step at a
// time before they are decoded.
package migrate

import (
	"fmt"
	"log/slog"
	"slices"
)

// Migration upgrades a document to Version from the version before it.
type Migration struct {
	Version     int
	Description string
	Upgrade     func(data []byte) ([]byte, error)
}

// Registry is the migration list for one document kind.
type Registry struct {
	// CurrentVersion is the version documents are upgraded to.
	CurrentVersion int
	Migrations     []Migration
}

// Config is the registry for banner.toml. Its steps are registered by the
// config package, which owns the schema.
var Config = &Registry{CurrentVersion: 2}

// Register adds m. It panics if m.Version is already registered.
func (r *Registry) Register(m Migration) {
	for _, existing := range r.Migrations {
		if existing.Version == m.Version {
			panic(fmt.Sprintf("migrate: duplicate migration version %d (%q)", m.Version, m.Description))
		}
	}
	r.Migrations = append(r.Migrations, m)
}

// NeedsMigration reports whether a document at fileVersion is behind.
func (r *Registry) NeedsMigration(fileVersion int) bool {
	return fileVersion < r.CurrentVersion
}

// Run applies, in version order, every migration newer than from and no
// newer than CurrentVersion. It returns the upgraded data and the version
// reached; on error the version is the last one applied successfully.
func (r *Registry) Run(data []byte, from int) ([]byte, int, error) {
	sorted := slices.Clone(r.Migrations)
	slices.SortFunc(sorted, func(a, b Migration) int { return a.Version - b.Version })

	version := from
	for _, m := range sorted {
		if m.Version <= version || m.Version > r.CurrentVersion {
			continue
		}
		slog.Info("applying migration", "version", m.Version, "description", m.Description)
		out, err := m.Upgrade(data)
		if err != nil {
			return nil, version, fmt.Errorf("migration to v%d failed: %w", m.Version, err)
		}
		data, version = out, m.Version
	}
	if version < r.CurrentVersion {
		version = r.CurrentVersion
	}
	return data, version, nil
}
