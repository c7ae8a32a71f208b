// Package migrate applies versioned SQL schema migrations inside transactions.
package migrate

import (
	"database/sql"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Latest asks MigrateTo for the newest known version
const Latest = -1

// Migration is one numbered schema change with its forward and reverse SQL
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// DB is satisfied by both *sql.DB and *sql.Tx
type DB interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// MigrationProvider supplies migrations and records the applied version
type MigrationProvider interface {
	GetMigrations() ([]Migration, error)
	GetCurrentVersion(db *sql.DB) (int, error)
	SetVersion(db DB, version int) error
	CreateMigrationTable(db *sql.DB) error
}

// Migrator moves a database between schema versions
type Migrator struct {
	db       *sql.DB
	provider MigrationProvider
	logger   *zap.SugaredLogger
}

// NewMigrator creates a migrator. A nil logger disables logging.
func NewMigrator(db *sql.DB, provider MigrationProvider, logger *zap.SugaredLogger) *Migrator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Migrator{
		db:       db,
		provider: provider,
		logger:   logger,
	}
}

// MigrateUp applies every pending migration
func (m *Migrator) MigrateUp() error {
	return m.MigrateTo(Latest)
}

// MigrateDown reverts migrations until the schema is at targetVersion, which
// must be below the current version
func (m *Migrator) MigrateDown(targetVersion int) error {
	current, err := m.GetCurrentVersion()
	if err != nil {
		return err
	}
	if targetVersion >= current {
		return fmt.Errorf("target version %d must be less than current version %d", targetVersion, current)
	}
	return m.MigrateTo(targetVersion)
}

// MigrateTo applies or reverts migrations to reach targetVersion. Latest
// selects the highest version the provider knows.
func (m *Migrator) MigrateTo(targetVersion int) error {
	current, err := m.GetCurrentVersion()
	if err != nil {
		return err
	}
	migrations, err := m.load()
	if err != nil {
		return err
	}
	if targetVersion == Latest {
		targetVersion = latest(migrations)
	}

	steps, up := plan(migrations, current, targetVersion)
	for _, step := range steps {
		if err := m.execute(step, up); err != nil {
			return fmt.Errorf("migration %d (%s): %w", step.Version, step.Name, err)
		}
	}
	if len(steps) > 0 {
		m.logger.Infof("schema moved from version %d to %d", current, targetVersion)
	}
	return nil
}

// GetCurrentVersion returns the applied version, creating the version table on first use
func (m *Migrator) GetCurrentVersion() (int, error) {
	if err := m.provider.CreateMigrationTable(m.db); err != nil {
		return 0, fmt.Errorf("failed to create migration table: %w", err)
	}
	return m.provider.GetCurrentVersion(m.db)
}

// GetPendingMigrations returns the migrations MigrateUp would apply, in order
func (m *Migrator) GetPendingMigrations() ([]Migration, error) {
	current, err := m.GetCurrentVersion()
	if err != nil {
		return nil, err
	}
	migrations, err := m.load()
	if err != nil {
		return nil, err
	}
	steps, _ := plan(migrations, current, latest(migrations))
	return steps, nil
}

func (m *Migrator) load() ([]Migration, error) {
	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to get migrations: %w", err)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func latest(sorted []Migration) int {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[len(sorted)-1].Version
}

// plan picks the steps between current and target from migrations sorted by
// version. Reverts come back newest first.
func plan(sorted []Migration, current, target int) (steps []Migration, up bool) {
	if target >= current {
		for _, mig := range sorted {
			if mig.Version > current && mig.Version <= target {
				steps = append(steps, mig)
			}
		}
		return steps, true
	}
	for i := len(sorted) - 1; i >= 0; i-- {
		if mig := sorted[i]; mig.Version > target && mig.Version <= current {
			steps = append(steps, mig)
		}
	}
	return steps, false
}

func (m *Migrator) execute(mig Migration, up bool) error {
	query, direction, version := mig.Down, "down", mig.Version-1
	if up {
		query, direction, version = mig.Up, "up", mig.Version
	}
	if query == "" {
		return fmt.Errorf("no %s SQL", direction)
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(query); err != nil {
		return fmt.Errorf("failed to execute %s SQL: %w", direction, err)
	}
	if err := m.provider.SetVersion(tx, version); err != nil {
		return fmt.Errorf("failed to record version %d: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	m.logger.Debugf("migration %d (%s) %s", mig.Version, mig.Name, direction)
	return nil
}
