package config

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/biometrics/pkg/migrate"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteProvider implements ProfileProvider for profiles stored in SQLite.
// Stored profiles replace presets of the same name.
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider opens the database and migrates the profiles schema to the latest version
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if _, _, err := migrateSchema(db, migrate.Latest, nil); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// MigrateProfileStore moves the profiles schema of the database at dbPath to
// version, or to the newest schema when version is migrate.Latest. It returns
// the versions before and after.
func MigrateProfileStore(dbPath string, version int, logger *zap.SugaredLogger) (from, to int, err error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	defer db.Close()
	return migrateSchema(db, version, logger)
}

func migrateSchema(db *sql.DB, version int, logger *zap.SugaredLogger) (from, to int, err error) {
	migrator := migrate.NewMigrator(db, migrate.NewFSProvider(migrations, "migrations", ""), logger)
	if from, err = migrator.GetCurrentVersion(); err != nil {
		return 0, 0, fmt.Errorf("failed to read profiles schema version: %w", err)
	}

	if version == migrate.Latest {
		pending, err := migrator.GetPendingMigrations()
		if err != nil {
			return from, from, fmt.Errorf("failed to list profiles schema migrations: %w", err)
		}
		if len(pending) == 0 {
			return from, from, nil
		}
	}
	if err := migrator.MigrateTo(version); err != nil {
		return from, from, fmt.Errorf("failed to migrate profiles schema: %w", err)
	}
	if to, err = migrator.GetCurrentVersion(); err != nil {
		return from, from, fmt.Errorf("failed to read profiles schema version: %w", err)
	}
	return from, to, nil
}

// LoadProfiles returns the presets overlaid with every stored profile
func (s *SQLiteProvider) LoadProfiles() ([]Profile, error) {
	rows, err := s.db.Query(`
		SELECT name, description, sample_rate, hr_window_seconds, spo2_window_seconds,
		       min_bpm, max_bpm, spo2_curve
		FROM profiles
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var stored []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		stored = append(stored, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}

	return merge(stored), nil
}

// GetProfile returns a stored profile, falling back to the presets
func (s *SQLiteProvider) GetProfile(name string) (Profile, error) {
	row := s.db.QueryRow(`
		SELECT name, description, sample_rate, hr_window_seconds, spo2_window_seconds,
		       min_bpm, max_bpm, spo2_curve
		FROM profiles
		WHERE lower(name) = ?
	`, ProfileName(name))

	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Preset(name)
	}
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

// SaveProfile validates p and inserts or replaces it
func (s *SQLiteProvider) SaveProfile(p Profile) error {
	if err := Normalize(&p); err != nil {
		return err
	}

	_, err := s.db.Exec(`
		INSERT INTO profiles (name, description, sample_rate, hr_window_seconds,
		                      spo2_window_seconds, min_bpm, max_bpm, spo2_curve)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			description = excluded.description,
			sample_rate = excluded.sample_rate,
			hr_window_seconds = excluded.hr_window_seconds,
			spo2_window_seconds = excluded.spo2_window_seconds,
			min_bpm = excluded.min_bpm,
			max_bpm = excluded.max_bpm,
			spo2_curve = excluded.spo2_curve
	`, p.Name, p.Description, p.SampleRate, p.HRWindowSeconds, p.SpO2WindowSeconds,
		p.MinBPM, p.MaxBPM, p.SpO2Curve)
	if err != nil {
		return fmt.Errorf("failed to save profile %q: %w", p.Name, err)
	}
	return nil
}

// DeleteProfile removes a stored profile. Presets cannot be deleted.
func (s *SQLiteProvider) DeleteProfile(name string) error {
	result, err := s.db.Exec(`DELETE FROM profiles WHERE lower(name) = ?`, ProfileName(name))
	if err != nil {
		return fmt.Errorf("failed to delete profile %q: %w", name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete profile %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (Profile, error) {
	var p Profile
	var description, curve sql.NullString

	err := row.Scan(&p.Name, &description, &p.SampleRate, &p.HRWindowSeconds,
		&p.SpO2WindowSeconds, &p.MinBPM, &p.MaxBPM, &curve)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, err
	}
	if err != nil {
		return Profile{}, fmt.Errorf("failed to scan profile row: %w", err)
	}

	// Convert nullable string fields to empty strings if NULL
	if description.Valid {
		p.Description = description.String
	}
	if curve.Valid {
		p.SpO2Curve = curve.String
	}

	if err := Normalize(&p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// IsReadOnly returns false since profiles can be saved and deleted
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	return s.db.Close()
}
