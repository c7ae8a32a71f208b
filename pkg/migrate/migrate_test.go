package migrate

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	"go.uber.org/zap/zaptest"
	_ "modernc.org/sqlite"
)

var testMigrations = fstest.MapFS{
	"sql/001_create_sessions.up.sql":   {Data: []byte("CREATE TABLE sessions (id TEXT PRIMARY KEY)")},
	"sql/001_create_sessions.down.sql": {Data: []byte("DROP TABLE sessions")},
	"sql/002_add_started.up.sql":       {Data: []byte("ALTER TABLE sessions ADD COLUMN started DATETIME")},
	"sql/002_add_started.down.sql":     {Data: []byte("ALTER TABLE sessions DROP COLUMN started")},
	"sql/003_seed.up.sql":              {Data: []byte("INSERT INTO sessions (id) VALUES ('demo')")},
	"sql/README.md":                    {Data: []byte("not a migration")},
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGetMigrations(t *testing.T) {
	migrations, err := NewFSProvider(testMigrations, "sql", "").GetMigrations()
	if err != nil {
		t.Fatal(err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Name != "create sessions" || migrations[0].Down == "" {
		t.Errorf("unexpected first migration: %+v", migrations[0])
	}
	if migrations[2].Down != "" {
		t.Error("expected migration 3 to have no down SQL")
	}
}

func TestMigrateUpAndDown(t *testing.T) {
	db := openDB(t)
	m := NewMigrator(db, NewFSProvider(testMigrations, "sql", ""), zaptest.NewLogger(t).Sugar())

	if err := m.MigrateTo(2); err != nil {
		t.Fatal(err)
	}
	if v, _ := m.GetCurrentVersion(); v != 2 {
		t.Fatalf("expected version 2, got %d", v)
	}
	if _, err := db.Exec("INSERT INTO sessions (id, started) VALUES ('a', CURRENT_TIMESTAMP)"); err != nil {
		t.Fatalf("expected started column: %v", err)
	}

	pending, err := m.GetPendingMigrations()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Version != 3 {
		t.Errorf("expected migration 3 pending, got %+v", pending)
	}

	if err := m.MigrateTo(1); err != nil {
		t.Fatal(err)
	}
	if v, _ := m.GetCurrentVersion(); v != 1 {
		t.Errorf("expected version 1 after rollback, got %d", v)
	}
	if _, err := db.Exec("INSERT INTO sessions (id, started) VALUES ('b', CURRENT_TIMESTAMP)"); err == nil {
		t.Error("expected started column to be dropped")
	}

	if err := m.MigrateUp(); err != nil {
		t.Fatal(err)
	}
	if err := m.MigrateUp(); err != nil {
		t.Fatalf("second MigrateUp should be a no-op: %v", err)
	}
	if v, _ := m.GetCurrentVersion(); v != 3 {
		t.Errorf("expected version 3, got %d", v)
	}
}

func TestMigrateDownErrors(t *testing.T) {
	db := openDB(t)
	m := NewMigrator(db, NewFSProvider(testMigrations, "sql", "versions"), nil)
	if err := m.MigrateUp(); err != nil {
		t.Fatal(err)
	}

	if err := m.MigrateDown(3); err == nil {
		t.Error("expected error when target is not below current version")
	}
	// migration 3 has no down SQL
	if err := m.MigrateDown(2); err == nil {
		t.Error("expected error rolling back a migration without down SQL")
	}
	if v, _ := m.GetCurrentVersion(); v != 3 {
		t.Errorf("failed rollback must leave version 3, got %d", v)
	}
}

func TestMissingDirectory(t *testing.T) {
	db := openDB(t)
	m := NewMigrator(db, NewFSProvider(testMigrations, "absent", ""), nil)
	if err := m.MigrateUp(); err == nil {
		t.Error("expected error for a missing migration directory")
	}
}

func TestPlan(t *testing.T) {
	sorted := []Migration{{Version: 1}, {Version: 2}, {Version: 3}, {Version: 4}}

	tests := []struct {
		current, target int
		expected        []int
		up              bool
	}{
		{current: 0, target: 4, expected: []int{1, 2, 3, 4}, up: true},
		{current: 2, target: 3, expected: []int{3}, up: true},
		{current: 3, target: 3, expected: nil, up: true},
		{current: 4, target: 1, expected: []int{4, 3, 2}, up: false},
		{current: 2, target: 0, expected: []int{2, 1}, up: false},
	}
	for _, tt := range tests {
		steps, up := plan(sorted, tt.current, tt.target)
		var got []int
		for _, s := range steps {
			got = append(got, s.Version)
		}
		if up != tt.up || len(got) != len(tt.expected) {
			t.Errorf("%d -> %d: expected %v (up=%v), got %v (up=%v)", tt.current, tt.target, tt.expected, tt.up, got, up)
			continue
		}
		for i := range got {
			if got[i] != tt.expected[i] {
				t.Errorf("%d -> %d: expected %v, got %v", tt.current, tt.target, tt.expected, got)
				break
			}
		}
	}
}
