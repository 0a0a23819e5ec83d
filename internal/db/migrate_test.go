package db

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// setupMigrationTestDB opens a bare database with no schema so each test
// controls exactly which migrations have run.
func setupMigrationTestDB(t *testing.T) *DB {
	t.Helper()
	fname := t.Name() + ".db"
	_ = os.Remove(fname)

	db, err := OpenDB(fname)
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	return db
}

// setupTestMigrations writes a small two-step migration set to a temp
// directory and returns it as an fs.FS, mirroring how the embedded set
// is consumed in production.
func setupTestMigrations(t *testing.T) fs.FS {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"000001_create_trainees.up.sql":     "CREATE TABLE trainees (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL);",
		"000001_create_trainees.down.sql":   "DROP TABLE trainees;",
		"000002_add_trainee_email.up.sql":   "ALTER TABLE trainees ADD COLUMN email TEXT;",
		"000002_add_trainee_email.down.sql": "ALTER TABLE trainees DROP COLUMN email;",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write migration fixture %s: %v", name, err)
		}
	}

	return os.DirFS(dir)
}

func columnExists(t *testing.T, db *DB, table, column string) bool {
	t.Helper()
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to query table_info: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			t.Fatalf("failed to scan table_info row: %v", err)
		}
		if name == column {
			return true
		}
	}
	return false
}

func TestMigrateUp(t *testing.T) {
	db := setupMigrationTestDB(t)
	defer cleanupTestDB(t, db)
	migrations := setupTestMigrations(t)

	if err := db.MigrateUp(migrations); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	version, dirty, err := db.MigrateVersion(migrations)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 2 || dirty {
		t.Errorf("expected version 2 clean, got version %d dirty=%v", version, dirty)
	}

	if !columnExists(t, db, "trainees", "email") {
		t.Error("expected email column after migrating to version 2")
	}
}

func TestMigrateUp_AlreadyLatest(t *testing.T) {
	db := setupMigrationTestDB(t)
	defer cleanupTestDB(t, db)
	migrations := setupTestMigrations(t)

	if err := db.MigrateUp(migrations); err != nil {
		t.Fatalf("first MigrateUp failed: %v", err)
	}
	// Second run is a no-op, not an error.
	if err := db.MigrateUp(migrations); err != nil {
		t.Errorf("MigrateUp at latest version should be a no-op, got %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	db := setupMigrationTestDB(t)
	defer cleanupTestDB(t, db)
	migrations := setupTestMigrations(t)

	if err := db.MigrateUp(migrations); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	if err := db.MigrateDown(migrations); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}

	version, dirty, err := db.MigrateVersion(migrations)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("expected version 1 clean after down, got version %d dirty=%v", version, dirty)
	}
	if columnExists(t, db, "trainees", "email") {
		t.Error("expected email column to be dropped by down migration")
	}
}

func TestMigrateTo(t *testing.T) {
	db := setupMigrationTestDB(t)
	defer cleanupTestDB(t, db)
	migrations := setupTestMigrations(t)

	if err := db.MigrateTo(migrations, 1); err != nil {
		t.Fatalf("MigrateTo(1) failed: %v", err)
	}
	version, _, err := db.MigrateVersion(migrations)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("expected version 1, got %d", version)
	}

	// Same version again is a no-op.
	if err := db.MigrateTo(migrations, 1); err != nil {
		t.Errorf("MigrateTo at current version should be a no-op, got %v", err)
	}
}

func TestMigrateVersion_Fresh(t *testing.T) {
	db := setupMigrationTestDB(t)
	defer cleanupTestDB(t, db)
	migrations := setupTestMigrations(t)

	version, dirty, err := db.MigrateVersion(migrations)
	if err != nil {
		t.Fatalf("MigrateVersion on fresh DB failed: %v", err)
	}
	if version != 0 || dirty {
		t.Errorf("expected version 0 clean on fresh DB, got version %d dirty=%v", version, dirty)
	}
}

func TestMigrateForce(t *testing.T) {
	db := setupMigrationTestDB(t)
	defer cleanupTestDB(t, db)
	migrations := setupTestMigrations(t)

	if err := db.MigrateUp(migrations); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	if err := db.MigrateForce(migrations, 1); err != nil {
		t.Fatalf("MigrateForce failed: %v", err)
	}

	version, dirty, err := db.MigrateVersion(migrations)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("expected forced version 1 clean, got version %d dirty=%v", version, dirty)
	}
}

func TestBaselineAtVersion(t *testing.T) {
	db := setupMigrationTestDB(t)
	defer cleanupTestDB(t, db)
	migrations := setupTestMigrations(t)

	if err := db.BaselineAtVersion(2); err != nil {
		t.Fatalf("BaselineAtVersion failed: %v", err)
	}

	version, dirty, err := db.MigrateVersion(migrations)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 2 || dirty {
		t.Errorf("expected baselined version 2 clean, got version %d dirty=%v", version, dirty)
	}

	// A baselined database is treated as already migrated.
	if err := db.MigrateUp(migrations); err != nil {
		t.Errorf("MigrateUp after baseline should be a no-op, got %v", err)
	}
}

func TestBaselineAtVersion_AlreadyMigrated(t *testing.T) {
	db := setupMigrationTestDB(t)
	defer cleanupTestDB(t, db)
	migrations := setupTestMigrations(t)

	if err := db.MigrateUp(migrations); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	err := db.BaselineAtVersion(1)
	if err == nil {
		t.Fatal("expected baseline on migrated DB to fail")
	}
	if !strings.Contains(err.Error(), "cannot baseline") {
		t.Errorf("expected 'cannot baseline' error, got: %v", err)
	}
}

func TestGetLatestMigrationVersion(t *testing.T) {
	migrations := setupTestMigrations(t)

	version, err := GetLatestMigrationVersion(migrations)
	if err != nil {
		t.Fatalf("GetLatestMigrationVersion failed: %v", err)
	}
	if version != 2 {
		t.Errorf("expected latest version 2 from fixture, got %d", version)
	}
}

func TestGetLatestMigrationVersion_Embedded(t *testing.T) {
	migrations, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("getMigrationsFS failed: %v", err)
	}

	version, err := GetLatestMigrationVersion(migrations)
	if err != nil {
		t.Fatalf("GetLatestMigrationVersion failed: %v", err)
	}
	if version != 4 {
		t.Errorf("expected latest embedded version 4, got %d", version)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("failed to read embedded migrations: %v", err)
	}
	if len(entries) != 8 {
		t.Errorf("expected 8 embedded migration files, got %d", len(entries))
	}

	// Every up migration needs a matching down migration.
	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name()] = true
	}
	for name := range names {
		if strings.HasSuffix(name, ".up.sql") {
			down := strings.TrimSuffix(name, ".up.sql") + ".down.sql"
			if !names[down] {
				t.Errorf("missing down migration for %s", name)
			}
		}
	}
}

func TestGetMigrationStatus(t *testing.T) {
	db := setupMigrationTestDB(t)
	defer cleanupTestDB(t, db)
	migrations := setupTestMigrations(t)

	if err := db.MigrateUp(migrations); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	status, err := db.GetMigrationStatus(migrations)
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}

	if v, ok := status["current_version"].(uint); !ok || v != 2 {
		t.Errorf("expected current_version 2, got %v", status["current_version"])
	}
	if d, ok := status["dirty"].(bool); !ok || d {
		t.Errorf("expected dirty=false, got %v", status["dirty"])
	}
	if exists, ok := status["schema_migrations_exists"].(bool); !ok || !exists {
		t.Errorf("expected schema_migrations_exists=true, got %v", status["schema_migrations_exists"])
	}
}

func TestCheckAndPromptMigrations_Fresh(t *testing.T) {
	db := setupMigrationTestDB(t)
	defer cleanupTestDB(t, db)
	migrations := setupTestMigrations(t)

	needsMigration, err := db.CheckAndPromptMigrations(migrations)
	if !needsMigration {
		t.Error("expected fresh DB to need migrations")
	}
	if err == nil {
		t.Error("expected out-of-date error for fresh DB")
	}
}

func TestCheckAndPromptMigrations_UpToDate(t *testing.T) {
	db := setupMigrationTestDB(t)
	defer cleanupTestDB(t, db)
	migrations := setupTestMigrations(t)

	if err := db.MigrateUp(migrations); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	needsMigration, err := db.CheckAndPromptMigrations(migrations)
	if err != nil {
		t.Errorf("expected no error for up-to-date DB, got %v", err)
	}
	if needsMigration {
		t.Error("up-to-date DB should not need migrations")
	}
}
