package shared

import (
	"testing"
	"testing/fstest"
)

func TestMigrationRunner(t *testing.T) {
	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}

		if len(migrations) == 0 {
			t.Fatal("expected at least one migration")
		}

		for i := 1; i < len(migrations); i++ {
			if migrations[i].Version <= migrations[i-1].Version {
				t.Errorf("migrations not sorted: version %d comes after %d", migrations[i].Version, migrations[i-1].Version)
			}
		}

		for _, m := range migrations {
			if m.Up == "" {
				t.Errorf("migration version %d missing up SQL", m.Version)
			}
			if m.Down == "" {
				t.Errorf("migration version %d missing down SQL", m.Version)
			}
		}
	})

	t.Run("RunMigrations And Rollback", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		var count int
		err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
		if err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}
		if count == 0 {
			t.Error("expected at least one migration to be applied")
		}

		_, err = db.Exec("SELECT 1 FROM episodes LIMIT 1")
		if err != nil {
			t.Errorf("episodes table should exist after migrations: %v", err)
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}

		var newCount int
		err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&newCount)
		if err != nil {
			t.Fatalf("failed to query schema_migrations after rollback: %v", err)
		}
		if newCount >= count {
			t.Errorf("expected migration count to decrease after rollback, got %d (was %d)", newCount, count)
		}
	})

	t.Run("Idempotent Migrations", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations first time: %v", err)
		}

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations second time: %v", err)
		}

		var count int
		err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
		if err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}

		migrations, _ := loadMigrations()
		if count != len(migrations) {
			t.Errorf("expected %d migrations to be applied, got %d", len(migrations), count)
		}
	})
}

func TestLoadMigrationsFS(t *testing.T) {
	t.Run("incomplete pair is rejected", func(t *testing.T) {
		fsys := fstest.MapFS{
			"schema/0000_init_up.sql": {Data: []byte("CREATE TABLE a (id INTEGER);")},
		}
		if _, err := LoadMigrations(fsys, "schema"); err == nil {
			t.Error("expected error for migration without down SQL")
		}
	})

	t.Run("non numeric files are skipped", func(t *testing.T) {
		fsys := fstest.MapFS{
			"schema/0001_b_up.sql":   {Data: []byte("CREATE TABLE b (id INTEGER);")},
			"schema/0001_b_down.sql": {Data: []byte("DROP TABLE b;")},
			"schema/0000_a_up.sql":   {Data: []byte("CREATE TABLE a (id INTEGER);")},
			"schema/0000_a_down.sql": {Data: []byte("DROP TABLE a;")},
			"schema/readme_up.sql":   {Data: []byte("-- ignored")},
		}
		migrations, err := LoadMigrations(fsys, "schema")
		if err != nil {
			t.Fatalf("LoadMigrations() error = %v", err)
		}
		if len(migrations) != 2 {
			t.Fatalf("expected 2 migrations, got %d", len(migrations))
		}
		if migrations[0].Version != 0 || migrations[1].Version != 1 {
			t.Errorf("unexpected order: %d, %d", migrations[0].Version, migrations[1].Version)
		}
	})
}
