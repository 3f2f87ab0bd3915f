package db

import (
	"testing"
	"testing/fstest"
	"time"
)

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"002_seed.sql":   {Data: []byte("INSERT INTO users VALUES ('p1');")},
		"001_core.sql":   {Data: []byte("CREATE TABLE users (id TEXT PRIMARY KEY);")},
		"010_later.sql":  {Data: []byte("SELECT 10;")},
		"readme.sql":     {Data: []byte("-- no version prefix")},
		"abc_bad.sql":    {Data: []byte("-- non-numeric prefix")},
		"notes.txt":      {Data: []byte("not sql")},
		"nested/003.sql": {Data: []byte("SELECT 3;")},
	}

	migrations, err := NewMigrator(nil, fsys).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	want := []int{1, 2, 10}
	for i, v := range want {
		if migrations[i].Version != v {
			t.Errorf("migration[%d]: expected version %d, got %d", i, v, migrations[i].Version)
		}
	}
	if migrations[0].Name != "001_core.sql" || migrations[0].SQL != "CREATE TABLE users (id TEXT PRIMARY KEY);" {
		t.Errorf("unexpected first migration: %+v", migrations[0])
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"001_core.sql": {Data: []byte("SELECT 1;")},
		"01_again.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := NewMigrator(nil, fsys).LoadMigrations(); err == nil {
		t.Error("expected error for duplicate versions")
	}
}

func TestLoadMigrations_Empty(t *testing.T) {
	migrations, err := NewMigrator(nil, fstest.MapFS{}).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 0 {
		t.Errorf("expected 0 migrations, got %d", len(migrations))
	}
}

func TestPendingAndStatus(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Name: "001_core.sql"},
		{Version: 2, Name: "002_seed.sql"},
		{Version: 3, Name: "003_history.sql"},
	}
	at := time.Date(2025, 4, 20, 9, 0, 0, 0, time.UTC)
	applied := map[int]time.Time{1: at}

	pending := Pending(migrations, applied)
	if len(pending) != 2 || pending[0].Version != 2 || pending[1].Version != 3 {
		t.Errorf("unexpected pending set: %+v", pending)
	}

	statuses := BuildStatus(migrations, applied)
	if !statuses[0].Applied || statuses[0].AppliedAt == nil || !statuses[0].AppliedAt.Equal(at) {
		t.Errorf("expected 001 applied at %s, got %+v", at, statuses[0])
	}
	if statuses[1].Applied || statuses[1].AppliedAt != nil {
		t.Errorf("expected 002 pending, got %+v", statuses[1])
	}
}

func TestValidSchema(t *testing.T) {
	for _, s := range []string{"public", "seva", "tenant_ap001"} {
		if err := validSchema(s); err != nil {
			t.Errorf("validSchema(%q) unexpected error: %v", s, err)
		}
	}
	for _, s := range []string{"", "1abc", "public; DROP TABLE users", "a-b"} {
		if err := validSchema(s); err == nil {
			t.Errorf("validSchema(%q) expected error", s)
		}
	}
}
