package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SQLitePersister keeps the store snapshot in a single SQLite table, one
// JSON payload per bucket.
type SQLitePersister struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

var sqliteBuckets = []string{"users", "requests", "orders", "symptoms", "history", "counters"}

func NewSQLitePersister(path string) (*SQLitePersister, error) {
	if path == "" {
		path = "seva.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	return &SQLitePersister{db: db, path: path}, nil
}

// Load reads the last saved snapshot. ok is false when nothing was saved yet.
func (p *SQLitePersister) Load(ctx context.Context) (snap Snapshot, ok bool, err error) {
	rows, err := p.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return snap, false, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return snap, false, fmt.Errorf("scan: %w", err)
		}
		target := snap.bucket(bucket)
		if target == nil {
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return snap, false, fmt.Errorf("decode %s: %w", bucket, err)
		}
		ok = true
	}
	if err := rows.Err(); err != nil {
		return snap, false, err
	}
	return snap, ok, nil
}

// Save writes every bucket of snap in one transaction.
func (p *SQLitePersister) Save(ctx context.Context, snap Snapshot) (retErr error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range sqliteBuckets {
		data, err := json.Marshal(snap.bucket(bucket))
		if err != nil {
			return fmt.Errorf("encode %s: %w", bucket, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	return tx.Commit()
}

func (p *SQLitePersister) Close() error { return p.db.Close() }

// DB exposes the underlying sql.DB for health checks.
func (p *SQLitePersister) DB() *sql.DB { return p.db }

func (p *SQLitePersister) Path() string { return p.path }

func (s *Snapshot) bucket(name string) any {
	switch name {
	case "users":
		return &s.Users
	case "requests":
		return &s.Requests
	case "orders":
		return &s.Orders
	case "symptoms":
		return &s.Symptoms
	case "history":
		return &s.History
	case "counters":
		return &s.Counters
	}
	return nil
}

// OpenSQLite returns a store backed by the SQLite file at path. A file
// without saved state is seeded with Fixtures.
func OpenSQLite(ctx context.Context, path string) (*Store, *SQLitePersister, error) {
	p, err := NewSQLitePersister(path)
	if err != nil {
		return nil, nil, err
	}
	s := New()
	snap, ok, err := p.Load(ctx)
	if err != nil {
		_ = p.Close()
		return nil, nil, err
	}
	if ok {
		s.Import(snap)
	} else if err := p.Save(ctx, s.Export()); err != nil {
		_ = p.Close()
		return nil, nil, fmt.Errorf("seed sqlite: %w", err)
	}
	s.SetPersister(p)
	return s, p, nil
}
