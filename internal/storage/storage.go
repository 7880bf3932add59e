package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

var (
	ErrSiteNotFound     = errors.New("site not found")
	ErrDeviceNotFound   = errors.New("device not found")
	ErrPortNotFound     = errors.New("port not found")
	ErrVLANNotFound     = errors.New("vlan not found")
	ErrLabelNotFound    = errors.New("label not found")
	ErrBlockNotFound    = errors.New("address block not found")
	ErrAddressNotFound  = errors.New("address not found")
	ErrLinkNotFound     = errors.New("link not found")
	ErrProviderNotFound = errors.New("provider not found")
	ErrCircuitNotFound  = errors.New("circuit not found")
	ErrCableNotFound    = errors.New("cable not found")
)

// Store is the SQLite-backed inventory store. All reads and writes go
// through a Tx; the store serializes transactions so that at most one
// operation runs against the inventory at a time.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open opens (or creates) the inventory database under dataDir
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataDir, "linkd.db")

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("reading schema: %w", err)
	}

	_, err = s.db.Exec(string(schema))
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Tx is a single inventory transaction. Every operation acquires one
// at its start and releases it through exactly one of Commit or
// Rollback on every exit path.
type Tx struct {
	store *Store
	tx    *sql.Tx
	done  bool
}

// Begin starts a transaction. The store-level lock is held until the
// transaction finishes, which keeps operations single-writer.
func (s *Store) Begin() (*Tx, error) {
	s.mu.Lock()

	tx, err := s.db.Begin()
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	return &Tx{store: s, tx: tx}, nil
}

// Commit commits the transaction
func (t *Tx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.store.mu.Unlock()
	return t.tx.Commit()
}

// Rollback rolls back the transaction. Safe to call after Commit.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.store.mu.Unlock()
	return t.tx.Rollback()
}
