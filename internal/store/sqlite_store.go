// Package store provides SQLite-backed persistence for Kinship.
// Uses ncruces/go-sqlite3/driver which provides a database/sql interface.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	sqlitedriver "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/ncruces/go-sqlite3/ext/serdes"
	"github.com/ncruces/go-sqlite3/vfs/memdb"
	"go.uber.org/zap"
)

// ErrCorruptSnapshot is returned when a persisted snapshot cannot be
// opened as a database. The snapshot is left untouched; no fallback to a
// blank database is performed.
var ErrCorruptSnapshot = errors.New("persisted snapshot is not a valid database")

// SQLiteStore is the SQLite-backed data store. The live database sits on
// the memdb VFS so it can be opened from, and serialized back to, a single
// binary blob. Thread-safe for concurrent WASM callbacks.
type SQLiteStore struct {
	mu      sync.RWMutex
	db      *sql.DB
	memName string
	log     *zap.Logger
}

// schema defines all tables for the contact graph.
// Foreign keys are enforced (the DSN enables them) so connection and
// position rows can never outlive their contacts.
const schema = `
-- Contacts (graph nodes)
CREATE TABLE IF NOT EXISTS contacts (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    image_url TEXT,
    image_blob TEXT,
    notes TEXT,
    created_at INTEGER NOT NULL
);

-- Connections (graph edges)
-- A relationship is two mirror rows: (A,B) and (B,A). The unique pair
-- constraint plus the self-loop CHECK enforce the invariants at the
-- storage level; application pre-checks exist only for friendly errors.
CREATE TABLE IF NOT EXISTS connections (
    id TEXT PRIMARY KEY,
    from_contact_id TEXT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
    to_contact_id TEXT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
    label TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    UNIQUE (from_contact_id, to_contact_id),
    CHECK (from_contact_id <> to_contact_id)
);

CREATE INDEX IF NOT EXISTS idx_connections_from ON connections(from_contact_id);
CREATE INDEX IF NOT EXISTS idx_connections_to ON connections(to_contact_id);

-- Saved force-layout coordinates, one row per contact
CREATE TABLE IF NOT EXISTS node_positions (
    contact_id TEXT PRIMARY KEY REFERENCES contacts(id) ON DELETE CASCADE,
    x REAL NOT NULL,
    y REAL NOT NULL,
    fixed INTEGER NOT NULL DEFAULT 1
);
`

// NewSQLiteStore creates a fresh, empty store.
func NewSQLiteStore(logger *zap.Logger) (*SQLiteStore, error) {
	return newSQLiteStore(nil, logger)
}

// NewSQLiteStoreFromSnapshot opens a store from a serialized snapshot.
// A snapshot that cannot be opened yields ErrCorruptSnapshot.
func NewSQLiteStoreFromSnapshot(snapshot []byte, logger *zap.Logger) (*SQLiteStore, error) {
	s, err := newSQLiteStore(snapshot, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return s, nil
}

func newSQLiteStore(snapshot []byte, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Unique memdb name so independent stores never share state.
	name := "kinship-" + uuid.NewString()
	memdb.Create(name, snapshot)

	dsn := "file:/" + name + "?vfs=memdb&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		memdb.Delete(name)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStore{db: db, memName: name, log: logger}
	if err := s.EnsureSchema(); err != nil {
		db.Close()
		memdb.Delete(name)
		return nil, err
	}

	return s, nil
}

// EnsureSchema creates all tables and indexes if absent. Idempotent: safe
// on a fully-migrated database and on a legacy database that predates the
// node_positions table.
func (s *SQLiteStore) EnsureSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Snapshot serializes the entire current database to a binary blob.
func (s *SQLiteStore) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	var data []byte
	err = conn.Raw(func(driverConn any) error {
		c, ok := driverConn.(sqlitedriver.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		var serr error
		data, serr = serdes.Serialize(c.Raw(), "main")
		return serr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize database: %w", err)
	}

	return data, nil
}

// Close closes the database connection and releases the shared memory
// database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	memdb.Delete(s.memName)
	return err
}

// =============================================================================
// Contact CRUD
// =============================================================================

// CreateContact inserts a contact row verbatim.
func (s *SQLiteStore) CreateContact(c *Contact) error {
	if c.Name == "" {
		return ErrNameRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO contacts (id, name, image_url, image_blob, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.ImageURL, c.ImageBlob, c.Notes, c.CreatedAt)

	return err
}

// GetContact retrieves a contact by ID. Returns (nil, nil) when absent.
func (s *SQLiteStore) GetContact(id string) (*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c Contact
	err := s.db.QueryRow(`
		SELECT id, name, image_url, image_blob, notes, created_at
		FROM contacts WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.ImageURL, &c.ImageBlob, &c.Notes, &c.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &c, nil
}

// ListContacts returns all contacts ordered by name.
func (s *SQLiteStore) ListContacts() ([]*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, name, image_url, image_blob, notes, created_at
		FROM contacts ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanContacts(rows)
}

// SearchContacts returns contacts whose name contains the query,
// case-insensitively. The query is a literal substring; LIKE wildcards
// in it are escaped.
func (s *SQLiteStore) SearchContacts(query string) ([]*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, name, image_url, image_blob, notes, created_at
		FROM contacts WHERE name LIKE ? ESCAPE '\' ORDER BY name
	`, "%"+escapeLike(query)+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanContacts(rows)
}

// UpdateContact replaces every field except id and created_at.
func (s *SQLiteStore) UpdateContact(c *Contact) error {
	if c.Name == "" {
		return ErrNameRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE contacts SET name = ?, image_url = ?, image_blob = ?, notes = ?
		WHERE id = ?
	`, c.Name, c.ImageURL, c.ImageBlob, c.Notes, c.ID)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteContact removes a contact, every connection row mentioning it, and
// its saved position. The explicit deletes mirror the foreign-key cascade;
// both run so the behavior does not depend on the pragma being set.
func (s *SQLiteStore) DeleteContact(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`
		DELETE FROM connections WHERE from_contact_id = ? OR to_contact_id = ?
	`, id, id); err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM node_positions WHERE contact_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM contacts WHERE id = ?`, id)
	return err
}

// CountContacts returns the total number of contacts.
func (s *SQLiteStore) CountContacts() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM contacts`).Scan(&count)
	return count, err
}

func scanContacts(rows *sql.Rows) ([]*Contact, error) {
	var contacts []*Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.ImageURL, &c.ImageBlob, &c.Notes, &c.CreatedAt); err != nil {
			return nil, err
		}
		contacts = append(contacts, &c)
	}
	return contacts, rows.Err()
}

// =============================================================================
// Connection CRUD
// =============================================================================

// CreateConnection inserts the mirror pair for one relationship. Both rows
// go in a single transaction so a half-created pair can never be observed.
func (s *SQLiteStore) CreateConnection(out, back *Connection) error {
	if out.Label == "" {
		return ErrLabelRequired
	}
	if out.FromContactID == out.ToContactID {
		return ErrSelfConnection
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.connectionExistsLocked(out.FromContactID, out.ToContactID)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateConnection
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, conn := range []*Connection{out, back} {
		if _, err := tx.Exec(`
			INSERT INTO connections (id, from_contact_id, to_contact_id, label, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, conn.ID, conn.FromContactID, conn.ToContactID, conn.Label, conn.CreatedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// InsertConnection inserts a single connection row verbatim. Used by the
// import path, where constraint violations are reported row by row.
func (s *SQLiteStore) InsertConnection(conn *Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO connections (id, from_contact_id, to_contact_id, label, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, conn.ID, conn.FromContactID, conn.ToContactID, conn.Label, conn.CreatedAt)
	return err
}

// ConnectionExists reports whether a connection exists between the pair,
// in either direction.
func (s *SQLiteStore) ConnectionExists(aID, bID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connectionExistsLocked(aID, bID)
}

func (s *SQLiteStore) connectionExistsLocked(aID, bID string) (bool, error) {
	var one int
	err := s.db.QueryRow(`
		SELECT 1 FROM connections
		WHERE (from_contact_id = ? AND to_contact_id = ?)
		   OR (from_contact_id = ? AND to_contact_id = ?)
		LIMIT 1
	`, aID, bID, bID, aID).Scan(&one)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// HasConnectionID reports whether any row carries the given id.
func (s *SQLiteStore) HasConnectionID(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var one int
	err := s.db.QueryRow(`SELECT 1 FROM connections WHERE id = ? LIMIT 1`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateConnectionLabel changes the label of both mirror rows of the pair.
func (s *SQLiteStore) UpdateConnectionLabel(aID, bID, label string) error {
	if label == "" {
		return ErrLabelRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE connections SET label = ?
		WHERE (from_contact_id = ? AND to_contact_id = ?)
		   OR (from_contact_id = ? AND to_contact_id = ?)
	`, label, aID, bID, bID, aID)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConnection removes both mirror rows of the pair.
func (s *SQLiteStore) DeleteConnection(aID, bID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		DELETE FROM connections
		WHERE (from_contact_id = ? AND to_contact_id = ?)
		   OR (from_contact_id = ? AND to_contact_id = ?)
	`, aID, bID, bID, aID)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListConnections returns every connection row, both mirror directions.
func (s *SQLiteStore) ListConnections() ([]*Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, from_contact_id, to_contact_id, label, created_at
		FROM connections ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanConnections(rows)
}

// ListConnectionsForContact returns one entry per relationship the contact
// participates in, naming the contact at the other end.
func (s *SQLiteStore) ListConnectionsForContact(contactID string) ([]*ContactLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT c.id, c.to_contact_id, p.name, c.label, c.created_at
		FROM connections c
		JOIN contacts p ON p.id = c.to_contact_id
		WHERE c.from_contact_id = ?
		ORDER BY p.name
	`, contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*ContactLink
	for rows.Next() {
		var l ContactLink
		if err := rows.Scan(&l.ConnectionID, &l.ContactID, &l.Name, &l.Label, &l.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, &l)
	}
	return links, rows.Err()
}

// ListUniqueConnections returns exactly one row per undirected pair.
// The mirror invariant guarantees each pair has one row with from < to.
func (s *SQLiteStore) ListUniqueConnections() ([]*Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, from_contact_id, to_contact_id, label, created_at
		FROM connections
		WHERE from_contact_id < to_contact_id
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanConnections(rows)
}

// CountConnections returns the total number of connection rows.
func (s *SQLiteStore) CountConnections() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM connections`).Scan(&count)
	return count, err
}

func scanConnections(rows *sql.Rows) ([]*Connection, error) {
	var conns []*Connection
	for rows.Next() {
		var c Connection
		if err := rows.Scan(&c.ID, &c.FromContactID, &c.ToContactID, &c.Label, &c.CreatedAt); err != nil {
			return nil, err
		}
		conns = append(conns, &c)
	}
	return conns, rows.Err()
}

// =============================================================================
// Node positions
// =============================================================================

// SavePositions upserts every entry, keyed by contact id.
func (s *SQLiteStore) SavePositions(positions []*NodePosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range positions {
		if _, err := s.db.Exec(`
			INSERT INTO node_positions (contact_id, x, y, fixed)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(contact_id) DO UPDATE SET
				x = excluded.x,
				y = excluded.y,
				fixed = excluded.fixed
		`, p.ContactID, p.X, p.Y, boolToInt(p.Fixed)); err != nil {
			return err
		}
	}
	return nil
}

// GetPositions returns all saved positions.
func (s *SQLiteStore) GetPositions() ([]*NodePosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT contact_id, x, y, fixed FROM node_positions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*NodePosition
	for rows.Next() {
		var p NodePosition
		var fixed int
		if err := rows.Scan(&p.ContactID, &p.X, &p.Y, &fixed); err != nil {
			return nil, err
		}
		p.Fixed = fixed != 0
		positions = append(positions, &p)
	}
	return positions, rows.Err()
}

// ClearPositions deletes all saved positions.
func (s *SQLiteStore) ClearPositions() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM node_positions`)
	return err
}

// =============================================================================
// Helpers
// =============================================================================

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// escapeLike makes a user string safe as a literal inside a LIKE pattern
// with ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Compile-time interface check
var _ Storer = (*SQLiteStore)(nil)
