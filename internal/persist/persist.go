// Package persist coordinates the embedded database with the durable blob
// store: load-or-create at startup, and mutate-then-flush on every write
// path. It owns the engine and store handles; consumers receive a *Service
// by reference, never ambient globals.
package persist

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kinship-app/kinship/internal/blob"
	"github.com/kinship-app/kinship/internal/store"
)

// Service is the persistence orchestrator and the repository surface the
// presentation layer consumes. Every mutating call flushes the serialized
// database to the blob store exactly once before returning; the mutation
// is not durable until then.
//
// Mutation and flush run under one lock, so two logically-concurrent
// writers (for example the position autosave timer and a contact save)
// cannot interleave between a mutation and its flush.
type Service struct {
	mu    sync.Mutex
	store *store.SQLiteStore
	blobs *blob.Store
	log   *zap.Logger
}

// Open loads the persisted snapshot and opens the database from it, or
// creates a fresh database with the full schema when no snapshot exists.
// An unreadable store or a corrupt snapshot is fatal: the error is
// returned and nothing is created, so the persisted data is never
// silently discarded.
func Open(blobs *blob.Store, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var st *store.SQLiteStore
	data, err := blobs.Load()
	switch {
	case errors.Is(err, blob.ErrNotFound):
		st, err = store.NewSQLiteStore(logger)
		if err != nil {
			return nil, fmt.Errorf("create database: %w", err)
		}
		logger.Info("no snapshot found, created fresh database")
	case err != nil:
		return nil, fmt.Errorf("load snapshot: %w", err)
	default:
		st, err = store.NewSQLiteStoreFromSnapshot(data, logger)
		if err != nil {
			return nil, fmt.Errorf("open snapshot: %w", err)
		}
		logger.Info("opened database from snapshot", zap.Int("bytes", len(data)))
	}

	return &Service{store: st, blobs: blobs, log: logger}, nil
}

// Flush serializes the entire current database and overwrites the single
// persisted record. Safe to call at any time; each flush is a full
// snapshot, so concurrent flushes are order-independent.
func (s *Service) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Service) flushLocked() error {
	data, err := s.store.Snapshot()
	if err != nil {
		return err
	}
	return s.blobs.Save(data)
}

// Close closes the underlying database. It does not flush; callers flush
// as part of each mutation.
func (s *Service) Close() error {
	return s.store.Close()
}

// Store exposes the underlying Storer for read-only consumers like the
// graph view builder.
func (s *Service) Store() store.Storer {
	return s.store
}

func now() int64 {
	return time.Now().UnixMilli()
}

// =============================================================================
// Contacts
// =============================================================================

// CreateContact creates a contact with a generated id and timestamp.
func (s *Service) CreateContact(name, imageURL, imageBlob, notes string) (*store.Contact, error) {
	c := &store.Contact{
		ID:        uuid.NewString(),
		Name:      name,
		ImageURL:  imageURL,
		ImageBlob: imageBlob,
		Notes:     notes,
		CreatedAt: now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.CreateContact(c); err != nil {
		return nil, err
	}
	if err := s.flushLocked(); err != nil {
		return nil, err
	}
	return c, nil
}

// GetContact returns a contact by id, or (nil, nil) when absent.
func (s *Service) GetContact(id string) (*store.Contact, error) {
	return s.store.GetContact(id)
}

// ListContacts returns all contacts.
func (s *Service) ListContacts() ([]*store.Contact, error) {
	return s.store.ListContacts()
}

// SearchContacts returns contacts whose name contains query,
// case-insensitively.
func (s *Service) SearchContacts(query string) ([]*store.Contact, error) {
	return s.store.SearchContacts(query)
}

// UpdateContact replaces every contact field except id and created_at.
func (s *Service) UpdateContact(c *store.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.UpdateContact(c); err != nil {
		return err
	}
	return s.flushLocked()
}

// DeleteContact removes a contact, its connections in both directions,
// and its saved position, then flushes once.
func (s *Service) DeleteContact(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.DeleteContact(id); err != nil {
		return err
	}
	return s.flushLocked()
}

// =============================================================================
// Connections
// =============================================================================

// CreateConnection records a symmetric labeled relationship between two
// contacts as a mirror pair of rows. Self-connections and duplicate pairs
// are rejected with named errors. Returns the from→to row.
func (s *Service) CreateConnection(fromID, toID, label string) (*store.Connection, error) {
	ts := now()
	out := &store.Connection{
		ID:            uuid.NewString(),
		FromContactID: fromID,
		ToContactID:   toID,
		Label:         label,
		CreatedAt:     ts,
	}
	back := &store.Connection{
		ID:            uuid.NewString(),
		FromContactID: toID,
		ToContactID:   fromID,
		Label:         label,
		CreatedAt:     ts,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.CreateConnection(out, back); err != nil {
		return nil, err
	}
	if err := s.flushLocked(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateConnection changes the label of both mirror rows of the pair.
func (s *Service) UpdateConnection(aID, bID, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.UpdateConnectionLabel(aID, bID, label); err != nil {
		return err
	}
	return s.flushLocked()
}

// DeleteConnection removes both mirror rows of the pair.
func (s *Service) DeleteConnection(aID, bID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.DeleteConnection(aID, bID); err != nil {
		return err
	}
	return s.flushLocked()
}

// ConnectionExists reports whether a connection exists between the pair,
// in either direction.
func (s *Service) ConnectionExists(aID, bID string) (bool, error) {
	return s.store.ConnectionExists(aID, bID)
}

// ListConnectionsForContact returns the contact's relationships, each
// naming the other end.
func (s *Service) ListConnectionsForContact(contactID string) ([]*store.ContactLink, error) {
	return s.store.ListConnectionsForContact(contactID)
}

// ListUniqueConnections returns one row per undirected pair.
func (s *Service) ListUniqueConnections() ([]*store.Connection, error) {
	return s.store.ListUniqueConnections()
}

// =============================================================================
// Node positions
// =============================================================================

// SavePositions upserts every entry, then flushes once regardless of list
// size.
func (s *Service) SavePositions(positions []*store.NodePosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.SavePositions(positions); err != nil {
		return err
	}
	return s.flushLocked()
}

// GetPositions returns all saved positions.
func (s *Service) GetPositions() ([]*store.NodePosition, error) {
	return s.store.GetPositions()
}

// ClearPositions deletes all saved positions and flushes.
func (s *Service) ClearPositions() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.ClearPositions(); err != nil {
		return err
	}
	return s.flushLocked()
}
