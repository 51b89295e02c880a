// Package store provides persistence for Kinship.
// This file contains the in-memory implementation used in tests.
package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemStore is an in-memory implementation of Storer for testing. It
// emulates the storage-level constraints the SQLite schema enforces
// (unique ids, unique pairs, referential integrity, no self-loops).
type MemStore struct {
	mu          sync.RWMutex
	contacts    map[string]*Contact
	connections map[string]*Connection
	positions   map[string]*NodePosition
}

// NewMemStore creates a new in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		contacts:    make(map[string]*Contact),
		connections: make(map[string]*Connection),
		positions:   make(map[string]*NodePosition),
	}
}

// Close is a no-op for MemStore.
func (s *MemStore) Close() error {
	return nil
}

// =============================================================================
// Contact CRUD
// =============================================================================

func (s *MemStore) CreateContact(c *Contact) error {
	if c.Name == "" {
		return ErrNameRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.contacts[c.ID]; exists {
		return fmt.Errorf("contact id %q already exists", c.ID)
	}

	copy := *c
	s.contacts[c.ID] = &copy
	return nil
}

func (s *MemStore) GetContact(id string) (*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.contacts[id]; ok {
		copy := *c
		return &copy, nil
	}
	return nil, nil
}

func (s *MemStore) ListContacts() ([]*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		copy := *c
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *MemStore) SearchContacts(query string) ([]*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	var result []*Contact
	for _, c := range s.contacts {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			copy := *c
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *MemStore) UpdateContact(c *Contact) error {
	if c.Name == "" {
		return ErrNameRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.contacts[c.ID]
	if !ok {
		return ErrNotFound
	}

	// id and created_at are immutable
	updated := *c
	updated.CreatedAt = existing.CreatedAt
	s.contacts[c.ID] = &updated
	return nil
}

func (s *MemStore) DeleteContact(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for connID, conn := range s.connections {
		if conn.FromContactID == id || conn.ToContactID == id {
			delete(s.connections, connID)
		}
	}
	delete(s.positions, id)
	delete(s.contacts, id)
	return nil
}

func (s *MemStore) CountContacts() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contacts), nil
}

// =============================================================================
// Connection CRUD
// =============================================================================

func (s *MemStore) CreateConnection(out, back *Connection) error {
	if out.Label == "" {
		return ErrLabelRequired
	}
	if out.FromContactID == out.ToContactID {
		return ErrSelfConnection
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pairExistsLocked(out.FromContactID, out.ToContactID) {
		return ErrDuplicateConnection
	}

	for _, conn := range []*Connection{out, back} {
		if err := s.insertConnectionLocked(conn); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemStore) InsertConnection(conn *Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertConnectionLocked(conn)
}

// insertConnectionLocked emulates the SQLite constraints on a raw row
// insert. Callers hold the write lock.
func (s *MemStore) insertConnectionLocked(conn *Connection) error {
	if _, exists := s.connections[conn.ID]; exists {
		return fmt.Errorf("connection id %q already exists", conn.ID)
	}
	if conn.FromContactID == conn.ToContactID {
		return fmt.Errorf("self-loop violates connection check constraint")
	}
	if _, ok := s.contacts[conn.FromContactID]; !ok {
		return fmt.Errorf("contact %q does not exist", conn.FromContactID)
	}
	if _, ok := s.contacts[conn.ToContactID]; !ok {
		return fmt.Errorf("contact %q does not exist", conn.ToContactID)
	}
	for _, existing := range s.connections {
		if existing.FromContactID == conn.FromContactID && existing.ToContactID == conn.ToContactID {
			return fmt.Errorf("pair (%s, %s) violates unique constraint", conn.FromContactID, conn.ToContactID)
		}
	}

	copy := *conn
	s.connections[conn.ID] = &copy
	return nil
}

func (s *MemStore) ConnectionExists(aID, bID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pairExistsLocked(aID, bID), nil
}

func (s *MemStore) pairExistsLocked(aID, bID string) bool {
	for _, conn := range s.connections {
		if (conn.FromContactID == aID && conn.ToContactID == bID) ||
			(conn.FromContactID == bID && conn.ToContactID == aID) {
			return true
		}
	}
	return false
}

func (s *MemStore) HasConnectionID(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.connections[id]
	return ok, nil
}

func (s *MemStore) UpdateConnectionLabel(aID, bID, label string) error {
	if label == "" {
		return ErrLabelRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	for _, conn := range s.connections {
		if (conn.FromContactID == aID && conn.ToContactID == bID) ||
			(conn.FromContactID == bID && conn.ToContactID == aID) {
			conn.Label = label
			updated++
		}
	}
	if updated == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MemStore) DeleteConnection(aID, bID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, conn := range s.connections {
		if (conn.FromContactID == aID && conn.ToContactID == bID) ||
			(conn.FromContactID == bID && conn.ToContactID == aID) {
			delete(s.connections, id)
			deleted++
		}
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MemStore) ListConnections() ([]*Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Connection, 0, len(s.connections))
	for _, conn := range s.connections {
		copy := *conn
		result = append(result, &copy)
	}
	sortConnections(result)
	return result, nil
}

func (s *MemStore) ListConnectionsForContact(contactID string) ([]*ContactLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var links []*ContactLink
	for _, conn := range s.connections {
		if conn.FromContactID != contactID {
			continue
		}
		other, ok := s.contacts[conn.ToContactID]
		if !ok {
			continue
		}
		links = append(links, &ContactLink{
			ConnectionID: conn.ID,
			ContactID:    other.ID,
			Name:         other.Name,
			Label:        conn.Label,
			CreatedAt:    conn.CreatedAt,
		})
	}
	sort.Slice(links, func(i, j int) bool { return links[i].Name < links[j].Name })
	return links, nil
}

func (s *MemStore) ListUniqueConnections() ([]*Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Connection
	for _, conn := range s.connections {
		if conn.FromContactID < conn.ToContactID {
			copy := *conn
			result = append(result, &copy)
		}
	}
	sortConnections(result)
	return result, nil
}

func (s *MemStore) CountConnections() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections), nil
}

func sortConnections(conns []*Connection) {
	sort.Slice(conns, func(i, j int) bool {
		if conns[i].CreatedAt != conns[j].CreatedAt {
			return conns[i].CreatedAt < conns[j].CreatedAt
		}
		return conns[i].ID < conns[j].ID
	})
}

// =============================================================================
// Node positions
// =============================================================================

func (s *MemStore) SavePositions(positions []*NodePosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range positions {
		if _, ok := s.contacts[p.ContactID]; !ok {
			return fmt.Errorf("contact %q does not exist", p.ContactID)
		}
		copy := *p
		s.positions[p.ContactID] = &copy
	}
	return nil
}

func (s *MemStore) GetPositions() ([]*NodePosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*NodePosition, 0, len(s.positions))
	for _, p := range s.positions {
		copy := *p
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ContactID < result[j].ContactID })
	return result, nil
}

func (s *MemStore) ClearPositions() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions = make(map[string]*NodePosition)
	return nil
}

// Compile-time interface check
var _ Storer = (*MemStore)(nil)
