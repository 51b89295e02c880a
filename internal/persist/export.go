package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kinship-app/kinship/internal/store"
)

// FormatVersion is the interchange document version tag.
const FormatVersion = 1

// ErrInvalidDocument is returned when an import payload is missing either
// of its two required lists. The whole import fails; nothing is written.
var ErrInvalidDocument = errors.New("interchange document must contain contacts and connections lists")

// Document is the export/import interchange format, the sole
// externally-visible data format. It carries every contact and every
// connection row, both mirror directions.
type Document struct {
	Version     int                 `json:"version"`
	ExportedAt  string              `json:"exportedAt"`
	Contacts    []*store.Contact    `json:"contacts"`
	Connections []*store.Connection `json:"connections"`
}

// importDocument distinguishes absent lists from empty ones.
type importDocument struct {
	Version     int                 `json:"version"`
	Contacts    *[]store.Contact    `json:"contacts"`
	Connections *[]store.Connection `json:"connections"`
}

// SkippedRow records one row the import left out and why.
type SkippedRow struct {
	Kind   string `json:"kind"` // "contact" or "connection"
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// ImportResult enumerates what an import accepted and skipped, so callers
// can surface it instead of reading logs.
type ImportResult struct {
	ContactsAdded      int          `json:"contactsAdded"`
	ContactsSkipped    int          `json:"contactsSkipped"`
	ConnectionsAdded   int          `json:"connectionsAdded"`
	ConnectionsSkipped int          `json:"connectionsSkipped"`
	Skipped            []SkippedRow `json:"skipped,omitempty"`
}

// Export returns the full database as an interchange document.
func (s *Service) Export() (*Document, error) {
	contacts, err := s.store.ListContacts()
	if err != nil {
		return nil, err
	}
	connections, err := s.store.ListConnections()
	if err != nil {
		return nil, err
	}

	// Empty lists marshal as [], never null.
	if contacts == nil {
		contacts = []*store.Contact{}
	}
	if connections == nil {
		connections = []*store.Connection{}
	}

	return &Document{
		Version:     FormatVersion,
		ExportedAt:  time.Now().UTC().Format(time.RFC3339),
		Contacts:    contacts,
		Connections: connections,
	}, nil
}

// ExportJSON returns the interchange document serialized for download.
func (s *Service) ExportJSON() ([]byte, error) {
	doc, err := s.Export()
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Import merges an interchange document into the current database.
//
// The merge is additive and idempotent on ids: a row whose id already
// exists is skipped and the existing row kept unmodified, so reimporting
// the same export is a no-op. A row that violates a storage constraint
// (referenced contact absent, duplicate pair) is skipped and recorded;
// the rest of the import continues. One flush after all rows.
func (s *Service) Import(data []byte) (*ImportResult, error) {
	var doc importDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse interchange document: %w", err)
	}
	if doc.Contacts == nil || doc.Connections == nil {
		return nil, ErrInvalidDocument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res := &ImportResult{}

	for _, c := range *doc.Contacts {
		existing, err := s.store.GetContact(c.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			res.skip("contact", c.ID, "id already exists")
			continue
		}

		contact := c
		if err := s.store.CreateContact(&contact); err != nil {
			res.skip("contact", c.ID, err.Error())
			s.log.Warn("import: skipped contact", zap.String("id", c.ID), zap.Error(err))
			continue
		}
		res.ContactsAdded++
	}

	for _, conn := range *doc.Connections {
		has, err := s.store.HasConnectionID(conn.ID)
		if err != nil {
			return nil, err
		}
		if has {
			res.skip("connection", conn.ID, "id already exists")
			continue
		}

		row := conn
		if err := s.store.InsertConnection(&row); err != nil {
			res.skip("connection", conn.ID, err.Error())
			s.log.Warn("import: skipped connection", zap.String("id", conn.ID), zap.Error(err))
			continue
		}
		res.ConnectionsAdded++
	}

	if err := s.flushLocked(); err != nil {
		return nil, err
	}

	s.log.Info("import complete",
		zap.Int("contactsAdded", res.ContactsAdded),
		zap.Int("contactsSkipped", res.ContactsSkipped),
		zap.Int("connectionsAdded", res.ConnectionsAdded),
		zap.Int("connectionsSkipped", res.ConnectionsSkipped))

	return res, nil
}

func (r *ImportResult) skip(kind, id, reason string) {
	switch kind {
	case "contact":
		r.ContactsSkipped++
	case "connection":
		r.ConnectionsSkipped++
	}
	r.Skipped = append(r.Skipped, SkippedRow{Kind: kind, ID: id, Reason: reason})
}
