// Package store provides SQLite-backed persistence for Kinship.
// This is the data layer behind the contact graph: contacts, their
// labeled connections, and saved force-layout positions.
package store

import "errors"

// Sentinel errors surfaced to callers as named failures.
var (
	// ErrNameRequired is returned when a contact has an empty display name.
	ErrNameRequired = errors.New("contact name is required")

	// ErrLabelRequired is returned when a connection has an empty label.
	ErrLabelRequired = errors.New("connection label is required")

	// ErrSelfConnection is returned when both ends of a connection are the
	// same contact.
	ErrSelfConnection = errors.New("cannot connect a contact to itself")

	// ErrDuplicateConnection is returned when a connection already exists
	// between the pair, in either direction.
	ErrDuplicateConnection = errors.New("connection already exists between these contacts")

	// ErrNotFound is returned by mutating operations that matched no rows.
	ErrNotFound = errors.New("not found")
)

// Contact is a person record, the node of the graph.
// JSON tags follow the interchange document format.
type Contact struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ImageURL  string `json:"image_url,omitempty"`
	ImageBlob string `json:"image_blob,omitempty"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// Connection is one directed row of a symmetric relationship.
// Every relationship is materialized as two mirror rows, (A,B) and (B,A),
// with distinct ids, so symmetry holds by construction.
type Connection struct {
	ID            string `json:"id"`
	FromContactID string `json:"from_contact_id"`
	ToContactID   string `json:"to_contact_id"`
	Label         string `json:"label"`
	CreatedAt     int64  `json:"created_at"`
}

// NodePosition is a saved graph-layout coordinate for one contact.
type NodePosition struct {
	ContactID string  `json:"contact_id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Fixed     bool    `json:"fixed"`
}

// ContactLink is one entry of a contact's connection list: the other end
// of the relationship, resolved to a name, plus the relationship label.
type ContactLink struct {
	ConnectionID string `json:"connection_id"`
	ContactID    string `json:"contact_id"`
	Name         string `json:"name"`
	Label        string `json:"label"`
	CreatedAt    int64  `json:"created_at"`
}

// Storer defines the interface for the data layer.
// This allows swapping between MemStore (testing) and SQLiteStore (production).
type Storer interface {
	// Contacts
	CreateContact(c *Contact) error
	GetContact(id string) (*Contact, error)
	ListContacts() ([]*Contact, error)
	SearchContacts(query string) ([]*Contact, error)
	UpdateContact(c *Contact) error
	DeleteContact(id string) error
	CountContacts() (int, error)

	// Connections
	CreateConnection(out, back *Connection) error
	InsertConnection(conn *Connection) error
	ConnectionExists(aID, bID string) (bool, error)
	HasConnectionID(id string) (bool, error)
	UpdateConnectionLabel(aID, bID, label string) error
	DeleteConnection(aID, bID string) error
	ListConnections() ([]*Connection, error)
	ListConnectionsForContact(contactID string) ([]*ContactLink, error)
	ListUniqueConnections() ([]*Connection, error)
	CountConnections() (int, error)

	// Node positions
	SavePositions(positions []*NodePosition) error
	GetPositions() ([]*NodePosition, error)
	ClearPositions() error

	// Lifecycle
	Close() error
}
