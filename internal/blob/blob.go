// Package blob wraps a browser-local filesystem with a single-record
// store: one opaque binary snapshot under a fixed name. In the browser the
// backing hackpadfs.FS is IndexedDB; tests use mem and the CLI uses os.
package blob

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hack-pad/hackpadfs"
	"go.uber.org/zap"
)

// DefaultName is the fixed record name the serialized database lives under.
const DefaultName = "kinship.db"

// ErrNotFound is returned by Load when no snapshot has been saved yet.
var ErrNotFound = errors.New("no persisted snapshot")

// Store saves and loads one binary blob under a fixed name.
type Store struct {
	mu   sync.Mutex
	fs   hackpadfs.FS
	name string
	log  *zap.Logger
}

// NewStore creates a blob store on fs. An empty name selects DefaultName.
func NewStore(fs hackpadfs.FS, name string, logger *zap.Logger) *Store {
	if name == "" {
		name = DefaultName
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{fs: fs, name: name, log: logger}
}

// Load reads the persisted snapshot. Returns ErrNotFound when no snapshot
// exists; any other error means the store itself is unreadable.
func (s *Store) Load() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := hackpadfs.ReadFile(s.fs, s.name)
	if errors.Is(err, hackpadfs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot record: %w", err)
	}

	s.log.Debug("loaded snapshot", zap.String("name", s.name), zap.Int("bytes", len(data)))
	return data, nil
}

// Save overwrites the single persisted record with data.
func (s *Store) Save(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := hackpadfs.WriteFullFile(s.fs, s.name, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot record: %w", err)
	}

	s.log.Debug("saved snapshot", zap.String("name", s.name), zap.Int("bytes", len(data)))
	return nil
}
