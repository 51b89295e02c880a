package blob

import (
	"testing"

	"github.com/hack-pad/hackpadfs/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemStore(t *testing.T) *Store {
	t.Helper()
	fs, err := mem.NewFS()
	require.NoError(t, err, "mem.NewFS should not error")
	return NewStore(fs, "", nil)
}

func TestLoadBeforeSave(t *testing.T) {
	s := newMemStore(t)

	data, err := s.Load()
	assert.ErrorIs(t, err, ErrNotFound, "loading before any save should report the named error")
	assert.Nil(t, data)
}

func TestSaveAndLoad(t *testing.T) {
	s := newMemStore(t)

	payload := []byte{0x53, 0x51, 0x4c, 0x69, 0x74, 0x65, 0x00, 0xff}
	require.NoError(t, s.Save(payload))

	data, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestSaveOverwrites(t *testing.T) {
	s := newMemStore(t)

	require.NoError(t, s.Save([]byte("first snapshot")))
	require.NoError(t, s.Save([]byte("second")))

	data, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data, "each save should fully replace the record")
}

func TestCustomRecordName(t *testing.T) {
	fs, err := mem.NewFS()
	require.NoError(t, err)

	a := NewStore(fs, "a.db", nil)
	b := NewStore(fs, "b.db", nil)

	require.NoError(t, a.Save([]byte("a")))

	_, err = b.Load()
	assert.ErrorIs(t, err, ErrNotFound, "records under different names should not collide")

	data, err := a.Load()
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), data)
}
