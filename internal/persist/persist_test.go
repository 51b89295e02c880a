package persist

import (
	"testing"

	"github.com/hack-pad/hackpadfs/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kinship-app/kinship/internal/blob"
	"github.com/kinship-app/kinship/internal/store"
)

// newTestService opens a Service on a fresh in-memory blob store and
// returns both, so tests can reopen from the same persisted state.
func newTestService(t *testing.T) (*Service, *blob.Store) {
	t.Helper()
	fs, err := mem.NewFS()
	require.NoError(t, err)

	blobs := blob.NewStore(fs, "", zap.NewNop())
	svc, err := Open(blobs, zap.NewNop())
	require.NoError(t, err, "Open on an empty store should create a fresh database")
	t.Cleanup(func() { svc.Close() })
	return svc, blobs
}

func TestOpenFreshStore(t *testing.T) {
	svc, _ := newTestService(t)

	contacts, err := svc.ListContacts()
	require.NoError(t, err)
	assert.Empty(t, contacts)
}

func TestMutationsSurviveReopen(t *testing.T) {
	svc, blobs := newTestService(t)

	alice, err := svc.CreateContact("Alice", "", "", "notes about alice")
	require.NoError(t, err)
	require.NotEmpty(t, alice.ID, "CreateContact should generate an id")
	require.NotZero(t, alice.CreatedAt, "CreateContact should stamp a timestamp")

	bob, err := svc.CreateContact("Bob", "", "", "")
	require.NoError(t, err)

	conn, err := svc.CreateConnection(alice.ID, bob.ID, "friend")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, conn.FromContactID)
	assert.Equal(t, bob.ID, conn.ToContactID)

	require.NoError(t, svc.SavePositions([]*store.NodePosition{
		{ContactID: alice.ID, X: 5, Y: 6, Fixed: true},
	}))

	// Reopen from the persisted snapshot only.
	require.NoError(t, svc.Close())
	reopened, err := Open(blobs, zap.NewNop())
	require.NoError(t, err, "reopening from the flushed snapshot should work")
	defer reopened.Close()

	restored, err := reopened.GetContact(alice.ID)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, "Alice", restored.Name)

	exists, err := reopened.ConnectionExists(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	positions, err := reopened.GetPositions()
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, alice.ID, positions[0].ContactID)
}

func TestCreateConnectionMirrorPair(t *testing.T) {
	svc, _ := newTestService(t)

	alice, err := svc.CreateContact("Alice", "", "", "")
	require.NoError(t, err)
	bob, err := svc.CreateContact("Bob", "", "", "")
	require.NoError(t, err)

	_, err = svc.CreateConnection(alice.ID, bob.ID, "friend")
	require.NoError(t, err)

	count, err := svc.Store().CountConnections()
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one relationship should be two mirror rows")

	aliceLinks, err := svc.ListConnectionsForContact(alice.ID)
	require.NoError(t, err)
	require.Len(t, aliceLinks, 1)
	assert.Equal(t, "Bob", aliceLinks[0].Name)

	bobLinks, err := svc.ListConnectionsForContact(bob.ID)
	require.NoError(t, err)
	require.Len(t, bobLinks, 1)
	assert.Equal(t, "Alice", bobLinks[0].Name)
}

func TestCreateConnectionRejections(t *testing.T) {
	svc, _ := newTestService(t)

	alice, err := svc.CreateContact("Alice", "", "", "")
	require.NoError(t, err)
	bob, err := svc.CreateContact("Bob", "", "", "")
	require.NoError(t, err)

	_, err = svc.CreateConnection(alice.ID, alice.ID, "me")
	assert.ErrorIs(t, err, store.ErrSelfConnection)

	_, err = svc.CreateConnection(alice.ID, bob.ID, "")
	assert.ErrorIs(t, err, store.ErrLabelRequired)

	_, err = svc.CreateConnection(alice.ID, bob.ID, "friend")
	require.NoError(t, err)
	_, err = svc.CreateConnection(bob.ID, alice.ID, "colleague")
	assert.ErrorIs(t, err, store.ErrDuplicateConnection)
}

func TestDeleteContactFlushesCascade(t *testing.T) {
	svc, blobs := newTestService(t)

	alice, err := svc.CreateContact("Alice", "", "", "")
	require.NoError(t, err)
	bob, err := svc.CreateContact("Bob", "", "", "")
	require.NoError(t, err)
	_, err = svc.CreateConnection(alice.ID, bob.ID, "friend")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteContact(alice.ID))
	require.NoError(t, svc.Close())

	reopened, err := Open(blobs, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	contact, err := reopened.GetContact(alice.ID)
	require.NoError(t, err)
	assert.Nil(t, contact)

	count, err := reopened.Store().CountConnections()
	require.NoError(t, err)
	assert.Equal(t, 0, count, "the cascade should be part of the persisted state")
}

// =============================================================================
// Export / Import
// =============================================================================

func TestExportShape(t *testing.T) {
	svc, _ := newTestService(t)

	doc, err := svc.Export()
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, doc.Version)
	assert.NotEmpty(t, doc.ExportedAt)
	require.NotNil(t, doc.Contacts, "empty export should carry empty lists, not null")
	require.NotNil(t, doc.Connections)
	assert.Empty(t, doc.Contacts)
	assert.Empty(t, doc.Connections)
}

func TestExportImportRoundTrip(t *testing.T) {
	src, _ := newTestService(t)

	alice, err := src.CreateContact("Alice", "", "", "old friend")
	require.NoError(t, err)
	bob, err := src.CreateContact("Bob", "", "", "")
	require.NoError(t, err)
	_, err = src.CreateConnection(alice.ID, bob.ID, "friend")
	require.NoError(t, err)

	data, err := src.ExportJSON()
	require.NoError(t, err)

	dst, _ := newTestService(t)
	res, err := dst.Import(data)
	require.NoError(t, err)

	assert.Equal(t, 2, res.ContactsAdded)
	assert.Equal(t, 0, res.ContactsSkipped)
	assert.Equal(t, 2, res.ConnectionsAdded, "both mirror rows travel through the document")
	assert.Equal(t, 0, res.ConnectionsSkipped)

	restored, err := dst.GetContact(alice.ID)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, "Alice", restored.Name)
	assert.Equal(t, alice.CreatedAt, restored.CreatedAt, "imported rows keep their original timestamps")

	exists, err := dst.ConnectionExists(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestImportIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)

	alice, err := svc.CreateContact("Alice", "", "", "")
	require.NoError(t, err)
	bob, err := svc.CreateContact("Bob", "", "", "")
	require.NoError(t, err)
	_, err = svc.CreateConnection(alice.ID, bob.ID, "friend")
	require.NoError(t, err)

	data, err := svc.ExportJSON()
	require.NoError(t, err)

	res, err := svc.Import(data)
	require.NoError(t, err, "reimporting our own export should succeed")
	assert.Equal(t, 0, res.ContactsAdded)
	assert.Equal(t, 2, res.ContactsSkipped)
	assert.Equal(t, 0, res.ConnectionsAdded)
	assert.Equal(t, 2, res.ConnectionsSkipped)

	count, err := svc.Store().CountContacts()
	require.NoError(t, err)
	assert.Equal(t, 2, count, "the merge is additive, nothing duplicated")
}

func TestImportKeepsExistingRows(t *testing.T) {
	svc, _ := newTestService(t)

	alice, err := svc.CreateContact("Alice", "", "", "local notes")
	require.NoError(t, err)

	// Incoming document reuses Alice's id with different content.
	payload := []byte(`{
		"version": 1,
		"contacts": [
			{"id": "` + alice.ID + `", "name": "Imposter", "created_at": 1},
			{"id": "carol-1", "name": "Carol", "created_at": 2}
		],
		"connections": []
	}`)

	res, err := svc.Import(payload)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ContactsAdded)
	assert.Equal(t, 1, res.ContactsSkipped)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "contact", res.Skipped[0].Kind)
	assert.Equal(t, alice.ID, res.Skipped[0].ID)

	kept, err := svc.GetContact(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", kept.Name, "existing rows win over incoming ones")
	assert.Equal(t, "local notes", kept.Notes)
}

func TestImportSkipsDanglingConnections(t *testing.T) {
	svc, _ := newTestService(t)

	payload := []byte(`{
		"version": 1,
		"contacts": [
			{"id": "alice-1", "name": "Alice", "created_at": 1}
		],
		"connections": [
			{"id": "conn-1", "from_contact_id": "alice-1", "to_contact_id": "ghost", "label": "friend", "created_at": 1}
		]
	}`)

	res, err := svc.Import(payload)
	require.NoError(t, err, "a bad row should not abort the import")
	assert.Equal(t, 1, res.ContactsAdded)
	assert.Equal(t, 0, res.ConnectionsAdded)
	assert.Equal(t, 1, res.ConnectionsSkipped)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "connection", res.Skipped[0].Kind)
	assert.Equal(t, "conn-1", res.Skipped[0].ID)
}

func TestImportRejectsMissingLists(t *testing.T) {
	svc, _ := newTestService(t)

	cases := []string{
		`{}`,
		`{"contacts": []}`,
		`{"connections": []}`,
		`{"version": 1}`,
	}
	for _, payload := range cases {
		_, err := svc.Import([]byte(payload))
		assert.ErrorIs(t, err, ErrInvalidDocument, "payload: %s", payload)
	}

	// Empty lists are present lists; this is a valid empty document.
	res, err := svc.Import([]byte(`{"contacts": [], "connections": []}`))
	require.NoError(t, err)
	assert.Equal(t, 0, res.ContactsAdded)
}

func TestImportRejectsMalformedJSON(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Import([]byte(`{not json`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidDocument, "parse failures are their own error")
}

func TestImportFlushesOnce(t *testing.T) {
	svc, blobs := newTestService(t)

	payload := []byte(`{
		"version": 1,
		"contacts": [{"id": "alice-1", "name": "Alice", "created_at": 1}],
		"connections": []
	}`)
	_, err := svc.Import(payload)
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	reopened, err := Open(blobs, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	contact, err := reopened.GetContact("alice-1")
	require.NoError(t, err)
	require.NotNil(t, contact, "imported rows should be durable without an extra flush")
}
