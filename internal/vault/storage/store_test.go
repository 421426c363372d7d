package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/evault-dev/evault/internal/common"
	"github.com/evault-dev/evault/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *DocumentStore {
	t.Helper()
	s, err := NewDocumentStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestStoreRetrieve_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		content []byte
	}{
		{"text", []byte("hello vault")},
		{"empty", []byte{}},
		{"binary", common.GenerateRandByteArray(4096)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			record, err := s.Store(ctx, "alice", tc.name, tc.content, "application/octet-stream", nil)
			require.NoError(t, err)

			assert.Equal(t, cryptox.ContentHash(tc.content), record.ContentHash)
			assert.Equal(t, "alice", record.OwnerID)
			assert.EqualValues(t, len(tc.content), record.Size)
			assert.Len(t, record.Key, cryptox.KeySize)

			plaintext, got, err := s.Retrieve(ctx, record.ContentHash)
			require.NoError(t, err)
			assert.Equal(t, tc.content, plaintext)
			assert.Equal(t, record, got)
		})
	}
}

func TestStore_CiphertextOnDiskIsNotPlaintext(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDocumentStore(dir)
	require.NoError(t, err)

	content := []byte("confidential contract text")
	record, err := s.Store(context.Background(), "alice", "contract.txt", content, "text/plain", nil)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, record.ContentHash))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "confidential")
}

func TestStore_IdenticalBytesCollapseToOneSlot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	content := []byte("shared bytes")

	first, err := s.Store(ctx, "alice", "alice.txt", content, "text/plain", nil)
	require.NoError(t, err)
	second, err := s.Store(ctx, "bob", "bob.txt", content, "text/plain", nil)
	require.NoError(t, err)

	// Same plaintext, same content hash, one record: the second writer wins.
	require.Equal(t, first.ContentHash, second.ContentHash)

	_, record, err := s.Retrieve(ctx, first.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, "bob", record.OwnerID)
	assert.Equal(t, "bob.txt", record.Name)

	assert.Empty(t, s.ListByOwner("alice"), "alice's slot was overwritten, not kept per-owner")
	assert.Len(t, s.ListByOwner("bob"), 1)
}

func TestStore_ProvidedKeyIsReused(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	content := []byte("transfer me")

	first, err := s.Store(ctx, "alice", "doc", content, "text/plain", nil)
	require.NoError(t, err)

	second, err := s.Store(ctx, "bob", "doc", content, "text/plain", first.Key)
	require.NoError(t, err)
	assert.Equal(t, first.Key, second.Key)

	plaintext, _, err := s.Retrieve(ctx, second.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, content, plaintext)
}

func TestRetrieve_UnknownHash(t *testing.T) {
	s := newTestStore(t)

	_, _, err := s.Retrieve(context.Background(), "no-such-hash")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRetrieve_MissingCiphertextFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDocumentStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	record, err := s.Store(ctx, "alice", "doc", []byte("bytes"), "text/plain", nil)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, record.ContentHash)))

	_, _, err = s.Retrieve(ctx, record.ContentHash)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRetrieve_CorruptCiphertext(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDocumentStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	record, err := s.Store(ctx, "alice", "doc", []byte("bytes to mangle"), "text/plain", nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, record.ContentHash), []byte("short"), 0o600))

	_, _, err = s.Retrieve(ctx, record.ContentHash)
	assert.ErrorIs(t, err, common.ErrIntegrityFailure)
}

func TestDelete_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	record, err := s.Store(ctx, "alice", "doc", []byte("to delete"), "text/plain", nil)
	require.NoError(t, err)

	removed, err := s.Delete(ctx, record.ContentHash)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Delete(ctx, record.ContentHash)
	require.NoError(t, err)
	assert.False(t, removed)

	_, _, err = s.Retrieve(ctx, record.ContentHash)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListByOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a1, err := s.Store(ctx, "alice", "a1", []byte("alice one"), "text/plain", nil)
	require.NoError(t, err)
	a2, err := s.Store(ctx, "alice", "a2", []byte("alice two"), "text/plain", nil)
	require.NoError(t, err)
	_, err = s.Store(ctx, "bob", "b1", []byte("bob one"), "text/plain", nil)
	require.NoError(t, err)

	owned := s.ListByOwner("alice")
	require.Len(t, owned, 2)
	assert.Contains(t, owned, a1.ContentHash)
	assert.Contains(t, owned, a2.ContentHash)
}

func TestNewDocumentStore_ReloadsMetadata(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewDocumentStore(dir)
	require.NoError(t, err)
	record, err := s.Store(ctx, "alice", "persisted", []byte("still here"), "text/plain", nil)
	require.NoError(t, err)

	reopened, err := NewDocumentStore(dir)
	require.NoError(t, err)

	plaintext, got, err := reopened.Retrieve(ctx, record.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, []byte("still here"), plaintext)
	assert.Equal(t, record.Key, got.Key)
}
