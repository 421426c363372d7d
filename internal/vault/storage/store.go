// Package storage implements the content-addressed encrypted object store.
// Ciphertext lives at <root>/<content_hash>, metadata in <root>/metadata.json,
// both keyed by the SHA-256 of the plaintext and kept in lockstep.
//
// The single-slot-per-hash design means the owner field is a property of
// content identity, mutable by the last writer. True provenance lives only
// in the ledger, never here.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/evault-dev/evault/internal/common"
	"github.com/evault-dev/evault/internal/cryptox"
	"github.com/evault-dev/evault/internal/vault/models"
)

const metadataFile = "metadata.json"

// DocumentStore owns the documents directory and its in-memory metadata
// map, flushing the map to disk on every mutation.
type DocumentStore struct {
	root     string
	mu       sync.Mutex
	metadata map[string]*models.DocumentRecord
}

// NewDocumentStore opens (or creates) the store rooted at dir and loads the
// metadata map.
func NewDocumentStore(dir string) (*DocumentStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}

	s := &DocumentStore{root: dir, metadata: make(map[string]*models.DocumentRecord)}

	data, err := os.ReadFile(s.metadataPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	if err := json.Unmarshal(data, &s.metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return s, nil
}

// Store encrypts content and persists it under its content hash,
// overwriting any prior ciphertext and metadata for that hash. A nil key
// requests a fresh random 256-bit key. The returned record includes the key
// material: the caller, not the store, is the custodian of keys.
func (s *DocumentStore) Store(ctx context.Context, ownerID, name string, content []byte, mimeType string, key []byte) (*models.DocumentRecord, error) {
	if key == nil {
		key = common.GenerateRandByteArray(cryptox.KeySize)
	}

	contentHash := cryptox.ContentHash(content)
	ciphertext, iv, err := cryptox.EncryptCBC(key, content)
	if err != nil {
		return nil, fmt.Errorf("encrypt document: %w", err)
	}

	record := &models.DocumentRecord{
		ContentHash: contentHash,
		OwnerID:     ownerID,
		Name:        name,
		MimeType:    mimeType,
		Size:        int64(len(content)),
		CreatedAt:   time.Now().Unix(),
		Key:         key,
		IV:          iv,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.documentPath(contentHash), ciphertext, 0o600); err != nil {
		return nil, fmt.Errorf("write ciphertext: %w", err)
	}
	s.metadata[contentHash] = record
	if err := s.flushLocked(); err != nil {
		return nil, err
	}
	return record, nil
}

// Retrieve decrypts and returns the plaintext and record for contentHash.
// Unknown hashes and missing ciphertext files yield ErrNotFound; decrypt or
// padding failures yield ErrIntegrityFailure (via cryptox).
func (s *DocumentStore) Retrieve(ctx context.Context, contentHash string) ([]byte, *models.DocumentRecord, error) {
	s.mu.Lock()
	record, ok := s.metadata[contentHash]
	s.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("document %s: %w", contentHash, common.ErrNotFound)
	}

	ciphertext, err := os.ReadFile(s.documentPath(contentHash))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("ciphertext for %s: %w", contentHash, common.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("read ciphertext: %w", err)
	}

	plaintext, err := cryptox.DecryptCBC(record.Key, record.IV, ciphertext)
	if err != nil {
		return nil, nil, fmt.Errorf("decrypt document %s: %w", contentHash, err)
	}
	return plaintext, record, nil
}

// Delete removes ciphertext and metadata for contentHash. It is idempotent
// and reports whether anything was removed.
func (s *DocumentStore) Delete(ctx context.Context, contentHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.metadata[contentHash]; !ok {
		return false, nil
	}
	if err := os.Remove(s.documentPath(contentHash)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("remove ciphertext: %w", err)
	}
	delete(s.metadata, contentHash)
	if err := s.flushLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// ListByOwner returns the records currently owned by ownerID, keyed by
// content hash.
func (s *DocumentStore) ListByOwner(ownerID string) map[string]*models.DocumentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	owned := make(map[string]*models.DocumentRecord)
	for hash, record := range s.metadata {
		if record.OwnerID == ownerID {
			owned[hash] = record
		}
	}
	return owned
}

// Record returns the metadata for contentHash without decrypting.
func (s *DocumentStore) Record(contentHash string) (*models.DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.metadata[contentHash]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", contentHash, common.ErrNotFound)
	}
	return record, nil
}

func (s *DocumentStore) flushLocked() error {
	data, err := json.MarshalIndent(s.metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(s.metadataPath(), data, 0o600); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func (s *DocumentStore) metadataPath() string { return filepath.Join(s.root, metadataFile) }

func (s *DocumentStore) documentPath(hash string) string { return filepath.Join(s.root, hash) }
