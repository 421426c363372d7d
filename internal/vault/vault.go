// Package vault composes the identity directory, the encrypted object
// store, the ledger, and its checkpoint into one document-custody service.
//
// Every mutating operation runs under a single writer lock: append pending
// transaction, seal exactly one block, save the checkpoint. The ledger has
// one authoritative writer; there is no consensus and none is intended.
package vault

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/evault-dev/evault/internal/common"
	"github.com/evault-dev/evault/internal/logging"
	"github.com/evault-dev/evault/internal/vault/config"
	"github.com/evault-dev/evault/internal/vault/identity"
	"github.com/evault-dev/evault/internal/vault/ledger"
	"github.com/evault-dev/evault/internal/vault/models"
	"github.com/evault-dev/evault/internal/vault/storage"
)

// Vault is the orchestrator exposed to callers. Ownership checks live
// here, not in the store: the store will happily return any record, the
// vault refuses to decrypt for non-owners.
type Vault struct {
	logger     logging.Logger
	directory  *identity.Directory
	store      *storage.DocumentStore
	checkpoint *ledger.Checkpoint

	// writerMu serializes ledger mutation with its checkpoint save,
	// preserving the one-authoritative-version guarantee.
	writerMu sync.Mutex
	ledger   *ledger.Ledger
}

// New opens (or creates) a vault under cfg.StorageRoot and restores the
// ledger from its checkpoint. With cfg.StrictRecovery an unparsable
// checkpoint fails here; otherwise the loss is logged and a fresh ledger
// starts over.
func New(cfg *config.Config, logger logging.Logger) (*Vault, error) {
	directory, err := identity.NewDirectory(cfg.StorageRoot)
	if err != nil {
		return nil, fmt.Errorf("identity directory init: %w", err)
	}

	store, err := storage.NewDocumentStore(filepath.Join(cfg.StorageRoot, "documents"))
	if err != nil {
		return nil, fmt.Errorf("document store init: %w", err)
	}

	checkpoint, err := ledger.NewCheckpoint(cfg.StorageRoot, cfg.Difficulty, cfg.StrictRecovery)
	if err != nil {
		return nil, fmt.Errorf("checkpoint init: %w", err)
	}
	chain, err := checkpoint.Load()
	if err != nil {
		return nil, fmt.Errorf("ledger restore: %w", err)
	}

	ctx := context.Background()
	if chain.Height() == 1 {
		logger.Info(ctx, "ledger starts from genesis", "difficulty", chain.Difficulty())
	} else {
		logger.Info(ctx, "ledger restored", "height", chain.Height(), "pending", chain.PendingCount())
	}

	return &Vault{
		logger:     logger,
		directory:  directory,
		store:      store,
		checkpoint: checkpoint,
		ledger:     chain,
	}, nil
}

// RegisterUser creates a new account.
func (v *Vault) RegisterUser(ctx context.Context, username, password, email string) (*models.User, error) {
	user, err := v.directory.Register(ctx, username, password, email)
	if err != nil {
		return nil, err
	}
	v.logger.Info(ctx, "user registered", "username", username, "user_id", user.ID)
	return user, nil
}

// Login authenticates and returns a new session.
func (v *Vault) Login(ctx context.Context, username, password string) (*models.Session, error) {
	session, err := v.directory.Login(ctx, username, password)
	if err != nil {
		v.logger.Warn(ctx, "login rejected", "username", username)
		return nil, err
	}
	v.logger.Info(ctx, "login", "username", username)
	return session, nil
}

// Logout tears the session down; unknown tokens are a no-op.
func (v *Vault) Logout(ctx context.Context, token string) (bool, error) {
	return v.directory.Logout(ctx, token)
}

// UserBySession resolves a session token to its user.
func (v *Vault) UserBySession(token string) (*models.User, error) {
	return v.directory.BySession(token)
}

// ChangePassword replaces the caller's salt and hash after verifying the
// old password.
func (v *Vault) ChangePassword(ctx context.Context, token, oldPassword, newPassword string) error {
	user, err := v.directory.BySession(token)
	if err != nil {
		return err
	}
	return v.directory.ChangePassword(ctx, user.Username, oldPassword, newPassword)
}

// UploadDocument stores content under a fresh key for the session's user
// and notarizes the upload: one transaction, one sealed block, one
// checkpoint save.
func (v *Vault) UploadDocument(ctx context.Context, token, name string, content []byte, mimeType string) (*models.DocumentRecord, error) {
	user, err := v.directory.BySession(token)
	if err != nil {
		return nil, err
	}

	record, err := v.store.Store(ctx, user.ID, name, content, mimeType, nil)
	if err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	tx := models.NewUploadTransaction(user.ID, record.ContentHash, name, mimeType, time.Now().Unix())
	if err := v.notarize(ctx, tx); err != nil {
		return nil, err
	}

	v.logger.Info(ctx, "document uploaded", "user_id", user.ID, "content_hash", record.ContentHash, "size", record.Size)
	return record, nil
}

// GetDocument decrypts a document for its current owner. The session must
// resolve and the record's owner must equal the session's user; a hash
// that exists but belongs to someone else is still ErrUnauthorized.
func (v *Vault) GetDocument(ctx context.Context, token, contentHash string) ([]byte, *models.DocumentRecord, error) {
	user, err := v.directory.BySession(token)
	if err != nil {
		return nil, nil, err
	}

	plaintext, record, err := v.store.Retrieve(ctx, contentHash)
	if err != nil {
		return nil, nil, err
	}
	if record.OwnerID != user.ID {
		return nil, nil, fmt.Errorf("document %s: %w", contentHash, common.ErrUnauthorized)
	}
	return plaintext, record, nil
}

// TransferDocument moves custody of contentHash from the session's user to
// recipientUsername. The same plaintext is re-stored under the same key,
// which yields the same content hash and overwrites the record's owner;
// after this the sender can no longer retrieve the document, while the
// ledger still lists them as the original uploader.
func (v *Vault) TransferDocument(ctx context.Context, token, contentHash, recipientUsername string) (*models.DocumentRecord, error) {
	sender, err := v.directory.BySession(token)
	if err != nil {
		return nil, err
	}

	plaintext, record, err := v.store.Retrieve(ctx, contentHash)
	if err != nil {
		return nil, err
	}
	if record.OwnerID != sender.ID {
		return nil, fmt.Errorf("document %s: %w", contentHash, common.ErrUnauthorized)
	}

	recipient, err := v.directory.ByUsername(recipientUsername)
	if err != nil {
		return nil, fmt.Errorf("recipient %q: %w", recipientUsername, common.ErrRecipientNotFound)
	}

	updated, err := v.store.Store(ctx, recipient.ID, record.Name, plaintext, record.MimeType, record.Key)
	if err != nil {
		return nil, fmt.Errorf("re-store document: %w", err)
	}

	tx := models.NewTransferTransaction(sender.ID, recipient.ID, contentHash, record.Name, time.Now().Unix())
	if err := v.notarize(ctx, tx); err != nil {
		return nil, err
	}

	v.logger.Info(ctx, "document transferred",
		"sender_id", sender.ID, "recipient_id", recipient.ID, "content_hash", contentHash)
	return updated, nil
}

// ListDocuments returns the records currently owned by the session's user.
func (v *Vault) ListDocuments(ctx context.Context, token string) (map[string]*models.DocumentRecord, error) {
	user, err := v.directory.BySession(token)
	if err != nil {
		return nil, err
	}
	return v.store.ListByOwner(user.ID), nil
}

// ListTransactions returns every ledger transaction involving the
// session's user, in chain order.
func (v *Vault) ListTransactions(ctx context.Context, token string) ([]models.TransactionRecord, error) {
	user, err := v.directory.BySession(token)
	if err != nil {
		return nil, err
	}

	v.writerMu.Lock()
	defer v.writerMu.Unlock()
	return v.ledger.TransactionsForUser(user.ID)
}

// DocumentHistory returns the full custody history of contentHash from the
// ledger, in chain order. Any authenticated user may read provenance.
func (v *Vault) DocumentHistory(ctx context.Context, token, contentHash string) ([]models.TransactionRecord, error) {
	if _, err := v.directory.BySession(token); err != nil {
		return nil, err
	}

	v.writerMu.Lock()
	defer v.writerMu.Unlock()
	return v.ledger.TransactionsForDocument(contentHash), nil
}

// BlockByHash returns a sealed ledger block by its hash.
func (v *Vault) BlockByHash(ctx context.Context, token, hash string) (*models.Block, error) {
	if _, err := v.directory.BySession(token); err != nil {
		return nil, err
	}

	v.writerMu.Lock()
	defer v.writerMu.Unlock()
	return v.ledger.BlockByHash(hash)
}

// VerifyIntegrity revalidates the whole chain. A false result is a fatal
// integrity condition; nothing is auto-repaired.
func (v *Vault) VerifyIntegrity(ctx context.Context) bool {
	v.writerMu.Lock()
	defer v.writerMu.Unlock()

	ok := v.ledger.IsValid()
	if !ok {
		v.logger.Error(ctx, "ledger validation failed", "height", v.ledger.Height())
	}
	return ok
}

// notarize runs the append / seal / save sequence under the writer lock.
// One mutating call seals exactly one block; batching is structurally
// possible but unused.
func (v *Vault) notarize(ctx context.Context, tx models.Transaction) error {
	v.writerMu.Lock()
	defer v.writerMu.Unlock()

	v.ledger.AppendTransaction(tx)
	block := v.ledger.SealPendingBlock()
	if err := v.checkpoint.Save(v.ledger); err != nil {
		return fmt.Errorf("checkpoint save: %w", err)
	}
	if block != nil {
		v.logger.Debug(ctx, "block sealed", "index", block.Index, "nonce", block.Nonce)
	}
	return nil
}
