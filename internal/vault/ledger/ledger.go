// Package ledger implements the append-only, hash-chained block ledger that
// notarizes vault custody events. There is exactly one authoritative writer;
// the proof-of-work seal stiffens block identity, it is not consensus.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/evault-dev/evault/internal/common"
	"github.com/evault-dev/evault/internal/vault/models"
)

// DefaultDifficulty is the number of leading zero hex characters a sealed
// block's hash must have.
const DefaultDifficulty = 2

// Ledger holds the chain of sealed blocks plus the single open buffer of
// pending transactions. It is not safe for concurrent use; the orchestrator
// serializes all access behind its writer lock.
type Ledger struct {
	chain      []*models.Block
	pending    []models.Transaction
	difficulty int
}

// New returns a ledger containing only the genesis block, sealed with the
// given difficulty. Difficulty values below 1 fall back to the default.
func New(difficulty int) *Ledger {
	if difficulty < 1 {
		difficulty = DefaultDifficulty
	}
	genesis := &models.Block{
		Index:        0,
		Timestamp:    time.Now().Unix(),
		Transactions: []models.Transaction{},
		PreviousHash: models.GenesisPreviousHash,
	}
	genesis.Hash = genesis.ComputeHash()
	return &Ledger{chain: []*models.Block{genesis}, difficulty: difficulty}
}

// Tip returns the latest sealed block. The chain always contains at least
// the genesis block.
func (l *Ledger) Tip() *models.Block {
	return l.chain[len(l.chain)-1]
}

// Difficulty returns the sealing difficulty in leading zero hex characters.
func (l *Ledger) Difficulty() int { return l.difficulty }

// PendingCount returns the number of buffered, not yet sealed transactions.
func (l *Ledger) PendingCount() int { return len(l.pending) }

// Height returns the number of sealed blocks, genesis included.
func (l *Ledger) Height() int { return len(l.chain) }

// AppendTransaction adds tx to the open pending buffer. Nothing is hashed
// or sealed until SealPendingBlock.
func (l *Ledger) AppendTransaction(tx models.Transaction) {
	l.pending = append(l.pending, tx)
}

// SealPendingBlock mines the pending buffer into a new block and appends
// it. The candidate references the current tip, starts at nonce 0 and
// increments until the digest gains the required leading zero hex
// characters. Returns nil when the buffer is empty.
//
// The nonce search is unbounded in theory but expects ~16^difficulty
// attempts, so sealing cannot fail.
func (l *Ledger) SealPendingBlock() *models.Block {
	if len(l.pending) == 0 {
		return nil
	}

	tip := l.Tip()
	block := &models.Block{
		Index:        tip.Index + 1,
		Timestamp:    time.Now().Unix(),
		Transactions: l.pending,
		PreviousHash: tip.Hash,
		Nonce:        0,
	}

	target := strings.Repeat("0", l.difficulty)
	block.Hash = block.ComputeHash()
	for !strings.HasPrefix(block.Hash, target) {
		block.Nonce++
		block.Hash = block.ComputeHash()
	}

	l.chain = append(l.chain, block)
	l.pending = nil
	return block
}

// IsValid recomputes every post-genesis block digest from its stored fields
// and checks predecessor linkage, returning false at the first mismatch.
//
// A writer who rewrites history and re-mines everything after the edit point
// is undetectable here; the trust model assumes a single honest writer with
// exclusive storage access.
func (l *Ledger) IsValid() bool {
	for i := 1; i < len(l.chain); i++ {
		current, previous := l.chain[i], l.chain[i-1]
		if current.Hash != current.ComputeHash() {
			return false
		}
		if current.PreviousHash != previous.Hash {
			return false
		}
	}
	return true
}

// BlockByHash finds a sealed block by its stored hash.
func (l *Ledger) BlockByHash(hash string) (*models.Block, error) {
	for _, b := range l.chain {
		if b.Hash == hash {
			return b, nil
		}
	}
	return nil, fmt.Errorf("block %s: %w", hash, common.ErrNotFound)
}

// Blocks returns the sealed chain in order. Callers must treat the result
// as read-only.
func (l *Ledger) Blocks() []*models.Block {
	return l.chain
}

// TransactionsForUser scans the chain for every transaction involving
// userID (uploader, sender, or recipient) and returns them in chain order,
// decorated with their containing block. A transaction with an unknown type
// tag is reported as an integrity failure instead of being skipped.
func (l *Ledger) TransactionsForUser(userID string) ([]models.TransactionRecord, error) {
	var hits []models.TransactionRecord
	for _, b := range l.chain {
		for _, tx := range b.Transactions {
			involved, err := tx.Involves(userID)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", common.ErrIntegrityFailure, err)
			}
			if involved {
				hits = append(hits, decorate(tx, b))
			}
		}
	}
	return hits, nil
}

// TransactionsForDocument scans the chain for every transaction touching
// contentHash and returns them in chain order, decorated with their
// containing block. This is the document's provenance; the store's owner
// field only reflects the latest writer.
func (l *Ledger) TransactionsForDocument(contentHash string) []models.TransactionRecord {
	var hits []models.TransactionRecord
	for _, b := range l.chain {
		for _, tx := range b.Transactions {
			if tx.ContentHash == contentHash {
				hits = append(hits, decorate(tx, b))
			}
		}
	}
	return hits
}

func decorate(tx models.Transaction, b *models.Block) models.TransactionRecord {
	return models.TransactionRecord{
		Transaction:    tx,
		BlockHash:      b.Hash,
		BlockIndex:     b.Index,
		BlockTimestamp: b.Timestamp,
	}
}
