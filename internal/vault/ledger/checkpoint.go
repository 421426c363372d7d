package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/evault-dev/evault/internal/common"
	"github.com/evault-dev/evault/internal/vault/models"
)

const checkpointFile = "blockchain.json"

// snapshot is the on-disk checkpoint layout: the full block sequence, the
// open pending buffer, and the sealing difficulty.
type snapshot struct {
	Chain               []*models.Block      `json:"chain"`
	PendingTransactions []models.Transaction `json:"pending_transactions"`
	Difficulty          int                  `json:"difficulty"`
}

// Checkpoint persists whole-ledger snapshots to <root>/blockchain.json.
// Each Save overwrites the previous snapshot; this is a full-state
// checkpoint, not an append log.
type Checkpoint struct {
	path string
	// difficulty is used for fresh ledgers when no snapshot exists; a
	// loaded snapshot's own difficulty always wins.
	difficulty int
	// strict controls recovery from an unparsable snapshot: fail with
	// ErrCorruptCheckpoint when true, fall back to a fresh genesis-only
	// ledger when false.
	strict bool
}

// NewCheckpoint returns a checkpoint rooted at dir, creating dir if needed.
func NewCheckpoint(dir string, difficulty int, strict bool) (*Checkpoint, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &Checkpoint{path: filepath.Join(dir, checkpointFile), difficulty: difficulty, strict: strict}, nil
}

// Save serializes the ledger and overwrites the prior snapshot.
func (c *Checkpoint) Save(l *Ledger) error {
	snap := snapshot{
		Chain:               l.chain,
		PendingTransactions: l.pending,
		Difficulty:          l.difficulty,
	}
	if snap.PendingTransactions == nil {
		snap.PendingTransactions = []models.Transaction{}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// Load restores a ledger from the snapshot. An absent snapshot yields a
// fresh genesis-only ledger. An unparsable snapshot yields
// ErrCorruptCheckpoint in strict mode; otherwise the caller gets a fresh
// ledger and is expected to log the data loss.
func (c *Checkpoint) Load() (*Ledger, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(c.difficulty), nil
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil || len(snap.Chain) == 0 {
		if c.strict {
			return nil, fmt.Errorf("%w: %s", common.ErrCorruptCheckpoint, c.path)
		}
		return New(c.difficulty), nil
	}

	difficulty := snap.Difficulty
	if difficulty < 1 {
		difficulty = DefaultDifficulty
	}
	return &Ledger{
		chain:      snap.Chain,
		pending:    snap.PendingTransactions,
		difficulty: difficulty,
	}, nil
}
