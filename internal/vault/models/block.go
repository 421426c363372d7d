package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// GenesisPreviousHash is the fixed sentinel the genesis block links to.
const GenesisPreviousHash = "0"

// Block is one sealed unit of the ledger. Hash is the hex SHA-256 digest of
// the canonical JSON encoding of every field except Hash itself; the chain
// is valid only while every stored Hash is recomputable from the stored
// fields and PreviousHash matches the predecessor.
type Block struct {
	Index        int64         `json:"index"`
	Timestamp    int64         `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	PreviousHash string        `json:"previous_hash"`
	Nonce        int64         `json:"nonce"`
	Hash         string        `json:"hash"`
}

// blockPayload fixes the field order of the hashed encoding. It must never
// change, or every existing chain stops validating.
type blockPayload struct {
	Index        int64         `json:"index"`
	Timestamp    int64         `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	PreviousHash string        `json:"previous_hash"`
	Nonce        int64         `json:"nonce"`
}

// ComputeHash recomputes the block digest from the stored fields, ignoring
// the stored Hash.
func (b *Block) ComputeHash() string {
	payload := blockPayload{
		Index:        b.Index,
		Timestamp:    b.Timestamp,
		Transactions: b.Transactions,
		PreviousHash: b.PreviousHash,
		Nonce:        b.Nonce,
	}
	// Marshal of this fixed struct cannot fail.
	encoded, _ := json.Marshal(payload)
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}
