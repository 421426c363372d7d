package models

import "fmt"

// TxType tags a Transaction. Consumers must switch exhaustively on it and
// treat unknown tags as corruption, never skip them silently.
type TxType string

const (
	TxUpload   TxType = "upload"
	TxTransfer TxType = "transfer"
)

// Transaction is one custody-changing event, immutable once embedded in a
// sealed block.
//
// Per type the populated fields are:
//
//	upload:   UserID, ContentHash, Name, MimeType, Timestamp
//	transfer: SenderID, RecipientID, ContentHash, Name, Timestamp
type Transaction struct {
	Type        TxType `json:"type"`
	UserID      string `json:"user_id,omitempty"`
	SenderID    string `json:"sender_id,omitempty"`
	RecipientID string `json:"recipient_id,omitempty"`
	ContentHash string `json:"content_hash"`
	Name        string `json:"name"`
	MimeType    string `json:"mime_type,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// NewUploadTransaction records that userID placed the named content into
// the vault at ts (unix seconds).
func NewUploadTransaction(userID, contentHash, name, mimeType string, ts int64) Transaction {
	return Transaction{
		Type:        TxUpload,
		UserID:      userID,
		ContentHash: contentHash,
		Name:        name,
		MimeType:    mimeType,
		Timestamp:   ts,
	}
}

// NewTransferTransaction records a custody transfer of contentHash from
// sender to recipient at ts (unix seconds).
func NewTransferTransaction(senderID, recipientID, contentHash, name string, ts int64) Transaction {
	return Transaction{
		Type:        TxTransfer,
		SenderID:    senderID,
		RecipientID: recipientID,
		ContentHash: contentHash,
		Name:        name,
		Timestamp:   ts,
	}
}

// Involves reports whether userID took part in the transaction: as uploader
// for uploads, as sender or recipient for transfers.
func (t Transaction) Involves(userID string) (bool, error) {
	switch t.Type {
	case TxUpload:
		return t.UserID == userID, nil
	case TxTransfer:
		return t.SenderID == userID || t.RecipientID == userID, nil
	default:
		return false, fmt.Errorf("unknown transaction type %q", t.Type)
	}
}

// TransactionRecord is a ledger-scan hit decorated with its containing
// block, so callers can place the event in chain history.
type TransactionRecord struct {
	Transaction    `json:"transaction"`
	BlockHash      string `json:"block_hash"`
	BlockIndex     int64  `json:"block_index"`
	BlockTimestamp int64  `json:"block_timestamp"`
}
