package models

// DocumentRecord is the object store's metadata for one distinct byte
// sequence, stored in documents/metadata.json keyed by ContentHash.
//
// ContentHash is a pure function of the plaintext, so the store holds at
// most one record per distinct content: re-storing identical bytes under a
// different owner overwrites this record. Ownership here is only the latest
// custody state; provenance lives in the ledger.
//
// Key and IV marshal as base64 strings ([]byte JSON encoding). The store is
// not the custodian of keys; they travel with the record to the caller.
type DocumentRecord struct {
	ContentHash string `json:"content_hash"`
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	MimeType    string `json:"mime_type"`
	Size        int64  `json:"size"`
	CreatedAt   int64  `json:"created_at"`
	Key         []byte `json:"key"`
	IV          []byte `json:"iv"`
}
