// Package cryptox bundles the primitives the vault is built on: SHA-256
// content addressing, AES-256-CBC document encryption with PKCS#7 padding,
// and argon2id password hashing.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/evault-dev/evault/internal/common"
	"golang.org/x/crypto/argon2"
)

// KeySize is the document key length in bytes (AES-256).
const KeySize = 32

// ContentHash returns the lowercase hex SHA-256 digest of data. It is a pure
// function of the plaintext bytes and serves as the object store's primary key.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashPassword derives a password hash from the given password and salt using
// argon2id. The same password and salt always produce the same hash, so a
// stored hash is verified by re-deriving and comparing.
func HashPassword(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

// EncryptCBC encrypts plaintext with AES-256-CBC under a freshly generated
// random IV, padding with PKCS#7. The IV is returned alongside the
// ciphertext; it is not secret and is stored with the document metadata.
//
// The key must be KeySize bytes long.
func EncryptCBC(key, plaintext []byte) (ciphertext, iv []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("cipher init: %w", err)
	}

	iv = make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, fmt.Errorf("iv generation: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext = make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return ciphertext, iv, nil
}

// DecryptCBC decrypts ciphertext with AES-256-CBC using the given key and IV
// and strips the PKCS#7 padding. Malformed ciphertext or padding yields an
// error wrapping common.ErrIntegrityFailure.
func DecryptCBC(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("%w: bad iv length %d", common.ErrIntegrityFailure, len(iv))
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d not a multiple of block size", common.ErrIntegrityFailure, len(ciphertext))
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plaintext, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrIntegrityFailure, err)
	}
	return plaintext, nil
}

// pkcs7Pad appends 1..blockSize bytes, each equal to the pad length. The
// empty input pads to one full block, so every plaintext round-trips.
// A fresh slice is returned; the input is never modified.
func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, 0, len(data)+n)
	padded = append(padded, data...)
	return append(padded, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding byte %d", n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-n], nil
}
