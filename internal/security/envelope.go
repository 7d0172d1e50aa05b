package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
)

// DEKSize is the size in bytes of a per-row data encryption key.
const DEKSize = 32

// KEK is the process-memory-only key-encryption key. It never touches
// disk: it is held only for the lifetime of the process and is re-derived
// or re-entered on every restart via the unlock flow.
type KEK struct {
	key     []byte // 32 bytes, AES-256
	Version int
}

// NewKEK wraps a 32-byte key as a versioned KEK.
func NewKEK(key []byte, version int) (*KEK, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("KEK must be 32 bytes for AES-256, got %d", len(key))
	}
	return &KEK{key: key, Version: version}, nil
}

// DeriveKeyFromPassphrase folds an arbitrary-length secret (an interactive
// unlock passphrase, or an auto-unlock mode secret file's contents) into a
// 32-byte AES-256 key, the same SHA-256 folding
// _examples/cuemby-warren/pkg/security/secrets.go's DeriveKeyFromClusterID
// uses to turn a cluster ID into a key.
func DeriveKeyFromPassphrase(passphrase string) []byte {
	sum := sha256.Sum256([]byte(passphrase))
	return sum[:]
}

// GenerateKEK creates a fresh random KEK, used on first bootstrap.
func GenerateKEK(version int) (*KEK, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate KEK: %w", err)
	}
	return &KEK{key: key, Version: version}, nil
}

// GenerateDEK creates a fresh random per-row data encryption key.
func GenerateDEK() ([]byte, error) {
	dek := make([]byte, DEKSize)
	if _, err := io.ReadFull(rand.Reader, dek); err != nil {
		return nil, fmt.Errorf("generate DEK: %w", err)
	}
	return dek, nil
}

func aesGCMSeal(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func aesGCMOpen(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ct := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

// WrapDEK encrypts a per-row DEK under the KEK. The result is what gets
// stored alongside the row's ciphertext (conceptually dek_wrapped); the
// repository layer is free to store it as a second column or concatenated
// with the row ciphertext, per its own schema.
func (k *KEK) WrapDEK(dek []byte) ([]byte, error) {
	if len(dek) != DEKSize {
		return nil, fmt.Errorf("DEK must be %d bytes, got %d", DEKSize, len(dek))
	}
	return aesGCMSeal(k.key, dek)
}

// UnwrapDEK decrypts a wrapped DEK using the KEK.
func (k *KEK) UnwrapDEK(wrapped []byte) ([]byte, error) {
	dek, err := aesGCMOpen(k.key, wrapped)
	if err != nil {
		return nil, fmt.Errorf("unwrap DEK: %w", err)
	}
	if len(dek) != DEKSize {
		return nil, fmt.Errorf("unwrapped DEK has unexpected length %d", len(dek))
	}
	return dek, nil
}

// EncryptField generates a fresh DEK, wraps it under the KEK, and encrypts
// plaintext under the DEK. It returns the wrapped DEK and the row
// ciphertext, both of which the caller persists.
func (k *KEK) EncryptField(plaintext []byte) (wrappedDEK, ciphertext []byte, err error) {
	dek, err := GenerateDEK()
	if err != nil {
		return nil, nil, err
	}
	wrappedDEK, err = k.WrapDEK(dek)
	if err != nil {
		return nil, nil, err
	}
	ciphertext, err = aesGCMSeal(dek, plaintext)
	if err != nil {
		return nil, nil, err
	}
	return wrappedDEK, ciphertext, nil
}

// DecryptField unwraps the row's DEK under the KEK and decrypts the row
// ciphertext.
func (k *KEK) DecryptField(wrappedDEK, ciphertext []byte) ([]byte, error) {
	dek, err := k.UnwrapDEK(wrappedDEK)
	if err != nil {
		return nil, err
	}
	return aesGCMOpen(dek, ciphertext)
}

// RewrapDEK unwraps a DEK under the old KEK and rewraps it under the new
// KEK, without touching the row ciphertext. This is the core primitive of
// key rotation (internal/auth's key-rotation walk): only the wrapped DEK
// column changes per row, the row ciphertext is untouched.
func RewrapDEK(oldKEK, newKEK *KEK, wrapped []byte) ([]byte, error) {
	dek, err := oldKEK.UnwrapDEK(wrapped)
	if err != nil {
		return nil, fmt.Errorf("unwrap under old KEK: %w", err)
	}
	rewrapped, err := newKEK.WrapDEK(dek)
	if err != nil {
		return nil, fmt.Errorf("wrap under new KEK: %w", err)
	}
	return rewrapped, nil
}

// wrappedDEKLen is the fixed on-disk size of an AES-GCM-wrapped 32-byte
// DEK: a 12-byte nonce, the 32-byte DEK itself, and a 16-byte auth tag.
const wrappedDEKLen = 12 + DEKSize + 16

// PackEnvelope concatenates a wrapped DEK and its row ciphertext into the
// single BLOB each ciphertext column (accounts.api_hash_ct, .session_ct,
// auth_sessions.upstream_session_ct) stores, since the schema has no
// separate wrapped-DEK column. wrappedDEK is always wrappedDEKLen bytes, so
// UnpackEnvelope can split the two back apart unambiguously.
func PackEnvelope(wrappedDEK, ciphertext []byte) ([]byte, error) {
	if len(wrappedDEK) != wrappedDEKLen {
		return nil, fmt.Errorf("wrapped DEK must be %d bytes, got %d", wrappedDEKLen, len(wrappedDEK))
	}
	packed := make([]byte, 0, len(wrappedDEK)+len(ciphertext))
	packed = append(packed, wrappedDEK...)
	packed = append(packed, ciphertext...)
	return packed, nil
}

// UnpackEnvelope splits a column value produced by PackEnvelope back into
// its wrapped DEK and row ciphertext.
func UnpackEnvelope(packed []byte) (wrappedDEK, ciphertext []byte, err error) {
	if len(packed) < wrappedDEKLen {
		return nil, nil, fmt.Errorf("envelope value too short: %d bytes", len(packed))
	}
	return packed[:wrappedDEKLen], packed[wrappedDEKLen:], nil
}

// Seal is the single-call convenience wrapper repositories use to encrypt
// one field end-to-end: generate a DEK, wrap it under k, encrypt plaintext
// under the DEK, and pack the two into one column value.
func (k *KEK) Seal(plaintext []byte) ([]byte, error) {
	wrappedDEK, ciphertext, err := k.EncryptField(plaintext)
	if err != nil {
		return nil, err
	}
	return PackEnvelope(wrappedDEK, ciphertext)
}

// Open is Seal's inverse: unpack a column value and decrypt it under k.
func (k *KEK) Open(packed []byte) ([]byte, error) {
	wrappedDEK, ciphertext, err := UnpackEnvelope(packed)
	if err != nil {
		return nil, err
	}
	return k.DecryptField(wrappedDEK, ciphertext)
}

// RewrapPacked re-wraps a packed column value's DEK under newKEK, leaving
// the row ciphertext untouched. The key-rotation walk calls this once per
// ciphertext column per account, then persists the result in place.
func RewrapPacked(oldKEK, newKEK *KEK, packed []byte) ([]byte, error) {
	wrappedDEK, ciphertext, err := UnpackEnvelope(packed)
	if err != nil {
		return nil, err
	}
	rewrapped, err := RewrapDEK(oldKEK, newKEK, wrappedDEK)
	if err != nil {
		return nil, err
	}
	return PackEnvelope(rewrapped, ciphertext)
}
