package security

import (
	"bytes"
	"testing"
)

func TestNewKEK(t *testing.T) {
	tests := []struct {
		name    string
		key     []byte
		wantErr bool
	}{
		{name: "valid 32-byte key", key: make([]byte, 32), wantErr: false},
		{name: "invalid short key", key: make([]byte, 16), wantErr: true},
		{name: "invalid long key", key: make([]byte, 64), wantErr: true},
		{name: "empty key", key: []byte{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kek, err := NewKEK(tt.key, 1)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewKEK() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && kek == nil {
				t.Error("NewKEK() returned nil without error")
			}
		})
	}
}

func TestGenerateKEK(t *testing.T) {
	kek1, err := GenerateKEK(1)
	if err != nil {
		t.Fatalf("GenerateKEK() error = %v", err)
	}
	kek2, err := GenerateKEK(1)
	if err != nil {
		t.Fatalf("GenerateKEK() error = %v", err)
	}
	if bytes.Equal(kek1.key, kek2.key) {
		t.Error("two generated KEKs should not be equal")
	}
}

func TestWrapUnwrapDEKRoundtrip(t *testing.T) {
	kek, err := GenerateKEK(1)
	if err != nil {
		t.Fatalf("GenerateKEK() error = %v", err)
	}

	dek, err := GenerateDEK()
	if err != nil {
		t.Fatalf("GenerateDEK() error = %v", err)
	}

	wrapped, err := kek.WrapDEK(dek)
	if err != nil {
		t.Fatalf("WrapDEK() error = %v", err)
	}
	if bytes.Equal(wrapped, dek) {
		t.Error("wrapped DEK should not equal plaintext DEK")
	}

	unwrapped, err := kek.UnwrapDEK(wrapped)
	if err != nil {
		t.Fatalf("UnwrapDEK() error = %v", err)
	}
	if !bytes.Equal(unwrapped, dek) {
		t.Error("unwrapped DEK does not match original")
	}
}

func TestEncryptDecryptFieldRoundtrip(t *testing.T) {
	kek, err := GenerateKEK(1)
	if err != nil {
		t.Fatalf("GenerateKEK() error = %v", err)
	}

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{name: "simple string", plaintext: []byte("hello world")},
		{name: "json data", plaintext: []byte(`{"api_hash":"abc123"}`)},
		{name: "binary data", plaintext: []byte{0x00, 0x01, 0x02, 0xFF, 0xFE, 0xFD}},
		{name: "large data", plaintext: bytes.Repeat([]byte("test"), 1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrappedDEK, ciphertext, err := kek.EncryptField(tt.plaintext)
			if err != nil {
				t.Fatalf("EncryptField() error = %v", err)
			}
			if bytes.Equal(ciphertext, tt.plaintext) {
				t.Error("ciphertext should not equal plaintext")
			}

			decrypted, err := kek.DecryptField(wrappedDEK, ciphertext)
			if err != nil {
				t.Fatalf("DecryptField() error = %v", err)
			}
			if !bytes.Equal(decrypted, tt.plaintext) {
				t.Errorf("decrypted data does not match original.\nGot:  %v\nWant: %v", decrypted, tt.plaintext)
			}
		})
	}
}

func TestDecryptFieldWithWrongKEK(t *testing.T) {
	kek1, _ := GenerateKEK(1)
	kek2, _ := GenerateKEK(1)

	plaintext := []byte("secret data")
	wrappedDEK, ciphertext, err := kek1.EncryptField(plaintext)
	if err != nil {
		t.Fatalf("EncryptField() error = %v", err)
	}

	_, err = kek2.DecryptField(wrappedDEK, ciphertext)
	if err == nil {
		t.Error("DecryptField() should fail when unwrapping with the wrong KEK")
	}
}

func TestRewrapDEK(t *testing.T) {
	oldKEK, _ := GenerateKEK(1)
	newKEK, _ := GenerateKEK(2)

	plaintext := []byte("session blob")
	wrappedDEK, ciphertext, err := oldKEK.EncryptField(plaintext)
	if err != nil {
		t.Fatalf("EncryptField() error = %v", err)
	}

	rewrapped, err := RewrapDEK(oldKEK, newKEK, wrappedDEK)
	if err != nil {
		t.Fatalf("RewrapDEK() error = %v", err)
	}

	// Row ciphertext is untouched by rotation; only the wrapped DEK changes.
	decrypted, err := newKEK.DecryptField(rewrapped, ciphertext)
	if err != nil {
		t.Fatalf("DecryptField() after rotation error = %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Error("decrypted data after rotation does not match original")
	}

	if _, err := oldKEK.DecryptField(rewrapped, ciphertext); err == nil {
		t.Error("old KEK should no longer be able to unwrap the rewrapped DEK")
	}
}

func TestWrapDEK_WrongSize(t *testing.T) {
	kek, _ := GenerateKEK(1)
	_, err := kek.WrapDEK([]byte("too-short"))
	if err == nil {
		t.Error("WrapDEK() should fail for a DEK that is not 32 bytes")
	}
}
