package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateBootstrapToken(t *testing.T) {
	tok1, err := GenerateBootstrapToken()
	if err != nil {
		t.Fatalf("GenerateBootstrapToken() error = %v", err)
	}
	tok2, err := GenerateBootstrapToken()
	if err != nil {
		t.Fatalf("GenerateBootstrapToken() error = %v", err)
	}
	if tok1 == "" {
		t.Error("token should not be empty")
	}
	if tok1 == tok2 {
		t.Error("two generated tokens should not be equal")
	}
}

func TestComputeTokenDigest_Deterministic(t *testing.T) {
	digest1 := ComputeTokenDigest("plain-bootstrap-value")
	digest2 := ComputeTokenDigest("plain-bootstrap-value")
	if digest1 != digest2 {
		t.Error("digest of the same token should be deterministic")
	}

	other := ComputeTokenDigest("different-value")
	if digest1 == other {
		t.Error("digests of different tokens should differ")
	}
}

func TestComputeTokenDigest_NeverEqualsPlaintext(t *testing.T) {
	token := "plain-bootstrap-value"
	digest := ComputeTokenDigest(token)
	if digest == token {
		t.Error("digest must never equal the plaintext token")
	}
}

func TestWriteBootstrapTokenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bootstrap-token.txt")
	token := "plain-bootstrap-value"

	if err := WriteBootstrapTokenFile(path, token); err != nil {
		t.Fatalf("WriteBootstrapTokenFile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != token+"\n" {
		t.Errorf("file contents = %q, want %q", data, token+"\n")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != ownerOnlyFileMode {
		t.Errorf("file mode = %v, want %v", info.Mode().Perm(), ownerOnlyFileMode)
	}
}

func TestWriteBootstrapTokenFile_InvalidPath(t *testing.T) {
	err := WriteBootstrapTokenFile(filepath.Join(t.TempDir(), "missing-dir", "token.txt"), "x")
	if err == nil {
		t.Error("WriteBootstrapTokenFile() should fail when the parent directory does not exist")
	}
}
