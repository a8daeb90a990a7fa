package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to a temp file beside path, syncs it, and
// renames it into place. Readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// WriteFileVerified writes data atomically, reads it back, and compares
// SHA256 digests. Removes path on mismatch.
func WriteFileVerified(path string, data []byte, mode os.FileMode) error {
	if err := WriteFileAtomic(path, data, mode); err != nil {
		return err
	}
	written, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read back: %w", err)
	}
	if len(written) != len(data) {
		_ = os.Remove(path)
		return fmt.Errorf("write size mismatch: expected %d bytes, found %d bytes", len(data), len(written))
	}
	want := sha256.Sum256(data)
	got := sha256.Sum256(written)
	if !bytes.Equal(want[:], got[:]) {
		_ = os.Remove(path)
		return fmt.Errorf("write hash mismatch: file corrupted on disk")
	}
	return nil
}
