package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalObjectStore implements ObjectStore on the local filesystem, serving
// uploads back under baseURL. Content-addressed: uploading the same payload
// twice yields the same URL.
type LocalObjectStore struct {
	root    string
	baseURL string
}

func NewLocalObjectStore(root, baseURL string) (*LocalObjectStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &LocalObjectStore{root: root, baseURL: baseURL}, nil
}

func (s *LocalObjectStore) getPath(name string) string {
	if len(name) < 2 {
		return filepath.Join(s.root, name)
	}
	return filepath.Join(s.root, name[:2], name)
}

func (s *LocalObjectStore) Upload(r io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read payload: %w", err)
	}

	sum := sha256.Sum256(data)
	name := hex.EncodeToString(sum[:]) + Extension(data)
	path := s.getPath(name)
	url := s.baseURL + "/files/" + name

	// Idempotency check
	if _, err := os.Stat(path); err == nil {
		return url, nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// Write to temporary file first
	tmp, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name()) // Clean up if rename fails
	}()

	if _, err := tmp.Write(data); err != nil {
		return "", fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	// Atomically rename
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to rename file: %w", err)
	}

	return url, nil
}

// Open returns the stored payload for the given file name.
func (s *LocalObjectStore) Open(name string) (io.ReadCloser, error) {
	f, err := os.Open(s.getPath(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", name, err)
	}
	return f, nil
}
