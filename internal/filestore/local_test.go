package filestore

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

// pngHeader is the 8-byte PNG signature followed by filler so the sniffer
// has enough to work with.
var pngHeader = append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 24)...)

func TestLocalObjectStore_Upload(t *testing.T) {
	store, err := NewLocalObjectStore(t.TempDir(), "http://localhost:8080")
	if err != nil {
		t.Fatalf("NewLocalObjectStore failed: %v", err)
	}

	url, err := store.Upload(bytes.NewReader(pngHeader), "image")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if !strings.HasPrefix(url, "http://localhost:8080/files/") {
		t.Errorf("unexpected url: %s", url)
	}
	if !strings.HasSuffix(url, ".png") {
		t.Errorf("expected sniffed .png extension, got %s", url)
	}

	// Content-addressed: same payload, same URL
	again, err := store.Upload(bytes.NewReader(pngHeader), "image")
	if err != nil {
		t.Fatalf("second Upload failed: %v", err)
	}
	if again != url {
		t.Errorf("expected identical url, got %s and %s", url, again)
	}

	name := url[strings.LastIndex(url, "/")+1:]
	f, err := store.Open(name)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(data, pngHeader) {
		t.Error("stored payload does not round-trip")
	}
}

func TestLocalObjectStore_OpenUnknown(t *testing.T) {
	store, err := NewLocalObjectStore(t.TempDir(), "http://localhost:8080")
	if err != nil {
		t.Fatalf("NewLocalObjectStore failed: %v", err)
	}
	if _, err := store.Open("missing"); err == nil {
		t.Error("expected error for unknown file")
	}
}

func TestResourceType(t *testing.T) {
	cases := []struct {
		name string
		head []byte
		want string
	}{
		{"png", pngHeader, "image"},
		{"mp3", append([]byte("ID3"), make([]byte, 29)...), "video"},
		{"unknown", []byte("plain text, nothing to sniff"), "auto"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResourceType(tc.head); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
