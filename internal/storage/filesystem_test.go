package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreWrite(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	if !filepath.IsAbs(store.BasePath()) {
		t.Fatalf("BasePath() = %q, want absolute", store.BasePath())
	}
	key, err := store.Write(context.Background(), "downloads/SD-Image-1.png", []byte("one"))
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if key != "downloads/SD-Image-1.png" {
		t.Fatalf("key = %q", key)
	}
	p, err := store.Path(key)
	if err != nil {
		t.Fatalf("Path error: %v", err)
	}
	data, err := os.ReadFile(p)
	if err != nil || string(data) != "one" {
		t.Fatalf("read back %q, %v", data, err)
	}
}

func TestFileStoreWriteNeverOverwrites(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	want := []string{"SD-Image-5.png", "SD-Image-5-1.png", "SD-Image-5-2.png"}
	for i, w := range want {
		key, err := store.Write(context.Background(), "SD-Image-5.png", []byte{byte(i)})
		if err != nil {
			t.Fatalf("Write error: %v", err)
		}
		if key != w {
			t.Fatalf("write %d key = %q, want %q", i, key, w)
		}
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "a.png", want: "a.png"},
		{key: "/abs/a.png", want: "abs/a.png"},
		{key: `dir\a.png`, want: "dir/a.png"},
		{key: "./x/../a.png", want: "a.png"},
		{key: "../escape.png", wantErr: true},
		{key: "..", wantErr: true},
		{key: "   ", wantErr: true},
	}
	for _, tc := range tests {
		got, err := sanitizeKey(tc.key)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("sanitizeKey(%q) expected error, got %q", tc.key, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("sanitizeKey(%q) = %q, %v; want %q", tc.key, got, err, tc.want)
		}
	}
}

func TestFileStoreHonoursContext(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Write(ctx, "a.png", nil); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestFileStoreWriteFailureLeavesNoFile(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	orig := writeData
	writeData = func(io.Writer, []byte) error { return errors.New("no space left on device") }
	_, err = store.Write(context.Background(), "SD-Image-9.png", []byte("partial"))
	writeData = orig
	if err == nil {
		t.Fatalf("expected write error")
	}
	entries, err := os.ReadDir(store.BasePath())
	if err != nil {
		t.Fatalf("ReadDir error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("partial file left behind: %v", entries)
	}

	key, err := store.Write(context.Background(), "SD-Image-9.png", []byte("full"))
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if key != "SD-Image-9.png" {
		t.Fatalf("key = %q, want the original name", key)
	}
}
