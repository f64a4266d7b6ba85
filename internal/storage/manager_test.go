// manager_test.go - Tests for storage layer
package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func createTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestNewLocalStore(t *testing.T) {
	t.Run("creates upload directory", func(t *testing.T) {
		uploadDir := filepath.Join(t.TempDir(), "uploads")

		if _, err := NewLocalStore(uploadDir); err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}

		if _, err := os.Stat(uploadDir); os.IsNotExist(err) {
			t.Error("Expected upload directory to be created")
		}
	})
}

func TestLocalStore_Save(t *testing.T) {
	t.Run("saves file from reader", func(t *testing.T) {
		store := createTestStore(t)

		content := "\x89PNG fake"
		info, err := store.Save("sample.png", "image/png", strings.NewReader(content))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}

		if info.ID == "" {
			t.Error("Expected ID to be set")
		}
		if info.Name != "sample.png" {
			t.Errorf("Expected name 'sample.png', got %v", info.Name)
		}
		if info.Type != "image/png" {
			t.Errorf("Expected type 'image/png', got %v", info.Type)
		}
		if info.Size != int64(len(content)) {
			t.Errorf("Expected size %d, got %d", len(content), info.Size)
		}
	})

	t.Run("creates physical file", func(t *testing.T) {
		store := createTestStore(t)

		info, err := store.SaveBytes("a.jpg", "image/jpeg", []byte("jpeg bytes"))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}

		data, err := os.ReadFile(filepath.Join(store.uploadDir, info.ID))
		if err != nil {
			t.Fatalf("Failed to read saved file: %v", err)
		}
		if string(data) != "jpeg bytes" {
			t.Errorf("Expected content 'jpeg bytes', got '%s'", string(data))
		}
	})
}

func TestLocalStore_OpenAndDelete(t *testing.T) {
	store := createTestStore(t)

	info, err := store.SaveBytes("a.tif", "image/tiff", []byte("tiff"))
	if err != nil {
		t.Fatalf("Failed to save file: %v", err)
	}

	rc, err := store.Open(info.ID)
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "tiff" {
		t.Errorf("Expected 'tiff', got %q", data)
	}

	if err := store.Delete(info.ID); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Expected empty store, got %d files", store.Len())
	}
	if _, err := store.Get(info.ID); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound, got %v", err)
	}
	if err := store.Delete(info.ID); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound on second delete, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.uploadDir, info.ID)); !os.IsNotExist(err) {
		t.Error("Expected physical file to be removed")
	}
}

func TestLocalStore_Get_ReturnsCopy(t *testing.T) {
	store := createTestStore(t)

	info, _ := store.SaveBytes("a.png", "image/png", []byte("x"))
	got, err := store.Get(info.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	got.Name = "changed.png"

	again, _ := store.Get(info.ID)
	if again.Name != "a.png" {
		t.Errorf("Expected stored name to be unchanged, got %s", again.Name)
	}
}

func TestLocalStore_ChunkedUpload(t *testing.T) {
	t.Run("assembles chunks in order", func(t *testing.T) {
		store := createTestStore(t)

		if err := store.SaveChunk("up-1", 1, strings.NewReader("world")); err != nil {
			t.Fatalf("SaveChunk failed: %v", err)
		}
		if err := store.SaveChunk("up-1", 0, strings.NewReader("hello ")); err != nil {
			t.Fatalf("SaveChunk failed: %v", err)
		}

		info, err := store.CompleteChunkedUpload("up-1", "big.tiff", "image/tiff", 2)
		if err != nil {
			t.Fatalf("CompleteChunkedUpload failed: %v", err)
		}
		if info.Size != 11 {
			t.Errorf("Expected size 11, got %d", info.Size)
		}

		data, _ := os.ReadFile(filepath.Join(store.uploadDir, info.ID))
		if string(data) != "hello world" {
			t.Errorf("Expected 'hello world', got %q", data)
		}
		if _, err := os.Stat(filepath.Join(store.chunkRoot(), "up-1")); !os.IsNotExist(err) {
			t.Error("Expected chunk directory to be removed")
		}
	})

	t.Run("missing chunk fails without registering", func(t *testing.T) {
		store := createTestStore(t)

		store.SaveChunk("up-2", 0, strings.NewReader("only one"))
		if _, err := store.CompleteChunkedUpload("up-2", "x.png", "image/png", 2); err == nil {
			t.Fatal("Expected error for missing chunk")
		}
		if store.Len() != 0 {
			t.Errorf("Expected no registered files, got %d", store.Len())
		}
	})

	t.Run("rejects negative index", func(t *testing.T) {
		store := createTestStore(t)
		if err := store.SaveChunk("up-3", -1, strings.NewReader("x")); err == nil {
			t.Error("Expected error for negative chunk index")
		}
	})

	t.Run("discard removes chunks", func(t *testing.T) {
		store := createTestStore(t)
		store.SaveChunk("up-4", 0, strings.NewReader("x"))
		if err := store.DiscardChunks("up-4"); err != nil {
			t.Fatalf("DiscardChunks failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(store.chunkRoot(), "up-4")); !os.IsNotExist(err) {
			t.Error("Expected chunk directory to be removed")
		}
	})
}

func TestLocalStore_Register_ReturnsCopy(t *testing.T) {
	store := createTestStore(t)

	info, err := store.SaveBytes("a.png", "image/png", []byte("x"))
	if err != nil {
		t.Fatalf("SaveBytes failed: %v", err)
	}
	info.DetectedType = "image/png"
	info.Width = 640

	stored, _ := store.Get(info.ID)
	if stored.DetectedType != "" || stored.Width != 0 {
		t.Errorf("Expected stored metadata to be unchanged, got %+v", stored)
	}
}

func TestValidUploadID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"up-1", true},
		{"3f2b9c4e-8d1a-4c7e-9b0a-1f2e3d4c5b6a", true},
		{"upload_42", true},
		{"", false},
		{".", false},
		{"..", false},
		{"a/b", false},
		{"../up-1", false},
		{`a\b`, false},
		{"a.b", false},
		{strings.Repeat("a", maxUploadIDLen+1), false},
	}
	for _, tt := range tests {
		if got := ValidUploadID(tt.id); got != tt.want {
			t.Errorf("ValidUploadID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestLocalStore_RejectsTraversingUploadIDs(t *testing.T) {
	for _, id := range []string{"..", ".", "a/b", ""} {
		t.Run("id="+id, func(t *testing.T) {
			store := createTestStore(t)

			held, err := store.SaveBytes("held.png", "image/png", []byte("keep me"))
			if err != nil {
				t.Fatalf("SaveBytes failed: %v", err)
			}
			if err := store.SaveChunk("other", 0, strings.NewReader("x")); err != nil {
				t.Fatalf("SaveChunk failed: %v", err)
			}

			if err := store.DiscardChunks(id); !errors.Is(err, ErrInvalidUploadID) {
				t.Errorf("DiscardChunks: expected ErrInvalidUploadID, got %v", err)
			}
			if err := store.SaveChunk(id, 0, strings.NewReader("x")); !errors.Is(err, ErrInvalidUploadID) {
				t.Errorf("SaveChunk: expected ErrInvalidUploadID, got %v", err)
			}
			if _, err := store.CompleteChunkedUpload(id, "x.png", "image/png", 1); !errors.Is(err, ErrInvalidUploadID) {
				t.Errorf("CompleteChunkedUpload: expected ErrInvalidUploadID, got %v", err)
			}

			if _, err := os.Stat(store.uploadDir); err != nil {
				t.Fatalf("Expected upload directory to survive: %v", err)
			}
			path, err := store.GetFilePath(held.ID)
			if err != nil {
				t.Fatalf("GetFilePath failed: %v", err)
			}
			if data, err := os.ReadFile(path); err != nil || string(data) != "keep me" {
				t.Errorf("Expected held file to survive, got %q (%v)", data, err)
			}
			if _, err := os.Stat(filepath.Join(store.chunkRoot(), "other")); err != nil {
				t.Errorf("Expected other upload's chunks to survive: %v", err)
			}
			if store.Len() != 1 {
				t.Errorf("Expected only the held file, got %d files", store.Len())
			}
		})
	}
}

func TestLocalStore_CleanupStaleChunks(t *testing.T) {
	t.Run("removes only old chunk directories", func(t *testing.T) {
		store := createTestStore(t)
		store.SaveChunk("stale", 0, strings.NewReader("x"))
		store.SaveChunk("fresh", 0, strings.NewReader("y"))

		old := time.Now().Add(-2 * time.Hour)
		if err := os.Chtimes(filepath.Join(store.chunkRoot(), "stale"), old, old); err != nil {
			t.Fatalf("Chtimes failed: %v", err)
		}

		removed, err := store.CleanupStaleChunks(time.Hour)
		if err != nil {
			t.Fatalf("CleanupStaleChunks failed: %v", err)
		}
		if removed != 1 {
			t.Errorf("Expected 1 removed, got %d", removed)
		}
		if _, err := os.Stat(filepath.Join(store.chunkRoot(), "stale")); !os.IsNotExist(err) {
			t.Error("Expected stale chunks to be removed")
		}
		if _, err := os.Stat(filepath.Join(store.chunkRoot(), "fresh")); err != nil {
			t.Errorf("Expected fresh chunks to be kept: %v", err)
		}
	})

	t.Run("no chunk directory yet", func(t *testing.T) {
		store := createTestStore(t)
		removed, err := store.CleanupStaleChunks(time.Hour)
		if err != nil || removed != 0 {
			t.Errorf("Expected (0, nil), got (%d, %v)", removed, err)
		}
	})
}
