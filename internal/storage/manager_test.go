// manager_test.go - Tests for storage layer
package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/svg-workbench/backend/internal/models"
)

const testSVG = `<svg xmlns="http://www.w3.org/2000/svg"><rect x="0" y="0" width="1" height="1"/></svg>`

func createTestStore(t *testing.T) *LocalStore {
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

		info, err := store.Save("logo.svg", strings.NewReader(testSVG))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}

		if info.ID == "" {
			t.Error("Expected ID to be set")
		}
		if info.Name != "logo.svg" {
			t.Errorf("Expected name 'logo.svg', got %v", info.Name)
		}
		if info.Size != int64(len(testSVG)) {
			t.Errorf("Expected size %d, got %d", len(testSVG), info.Size)
		}
		if info.Status != models.FileStatusUploaded {
			t.Errorf("Expected status 'uploaded', got %v", info.Status)
		}

		data, err := os.ReadFile(filepath.Join(store.uploadDir, info.ID))
		if err != nil {
			t.Fatalf("Failed to read saved file: %v", err)
		}
		if string(data) != testSVG {
			t.Errorf("Saved data doesn't match original")
		}
	})

	t.Run("strips directories from the name", func(t *testing.T) {
		store := createTestStore(t)

		info, err := store.SaveBytes(`..\..\etc/evil.svg`, []byte(testSVG))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}
		if info.Name != "evil.svg" {
			t.Errorf("Expected name 'evil.svg', got %v", info.Name)
		}
	})
}

func TestLocalStore_List(t *testing.T) {
	store := createTestStore(t)

	ids := make([]string, 3)
	for i := range ids {
		info, err := store.SaveBytes("file.svg", []byte(testSVG))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}
		ids[i] = info.ID
		time.Sleep(10 * time.Millisecond)
	}

	files, err := store.List(2)
	if err != nil {
		t.Fatalf("Failed to list files: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(files))
	}
	if files[0].ID != ids[2] {
		t.Error("Expected files to be sorted by time descending")
	}

	all, _ := store.List(0)
	if len(all) != 3 {
		t.Errorf("Expected all 3 files without a limit, got %d", len(all))
	}
}

func TestLocalStore_DeleteAndRename(t *testing.T) {
	store := createTestStore(t)
	info, err := store.SaveBytes("old.svg", []byte(testSVG))
	if err != nil {
		t.Fatalf("Failed to save file: %v", err)
	}

	updated, err := store.Rename(info.ID, "new.svg")
	if err != nil {
		t.Fatalf("Failed to rename file: %v", err)
	}
	if updated.Name != "new.svg" {
		t.Errorf("Expected name 'new.svg', got %v", updated.Name)
	}

	// Returned metadata is a copy.
	updated.Name = "mutated.svg"
	retrieved, _ := store.Get(info.ID)
	if retrieved.Name != "new.svg" {
		t.Errorf("Expected stored name to stay 'new.svg', got %v", retrieved.Name)
	}

	if err := store.Delete(info.ID); err != nil {
		t.Fatalf("Failed to delete file: %v", err)
	}
	if _, err := store.Get(info.ID); err == nil {
		t.Error("Expected error when getting deleted file")
	}
	if _, err := os.Stat(filepath.Join(store.uploadDir, info.ID)); !os.IsNotExist(err) {
		t.Error("Physical file should be deleted")
	}
	if err := store.Delete(info.ID); err == nil {
		t.Error("Expected error when deleting twice")
	}
	if _, err := store.Rename("non-existent-id", "x.svg"); err == nil {
		t.Error("Expected error when renaming non-existent file")
	}
}

func TestLocalStore_ChunkedUpload(t *testing.T) {
	t.Run("assembles chunks in order", func(t *testing.T) {
		store := createTestStore(t)
		parts := []string{testSVG[:10], testSVG[10:40], testSVG[40:]}

		// Deliberately out of order.
		for _, i := range []int{2, 0, 1} {
			if err := store.SaveChunkBytes("upload-1", i, []byte(parts[i])); err != nil {
				t.Fatalf("Failed to save chunk %d: %v", i, err)
			}
		}

		info, err := store.CompleteChunkedUpload("upload-1", "big.svg", len(parts))
		if err != nil {
			t.Fatalf("Failed to complete upload: %v", err)
		}

		data, _ := os.ReadFile(filepath.Join(store.uploadDir, info.ID))
		if !bytes.Equal(data, []byte(testSVG)) {
			t.Errorf("Assembled data mismatch: %q", data)
		}
		if _, err := os.Stat(filepath.Join(store.uploadDir, "chunks", "upload-1")); !os.IsNotExist(err) {
			t.Error("Expected chunk directory to be removed")
		}
	})

	t.Run("missing chunk fails", func(t *testing.T) {
		store := createTestStore(t)
		if err := store.SaveChunkBytes("upload-2", 0, []byte("a")); err != nil {
			t.Fatal(err)
		}
		if _, err := store.CompleteChunkedUpload("upload-2", "x.svg", 2); err == nil {
			t.Error("Expected error for missing chunk")
		}
		files, _ := store.List(0)
		if len(files) != 0 {
			t.Errorf("Expected no files after failed upload, got %d", len(files))
		}
	})

	t.Run("rejects path-like upload ids", func(t *testing.T) {
		store := createTestStore(t)
		if err := store.SaveChunkBytes("../escape", 0, []byte("a")); err == nil {
			t.Error("Expected error for upload id with a path")
		}
		if err := store.SaveChunkBytes("ok", -1, []byte("a")); err == nil {
			t.Error("Expected error for negative chunk index")
		}
	})
}

func TestLocalStore_RegisterAndRefresh(t *testing.T) {
	store := createTestStore(t)
	id := "11111111-2222-3333-4444-555555555555"
	if err := os.WriteFile(filepath.Join(store.uploadDir, id), []byte(testSVG), 0644); err != nil {
		t.Fatal(err)
	}

	if err := store.RegisterFile(&models.FileInfo{ID: id, Name: "restored.svg", Status: models.FileStatusValid}); err != nil {
		t.Fatalf("Failed to register file: %v", err)
	}
	info, err := store.Get(id)
	if err != nil {
		t.Fatalf("Failed to get registered file: %v", err)
	}
	if info.Size != int64(len(testSVG)) || info.UploadedAt.IsZero() {
		t.Errorf("Expected size and time from disk, got %+v", info)
	}

	if err := os.WriteFile(filepath.Join(store.uploadDir, id), []byte("<svg/>"), 0644); err != nil {
		t.Fatal(err)
	}
	refreshed, err := store.Refresh(id)
	if err != nil {
		t.Fatalf("Failed to refresh: %v", err)
	}
	if refreshed.Size != 6 {
		t.Errorf("Expected size 6 after refresh, got %d", refreshed.Size)
	}

	if err := store.SetStatus(id, models.FileStatusInvalid); err != nil {
		t.Fatal(err)
	}
	info, _ = store.Get(id)
	if info.Status != models.FileStatusInvalid {
		t.Errorf("Expected status invalid, got %s", info.Status)
	}

	if err := store.RegisterFile(&models.FileInfo{ID: "missing"}); err == nil {
		t.Error("Expected error registering a file that is not on disk")
	}
}
