// Package storage holds uploaded images on local disk for the lifetime of
// the analysis session that selected them.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thermal-analyzer/backend/internal/models"
)

var (
	// ErrFileNotFound is returned for unknown file IDs.
	ErrFileNotFound = errors.New("file not found")
	// ErrInvalidUploadID is returned for upload IDs that are not a single
	// plain name segment.
	ErrInvalidUploadID = errors.New("invalid upload id")
)

const maxUploadIDLen = 128

// ValidUploadID reports whether id may name a chunk directory. Only ASCII
// letters, digits, '-' and '_' are accepted, so the ID can never resolve
// outside the chunk root.
func ValidUploadID(id string) bool {
	if id == "" || len(id) > maxUploadIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// Store defines the interface for image storage.
type Store interface {
	Save(name, mimeType string, r io.Reader) (*models.UploadedFile, error)
	SaveBytes(name, mimeType string, data []byte) (*models.UploadedFile, error)
	Get(id string) (*models.UploadedFile, error)
	Open(id string) (io.ReadCloser, error)
	Delete(id string) error
	GetFilePath(id string) (string, error)
	SaveChunk(uploadID string, chunkIndex int, r io.Reader) error
	CompleteChunkedUpload(uploadID, name, mimeType string, totalChunks int) (*models.UploadedFile, error)
	DiscardChunks(uploadID string) error
}

// LocalStore implements Store using the local filesystem.
type LocalStore struct {
	mu        sync.RWMutex
	uploadDir string
	files     map[string]*models.UploadedFile
}

// NewLocalStore creates a new LocalStore.
func NewLocalStore(uploadDir string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	return &LocalStore{
		uploadDir: uploadDir,
		files:     make(map[string]*models.UploadedFile),
	}, nil
}

// Save writes an image to the upload directory.
func (s *LocalStore) Save(name, mimeType string, r io.Reader) (*models.UploadedFile, error) {
	id := uuid.New().String()
	path := filepath.Join(s.uploadDir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	return s.register(id, name, mimeType, size), nil
}

// SaveBytes saves an in-memory image.
func (s *LocalStore) SaveBytes(name, mimeType string, data []byte) (*models.UploadedFile, error) {
	return s.Save(name, mimeType, bytes.NewReader(data))
}

func (s *LocalStore) register(id, name, mimeType string, size int64) *models.UploadedFile {
	info := &models.UploadedFile{
		ID:         id,
		Name:       name,
		Size:       size,
		Type:       mimeType,
		UploadedAt: time.Now(),
	}

	s.mu.Lock()
	s.files[id] = info
	s.mu.Unlock()

	c := *info
	return &c
}

// Get retrieves file metadata by ID.
func (s *LocalStore) Get(id string) (*models.UploadedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}

	c := *info
	return &c, nil
}

// Open returns a reader over the stored bytes.
func (s *LocalStore) Open(id string) (io.ReadCloser, error) {
	path, err := s.GetFilePath(id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	return f, nil
}

// Delete removes a file from storage.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}

	path := filepath.Join(s.uploadDir, id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.files, id)
	return nil
}

// GetFilePath returns the path to a stored file.
func (s *LocalStore) GetFilePath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.files[id]; !ok {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}

	return filepath.Join(s.uploadDir, id), nil
}

// Len returns the number of files currently held.
func (s *LocalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

func (s *LocalStore) chunkRoot() string {
	return filepath.Join(s.uploadDir, "chunks")
}

func (s *LocalStore) chunkDir(uploadID string) (string, error) {
	if !ValidUploadID(uploadID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidUploadID, uploadID)
	}
	return filepath.Join(s.chunkRoot(), uploadID), nil
}

// SaveChunk saves a single chunk to a temporary location.
func (s *LocalStore) SaveChunk(uploadID string, chunkIndex int, r io.Reader) error {
	if chunkIndex < 0 {
		return fmt.Errorf("invalid chunk index %d", chunkIndex)
	}
	chunkDir, err := s.chunkDir(uploadID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(chunkDir, 0755); err != nil {
		return fmt.Errorf("creating chunk directory: %w", err)
	}

	path := filepath.Join(chunkDir, fmt.Sprintf("chunk_%d", chunkIndex))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating chunk file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("writing chunk: %w", err)
	}

	return nil
}

// CompleteChunkedUpload assembles all chunks into a final file.
func (s *LocalStore) CompleteChunkedUpload(uploadID, name, mimeType string, totalChunks int) (*models.UploadedFile, error) {
	chunkDir, err := s.chunkDir(uploadID)
	if err != nil {
		return nil, err
	}
	id := uuid.New().String()
	finalPath := filepath.Join(s.uploadDir, id)

	out, err := os.Create(finalPath)
	if err != nil {
		return nil, fmt.Errorf("creating final file: %w", err)
	}

	var totalSize int64
	for i := 0; i < totalChunks; i++ {
		n, err := appendChunk(out, filepath.Join(chunkDir, fmt.Sprintf("chunk_%d", i)))
		if err != nil {
			out.Close()
			os.Remove(finalPath)
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		totalSize += n
	}
	if err := out.Close(); err != nil {
		os.Remove(finalPath)
		return nil, fmt.Errorf("closing final file: %w", err)
	}

	os.RemoveAll(chunkDir)

	return s.register(id, name, mimeType, totalSize), nil
}

func appendChunk(out io.Writer, path string) (int64, error) {
	in, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	return io.Copy(out, in)
}

// DiscardChunks removes any chunks stored for an upload.
func (s *LocalStore) DiscardChunks(uploadID string) error {
	chunkDir, err := s.chunkDir(uploadID)
	if err != nil {
		return err
	}
	return os.RemoveAll(chunkDir)
}

// CleanupStaleChunks removes chunk directories of uploads that were never
// completed and have not been written to for maxAge. It returns how many
// were removed.
func (s *LocalStore) CleanupStaleChunks(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.chunkRoot())
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading chunk directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !ValidUploadID(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.chunkRoot(), entry.Name())); err != nil {
			return removed, fmt.Errorf("removing stale chunks: %w", err)
		}
		removed++
	}
	return removed, nil
}
