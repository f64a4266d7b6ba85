// mock_storage.go - Mock storage implementation for testing
package testutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/thermal-analyzer/backend/internal/models"
	"github.com/thermal-analyzer/backend/internal/storage"
)

// ErrNotOnDisk is returned by GetFilePath; the mock keeps files in memory.
var ErrNotOnDisk = errors.New("mock storage keeps files in memory")

// MockStorage implements storage.Store for testing
type MockStorage struct {
	files    map[string]*models.UploadedFile
	fileData map[string][]byte
	chunks   map[string]map[int][]byte // uploadID -> chunkIndex -> data
	deleted  []string
	mu       sync.RWMutex
}

// NewMockStorage creates a new mock storage with default implementations
func NewMockStorage() *MockStorage {
	return &MockStorage{
		files:    make(map[string]*models.UploadedFile),
		fileData: make(map[string][]byte),
		chunks:   make(map[string]map[int][]byte),
	}
}

func (m *MockStorage) Save(name, mimeType string, r io.Reader) (*models.UploadedFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return m.SaveBytes(name, mimeType, data)
}

func (m *MockStorage) SaveBytes(name, mimeType string, data []byte) (*models.UploadedFile, error) {
	return m.AddFile(generateTestID(), name, mimeType, data), nil
}

func (m *MockStorage) Get(id string) (*models.UploadedFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, ok := m.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrFileNotFound, id)
	}
	c := *file
	return &c, nil
}

func (m *MockStorage) Open(id string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.fileData[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrFileNotFound, id)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.files[id]; !exists {
		return fmt.Errorf("%w: %s", storage.ErrFileNotFound, id)
	}

	delete(m.files, id)
	delete(m.fileData, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *MockStorage) GetFilePath(id string) (string, error) {
	return "", ErrNotOnDisk
}

func (m *MockStorage) SaveChunk(uploadID string, chunkIndex int, r io.Reader) error {
	if !storage.ValidUploadID(uploadID) {
		return storage.ErrInvalidUploadID
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.chunks[uploadID] == nil {
		m.chunks[uploadID] = make(map[int][]byte)
	}
	m.chunks[uploadID][chunkIndex] = data
	return nil
}

func (m *MockStorage) CompleteChunkedUpload(uploadID, name, mimeType string, totalChunks int) (*models.UploadedFile, error) {
	if !storage.ValidUploadID(uploadID) {
		return nil, storage.ErrInvalidUploadID
	}
	m.mu.Lock()
	uploadChunks, ok := m.chunks[uploadID]
	if !ok {
		m.mu.Unlock()
		return nil, errors.New("upload not found")
	}

	// Concatenate all chunks
	var data bytes.Buffer
	for i := 0; i < totalChunks; i++ {
		chunk, ok := uploadChunks[i]
		if !ok {
			m.mu.Unlock()
			return nil, fmt.Errorf("missing chunk %d", i)
		}
		data.Write(chunk)
	}
	delete(m.chunks, uploadID)
	m.mu.Unlock()

	return m.AddFile(generateTestID(), name, mimeType, data.Bytes()), nil
}

func (m *MockStorage) DiscardChunks(uploadID string) error {
	if !storage.ValidUploadID(uploadID) {
		return storage.ErrInvalidUploadID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, uploadID)
	return nil
}

// Ensure MockStorage implements storage.Store
var _ storage.Store = (*MockStorage)(nil)

// Test Helper Methods

// AddFile adds a file directly to the mock
func (m *MockStorage) AddFile(id, name, mimeType string, data []byte) *models.UploadedFile {
	m.mu.Lock()
	defer m.mu.Unlock()

	file := &models.UploadedFile{
		ID:         id,
		Name:       name,
		Type:       mimeType,
		Size:       int64(len(data)),
		UploadedAt: time.Now(),
	}
	m.files[id] = file
	m.fileData[id] = data
	c := *file
	return &c
}

// GetFileData returns the file content
func (m *MockStorage) GetFileData(id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.fileData[id]
	if !ok {
		return nil, storage.ErrFileNotFound
	}
	return data, nil
}

// GetFileCount returns the number of stored files
func (m *MockStorage) GetFileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

// Deleted returns the IDs passed to Delete, in order
func (m *MockStorage) Deleted() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.deleted...)
}

// PendingChunks returns how many uploads still have chunks held
func (m *MockStorage) PendingChunks() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

// Clear removes all files
func (m *MockStorage) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = make(map[string]*models.UploadedFile)
	m.fileData = make(map[string][]byte)
	m.chunks = make(map[string]map[int][]byte)
	m.deleted = nil
}

// generateTestID generates a simple test ID
var testIDCounter int
var testIDMutex sync.Mutex

func generateTestID() string {
	testIDMutex.Lock()
	defer testIDMutex.Unlock()
	testIDCounter++
	return fmt.Sprintf("test-id-%d", testIDCounter)
}
