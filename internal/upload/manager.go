// Package upload validates thermal images and assembles chunked uploads.
package upload

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thermal-analyzer/backend/internal/models"
	"github.com/thermal-analyzer/backend/internal/storage"
	"go.uber.org/zap"
)

// Status represents the upload processing status.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusAssembling Status = "assembling"
	StatusInspecting Status = "inspecting"
	StatusAttaching  Status = "attaching"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Job represents an async chunked upload job.
type Job struct {
	ID          string               `json:"id"`
	UploadID    string               `json:"uploadId"`
	SessionID   string               `json:"sessionId"`
	FileName    string               `json:"fileName"`
	MIMEType    string               `json:"type"`
	TotalChunks int                  `json:"totalChunks"`
	Status      Status               `json:"status"`
	Progress    float64              `json:"progress"`
	Stage       string               `json:"stage"`
	File        *models.UploadedFile `json:"file,omitempty"`
	Error       string               `json:"error,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
	CompletedAt *time.Time           `json:"completedAt,omitempty"`
}

// JobRequest describes a chunked upload ready to be assembled.
type JobRequest struct {
	UploadID    string
	SessionID   string
	FileName    string
	MIMEType    string
	TotalChunks int
}

// Store defines the interface needed from storage layer.
type Store interface {
	CompleteChunkedUpload(uploadID, name, mimeType string, totalChunks int) (*models.UploadedFile, error)
	GetFilePath(id string) (string, error)
	Delete(id string) error
	DiscardChunks(uploadID string) error
}

// AttachFunc hands an assembled file to its session.
type AttachFunc func(sessionID string, file *models.UploadedFile) error

// Manager handles async chunked upload processing.
type Manager struct {
	jobs   map[string]*Job
	mu     sync.RWMutex
	wg     sync.WaitGroup
	store  Store
	attach AttachFunc
	logger *zap.Logger
}

// NewManager creates a new upload processing manager.
func NewManager(store Store, attach AttachFunc, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		jobs:   make(map[string]*Job),
		store:  store,
		attach: attach,
		logger: logger.Named("upload"),
	}
}

// StartJob validates the request and begins async assembly.
func (m *Manager) StartJob(req JobRequest) (*Job, error) {
	if !storage.ValidUploadID(req.UploadID) {
		return nil, fmt.Errorf("%w: %q", storage.ErrInvalidUploadID, req.UploadID)
	}
	if req.TotalChunks <= 0 {
		return nil, fmt.Errorf("totalChunks must be positive")
	}
	if err := Validate(req.FileName, req.MIMEType); err != nil {
		m.store.DiscardChunks(req.UploadID)
		return nil, err
	}

	job := &Job{
		ID:          uuid.New().String(),
		UploadID:    req.UploadID,
		SessionID:   req.SessionID,
		FileName:    req.FileName,
		MIMEType:    req.MIMEType,
		TotalChunks: req.TotalChunks,
		Status:      StatusProcessing,
		Stage:       "preparing",
		CreatedAt:   time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.processJob(job)
	}()

	return m.snapshot(job), nil
}

// GetJob retrieves a copy of a job by ID.
func (m *Manager) GetJob(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	c := *job
	return &c, true
}

// Wait blocks until every running job has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) snapshot(job *Job) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := *job
	return &c
}

func (m *Manager) processJob(job *Job) {
	log := m.logger.With(zap.String("job", job.ID), zap.String("file", job.FileName))
	log.Info("starting chunk assembly", zap.Int("chunks", job.TotalChunks))

	m.updateJobStatus(job, StatusAssembling, "assembling chunks")
	info, err := m.store.CompleteChunkedUpload(job.UploadID, job.FileName, job.MIMEType, job.TotalChunks)
	if err != nil {
		m.store.DiscardChunks(job.UploadID)
		m.markJobError(job, fmt.Sprintf("failed to assemble chunks: %v", err))
		return
	}

	m.updateJobStatus(job, StatusInspecting, "inspecting image")
	if path, err := m.store.GetFilePath(info.ID); err == nil {
		if insp, err := InspectFile(path); err == nil {
			info.DetectedType = insp.DetectedType
			info.Width = insp.Width
			info.Height = insp.Height
		} else {
			log.Debug("inspection failed", zap.Error(err))
		}
	}

	m.updateJobStatus(job, StatusAttaching, "attaching to session")
	if m.attach != nil {
		if err := m.attach(job.SessionID, info); err != nil {
			m.store.Delete(info.ID)
			m.markJobError(job, fmt.Sprintf("failed to attach file: %v", err))
			return
		}
	}

	m.markJobComplete(job, info)
	log.Info("chunked upload complete", zap.String("fileId", info.ID), zap.Int64("size", info.Size))
}

// updateJobStatus updates job progress (thread-safe).
func (m *Manager) updateJobStatus(job *Job, status Status, stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = status
	job.Stage = stage

	// Assembling: 0-60%, Inspecting: 60-90%, Attaching: 90-100%
	switch status {
	case StatusAssembling:
		job.Progress = 0
	case StatusInspecting:
		job.Progress = 60
	case StatusAttaching:
		job.Progress = 90
	}
}

func (m *Manager) markJobComplete(job *Job, info *models.UploadedFile) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = StatusComplete
	job.Stage = "complete"
	job.Progress = 100
	job.File = info
	now := time.Now()
	job.CompletedAt = &now
}

func (m *Manager) markJobError(job *Job, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = StatusError
	job.Error = errMsg
	now := time.Now()
	job.CompletedAt = &now
	m.logger.Warn("upload job failed", zap.String("job", job.ID), zap.String("error", errMsg))
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for id, job := range m.jobs {
		if job.Status == StatusComplete || job.Status == StatusError {
			if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
				delete(m.jobs, id)
			}
		}
	}
}
