// Package session owns the upload → processing → results workflow of every
// analysis session.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thermal-analyzer/backend/internal/analysis"
	"github.com/thermal-analyzer/backend/internal/models"
	"go.uber.org/zap"
)

// DefaultMaxSessions limits concurrent sessions to bound held uploads.
const DefaultMaxSessions = 50

const subscriberBuffer = 8

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidTransition = errors.New("invalid workflow transition")
	ErrTooManySessions   = errors.New("too many active sessions")
	ErrManagerClosed     = errors.New("session manager is shut down")
)

// FileStore is the part of storage the manager needs to discard files.
type FileStore interface {
	Delete(id string) error
}

// Recorder receives every completed analysis.
type Recorder interface {
	Record(ctx context.Context, sessionID string, file *models.UploadedFile, completedAt time.Time, emissions []models.EmissionRecord) error
}

// Config configures a Manager.
type Config struct {
	Analyzer    analysis.Analyzer
	Files       FileStore
	Recorder    Recorder
	Logger      *zap.Logger
	MaxSessions int
	// FileURLs builds the content and preview URLs of a held file.
	FileURLs func(fileID string) (imageURL, previewURL string)
}

// DefaultFileURLs points at the API's file endpoints.
func DefaultFileURLs(fileID string) (string, string) {
	return "/api/files/" + fileID + "/content", "/api/files/" + fileID + "/preview"
}

// Manager handles analysis sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*sessionState
	closed   bool
	wg       sync.WaitGroup

	analyzer    analysis.Analyzer
	files       FileStore
	recorder    Recorder
	logger      *zap.Logger
	maxSessions int
	fileURLs    func(string) (string, string)
}

// sessionState is the state container of one session. run is bumped on
// every start, back and teardown so that a late completion of an older run
// is recognised and dropped.
type sessionState struct {
	session      *models.AnalysisSession
	cancel       context.CancelFunc
	run          uint64
	lastAccessed time.Time
	subscribers  map[int]chan *models.AnalysisSession
	nextSub      int
}

// NewManager creates a session manager.
func NewManager(cfg Config) *Manager {
	if cfg.Analyzer == nil {
		cfg.Analyzer = analysis.NewMockAnalyzer(analysis.DefaultDelay, nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.FileURLs == nil {
		cfg.FileURLs = DefaultFileURLs
	}
	return &Manager{
		sessions:    make(map[string]*sessionState),
		analyzer:    cfg.Analyzer,
		files:       cfg.Files,
		recorder:    cfg.Recorder,
		logger:      cfg.Logger.Named("session"),
		maxSessions: cfg.MaxSessions,
		fileURLs:    cfg.FileURLs,
	}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// Create starts a new session in the upload state.
func (m *Manager) Create() (*models.AnalysisSession, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}

	evicted, err := m.makeRoomLocked()
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	id := uuid.New().String()
	st := &sessionState{
		session:      models.NewAnalysisSession(id),
		lastAccessed: time.Now(),
		subscribers:  make(map[int]chan *models.AnalysisSession),
	}
	m.sessions[id] = st
	snap := st.session.Clone()
	m.mu.Unlock()

	m.discardFiles(evicted)
	m.logger.Debug("session created", zap.String("session", shortID(id)))
	return snap, nil
}

// makeRoomLocked evicts the least recently used idle session when at capacity.
func (m *Manager) makeRoomLocked() ([]string, error) {
	if len(m.sessions) < m.maxSessions {
		return nil, nil
	}

	var idle []*sessionState
	for _, st := range m.sessions {
		if st.session.State != models.StateProcessing {
			idle = append(idle, st)
		}
	}
	if len(idle) == 0 {
		return nil, ErrTooManySessions
	}
	sort.Slice(idle, func(i, j int) bool {
		return idle[i].lastAccessed.Before(idle[j].lastAccessed)
	})

	var files []string
	toFree := len(m.sessions) - m.maxSessions + 1
	for i := 0; i < toFree && i < len(idle); i++ {
		id := idle[i].session.ID
		files = append(files, m.removeLocked(id)...)
		m.logger.Info("evicted idle session", zap.String("session", shortID(id)))
	}
	return files, nil
}

// Get returns a snapshot of a session.
func (m *Manager) Get(id string) (*models.AnalysisSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return st.session.Clone(), nil
}

// TouchSession marks a session as in use so cleanup keeps it.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[id]
	if !ok {
		return false
	}
	st.lastAccessed = time.Now()
	return true
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// AttachFile records the selected image. It is only accepted in the upload
// state and replaces any previously selected image.
func (m *Manager) AttachFile(id string, file *models.UploadedFile) (*models.AnalysisSession, error) {
	if file == nil {
		return nil, fmt.Errorf("attach to %s: nil file", id)
	}

	m.mu.Lock()
	st, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	st.lastAccessed = time.Now()

	s := st.session
	if s.State != models.StateUpload {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot select a file while %s", ErrInvalidTransition, s.State)
	}

	var replaced []string
	if s.File != nil && s.File.ID != file.ID {
		replaced = append(replaced, s.File.ID)
	}

	f := *file
	imageURL, previewURL := m.fileURLs(f.ID)
	f.ImageURL = imageURL
	s.File = &f
	s.ImageURL = imageURL
	s.PreviewURL = previewURL
	s.Error = ""

	m.publishLocked(st)
	snap := s.Clone()
	m.mu.Unlock()

	m.discardFiles(replaced)
	m.logger.Info("file selected",
		zap.String("session", shortID(id)),
		zap.String("file", f.Name),
		zap.Int64("size", f.Size))
	return snap, nil
}

// Start begins the analysis. Without a selected file, or while an analysis
// is already running, it is a no-op that returns the current snapshot.
func (m *Manager) Start(id string) (*models.AnalysisSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	st.lastAccessed = time.Now()

	s := st.session
	switch s.State {
	case models.StateProcessing:
		return s.Clone(), nil
	case models.StateResults:
		return nil, fmt.Errorf("%w: cannot start analysis from %s", ErrInvalidTransition, s.State)
	}
	if s.File == nil {
		return s.Clone(), nil
	}
	if m.closed {
		return nil, ErrManagerClosed
	}

	ctx, cancel := context.WithCancel(context.Background())
	st.run++
	st.cancel = cancel

	now := time.Now()
	s.State = models.StateProcessing
	s.Progress = 0
	s.Stage = ""
	s.Error = ""
	s.Results = make([]models.EmissionRecord, 0)
	s.StartedAt = &now
	s.CompletedAt = nil
	s.ProcessingTimeMs = 0

	file := *s.File
	m.wg.Add(1)
	go m.runAnalysis(ctx, m.analyzer, id, st.run, &file)

	m.publishLocked(st)
	m.logger.Info("analysis started", zap.String("session", shortID(id)), zap.String("file", file.Name))
	return s.Clone(), nil
}

func (m *Manager) runAnalysis(ctx context.Context, analyzer analysis.Analyzer, id string, run uint64, file *models.UploadedFile) {
	defer m.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("analysis panicked", zap.String("session", shortID(id)), zap.Any("panic", r))
			m.finish(id, run, nil, fmt.Errorf("analysis panicked: %v", r))
		}
	}()

	records, err := analyzer.Analyze(ctx, file, func(stage string, progress float64) {
		m.updateProgress(id, run, stage, progress)
	})
	if completed := m.finish(id, run, records, err); completed != nil {
		m.record(id, file, completed)
	}
}

func (m *Manager) updateProgress(id string, run uint64, stage string, progress float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[id]
	if !ok || st.run != run || st.session.State != models.StateProcessing {
		return
	}
	// Progress stays below 100 until results are in.
	if progress > 99 {
		progress = 99
	}
	st.session.Stage = stage
	st.session.Progress = progress
	m.publishLocked(st)
}

// finish applies the outcome of a run if the run is still current. It
// returns the completed snapshot on success.
func (m *Manager) finish(id string, run uint64, records []models.EmissionRecord, err error) *models.AnalysisSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[id]
	if !ok || st.run != run || st.session.State != models.StateProcessing {
		m.logger.Debug("dropping stale analysis result", zap.String("session", shortID(id)))
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}

	s := st.session
	now := time.Now()
	if err != nil {
		// No results: back to upload with the file kept so it can be retried.
		s.State = models.StateUpload
		s.Progress = 0
		s.Stage = ""
		s.Error = err.Error()
		s.StartedAt = nil
		m.publishLocked(st)
		m.logger.Warn("analysis failed", zap.String("session", shortID(id)), zap.Error(err))
		return nil
	}

	s.State = models.StateResults
	s.Results = models.CloneEmissions(records)
	if s.Results == nil {
		s.Results = make([]models.EmissionRecord, 0)
	}
	s.Progress = 100
	s.Stage = "complete"
	s.CompletedAt = &now
	if s.StartedAt != nil {
		s.ProcessingTimeMs = now.Sub(*s.StartedAt).Milliseconds()
	}
	m.publishLocked(st)

	m.logger.Info("analysis complete",
		zap.String("session", shortID(id)),
		zap.Int("emissions", len(records)),
		zap.Int64("elapsedMs", s.ProcessingTimeMs))
	return s.Clone()
}

func (m *Manager) record(id string, file *models.UploadedFile, completed *models.AnalysisSession) {
	if m.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	completedAt := time.Now()
	if completed.CompletedAt != nil {
		completedAt = *completed.CompletedAt
	}
	if err := m.recorder.Record(ctx, id, file, completedAt, completed.Results); err != nil {
		m.logger.Warn("failed to record analysis history", zap.String("session", shortID(id)), zap.Error(err))
	}
}

// Back returns the session to the upload state, discarding the file,
// preview and results. An analysis in flight is cancelled.
func (m *Manager) Back(id string) (*models.AnalysisSession, error) {
	m.mu.Lock()
	st, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	st.lastAccessed = time.Now()

	if st.session.State == models.StateUpload {
		snap := st.session.Clone()
		m.mu.Unlock()
		return snap, nil
	}

	from := st.session.State
	files := m.resetLocked(st)
	m.publishLocked(st)
	snap := st.session.Clone()
	m.mu.Unlock()

	m.discardFiles(files)
	m.logger.Info("returned to upload", zap.String("session", shortID(id)), zap.String("from", string(from)))
	return snap, nil
}

// resetLocked cancels any run and clears every held payload.
func (m *Manager) resetLocked(st *sessionState) []string {
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}
	st.run++

	var files []string
	s := st.session
	if s.File != nil {
		files = append(files, s.File.ID)
	}
	s.State = models.StateUpload
	s.File = nil
	s.ImageURL = ""
	s.PreviewURL = ""
	s.Results = make([]models.EmissionRecord, 0)
	s.Progress = 0
	s.Stage = ""
	s.Error = ""
	s.StartedAt = nil
	s.CompletedAt = nil
	s.ProcessingTimeMs = 0
	return files
}

// Delete tears a session down, cancelling any analysis in flight.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	if _, ok := m.sessions[id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	files := m.removeLocked(id)
	m.mu.Unlock()

	m.discardFiles(files)
	m.logger.Debug("session deleted", zap.String("session", shortID(id)))
	return nil
}

func (m *Manager) removeLocked(id string) []string {
	st := m.sessions[id]
	files := m.resetLocked(st)
	for sid, ch := range st.subscribers {
		close(ch)
		delete(st.subscribers, sid)
	}
	delete(m.sessions, id)
	return files
}

// CleanupOldSessions removes sessions that are not processing and have not
// been accessed within maxAge.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) {
	m.mu.Lock()
	cutoff := time.Now().Add(-maxAge)
	var files []string
	for id, st := range m.sessions {
		if st.session.State == models.StateProcessing {
			continue
		}
		if st.lastAccessed.Before(cutoff) {
			files = append(files, m.removeLocked(id)...)
			m.logger.Info("cleaned up aged session",
				zap.String("session", shortID(id)),
				zap.Duration("idle", time.Since(st.lastAccessed).Round(time.Second)))
		}
	}
	m.mu.Unlock()

	m.discardFiles(files)
}

// Subscribe streams snapshots of a session, starting with the current one.
// The channel is closed when the session is removed or cancel is called.
func (m *Manager) Subscribe(id string) (<-chan *models.AnalysisSession, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	ch := make(chan *models.AnalysisSession, subscriberBuffer)
	subID := st.nextSub
	st.nextSub++
	st.subscribers[subID] = ch
	ch <- st.session.Clone()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if c, ok := st.subscribers[subID]; ok {
				close(c)
				delete(st.subscribers, subID)
			}
		})
	}
	return ch, cancel, nil
}

// publishLocked sends the current snapshot to every subscriber. A full
// subscriber loses its oldest pending snapshot instead of blocking.
func (m *Manager) publishLocked(st *sessionState) {
	if len(st.subscribers) == 0 {
		return
	}
	snap := st.session.Clone()
	for _, ch := range st.subscribers {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (m *Manager) discardFiles(ids []string) {
	if m.files == nil {
		return
	}
	for _, id := range ids {
		if err := m.files.Delete(id); err != nil {
			m.logger.Debug("failed to discard file", zap.String("file", id), zap.Error(err))
		}
	}
}

// Shutdown tears down every session and waits for running analyses.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	var files []string
	for id := range m.sessions {
		files = append(files, m.removeLocked(id)...)
	}
	m.mu.Unlock()

	m.wg.Wait()
	m.discardFiles(files)
}
