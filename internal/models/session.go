package models

import "time"

// WorkflowState is the phase of an analysis session.
type WorkflowState string

const (
	StateUpload     WorkflowState = "upload"
	StateProcessing WorkflowState = "processing"
	StateResults    WorkflowState = "results"
)

// AnalysisSession is a point-in-time snapshot of one analysis workflow.
type AnalysisSession struct {
	ID               string           `json:"id"`
	State            WorkflowState    `json:"state"`
	File             *UploadedFile    `json:"file,omitempty"`
	ImageURL         string           `json:"imageUrl,omitempty"`
	PreviewURL       string           `json:"previewUrl,omitempty"`
	Results          []EmissionRecord `json:"results"`
	Progress         float64          `json:"progress"` // 0-100
	Stage            string           `json:"stage,omitempty"`
	Error            string           `json:"error,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	StartedAt        *time.Time       `json:"startedAt,omitempty"`
	CompletedAt      *time.Time       `json:"completedAt,omitempty"`
	ProcessingTimeMs int64            `json:"processingTimeMs,omitempty"`
}

// NewAnalysisSession creates a session in the upload state.
func NewAnalysisSession(id string) *AnalysisSession {
	return &AnalysisSession{
		ID:        id,
		State:     StateUpload,
		Results:   make([]EmissionRecord, 0),
		CreatedAt: time.Now(),
	}
}

// Clone returns a deep copy safe to hand out of a lock.
func (s *AnalysisSession) Clone() *AnalysisSession {
	c := *s
	if s.File != nil {
		f := *s.File
		c.File = &f
	}
	c.Results = CloneEmissions(s.Results)
	if c.Results == nil {
		c.Results = make([]EmissionRecord, 0)
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
