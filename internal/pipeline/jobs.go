package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docgraph/internal/graph"
	"github.com/dgallion1/docgraph/internal/parser"
)

// JobStatus represents the state of a build job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusEnriching JobStatus = "enriching"
	StatusBuilding  JobStatus = "building"
	StatusExporting JobStatus = "exporting"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusPartial   JobStatus = "partial"
)

// Job tracks the state of a single document build.
type Job struct {
	mu sync.Mutex

	ID     string `json:"job_id"`
	DocID  string `json:"doc_id"`
	FileID string `json:"file_id"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	document *parser.Document
	pdfData  []byte
	analysis *graph.Analysis
	errors   []string
}

// Progress tracks processing progress.
type Progress struct {
	Fragments     int      `json:"fragments"`
	Dropped       int      `json:"dropped"`
	Edges         int      `json:"edges"`
	Chunks        int      `json:"chunks"`
	NodesExported int      `json:"nodes_exported"`
	LinksExported int      `json:"links_exported"`
	Errors        []string `json:"errors"`
}

// NewJob creates a queued job for doc. pdf may be nil.
func NewJob(doc *parser.Document, pdf []byte, docID, filename, hash string) *Job {
	now := time.Now()
	if docID == "" {
		docID = uuid.NewString()
	}
	return &Job{
		ID:          uuid.NewString(),
		DocID:       docID,
		FileID:      doc.FileID,
		Status:      StatusQueued,
		Phase:       "queued",
		Filename:    filename,
		ContentHash: hash,
		CreatedAt:   now,
		UpdatedAt:   now,
		document:    doc,
		pdfData:     pdf,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// HasErrors reports whether any error was recorded.
func (j *Job) HasErrors() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.errors) > 0
}

// SetBuilt records the counts of a finished build.
func (j *Job) SetBuilt(res *Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Fragments = len(res.Fragments)
	j.Progress.Dropped = len(res.Dropped)
	j.Progress.Edges = res.Analysis.NumEdges
	j.Progress.Chunks = len(res.Chunks)
	a := res.Analysis
	j.analysis = &a
	j.UpdatedAt = time.Now()
}

// AddExported adds to the exported node and link counts.
func (j *Job) AddExported(nodes, links int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.NodesExported += nodes
	j.Progress.LinksExported += links
	j.UpdatedAt = time.Now()
}

// Document returns the decoded input.
func (j *Job) Document() *parser.Document {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.document
}

// PDFData returns the optional PDF bytes used for span enrichment.
func (j *Job) PDFData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.pdfData
}

// release drops the input once the job no longer needs it.
func (j *Job) release() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.document = nil
	j.pdfData = nil
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID       string          `json:"job_id"`
	DocID    string          `json:"doc_id"`
	FileID   string          `json:"file_id"`
	Status   JobStatus       `json:"status"`
	Phase    string          `json:"phase"`
	Filename string          `json:"filename"`
	Progress Progress        `json:"progress"`
	Analysis *graph.Analysis `json:"analysis,omitempty"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.Progress.Errors...)
	p := j.Progress
	p.Errors = errs
	return JobSnapshot{
		ID:       j.ID,
		DocID:    j.DocID,
		FileID:   j.FileID,
		Status:   j.Status,
		Phase:    j.Phase,
		Filename: j.Filename,
		Progress: p,
		Analysis: j.analysis,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
