package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/pdfsearch/internal/document"
	"github.com/google/uuid"
)

// JobStatus represents the state of a batch job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job tracks one batch of uploaded files.
type Job struct {
	mu sync.Mutex

	ID        string
	Status    JobStatus
	Filenames []string
	Progress  int // 0-100, non-decreasing while processing

	DocumentIDs []string
	Error       string

	CreatedAt time.Time
	UpdatedAt time.Time

	// Internal: released, and spooled copies removed, once the batch finishes.
	files []document.File
}

// NewJob creates a queued job for files.
func NewJob(files []document.File) *Job {
	now := time.Now()
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return &Job{
		ID:        uuid.NewString(),
		Status:    StatusQueued,
		Filenames: names,
		CreatedAt: now,
		UpdatedAt: now,
		files:     files,
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.UpdatedAt = time.Now()
}

// SetProgress records a progress percentage. Lower values than the current
// one are ignored so observers never see progress move backwards.
func (j *Job) SetProgress(pct int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if pct > j.Progress {
		j.Progress = min(pct, 100)
	}
	j.UpdatedAt = time.Now()
}

// Complete marks the job done with the documents it produced.
func (j *Job) Complete(docIDs []string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusCompleted
	j.Progress = 100
	j.DocumentIDs = docIDs
	j.releaseFiles()
	j.UpdatedAt = time.Now()
}

// Fail marks the job failed.
func (j *Job) Fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusFailed
	j.Error = err.Error()
	j.releaseFiles()
	j.UpdatedAt = time.Now()
}

// releaseFiles drops the batch inputs. Caller holds j.mu.
func (j *Job) releaseFiles() {
	for _, f := range j.files {
		f.Remove()
	}
	j.files = nil
}

// Files returns the uploaded files.
func (j *Job) Files() []document.File {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.files
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	Status      JobStatus `json:"status"`
	Filenames   []string  `json:"filenames"`
	Progress    int       `json:"progress"`
	DocumentIDs []string  `json:"document_ids"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	ids := j.DocumentIDs
	if ids == nil {
		ids = []string{}
	}
	return JobSnapshot{
		ID:          j.ID,
		Status:      j.Status,
		Filenames:   append([]string(nil), j.Filenames...),
		Progress:    j.Progress,
		DocumentIDs: append([]string{}, ids...),
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
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

// Cleanup removes finished jobs that have not changed within the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		snap := job.Snapshot()
		if snap.Status != StatusCompleted && snap.Status != StatusFailed {
			continue
		}
		if now.Sub(snap.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// DocumentID derives a session-unique document ID from the file name, the
// ingestion time and the file's position in its batch.
func DocumentID(name string, at time.Time, ordinal int) string {
	return ContentHashHex([]byte(fmt.Sprintf("%s-%d-%d", name, at.UnixNano(), ordinal)))[:16]
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
