package compile

import (
	"sync"
	"time"
)

// Job progress states.
const (
	StateRunning   = "RUNNING"
	StateCompleted = "COMPLETED"
	StateFailed    = "FAILED"
	StateCancelled = "CANCELLED"
)

// JobStatus is a snapshot of one compilation run's progress. Snapshots are
// copied on read so callers can never observe a half-written update.
type JobStatus struct {
	JobID          string    `json:"job_id"`
	State          string    `json:"state"`
	CurrentStep    string    `json:"current_step"`
	CompletedSteps int       `json:"completed_steps"`
	TotalSteps     int       `json:"total_steps"`
	Percent        int       `json:"percent"`
	Error          string    `json:"error,omitempty"`
	Result         *Response `json:"result,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// JobStore tracks in-flight compilation jobs. Injected so the in-memory
// implementation can be swapped for a persistent one without touching the
// orchestration logic. Implementations must be safe for concurrent use.
type JobStore interface {
	Get(jobID string) (*JobStatus, bool)
	Put(status *JobStatus)
	Delete(jobID string)
	List() []*JobStatus
}

// MemoryJobStore keeps job records in a mutex-guarded map. Single-process
// semantics: records do not survive a restart.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*JobStatus
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*JobStatus)}
}

func (s *MemoryJobStore) Get(jobID string) (*JobStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, false
	}
	cp := *j
	return &cp, true
}

func (s *MemoryJobStore) Put(status *JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *status
	s.jobs[status.JobID] = &cp
}

func (s *MemoryJobStore) Delete(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
}

func (s *MemoryJobStore) List() []*JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		cp := *j
		out = append(out, &cp)
	}
	return out
}
