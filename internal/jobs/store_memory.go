package jobs

import (
	"context"
	"sync"
	"time"

	"wasteops-backend/internal/audit"
	"wasteops-backend/internal/documents"
)

// MemoryStore keeps jobs in process. Audit entries and document metadata
// written inside a Tx are staged and only reach the shared log and repo on
// Commit.
type MemoryStore struct {
	mu     sync.RWMutex
	jobs   map[int64]Job
	locks  map[int64]*sync.Mutex
	nextID int64

	AuditLog  *audit.MemoryLog
	Documents *documents.MemoryRepo
}

// NewMemoryStore constructs a MemoryStore backed by the given log and repo.
func NewMemoryStore(log *audit.MemoryLog, docs *documents.MemoryRepo) *MemoryStore {
	return &MemoryStore{
		jobs:      make(map[int64]Job),
		locks:     make(map[int64]*sync.Mutex),
		nextID:    1,
		AuditLog:  log,
		Documents: docs,
	}
}

// SetNextID sets the id given to the next created job.
func (s *MemoryStore) SetNextID(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = id
}

// Create stores a new job and its creation entry.
func (s *MemoryStore) Create(ctx context.Context, job Job, entry audit.Entry) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	job.ID = s.nextID
	job.Code = JobCode(job.ID)
	job.Version = 1
	for i := range job.Items {
		job.Items[i].ID = int64(i + 1)
		job.Items[i].JobID = job.ID
	}
	entry.JobID = job.ID
	if _, err := s.AuditLog.Append(context.WithoutCancel(ctx), entry); err != nil {
		return Job{}, err
	}
	s.nextID++
	s.jobs[job.ID] = job.clone()
	s.locks[job.ID] = &sync.Mutex{}
	return job, nil
}

// Get returns a copy of the job.
func (s *MemoryStore) Get(ctx context.Context, id int64) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job.clone(), nil
}

// Begin takes the job's lock without waiting.
func (s *MemoryStore) Begin(ctx context.Context, id int64) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	lock, ok := s.locks[id]
	job := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if !lock.TryLock() {
		return nil, &TransitionError{Kind: ErrConflict, Detail: "job is being updated"}
	}

	// Re-read under the job lock so the snapshot cannot predate a commit
	// that finished between the map read and TryLock.
	s.mu.RLock()
	job = s.jobs[id]
	s.mu.RUnlock()

	return &memoryTx{
		store: s,
		lock:  lock,
		job:   job.clone(),
		read:  job.Version,
		audit: &audit.Buffer{},
		docs:  documents.NewStagedRepo(s.Documents),
	}, nil
}

type memoryTx struct {
	store  *MemoryStore
	lock   *sync.Mutex
	job    Job
	read   int64
	staged *Job
	audit  *audit.Buffer
	docs   *documents.StagedRepo
	done   bool
}

func (tx *memoryTx) Job() Job { return tx.job.clone() }

func (tx *memoryTx) Save(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if job.Version != tx.read {
		return &TransitionError{Kind: ErrConflict, Detail: "job version changed"}
	}
	next := job.clone()
	next.Version = tx.read + 1
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = time.Now().UTC()
	}
	tx.staged = &next
	return nil
}

func (tx *memoryTx) Audit() audit.Appender { return tx.audit }

func (tx *memoryTx) Documents() documents.Repo { return tx.docs }

func (tx *memoryTx) Commit(ctx context.Context) error {
	if tx.done {
		return nil
	}
	if err := ctx.Err(); err != nil {
		_ = tx.Rollback()
		return err
	}
	defer tx.release()

	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jobs[tx.job.ID].Version != tx.read {
		return &TransitionError{Kind: ErrConflict, Detail: "job version changed"}
	}

	// Past this point the commit is applied in full.
	apply := context.WithoutCancel(ctx)
	if err := tx.audit.Flush(apply, s.AuditLog); err != nil {
		return err
	}
	if err := tx.docs.Flush(apply, s.Documents); err != nil {
		return err
	}
	if tx.staged != nil {
		s.jobs[tx.job.ID] = *tx.staged
	}
	return nil
}

func (tx *memoryTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.release()
	return nil
}

func (tx *memoryTx) release() {
	if tx.done {
		return
	}
	tx.done = true
	tx.lock.Unlock()
}
