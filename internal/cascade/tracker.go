package cascade

import "sync"

type batchStats struct {
	processed int
	found     int
}

// BatchTracker keeps the running email success rate of each job.
type BatchTracker struct {
	mu   sync.Mutex
	jobs map[string]*batchStats
	th   Thresholds
}

// NewBatchTracker builds a tracker that selects strategies with th.
func NewBatchTracker(th Thresholds) *BatchTracker {
	return &BatchTracker{jobs: make(map[string]*batchStats), th: th}
}

// Record counts one processed contact for jobID.
func (b *BatchTracker) Record(jobID string, emailFound bool) {
	if jobID == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.jobs[jobID]
	if !ok {
		s = &batchStats{}
		b.jobs[jobID] = s
	}
	s.processed++
	if emailFound {
		s.found++
	}
}

// Stats returns processed and found counts for jobID.
func (b *BatchTracker) Stats(jobID string) (processed, found int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.jobs[jobID]; ok {
		return s.processed, s.found
	}
	return 0, 0
}

// Strategy picks the strategy for the next contact of jobID.
func (b *BatchTracker) Strategy(jobID string) Strategy {
	processed, found := b.Stats(jobID)
	return SelectStrategy(processed, found, b.th)
}

// Forget drops a finished job.
func (b *BatchTracker) Forget(jobID string) {
	b.mu.Lock()
	delete(b.jobs, jobID)
	b.mu.Unlock()
}
