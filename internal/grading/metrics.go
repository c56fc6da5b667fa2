package grading

import (
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of grading activity.
type Stats struct {
	TotalGraded         int64
	SuccessfulGradings  int64
	FailedGradings      int64
	FallbackUsed        int64
	AverageResponseTime time.Duration
}

// Recorder observes grading outcomes. Implementations must be safe for
// concurrent use; the pipeline calls RecordFallback from per-question
// goroutines.
type Recorder interface {
	// RecordAttempt is called once per graded attempt. success is false
	// when validation rejected the input or any question needed the
	// manual-review substitute.
	RecordAttempt(success bool, elapsed time.Duration)
	// RecordFallback is called once per answer that fell back from the
	// external grader to similarity matching.
	RecordFallback()
	Snapshot() Stats
	Reset()
}

// MemoryRecorder is the in-process Recorder used in production and tests.
type MemoryRecorder struct {
	mu           sync.Mutex
	totalGraded  int64
	successful   int64
	failed       int64
	fallbackUsed int64
	totalElapsed time.Duration
}

func NewMemoryRecorder() *MemoryRecorder { return &MemoryRecorder{} }

func (r *MemoryRecorder) RecordAttempt(success bool, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalGraded++
	if success {
		r.successful++
	} else {
		r.failed++
	}
	r.totalElapsed += elapsed
}

func (r *MemoryRecorder) RecordFallback() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbackUsed++
}

func (r *MemoryRecorder) Snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	var avg time.Duration
	if r.totalGraded > 0 {
		avg = r.totalElapsed / time.Duration(r.totalGraded)
	}
	return Stats{
		TotalGraded:         r.totalGraded,
		SuccessfulGradings:  r.successful,
		FailedGradings:      r.failed,
		FallbackUsed:        r.fallbackUsed,
		AverageResponseTime: avg,
	}
}

func (r *MemoryRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalGraded = 0
	r.successful = 0
	r.failed = 0
	r.fallbackUsed = 0
	r.totalElapsed = 0
}

// nopRecorder is substituted when the caller passes a nil Recorder.
type nopRecorder struct{}

func (nopRecorder) RecordAttempt(bool, time.Duration) {}
func (nopRecorder) RecordFallback()                   {}
func (nopRecorder) Snapshot() Stats                   { return Stats{} }
func (nopRecorder) Reset()                            {}
