package grading

import (
	"sync"
	"testing"
	"time"
)

func TestMemoryRecorder(t *testing.T) {
	rec := NewMemoryRecorder()

	rec.RecordAttempt(true, 100*time.Millisecond)
	rec.RecordAttempt(true, 300*time.Millisecond)
	rec.RecordAttempt(false, 200*time.Millisecond)
	rec.RecordFallback()
	rec.RecordFallback()

	stats := rec.Snapshot()
	if stats.TotalGraded != 3 {
		t.Errorf("TotalGraded = %d, want 3", stats.TotalGraded)
	}
	if stats.SuccessfulGradings != 2 {
		t.Errorf("SuccessfulGradings = %d, want 2", stats.SuccessfulGradings)
	}
	if stats.FailedGradings != 1 {
		t.Errorf("FailedGradings = %d, want 1", stats.FailedGradings)
	}
	if stats.FallbackUsed != 2 {
		t.Errorf("FallbackUsed = %d, want 2", stats.FallbackUsed)
	}
	if stats.AverageResponseTime != 200*time.Millisecond {
		t.Errorf("AverageResponseTime = %v, want 200ms", stats.AverageResponseTime)
	}
}

func TestMemoryRecorder_Reset(t *testing.T) {
	rec := NewMemoryRecorder()
	rec.RecordAttempt(true, time.Second)
	rec.RecordFallback()

	rec.Reset()

	if stats := rec.Snapshot(); stats != (Stats{}) {
		t.Errorf("expected zeroed stats after reset, got %+v", stats)
	}
}

func TestMemoryRecorder_EmptyAverage(t *testing.T) {
	rec := NewMemoryRecorder()
	if avg := rec.Snapshot().AverageResponseTime; avg != 0 {
		t.Errorf("AverageResponseTime with no samples = %v, want 0", avg)
	}
}

func TestMemoryRecorder_Concurrent(t *testing.T) {
	rec := NewMemoryRecorder()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec.RecordAttempt(i%2 == 0, 10*time.Millisecond)
			rec.RecordFallback()
		}(i)
	}
	wg.Wait()

	stats := rec.Snapshot()
	if stats.TotalGraded != 50 {
		t.Errorf("TotalGraded = %d, want 50", stats.TotalGraded)
	}
	if stats.SuccessfulGradings != 25 || stats.FailedGradings != 25 {
		t.Errorf("got %d successful / %d failed, want 25/25",
			stats.SuccessfulGradings, stats.FailedGradings)
	}
	if stats.FallbackUsed != 50 {
		t.Errorf("FallbackUsed = %d, want 50", stats.FallbackUsed)
	}
}
