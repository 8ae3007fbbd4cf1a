package models

import (
	"sync"
	"testing"
)

func TestBatchJobConcurrentRecording(t *testing.T) {
	const total = 50
	job := NewBatchJob("batch-test", total)

	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			job.RecordResult(idx, &CaptureResponse{Success: true, Index: idx})
		}(i)
	}

	// Poll concurrently with the writers; every snapshot must be
	// internally consistent.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			snap := job.Snapshot()
			if snap.Completed > snap.Total {
				t.Errorf("snapshot completed %d exceeds total %d", snap.Completed, snap.Total)
				return
			}
		}
	}()

	wg.Wait()
	<-done
	job.Finish("completed")

	snap := job.Snapshot()
	if snap.Status != "completed" {
		t.Errorf("status = %q, want completed", snap.Status)
	}
	if snap.Completed != total {
		t.Errorf("completed = %d, want %d", snap.Completed, total)
	}
	for i, r := range snap.Results {
		if r == nil || r.Index != i {
			t.Fatalf("result %d missing or misplaced: %+v", i, r)
		}
	}
}

func TestBatchJobStartsProcessing(t *testing.T) {
	job := NewBatchJob("batch-x", 3)
	snap := job.Snapshot()
	if snap.Status != "processing" || snap.Completed != 0 || len(snap.Results) != 3 {
		t.Errorf("fresh job snapshot = %+v", snap)
	}
}
