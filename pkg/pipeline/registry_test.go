package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRegistryRejectsDuplicateBook(t *testing.T) {
	reg := NewRegistry()
	userID := uuid.New()

	first := NewJob(1, userID, "some text", false)
	if !reg.Add(first) {
		t.Fatal("first Add rejected")
	}
	second := NewJob(1, userID, "same book again", true)
	if reg.Add(second) {
		t.Fatal("duplicate Add accepted while book is tracked")
	}

	got, ok := reg.Get(1)
	if !ok || got.RunID != first.RunID {
		t.Fatalf("Get(1) = (%v, %v), want the first job", got, ok)
	}

	// Once the first run finishes the slot opens up again.
	reg.Remove(1)
	if !reg.Add(second) {
		t.Fatal("Add rejected after Remove")
	}
}

func TestRegistrySnapshotKeepsEnqueueOrder(t *testing.T) {
	reg := NewRegistry()
	userID := uuid.New()

	jobs := []*Job{
		NewJob(3, userID, "", false),
		NewJob(1, userID, "", false),
		NewJob(2, userID, "", true),
	}
	for i, job := range jobs {
		// Stagger timestamps so the ordering test doesn't depend on clock
		// resolution.
		job.EnqueuedAt = job.EnqueuedAt.Add(time.Duration(i) * time.Millisecond)
		if !reg.Add(job) {
			t.Fatalf("Add(%d) rejected", job.BookID)
		}
	}

	infos := reg.Snapshot()
	if len(infos) != 3 {
		t.Fatalf("Snapshot len = %d, want 3", len(infos))
	}
	wantOrder := []int64{3, 1, 2}
	for i, want := range wantOrder {
		if infos[i].BookID != want {
			t.Errorf("Snapshot[%d].BookID = %d, want %d", i, infos[i].BookID, want)
		}
	}
	if reg.Len() != 3 {
		t.Errorf("Len = %d, want 3", reg.Len())
	}
}

func TestJobCompleteReleasesWaiter(t *testing.T) {
	job := NewJob(1, uuid.New(), "", false)

	select {
	case <-job.Done():
		t.Fatal("Done closed before Complete")
	default:
	}

	wantErr := errors.New("provider unavailable")
	job.Complete(wantErr)
	// A second completion must not panic or overwrite the outcome.
	job.Complete(nil)

	select {
	case <-job.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Complete")
	}
	if !errors.Is(job.Err(), wantErr) {
		t.Errorf("Err = %v, want %v", job.Err(), wantErr)
	}
}
