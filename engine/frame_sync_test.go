package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitForUpdateTimesOut(t *testing.T) {
	s := NewFrameSync()
	if s.WaitForUpdate(5 * time.Millisecond) {
		t.Error("expected timeout with no update pending")
	}
	if s.WaitForUpdate(0) {
		t.Error("expected no pending update")
	}
}

func TestUpdateDoneMerges(t *testing.T) {
	s := NewFrameSync()
	s.UpdateDone()
	s.UpdateDone()
	if !s.WaitForUpdate(time.Second) {
		t.Fatal("expected pending update")
	}
	if s.WaitForUpdate(0) {
		t.Error("expected the second UpdateDone to merge into the first")
	}
}

func TestHandshake(t *testing.T) {
	s := NewFrameSync()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		s.UpdateDone()
		done <- s.WaitForFrame(ctx)
	}()

	if !s.WaitForUpdate(5 * time.Second) {
		t.Fatal("expected the control side to signal")
	}
	select {
	case <-done:
		t.Fatal("control side released before the frame")
	case <-time.After(10 * time.Millisecond):
	}
	s.NextFrame()
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Frame() != 1 {
		t.Errorf("expected frame 1, got %d", s.Frame())
	}
}

func TestNextFrameBeforeWait(t *testing.T) {
	s := NewFrameSync()
	s.UpdateDone()
	s.WaitForUpdate(time.Second)
	s.NextFrame()
	// the update was already taken, so the wait must not block
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.WaitForFrame(ctx); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestWaitForFrameCancelled(t *testing.T) {
	s := NewFrameSync()
	s.UpdateDone()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.WaitForFrame(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
