package engine

import (
	"context"
	"sync"
	"time"
)

// FrameSync is the handshake between the control goroutine and the render goroutine.
//
// The control goroutine finishes an update, calls UpdateDone and then WaitForFrame. The
// render goroutine blocks in WaitForUpdate until an update is done (or the timeout passes so
// the window keeps drawing), swaps the command queue and calls NextFrame, which releases
// every goroutine waiting in WaitForFrame.
type FrameSync struct {
	updated chan struct{}

	mu      sync.Mutex
	next    chan struct{}
	pending chan struct{}
	frame   uint64
}

// NewFrameSync creates a FrameSync with no update pending.
//
// Returns:
//   - *FrameSync: the new handshake
func NewFrameSync() *FrameSync {
	return &FrameSync{
		updated: make(chan struct{}, 1),
		next:    make(chan struct{}),
	}
}

// UpdateDone signals that the control side has pushed all commands for this frame. It never
// blocks; a second call before the render side consumes the first is merged into it.
func (s *FrameSync) UpdateDone() {
	s.mu.Lock()
	s.pending = s.next
	s.mu.Unlock()
	select {
	case s.updated <- struct{}{}:
	default:
	}
}

// WaitForUpdate blocks until UpdateDone has been called or timeout passes.
//
// Parameters:
//   - timeout: the longest wait; <= 0 only checks for a pending update
//
// Returns:
//   - bool: true if an update was consumed, false on timeout
func (s *FrameSync) WaitForUpdate(timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case <-s.updated:
			return true
		default:
			return false
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.updated:
		return true
	case <-timer.C:
		return false
	}
}

// NextFrame releases every goroutine waiting for the current frame.
func (s *FrameSync) NextFrame() {
	s.mu.Lock()
	close(s.next)
	s.next = make(chan struct{})
	s.frame++
	s.mu.Unlock()
}

// WaitForFrame blocks until the render side has taken the update signalled by the last
// UpdateDone. It returns immediately if no update is outstanding.
//
// Parameters:
//   - ctx: cancels the wait when the engine shuts down
//
// Returns:
//   - error: ctx.Err() if ctx ends first, nil otherwise
func (s *FrameSync) WaitForFrame(ctx context.Context) error {
	s.mu.Lock()
	ch := s.pending
	s.mu.Unlock()
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Frame returns the number of frames released so far.
func (s *FrameSync) Frame() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}
