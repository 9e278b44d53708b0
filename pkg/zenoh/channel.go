package zenoh

import (
	"context"
	"sync"
)

// FIFO is a Handler that copies every sample into a bounded queue. When the
// queue is full the engine thread waits for room, so no sample is lost; the
// wait ends early if the subscriber is closed. The channel is closed once
// the engine drops the subscriber.
//
// A FIFO serves a single subscription. Once dropped, including by a failed
// declaration, it discards samples and Recv reports ErrHandlerClosed.
type FIFO struct {
	ch       chan Received
	stopped  chan struct{}
	stopOnce sync.Once

	mu     sync.RWMutex
	closed bool
}

// NewFIFO returns a FIFO holding up to capacity samples.
func NewFIFO(capacity int) *FIFO {
	if capacity < 1 {
		capacity = 1
	}
	return &FIFO{
		ch:      make(chan Received, capacity),
		stopped: make(chan struct{}),
	}
}

func (f *FIFO) HandleSample(s *Sample) {
	r := s.Copy()
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	select {
	case f.ch <- r:
	case <-f.stopped:
	}
}

func (f *FIFO) stop() {
	f.stopOnce.Do(func() { close(f.stopped) })
}

// Drop closes the channel. Calls after the first do nothing.
func (f *FIFO) Drop() {
	f.stop()
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.ch)
	}
}

// C returns the receive channel.
func (f *FIFO) C() <-chan Received {
	return f.ch
}

// Recv waits for the next sample. It returns ErrHandlerClosed once the
// subscriber is dropped and the queue drained.
func (f *FIFO) Recv(ctx context.Context) (Received, error) {
	select {
	case r, ok := <-f.ch:
		if !ok {
			return Received{}, ErrHandlerClosed
		}
		return r, nil
	case <-ctx.Done():
		return Received{}, ctx.Err()
	}
}

// Ring is a Handler that keeps only the newest capacity samples: when it is
// full the oldest sample is discarded. The engine thread never waits, which
// suits consumers that only care about the latest value, such as video
// frames.
type Ring struct {
	mu      sync.Mutex
	ch      chan Received
	closed  bool
	dropped uint64
}

// NewRing returns a Ring holding up to capacity samples.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{ch: make(chan Received, capacity)}
}

func (r *Ring) HandleSample(s *Sample) {
	v := s.Copy()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	for {
		select {
		case r.ch <- v:
			return
		default:
		}
		select {
		case <-r.ch:
			r.dropped++
		default:
		}
	}
}

// Drop closes the channel. The engine calls it once after the last sample.
func (r *Ring) Drop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
}

// Discarded returns how many samples were overwritten before being read.
func (r *Ring) Discarded() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// TryRecv returns the oldest buffered sample without waiting.
func (r *Ring) TryRecv() (Received, bool) {
	select {
	case v, ok := <-r.ch:
		return v, ok
	default:
		return Received{}, false
	}
}

// Recv waits for the next sample. It returns ErrHandlerClosed once the
// subscriber is dropped and the buffer drained.
func (r *Ring) Recv(ctx context.Context) (Received, error) {
	select {
	case v, ok := <-r.ch:
		if !ok {
			return Received{}, ErrHandlerClosed
		}
		return v, nil
	case <-ctx.Done():
		return Received{}, ctx.Err()
	}
}

// C returns the receive channel.
func (r *Ring) C() <-chan Received {
	return r.ch
}
