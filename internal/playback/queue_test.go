package playback

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"
)

// recordingSink collects played fragments and optionally blocks until
// released or canceled.
type recordingSink struct {
	mu      sync.Mutex
	played  [][]float32
	blockCh chan struct{} // if non-nil, Play blocks until closed or ctx done
	stopped int           // count of plays ended by cancellation
}

func (s *recordingSink) Play(ctx context.Context, samples []float32) error {
	s.mu.Lock()
	block := s.blockCh
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			s.mu.Lock()
			s.stopped++
			s.mu.Unlock()
			return ctx.Err()
		}
	}

	s.mu.Lock()
	s.played = append(s.played, samples)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) playedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.played)
}

func (s *recordingSink) stoppedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// fragment encodes n int16 samples all equal to v as a base64 payload.
func fragment(n int, v int16) string {
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		pcm[i*2] = byte(v)
		pcm[i*2+1] = byte(v >> 8)
	}
	return base64.StdEncoding.EncodeToString(pcm)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestQueue_PlaysFragmentsInArrivalOrder(t *testing.T) {
	sink := &recordingSink{}
	q := NewQueue(sink)

	q.Enqueue(fragment(10, 100))
	q.Enqueue(fragment(20, 200))
	q.Enqueue(fragment(30, 300))

	waitFor(t, func() bool { return sink.playedCount() == 3 }, "expected 3 fragments played")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	lens := []int{len(sink.played[0]), len(sink.played[1]), len(sink.played[2])}
	if lens[0] != 10 || lens[1] != 20 || lens[2] != 30 {
		t.Errorf("fragments played out of order: lengths %v", lens)
	}
}

func TestQueue_FlushStopsCurrentAndDiscardsQueued(t *testing.T) {
	sink := &recordingSink{blockCh: make(chan struct{})}
	q := NewQueue(sink)

	q.Enqueue(fragment(10, 1))
	q.Enqueue(fragment(10, 2))
	q.Enqueue(fragment(10, 3))

	// Wait until the first fragment is in-flight (blocked inside Play).
	waitFor(t, func() bool { return q.Len() <= 2 }, "first fragment never started")

	q.Flush()

	waitFor(t, func() bool { return !q.Active() }, "queue still active after flush")

	if got := sink.playedCount(); got != 0 {
		t.Errorf("expected no fragments completed after flush, got %d", got)
	}
	if got := sink.stoppedCount(); got != 1 {
		t.Errorf("expected exactly 1 in-flight stop, got %d", got)
	}
	if q.Len() != 0 {
		t.Errorf("expected empty queue after flush, got %d", q.Len())
	}
}

func TestQueue_EnqueueAfterFlushStartsFreshPlayback(t *testing.T) {
	sink := &recordingSink{blockCh: make(chan struct{})}
	q := NewQueue(sink)

	q.Enqueue(fragment(10, 1))
	waitFor(t, func() bool { return q.Len() == 0 }, "fragment never started")

	q.Flush()

	// The next response's audio must not be dropped.
	sink.mu.Lock()
	sink.blockCh = nil
	sink.mu.Unlock()
	q.Enqueue(fragment(40, 7))

	waitFor(t, func() bool { return sink.playedCount() == 1 }, "post-flush fragment never played")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.played[0]) != 40 {
		t.Errorf("expected the post-flush fragment (40 samples), got %d", len(sink.played[0]))
	}
}

func TestQueue_ConcurrentEnqueueSingleDrainLoop(t *testing.T) {
	sink := &recordingSink{}
	q := NewQueue(sink)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				q.Enqueue(fragment(4, 9))
			}
		}()
	}
	wg.Wait()

	waitFor(t, func() bool { return sink.playedCount() == 80 }, "expected all 80 fragments played exactly once")
}

func TestQueue_DropsUndecodableFragment(t *testing.T) {
	sink := &recordingSink{}
	q := NewQueue(sink)

	q.Enqueue("!!! not base64 !!!")
	q.Enqueue(fragment(10, 5))

	waitFor(t, func() bool { return sink.playedCount() == 1 }, "valid fragment after a bad one never played")
}

func TestQueue_FlushWhenIdleIsHarmless(t *testing.T) {
	sink := &recordingSink{}
	q := NewQueue(sink)

	q.Flush()
	q.Enqueue(fragment(10, 5))

	waitFor(t, func() bool { return sink.playedCount() == 1 }, "enqueue after idle flush never played")
}
