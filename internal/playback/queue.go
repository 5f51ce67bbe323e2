// Package playback serializes streamed audio response fragments into an
// ordered, gapless, interruptible playback stream.
package playback

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"ai-interview-session-service/internal/audio"
	"ai-interview-session-service/internal/observability/metrics"
)

// Sink consumes decoded wire-rate audio. Play blocks until the fragment has
// been fully played or ctx is canceled; cancellation must take effect
// immediately, not at the next fragment boundary.
type Sink interface {
	Play(ctx context.Context, samples []float32) error
}

// Queue is a FIFO of base64 PCM fragments drained by a single background
// loop. Fragments are decoded and played strictly in arrival order, one at a
// time. Flush empties the FIFO and stops the in-flight fragment; it is used
// exclusively by the interruption path.
type Queue struct {
	sink    Sink
	codec   *audio.Codec
	metrics *metrics.Metrics

	mu            sync.Mutex
	fifo          []string
	draining      bool
	cancelCurrent context.CancelFunc
	generation    int
}

// NewQueue creates a playback queue draining into sink.
func NewQueue(sink Sink) *Queue {
	return &Queue{
		sink:    sink,
		codec:   audio.NewCodec(),
		metrics: metrics.DefaultMetrics,
	}
}

// Enqueue appends a fragment and ensures the drain loop is running. A loop
// already running is never started twice.
func (q *Queue) Enqueue(fragment string) {
	q.mu.Lock()
	q.fifo = append(q.fifo, fragment)
	q.metrics.RecordPlaybackEnqueue()
	if !q.draining {
		q.draining = true
		gen := q.generation
		go q.drain(gen)
	}
	q.mu.Unlock()
}

// Flush empties the FIFO and stops the currently playing fragment, if any.
func (q *Queue) Flush() {
	q.mu.Lock()
	q.fifo = nil
	q.generation++
	cancel := q.cancelCurrent
	q.cancelCurrent = nil
	q.metrics.RecordPlaybackFlush()
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Active reports whether a fragment is queued or playing.
func (q *Queue) Active() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining || len(q.fifo) > 0
}

// Len reports the number of queued (not yet playing) fragments.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.fifo)
}

func (q *Queue) drain(gen int) {
	for {
		q.mu.Lock()
		if gen != q.generation {
			// A flush happened while the previous fragment was playing.
			// Anything in the FIFO now belongs to a later response; adopt
			// the new generation and keep draining.
			gen = q.generation
		}
		if len(q.fifo) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		fragment := q.fifo[0]
		q.fifo = q.fifo[1:]
		ctx, cancel := context.WithCancel(context.Background())
		q.cancelCurrent = cancel
		q.mu.Unlock()

		q.play(ctx, fragment)

		q.mu.Lock()
		if q.cancelCurrent != nil {
			q.cancelCurrent = nil
		}
		q.mu.Unlock()
		cancel()
	}
}

func (q *Queue) play(ctx context.Context, fragment string) {
	samples, err := q.codec.Decode(fragment)
	if err != nil {
		// Malformed fragments are dropped, never fatal to the session.
		log.Warn().Err(err).Msg("Dropping undecodable playback fragment")
		return
	}
	q.metrics.RecordAudioOut(len(samples) * 2)
	if err := q.sink.Play(ctx, samples); err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Msg("Playback sink error")
	}
}
