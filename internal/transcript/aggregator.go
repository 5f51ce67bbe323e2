// Package transcript accumulates streamed text fragments into finalized,
// ordered utterances and classifies interviewer utterances as questions.
package transcript

import (
	"sort"
	"strings"
	"sync"
	"time"

	"ai-interview-session-service/internal/models"
	"ai-interview-session-service/internal/observability/metrics"
)

// Aggregator builds the session transcript from per-speaker fragment streams.
// Thread-safe for concurrent access.
//
// Lifecycle per utterance:
//
//	AppendFragment() ──→ multiple times, accumulates into the speaker buffer
//	Finalize()      ──→ once, closes the utterance into a TranscriptEntry
//
// Rules:
//   - Blank finalizations are discarded.
//   - A finalization identical to the immediately preceding entry from the
//     same speaker is discarded (duplicate finalize events).
//   - Entries are kept sorted by timestamp after every insertion to tolerate
//     out-of-order arrival of candidate vs. agent finalize events.
type Aggregator struct {
	mu      sync.RWMutex
	buffers map[models.Speaker]*strings.Builder
	entries []models.TranscriptEntry
	now     func() time.Time
	metrics *metrics.Metrics
}

// NewAggregator creates an empty transcript aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		buffers: map[models.Speaker]*strings.Builder{},
		now:     time.Now,
		metrics: metrics.DefaultMetrics,
	}
}

// AppendFragment accumulates a streamed text delta into the speaker's
// in-progress utterance buffer.
func (a *Aggregator) AppendFragment(speaker models.Speaker, delta string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf, ok := a.buffers[speaker]
	if !ok {
		buf = &strings.Builder{}
		a.buffers[speaker] = buf
	}
	buf.WriteString(delta)
}

// Partial returns the speaker's in-progress utterance text.
func (a *Aggregator) Partial(speaker models.Speaker) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if buf, ok := a.buffers[speaker]; ok {
		return buf.String()
	}
	return ""
}

// Discard drops the speaker's in-progress utterance buffer without
// finalizing it. Used when an in-flight agent response is cancelled.
func (a *Aggregator) Discard(speaker models.Speaker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.buffers, speaker)
}

// Finalize closes out the speaker's current utterance. When fullText is
// non-blank it takes precedence over the accumulated buffer (the source
// signals the authoritative final text). Returns the created entry and true,
// or a zero entry and false when the finalization was discarded.
func (a *Aggregator) Finalize(speaker models.Speaker, fullText string) (models.TranscriptEntry, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	text := strings.TrimSpace(fullText)
	if text == "" {
		if buf, ok := a.buffers[speaker]; ok {
			text = strings.TrimSpace(buf.String())
		}
	}
	delete(a.buffers, speaker)

	if text == "" {
		a.metrics.RecordTranscriptDiscard("blank")
		return models.TranscriptEntry{}, false
	}

	if last, ok := a.lastEntryFrom(speaker); ok && last.Text == text {
		a.metrics.RecordTranscriptDiscard("duplicate")
		return models.TranscriptEntry{}, false
	}

	entry := models.TranscriptEntry{
		Speaker:   speaker,
		Text:      text,
		Timestamp: a.now(),
	}
	a.entries = append(a.entries, entry)
	sort.SliceStable(a.entries, func(i, j int) bool {
		return a.entries[i].Timestamp.Before(a.entries[j].Timestamp)
	})
	a.metrics.RecordTranscriptEntry(string(speaker))
	return entry, true
}

// lastEntryFrom returns the most recent entry, but only when it belongs to
// the given speaker. The dedup rule guards consecutive duplicates only.
func (a *Aggregator) lastEntryFrom(speaker models.Speaker) (models.TranscriptEntry, bool) {
	if len(a.entries) == 0 {
		return models.TranscriptEntry{}, false
	}
	last := a.entries[len(a.entries)-1]
	if last.Speaker != speaker {
		return models.TranscriptEntry{}, false
	}
	return last, true
}

// Entries returns a copy of the transcript in timestamp order.
func (a *Aggregator) Entries() []models.TranscriptEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]models.TranscriptEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Len reports the number of finalized entries.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}
