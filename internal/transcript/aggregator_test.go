package transcript

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"ai-interview-session-service/internal/models"
)

func TestAggregator_FragmentsAccumulatePerSpeaker(t *testing.T) {
	agg := NewAggregator()

	agg.AppendFragment(models.SpeakerAgent, "Tell me ")
	agg.AppendFragment(models.SpeakerCandidate, "I think ")
	agg.AppendFragment(models.SpeakerAgent, "about yourself.")
	agg.AppendFragment(models.SpeakerCandidate, "that...")

	if got := agg.Partial(models.SpeakerAgent); got != "Tell me about yourself." {
		t.Errorf("agent partial = %q", got)
	}
	if got := agg.Partial(models.SpeakerCandidate); got != "I think that..." {
		t.Errorf("candidate partial = %q", got)
	}
}

func TestAggregator_FinalizePrefersFullText(t *testing.T) {
	agg := NewAggregator()
	agg.AppendFragment(models.SpeakerCandidate, "garbled partial")

	entry, ok := agg.Finalize(models.SpeakerCandidate, "I have five years of experience.")
	if !ok {
		t.Fatal("finalize discarded")
	}
	if entry.Text != "I have five years of experience." {
		t.Errorf("entry text = %q", entry.Text)
	}
	if agg.Partial(models.SpeakerCandidate) != "" {
		t.Error("buffer not cleared after finalize")
	}
}

func TestAggregator_FinalizeFallsBackToBuffer(t *testing.T) {
	agg := NewAggregator()
	agg.AppendFragment(models.SpeakerAgent, "What is ")
	agg.AppendFragment(models.SpeakerAgent, "your greatest strength?")

	entry, ok := agg.Finalize(models.SpeakerAgent, "")
	if !ok {
		t.Fatal("finalize discarded")
	}
	if entry.Text != "What is your greatest strength?" {
		t.Errorf("entry text = %q", entry.Text)
	}
}

func TestAggregator_BlankFinalizeDiscarded(t *testing.T) {
	agg := NewAggregator()
	agg.AppendFragment(models.SpeakerCandidate, "   ")

	if _, ok := agg.Finalize(models.SpeakerCandidate, "  \n "); ok {
		t.Error("blank finalize produced an entry")
	}
	if agg.Len() != 0 {
		t.Errorf("len = %d, want 0", agg.Len())
	}
}

func TestAggregator_ConsecutiveDuplicateDiscarded(t *testing.T) {
	agg := NewAggregator()

	if _, ok := agg.Finalize(models.SpeakerCandidate, "Yes."); !ok {
		t.Fatal("first finalize discarded")
	}
	if _, ok := agg.Finalize(models.SpeakerCandidate, "Yes."); ok {
		t.Error("duplicate finalize produced an entry")
	}
	if agg.Len() != 1 {
		t.Errorf("len = %d, want 1", agg.Len())
	}

	// Same text from the other speaker is not a duplicate.
	if _, ok := agg.Finalize(models.SpeakerAgent, "Yes."); !ok {
		t.Error("other-speaker finalize discarded")
	}

	// Repetition with an entry between is legitimate.
	if _, ok := agg.Finalize(models.SpeakerCandidate, "Yes."); !ok {
		t.Error("non-consecutive repetition discarded")
	}
}

func TestAggregator_DiscardDropsBuffer(t *testing.T) {
	agg := NewAggregator()
	agg.AppendFragment(models.SpeakerAgent, "So, my next ques")
	agg.Discard(models.SpeakerAgent)

	if agg.Partial(models.SpeakerAgent) != "" {
		t.Error("buffer survived discard")
	}
	if _, ok := agg.Finalize(models.SpeakerAgent, ""); ok {
		t.Error("discarded buffer produced an entry")
	}
}

func TestAggregator_EntriesSortedByTimestamp(t *testing.T) {
	agg := NewAggregator()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	stamps := []time.Time{base.Add(2 * time.Second), base, base.Add(time.Second)}
	i := 0
	agg.now = func() time.Time {
		ts := stamps[i]
		i++
		return ts
	}

	agg.Finalize(models.SpeakerAgent, "third")
	agg.Finalize(models.SpeakerCandidate, "first")
	agg.Finalize(models.SpeakerAgent, "second")

	entries := agg.Entries()
	want := []string{"first", "second", "third"}
	for j, w := range want {
		if entries[j].Text != w {
			t.Errorf("entries[%d] = %q, want %q", j, entries[j].Text, w)
		}
	}
}

func TestAggregator_ConcurrentAppendAndFinalize(t *testing.T) {
	agg := NewAggregator()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for n := 0; n < 20; n++ {
				agg.AppendFragment(models.SpeakerCandidate, "x")
				agg.Finalize(models.SpeakerAgent, fmt.Sprintf("utterance %d-%d", g, n))
			}
		}(g)
	}
	wg.Wait()

	if agg.Len() != 160 {
		t.Errorf("len = %d, want 160", agg.Len())
	}
}

func TestDefaultClassifier(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"Tell me about a time you led a project?", true},
		{"What draws you to this role?", true},
		{"Thanks for sharing that.", false},
		{"Welcome to the interview! Ready to start?", false},
		{"Great, let's begin. Could you introduce yourself?", false},
		{"Let us begin, shall we?", false},
		{"Hi! How are you today?", false},
		{"Hi! Before we wrap up, what would you change about your last project's architecture if you could?", true},
	}
	for _, tc := range cases {
		if got := DefaultClassifier(tc.text); got != tc.want {
			t.Errorf("DefaultClassifier(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
