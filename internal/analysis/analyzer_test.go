package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"ai-interview-session-service/internal/models"
)

type fakeChat struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return openai.ChatCompletionResponse{}, f.errs[i]
	}
	content := ""
	if i < len(f.responses) {
		content = f.responses[i]
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}, nil
}

func newTestAnalyzer(client ChatClient, attempts int) *Analyzer {
	a := NewAnalyzer(client, "test-model", attempts, time.Second)
	a.sleep = func(context.Context, time.Duration) error { return nil }
	return a
}

func analysisInput() (models.SessionConfig, []models.TranscriptEntry) {
	cfg := models.SessionConfig{
		SessionID:    "sess-1",
		Role:         "Backend Engineer",
		Organization: "Acme",
	}
	entries := []models.TranscriptEntry{
		{Speaker: models.SpeakerAgent, Text: "Tell me about your experience?"},
		{Speaker: models.SpeakerCandidate, Text: "Five years of Go services."},
	}
	return cfg, entries
}

const validAssessment = `{
	"overallScore": 78,
	"communicationScore": 82,
	"technicalScore": 75,
	"responseQuality": 70,
	"strengths": ["clear answers"],
	"weaknesses": ["short on detail"],
	"feedback": "Solid performance with room to elaborate.",
	"improvementTip": "Use concrete examples.",
	"questionAnalysis": [{"question": "Tell me about your experience?", "answer": "Five years of Go services.", "score": 78, "feedback": "Good."}]
}`

func TestAnalyzer_ValidAssessment(t *testing.T) {
	client := &fakeChat{responses: []string{validAssessment}}
	cfg, entries := analysisInput()

	result, err := newTestAnalyzer(client, 3).Analyze(context.Background(), cfg, entries, 1)
	if err != nil {
		t.Fatal(err)
	}
	if result.OverallScore != 78 || result.CommunicationScore != 82 {
		t.Errorf("scores = %d/%d", result.OverallScore, result.CommunicationScore)
	}
	if result.SessionID != "sess-1" || result.QuestionCount != 1 {
		t.Errorf("result identity = %q/%d", result.SessionID, result.QuestionCount)
	}
	if len(result.Transcript) != 2 {
		t.Errorf("transcript not attached")
	}
	if client.calls != 1 {
		t.Errorf("calls = %d, want 1", client.calls)
	}
}

func TestAnalyzer_FencedJSONRecovered(t *testing.T) {
	fenced := "Here is the assessment:\n```json\n" + validAssessment + "\n```"
	client := &fakeChat{responses: []string{fenced}}
	cfg, entries := analysisInput()

	result, err := newTestAnalyzer(client, 1).Analyze(context.Background(), cfg, entries, 1)
	if err != nil {
		t.Fatal(err)
	}
	if result.OverallScore != 78 {
		t.Errorf("overallScore = %d", result.OverallScore)
	}
}

func TestAnalyzer_RetriesThenSucceeds(t *testing.T) {
	client := &fakeChat{
		errs:      []error{errors.New("rate limited"), nil},
		responses: []string{"", validAssessment},
	}
	cfg, entries := analysisInput()

	if _, err := newTestAnalyzer(client, 3).Analyze(context.Background(), cfg, entries, 1); err != nil {
		t.Fatal(err)
	}
	if client.calls != 2 {
		t.Errorf("calls = %d, want 2", client.calls)
	}
}

func TestAnalyzer_NoFallbackScore(t *testing.T) {
	client := &fakeChat{responses: []string{
		"I cannot evaluate this.",
		`{"overallScore": 0, "communicationScore": 50, "feedback": "x"}`,
		`{"overallScore": 80, "communicationScore": 80, "feedback": ""}`,
	}}
	cfg, entries := analysisInput()

	result, err := newTestAnalyzer(client, 3).Analyze(context.Background(), cfg, entries, 1)
	if !errors.Is(err, ErrInvalidResult) {
		t.Fatalf("err = %v, want ErrInvalidResult", err)
	}
	if result.OverallScore != 0 {
		t.Error("fabricated score returned on failure")
	}
	if client.calls != 3 {
		t.Errorf("calls = %d, want 3", client.calls)
	}
}

func TestAnalyzer_ContextCancelledDuringBackoff(t *testing.T) {
	client := &fakeChat{errs: []error{errors.New("boom"), errors.New("boom")}}
	a := NewAnalyzer(client, "test-model", 3, time.Hour)
	cfg, entries := analysisInput()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Analyze(ctx, cfg, entries, 1)
	if !errors.Is(err, ErrInvalidResult) {
		t.Fatalf("err = %v", err)
	}
	if client.calls != 1 {
		t.Errorf("calls = %d, want 1 (backoff must respect cancellation)", client.calls)
	}
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		ok   bool
	}{
		{"bare object", `{"a":1}`, true},
		{"fenced", "```json\n{\"a\":1}\n```", true},
		{"prose wrapped", `Sure! {"a":1} Hope that helps.`, true},
		{"no object", "no json here", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := extractJSON(tc.in)
			if tc.ok && (err != nil || out != `{"a":1}`) {
				t.Errorf("got %q, %v", out, err)
			}
			if !tc.ok && err == nil {
				t.Error("expected error")
			}
		})
	}
}
