package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"ai-interview-session-service/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func sampleResult() (models.SessionConfig, models.InterviewResult) {
	cfg := models.SessionConfig{
		SessionID:    "sess-42",
		Role:         "Platform Engineer",
		Organization: "Initech",
	}
	result := models.InterviewResult{
		SessionID:          "sess-42",
		OverallScore:       71,
		CommunicationScore: 77,
		TechnicalScore:     68,
		ResponseQuality:    70,
		Feedback:           "Competent but terse.",
		ImprovementTip:     "Expand on trade-offs.",
		QuestionCount:      3,
		QuestionAnalysis: []models.QuestionAnalysis{
			{Question: "Why Initech?", Answer: "Growth.", Score: 60, Feedback: "Thin."},
		},
		Transcript: []models.TranscriptEntry{
			{Speaker: models.SpeakerAgent, Text: "Why Initech?"},
			{Speaker: models.SpeakerCandidate, Text: "Growth."},
		},
	}
	return cfg, result
}

func TestStore_SaveAndLoad(t *testing.T) {
	st := openTestStore(t)
	cfg, result := sampleResult()

	if err := st.SaveResult(context.Background(), cfg, result); err != nil {
		t.Fatal(err)
	}

	record, err := st.GetBySessionID(context.Background(), "sess-42")
	if err != nil {
		t.Fatal(err)
	}
	if record.Category != "Live Interview: Platform Engineer at Initech" {
		t.Errorf("category = %q", record.Category)
	}
	if record.QuizScore != 71 || record.CommunicationScore != 77 {
		t.Errorf("scores = %d/%d", record.QuizScore, record.CommunicationScore)
	}

	var questions []models.QuestionAnalysis
	if err := json.Unmarshal(record.Questions, &questions); err != nil {
		t.Fatal(err)
	}
	if len(questions) != 1 || questions[0].Question != "Why Initech?" {
		t.Errorf("questions = %+v", questions)
	}

	var transcript []models.TranscriptEntry
	if err := json.Unmarshal(record.Transcript, &transcript); err != nil {
		t.Fatal(err)
	}
	if len(transcript) != 2 {
		t.Errorf("transcript entries = %d", len(transcript))
	}
}

func TestStore_GetMissing(t *testing.T) {
	st := openTestStore(t)
	if _, err := st.GetBySessionID(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_DuplicateSessionRejected(t *testing.T) {
	st := openTestStore(t)
	cfg, result := sampleResult()

	if err := st.SaveResult(context.Background(), cfg, result); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveResult(context.Background(), cfg, result); err == nil {
		t.Error("duplicate session id accepted")
	}
}
