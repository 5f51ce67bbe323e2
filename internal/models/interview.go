// Package models defines the data structures shared across the interview
// session pipeline.
package models

import "time"

// Speaker identifies which side of the interview produced an utterance.
type Speaker string

const (
	// SpeakerAgent is the interviewing bot.
	SpeakerAgent Speaker = "agent"
	// SpeakerCandidate is the person being interviewed.
	SpeakerCandidate Speaker = "candidate"
)

// TranscriptEntry is a single finalized utterance. Entries are immutable once
// created and are ordered by Timestamp within a session's transcript.
type TranscriptEntry struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionConfig holds the immutable parameters of one interview attempt,
// assembled at session start from the caller's request and the provisioned
// token/policy.
type SessionConfig struct {
	SessionID      string
	Role           string
	Organization   string
	JobDescription string

	// Provisioned by the token source.
	APIKey          string
	Model           string
	Voice           string
	TimeLimit       time.Duration
	TargetQuestions int
}

// QuestionAnalysis is the per-question breakdown inside an interview result.
type QuestionAnalysis struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// InterviewResult is the scored outcome of a completed session. Immutable
// once returned from the analysis adapter.
type InterviewResult struct {
	SessionID          string             `json:"sessionId"`
	OverallScore       int                `json:"overallScore"`
	CommunicationScore int                `json:"communicationScore"`
	TechnicalScore     int                `json:"technicalScore"`
	ResponseQuality    int                `json:"responseQuality"`
	Strengths          []string           `json:"strengths"`
	Weaknesses         []string           `json:"weaknesses"`
	Feedback           string             `json:"feedback"`
	ImprovementTip     string             `json:"improvementTip"`
	QuestionAnalysis   []QuestionAnalysis `json:"questionAnalysis"`
	Transcript         []TranscriptEntry  `json:"transcript"`
	QuestionCount      int                `json:"questionCount"`
}

// TranscriptFinalEvent is published when an utterance is finalized.
type TranscriptFinalEvent struct {
	EventType string  `json:"eventType"`
	SessionID string  `json:"sessionId"`
	Speaker   Speaker `json:"speaker"`
	Text      string  `json:"text"`
	Timestamp int64   `json:"timestamp"`
}

// SessionLifecycleEvent is published on session start and end.
type SessionLifecycleEvent struct {
	EventType     string `json:"eventType"`
	SessionID     string `json:"sessionId"`
	Role          string `json:"role"`
	Organization  string `json:"organization"`
	QuestionCount int    `json:"questionCount,omitempty"`
	EndReason     string `json:"endReason,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}
