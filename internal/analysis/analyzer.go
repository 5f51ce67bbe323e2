// Package analysis scores a finished interview transcript with a chat
// completion model and validates the structured result.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"ai-interview-session-service/internal/models"
	"ai-interview-session-service/internal/observability/logging"
	"ai-interview-session-service/internal/observability/metrics"
)

// ErrInvalidResult means the model's output could not be turned into a
// usable assessment after all attempts. There is no fallback score.
var ErrInvalidResult = errors.New("analysis produced no valid result")

// ChatClient is the slice of the OpenAI client the analyzer needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Analyzer turns a transcript into a scored InterviewResult.
type Analyzer struct {
	client      ChatClient
	model       string
	maxAttempts int
	backoff     time.Duration
	sleep       func(context.Context, time.Duration) error
	log         zerolog.Logger
	metrics     *metrics.Metrics
}

func NewAnalyzer(client ChatClient, model string, maxAttempts int, backoff time.Duration) *Analyzer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Analyzer{
		client:      client,
		model:       model,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		sleep:       sleepCtx,
		log:         logging.WithComponent("analysis"),
		metrics:     metrics.DefaultMetrics,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Analyze scores the transcript. Transient model failures are retried with
// a linearly growing backoff; a persistent failure returns ErrInvalidResult
// rather than a made-up score.
func (a *Analyzer) Analyze(ctx context.Context, cfg models.SessionConfig, entries []models.TranscriptEntry, questionCount int) (models.InterviewResult, error) {
	prompt := buildPrompt(cfg, entries, questionCount)
	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		a.metrics.RecordAnalysisAttempt()
		result, err := a.analyzeOnce(ctx, prompt)
		if err == nil {
			result.SessionID = cfg.SessionID
			result.Transcript = entries
			result.QuestionCount = questionCount
			a.metrics.RecordAnalysisSuccess(time.Since(start).Seconds())
			return result, nil
		}
		lastErr = err
		a.log.Warn().Err(err).Int("attempt", attempt).Msg("analysis attempt failed")
		if attempt == a.maxAttempts {
			break
		}
		if err := a.sleep(ctx, a.backoff*time.Duration(attempt)); err != nil {
			lastErr = err
			break
		}
	}

	a.metrics.RecordAnalysisFailure()
	return models.InterviewResult{}, fmt.Errorf("%w: %v", ErrInvalidResult, lastErr)
}

func (a *Analyzer) analyzeOnce(ctx context.Context, prompt string) (models.InterviewResult, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return models.InterviewResult{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.InterviewResult{}, errors.New("empty completion")
	}

	payload, err := extractJSON(resp.Choices[0].Message.Content)
	if err != nil {
		return models.InterviewResult{}, err
	}
	var result models.InterviewResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return models.InterviewResult{}, fmt.Errorf("decoding assessment: %w", err)
	}
	if err := validate(result); err != nil {
		return models.InterviewResult{}, err
	}
	return result, nil
}

// extractJSON recovers the JSON object from a completion that may wrap it
// in markdown fences or prose.
func extractJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", errors.New("completion contains no JSON object")
	}
	return s[start : end+1], nil
}

func validate(r models.InterviewResult) error {
	if r.OverallScore < 1 || r.OverallScore > 100 {
		return fmt.Errorf("overallScore %d out of range", r.OverallScore)
	}
	if r.CommunicationScore < 1 || r.CommunicationScore > 100 {
		return fmt.Errorf("communicationScore %d out of range", r.CommunicationScore)
	}
	if strings.TrimSpace(r.Feedback) == "" {
		return errors.New("assessment is missing feedback")
	}
	return nil
}

const systemPrompt = "You are an experienced technical hiring manager. " +
	"You evaluate interview transcripts fairly and respond with a single JSON object, nothing else."

const maxPromptJD = 2000

func buildPrompt(cfg models.SessionConfig, entries []models.TranscriptEntry, questionCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Evaluate this voice interview for the %s position at %s.\n", cfg.Role, cfg.Organization)
	if jd := cfg.JobDescription; jd != "" {
		if len(jd) > maxPromptJD {
			jd = jd[:maxPromptJD]
		}
		fmt.Fprintf(&b, "Job description: %s\n", jd)
	}
	fmt.Fprintf(&b, "The interviewer asked %d questions.\n\nTranscript:\n", questionCount)
	for _, e := range entries {
		who := "Interviewer"
		if e.Speaker == models.SpeakerCandidate {
			who = "Candidate"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", e.Timestamp.Format("15:04:05"), who, e.Text)
	}
	b.WriteString(`
Score the candidate's answers only, not the interviewer.
Return exactly this JSON shape:
{
  "overallScore": <1-100>,
  "communicationScore": <1-100>,
  "technicalScore": <1-100>,
  "responseQuality": <1-100>,
  "strengths": ["..."],
  "weaknesses": ["..."],
  "feedback": "<2-3 sentences of overall feedback>",
  "improvementTip": "<one concrete tip>",
  "questionAnalysis": [{"question": "...", "answer": "...", "score": <1-100>, "feedback": "..."}]
}`)
	return b.String()
}
