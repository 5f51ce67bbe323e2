// Package provision hands out realtime credentials and interview policy
// for new sessions.
package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ai-interview-session-service/internal/config"
)

// ErrNoCredentials means no realtime API key is configured.
var ErrNoCredentials = errors.New("no realtime credentials configured")

// Token carries the credentials and policy for one interview attempt.
type Token struct {
	APIKey          string
	Model           string
	Voice           string
	TimeLimit       time.Duration
	TargetQuestions int
}

// TokenSource provisions a token per session.
type TokenSource interface {
	Provision(ctx context.Context) (Token, error)
}

// StaticSource serves every session from the service configuration.
type StaticSource struct {
	realtime  config.RealtimeConfig
	interview config.InterviewConfig
}

func NewStaticSource(realtime config.RealtimeConfig, interview config.InterviewConfig) *StaticSource {
	return &StaticSource{realtime: realtime, interview: interview}
}

func (s *StaticSource) Provision(ctx context.Context) (Token, error) {
	if s.realtime.APIKey == "" {
		return Token{}, ErrNoCredentials
	}
	return Token{
		APIKey:          s.realtime.APIKey,
		Model:           s.realtime.Model,
		Voice:           s.interview.Voice,
		TimeLimit:       s.interview.TimeLimit,
		TargetQuestions: s.interview.TargetQuestions,
	}, nil
}

// HTTPSource fetches tokens from a remote issuer, for deployments where
// realtime credentials are minted per session instead of held in config.
type HTTPSource struct {
	url      string
	client   *http.Client
	fallback Token
}

// NewHTTPSource builds a token source against the issuer URL. Fields the
// issuer omits are filled from fallback.
func NewHTTPSource(url string, fallback Token) *HTTPSource {
	return &HTTPSource{
		url:      url,
		client:   &http.Client{Timeout: 10 * time.Second},
		fallback: fallback,
	}
}

type tokenResponse struct {
	Token           string `json:"token"`
	Model           string `json:"model"`
	Voice           string `json:"voice"`
	TimeLimitMs     int64  `json:"timeLimitMs"`
	TargetQuestions int    `json:"targetQuestions"`
}

func (s *HTTPSource) Provision(ctx context.Context) (Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Token{}, fmt.Errorf("building token request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("fetching token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Token{}, fmt.Errorf("token issuer returned status %d", resp.StatusCode)
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Token{}, fmt.Errorf("decoding token response: %w", err)
	}
	if body.Token == "" {
		return Token{}, ErrNoCredentials
	}

	token := Token{
		APIKey:          body.Token,
		Model:           body.Model,
		Voice:           body.Voice,
		TimeLimit:       time.Duration(body.TimeLimitMs) * time.Millisecond,
		TargetQuestions: body.TargetQuestions,
	}
	if token.Model == "" {
		token.Model = s.fallback.Model
	}
	if token.Voice == "" {
		token.Voice = s.fallback.Voice
	}
	if token.TimeLimit <= 0 {
		token.TimeLimit = s.fallback.TimeLimit
	}
	if token.TargetQuestions <= 0 {
		token.TargetQuestions = s.fallback.TargetQuestions
	}
	return token, nil
}
