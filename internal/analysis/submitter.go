package analysis

import (
	"context"
	"fmt"

	"ai-interview-session-service/internal/models"
	"ai-interview-session-service/internal/store"
)

// Submitter scores a finished interview and writes the assessment to the
// store. A scoring failure is returned as-is; nothing is persisted without
// a valid result.
type Submitter struct {
	analyzer *Analyzer
	store    *store.Store
}

func NewSubmitter(analyzer *Analyzer, st *store.Store) *Submitter {
	return &Submitter{analyzer: analyzer, store: st}
}

func (s *Submitter) Submit(ctx context.Context, cfg models.SessionConfig, entries []models.TranscriptEntry, questionCount int) (models.InterviewResult, error) {
	result, err := s.analyzer.Analyze(ctx, cfg, entries, questionCount)
	if err != nil {
		return models.InterviewResult{}, err
	}
	if s.store != nil {
		if err := s.store.SaveResult(ctx, cfg, result); err != nil {
			return models.InterviewResult{}, fmt.Errorf("persisting assessment: %w", err)
		}
	}
	return result, nil
}
