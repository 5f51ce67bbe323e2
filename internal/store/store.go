// Package store persists interview assessments in a relational database.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ai-interview-session-service/internal/models"
)

// ErrNotFound is returned when no assessment exists for a session.
var ErrNotFound = errors.New("assessment not found")

// Assessment is the persisted form of a scored interview.
type Assessment struct {
	ID                 uint   `gorm:"primaryKey"`
	SessionID          string `gorm:"uniqueIndex;size:64"`
	Category           string `gorm:"size:255"`
	QuizScore          int
	CommunicationScore int
	TechnicalScore     int
	ResponseQuality    int
	Feedback           string
	ImprovementTip     string
	QuestionCount      int
	Questions          datatypes.JSON
	Transcript         datatypes.JSON
	CreatedAt          time.Time
}

// Store wraps the database handle.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the sqlite database at path and migrates
// the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.AutoMigrate(&Assessment{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveResult persists a scored interview under its session id.
func (s *Store) SaveResult(ctx context.Context, cfg models.SessionConfig, result models.InterviewResult) error {
	questions, err := json.Marshal(result.QuestionAnalysis)
	if err != nil {
		return fmt.Errorf("encoding question analysis: %w", err)
	}
	transcript, err := json.Marshal(result.Transcript)
	if err != nil {
		return fmt.Errorf("encoding transcript: %w", err)
	}

	record := Assessment{
		SessionID:          result.SessionID,
		Category:           Category(cfg.Role, cfg.Organization),
		QuizScore:          result.OverallScore,
		CommunicationScore: result.CommunicationScore,
		TechnicalScore:     result.TechnicalScore,
		ResponseQuality:    result.ResponseQuality,
		Feedback:           result.Feedback,
		ImprovementTip:     result.ImprovementTip,
		QuestionCount:      result.QuestionCount,
		Questions:          datatypes.JSON(questions),
		Transcript:         datatypes.JSON(transcript),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("saving assessment: %w", err)
	}
	return nil
}

// GetBySessionID loads the assessment for a session.
func (s *Store) GetBySessionID(ctx context.Context, sessionID string) (*Assessment, error) {
	var record Assessment
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading assessment: %w", err)
	}
	return &record, nil
}

// Category is the assessment category label for an interview.
func Category(role, organization string) string {
	return fmt.Sprintf("Live Interview: %s at %s", role, organization)
}
