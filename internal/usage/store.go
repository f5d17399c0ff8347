// Package usage persists per-turn UsageRecords and aggregates them for the
// usage-stats endpoint.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/RichardoC/lms-chat/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open connects to the usage database at path and migrates it.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open usage store: %w", err)
	}
	if err := db.AutoMigrate(&models.UsageRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate usage store: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Log appends one record. TotalTokens is derived when left empty.
func (s *Store) Log(ctx context.Context, rec *models.UsageRecord) error {
	if rec.TotalTokens == 0 {
		rec.TotalTokens = rec.InputTokens + rec.OutputTokens
	}
	if rec.RequestType == "" {
		rec.RequestType = "chat"
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

type ModelStats struct {
	System   string `json:"system"`
	Model    string `json:"model"`
	Requests int64  `json:"requests"`
	Tokens   int64  `json:"tokens"`
}

type ToolStats struct {
	Tool     string `json:"tool"`
	Requests int64  `json:"requests"`
}

type Stats struct {
	TotalRequests     int64        `json:"total_requests"`
	TotalInputTokens  int64        `json:"total_input_tokens"`
	TotalOutputTokens int64        `json:"total_output_tokens"`
	TotalTokens       int64        `json:"total_tokens"`
	ToolRequests      int64        `json:"tool_requests"`
	AvgLatencyMS      float64      `json:"avg_latency_ms"`
	Models            []ModelStats `json:"models"`
	Tools             []ToolStats  `json:"tools"`
}

// totalsRow is the flat scan target for the totals query. gorm would treat
// the slice fields of Stats as relations.
type totalsRow struct {
	TotalRequests     int64
	TotalInputTokens  int64
	TotalOutputTokens int64
	TotalTokens       int64
	ToolRequests      int64
	AvgLatencyMS      float64 `gorm:"column:avg_latency_ms"`
}

// Stats aggregates the last days of records, optionally for a single user
// (userID 0 means everyone).
func (s *Store) Stats(ctx context.Context, userID int64, days int) (*Stats, error) {
	if days <= 0 {
		days = 30
	}
	since := s.now().AddDate(0, 0, -days)

	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Model(&models.UsageRecord{}).Where("created_at >= ?", since)
		if userID != 0 {
			db = db.Where("user_id = ?", userID)
		}
		return db
	}

	var totals totalsRow
	err := s.db.WithContext(ctx).Scopes(scope).
		Select(`COUNT(*) AS total_requests,
			COALESCE(SUM(input_tokens), 0) AS total_input_tokens,
			COALESCE(SUM(output_tokens), 0) AS total_output_tokens,
			COALESCE(SUM(total_tokens), 0) AS total_tokens,
			COALESCE(SUM(CASE WHEN tool_used THEN 1 ELSE 0 END), 0) AS tool_requests,
			COALESCE(AVG(latency_ms), 0) AS avg_latency_ms`).
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage: %w", err)
	}
	stats := Stats{
		TotalRequests:     totals.TotalRequests,
		TotalInputTokens:  totals.TotalInputTokens,
		TotalOutputTokens: totals.TotalOutputTokens,
		TotalTokens:       totals.TotalTokens,
		ToolRequests:      totals.ToolRequests,
		AvgLatencyMS:      totals.AvgLatencyMS,
	}

	stats.Models = []ModelStats{}
	err = s.db.WithContext(ctx).Scopes(scope).
		Select("inference_system AS system, model_name AS model, COUNT(*) AS requests, COALESCE(SUM(total_tokens), 0) AS tokens").
		Group("inference_system, model_name").
		Order("requests DESC").
		Scan(&stats.Models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage by model: %w", err)
	}

	stats.Tools = []ToolStats{}
	err = s.db.WithContext(ctx).Scopes(scope).
		Where("tool_used = ?", true).
		Select("tool_name AS tool, COUNT(*) AS requests").
		Group("tool_name").
		Order("requests DESC").
		Scan(&stats.Tools).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage by tool: %w", err)
	}

	return &stats, nil
}
