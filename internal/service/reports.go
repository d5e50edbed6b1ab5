package service

import (
	"context"
	"time"

	"github.com/octobees/contact-enricher/internal/entity"
)

const (
	defaultReportDays = 30
	maxReportDays     = 366
)

// PerformanceReader returns the daily cache rollup between two instants.
type PerformanceReader interface {
	Performance(ctx context.Context, from, to time.Time) ([]entity.CachePerformance, error)
}

// CacheReport sums a window of daily rollups.
type CacheReport struct {
	From         time.Time                 `json:"from"`
	To           time.Time                 `json:"to"`
	UserHits     int                       `json:"user_hits"`
	GlobalHits   int                       `json:"global_hits"`
	Misses       int                       `json:"misses"`
	HitRate      float64                   `json:"hit_rate"`
	APICostSaved float64                   `json:"api_cost_saved"`
	APICostSpent float64                   `json:"api_cost_spent"`
	Days         []entity.CachePerformance `json:"days"`
}

// ReportsService exposes cache efficiency figures.
type ReportsService struct {
	cache PerformanceReader
	now   func() time.Time
}

// NewReportsService creates a new instance of ReportsService.
func NewReportsService(cache PerformanceReader) *ReportsService {
	return &ReportsService{cache: cache, now: time.Now}
}

// CachePerformance reports the last days of cache activity, today included.
func (s *ReportsService) CachePerformance(ctx context.Context, days int) (CacheReport, error) {
	if days == 0 {
		days = defaultReportDays
	}
	if days < 0 || days > maxReportDays {
		return CacheReport{}, ValidationError{Message: "days must be between 1 and 366"}
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	report := CacheReport{
		From: today.AddDate(0, 0, -(days - 1)),
		To:   today.AddDate(0, 0, 1),
	}

	rows, err := s.cache.Performance(ctx, report.From, report.To)
	if err != nil {
		return CacheReport{}, err
	}
	report.Days = rows
	for _, row := range rows {
		report.UserHits += row.UserHits
		report.GlobalHits += row.GlobalHits
		report.Misses += row.Misses
		report.APICostSaved += row.APICostSaved
		report.APICostSpent += row.APICostSpent
	}
	if lookups := report.UserHits + report.GlobalHits + report.Misses; lookups > 0 {
		report.HitRate = float64(report.UserHits+report.GlobalHits) / float64(lookups)
	}
	return report, nil
}
