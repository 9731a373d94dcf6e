// internal/core/services/report.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
)

const (
	dailyRevenueDays = 30
	bestSellingLimit = 10
)

// ReportService serves read-only aggregations through the cache
type ReportService struct {
	repo     ports.ReportRepository
	cache    ports.CacheRepository
	cacheTTL time.Duration
	logger   *slog.Logger
}

var _ ports.ReportService = (*ReportService)(nil)

// NewReportService creates a new report service
func NewReportService(repo ports.ReportRepository, cache ports.CacheRepository, cacheTTL time.Duration, logger *slog.Logger) *ReportService {
	return &ReportService{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.With(slog.String("service", "reports")),
	}
}

// DailyRevenue returns revenue per day for the last 30 days with sales
func (s *ReportService) DailyRevenue(ctx context.Context) ([]domain.DailyRevenue, error) {
	out, err := readThrough(ctx, s.cache, s.cacheTTL, cacheKeyDailyReport, func() ([]domain.DailyRevenue, error) {
		return s.repo.DailyRevenue(ctx, dailyRevenueDays)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get daily revenue: %w", err)
	}
	return out, nil
}

// BestSelling returns the top products by quantity sold
func (s *ReportService) BestSelling(ctx context.Context) ([]domain.BestSeller, error) {
	out, err := readThrough(ctx, s.cache, s.cacheTTL, cacheKeyBestSelling, func() ([]domain.BestSeller, error) {
		return s.repo.BestSelling(ctx, bestSellingLimit)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get best sellers: %w", err)
	}
	return out, nil
}

// Dashboard returns today's dashboard cards
func (s *ReportService) Dashboard(ctx context.Context) (*domain.DashboardStats, error) {
	out, err := readThrough(ctx, s.cache, s.cacheTTL, cacheKeyDashboard, func() (*domain.DashboardStats, error) {
		return s.loadDashboard(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get dashboard stats: %w", err)
	}
	return out, nil
}

// RefreshDashboard recomputes the dashboard and overwrites the cached copy.
func (s *ReportService) RefreshDashboard(ctx context.Context) (*domain.DashboardStats, error) {
	stats, err := s.loadDashboard(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh dashboard stats: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetWithTTL(ctx, cacheKeyDashboard, stats, s.cacheTTL); err != nil {
			s.logger.WarnContext(ctx, "failed to store dashboard stats",
				slog.String("error", err.Error()))
		}
	}

	return stats, nil
}

func (s *ReportService) loadDashboard(ctx context.Context) (*domain.DashboardStats, error) {
	stats, err := s.repo.DashboardStats(ctx)
	if err != nil {
		return nil, err
	}
	stats.ComputeAverageTicket()
	stats.GeneratedAt = time.Now().UTC()
	return stats, nil
}

// readThrough serves key from cache, falling back to fetch on a miss or when
// no cache is configured.
func readThrough[T any](ctx context.Context, cache ports.CacheRepository, ttl time.Duration, key string, fetch func() (T, error)) (T, error) {
	if cache == nil {
		return fetch()
	}

	var out T
	err := cache.GetOrSet(ctx, key, &out, func() (interface{}, error) {
		return fetch()
	}, ttl)
	return out, err
}
