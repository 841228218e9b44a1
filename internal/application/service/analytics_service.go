package service

import (
	"context"
	"sort"
	"time"

	"github.com/limitd/limitd/internal/application/dto"
	"github.com/limitd/limitd/internal/domain/models"
	"github.com/limitd/limitd/internal/domain/repository"
	"github.com/limitd/limitd/pkg/errors"
	"github.com/limitd/limitd/pkg/logger"
)

// granularityBoundary is the largest range still bucketed hourly. Longer
// ranges use daily buckets so bucket counts stay bounded.
const granularityBoundary = 6 * time.Hour

// timeRanges maps the accepted timeRange query values to durations.
var timeRanges = map[string]time.Duration{
	"1h":  time.Hour,
	"6h":  6 * time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// distributionBands are the utilization histogram bands, in percent.
var distributionBands = []struct {
	label string
	lo    float64
	hi    float64
}{
	{"0-24", 0, 25},
	{"25-49", 25, 50},
	{"50-74", 50, 75},
	{"75-89", 75, 90},
	{"90-100+", 90, -1},
}

// ParseTimeRange validates a timeRange query value.
func ParseTimeRange(value string) (time.Duration, error) {
	if value == "" {
		return 24 * time.Hour, nil
	}
	d, ok := timeRanges[value]
	if !ok {
		return 0, errors.ErrValidationField("timeRange",
			"timeRange must be one of 1h, 6h, 24h, 7d, 30d")
	}
	return d, nil
}

// AnalyticsAppService is the read-only summarization layer over the audit
// trail, the usage rollups and live counter snapshots. Every reader tolerates
// empty tables and returns zeroed structures, never a cold-start error.
type AnalyticsAppService struct {
	configs repository.ConfigRepository
	changes repository.ChangeRecordRepository
	usage   repository.UsageSampleRepository
	limits  *LimitAppService
	logger  logger.Logger
}

// NewAnalyticsAppService creates the analytics aggregator.
func NewAnalyticsAppService(
	configs repository.ConfigRepository,
	changes repository.ChangeRecordRepository,
	usage repository.UsageSampleRepository,
	limits *LimitAppService,
	log logger.Logger,
) *AnalyticsAppService {
	return &AnalyticsAppService{
		configs: configs,
		changes: changes,
		usage:   usage,
		limits:  limits,
		logger:  log.WithComponent("analytics"),
	}
}

// GetOverview builds the dashboard summary for one time range.
func (s *AnalyticsAppService) GetOverview(ctx context.Context, timeRange string) (*dto.OverviewResponse, error) {
	window, err := ParseTimeRange(timeRange)
	if err != nil {
		return nil, err
	}

	total, enabled, err := s.configs.Count(ctx)
	if err != nil {
		return nil, err
	}

	active, err := s.limits.ListActive(ctx, "")
	if err != nil {
		// Live snapshots are best-effort for the dashboard; the store
		// being down must not blank the whole overview.
		s.logger.Warn(ctx, "active limit snapshot unavailable", logger.Error(err))
		active = nil
	}

	recent, err := s.changes.ListRecent(ctx, 10)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	samples, err := s.usage.ListRange(ctx, now.Add(-window), now)
	if err != nil {
		return nil, err
	}

	var totals dto.UsageTotals
	for _, sample := range samples {
		totals.Requests += sample.Requests
		totals.Allowed += sample.Allowed
		totals.Blocked += sample.Blocked
		totals.Errors += sample.Errors
	}

	return &dto.OverviewResponse{
		TotalConfigs:      total,
		EnabledConfigs:    enabled,
		ActiveLimitsCount: len(active),
		RecentChanges:     recent,
		TopLimited:        topLimited(active, 5),
		Distribution:      usageDistribution(active),
		RangeUsage:        totals,
	}, nil
}

// GetTopLimited returns the n buckets closest to (or past) their limit.
func (s *AnalyticsAppService) GetTopLimited(ctx context.Context, n int) ([]dto.TopLimitedEntry, error) {
	active, err := s.limits.ListActive(ctx, "")
	if err != nil {
		return nil, err
	}
	return topLimited(active, n), nil
}

// GetUsageDistribution buckets active limits by utilization band.
func (s *AnalyticsAppService) GetUsageDistribution(ctx context.Context) ([]dto.DistributionBand, error) {
	active, err := s.limits.ListActive(ctx, "")
	if err != nil {
		return nil, err
	}
	return usageDistribution(active), nil
}

// GetHistory builds the time-bucketed trend view for one range. Granularity
// is hourly for ranges up to 6h and daily beyond that.
func (s *AnalyticsAppService) GetHistory(ctx context.Context, timeRange string) (*dto.HistoryResponse, error) {
	window, err := ParseTimeRange(timeRange)
	if err != nil {
		return nil, err
	}
	if timeRange == "" {
		timeRange = "24h"
	}

	step := 24 * time.Hour
	granularity := "day"
	if window <= granularityBoundary {
		step = time.Hour
		granularity = "hour"
	}

	now := time.Now().UTC()
	from := now.Add(-window).Truncate(step)

	changes, err := s.changes.ListRange(ctx, from, now)
	if err != nil {
		return nil, err
	}

	samples, err := s.usage.ListRange(ctx, from, now)
	if err != nil {
		return nil, err
	}

	resp := &dto.HistoryResponse{
		TimeRange:   timeRange,
		Granularity: granularity,
		ConfigStats: make([]dto.HistoryBucket, 0),
		UsageData:   make([]dto.UsageBucket, 0),
		Changes:     changes,
		Summary:     summarize(changes),
	}

	changeCounts := make(map[time.Time]int)
	for _, c := range changes {
		changeCounts[c.ChangedAt.UTC().Truncate(step)]++
	}

	usageCounts := make(map[time.Time]*dto.UsageBucket)
	for _, sample := range samples {
		bucket := sample.Bucket.UTC().Truncate(step)
		u, ok := usageCounts[bucket]
		if !ok {
			u = &dto.UsageBucket{Bucket: bucket}
			usageCounts[bucket] = u
		}
		u.Requests += sample.Requests
		u.Allowed += sample.Allowed
		u.Blocked += sample.Blocked
		u.Errors += sample.Errors
	}

	for bucket := from; bucket.Before(now); bucket = bucket.Add(step) {
		resp.ConfigStats = append(resp.ConfigStats, dto.HistoryBucket{
			Bucket:  bucket,
			Changes: changeCounts[bucket],
		})
		if u, ok := usageCounts[bucket]; ok {
			resp.UsageData = append(resp.UsageData, *u)
		} else {
			resp.UsageData = append(resp.UsageData, dto.UsageBucket{Bucket: bucket})
		}
	}

	return resp, nil
}

func topLimited(active []models.ActiveLimitRecord, n int) []dto.TopLimitedEntry {
	sorted := make([]models.ActiveLimitRecord, len(active))
	copy(sorted, active)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CurrentCount > sorted[j].CurrentCount
	})

	if n > len(sorted) {
		n = len(sorted)
	}
	entries := make([]dto.TopLimitedEntry, 0, n)
	for _, r := range sorted[:n] {
		entries = append(entries, dto.TopLimitedEntry{
			Key:          r.Key,
			ConfigName:   r.ConfigName,
			CurrentCount: r.CurrentCount,
			MaxAllowed:   r.MaxAllowed,
			Utilization:  r.Utilization(),
		})
	}
	return entries
}

func usageDistribution(active []models.ActiveLimitRecord) []dto.DistributionBand {
	bands := make([]dto.DistributionBand, len(distributionBands))
	for i, b := range distributionBands {
		bands[i].Band = b.label
	}
	for _, r := range active {
		u := r.Utilization()
		for i, b := range distributionBands {
			if u >= b.lo && (b.hi < 0 || u < b.hi) {
				bands[i].Count++
				break
			}
		}
	}
	return bands
}

func summarize(changes []models.ConfigChangeRecord) dto.HistorySummary {
	summary := dto.HistorySummary{TotalChanges: len(changes)}

	byConfig := make(map[string]int)
	byEditor := make(map[string]int)
	for _, c := range changes {
		byConfig[c.ConfigName]++
		byEditor[c.ChangedBy]++
	}

	summary.MostChangedName = maxKey(byConfig)
	summary.MostActiveEditor = maxKey(byEditor)
	return summary
}

// maxKey returns the key with the highest count, smallest key winning ties
// so the result is deterministic.
func maxKey(counts map[string]int) string {
	best := ""
	bestCount := 0
	for k, n := range counts {
		if n > bestCount || (n == bestCount && best != "" && k < best) {
			best = k
			bestCount = n
		}
	}
	return best
}
