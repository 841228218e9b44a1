package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limitd/limitd/internal/application/service"
	"github.com/limitd/limitd/pkg/constants"
	"github.com/limitd/limitd/pkg/logger"
)

func newAnalytics(f *fixture) *service.AnalyticsAppService {
	log := logger.NewNullLogger()
	limits := service.NewLimitAppService(f.repo, f.store, constants.EnvironmentProduction, nil, log)
	return service.NewAnalyticsAppService(f.repo, f.changes, f.usage, limits, log)
}

func TestParseTimeRange(t *testing.T) {
	d, err := service.ParseTimeRange("")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, d, "empty defaults to 24h")

	for value, want := range map[string]time.Duration{
		"1h":  time.Hour,
		"6h":  6 * time.Hour,
		"24h": 24 * time.Hour,
		"7d":  7 * 24 * time.Hour,
		"30d": 30 * 24 * time.Hour,
	} {
		d, err := service.ParseTimeRange(value)
		require.NoError(t, err)
		assert.Equal(t, want, d, value)
	}

	_, err = service.ParseTimeRange("2h")
	assert.Error(t, err)
}

func TestAnalytics_OverviewColdStart(t *testing.T) {
	f := newFixture(t)
	analytics := newAnalytics(f)

	overview, err := analytics.GetOverview(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, overview.TotalConfigs)
	assert.Zero(t, overview.ActiveLimitsCount)
	assert.Empty(t, overview.TopLimited)
	assert.Empty(t, overview.RecentChanges)
	assert.Zero(t, overview.RangeUsage.Requests)
}

func TestAnalytics_Overview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	analytics := newAnalytics(f)

	req := createRequest("api-default")
	req.Max = 4
	_, err := f.configs.Create(ctx, req, "alice")
	require.NoError(t, err)
	_, err = f.configs.Create(ctx, createRequest("auth-login"), "bob")
	require.NoError(t, err)

	enf := newEnforcement(f, f.store)
	for i := 0; i < 3; i++ {
		outcome := enf.Check(ctx, "api-default", ipRequest("1.1.1.1"))
		enf.RecordOutcome(ctx, outcome, 200)
	}

	overview, err := analytics.GetOverview(ctx, "24h")
	require.NoError(t, err)
	assert.Equal(t, int64(2), overview.TotalConfigs)
	assert.Equal(t, int64(2), overview.EnabledConfigs)
	assert.Equal(t, 1, overview.ActiveLimitsCount)
	assert.Len(t, overview.RecentChanges, 2)
	assert.Equal(t, int64(3), overview.RangeUsage.Requests)
	assert.Equal(t, int64(3), overview.RangeUsage.Allowed)

	require.NotEmpty(t, overview.TopLimited)
	assert.Equal(t, "api-default", overview.TopLimited[0].ConfigName)
	assert.InDelta(t, 75.0, overview.TopLimited[0].Utilization, 0.01)
}

func TestAnalytics_UsageDistribution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	analytics := newAnalytics(f)

	req := createRequest("api-default")
	req.Max = 10
	_, err := f.configs.Create(ctx, req, "alice")
	require.NoError(t, err)

	enf := newEnforcement(f, f.store)
	// 2/10 = 20% for one bucket, 9/10 = 90% for another.
	for i := 0; i < 2; i++ {
		enf.Check(ctx, "api-default", ipRequest("1.1.1.1"))
	}
	for i := 0; i < 9; i++ {
		enf.Check(ctx, "api-default", ipRequest("2.2.2.2"))
	}

	bands, err := analytics.GetUsageDistribution(ctx)
	require.NoError(t, err)
	require.Len(t, bands, 5)

	byLabel := make(map[string]int)
	for _, b := range bands {
		byLabel[b.Band] = b.Count
	}
	assert.Equal(t, 1, byLabel["0-24"])
	assert.Equal(t, 1, byLabel["90-100+"])
	assert.Zero(t, byLabel["25-49"])
}

func TestAnalytics_History(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	analytics := newAnalytics(f)

	_, err := f.configs.Create(ctx, createRequest("api-default"), "alice")
	require.NoError(t, err)
	_, err = f.configs.Toggle(ctx, "api-default", false, "alice", "")
	require.NoError(t, err)
	_, err = f.configs.Create(ctx, createRequest("auth-login"), "bob")
	require.NoError(t, err)

	require.NoError(t, f.usage.Record(ctx, "api-default", time.Now().UTC(), true, false))

	t.Run("short range uses hourly buckets", func(t *testing.T) {
		history, err := analytics.GetHistory(ctx, "6h")
		require.NoError(t, err)
		assert.Equal(t, "hour", history.Granularity)
		assert.GreaterOrEqual(t, len(history.ConfigStats), 6)
		assert.LessOrEqual(t, len(history.ConfigStats), 7, "six hours plus at most the partial current one")
		assert.Len(t, history.UsageData, len(history.ConfigStats), "series stay aligned")
	})

	t.Run("long range uses daily buckets", func(t *testing.T) {
		history, err := analytics.GetHistory(ctx, "24h")
		require.NoError(t, err)
		assert.Equal(t, "day", history.Granularity)
		assert.Equal(t, "24h", history.TimeRange)
	})

	t.Run("summary picks busiest config and editor", func(t *testing.T) {
		history, err := analytics.GetHistory(ctx, "24h")
		require.NoError(t, err)
		assert.Equal(t, 3, history.Summary.TotalChanges)
		assert.Equal(t, "api-default", history.Summary.MostChangedName)
		assert.Equal(t, "alice", history.Summary.MostActiveEditor)
	})

	t.Run("usage folded into buckets", func(t *testing.T) {
		history, err := analytics.GetHistory(ctx, "6h")
		require.NoError(t, err)
		var total int64
		for _, u := range history.UsageData {
			total += u.Requests
		}
		assert.Equal(t, int64(1), total)
	})

	t.Run("invalid range rejected", func(t *testing.T) {
		_, err := analytics.GetHistory(ctx, "forever")
		assert.Error(t, err)
	})
}
