package service_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/limitd/limitd/internal/application/dto"
	"github.com/limitd/limitd/internal/application/service"
	"github.com/limitd/limitd/internal/domain/models"
	"github.com/limitd/limitd/internal/domain/repository"
	domainsvc "github.com/limitd/limitd/internal/domain/service"
	"github.com/limitd/limitd/internal/infrastructure/counter"
	"github.com/limitd/limitd/internal/infrastructure/persistence/postgres"
	"github.com/limitd/limitd/pkg/constants"
	"github.com/limitd/limitd/pkg/errors"
	"github.com/limitd/limitd/pkg/logger"
)

type fixture struct {
	db      *gorm.DB
	repo    repository.ConfigRepository
	changes repository.ChangeRecordRepository
	usage   repository.UsageSampleRepository
	store   *counter.MemoryStore
	configs *service.ConfigAppService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, postgres.Migrate(db))

	log := logger.NewNullLogger()
	store := counter.NewMemoryStore(log)
	t.Cleanup(func() { store.Close() })

	repo := postgres.NewConfigRepository(db, log)

	return &fixture{
		db:      db,
		repo:    repo,
		changes: postgres.NewChangeRecordRepository(db),
		usage:   postgres.NewUsageSampleRepository(db),
		store:   store,
		configs: service.NewConfigAppService(repo, store, nil, domainsvc.NewNoopAuditPublisher(), nil, log),
	}
}

func createRequest(name string) *dto.CreateConfigRequest {
	return &dto.CreateConfigRequest{
		Name:        name,
		DisplayName: "Test " + name,
		Type:        "api",
		WindowMs:    60000,
		Max:         100,
		KeyStrategy: "ip",
	}
}

func TestConfigService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cfg, err := f.configs.Create(ctx, createRequest("api-default"), "alice")
	require.NoError(t, err)
	assert.True(t, cfg.Enabled, "enabled by default")
	assert.Equal(t, "rl:api-default:", cfg.Prefix, "prefix derived from name")
	assert.Equal(t, "alice", cfg.UpdatedBy)

	records, err := f.changes.ListByConfig(ctx, "api-default", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, constants.ChangeActionCreate, records[0].Action)
	assert.Equal(t, "alice", records[0].ChangedBy)
	assert.Contains(t, records[0].Changes, "max")
}

func TestConfigService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("bad shape rejected", func(t *testing.T) {
		req := createRequest("api-default")
		req.Max = 0
		_, err := f.configs.Create(ctx, req, "alice")
		require.Error(t, err)
		appErr, ok := errors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, errors.ErrCodeValidation, appErr.Code)
	})

	t.Run("duplicate name rejected", func(t *testing.T) {
		_, err := f.configs.Create(ctx, createRequest("dup"), "alice")
		require.NoError(t, err)
		_, err = f.configs.Create(ctx, createRequest("dup"), "alice")
		require.Error(t, err)
		appErr, ok := errors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, errors.ErrCodeConflict, appErr.Code)
	})

	t.Run("explicit disabled honored", func(t *testing.T) {
		disabled := false
		req := createRequest("off-by-default")
		req.Enabled = &disabled
		cfg, err := f.configs.Create(ctx, req, "alice")
		require.NoError(t, err)
		assert.False(t, cfg.Enabled)
	})
}

func TestConfigService_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.configs.Create(ctx, createRequest("api-default"), "alice")
	require.NoError(t, err)

	newMax := 50
	updated, err := f.configs.Update(ctx, "api-default", &dto.UpdateConfigRequest{
		Max:          &newMax,
		ChangeReason: "tightening",
	}, "bob")
	require.NoError(t, err)
	assert.Equal(t, 50, updated.Max)
	assert.Equal(t, int64(60000), updated.WindowMs, "absent fields keep stored values")

	records, err := f.changes.ListByConfig(ctx, "api-default", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, constants.ChangeActionUpdate, records[0].Action)
	assert.Equal(t, "tightening", records[0].Reason)
	assert.Len(t, records[0].Changes, 1, "only max changed")
}

func TestConfigService_UpdateNoOpWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.configs.Create(ctx, createRequest("api-default"), "alice")
	require.NoError(t, err)

	_, err = f.configs.Update(ctx, "api-default", &dto.UpdateConfigRequest{}, "bob")
	require.NoError(t, err)

	records, err := f.changes.ListByConfig(ctx, "api-default", 10)
	require.NoError(t, err)
	assert.Len(t, records, 1, "no-op patch leaves no audit record")
}

func TestConfigService_Toggle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.configs.Create(ctx, createRequest("api-default"), "alice")
	require.NoError(t, err)

	cfg, err := f.configs.Toggle(ctx, "api-default", false, "bob", "incident")
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)

	// Toggling to the current state is a no-op.
	_, err = f.configs.Toggle(ctx, "api-default", false, "bob", "again")
	require.NoError(t, err)

	records, err := f.changes.ListByConfig(ctx, "api-default", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, constants.ChangeActionToggle, records[0].Action)
	assert.Contains(t, records[0].Changes, "enabled")
}

func TestConfigService_DeleteClearsCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cfg, err := f.configs.Create(ctx, createRequest("api-default"), "alice")
	require.NoError(t, err)

	_, err = f.store.IncrementAndCheck(ctx, cfg.Prefix+"ip:1.1.1.1", cfg.Window(), cfg.Max, 0)
	require.NoError(t, err)

	require.NoError(t, f.configs.Delete(ctx, "api-default", "bob", "cleanup"))

	_, err = f.configs.Get(ctx, "api-default")
	require.Error(t, err)

	d, err := f.store.Peek(ctx, cfg.Prefix+"ip:1.1.1.1")
	require.NoError(t, err)
	assert.Nil(t, d, "namespace cleared on delete")

	records, err := f.changes.ListByConfig(ctx, "api-default", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, constants.ChangeActionDelete, records[0].Action)
}

func TestConfigService_ResolveEffective(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	max := 10
	req := createRequest("api-default")
	req.EnvironmentOverrides = map[string]models.EnvironmentOverride{
		"production": {Enabled: true, Max: &max},
	}
	_, err := f.configs.Create(ctx, req, "alice")
	require.NoError(t, err)

	eff, err := f.configs.ResolveEffective(ctx, "api-default", constants.EnvironmentProduction)
	require.NoError(t, err)
	assert.Equal(t, 10, eff.Max)

	eff, err = f.configs.ResolveEffective(ctx, "api-default", constants.EnvironmentDevelopment)
	require.NoError(t, err)
	assert.Equal(t, 100, eff.Max)
}
