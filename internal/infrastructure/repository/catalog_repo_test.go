package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waste3d/training-portal/internal/domain"
	"github.com/waste3d/training-portal/internal/infrastructure/cache"
	"github.com/waste3d/training-portal/internal/infrastructure/docstore"
)

func seedCatalog(t *testing.T, store *docstore.Memory) {
	t.Helper()
	ctx := context.Background()
	// inserted out of order on purpose
	docs := []struct {
		id     string
		fields map[string]any
	}{
		{"m3", map[string]any{"title": "Three", "order_index": 3, "is_active": true, "duration_minutes": 20}},
		{"m1", map[string]any{"title": "One", "order_index": 1, "is_active": true, "duration_minutes": 10}},
		{"off", map[string]any{"title": "Off", "order_index": 0, "is_active": false}},
		{"m2", map[string]any{"title": "Two", "order_index": 2, "is_active": true, "duration_minutes": 15,
			"content": map[string]any{"topics": []string{"bias"}, "quiz": map[string]any{"questions": 3}}}},
	}
	for _, d := range docs {
		require.NoError(t, store.Set(ctx, docstore.TrainingModules, d.id, d.fields))
	}
}

func moduleIDs(items []domain.TrainingModule) []string {
	ids := make([]string, 0, len(items))
	for _, m := range items {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestListActiveModules_Strategies(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*docstore.Memory)
		strategy domain.CatalogStrategy
	}{
		{
			name:     "ordered",
			setup:    func(*docstore.Memory) {},
			strategy: domain.StrategyOrdered,
		},
		{
			name: "no composite index",
			setup: func(s *docstore.Memory) {
				s.DisableOrderedQueries(docstore.TrainingModules, true)
			},
			strategy: domain.StrategyFilteredClientSort,
		},
		{
			name: "no filtered queries",
			setup: func(s *docstore.Memory) {
				s.DisableFilteredQueries(docstore.TrainingModules, true)
			},
			strategy: domain.StrategyFullScan,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := docstore.NewMemory()
			seedCatalog(t, store)
			tt.setup(store)
			repo := NewCatalogRepository(store, cache.NewMemory(cache.DefaultTTL, nil))

			got, err := repo.ListActiveModules(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.strategy, got.Strategy)
			assert.Equal(t, []string{"m1", "m2", "m3"}, moduleIDs(got.Items))
		})
	}
}

func TestListActiveModules_ContentPassthrough(t *testing.T) {
	store := docstore.NewMemory()
	seedCatalog(t, store)
	repo := NewCatalogRepository(store, cache.NewMemory(cache.DefaultTTL, nil))

	m, err := repo.GetModule(context.Background(), "m2")
	require.NoError(t, err)
	assert.Equal(t, []string{"bias"}, m.Content.Topics)
	assert.Contains(t, m.Content.Extra, "quiz")
	assert.True(t, m.Active())
}

func TestListActiveModules_OtherErrorsStopAtFirstStep(t *testing.T) {
	store := docstore.NewMemory()
	boom := errors.New("unavailable")
	store.SetFault(docstore.TrainingModules, boom)
	repo := NewCatalogRepository(store, cache.NewMemory(cache.DefaultTTL, nil))

	_, err := repo.ListActiveModules(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestListActiveModules_FullScanKeepsUnflagged(t *testing.T) {
	store := docstore.NewMemory()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, docstore.TrainingModules, "b", map[string]any{"order_index": 2}))
	require.NoError(t, store.Set(ctx, docstore.TrainingModules, "a", map[string]any{"order_index": 1, "is_active": true}))
	require.NoError(t, store.Set(ctx, docstore.TrainingModules, "c", map[string]any{"order_index": 0, "is_active": false}))
	store.DisableFilteredQueries(docstore.TrainingModules, true)

	got, err := NewCatalogRepository(store, cache.NewMemory(cache.DefaultTTL, nil)).ListActiveModules(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyFullScan, got.Strategy)
	assert.Equal(t, []string{"a", "b"}, moduleIDs(got.Items))
}

func TestListActiveModules_Cached(t *testing.T) {
	store := docstore.NewMemory()
	seedCatalog(t, store)
	repo := NewCatalogRepository(store, cache.NewMemory(cache.DefaultTTL, nil))
	ctx := context.Background()

	first, err := repo.ListActiveModules(ctx)
	require.NoError(t, err)

	// a broken store is not consulted while the listing is cached
	store.SetFault(docstore.TrainingModules, errors.New("unavailable"))
	second, err := repo.ListActiveModules(ctx)
	require.NoError(t, err)
	assert.Equal(t, moduleIDs(first.Items), moduleIDs(second.Items))
}

func TestListActiveModules_Empty(t *testing.T) {
	repo := NewCatalogRepository(docstore.NewMemory(), cache.NewMemory(cache.DefaultTTL, nil))

	got, err := repo.ListActiveModules(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Items)
}

func TestGetModule_NotFound(t *testing.T) {
	repo := NewCatalogRepository(docstore.NewMemory(), cache.NewMemory(cache.DefaultTTL, nil))

	_, err := repo.GetModule(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListActiveVideos_LimitAfterSort(t *testing.T) {
	store := docstore.NewMemory()
	ctx := context.Background()
	for _, v := range []struct {
		id    string
		order int
	}{{"v4", 4}, {"v2", 2}, {"v3", 3}, {"v1", 1}} {
		require.NoError(t, store.Set(ctx, docstore.AIBasicsVideos, v.id, map[string]any{
			"title":       v.id,
			"video_url":   "https://video.test/" + v.id,
			"order_index": v.order,
			"is_active":   true,
		}))
	}
	store.DisableOrderedQueries(docstore.AIBasicsVideos, true)
	repo := NewCatalogRepository(store, cache.NewMemory(cache.DefaultTTL, nil))

	got, err := repo.ListActiveVideos(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "v1", got.Items[0].ID)
	assert.Equal(t, "v2", got.Items[1].ID)

	all, err := repo.ListActiveVideos(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all.Items, 4)
}

func TestCatalog_IndependentFailures(t *testing.T) {
	store := docstore.NewMemory()
	seedCatalog(t, store)
	store.SetFault(docstore.AIBasicsVideos, errors.New("unavailable"))
	repo := NewCatalogRepository(store, cache.NewMemory(cache.DefaultTTL, nil))
	ctx := context.Background()

	_, err := repo.ListActiveVideos(ctx, 0)
	assert.Error(t, err)

	modules, err := repo.ListActiveModules(ctx)
	require.NoError(t, err)
	assert.Len(t, modules.Items, 3)
}

func TestDiagnose(t *testing.T) {
	store := docstore.NewMemory()
	seedCatalog(t, store)
	store.DisableOrderedQueries(docstore.TrainingModules, true)
	store.SetFault(docstore.AIBasicsVideos, errors.New("unavailable"))
	repo := NewCatalogRepository(store, cache.NewMemory(cache.DefaultTTL, nil))

	report := repo.Diagnose(context.Background())

	modules := report[docstore.TrainingModules]
	assert.Equal(t, 4, modules.Total)
	require.NotNil(t, modules.Active)
	assert.Equal(t, 3, *modules.Active)
	assert.Nil(t, modules.Ordered)
	require.Len(t, modules.Errors, 1)
	assert.Contains(t, modules.Errors[0], "ordered query")

	videos := report[docstore.AIBasicsVideos]
	assert.Equal(t, 0, videos.Total)
	require.Len(t, videos.Errors, 1)
}
