package usecase

import (
	"context"
	"testing"

	"adperf/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockKeySource struct {
	mock.Mock
}

func (m *mockKeySource) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockKeySource) ExistingKeys(ctx context.Context, filter domain.RangeFilter) (domain.KeySet, error) {
	args := m.Called(ctx, filter)
	keys, _ := args.Get(0).(domain.KeySet)
	return keys, args.Error(1)
}

func TestComputeIncremental(t *testing.T) {
	a := record("A1", "2025-08-16", "feed", "facebook", 1, 0)
	b := record("A2", "2025-08-16", "feed", "facebook", 1, 0)
	c := record("A3", "2025-08-17", "story", "instagram", 1, 0)
	d := record("A1", "2025-08-16", "story", "facebook", 1, 0)

	tests := []struct {
		name     string
		existing domain.KeySet
		want     []domain.PerformanceRecord
	}{
		{"empty store keeps everything", domain.NewKeySet(), []domain.PerformanceRecord{a, b, c, d}},
		{"drops known keys in order", domain.NewKeySet(b.Key(), d.Key()), []domain.PerformanceRecord{a, c}},
		{"placement is part of the key", domain.NewKeySet(a.Key()), []domain.PerformanceRecord{b, c, d}},
		{"all known", domain.NewKeySet(a.Key(), b.Key(), c.Key(), d.Key()), []domain.PerformanceRecord{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeIncremental([]domain.PerformanceRecord{a, b, c, d}, tt.existing)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeduplicator_Incremental(t *testing.T) {
	ctx := context.Background()
	log, _ := testDeps()

	first := record("A1", "2025-08-16", "feed", "facebook", 10, 1)
	second := record("A2", "2025-08-18", "feed", "facebook", 10, 1)
	candidates := []domain.PerformanceRecord{first, second}

	t.Run("empty store skips the lookup", func(t *testing.T) {
		source := &mockKeySource{}
		source.On("Count", ctx).Return(0, nil).Once()

		result := NewDeduplicator(source, nil, log).Incremental(ctx, candidates)

		assert.Equal(t, candidates, result.Records)
		assert.NoError(t, result.Warning)
		source.AssertExpectations(t)
		source.AssertNotCalled(t, "ExistingKeys", mock.Anything, mock.Anything)
	})

	t.Run("lookup is bounded to the candidates' days", func(t *testing.T) {
		source := &mockKeySource{}
		source.On("Count", ctx).Return(5, nil).Once()
		source.On("ExistingKeys", ctx, domain.RangeFilter{StartDate: "2025-08-16", EndDate: "2025-08-18"}).
			Return(domain.NewKeySet(first.Key()), nil).Once()

		result := NewDeduplicator(source, nil, log).Incremental(ctx, candidates)

		assert.Equal(t, []domain.PerformanceRecord{second}, result.Records)
		assert.Equal(t, 1, result.Skipped)
		assert.NoError(t, result.Warning)
		source.AssertExpectations(t)
	})

	t.Run("lookup failure keeps all candidates and warns", func(t *testing.T) {
		source := &mockKeySource{}
		source.On("Count", ctx).Return(5, nil).Once()
		source.On("ExistingKeys", ctx, mock.Anything).Return(nil, errStoreDown).Once()

		result := NewDeduplicator(source, nil, log).Incremental(ctx, candidates)

		assert.Equal(t, candidates, result.Records)
		var unavailable *domain.StoreUnavailableError
		require.ErrorAs(t, result.Warning, &unavailable)
		assert.ErrorIs(t, result.Warning, errStoreDown)
	})

	t.Run("count failure keeps all candidates and warns", func(t *testing.T) {
		source := &mockKeySource{}
		source.On("Count", ctx).Return(0, errStoreDown).Once()

		result := NewDeduplicator(source, nil, log).Incremental(ctx, candidates)

		assert.Equal(t, candidates, result.Records)
		assert.Error(t, result.Warning)
	})

	t.Run("undated rows open the lookup range", func(t *testing.T) {
		undated := record("A3", "", "feed", "facebook", 1, 0)
		source := &mockKeySource{}
		source.On("Count", ctx).Return(1, nil).Once()
		source.On("ExistingKeys", ctx, domain.RangeFilter{}).Return(domain.NewKeySet(undated.Key()), nil).Once()

		result := NewDeduplicator(source, nil, log).Incremental(ctx, []domain.PerformanceRecord{first, undated})

		assert.Equal(t, []domain.PerformanceRecord{first}, result.Records)
		source.AssertExpectations(t)
	})

	t.Run("index without hits skips the store lookup", func(t *testing.T) {
		store := &mockKeySource{}
		store.On("Count", ctx).Return(5, nil).Once()
		index := &mockKeySource{}
		index.On("ExistingKeys", ctx, mock.Anything).Return(domain.NewKeySet(), nil).Once()

		result := NewDeduplicator(store, index, log).Incremental(ctx, candidates)

		assert.Equal(t, candidates, result.Records)
		store.AssertNotCalled(t, "ExistingKeys", mock.Anything, mock.Anything)
		index.AssertExpectations(t)
	})

	t.Run("index hits are confirmed by the store", func(t *testing.T) {
		store := &mockKeySource{}
		store.On("Count", ctx).Return(5, nil).Once()
		store.On("ExistingKeys", ctx, mock.Anything).Return(domain.NewKeySet(), nil).Once()
		index := &mockKeySource{}
		index.On("ExistingKeys", ctx, mock.Anything).Return(domain.NewKeySet(first.Key(), second.Key()), nil).Once()

		result := NewDeduplicator(store, index, log).Incremental(ctx, candidates)

		assert.Equal(t, candidates, result.Records)
		assert.Zero(t, result.Skipped)
		store.AssertExpectations(t)
	})

	t.Run("index failure falls back to the store", func(t *testing.T) {
		store := &mockKeySource{}
		store.On("Count", ctx).Return(5, nil).Once()
		store.On("ExistingKeys", ctx, mock.Anything).Return(domain.NewKeySet(first.Key()), nil).Once()
		index := &mockKeySource{}
		index.On("ExistingKeys", ctx, mock.Anything).Return(nil, errStoreDown).Once()

		result := NewDeduplicator(store, index, log).Incremental(ctx, candidates)

		assert.Equal(t, []domain.PerformanceRecord{second}, result.Records)
		assert.NoError(t, result.Warning)
	})

	t.Run("gateway is a key source", func(t *testing.T) {
		store := newFakeStore()
		gateway := newTestGateway(store, 2, 10)
		_, err := gateway.Upsert(ctx, []domain.PerformanceRecord{first})
		require.NoError(t, err)

		result := NewDeduplicator(gateway, nil, log).Incremental(ctx, candidates)

		assert.Equal(t, []domain.PerformanceRecord{second}, result.Records)
	})
}
