package usecase

import (
	"testing"

	"adperf/internal/domain"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T {
	return &v
}

func granular(adID, day, status string, spend, roas float64) domain.Item {
	r := record(adID, day, "feed", "facebook", spend, roas)
	r.DeliveryStatus = status
	return domain.Granular(r)
}

func adIDs(items []domain.Item) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if r, ok := item.Record(); ok {
			ids = append(ids, r.AdID)
			continue
		}
		s, _ := item.Summary()
		ids = append(ids, s.CampaignID+s.Day)
	}
	return ids
}

func TestSelect_ActivePinnedFirst(t *testing.T) {
	items := []domain.Item{
		granular("A1", "2025-08-16", "inactive", 500, 5),
		granular("A2", "2025-08-16", "active", 10, 1),
		granular("A3", "2025-08-16", "Not delivering", 300, 2),
		granular("A4", "2025-08-16", "ACTIVE", 20, 0.5),
	}

	for _, key := range []domain.SortKey{domain.SortSpend, domain.SortResults, domain.SortRoas, domain.SortCtr} {
		for _, dir := range []domain.Direction{domain.Asc, domain.Desc} {
			got := Select(items, domain.Filter{}, domain.Sort{Key: key, Direction: dir})
			assert.True(t, got[0].Status().IsActive(), "key=%s dir=%s", key, dir)
			assert.True(t, got[1].Status().IsActive(), "key=%s dir=%s", key, dir)
			assert.False(t, got[2].Status().IsActive(), "key=%s dir=%s", key, dir)
			assert.False(t, got[3].Status().IsActive(), "key=%s dir=%s", key, dir)
		}
	}

	got := Select(items, domain.Filter{}, domain.DefaultSort())
	assert.Equal(t, []string{"A4", "A2", "A1", "A3"}, adIDs(got))

	got = Select(items, domain.Filter{}, domain.Sort{Key: domain.SortRoas, Direction: domain.Asc})
	assert.Equal(t, []string{"A4", "A2", "A3", "A1"}, adIDs(got))
}

func TestSelect_Filters(t *testing.T) {
	items := []domain.Item{
		granular("A1", "2025-08-15", "active", 100, 1.0),
		granular("A2", "2025-08-16", "active", 50, 2.0),
		granular("A3", "2025-08-17", "active", 25, 3.0),
		granular("A4", "", "active", 75, 2.5),
	}

	tests := []struct {
		name   string
		filter domain.Filter
		want   []string
	}{
		{"no bounds", domain.Filter{}, []string{"A1", "A4", "A2", "A3"}},
		{"inclusive date range", domain.Filter{DateStart: ptr("2025-08-16"), DateEnd: ptr("2025-08-17")}, []string{"A2", "A3"}},
		{"date bound excludes undated items", domain.Filter{DateStart: ptr("2000-01-01")}, []string{"A1", "A2", "A3"}},
		{"spend minimum is inclusive", domain.Filter{SpendMin: ptr(50.0)}, []string{"A1", "A4", "A2"}},
		{"roas window is inclusive", domain.Filter{RoasMin: ptr(2.0), RoasMax: ptr(2.5)}, []string{"A4", "A2"}},
		{"nothing matches", domain.Filter{SpendMin: ptr(1000.0)}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Select(items, tt.filter, domain.DefaultSort())
			assert.Equal(t, tt.want, adIDs(got))
		})
	}
}

func TestSelect_AggregatesWithoutDayAreDroppedByDateBounds(t *testing.T) {
	items := []domain.Item{
		domain.Aggregated(domain.AggregateSummary{Level: domain.LevelCampaign, CampaignID: "C1", TotalSpend: 10}),
		domain.Aggregated(domain.AggregateSummary{Level: domain.LevelDay, Day: "2025-08-16", TotalSpend: 5}),
	}

	got := Select(items, domain.Filter{DateEnd: ptr("2025-08-31")}, domain.DefaultSort())
	assert.Equal(t, []string{"2025-08-16"}, adIDs(got))
}

func TestSelect_StableForEqualKeys(t *testing.T) {
	items := []domain.Item{
		granular("A1", "2025-08-16", "paused", 10, 1),
		granular("A2", "2025-08-16", "paused", 10, 1),
		granular("A3", "2025-08-16", "paused", 10, 1),
	}
	got := Select(items, domain.Filter{}, domain.Sort{})
	assert.Equal(t, []string{"A1", "A2", "A3"}, adIDs(got))
}

func TestSort_Toggle(t *testing.T) {
	s := domain.DefaultSort()
	assert.Equal(t, domain.Sort{Key: domain.SortSpend, Direction: domain.Desc}, s)

	s = s.Toggle(domain.SortSpend)
	assert.Equal(t, domain.Asc, s.Direction)

	s = s.Toggle(domain.SortSpend)
	assert.Equal(t, domain.Desc, s.Direction)

	s = s.Toggle(domain.SortSpend).Toggle(domain.SortRoas)
	assert.Equal(t, domain.Sort{Key: domain.SortRoas, Direction: domain.Desc}, s)
}
