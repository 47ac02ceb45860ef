package usecase

import (
	"fmt"
	"math"
	"sort"

	"adperf/internal/domain"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// accumulator for one hierarchy node
type group struct {
	summary domain.AggregateSummary

	// parallel slices fed to the weighted means
	roas    []float64
	ctr     []float64
	weights []float64

	campaigns map[string]struct{}
	adSets    map[string]struct{}
	ads       map[string]struct{}
	days      map[string]struct{}

	placements []string
	platforms  []string
}

func newGroup(level domain.Level) *group {
	return &group{
		summary:   domain.AggregateSummary{Level: level},
		campaigns: make(map[string]struct{}),
		adSets:    make(map[string]struct{}),
		ads:       make(map[string]struct{}),
		days:      make(map[string]struct{}),
	}
}

func (g *group) add(r domain.PerformanceRecord) {
	s := &g.summary
	s.TotalSpend += r.AmountSpent
	s.TotalResults += r.Results
	s.TotalImpressions += r.Impressions
	s.TotalReach += r.Reach
	s.RowCount++

	g.roas = append(g.roas, finiteOrZero(r.PurchaseRoas))
	g.ctr = append(g.ctr, finiteOrZero(r.CtrAll))
	g.weights = append(g.weights, r.AmountSpent)

	g.campaigns[r.CampaignID] = struct{}{}
	g.adSets[r.AdSetID] = struct{}{}
	g.ads[r.AdID] = struct{}{}
	if r.Day != "" {
		g.days[r.Day] = struct{}{}
	}

	g.placements = append(g.placements, r.Placement)
	g.platforms = append(g.platforms, r.Platform)

	s.DeliveryStatus = domain.HigherStatus(s.DeliveryStatus, domain.NormalizeStatus(r.DeliveryStatus))
}

func (g *group) finish() domain.AggregateSummary {
	s := g.summary
	if s.TotalSpend != 0 {
		s.AvgRoas = stat.Mean(g.roas, g.weights)
		s.AvgCtr = stat.Mean(g.ctr, g.weights)
	}
	s.AvgRoas = finiteOrZero(s.AvgRoas)
	s.AvgCtr = finiteOrZero(s.AvgCtr)
	if s.TotalResults != 0 {
		s.CostPerResult = finiteOrZero(s.TotalSpend / s.TotalResults)
	}

	s.CampaignCount = len(g.campaigns)
	s.AdSetCount = len(g.adSets)
	s.AdCount = len(g.ads)

	if s.Level == domain.LevelAd {
		s.Placements = distinctSorted(g.placements)
		s.Platforms = distinctSorted(g.platforms)
		if len(g.days) == 1 {
			s.Day = lo.Keys(g.days)[0]
		}
	}
	return s
}

// Aggregate rolls records up to level. Groups come back in descending spend
// order; ties keep the order in which groups were first seen.
func Aggregate(records []domain.PerformanceRecord, level domain.Level) ([]domain.AggregateSummary, error) {
	keyOf, err := groupKey(level)
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*group)
	var order []string
	for _, r := range records {
		// placement rows without spend say nothing about an ad
		if level == domain.LevelAd && r.AmountSpent == 0 {
			continue
		}
		key := keyOf(r)
		g, ok := groups[key]
		if !ok {
			g = newGroup(level)
			setIdentity(&g.summary, r)
			groups[key] = g
			order = append(order, key)
		}
		g.add(r)
	}

	out := make([]domain.AggregateSummary, 0, len(order))
	for _, key := range order {
		out = append(out, groups[key].finish())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalSpend > out[j].TotalSpend
	})
	return out, nil
}

// Totals summarises every record as a single account-wide node.
func Totals(records []domain.PerformanceRecord) domain.AggregateSummary {
	g := newGroup(domain.LevelAccount)
	for _, r := range records {
		g.add(r)
	}
	return g.finish()
}

// Timeline is the day-level roll-up in calendar order. Rows without a day
// are left out.
func Timeline(records []domain.PerformanceRecord) []domain.AggregateSummary {
	days, _ := Aggregate(records, domain.LevelDay)
	days = lo.Filter(days, func(s domain.AggregateSummary, _ int) bool {
		return s.Day != ""
	})
	sort.SliceStable(days, func(i, j int) bool {
		return days[i].Day < days[j].Day
	})
	return days
}

func groupKey(level domain.Level) (func(domain.PerformanceRecord) string, error) {
	switch level {
	case domain.LevelCampaign:
		return func(r domain.PerformanceRecord) string { return r.CampaignID }, nil
	case domain.LevelAdSet:
		return func(r domain.PerformanceRecord) string { return r.AdSetID }, nil
	case domain.LevelAd:
		return func(r domain.PerformanceRecord) string { return r.AdID }, nil
	case domain.LevelDay:
		return func(r domain.PerformanceRecord) string { return r.Day }, nil
	}
	return nil, fmt.Errorf("cannot aggregate at level %q", level)
}

// setIdentity copies the fields that name a node at its level and above.
func setIdentity(s *domain.AggregateSummary, r domain.PerformanceRecord) {
	switch s.Level {
	case domain.LevelAd:
		s.AdID, s.AdName = r.AdID, r.AdName
		fallthrough
	case domain.LevelAdSet:
		s.AdSetID, s.AdSetName = r.AdSetID, r.AdSetName
		fallthrough
	case domain.LevelCampaign:
		s.CampaignID, s.CampaignName = r.CampaignID, r.CampaignName
	case domain.LevelDay:
		s.Day = r.Day
	}
}

func distinctSorted(values []string) []string {
	out := lo.Uniq(lo.Compact(values))
	sort.Strings(out)
	return out
}

func finiteOrZero(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
