package domain

import (
	"fmt"
	"time"
)

// granularity a row collection is rolled up to
type Level string

const (
	LevelRaw      Level = "raw"
	LevelAd       Level = "ad"
	LevelAdSet    Level = "adset"
	LevelCampaign Level = "campaign"
	LevelDay      Level = "day"

	// whole record set in one summary; not selectable as a view
	LevelAccount Level = "account"
)

func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelRaw, LevelAd, LevelAdSet, LevelCampaign, LevelDay:
		return Level(s), nil
	}
	return "", fmt.Errorf("unknown level %q", s)
}

// one hierarchy node over a filtered record set; recomputed on every query
type AggregateSummary struct {
	Level Level `json:"level"`

	CampaignID   string `json:"campaign_id,omitempty"`
	CampaignName string `json:"campaign_name,omitempty"`
	AdSetID      string `json:"ad_set_id,omitempty"`
	AdSetName    string `json:"ad_set_name,omitempty"`
	AdID         string `json:"ad_id,omitempty"`
	AdName       string `json:"ad_name,omitempty"`
	Day          string `json:"day,omitempty"`

	TotalSpend       float64 `json:"total_spend"`
	TotalResults     float64 `json:"total_results"`
	TotalImpressions int64   `json:"total_impressions"`
	TotalReach       int64   `json:"total_reach"`

	// Spend-weighted
	AvgRoas float64 `json:"avg_roas"`
	AvgCtr  float64 `json:"avg_ctr"`

	CostPerResult float64 `json:"cost_per_result"`

	AdCount       int `json:"ad_count"`
	AdSetCount    int `json:"ad_set_count"`
	CampaignCount int `json:"campaign_count"`
	RowCount      int `json:"row_count"`

	Placements     []string       `json:"placements,omitempty"`
	Platforms      []string       `json:"platforms,omitempty"`
	DeliveryStatus DeliveryStatus `json:"delivery_status,omitempty"`
}

// read-only health summary over a whole record store
type StoreSummary struct {
	TotalRecords      int       `json:"total_records"`
	DateRange         DateRange `json:"date_range"`
	DistinctCampaigns int       `json:"distinct_campaigns"`
	DistinctAdSets    int       `json:"distinct_ad_sets"`
	DistinctAds       int       `json:"distinct_ads"`
	LastUpdated       time.Time `json:"last_updated"`
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Extend widens the range to cover day.
func (d *DateRange) Extend(day string) {
	if day == "" {
		return
	}
	if d.Start == "" || day < d.Start {
		d.Start = day
	}
	if d.End == "" || day > d.End {
		d.End = day
	}
}
