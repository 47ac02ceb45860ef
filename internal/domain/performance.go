package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// DayLayout is the canonical format of every date string on a record.
const DayLayout = "2006-01-02"

// one row of granular performance data: ad x day x platform x placement
type PerformanceRecord struct {
	CampaignID   string `json:"campaign_id"`
	CampaignName string `json:"campaign_name"`
	AdSetID      string `json:"ad_set_id"`
	AdSetName    string `json:"ad_set_name"`
	AdID         string `json:"ad_id"`
	AdName       string `json:"ad_name"`

	Placement      string `json:"placement"`
	Platform       string `json:"platform"`
	DeliveryStatus string `json:"delivery_status"`
	DeliveryLevel  string `json:"delivery_level"`

	Day string `json:"day"`

	Reach       int64   `json:"reach"`
	Impressions int64   `json:"impressions"`
	Frequency   float64 `json:"frequency"`
	Results     float64 `json:"results"`
	AmountSpent float64 `json:"amount_spent"`

	CostPerResult float64 `json:"cost_per_result"`
	PurchaseRoas  float64 `json:"purchase_roas"`
	CtrAll        float64 `json:"ctr_all"`
	ResultRate    float64 `json:"result_rate"`

	// Campaign validity window, not necessarily equal to Day
	Starts          string `json:"starts"`
	Ends            string `json:"ends"`
	ReportingStarts string `json:"reporting_starts"`
	ReportingEnds   string `json:"reporting_ends"`
}

// Key returns the natural key of the record.
func (r PerformanceRecord) Key() NaturalKey {
	return NaturalKey{
		AdID:      r.AdID,
		Day:       r.Day,
		Placement: r.Placement,
		Platform:  r.Platform,
	}
}

// identity of one observation: (adId, day, placement, platform)
type NaturalKey struct {
	AdID      string `json:"ad_id"`
	Day       string `json:"day"`
	Placement string `json:"placement"`
	Platform  string `json:"platform"`
}

// String encodes the key as a JSON array, so any field may contain any
// character. Used as the Redis set member.
func (k NaturalKey) String() string {
	b, _ := json.Marshal([]string{k.AdID, k.Day, k.Placement, k.Platform})
	return string(b)
}

// ParseNaturalKey is the inverse of NaturalKey.String.
func ParseNaturalKey(s string) (NaturalKey, bool) {
	var parts []string
	if err := json.Unmarshal([]byte(s), &parts); err != nil || len(parts) != 4 {
		return NaturalKey{}, false
	}
	return NaturalKey{AdID: parts[0], Day: parts[1], Placement: parts[2], Platform: parts[3]}, true
}

type KeySet map[NaturalKey]struct{}

func NewKeySet(keys ...NaturalKey) KeySet {
	set := make(KeySet, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

func (s KeySet) Add(k NaturalKey) {
	s[k] = struct{}{}
}

func (s KeySet) Has(k NaturalKey) bool {
	_, ok := s[k]
	return ok
}

// a record as persisted by a record store
type StoredRecord struct {
	ID        int64             `json:"id"`
	Record    PerformanceRecord `json:"record"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type DeliveryStatus string

const (
	StatusActive        DeliveryStatus = "active"
	StatusNotDelivering DeliveryStatus = "not_delivering"
	StatusInactive      DeliveryStatus = "inactive"
	StatusArchived      DeliveryStatus = "archived"
)

var statusPriority = map[DeliveryStatus]int{
	StatusActive:        4,
	StatusNotDelivering: 3,
	StatusInactive:      2,
	StatusArchived:      1,
}

// NormalizeStatus lower-cases an export status and joins words with underscores,
// so "Not delivering" and "not_delivering" rank the same.
func NormalizeStatus(s string) DeliveryStatus {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return DeliveryStatus(s)
}

// Priority ranks a status; unknown statuses rank 0.
func (s DeliveryStatus) Priority() int {
	return statusPriority[s]
}

func (s DeliveryStatus) IsActive() bool {
	return s == StatusActive
}

// HigherStatus returns whichever of a and b ranks higher; a wins ties.
func HigherStatus(a, b DeliveryStatus) DeliveryStatus {
	if b.Priority() > a.Priority() {
		return b
	}
	return a
}
