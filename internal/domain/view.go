package domain

import (
	"encoding/json"
	"fmt"
)

type ItemKind int

const (
	KindGranular ItemKind = iota + 1
	KindAggregated
)

// Item is either a granular record or an aggregate summary. Metric accessors
// switch on the variant so there is exactly one authoritative field per metric.
type Item struct {
	kind       ItemKind
	granular   PerformanceRecord
	aggregated AggregateSummary
}

func Granular(r PerformanceRecord) Item {
	return Item{kind: KindGranular, granular: r}
}

func Aggregated(s AggregateSummary) Item {
	return Item{kind: KindAggregated, aggregated: s}
}

func (i Item) Kind() ItemKind {
	return i.kind
}

// Record returns the granular record; ok is false for aggregates.
func (i Item) Record() (PerformanceRecord, bool) {
	return i.granular, i.kind == KindGranular
}

// Summary returns the aggregate summary; ok is false for granular items.
func (i Item) Summary() (AggregateSummary, bool) {
	return i.aggregated, i.kind == KindAggregated
}

func (i Item) Spend() float64 {
	switch i.kind {
	case KindGranular:
		return i.granular.AmountSpent
	case KindAggregated:
		return i.aggregated.TotalSpend
	}
	return 0
}

func (i Item) Results() float64 {
	switch i.kind {
	case KindGranular:
		return i.granular.Results
	case KindAggregated:
		return i.aggregated.TotalResults
	}
	return 0
}

func (i Item) Roas() float64 {
	switch i.kind {
	case KindGranular:
		return i.granular.PurchaseRoas
	case KindAggregated:
		return i.aggregated.AvgRoas
	}
	return 0
}

func (i Item) Ctr() float64 {
	switch i.kind {
	case KindGranular:
		return i.granular.CtrAll
	case KindAggregated:
		return i.aggregated.AvgCtr
	}
	return 0
}

// Day reports the item's day; aggregates above day level usually have none.
func (i Item) Day() (string, bool) {
	var day string
	switch i.kind {
	case KindGranular:
		day = i.granular.Day
	case KindAggregated:
		day = i.aggregated.Day
	}
	return day, day != ""
}

func (i Item) Status() DeliveryStatus {
	switch i.kind {
	case KindGranular:
		return NormalizeStatus(i.granular.DeliveryStatus)
	case KindAggregated:
		return i.aggregated.DeliveryStatus
	}
	return ""
}

func (i Item) MarshalJSON() ([]byte, error) {
	switch i.kind {
	case KindGranular:
		return json.Marshal(struct {
			Kind string `json:"kind"`
			PerformanceRecord
		}{"granular", i.granular})
	case KindAggregated:
		return json.Marshal(struct {
			Kind string `json:"kind"`
			AggregateSummary
		}{"aggregated", i.aggregated})
	}
	return nil, fmt.Errorf("marshal item: unknown kind %d", i.kind)
}

// optional selection bounds; nil means unbounded
type Filter struct {
	DateStart *string  `json:"date_start,omitempty"`
	DateEnd   *string  `json:"date_end,omitempty"`
	SpendMin  *float64 `json:"spend_min,omitempty"`
	RoasMin   *float64 `json:"roas_min,omitempty"`
	RoasMax   *float64 `json:"roas_max,omitempty"`
}

func (f Filter) HasDateBound() bool {
	return f.DateStart != nil || f.DateEnd != nil
}

// WithoutDates drops the date bounds, for views whose items carry no day.
func (f Filter) WithoutDates() Filter {
	f.DateStart = nil
	f.DateEnd = nil
	return f
}

type SortKey string

const (
	SortSpend   SortKey = "spend"
	SortResults SortKey = "results"
	SortRoas    SortKey = "roas"
	SortCtr     SortKey = "ctr"
)

func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(s) {
	case SortSpend, SortResults, SortRoas, SortCtr:
		return SortKey(s), nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// Value extracts the metric the key names.
func (k SortKey) Value(i Item) float64 {
	switch k {
	case SortResults:
		return i.Results()
	case SortRoas:
		return i.Roas()
	case SortCtr:
		return i.Ctr()
	}
	return i.Spend()
}

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Asc, Desc:
		return Direction(s), nil
	}
	return "", fmt.Errorf("unknown sort direction %q", s)
}

type Sort struct {
	Key       SortKey   `json:"key"`
	Direction Direction `json:"direction"`
}

func DefaultSort() Sort {
	return Sort{Key: SortSpend, Direction: Desc}
}

// Toggle returns the sort after the user selects key: selecting the current
// key flips the direction, a new key starts descending.
func (s Sort) Toggle(key SortKey) Sort {
	if s.Key != key {
		return Sort{Key: key, Direction: Desc}
	}
	if s.Direction == Desc {
		return Sort{Key: key, Direction: Asc}
	}
	return Sort{Key: key, Direction: Desc}
}
