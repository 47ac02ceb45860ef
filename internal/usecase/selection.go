package usecase

import (
	"sort"

	"adperf/internal/domain"
)

// Select filters items and orders them with active items pinned first, then
// by the sort key. The sort is stable so equal items keep their input order.
func Select(items []domain.Item, filter domain.Filter, order domain.Sort) []domain.Item {
	out := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if keep(item, filter) {
			out = append(out, item)
		}
	}

	if order.Key == "" {
		order.Key = domain.SortSpend
	}
	if order.Direction == "" {
		order.Direction = domain.Desc
	}

	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := out[i].Status().IsActive(), out[j].Status().IsActive()
		if ai != aj {
			return ai
		}
		vi, vj := order.Key.Value(out[i]), order.Key.Value(out[j])
		if order.Direction == domain.Asc {
			return vi < vj
		}
		return vi > vj
	})
	return out
}

func keep(item domain.Item, f domain.Filter) bool {
	if f.HasDateBound() {
		day, ok := item.Day()
		if !ok {
			return false
		}
		if f.DateStart != nil && day < *f.DateStart {
			return false
		}
		if f.DateEnd != nil && day > *f.DateEnd {
			return false
		}
	}
	if f.SpendMin != nil && item.Spend() < *f.SpendMin {
		return false
	}
	roas := item.Roas()
	if f.RoasMin != nil && roas < *f.RoasMin {
		return false
	}
	if f.RoasMax != nil && roas > *f.RoasMax {
		return false
	}
	return true
}
