package domain

import (
	"sort"
	"strings"
)

// CountryActivations is the number of activations from one country.
type CountryActivations struct {
	Country          string `json:"country"`
	ActivationsCount int    `json:"activations_count"`
}

// PromoStat aggregates activations of a promo.
type PromoStat struct {
	ActivationsCount int                  `json:"activations_count"`
	Countries        []CountryActivations `json:"countries"`
}

// NewPromoStat folds per-country counts into a PromoStat. Country codes are
// lower-cased and merged, zero counts are dropped, and the breakdown is sorted
// by country ascending.
func NewPromoStat(byCountry map[string]int) PromoStat {
	merged := make(map[string]int, len(byCountry))
	for country, n := range byCountry {
		merged[strings.ToLower(country)] += n
	}

	stat := PromoStat{Countries: make([]CountryActivations, 0, len(merged))}
	for country, n := range merged {
		if n <= 0 {
			continue
		}
		stat.ActivationsCount += n
		stat.Countries = append(stat.Countries, CountryActivations{Country: country, ActivationsCount: n})
	}
	sort.Slice(stat.Countries, func(i, j int) bool {
		return stat.Countries[i].Country < stat.Countries[j].Country
	})
	return stat
}
