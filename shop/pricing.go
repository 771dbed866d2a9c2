package shop

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Pricing carries the per-call pricing configuration of the ledger.
type Pricing struct {
	// UseKarma enables the karma markup on purchases.
	UseKarma bool
}

// Tier is one markup step: products with a base price of at least
// LowerBound pay up to Percent additional percent.
type Tier struct {
	LowerBound int64
	Percent    int64
}

// Quote is the per-product price a purchase pays, split so that both parts
// can be booked and reversed independently.
type Quote struct {
	Base  int64
	Karma int64
}

func (q Quote) PerProduct() int64 { return q.Base + q.Karma }

var (
	maxKarma     = decimal.NewFromInt(10)
	karmaDivisor = decimal.NewFromInt(2000)
)

// MarkupPercent returns the percent of the highest tier whose lower bound
// does not exceed base, or 0.
func MarkupPercent(base int64, tiers []Tier) int64 {
	sorted := append([]Tier(nil), tiers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LowerBound < sorted[j].LowerBound })

	var percent int64
	for _, t := range sorted {
		if t.LowerBound > base {
			break
		}
		percent = t.Percent
	}
	return percent
}

// KarmaPrice computes floor(base * (1 + percent*(10-karma)/2000)).
// Karma 10 pays the base price, karma -10 pays the full markup.
//
// percent is a whole number: a 20 percent tier at karma 0 turns 1000 into
// 1100. Reading it as the fraction 0.2 would give 1001 and a worst-karma
// markup of 0.2 percent instead of 20.
func KarmaPrice(base, karma int64, tiers []Tier) int64 {
	percent := decimal.NewFromInt(MarkupPercent(base, tiers))
	factor := decimal.NewFromInt(1).Add(
		percent.Mul(maxKarma.Sub(decimal.NewFromInt(karma))).Div(karmaDivisor),
	)
	return decimal.NewFromInt(base).Mul(factor).Floor().IntPart()
}

// Quote prices one product for a consumer.
func (p Pricing) Quote(base, karma int64, tiers []Tier) Quote {
	if !p.UseKarma {
		return Quote{Base: base}
	}
	return Quote{Base: base, Karma: KarmaPrice(base, karma, tiers) - base}
}
