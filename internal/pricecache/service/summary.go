package service

import (
	"time"

	pricingservice "staybook/internal/pricing/service"
	"staybook/pkg/calendar"
	"staybook/pkg/model"
	"staybook/pkg/money"
)

const (
	ShortWindowDays = 30
	LongWindowDays  = 90
)

type summary struct {
	window30          model.PriceStats
	window90          model.PriceStats
	weekendMultiplier money.Rate
	holidayMultiplier money.Rate
	peakMultiplier    money.Rate
}

// tally accumulates nightly prices without rounding.
type tally struct {
	sum   money.Money
	count int
	min   money.Money
	max   money.Money
}

func (t *tally) add(p money.Money) {
	if t.count == 0 || p < t.min {
		t.min = p
	}
	if t.count == 0 || p > t.max {
		t.max = p
	}
	t.sum = t.sum.Add(p)
	t.count++
}

func (t *tally) stats() model.PriceStats {
	return model.PriceStats{Min: t.min, Max: t.max, Avg: t.sum.DivRound(t.count)}
}

// ratioOfAverages divides avg(a) by avg(b) in one rounding step. It is 1.0000
// when either side is empty.
func ratioOfAverages(a, b tally) money.Rate {
	if a.count == 0 || b.count == 0 {
		return money.RateOne
	}
	return money.Ratio(a.sum.Mul(b.count), b.sum.Mul(a.count))
}

// summarize prices each of the LongWindowDays nights from start as a one
// night stay. Weekend nights are Friday and Saturday. Dates priced by an
// override count as holidays.
func summarize(pricing *pricingservice.RoomPricing, start time.Time) summary {
	var short, long, weekend, weekday, holiday tally

	for i := 0; i < LongWindowDays; i++ {
		date := start.AddDate(0, 0, i)
		price := pricing.Price(date, 1).Price

		long.add(price)
		if i < ShortWindowDays {
			short.add(price)
		}
		if calendar.IsWeekendNight(date) {
			weekend.add(price)
		} else {
			weekday.add(price)
		}
		if pricing.HasOverridePrice(date) {
			holiday.add(price)
		}
	}

	peak := tally{sum: long.max, count: 1}
	return summary{
		window30:          short.stats(),
		window90:          long.stats(),
		weekendMultiplier: ratioOfAverages(weekend, weekday),
		holidayMultiplier: ratioOfAverages(holiday, long),
		peakMultiplier:    ratioOfAverages(peak, long),
	}
}

// ClassifyBand returns the number of cutoffs at or below avg. cutoffs must
// be ascending, so the band never decreases as avg grows.
func ClassifyBand(avg money.Money, cutoffs []money.Money) model.PriceBand {
	band := model.PriceBandBudget
	for _, c := range cutoffs {
		if avg < c {
			break
		}
		band++
	}
	if band > model.PriceBandLuxury {
		band = model.PriceBandLuxury
	}
	return band
}
