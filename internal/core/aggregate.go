package core

import (
	"sort"
	"time"
)

// DayLayout is the key format used for per-day totals.
const DayLayout = "2006-01-02"

// Spending is the monthly debit total broken down by merchant and by day.
type Spending struct {
	ByMerchant map[string]Money
	ByDay      map[string]Money
	// MerchantOrder lists merchants in the order they were first seen.
	MerchantOrder []string
}

// MerchantTotal pairs a merchant with its summed spend.
type MerchantTotal struct {
	Merchant string
	Amount   Money
}

// DayTotal pairs a calendar day with its summed spend.
type DayTotal struct {
	Day    time.Time
	Amount Money
}

// MonthStart returns the first instant of now's calendar month, in now's location.
func MonthStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

// LastDayOfMonth returns the day number of the last day in t's month.
func LastDayOfMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// Aggregate reduces txs into per-merchant and per-day debit totals for
// transactions at or after monthStart. Credits are ignored. Day keys use
// monthStart's location.
func Aggregate(txs []Transaction, monthStart time.Time) Spending {
	s := Spending{
		ByMerchant: make(map[string]Money),
		ByDay:      make(map[string]Money),
	}
	loc := monthStart.Location()
	for _, t := range txs {
		if t.Type != Debit || t.Time.Before(monthStart) {
			continue
		}
		if _, seen := s.ByMerchant[t.Merchant]; !seen {
			s.MerchantOrder = append(s.MerchantOrder, t.Merchant)
		}
		s.ByMerchant[t.Merchant] = s.ByMerchant[t.Merchant].Add(t.Amount)
		day := t.Time.In(loc).Format(DayLayout)
		s.ByDay[day] = s.ByDay[day].Add(t.Amount)
	}
	return s
}

// Total is the sum of all merchant totals.
func (s Spending) Total() Money {
	var total Money
	for _, m := range s.ByMerchant {
		total = total.Add(m)
	}
	return total
}

// IsEmpty reports whether no debit was aggregated.
func (s Spending) IsEmpty() bool {
	return len(s.ByMerchant) == 0
}

// Merchants returns merchant totals in first-seen order.
func (s Spending) Merchants() []MerchantTotal {
	out := make([]MerchantTotal, 0, len(s.MerchantOrder))
	for _, name := range s.MerchantOrder {
		out = append(out, MerchantTotal{Merchant: name, Amount: s.ByMerchant[name]})
	}
	return out
}

// Days returns day totals in ascending date order, parsed in loc.
func (s Spending) Days(loc *time.Location) []DayTotal {
	out := make([]DayTotal, 0, len(s.ByDay))
	for key, amount := range s.ByDay {
		day, err := time.ParseInLocation(DayLayout, key, loc)
		if err != nil {
			continue
		}
		out = append(out, DayTotal{Day: day, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}
