package core

import (
	"testing"
	"time"
)

func tx(merchant string, cents int64, typ TransactionType, at time.Time) Transaction {
	return Transaction{Merchant: merchant, Amount: Money{Cents: cents}, Type: typ, Time: at}
}

func sumMoney(m map[string]Money) int64 {
	var total int64
	for _, v := range m {
		total += v.Cents
	}
	return total
}

func TestAggregate_Scenario(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	day1 := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 18, 0, 0, 0, time.UTC)

	s := Aggregate([]Transaction{
		tx("A", 10000, Debit, day1),
		tx("B", 5000, Debit, day1),
		tx("A", 3000, Credit, day2),
	}, start)

	if len(s.ByMerchant) != 2 {
		t.Fatalf("expected 2 merchants, got %v", s.ByMerchant)
	}
	if s.ByMerchant["A"].Cents != 10000 || s.ByMerchant["B"].Cents != 5000 {
		t.Errorf("unexpected merchant totals: %v", s.ByMerchant)
	}
	if got := s.Total().Cents; got != 15000 {
		t.Errorf("Total() = %d, want 15000", got)
	}
	budget := Money{Cents: 20000}
	if got := budget.Sub(s.Total()).Cents; got != 5000 {
		t.Errorf("remaining = %d, want 5000", got)
	}
	if len(s.ByDay) != 1 || s.ByDay["2024-03-01"].Cents != 15000 {
		t.Errorf("unexpected day totals: %v", s.ByDay)
	}
}

func TestAggregate_ExcludesCreditsAndEarlierTransactions(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	s := Aggregate([]Transaction{
		tx("Before", 999, Debit, start.Add(-time.Second)),
		tx("Refund", 500, Credit, start.Add(time.Hour)),
		tx("Edge", 100, Debit, start),
	}, start)

	if _, ok := s.ByMerchant["Before"]; ok {
		t.Error("transactions before month start must be excluded")
	}
	if _, ok := s.ByMerchant["Refund"]; ok {
		t.Error("credit transactions must be excluded")
	}
	if s.ByMerchant["Edge"].Cents != 100 {
		t.Errorf("transaction at month start must be included, got %v", s.ByMerchant)
	}
}

func TestAggregate_Empty(t *testing.T) {
	s := Aggregate(nil, time.Now())
	if s.ByMerchant == nil || s.ByDay == nil {
		t.Fatal("expected non-nil empty maps")
	}
	if len(s.ByMerchant) != 0 || len(s.ByDay) != 0 {
		t.Fatalf("expected empty maps, got %v %v", s.ByMerchant, s.ByDay)
	}
	if !s.IsEmpty() {
		t.Error("IsEmpty() should be true")
	}
}

func TestAggregate_MerchantAndDaySumsMatch(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, loc)

	var txs []Transaction
	merchants := []string{"Grocer", "Cafe", "Fuel", "Cafe", "Books"}
	for i := 0; i < 40; i++ {
		typ := Debit
		if i%7 == 0 {
			typ = Credit
		}
		at := start.Add(time.Duration(i*17) * time.Hour)
		txs = append(txs, tx(merchants[i%len(merchants)], int64(100+i*13), typ, at))
	}

	s := Aggregate(txs, start)
	if a, b := sumMoney(s.ByMerchant), sumMoney(s.ByDay); a != b {
		t.Fatalf("merchant sum %d != day sum %d", a, b)
	}
	if sumMoney(s.ByMerchant) != s.Total().Cents {
		t.Fatal("Total() disagrees with merchant sum")
	}
}

func TestAggregate_DayKeysUseMonthStartLocation(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, loc)
	// 2024-06-01 20:00 UTC is 2024-06-02 06:00 in UTC+10.
	at := time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)

	s := Aggregate([]Transaction{tx("X", 100, Debit, at)}, start)
	if _, ok := s.ByDay["2024-06-02"]; !ok {
		t.Fatalf("expected local day key, got %v", s.ByDay)
	}
}

func TestSpending_MerchantOrderAndDays(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := Aggregate([]Transaction{
		tx("Zeta", 100, Debit, start.Add(72*time.Hour)),
		tx("Alpha", 100, Debit, start.Add(24*time.Hour)),
		tx("Zeta", 100, Debit, start),
	}, start)

	merchants := s.Merchants()
	if len(merchants) != 2 || merchants[0].Merchant != "Zeta" || merchants[1].Merchant != "Alpha" {
		t.Fatalf("unexpected first-seen order: %+v", merchants)
	}

	days := s.Days(time.UTC)
	if len(days) != 3 {
		t.Fatalf("expected 3 days, got %d", len(days))
	}
	for i := 1; i < len(days); i++ {
		if !days[i-1].Day.Before(days[i].Day) {
			t.Fatalf("days not ascending: %+v", days)
		}
	}
}

func TestMonthStartAndLastDay(t *testing.T) {
	tests := []struct {
		now     time.Time
		lastDay int
	}{
		{time.Date(2024, 2, 10, 15, 4, 5, 0, time.UTC), 29},
		{time.Date(2023, 2, 28, 23, 0, 0, 0, time.UTC), 28},
		{time.Date(2024, 12, 31, 20, 0, 0, 0, time.UTC), 31},
		{time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), 30},
	}
	for _, tt := range tests {
		t.Run(tt.now.Format(DayLayout), func(t *testing.T) {
			ms := MonthStart(tt.now)
			if ms.Day() != 1 || ms.Hour() != 0 || ms.Month() != tt.now.Month() {
				t.Errorf("MonthStart(%v) = %v", tt.now, ms)
			}
			if got := LastDayOfMonth(tt.now); got != tt.lastDay {
				t.Errorf("LastDayOfMonth(%v) = %d, want %d", tt.now, got, tt.lastDay)
			}
		})
	}
}
