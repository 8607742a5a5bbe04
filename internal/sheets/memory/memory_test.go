package memory

import (
	"context"
	"testing"

	"budgetmail/internal/core"
	ports "budgetmail/internal/sheets"
)

func TestMemoryStoreArchiveAndRecords(t *testing.T) {
	s := New()
	ref, err := s.ArchiveReport(context.Background(), ports.ReportRecord{
		Period:     "2024-03",
		UserID:     1,
		TotalSpent: core.Money{Cents: 15000},
	})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected archive: ref=%q err=%v", ref, err)
	}

	records := s.Records()
	if len(records) != 1 || records[0].TotalSpent.Cents != 15000 {
		t.Fatalf("unexpected records: %+v", records)
	}

	// Returned slice is a copy.
	records[0].Period = "changed"
	if s.Records()[0].Period != "2024-03" {
		t.Error("Records() must not expose internal state")
	}
}

func TestMemoryStoreRejectsMissingPeriod(t *testing.T) {
	if _, err := New().ArchiveReport(context.Background(), ports.ReportRecord{}); err == nil {
		t.Fatal("expected error for empty period")
	}
}
