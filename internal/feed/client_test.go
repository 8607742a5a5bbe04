package feed

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"budgetmail/internal/core"
	applog "budgetmail/internal/log"
)

const sampleBatch = `{
  "balance": 1520.75,
  "transactions": [
    {"merchant": "A", "amount": 100, "type": "debit", "time": "2024-03-01 09:30:00"},
    {"merchant": "B", "amount": "50.005", "type": "debit", "time": "2024-03-01 10:00:00"},
    {"merchant": "A", "amount": 30, "type": "credit", "time": "2024-03-02 18:00:00"}
  ]
}`

func TestClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleBatch))
	}))
	defer srv.Close()

	batch, err := NewClient(srv.URL, time.Second, nil).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if batch.Balance.String() != "1520.75" {
		t.Errorf("Balance = %s", batch.Balance)
	}
	if len(batch.Transactions) != 3 {
		t.Fatalf("expected 3 items, got %d", len(batch.Transactions))
	}

	txs, err := batch.ToTransactions(7, time.UTC)
	if err != nil {
		t.Fatalf("ToTransactions() error = %v", err)
	}
	if txs[1].Amount.Cents != 5001 {
		t.Errorf("expected half-up rounding to 5001, got %d", txs[1].Amount.Cents)
	}
	if txs[2].Type != core.Credit || txs[0].UserID != 7 {
		t.Errorf("unexpected conversion: %+v", txs)
	}
	want := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	if !txs[0].Time.Equal(want) {
		t.Errorf("Time = %v, want %v", txs[0].Time, want)
	}
}

func TestClient_FetchUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>maintenance</html>"))
		}},
		{"slow", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
			w.Write([]byte(sampleBatch))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewClient(srv.URL, 100*time.Millisecond, nil).Fetch(context.Background())
			if !errors.Is(err, ErrUnavailable) {
				t.Fatalf("expected ErrUnavailable, got %v", err)
			}
		})
	}

	t.Run("closed server", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := NewClient(url, 100*time.Millisecond, nil).Fetch(context.Background())
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})
}

func TestClient_LogsThroughInjectedLogger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := applog.New(applog.Config{Component: applog.ComponentApp, Output: &buf})

	if _, err := NewClient(srv.URL, time.Second, logger).Fetch(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Feed returned error status") {
		t.Fatalf("expected warning in injected logger, got %q", out)
	}
	if strings.Count(out, "component=") != 1 || !strings.Contains(out, "component="+applog.ComponentFeed) {
		t.Errorf("expected a single feed component attribute, got %q", out)
	}
}

func TestClient_FetchSharesInFlightRequest(t *testing.T) {
	var hits int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		w.Write([]byte(sampleBatch))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second, nil)
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Fetch(context.Background()); err != nil {
				t.Errorf("Fetch() error = %v", err)
			}
		}()
	}
	// Give the goroutines time to join the in-flight call.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("expected 1 upstream request, got %d", n)
	}
}

func TestBatch_ToTransactionsRejectsBadItems(t *testing.T) {
	tests := []struct {
		name string
		item Item
	}{
		{"bad time", Item{Merchant: "A", Type: "debit", Time: "01/03/2024"}},
		{"bad type", Item{Merchant: "A", Type: "refund", Time: "2024-03-01 10:00:00"}},
		{"empty merchant", Item{Merchant: " ", Type: "debit", Time: "2024-03-01 10:00:00"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Batch{Transactions: []Item{tt.item}}
			if _, err := b.ToTransactions(1, time.UTC); !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestBatch_Last(t *testing.T) {
	b := Batch{}
	for i := 0; i < 12; i++ {
		b.Transactions = append(b.Transactions, Item{Merchant: string(rune('a' + i))})
	}
	last := b.Last(10)
	if len(last) != 10 || last[0].Merchant != "c" || last[9].Merchant != "l" {
		t.Fatalf("unexpected tail: %+v", last)
	}
	if got := (Batch{Transactions: b.Transactions[:3]}).Last(10); len(got) != 3 {
		t.Fatalf("expected all 3 items, got %d", len(got))
	}
}
