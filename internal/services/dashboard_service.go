package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"budgetmail/internal/core"
	"budgetmail/internal/feed"
	applog "budgetmail/internal/log"

	"github.com/shopspring/decimal"
)

// RecentLimit is how many feed items the dashboard shows.
const RecentLimit = 10

// FeedSource returns the latest transaction batch.
type FeedSource interface {
	Fetch(ctx context.Context) (feed.Batch, error)
}

// TransactionStore persists feed batches and sums monthly spend.
type TransactionStore interface {
	InsertTransactions(ctx context.Context, userID int64, txs []core.Transaction) error
	MonthlySpent(ctx context.Context, userID int64, monthStart time.Time) (core.Money, error)
}

// Dashboard is the data behind the dashboard page.
type Dashboard struct {
	Balance      decimal.Decimal
	Transactions []feed.Item
	MonthlySpent core.Money
}

// DashboardService ingests the feed for a user and reports their month so far.
type DashboardService struct {
	feed  FeedSource
	store TransactionStore
	loc   *time.Location
}

func NewDashboardService(source FeedSource, store TransactionStore, loc *time.Location) *DashboardService {
	if loc == nil {
		loc = time.Local
	}
	return &DashboardService{feed: source, store: store, loc: loc}
}

// Refresh fetches the feed, appends the whole batch for userID and returns
// the dashboard view. If the fetch, conversion or insert fails nothing is
// stored.
func (s *DashboardService) Refresh(ctx context.Context, userID int64, now time.Time) (Dashboard, error) {
	batch, err := s.feed.Fetch(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("fetch feed: %w", err)
	}

	txs, err := batch.ToTransactions(userID, s.loc)
	if err != nil {
		return Dashboard{}, err
	}

	if err := s.store.InsertTransactions(ctx, userID, txs); err != nil {
		return Dashboard{}, fmt.Errorf("store batch: %w", err)
	}

	spent, err := s.store.MonthlySpent(ctx, userID, core.MonthStart(now.In(s.loc)))
	if err != nil {
		return Dashboard{}, fmt.Errorf("monthly spent: %w", err)
	}

	slog.DebugContext(ctx, "Dashboard refreshed",
		applog.FieldComponent, applog.ComponentFeed,
		applog.FieldUserID, userID,
		"ingested", len(txs),
		applog.FieldAmountCents, spent.Cents)

	return Dashboard{
		Balance:      batch.Balance,
		Transactions: batch.Last(RecentLimit),
		MonthlySpent: spent,
	}, nil
}
