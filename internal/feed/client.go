// Package feed fetches transaction batches from the external bank feed.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"budgetmail/internal/core"
	applog "budgetmail/internal/log"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// TimeLayout is the feed's transaction timestamp format.
const TimeLayout = "2006-01-02 15:04:05"

var (
	// ErrUnavailable is returned when the feed cannot be reached or answers
	// with something other than a JSON batch.
	ErrUnavailable = errors.New("transaction feed unavailable")
	// ErrMalformed is returned when a batch item cannot be converted.
	ErrMalformed = errors.New("malformed transaction batch")
)

// Item is one transaction as the feed reports it.
type Item struct {
	Merchant string          `json:"merchant"`
	Amount   decimal.Decimal `json:"amount"`
	Type     string          `json:"type"`
	Time     string          `json:"time"`
}

// Batch is a single feed response.
type Batch struct {
	Balance      decimal.Decimal `json:"balance"`
	Transactions []Item          `json:"transactions"`
}

// Last returns up to the last n items of the batch.
func (b Batch) Last(n int) []Item {
	if len(b.Transactions) <= n {
		return b.Transactions
	}
	return b.Transactions[len(b.Transactions)-n:]
}

// ToTransactions converts every item into a validated core.Transaction,
// parsing timestamps in loc. Any bad item fails the whole batch.
func (b Batch) ToTransactions(userID int64, loc *time.Location) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(b.Transactions))
	for i, it := range b.Transactions {
		amount, err := core.MoneyFromDecimal(it.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d amount %s", ErrMalformed, i, it.Amount)
		}
		at, err := time.ParseInLocation(TimeLayout, strings.TrimSpace(it.Time), loc)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d time %q", ErrMalformed, i, it.Time)
		}
		t := core.Transaction{
			UserID:   userID,
			Merchant: strings.TrimSpace(it.Merchant),
			Amount:   amount,
			Type:     core.TransactionType(strings.ToLower(strings.TrimSpace(it.Type))),
			Time:     at,
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrMalformed, i, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// Client fetches batches from the feed URL. Concurrent Fetch calls share
// one in-flight request.
type Client struct {
	url    string
	http   *http.Client
	group  singleflight.Group
	logger *applog.Logger
}

// NewClient returns a client that gives up on a request after timeout.
// A nil logger logs to stdout at info level.
func NewClient(url string, timeout time.Duration, logger *applog.Logger) *Client {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Client{
		url:    url,
		http:   &http.Client{Timeout: timeout},
		logger: logger.WithComponent(applog.ComponentFeed),
	}
}

// Fetch retrieves the current batch. Transport errors, non-2xx answers and
// undecodable bodies all wrap ErrUnavailable.
func (c *Client) Fetch(ctx context.Context) (Batch, error) {
	v, err, shared := c.group.Do(c.url, func() (interface{}, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		return Batch{}, err
	}
	if shared {
		c.logger.DebugContext(ctx, "Feed response shared between callers")
	}
	return v.(Batch), nil
}

func (c *Client) fetch(ctx context.Context) (Batch, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Batch{}, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Feed request failed", "error", err, "duration", time.Since(start))
		return Batch{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		c.logger.WarnContext(ctx, "Feed returned error status", "status", resp.StatusCode)
		return Batch{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var batch Batch
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&batch); err != nil {
		c.logger.WarnContext(ctx, "Feed returned undecodable body", "error", err)
		return Batch{}, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}

	c.logger.DebugContext(ctx, "Feed fetched",
		"transactions", len(batch.Transactions),
		"duration", time.Since(start))
	return batch, nil
}
