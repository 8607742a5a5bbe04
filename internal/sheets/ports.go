package sheets

import (
	"context"
	"time"

	"budgetmail/internal/core"
)

// ReportRecord is the summary row kept for every monthly report sent.
type ReportRecord struct {
	Period      string // YYYY-MM
	UserID      int64
	Username    string
	Recipient   string
	Budget      core.Money
	TotalSpent  core.Money
	Remaining   core.Money
	TopMerchant string
	SentAt      time.Time
}

// Ports for outbound adapters.
type (
	// ReportArchiver stores a summary of each sent report outside the database.
	ReportArchiver interface {
		ArchiveReport(ctx context.Context, r ReportRecord) (rowRef string, err error)
	}
)
