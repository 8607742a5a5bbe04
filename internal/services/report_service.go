package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"budgetmail/internal/core"
	applog "budgetmail/internal/log"
	"budgetmail/internal/mailer"
	"budgetmail/internal/report"
	"budgetmail/internal/sheets"
	"budgetmail/internal/storage"
)

// ReportStore is the storage the report run needs.
type ReportStore interface {
	ListBudgetedUsers(ctx context.Context) ([]core.User, error)
	ListTransactionsSince(ctx context.Context, userID int64, since time.Time) ([]core.Transaction, error)
	DeliveryStatus(ctx context.Context, userID int64, period time.Time) (string, error)
	RecordDelivery(ctx context.Context, userID int64, period time.Time, status, detail string) error
}

// ReportService builds and mails the monthly report for every user with a budget.
type ReportService struct {
	store    ReportStore
	renderer *report.Renderer
	sender   mailer.Sender
	archiver sheets.ReportArchiver
	loc      *time.Location
	logger   *applog.StructuredLogger
}

// NewReportService wires a report service. archiver may be nil.
func NewReportService(
	store ReportStore,
	renderer *report.Renderer,
	sender mailer.Sender,
	archiver sheets.ReportArchiver,
	loc *time.Location,
	logger *applog.Logger,
) *ReportService {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &ReportService{
		store:    store,
		renderer: renderer,
		sender:   sender,
		archiver: archiver,
		loc:      loc,
		logger:   applog.NewStructuredLogger(logger.WithComponent(applog.ComponentReport)),
	}
}

// SendMonthlyReports sends the report for now's month to every user with a
// budget set. Users whose report is already sent or queued for the month
// are skipped. A failure for one user is recorded and logged and does not
// stop the run.
// The returned error is non-nil only when the run itself could not proceed.
func (s *ReportService) SendMonthlyReports(ctx context.Context, now time.Time) (int, error) {
	if s.store == nil || s.renderer == nil || s.sender == nil {
		return 0, fmt.Errorf("report service not properly initialized")
	}

	monthStart := core.MonthStart(now.In(s.loc))
	period := monthStart.Format(storage.PeriodLayout)

	users, err := s.store.ListBudgetedUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list budgeted users: %w", err)
	}

	slog.InfoContext(ctx, "Sending monthly reports",
		"users", len(users),
		applog.FieldPeriod, period)

	sent := 0
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		status, err := s.store.DeliveryStatus(ctx, u.ID, monthStart)
		if err != nil {
			s.logger.LogError(ctx, "Failed to read delivery status", err,
				applog.OpSend,
				applog.NewFields().WithReport(u.ID, u.ReportAddress(), period))
			continue
		}
		if status == storage.DeliverySent || status == storage.DeliveryQueued {
			slog.DebugContext(ctx, "Report already handed off",
				applog.FieldUserID, u.ID,
				applog.FieldPeriod, period,
				"status", status)
			continue
		}

		sendErr := s.SendUserReport(ctx, u, monthStart)
		status, detail := s.handedOffStatus(), ""
		if sendErr != nil {
			status, detail = storage.DeliveryFailed, sendErr.Error()
		}
		if err := s.store.RecordDelivery(ctx, u.ID, monthStart, status, detail); err != nil {
			slog.ErrorContext(ctx, "Failed to record delivery", applog.FieldUserID, u.ID, "error", err)
		}
		if sendErr != nil {
			s.logger.LogError(ctx, "Monthly report failed", sendErr,
				applog.OpSend,
				applog.NewFields().WithReport(u.ID, u.ReportAddress(), period))
			continue
		}
		sent++
	}

	slog.InfoContext(ctx, "Monthly reports finished",
		"sent", sent,
		"users", len(users),
		applog.FieldPeriod, period)

	return sent, nil
}

// handedOffStatus is what a successful Send means for the ledger. The
// outbox only queues; the mail worker marks the report sent once SMTP
// accepts it.
func (s *ReportService) handedOffStatus() string {
	if mailer.Queues(s.sender) {
		return storage.DeliveryQueued
	}
	return storage.DeliverySent
}

// SendUserReport aggregates, renders and mails one user's report for the
// month starting at monthStart.
func (s *ReportService) SendUserReport(ctx context.Context, u core.User, monthStart time.Time) error {
	txs, err := s.store.ListTransactionsSince(ctx, u.ID, monthStart)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}

	spending := core.Aggregate(txs, monthStart)
	rendered, err := s.renderer.Render(u, spending, u.MonthlyBudget, monthStart)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	recipient := u.ReportAddress()
	period := monthStart.Format(storage.PeriodLayout)
	if err := s.sender.Send(ctx, mailer.Message{
		To:      recipient,
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
		UserID:  u.ID,
		Period:  period,
	}); err != nil {
		return fmt.Errorf("send report: %w", err)
	}

	s.logger.LogReportSent(ctx, u.ID, recipient, period, rendered.TotalSpent.Cents)
	s.archive(ctx, u, recipient, period, spending, rendered)
	return nil
}

func (s *ReportService) archive(ctx context.Context, u core.User, recipient, period string, spending core.Spending, rendered report.Rendered) {
	if s.archiver == nil {
		return
	}
	top := ""
	if m := report.TopMerchants(spending, 1); len(m) > 0 {
		top = m[0].Merchant
	}
	ref, err := s.archiver.ArchiveReport(ctx, sheets.ReportRecord{
		Period:      period,
		UserID:      u.ID,
		Username:    u.Username,
		Recipient:   recipient,
		Budget:      u.MonthlyBudget,
		TotalSpent:  rendered.TotalSpent,
		Remaining:   rendered.Remaining,
		TopMerchant: top,
		SentAt:      time.Now(),
	})
	if err != nil {
		slog.WarnContext(ctx, "Failed to archive report", applog.FieldUserID, u.ID, "error", err)
		return
	}
	slog.DebugContext(ctx, "Report archived", applog.FieldUserID, u.ID, "ref", ref)
}
