// Package mailer delivers rendered HTML email, either directly over SMTP or
// through the AMQP outbox consumed by the mail worker.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"budgetmail/internal/amqp"
	"budgetmail/internal/storage"

	"github.com/wneessen/go-mail"
)

var ErrNoRecipient = errors.New("message has no recipient")

// Message is one HTML email. UserID and Period are set for monthly reports
// so the mail worker can update the delivery ledger.
type Message struct {
	To      string
	Subject string
	HTML    string
	UserID  int64
	Period  string
}

func (m Message) Validate() error {
	if m.To == "" {
		return ErrNoRecipient
	}
	return nil
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLS      string // mandatory, opportunistic or none
	Timeout  time.Duration
}

// SMTPSender delivers each message over a fresh SMTP connection.
type SMTPSender struct {
	cfg  SMTPConfig
	opts []mail.Option
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if err := mail.NewMsg().From(cfg.From); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", cfg.From, err)
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
		mail.WithTLSPolicy(tlsPolicy(cfg.TLS)),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	return &SMTPSender{cfg: cfg, opts: opts}, nil
}

func tlsPolicy(policy string) mail.TLSPolicy {
	switch policy {
	case "none":
		return mail.NoTLS
	case "opportunistic":
		return mail.TLSOpportunistic
	default:
		return mail.TLSMandatory
	}
}

// buildMsg assembles the MIME message for m.
func (s *SMTPSender) buildMsg(m Message) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("set recipient %q: %w", m.To, err)
	}
	msg.Subject(m.Subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextHTML, m.HTML)
	return msg, nil
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	msg, err := s.buildMsg(m)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.cfg.Host, s.opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	start := time.Now()
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", m.To, err)
	}

	slog.InfoContext(ctx, "Mail sent",
		"component", "mailer",
		"recipient", m.To,
		"subject", m.Subject,
		"duration", time.Since(start))
	return nil
}

// Publisher is the part of the AMQP client the outbox needs.
type Publisher interface {
	PublishMail(ctx context.Context, msg *amqp.OutboundMail) error
}

// QueueSender hands messages to the AMQP outbox instead of talking SMTP.
type QueueSender struct {
	publisher Publisher
}

func NewQueueSender(p Publisher) *QueueSender {
	return &QueueSender{publisher: p}
}

func (q *QueueSender) Send(ctx context.Context, m Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	out := amqp.NewOutboundMail(m.To, m.Subject, m.HTML)
	out.UserID = m.UserID
	out.Period = m.Period
	if err := q.publisher.PublishMail(ctx, out); err != nil {
		return fmt.Errorf("queue mail to %s: %w", m.To, err)
	}
	return nil
}

// Queues reports whether s only hands messages to the outbox, so a nil error
// from Send does not mean the mail went out.
func Queues(s Sender) bool {
	_, ok := s.(*QueueSender)
	return ok
}

// Ledger is where the mail worker records the fate of queued reports.
type Ledger interface {
	RecordDelivery(ctx context.Context, userID int64, period time.Time, status, detail string) error
}

// Deliver is the mail worker's handler: it sends a queued message over SMTP.
// For report mail it marks the delivery sent or failed in ledger; ledger may
// be nil. The send error is returned unchanged so the consumer can requeue.
func Deliver(sender Sender, ledger Ledger) func(context.Context, *amqp.OutboundMail) error {
	return func(ctx context.Context, msg *amqp.OutboundMail) error {
		err := sender.Send(ctx, Message{
			To:      msg.To,
			Subject: msg.Subject,
			HTML:    msg.HTML,
			UserID:  msg.UserID,
			Period:  msg.Period,
		})
		if ledger != nil && msg.UserID != 0 && msg.Period != "" {
			recordOutcome(ctx, ledger, msg, err)
		}
		return err
	}
}

func recordOutcome(ctx context.Context, ledger Ledger, msg *amqp.OutboundMail, sendErr error) {
	period, err := time.Parse(storage.PeriodLayout, msg.Period)
	if err != nil {
		slog.WarnContext(ctx, "Queued report has a bad period", "message_id", msg.ID, "period", msg.Period)
		return
	}
	status, detail := storage.DeliverySent, ""
	if sendErr != nil {
		status, detail = storage.DeliveryFailed, sendErr.Error()
	}
	if err := ledger.RecordDelivery(ctx, msg.UserID, period, status, detail); err != nil {
		slog.ErrorContext(ctx, "Failed to record delivery",
			"message_id", msg.ID,
			"user_id", msg.UserID,
			"status", status,
			"error", err)
	}
}
