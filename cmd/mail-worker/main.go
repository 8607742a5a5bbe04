package main

import (
	"context"
	"errors"
	"os"

	"budgetmail/internal/amqp"
	"budgetmail/internal/cli"
	"budgetmail/internal/config"
	applog "budgetmail/internal/log"
	"budgetmail/internal/mailer"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg, applog.ComponentMailer)

	logger.Info("Starting mail-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the mail worker")
		os.Exit(1)
	}

	sender := cli.SMTPSender(logger, cfg)

	// Queued reports are confirmed in the same database the web process uses.
	repo := cli.OpenStorage(logger, cfg)
	defer repo.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := cli.ShutdownContext()
	defer cancel()

	logger.Info("Consuming mail outbox", "queue", cfg.AMQPQueue, "smtp_server", cfg.MailServer)
	if err := client.ConsumeMail(ctx, mailer.Deliver(sender, repo)); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Mail consumption failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Mail worker stopped")
}
