package main

import (
	"context"
	"os"
	"time"

	"budgetmail/internal/amqp"
	"budgetmail/internal/auth"
	"budgetmail/internal/cli"
	"budgetmail/internal/config"
	"budgetmail/internal/feed"
	apphttp "budgetmail/internal/http"
	applog "budgetmail/internal/log"
	"budgetmail/internal/mailer"
	"budgetmail/internal/report"
	"budgetmail/internal/services"
	ports "budgetmail/internal/sheets"
	gsheet "budgetmail/internal/sheets/google"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg, applog.ComponentApp)
	cli.ValidateConfig(logger, cfg)

	secret, err := cfg.ResolveSecretKey()
	if err != nil {
		logger.Error("Failed to resolve secret key", "error", err)
		os.Exit(1)
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid report timezone", "error", err, "timezone", cfg.ReportTimezone)
		os.Exit(1)
	}

	repo := cli.OpenStorage(logger, cfg)
	defer repo.Close()

	var sender mailer.Sender
	switch cfg.MailTransport {
	case "amqp":
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		sender = mailer.NewQueueSender(amqpClient)
		logger.Info("Mail goes through the AMQP outbox", "queue", cfg.AMQPQueue)
	default:
		sender = cli.SMTPSender(logger, cfg)
		logger.Info("Mail goes directly over SMTP", "server", cfg.MailServer, "port", cfg.MailPort)
	}

	var archiver ports.ReportArchiver
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		archiver = client
		logger.Info("Report archive enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets archive disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	renderer, err := report.NewRenderer(report.Options{
		AppName:  cfg.AppName,
		Currency: cfg.ReportCurrency,
		Location: loc,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("Failed to initialize report renderer", "error", err)
		os.Exit(1)
	}

	tokens := auth.NewTokenManager(secret, cfg.SessionTTL, cfg.ResetTokenTTL)
	accounts := services.NewAccountService(repo, tokens, sender, cfg.AppName, cfg.BaseURL)
	dashboard := services.NewDashboardService(feed.NewClient(cfg.FeedURL, cfg.FeedTimeout, logger), repo, loc)
	reports := services.NewReportService(repo, renderer, sender, archiver, loc, logger)

	ctx, cancel := cli.ShutdownContext()
	defer cancel()

	var scheduler *services.ReportScheduler
	if cfg.SchedulerEnabled {
		scheduler = services.NewReportScheduler(reports, services.ReportSchedulerConfig{
			Hour:         cfg.ReportHour,
			PollInterval: cfg.ReportPollInterval,
			Location:     loc,
		})
		if err := scheduler.Start(ctx); err != nil {
			logger.Error("Failed to start report scheduler", "error", err)
			os.Exit(1)
		}
		logger.Info("Report scheduler started", "hour", cfg.ReportHour, "timezone", loc.String())
	} else {
		logger.Info("Report scheduler disabled")
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:         ":" + cfg.Port,
		AppName:      cfg.AppName,
		Currency:     cfg.ReportCurrency,
		CookieSecure: cfg.CookieSecure,
		Location:     loc,
		Logger:       logger,
	}, apphttp.Deps{
		Accounts:  accounts,
		Dashboard: dashboard,
		Users:     repo,
		Sessions:  tokens,
		DB:        repo,
	})
	if err != nil {
		logger.Error("Failed to initialize HTTP server", "error", err)
		os.Exit(1)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting budgetmail server", "port", cfg.Port, "base_url", cfg.BaseURL)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Error("Server error", "error", err, "port", cfg.Port)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	if scheduler != nil {
		if err := scheduler.Stop(shutdownCtx); err != nil {
			logger.Error("Report scheduler shutdown error", "error", err)
		}
	}
	logger.Info("Server stopped gracefully")
}
