// Package main is the entrypoint for the PMT API server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	_ "github.com/lib/pq"

	"github.com/commandgrid/pmt/internal/activity"
	"github.com/commandgrid/pmt/internal/assistant"
	"github.com/commandgrid/pmt/internal/auth"
	"github.com/commandgrid/pmt/internal/cache"
	"github.com/commandgrid/pmt/internal/config"
	"github.com/commandgrid/pmt/internal/db/migrate"
	"github.com/commandgrid/pmt/internal/handler"
	"github.com/commandgrid/pmt/internal/metrics"
	"github.com/commandgrid/pmt/internal/notify"
	"github.com/commandgrid/pmt/internal/repository"
	"github.com/commandgrid/pmt/internal/server"
	"github.com/commandgrid/pmt/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, closeLog := initLogger(cfg)
	defer closeLog()

	if cfg.MigrateOnStart {
		if err := migrate.Run(cfg.DatabaseURL, migrate.DirectionUp); err != nil {
			logger.Error("failed to apply migrations", slog.String("error", sanitizeError(err, cfg.DatabaseURL)))
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// The notification outbox runs on database/sql so the worker keeps its
	// own small pool apart from request traffic.
	outboxDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open outbox database", slog.String("error", sanitizeError(err, cfg.DatabaseURL)))
		os.Exit(1)
	}
	outboxDB.SetMaxOpenConns(4)
	defer outboxDB.Close()

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	recorder := metrics.NewInMemory()

	tokens := auth.NewTokenManager(auth.TokenConfig{
		AccessSecret:     cfg.JWTSecret,
		RefreshSecret:    cfg.JWTRefreshSecret,
		Issuer:           cfg.JWTIssuer,
		AccessTTL:        cfg.JWTAccessTTL,
		RefreshTTL:       cfg.JWTRefreshTTL,
		ImpersonationTTL: cfg.ImpersonationTTL,
	})
	hasher := auth.NewHasher(cfg.BcryptCost)
	video := auth.NewVideoTokenIssuer(cfg.VideoAppID, cfg.VideoAppCertificate, cfg.VideoTokenTTL)
	if !cfg.VideoConfigured() {
		logger.Warn("video tokens disabled", "reason", "VIDEO_APP_ID or VIDEO_APP_CERTIFICATE not set")
	}

	responder, err := assistant.NewResponder()
	if err != nil {
		logger.Error("failed to load assistant rules", "error", err)
		os.Exit(1)
	}

	notifier := notify.NewPublisher(repo, logger, cfg.NotifyMaxAttempts)
	events := activity.NewPublisher(cacheClient.Client(), logger, recorder)

	authService := service.NewAuthService(repo, cacheClient, tokens, hasher, notifier, recorder, logger)
	adminService := service.NewAdminService(repo, cacheClient, tokens, events, logger)
	projectService := service.NewProjectService(repo, events, logger)
	taskService := service.NewTaskService(repo, notifier, events, cacheClient, recorder, logger)
	meetingService := service.NewMeetingService(repo, video, notifier, events, recorder, logger)
	chatService := service.NewChatService(repo, events, recorder, logger)
	settingsService := service.NewSettingsService(repo, cacheClient, cfg.AIModelVersion, logger)
	notificationService := service.NewNotificationService(repo, notifier, logger)
	teamService := service.NewTeamService(repo, events, logger)
	calendarService := service.NewCalendarService(repo, events, cfg.FrontendURL, logger)
	aiService := service.NewAIService(repo, responder, cfg.AIModelVersion, recorder, logger)
	activityService := service.NewActivityService(repo)

	r := setupRouter(routerDeps{
		cfg:      cfg,
		logger:   logger,
		recorder: recorder,
		tokens:   tokens,
		limiter:  cacheClient,
		revoked:  cacheClient,
		db:       repo,
		cache:    cacheClient,

		auth:          handler.NewAuthHandler(authService, logger),
		admin:         handler.NewAdminHandler(adminService, logger),
		projects:      handler.NewProjectHandler(projectService, logger),
		tasks:         handler.NewTaskHandler(taskService, logger),
		meetings:      handler.NewMeetingHandler(meetingService, logger),
		chat:          handler.NewChatHandler(chatService, logger),
		settings:      handler.NewSettingsHandler(settingsService, logger),
		notifications: handler.NewNotificationHandler(notificationService, logger),
		teams:         handler.NewTeamHandler(teamService, logger),
		calendar:      handler.NewCalendarHandler(calendarService, logger),
		ai:            handler.NewAIHandler(aiService, logger),
		activity:      handler.NewActivityHandler(activityService, logger),
	})

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	if cfg.NotifyWorkerEnabled {
		renderer, err := notify.NewRenderer(cfg.FrontendURL)
		if err != nil {
			logger.Error("failed to load email templates", "error", err)
			os.Exit(1)
		}
		mailer, err := notify.NewMailer(notify.MailerConfig{
			Provider:     cfg.EmailProvider,
			From:         cfg.EmailFrom,
			SMTPHost:     cfg.SMTPHost,
			SMTPPort:     cfg.SMTPPort,
			SMTPUser:     cfg.SMTPUser,
			SMTPPass:     cfg.SMTPPass,
			ResendAPIKey: cfg.ResendAPIKey,
		}, logger)
		if err != nil {
			logger.Error("failed to configure mailer", "error", err)
			os.Exit(1)
		}

		worker := notify.NewWorker(notify.NewRepository(outboxDB), mailer, renderer, logger, recorder)
		worker.SetPollInterval(cfg.NotifyPollInterval)
		worker.SetMaxAttempts(cfg.NotifyMaxAttempts)
		startBackground(srv, "notify-worker", logger, worker.Run)
	}

	if cfg.ActivityWorkerEnabled {
		worker := activity.NewWorker(
			cacheClient.Client(),
			repository.NewActivityRepository(repo),
			logger,
			activity.NewConsumerID(),
			recorder,
		)
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("activity worker stopped", "error", err)
			}
		}()
		srv.OnShutdown("activity-worker", worker.Shutdown)
	}

	reminders := newReminderLoop(taskService, cfg.ReminderInterval, logger)
	startBackground(srv, "deadline-reminders", logger, reminders.Run)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"frontend_url", cfg.FrontendURL,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
