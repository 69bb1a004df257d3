package main

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/commandgrid/pmt/internal/config"
	"github.com/commandgrid/pmt/internal/handler"
	"github.com/commandgrid/pmt/internal/metrics"
	"github.com/commandgrid/pmt/internal/middleware"
)

// routerDeps collects everything the router mounts.
type routerDeps struct {
	cfg      *config.Config
	logger   *slog.Logger
	recorder *metrics.InMemoryRecorder
	tokens   middleware.AccessTokenParser
	limiter  middleware.RateLimiter
	revoked  middleware.RevocationChecker
	db       handler.HealthChecker
	cache    handler.HealthChecker

	auth          *handler.AuthHandler
	admin         *handler.AdminHandler
	projects      *handler.ProjectHandler
	tasks         *handler.TaskHandler
	meetings      *handler.MeetingHandler
	chat          *handler.ChatHandler
	settings      *handler.SettingsHandler
	notifications *handler.NotificationHandler
	teams         *handler.TeamHandler
	calendar      *handler.CalendarHandler
	ai            *handler.AIHandler
	activity      *handler.ActivityHandler
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(d routerDeps) *chi.Mux {
	cfg, logger := d.cfg, d.logger
	h := handler.New()
	healthHandler := handler.NewHealthHandler(d.db, d.cache, logger)
	metricsHandler := handler.NewMetricsHandler(d.recorder)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Metrics(d.recorder))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment:      cfg.IsDevelopment(),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = append(cfg.GetCORSAllowedOrigins(), cfg.FrontendURL)
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	// Probes and service info (no auth required)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)
	r.Get("/", h.Info)

	authCfg := middleware.AuthConfig{
		Logger:  logger,
		Tokens:  d.tokens,
		Revoked: d.revoked,
	}

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:     logger,
		Limiter:    d.limiter,
		Recorder:   d.recorder,
		APIEnabled: cfg.RateLimitAPIEnabled,
		APIRPM:     cfg.RateLimitAPIRPM,
		APIBurst:   cfg.RateLimitAPIBurst,
		AuthRPS:    cfg.RateLimitAuthRPS,
		AuthBurst:  cfg.RateLimitAuthBurst,
	}

	r.Route("/api", func(r chi.Router) {
		// Public auth endpoints, limited per client IP
		r.With(middleware.RateLimitIP(rateLimitCfg, "login")).Post("/login", d.auth.Login)
		r.With(middleware.RateLimitIP(rateLimitCfg, "register")).Post("/register", d.auth.Register)
		r.With(middleware.RateLimitIP(rateLimitCfg, "register")).Post("/register/company", d.auth.RegisterCompany)
		r.With(middleware.RateLimitIP(rateLimitCfg, "refresh")).Post("/token/refresh", d.auth.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(authCfg))
			r.Use(middleware.RateLimitUser(rateLimitCfg))

			r.Post("/logout", d.auth.Logout)
			r.Get("/me", d.auth.Me)
			r.Put("/me", d.auth.UpdateMe)
			r.Put("/me/password", d.auth.ChangePassword)

			r.Route("/admin", func(r chi.Router) {
				// Checked against the impersonation claim, not the caller's role.
				r.Post("/impersonate/end", d.admin.EndImpersonation)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAdmin())
					r.Get("/users", d.admin.ListUsers)
					r.Put("/users/{id}/role", d.admin.UpdateUserRole)
					r.Delete("/users/{id}", d.admin.DeleteUser)
					r.Post("/impersonate/{userId}", d.admin.Impersonate)
					r.Get("/audit-logs", d.admin.AuditLogs)
					r.Get("/stats", d.admin.Stats)
					r.Get("/roles", d.admin.Roles)
					r.Get("/security/threats", d.admin.Threats)
					r.Post("/security/scan", d.admin.Scan)
					r.Get("/system/health", d.admin.SystemHealth)

					r.Route("/calendar/events", func(r chi.Router) {
						r.Get("/", d.calendar.List)
						r.Post("/", d.calendar.Create)
						r.Get("/export", d.calendar.Export)
						r.Get("/{id}", d.calendar.Get)
						r.Delete("/{id}", d.calendar.Delete)
					})
				})
			})

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", d.projects.List)
				r.Post("/", d.projects.Create)
				r.Get("/my", d.projects.ListMine)
				r.Get("/{id}", d.projects.Get)
				r.Put("/{id}", d.projects.Update)
				r.Delete("/{id}", d.projects.Delete)
				r.Get("/{id}/details", d.projects.Details)
				r.Get("/{id}/members", d.projects.Members)
				r.Post("/{id}/members", d.projects.AddMember)
				r.Delete("/{id}/members/{userId}", d.projects.RemoveMember)
				r.Get("/{id}/manager", d.projects.Manager)
				r.Get("/{id}/tasks", d.projects.Tasks)
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", d.tasks.List)
				r.Post("/", d.tasks.Create)
				r.Get("/{id}", d.tasks.Get)
				r.Put("/{id}", d.tasks.Update)
				r.Delete("/{id}", d.tasks.Delete)
				r.Put("/{id}/assign", d.tasks.Assign)
				r.Patch("/{id}/status", d.tasks.ChangeStatus)
				r.Get("/{id}/comments", d.tasks.Comments)
				r.Post("/{id}/comments", d.tasks.AddComment)
				r.Get("/{id}/activity", d.tasks.Activity)
			})

			r.Route("/meetings", func(r chi.Router) {
				r.Get("/", d.meetings.List)
				r.Get("/count", d.meetings.Count)
				r.Post("/", d.meetings.Create)
				r.Get("/{id}", d.meetings.Get)
				r.Put("/{id}", d.meetings.Update)
				r.Delete("/{id}", d.meetings.Delete)
				r.Post("/{id}/join", d.meetings.Join)
				r.Post("/{id}/leave", d.meetings.Leave)
				r.Get("/{id}/participants", d.meetings.Participants)
				r.Post("/{id}/participants", d.meetings.AddParticipants)
				r.Post("/{id}/video-token", d.meetings.VideoToken)
			})

			r.Route("/chat", func(r chi.Router) {
				r.Get("/rooms", d.chat.ListRooms)
				r.Post("/rooms", d.chat.CreateRoom)
				r.Get("/rooms/{id}", d.chat.Room)
				r.Post("/rooms/{id}/members", d.chat.AddMember)
				r.Post("/rooms/{id}/messages", d.chat.SendMessage)
				r.Get("/rooms/{id}/pinned", d.chat.Pinned)
				r.Post("/rooms/{id}/pin/{messageId}", d.chat.Pin)
				r.Post("/rooms/{id}/unpin/{messageId}", d.chat.Unpin)
				r.Post("/report", d.chat.Report)
			})

			r.Route("/settings", func(r chi.Router) {
				r.Get("/", d.settings.Get)
				r.Put("/", d.settings.Replace)
				r.Post("/reset", d.settings.Reset)
				r.Put("/{section}", d.settings.UpdateSection)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", d.notifications.List)
				r.Post("/", d.notifications.Create)
				r.Delete("/", d.notifications.DeleteAll)
				r.Put("/read-all", d.notifications.MarkAllRead)
				r.Get("/preferences", d.notifications.Preferences)
				r.Put("/preferences", d.notifications.UpdatePreferences)
				r.Get("/{id}", d.notifications.Get)
				r.Put("/{id}/read", d.notifications.MarkRead)
				r.Delete("/{id}", d.notifications.Delete)
			})

			r.Route("/teams", func(r chi.Router) {
				r.Get("/", d.teams.List)
				r.Post("/", d.teams.Create)
				r.Get("/{id}", d.teams.Get)
				r.Put("/{id}", d.teams.Update)
				r.Delete("/{id}", d.teams.Delete)
				r.Get("/{id}/members", d.teams.Members)
				r.Post("/{id}/members", d.teams.AddMember)
				r.Delete("/{id}/members/{userId}", d.teams.RemoveMember)
				r.Put("/{id}/members/{userId}/role", d.teams.UpdateMemberRole)
			})

			r.Route("/ai", func(r chi.Router) {
				r.Get("/usage", d.ai.Usage)
				r.Post("/complete", d.ai.Complete)
				r.Get("/sessions", d.ai.Sessions)
				r.Post("/sessions", d.ai.CreateSession)
				r.Get("/sessions/{id}", d.ai.Session)
				r.Put("/sessions/{id}/close", d.ai.CloseSession)
				r.Post("/sessions/{id}/interact", d.ai.Interact)
				r.Post("/feedback", d.ai.Feedback)
				r.Post("/analyze-task/{taskId}", d.ai.AnalyzeTask)
				r.Get("/recommendations", d.ai.Recommendations)
				r.Put("/recommendations/{id}", d.ai.UpdateRecommendation)
				r.Get("/analytics", d.ai.Analytics)
				r.Post("/generate-report", d.ai.GenerateReport)
			})

			r.Get("/activities", d.activity.Recent)
		})
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
