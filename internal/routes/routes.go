package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/skilltrade-app/SkillTradeBack/internal/cache"
	"github.com/skilltrade-app/SkillTradeBack/internal/config"
	"github.com/skilltrade-app/SkillTradeBack/internal/handlers"
	"github.com/skilltrade-app/SkillTradeBack/internal/middleware"
	"github.com/skilltrade-app/SkillTradeBack/internal/repository"
	"github.com/skilltrade-app/SkillTradeBack/internal/services"
	notifyws "github.com/skilltrade-app/SkillTradeBack/internal/websocket"
)

// RegisterRoutes wires repositories, services and handlers and mounts the
// API. It returns the session service so the caller can hand it to the
// reconciliation worker.
func RegisterRoutes(
	app *fiber.App,
	cfg *config.Config,
	db *pgxpool.Pool,
	balanceCache cache.Cache,
	log *logrus.Logger,
) *services.SessionService {
	userRepo := repository.NewUserRepository(db)
	matchRepo := repository.NewMatchRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	var rooms services.RoomProvider
	if cfg.RoomAPIURL != "" && cfg.RoomAPIKey != "" {
		rooms = services.NewRoomAPIService(cfg.RoomAPIURL, cfg.RoomAPIKey)
	} else {
		rooms = services.NewLocalRoomService()
	}

	hub := notifyws.NewHub()
	go hub.Run()
	notifier := services.NewHubNotifier(hub, log)

	ledgerService := services.NewLedgerService(db, balanceCache, log)
	sessionService := services.NewSessionService(
		db,
		sessionRepo,
		matchRepo,
		userRepo,
		ledgerService,
		rooms,
		notifier,
		services.SessionPolicy{
			ParticipationRate: cfg.ParticipationRate,
			StartGrace:        cfg.StartGrace,
			Refund:            services.NewRefundPolicy(cfg.RefundCutoff),
		},
		log,
	)

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	matchHandler := handlers.NewMatchHandler(matchRepo)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	creditHandler := handlers.NewCreditHandler(ledgerService)
	notificationHandler := handlers.NewNotificationHandler(hub, cfg.JWTSecret)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	matches := authProtected.Group("/matches")
	matches.Post("", matchHandler.CreateMatch)
	matches.Get("", matchHandler.ListMatches)
	matches.Post("/:id/accept", matchHandler.AcceptMatch)
	matches.Post("/:id/decline", matchHandler.DeclineMatch)

	sessions := authProtected.Group("/sessions")
	sessions.Post("", sessionHandler.ScheduleSession)
	sessions.Get("", sessionHandler.ListSessions)
	sessions.Get("/:id", sessionHandler.GetSession)
	sessions.Post("/:id/start", sessionHandler.StartSession)
	sessions.Post("/:id/complete", sessionHandler.CompleteSession)
	sessions.Post("/:id/cancel", sessionHandler.CancelSession)

	credits := authProtected.Group("/credits")
	credits.Get("/balance", creditHandler.GetBalance)
	credits.Get("/history", creditHandler.GetHistory)
	credits.Post("/purchase", creditHandler.PurchaseCredits)
	credits.Post("/recompute", creditHandler.RecomputeBalance)

	api.Use("/v1/ws", notificationHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(notificationHandler.HandleWebSocket))

	return sessionService
}
