package app

import (
	"github.com/avc/membership-platform/internal/handlers"
	"github.com/avc/membership-platform/internal/utils/jwt"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// setupRouter создает и настраивает роутер
func setupRouter(deps *dependencies, jwtManager *jwt.Manager, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Глобальные middleware
	setupMiddleware(r, logger)

	// Маршруты
	setupRoutes(r, deps, jwtManager)

	return r
}

// setupMiddleware настраивает middleware для роутера
func setupMiddleware(r *chi.Mux, logger *zap.Logger) {
	r.Use(handlers.RequestIDMiddleware())
	r.Use(handlers.LoggingMiddleware(logger))
	r.Use(handlers.RecoveryMiddleware(logger))
	r.Use(middleware.Compress(5))
}

// setupRoutes настраивает маршруты приложения
func setupRoutes(r *chi.Mux, deps *dependencies, jwtManager *jwt.Manager) {
	// Health check эндпоинты
	r.Get("/health", deps.handlers.health.Health)
	r.Get("/ready", deps.handlers.health.Ready)

	// Публичные эндпоинты
	r.Post("/api/user/register", deps.handlers.auth.Register)
	r.Post("/api/user/login", deps.handlers.auth.Login)

	// Платежный коллбэк аутентифицируется подписью, не JWT
	r.Post("/api/payment/notify", deps.handlers.payment.Notify)

	// Защищенные эндпоинты
	r.Group(func(r chi.Router) {
		r.Use(handlers.AuthMiddleware(jwtManager))

		r.Post("/api/user/orders", deps.handlers.orders.CreateOrder)
		r.Get("/api/user/orders", deps.handlers.orders.GetOrders)
		r.Get("/api/user/orders/{number}", deps.handlers.orders.GetOrder)
		r.Post("/api/user/orders/{number}/refund", deps.handlers.orders.ApplyRefund)

		r.Get("/api/user/points", deps.handlers.points.GetBalances)
		r.Get("/api/user/points/{channel}/history", deps.handlers.points.GetHistory)
		r.Post("/api/user/balance/withdraw", deps.handlers.points.Withdraw)

		r.Post("/api/user/referral/bind", deps.handlers.referral.Bind)
		r.Get("/api/user/referral", deps.handlers.referral.GetReferrer)
		r.Get("/api/user/team", deps.handlers.referral.GetTeam)
		r.Get("/api/user/team/size", deps.handlers.referral.GetTeamSize)

		r.Post("/api/user/promotion/evaluate", deps.handlers.promotion.Evaluate)
		r.Post("/api/user/promotion", deps.handlers.promotion.Promote)
	})

	// Административные эндпоинты
	r.Group(func(r chi.Router) {
		r.Use(handlers.AuthMiddleware(jwtManager))
		r.Use(handlers.AdminOnlyMiddleware())

		r.Put("/api/admin/accounts/{id}/star", deps.handlers.admin.SetStarLevel)
		r.Put("/api/admin/accounts/{id}/tier", deps.handlers.admin.SetUnilevelTier)
		r.Post("/api/admin/accounts/{id}/freeze", deps.handlers.admin.Freeze)
		r.Post("/api/admin/accounts/{id}/unfreeze", deps.handlers.admin.Unfreeze)
		r.Delete("/api/admin/accounts/{id}", deps.handlers.admin.Delete)
		r.Get("/api/admin/accounts/{id}/audit", deps.handlers.admin.GetAuditTrail)
		r.Post("/api/admin/accounts/{id}/honor-director", deps.handlers.admin.CheckHonorDirector)
		r.Post("/api/admin/orders/{number}/refund/complete", deps.handlers.admin.CompleteRefund)
		r.Post("/api/admin/distributions/subsidy", deps.handlers.admin.DistributeSubsidy)
		r.Post("/api/admin/distributions/dividend", deps.handlers.admin.DistributeDividend)
	})
}
