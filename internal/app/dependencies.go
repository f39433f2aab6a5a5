package app

import (
	"github.com/avc/membership-platform/internal/config"
	"github.com/avc/membership-platform/internal/domain"
	"github.com/avc/membership-platform/internal/handlers"
	"github.com/avc/membership-platform/internal/repository/postgres"
	"github.com/avc/membership-platform/internal/service"
	"github.com/avc/membership-platform/internal/utils/jwt"
	"github.com/avc/membership-platform/internal/utils/password"
	"github.com/avc/membership-platform/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// repositories содержит все репозитории приложения
type repositories struct {
	account  domain.AccountRepository
	referral domain.ReferralRepository
	ledger   domain.LedgerRepository
	order    domain.OrderRepository
	split    domain.SplitRepository
	pool     domain.PoolRepository
	audit    domain.AuditRepository
}

// services содержит все сервисы приложения
type services struct {
	auth         *service.AuthService
	ledger       *service.LedgerService
	referral     *service.ReferralService
	promotion    *service.PromotionService
	order        *service.OrderService
	settlement   *service.SettlementService
	payment      *service.PaymentService
	admin        *service.AdminService
	distribution *service.DistributionService
}

// handlerSet содержит все хендлеры приложения
type handlerSet struct {
	auth      *handlers.AuthHandler
	points    *handlers.PointsHandler
	referral  *handlers.ReferralHandler
	promotion *handlers.PromotionHandler
	orders    *handlers.OrdersHandler
	payment   *handlers.PaymentHandler
	admin     *handlers.AdminHandler
	health    *handlers.HealthHandler
}

// dependencies содержит все зависимости приложения
type dependencies struct {
	repos          *repositories
	services       *services
	handlers       *handlerSet
	jwtManager     *jwt.Manager
	settlementPool *worker.Pool
}

// initDependencies создает все зависимости приложения
func initDependencies(cfg *config.Config, dbPool *pgxpool.Pool, logger *zap.Logger) *dependencies {
	// Создание репозиториев
	repos := &repositories{
		account:  postgres.NewAccountRepository(dbPool),
		referral: postgres.NewReferralRepository(dbPool),
		ledger:   postgres.NewLedgerRepository(dbPool),
		order:    postgres.NewOrderRepository(dbPool),
		split:    postgres.NewSplitRepository(dbPool),
		pool:     postgres.NewPoolRepository(dbPool),
		audit:    postgres.NewAuditRepository(dbPool),
	}

	// Создание утилит
	passwordHasher := password.NewBCryptHasher(password.DefaultCost)
	jwtManager := jwt.NewManager(cfg.JWTSecret, cfg.JWTTokenTTL)
	merchantNotifier := service.NewMerchantNotifier(cfg.MerchantNotifyURL)

	// Создание сервисов
	ledgerService := service.NewLedgerService(repos.ledger)
	settlementService := service.NewSettlementService(
		repos.order, repos.split, repos.pool, repos.account, repos.referral, ledgerService,
		cfg.MerchantRatio, cfg.PoolRatios, cfg.DefaultPool,
		cfg.MemberProductPrice, cfg.ReferralRewardRate,
	)

	svcs := &services{
		auth: service.NewAuthService(
			repos.account, repos.referral, passwordHasher, jwtManager,
			cfg.MinPasswordLength, cfg.MaxAncestorWalk,
		),
		ledger:       ledgerService,
		referral:     service.NewReferralService(repos.account, repos.referral, cfg.MaxTeamLayer, cfg.MaxAncestorWalk),
		promotion:    service.NewPromotionService(repos.account, repos.referral, cfg.UnilevelNeeds, cfg.MaxTeamLayer),
		order:        service.NewOrderService(repos.order),
		settlement:   settlementService,
		payment:      service.NewPaymentService(repos.order, settlementService, merchantNotifier, cfg.NotifySignKey, logger),
		admin:        service.NewAdminService(repos.account, repos.audit, logger),
		distribution: service.NewDistributionService(repos.account, repos.pool, ledgerService),
	}

	// Создание handlers
	hdlrs := &handlerSet{
		auth:      handlers.NewAuthHandler(svcs.auth, logger),
		points:    handlers.NewPointsHandler(svcs.ledger, logger),
		referral:  handlers.NewReferralHandler(svcs.referral, logger),
		promotion: handlers.NewPromotionHandler(svcs.promotion, logger),
		orders:    handlers.NewOrdersHandler(svcs.order, svcs.settlement, logger),
		payment:   handlers.NewPaymentHandler(svcs.payment, logger),
		admin:     handlers.NewAdminHandler(svcs.admin, svcs.settlement, svcs.promotion, svcs.distribution, logger),
		health:    handlers.NewHealthHandler(dbPool, logger),
	}

	// Создание worker pool дорасчета
	settlementPool := worker.NewPool(
		cfg.WorkerPoolSize, cfg.WorkerQueueSize,
		repos.order, settlementService, logger,
		cfg.WorkerScanInterval, cfg.SettleGracePeriod,
	)

	return &dependencies{
		repos:          repos,
		services:       svcs,
		handlers:       hdlrs,
		jwtManager:     jwtManager,
		settlementPool: settlementPool,
	}
}
