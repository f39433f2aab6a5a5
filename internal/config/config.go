package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/avc/membership-platform/internal/domain"
	"github.com/shopspring/decimal"
)

// Config содержит конфигурацию приложения
type Config struct {
	RunAddress  string        // Адрес и порт запуска сервиса
	DatabaseURI string        // URI подключения к БД
	JWTSecret   string        // Секретный ключ для JWT
	JWTTokenTTL time.Duration // Время жизни JWT токена
	LogLevel    string        // Уровень логирования

	// Платежные коллбэки
	NotifySignKey     string // Ключ подписи платежных уведомлений
	MerchantNotifyURL string // Адрес сервиса уведомления продавца о выплате

	// Worker Pool конфигурация
	WorkerPoolSize     int           // Количество воркеров дорасчета
	WorkerQueueSize    int           // Размер очереди заказов
	WorkerScanInterval time.Duration // Интервал сканирования оплаченных заказов
	SettleGracePeriod  time.Duration // Возраст заказа до повторного расчета

	// Бизнес-правила
	MerchantRatio      decimal.Decimal            // Доля продавца в сумме заказа
	PoolRatios         map[domain.PoolKey]decimal.Decimal // Доли фондов от пуловой части
	DefaultPool        domain.PoolKey             // Фонд, забирающий остаток пуловой части
	UnilevelNeeds      [3]int                     // Требуемое число прямых 6-звездных для уровней 1-3
	MaxTeamLayer       int                        // Глубина обхода команды
	MaxAncestorWalk    int                        // Предел подъема по цепочке предков
	MemberProductPrice decimal.Decimal            // Цена членского товара
	ReferralRewardRate decimal.Decimal            // Доля реферальной награды от цены членского товара

	// Валидация
	MinPasswordLength int // Минимальная длина пароля
}

// defaultPoolRatios таблица долей фондов; доли считаются от пуловой части заказа
func defaultPoolRatios() map[domain.PoolKey]decimal.Decimal {
	return map[domain.PoolKey]decimal.Decimal{
		domain.PoolPublicWelfare: decimal.NewFromFloat(0.01),
		domain.PoolPlatform:      decimal.NewFromFloat(0.01),
		domain.PoolSubsidy:       decimal.NewFromFloat(0.12),
		domain.PoolHonorDirector: decimal.NewFromFloat(0.02),
		domain.PoolCommunity:     decimal.NewFromFloat(0.01),
		domain.PoolCityCenter:    decimal.NewFromFloat(0.01),
		domain.PoolRegionCompany: decimal.NewFromFloat(0.005),
		domain.PoolDevelopment:   decimal.NewFromFloat(0.015),
	}
}

// Load загружает конфигурацию из переменных окружения и флагов
// Приоритет: env переменные > флаги > дефолтные значения
func Load() (*Config, error) {
	cfg := &Config{
		JWTTokenTTL:        24 * time.Hour,
		LogLevel:           "info",
		WorkerPoolSize:     3,
		WorkerQueueSize:    100,
		WorkerScanInterval: 10 * time.Second,
		SettleGracePeriod:  30 * time.Second,
		MerchantRatio:      decimal.NewFromFloat(0.80),
		PoolRatios:         defaultPoolRatios(),
		DefaultPool:        domain.PoolPlatformRevenue,
		UnilevelNeeds:      [3]int{3, 5, 7},
		MaxTeamLayer:       6,
		MaxAncestorWalk:    10000,
		MemberProductPrice: decimal.RequireFromString("1980.00"),
		ReferralRewardRate: decimal.NewFromFloat(0.50),
		MinPasswordLength:  6,
	}

	// Определяем флаги
	flag.StringVar(&cfg.RunAddress, "a", ":8080", "address and port to run server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.MerchantNotifyURL, "m", "", "merchant payout notify address")
	flag.Parse()

	// Переменные окружения имеют приоритет над флагами
	if envRunAddr, ok := os.LookupEnv("RUN_ADDRESS"); ok {
		cfg.RunAddress = envRunAddr
	}

	if envDBURI, ok := os.LookupEnv("DATABASE_URI"); ok {
		cfg.DatabaseURI = envDBURI
	}

	if envNotifyURL, ok := os.LookupEnv("MERCHANT_NOTIFY_URL"); ok {
		cfg.MerchantNotifyURL = envNotifyURL
	}

	// Секреты только из env, не из флагов
	if envJWTSecret, ok := os.LookupEnv("JWT_SECRET"); ok {
		cfg.JWTSecret = envJWTSecret
	} else {
		cfg.JWTSecret = "default-secret-key-change-in-production"
	}

	if envNotifyKey, ok := os.LookupEnv("NOTIFY_SIGN_KEY"); ok {
		cfg.NotifySignKey = envNotifyKey
	} else {
		cfg.NotifySignKey = "default-notify-key-change-in-production"
	}

	// Уровень логирования
	if envLogLevel, ok := os.LookupEnv("LOG_LEVEL"); ok {
		cfg.LogLevel = envLogLevel
	}

	// Worker Pool конфигурация из env
	if envWorkerPoolSize, ok := os.LookupEnv("WORKER_POOL_SIZE"); ok {
		if size, err := strconv.Atoi(envWorkerPoolSize); err == nil && size > 0 {
			cfg.WorkerPoolSize = size
		}
	}

	if envWorkerQueueSize, ok := os.LookupEnv("WORKER_QUEUE_SIZE"); ok {
		if size, err := strconv.Atoi(envWorkerQueueSize); err == nil && size > 0 {
			cfg.WorkerQueueSize = size
		}
	}

	if envScanInterval, ok := os.LookupEnv("WORKER_SCAN_INTERVAL"); ok {
		if interval, err := time.ParseDuration(envScanInterval); err == nil && interval > 0 {
			cfg.WorkerScanInterval = interval
		}
	}

	if envGrace, ok := os.LookupEnv("SETTLE_GRACE_PERIOD"); ok {
		if grace, err := time.ParseDuration(envGrace); err == nil && grace > 0 {
			cfg.SettleGracePeriod = grace
		}
	}

	if envMaxLayer, ok := os.LookupEnv("MAX_TEAM_LAYER"); ok {
		if layer, err := strconv.Atoi(envMaxLayer); err == nil && layer > 0 {
			cfg.MaxTeamLayer = layer
		}
	}

	// Валидация обязательных параметров
	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI is required (use -d flag or DATABASE_URI env)")
	}

	if err := validateRatios(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateRatios проверяет согласованность таблицы распределения
func validateRatios(cfg *Config) error {
	one := decimal.NewFromInt(1)

	if cfg.MerchantRatio.IsNegative() || cfg.MerchantRatio.GreaterThan(one) {
		return fmt.Errorf("merchant ratio %s is out of [0, 1]", cfg.MerchantRatio)
	}

	sum := decimal.Zero
	for pool, ratio := range cfg.PoolRatios {
		if ratio.IsNegative() {
			return fmt.Errorf("pool ratio for %q is negative", pool)
		}
		sum = sum.Add(ratio)
	}

	// Именованные доли не могут превышать пуловую часть: остаток уходит в DefaultPool
	if sum.GreaterThan(one) {
		return fmt.Errorf("pool ratios sum %s exceeds 1", sum)
	}

	if _, ok := cfg.PoolRatios[cfg.DefaultPool]; ok {
		return fmt.Errorf("default pool %q must not have an explicit ratio", cfg.DefaultPool)
	}

	for i, need := range cfg.UnilevelNeeds {
		if need <= 0 {
			return fmt.Errorf("unilevel need for tier %d must be positive", i+1)
		}
	}

	return nil
}
