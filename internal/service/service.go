package service

import (
	"time"

	"github.com/wfunc/ludo-game/internal/game/ludo"
	"github.com/wfunc/ludo-game/internal/repository"
	"github.com/wfunc/ludo-game/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config 服务配置
type Config struct {
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration

	MinStake      int64 // 分
	MaxStake      int64
	CommissionBps int64 // 平台抽成（万分比）
	TurnTimeout   time.Duration
	CheckInterval time.Duration

	DepositFeeBps int64
	Currency      string
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		JWTSecret:          "your-secret-key-change-in-production",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		MinStake:           500,
		MaxStake:           1000000,
		CommissionBps:      1000,
		TurnTimeout:        90 * time.Second,
		CheckInterval:      30 * time.Second,
		DepositFeeBps:      0,
		Currency:           "ETB",
	}
}

// Services 服务集合
type Services struct {
	Auth     AuthService
	Ledger   LedgerService
	Ludo     LudoService
	Resolver *DisputeResolver

	JWTManager *utils.JWTManager
}

// NewServices 创建服务集合
// notifier 可为 nil（例如离线工具或测试场景），此时不推送任何事件
func NewServices(db *gorm.DB, config *Config, notifier Notifier, log *zap.Logger) *Services {
	// 初始化仓储
	userRepo := repository.NewUserRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	transRepo := repository.NewTransactionRepository(db)
	gameRepo := repository.NewGameRepository(db)

	// 初始化JWT管理器
	jwtManager := utils.NewJWTManager(
		config.JWTSecret,
		config.AccessTokenExpiry,
		config.RefreshTokenExpiry,
	)

	// 初始化服务
	authService := NewAuthService(
		db,
		userRepo,
		walletRepo,
		jwtManager,
		log,
	)

	ledgerService := NewLedgerService(
		db,
		walletRepo,
		transRepo,
		config.DepositFeeBps,
		config.Currency,
		log,
	)

	ludoService := NewLudoService(
		db,
		gameRepo,
		ledgerService,
		ludo.NewCryptoDiceRoller(),
		notifier,
		LudoServiceConfig{
			MinStake:      config.MinStake,
			MaxStake:      config.MaxStake,
			CommissionBps: config.CommissionBps,
		},
		log,
	)

	resolver := NewDisputeResolver(
		db,
		gameRepo,
		ledgerService,
		notifier,
		config.TurnTimeout,
		config.CheckInterval,
		config.CommissionBps,
		log,
	)

	return &Services{
		Auth:       authService,
		Ledger:     ledgerService,
		Ludo:       ludoService,
		Resolver:   resolver,
		JWTManager: jwtManager,
	}
}
