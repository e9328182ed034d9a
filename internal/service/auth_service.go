package service

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/wfunc/ludo-game/internal/errors"
	"github.com/wfunc/ludo-game/internal/models"
	"github.com/wfunc/ludo-game/internal/repository"
	"github.com/wfunc/ludo-game/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 登录失败锁定策略
const (
	maxLoginAttempts = 5
	lockDuration     = 15 * time.Minute
)

// authService 认证服务实现
type authService struct {
	db         *gorm.DB
	userRepo   repository.UserRepository
	walletRepo repository.WalletRepository
	jwtManager *utils.JWTManager
	log        *zap.Logger
}

// NewAuthService 创建认证服务
func NewAuthService(
	db *gorm.DB,
	userRepo repository.UserRepository,
	walletRepo repository.WalletRepository,
	jwtManager *utils.JWTManager,
	log *zap.Logger,
) AuthService {
	return &authService{
		db:         db,
		userRepo:   userRepo,
		walletRepo: walletRepo,
		jwtManager: jwtManager,
		log:        log,
	}
}

// Register 用户注册：用户、认证信息、钱包在同一事务内建立
func (s *authService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	if user, _ := s.userRepo.FindByUsername(ctx, req.Username); user != nil {
		return nil, errors.New(errors.ErrAlreadyExists, "用户名已存在")
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrUnknown, "密码加密失败")
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		Nickname: req.Nickname,
		Status:   "active",
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		userRepo := s.userRepo.WithTx(tx).(repository.UserRepository)
		walletRepo := s.walletRepo.WithTx(tx).(repository.WalletRepository)

		if err := userRepo.Create(ctx, user); err != nil {
			return err
		}

		auth := &models.UserAuth{
			UserID:   user.ID,
			Password: hashedPassword,
		}
		if err := userRepo.SaveAuth(ctx, auth); err != nil {
			return err
		}

		wallet := &models.Wallet{
			UserID:  user.ID,
			Balance: 0,
		}
		return walletRepo.Create(ctx, wallet)
	})
	if err != nil {
		s.log.Error("用户注册失败", zap.String("username", req.Username), zap.Error(err))
		return nil, errors.Wrap(err, errors.ErrTransaction)
	}

	user.UpdateLoginInfo(req.IP)
	return s.issueTokens(user)
}

// Login 用户登录
func (s *authService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	user, err := s.userRepo.FindByUsername(ctx, req.Username)
	if err != nil {
		if stderrors.Is(err, repository.ErrUserNotFound) {
			return nil, errors.New(errors.ErrAuthentication, "用户名或密码错误")
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	if !user.CanLogin() {
		return nil, errors.New(errors.ErrPermissionDenied, "账户已被冻结")
	}

	auth, err := s.userRepo.FindAuthByUserID(ctx, user.ID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}

	// 连续失败锁定
	if auth.LockedUntil != nil && auth.LockedUntil.After(time.Now()) {
		return nil, errors.New(errors.ErrPermissionDenied, "尝试次数过多，账户暂时锁定")
	}

	ok, err := utils.VerifyPassword(req.Password, auth.Password)
	if err != nil || !ok {
		now := time.Now()
		auth.LoginAttempts++
		auth.LastAttemptAt = &now
		if auth.LoginAttempts >= maxLoginAttempts {
			lockedUntil := now.Add(lockDuration)
			auth.LockedUntil = &lockedUntil
			auth.LoginAttempts = 0
		}
		_ = s.userRepo.SaveAuth(ctx, auth)
		return nil, errors.New(errors.ErrAuthentication, "用户名或密码错误")
	}

	// 登录成功清零计数
	if auth.LoginAttempts > 0 || auth.LockedUntil != nil {
		auth.LoginAttempts = 0
		auth.LockedUntil = nil
		_ = s.userRepo.SaveAuth(ctx, auth)
	}
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, req.IP); err != nil {
		s.log.Warn("更新登录信息失败", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	user.UpdateLoginInfo(req.IP)
	return s.issueTokens(user)
}

// RefreshToken 刷新访问令牌
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.jwtManager.ValidateToken(refreshToken)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTokenInvalid)
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, errors.New(errors.ErrTokenInvalid)
	}
	if !user.CanLogin() {
		return nil, errors.New(errors.ErrPermissionDenied, "账户已被冻结")
	}

	accessToken, err := s.jwtManager.RefreshAccessToken(refreshToken, user.Username)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTokenInvalid)
	}

	return &AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(s.jwtManager.GetTokenExpiry("access")),
	}, nil
}

// ValidateToken 验证访问令牌
func (s *authService) ValidateToken(ctx context.Context, token string) (*TokenClaims, error) {
	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		if stderrors.Is(err, utils.ErrExpiredToken) {
			return nil, errors.New(errors.ErrTokenExpired)
		}
		return nil, errors.New(errors.ErrTokenInvalid)
	}
	if claims.TokenType != "access" {
		return nil, errors.New(errors.ErrTokenInvalid, "须使用访问令牌")
	}

	return &TokenClaims{
		UserID:    claims.UserID,
		Username:  claims.Username,
		SessionID: claims.SessionID,
	}, nil
}

// issueTokens 签发令牌对
func (s *authService) issueTokens(user *models.User) (*AuthResponse, error) {
	sessionID, err := utils.GenerateSessionID()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrUnknown)
	}

	accessToken, err := s.jwtManager.GenerateAccessToken(user.ID, user.Username, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrUnknown, "令牌签发失败")
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrUnknown, "令牌签发失败")
	}

	return &AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(s.jwtManager.GetTokenExpiry("access")),
	}, nil
}
