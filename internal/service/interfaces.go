package service

import (
	"context"
	"time"

	"github.com/wfunc/ludo-game/internal/game/ludo"
	"github.com/wfunc/ludo-game/internal/models"
	"gorm.io/gorm"
)

// AuthService 认证服务接口
type AuthService interface {
	Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error)
	ValidateToken(ctx context.Context, token string) (*TokenClaims, error)
}

// LedgerService 账务服务接口
// Tx结尾的方法只在回合协调器的事务内调用，充值入账自带事务
type LedgerService interface {
	Balance(ctx context.Context, userID uint) (*models.Wallet, error)
	History(ctx context.Context, userID uint, page, pageSize int) ([]*models.Transaction, int64, error)
	CreditDeposit(ctx context.Context, req *DepositRequest) (*models.Transaction, error)

	EscrowStakesTx(ctx context.Context, tx *gorm.DB, gameID, creatorID, opponentID uint, stake int64) error
	PayPrizeTx(ctx context.Context, tx *gorm.DB, winnerID, gameID uint, prize int64) error
}

// LudoService 对局服务接口（回合协调器）
type LudoService interface {
	CreateGame(ctx context.Context, userID uint, req *CreateGameRequest) (*GameView, error)
	JoinGame(ctx context.Context, userID uint, gameID uint) (*GameView, error)
	CancelGame(ctx context.Context, userID uint, gameID uint) error
	SubmitAction(ctx context.Context, userID uint, gameID uint, req *ActionRequest) (*ActionResult, error)
	GetGame(ctx context.Context, userID uint, gameID uint) (*GameView, error)
	ListOpenGames(ctx context.Context, page, pageSize int) ([]*GameView, int64, error)
	ListMyGames(ctx context.Context, userID uint) ([]*GameView, error)
}

// Notifier 对局事件推送接口（由WebSocket层实现）
type Notifier interface {
	NotifyUser(userID uint, event string, payload interface{})
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username        string `json:"username" binding:"required,min=3,max=20"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=Password"`
	Nickname        string `json:"nickname"`
	IP              string `json:"-"` // 客户端IP，由handler设置
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	IP       string `json:"-"`
}

// AuthResponse 认证响应
type AuthResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

// TokenClaims 解析后的令牌信息
type TokenClaims struct {
	UserID    uint   `json:"user_id"`
	Username  string `json:"username"`
	SessionID string `json:"session_id"`
}

// DepositRequest 充值入账请求（支付网关回调）
type DepositRequest struct {
	UserID    uint   `json:"user_id"`
	Amount    int64  `json:"amount"` // 分
	GatewayNo string `json:"gateway_no"`
}

// CreateGameRequest 创建对局请求
type CreateGameRequest struct {
	Stake        int64 `json:"stake" binding:"required,gt=0"`
	WinCondition int   `json:"win_condition"`
}

// 对局操作类型
const (
	ActionRoll = "roll"
	ActionMove = "move"
	ActionPass = "pass"
)

// ActionRequest 对局操作请求
type ActionRequest struct {
	Action     string `json:"action" binding:"required,oneof=roll move pass"`
	TokenIndex int    `json:"token_index"`
}

// GameView 对局视图
type GameView struct {
	ID            uint                  `json:"id"`
	CreatorID     uint                  `json:"creator_id"`
	OpponentID    *uint                 `json:"opponent_id,omitempty"`
	Stake         int64                 `json:"stake"`
	WinCondition  int                   `json:"win_condition"`
	Status        models.LudoGameStatus `json:"status"`
	CurrentTurnID uint                  `json:"current_turn_id"`
	WinnerID      *uint                 `json:"winner_id,omitempty"`
	LastActionAt  time.Time             `json:"last_action_at"`
	CreatedAt     time.Time             `json:"created_at"`
	Board         *ludo.State           `json:"board,omitempty"`
	MovableTokens []int                 `json:"movable_tokens,omitempty"`
}

// ActionResult 对局操作结果
type ActionResult struct {
	Action        string           `json:"action"`
	DiceRoll      int              `json:"dice_roll,omitempty"`
	TurnForfeited bool             `json:"turn_forfeited,omitempty"` // 连掷三6丧失回合
	Move          *ludo.MoveResult `json:"move,omitempty"`
	GameOver      bool             `json:"game_over"`
	WinnerID      uint             `json:"winner_id,omitempty"`
	Prize         int64            `json:"prize,omitempty"` // 胜者入账奖金（分）
	Game          *GameView        `json:"game"`
}
