package models

import (
	"time"
)

// 交易类型
const (
	TransactionTypeDeposit = "deposit" // 充值入账
	TransactionTypeEscrow  = "escrow"  // 对局押金托管
	TransactionTypePrize   = "prize"   // 对局奖金
	TransactionTypeRefund  = "refund"  // 退款
)

// 交易状态
const (
	TransactionStatusPending = "pending"
	TransactionStatusSuccess = "success"
	TransactionStatusFailed  = "failed"
)

// Wallet 用户钱包表
// 余额以分为单位存储，任何资金运算都走整数定点算术，禁止浮点
type Wallet struct {
	BaseModel
	UserID       uint  `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance      int64 `gorm:"default:0" json:"balance"` // 余额（分），不变式：非负
	TotalDeposit int64 `gorm:"default:0" json:"total_deposit"`
	TotalStake   int64 `gorm:"default:0" json:"total_stake"`
	TotalWin     int64 `gorm:"default:0" json:"total_win"`

	// 关联（注意：不直接嵌入 User，避免循环依赖）
	// 查询时使用 Preload("User") 来加载用户信息
}

// Transaction 交易记录表（账本流水）
type Transaction struct {
	BaseModel
	UserID        uint       `gorm:"not null;index" json:"user_id"`
	OrderNo       string     `gorm:"uniqueIndex;size:64;not null" json:"order_no"`
	Type          string     `gorm:"size:50;not null;index" json:"type"` // deposit, escrow, prize, refund
	Amount        int64      `gorm:"not null" json:"amount"`             // 正数入账，负数出账
	BeforeBalance int64      `json:"before_balance"`
	AfterBalance  int64      `json:"after_balance"`
	Currency      string     `gorm:"size:10;default:'ETB'" json:"currency"`
	Status        string     `gorm:"size:20;default:'pending';index" json:"status"`
	RefID         string     `gorm:"size:100;index" json:"ref_id"` // 关联ID（对局ID、支付网关流水号等）
	RefType       string     `gorm:"size:50" json:"ref_type"`
	Description   string     `gorm:"size:500" json:"description"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
}

// CanDebit 检查余额是否足够扣减
func (w *Wallet) CanDebit(amount int64) bool {
	return w.Balance >= amount
}

// Credit 入账并更新统计
func (w *Wallet) Credit(amount int64) {
	w.Balance += amount
	if amount > 0 {
		w.TotalDeposit += amount
	}
}
