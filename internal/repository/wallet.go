package repository

import (
	"context"
	"errors"

	"github.com/wfunc/ludo-game/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrWalletNotFound      = errors.New("钱包不存在")
	ErrInsufficientBalance = errors.New("余额不足")
)

// WalletRepository 钱包仓储接口
type WalletRepository interface {
	BaseRepository
	Create(ctx context.Context, wallet *models.Wallet) error
	FindByUserID(ctx context.Context, userID uint) (*models.Wallet, error)
	AddBalance(ctx context.Context, userID uint, amount int64) error
	DeductBalance(ctx context.Context, userID uint, amount int64) error
	LockForUpdate(ctx context.Context, userID uint) (*models.Wallet, error)
	LockPairForUpdate(ctx context.Context, userA, userB uint) (*models.Wallet, *models.Wallet, error)
	UpdateStatistics(ctx context.Context, userID uint, field string, amount int64) error
}

// walletRepo 钱包仓储实现
type walletRepo struct {
	*BaseRepo
}

// NewWalletRepository 创建钱包仓储
func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建钱包
func (r *walletRepo) Create(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

// FindByUserID 根据用户ID查找钱包
func (r *walletRepo) FindByUserID(ctx context.Context, userID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// AddBalance 增加余额
func (r *walletRepo) AddBalance(ctx context.Context, userID uint, amount int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("user_id = ?", userID).
		Update("balance", gorm.Expr("balance + ?", amount))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// DeductBalance 扣减余额
// 条件更新保证余额永不为负：不满足条件即零行受影响
func (r *walletRepo) DeductBalance(ctx context.Context, userID uint, amount int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// LockForUpdate 锁定钱包用于更新（悲观锁）
func (r *walletRepo) LockForUpdate(ctx context.Context, userID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&wallet).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// LockPairForUpdate 同时锁定两个钱包
// 固定按用户ID升序加锁，避免对向结算时互相死锁
func (r *walletRepo) LockPairForUpdate(ctx context.Context, userA, userB uint) (*models.Wallet, *models.Wallet, error) {
	first, second := userA, userB
	if second < first {
		first, second = second, first
	}

	w1, err := r.LockForUpdate(ctx, first)
	if err != nil {
		return nil, nil, err
	}
	w2, err := r.LockForUpdate(ctx, second)
	if err != nil {
		return nil, nil, err
	}

	if w1.UserID == userA {
		return w1, w2, nil
	}
	return w2, w1, nil
}

// UpdateStatistics 更新统计信息
func (r *walletRepo) UpdateStatistics(ctx context.Context, userID uint, field string, amount int64) error {
	allowedFields := map[string]bool{
		"total_deposit": true,
		"total_stake":   true,
		"total_win":     true,
	}

	if !allowedFields[field] {
		return errors.New("不允许的字段")
	}

	return r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("user_id = ?", userID).
		Update(field, gorm.Expr(field+" + ?", amount)).Error
}

// WithTx 使用事务
func (r *walletRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &walletRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
