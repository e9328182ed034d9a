package repository

import (
	"context"
	"errors"

	"github.com/wfunc/ludo-game/internal/models"
	"gorm.io/gorm"
)

var ErrTransactionNotFound = errors.New("交易记录不存在")

// TransactionRepository 交易记录仓储接口
type TransactionRepository interface {
	BaseRepository
	Create(ctx context.Context, transaction *models.Transaction) error
	FindByID(ctx context.Context, id uint) (*models.Transaction, error)
	FindByOrderNo(ctx context.Context, orderNo string) (*models.Transaction, error)
	FindByUserID(ctx context.Context, userID uint, pagination *Pagination) ([]*models.Transaction, error)
	FindByRef(ctx context.Context, refType string, refID string) ([]*models.Transaction, error)
	UpdateStatus(ctx context.Context, orderNo string, status string) error
}

// transactionRepo 交易记录仓储实现
type transactionRepo struct {
	*BaseRepo
}

// NewTransactionRepository 创建交易记录仓储
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建交易记录
func (r *transactionRepo) Create(ctx context.Context, transaction *models.Transaction) error {
	return r.db.WithContext(ctx).Create(transaction).Error
}

// FindByID 根据ID查找交易
func (r *transactionRepo) FindByID(ctx context.Context, id uint) (*models.Transaction, error) {
	var transaction models.Transaction
	err := r.db.WithContext(ctx).First(&transaction, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &transaction, nil
}

// FindByOrderNo 根据订单号查找交易（支付回调去重依据）
func (r *transactionRepo) FindByOrderNo(ctx context.Context, orderNo string) (*models.Transaction, error) {
	var transaction models.Transaction
	err := r.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&transaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &transaction, nil
}

// FindByUserID 查找用户的交易记录
func (r *transactionRepo) FindByUserID(ctx context.Context, userID uint, pagination *Pagination) ([]*models.Transaction, error) {
	var transactions []*models.Transaction
	query := r.db.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", userID)

	// 获取总数
	var total int64
	query.Count(&total)
	pagination.Total = total

	// 分页查询
	err := query.
		Limit(pagination.PageSize).
		Offset(pagination.Offset()).
		Order("created_at DESC").
		Find(&transactions).Error

	return transactions, err
}

// FindByRef 查找某个业务对象关联的全部流水
func (r *transactionRepo) FindByRef(ctx context.Context, refType string, refID string) ([]*models.Transaction, error) {
	var transactions []*models.Transaction
	err := r.db.WithContext(ctx).
		Where("ref_type = ? AND ref_id = ?", refType, refID).
		Order("created_at ASC").
		Find(&transactions).Error
	return transactions, err
}

// UpdateStatus 更新交易状态
func (r *transactionRepo) UpdateStatus(ctx context.Context, orderNo string, status string) error {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("order_no = ?", orderNo).
		Update("status", status).Error
}

// WithTx 使用事务
func (r *transactionRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &transactionRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
