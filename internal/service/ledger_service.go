package service

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/ludo-game/internal/errors"
	"github.com/wfunc/ludo-game/internal/logger"
	"github.com/wfunc/ludo-game/internal/models"
	"github.com/wfunc/ludo-game/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const refTypeLudoGame = "ludo_game"

// PrizeAmount 计算胜者奖金：双方押金之和扣除平台抽成
// 整数定点算术，万分比向下取整，余数即平台所得
func PrizeAmount(stake, commissionBps int64) int64 {
	pot := stake * 2
	return pot * (10000 - commissionBps) / 10000
}

// ledgerService 账务服务实现
type ledgerService struct {
	db            *gorm.DB
	walletRepo    repository.WalletRepository
	transRepo     repository.TransactionRepository
	depositFeeBps int64
	currency      string
	log           *zap.Logger
}

// NewLedgerService 创建账务服务
func NewLedgerService(
	db *gorm.DB,
	walletRepo repository.WalletRepository,
	transRepo repository.TransactionRepository,
	depositFeeBps int64,
	currency string,
	log *zap.Logger,
) LedgerService {
	return &ledgerService{
		db:            db,
		walletRepo:    walletRepo,
		transRepo:     transRepo,
		depositFeeBps: depositFeeBps,
		currency:      currency,
		log:           log,
	}
}

// Balance 查询钱包
func (s *ledgerService) Balance(ctx context.Context, userID uint) (*models.Wallet, error) {
	wallet, err := s.walletRepo.FindByUserID(ctx, userID)
	if err != nil {
		if stderrors.Is(err, repository.ErrWalletNotFound) {
			return nil, errors.New(errors.ErrWalletNotFound)
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return wallet, nil
}

// History 查询账本流水（分页）
func (s *ledgerService) History(ctx context.Context, userID uint, page, pageSize int) ([]*models.Transaction, int64, error) {
	pagination := repository.NewPagination(page, pageSize)
	list, err := s.transRepo.FindByUserID(ctx, userID, pagination)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return list, pagination.Total, nil
}

// CreditDeposit 充值入账（支付网关回调）
// 以网关流水号为订单号去重：重复回调直接返回已入账的流水，不再次加钱
func (s *ledgerService) CreditDeposit(ctx context.Context, req *DepositRequest) (*models.Transaction, error) {
	if req.Amount <= 0 {
		return nil, errors.New(errors.ErrInvalidAmount)
	}
	if req.GatewayNo == "" {
		return nil, errors.New(errors.ErrInvalidParam, "缺少网关流水号")
	}

	// 去重检查
	if existing, err := s.transRepo.FindByOrderNo(ctx, req.GatewayNo); err == nil {
		s.log.Info("重复的充值回调，忽略",
			zap.String("order_no", req.GatewayNo),
			zap.Uint("user_id", req.UserID))
		return existing, nil
	}

	// 手续费按万分比扣除
	net := req.Amount - req.Amount*s.depositFeeBps/10000

	var trans *models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		walletRepo := s.walletRepo.WithTx(tx).(repository.WalletRepository)
		transRepo := s.transRepo.WithTx(tx).(repository.TransactionRepository)

		wallet, err := walletRepo.LockForUpdate(ctx, req.UserID)
		if err != nil {
			return err
		}

		if err := walletRepo.AddBalance(ctx, req.UserID, net); err != nil {
			return err
		}
		if err := walletRepo.UpdateStatistics(ctx, req.UserID, "total_deposit", net); err != nil {
			return err
		}

		now := time.Now()
		trans = &models.Transaction{
			UserID:        req.UserID,
			OrderNo:       req.GatewayNo,
			Type:          models.TransactionTypeDeposit,
			Amount:        net,
			BeforeBalance: wallet.Balance,
			AfterBalance:  wallet.Balance + net,
			Currency:      s.currency,
			Status:        models.TransactionStatusSuccess,
			RefID:         req.GatewayNo,
			RefType:       "payment_gateway",
			Description:   "充值入账",
			ProcessedAt:   &now,
		}
		return transRepo.Create(ctx, trans)
	})

	if err != nil {
		if stderrors.Is(err, repository.ErrWalletNotFound) {
			return nil, errors.New(errors.ErrWalletNotFound)
		}
		s.log.Error("充值入账失败",
			zap.String("order_no", req.GatewayNo),
			zap.Error(err))
		return nil, errors.Wrap(err, errors.ErrTransaction)
	}

	logger.LogLedgerEntry(models.TransactionTypeDeposit, req.UserID, net, req.GatewayNo)
	return trans, nil
}

// EscrowStakesTx 托管双方押金：两个钱包按用户ID升序加锁，
// 双方余额都足够才扣款，任何一方不足则整体失败，绝不单边扣除
// 必须在对局事务内调用
func (s *ledgerService) EscrowStakesTx(ctx context.Context, tx *gorm.DB, gameID, creatorID, opponentID uint, stake int64) error {
	walletRepo := s.walletRepo.WithTx(tx).(repository.WalletRepository)
	transRepo := s.transRepo.WithTx(tx).(repository.TransactionRepository)

	creator, opponent, err := walletRepo.LockPairForUpdate(ctx, creatorID, opponentID)
	if err != nil {
		return err
	}
	if !creator.CanDebit(stake) || !opponent.CanDebit(stake) {
		return repository.ErrInsufficientBalance
	}

	for _, wallet := range []*models.Wallet{creator, opponent} {
		if err := walletRepo.DeductBalance(ctx, wallet.UserID, stake); err != nil {
			return err
		}
		if err := walletRepo.UpdateStatistics(ctx, wallet.UserID, "total_stake", stake); err != nil {
			return err
		}
		if err := s.recordTx(ctx, transRepo, wallet, models.TransactionTypeEscrow, -stake, gameID, "对局押金托管"); err != nil {
			return err
		}
	}
	return nil
}

// PayPrizeTx 发放奖金：胜者入账并记流水
func (s *ledgerService) PayPrizeTx(ctx context.Context, tx *gorm.DB, winnerID, gameID uint, prize int64) error {
	walletRepo := s.walletRepo.WithTx(tx).(repository.WalletRepository)
	transRepo := s.transRepo.WithTx(tx).(repository.TransactionRepository)

	wallet, err := walletRepo.LockForUpdate(ctx, winnerID)
	if err != nil {
		return err
	}

	if err := walletRepo.AddBalance(ctx, winnerID, prize); err != nil {
		return err
	}
	if err := walletRepo.UpdateStatistics(ctx, winnerID, "total_win", prize); err != nil {
		return err
	}

	return s.recordTx(ctx, transRepo, wallet, models.TransactionTypePrize, prize, gameID, "对局奖金")
}

// recordTx 写账本流水，金额正数入账负数出账
func (s *ledgerService) recordTx(
	ctx context.Context,
	transRepo repository.TransactionRepository,
	wallet *models.Wallet,
	txType string,
	amount int64,
	gameID uint,
	description string,
) error {
	orderNo := newOrderNo(txType)

	now := time.Now()
	trans := &models.Transaction{
		UserID:        wallet.UserID,
		OrderNo:       orderNo,
		Type:          txType,
		Amount:        amount,
		BeforeBalance: wallet.Balance,
		AfterBalance:  wallet.Balance + amount,
		Currency:      s.currency,
		Status:        models.TransactionStatusSuccess,
		RefID:         strconv.FormatUint(uint64(gameID), 10),
		RefType:       refTypeLudoGame,
		Description:   description,
		ProcessedAt:   &now,
	}
	if err := transRepo.Create(ctx, trans); err != nil {
		return err
	}

	logger.LogLedgerEntry(txType, wallet.UserID, amount, orderNo)
	return nil
}

// newOrderNo 生成账本流水订单号
func newOrderNo(txType string) string {
	return strings.ToUpper(txType) + "-" + uuid.NewString()
}
