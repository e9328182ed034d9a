package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/ludo-game/internal/errors"
	"github.com/wfunc/ludo-game/internal/models"
	"github.com/wfunc/ludo-game/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LedgerServiceTestSuite 账务服务测试套件
type LedgerServiceTestSuite struct {
	suite.Suite
	db         *gorm.DB
	ledger     LedgerService
	walletRepo repository.WalletRepository
	transRepo  repository.TransactionRepository
}

func (suite *LedgerServiceTestSuite) SetupSuite() {
	suite.db = newTestDB(suite.T())
	suite.walletRepo = repository.NewWalletRepository(suite.db)
	suite.transRepo = repository.NewTransactionRepository(suite.db)

	// 手续费 2.5%，方便验证净额计算
	suite.ledger = NewLedgerService(suite.db, suite.walletRepo, suite.transRepo, 250, "ETB", zap.NewNop())
}

func (suite *LedgerServiceTestSuite) SetupTest() {
	cleanTables(suite.db)
}

// TestPrizeAmount 奖金计算：双方押金之和扣除抽成，向下取整
func (suite *LedgerServiceTestSuite) TestPrizeAmount() {
	tests := []struct {
		stake         int64
		commissionBps int64
		want          int64
	}{
		{1000, 1000, 1800}, // 10% 抽成
		{1000, 0, 2000},    // 无抽成
		{500, 1000, 900},
		{333, 1000, 599}, // 666*0.9=599.4 向下取整
		{1000, 10000, 0}, // 全额抽成
	}
	for _, tt := range tests {
		assert.Equal(suite.T(), tt.want, PrizeAmount(tt.stake, tt.commissionBps),
			"stake=%d bps=%d", tt.stake, tt.commissionBps)
	}
}

// TestCreditDeposit 充值入账扣手续费
func (suite *LedgerServiceTestSuite) TestCreditDeposit() {
	ctx := context.Background()
	createWallet(suite.T(), suite.db, 1, 0)

	trans, err := suite.ledger.CreditDeposit(ctx, &DepositRequest{
		UserID:    1,
		Amount:    10000,
		GatewayNo: "GW-20260830-001",
	})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(9750), trans.Amount) // 10000 - 2.5%
	assert.Equal(suite.T(), int64(0), trans.BeforeBalance)
	assert.Equal(suite.T(), int64(9750), trans.AfterBalance)
	assert.Equal(suite.T(), models.TransactionTypeDeposit, trans.Type)

	wallet, err := suite.walletRepo.FindByUserID(ctx, 1)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(9750), wallet.Balance)
	assert.Equal(suite.T(), int64(9750), wallet.TotalDeposit)
}

// TestCreditDeposit_Duplicate 重复回调只入账一次
func (suite *LedgerServiceTestSuite) TestCreditDeposit_Duplicate() {
	ctx := context.Background()
	createWallet(suite.T(), suite.db, 1, 0)

	req := &DepositRequest{UserID: 1, Amount: 10000, GatewayNo: "GW-dup-001"}

	first, err := suite.ledger.CreditDeposit(ctx, req)
	assert.NoError(suite.T(), err)

	second, err := suite.ledger.CreditDeposit(ctx, req)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), first.ID, second.ID)

	wallet, err := suite.walletRepo.FindByUserID(ctx, 1)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(9750), wallet.Balance)
}

// TestCreditDeposit_Invalid 非法金额与缺失流水号
func (suite *LedgerServiceTestSuite) TestCreditDeposit_Invalid() {
	ctx := context.Background()
	createWallet(suite.T(), suite.db, 1, 0)

	_, err := suite.ledger.CreditDeposit(ctx, &DepositRequest{UserID: 1, Amount: 0, GatewayNo: "GW-1"})
	assert.True(suite.T(), errors.Is(err, errors.ErrInvalidAmount))

	_, err = suite.ledger.CreditDeposit(ctx, &DepositRequest{UserID: 1, Amount: -500, GatewayNo: "GW-2"})
	assert.True(suite.T(), errors.Is(err, errors.ErrInvalidAmount))

	_, err = suite.ledger.CreditDeposit(ctx, &DepositRequest{UserID: 1, Amount: 1000})
	assert.True(suite.T(), errors.Is(err, errors.ErrInvalidParam))

	// 钱包不存在
	_, err = suite.ledger.CreditDeposit(ctx, &DepositRequest{UserID: 99, Amount: 1000, GatewayNo: "GW-3"})
	assert.True(suite.T(), errors.Is(err, errors.ErrWalletNotFound))
}

// TestEscrowAndPrizeFlow 双边押金托管与奖金发放的完整流转
func (suite *LedgerServiceTestSuite) TestEscrowAndPrizeFlow() {
	ctx := context.Background()
	createWallet(suite.T(), suite.db, 1, 5000)
	createWallet(suite.T(), suite.db, 2, 5000)

	// 双方押金一次托管
	err := suite.db.Transaction(func(tx *gorm.DB) error {
		return suite.ledger.EscrowStakesTx(ctx, tx, 7, 1, 2, 1000)
	})
	assert.NoError(suite.T(), err)

	w1, _ := suite.walletRepo.FindByUserID(ctx, 1)
	w2, _ := suite.walletRepo.FindByUserID(ctx, 2)
	assert.Equal(suite.T(), int64(4000), w1.Balance)
	assert.Equal(suite.T(), int64(4000), w2.Balance)
	assert.Equal(suite.T(), int64(1000), w1.TotalStake)
	assert.Equal(suite.T(), int64(1000), w2.TotalStake)

	// 玩家1胜出领奖
	err = suite.db.Transaction(func(tx *gorm.DB) error {
		return suite.ledger.PayPrizeTx(ctx, tx, 1, 7, 1800)
	})
	assert.NoError(suite.T(), err)

	w1, _ = suite.walletRepo.FindByUserID(ctx, 1)
	assert.Equal(suite.T(), int64(5800), w1.Balance)
	assert.Equal(suite.T(), int64(1800), w1.TotalWin)

	// 对局7共三笔流水：两笔托管一笔奖金
	list, err := suite.transRepo.FindByRef(ctx, "ludo_game", "7")
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), list, 3)
}

// TestEscrowInsufficientBalance 任何一方余额不足则两边都不扣
func (suite *LedgerServiceTestSuite) TestEscrowInsufficientBalance() {
	ctx := context.Background()
	createWallet(suite.T(), suite.db, 1, 5000)
	createWallet(suite.T(), suite.db, 2, 300)

	err := suite.db.Transaction(func(tx *gorm.DB) error {
		return suite.ledger.EscrowStakesTx(ctx, tx, 7, 1, 2, 1000)
	})
	assert.ErrorIs(suite.T(), err, repository.ErrInsufficientBalance)

	w1, _ := suite.walletRepo.FindByUserID(ctx, 1)
	w2, _ := suite.walletRepo.FindByUserID(ctx, 2)
	assert.Equal(suite.T(), int64(5000), w1.Balance)
	assert.Equal(suite.T(), int64(300), w2.Balance)
	assert.Equal(suite.T(), int64(0), w1.TotalStake)

	// 没有留下任何流水
	list, err := suite.transRepo.FindByRef(ctx, "ludo_game", "7")
	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), list)
}

// TestHistory 流水分页查询
func (suite *LedgerServiceTestSuite) TestHistory() {
	ctx := context.Background()
	createWallet(suite.T(), suite.db, 1, 0)

	for i := 0; i < 12; i++ {
		_, err := suite.ledger.CreditDeposit(ctx, &DepositRequest{
			UserID:    1,
			Amount:    1000,
			GatewayNo: "GW-hist-" + string(rune('a'+i)),
		})
		assert.NoError(suite.T(), err)
	}

	list, total, err := suite.ledger.History(ctx, 1, 1, 10)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(12), total)
	assert.Len(suite.T(), list, 10)

	list, _, err = suite.ledger.History(ctx, 1, 2, 10)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), list, 2)
}

func TestLedgerServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceTestSuite))
}
