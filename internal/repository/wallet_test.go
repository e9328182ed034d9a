package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/ludo-game/internal/models"
	"gorm.io/gorm"
)

// WalletRepositoryTestSuite 钱包仓储测试套件
type WalletRepositoryTestSuite struct {
	suite.Suite
	db         *gorm.DB
	walletRepo WalletRepository
	transRepo  TransactionRepository
	userRepo   UserRepository
}

func (suite *WalletRepositoryTestSuite) SetupTest() {
	suite.db = SetupTestDB()
	suite.walletRepo = NewWalletRepository(suite.db)
	suite.transRepo = NewTransactionRepository(suite.db)
	suite.userRepo = NewUserRepository(suite.db)
}

func (suite *WalletRepositoryTestSuite) TearDownTest() {
	CleanupTestDB(suite.db)
}

// 创建测试用户及钱包
func (suite *WalletRepositoryTestSuite) createUserWithWallet(username string, balance int64) *models.User {
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Status:   "active",
	}
	err := suite.userRepo.Create(context.Background(), user)
	suite.Require().NoError(err)

	wallet := &models.Wallet{
		UserID:  user.ID,
		Balance: balance,
	}
	err = suite.walletRepo.Create(context.Background(), wallet)
	suite.Require().NoError(err)
	return user
}

// TestWalletRepository_Create 测试创建钱包
func (suite *WalletRepositoryTestSuite) TestWalletRepository_Create() {
	ctx := context.Background()
	user := suite.createUserWithWallet("walletuser", 10000)

	found, err := suite.walletRepo.FindByUserID(ctx, user.ID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(10000), found.Balance)

	// 测试不存在的钱包
	_, err = suite.walletRepo.FindByUserID(ctx, 99999)
	assert.ErrorIs(suite.T(), err, ErrWalletNotFound)
}

// TestWalletRepository_AddBalance 测试增加余额
func (suite *WalletRepositoryTestSuite) TestWalletRepository_AddBalance() {
	ctx := context.Background()
	user := suite.createUserWithWallet("adduser", 1000)

	err := suite.walletRepo.AddBalance(ctx, user.ID, 500)
	assert.NoError(suite.T(), err)

	found, _ := suite.walletRepo.FindByUserID(ctx, user.ID)
	assert.Equal(suite.T(), int64(1500), found.Balance)

	// 不存在的钱包入账报错
	err = suite.walletRepo.AddBalance(ctx, 99999, 500)
	assert.ErrorIs(suite.T(), err, ErrWalletNotFound)
}

// TestWalletRepository_DeductBalance 测试扣减余额
func (suite *WalletRepositoryTestSuite) TestWalletRepository_DeductBalance() {
	ctx := context.Background()
	user := suite.createUserWithWallet("deductuser", 1000)

	err := suite.walletRepo.DeductBalance(ctx, user.ID, 400)
	assert.NoError(suite.T(), err)

	found, _ := suite.walletRepo.FindByUserID(ctx, user.ID)
	assert.Equal(suite.T(), int64(600), found.Balance)

	// 余额不足时条件更新零行受影响，余额保持不变
	err = suite.walletRepo.DeductBalance(ctx, user.ID, 601)
	assert.ErrorIs(suite.T(), err, ErrInsufficientBalance)

	found, _ = suite.walletRepo.FindByUserID(ctx, user.ID)
	assert.Equal(suite.T(), int64(600), found.Balance)
}

// TestWalletRepository_LockForUpdate 测试悲观锁查询
func (suite *WalletRepositoryTestSuite) TestWalletRepository_LockForUpdate() {
	ctx := context.Background()
	user := suite.createUserWithWallet("lockuser", 2000)

	err := suite.db.Transaction(func(tx *gorm.DB) error {
		repo := suite.walletRepo.WithTx(tx).(WalletRepository)
		wallet, err := repo.LockForUpdate(ctx, user.ID)
		if err != nil {
			return err
		}
		assert.Equal(suite.T(), int64(2000), wallet.Balance)
		return repo.DeductBalance(ctx, user.ID, 1000)
	})
	assert.NoError(suite.T(), err)

	found, _ := suite.walletRepo.FindByUserID(ctx, user.ID)
	assert.Equal(suite.T(), int64(1000), found.Balance)
}

// TestWalletRepository_LockPairForUpdate 测试双钱包加锁
func (suite *WalletRepositoryTestSuite) TestWalletRepository_LockPairForUpdate() {
	ctx := context.Background()
	userA := suite.createUserWithWallet("pairuserA", 3000)
	userB := suite.createUserWithWallet("pairuserB", 5000)

	// 无论参数顺序如何，返回值都与入参一一对应
	err := suite.db.Transaction(func(tx *gorm.DB) error {
		repo := suite.walletRepo.WithTx(tx).(WalletRepository)
		wa, wb, err := repo.LockPairForUpdate(ctx, userB.ID, userA.ID)
		if err != nil {
			return err
		}
		assert.Equal(suite.T(), userB.ID, wa.UserID)
		assert.Equal(suite.T(), userA.ID, wb.UserID)
		return nil
	})
	assert.NoError(suite.T(), err)
}

// TestWalletRepository_UpdateStatistics 测试统计字段更新
func (suite *WalletRepositoryTestSuite) TestWalletRepository_UpdateStatistics() {
	ctx := context.Background()
	user := suite.createUserWithWallet("statsuser", 0)

	assert.NoError(suite.T(), suite.walletRepo.UpdateStatistics(ctx, user.ID, "total_stake", 500))
	assert.NoError(suite.T(), suite.walletRepo.UpdateStatistics(ctx, user.ID, "total_win", 900))

	found, _ := suite.walletRepo.FindByUserID(ctx, user.ID)
	assert.Equal(suite.T(), int64(500), found.TotalStake)
	assert.Equal(suite.T(), int64(900), found.TotalWin)

	// 白名单外的字段拒绝更新
	err := suite.walletRepo.UpdateStatistics(ctx, user.ID, "balance", 100)
	assert.Error(suite.T(), err)
}

// TestTransactionRepository_CreateAndFind 测试流水创建与查询
func (suite *WalletRepositoryTestSuite) TestTransactionRepository_CreateAndFind() {
	ctx := context.Background()
	user := suite.createUserWithWallet("transuser", 1000)

	trans := &models.Transaction{
		UserID:        user.ID,
		OrderNo:       "ORD-20260830-0001",
		Type:          models.TransactionTypeEscrow,
		Amount:        -500,
		BeforeBalance: 1000,
		AfterBalance:  500,
		Status:        models.TransactionStatusSuccess,
		RefID:         "42",
		RefType:       "ludo_game",
	}
	err := suite.transRepo.Create(ctx, trans)
	assert.NoError(suite.T(), err)

	found, err := suite.transRepo.FindByOrderNo(ctx, "ORD-20260830-0001")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(-500), found.Amount)

	_, err = suite.transRepo.FindByOrderNo(ctx, "ORD-missing")
	assert.ErrorIs(suite.T(), err, ErrTransactionNotFound)
}

// TestTransactionRepository_OrderNoUnique 测试订单号唯一约束（回调去重依据）
func (suite *WalletRepositoryTestSuite) TestTransactionRepository_OrderNoUnique() {
	ctx := context.Background()
	user := suite.createUserWithWallet("dupuser", 0)

	trans := &models.Transaction{
		UserID:  user.ID,
		OrderNo: "PAY-dup-001",
		Type:    models.TransactionTypeDeposit,
		Amount:  1000,
		Status:  models.TransactionStatusSuccess,
	}
	assert.NoError(suite.T(), suite.transRepo.Create(ctx, trans))

	dup := &models.Transaction{
		UserID:  user.ID,
		OrderNo: "PAY-dup-001",
		Type:    models.TransactionTypeDeposit,
		Amount:  1000,
	}
	assert.Error(suite.T(), suite.transRepo.Create(ctx, dup))
}

// TestTransactionRepository_FindByUserID 测试分页查询
func (suite *WalletRepositoryTestSuite) TestTransactionRepository_FindByUserID() {
	ctx := context.Background()
	user := suite.createUserWithWallet("pageuser", 0)

	for i := 0; i < 15; i++ {
		trans := &models.Transaction{
			UserID:  user.ID,
			OrderNo: fmt.Sprintf("ORD-page-%03d", i),
			Type:    models.TransactionTypeDeposit,
			Amount:  int64(100 * (i + 1)),
			Status:  models.TransactionStatusSuccess,
		}
		suite.Require().NoError(suite.transRepo.Create(ctx, trans))
	}

	pagination := NewPagination(1, 10)
	list, err := suite.transRepo.FindByUserID(ctx, user.ID, pagination)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), list, 10)
	assert.Equal(suite.T(), int64(15), pagination.Total)

	pagination = NewPagination(2, 10)
	list, err = suite.transRepo.FindByUserID(ctx, user.ID, pagination)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), list, 5)
}

func TestWalletRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(WalletRepositoryTestSuite))
}
