package service

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/ludo-game/internal/errors"
	"github.com/wfunc/ludo-game/internal/game/ludo"
	"github.com/wfunc/ludo-game/internal/models"
	"github.com/wfunc/ludo-game/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LudoServiceTestSuite 对局服务测试套件
type LudoServiceTestSuite struct {
	suite.Suite
	db         *gorm.DB
	svc        LudoService
	ledger     LedgerService
	gameRepo   repository.GameRepository
	walletRepo repository.WalletRepository
	transRepo  repository.TransactionRepository
	roller     *stubRoller
	notifier   *recordNotifier
}

func (suite *LudoServiceTestSuite) SetupSuite() {
	suite.db = newTestDB(suite.T())
	suite.gameRepo = repository.NewGameRepository(suite.db)
	suite.walletRepo = repository.NewWalletRepository(suite.db)
	suite.transRepo = repository.NewTransactionRepository(suite.db)

	log := zap.NewNop()
	suite.ledger = NewLedgerService(suite.db, suite.walletRepo, suite.transRepo, 0, "ETB", log)
	suite.roller = &stubRoller{faces: []int{1}}
	suite.notifier = &recordNotifier{}
	suite.svc = NewLudoService(suite.db, suite.gameRepo, suite.ledger, suite.roller, suite.notifier,
		LudoServiceConfig{MinStake: 500, MaxStake: 1000000, CommissionBps: 1000}, log)
}

func (suite *LudoServiceTestSuite) SetupTest() {
	cleanTables(suite.db)
	createWallet(suite.T(), suite.db, 1, 100000)
	createWallet(suite.T(), suite.db, 2, 100000)
	suite.roller.faces = []int{1}
	suite.roller.i = 0
	suite.notifier.reset()
}

// startGame 建对局并让玩家2加入
func (suite *LudoServiceTestSuite) startGame(stake int64, winCondition int) *GameView {
	ctx := context.Background()
	view, err := suite.svc.CreateGame(ctx, 1, &CreateGameRequest{Stake: stake, WinCondition: winCondition})
	require.NoError(suite.T(), err)

	view, err = suite.svc.JoinGame(ctx, 2, view.ID)
	require.NoError(suite.T(), err)
	return view
}

// rewriteBoard 直接改写棋盘快照，用于构造特定局面
func (suite *LudoServiceTestSuite) rewriteBoard(gameID uint, mutate func(*ludo.State)) {
	ctx := context.Background()
	game, err := suite.gameRepo.FindByID(ctx, gameID)
	require.NoError(suite.T(), err)

	state, err := ludo.Restore(game.Board)
	require.NoError(suite.T(), err)
	mutate(state)

	board, err := state.Snapshot()
	require.NoError(suite.T(), err)
	game.Board = board
	game.CurrentTurnID = state.CurrentTurnID
	require.NoError(suite.T(), suite.gameRepo.Save(ctx, game))
}

// TestCreateGame 创建只挂牌，押金到开局才托管
func (suite *LudoServiceTestSuite) TestCreateGame() {
	ctx := context.Background()

	view, err := suite.svc.CreateGame(ctx, 1, &CreateGameRequest{Stake: 1000})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.GameStatusLobby, view.Status)
	assert.Equal(suite.T(), uint(1), view.CreatorID)
	assert.Equal(suite.T(), ludo.TokensPerPlayer, view.WinCondition) // 默认全部棋子到家
	assert.Equal(suite.T(), uint(1), view.CurrentTurnID)

	wallet, err := suite.walletRepo.FindByUserID(ctx, 1)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(100000), wallet.Balance)
}

// TestCreateGame_StakeBounds 赌注越界被拒绝
func (suite *LudoServiceTestSuite) TestCreateGame_StakeBounds() {
	ctx := context.Background()

	_, err := suite.svc.CreateGame(ctx, 1, &CreateGameRequest{Stake: 100})
	assert.True(suite.T(), errors.Is(err, errors.ErrInvalidStake))

	_, err = suite.svc.CreateGame(ctx, 1, &CreateGameRequest{Stake: 2000000})
	assert.True(suite.T(), errors.Is(err, errors.ErrInvalidStake))
}

// TestCreateGame_InsufficientBalance 余额付不起押金的玩家不能挂牌
func (suite *LudoServiceTestSuite) TestCreateGame_InsufficientBalance() {
	ctx := context.Background()
	createWallet(suite.T(), suite.db, 3, 100)

	_, err := suite.svc.CreateGame(ctx, 3, &CreateGameRequest{Stake: 1000})
	assert.True(suite.T(), errors.Is(err, errors.ErrInsufficientBalance))

	pagination := repository.NewPagination(1, 10)
	games, err := suite.gameRepo.FindOpen(ctx, pagination)
	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), games)
}

// TestJoinGame 加入即开局，双方押金均被托管
func (suite *LudoServiceTestSuite) TestJoinGame() {
	ctx := context.Background()
	view := suite.startGame(1000, 1)

	assert.Equal(suite.T(), models.GameStatusActive, view.Status)
	assert.Equal(suite.T(), uint(2), *view.OpponentID)
	assert.Equal(suite.T(), uint(1), view.CurrentTurnID) // 创建者先行

	w1, _ := suite.walletRepo.FindByUserID(ctx, 1)
	w2, _ := suite.walletRepo.FindByUserID(ctx, 2)
	assert.Equal(suite.T(), int64(99000), w1.Balance)
	assert.Equal(suite.T(), int64(99000), w2.Balance)

	// 创建者收到开局推送
	assert.Len(suite.T(), suite.notifier.eventsFor(1, EventGameStarted), 1)
}

// TestJoinGame_Rejections 自加入与非等待状态拒绝
func (suite *LudoServiceTestSuite) TestJoinGame_Rejections() {
	ctx := context.Background()
	view, err := suite.svc.CreateGame(ctx, 1, &CreateGameRequest{Stake: 1000})
	require.NoError(suite.T(), err)

	_, err = suite.svc.JoinGame(ctx, 1, view.ID)
	assert.True(suite.T(), errors.Is(err, errors.ErrSelfJoin))

	_, err = suite.svc.JoinGame(ctx, 2, view.ID)
	assert.NoError(suite.T(), err)

	createWallet(suite.T(), suite.db, 3, 100000)
	_, err = suite.svc.JoinGame(ctx, 3, view.ID)
	assert.True(suite.T(), errors.Is(err, errors.ErrGameNotJoinable))

	_, err = suite.svc.JoinGame(ctx, 2, 9999)
	assert.True(suite.T(), errors.Is(err, errors.ErrGameNotFound))
}

// TestJoinGame_InsufficientBalance 加入方余额不足则整个加入回滚，双方都不扣钱
func (suite *LudoServiceTestSuite) TestJoinGame_InsufficientBalance() {
	ctx := context.Background()
	view, err := suite.svc.CreateGame(ctx, 1, &CreateGameRequest{Stake: 1000})
	require.NoError(suite.T(), err)

	createWallet(suite.T(), suite.db, 3, 100)
	_, err = suite.svc.JoinGame(ctx, 3, view.ID)
	assert.True(suite.T(), errors.Is(err, errors.ErrInsufficientBalance))

	w1, _ := suite.walletRepo.FindByUserID(ctx, 1)
	w3, _ := suite.walletRepo.FindByUserID(ctx, 3)
	assert.Equal(suite.T(), int64(100000), w1.Balance)
	assert.Equal(suite.T(), int64(100), w3.Balance)

	// 对局仍在等待区，可被别人加入
	game, err := suite.gameRepo.FindByID(ctx, view.ID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.GameStatusLobby, game.Status)
	assert.Nil(suite.T(), game.OpponentID)
}

// TestJoinGame_ConcurrentJoins 两人同时加入同一对局，恰有一人成功且只托管一对押金
func (suite *LudoServiceTestSuite) TestJoinGame_ConcurrentJoins() {
	ctx := context.Background()
	createWallet(suite.T(), suite.db, 3, 100000)
	view, err := suite.svc.CreateGame(ctx, 1, &CreateGameRequest{Stake: 1000})
	require.NoError(suite.T(), err)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, uid := range []uint{2, 3} {
		wg.Add(1)
		go func(i int, uid uint) {
			defer wg.Done()
			_, errs[i] = suite.svc.JoinGame(ctx, uid, view.ID)
		}(i, uid)
	}
	wg.Wait()

	// 一人加入成功，另一人因对局已非等待状态被拒
	if errs[0] == nil {
		assert.True(suite.T(), errors.Is(errs[1], errors.ErrGameNotJoinable))
	} else {
		assert.NoError(suite.T(), errs[1])
		assert.True(suite.T(), errors.Is(errs[0], errors.ErrGameNotJoinable))
	}

	game, err := suite.gameRepo.FindByID(ctx, view.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.GameStatusActive, game.Status)
	require.NotNil(suite.T(), game.OpponentID)

	// 只托管了创建者与成功加入者的两笔押金
	list, err := suite.transRepo.FindByRef(ctx, "ludo_game", strconv.FormatUint(uint64(view.ID), 10))
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), list, 2)

	// 落败的加入者分文未扣
	for _, uid := range []uint{2, 3} {
		wallet, err := suite.walletRepo.FindByUserID(ctx, uid)
		require.NoError(suite.T(), err)
		if uid == *game.OpponentID {
			assert.Equal(suite.T(), int64(99000), wallet.Balance)
		} else {
			assert.Equal(suite.T(), int64(100000), wallet.Balance)
		}
	}
}

// TestCancelGame 开局前可取消挂牌，不涉及账务
func (suite *LudoServiceTestSuite) TestCancelGame() {
	ctx := context.Background()
	view, err := suite.svc.CreateGame(ctx, 1, &CreateGameRequest{Stake: 1000})
	require.NoError(suite.T(), err)

	// 非创建者不能取消
	err = suite.svc.CancelGame(ctx, 2, view.ID)
	assert.True(suite.T(), errors.Is(err, errors.ErrPermissionDenied))

	err = suite.svc.CancelGame(ctx, 1, view.ID)
	assert.NoError(suite.T(), err)

	game, err := suite.gameRepo.FindByID(ctx, view.ID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.GameStatusCancelled, game.Status)

	// 已开局的不能取消
	view2 := suite.startGame(1000, 1)
	err = suite.svc.CancelGame(ctx, 1, view2.ID)
	assert.True(suite.T(), errors.Is(err, errors.ErrGameNotJoinable))
}

// TestSubmitAction_RollPassFlow 掷骰无子可动，弃权后轮转
func (suite *LudoServiceTestSuite) TestSubmitAction_RollPassFlow() {
	ctx := context.Background()
	view := suite.startGame(1000, 4)

	// 开局全部棋子在出发区，非6无子可动
	suite.roller.faces = []int{3}
	res, err := suite.svc.SubmitAction(ctx, 1, view.ID, &ActionRequest{Action: ActionRoll})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 3, res.DiceRoll)
	assert.False(suite.T(), res.TurnForfeited)
	assert.Empty(suite.T(), res.Game.MovableTokens)

	// 已掷骰不能再掷
	_, err = suite.svc.SubmitAction(ctx, 1, view.ID, &ActionRequest{Action: ActionRoll})
	assert.True(suite.T(), errors.Is(err, errors.ErrIllegalMove))

	// 弃权，回合转给对手
	res, err = suite.svc.SubmitAction(ctx, 1, view.ID, &ActionRequest{Action: ActionPass})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), uint(2), res.Game.CurrentTurnID)
}

// TestSubmitAction_SixGrantsExtraTurn 掷6出子后保留回合
func (suite *LudoServiceTestSuite) TestSubmitAction_SixGrantsExtraTurn() {
	ctx := context.Background()
	view := suite.startGame(1000, 4)

	suite.roller.faces = []int{6}
	res, err := suite.svc.SubmitAction(ctx, 1, view.ID, &ActionRequest{Action: ActionRoll})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 6, res.DiceRoll)
	assert.Equal(suite.T(), []int{0, 1, 2, 3}, res.Game.MovableTokens)

	// 掷6时不能弃权
	_, err = suite.svc.SubmitAction(ctx, 1, view.ID, &ActionRequest{Action: ActionPass})
	assert.True(suite.T(), errors.Is(err, errors.ErrIllegalMove))

	res, err = suite.svc.SubmitAction(ctx, 1, view.ID, &ActionRequest{Action: ActionMove, TokenIndex: 0})
	assert.NoError(suite.T(), err)
	assert.NotNil(suite.T(), res.Move)
	assert.True(suite.T(), res.Move.ExtraTurn)
	assert.Equal(suite.T(), uint(1), res.Game.CurrentTurnID) // 仍是玩家1回合

	// 再掷非6走子后轮转
	suite.roller.faces = []int{2}
	_, err = suite.svc.SubmitAction(ctx, 1, view.ID, &ActionRequest{Action: ActionRoll})
	assert.NoError(suite.T(), err)
	res, err = suite.svc.SubmitAction(ctx, 1, view.ID, &ActionRequest{Action: ActionMove, TokenIndex: 0})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), uint(2), res.Game.CurrentTurnID)
}

// TestSubmitAction_BlockedTokenAllowsPass 落点全被封锁时视为无子可动，可弃权
func (suite *LudoServiceTestSuite) TestSubmitAction_BlockedTokenAllowsPass() {
	ctx := context.Background()
	view := suite.startGame(1000, 4)

	// 玩家1唯一在环路上的棋子，前方3格处是玩家2的双子
	suite.rewriteBoard(view.ID, func(state *ludo.State) {
		p1, ok := state.Player(1)
		require.True(suite.T(), ok)
		p1.Tokens = [ludo.TokensPerPlayer]int{1, ludo.PositionYard, ludo.PositionYard, ludo.PositionYard}
		p2, ok := state.Player(2)
		require.True(suite.T(), ok)
		p2.Tokens = [ludo.TokensPerPlayer]int{4, 4, ludo.PositionYard, ludo.PositionYard}
	})

	suite.roller.faces = []int{3}
	res, err := suite.svc.SubmitAction(ctx, 1, view.ID, &ActionRequest{Action: ActionRoll})
	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), res.Game.MovableTokens)

	// 被封锁的棋子不可走
	_, err = suite.svc.SubmitAction(ctx, 1, view.ID, &ActionRequest{Action: ActionMove, TokenIndex: 0})
	assert.True(suite.T(), errors.Is(err, errors.ErrIllegalMove))

	// 弃权放行，回合轮转，玩家不会被困死到超时判负
	res, err = suite.svc.SubmitAction(ctx, 1, view.ID, &ActionRequest{Action: ActionPass})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), uint(2), res.Game.CurrentTurnID)
}

// TestSubmitAction_NotYourTurn 非回合持有者被拒绝
func (suite *LudoServiceTestSuite) TestSubmitAction_NotYourTurn() {
	ctx := context.Background()
	view := suite.startGame(1000, 4)

	_, err := suite.svc.SubmitAction(ctx, 2, view.ID, &ActionRequest{Action: ActionRoll})
	assert.True(suite.T(), errors.Is(err, errors.ErrNotYourTurn))

	// 旁观者同样被拒
	_, err = suite.svc.SubmitAction(ctx, 99, view.ID, &ActionRequest{Action: ActionRoll})
	assert.True(suite.T(), errors.Is(err, errors.ErrNotYourTurn))
}

// TestSubmitAction_WinSettlement 致胜一步在同一事务内完成结算
func (suite *LudoServiceTestSuite) TestSubmitAction_WinSettlement() {
	ctx := context.Background()
	view := suite.startGame(1000, 1)

	// 构造临门一脚的局面：玩家1一枚棋子在终点前一格
	suite.rewriteBoard(view.ID, func(state *ludo.State) {
		p, ok := state.Player(1)
		require.True(suite.T(), ok)
		p.Tokens = [ludo.TokensPerPlayer]int{ludo.WinningPosition - 1, ludo.PositionYard, ludo.PositionYard, ludo.PositionYard}
	})

	suite.roller.faces = []int{1}
	_, err := suite.svc.SubmitAction(ctx, 1, view.ID, &ActionRequest{Action: ActionRoll})
	require.NoError(suite.T(), err)

	res, err := suite.svc.SubmitAction(ctx, 1, view.ID, &ActionRequest{Action: ActionMove, TokenIndex: 0})
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), res.GameOver)
	assert.Equal(suite.T(), uint(1), res.WinnerID)
	assert.Equal(suite.T(), int64(1800), res.Prize) // 2000 - 10%

	game, err := suite.gameRepo.FindByID(ctx, view.ID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.GameStatusFinished, game.Status)
	assert.Equal(suite.T(), uint(1), *game.WinnerID)

	// 胜者钱包：10万 - 押金1000 + 奖金1800
	wallet, _ := suite.walletRepo.FindByUserID(ctx, 1)
	assert.Equal(suite.T(), int64(100800), wallet.Balance)

	// 双方收到终局推送，胜者收到余额推送
	assert.Len(suite.T(), suite.notifier.eventsFor(1, EventGameOver), 1)
	assert.Len(suite.T(), suite.notifier.eventsFor(2, EventGameOver), 1)
	assert.Len(suite.T(), suite.notifier.eventsFor(1, EventBalanceUpdate), 1)

	// 终局后不再接受行动
	_, err = suite.svc.SubmitAction(ctx, 2, view.ID, &ActionRequest{Action: ActionRoll})
	assert.True(suite.T(), errors.Is(err, errors.ErrGameFinished))
}

// TestSubmitAction_IllegalMove 非法走子不改变对局
func (suite *LudoServiceTestSuite) TestSubmitAction_IllegalMove() {
	ctx := context.Background()
	view := suite.startGame(1000, 4)

	// 未掷骰直接走子
	_, err := suite.svc.SubmitAction(ctx, 1, view.ID, &ActionRequest{Action: ActionMove, TokenIndex: 0})
	assert.True(suite.T(), errors.Is(err, errors.ErrIllegalMove))

	// 掷3后试图移动出发区棋子
	suite.roller.faces = []int{3}
	_, err = suite.svc.SubmitAction(ctx, 1, view.ID, &ActionRequest{Action: ActionRoll})
	require.NoError(suite.T(), err)
	_, err = suite.svc.SubmitAction(ctx, 1, view.ID, &ActionRequest{Action: ActionMove, TokenIndex: 0})
	assert.True(suite.T(), errors.Is(err, errors.ErrIllegalMove))

	// 回合未被消耗，骰值保留
	game, err := suite.gameRepo.FindByID(ctx, view.ID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), uint(1), game.CurrentTurnID)
	state, err := ludo.Restore(game.Board)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), state.RollPending)
	assert.Equal(suite.T(), 3, state.DiceRoll)
}

// TestListGames 开放列表与个人列表
func (suite *LudoServiceTestSuite) TestListGames() {
	ctx := context.Background()

	v1, err := suite.svc.CreateGame(ctx, 1, &CreateGameRequest{Stake: 1000})
	require.NoError(suite.T(), err)
	_, err = suite.svc.CreateGame(ctx, 2, &CreateGameRequest{Stake: 2000})
	require.NoError(suite.T(), err)

	open, total, err := suite.svc.ListOpenGames(ctx, 1, 10)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(2), total)
	assert.Len(suite.T(), open, 2)

	// 玩家2加入玩家1的对局后，开放列表只剩一个
	_, err = suite.svc.JoinGame(ctx, 2, v1.ID)
	require.NoError(suite.T(), err)

	_, total, err = suite.svc.ListOpenGames(ctx, 1, 10)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), total)

	mine, err := suite.svc.ListMyGames(ctx, 2)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), mine, 2) // 自建的等待局 + 已加入的进行局
}

func TestLudoServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LudoServiceTestSuite))
}
