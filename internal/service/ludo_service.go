package service

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/wfunc/ludo-game/internal/errors"
	"github.com/wfunc/ludo-game/internal/game/ludo"
	"github.com/wfunc/ludo-game/internal/logger"
	"github.com/wfunc/ludo-game/internal/models"
	"github.com/wfunc/ludo-game/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WebSocket推送事件类型
const (
	EventGameStarted   = "game_started"
	EventGameState     = "game_state"
	EventGameOver      = "game_over"
	EventBalanceUpdate = "balance_update"
)

// LudoServiceConfig 对局服务配置
type LudoServiceConfig struct {
	MinStake      int64
	MaxStake      int64
	CommissionBps int64
}

// ludoService 回合协调器实现
// 每次行动都是一个独立的数据库事务：锁对局行、重建棋盘、应用转移、
// 整行写回；胜负结算在同一事务内完成，要么全部生效要么全部回滚
type ludoService struct {
	db       *gorm.DB
	gameRepo repository.GameRepository
	ledger   LedgerService
	roller   ludo.DiceRoller
	notifier Notifier
	cfg      LudoServiceConfig
	log      *zap.Logger
}

// NewLudoService 创建对局服务
func NewLudoService(
	db *gorm.DB,
	gameRepo repository.GameRepository,
	ledger LedgerService,
	roller ludo.DiceRoller,
	notifier Notifier,
	cfg LudoServiceConfig,
	log *zap.Logger,
) LudoService {
	return &ludoService{
		db:       db,
		gameRepo: gameRepo,
		ledger:   ledger,
		roller:   roller,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
	}
}

// CreateGame 创建对局
// 押金在对手加入时才双边托管，这里只复核创建者余额够付押金
func (s *ludoService) CreateGame(ctx context.Context, userID uint, req *CreateGameRequest) (*GameView, error) {
	if req.Stake < s.cfg.MinStake || req.Stake > s.cfg.MaxStake {
		return nil, errors.Newf(errors.ErrInvalidStake, "赌注须在 %d 到 %d 分之间", s.cfg.MinStake, s.cfg.MaxStake)
	}

	wallet, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !wallet.CanDebit(req.Stake) {
		return nil, errors.New(errors.ErrInsufficientBalance)
	}

	winCondition := req.WinCondition
	if winCondition == 0 {
		winCondition = ludo.TokensPerPlayer
	}
	state, err := ludo.NewState(userID, winCondition)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidParam)
	}
	board, err := state.Snapshot()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrGameStateCorrupt)
	}

	game := &models.LudoGame{
		CreatorID:     userID,
		Stake:         req.Stake,
		WinCondition:  winCondition,
		Status:        models.GameStatusLobby,
		CurrentTurnID: userID,
		LastActionAt:  time.Now(),
		Board:         board,
	}

	if err := s.gameRepo.Create(ctx, game); err != nil {
		return nil, s.mapStorageErr(err, "创建对局失败", game.ID, userID)
	}

	logger.LogGameEvent("created", game.ID, userID, map[string]interface{}{
		"stake":         req.Stake,
		"win_condition": winCondition,
	})
	return s.toView(game, state, userID), nil
}

// JoinGame 加入对局：双方押金一次性托管并立即开局
// 任何一方余额不足则整体回滚，两边余额都不变
func (s *ludoService) JoinGame(ctx context.Context, userID uint, gameID uint) (*GameView, error) {
	var (
		game  *models.LudoGame
		state *ludo.State
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		gameRepo := s.gameRepo.WithTx(tx).(repository.GameRepository)

		var err error
		game, err = gameRepo.LockForUpdate(ctx, gameID)
		if err != nil {
			return err
		}
		if game.Status != models.GameStatusLobby {
			return errors.New(errors.ErrGameNotJoinable)
		}
		if game.CreatorID == userID {
			return errors.New(errors.ErrSelfJoin)
		}

		state, err = ludo.Restore(game.Board)
		if err != nil {
			return errors.Wrap(err, errors.ErrGameStateCorrupt)
		}
		if err := state.AddPlayer(userID); err != nil {
			return errors.Wrap(err, errors.ErrGameNotJoinable)
		}

		board, err := state.Snapshot()
		if err != nil {
			return errors.Wrap(err, errors.ErrGameStateCorrupt)
		}

		game.OpponentID = &userID
		game.Status = models.GameStatusActive
		game.LastActionAt = time.Now()
		game.Board = board
		if err := gameRepo.Save(ctx, game); err != nil {
			return err
		}

		return s.ledger.EscrowStakesTx(ctx, tx, game.ID, game.CreatorID, userID, game.Stake)
	})
	if err != nil {
		return nil, s.mapStorageErr(err, "加入对局失败", gameID, userID)
	}

	logger.LogGameEvent("joined", game.ID, userID, nil)
	s.notify(game.CreatorID, EventGameStarted, s.toView(game, state, game.CreatorID))
	return s.toView(game, state, userID), nil
}

// CancelGame 取消尚未开局的对局
// 押金在开局时才托管，取消只下架对局，不涉及账务
func (s *ludoService) CancelGame(ctx context.Context, userID uint, gameID uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		gameRepo := s.gameRepo.WithTx(tx).(repository.GameRepository)

		game, err := gameRepo.LockForUpdate(ctx, gameID)
		if err != nil {
			return err
		}
		if game.CreatorID != userID {
			return errors.New(errors.ErrPermissionDenied)
		}
		if game.Status != models.GameStatusLobby {
			return errors.New(errors.ErrGameNotJoinable, "对局已开始或已结束")
		}

		game.Status = models.GameStatusCancelled
		game.LastActionAt = time.Now()
		return gameRepo.Save(ctx, game)
	})
	if err != nil {
		return s.mapStorageErr(err, "取消对局失败", gameID, userID)
	}

	logger.LogGameEvent("cancelled", gameID, userID, nil)
	return nil
}

// SubmitAction 提交一次对局行动：掷骰、走子或弃权
func (s *ludoService) SubmitAction(ctx context.Context, userID uint, gameID uint, req *ActionRequest) (*ActionResult, error) {
	var (
		game   *models.LudoGame
		state  *ludo.State
		result = &ActionResult{Action: req.Action}
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		gameRepo := s.gameRepo.WithTx(tx).(repository.GameRepository)

		var err error
		game, err = gameRepo.LockForUpdate(ctx, gameID)
		if err != nil {
			return err
		}
		if !game.IsActionable() {
			return errors.New(errors.ErrGameFinished)
		}
		if game.CurrentTurnID != userID {
			return errors.New(errors.ErrNotYourTurn)
		}

		state, err = ludo.Restore(game.Board)
		if err != nil {
			return errors.Wrap(err, errors.ErrGameStateCorrupt)
		}

		switch req.Action {
		case ActionRoll:
			err = s.applyRoll(state, result)
		case ActionMove:
			err = s.applyMove(state, userID, req.TokenIndex, result)
		case ActionPass:
			err = s.applyPass(state, userID)
		default:
			err = errors.New(errors.ErrInvalidParam, "未知的操作类型")
		}
		if err != nil {
			return err
		}

		board, err := state.Snapshot()
		if err != nil {
			return errors.Wrap(err, errors.ErrGameStateCorrupt)
		}
		game.Board = board
		game.CurrentTurnID = state.CurrentTurnID
		game.LastActionAt = time.Now()
		if err := gameRepo.Save(ctx, game); err != nil {
			return err
		}

		// 胜负已分：同一事务内结算奖金并推进终态
		if state.WinnerID != 0 {
			prize := PrizeAmount(game.Stake, s.cfg.CommissionBps)
			if err := s.ledger.PayPrizeTx(ctx, tx, state.WinnerID, game.ID, prize); err != nil {
				return err
			}
			if err := gameRepo.Settle(ctx, game.ID, state.WinnerID, models.GameStatusFinished); err != nil {
				return err
			}
			game.Status = models.GameStatusFinished
			game.WinnerID = &state.WinnerID
			result.GameOver = true
			result.WinnerID = state.WinnerID
			result.Prize = prize
		}
		return nil
	})
	if err != nil {
		return nil, s.mapStorageErr(err, "对局行动失败", gameID, userID)
	}

	result.Game = s.toView(game, state, userID)

	logger.LogGameEvent(req.Action, game.ID, userID, map[string]interface{}{
		"dice":      result.DiceRoll,
		"game_over": result.GameOver,
	})
	s.broadcast(game, state, result, userID)
	return result, nil
}

// applyRoll 掷骰
func (s *ludoService) applyRoll(state *ludo.State, result *ActionResult) error {
	if state.RollPending {
		return errors.New(errors.ErrIllegalMove, "已掷骰，须先走子或弃权")
	}

	face, forfeited, err := state.RollDice(s.roller)
	if err != nil {
		return s.mapEngineErr(err)
	}
	result.DiceRoll = face
	result.TurnForfeited = forfeited

	// 连掷三6丧失本回合
	if forfeited {
		state.AdvanceTurn()
	}
	return nil
}

// applyMove 走子
func (s *ludoService) applyMove(state *ludo.State, userID uint, tokenIndex int, result *ActionResult) error {
	move, err := state.MoveToken(userID, tokenIndex)
	if err != nil {
		return s.mapEngineErr(err)
	}
	result.Move = move
	result.DiceRoll = state.DiceRoll

	// 掷出6且未胜出时保留回合再行一次
	if !move.Won && !move.ExtraTurn {
		state.AdvanceTurn()
	}
	return nil
}

// applyPass 弃权：仅当掷骰后无子可动时允许
func (s *ludoService) applyPass(state *ludo.State, userID uint) error {
	if !state.RollPending {
		return errors.New(errors.ErrIllegalMove, "尚未掷骰，不能弃权")
	}
	if len(state.MovableTokens(userID)) > 0 {
		return errors.New(errors.ErrIllegalMove, "仍有棋子可动，不能弃权")
	}
	state.AdvanceTurn()
	return nil
}

// GetGame 查询对局详情
func (s *ludoService) GetGame(ctx context.Context, userID uint, gameID uint) (*GameView, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, s.mapStorageErr(err, "查询对局失败", gameID, userID)
	}

	state, err := ludo.Restore(game.Board)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrGameStateCorrupt)
	}
	return s.toView(game, state, userID), nil
}

// ListOpenGames 开放对局列表（等待对手）
func (s *ludoService) ListOpenGames(ctx context.Context, page, pageSize int) ([]*GameView, int64, error) {
	pagination := repository.NewPagination(page, pageSize)
	games, err := s.gameRepo.FindOpen(ctx, pagination)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrDatabaseQuery)
	}

	views := make([]*GameView, 0, len(games))
	for _, g := range games {
		views = append(views, s.toView(g, nil, 0))
	}
	return views, pagination.Total, nil
}

// ListMyGames 当前用户未结束的对局
func (s *ludoService) ListMyGames(ctx context.Context, userID uint) ([]*GameView, error) {
	games, err := s.gameRepo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}

	views := make([]*GameView, 0, len(games))
	for _, g := range games {
		views = append(views, s.toView(g, nil, 0))
	}
	return views, nil
}

// toView 构造对局视图；state为nil时不含棋盘
func (s *ludoService) toView(game *models.LudoGame, state *ludo.State, viewerID uint) *GameView {
	view := &GameView{
		ID:            game.ID,
		CreatorID:     game.CreatorID,
		OpponentID:    game.OpponentID,
		Stake:         game.Stake,
		WinCondition:  game.WinCondition,
		Status:        game.Status,
		CurrentTurnID: game.CurrentTurnID,
		WinnerID:      game.WinnerID,
		LastActionAt:  game.LastActionAt,
		CreatedAt:     game.CreatedAt,
	}
	if state != nil {
		view.Board = state
		if viewerID != 0 && state.CurrentTurnID == viewerID {
			view.MovableTokens = state.MovableTokens(viewerID)
		}
	}
	return view
}

// broadcast 行动后推送对局状态给双方
func (s *ludoService) broadcast(game *models.LudoGame, state *ludo.State, result *ActionResult, actorID uint) {
	players := []uint{game.CreatorID}
	if game.OpponentID != nil {
		players = append(players, *game.OpponentID)
	}

	for _, pid := range players {
		view := s.toView(game, state, pid)
		s.notify(pid, EventGameState, view)
		if result.GameOver {
			s.notify(pid, EventGameOver, map[string]interface{}{
				"game_id":   game.ID,
				"winner_id": result.WinnerID,
				"prize":     result.Prize,
			})
		}
	}
	if result.GameOver {
		s.notify(result.WinnerID, EventBalanceUpdate, map[string]interface{}{
			"amount": result.Prize,
		})
	}
}

// notify 推送事件，通知器未注入时静默跳过
func (s *ludoService) notify(userID uint, event string, payload interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyUser(userID, event, payload)
}

// mapEngineErr 引擎错误映射为应用错误
func (s *ludoService) mapEngineErr(err error) error {
	switch {
	case stderrors.Is(err, ludo.ErrGameOver):
		return errors.New(errors.ErrGameFinished)
	case stderrors.Is(err, ludo.ErrPlayerNotFound):
		return errors.New(errors.ErrNotInGame)
	case stderrors.Is(err, ludo.ErrNoDiceRoll),
		stderrors.Is(err, ludo.ErrInvalidToken),
		stderrors.Is(err, ludo.ErrTokenNotMovable),
		stderrors.Is(err, ludo.ErrMoveOvershoot),
		stderrors.Is(err, ludo.ErrCellBlocked):
		return errors.Wrap(err, errors.ErrIllegalMove)
	default:
		return errors.Wrap(err, errors.ErrUnknown)
	}
}

// mapStorageErr 存储层错误映射为应用错误
func (s *ludoService) mapStorageErr(err error, msg string, gameID, userID uint) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	switch {
	case stderrors.Is(err, repository.ErrGameNotFound):
		return errors.New(errors.ErrGameNotFound)
	case stderrors.Is(err, repository.ErrInsufficientBalance):
		return errors.New(errors.ErrInsufficientBalance)
	case stderrors.Is(err, repository.ErrWalletNotFound):
		return errors.New(errors.ErrWalletNotFound)
	case stderrors.Is(err, repository.ErrGameConcurrent):
		return errors.New(errors.ErrSettleConflict)
	default:
		s.log.Error(msg,
			zap.Uint("game_id", gameID),
			zap.Uint("user_id", userID),
			zap.Error(err))
		return errors.Wrap(err, errors.ErrTransaction)
	}
}
