package service

import (
	"context"
	"sync"
	"time"

	"github.com/wfunc/ludo-game/internal/logger"
	"github.com/wfunc/ludo-game/internal/models"
	"github.com/wfunc/ludo-game/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DisputeResolver 超时判负巡检器
// 周期性扫描回合超时的进行中对局，判当前回合持有者负，
// 结算路径与正常胜出完全一致：对局终态更新带状态前置条件，
// 与玩家行动并发到达时只有一方能完成结算
type DisputeResolver struct {
	db            *gorm.DB
	gameRepo      repository.GameRepository
	ledger        LedgerService
	notifier      Notifier
	turnTimeout   time.Duration
	checkInterval time.Duration
	commissionBps int64
	log           *zap.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewDisputeResolver 创建超时判负巡检器
func NewDisputeResolver(
	db *gorm.DB,
	gameRepo repository.GameRepository,
	ledger LedgerService,
	notifier Notifier,
	turnTimeout, checkInterval time.Duration,
	commissionBps int64,
	log *zap.Logger,
) *DisputeResolver {
	return &DisputeResolver{
		db:            db,
		gameRepo:      gameRepo,
		ledger:        ledger,
		notifier:      notifier,
		turnTimeout:   turnTimeout,
		checkInterval: checkInterval,
		commissionBps: commissionBps,
		log:           log,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start 启动巡检循环
func (r *DisputeResolver) Start(ctx context.Context) {
	go func() {
		defer close(r.doneCh)

		ticker := time.NewTicker(r.checkInterval)
		defer ticker.Stop()

		r.log.Info("超时判负巡检已启动",
			zap.Duration("turn_timeout", r.turnTimeout),
			zap.Duration("interval", r.checkInterval))

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			case <-ticker.C:
				r.ResolveOnce(ctx)
			}
		}
	}()
}

// Stop 停止巡检并等待退出
func (r *DisputeResolver) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	<-r.doneCh
}

// ResolveOnce 执行一轮巡检
// 单个对局结算失败只记日志，不影响同轮其余对局
func (r *DisputeResolver) ResolveOnce(ctx context.Context) {
	cutoff := time.Now().Add(-r.turnTimeout)
	games, err := r.gameRepo.FindTimedOut(ctx, cutoff)
	if err != nil {
		r.log.Error("超时对局扫描失败", zap.Error(err))
		return
	}

	for _, game := range games {
		if err := r.resolveGame(ctx, game.ID, cutoff); err != nil {
			r.log.Error("超时判负失败",
				zap.Uint("game_id", game.ID),
				zap.Error(err))
		}
	}
}

// resolveGame 对单个对局执行超时判负
func (r *DisputeResolver) resolveGame(ctx context.Context, gameID uint, cutoff time.Time) error {
	var (
		game   *models.LudoGame
		winner uint
		prize  int64
	)

	err := r.db.Transaction(func(tx *gorm.DB) error {
		gameRepo := r.gameRepo.WithTx(tx).(repository.GameRepository)

		var err error
		game, err = gameRepo.LockForUpdate(ctx, gameID)
		if err != nil {
			return err
		}

		// 加锁后复核：玩家行动可能已在扫描与加锁之间到达
		if game.Status != models.GameStatusActive || !game.LastActionAt.Before(cutoff) {
			return nil
		}

		var ok bool
		winner, ok = game.OtherPlayer(game.CurrentTurnID)
		if !ok {
			return nil
		}

		prize = PrizeAmount(game.Stake, r.commissionBps)
		if err := r.ledger.PayPrizeTx(ctx, tx, winner, game.ID, prize); err != nil {
			return err
		}
		return gameRepo.Settle(ctx, game.ID, winner, models.GameStatusForfeited)
	})
	if err != nil {
		return err
	}

	if winner == 0 {
		return nil
	}

	logger.LogGameEvent("forfeited", gameID, game.CurrentTurnID, map[string]interface{}{
		"winner_id": winner,
		"prize":     prize,
	})

	if r.notifier != nil {
		for _, pid := range []uint{game.CreatorID, *game.OpponentID} {
			r.notifier.NotifyUser(pid, EventGameOver, map[string]interface{}{
				"game_id":   gameID,
				"winner_id": winner,
				"prize":     prize,
				"forfeited": true,
			})
		}
		r.notifier.NotifyUser(winner, EventBalanceUpdate, map[string]interface{}{
			"amount": prize,
		})
	}
	return nil
}
