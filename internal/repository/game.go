package repository

import (
	"context"
	"errors"
	"time"

	"github.com/wfunc/ludo-game/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrGameNotFound   = errors.New("对局不存在")
	ErrGameConcurrent = errors.New("对局已被并发修改")
)

// GameRepository 对局仓储接口
type GameRepository interface {
	BaseRepository
	Create(ctx context.Context, game *models.LudoGame) error
	FindByID(ctx context.Context, id uint) (*models.LudoGame, error)
	LockForUpdate(ctx context.Context, id uint) (*models.LudoGame, error)
	FindOpen(ctx context.Context, pagination *Pagination) ([]*models.LudoGame, error)
	FindActiveByUser(ctx context.Context, userID uint) ([]*models.LudoGame, error)
	FindTimedOut(ctx context.Context, cutoff time.Time) ([]*models.LudoGame, error)
	Save(ctx context.Context, game *models.LudoGame) error
	Settle(ctx context.Context, gameID uint, winnerID uint, toStatus models.LudoGameStatus) error
}

// gameRepo 对局仓储实现
type gameRepo struct {
	*BaseRepo
}

// NewGameRepository 创建对局仓储
func NewGameRepository(db *gorm.DB) GameRepository {
	return &gameRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建对局
func (r *gameRepo) Create(ctx context.Context, game *models.LudoGame) error {
	return r.db.WithContext(ctx).Create(game).Error
}

// FindByID 根据ID查找对局
func (r *gameRepo) FindByID(ctx context.Context, id uint) (*models.LudoGame, error) {
	var game models.LudoGame
	err := r.db.WithContext(ctx).First(&game, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	return &game, nil
}

// LockForUpdate 锁定对局行用于更新（悲观锁）
// 同一对局的全部行动在此锁下串行化
func (r *gameRepo) LockForUpdate(ctx context.Context, id uint) (*models.LudoGame, error) {
	var game models.LudoGame
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&game, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	return &game, nil
}

// FindOpen 查找等待对手加入的对局
func (r *gameRepo) FindOpen(ctx context.Context, pagination *Pagination) ([]*models.LudoGame, error) {
	var games []*models.LudoGame
	query := r.db.WithContext(ctx).
		Model(&models.LudoGame{}).
		Where("status = ?", models.GameStatusLobby)

	var total int64
	query.Count(&total)
	pagination.Total = total

	err := query.
		Limit(pagination.PageSize).
		Offset(pagination.Offset()).
		Order("created_at DESC").
		Find(&games).Error

	return games, err
}

// FindActiveByUser 查找用户参与的未结束对局
func (r *gameRepo) FindActiveByUser(ctx context.Context, userID uint) ([]*models.LudoGame, error) {
	var games []*models.LudoGame
	err := r.db.WithContext(ctx).
		Where("(creator_id = ? OR opponent_id = ?) AND status IN (?)",
			userID, userID,
			[]models.LudoGameStatus{models.GameStatusLobby, models.GameStatusActive}).
		Order("created_at DESC").
		Find(&games).Error
	return games, err
}

// FindTimedOut 查找回合超时的进行中对局
func (r *gameRepo) FindTimedOut(ctx context.Context, cutoff time.Time) ([]*models.LudoGame, error) {
	var games []*models.LudoGame
	err := r.db.WithContext(ctx).
		Where("status = ? AND last_action_at < ?", models.GameStatusActive, cutoff).
		Find(&games).Error
	return games, err
}

// Save 保存对局（全量更新）
func (r *gameRepo) Save(ctx context.Context, game *models.LudoGame) error {
	return r.db.WithContext(ctx).Save(game).Error
}

// Settle 将进行中的对局置为终态并记录胜者
// 带状态前置条件的条件更新：零行受影响说明对局已被结算，
// 正常行动与超时判负并发到达时只有一方能赢得这次更新
func (r *gameRepo) Settle(ctx context.Context, gameID uint, winnerID uint, toStatus models.LudoGameStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.LudoGame{}).
		Where("id = ? AND status = ?", gameID, models.GameStatusActive).
		Updates(map[string]interface{}{
			"status":    toStatus,
			"winner_id": winnerID,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrGameConcurrent
	}
	return nil
}

// WithTx 使用事务
func (r *gameRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &gameRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
