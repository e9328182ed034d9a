package models

import (
	"time"
)

// LudoGameStatus 对局状态
type LudoGameStatus string

const (
	GameStatusLobby     LudoGameStatus = "lobby"     // 等待对手加入
	GameStatusActive    LudoGameStatus = "active"    // 对局进行中
	GameStatusFinished  LudoGameStatus = "finished"  // 正常胜出结束
	GameStatusForfeited LudoGameStatus = "forfeited" // 超时判负结束
	GameStatusCancelled LudoGameStatus = "cancelled" // 创建者在对手加入前取消
)

// IsTerminal 检查是否为终态
// 状态只能单向推进：lobby -> active -> finished|forfeited，或 lobby -> cancelled
func (s LudoGameStatus) IsTerminal() bool {
	return s == GameStatusFinished || s == GameStatusForfeited || s == GameStatusCancelled
}

// LudoGame 对局表
// Board 保存引擎快照的JSON序列化结果，由回合协调器整行替换，
// 不允许并发写入者原地修改
type LudoGame struct {
	BaseModel
	CreatorID     uint           `gorm:"not null;index" json:"creator_id"`
	OpponentID    *uint          `gorm:"index" json:"opponent_id,omitempty"`
	Stake         int64          `gorm:"not null" json:"stake"`         // 单方押金（分），> 0
	WinCondition  int            `gorm:"not null" json:"win_condition"` // 需到达终点的棋子数：1、2 或 4
	WinnerID      *uint          `gorm:"index" json:"winner_id,omitempty"`
	Status        LudoGameStatus `gorm:"size:20;not null;default:'lobby';index" json:"status"`
	CurrentTurnID uint           `gorm:"not null" json:"current_turn_id"`
	LastActionAt  time.Time      `gorm:"index;not null" json:"last_action_at"`
	Board         string         `gorm:"type:text;not null" json:"-"` // 棋盘快照（JSON）
}

// TableName 指定表名
func (LudoGame) TableName() string {
	return "ludo_games"
}

// IsActionable 检查对局是否可以接受玩家操作
func (g *LudoGame) IsActionable() bool {
	return g.Status == GameStatusActive
}

// OtherPlayer 返回对手ID（用于判负结算时确定赢家）
func (g *LudoGame) OtherPlayer(userID uint) (uint, bool) {
	if g.OpponentID == nil {
		return 0, false
	}
	if userID == g.CreatorID {
		return *g.OpponentID, true
	}
	if userID == *g.OpponentID {
		return g.CreatorID, true
	}
	return 0, false
}
