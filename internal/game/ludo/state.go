package ludo

import (
	"errors"
)

var (
	ErrGameFull        = errors.New("对局人数已满")
	ErrPlayerExists    = errors.New("玩家已在对局中")
	ErrPlayerNotFound  = errors.New("玩家不在对局中")
	ErrGameOver        = errors.New("对局已结束")
	ErrInvalidWinCond  = errors.New("无效的胜利条件")
	ErrNoDiceRoll      = errors.New("尚未掷骰")
	ErrInvalidToken    = errors.New("无效的棋子编号")
	ErrTokenNotMovable = errors.New("棋子不可移动")
	ErrMoveOvershoot   = errors.New("超出终点，步数必须恰好到达")
	ErrCellBlocked     = errors.New("目标格被对方双子封锁")
)

// Player 对局中的一名玩家
type Player struct {
	ID       uint                 `json:"id"`
	Index    int                  `json:"index"`
	Color    string               `json:"color"`
	StartPos int                  `json:"start_pos"`
	Tokens   [TokensPerPlayer]int `json:"tokens"`
}

// State 棋盘状态
// 纯数据值：每次请求从快照重建，单次转移之外不存在可见的共享可变状态
type State struct {
	Players          []*Player `json:"players"` // 加入顺序即行棋顺序
	CurrentTurnID    uint      `json:"current_turn_id"`
	DiceRoll         int       `json:"dice_roll"`
	RollPending      bool      `json:"roll_pending"` // 已掷骰、尚未走子
	ConsecutiveSixes int       `json:"consecutive_sixes"`
	WinnerID         uint      `json:"winner_id"`
	WinCondition     int       `json:"win_condition"` // 需到达终点的棋子数：1、2 或 4
}

// NewState 创建新棋盘，创建者作为首位玩家并持有首回合
func NewState(creatorID uint, winCondition int) (*State, error) {
	switch winCondition {
	case 1, 2, 4:
	default:
		return nil, ErrInvalidWinCond
	}

	s := &State{
		CurrentTurnID: creatorID,
		WinCondition:  winCondition,
	}
	if err := s.AddPlayer(creatorID); err != nil {
		return nil, err
	}
	return s, nil
}

// AddPlayer 按加入顺序加入玩家，座次决定颜色与入口位置
func (s *State) AddPlayer(playerID uint) error {
	if len(s.Players) >= MaxPlayers {
		return ErrGameFull
	}
	if s.player(playerID) != nil {
		return ErrPlayerExists
	}

	cfg := playerConfigs[len(s.Players)]
	p := &Player{
		ID:       playerID,
		Index:    len(s.Players),
		Color:    cfg.Color,
		StartPos: cfg.StartPos,
	}
	for i := range p.Tokens {
		p.Tokens[i] = PositionYard
	}
	s.Players = append(s.Players, p)
	return nil
}

// player 查找玩家，未找到返回nil
func (s *State) player(playerID uint) *Player {
	for _, p := range s.Players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// Player 查找玩家（对外）
func (s *State) Player(playerID uint) (*Player, bool) {
	p := s.player(playerID)
	return p, p != nil
}

// TokenCounts 统计玩家棋子分布：停机坪/环路/冲刺道/终点
// 不变式：四项之和恒等于4
func (s *State) TokenCounts(playerID uint) (yard, path, stretch, home int) {
	p := s.player(playerID)
	if p == nil {
		return
	}
	for _, pos := range p.Tokens {
		switch {
		case pos == PositionYard:
			yard++
		case IsOnPath(pos):
			path++
		case IsInHomeStretch(pos):
			stretch++
		case pos == WinningPosition:
			home++
		}
	}
	return
}

// tokensAt 统计某玩家位于环路某格的棋子数
func (p *Player) tokensAt(pos int) int {
	n := 0
	for _, t := range p.Tokens {
		if t == pos {
			n++
		}
	}
	return n
}
