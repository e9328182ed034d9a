package ludo

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrCorruptSnapshot = errors.New("棋盘快照损坏")

// Snapshot 将棋盘状态序列化为JSON快照
func (s *State) Snapshot() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("序列化棋盘快照失败: %w", err)
	}
	return string(data), nil
}

// Restore 从JSON快照重建棋盘状态
// 显式反序列化为类型化的值并校验所有字段，
// 缺失或越界的字段一律报错，绝不静默接受
func Restore(data string) (*State, error) {
	s := &State{}
	if err := json.Unmarshal([]byte(data), s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return s, nil
}

// validate 校验重建后的状态
func (s *State) validate() error {
	if len(s.Players) == 0 || len(s.Players) > MaxPlayers {
		return fmt.Errorf("玩家数非法: %d", len(s.Players))
	}

	switch s.WinCondition {
	case 1, 2, 4:
	default:
		return fmt.Errorf("胜利条件非法: %d", s.WinCondition)
	}

	if s.DiceRoll < 0 || s.DiceRoll > 6 {
		return fmt.Errorf("骰值非法: %d", s.DiceRoll)
	}
	if s.ConsecutiveSixes < 0 || s.ConsecutiveSixes >= MaxConsecutiveSixes {
		return fmt.Errorf("连续6计数非法: %d", s.ConsecutiveSixes)
	}

	seen := make(map[uint]struct{}, len(s.Players))
	turnFound := false
	for i, p := range s.Players {
		if p == nil {
			return fmt.Errorf("玩家 %d 缺失", i)
		}
		if p.ID == 0 {
			return fmt.Errorf("玩家 %d 编号非法", i)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("玩家 %d 重复", p.ID)
		}
		seen[p.ID] = struct{}{}

		// 座次必须与加入顺序一致
		if p.Index != i {
			return fmt.Errorf("玩家 %d 座次错乱: %d", p.ID, p.Index)
		}
		cfg := playerConfigs[i]
		if p.Color != cfg.Color || p.StartPos != cfg.StartPos {
			return fmt.Errorf("玩家 %d 座次配置不符", p.ID)
		}

		for j, pos := range p.Tokens {
			if pos != PositionYard && (pos < 0 || pos > WinningPosition) {
				return fmt.Errorf("玩家 %d 棋子 %d 位置非法: %d", p.ID, j, pos)
			}
		}

		if p.ID == s.CurrentTurnID {
			turnFound = true
		}
	}

	if !turnFound {
		return fmt.Errorf("当前回合玩家 %d 不在对局中", s.CurrentTurnID)
	}
	if s.WinnerID != 0 {
		if _, ok := seen[s.WinnerID]; !ok {
			return fmt.Errorf("胜者 %d 不在对局中", s.WinnerID)
		}
	}
	return nil
}
