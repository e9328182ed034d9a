package ludo

// Capture 一次击回：对方棋子被送回停机坪
type Capture struct {
	PlayerID   uint `json:"player_id"`
	TokenIndex int  `json:"token_index"`
	Position   int  `json:"position"`
}

// MoveResult 一次走子的结果
type MoveResult struct {
	From      int       `json:"from"`
	To        int       `json:"to"`
	Captures  []Capture `json:"captures,omitempty"`
	Won       bool      `json:"won"`
	ExtraTurn bool      `json:"extra_turn"` // 掷出6且未胜出时再行一次
}

// RollDice 掷骰并处理连续6计数
// 连掷三个6丧失本回合：计数清零、不允许走子，调用方必须推进回合
func (s *State) RollDice(roller DiceRoller) (face int, turnForfeited bool, err error) {
	if s.WinnerID != 0 {
		return 0, false, ErrGameOver
	}

	face = roller.Roll()
	s.DiceRoll = face

	if face == 6 {
		s.ConsecutiveSixes++
	} else {
		s.ConsecutiveSixes = 0
	}

	if s.ConsecutiveSixes == MaxConsecutiveSixes {
		s.ConsecutiveSixes = 0
		s.RollPending = false
		return face, true, nil
	}

	s.RollPending = true
	return face, false, nil
}

// MovableTokens 返回当前骰值下可移动的棋子编号
// 停机坪棋子仅6点可出；终点棋子永不可动；冲刺道棋子必须恰好到达；
// 落点被对方双子封锁的环路棋子不可动，否则玩家会陷入既不能走也不能弃权的死局
func (s *State) MovableTokens(playerID uint) []int {
	p := s.player(playerID)
	if p == nil || !s.RollPending {
		return nil
	}

	var movable []int
	for i, pos := range p.Tokens {
		switch {
		case pos == WinningPosition:
			continue
		case pos == PositionYard:
			if s.DiceRoll == 6 {
				movable = append(movable, i)
			}
		case IsInHomeStretch(pos):
			if pos+s.DiceRoll <= WinningPosition {
				movable = append(movable, i)
			}
		default:
			newPos, err := s.targetPosition(p, pos)
			if err != nil || s.blockedFor(playerID, newPos) {
				continue
			}
			movable = append(movable, i)
		}
	}
	return movable
}

// MoveToken 执行一次走子：出子、环路行进（含转入冲刺道）、冲刺道行进
// 非法走子一律显式拒绝并保持状态不变，不做静默修正
func (s *State) MoveToken(playerID uint, tokenIndex int) (*MoveResult, error) {
	if s.WinnerID != 0 {
		return nil, ErrGameOver
	}
	p := s.player(playerID)
	if p == nil {
		return nil, ErrPlayerNotFound
	}
	if !s.RollPending || s.DiceRoll < 1 || s.DiceRoll > 6 {
		return nil, ErrNoDiceRoll
	}
	if tokenIndex < 0 || tokenIndex >= TokensPerPlayer {
		return nil, ErrInvalidToken
	}

	current := p.Tokens[tokenIndex]
	newPos, err := s.targetPosition(p, current)
	if err != nil {
		return nil, err
	}

	// 放子前检查封锁：目标环路格上有对方同色双子则禁止落子
	if s.blockedFor(playerID, newPos) {
		return nil, ErrCellBlocked
	}

	result := &MoveResult{From: current, To: newPos}
	p.Tokens[tokenIndex] = newPos
	s.RollPending = false

	// 击回：非安全格上的对方单子送回停机坪
	if IsOnPath(newPos) && !IsSafeZone(newPos) {
		for _, other := range s.Players {
			if other.ID == playerID {
				continue
			}
			for i, pos := range other.Tokens {
				if pos == newPos {
					other.Tokens[i] = PositionYard
					result.Captures = append(result.Captures, Capture{
						PlayerID:   other.ID,
						TokenIndex: i,
						Position:   newPos,
					})
				}
			}
		}
	}

	// 胜负判定：到达终点的棋子数满足胜利条件
	if p.tokensAt(WinningPosition) >= s.WinCondition {
		s.WinnerID = playerID
		result.Won = true
	}

	result.ExtraTurn = s.DiceRoll == 6 && !result.Won
	return result, nil
}

// blockedFor 判断指定落点是否被对方双子封锁
// 封锁只存在于非安全的环路格：安全格、冲刺道和终点不构成封锁
func (s *State) blockedFor(playerID uint, pos int) bool {
	if !IsOnPath(pos) || IsSafeZone(pos) {
		return false
	}
	for _, other := range s.Players {
		if other.ID == playerID {
			continue
		}
		if other.tokensAt(pos) >= 2 {
			return true
		}
	}
	return false
}

// targetPosition 计算走子目标位置
func (s *State) targetPosition(p *Player, current int) (int, error) {
	face := s.DiceRoll

	// 出子：6点从停机坪落到入口格
	if current == PositionYard {
		if face != 6 {
			return 0, ErrTokenNotMovable
		}
		return p.StartPos, nil
	}

	if current == WinningPosition {
		return 0, ErrTokenNotMovable
	}

	// 冲刺道内行进：必须恰好到达，越过即拒绝
	if IsInHomeStretch(current) {
		newPos := current + face
		if newPos > WinningPosition {
			return 0, ErrMoveOvershoot
		}
		return newPos, nil
	}

	// 环路行进：逐步推进，越过自己的入口前一格即转入冲刺道
	entry := homeEntryPos(p.StartPos)
	passing := false
	step := current
	for i := 0; i < face; i++ {
		step = (step + 1) % PathLength
		if step == p.StartPos {
			passing = true
			break
		}
	}

	if !passing {
		return (current + face) % PathLength, nil
	}

	stepsAfterEntry := face - (entry-current+PathLength)%PathLength
	newPos := HomeStretchStart + stepsAfterEntry - 1
	if newPos > WinningPosition {
		return 0, ErrMoveOvershoot
	}
	return newPos, nil
}

// AdvanceTurn 按加入顺序循环推进回合
// 引擎不决定何时推进：6点续行、胜出停局都由调用方依据结果控制
func (s *State) AdvanceTurn() {
	if len(s.Players) == 0 {
		return
	}
	cur := 0
	for i, p := range s.Players {
		if p.ID == s.CurrentTurnID {
			cur = i
			break
		}
	}
	s.CurrentTurnID = s.Players[(cur+1)%len(s.Players)].ID
	s.RollPending = false
	s.ConsecutiveSixes = 0
}
