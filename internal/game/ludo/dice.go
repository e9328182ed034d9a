package ludo

import (
	"crypto/rand"
	"math/big"
)

// DiceRoller 骰子接口（测试中可注入确定性实现）
type DiceRoller interface {
	Roll() int
}

// cryptoDiceRoller 基于密码学随机源的骰子
type cryptoDiceRoller struct{}

// NewCryptoDiceRoller 创建密码学随机骰子
func NewCryptoDiceRoller() DiceRoller {
	return &cryptoDiceRoller{}
}

// Roll 均匀返回1..6
func (r *cryptoDiceRoller) Roll() int {
	n, err := rand.Int(rand.Reader, big.NewInt(6))
	if err != nil {
		// crypto/rand 读取失败说明系统随机源不可用，无法继续
		panic(err)
	}
	return int(n.Int64()) + 1
}
