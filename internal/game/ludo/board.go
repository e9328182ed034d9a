package ludo

// 棋盘几何常量
// 公共环路52格，每名玩家私有冲刺道6格，终点位置58
const (
	PathLength        = 52 // 公共环路格数
	HomeStretchStart  = 52 // 冲刺道起始位置
	HomeStretchLength = 6  // 冲刺道格数
	WinningPosition   = 58 // 终点位置（到达后不可再移动）
	PositionYard      = -1 // 停机坪（尚未进入棋盘）

	MaxPlayers      = 4
	TokensPerPlayer = 4

	// 连续掷出三个6即丧失本回合
	MaxConsecutiveSixes = 3
)

// PlayerConfig 玩家座次配置：颜色与环路入口位置
type PlayerConfig struct {
	Color    string
	StartPos int
}

// 按加入顺序分配的座次（与渲染端约定一致）
var playerConfigs = [MaxPlayers]PlayerConfig{
	{Color: "red", StartPos: 0},
	{Color: "green", StartPos: 13},
	{Color: "yellow", StartPos: 26},
	{Color: "blue", StartPos: 39},
}

// 安全格：任何占用都不触发击回
var safeZones = map[int]struct{}{
	0: {}, 8: {}, 13: {}, 21: {}, 26: {}, 34: {}, 39: {}, 47: {},
}

// IsSafeZone 检查环路位置是否为安全格
func IsSafeZone(pos int) bool {
	_, ok := safeZones[pos]
	return ok
}

// IsOnPath 检查位置是否在公共环路上
func IsOnPath(pos int) bool {
	return pos >= 0 && pos < PathLength
}

// IsInHomeStretch 检查位置是否在冲刺道内
func IsInHomeStretch(pos int) bool {
	return pos >= HomeStretchStart && pos < WinningPosition
}

// homeEntryPos 返回玩家的冲刺道入口前一格（越过该格即转入冲刺道）
func homeEntryPos(startPos int) int {
	return (startPos - 1 + PathLength) % PathLength
}
