package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wfunc/ludo-game/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB 创建内存测试数据库
// 内存库在连接之间不共享，收敛为单连接让并发事务排队串行执行
func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.UserAuth{},
		&models.Wallet{},
		&models.Transaction{},
		&models.LudoGame{},
	)
	require.NoError(t, err)
	return db
}

// cleanTables 清理各表数据（保留表结构，套件内各测试共用数据库）
func cleanTables(db *gorm.DB) {
	db.Exec("DELETE FROM ludo_games")
	db.Exec("DELETE FROM transactions")
	db.Exec("DELETE FROM wallets")
	db.Exec("DELETE FROM user_auths")
	db.Exec("DELETE FROM users")
}

// createWallet 为指定用户建钱包并充入初始余额
func createWallet(t *testing.T, db *gorm.DB, userID uint, balance int64) {
	wallet := &models.Wallet{UserID: userID, Balance: balance}
	require.NoError(t, db.Create(wallet).Error)
}

// stubRoller 固定序列骰子，循环使用
type stubRoller struct {
	faces []int
	i     int
}

func (r *stubRoller) Roll() int {
	face := r.faces[r.i%len(r.faces)]
	r.i++
	return face
}

// notifyEvent 记录一次推送
type notifyEvent struct {
	UserID  uint
	Event   string
	Payload interface{}
}

// recordNotifier 测试用通知器，记录全部推送事件
// 并发场景下多条结算路径可能同时推送，需加锁保护
type recordNotifier struct {
	mu     sync.Mutex
	events []notifyEvent
}

func (n *recordNotifier) NotifyUser(userID uint, event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notifyEvent{UserID: userID, Event: event, Payload: payload})
}

func (n *recordNotifier) eventsFor(userID uint, event string) []notifyEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notifyEvent
	for _, e := range n.events {
		if e.UserID == userID && e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (n *recordNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = nil
}
