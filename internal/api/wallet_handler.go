package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/ludo-game/internal/errors"
	"github.com/wfunc/ludo-game/internal/middleware"
	"github.com/wfunc/ludo-game/internal/service"
	"go.uber.org/zap"
)

// WalletHandler 钱包处理器
type WalletHandler struct {
	ledger        service.LedgerService
	webhookSecret string
	logger        *zap.Logger
}

// NewWalletHandler 创建钱包处理器
func NewWalletHandler(ledger service.LedgerService, webhookSecret string, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{
		ledger:        ledger,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// BalanceResponse 余额响应
type BalanceResponse struct {
	Balance      int64 `json:"balance"`
	TotalDeposit int64 `json:"total_deposit"`
	TotalStake   int64 `json:"total_stake"`
	TotalWin     int64 `json:"total_win"`
}

// webhookPayload 支付网关回调报文
type webhookPayload struct {
	UserID    uint   `json:"user_id" binding:"required"`
	Amount    int64  `json:"amount" binding:"required"`
	GatewayNo string `json:"gateway_no" binding:"required"`
}

// GetBalance 获取余额
// @Summary 获取钱包余额与累计统计
// @Tags Wallet
// @Security Bearer
// @Produce json
// @Success 200 {object} BalanceResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/wallet/balance [get]
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}

	wallet, err := h.ledger.Balance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, BalanceResponse{
		Balance:      wallet.Balance,
		TotalDeposit: wallet.TotalDeposit,
		TotalStake:   wallet.TotalStake,
		TotalWin:     wallet.TotalWin,
	})
}

// GetTransactions 获取账本流水
// @Summary 分页查询账本流水
// @Tags Wallet
// @Security Bearer
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/wallet/transactions [get]
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	list, total, err := h.ledger.History(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": list,
		"total":        total,
		"page":         page,
		"page_size":    pageSize,
	})
}

// PaymentWebhook 支付网关充值回调
// 验签通过后入账；以网关流水号去重，重复回调幂等返回成功
// @Summary 支付网关回调
// @Tags Wallet
// @Accept json
// @Produce json
// @Param X-Signature header string true "HMAC-SHA256签名"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/payments/webhook [post]
func (h *WalletHandler) PaymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	if !h.verifySignature(body, c.GetHeader("X-Signature")) {
		h.logger.Warn("支付回调验签失败", zap.String("ip", c.ClientIP()))
		respondError(c, errors.New(errors.ErrPaymentSignature))
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		respondBadRequest(c, err)
		return
	}

	trans, err := h.ledger.CreditDeposit(c.Request.Context(), &service.DepositRequest{
		UserID:    payload.UserID,
		Amount:    payload.Amount,
		GatewayNo: payload.GatewayNo,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_no": trans.OrderNo,
		"amount":   trans.Amount,
		"status":   trans.Status,
	})
}

// verifySignature 校验回调签名：HMAC-SHA256(body, secret) 十六进制编码
func (h *WalletHandler) verifySignature(body []byte, signature string) bool {
	if h.webhookSecret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
