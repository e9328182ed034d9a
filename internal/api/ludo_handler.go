package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/ludo-game/internal/errors"
	"github.com/wfunc/ludo-game/internal/middleware"
	"github.com/wfunc/ludo-game/internal/service"
)

// LudoHandler 对局处理器
type LudoHandler struct {
	ludoService service.LudoService
}

// NewLudoHandler 创建对局处理器
func NewLudoHandler(ludoService service.LudoService) *LudoHandler {
	return &LudoHandler{
		ludoService: ludoService,
	}
}

// CreateGame 创建对局
// @Summary 创建对局并托管押金
// @Tags Ludo
// @Security Bearer
// @Accept json
// @Produce json
// @Param request body service.CreateGameRequest true "对局参数"
// @Success 200 {object} service.GameView
// @Failure 402 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/ludo/games [post]
func (h *LudoHandler) CreateGame(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}

	var req service.CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	view, err := h.ludoService.CreateGame(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// JoinGame 加入对局
// @Summary 加入等待中的对局
// @Tags Ludo
// @Security Bearer
// @Produce json
// @Param id path int true "对局ID"
// @Success 200 {object} service.GameView
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/ludo/games/{id}/join [post]
func (h *LudoHandler) JoinGame(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}

	gameID, ok := h.gameID(c)
	if !ok {
		return
	}

	view, err := h.ludoService.JoinGame(c.Request.Context(), userID, gameID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// CancelGame 取消对局
// @Summary 取消尚未开局的对局（押金在开局时才托管，无退款）
// @Tags Ludo
// @Security Bearer
// @Produce json
// @Param id path int true "对局ID"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/ludo/games/{id}/cancel [post]
func (h *LudoHandler) CancelGame(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}

	gameID, ok := h.gameID(c)
	if !ok {
		return
	}

	if err := h.ludoService.CancelGame(c.Request.Context(), userID, gameID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "对局已取消"})
}

// SubmitAction 提交对局行动
// @Summary 掷骰、走子或弃权
// @Tags Ludo
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path int true "对局ID"
// @Param request body service.ActionRequest true "行动"
// @Success 200 {object} service.ActionResult
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/ludo/games/{id}/actions [post]
func (h *LudoHandler) SubmitAction(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}

	gameID, ok := h.gameID(c)
	if !ok {
		return
	}

	var req service.ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	result, err := h.ludoService.SubmitAction(c.Request.Context(), userID, gameID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetGame 查询对局
// @Summary 查询对局详情
// @Tags Ludo
// @Security Bearer
// @Produce json
// @Param id path int true "对局ID"
// @Success 200 {object} service.GameView
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/ludo/games/{id} [get]
func (h *LudoHandler) GetGame(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}

	gameID, ok := h.gameID(c)
	if !ok {
		return
	}

	view, err := h.ludoService.GetGame(c.Request.Context(), userID, gameID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// ListOpenGames 开放对局列表
// @Summary 等待对手的对局列表
// @Tags Ludo
// @Security Bearer
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/ludo/games [get]
func (h *LudoHandler) ListOpenGames(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	games, total, err := h.ludoService.ListOpenGames(c.Request.Context(), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"games":     games,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ListMyGames 我的对局列表
// @Summary 当前用户未结束的对局
// @Tags Ludo
// @Security Bearer
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/ludo/games/mine [get]
func (h *LudoHandler) ListMyGames(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}

	games, err := h.ludoService.ListMyGames(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"games": games})
}

// gameID 解析路径中的对局ID
func (h *LudoHandler) gameID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondError(c, errors.New(errors.ErrInvalidParam, "无效的对局ID"))
		return 0, false
	}
	return uint(id), true
}
