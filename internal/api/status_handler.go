package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/jeanpatrickreyes/ai-pro-sports/internal/oddsapi"
	"github.com/jeanpatrickreyes/ai-pro-sports/internal/repository"
)

// StatusHandler 配额与采集历史的查询接口
type StatusHandler struct {
	client  *oddsapi.Client
	runRepo repository.CollectionRunRepository
	logger  *logrus.Logger
}

// NewStatusHandler 创建StatusHandler
func NewStatusHandler(db *gorm.DB, client *oddsapi.Client, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		client:  client,
		runRepo: repository.NewCollectionRunRepository(db),
		logger:  logger,
	}
}

// GetAPIStatus 上游配额使用情况（从响应头累积）
// GET /api/odds/status
func (h *StatusHandler) GetAPIStatus(c *gin.Context) {
	q := h.client.Quota()
	c.JSON(http.StatusOK, gin.H{
		"requests_used":      q.RequestsUsed,
		"requests_remaining": q.RequestsRemaining,
		"monthly_limit":      q.MonthlyLimit,
		"last_request_at":    q.LastRequestAt,
	})
}

// ListSports 上游支持的运动列表（排查sport key配置用）
// GET /api/odds/sports
func (h *StatusHandler) ListSports(c *gin.Context) {
	sports, err := h.client.FetchSports(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("ListSports failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sports)
}

// ListRuns 最近的采集批次记录
// GET /api/odds/runs?limit=20
func (h *StatusHandler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	runs, err := h.runRepo.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("ListRuns failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, runs)
}
