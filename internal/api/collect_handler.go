package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/jeanpatrickreyes/ai-pro-sports/internal/service"
)

// CollectHandler 手动触发采集的接口
type CollectHandler struct {
	collectService *service.CollectService
	logger         *logrus.Logger
}

// NewCollectHandler 创建CollectHandler
func NewCollectHandler(svc *service.CollectService, logger *logrus.Logger) *CollectHandler {
	return &CollectHandler{
		collectService: svc,
		logger:         logger,
	}
}

// Refresh 立即执行一次采集，sport为空时采集全部已配置运动
// POST /api/odds/refresh?sport=NFL
func (h *CollectHandler) Refresh(c *gin.Context) {
	sport := c.Query("sport")

	result := h.collectService.Collect(c.Request.Context(), sport)
	if !result.Success && result.RecordsCount == 0 {
		c.JSON(http.StatusInternalServerError, result)
		return
	}
	c.JSON(http.StatusOK, result)
}
