package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/jeanpatrickreyes/ai-pro-sports/internal/cache"
	"github.com/jeanpatrickreyes/ai-pro-sports/internal/repository"
	"github.com/jeanpatrickreyes/ai-pro-sports/internal/service"
)

// OddsHandler 赔率查询接口（台账的只读报表面）
type OddsHandler struct {
	aggregation *service.AggregationService
	oddsRepo    repository.OddsRepository
	bookRepo    repository.SportsbookRepository
	cache       *cache.Cache
	logger      *logrus.Logger
}

// NewOddsHandler 创建OddsHandler
func NewOddsHandler(db *gorm.DB, logger *logrus.Logger, c *cache.Cache) *OddsHandler {
	oddsRepo := repository.NewOddsRepository(db)
	gameRepo := repository.NewGameRepository(db)
	bookRepo := repository.NewSportsbookRepository(db)
	return &OddsHandler{
		aggregation: service.NewAggregationService(oddsRepo, gameRepo, bookRepo, logger),
		oddsRepo:    oddsRepo,
		bookRepo:    bookRepo,
		cache:       c,
		logger:      logger,
	}
}

// GetGameOdds 一场比赛的全市场视图（各庄家报价 + 共识线 + 最优价）
// GET /api/odds/games/:game_id
func (h *OddsHandler) GetGameOdds(c *gin.Context) {
	gameID := c.Param("game_id")
	cacheKey := "odds:game:" + gameID

	var cached service.GameOddsView
	if h.cache.GetJSON(c.Request.Context(), cacheKey, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	view, err := h.aggregation.GameOdds(c.Request.Context(), gameID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("比赛%s不存在", gameID)})
			return
		}
		h.logger.WithError(err).Error("GetGameOdds failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.cache.SetJSON(c.Request.Context(), cacheKey, view)
	c.JSON(http.StatusOK, view)
}

// GetBestOdds 各 (market, selection) 组合的最优报价及完整对比数组
// GET /api/odds/games/:game_id/best
func (h *OddsHandler) GetBestOdds(c *gin.Context) {
	gameID := c.Param("game_id")

	best, err := h.aggregation.BestOdds(c.Request.Context(), gameID)
	if err != nil {
		h.logger.WithError(err).Error("GetBestOdds failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(best) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("比赛%s没有可用赔率", gameID)})
		return
	}
	c.JSON(http.StatusOK, best)
}

// GetMovements 移动历史，可按庄家key过滤
// GET /api/odds/games/:game_id/movement?sportsbook=pinnacle
func (h *OddsHandler) GetMovements(c *gin.Context) {
	gameID := c.Param("game_id")
	sportsbook := c.Query("sportsbook")

	movements, err := h.aggregation.Movements(c.Request.Context(), gameID, sportsbook)
	if err != nil {
		h.logger.WithError(err).Error("GetMovements failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, movements)
}

// GetClosingLine 收盘线快照
// GET /api/odds/games/:game_id/closing
func (h *OddsHandler) GetClosingLine(c *gin.Context) {
	gameID := c.Param("game_id")

	cl, err := h.oddsRepo.GetClosingLine(c.Request.Context(), gameID)
	if err != nil {
		h.logger.WithError(err).Error("GetClosingLine failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cl == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("比赛%s尚无收盘线", gameID)})
		return
	}
	c.JSON(http.StatusOK, cl)
}

// CaptureClosingLine 手动触发收盘线快照（开赛前调用）
// POST /api/odds/games/:game_id/closing
func (h *OddsHandler) CaptureClosingLine(c *gin.Context) {
	gameID := c.Param("game_id")

	if err := h.aggregation.CaptureClosingLines(c.Request.Context(), gameID); err != nil {
		h.logger.WithError(err).Error("CaptureClosingLine failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "收盘线已记录"})
}

// GetLiveOdds 未来24小时开赛比赛的赔率视图
// GET /api/odds/live?sport=NFL
func (h *OddsHandler) GetLiveOdds(c *gin.Context) {
	sport := c.Query("sport")
	cacheKey := "odds:live:" + sport
	if sport == "" {
		cacheKey = "odds:live:all"
	}

	var cached []*service.GameOddsView
	if h.cache.GetJSON(c.Request.Context(), cacheKey, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	views, err := h.aggregation.LiveOdds(c.Request.Context(), sport)
	if err != nil {
		h.logger.WithError(err).Error("GetLiveOdds failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.cache.SetJSON(c.Request.Context(), cacheKey, views)
	c.JSON(http.StatusOK, views)
}

// ListCurrentOdds 当前台账条目列表（运营排查用）
// GET /api/odds/all?sport=NFL&limit=100
func (h *OddsHandler) ListCurrentOdds(c *gin.Context) {
	sport := c.Query("sport")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	rows, err := h.oddsRepo.ListCurrent(c.Request.Context(), sport, limit)
	if err != nil {
		h.logger.WithError(err).Error("ListCurrentOdds failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// ListSportsbooks 系统内已知的庄家列表
// GET /api/odds/sportsbooks
func (h *OddsHandler) ListSportsbooks(c *gin.Context) {
	books, err := h.bookRepo.List(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("ListSportsbooks failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, books)
}
