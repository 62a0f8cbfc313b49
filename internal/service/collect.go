package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/jeanpatrickreyes/ai-pro-sports/internal/cache"
	"github.com/jeanpatrickreyes/ai-pro-sports/internal/collector"
	"github.com/jeanpatrickreyes/ai-pro-sports/internal/config"
	"github.com/jeanpatrickreyes/ai-pro-sports/internal/model"
	"github.com/jeanpatrickreyes/ai-pro-sports/internal/oddsapi"
	"github.com/jeanpatrickreyes/ai-pro-sports/internal/repository"
)

// OddsFetcher 传输层协作者：拉取原始赔率并维护配额计数
type OddsFetcher interface {
	FetchOdds(ctx context.Context, apiSportKey string, markets []string) ([]oddsapi.Event, error)
	Quota() oddsapi.QuotaStatus
}

// MovementNotifier 盘口移动告警协作者
type MovementNotifier interface {
	NotifyMovement(mv *model.OddsMovement, game *model.Game, bookName string)
}

// CollectionMetadata 采集元信息（配额按值拷贝自传输层，不做全局状态）
type CollectionMetadata struct {
	SportsCollected   []string `json:"sports_collected"`
	Markets           []string `json:"markets"`
	RequestsRemaining int      `json:"requests_remaining"`
}

// CollectionResult 一次采集的聚合结果。部分失败不丢弃已入库的记录：
// 任一错误都会使Success为false，但成功提交的部分照常保留
type CollectionResult struct {
	Success        bool               `json:"success"`
	RecordsCount   int                `json:"records_count"`   // 归一化产出的记录数
	AcceptedCount  int                `json:"accepted_count"`  // 通过校验
	RejectedCount  int                `json:"rejected_count"`  // 被校验拒绝（不再静默丢弃）
	SkippedCount   int                `json:"skipped_count"`   // 比赛未知，按规则丢弃
	CommittedCount int                `json:"committed_count"` // 写入台账的新条目数
	UnchangedCount int                `json:"unchanged_count"` // 幂等无操作
	MovementCount  int                `json:"movement_count"`  // 生成的移动事件数
	Error          string             `json:"error,omitempty"` // 各sport错误以"; "拼接
	Metadata       CollectionMetadata `json:"metadata"`
	StartedAt      time.Time          `json:"started_at"`
	FinishedAt     time.Time          `json:"finished_at"`
}

// CollectService 采集编排器：按sport扇出
// 拉取 → 归一化 → 校验 → 解析庄家 → 提交台账 的流水线，
// 单个sport的失败只记录错误，不影响其余sport
type CollectService struct {
	cfg        *config.Config
	fetcher    OddsFetcher
	normalizer *collector.Normalizer
	gameRepo   repository.GameRepository
	bookRepo   repository.SportsbookRepository
	oddsRepo   repository.OddsRepository
	runRepo    repository.CollectionRunRepository
	cache      *cache.Cache
	notifier   MovementNotifier
	logger     *logrus.Logger
}

// NewCollectService 创建采集服务
func NewCollectService(
	cfg *config.Config,
	fetcher OddsFetcher,
	gameRepo repository.GameRepository,
	bookRepo repository.SportsbookRepository,
	oddsRepo repository.OddsRepository,
	runRepo repository.CollectionRunRepository,
	c *cache.Cache,
	notifier MovementNotifier,
	logger *logrus.Logger,
) *CollectService {
	return &CollectService{
		cfg:        cfg,
		fetcher:    fetcher,
		normalizer: collector.NewNormalizer(logger),
		gameRepo:   gameRepo,
		bookRepo:   bookRepo,
		oddsRepo:   oddsRepo,
		runRepo:    runRepo,
		cache:      c,
		notifier:   notifier,
		logger:     logger,
	}
}

// Collect 执行一次采集。sportCode为空时覆盖全部配置的运动
func (s *CollectService) Collect(ctx context.Context, sportCode string) *CollectionResult {
	result := &CollectionResult{
		StartedAt: time.Now(),
		Metadata: CollectionMetadata{
			Markets: s.cfg.Collect.Markets,
		},
	}

	// 配置类错误：没有API密钥直接整体失败，不做任何部分处理
	if s.cfg.OddsAPI.APIKey == "" {
		result.Error = "TheOddsAPI key未配置"
		result.FinishedAt = time.Now()
		s.saveRun(ctx, result)
		return result
	}

	sports, err := s.targetSports(sportCode)
	if err != nil {
		result.Error = err.Error()
		result.FinishedAt = time.Now()
		s.saveRun(ctx, result)
		return result
	}
	result.Metadata.SportsCollected = sports

	var errs []string
	for _, sport := range sports {
		if err := s.collectSport(ctx, sport, result); err != nil {
			s.logger.WithError(err).WithField("sport", sport).Error("采集失败")
			errs = append(errs, fmt.Sprintf("%s: %v", sport, err))
		}
	}

	result.Success = len(errs) == 0
	result.Error = strings.Join(errs, "; ")
	result.Metadata.RequestsRemaining = s.fetcher.Quota().RequestsRemaining
	result.FinishedAt = time.Now()

	if result.CommittedCount > 0 {
		s.cache.DeletePattern(ctx, "odds:*")
	}
	s.saveRun(ctx, result)

	s.logger.WithFields(logrus.Fields{
		"sports":    len(sports),
		"records":   result.RecordsCount,
		"accepted":  result.AcceptedCount,
		"rejected":  result.RejectedCount,
		"committed": result.CommittedCount,
		"movements": result.MovementCount,
	}).Info("采集完成")
	return result
}

// targetSports 确定本次采集的运动列表：指定一个或配置的全集（排序保证顺序稳定）
func (s *CollectService) targetSports(sportCode string) ([]string, error) {
	if sportCode != "" {
		sportCode = strings.ToUpper(sportCode)
		if _, ok := s.cfg.Collect.Sports[sportCode]; !ok {
			return nil, fmt.Errorf("未知运动代码: %s", sportCode)
		}
		return []string{sportCode}, nil
	}
	sports := make([]string, 0, len(s.cfg.Collect.Sports))
	for code := range s.cfg.Collect.Sports {
		sports = append(sports, code)
	}
	sort.Strings(sports)
	return sports, nil
}

// collectSport 单个运动的完整流水线。返回error时该sport记为失败，其余sport继续
func (s *CollectService) collectSport(ctx context.Context, sportCode string, result *CollectionResult) error {
	apiKey := s.cfg.Collect.Sports[sportCode]

	fetchCtx := ctx
	if s.cfg.OddsAPI.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.OddsAPI.Timeout)*time.Second)
		defer cancel()
	}

	events, err := s.fetcher.FetchOdds(fetchCtx, apiKey, s.cfg.Collect.Markets)
	if err != nil {
		return err
	}

	records := s.normalizer.Normalize(sportCode, events)
	result.RecordsCount += len(records)

	accepted, rejected := collector.SplitValid(records)
	result.AcceptedCount += len(accepted)
	result.RejectedCount += len(rejected)
	for _, rej := range rejected {
		s.logger.WithFields(logrus.Fields{
			"key":    rej.Record.Key(),
			"reason": rej.Reason,
		}).Debug("记录被校验拒绝")
	}

	// 庄家与比赛在单次运行内做缓存，避免每条记录都查库
	bookCache := make(map[string]*model.Sportsbook)
	gameCache := make(map[string]*model.Game)

	var commitErrs int
	for i := range accepted {
		rec := &accepted[i]

		book, ok := bookCache[rec.SportsbookKey]
		if !ok {
			book, err = s.bookRepo.GetOrCreate(ctx, rec.SportsbookKey, rec.SportsbookName)
			if err != nil {
				s.logger.WithError(err).WithField("sportsbook", rec.SportsbookKey).Error("解析庄家失败")
				commitErrs++
				continue
			}
			bookCache[rec.SportsbookKey] = book
		}

		game, cached := gameCache[rec.ExternalID]
		if !cached {
			game, err = s.gameRepo.FindByExternalID(ctx, rec.SportCode, rec.ExternalID)
			if err != nil {
				s.logger.WithError(err).WithField("external_id", rec.ExternalID).Error("查询比赛失败")
				commitErrs++
				continue
			}
			gameCache[rec.ExternalID] = game
		}
		if game == nil {
			// 台账只跟踪已知比赛，比赛创建不在本服务范围内
			result.SkippedCount++
			continue
		}

		recordedAt := rec.LastUpdate
		if recordedAt.IsZero() {
			recordedAt = time.Now()
		}
		mv, res, err := s.oddsRepo.Commit(ctx, repository.CommitInput{
			GameID:       game.ID,
			SportsbookID: book.ID,
			MarketType:   rec.MarketType,
			Selection:    rec.Selection,
			// 校验保证accepted记录的price非空
			Price:        *rec.Price,
			Line:         rec.Line,
			RecordedAt:   recordedAt,
		})
		if err != nil {
			// 错误只归属于这一条记录，批次继续
			s.logger.WithError(err).WithField("key", rec.Key()).Error("提交台账失败")
			commitErrs++
			continue
		}

		switch res {
		case repository.CommitInserted:
			result.CommittedCount++
		case repository.CommitMoved:
			result.CommittedCount++
			result.MovementCount++
			if s.notifier != nil && mv != nil {
				s.notifier.NotifyMovement(mv, game, book.Name)
			}
		case repository.CommitUnchanged:
			result.UnchangedCount++
		}
	}

	if commitErrs > 0 {
		return fmt.Errorf("%d条记录处理失败", commitErrs)
	}
	return nil
}

// saveRun 落一条采集运行记录，失败只记日志
func (s *CollectService) saveRun(ctx context.Context, result *CollectionResult) {
	meta, err := json.Marshal(result.Metadata)
	if err != nil {
		meta = []byte("{}")
	}
	run := &model.CollectionRun{
		Success:        result.Success,
		RecordsCount:   result.RecordsCount,
		AcceptedCount:  result.AcceptedCount,
		RejectedCount:  result.RejectedCount,
		CommittedCount: result.CommittedCount,
		UnchangedCount: result.UnchangedCount,
		MovementCount:  result.MovementCount,
		Metadata:       datatypes.JSON(meta),
		StartedAt:      result.StartedAt,
		FinishedAt:     result.FinishedAt,
	}
	if result.Error != "" {
		e := result.Error
		run.Error = &e
	}
	if err := s.runRepo.Save(ctx, run); err != nil {
		s.logger.WithError(err).Warn("保存采集运行记录失败")
	}
}

// RunLoop 后台定时采集，interval<=0时不启动。ctx取消后返回
func (s *CollectService) RunLoop(ctx context.Context) {
	interval := s.cfg.Collect.Interval
	if interval <= 0 {
		return
	}
	s.logger.WithField("interval", interval.String()).Info("后台采集循环已启动")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("后台采集循环已停止")
			return
		case <-ticker.C:
			s.Collect(ctx, "")
		}
	}
}
