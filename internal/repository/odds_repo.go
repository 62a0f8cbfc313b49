package repository

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jeanpatrickreyes/ai-pro-sports/internal/model"
)

// CommitResult 单条记录提交的结果分类
type CommitResult int

const (
	CommitInserted  CommitResult = iota // 该键首条记录，直接成为当前条目
	CommitMoved                         // 与当前条目不同，翻转旧条目并生成移动事件
	CommitUnchanged                     // (line, price) 完全一致，幂等无操作
)

// CommitInput 提交到台账的一条报价
type CommitInput struct {
	GameID       string
	SportsbookID string
	MarketType   model.MarketType
	Selection    model.Selection
	Price        int
	Line         *float64
	RecordedAt   time.Time
}

// OddsRepository 赔率台账仓储。台账独占LedgerEntry的生命周期转换：
// 当前→历史的翻转与新条目插入在同一事务内完成
type OddsRepository interface {
	// Commit 提交一条报价。同键并发提交被线性化；瞬时存储错误整体重试一次，
	// 仍失败时错误只归属于这一条记录
	Commit(ctx context.Context, in CommitInput) (*model.OddsMovement, CommitResult, error)
	// ListCurrentByGame 某场比赛的全部当前条目（带庄家信息），聚合器只读入口
	ListCurrentByGame(ctx context.Context, gameID string) ([]CurrentOddsEntry, error)
	// ListCurrent 跨比赛的当前条目列表（运营查看用）
	ListCurrent(ctx context.Context, sportCode string, limit int) ([]CurrentOddsRow, error)
	// ListMovements 某场比赛的移动事件历史，可按庄家过滤
	ListMovements(ctx context.Context, gameID, sportsbookID string) ([]*model.OddsMovement, error)
	// UpsertClosingLine 收盘线快照按game_id幂等写入
	UpsertClosingLine(ctx context.Context, cl *model.ClosingLine) error
	GetClosingLine(ctx context.Context, gameID string) (*model.ClosingLine, error)
}

// CurrentOddsEntry 当前台账条目 + 所属庄家（聚合计算的输入）
type CurrentOddsEntry struct {
	ID             string           `json:"id"`
	GameID         string           `json:"game_id"`
	SportsbookID   string           `json:"sportsbook_id"`
	SportsbookKey  string           `json:"sportsbook_key"`
	SportsbookName string           `json:"sportsbook_name"`
	IsSharp        bool             `json:"is_sharp"`
	MarketType     model.MarketType `json:"market_type"`
	Selection      model.Selection  `json:"selection"`
	Price          int              `json:"price"`
	Line           *float64         `json:"line,omitempty"`
	RecordedAt     time.Time        `json:"recorded_at"`
}

// CurrentOddsRow 跨比赛列表行（带比赛信息）
type CurrentOddsRow struct {
	ID             string           `json:"id"`
	GameID         string           `json:"game_id"`
	SportCode      string           `json:"sport_code"`
	GameDate       time.Time        `json:"game_date"`
	HomeTeam       string           `json:"home_team"`
	AwayTeam       string           `json:"away_team"`
	SportsbookName string           `json:"sportsbook"`
	MarketType     model.MarketType `json:"market_type"`
	Selection      model.Selection  `json:"selection"`
	Price          int              `json:"price"`
	Line           *float64         `json:"line,omitempty"`
	RecordedAt     time.Time        `json:"recorded_at"`
}

type oddsRepository struct {
	db *gorm.DB
	// keyLocks 进程内按台账键分段互斥：同键提交线性化，异键提交互不争抢。
	// 事务内部另有is_current的CAS保护，互斥只用来避免无谓的冲突重试
	keyLocks [64]sync.Mutex
}

func NewOddsRepository(db *gorm.DB) OddsRepository {
	return &oddsRepository{db: db}
}

// errCurrentConflict 翻转当前条目时发现已被并发提交抢先翻转
var errCurrentConflict = errors.New("当前条目已被并发翻转")

func (r *oddsRepository) Commit(ctx context.Context, in CommitInput) (*model.OddsMovement, CommitResult, error) {
	lock := &r.keyLocks[r.keyIndex(in)]
	lock.Lock()
	defer lock.Unlock()

	mv, res, err := r.commitOnce(ctx, in)
	if err != nil && isTransient(err) {
		// 瞬时失败整体重试一次，事务保证不会出现两条/零条当前条目
		mv, res, err = r.commitOnce(ctx, in)
	}
	if err != nil {
		return nil, res, fmt.Errorf("提交台账失败: %w", err)
	}
	return mv, res, nil
}

// commitOnce 单次事务提交：查当前条目 → 无则插入 / 相同则no-op / 不同则翻转+插入+移动事件
func (r *oddsRepository) commitOnce(ctx context.Context, in CommitInput) (*model.OddsMovement, CommitResult, error) {
	var movement *model.OddsMovement
	result := CommitUnchanged

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Odds
		err := tx.Where(
			"game_id = ? AND sportsbook_id = ? AND market_type = ? AND selection = ? AND is_current = ?",
			in.GameID, in.SportsbookID, in.MarketType, in.Selection, true,
		).First(&existing).Error

		newEntry := model.Odds{
			GameID:       in.GameID,
			SportsbookID: in.SportsbookID,
			MarketType:   in.MarketType,
			Selection:    in.Selection,
			Price:        in.Price,
			Line:         in.Line,
			IsCurrent:    true,
			RecordedAt:   in.RecordedAt,
		}

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// 该键首次出现
			result = CommitInserted
			return tx.Create(&newEntry).Error

		case err != nil:
			return err

		case existing.SameQuote(in.Price, in.Line):
			// 幂等：重复报价不产生新条目也不产生移动事件
			result = CommitUnchanged
			return nil
		}

		// 报价变化：同一事务内翻转旧条目、插入新条目、记录移动事件。
		// WHERE带is_current=true做CAS保护，防止并发写者造成同键两条当前条目
		flip := tx.Model(&model.Odds{}).
			Where("id = ? AND is_current = ?", existing.ID, true).
			Update("is_current", false)
		if flip.Error != nil {
			return flip.Error
		}
		if flip.RowsAffected != 1 {
			return errCurrentConflict
		}
		if err := tx.Create(&newEntry).Error; err != nil {
			return err
		}

		oldPrice := existing.Price
		newPrice := in.Price
		movement = &model.OddsMovement{
			OddsID:       newEntry.ID,
			GameID:       in.GameID,
			SportsbookID: in.SportsbookID,
			MarketType:   in.MarketType,
			Selection:    in.Selection,
			OldLine:      existing.Line,
			NewLine:      in.Line,
			OldPrice:     &oldPrice,
			NewPrice:     &newPrice,
			MovementSize: model.MovementSize(existing.Line, in.Line),
			DetectedAt:   in.RecordedAt,
		}
		result = CommitMoved
		return tx.Create(movement).Error
	})
	if err != nil {
		return nil, result, err
	}
	return movement, result, nil
}

func (r *oddsRepository) keyIndex(in CommitInput) int {
	h := fnv.New32a()
	h.Write([]byte(in.GameID))
	h.Write([]byte(in.SportsbookID))
	h.Write([]byte(in.MarketType))
	h.Write([]byte(in.Selection))
	return int(h.Sum32() % uint32(len(r.keyLocks)))
}

// isTransient 连接类瞬时错误可重试，其余视为永久失败
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errCurrentConflict) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection reset", "broken pipe", "bad connection", "connection refused"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (r *oddsRepository) ListCurrentByGame(ctx context.Context, gameID string) ([]CurrentOddsEntry, error) {
	var entries []CurrentOddsEntry
	err := r.db.WithContext(ctx).
		Table("odds").
		Select(`odds.id, odds.game_id, odds.sportsbook_id, odds.market_type, odds.selection,
			odds.price, odds.line, odds.recorded_at,
			sportsbooks.api_key AS sportsbook_key, sportsbooks.name AS sportsbook_name, sportsbooks.is_sharp`).
		Joins("JOIN sportsbooks ON sportsbooks.id = odds.sportsbook_id").
		Where("odds.game_id = ? AND odds.is_current = ?", gameID, true).
		Order("odds.recorded_at ASC").
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *oddsRepository) ListCurrent(ctx context.Context, sportCode string, limit int) ([]CurrentOddsRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	db := r.db.WithContext(ctx).
		Table("odds").
		Select(`odds.id, odds.game_id, games.sport_code, games.game_date, games.home_team, games.away_team,
			sportsbooks.name AS sportsbook_name, odds.market_type, odds.selection,
			odds.price, odds.line, odds.recorded_at`).
		Joins("JOIN games ON games.id = odds.game_id").
		Joins("JOIN sportsbooks ON sportsbooks.id = odds.sportsbook_id").
		Where("odds.is_current = ?", true)
	if sportCode != "" {
		db = db.Where("games.sport_code = ?", strings.ToUpper(sportCode))
	}
	var rows []CurrentOddsRow
	if err := db.Order("odds.recorded_at DESC").Limit(limit).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *oddsRepository) ListMovements(ctx context.Context, gameID, sportsbookID string) ([]*model.OddsMovement, error) {
	db := r.db.WithContext(ctx).Where("game_id = ?", gameID)
	if sportsbookID != "" {
		db = db.Where("sportsbook_id = ?", sportsbookID)
	}
	var movements []*model.OddsMovement
	if err := db.Order("detected_at DESC").Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

func (r *oddsRepository) UpsertClosingLine(ctx context.Context, cl *model.ClosingLine) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "game_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"pinnacle_spread", "pinnacle_total", "pinnacle_home_ml", "pinnacle_away_ml",
			"consensus_spread", "consensus_total", "recorded_at",
		}),
	}).Create(cl).Error
}

func (r *oddsRepository) GetClosingLine(ctx context.Context, gameID string) (*model.ClosingLine, error) {
	var cl model.ClosingLine
	err := r.db.WithContext(ctx).Where("game_id = ?", gameID).First(&cl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cl, nil
}
