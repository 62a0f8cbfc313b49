package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Game 比赛主表。赔率只跟踪系统已知的比赛，
// (sport_code, external_id) 唯一对应TheOddsAPI的一场比赛
type Game struct {
	ID         string    `gorm:"column:id;type:varchar(36);primaryKey;comment:UUID主键"`
	SportCode  string    `gorm:"column:sport_code;type:varchar(16);not null;uniqueIndex:uq_games_sport_external;comment:运动代码（NFL/NBA等）"`
	ExternalID string    `gorm:"column:external_id;type:varchar(64);not null;uniqueIndex:uq_games_sport_external;comment:TheOddsAPI赛事ID"`
	HomeTeam   string    `gorm:"column:home_team;type:varchar(128);not null;comment:主队名称"`
	AwayTeam   string    `gorm:"column:away_team;type:varchar(128);not null;comment:客队名称"`
	GameDate   time.Time `gorm:"column:game_date;type:timestamp;not null;index;comment:开赛时间"`
	Status     string    `gorm:"column:status;type:varchar(16);default:scheduled;comment:状态：scheduled/live/final"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Sportsbook 博彩公司（provider）。api_key唯一，首次见到时创建，之后复用
type Sportsbook struct {
	ID        string    `gorm:"column:id;type:varchar(36);primaryKey;comment:UUID主键"`
	Name      string    `gorm:"column:name;type:varchar(128);not null;comment:展示名称"`
	APIKey    string    `gorm:"column:api_key;type:varchar(64);uniqueIndex;not null;comment:TheOddsAPI的bookmaker key"`
	IsSharp   bool      `gorm:"column:is_sharp;type:boolean;default:false;comment:是否sharp庄家（低水位高效率定价）"`
	IsActive  bool      `gorm:"column:is_active;type:boolean;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Odds 赔率台账条目。同一 (game, sportsbook, market, selection) 键下
// 任意时刻最多一条 is_current=true；赔率变化时旧条目翻转为历史，插入新条目
type Odds struct {
	ID           string     `gorm:"column:id;type:varchar(36);primaryKey;comment:UUID主键"`
	GameID       string     `gorm:"column:game_id;type:varchar(36);not null;index:ix_odds_game_market;comment:关联比赛ID"`
	SportsbookID string     `gorm:"column:sportsbook_id;type:varchar(36);not null;index:ix_odds_game_market;comment:关联庄家ID"`
	MarketType   MarketType `gorm:"column:market_type;type:varchar(20);not null;index:ix_odds_game_market;comment:市场类型"`
	Selection    Selection  `gorm:"column:selection;type:varchar(20);not null;comment:投注方向"`
	Price        int        `gorm:"column:price;type:int;not null;comment:美式赔率"`
	Line         *float64   `gorm:"column:line;type:numeric(8,2);comment:盘口线（独赢盘为空）"`
	IsCurrent    bool       `gorm:"column:is_current;type:boolean;not null;default:true;index;comment:是否当前条目"`
	RecordedAt   time.Time  `gorm:"column:recorded_at;type:timestamp;not null;index"`
}

// SameQuote 与传入的 (line, price) 是否完全一致（幂等判定）
func (o *Odds) SameQuote(price int, line *float64) bool {
	if o.Price != price {
		return false
	}
	if (o.Line == nil) != (line == nil) {
		return false
	}
	return o.Line == nil || *o.Line == *line
}

// OddsMovement 盘口移动事件。仅当新报价的line或price与当前条目不同时生成
type OddsMovement struct {
	ID           string     `gorm:"column:id;type:varchar(36);primaryKey;comment:UUID主键"`
	OddsID       string     `gorm:"column:odds_id;type:varchar(36);not null;comment:新当前条目ID"`
	GameID       string     `gorm:"column:game_id;type:varchar(36);not null;index;comment:关联比赛ID"`
	SportsbookID string     `gorm:"column:sportsbook_id;type:varchar(36);not null;comment:关联庄家ID"`
	MarketType   MarketType `gorm:"column:market_type;type:varchar(20);not null;comment:市场类型"`
	Selection    Selection  `gorm:"column:selection;type:varchar(20);not null;comment:投注方向"`
	OldLine      *float64   `gorm:"column:old_line;type:numeric(8,2)"`
	NewLine      *float64   `gorm:"column:new_line;type:numeric(8,2)"`
	OldPrice     *int       `gorm:"column:old_price;type:int"`
	NewPrice     *int       `gorm:"column:new_price;type:int"`
	MovementSize *float64   `gorm:"column:movement_size;type:numeric(8,2);comment:|new_line-old_line|，任一侧无线时为空"`
	DetectedAt   time.Time  `gorm:"column:detected_at;type:timestamp;not null;index"`
}

// ClosingLine 收盘线快照（Pinnacle基准 + 全市场共识），供下游CLV计算使用
type ClosingLine struct {
	ID              string    `gorm:"column:id;type:varchar(36);primaryKey;comment:UUID主键"`
	GameID          string    `gorm:"column:game_id;type:varchar(36);uniqueIndex;not null;comment:关联比赛ID"`
	PinnacleSpread  *float64  `gorm:"column:pinnacle_spread;type:numeric(8,2)"`
	PinnacleTotal   *float64  `gorm:"column:pinnacle_total;type:numeric(8,2)"`
	PinnacleHomeML  *int      `gorm:"column:pinnacle_home_ml;type:int"`
	PinnacleAwayML  *int      `gorm:"column:pinnacle_away_ml;type:int"`
	ConsensusSpread *float64  `gorm:"column:consensus_spread;type:numeric(8,2)"`
	ConsensusTotal  *float64  `gorm:"column:consensus_total;type:numeric(8,2)"`
	RecordedAt      time.Time `gorm:"column:recorded_at;type:timestamp;not null"`
}

// CollectionRun 一次采集运行的结果记录（metadata为JSONB：sports/markets/剩余配额）
type CollectionRun struct {
	ID             string         `gorm:"column:id;type:varchar(36);primaryKey;comment:UUID主键"`
	Success        bool           `gorm:"column:success;type:boolean;not null"`
	RecordsCount   int            `gorm:"column:records_count;type:int;not null;comment:归一化产出的记录数"`
	AcceptedCount  int            `gorm:"column:accepted_count;type:int;not null;comment:通过校验的记录数"`
	RejectedCount  int            `gorm:"column:rejected_count;type:int;not null;comment:被校验拒绝的记录数"`
	CommittedCount int            `gorm:"column:committed_count;type:int;not null;comment:成功写入台账的记录数"`
	UnchangedCount int            `gorm:"column:unchanged_count;type:int;not null;comment:幂等无操作的记录数"`
	MovementCount  int            `gorm:"column:movement_count;type:int;not null;comment:生成的移动事件数"`
	Error          *string        `gorm:"column:error;type:text;comment:各sport错误拼接，成功时为空"`
	Metadata       datatypes.JSON `gorm:"column:metadata;type:jsonb;comment:sports_collected/markets/requests_remaining"`
	StartedAt      time.Time      `gorm:"column:started_at;type:timestamp;not null"`
	FinishedAt     time.Time      `gorm:"column:finished_at;type:timestamp;not null"`
}

func (Game) TableName() string          { return "games" }
func (Sportsbook) TableName() string    { return "sportsbooks" }
func (Odds) TableName() string          { return "odds" }
func (OddsMovement) TableName() string  { return "odds_movements" }
func (ClosingLine) TableName() string   { return "closing_lines" }
func (CollectionRun) TableName() string { return "collection_runs" }

// UUID主键统一在应用侧生成，避免依赖数据库扩展
func (g *Game) BeforeCreate(*gorm.DB) error          { ensureID(&g.ID); return nil }
func (s *Sportsbook) BeforeCreate(*gorm.DB) error    { ensureID(&s.ID); return nil }
func (o *Odds) BeforeCreate(*gorm.DB) error          { ensureID(&o.ID); return nil }
func (m *OddsMovement) BeforeCreate(*gorm.DB) error  { ensureID(&m.ID); return nil }
func (c *ClosingLine) BeforeCreate(*gorm.DB) error   { ensureID(&c.ID); return nil }
func (r *CollectionRun) BeforeCreate(*gorm.DB) error { ensureID(&r.ID); return nil }

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
