package collector

import (
	"time"

	"github.com/jeanpatrickreyes/ai-pro-sports/internal/model"
)

// OddsRecord 规范化后的单条赔率记录（一个outcome对应一条）。
// 记录不可变：价格或盘口线变化产生新记录，绝不原地修改
type OddsRecord struct {
	SportCode      string           `json:"sport_code"`
	ExternalID     string           `json:"external_id"` // TheOddsAPI赛事ID
	HomeTeam       string           `json:"home_team"`
	AwayTeam       string           `json:"away_team"`
	CommenceTime   time.Time        `json:"commence_time"`
	SportsbookKey  string           `json:"sportsbook_key"`
	SportsbookName string           `json:"sportsbook_name"`
	MarketType     model.MarketType `json:"market_type"`
	Selection      model.Selection  `json:"selection"`
	// RawMarketKey/RawOutcome 保留未映射的原始值，便于排查新庄家/新盘口
	RawMarketKey string    `json:"raw_market_key,omitempty"`
	RawOutcome   string    `json:"raw_outcome,omitempty"`
	Price        *int      `json:"price"`          // 美式赔率，原样拷贝（缺失时为空，由校验拒绝）
	Line         *float64  `json:"line,omitempty"` // 盘口线，原样拷贝
	LastUpdate   time.Time `json:"last_update"`
}

// Key 台账键 (external_id, sportsbook, market, selection) 的字符串形式，仅用于日志
func (r *OddsRecord) Key() string {
	return r.ExternalID + "/" + r.SportsbookKey + "/" + string(r.MarketType) + "/" + string(r.Selection)
}
