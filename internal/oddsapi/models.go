package oddsapi

import "time"

// Event TheOddsAPI返回的单场比赛（event → bookmakers → markets → outcomes）
type Event struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	SportTitle   string      `json:"sport_title"`
	CommenceTime time.Time   `json:"commence_time"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Bookmakers   []Bookmaker `json:"bookmakers"`
}

// Bookmaker 单个庄家在该场比赛下的所有市场报价
type Bookmaker struct {
	Key        string    `json:"key"`
	Title      string    `json:"title"`
	LastUpdate time.Time `json:"last_update"`
	Markets    []Market  `json:"markets"`
}

// Market 单个市场（spreads/h2h/totals）下的各方向报价
type Market struct {
	Key      string    `json:"key"`
	Outcomes []Outcome `json:"outcomes"`
}

// Outcome 单个投注方向。Price为美式赔率，指针保留缺失态（缺价的outcome在校验阶段拒绝），
// Point仅让分盘/大小盘存在
type Outcome struct {
	Name  string   `json:"name"`
	Price *int     `json:"price"`
	Point *float64 `json:"point,omitempty"`
}

// Sport TheOddsAPI的运动条目（/v4/sports）
type Sport struct {
	Key    string `json:"key"`
	Group  string `json:"group"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

// QuotaStatus 请求配额快照，由客户端从响应头维护。
// 配额的强制（超限阻断）由TheOddsAPI侧完成，这里只跟踪上报
type QuotaStatus struct {
	RequestsUsed      int       `json:"requests_used"`
	RequestsRemaining int       `json:"requests_remaining"`
	MonthlyLimit      int       `json:"monthly_limit"`
	LastRequestAt     time.Time `json:"last_request_at"`
}
