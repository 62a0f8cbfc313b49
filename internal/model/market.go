package model

import (
	"math"
	"strings"
)

// MarketType 市场类型枚举（盘口类型）
type MarketType string

const (
	MarketSpread    MarketType = "spread"    // 让分盘
	MarketMoneyline MarketType = "moneyline" // 独赢盘
	MarketTotal     MarketType = "total"     // 大小盘
	MarketUnknown   MarketType = "unknown"   // 未识别的市场，校验阶段必定被拒绝
)

// marketKeyMap TheOddsAPI市场key → 规范市场类型的固定映射表
var marketKeyMap = map[string]MarketType{
	"spreads": MarketSpread,
	"h2h":     MarketMoneyline,
	"totals":  MarketTotal,
}

// MarketTypeFromKey 将外部市场key映射为规范市场类型。
// 未映射的key返回MarketUnknown（原始key由记录的RawMarketKey保留，便于排查新盘口）
func MarketTypeFromKey(key string) MarketType {
	if mt, ok := marketKeyMap[key]; ok {
		return mt
	}
	return MarketUnknown
}

// Valid 是否为三种规范市场类型之一
func (m MarketType) Valid() bool {
	switch m {
	case MarketSpread, MarketMoneyline, MarketTotal:
		return true
	}
	return false
}

// Selection 投注方向枚举
type Selection string

const (
	SelectionHome  Selection = "home"
	SelectionAway  Selection = "away"
	SelectionOver  Selection = "over"
	SelectionUnder Selection = "under"
	SelectionOther Selection = "other" // 兜底方向，校验阶段必定被拒绝
)

// SelectionFromOutcome 将outcome名称映射为投注方向。
// 主客队按队名精确匹配（区分大小写），over/under不区分大小写，其余归入SelectionOther
func SelectionFromOutcome(outcomeName, homeTeam, awayTeam string) Selection {
	switch {
	case outcomeName == homeTeam:
		return SelectionHome
	case outcomeName == awayTeam:
		return SelectionAway
	case strings.EqualFold(outcomeName, "over"):
		return SelectionOver
	case strings.EqualFold(outcomeName, "under"):
		return SelectionUnder
	}
	return SelectionOther
}

// Valid 是否为四种可入库的投注方向之一
func (s Selection) Valid() bool {
	switch s {
	case SelectionHome, SelectionAway, SelectionOver, SelectionUnder:
		return true
	}
	return false
}

// MovementSize 计算盘口移动幅度 |new - old|。任一侧无盘口线时返回nil
// （独赢盘只有价格变动，movement_size为空但仍会生成移动事件）
func MovementSize(oldLine, newLine *float64) *float64 {
	if oldLine == nil || newLine == nil {
		return nil
	}
	size := math.Abs(*newLine - *oldLine)
	return &size
}

// PriceInRange 美式赔率合法区间 [-10000, 10000]，边界值有效
func PriceInRange(price int) bool {
	return price >= -10000 && price <= 10000
}
