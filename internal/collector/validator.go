package collector

import (
	"fmt"

	"github.com/jeanpatrickreyes/ai-pro-sports/internal/model"
)

// RejectedRecord 被校验拒绝的记录及原因
type RejectedRecord struct {
	Record OddsRecord `json:"record"`
	Reason string     `json:"reason"`
}

// ValidateRecord 单条记录的结构与范围校验，合法返回nil。
// 只做结构/范围检查，不判断赔率的业务合理性
func ValidateRecord(r *OddsRecord) error {
	if r.ExternalID == "" {
		return fmt.Errorf("缺少external_id")
	}
	if r.SportsbookKey == "" {
		return fmt.Errorf("缺少sportsbook_key")
	}
	if !r.MarketType.Valid() {
		if r.RawMarketKey != "" {
			return fmt.Errorf("非规范市场类型: %s", r.RawMarketKey)
		}
		return fmt.Errorf("非规范市场类型: %s", r.MarketType)
	}
	if !r.Selection.Valid() {
		if r.RawOutcome != "" {
			return fmt.Errorf("非规范投注方向: %s", r.RawOutcome)
		}
		return fmt.Errorf("非规范投注方向: %s", r.Selection)
	}
	if r.Price == nil {
		return fmt.Errorf("缺少price")
	}
	if !model.PriceInRange(*r.Price) {
		return fmt.Errorf("赔率越界: %d", *r.Price)
	}
	return nil
}

// SplitValid 批量校验：逐条拒绝，批次继续。
// 返回通过的记录和带原因的拒绝记录（拒绝数会上报到采集结果，不再静默丢弃）
func SplitValid(records []OddsRecord) (accepted []OddsRecord, rejected []RejectedRecord) {
	for i := range records {
		if err := ValidateRecord(&records[i]); err != nil {
			rejected = append(rejected, RejectedRecord{Record: records[i], Reason: err.Error()})
			continue
		}
		accepted = append(accepted, records[i])
	}
	return accepted, rejected
}
