package collector

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jeanpatrickreyes/ai-pro-sports/internal/model"
	"github.com/jeanpatrickreyes/ai-pro-sports/internal/oddsapi"
)

// Normalizer 把TheOddsAPI的嵌套结构（event → bookmakers → markets → outcomes）
// 拍平成规范赔率记录。单个outcome异常不影响其余记录的产出
type Normalizer struct {
	logger *logrus.Logger
}

// NewNormalizer 创建归一化器
func NewNormalizer(logger *logrus.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize 归一化一批赛事，返回拍平后的记录序列
func (n *Normalizer) Normalize(sportCode string, events []oddsapi.Event) []OddsRecord {
	var records []OddsRecord
	for i := range events {
		records = append(records, n.NormalizeEvent(sportCode, &events[i])...)
	}
	return records
}

// NormalizeEvent 归一化单场比赛的所有庄家报价
func (n *Normalizer) NormalizeEvent(sportCode string, event *oddsapi.Event) []OddsRecord {
	var records []OddsRecord

	for _, book := range event.Bookmakers {
		for _, market := range book.Markets {
			marketType := model.MarketTypeFromKey(market.Key)
			if marketType == model.MarketUnknown {
				// 未知市场照常产出记录（后续校验会拒绝），但留日志便于发现新盘口
				n.logger.WithFields(logrus.Fields{
					"market_key": market.Key,
					"sportsbook": book.Key,
				}).Debug("未识别的市场key")
			}

			for _, outcome := range market.Outcomes {
				selection := model.SelectionFromOutcome(outcome.Name, event.HomeTeam, event.AwayTeam)

				rec := OddsRecord{
					SportCode:      sportCode,
					ExternalID:     event.ID,
					HomeTeam:       event.HomeTeam,
					AwayTeam:       event.AwayTeam,
					CommenceTime:   event.CommenceTime,
					SportsbookKey:  book.Key,
					SportsbookName: book.Title,
					MarketType:     marketType,
					Selection:      selection,
					Price:          outcome.Price,
					Line:           outcome.Point,
					LastUpdate:     book.LastUpdate,
				}
				if marketType == model.MarketUnknown {
					rec.RawMarketKey = market.Key
				}
				if selection == model.SelectionOther {
					rec.RawOutcome = strings.ToLower(outcome.Name)
				}
				records = append(records, rec)
			}
		}
	}
	return records
}
