package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jeanpatrickreyes/ai-pro-sports/internal/model"
	"github.com/jeanpatrickreyes/ai-pro-sports/internal/repository"
)

// AggregationService 共识线与最优赔率聚合。只读台账的当前条目，从不改写台账状态
type AggregationService struct {
	oddsRepo repository.OddsRepository
	gameRepo repository.GameRepository
	bookRepo repository.SportsbookRepository
	logger   *logrus.Logger
}

// NewAggregationService 创建聚合服务
func NewAggregationService(
	oddsRepo repository.OddsRepository,
	gameRepo repository.GameRepository,
	bookRepo repository.SportsbookRepository,
	logger *logrus.Logger,
) *AggregationService {
	return &AggregationService{
		oddsRepo: oddsRepo,
		gameRepo: gameRepo,
		bookRepo: bookRepo,
		logger:   logger,
	}
}

// OddsLine 单个庄家在一场比赛下的报价透视行
type OddsLine struct {
	Sportsbook      string    `json:"sportsbook"`
	IsSharp         bool      `json:"is_sharp"`
	SpreadHome      *float64  `json:"spread_home,omitempty"`
	SpreadAway      *float64  `json:"spread_away,omitempty"`
	SpreadHomePrice *int      `json:"spread_home_odds,omitempty"`
	SpreadAwayPrice *int      `json:"spread_away_odds,omitempty"`
	Total           *float64  `json:"total,omitempty"`
	OverPrice       *int      `json:"over_odds,omitempty"`
	UnderPrice      *int      `json:"under_odds,omitempty"`
	MoneylineHome   *int      `json:"moneyline_home,omitempty"`
	MoneylineAway   *int      `json:"moneyline_away,omitempty"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// GameOddsView 一场比赛的全市场视图：各庄家报价 + 共识线 + 各方向最优价
type GameOddsView struct {
	GameID          string     `json:"game_id"`
	SportCode       string     `json:"sport_code"`
	HomeTeam        string     `json:"home_team"`
	AwayTeam        string     `json:"away_team"`
	GameDate        time.Time  `json:"game_date"`
	Odds            []OddsLine `json:"odds"`
	ConsensusSpread *float64   `json:"consensus_spread,omitempty"`
	ConsensusTotal  *float64   `json:"consensus_total,omitempty"`
	BestHomeSpread  *int       `json:"best_home_spread_odds,omitempty"`
	BestAwaySpread  *int       `json:"best_away_spread_odds,omitempty"`
	BestOver        *int       `json:"best_over_odds,omitempty"`
	BestUnder       *int       `json:"best_under_odds,omitempty"`
	BestHomeML      *int       `json:"best_home_ml,omitempty"`
	BestAwayML      *int       `json:"best_away_ml,omitempty"`
}

// PriceQuote 最优价对比数组中的一条报价
type PriceQuote struct {
	Sportsbook string    `json:"sportsbook"`
	Price      int       `json:"price"`
	Line       *float64  `json:"line,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// BestOdds 单个 (market, selection) 的最优报价及全部参与对比的报价
type BestOdds struct {
	GameID     string           `json:"game_id"`
	MarketType model.MarketType `json:"market_type"`
	Selection  model.Selection  `json:"selection"`
	Line       *float64         `json:"line,omitempty"`
	BestPrice  int              `json:"best_price"`
	Sportsbook string           `json:"sportsbook"`
	Comparison []PriceQuote     `json:"comparison"`
}

// MovementView 移动事件 + 方向
type MovementView struct {
	GameID       string           `json:"game_id"`
	Sportsbook   string           `json:"sportsbook"`
	MarketType   model.MarketType `json:"market_type"`
	Selection    model.Selection  `json:"selection"`
	OldLine      *float64         `json:"old_line,omitempty"`
	NewLine      *float64         `json:"new_line,omitempty"`
	OldPrice     *int             `json:"old_price,omitempty"`
	NewPrice     *int             `json:"new_price,omitempty"`
	MovementSize *float64         `json:"movement_size,omitempty"`
	Direction    string           `json:"direction"` // up/down/unchanged
	DetectedAt   time.Time        `json:"detected_at"`
}

// GameOdds 返回一场比赛的全市场视图
func (s *AggregationService) GameOdds(ctx context.Context, gameID string) (*GameOddsView, error) {
	game, err := s.gameRepo.GetByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("查询比赛失败: %w", err)
	}
	entries, err := s.oddsRepo.ListCurrentByGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("查询当前赔率失败: %w", err)
	}
	view := s.buildView(game, entries)
	return view, nil
}

// LiveOdds 未来24小时内开赛比赛的赔率视图，没有任何报价的比赛不出现在结果中
func (s *AggregationService) LiveOdds(ctx context.Context, sportCode string) ([]*GameOddsView, error) {
	now := time.Now()
	games, err := s.gameRepo.ListUpcoming(ctx, sportCode, now, now.Add(24*time.Hour), 100)
	if err != nil {
		return nil, fmt.Errorf("查询比赛失败: %w", err)
	}
	views := make([]*GameOddsView, 0, len(games))
	for _, game := range games {
		entries, err := s.oddsRepo.ListCurrentByGame(ctx, game.ID)
		if err != nil {
			s.logger.WithError(err).WithField("game_id", game.ID).Warn("查询当前赔率失败，跳过该场")
			continue
		}
		if len(entries) == 0 {
			continue
		}
		views = append(views, s.buildView(game, entries))
	}
	return views, nil
}

// BestOdds 每个 (market, selection) 组合的最优报价，附带完整对比数组供调用方复核
func (s *AggregationService) BestOdds(ctx context.Context, gameID string) ([]BestOdds, error) {
	entries, err := s.oddsRepo.ListCurrentByGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("查询当前赔率失败: %w", err)
	}
	return BestOddsFromEntries(gameID, entries), nil
}

// marketSides 全部六个可报价组合
var marketSides = []struct {
	Market    model.MarketType
	Selection model.Selection
}{
	{model.MarketSpread, model.SelectionHome},
	{model.MarketSpread, model.SelectionAway},
	{model.MarketTotal, model.SelectionOver},
	{model.MarketTotal, model.SelectionUnder},
	{model.MarketMoneyline, model.SelectionHome},
	{model.MarketMoneyline, model.SelectionAway},
}

// BestOddsFromEntries 从当前条目集合计算各组合最优价。
// 价格相同取recorded_at更早者（先见先得），保证结果确定
func BestOddsFromEntries(gameID string, entries []repository.CurrentOddsEntry) []BestOdds {
	var results []BestOdds
	for _, ms := range marketSides {
		var best *repository.CurrentOddsEntry
		var comparison []PriceQuote
		for i := range entries {
			e := &entries[i]
			if e.MarketType != ms.Market || e.Selection != ms.Selection {
				continue
			}
			comparison = append(comparison, PriceQuote{
				Sportsbook: e.SportsbookName,
				Price:      e.Price,
				Line:       e.Line,
				RecordedAt: e.RecordedAt,
			})
			if best == nil ||
				e.Price > best.Price ||
				(e.Price == best.Price && e.RecordedAt.Before(best.RecordedAt)) {
				best = e
			}
		}
		if best == nil {
			continue
		}
		results = append(results, BestOdds{
			GameID:     gameID,
			MarketType: ms.Market,
			Selection:  ms.Selection,
			Line:       best.Line,
			BestPrice:  best.Price,
			Sportsbook: best.SportsbookName,
			Comparison: comparison,
		})
	}
	return results
}

// Movements 移动历史，可按庄家key过滤
func (s *AggregationService) Movements(ctx context.Context, gameID, sportsbookKey string) ([]MovementView, error) {
	var bookID string
	books, err := s.bookRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询庄家失败: %w", err)
	}
	nameByID := make(map[string]string, len(books))
	for _, b := range books {
		nameByID[b.ID] = b.Name
		if sportsbookKey != "" && b.APIKey == sportsbookKey {
			bookID = b.ID
		}
	}
	if sportsbookKey != "" && bookID == "" {
		return []MovementView{}, nil
	}

	movements, err := s.oddsRepo.ListMovements(ctx, gameID, bookID)
	if err != nil {
		return nil, fmt.Errorf("查询移动事件失败: %w", err)
	}

	views := make([]MovementView, 0, len(movements))
	for _, m := range movements {
		views = append(views, MovementView{
			GameID:       m.GameID,
			Sportsbook:   nameByID[m.SportsbookID],
			MarketType:   m.MarketType,
			Selection:    m.Selection,
			OldLine:      m.OldLine,
			NewLine:      m.NewLine,
			OldPrice:     m.OldPrice,
			NewPrice:     m.NewPrice,
			MovementSize: m.MovementSize,
			Direction:    movementDirection(m),
			DetectedAt:   m.DetectedAt,
		})
	}
	return views, nil
}

// movementDirection 盘口线移动方向；独赢盘无线时按价格变化判断
func movementDirection(m *model.OddsMovement) string {
	var diff float64
	switch {
	case m.OldLine != nil && m.NewLine != nil:
		diff = *m.NewLine - *m.OldLine
	case m.OldPrice != nil && m.NewPrice != nil:
		diff = float64(*m.NewPrice - *m.OldPrice)
	}
	switch {
	case diff > 0:
		return "up"
	case diff < 0:
		return "down"
	}
	return "unchanged"
}

// CaptureClosingLines 收盘线快照：Pinnacle基准线 + 全市场共识，按game_id幂等
func (s *AggregationService) CaptureClosingLines(ctx context.Context, gameID string) error {
	entries, err := s.oddsRepo.ListCurrentByGame(ctx, gameID)
	if err != nil {
		return fmt.Errorf("查询当前赔率失败: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("比赛%s没有可用赔率", gameID)
	}

	cl := &model.ClosingLine{
		GameID:          gameID,
		ConsensusSpread: ConsensusSpread(entries),
		ConsensusTotal:  ConsensusTotal(entries),
		RecordedAt:      time.Now(),
	}
	for i := range entries {
		e := &entries[i]
		if e.SportsbookKey != "pinnacle" {
			continue
		}
		switch {
		case e.MarketType == model.MarketSpread && e.Selection == model.SelectionHome:
			cl.PinnacleSpread = e.Line
		case e.MarketType == model.MarketTotal && e.Selection == model.SelectionOver:
			cl.PinnacleTotal = e.Line
		case e.MarketType == model.MarketMoneyline && e.Selection == model.SelectionHome:
			p := e.Price
			cl.PinnacleHomeML = &p
		case e.MarketType == model.MarketMoneyline && e.Selection == model.SelectionAway:
			p := e.Price
			cl.PinnacleAwayML = &p
		}
	}

	return s.oddsRepo.UpsertClosingLine(ctx, cl)
}

// ConsensusSpread 主队让分线的算术平均（保留一位小数），无样本时返回nil
func ConsensusSpread(entries []repository.CurrentOddsEntry) *float64 {
	var sum float64
	var count int
	for i := range entries {
		e := &entries[i]
		if e.MarketType == model.MarketSpread && e.Selection == model.SelectionHome && e.Line != nil {
			sum += *e.Line
			count++
		}
	}
	if count == 0 {
		return nil
	}
	avg := roundOne(sum / float64(count))
	return &avg
}

// ConsensusTotal 大小盘总分线的算术平均（保留一位小数），无样本时返回nil
func ConsensusTotal(entries []repository.CurrentOddsEntry) *float64 {
	var sum float64
	var count int
	for i := range entries {
		e := &entries[i]
		if e.MarketType == model.MarketTotal && e.Line != nil {
			sum += *e.Line
			count++
		}
	}
	if count == 0 {
		return nil
	}
	avg := roundOne(sum / float64(count))
	return &avg
}

func roundOne(v float64) float64 {
	return math.Round(v*10) / 10
}

// buildView 把当前条目透视为按庄家分组的视图，并计算共识线与各方向最优价
func (s *AggregationService) buildView(game *model.Game, entries []repository.CurrentOddsEntry) *GameOddsView {
	view := &GameOddsView{
		GameID:          game.ID,
		SportCode:       game.SportCode,
		HomeTeam:        game.HomeTeam,
		AwayTeam:        game.AwayTeam,
		GameDate:        game.GameDate,
		Odds:            []OddsLine{},
		ConsensusSpread: ConsensusSpread(entries),
		ConsensusTotal:  ConsensusTotal(entries),
	}

	lineByBook := make(map[string]*OddsLine)
	var bookOrder []string
	for i := range entries {
		e := &entries[i]
		line, ok := lineByBook[e.SportsbookID]
		if !ok {
			line = &OddsLine{Sportsbook: e.SportsbookName, IsSharp: e.IsSharp}
			lineByBook[e.SportsbookID] = line
			bookOrder = append(bookOrder, e.SportsbookID)
		}
		if e.RecordedAt.After(line.RecordedAt) {
			line.RecordedAt = e.RecordedAt
		}
		price := e.Price
		switch {
		case e.MarketType == model.MarketSpread && e.Selection == model.SelectionHome:
			line.SpreadHome = e.Line
			line.SpreadHomePrice = &price
		case e.MarketType == model.MarketSpread && e.Selection == model.SelectionAway:
			line.SpreadAway = e.Line
			line.SpreadAwayPrice = &price
		case e.MarketType == model.MarketTotal && e.Selection == model.SelectionOver:
			line.Total = e.Line
			line.OverPrice = &price
		case e.MarketType == model.MarketTotal && e.Selection == model.SelectionUnder:
			if line.Total == nil {
				line.Total = e.Line
			}
			line.UnderPrice = &price
		case e.MarketType == model.MarketMoneyline && e.Selection == model.SelectionHome:
			line.MoneylineHome = &price
		case e.MarketType == model.MarketMoneyline && e.Selection == model.SelectionAway:
			line.MoneylineAway = &price
		}
	}
	for _, id := range bookOrder {
		view.Odds = append(view.Odds, *lineByBook[id])
	}

	for _, best := range BestOddsFromEntries(game.ID, entries) {
		price := best.BestPrice
		switch {
		case best.MarketType == model.MarketSpread && best.Selection == model.SelectionHome:
			view.BestHomeSpread = &price
		case best.MarketType == model.MarketSpread && best.Selection == model.SelectionAway:
			view.BestAwaySpread = &price
		case best.MarketType == model.MarketTotal && best.Selection == model.SelectionOver:
			view.BestOver = &price
		case best.MarketType == model.MarketTotal && best.Selection == model.SelectionUnder:
			view.BestUnder = &price
		case best.MarketType == model.MarketMoneyline && best.Selection == model.SelectionHome:
			view.BestHomeML = &price
		case best.MarketType == model.MarketMoneyline && best.Selection == model.SelectionAway:
			view.BestAwayML = &price
		}
	}
	return view
}
