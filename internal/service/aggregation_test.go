package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeanpatrickreyes/ai-pro-sports/internal/model"
	"github.com/jeanpatrickreyes/ai-pro-sports/internal/repository"
)

func fptr(v float64) *float64 { return &v }

func entry(book string, sharp bool, market model.MarketType, sel model.Selection, price int, line *float64, at time.Time) repository.CurrentOddsEntry {
	return repository.CurrentOddsEntry{
		ID:             book + "-" + string(market) + "-" + string(sel),
		GameID:         "game-1",
		SportsbookID:   "id-" + book,
		SportsbookKey:  book,
		SportsbookName: book,
		IsSharp:        sharp,
		MarketType:     market,
		Selection:      sel,
		Price:          price,
		Line:           line,
		RecordedAt:     at,
	}
}

func TestConsensusSpread_MeanRoundedToOneDecimal(t *testing.T) {
	at := time.Now()
	entries := []repository.CurrentOddsEntry{
		entry("pinnacle", true, model.MarketSpread, model.SelectionHome, -110, fptr(-3.0), at),
		entry("fanduel", false, model.MarketSpread, model.SelectionHome, -108, fptr(-3.5), at),
		entry("draftkings", false, model.MarketSpread, model.SelectionHome, -112, fptr(-2.5), at),
		// 客队线不参与主队共识
		entry("pinnacle", true, model.MarketSpread, model.SelectionAway, -110, fptr(3.0), at),
	}

	consensus := ConsensusSpread(entries)
	require.NotNil(t, consensus)
	assert.Equal(t, -3.0, *consensus)
}

func TestConsensusSpread_NoSamples(t *testing.T) {
	at := time.Now()
	entries := []repository.CurrentOddsEntry{
		entry("pinnacle", true, model.MarketMoneyline, model.SelectionHome, -165, nil, at),
	}
	assert.Nil(t, ConsensusSpread(entries))
	assert.Nil(t, ConsensusSpread(nil))
}

func TestConsensusTotal_BothSidesCounted(t *testing.T) {
	at := time.Now()
	entries := []repository.CurrentOddsEntry{
		entry("pinnacle", true, model.MarketTotal, model.SelectionOver, -108, fptr(47.5), at),
		entry("pinnacle", true, model.MarketTotal, model.SelectionUnder, -112, fptr(47.5), at),
		entry("fanduel", false, model.MarketTotal, model.SelectionOver, -110, fptr(48.0), at),
	}

	consensus := ConsensusTotal(entries)
	require.NotNil(t, consensus)
	// (47.5+47.5+48.0)/3 = 47.67 → 47.7
	assert.Equal(t, 47.7, *consensus)
}

func TestBestOddsFromEntries_PicksHighestPrice(t *testing.T) {
	at := time.Now()
	entries := []repository.CurrentOddsEntry{
		entry("pinnacle", true, model.MarketSpread, model.SelectionHome, -110, fptr(-3.0), at),
		entry("fanduel", false, model.MarketSpread, model.SelectionHome, -105, fptr(-3.0), at.Add(time.Minute)),
		entry("draftkings", false, model.MarketSpread, model.SelectionHome, -112, fptr(-3.5), at),
	}

	results := BestOddsFromEntries("game-1", entries)
	require.Len(t, results, 1)

	best := results[0]
	assert.Equal(t, model.MarketSpread, best.MarketType)
	assert.Equal(t, model.SelectionHome, best.Selection)
	assert.Equal(t, -105, best.BestPrice)
	assert.Equal(t, "fanduel", best.Sportsbook)
	assert.Len(t, best.Comparison, 3)
}

func TestBestOddsFromEntries_TieBreaksOnEarlierRecord(t *testing.T) {
	at := time.Now()
	entries := []repository.CurrentOddsEntry{
		entry("fanduel", false, model.MarketMoneyline, model.SelectionAway, 145, nil, at.Add(time.Minute)),
		entry("pinnacle", true, model.MarketMoneyline, model.SelectionAway, 145, nil, at),
	}

	results := BestOddsFromEntries("game-1", entries)
	require.Len(t, results, 1)
	assert.Equal(t, "pinnacle", results[0].Sportsbook)
}

func TestBestOddsFromEntries_EmptyEntries(t *testing.T) {
	assert.Empty(t, BestOddsFromEntries("game-1", nil))
}

func TestMovementDirection(t *testing.T) {
	cases := []struct {
		name string
		m    model.OddsMovement
		want string
	}{
		{"线上移", model.OddsMovement{OldLine: fptr(-3.0), NewLine: fptr(-2.5)}, "up"},
		{"线下移", model.OddsMovement{OldLine: fptr(-3.0), NewLine: fptr(-3.5)}, "down"},
		{"线未变", model.OddsMovement{OldLine: fptr(-3.0), NewLine: fptr(-3.0)}, "unchanged"},
		{"独赢盘按价格", model.OddsMovement{OldPrice: iptr(-165), NewPrice: iptr(-155)}, "up"},
		{"独赢盘价格下移", model.OddsMovement{OldPrice: iptr(-155), NewPrice: iptr(-175)}, "down"},
		{"无任何变化量", model.OddsMovement{}, "unchanged"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, movementDirection(&c.m))
		})
	}
}

func iptr(v int) *int { return &v }

func TestBuildView_PivotsByBookAndFillsBest(t *testing.T) {
	logger := testLogger()
	svc := NewAggregationService(nil, nil, nil, logger)

	game := &model.Game{
		ID:        "game-1",
		SportCode: "NFL",
		HomeTeam:  "Kansas City Chiefs",
		AwayTeam:  "Buffalo Bills",
		GameDate:  time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC),
	}
	at := time.Now()
	entries := []repository.CurrentOddsEntry{
		entry("pinnacle", true, model.MarketSpread, model.SelectionHome, -110, fptr(-3.0), at),
		entry("pinnacle", true, model.MarketSpread, model.SelectionAway, -110, fptr(3.0), at),
		entry("pinnacle", true, model.MarketMoneyline, model.SelectionHome, -165, nil, at),
		entry("fanduel", false, model.MarketSpread, model.SelectionHome, -105, fptr(-3.0), at),
		entry("fanduel", false, model.MarketTotal, model.SelectionOver, -108, fptr(47.5), at),
		entry("fanduel", false, model.MarketTotal, model.SelectionUnder, -112, fptr(47.5), at),
	}

	view := svc.buildView(game, entries)

	assert.Equal(t, "game-1", view.GameID)
	require.Len(t, view.Odds, 2)

	// 庄家按首次出现顺序排列
	pinnacle := view.Odds[0]
	assert.Equal(t, "pinnacle", pinnacle.Sportsbook)
	assert.True(t, pinnacle.IsSharp)
	require.NotNil(t, pinnacle.SpreadHome)
	assert.Equal(t, -3.0, *pinnacle.SpreadHome)
	require.NotNil(t, pinnacle.MoneylineHome)
	assert.Equal(t, -165, *pinnacle.MoneylineHome)
	assert.Nil(t, pinnacle.Total)

	fanduel := view.Odds[1]
	require.NotNil(t, fanduel.Total)
	assert.Equal(t, 47.5, *fanduel.Total)
	require.NotNil(t, fanduel.OverPrice)
	assert.Equal(t, -108, *fanduel.OverPrice)

	// 最优价：主队让分取fanduel的-105
	require.NotNil(t, view.BestHomeSpread)
	assert.Equal(t, -105, *view.BestHomeSpread)
	require.NotNil(t, view.BestHomeML)
	assert.Equal(t, -165, *view.BestHomeML)
	assert.Nil(t, view.BestAwayML)

	require.NotNil(t, view.ConsensusSpread)
	assert.Equal(t, -3.0, *view.ConsensusSpread)
	require.NotNil(t, view.ConsensusTotal)
	assert.Equal(t, 47.5, *view.ConsensusTotal)
}
