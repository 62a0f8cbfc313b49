package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jeanpatrickreyes/ai-pro-sports/internal/cache"
	"github.com/jeanpatrickreyes/ai-pro-sports/internal/config"
	"github.com/jeanpatrickreyes/ai-pro-sports/internal/model"
	"github.com/jeanpatrickreyes/ai-pro-sports/internal/oddsapi"
	"github.com/jeanpatrickreyes/ai-pro-sports/internal/repository"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func pint(v int) *int { return &v }

func pfloat(v float64) *float64 { return &v }

func serviceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.Game{},
		&model.Sportsbook{},
		&model.Odds{},
		&model.OddsMovement{},
		&model.ClosingLine{},
		&model.CollectionRun{},
	))
	return db
}

// fakeFetcher 按sport key返回固定事件或错误
type fakeFetcher struct {
	events map[string][]oddsapi.Event
	errs   map[string]error
	quota  oddsapi.QuotaStatus
}

func (f *fakeFetcher) FetchOdds(_ context.Context, apiSportKey string, _ []string) ([]oddsapi.Event, error) {
	if err := f.errs[apiSportKey]; err != nil {
		return nil, err
	}
	return f.events[apiSportKey], nil
}

func (f *fakeFetcher) Quota() oddsapi.QuotaStatus { return f.quota }

// fakeNotifier 记录被告警的移动事件
type fakeNotifier struct {
	movements []*model.OddsMovement
}

func (n *fakeNotifier) NotifyMovement(mv *model.OddsMovement, _ *model.Game, _ string) {
	n.movements = append(n.movements, mv)
}

func testConfig() *config.Config {
	return &config.Config{
		OddsAPI: config.OddsAPIConfig{APIKey: "test-key"},
		Collect: config.CollectConfig{
			Sports:  map[string]string{"NFL": "americanfootball_nfl"},
			Markets: []string{"spreads", "h2h", "totals"},
		},
	}
}

func fetcherEvent(externalID string, price int, line *float64) oddsapi.Event {
	return oddsapi.Event{
		ID:           externalID,
		CommenceTime: time.Now().Add(6 * time.Hour),
		HomeTeam:     "Kansas City Chiefs",
		AwayTeam:     "Buffalo Bills",
		Bookmakers: []oddsapi.Bookmaker{
			{
				Key:        "pinnacle",
				Title:      "Pinnacle",
				LastUpdate: time.Now(),
				Markets: []oddsapi.Market{
					{
						Key: "spreads",
						Outcomes: []oddsapi.Outcome{
							{Name: "Kansas City Chiefs", Price: &price, Point: line},
						},
					},
				},
			},
		},
	}
}

func newTestService(t *testing.T, db *gorm.DB, cfg *config.Config, f *fakeFetcher, n MovementNotifier) *CollectService {
	t.Helper()
	log := testLogger()
	return NewCollectService(
		cfg,
		f,
		repository.NewGameRepository(db),
		repository.NewSportsbookRepository(db),
		repository.NewOddsRepository(db),
		repository.NewCollectionRunRepository(db),
		cache.New(&config.RedisConfig{}, log),
		n,
		log,
	)
}

func seedServiceGame(t *testing.T, db *gorm.DB, externalID string) *model.Game {
	t.Helper()
	game := &model.Game{
		SportCode:  "NFL",
		ExternalID: externalID,
		HomeTeam:   "Kansas City Chiefs",
		AwayTeam:   "Buffalo Bills",
		GameDate:   time.Now().Add(6 * time.Hour),
		Status:     "scheduled",
	}
	require.NoError(t, db.Create(game).Error)
	return game
}

func TestCollect_MissingAPIKeyFailsWhole(t *testing.T) {
	db := serviceTestDB(t)
	cfg := testConfig()
	cfg.OddsAPI.APIKey = ""
	svc := newTestService(t, db, cfg, &fakeFetcher{}, nil)

	result := svc.Collect(context.Background(), "")

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Zero(t, result.RecordsCount)

	// 失败的运行也会落库
	var runs []model.CollectionRun
	require.NoError(t, db.Find(&runs).Error)
	require.Len(t, runs, 1)
	assert.False(t, runs[0].Success)
}

func TestCollect_UnknownSportCode(t *testing.T) {
	db := serviceTestDB(t)
	svc := newTestService(t, db, testConfig(), &fakeFetcher{}, nil)

	result := svc.Collect(context.Background(), "CRICKET")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "CRICKET")
}

func TestCollect_CommitsKnownGame(t *testing.T) {
	db := serviceTestDB(t)
	game := seedServiceGame(t, db, "evt-001")
	line := -3.0
	f := &fakeFetcher{
		events: map[string][]oddsapi.Event{
			"americanfootball_nfl": {fetcherEvent("evt-001", -110, &line)},
		},
		quota: oddsapi.QuotaStatus{RequestsRemaining: 500},
	}
	svc := newTestService(t, db, testConfig(), f, nil)

	result := svc.Collect(context.Background(), "NFL")

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.RecordsCount)
	assert.Equal(t, 1, result.AcceptedCount)
	assert.Equal(t, 1, result.CommittedCount)
	assert.Zero(t, result.SkippedCount)
	assert.Equal(t, 500, result.Metadata.RequestsRemaining)

	var entries []model.Odds
	require.NoError(t, db.Where("game_id = ?", game.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsCurrent)
}

func TestCollect_SkipsUnknownGame(t *testing.T) {
	db := serviceTestDB(t)
	line := -3.0
	f := &fakeFetcher{
		events: map[string][]oddsapi.Event{
			"americanfootball_nfl": {fetcherEvent("evt-unknown", -110, &line)},
		},
	}
	svc := newTestService(t, db, testConfig(), f, nil)

	result := svc.Collect(context.Background(), "NFL")

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.SkippedCount)
	assert.Zero(t, result.CommittedCount)
}

func TestCollect_RejectedRecordsCounted(t *testing.T) {
	db := serviceTestDB(t)
	seedServiceGame(t, db, "evt-001")
	line := -3.0
	event := fetcherEvent("evt-001", -110, &line)
	// 追加一条越界赔率和一条未知市场
	event.Bookmakers[0].Markets[0].Outcomes = append(
		event.Bookmakers[0].Markets[0].Outcomes,
		oddsapi.Outcome{Name: "Buffalo Bills", Price: pint(20000)},
	)
	event.Bookmakers[0].Markets = append(event.Bookmakers[0].Markets, oddsapi.Market{
		Key:      "player_props",
		Outcomes: []oddsapi.Outcome{{Name: "Some Prop", Price: pint(-115)}},
	})
	f := &fakeFetcher{events: map[string][]oddsapi.Event{"americanfootball_nfl": {event}}}
	svc := newTestService(t, db, testConfig(), f, nil)

	result := svc.Collect(context.Background(), "NFL")

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.RecordsCount)
	assert.Equal(t, 1, result.AcceptedCount)
	assert.Equal(t, 2, result.RejectedCount)
	assert.Equal(t, 1, result.CommittedCount)
}

func TestCollect_MissingPriceRejected(t *testing.T) {
	db := serviceTestDB(t)
	game := seedServiceGame(t, db, "evt-001")
	line := -3.0
	event := fetcherEvent("evt-001", -110, &line)
	// 无price的outcome不得入库，更不能以0价参与最优价比较
	event.Bookmakers[0].Markets[0].Outcomes = append(
		event.Bookmakers[0].Markets[0].Outcomes,
		oddsapi.Outcome{Name: "Buffalo Bills", Point: pfloat(3.0)},
	)
	f := &fakeFetcher{events: map[string][]oddsapi.Event{"americanfootball_nfl": {event}}}
	svc := newTestService(t, db, testConfig(), f, nil)

	result := svc.Collect(context.Background(), "NFL")

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.RecordsCount)
	assert.Equal(t, 1, result.AcceptedCount)
	assert.Equal(t, 1, result.RejectedCount)
	assert.Equal(t, 1, result.CommittedCount)

	var entries []model.Odds
	require.NoError(t, db.Where("game_id = ?", game.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, -110, entries[0].Price)
}

func TestCollect_SecondRunIdempotent(t *testing.T) {
	db := serviceTestDB(t)
	seedServiceGame(t, db, "evt-001")
	line := -3.0
	f := &fakeFetcher{
		events: map[string][]oddsapi.Event{
			"americanfootball_nfl": {fetcherEvent("evt-001", -110, &line)},
		},
	}
	svc := newTestService(t, db, testConfig(), f, nil)

	first := svc.Collect(context.Background(), "NFL")
	assert.Equal(t, 1, first.CommittedCount)

	second := svc.Collect(context.Background(), "NFL")
	assert.True(t, second.Success)
	assert.Zero(t, second.CommittedCount)
	assert.Equal(t, 1, second.UnchangedCount)
	assert.Zero(t, second.MovementCount)
}

func TestCollect_MovementNotifies(t *testing.T) {
	db := serviceTestDB(t)
	seedServiceGame(t, db, "evt-001")
	line := -3.0
	f := &fakeFetcher{
		events: map[string][]oddsapi.Event{
			"americanfootball_nfl": {fetcherEvent("evt-001", -110, &line)},
		},
	}
	notifier := &fakeNotifier{}
	svc := newTestService(t, db, testConfig(), f, notifier)

	svc.Collect(context.Background(), "NFL")

	// 盘口线移动：-3.0 → -3.5
	moved := -3.5
	f.events["americanfootball_nfl"] = []oddsapi.Event{fetcherEvent("evt-001", -115, &moved)}
	result := svc.Collect(context.Background(), "NFL")

	assert.Equal(t, 1, result.MovementCount)
	require.Len(t, notifier.movements, 1)
	require.NotNil(t, notifier.movements[0].MovementSize)
	assert.InDelta(t, 0.5, *notifier.movements[0].MovementSize, 1e-9)
}

func TestCollect_PerSportFailureIsolated(t *testing.T) {
	db := serviceTestDB(t)
	seedServiceGame(t, db, "evt-001")
	cfg := testConfig()
	cfg.Collect.Sports = map[string]string{
		"NBA": "basketball_nba",
		"NFL": "americanfootball_nfl",
	}
	line := -3.0
	f := &fakeFetcher{
		events: map[string][]oddsapi.Event{
			"americanfootball_nfl": {fetcherEvent("evt-001", -110, &line)},
		},
		errs: map[string]error{
			"basketball_nba": errors.New("upstream 502"),
		},
	}
	svc := newTestService(t, db, testConfig(), f, nil)
	svc.cfg = cfg

	result := svc.Collect(context.Background(), "")

	// NBA失败不影响NFL入库
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "NBA")
	assert.Contains(t, result.Error, "upstream 502")
	assert.Equal(t, 1, result.CommittedCount)
}

func TestCollect_RunPersisted(t *testing.T) {
	db := serviceTestDB(t)
	seedServiceGame(t, db, "evt-001")
	line := -3.0
	f := &fakeFetcher{
		events: map[string][]oddsapi.Event{
			"americanfootball_nfl": {fetcherEvent("evt-001", -110, &line)},
		},
	}
	svc := newTestService(t, db, testConfig(), f, nil)

	svc.Collect(context.Background(), "NFL")

	runs, err := repository.NewCollectionRunRepository(db).ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Success)
	assert.Equal(t, 1, runs[0].CommittedCount)
	assert.NotEmpty(t, runs[0].Metadata)
}
