package repository

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jeanpatrickreyes/ai-pro-sports/internal/model"
)

// testDB 每个测试一个内存库。单连接串行化，避免内存sqlite的写锁竞争干扰断言
func testDB(t *testing.T) *gorm.DB {
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

func seedGame(t *testing.T, db *gorm.DB, sportCode, externalID string) *model.Game {
	t.Helper()
	game := &model.Game{
		SportCode:  sportCode,
		ExternalID: externalID,
		HomeTeam:   "Kansas City Chiefs",
		AwayTeam:   "Buffalo Bills",
		GameDate:   time.Now().Add(6 * time.Hour),
		Status:     "scheduled",
	}
	require.NoError(t, db.Create(game).Error)
	return game
}

func seedBook(t *testing.T, db *gorm.DB, key, name string) *model.Sportsbook {
	t.Helper()
	book := &model.Sportsbook{
		Name:     name,
		APIKey:   key,
		IsSharp:  IsSharpBook(key),
		IsActive: true,
	}
	require.NoError(t, db.Create(book).Error)
	return book
}
