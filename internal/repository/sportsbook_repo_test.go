package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeanpatrickreyes/ai-pro-sports/internal/model"
)

func TestGetOrCreate_CreatesOnce(t *testing.T) {
	db := testDB(t)
	repo := NewSportsbookRepository(db)
	ctx := context.Background()

	first, err := repo.GetOrCreate(ctx, "draftkings", "DraftKings")
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.False(t, first.IsSharp)

	second, err := repo.GetOrCreate(ctx, "draftkings", "DraftKings")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&model.Sportsbook{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGetOrCreate_SharpClassification(t *testing.T) {
	db := testDB(t)
	repo := NewSportsbookRepository(db)
	ctx := context.Background()

	for _, key := range []string{"pinnacle", "betcris", "bookmaker", "circa"} {
		book, err := repo.GetOrCreate(ctx, key, "")
		require.NoError(t, err)
		assert.True(t, book.IsSharp, key)
		// name为空时回退到key
		assert.Equal(t, key, book.Name)
	}

	soft, err := repo.GetOrCreate(ctx, "fanduel", "FanDuel")
	require.NoError(t, err)
	assert.False(t, soft.IsSharp)
}

func TestGetOrCreate_ConcurrentSameKey(t *testing.T) {
	db := testDB(t)
	repo := NewSportsbookRepository(db)
	ctx := context.Background()

	ids := make([]string, 8)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			book, err := repo.GetOrCreate(ctx, "betmgm", "BetMGM")
			assert.NoError(t, err)
			if book != nil {
				ids[i] = book.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}
	var count int64
	require.NoError(t, db.Model(&model.Sportsbook{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestIsSharpBook_CaseInsensitive(t *testing.T) {
	assert.True(t, IsSharpBook("Pinnacle"))
	assert.True(t, IsSharpBook("PINNACLE"))
	assert.False(t, IsSharpBook("fanduel"))
}
