package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/jeanpatrickreyes/ai-pro-sports/internal/model"
)

// GameRepository 比赛查询仓储。台账只跟踪已知比赛，比赛的创建不在本服务内
type GameRepository interface {
	// FindByExternalID 按 (sport_code, external_id) 查比赛，不存在时返回 (nil, nil)
	FindByExternalID(ctx context.Context, sportCode, externalID string) (*model.Game, error)
	GetByID(ctx context.Context, id string) (*model.Game, error)
	// ListUpcoming 列出窗口期内未开赛的比赛（live赔率视图用）
	ListUpcoming(ctx context.Context, sportCode string, from, to time.Time, limit int) ([]*model.Game, error)
}

type gameRepository struct {
	db *gorm.DB
}

func NewGameRepository(db *gorm.DB) GameRepository {
	return &gameRepository{db: db}
}

func (r *gameRepository) FindByExternalID(ctx context.Context, sportCode, externalID string) (*model.Game, error) {
	var game model.Game
	err := r.db.WithContext(ctx).
		Where("sport_code = ? AND external_id = ?", sportCode, externalID).
		First(&game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &game, nil
}

func (r *gameRepository) GetByID(ctx context.Context, id string) (*model.Game, error) {
	var game model.Game
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&game).Error; err != nil {
		return nil, err
	}
	return &game, nil
}

func (r *gameRepository) ListUpcoming(ctx context.Context, sportCode string, from, to time.Time, limit int) ([]*model.Game, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	db := r.db.WithContext(ctx).
		Where("game_date >= ? AND game_date <= ? AND status = ?", from, to, "scheduled")
	if sportCode != "" {
		db = db.Where("sport_code = ?", sportCode)
	}
	var games []*model.Game
	if err := db.Order("game_date ASC").Limit(limit).Find(&games).Error; err != nil {
		return nil, err
	}
	return games, nil
}
