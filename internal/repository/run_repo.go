package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/jeanpatrickreyes/ai-pro-sports/internal/model"
)

// CollectionRunRepository 采集运行记录仓储
type CollectionRunRepository interface {
	Save(ctx context.Context, run *model.CollectionRun) error
	ListRecent(ctx context.Context, limit int) ([]*model.CollectionRun, error)
}

type collectionRunRepository struct {
	db *gorm.DB
}

func NewCollectionRunRepository(db *gorm.DB) CollectionRunRepository {
	return &collectionRunRepository{db: db}
}

func (r *collectionRunRepository) Save(ctx context.Context, run *model.CollectionRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *collectionRunRepository) ListRecent(ctx context.Context, limit int) ([]*model.CollectionRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var runs []*model.CollectionRun
	if err := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
