package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jeanpatrickreyes/ai-pro-sports/internal/model"
)

// sharpBooks 已知sharp庄家的固定白名单（按api_key小写匹配）
var sharpBooks = map[string]bool{
	"pinnacle":  true,
	"betcris":   true,
	"bookmaker": true,
	"circa":     true,
}

// IsSharpBook 判断庄家key是否属于sharp白名单
func IsSharpBook(key string) bool {
	return sharpBooks[strings.ToLower(key)]
}

// SportsbookRepository 庄家注册表，ProviderEntity的唯一写入方。
// 同一api_key只创建一次，之后复用
type SportsbookRepository interface {
	// GetOrCreate 按api_key解析庄家实体，首次见到时创建。
	// 并发解析同一个未知key不会创建重复行（唯一键冲突时忽略插入并回读）
	GetOrCreate(ctx context.Context, key, name string) (*model.Sportsbook, error)
	List(ctx context.Context) ([]*model.Sportsbook, error)
}

type sportsbookRepository struct {
	db *gorm.DB
}

func NewSportsbookRepository(db *gorm.DB) SportsbookRepository {
	return &sportsbookRepository{db: db}
}

func (r *sportsbookRepository) GetOrCreate(ctx context.Context, key, name string) (*model.Sportsbook, error) {
	if name == "" {
		name = key
	}
	book := &model.Sportsbook{
		Name:     name,
		APIKey:   key,
		IsSharp:  IsSharpBook(key),
		IsActive: true,
	}
	// insert-or-fetch：冲突时放弃插入，再按唯一键回读已有行
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "api_key"}},
		DoNothing: true,
	}).Create(book).Error; err != nil {
		return nil, err
	}
	var existing model.Sportsbook
	if err := r.db.WithContext(ctx).Where("api_key = ?", key).First(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

func (r *sportsbookRepository) List(ctx context.Context) ([]*model.Sportsbook, error) {
	var books []*model.Sportsbook
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}
