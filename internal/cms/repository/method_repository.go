package repository

import (
	"context"

	"github.com/bethreewater/island7/internal/cms/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MethodRepository 工法仓库
type MethodRepository struct {
	db *gorm.DB
}

// NewMethodRepository 创建工法仓库
func NewMethodRepository(db *gorm.DB) *MethodRepository {
	return &MethodRepository{db: db}
}

// FindByID 根据ID查找工法
func (r *MethodRepository) FindByID(ctx context.Context, id string) (*entity.Method, error) {
	var m entity.Method
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// FindByName 根据名称查找工法
func (r *MethodRepository) FindByName(ctx context.Context, name string) (*entity.Method, error) {
	var m entity.Method
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// List 获取工法列表，可按类别过滤
func (r *MethodRepository) List(ctx context.Context, category string) ([]entity.Method, error) {
	var methods []entity.Method
	query := r.db.WithContext(ctx)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	err := query.Order("id ASC").Find(&methods).Error
	return methods, err
}

// MapByIDs 按ID批量获取工法，找不到的ID不在结果中
func (r *MethodRepository) MapByIDs(ctx context.Context, ids []string) (map[string]entity.Method, error) {
	result := make(map[string]entity.Method, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var methods []entity.Method
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&methods).Error; err != nil {
		return nil, err
	}
	for _, m := range methods {
		result[m.ID] = m
	}
	return result, nil
}

// Create 创建工法
func (r *MethodRepository) Create(ctx context.Context, m *entity.Method) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// Update 更新工法
func (r *MethodRepository) Update(ctx context.Context, m *entity.Method) error {
	return r.db.WithContext(ctx).Save(m).Error
}

// Delete 删除工法及其配方
func (r *MethodRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("method_id = ?", id).Delete(&entity.MethodRecipe{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&entity.Method{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Count 工法数量
func (r *MethodRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.Method{}).Count(&n).Error
	return n, err
}

// InsertIgnore 批量插入，已存在的ID跳过
func (r *MethodRepository) InsertIgnore(ctx context.Context, methods []entity.Method) error {
	if len(methods) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&methods).Error
}
