package repository

import (
	"context"

	"github.com/bethreewater/island7/internal/cms/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaterialRepository 材料仓库
type MaterialRepository struct {
	db *gorm.DB
}

// NewMaterialRepository 创建材料仓库
func NewMaterialRepository(db *gorm.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

// FindByID 根据ID查找材料
func (r *MaterialRepository) FindByID(ctx context.Context, id string) (*entity.Material, error) {
	var m entity.Material
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// FindByNameBrand 根据名称和品牌查找材料
func (r *MaterialRepository) FindByNameBrand(ctx context.Context, name, brand string) (*entity.Material, error) {
	var m entity.Material
	err := r.db.WithContext(ctx).
		Where("name = ? AND brand = ?", name, brand).
		First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// List 获取材料列表
func (r *MaterialRepository) List(ctx context.Context, category, keyword string) ([]entity.Material, error) {
	var materials []entity.Material
	query := r.db.WithContext(ctx)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if keyword != "" {
		query = query.Where("name LIKE ? OR brand LIKE ?", "%"+keyword+"%", "%"+keyword+"%")
	}
	err := query.Order("category ASC, name ASC").Find(&materials).Error
	return materials, err
}

// ListByIDs 按ID批量获取材料
func (r *MaterialRepository) ListByIDs(ctx context.Context, ids []string) ([]entity.Material, error) {
	var materials []entity.Material
	if len(ids) == 0 {
		return materials, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&materials).Error
	return materials, err
}

// Create 创建材料
func (r *MaterialRepository) Create(ctx context.Context, m *entity.Material) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// Update 更新材料
func (r *MaterialRepository) Update(ctx context.Context, m *entity.Material) error {
	return r.db.WithContext(ctx).Save(m).Error
}

// Delete 删除材料，引用它的配方一并删除
func (r *MaterialRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("material_id = ?", id).Delete(&entity.MethodRecipe{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&entity.Material{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// InsertIgnore 批量插入，已存在的ID跳过
func (r *MaterialRepository) InsertIgnore(ctx context.Context, materials []entity.Material) error {
	if len(materials) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&materials).Error
}
