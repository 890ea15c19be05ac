package repository

import (
	"context"

	"github.com/bethreewater/island7/internal/cms/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecipeWithMaterial 配方及其材料；材料已被删除时 Material 为 nil
type RecipeWithMaterial struct {
	entity.MethodRecipe
	Material *entity.Material `json:"material"`
}

// RecipeRepository 配方仓库
type RecipeRepository struct {
	db *gorm.DB
}

// NewRecipeRepository 创建配方仓库
func NewRecipeRepository(db *gorm.DB) *RecipeRepository {
	return &RecipeRepository{db: db}
}

// FindByID 根据ID查找配方
func (r *RecipeRepository) FindByID(ctx context.Context, id string) (*entity.MethodRecipe, error) {
	var recipe entity.MethodRecipe
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&recipe).Error; err != nil {
		return nil, notFound(err)
	}
	return &recipe, nil
}

// FindByMethodMaterial 查找工法下某材料的配方
func (r *RecipeRepository) FindByMethodMaterial(ctx context.Context, methodID, materialID string) (*entity.MethodRecipe, error) {
	var recipe entity.MethodRecipe
	err := r.db.WithContext(ctx).
		Where("method_id = ? AND material_id = ?", methodID, materialID).
		First(&recipe).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &recipe, nil
}

// ListWithMaterials 获取若干工法的配方并带出材料
func (r *RecipeRepository) ListWithMaterials(ctx context.Context, methodIDs []string) ([]RecipeWithMaterial, error) {
	result := make([]RecipeWithMaterial, 0)
	if len(methodIDs) == 0 {
		return result, nil
	}

	var recipes []entity.MethodRecipe
	err := r.db.WithContext(ctx).
		Where("method_id IN ?", methodIDs).
		Order("method_id ASC, created_at ASC").
		Find(&recipes).Error
	if err != nil {
		return nil, err
	}

	materialIDs := make([]string, 0, len(recipes))
	seen := make(map[string]bool)
	for _, rc := range recipes {
		if !seen[rc.MaterialID] {
			seen[rc.MaterialID] = true
			materialIDs = append(materialIDs, rc.MaterialID)
		}
	}

	var materials []entity.Material
	if len(materialIDs) > 0 {
		if err := r.db.WithContext(ctx).Where("id IN ?", materialIDs).Find(&materials).Error; err != nil {
			return nil, err
		}
	}
	byID := make(map[string]*entity.Material, len(materials))
	for i := range materials {
		byID[materials[i].ID] = &materials[i]
	}

	for _, rc := range recipes {
		result = append(result, RecipeWithMaterial{MethodRecipe: rc, Material: byID[rc.MaterialID]})
	}
	return result, nil
}

// Create 创建配方
func (r *RecipeRepository) Create(ctx context.Context, recipe *entity.MethodRecipe) error {
	return r.db.WithContext(ctx).Create(recipe).Error
}

// Update 更新配方
func (r *RecipeRepository) Update(ctx context.Context, recipe *entity.MethodRecipe) error {
	return r.db.WithContext(ctx).Save(recipe).Error
}

// Delete 删除配方
func (r *RecipeRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.MethodRecipe{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertIgnore 批量插入，已存在的ID跳过
func (r *RecipeRepository) InsertIgnore(ctx context.Context, recipes []entity.MethodRecipe) error {
	if len(recipes) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&recipes).Error
}
