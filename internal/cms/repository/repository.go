package repository

import (
	"errors"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	User     *UserRepository
	Case     *CaseRepository
	Method   *MethodRepository
	Material *MaterialRepository
	Recipe   *RecipeRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:     NewUserRepository(db),
		Case:     NewCaseRepository(db),
		Method:   NewMethodRepository(db),
		Material: NewMaterialRepository(db),
		Recipe:   NewRecipeRepository(db),
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
