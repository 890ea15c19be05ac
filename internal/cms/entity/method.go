package entity

import (
	"time"

	"gorm.io/datatypes"
)

// 工程类别
const (
	CategoryWallCancer     = "一般壁癌修繕"
	CategoryWallWaterproof = "外牆防水"
	CategoryRoofWaterproof = "頂樓防水"
	CategoryCrack          = "內外牆裂縫處理"
	CategoryStructure      = "嚴重鋼筋外露壁癌"
	CategorySiliconeBath   = "浴室防水矽利康"
	CategorySiliconeWindow = "門窗防水矽利康"
	CategoryCustom         = "其他自定義工程"
)

// ServiceCategories 全部工程类别
var ServiceCategories = []string{
	CategoryWallCancer,
	CategoryWallWaterproof,
	CategoryRoofWaterproof,
	CategoryCrack,
	CategoryStructure,
	CategorySiliconeBath,
	CategorySiliconeWindow,
	CategoryCustom,
}

// 计价单位
const (
	UnitPing  = "坪" // 面积单位，1坪 ≈ 3.3 m²
	UnitMeter = "米"
	UnitPlace = "處"
	UnitLump  = "式"
)

// Method 工法
type Method struct {
	ID               string                          `json:"id" gorm:"primaryKey;size:32"`
	Category         string                          `json:"category" gorm:"size:32;not null;index"`
	Name             string                          `json:"name" gorm:"size:128;not null"`
	EnglishName      string                          `json:"english_name" gorm:"size:128"`
	DefaultUnit      string                          `json:"default_unit" gorm:"size:8;not null"`
	DefaultUnitPrice float64                         `json:"default_unit_price" gorm:"not null;default:0"`
	Description      string                          `json:"description" gorm:"type:text"`
	Steps            datatypes.JSONSlice[MethodStep] `json:"steps"`
	EstimatedDays    int                             `json:"estimated_days" gorm:"not null;default:0"`
	CreatedAt        time.Time                       `json:"created_at"`
	UpdatedAt        time.Time                       `json:"updated_at"`
}

func (Method) TableName() string {
	return "methods"
}

// MethodStep 工法步骤，顺序决定排程
type MethodStep struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PrepMinutes int    `json:"prep_minutes"`
	ExecMinutes int    `json:"exec_minutes"`
}

// 材料类别
const (
	MaterialCategoryPaint      = "塗料"
	MaterialCategoryWaterproof = "防水材"
	MaterialCategoryCement     = "泥作/結構"
	MaterialCategoryTools      = "工具/設備"
	MaterialCategorySilicone   = "填縫/矽利康"
	MaterialCategoryConsumable = "其他耗材"
	MaterialCategoryOther      = "其他"
)

// Material 材料
type Material struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	Name       string    `json:"name" gorm:"size:128;not null;index"`
	Brand      string    `json:"brand" gorm:"size:64"`
	Category   string    `json:"category" gorm:"size:32"`
	Unit       string    `json:"unit" gorm:"size:16"`
	UnitPrice  float64   `json:"unit_price" gorm:"not null;default:0"`
	CostPerVal float64   `json:"cost_per_val" gorm:"not null;default:0"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Material) TableName() string {
	return "materials"
}

// 配方类别
const (
	RecipeFixed    = "fixed"    // 每个项目一次性用量（工具）
	RecipeVariable = "variable" // 按面积消耗（耗材）
)

// MethodRecipe 工法用料配方
type MethodRecipe struct {
	ID              string    `json:"id" gorm:"primaryKey;size:32"`
	MethodID        string    `json:"method_id" gorm:"size:32;not null;index"`
	MaterialID      string    `json:"material_id" gorm:"size:32;not null;index"`
	Quantity        float64   `json:"quantity" gorm:"not null;default:0"`
	Category        string    `json:"category" gorm:"size:16;not null;default:variable"`
	ConsumptionRate float64   `json:"consumption_rate" gorm:"not null;default:0"`
	Note            string    `json:"note" gorm:"size:256"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (MethodRecipe) TableName() string {
	return "method_recipes"
}
