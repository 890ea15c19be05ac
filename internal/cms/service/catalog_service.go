package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bethreewater/island7/internal/cms/entity"
	"github.com/bethreewater/island7/internal/cms/repository"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

// 单位含以下字样时为按件计的工具类
var fixedUnitMarks = []string{"支", "把", "個", "雙", "台", "條", "片", "捲", "瓶"}

// 散装耗材，优先于按件判断
var bulkUnitMarks = []string{"桶", "包", "袋", "公升"}

// 配方表列顺序
const (
	colMethod = iota
	colMaterial
	colBrand
	colUnit
	colUnitPrice
	colCostPerVal
	colQuantity
	colNote
	colCostPerPing
)

// MethodInput 工法新增/修改
type MethodInput struct {
	ID               string              `json:"id" validate:"omitempty,max=32"`
	Category         string              `json:"category" validate:"required,max=32"`
	Name             string              `json:"name" validate:"required,max=128"`
	EnglishName      string              `json:"english_name" validate:"max=128"`
	DefaultUnit      string              `json:"default_unit" validate:"required,oneof=坪 米 處 式"`
	DefaultUnitPrice float64             `json:"default_unit_price" validate:"gte=0"`
	Description      string              `json:"description"`
	Steps            []entity.MethodStep `json:"steps" validate:"dive"`
	EstimatedDays    int                 `json:"estimated_days" validate:"gte=0"`
}

// MaterialInput 材料新增/修改
type MaterialInput struct {
	Name       string  `json:"name" validate:"required,max=128"`
	Brand      string  `json:"brand" validate:"max=64"`
	Category   string  `json:"category" validate:"max=32"`
	Unit       string  `json:"unit" validate:"max=16"`
	UnitPrice  float64 `json:"unit_price" validate:"gte=0"`
	CostPerVal float64 `json:"cost_per_val" validate:"gte=0"`
}

// RecipeInput 配方新增/修改
type RecipeInput struct {
	MethodID        string  `json:"method_id" validate:"required"`
	MaterialID      string  `json:"material_id" validate:"required"`
	Quantity        float64 `json:"quantity" validate:"gte=0"`
	Category        string  `json:"category" validate:"required,oneof=fixed variable"`
	ConsumptionRate float64 `json:"consumption_rate" validate:"gte=0"`
	Note            string  `json:"note" validate:"max=256"`
}

// ImportResult 配方表导入结果
type ImportResult struct {
	Methods   int      `json:"methods"`
	Materials int      `json:"materials"`
	Recipes   int      `json:"recipes"`
	Updated   int      `json:"updated"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors"`
}

// CatalogService 工法、材料、配方目录
type CatalogService struct {
	methodRepo   *repository.MethodRepository
	materialRepo *repository.MaterialRepository
	recipeRepo   *repository.RecipeRepository
	logger       *zap.Logger
}

// NewCatalogService 创建目录服务
func NewCatalogService(methodRepo *repository.MethodRepository, materialRepo *repository.MaterialRepository,
	recipeRepo *repository.RecipeRepository, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		methodRepo:   methodRepo,
		materialRepo: materialRepo,
		recipeRepo:   recipeRepo,
		logger:       logger,
	}
}

// Seed 工法表为空时写入默认目录，重复执行无副作用
func (s *CatalogService) Seed(ctx context.Context) (int, error) {
	count, err := s.methodRepo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count methods: %w", err)
	}
	if count > 0 {
		return 0, nil
	}
	methods := DefaultMethods()
	if err := s.methodRepo.InsertIgnore(ctx, methods); err != nil {
		return 0, fmt.Errorf("seed methods: %w", err)
	}
	s.logger.Info("method catalog seeded", zap.Int("count", len(methods)))
	return len(methods), nil
}

// ============================================================
// 工法
// ============================================================

// ListMethods 工法列表
func (s *CatalogService) ListMethods(ctx context.Context, category string) ([]entity.Method, error) {
	return s.methodRepo.List(ctx, category)
}

// GetMethod 获取工法
func (s *CatalogService) GetMethod(ctx context.Context, id string) (*entity.Method, error) {
	m, err := s.methodRepo.FindByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound("method", id, err)
	}
	return m, nil
}

// CreateMethod 新增工法
func (s *CatalogService) CreateMethod(ctx context.Context, in MethodInput) (*entity.Method, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	id := in.ID
	if id == "" {
		id = newShortID("M")
	} else if _, err := s.methodRepo.FindByID(ctx, id); err == nil {
		return nil, fmt.Errorf("%w: method %s already exists", ErrValidation, id)
	}
	m := &entity.Method{ID: id}
	applyMethodInput(m, in)
	if err := s.methodRepo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create method: %w", err)
	}
	return m, nil
}

// UpdateMethod 修改工法；已建立的案件区域保留原单价
func (s *CatalogService) UpdateMethod(ctx context.Context, id string, in MethodInput) (*entity.Method, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	m, err := s.methodRepo.FindByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound("method", id, err)
	}
	applyMethodInput(m, in)
	if err := s.methodRepo.Update(ctx, m); err != nil {
		return nil, fmt.Errorf("update method: %w", err)
	}
	return m, nil
}

// DeleteMethod 删除工法及其配方
func (s *CatalogService) DeleteMethod(ctx context.Context, id string) error {
	if err := s.methodRepo.Delete(ctx, id); err != nil {
		return wrapNotFound("method", id, err)
	}
	return nil
}

func applyMethodInput(m *entity.Method, in MethodInput) {
	m.Category = in.Category
	m.Name = in.Name
	m.EnglishName = in.EnglishName
	m.DefaultUnit = in.DefaultUnit
	m.DefaultUnitPrice = in.DefaultUnitPrice
	m.Description = in.Description
	m.Steps = nonNil(in.Steps)
	m.EstimatedDays = in.EstimatedDays
	if m.EstimatedDays == 0 {
		m.EstimatedDays = len(in.Steps)
	}
}

// ============================================================
// 材料
// ============================================================

// ListMaterials 材料列表
func (s *CatalogService) ListMaterials(ctx context.Context, category, keyword string) ([]entity.Material, error) {
	return s.materialRepo.List(ctx, category, keyword)
}

// CreateMaterial 新增材料
func (s *CatalogService) CreateMaterial(ctx context.Context, in MaterialInput) (*entity.Material, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	m := &entity.Material{ID: newShortID("MAT")}
	applyMaterialInput(m, in)
	if err := s.materialRepo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create material: %w", err)
	}
	return m, nil
}

// UpdateMaterial 修改材料
func (s *CatalogService) UpdateMaterial(ctx context.Context, id string, in MaterialInput) (*entity.Material, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	m, err := s.materialRepo.FindByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound("material", id, err)
	}
	applyMaterialInput(m, in)
	if err := s.materialRepo.Update(ctx, m); err != nil {
		return nil, fmt.Errorf("update material: %w", err)
	}
	return m, nil
}

// DeleteMaterial 删除材料及引用它的配方
func (s *CatalogService) DeleteMaterial(ctx context.Context, id string) error {
	if err := s.materialRepo.Delete(ctx, id); err != nil {
		return wrapNotFound("material", id, err)
	}
	return nil
}

func applyMaterialInput(m *entity.Material, in MaterialInput) {
	m.Name = strings.TrimSpace(in.Name)
	m.Brand = strings.TrimSpace(in.Brand)
	m.Category = in.Category
	if m.Category == "" {
		m.Category = entity.MaterialCategoryOther
	}
	m.Unit = in.Unit
	m.UnitPrice = in.UnitPrice
	m.CostPerVal = in.CostPerVal
}

// ============================================================
// 配方
// ============================================================

// ListRecipes 某工法的配方
func (s *CatalogService) ListRecipes(ctx context.Context, methodID string) ([]repository.RecipeWithMaterial, error) {
	return s.recipeRepo.ListWithMaterials(ctx, []string{methodID})
}

// CreateRecipe 新增配方，工法和材料必须存在
func (s *CatalogService) CreateRecipe(ctx context.Context, in RecipeInput) (*entity.MethodRecipe, error) {
	if err := s.checkRecipeInput(ctx, in); err != nil {
		return nil, err
	}
	if _, err := s.recipeRepo.FindByMethodMaterial(ctx, in.MethodID, in.MaterialID); err == nil {
		return nil, fmt.Errorf("%w: recipe for %s/%s already exists", ErrValidation, in.MethodID, in.MaterialID)
	}
	r := &entity.MethodRecipe{ID: newShortID("REC")}
	applyRecipeInput(r, in)
	if err := s.recipeRepo.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create recipe: %w", err)
	}
	return r, nil
}

// UpdateRecipe 修改配方
func (s *CatalogService) UpdateRecipe(ctx context.Context, id string, in RecipeInput) (*entity.MethodRecipe, error) {
	if err := s.checkRecipeInput(ctx, in); err != nil {
		return nil, err
	}
	r, err := s.recipeRepo.FindByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound("recipe", id, err)
	}
	applyRecipeInput(r, in)
	if err := s.recipeRepo.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("update recipe: %w", err)
	}
	return r, nil
}

// DeleteRecipe 删除配方
func (s *CatalogService) DeleteRecipe(ctx context.Context, id string) error {
	if err := s.recipeRepo.Delete(ctx, id); err != nil {
		return wrapNotFound("recipe", id, err)
	}
	return nil
}

func (s *CatalogService) checkRecipeInput(ctx context.Context, in RecipeInput) error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if _, err := s.methodRepo.FindByID(ctx, in.MethodID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: unknown method %q", ErrValidation, in.MethodID)
		}
		return fmt.Errorf("load method: %w", err)
	}
	if _, err := s.materialRepo.FindByID(ctx, in.MaterialID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: unknown material %q", ErrValidation, in.MaterialID)
		}
		return fmt.Errorf("load material: %w", err)
	}
	return nil
}

func applyRecipeInput(r *entity.MethodRecipe, in RecipeInput) {
	r.MethodID = in.MethodID
	r.MaterialID = in.MaterialID
	r.Quantity = in.Quantity
	r.Category = in.Category
	r.ConsumptionRate = in.ConsumptionRate
	r.Note = in.Note
}

// ============================================================
// 配方表导入
// ============================================================

// ClassifyRecipe 按材料单位与名称判断配方类别
func ClassifyRecipe(materialName, unit string) string {
	category := entity.RecipeVariable
	for _, mark := range fixedUnitMarks {
		if strings.Contains(unit, mark) {
			category = entity.RecipeFixed
			break
		}
	}
	for _, mark := range bulkUnitMarks {
		if strings.Contains(unit, mark) {
			category = entity.RecipeVariable
		}
	}
	if strings.Contains(materialName, "人事") {
		category = entity.RecipeVariable
	}
	return category
}

// ImportRecipesCSV 导入 CSV 配方表，自动识别 UTF-8 与 Big5
func (s *CatalogService) ImportRecipesCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var reader io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		reader = transform.NewReader(reader, traditionalchinese.Big5.NewDecoder())
	}

	cr := csv.NewReader(reader)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parse csv: %v", ErrValidation, err)
	}
	return s.importRows(ctx, rows)
}

// ImportRecipesExcel 导入 xlsx 配方表，读取第一个工作表
func (s *CatalogService) ImportRecipesExcel(ctx context.Context, f *excelize.File) (*ImportResult, error) {
	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read excel: %w", err)
	}
	return s.importRows(ctx, rows)
}

// importRows 工法列留空表示沿用上一行的工法
func (s *CatalogService) importRows(ctx context.Context, rows [][]string) (*ImportResult, error) {
	result := &ImportResult{Errors: []string{}}
	materials := make(map[string]*entity.Material)
	var method *entity.Method

	for i, row := range rows {
		line := i + 1
		if isBlankRow(row) || isHeaderRow(row) {
			continue
		}

		if name := cell(row, colMethod); name != "" {
			m, created, err := s.ensureMethod(ctx, name)
			if err != nil {
				return nil, err
			}
			if created {
				result.Methods++
			}
			method = m
		}

		materialName := cell(row, colMaterial)
		if materialName == "" {
			continue
		}
		if method == nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("第%d行: 缺少工法名稱", line))
			continue
		}

		unit := cell(row, colUnit)
		price, err1 := parseNumber(cell(row, colUnitPrice))
		costPerVal, err2 := parseNumber(cell(row, colCostPerVal))
		qty, err3 := parseNumber(cell(row, colQuantity))
		costPerPing, err4 := parseNumber(cell(row, colCostPerPing))
		if err := errors.Join(err1, err2, err3, err4); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("第%d行: 數值格式錯誤", line))
			continue
		}

		brand := cell(row, colBrand)
		key := materialName + "\x00" + brand
		material, ok := materials[key]
		if !ok {
			m, created, err := s.ensureMaterial(ctx, materialName, brand, unit, price, costPerVal)
			if err != nil {
				return nil, err
			}
			if created {
				result.Materials++
			}
			materials[key] = m
			material = m
		}

		category := ClassifyRecipe(materialName, unit)
		var rate float64
		if category == entity.RecipeVariable && price > 0 {
			rate = costPerPing / price
		}

		existing, err := s.recipeRepo.FindByMethodMaterial(ctx, method.ID, material.ID)
		switch {
		case err == nil:
			existing.Quantity = qty
			existing.Category = category
			existing.ConsumptionRate = rate
			existing.Note = cell(row, colNote)
			if err := s.recipeRepo.Update(ctx, existing); err != nil {
				return nil, fmt.Errorf("update recipe: %w", err)
			}
			result.Updated++
		case errors.Is(err, repository.ErrNotFound):
			recipe := &entity.MethodRecipe{
				ID:              newShortID("REC"),
				MethodID:        method.ID,
				MaterialID:      material.ID,
				Quantity:        qty,
				Category:        category,
				ConsumptionRate: rate,
				Note:            cell(row, colNote),
			}
			if err := s.recipeRepo.Create(ctx, recipe); err != nil {
				return nil, fmt.Errorf("create recipe: %w", err)
			}
			result.Recipes++
		default:
			return nil, fmt.Errorf("load recipe: %w", err)
		}
	}

	s.logger.Info("recipe sheet imported",
		zap.Int("methods", result.Methods),
		zap.Int("materials", result.Materials),
		zap.Int("recipes", result.Recipes),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

func (s *CatalogService) ensureMethod(ctx context.Context, name string) (*entity.Method, bool, error) {
	m, err := s.methodRepo.FindByName(ctx, name)
	if err == nil {
		return m, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("load method: %w", err)
	}
	m = &entity.Method{
		ID:          newShortID("M"),
		Category:    entity.CategoryWallCancer,
		Name:        name,
		DefaultUnit: entity.UnitPing,
		Description: "由配方表匯入",
		Steps:       []entity.MethodStep{},
	}
	if err := s.methodRepo.Create(ctx, m); err != nil {
		return nil, false, fmt.Errorf("create method: %w", err)
	}
	return m, true, nil
}

func (s *CatalogService) ensureMaterial(ctx context.Context, name, brand, unit string, price, costPerVal float64) (*entity.Material, bool, error) {
	m, err := s.materialRepo.FindByNameBrand(ctx, name, brand)
	if err == nil {
		return m, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("load material: %w", err)
	}
	m = &entity.Material{
		ID:         newShortID("MAT"),
		Name:       name,
		Brand:      brand,
		Category:   entity.MaterialCategoryOther,
		Unit:       unit,
		UnitPrice:  price,
		CostPerVal: costPerVal,
	}
	if err := s.materialRepo.Create(ctx, m); err != nil {
		return nil, false, fmt.Errorf("create material: %w", err)
	}
	return m, true, nil
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func isHeaderRow(row []string) bool {
	first := strings.ToLower(cell(row, colMethod))
	switch first {
	case "工法", "工法名稱", "method":
		return true
	}
	return strings.HasPrefix(first, "壁癌等級") || strings.HasPrefix(first, "等級")
}

// parseNumber 空白视为0，允许千分位逗号
func parseNumber(s string) (float64, error) {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func wrapNotFound(kind, id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", kind, id, err)
}
