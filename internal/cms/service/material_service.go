package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/bethreewater/island7/internal/cms/entity"
	"github.com/bethreewater/island7/internal/cms/estimate"
	"github.com/bethreewater/island7/internal/cms/repository"
	"github.com/xuri/excelize/v2"
)

var materialExportHeaders = []string{"類型", "材料名稱", "品牌", "單位", "數量", "單價", "小計"}

// MaterialService 案件备料清单
type MaterialService struct {
	recipeRepo *repository.RecipeRepository
	cases      *CaseService
}

// NewMaterialService 创建备料服务
func NewMaterialService(recipeRepo *repository.RecipeRepository, cases *CaseService) *MaterialService {
	return &MaterialService{recipeRepo: recipeRepo, cases: cases}
}

// ForCase 按案件各区域的工法与面积汇总用料
func (s *MaterialService) ForCase(ctx context.Context, caseID string) (*estimate.MaterialList, error) {
	c, err := s.cases.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}
	list, err := s.aggregate(ctx, c)
	if err != nil {
		return nil, err
	}
	return &list, nil
}

func (s *MaterialService) aggregate(ctx context.Context, c *entity.Case) (estimate.MaterialList, error) {
	seen := make(map[string]bool)
	var methodIDs []string
	for _, z := range c.Zones {
		if z.MethodID != "" && !seen[z.MethodID] {
			seen[z.MethodID] = true
			methodIDs = append(methodIDs, z.MethodID)
		}
	}

	recipes, err := s.recipes(ctx, methodIDs)
	if err != nil {
		return estimate.MaterialList{}, err
	}
	return estimate.AggregateMaterials(c.Zones, recipes), nil
}

// QuickEstimate 不建案直接按工法、面积与严重程度估算材料成本
func (s *MaterialService) QuickEstimate(ctx context.Context, methodID string, area float64, severity string) (*estimate.QuickResult, error) {
	if area < 0 || math.IsNaN(area) || math.IsInf(area, 0) {
		return nil, fmt.Errorf("%w: area must be a non-negative number", ErrValidation)
	}
	if _, err := estimate.SeverityMultiplier(severity); err != nil {
		return nil, fmt.Errorf("%w: severity %q", ErrValidation, severity)
	}
	if _, err := s.cases.findMethod(ctx, methodID); err != nil {
		if errors.Is(err, ErrValidation) {
			return nil, fmt.Errorf("method %s: %w", methodID, ErrNotFound)
		}
		return nil, err
	}

	recipes, err := s.recipes(ctx, []string{methodID})
	if err != nil {
		return nil, err
	}
	return estimate.QuickEstimate(recipes, area, severity)
}

func (s *MaterialService) recipes(ctx context.Context, methodIDs []string) ([]estimate.Recipe, error) {
	rows, err := s.recipeRepo.ListWithMaterials(ctx, methodIDs)
	if err != nil {
		return nil, fmt.Errorf("load recipes: %w", err)
	}
	recipes := make([]estimate.Recipe, 0, len(rows))
	for _, r := range rows {
		recipes = append(recipes, estimate.Recipe{
			MethodID:        r.MethodID,
			Category:        r.Category,
			Quantity:        r.Quantity,
			ConsumptionRate: r.ConsumptionRate,
			Material:        r.Material,
		})
	}
	return recipes, nil
}

// Export 导出备料清单为xlsx
func (s *MaterialService) Export(ctx context.Context, caseID string) (*excelize.File, string, error) {
	c, err := s.cases.Get(ctx, caseID)
	if err != nil {
		return nil, "", err
	}
	list, err := s.aggregate(ctx, c)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	sheet := "備料清單"
	f.SetSheetName("Sheet1", sheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	for i, h := range materialExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	row := 2
	write := func(kind string, lines []estimate.MaterialLine) {
		for _, l := range lines {
			f.SetCellValue(sheet, fmt.Sprintf("A%d", row), kind)
			f.SetCellValue(sheet, fmt.Sprintf("B%d", row), l.Name)
			f.SetCellValue(sheet, fmt.Sprintf("C%d", row), l.Brand)
			f.SetCellValue(sheet, fmt.Sprintf("D%d", row), l.Unit)
			f.SetCellValue(sheet, fmt.Sprintf("E%d", row), l.Quantity)
			f.SetCellValue(sheet, fmt.Sprintf("F%d", row), l.UnitPrice)
			f.SetCellValue(sheet, fmt.Sprintf("G%d", row), l.Cost)
			row++
		}
	}
	write("工具", list.Tools)
	write("耗材", list.Consumables)

	totalStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "合計")
	f.SetCellValue(sheet, fmt.Sprintf("G%d", row), list.TotalCost)
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("G%d", row), totalStyle)

	for i, w := range []float64{8, 24, 14, 8, 10, 10, 12} {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	return f, fmt.Sprintf("備料清單_%s.xlsx", c.CaseID), nil
}
