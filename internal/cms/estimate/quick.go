package estimate

import (
	"errors"
	"math"

	"github.com/bethreewater/island7/internal/cms/entity"
)

// 快速估算的严重程度
const (
	SeverityLight  = "light"
	SeverityMedium = "medium"
	SeveritySevere = "severe"
)

var severityMultipliers = map[string]float64{
	SeverityLight:  0.8,
	SeverityMedium: 1.0,
	SeveritySevere: 1.2,
}

// SeverityLabels 严重程度显示名称
var SeverityLabels = map[string]string{
	SeverityLight:  "輕微",
	SeverityMedium: "中度",
	SeveritySevere: "嚴重",
}

// 估算区间上下浮动比例
const quickVariance = 0.15

var ErrUnknownSeverity = errors.New("unknown severity")

// QuickLine 快速估算的单项材料
type QuickLine struct {
	MaterialID string  `json:"material_id"`
	Name       string  `json:"name"`
	Unit       string  `json:"unit"`
	UnitPrice  float64 `json:"unit_price"`
	Quantity   float64 `json:"quantity"`
	Cost       float64 `json:"cost"`
}

// QuickResult 快速估算结果，只含材料成本不含人工
type QuickResult struct {
	Area       float64     `json:"area"`
	Severity   string      `json:"severity"`
	Multiplier float64     `json:"multiplier"`
	Lines      []QuickLine `json:"lines"`
	Min        int         `json:"min"`
	Max        int         `json:"max"`
	Average    int         `json:"average"`
}

// SeverityMultiplier 严重程度系数，空值按中度
func SeverityMultiplier(severity string) (float64, error) {
	if severity == "" {
		severity = SeverityMedium
	}
	m, ok := severityMultipliers[severity]
	if !ok {
		return 0, ErrUnknownSeverity
	}
	return m, nil
}

// QuickEstimate 按面积与严重程度估算单一工法的耗材用量
//
// 只计 variable 配方；用量 = 消耗率 × 面积 × 系数，向上取到 0.1。
func QuickEstimate(recipes []Recipe, area float64, severity string) (*QuickResult, error) {
	if severity == "" {
		severity = SeverityMedium
	}
	multiplier, err := SeverityMultiplier(severity)
	if err != nil {
		return nil, err
	}

	result := &QuickResult{
		Area:       area,
		Severity:   severity,
		Multiplier: multiplier,
		Lines:      []QuickLine{},
	}
	if area <= 0 {
		return result, nil
	}

	total := 0.0
	for _, r := range recipes {
		if r.Category != entity.RecipeVariable || r.Material == nil {
			continue
		}
		qty := math.Ceil(r.ConsumptionRate*area*multiplier*10) / 10
		cost := qty * r.Material.UnitPrice
		result.Lines = append(result.Lines, QuickLine{
			MaterialID: r.Material.ID,
			Name:       r.Material.Name,
			Unit:       r.Material.Unit,
			UnitPrice:  r.Material.UnitPrice,
			Quantity:   qty,
			Cost:       cost,
		})
		total += cost
	}

	if len(result.Lines) > 0 {
		result.Min = int(math.Floor(total * (1 - quickVariance)))
		result.Max = int(math.Ceil(total * (1 + quickVariance)))
		result.Average = int(math.Round(total))
	}
	return result, nil
}
