package estimate

import (
	"sort"

	"github.com/bethreewater/island7/internal/cms/entity"
)

// UnknownMaterialName 配方引用的材料不存在时的显示名称
const UnknownMaterialName = "未知材料"

// Recipe 计算用的配方，Material 为空表示材料已被删除
type Recipe struct {
	MethodID        string
	Category        string
	Quantity        float64
	ConsumptionRate float64
	Material        *entity.Material
}

// MaterialLine 备料清单的一行
type MaterialLine struct {
	MaterialID string  `json:"material_id"`
	Name       string  `json:"name"`
	Brand      string  `json:"brand,omitempty"`
	Unit       string  `json:"unit"`
	Category   string  `json:"category"`
	Quantity   float64 `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	Cost       float64 `json:"cost"`
}

// MaterialList 备料清单
type MaterialList struct {
	Tools       []MaterialLine `json:"tools"`
	Consumables []MaterialLine `json:"consumables"`
	TotalCost   float64        `json:"total_cost"`
}

// AggregateMaterials 汇总全部区域的用料
//
// fixed 配方（工具）在项目内可重复使用，取各区域需求的最大值；
// variable 配方（耗材）按区域面积消耗，各区域累加。
func AggregateMaterials(zones []entity.Zone, recipes []Recipe) MaterialList {
	byMethod := make(map[string][]Recipe)
	for _, r := range recipes {
		byMethod[r.MethodID] = append(byMethod[r.MethodID], r)
	}

	totals := make(map[string]*MaterialLine)
	var order []string

	for i := range zones {
		zone := &zones[i]
		zoneRecipes := byMethod[zone.MethodID]
		if len(zoneRecipes) == 0 {
			continue
		}
		area := ZoneArea(zone)
		if area == 0 {
			area = 1
		}

		for _, r := range zoneRecipes {
			mat := r.Material
			if mat == nil {
				continue
			}

			line, ok := totals[mat.ID]
			if !ok {
				line = &MaterialLine{
					MaterialID: mat.ID,
					Name:       mat.Name,
					Brand:      mat.Brand,
					Unit:       mat.Unit,
					Category:   r.Category,
					UnitPrice:  mat.UnitPrice,
				}
				if line.Name == "" {
					line.Name = UnknownMaterialName
				}
				totals[mat.ID] = line
				order = append(order, mat.ID)
			}

			if r.Category == entity.RecipeFixed {
				needed := r.Quantity
				if needed == 0 {
					needed = 1
				}
				if needed > line.Quantity {
					line.Quantity = needed
					line.Cost = needed * mat.UnitPrice
				}
			} else {
				amount := r.ConsumptionRate * area
				line.Quantity += amount
				line.Cost += amount * mat.UnitPrice
			}
		}
	}

	result := MaterialList{
		Tools:       []MaterialLine{},
		Consumables: []MaterialLine{},
	}
	for _, id := range order {
		line := *totals[id]
		result.TotalCost += line.Cost
		if line.Category == entity.RecipeFixed {
			result.Tools = append(result.Tools, line)
		} else {
			result.Consumables = append(result.Consumables, line)
		}
	}
	sortByCost(result.Tools)
	sortByCost(result.Consumables)
	return result
}

func sortByCost(lines []MaterialLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].Cost != lines[j].Cost {
			return lines[i].Cost > lines[j].Cost
		}
		return lines[i].Name < lines[j].Name
	})
}
