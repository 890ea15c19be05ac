package estimate

import (
	"testing"

	"github.com/bethreewater/island7/internal/cms/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zoneWithAreas(id, methodID string, areas ...float64) entity.Zone {
	z := entity.Zone{ZoneID: id, ZoneName: id, MethodID: methodID, Unit: entity.UnitPing}
	for _, a := range areas {
		z.Items = append(z.Items, entity.ConstructionItem{AreaPing: a})
	}
	return z
}

func TestFixedRecipeTakesMaxAcrossZones(t *testing.T) {
	scraper := &entity.Material{ID: "MAT-1", Name: "刮刀", Unit: "支", UnitPrice: 150}
	recipes := []Recipe{{MethodID: "WC-01", Category: entity.RecipeFixed, Quantity: 2, Material: scraper}}
	zones := []entity.Zone{
		zoneWithAreas("Z1", "WC-01", 3),
		zoneWithAreas("Z2", "WC-01", 5),
	}

	list := AggregateMaterials(zones, recipes)

	require.Len(t, list.Tools, 1)
	assert.Empty(t, list.Consumables)
	assert.Equal(t, 2.0, list.Tools[0].Quantity)
	assert.Equal(t, 300.0, list.Tools[0].Cost)
	assert.Equal(t, 300.0, list.TotalCost)
}

func TestVariableRecipeSumsAcrossZones(t *testing.T) {
	paint := &entity.Material{ID: "MAT-2", Name: "防水漆", Unit: "桶", UnitPrice: 1000}
	recipes := []Recipe{{MethodID: "WC-01", Category: entity.RecipeVariable, ConsumptionRate: 0.1, Material: paint}}
	zones := []entity.Zone{
		zoneWithAreas("Z1", "WC-01", 1, 2),
		zoneWithAreas("Z2", "WC-01", 5),
	}

	list := AggregateMaterials(zones, recipes)

	require.Len(t, list.Consumables, 1)
	assert.InDelta(t, 0.8, list.Consumables[0].Quantity, 1e-9)
	assert.InDelta(t, 800, list.Consumables[0].Cost, 1e-6)
}

func TestZeroAreaFallsBackToOne(t *testing.T) {
	paint := &entity.Material{ID: "MAT-2", Name: "防水漆", UnitPrice: 10}
	recipes := []Recipe{{MethodID: "CR-01", Category: entity.RecipeVariable, ConsumptionRate: 0.5, Material: paint}}
	zones := []entity.Zone{zoneWithAreas("Z1", "CR-01")}

	list := AggregateMaterials(zones, recipes)

	require.Len(t, list.Consumables, 1)
	assert.InDelta(t, 0.5, list.Consumables[0].Quantity, 1e-9)
}

func TestFixedQuantityDefaultsToOne(t *testing.T) {
	ladder := &entity.Material{ID: "MAT-3", Name: "鋁梯", UnitPrice: 2000}
	recipes := []Recipe{{MethodID: "WC-01", Category: entity.RecipeFixed, Material: ladder}}

	list := AggregateMaterials([]entity.Zone{zoneWithAreas("Z1", "WC-01", 2)}, recipes)

	require.Len(t, list.Tools, 1)
	assert.Equal(t, 1.0, list.Tools[0].Quantity)
}

func TestMissingMaterialAndUnknownMethodDegrade(t *testing.T) {
	recipes := []Recipe{{MethodID: "WC-01", Category: entity.RecipeFixed, Quantity: 1}}
	zones := []entity.Zone{
		zoneWithAreas("Z1", "WC-01", 2),
		zoneWithAreas("Z2", "NOPE", 2),
	}

	list := AggregateMaterials(zones, recipes)

	assert.Empty(t, list.Tools)
	assert.Empty(t, list.Consumables)
	assert.Zero(t, list.TotalCost)
}

func TestListsSortedByCostDescending(t *testing.T) {
	cheap := &entity.Material{ID: "A", Name: "砂紙", UnitPrice: 10}
	dear := &entity.Material{ID: "B", Name: "環氧樹脂", UnitPrice: 900}
	mid := &entity.Material{ID: "C", Name: "底漆", UnitPrice: 300}
	recipes := []Recipe{
		{MethodID: "M", Category: entity.RecipeVariable, ConsumptionRate: 1, Material: cheap},
		{MethodID: "M", Category: entity.RecipeVariable, ConsumptionRate: 1, Material: dear},
		{MethodID: "M", Category: entity.RecipeVariable, ConsumptionRate: 1, Material: mid},
	}

	list := AggregateMaterials([]entity.Zone{zoneWithAreas("Z1", "M", 1)}, recipes)

	require.Len(t, list.Consumables, 3)
	assert.Equal(t, "B", list.Consumables[0].MaterialID)
	assert.Equal(t, "C", list.Consumables[1].MaterialID)
	assert.Equal(t, "A", list.Consumables[2].MaterialID)
	assert.InDelta(t, 1210, list.TotalCost, 1e-9)
}
