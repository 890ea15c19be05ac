package estimate

import (
	"testing"

	"github.com/bethreewater/island7/internal/cms/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quickRecipes() []Recipe {
	return []Recipe{
		{Category: entity.RecipeVariable, ConsumptionRate: 0.4, Material: &entity.Material{ID: "M1", Name: "防水漆", Unit: "桶", UnitPrice: 200}},
		{Category: entity.RecipeVariable, ConsumptionRate: 0.08, Material: &entity.Material{ID: "M2", Name: "底漆", Unit: "桶", UnitPrice: 250}},
		{Category: entity.RecipeFixed, Quantity: 1, Material: &entity.Material{ID: "M3", Name: "滾筒", Unit: "支", UnitPrice: 150}},
		{Category: entity.RecipeVariable, ConsumptionRate: 1},
	}
}

func TestQuickEstimateVariableRecipesOnly(t *testing.T) {
	res, err := QuickEstimate(quickRecipes(), 10, SeverityMedium)
	require.NoError(t, err)

	require.Len(t, res.Lines, 2, "fixed recipes and missing materials are skipped")
	assert.Equal(t, "M1", res.Lines[0].MaterialID)
	assert.InDelta(t, 4.0, res.Lines[0].Quantity, 1e-9)
	assert.InDelta(t, 800.0, res.Lines[0].Cost, 1e-9)
	assert.InDelta(t, 0.8, res.Lines[1].Quantity, 1e-9)
	assert.InDelta(t, 200.0, res.Lines[1].Cost, 1e-9)

	assert.Equal(t, 1000, res.Average)
	assert.Equal(t, 850, res.Min)
	assert.Equal(t, 1150, res.Max)
}

func TestQuickEstimateSeverityAndRounding(t *testing.T) {
	recipes := []Recipe{
		{Category: entity.RecipeVariable, ConsumptionRate: 0.5, Material: &entity.Material{ID: "M1", UnitPrice: 100}},
		{Category: entity.RecipeVariable, ConsumptionRate: 0.25, Material: &entity.Material{ID: "M2", UnitPrice: 100}},
	}

	res, err := QuickEstimate(recipes, 10, SeverityLight)
	require.NoError(t, err)
	assert.Equal(t, 0.8, res.Multiplier)
	assert.InDelta(t, 4.0, res.Lines[0].Quantity, 1e-9)

	res, err = QuickEstimate(recipes, 3, "")
	require.NoError(t, err)
	assert.Equal(t, SeverityMedium, res.Severity)
	// 0.75 向上取到 0.8
	assert.InDelta(t, 0.8, res.Lines[1].Quantity, 1e-9)
}

func TestQuickEstimateEdgeCases(t *testing.T) {
	_, err := QuickEstimate(quickRecipes(), 10, "extreme")
	assert.ErrorIs(t, err, ErrUnknownSeverity)

	res, err := QuickEstimate(quickRecipes(), 0, SeveritySevere)
	require.NoError(t, err)
	assert.Empty(t, res.Lines)
	assert.Zero(t, res.Max)

	res, err = QuickEstimate(nil, 10, SeverityMedium)
	require.NoError(t, err)
	assert.Empty(t, res.Lines)
	assert.Zero(t, res.Average)
}
