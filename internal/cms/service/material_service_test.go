package service

import (
	"context"
	"testing"

	"github.com/bethreewater/island7/internal/cms/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterialsForCase(t *testing.T) {
	f := newCaseFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repos.Material.Create(ctx, &entity.Material{ID: "MAT-roller", Name: "滾筒", Unit: "支", UnitPrice: 120}))
	require.NoError(t, f.repos.Material.Create(ctx, &entity.Material{ID: "MAT-coat", Name: "透明防水膠", Unit: "桶", UnitPrice: 3000}))
	require.NoError(t, f.repos.Recipe.Create(ctx, &entity.MethodRecipe{ID: "REC-1", MethodID: "WP-01", MaterialID: "MAT-roller", Quantity: 2, Category: entity.RecipeFixed}))
	require.NoError(t, f.repos.Recipe.Create(ctx, &entity.MethodRecipe{ID: "REC-2", MethodID: "WP-01", MaterialID: "MAT-coat", Category: entity.RecipeVariable, ConsumptionRate: 0.1}))
	require.NoError(t, f.repos.Recipe.Create(ctx, &entity.MethodRecipe{ID: "REC-3", MethodID: "WP-01", MaterialID: "MAT-gone", Category: entity.RecipeVariable, ConsumptionRate: 1}))

	c := f.create(t, "王先生")
	for _, name := range []string{"前牆", "後牆"} {
		var err error
		c, err = f.svc.AddZone(ctx, c.CaseID, ZoneInput{ZoneName: name, MethodID: "WP-01"}, "u1")
		require.NoError(t, err)
	}
	length, width := 1000.0, 1000.0
	_, err := f.svc.UpdateItem(ctx, c.CaseID, c.Zones[0].ZoneID, c.Zones[0].Items[0].ItemID, ItemPatch{Length: &length, Width: &width}, "u1")
	require.NoError(t, err)

	svc := NewMaterialService(f.repos.Recipe, f.svc)
	list, err := svc.ForCase(ctx, c.CaseID)
	require.NoError(t, err)

	require.Len(t, list.Tools, 1)
	assert.Equal(t, 2.0, list.Tools[0].Quantity, "tools are shared across zones")
	require.Len(t, list.Consumables, 1)
	// 30.25 坪 + 空区域按 1 坪
	assert.InDelta(t, 3.125, list.Consumables[0].Quantity, 1e-9)
	assert.InDelta(t, 240+3.125*3000, list.TotalCost, 1e-6)

	xlsx, name, err := svc.Export(ctx, c.CaseID)
	require.NoError(t, err)
	defer xlsx.Close()
	assert.Equal(t, "備料清單_EVAL-20240315-001-王先生.xlsx", name)
	rows, err := xlsx.GetRows("備料清單")
	require.NoError(t, err)
	assert.Len(t, rows, 4, "header, two lines, total")
	assert.True(t, containsCell(rows, "滾筒"))
}

func TestQuickEstimateForMethod(t *testing.T) {
	f := newCaseFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repos.Material.Create(ctx, &entity.Material{ID: "MAT-roller", Name: "滾筒", Unit: "支", UnitPrice: 120}))
	require.NoError(t, f.repos.Material.Create(ctx, &entity.Material{ID: "MAT-coat", Name: "透明防水膠", Unit: "桶", UnitPrice: 200}))
	require.NoError(t, f.repos.Recipe.Create(ctx, &entity.MethodRecipe{ID: "REC-1", MethodID: "WP-01", MaterialID: "MAT-roller", Quantity: 2, Category: entity.RecipeFixed}))
	require.NoError(t, f.repos.Recipe.Create(ctx, &entity.MethodRecipe{ID: "REC-2", MethodID: "WP-01", MaterialID: "MAT-coat", Category: entity.RecipeVariable, ConsumptionRate: 0.5}))

	svc := NewMaterialService(f.repos.Recipe, f.svc)

	res, err := svc.QuickEstimate(ctx, "WP-01", 10, "")
	require.NoError(t, err)
	require.Len(t, res.Lines, 1, "tools are not part of the quick estimate")
	assert.Equal(t, "透明防水膠", res.Lines[0].Name)
	assert.InDelta(t, 5.0, res.Lines[0].Quantity, 1e-9)
	assert.Equal(t, 1000, res.Average)

	res, err = svc.QuickEstimate(ctx, "CR-01", 10, "severe")
	require.NoError(t, err)
	assert.Empty(t, res.Lines, "method without recipes")

	_, err = svc.QuickEstimate(ctx, "NOPE", 10, "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.QuickEstimate(ctx, "WP-01", 10, "extreme")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.QuickEstimate(ctx, "WP-01", -1, "")
	assert.ErrorIs(t, err, ErrValidation)
}
