package repository_test

import (
	"context"
	"testing"

	"github.com/bethreewater/island7/internal/cms/entity"
	"github.com/bethreewater/island7/internal/cms/repository"
	"github.com/bethreewater/island7/internal/cms/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListWithMaterialsKeepsOrphanRecipes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	testutil.SeedTestMethod(t, db, "WP-01", entity.UnitPing, 6390, "清洗", "底漆")
	require.NoError(t, repos.Material.Create(ctx, &entity.Material{ID: "MAT-1", Name: "防水漆", UnitPrice: 1000}))
	require.NoError(t, repos.Recipe.Create(ctx, &entity.MethodRecipe{
		ID: "R1", MethodID: "WP-01", MaterialID: "MAT-1", Category: entity.RecipeVariable, ConsumptionRate: 0.1,
	}))
	require.NoError(t, repos.Recipe.Create(ctx, &entity.MethodRecipe{
		ID: "R2", MethodID: "WP-01", MaterialID: "MAT-GONE", Category: entity.RecipeFixed, Quantity: 1,
	}))

	rows, err := repos.Recipe.ListWithMaterials(ctx, []string{"WP-01", "NOPE"})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byID := map[string]repository.RecipeWithMaterial{}
	for _, r := range rows {
		byID[r.ID] = r
	}
	require.NotNil(t, byID["R1"].Material)
	assert.Equal(t, "防水漆", byID["R1"].Material.Name)
	assert.Nil(t, byID["R2"].Material)

	empty, err := repos.Recipe.ListWithMaterials(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestInsertIgnoreSkipsExisting(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewMethodRepository(db)
	ctx := context.Background()

	methods := []entity.Method{
		{ID: "WP-01", Category: entity.CategoryWallWaterproof, Name: "外牆透明防水", DefaultUnit: entity.UnitPing},
		{ID: "CR-01", Category: entity.CategoryCrack, Name: "裂縫填補", DefaultUnit: entity.UnitMeter},
	}
	require.NoError(t, repo.InsertIgnore(ctx, methods))

	methods[0].Name = "changed"
	require.NoError(t, repo.InsertIgnore(ctx, methods))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	m, err := repo.FindByID(ctx, "WP-01")
	require.NoError(t, err)
	assert.Equal(t, "外牆透明防水", m.Name)

	byID, err := repo.MapByIDs(ctx, []string{"WP-01", "XX"})
	require.NoError(t, err)
	assert.Len(t, byID, 1)
}

func TestMethodDeleteRemovesRecipes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	testutil.SeedTestMethod(t, db, "WP-01", entity.UnitPing, 100, "清洗")
	require.NoError(t, repos.Recipe.Create(ctx, &entity.MethodRecipe{ID: "R1", MethodID: "WP-01", MaterialID: "M"}))

	require.NoError(t, repos.Method.Delete(ctx, "WP-01"))
	_, err := repos.Recipe.FindByID(ctx, "R1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, repos.Method.Delete(ctx, "WP-01"), repository.ErrNotFound)
}
