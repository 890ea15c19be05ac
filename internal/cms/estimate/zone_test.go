package estimate

import (
	"testing"

	"github.com/bethreewater/island7/internal/cms/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pingZone() *entity.Zone {
	return &entity.Zone{
		ZoneID:                "Z1",
		ZoneName:              "客廳牆面",
		Unit:                  entity.UnitPing,
		UnitPrice:             6390,
		DifficultyCoefficient: 1.2,
		Items:                 []entity.ConstructionItem{{ItemID: "I1", Quantity: 1}},
	}
}

func TestAreaPing(t *testing.T) {
	assert.Equal(t, 0.3, AreaPing(100, 100))
	assert.Equal(t, 3.02, AreaPing(400, 250))
	assert.Equal(t, 0.0, AreaPing(0, 250))
}

func TestApplyItemEditRecomputesAreaAndPrice(t *testing.T) {
	zone := pingZone()

	require.NoError(t, ApplyItemEdit(zone, 0, FieldLength, 400))
	item := zone.Items[0]
	assert.Equal(t, 0.0, item.AreaPing)
	assert.Equal(t, 0, item.ItemPrice)

	require.NoError(t, ApplyItemEdit(zone, 0, FieldWidth, 250))
	item = zone.Items[0]
	assert.Equal(t, 3.02, item.AreaPing)
	// round(3.02 * 6390 * 1.2) = round(23157.36)
	assert.Equal(t, 23157, item.ItemPrice)
}

func TestNonAreaUnitPricesOnQuantity(t *testing.T) {
	zone := &entity.Zone{
		Unit:                  entity.UnitMeter,
		UnitPrice:             350,
		DifficultyCoefficient: 1,
		Items:                 []entity.ConstructionItem{{ItemID: "I1"}},
	}

	require.NoError(t, ApplyItemEdit(zone, 0, FieldLength, 300))
	require.NoError(t, ApplyItemEdit(zone, 0, FieldWidth, 300))
	assert.Equal(t, 2.72, zone.Items[0].AreaPing)
	assert.Equal(t, 0, zone.Items[0].ItemPrice, "area must not be used as basis")

	require.NoError(t, ApplyItemEdit(zone, 0, FieldQuantity, 12.5))
	assert.Equal(t, 4375, zone.Items[0].ItemPrice)
}

func TestApplyItemEditErrors(t *testing.T) {
	zone := pingZone()
	assert.ErrorIs(t, ApplyItemEdit(zone, 0, "color", 1), ErrUnknownField)
	assert.Error(t, ApplyItemEdit(zone, 5, FieldLength, 1))
}

func TestMissingInputsDefaultToZero(t *testing.T) {
	zone := &entity.Zone{Unit: entity.UnitPing, Items: []entity.ConstructionItem{{}}}
	require.NoError(t, ApplyItemEdit(zone, 0, FieldLength, 100))
	assert.Equal(t, 0, zone.Items[0].ItemPrice)
}

func TestRepriceZoneAfterUnitPriceChange(t *testing.T) {
	zone := pingZone()
	require.NoError(t, ApplyItemEdit(zone, 0, FieldLength, 100))
	require.NoError(t, ApplyItemEdit(zone, 0, FieldWidth, 100))
	before := zone.Items[0].ItemPrice

	zone.UnitPrice = 10000
	zone.DifficultyCoefficient = 1
	RepriceZone(zone)

	assert.NotEqual(t, before, zone.Items[0].ItemPrice)
	assert.Equal(t, 3000, zone.Items[0].ItemPrice)
}

func TestAssignMethodCopiesDefaults(t *testing.T) {
	zone := &entity.Zone{DifficultyCoefficient: 1, Items: []entity.ConstructionItem{{Quantity: 4}}}
	AssignMethod(zone, &entity.Method{
		ID: "SL-01", Name: "浴室防霉矽利康", Category: entity.CategorySiliconeBath,
		DefaultUnit: entity.UnitMeter, DefaultUnitPrice: 350,
	})

	assert.Equal(t, "SL-01", zone.MethodID)
	assert.Equal(t, entity.UnitMeter, zone.Unit)
	assert.Equal(t, entity.CategorySiliconeBath, zone.Category)
	assert.Equal(t, 1400, zone.Items[0].ItemPrice)
}
