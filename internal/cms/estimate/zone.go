// Package estimate 估价与排程计算
//
// 区域测量 → 单项价格 → 材料用量 → 成本 → 总价，以及
// 工法步骤 → 排程 → 延期顺延。全部是纯函数，不访问数据库。
package estimate

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/bethreewater/island7/internal/cms/entity"
)

// 平方公分换算坪：cm² / 10000 * 0.3025
const pingFactor = 0.3025

// 可编辑的测量字段
const (
	FieldLength   = "length"
	FieldWidth    = "width"
	FieldQuantity = "quantity"
)

var ErrUnknownField = errors.New("unknown item field")

// AreaPing 由长宽(cm)计算面积(坪)，保留两位小数
func AreaPing(length, width float64) float64 {
	return round2(length * width / 10000 * pingFactor)
}

// IsAreaUnit 该计价单位是否按面积计价
func IsAreaUnit(unit string) bool {
	return unit == entity.UnitPing
}

// ItemPrice 单项价格 = round(基数 × 单价 × 难度系数)
// 面积单位以面积为基数，其余单位以数量为基数
func ItemPrice(zone *entity.Zone, item *entity.ConstructionItem) int {
	basis := item.Quantity
	if IsAreaUnit(zone.Unit) {
		basis = item.AreaPing
	}
	return int(math.Round(basis * zone.UnitPrice * zone.DifficultyCoefficient))
}

// ApplyItemEdit 修改测量项的一个字段并同步重算面积和价格
func ApplyItemEdit(zone *entity.Zone, itemIndex int, field string, value float64) error {
	if itemIndex < 0 || itemIndex >= len(zone.Items) {
		return fmt.Errorf("item index %d out of range", itemIndex)
	}
	item := &zone.Items[itemIndex]

	switch field {
	case FieldLength:
		item.Length = value
		item.AreaPing = AreaPing(item.Length, item.Width)
	case FieldWidth:
		item.Width = value
		item.AreaPing = AreaPing(item.Length, item.Width)
	case FieldQuantity:
		item.Quantity = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}

	item.ItemPrice = ItemPrice(zone, item)
	return nil
}

// RepriceZone 区域单价、单位或系数变化后重算全部测量项
func RepriceZone(zone *entity.Zone) {
	for i := range zone.Items {
		item := &zone.Items[i]
		if item.Length != 0 || item.Width != 0 {
			item.AreaPing = AreaPing(item.Length, item.Width)
		}
		item.ItemPrice = ItemPrice(zone, item)
	}
}

// AssignMethod 区域选定工法时带入工法的单位和默认单价
func AssignMethod(zone *entity.Zone, method *entity.Method) {
	zone.MethodID = method.ID
	zone.MethodName = method.Name
	zone.Unit = method.DefaultUnit
	zone.UnitPrice = method.DefaultUnitPrice
	if zone.Category == "" {
		zone.Category = method.Category
	}
	RepriceZone(zone)
}

// ZoneArea 区域总面积(坪)
func ZoneArea(zone *entity.Zone) float64 {
	var total float64
	for _, item := range zone.Items {
		total += item.AreaPing
	}
	return total
}

// ZoneTotal 区域小计
func ZoneTotal(zone *entity.Zone) int {
	total := 0
	for _, item := range zone.Items {
		total += item.ItemPrice
	}
	return total
}

// round2 按十进制精确值保留两位小数
func round2(v float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	return r
}
