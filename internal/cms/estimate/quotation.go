package estimate

import (
	"math"

	"github.com/bethreewater/island7/internal/cms/entity"
)

// 订金比例，其余为尾款
const depositRatio = 0.7

// Subtotal 全部测量项价格之和
func Subtotal(zones []entity.Zone) int {
	total := 0
	for i := range zones {
		total += ZoneTotal(&zones[i])
	}
	return total
}

// FinalPrice 结算价 = 小计 + 手动调整（可为负数）
func FinalPrice(zones []entity.Zone, manualAdjustment int) int {
	return Subtotal(zones) + manualAdjustment
}

// PaymentSplit 拆分订金与尾款，两者之和等于总价
func PaymentSplit(total int) (deposit, final int) {
	deposit = int(math.Round(float64(total) * depositRatio))
	return deposit, total - deposit
}

// Quotation 报价汇总
type Quotation struct {
	Subtotal         int         `json:"subtotal"`
	ManualAdjustment int         `json:"manual_adjustment"`
	FinalPrice       int         `json:"final_price"`
	Deposit          int         `json:"deposit"`
	FinalPayment     int         `json:"final_payment"`
	Zones            []ZoneQuote `json:"zones"`
}

// ZoneQuote 区域小计
type ZoneQuote struct {
	ZoneID     string  `json:"zone_id"`
	ZoneName   string  `json:"zone_name"`
	MethodName string  `json:"method_name"`
	Unit       string  `json:"unit"`
	Basis      float64 `json:"basis"`
	Total      int     `json:"total"`
}

// BuildQuotation 汇总报价
func BuildQuotation(zones []entity.Zone, manualAdjustment int) Quotation {
	q := Quotation{
		Subtotal:         Subtotal(zones),
		ManualAdjustment: manualAdjustment,
		Zones:            make([]ZoneQuote, 0, len(zones)),
	}
	q.FinalPrice = q.Subtotal + manualAdjustment
	q.Deposit, q.FinalPayment = PaymentSplit(q.FinalPrice)

	for i := range zones {
		zone := &zones[i]
		basis := ZoneArea(zone)
		if !IsAreaUnit(zone.Unit) {
			basis = 0
			for _, item := range zone.Items {
				basis += item.Quantity
			}
		}
		q.Zones = append(q.Zones, ZoneQuote{
			ZoneID:     zone.ZoneID,
			ZoneName:   zone.ZoneName,
			MethodName: zone.MethodName,
			Unit:       zone.Unit,
			Basis:      round2(basis),
			Total:      ZoneTotal(zone),
		})
	}
	return q
}
