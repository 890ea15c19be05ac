package service

import "github.com/bethreewater/island7/internal/cms/entity"

type seedStep struct {
	name, desc string
	prep, exec int
}

func seedMethod(id, category, name, english, unit string, price float64, days int, steps ...seedStep) entity.Method {
	m := entity.Method{
		ID:               id,
		Category:         category,
		Name:             name,
		EnglishName:      english,
		DefaultUnit:      unit,
		DefaultUnitPrice: price,
		EstimatedDays:    days,
		Steps:            make([]entity.MethodStep, 0, len(steps)),
	}
	for _, s := range steps {
		m.Steps = append(m.Steps, entity.MethodStep{
			Name:        s.name,
			Description: s.desc,
			PrepMinutes: s.prep,
			ExecMinutes: s.exec,
		})
	}
	return m
}

// DefaultMethods 首次启动写入的工法目录
func DefaultMethods() []entity.Method {
	return []entity.Method{
		seedMethod("WC-01", entity.CategoryWallCancer, "基礎壁癌遮蓋方案", "Basic Cover", entity.UnitPing, 6390, 6,
			seedStep{"壁癌刮除 / SCRAPE", "確實刮除粉化層", 3, 30},
			seedStep{"消毒處理 / DISINFECT", "1:10 消毒噴灑", 5, 33},
			seedStep{"靜置乾燥 / DRY", "24小時殺菌期", 1440, 0},
			seedStep{"補土工程 / PATCH", "找平凹洞", 480, 30},
			seedStep{"面漆工程 / PAINT", "完工美化", 120, 5},
		),
		seedMethod("WC-02", entity.CategoryWallCancer, "高效防霉滲透方案", "Premium Anti-Mold", entity.UnitPing, 8800, 7,
			seedStep{"深層清刷 / SCRUB", "深層清除黴菌孢子", 10, 45},
			seedStep{"抗鹼封閉 / SEAL", "底漆封閉鹼性物質", 15, 20},
			seedStep{"滲透防水 / PERM", "高效滲透型防水材", 10, 30},
			seedStep{"抗霉中塗 / COAT", "增強防霉層", 30, 40},
			seedStep{"乳膠漆 / LATEX", "高品質面漆", 60, 20},
		),
		seedMethod("WC-03", entity.CategoryWallCancer, "結構型壁癌根治", "Structural Cure", entity.UnitPing, 12500, 10,
			seedStep{"打除見底 / DEMOLISH", "打除至結構層", 20, 120},
			seedStep{"結構修復 / STRUCT", "樹脂砂漿修補", 30, 60},
			seedStep{"負壓防水 / NEG-W", "負壓專用防水", 40, 80},
			seedStep{"粗底抹灰 / PLASTER", "水泥粗底復原", 60, 90},
			seedStep{"粉光處理 / FINISH", "細部找平粉光", 120, 60},
		),
		seedMethod("WP-01", entity.CategoryWallWaterproof, "外牆透明防水膜", "Clear Membrane", entity.UnitPing, 4500, 3,
			seedStep{"高壓清洗 / WASH", "清除牆面髒汙", 30, 60},
			seedStep{"透明底漆 / BASE", "增加附著力", 15, 40},
			seedStep{"透明面漆 / TOP", "二次塗刷形成膜", 20, 50},
		),
		seedMethod("WP-02", entity.CategoryWallWaterproof, "外牆彩色耐候漆", "Weather-Shield", entity.UnitPing, 5800, 4,
			seedStep{"底層修補 / PATCH", "裂縫細微修補", 20, 60},
			seedStep{"彈性底漆 / FLEX-B", "優質彈性底漆", 15, 45},
			seedStep{"彩色面漆一 / COAT1", "第一道耐候面漆", 20, 60},
			seedStep{"彩色面漆二 / COAT2", "第二道耐候面漆", 120, 60},
		),
		seedMethod("RF-01", entity.CategoryRoofWaterproof, "頂樓五層式隔熱", "Roof 5-Layer", entity.UnitPing, 7500, 7,
			seedStep{"舊料清除 / REMOVE", "清除舊有起泡層", 30, 120},
			seedStep{"素地整修 / CLEAN", "整平與灰塵清潔", 20, 60},
			seedStep{"強力底膠 / PRIMER", "高效能底膠", 15, 45},
			seedStep{"抗拉纖維 / MESH", "鋪設抗拉纖維網", 30, 90},
			seedStep{"中塗防水 / MID", "厚塗防水中塗層", 40, 80},
			seedStep{"隔熱面漆 / TOP-H", "反射隔熱面漆", 60, 60},
		),
		seedMethod("CR-01", entity.CategoryCrack, "環氧樹脂灌注", "Epoxy Injection", entity.UnitMeter, 2200, 3,
			seedStep{"鑽孔打頭 / DRILL", "依間距設置針頭", 15, 45},
			seedStep{"封縫處理 / SEAL", "快乾膠封閉縫隙", 10, 30},
			seedStep{"高壓灌注 / INJECT", "注入環氧樹脂", 20, 90},
			seedStep{"拆頭研磨 / GRIND", "拆除針頭並磨平", 30, 60},
		),
		seedMethod("CR-02", entity.CategoryCrack, "V-Cut 裂縫修補", "V-Cut Repair", entity.UnitMeter, 1200, 2,
			seedStep{"開槽處理 / CUT", "切割 V 型槽", 10, 30},
			seedStep{"清潔除塵 / DUST", "強力除塵吹氣", 5, 15},
			seedStep{"彈性填縫 / FILL", "填入彈性修補材", 10, 40},
			seedStep{"表面批土 / FINISH", "批土細磨找平", 30, 30},
		),
		seedMethod("ST-01", entity.CategoryStructure, "鋼筋防鏽結構補強", "Steel Reinforce", entity.UnitPlace, 4500, 4,
			seedStep{"鏽蝕除皮 / SCRAPE", "剔除鬆動水泥", 15, 45},
			seedStep{"除鏽工程 / RUST-R", "鋼筋除鏽拋光", 10, 30},
			seedStep{"轉換底漆 / CONVERT", "紅丹或轉換劑", 10, 20},
			seedStep{"輕質砂漿 / MORTAR", "高強度補強砂漿", 20, 60},
		),
		seedMethod("SL-01", entity.CategorySiliconeBath, "浴室防霉矽利康", "Bath Silicone", entity.UnitMeter, 350, 1,
			seedStep{"舊膠切除 / CUT", "完整切除霉變膠條", 10, 30},
			seedStep{"溶劑清潔 / CLEAN", "酒精去油處理", 5, 15},
			seedStep{"專業施打 / CAULK", "防霉矽利康施打", 5, 20},
		),
		seedMethod("SL-02", entity.CategorySiliconeWindow, "門窗耐候矽利康", "Window Silicone", entity.UnitMeter, 450, 1,
			seedStep{"舊膠剔除 / STRIP", "外部耐候膠剔除", 10, 40},
			seedStep{"底膠塗抹 / BASE", "塗抹接著底漆", 5, 15},
			seedStep{"耐候施打 / SEAL", "中性耐候膠施打", 10, 30},
		),
	}
}
