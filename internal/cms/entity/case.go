package entity

import (
	"time"

	"gorm.io/datatypes"
)

// 案件状态
const (
	CaseStatusAssessment   = "assessment"
	CaseStatusDeposit      = "deposit"
	CaseStatusPlanning     = "planning"
	CaseStatusConstruction = "construction"
	CaseStatusFinalPayment = "final_payment"
	CaseStatusCompleted    = "completed"
	CaseStatusWarranty     = "warranty"

	// 旧版状态，读取时映射到新流程
	caseStatusLegacyNew      = "new"
	caseStatusLegacyProgress = "progress"
	caseStatusLegacyDone     = "done"
)

// CaseStatusOrder 案件生命周期顺序
var CaseStatusOrder = []string{
	CaseStatusAssessment,
	CaseStatusDeposit,
	CaseStatusPlanning,
	CaseStatusConstruction,
	CaseStatusFinalPayment,
	CaseStatusCompleted,
	CaseStatusWarranty,
}

// CaseStatusLabels 状态显示名称
var CaseStatusLabels = map[string]string{
	CaseStatusAssessment:   "現場評估",
	CaseStatusDeposit:      "收到訂金",
	CaseStatusPlanning:     "行程規劃",
	CaseStatusConstruction: "施工中",
	CaseStatusFinalPayment: "請領尾款",
	CaseStatusCompleted:    "完工驗收",
	CaseStatusWarranty:     "保固期",
}

var caseStatusNextAction = map[string]string{
	CaseStatusAssessment:   "請確認報價並收取訂金",
	CaseStatusDeposit:      "請開始規劃行程與備料",
	CaseStatusPlanning:     "準備進場施工",
	CaseStatusConstruction: "施工至期中，請申請尾款",
	CaseStatusFinalPayment: "尾款確認後繼續完工",
	CaseStatusCompleted:    "進入保固服務期",
	CaseStatusWarranty:     "案件已結案",
}

// NormalizeCaseStatus 把旧版状态映射为生命周期状态，未知值返回空串
func NormalizeCaseStatus(status string) string {
	switch status {
	case caseStatusLegacyNew:
		return CaseStatusAssessment
	case caseStatusLegacyProgress:
		return CaseStatusConstruction
	case caseStatusLegacyDone:
		return CaseStatusCompleted
	}
	for _, s := range CaseStatusOrder {
		if s == status {
			return s
		}
	}
	return ""
}

// NextCaseStatus 返回下一阶段；已在最后阶段时返回自身
func NextCaseStatus(status string) string {
	status = NormalizeCaseStatus(status)
	for i, s := range CaseStatusOrder {
		if s == status && i < len(CaseStatusOrder)-1 {
			return CaseStatusOrder[i+1]
		}
	}
	if status == "" {
		return CaseStatusAssessment
	}
	return status
}

// CaseStatusNextAction 当前阶段的下一步提示
func CaseStatusNextAction(status string) string {
	return caseStatusNextAction[NormalizeCaseStatus(status)]
}

// Case 案件实体（聚合根）
type Case struct {
	CaseID                string                               `json:"case_id" gorm:"primaryKey;size:128"`
	CreatedDate           time.Time                            `json:"created_date"`
	StartDate             string                               `json:"start_date" gorm:"size:10"`
	CustomerName          string                               `json:"customer_name" gorm:"size:64;not null"`
	Phone                 string                               `json:"phone" gorm:"size:32"`
	LineID                string                               `json:"line_id" gorm:"size:64"`
	Address               string                               `json:"address" gorm:"size:256"`
	AddressNote           string                               `json:"address_note" gorm:"size:128"`
	Latitude              *float64                             `json:"latitude"`
	Longitude             *float64                             `json:"longitude"`
	Geohash               string                               `json:"geohash" gorm:"size:12;index"`
	Status                string                               `json:"status" gorm:"size:16;not null;default:assessment;index"`
	Zones                 datatypes.JSONSlice[Zone]            `json:"zones"`
	SpecialNote           string                               `json:"special_note" gorm:"type:text"`
	FormalQuotedPrice     int                                  `json:"formal_quoted_price" gorm:"not null;default:0"`
	ManualPriceAdjustment int                                  `json:"manual_price_adjustment" gorm:"not null;default:0"`
	FinalPrice            int                                  `json:"final_price" gorm:"not null;default:0"`
	Schedule              datatypes.JSONSlice[ScheduleTask]    `json:"schedule"`
	Logs                  datatypes.JSONSlice[ConstructionLog] `json:"logs"`
	WarrantyRecords       datatypes.JSON                       `json:"warranty_records"`
	ChangeOrders          datatypes.JSON                       `json:"change_orders"`
	CreatedBy             string                               `json:"created_by" gorm:"size:32"`
	UpdatedAt             time.Time                            `json:"updated_at"`
}

func (Case) TableName() string {
	return "cases"
}

// HasCoordinates 是否已有经纬度
func (c *Case) HasCoordinates() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// Zone 施工区域
type Zone struct {
	ZoneID                string             `json:"zone_id"`
	ZoneName              string             `json:"zone_name"`
	Category              string             `json:"category"`
	MethodID              string             `json:"method_id"`
	MethodName            string             `json:"method_name"`
	Unit                  string             `json:"unit"`
	UnitPrice             float64            `json:"unit_price"`
	DifficultyCoefficient float64            `json:"difficulty_coefficient"`
	Items                 []ConstructionItem `json:"items"`
}

// ConstructionItem 测量项
type ConstructionItem struct {
	ItemID    string   `json:"item_id"`
	Length    float64  `json:"length"`
	Width     float64  `json:"width"`
	AreaPing  float64  `json:"area_ping"`
	Quantity  float64  `json:"quantity"`
	ItemPrice int      `json:"item_price"`
	Note      string   `json:"note,omitempty"`
	Photos    []string `json:"photos"`
}

// ScheduleTask 排程任务
type ScheduleTask struct {
	TaskID      string `json:"task_id"`
	Date        string `json:"date"`
	ZoneName    string `json:"zone_name"`
	TaskName    string `json:"task_name"`
	IsCompleted bool   `json:"is_completed"`
}

// BreakPeriod 休息时段，时间格式 HH:MM
type BreakPeriod struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

// ConstructionLog 施工日志
type ConstructionLog struct {
	ID           string        `json:"id"`
	Date         string        `json:"date"`
	Weather      string        `json:"weather"`
	Action       string        `json:"action"`
	Description  string        `json:"description"`
	BeforePhotos []string      `json:"before_photos"`
	AfterPhotos  []string      `json:"after_photos"`
	StartTime    string        `json:"start_time,omitempty"`
	Breaks       []BreakPeriod `json:"breaks"`
	EndTime      string        `json:"end_time,omitempty"`
	DelayDays    int           `json:"delay_days"`
	IsNoWorkDay  bool          `json:"is_no_work_day"`
}

// StandardLogActions 日志常用施作项目
var StandardLogActions = []string{
	"現場勘查 / SITE VISIT",
	"基層清潔 / CLEANING",
	"材料準備 / PREPARATION",
	"壁癌刮除 / SCRAPING",
	"打除工程 / DEMOLITION",
	"防水底膠 / PRIMER",
	"中塗防水 / COATING",
	"裂縫填補 / PATCHING",
	"面漆塗裝 / PAINTING",
	"場地復原 / RESTORATION",
	"完工驗收 / ACCEPTANCE",
}

// NoWorkDayAction 不施工日的默认动作
const NoWorkDayAction = "工期順延 (當日不施工)"
