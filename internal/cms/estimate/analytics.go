package estimate

import (
	"math"
	"sort"

	"github.com/bethreewater/island7/internal/cms/entity"
)

const defaultExpectedDays = 7

// MethodPerformance 工法表现
type MethodPerformance struct {
	MethodID        string  `json:"method_id"`
	MethodName      string  `json:"method_name"`
	TotalCases      int     `json:"total_cases"`
	OnTimeCases     int     `json:"on_time_cases"`
	DelayedCases    int     `json:"delayed_cases"`
	OnTimeRate      float64 `json:"on_time_rate"`
	AvgActualDays   int     `json:"avg_actual_days"`
	AvgExpectedDays int     `json:"avg_expected_days"`
}

// DelayedCase 延期案件
type DelayedCase struct {
	CaseID       string `json:"case_id"`
	CustomerName string `json:"customer_name"`
	DelayDays    int    `json:"delay_days"`
	MethodName   string `json:"method_name"`
	Status       string `json:"status"`
}

// IsOnTime 没有逾期未完成的任务且没有延期日志
func IsOnTime(c *entity.Case, today string) bool {
	for _, t := range c.Schedule {
		if !t.IsCompleted && t.Date < today {
			return false
		}
	}
	return TotalDelayDays(c.Logs) == 0
}

// ActualConstructionDays 首尾日志之间的天数（含首尾）
func ActualConstructionDays(c *entity.Case) int {
	first, last := "", ""
	for _, l := range c.Logs {
		if first == "" || l.Date < first {
			first = l.Date
		}
		if l.Date > last {
			last = l.Date
		}
	}
	if first == "" {
		return 0
	}
	start, err1 := ParseDate(first)
	end, err2 := ParseDate(last)
	if err1 != nil || err2 != nil {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// CaseDelayDays 日志累计顺延天数；没有延期日志时取最早逾期任务至今的天数
func CaseDelayDays(c *entity.Case, today string) int {
	if d := TotalDelayDays(c.Logs); d > 0 {
		return d
	}
	earliest := ""
	for _, t := range c.Schedule {
		if !t.IsCompleted && t.Date < today && (earliest == "" || t.Date < earliest) {
			earliest = t.Date
		}
	}
	if earliest == "" {
		return 0
	}
	from, err1 := ParseDate(earliest)
	to, err2 := ParseDate(today)
	if err1 != nil || err2 != nil {
		return 0
	}
	days := int(to.Sub(from).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func isStatus(status string, set ...string) bool {
	status = entity.NormalizeCaseStatus(status)
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

// AnalyzeMethodPerformance 按工法统计施工中及已完工案件，按案件数倒序
func AnalyzeMethodPerformance(cases []entity.Case, methods map[string]entity.Method, today string) []MethodPerformance {
	type acc struct {
		perf      MethodPerformance
		seen      map[string]bool
		totalDays int
	}
	stats := make(map[string]*acc)
	var order []string

	for i := range cases {
		c := &cases[i]
		if !isStatus(c.Status, entity.CaseStatusConstruction, entity.CaseStatusFinalPayment,
			entity.CaseStatusCompleted, entity.CaseStatusWarranty) {
			continue
		}
		for _, zone := range c.Zones {
			if zone.MethodID == "" || zone.MethodName == "" {
				continue
			}
			a, ok := stats[zone.MethodID]
			if !ok {
				a = &acc{
					perf: MethodPerformance{MethodID: zone.MethodID, MethodName: zone.MethodName},
					seen: make(map[string]bool),
				}
				stats[zone.MethodID] = a
				order = append(order, zone.MethodID)
			}
			if a.seen[c.CaseID] {
				continue
			}
			a.seen[c.CaseID] = true
			a.perf.TotalCases++
			if IsOnTime(c, today) {
				a.perf.OnTimeCases++
			}
			a.totalDays += ActualConstructionDays(c)
		}
	}

	result := make([]MethodPerformance, 0, len(order))
	for _, id := range order {
		a := stats[id]
		p := a.perf
		p.DelayedCases = p.TotalCases - p.OnTimeCases
		if p.TotalCases > 0 {
			p.OnTimeRate = float64(p.OnTimeCases) / float64(p.TotalCases) * 100
			p.AvgActualDays = int(math.Round(float64(a.totalDays) / float64(p.TotalCases)))
		}
		p.AvgExpectedDays = defaultExpectedDays
		if m, ok := methods[id]; ok && m.EstimatedDays > 0 {
			p.AvgExpectedDays = m.EstimatedDays
		}
		result = append(result, p)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].TotalCases > result[j].TotalCases
	})
	return result
}

// DelayedCases 有延期的案件，延期天数多的在前
func DelayedCases(cases []entity.Case, today string) []DelayedCase {
	result := make([]DelayedCase, 0)
	for i := range cases {
		c := &cases[i]
		days := CaseDelayDays(c, today)
		if days <= 0 {
			continue
		}
		methodName := "未指定工法"
		if len(c.Zones) > 0 {
			methodName = c.Zones[0].MethodName
		}
		result = append(result, DelayedCase{
			CaseID:       c.CaseID,
			CustomerName: c.CustomerName,
			DelayDays:    days,
			MethodName:   methodName,
			Status:       entity.NormalizeCaseStatus(c.Status),
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].DelayDays > result[j].DelayDays
	})
	return result
}

// OverallOnTimeRate 已完工案件的准时率，没有已完工案件时为100
func OverallOnTimeRate(cases []entity.Case, today string) float64 {
	done, onTime := 0, 0
	for i := range cases {
		if !isStatus(cases[i].Status, entity.CaseStatusCompleted, entity.CaseStatusWarranty) {
			continue
		}
		done++
		if IsOnTime(&cases[i], today) {
			onTime++
		}
	}
	if done == 0 {
		return 100
	}
	return float64(onTime) / float64(done) * 100
}

// AvgConstructionDays 已完工且有日志的案件平均施工天数
func AvgConstructionDays(cases []entity.Case) int {
	n, total := 0, 0
	for i := range cases {
		c := &cases[i]
		if !isStatus(c.Status, entity.CaseStatusCompleted, entity.CaseStatusWarranty) || len(c.Logs) == 0 {
			continue
		}
		n++
		total += ActualConstructionDays(c)
	}
	if n == 0 {
		return 0
	}
	return int(math.Round(float64(total) / float64(n)))
}

// StatusCounts 各状态案件数
func StatusCounts(cases []entity.Case) map[string]int {
	counts := make(map[string]int, len(entity.CaseStatusOrder))
	for _, s := range entity.CaseStatusOrder {
		counts[s] = 0
	}
	for i := range cases {
		if s := entity.NormalizeCaseStatus(cases[i].Status); s != "" {
			counts[s]++
		}
	}
	return counts
}
