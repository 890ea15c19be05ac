package estimate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bethreewater/island7/internal/cms/entity"
)

// 自动同步生成的占位日志
const (
	PlaceholderWeather     = "晴天"
	PlaceholderDescription = "[系統自動生成] 請點擊編輯紀錄現場打卡。"
)

// LogOutcome 保存日志对排程的影响
type LogOutcome int

const (
	OutcomeNone LogOutcome = iota
	OutcomeShifted
	OutcomeCompleted
)

// NoWorkDayDelay 不施工日未填写天数时的默认顺延天数
const NoWorkDayDelay = 1

// NormalizeLog 不施工日未填写延期天数时按顺延一天处理
func NormalizeLog(log *entity.ConstructionLog) {
	if log.IsNoWorkDay && log.DelayDays <= 0 {
		log.DelayDays = NoWorkDayDelay
	}
}

// IsDelayLog 不施工日或填写了延期天数的日志会顺延排程
func IsDelayLog(log *entity.ConstructionLog) bool {
	return log.IsNoWorkDay || log.DelayDays > 0
}

// ApplyLog 根据日志更新排程，返回新排程
//
// 延期日志：日期 >= 日志日期且未完成的任务顺延 DelayDays 个自然日，已完成任务不动。
// 正常施工日志：日期等于日志日期的任务全部标记完成。
// 两种处理互斥。
func ApplyLog(schedule []entity.ScheduleTask, log *entity.ConstructionLog) ([]entity.ScheduleTask, LogOutcome, error) {
	if _, err := ParseDate(log.Date); err != nil {
		return nil, OutcomeNone, err
	}

	out := make([]entity.ScheduleTask, len(schedule))
	copy(out, schedule)

	if IsDelayLog(log) {
		if log.DelayDays <= 0 {
			return out, OutcomeNone, nil
		}
		shifted := false
		for i := range out {
			task := &out[i]
			if task.IsCompleted || task.Date < log.Date {
				continue
			}
			next, err := AddDays(task.Date, log.DelayDays)
			if err != nil {
				return nil, OutcomeNone, fmt.Errorf("shift task %s: %w", task.TaskID, err)
			}
			task.Date = next
			shifted = true
		}
		if !shifted {
			return out, OutcomeNone, nil
		}
		return out, OutcomeShifted, nil
	}

	completed := false
	for i := range out {
		if out[i].Date == log.Date && !out[i].IsCompleted {
			out[i].IsCompleted = true
			completed = true
		}
	}
	if !completed {
		return out, OutcomeNone, nil
	}
	return out, OutcomeCompleted, nil
}

// UpsertLog 按 ID 新增或替换日志，结果按日期倒序
func UpsertLog(logs []entity.ConstructionLog, log entity.ConstructionLog) []entity.ConstructionLog {
	out := make([]entity.ConstructionLog, 0, len(logs)+1)
	replaced := false
	for _, l := range logs {
		if l.ID == log.ID {
			out = append(out, log)
			replaced = true
			continue
		}
		out = append(out, l)
	}
	if !replaced {
		out = append([]entity.ConstructionLog{log}, out...)
	}
	SortLogs(out)
	return out
}

// SortLogs 日志按日期倒序
func SortLogs(logs []entity.ConstructionLog) {
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Date > logs[j].Date
	})
}

// SyncLogs 为今天及以前、尚无对应日志的任务生成占位日志，newID 生成日志ID
//
// 日期相同且日志动作包含任务名即视为已记录，重复执行不会产生重复日志。
func SyncLogs(schedule []entity.ScheduleTask, logs []entity.ConstructionLog, today string, newID func() string) []entity.ConstructionLog {
	var created []entity.ConstructionLog
	for _, task := range schedule {
		if task.Date > today {
			continue
		}
		if isLogged(logs, task) {
			continue
		}
		created = append(created, entity.ConstructionLog{
			ID:           newID(),
			Date:         task.Date,
			Weather:      PlaceholderWeather,
			Action:       fmt.Sprintf("%s / %s", task.TaskName, task.ZoneName),
			Description:  PlaceholderDescription,
			BeforePhotos: []string{},
			AfterPhotos:  []string{},
			Breaks:       []entity.BreakPeriod{},
		})
	}
	return created
}

func isLogged(logs []entity.ConstructionLog, task entity.ScheduleTask) bool {
	for _, l := range logs {
		if l.Date == task.Date && strings.Contains(l.Action, task.TaskName) {
			return true
		}
	}
	return false
}

// TotalDelayDays 日志累计顺延天数
func TotalDelayDays(logs []entity.ConstructionLog) int {
	total := 0
	for _, l := range logs {
		if l.DelayDays > 0 {
			total += l.DelayDays
		}
	}
	return total
}
