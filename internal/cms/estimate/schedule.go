package estimate

import (
	"errors"
	"fmt"
	"time"

	"github.com/bethreewater/island7/internal/cms/entity"
)

// DateLayout 排程与日志使用的日期格式
const DateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date")

// ParseDate 解析 YYYY-MM-DD
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// AddDays 日期加减自然日
func AddDays(date string, days int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, days).Format(DateLayout), nil
}

// GenerateSchedule 按工法步骤展开排程
//
// 每个区域从同一开工日开始，第 i 个步骤排在开工日 + i 天；
// 区域之间不串行，视为由不同班组同时施工。找不到工法的区域跳过。
func GenerateSchedule(start time.Time, zones []entity.Zone, methods map[string]entity.Method) []entity.ScheduleTask {
	base := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	tasks := make([]entity.ScheduleTask, 0)

	for _, zone := range zones {
		method, ok := methods[zone.MethodID]
		if !ok {
			continue
		}
		for i, step := range method.Steps {
			tasks = append(tasks, entity.ScheduleTask{
				TaskID:      fmt.Sprintf("%s-%d", zone.ZoneID, i),
				Date:        base.AddDate(0, 0, i).Format(DateLayout),
				ZoneName:    zone.ZoneName,
				TaskName:    step.Name,
				IsCompleted: false,
			})
		}
	}
	return tasks
}

// ScheduleSpan 排程的起止日期，空排程返回空串
func ScheduleSpan(tasks []entity.ScheduleTask) (first, last string) {
	for _, t := range tasks {
		if first == "" || t.Date < first {
			first = t.Date
		}
		if t.Date > last {
			last = t.Date
		}
	}
	return first, last
}
