package estimate

import (
	"math"
	"sort"

	"github.com/bethreewater/island7/internal/cms/entity"
)

// ActiveCase 今天有待办任务的施工中案件
type ActiveCase struct {
	CaseID       string                `json:"case_id"`
	CustomerName string                `json:"customer_name"`
	Address      string                `json:"address"`
	Tasks        []entity.ScheduleTask `json:"tasks"`
	Progress     int                   `json:"progress"`
	CurrentDay   int                   `json:"current_day"`
	TotalDays    int                   `json:"total_days"`
}

// PendingCase 已排程、等待开工的案件
type PendingCase struct {
	CaseID       string `json:"case_id"`
	CustomerName string `json:"customer_name"`
	Address      string `json:"address"`
	StartDate    string `json:"start_date"`
}

// TodayBoard 今日任务看板
type TodayBoard struct {
	Date         string        `json:"date"`
	Active       []ActiveCase  `json:"active"`
	PendingStart []PendingCase `json:"pending_start"`
}

// Progress 已完成任务占比（百分比取整）
func Progress(schedule []entity.ScheduleTask) int {
	if len(schedule) == 0 {
		return 0
	}
	done := 0
	for _, t := range schedule {
		if t.IsCompleted {
			done++
		}
	}
	return int(math.Round(float64(done) / float64(len(schedule)) * 100))
}

// WorkDay 排程中的第几个施工日，今天不在排程中返回 0
func WorkDay(schedule []entity.ScheduleTask, today string) (current, total int) {
	seen := make(map[string]bool)
	var dates []string
	for _, t := range schedule {
		if !seen[t.Date] {
			seen[t.Date] = true
			dates = append(dates, t.Date)
		}
	}
	sort.Strings(dates)
	for i, d := range dates {
		if d == today {
			current = i + 1
			break
		}
	}
	return current, len(dates)
}

// TodayTasks 施工中案件今天未完成的任务，以及等待开工的案件
func TodayTasks(cases []entity.Case, today string) TodayBoard {
	board := TodayBoard{Date: today, Active: []ActiveCase{}, PendingStart: []PendingCase{}}

	for i := range cases {
		c := &cases[i]
		switch entity.NormalizeCaseStatus(c.Status) {
		case entity.CaseStatusConstruction:
			var tasks []entity.ScheduleTask
			for _, t := range c.Schedule {
				if t.Date == today && !t.IsCompleted {
					tasks = append(tasks, t)
				}
			}
			if len(tasks) == 0 {
				continue
			}
			current, total := WorkDay(c.Schedule, today)
			board.Active = append(board.Active, ActiveCase{
				CaseID:       c.CaseID,
				CustomerName: c.CustomerName,
				Address:      c.Address,
				Tasks:        tasks,
				Progress:     Progress(c.Schedule),
				CurrentDay:   current,
				TotalDays:    total,
			})
		case entity.CaseStatusPlanning:
			board.PendingStart = append(board.PendingStart, PendingCase{
				CaseID:       c.CaseID,
				CustomerName: c.CustomerName,
				Address:      c.Address,
				StartDate:    c.StartDate,
			})
		}
	}

	sort.Slice(board.Active, func(i, j int) bool {
		return board.Active[i].CaseID < board.Active[j].CaseID
	})
	sort.Slice(board.PendingStart, func(i, j int) bool {
		a, b := board.PendingStart[i], board.PendingStart[j]
		if a.StartDate != b.StartDate {
			return a.StartDate < b.StartDate
		}
		return a.CaseID < b.CaseID
	})
	return board
}

// Revenue 全部案件成交金额合计
func Revenue(cases []entity.Case) int {
	total := 0
	for i := range cases {
		total += cases[i].FinalPrice
	}
	return total
}
