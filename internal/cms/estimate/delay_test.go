package estimate

import (
	"fmt"
	"testing"

	"github.com/bethreewater/island7/internal/cms/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSchedule() []entity.ScheduleTask {
	return []entity.ScheduleTask{
		{TaskID: "Z1-0", Date: "2024-01-01", ZoneName: "頂樓", TaskName: "高壓清洗", IsCompleted: true},
		{TaskID: "Z1-1", Date: "2024-01-02", ZoneName: "頂樓", TaskName: "底漆"},
		{TaskID: "Z1-2", Date: "2024-01-03", ZoneName: "頂樓", TaskName: "面漆"},
		{TaskID: "Z2-0", Date: "2024-01-03", ZoneName: "外牆", TaskName: "清洗"},
	}
}

func TestDelayLogShiftsPendingTasksFromLogDate(t *testing.T) {
	schedule := sampleSchedule()
	log := &entity.ConstructionLog{Date: "2024-01-02", IsNoWorkDay: true, DelayDays: 2}

	out, outcome, err := ApplyLog(schedule, log)
	require.NoError(t, err)

	assert.Equal(t, OutcomeShifted, outcome)
	assert.Equal(t, "2024-01-01", out[0].Date, "completed task stays")
	assert.Equal(t, "2024-01-04", out[1].Date)
	assert.Equal(t, "2024-01-05", out[2].Date)
	assert.Equal(t, "2024-01-05", out[3].Date)
	for _, task := range out[1:] {
		assert.False(t, task.IsCompleted, "delay log never completes tasks")
	}
	assert.Equal(t, "2024-01-02", schedule[1].Date, "input schedule untouched")
}

func TestDelayLogSkipsTasksBeforeLogDate(t *testing.T) {
	log := &entity.ConstructionLog{Date: "2024-01-03", DelayDays: 1}

	out, _, err := ApplyLog(sampleSchedule(), log)
	require.NoError(t, err)

	assert.Equal(t, "2024-01-02", out[1].Date)
	assert.Equal(t, "2024-01-04", out[2].Date)
	assert.Equal(t, "2024-01-04", out[3].Date)
}

func TestNoWorkDayDefaultsToOneDayDelay(t *testing.T) {
	log := &entity.ConstructionLog{Date: "2024-01-02", IsNoWorkDay: true}
	NormalizeLog(log)
	assert.Equal(t, NoWorkDayDelay, log.DelayDays)

	out, outcome, err := ApplyLog(sampleSchedule(), log)
	require.NoError(t, err)

	assert.Equal(t, OutcomeShifted, outcome)
	assert.Equal(t, "2024-01-03", out[1].Date)
	assert.Equal(t, "2024-01-04", out[2].Date)
	assert.Equal(t, "2024-01-04", out[3].Date)
}

func TestNormalizeLogKeepsExplicitDelay(t *testing.T) {
	log := &entity.ConstructionLog{Date: "2024-01-02", IsNoWorkDay: true, DelayDays: 3}
	NormalizeLog(log)
	assert.Equal(t, 3, log.DelayDays)

	working := &entity.ConstructionLog{Date: "2024-01-02"}
	NormalizeLog(working)
	assert.Zero(t, working.DelayDays)
}

func TestDelayLogNeverMovesCompletedTasks(t *testing.T) {
	schedule := []entity.ScheduleTask{
		{TaskID: "Z1-0", Date: "2024-01-03", TaskName: "底漆", IsCompleted: true},
		{TaskID: "Z1-1", Date: "2024-01-04", TaskName: "面漆", IsCompleted: true},
		{TaskID: "Z1-2", Date: "2024-01-04", TaskName: "收尾"},
	}
	log := &entity.ConstructionLog{Date: "2024-01-03", IsNoWorkDay: true, DelayDays: 2}

	out, outcome, err := ApplyLog(schedule, log)
	require.NoError(t, err)

	assert.Equal(t, OutcomeShifted, outcome)
	assert.Equal(t, "2024-01-03", out[0].Date)
	assert.Equal(t, "2024-01-04", out[1].Date)
	assert.True(t, out[0].IsCompleted)
	assert.True(t, out[1].IsCompleted)
	assert.Equal(t, "2024-01-06", out[2].Date)
}

func TestDelayLogWithOnlyCompletedTasksShiftsNothing(t *testing.T) {
	schedule := []entity.ScheduleTask{
		{TaskID: "Z1-0", Date: "2024-01-05", TaskName: "面漆", IsCompleted: true},
	}
	out, outcome, err := ApplyLog(schedule, &entity.ConstructionLog{Date: "2024-01-03", DelayDays: 1})
	require.NoError(t, err)

	assert.Equal(t, OutcomeNone, outcome)
	assert.Equal(t, schedule, out)
}

func TestNormalLogCompletesSameDayTasks(t *testing.T) {
	log := &entity.ConstructionLog{Date: "2024-01-03", Action: "面漆施工"}

	out, outcome, err := ApplyLog(sampleSchedule(), log)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, outcome)
	assert.True(t, out[2].IsCompleted)
	assert.True(t, out[3].IsCompleted)
	assert.False(t, out[1].IsCompleted)
	assert.Equal(t, "2024-01-03", out[2].Date)
}

func TestApplyLogRejectsBadDate(t *testing.T) {
	_, _, err := ApplyLog(sampleSchedule(), &entity.ConstructionLog{Date: "01/03/2024"})
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestUpsertLogReplacesByIDAndSorts(t *testing.T) {
	logs := []entity.ConstructionLog{
		{ID: "L2", Date: "2024-01-02"},
		{ID: "L1", Date: "2024-01-01"},
	}

	logs = UpsertLog(logs, entity.ConstructionLog{ID: "L3", Date: "2024-01-03"})
	require.Len(t, logs, 3)
	assert.Equal(t, "L3", logs[0].ID)

	logs = UpsertLog(logs, entity.ConstructionLog{ID: "L1", Date: "2024-01-01", Action: "改"})
	require.Len(t, logs, 3)
	assert.Equal(t, "改", logs[2].Action)
}

func TestSyncLogsIsIdempotent(t *testing.T) {
	n := 0
	newID := func() string {
		n++
		return fmt.Sprintf("LOG-AUTO-%d", n)
	}
	schedule := sampleSchedule()

	created := SyncLogs(schedule, nil, "2024-01-02", newID)
	require.Len(t, created, 2)
	assert.Equal(t, "高壓清洗 / 頂樓", created[0].Action)
	assert.Equal(t, PlaceholderWeather, created[0].Weather)
	assert.Equal(t, PlaceholderDescription, created[0].Description)
	assert.NotEqual(t, created[0].ID, created[1].ID)

	again := SyncLogs(schedule, created, "2024-01-02", newID)
	assert.Empty(t, again)
}

func TestTotalDelayDays(t *testing.T) {
	logs := []entity.ConstructionLog{{DelayDays: 2}, {DelayDays: 0}, {DelayDays: 3}}
	assert.Equal(t, 5, TotalDelayDays(logs))
}
