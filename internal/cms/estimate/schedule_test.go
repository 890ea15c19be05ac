package estimate

import (
	"testing"
	"time"

	"github.com/bethreewater/island7/internal/cms/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeStepMethod() entity.Method {
	return entity.Method{
		ID: "WP-01",
		Steps: []entity.MethodStep{
			{Name: "高壓清洗 / WASH"},
			{Name: "透明底漆 / BASE"},
			{Name: "透明面漆 / TOP"},
		},
	}
}

func TestGenerateScheduleDatesFollowStepIndex(t *testing.T) {
	start := time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC)
	zones := []entity.Zone{{ZoneID: "Z1", ZoneName: "前陽台外牆", MethodID: "WP-01"}}
	methods := map[string]entity.Method{"WP-01": threeStepMethod()}

	tasks := GenerateSchedule(start, zones, methods)

	require.Len(t, tasks, 3)
	assert.Equal(t, "2024-01-01", tasks[0].Date)
	assert.Equal(t, "2024-01-02", tasks[1].Date)
	assert.Equal(t, "2024-01-03", tasks[2].Date)
	assert.Equal(t, "Z1-1", tasks[1].TaskID)
	assert.Equal(t, "透明底漆 / BASE", tasks[1].TaskName)
	assert.Equal(t, "前陽台外牆", tasks[1].ZoneName)
	for _, task := range tasks {
		assert.False(t, task.IsCompleted)
	}
}

func TestGenerateScheduleRunsZonesInParallel(t *testing.T) {
	start := time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC)
	zones := []entity.Zone{
		{ZoneID: "Z1", ZoneName: "A", MethodID: "WP-01"},
		{ZoneID: "Z2", ZoneName: "B", MethodID: "WP-01"},
		{ZoneID: "Z3", ZoneName: "C", MethodID: "UNKNOWN"},
	}
	methods := map[string]entity.Method{"WP-01": threeStepMethod()}

	tasks := GenerateSchedule(start, zones, methods)

	require.Len(t, tasks, 6)
	assert.Equal(t, "2024-01-30", tasks[0].Date)
	assert.Equal(t, "2024-01-30", tasks[3].Date)
	assert.Equal(t, "2024-02-01", tasks[5].Date)

	first, last := ScheduleSpan(tasks)
	assert.Equal(t, "2024-01-30", first)
	assert.Equal(t, "2024-02-01", last)
}

func TestAddDaysAcrossMonth(t *testing.T) {
	d, err := AddDays("2024-02-28", 2)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", d)

	_, err = AddDays("2024/02/28", 1)
	assert.ErrorIs(t, err, ErrInvalidDate)
}
