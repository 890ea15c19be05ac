package estimate

import (
	"testing"

	"github.com/bethreewater/island7/internal/cms/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyticsCases() []entity.Case {
	return []entity.Case{
		{
			CaseID: "A", CustomerName: "王先生", Status: entity.CaseStatusCompleted,
			Zones: []entity.Zone{{MethodID: "WP-01", MethodName: "外牆透明防水"}},
			Schedule: []entity.ScheduleTask{
				{Date: "2024-01-01", IsCompleted: true},
				{Date: "2024-01-02", IsCompleted: true},
			},
			Logs: []entity.ConstructionLog{{Date: "2024-01-02"}, {Date: "2024-01-01"}},
		},
		{
			CaseID: "B", CustomerName: "林小姐", Status: "progress",
			Zones: []entity.Zone{
				{MethodID: "WP-01", MethodName: "外牆透明防水"},
				{MethodID: "WP-01", MethodName: "外牆透明防水"},
			},
			Schedule: []entity.ScheduleTask{{Date: "2024-01-05"}},
			Logs:     []entity.ConstructionLog{{Date: "2024-01-03", DelayDays: 2, IsNoWorkDay: true}},
		},
		{
			CaseID: "C", Status: entity.CaseStatusAssessment,
			Zones:  []entity.Zone{{MethodID: "CR-01", MethodName: "裂縫填補"}},
		},
	}
}

func TestAnalyzeMethodPerformance(t *testing.T) {
	methods := map[string]entity.Method{"WP-01": {ID: "WP-01", EstimatedDays: 3}}

	perf := AnalyzeMethodPerformance(analyticsCases(), methods, "2024-01-10")

	require.Len(t, perf, 1, "assessment cases are excluded")
	p := perf[0]
	assert.Equal(t, "WP-01", p.MethodID)
	assert.Equal(t, 2, p.TotalCases, "a case counts once per method")
	assert.Equal(t, 1, p.OnTimeCases)
	assert.Equal(t, 1, p.DelayedCases)
	assert.Equal(t, 50.0, p.OnTimeRate)
	assert.Equal(t, 3, p.AvgExpectedDays)
	// (2 + 1) / 2
	assert.Equal(t, 2, p.AvgActualDays)
}

func TestDelayedCases(t *testing.T) {
	cases := analyticsCases()
	cases = append(cases, entity.Case{
		CaseID: "D", Status: entity.CaseStatusConstruction,
		Schedule: []entity.ScheduleTask{{Date: "2024-01-01"}},
	})

	delayed := DelayedCases(cases, "2024-01-10")

	require.Len(t, delayed, 2)
	assert.Equal(t, "D", delayed[0].CaseID)
	assert.Equal(t, 9, delayed[0].DelayDays)
	assert.Equal(t, "未指定工法", delayed[0].MethodName)
	assert.Equal(t, "B", delayed[1].CaseID)
	assert.Equal(t, 2, delayed[1].DelayDays)
	assert.Equal(t, entity.CaseStatusConstruction, delayed[1].Status)
}

func TestOverallRates(t *testing.T) {
	assert.Equal(t, 100.0, OverallOnTimeRate(nil, "2024-01-10"))
	assert.Equal(t, 100.0, OverallOnTimeRate(analyticsCases(), "2024-01-10"))
	assert.Equal(t, 2, AvgConstructionDays(analyticsCases()))
}

func TestStatusCountsNormalizesLegacy(t *testing.T) {
	counts := StatusCounts(analyticsCases())
	assert.Equal(t, 1, counts[entity.CaseStatusCompleted])
	assert.Equal(t, 1, counts[entity.CaseStatusConstruction])
	assert.Equal(t, 1, counts[entity.CaseStatusAssessment])
	assert.Equal(t, 0, counts[entity.CaseStatusWarranty])
}
