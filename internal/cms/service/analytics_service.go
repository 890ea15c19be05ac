package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bethreewater/island7/internal/cms/entity"
	"github.com/bethreewater/island7/internal/cms/estimate"
	"github.com/bethreewater/island7/internal/cms/repository"
)

// Overview 经营概况
type Overview struct {
	TotalCases          int                          `json:"total_cases"`
	Revenue             int                          `json:"revenue"`
	StatusCounts        map[string]int               `json:"status_counts"`
	OnTimeRate          float64                      `json:"on_time_rate"`
	AvgConstructionDays int                          `json:"avg_construction_days"`
	MethodPerformance   []estimate.MethodPerformance `json:"method_performance"`
	DelayedCases        []estimate.DelayedCase       `json:"delayed_cases"`
	GeneratedAt         time.Time                    `json:"generated_at"`
}

// AnalyticsService 统计分析
type AnalyticsService struct {
	caseRepo   *repository.CaseRepository
	methodRepo *repository.MethodRepository
	wb         *WriteBehind
	now        Clock
}

// NewAnalyticsService 创建统计服务
func NewAnalyticsService(caseRepo *repository.CaseRepository, methodRepo *repository.MethodRepository, wb *WriteBehind) *AnalyticsService {
	return &AnalyticsService{caseRepo: caseRepo, methodRepo: methodRepo, wb: wb, now: time.Now}
}

// Overview 统计全部案件，含尚未落库的编辑
func (s *AnalyticsService) Overview(ctx context.Context) (*Overview, error) {
	cases, err := s.cases(ctx)
	if err != nil {
		return nil, err
	}

	methods, err := s.methodRepo.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list methods: %w", err)
	}
	byID := make(map[string]entity.Method, len(methods))
	for _, m := range methods {
		byID[m.ID] = m
	}

	now := s.now()
	today := now.Format(estimate.DateLayout)
	return &Overview{
		TotalCases:          len(cases),
		Revenue:             estimate.Revenue(cases),
		StatusCounts:        estimate.StatusCounts(cases),
		OnTimeRate:          estimate.OverallOnTimeRate(cases, today),
		AvgConstructionDays: estimate.AvgConstructionDays(cases),
		MethodPerformance:   estimate.AnalyzeMethodPerformance(cases, byID, today),
		DelayedCases:        estimate.DelayedCases(cases, today),
		GeneratedAt:         now,
	}, nil
}

// Today 今日任务看板
func (s *AnalyticsService) Today(ctx context.Context) (*estimate.TodayBoard, error) {
	cases, err := s.cases(ctx)
	if err != nil {
		return nil, err
	}
	board := estimate.TodayTasks(cases, s.now().Format(estimate.DateLayout))
	return &board, nil
}

func (s *AnalyticsService) cases(ctx context.Context) ([]entity.Case, error) {
	cases, err := s.caseRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	return s.wb.Overlay(cases), nil
}
