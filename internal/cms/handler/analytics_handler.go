package handler

import (
	"github.com/bethreewater/island7/internal/cms/service"
	"github.com/gin-gonic/gin"
)

type AnalyticsHandler struct {
	svc *service.AnalyticsService
}

func NewAnalyticsHandler(svc *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

// Overview 经营概况
// GET /api/v1/analytics/overview
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	overview, err := h.svc.Overview(c.Request.Context())
	if err != nil {
		respondError(c, "统计失败", err)
		return
	}
	Success(c, overview)
}

// Today 今日任务看板
// GET /api/v1/analytics/today
func (h *AnalyticsHandler) Today(c *gin.Context) {
	board, err := h.svc.Today(c.Request.Context())
	if err != nil {
		respondError(c, "获取今日任务失败", err)
		return
	}
	Success(c, board)
}
