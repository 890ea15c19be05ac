package handler

import (
	"github.com/bethreewater/island7/internal/cms/service"
	"github.com/gin-gonic/gin"
)

// MapHandler 案件地图
type MapHandler struct {
	svc *service.CaseService
}

func NewMapHandler(svc *service.CaseService) *MapHandler {
	return &MapHandler{svc: svc}
}

// Markers 地图标记
// GET /api/v1/map/markers?status=&geohash=
func (h *MapHandler) Markers(c *gin.Context) {
	markers, err := h.svc.Markers(c.Request.Context(), c.Query("status"), c.Query("geohash"))
	if err != nil {
		respondError(c, "获取地图标记失败", err)
		return
	}
	Success(c, gin.H{"items": markers})
}

// Backfill 为没有坐标的案件补定位
// POST /api/v1/map/backfill
func (h *MapHandler) Backfill(c *gin.Context) {
	updated, err := h.svc.BackfillLocations(c.Request.Context(), GetUserID(c))
	if err != nil {
		respondError(c, "补定位失败", err)
		return
	}
	Success(c, gin.H{"updated": updated})
}
