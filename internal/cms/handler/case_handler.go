package handler

import (
	"strconv"

	"github.com/bethreewater/island7/internal/cms/estimate"
	"github.com/bethreewater/island7/internal/cms/repository"
	"github.com/bethreewater/island7/internal/cms/service"
	"github.com/gin-gonic/gin"
)

// CaseHandler 案件处理器
type CaseHandler struct {
	svc *service.CaseService
}

// NewCaseHandler 创建案件处理器
func NewCaseHandler(svc *service.CaseService) *CaseHandler {
	return &CaseHandler{svc: svc}
}

// List 案件列表
// GET /api/v1/cases?status=&keyword=&drafts=&page=&page_size=
func (h *CaseHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filter := repository.CaseFilter{
		Status:   c.Query("status"),
		Keyword:  c.Query("keyword"),
		Page:     page,
		PageSize: pageSize,
	}
	if v := c.Query("drafts"); v != "" {
		drafts, err := strconv.ParseBool(v)
		if err != nil {
			BadRequest(c, "drafts 参数错误")
			return
		}
		filter.Drafts = &drafts
	}

	cases, total, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "获取案件列表失败", err)
		return
	}
	Success(c, newListResponse(cases, total, page, pageSize))
}

// Get 案件详情
// GET /api/v1/cases/:id
func (h *CaseHandler) Get(c *gin.Context) {
	cs, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "获取案件失败", err)
		return
	}
	Success(c, cs)
}

// Create 新建评估案件
// POST /api/v1/cases
func (h *CaseHandler) Create(c *gin.Context) {
	var req service.CreateCaseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	cs, err := h.svc.Create(c.Request.Context(), req, GetUserID(c))
	if err != nil {
		respondError(c, "创建案件失败", err)
		return
	}
	Created(c, cs)
}

// Update 修改案件基本资料
// PUT /api/v1/cases/:id
func (h *CaseHandler) Update(c *gin.Context) {
	var req service.UpdateCaseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	cs, err := h.svc.Update(c.Request.Context(), c.Param("id"), req, GetUserID(c))
	if err != nil {
		respondError(c, "更新案件失败", err)
		return
	}
	Success(c, cs)
}

// Delete 删除案件
// DELETE /api/v1/cases/:id
func (h *CaseHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), GetUserID(c)); err != nil {
		respondError(c, "删除案件失败", err)
		return
	}
	Success(c, nil)
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetStatus 设置案件状态
// PUT /api/v1/cases/:id/status
func (h *CaseHandler) SetStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	cs, err := h.svc.SetStatus(c.Request.Context(), c.Param("id"), req.Status, GetUserID(c))
	if err != nil {
		respondError(c, "更新状态失败", err)
		return
	}
	Success(c, cs)
}

// Advance 推进到下一状态
// POST /api/v1/cases/:id/advance
func (h *CaseHandler) Advance(c *gin.Context) {
	cs, err := h.svc.AdvanceStatus(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		respondError(c, "更新状态失败", err)
		return
	}
	Success(c, cs)
}

// Formalize 评估案件成案
// POST /api/v1/cases/:id/formalize
func (h *CaseHandler) Formalize(c *gin.Context) {
	cs, err := h.svc.Formalize(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		respondError(c, "成案失败", err)
		return
	}
	Success(c, cs)
}

// Quotation 报价单
// GET /api/v1/cases/:id/quotation
func (h *CaseHandler) Quotation(c *gin.Context) {
	q, err := h.svc.Quotation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "生成报价失败", err)
		return
	}
	Success(c, q)
}

// RefreshLocation 重新解析地址坐标
// POST /api/v1/cases/:id/geocode
func (h *CaseHandler) RefreshLocation(c *gin.Context) {
	cs, err := h.svc.RefreshLocation(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		respondError(c, "地址解析失败", err)
		return
	}
	Success(c, cs)
}

// ---- 施工区域与测量项 ----

// AddZone 新增施工区域
// POST /api/v1/cases/:id/zones
func (h *CaseHandler) AddZone(c *gin.Context) {
	var req service.ZoneInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	cs, err := h.svc.AddZone(c.Request.Context(), c.Param("id"), req, GetUserID(c))
	if err != nil {
		respondError(c, "新增区域失败", err)
		return
	}
	Created(c, cs)
}

// UpdateZone 修改施工区域
// PUT /api/v1/cases/:id/zones/:zoneId
func (h *CaseHandler) UpdateZone(c *gin.Context) {
	var req service.ZonePatch
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	cs, err := h.svc.UpdateZone(c.Request.Context(), c.Param("id"), c.Param("zoneId"), req, GetUserID(c))
	if err != nil {
		respondError(c, "更新区域失败", err)
		return
	}
	Success(c, cs)
}

// DeleteZone 删除施工区域
// DELETE /api/v1/cases/:id/zones/:zoneId
func (h *CaseHandler) DeleteZone(c *gin.Context) {
	cs, err := h.svc.DeleteZone(c.Request.Context(), c.Param("id"), c.Param("zoneId"), GetUserID(c))
	if err != nil {
		respondError(c, "删除区域失败", err)
		return
	}
	Success(c, cs)
}

// AddItem 新增测量项
// POST /api/v1/cases/:id/zones/:zoneId/items
func (h *CaseHandler) AddItem(c *gin.Context) {
	cs, err := h.svc.AddItem(c.Request.Context(), c.Param("id"), c.Param("zoneId"), GetUserID(c))
	if err != nil {
		respondError(c, "新增测量项失败", err)
		return
	}
	Created(c, cs)
}

// UpdateItem 修改测量项
// PUT /api/v1/cases/:id/zones/:zoneId/items/:itemId
func (h *CaseHandler) UpdateItem(c *gin.Context) {
	var req service.ItemPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	cs, err := h.svc.UpdateItem(c.Request.Context(), c.Param("id"), c.Param("zoneId"), c.Param("itemId"), req, GetUserID(c))
	if err != nil {
		respondError(c, "更新测量项失败", err)
		return
	}
	Success(c, cs)
}

// DeleteItem 删除测量项
// DELETE /api/v1/cases/:id/zones/:zoneId/items/:itemId
func (h *CaseHandler) DeleteItem(c *gin.Context) {
	cs, err := h.svc.DeleteItem(c.Request.Context(), c.Param("id"), c.Param("zoneId"), c.Param("itemId"), GetUserID(c))
	if err != nil {
		respondError(c, "删除测量项失败", err)
		return
	}
	Success(c, cs)
}

// ---- 排程与施工日志 ----

// GenerateSchedule 按工法步骤生成排程
// POST /api/v1/cases/:id/schedule
func (h *CaseHandler) GenerateSchedule(c *gin.Context) {
	cs, err := h.svc.GenerateSchedule(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		respondError(c, "生成排程失败", err)
		return
	}
	Success(c, cs)
}

// UpdateTask 修改排程任务
// PUT /api/v1/cases/:id/schedule/:taskId
func (h *CaseHandler) UpdateTask(c *gin.Context) {
	var req service.TaskPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	cs, err := h.svc.UpdateTask(c.Request.Context(), c.Param("id"), c.Param("taskId"), req, GetUserID(c))
	if err != nil {
		respondError(c, "更新任务失败", err)
		return
	}
	Success(c, cs)
}

// SaveLog 新增或修改施工日志
// POST /api/v1/cases/:id/logs
// PUT  /api/v1/cases/:id/logs/:logId
func (h *CaseHandler) SaveLog(c *gin.Context) {
	var req service.LogInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if logID := c.Param("logId"); logID != "" {
		req.ID = logID
	}

	cs, outcome, err := h.svc.SaveLog(c.Request.Context(), c.Param("id"), req, GetUserID(c))
	if err != nil {
		respondError(c, "保存日志失败", err)
		return
	}
	Success(c, gin.H{"case": cs, "outcome": outcomeName(outcome)})
}

// DeleteLog 删除施工日志，排程不回滚
// DELETE /api/v1/cases/:id/logs/:logId
func (h *CaseHandler) DeleteLog(c *gin.Context) {
	cs, err := h.svc.DeleteLog(c.Request.Context(), c.Param("id"), c.Param("logId"), GetUserID(c))
	if err != nil {
		respondError(c, "删除日志失败", err)
		return
	}
	Success(c, cs)
}

// SyncLogs 为过去的排程任务补占位日志
// POST /api/v1/cases/:id/logs/sync
func (h *CaseHandler) SyncLogs(c *gin.Context) {
	cs, added, err := h.svc.SyncLogs(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		respondError(c, "同步日志失败", err)
		return
	}
	Success(c, gin.H{"case": cs, "added": added})
}

func outcomeName(o estimate.LogOutcome) string {
	switch o {
	case estimate.OutcomeShifted:
		return "shifted"
	case estimate.OutcomeCompleted:
		return "completed"
	default:
		return "none"
	}
}
