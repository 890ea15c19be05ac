package handler

import (
	"errors"
	"strconv"

	"github.com/bethreewater/island7/internal/cms/caseid"
	"github.com/bethreewater/island7/internal/cms/estimate"
	"github.com/bethreewater/island7/internal/cms/service"
	"github.com/bethreewater/island7/internal/cms/sse"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers 处理器集合
type Handlers struct {
	Auth      *AuthHandler
	Case      *CaseHandler
	Catalog   *CatalogHandler
	Export    *ExportHandler
	Map       *MapHandler
	Upload    *UploadHandler
	Analytics *AnalyticsHandler
	SSE       *SSEHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, hub *sse.Hub, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		Auth:      NewAuthHandler(svc.Auth),
		Case:      NewCaseHandler(svc.Case),
		Catalog:   NewCatalogHandler(svc.Catalog, svc.Material),
		Export:    NewExportHandler(svc.Material, svc.Document),
		Map:       NewMapHandler(svc.Case),
		Upload:    NewUploadHandler(svc.Photo),
		Analytics: NewAnalyticsHandler(svc.Analytics),
		SSE:       NewSSEHandler(hub, logger.Named("sse")),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse 列表响应结构
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// Unauthorized 未授权响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// Conflict 状态冲突响应
func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// ServiceUnavailable 依赖未配置
func ServiceUnavailable(c *gin.Context, message string) {
	Error(c, 50300, message)
}

// respondError 按服务层错误类型映射响应
func respondError(c *gin.Context, action string, err error) {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, caseid.ErrInvalidID),
		errors.Is(err, estimate.ErrUnknownField):
		BadRequest(c, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		Unauthorized(c, err.Error())
	case errors.Is(err, service.ErrCaseNotFound):
		NotFound(c, "案件不存在")
	case errors.Is(err, service.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, service.ErrAlreadyFormal):
		Conflict(c, "案件已成案")
	case errors.Is(err, service.ErrStorageNotConfigured):
		ServiceUnavailable(c, "storage not configured")
	default:
		InternalError(c, action+": "+err.Error())
	}
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

func newListResponse(items interface{}, total int64, page, pageSize int) ListResponse {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	}
}
