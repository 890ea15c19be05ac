package handler

import (
	"net/url"

	"github.com/bethreewater/island7/internal/cms/service"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// ExportHandler 备料清单与文件输出
type ExportHandler struct {
	materials *service.MaterialService
	documents *service.DocumentService
}

// NewExportHandler 创建输出处理器
func NewExportHandler(materials *service.MaterialService, documents *service.DocumentService) *ExportHandler {
	return &ExportHandler{materials: materials, documents: documents}
}

// Materials 案件备料清单
// GET /api/v1/cases/:id/materials
func (h *ExportHandler) Materials(c *gin.Context) {
	list, err := h.materials.ForCase(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "计算备料失败", err)
		return
	}
	Success(c, list)
}

// ExportMaterials 下载备料清单
// GET /api/v1/cases/:id/materials/export
func (h *ExportHandler) ExportMaterials(c *gin.Context) {
	f, filename, err := h.materials.Export(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "导出备料失败", err)
		return
	}
	defer f.Close()
	writeWorkbook(c, f, filename)
}

// Document 生成评估单、合约或请款单
// GET /api/v1/cases/:id/documents/:kind
func (h *ExportHandler) Document(c *gin.Context) {
	f, filename, err := h.documents.Generate(c.Request.Context(), c.Param("id"), c.Param("kind"))
	if err != nil {
		respondError(c, "生成文件失败", err)
		return
	}
	defer f.Close()
	writeWorkbook(c, f, filename)
}

func writeWorkbook(c *gin.Context, f *excelize.File, filename string) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write excel: "+err.Error())
	}
}
