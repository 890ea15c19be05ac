package handler

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bethreewater/island7/internal/cms/service"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// CatalogHandler 工法、材料、配方目录处理器
type CatalogHandler struct {
	svc       *service.CatalogService
	materials *service.MaterialService
}

// NewCatalogHandler 创建目录处理器
func NewCatalogHandler(svc *service.CatalogService, materials *service.MaterialService) *CatalogHandler {
	return &CatalogHandler{svc: svc, materials: materials}
}

// ListMethods 工法列表
// GET /api/v1/catalog/methods?category=
func (h *CatalogHandler) ListMethods(c *gin.Context) {
	methods, err := h.svc.ListMethods(c.Request.Context(), c.Query("category"))
	if err != nil {
		respondError(c, "获取工法列表失败", err)
		return
	}
	Success(c, gin.H{"items": methods})
}

// GetMethod 工法详情
// GET /api/v1/catalog/methods/:id
func (h *CatalogHandler) GetMethod(c *gin.Context) {
	m, err := h.svc.GetMethod(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "获取工法失败", err)
		return
	}
	Success(c, m)
}

// QuickEstimate 按面积与严重程度快速估算材料成本
// GET /api/v1/catalog/methods/:id/estimate?area=&severity=
func (h *CatalogHandler) QuickEstimate(c *gin.Context) {
	area, err := strconv.ParseFloat(c.Query("area"), 64)
	if err != nil {
		BadRequest(c, "面积格式错误")
		return
	}
	result, err := h.materials.QuickEstimate(c.Request.Context(), c.Param("id"), area, c.Query("severity"))
	if err != nil {
		respondError(c, "估算失败", err)
		return
	}
	Success(c, result)
}

// CreateMethod 新增工法
// POST /api/v1/catalog/methods
func (h *CatalogHandler) CreateMethod(c *gin.Context) {
	var req service.MethodInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	m, err := h.svc.CreateMethod(c.Request.Context(), req)
	if err != nil {
		respondError(c, "创建工法失败", err)
		return
	}
	Created(c, m)
}

// UpdateMethod 修改工法
// PUT /api/v1/catalog/methods/:id
func (h *CatalogHandler) UpdateMethod(c *gin.Context) {
	var req service.MethodInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	m, err := h.svc.UpdateMethod(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, "更新工法失败", err)
		return
	}
	Success(c, m)
}

// DeleteMethod 删除工法及其配方
// DELETE /api/v1/catalog/methods/:id
func (h *CatalogHandler) DeleteMethod(c *gin.Context) {
	if err := h.svc.DeleteMethod(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, "删除工法失败", err)
		return
	}
	Success(c, nil)
}

// ListMaterials 材料列表
// GET /api/v1/catalog/materials?category=&keyword=
func (h *CatalogHandler) ListMaterials(c *gin.Context) {
	materials, err := h.svc.ListMaterials(c.Request.Context(), c.Query("category"), c.Query("keyword"))
	if err != nil {
		respondError(c, "获取材料列表失败", err)
		return
	}
	Success(c, gin.H{"items": materials})
}

// CreateMaterial 新增材料
// POST /api/v1/catalog/materials
func (h *CatalogHandler) CreateMaterial(c *gin.Context) {
	var req service.MaterialInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	m, err := h.svc.CreateMaterial(c.Request.Context(), req)
	if err != nil {
		respondError(c, "创建材料失败", err)
		return
	}
	Created(c, m)
}

// UpdateMaterial 修改材料
// PUT /api/v1/catalog/materials/:id
func (h *CatalogHandler) UpdateMaterial(c *gin.Context) {
	var req service.MaterialInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	m, err := h.svc.UpdateMaterial(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, "更新材料失败", err)
		return
	}
	Success(c, m)
}

// DeleteMaterial 删除材料
// DELETE /api/v1/catalog/materials/:id
func (h *CatalogHandler) DeleteMaterial(c *gin.Context) {
	if err := h.svc.DeleteMaterial(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, "删除材料失败", err)
		return
	}
	Success(c, nil)
}

// ListRecipes 工法配方（含材料）
// GET /api/v1/catalog/recipes?method_id=
func (h *CatalogHandler) ListRecipes(c *gin.Context) {
	recipes, err := h.svc.ListRecipes(c.Request.Context(), c.Query("method_id"))
	if err != nil {
		respondError(c, "获取配方失败", err)
		return
	}
	Success(c, gin.H{"items": recipes})
}

// CreateRecipe 新增配方
// POST /api/v1/catalog/recipes
func (h *CatalogHandler) CreateRecipe(c *gin.Context) {
	var req service.RecipeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	r, err := h.svc.CreateRecipe(c.Request.Context(), req)
	if err != nil {
		respondError(c, "创建配方失败", err)
		return
	}
	Created(c, r)
}

// UpdateRecipe 修改配方
// PUT /api/v1/catalog/recipes/:id
func (h *CatalogHandler) UpdateRecipe(c *gin.Context) {
	var req service.RecipeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	r, err := h.svc.UpdateRecipe(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, "更新配方失败", err)
		return
	}
	Success(c, r)
}

// DeleteRecipe 删除配方
// DELETE /api/v1/catalog/recipes/:id
func (h *CatalogHandler) DeleteRecipe(c *gin.Context) {
	if err := h.svc.DeleteRecipe(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, "删除配方失败", err)
		return
	}
	Success(c, nil)
}

// ImportRecipes 导入配方表，支持 CSV（UTF-8 或 Big5）和 xlsx
// POST /api/v1/catalog/recipes/import
func (h *CatalogHandler) ImportRecipes(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "请上传配方表")
		return
	}
	defer file.Close()

	var result *service.ImportResult
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".xlsx", ".xlsm":
		f, err := excelize.OpenReader(file)
		if err != nil {
			BadRequest(c, "无法解析Excel文件: "+err.Error())
			return
		}
		defer f.Close()
		result, err = h.svc.ImportRecipesExcel(c.Request.Context(), f)
		if err != nil {
			respondError(c, "导入配方失败", err)
			return
		}
	case ".csv", ".txt", "":
		result, err = h.svc.ImportRecipesCSV(c.Request.Context(), file)
		if err != nil {
			respondError(c, "导入配方失败", err)
			return
		}
	default:
		BadRequest(c, "仅支持 CSV 或 xlsx 文件")
		return
	}

	Success(c, result)
}
