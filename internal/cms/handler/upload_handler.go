package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/bethreewater/island7/internal/cms/service"
	"github.com/gin-gonic/gin"
)

// UploadHandler 现场照片上传
type UploadHandler struct {
	svc *service.PhotoService
}

// NewUploadHandler 创建上传处理器
func NewUploadHandler(svc *service.PhotoService) *UploadHandler {
	return &UploadHandler{svc: svc}
}

// Upload 上传照片，支持多文件
// POST /api/v1/uploads
func (h *UploadHandler) Upload(c *gin.Context) {
	if !h.svc.Enabled() {
		ServiceUnavailable(c, "storage not configured")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		BadRequest(c, "无法解析上传文件: "+err.Error())
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}
	if len(files) == 0 {
		BadRequest(c, "没有上传文件")
		return
	}

	uploaded := make([]*service.StoredPhoto, 0, len(files))
	for _, fileHeader := range files {
		stored, err := h.store(c, fileHeader)
		if err != nil {
			respondError(c, "上传失败", err)
			return
		}
		uploaded = append(uploaded, stored)
	}

	Success(c, gin.H{"items": uploaded})
}

func (h *UploadHandler) store(c *gin.Context, fileHeader *multipart.FileHeader) (*service.StoredPhoto, error) {
	src, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return h.svc.Upload(c.Request.Context(), src, fileHeader.Filename, fileHeader.Size)
}

// Serve 读取照片
// GET /api/v1/files/*object
func (h *UploadHandler) Serve(c *gin.Context) {
	object, info, err := h.svc.Open(c.Request.Context(), c.Param("object"))
	if err != nil {
		respondError(c, "读取文件失败", err)
		return
	}
	defer object.Close()

	c.Header("Content-Type", info.ContentType)
	c.Header("Content-Length", strconv.FormatInt(info.Size, 10))
	c.Header("Cache-Control", "private, max-age=86400")
	c.Status(http.StatusOK)
	io.Copy(c.Writer, object)
}
