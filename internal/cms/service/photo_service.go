package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// MaxPhotoSize 上传文件最大 20MB
const MaxPhotoSize = 20 << 20

var photoTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".heic": "image/heic",
}

// StoredPhoto 上传结果
type StoredPhoto struct {
	Object      string `json:"object"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// PhotoService 现场照片存储
type PhotoService struct {
	minioClient *minio.Client
	bucketName  string
	publicURL   string
	now         Clock
}

// NewPhotoService 创建照片服务，minioClient 为 nil 时上传不可用
func NewPhotoService(minioClient *minio.Client, bucketName, publicURL string) *PhotoService {
	return &PhotoService{
		minioClient: minioClient,
		bucketName:  bucketName,
		publicURL:   strings.TrimRight(publicURL, "/"),
		now:         time.Now,
	}
}

// Enabled 是否已配置对象存储
func (s *PhotoService) Enabled() bool {
	return s.minioClient != nil
}

// EnsureBucket 启动时创建存储桶
func (s *PhotoService) EnsureBucket(ctx context.Context) error {
	if s.minioClient == nil {
		return nil
	}
	exists, err := s.minioClient.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.minioClient.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket: %w", err)
	}
	return nil
}

// PhotoObjectName 生成存储路径 cases/<日期>/<随机8位><扩展名>
func PhotoObjectName(day time.Time, fileName string) (string, string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	contentType, ok := photoTypes[ext]
	if !ok {
		return "", "", fmt.Errorf("%w: unsupported file type %q", ErrValidation, ext)
	}
	return fmt.Sprintf("cases/%s/%s%s", day.Format("2006-01-02"), uuid.New().String()[:8], ext), contentType, nil
}

// Upload 上传照片，返回可写入测量项或日志的地址
func (s *PhotoService) Upload(ctx context.Context, reader io.Reader, fileName string, size int64) (*StoredPhoto, error) {
	if s.minioClient == nil {
		return nil, ErrStorageNotConfigured
	}
	if size <= 0 || size > MaxPhotoSize {
		return nil, fmt.Errorf("%w: file size %d out of range", ErrValidation, size)
	}
	objectName, contentType, err := PhotoObjectName(s.now(), fileName)
	if err != nil {
		return nil, err
	}

	_, err = s.minioClient.PutObject(ctx, s.bucketName, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}

	return &StoredPhoto{
		Object:      objectName,
		URL:         s.URL(objectName),
		Size:        size,
		ContentType: contentType,
	}, nil
}

// URL 对外访问地址
func (s *PhotoService) URL(objectName string) string {
	if s.publicURL != "" {
		return s.publicURL + "/" + s.bucketName + "/" + objectName
	}
	return "/api/v1/files/" + objectName
}

// Open 读取照片
func (s *PhotoService) Open(ctx context.Context, objectName string) (io.ReadCloser, *minio.ObjectInfo, error) {
	if s.minioClient == nil {
		return nil, nil, ErrStorageNotConfigured
	}
	objectName = strings.TrimPrefix(path.Clean("/"+objectName), "/")
	if !strings.HasPrefix(objectName, "cases/") {
		return nil, nil, fmt.Errorf("object %s: %w", objectName, ErrNotFound)
	}

	object, err := s.minioClient.GetObject(ctx, s.bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("get object: %w", err)
	}
	info, err := object.Stat()
	if err != nil {
		object.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nil, fmt.Errorf("object %s: %w", objectName, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("stat object: %w", err)
	}
	return object, &info, nil
}
