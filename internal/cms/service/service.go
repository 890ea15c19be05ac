package service

import (
	"context"
	"errors"
	"time"

	"github.com/bethreewater/island7/internal/cms/repository"
	"github.com/bethreewater/island7/internal/cms/sse"
	"github.com/bethreewater/island7/internal/config"
	"github.com/bethreewater/island7/internal/shared/geocode"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// 错误定义
var (
	ErrCaseNotFound         = errors.New("case not found")
	ErrValidation           = errors.New("validation failed")
	ErrAlreadyFormal        = errors.New("case is already formal")
	ErrStorageNotConfigured = errors.New("storage not configured")
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrNotFound             = errors.New("not found")
)

// Geocoder 地址解析
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*geocode.Result, error)
}

// Clock 当前时间，测试中可替换
type Clock func() time.Time

// Services 服务集合
type Services struct {
	Auth      *AuthService
	Case      *CaseService
	Catalog   *CatalogService
	Material  *MaterialService
	Document  *DocumentService
	Photo     *PhotoService
	Analytics *AnalyticsService

	WriteBehind *WriteBehind
}

// NewServices 创建服务集合
func NewServices(repos *repository.Repositories, rdb *redis.Client, hub *sse.Hub, cfg *config.Config, logger *zap.Logger) *Services {
	// 初始化MinIO客户端
	var minioClient *minio.Client
	if cfg.MinIO.Enabled() {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("MinIO client init failed, uploads disabled", zap.Error(err))
			minioClient = nil
		}
	}

	var geocoder Geocoder
	if cfg.Geocode.Enabled {
		geocoder = geocode.NewClient(cfg.Geocode.BaseURL, cfg.Geocode.UserAgent, cfg.Geocode.Timeout)
	}

	wb := NewWriteBehind(repos.Case, cfg.CMS.FlushInterval, logger.Named("writebehind"))
	caseSvc := NewCaseService(repos.Case, repos.Method, wb, geocoder, hub, logger.Named("case"))
	materialSvc := NewMaterialService(repos.Recipe, caseSvc)

	return &Services{
		Auth:        NewAuthService(repos.User, rdb, cfg),
		Case:        caseSvc,
		Catalog:     NewCatalogService(repos.Method, repos.Material, repos.Recipe, logger.Named("catalog")),
		Material:    materialSvc,
		Document:    NewDocumentService(caseSvc),
		Photo:       NewPhotoService(minioClient, cfg.MinIO.Bucket, cfg.MinIO.PublicURL),
		Analytics:   NewAnalyticsService(repos.Case, repos.Method, wb),
		WriteBehind: wb,
	}
}
