package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bethreewater/island7/internal/cms/entity"
	"github.com/bethreewater/island7/internal/cms/repository"
	"github.com/bethreewater/island7/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const revokedKeyPrefix = "token:revoked:"

// LoginInput 登录请求
type LoginInput struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

// TokenResult 登录结果
type TokenResult struct {
	AccessToken string       `json:"access_token"`
	ExpiresIn   int64        `json:"expires_in"`
	User        *entity.User `json:"user"`
}

// AuthService 认证服务
type AuthService struct {
	userRepo *repository.UserRepository
	rdb      *redis.Client
	cfg      *config.Config
	now      Clock

	// 未配置 Redis 时在进程内记录已注销的令牌
	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewAuthService 创建认证服务，rdb 可为 nil
func NewAuthService(userRepo *repository.UserRepository, rdb *redis.Client, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		rdb:      rdb,
		cfg:      cfg,
		now:      time.Now,
		revoked:  make(map[string]time.Time),
	}
}

// Login 校验用户名密码并签发访问令牌
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*TokenResult, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	user, err := s.userRepo.FindByUsername(ctx, strings.TrimSpace(in.Username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.Status != "active" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, expiresIn, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	user.LastLoginAt = &now

	return &TokenResult{AccessToken: token, ExpiresIn: expiresIn, User: user}, nil
}

// generateToken 生成访问令牌
func (s *AuthService) generateToken(user *entity.User) (string, int64, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":      user.ID,
		"uid":      user.ID,
		"username": user.Username,
		"name":     user.Name,
		"role":     user.Role,
		"iss":      s.cfg.JWT.Issuer,
		"iat":      now.Unix(),
		"exp":      now.Add(s.cfg.JWT.AccessTokenExpire).Unix(),
		"jti":      uuid.New().String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return "", 0, fmt.Errorf("sign access token: %w", err)
	}
	return signed, int64(s.cfg.JWT.AccessTokenExpire.Seconds()), nil
}

// Logout 注销令牌，直到令牌原本的过期时间
func (s *AuthService) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return nil
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if s.rdb != nil {
		if err := s.rdb.Set(ctx, revokedKeyPrefix+jti, 1, ttl).Err(); err != nil {
			return fmt.Errorf("revoke token: %w", err)
		}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, k)
		}
	}
	s.revoked[jti] = expiresAt
	return nil
}

// IsRevoked 令牌是否已注销；Redis 不可用时视为未注销
func (s *AuthService) IsRevoked(ctx context.Context, jti string) bool {
	if jti == "" {
		return false
	}
	if s.rdb != nil {
		n, err := s.rdb.Exists(ctx, revokedKeyPrefix+jti).Result()
		return err == nil && n > 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.revoked[jti]
	return ok && s.now().Before(exp)
}

// GetCurrentUser 获取当前用户
func (s *AuthService) GetCurrentUser(ctx context.Context, userID string) (*entity.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, wrapNotFound("user", userID, err)
	}
	return user, nil
}

// EnsureAdmin 用户表为空时创建管理员账号
func (s *AuthService) EnsureAdmin(ctx context.Context) (bool, error) {
	count, err := s.userRepo.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	if s.cfg.CMS.AdminUsername == "" || s.cfg.CMS.AdminPassword == "" {
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.cfg.CMS.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	name := s.cfg.CMS.AdminName
	if name == "" {
		name = s.cfg.CMS.AdminUsername
	}
	user := &entity.User{
		ID:           uuid.New().String()[:32],
		Username:     s.cfg.CMS.AdminUsername,
		Name:         name,
		PasswordHash: string(hash),
		Role:         entity.RoleAdmin,
		Status:       "active",
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	return true, nil
}
