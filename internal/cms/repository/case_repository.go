package repository

import (
	"context"
	"strings"

	"github.com/bethreewater/island7/internal/cms/caseid"
	"github.com/bethreewater/island7/internal/cms/entity"
	"gorm.io/gorm"
)

// CaseRepository 案件仓库
type CaseRepository struct {
	db *gorm.DB
}

// NewCaseRepository 创建案件仓库
func NewCaseRepository(db *gorm.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

// CaseFilter 案件列表过滤条件
type CaseFilter struct {
	Status   string
	Keyword  string
	Drafts   *bool
	Page     int
	PageSize int
}

// FindByID 根据编号查找案件
func (r *CaseRepository) FindByID(ctx context.Context, caseID string) (*entity.Case, error) {
	var c entity.Case
	err := r.db.WithContext(ctx).Where("case_id = ?", caseID).First(&c).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// Create 创建案件
func (r *CaseRepository) Create(ctx context.Context, c *entity.Case) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// Save 保存案件，记录不存在时插入
func (r *CaseRepository) Save(ctx context.Context, c *entity.Case) error {
	return r.db.WithContext(ctx).Save(c).Error
}

// Delete 删除案件
func (r *CaseRepository) Delete(ctx context.Context, caseID string) error {
	result := r.db.WithContext(ctx).Where("case_id = ?", caseID).Delete(&entity.Case{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Rekey 在同一事务中以新编号写入案件并删除旧记录
func (r *CaseRepository) Rekey(ctx context.Context, oldID string, c *entity.Case) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("case_id = ?", oldID).Delete(&entity.Case{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Create(c).Error
	})
}

// List 获取案件列表，按建立时间倒序
func (r *CaseRepository) List(ctx context.Context, f CaseFilter) ([]entity.Case, int64, error) {
	var cases []entity.Case
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Case{})
	if f.Status != "" {
		query = query.Where("status IN ?", statusAliases(f.Status))
	}
	if f.Keyword != "" {
		kw := "%" + f.Keyword + "%"
		query = query.Where("customer_name LIKE ? OR address LIKE ? OR phone LIKE ? OR case_id LIKE ?", kw, kw, kw, kw)
	}
	if f.Drafts != nil {
		if *f.Drafts {
			query = query.Where("case_id LIKE ?", "EVAL-%")
		} else {
			query = query.Where("case_id NOT LIKE ?", "EVAL-%")
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * f.PageSize).Limit(f.PageSize)
	}

	err := query.Order("created_date DESC").Find(&cases).Error
	return cases, total, err
}

// ListAll 获取全部案件，用于统计
func (r *CaseRepository) ListAll(ctx context.Context) ([]entity.Case, error) {
	var cases []entity.Case
	err := r.db.WithContext(ctx).Order("created_date DESC").Find(&cases).Error
	return cases, err
}

// ListWithCoordinates 获取已定位的案件，可按状态和 geohash 前缀过滤
func (r *CaseRepository) ListWithCoordinates(ctx context.Context, status, geohashPrefix string) ([]entity.Case, error) {
	var cases []entity.Case
	query := r.db.WithContext(ctx).
		Where("latitude IS NOT NULL AND longitude IS NOT NULL")
	if status != "" {
		query = query.Where("status IN ?", statusAliases(status))
	}
	if geohashPrefix != "" {
		query = query.Where("geohash LIKE ?", strings.ToLower(geohashPrefix)+"%")
	}
	err := query.Order("created_date DESC").Find(&cases).Error
	return cases, err
}

// MaxSequence 返回某编号前缀下已用的最大流水号
func (r *CaseRepository) MaxSequence(ctx context.Context, prefix string) (int, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&entity.Case{}).
		Where("case_id LIKE ?", prefix+"%").
		Pluck("case_id", &ids).Error
	if err != nil {
		return 0, err
	}

	last := 0
	for _, id := range ids {
		if seq := caseid.SeqFrom(id); seq > last {
			last = seq
		}
	}
	return last, nil
}

// 新状态查询时一并匹配对应的旧版状态值
func statusAliases(status string) []string {
	switch status {
	case entity.CaseStatusAssessment:
		return []string{status, "new"}
	case entity.CaseStatusConstruction:
		return []string{status, "progress"}
	case entity.CaseStatusCompleted:
		return []string{status, "done"}
	}
	return []string{status}
}
