package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bethreewater/island7/internal/cms/caseid"
	"github.com/bethreewater/island7/internal/cms/entity"
	"github.com/bethreewater/island7/internal/cms/estimate"
	"github.com/bethreewater/island7/internal/cms/repository"
	"github.com/bethreewater/island7/internal/cms/sse"
	"github.com/bethreewater/island7/internal/shared/geocode"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mmcloughlin/geohash"
	"go.uber.org/zap"
)

var validate = validator.New()

// Nominatim 限制每秒一次请求
const geocodeBackfillDelay = time.Second

// CreateCaseInput 新建评估案件
type CreateCaseInput struct {
	CustomerName string `json:"customer_name" validate:"required,max=64"`
	Phone        string `json:"phone" validate:"max=32"`
	LineID       string `json:"line_id" validate:"max=64"`
	Address      string `json:"address" validate:"max=256"`
	AddressNote  string `json:"address_note" validate:"max=128"`
	SpecialNote  string `json:"special_note"`
}

// UpdateCaseInput 修改案件基本资料，nil 字段不修改
type UpdateCaseInput struct {
	CustomerName          *string         `json:"customer_name" validate:"omitempty,min=1,max=64"`
	Phone                 *string         `json:"phone" validate:"omitempty,max=32"`
	LineID                *string         `json:"line_id" validate:"omitempty,max=64"`
	Address               *string         `json:"address" validate:"omitempty,max=256"`
	AddressNote           *string         `json:"address_note" validate:"omitempty,max=128"`
	SpecialNote           *string         `json:"special_note"`
	StartDate             *string         `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	Status                *string         `json:"status"`
	ManualPriceAdjustment *int            `json:"manual_price_adjustment"`
	Latitude              *float64        `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude             *float64        `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	WarrantyRecords       json.RawMessage `json:"warranty_records"`
	ChangeOrders          json.RawMessage `json:"change_orders"`
}

// ZoneInput 新增施工区域
type ZoneInput struct {
	ZoneName              string   `json:"zone_name" validate:"required,max=64"`
	Category              string   `json:"category" validate:"max=32"`
	MethodID              string   `json:"method_id"`
	DifficultyCoefficient *float64 `json:"difficulty_coefficient" validate:"omitempty,gt=0"`
}

// ZonePatch 修改施工区域，nil 字段不修改
type ZonePatch struct {
	ZoneName              *string  `json:"zone_name" validate:"omitempty,min=1,max=64"`
	Category              *string  `json:"category" validate:"omitempty,max=32"`
	MethodID              *string  `json:"method_id"`
	Unit                  *string  `json:"unit" validate:"omitempty,oneof=坪 米 處 式"`
	UnitPrice             *float64 `json:"unit_price" validate:"omitempty,gte=0"`
	DifficultyCoefficient *float64 `json:"difficulty_coefficient" validate:"omitempty,gt=0"`
}

// ItemPatch 修改测量项；价格由系统计算，不接受客户端传入
type ItemPatch struct {
	Length   *float64 `json:"length" validate:"omitempty,gte=0"`
	Width    *float64 `json:"width" validate:"omitempty,gte=0"`
	Quantity *float64 `json:"quantity" validate:"omitempty,gte=0"`
	Note     *string  `json:"note" validate:"omitempty,max=256"`
	Photos   []string `json:"photos"`
}

// TaskPatch 手动调整排程任务
type TaskPatch struct {
	IsCompleted *bool   `json:"is_completed"`
	Date        *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// LogInput 施工日志
type LogInput struct {
	ID           string               `json:"id"`
	Date         string               `json:"date" validate:"required,datetime=2006-01-02"`
	Weather      string               `json:"weather" validate:"max=16"`
	Action       string               `json:"action" validate:"max=128"`
	Description  string               `json:"description"`
	BeforePhotos []string             `json:"before_photos"`
	AfterPhotos  []string             `json:"after_photos"`
	StartTime    string               `json:"start_time" validate:"omitempty,datetime=15:04"`
	Breaks       []entity.BreakPeriod `json:"breaks"`
	EndTime      string               `json:"end_time" validate:"omitempty,datetime=15:04"`
	DelayDays    int                  `json:"delay_days" validate:"gte=0,lte=365"`
	IsNoWorkDay  bool                 `json:"is_no_work_day"`
}

// CaseService 案件服务
type CaseService struct {
	repo       *repository.CaseRepository
	methodRepo *repository.MethodRepository
	wb         *WriteBehind
	geocoder   Geocoder
	hub        *sse.Hub
	logger     *zap.Logger
	now        Clock

	geocodeDelay time.Duration

	// 同一进程内串行化编辑与编号分配
	mu sync.Mutex
}

// NewCaseService 创建案件服务，geocoder 和 hub 可为 nil
func NewCaseService(repo *repository.CaseRepository, methodRepo *repository.MethodRepository, wb *WriteBehind,
	geocoder Geocoder, hub *sse.Hub, logger *zap.Logger) *CaseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaseService{
		repo:         repo,
		methodRepo:   methodRepo,
		wb:           wb,
		geocoder:     geocoder,
		hub:          hub,
		logger:       logger,
		now:          time.Now,
		geocodeDelay: geocodeBackfillDelay,
	}
}

// SetClock 替换时间来源
func (s *CaseService) SetClock(clock Clock) {
	s.now = clock
}

// SetGeocodeDelay 批量补定位时两次请求的间隔
func (s *CaseService) SetGeocodeDelay(d time.Duration) {
	s.geocodeDelay = d
}

// ============================================================
// 查询
// ============================================================

// Get 获取案件
func (s *CaseService) Get(ctx context.Context, caseID string) (*entity.Case, error) {
	return s.load(ctx, caseID)
}

// List 获取案件列表；带状态或关键字筛选时先落库待写编辑
func (s *CaseService) List(ctx context.Context, filter repository.CaseFilter) ([]entity.Case, int64, error) {
	if filter.Status != "" || filter.Keyword != "" {
		if err := s.wb.Flush(ctx); err != nil {
			s.logger.Warn("flush before filtered list", zap.Error(err))
		}
	}
	cases, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list cases: %w", err)
	}
	cases = s.wb.Overlay(cases)
	for i := range cases {
		normalizeStatus(&cases[i])
	}
	return cases, total, nil
}

// ListAll 获取全部案件，含未落库的编辑
func (s *CaseService) ListAll(ctx context.Context) ([]entity.Case, error) {
	cases, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	cases = s.wb.Overlay(cases)
	for i := range cases {
		normalizeStatus(&cases[i])
	}
	return cases, nil
}

// Quotation 报价汇总
func (s *CaseService) Quotation(ctx context.Context, caseID string) (*estimate.Quotation, error) {
	c, err := s.load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	q := estimate.BuildQuotation(c.Zones, c.ManualPriceAdjustment)
	return &q, nil
}

// ============================================================
// 案件生命周期
// ============================================================

// Create 新建评估案件，编号为 EVAL-YYYYMMDD-NNN-客户名
func (s *CaseService) Create(ctx context.Context, in CreateCaseInput, userID string) (*entity.Case, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	name := caseid.SanitizeName(in.CustomerName)
	if name == "" {
		return nil, fmt.Errorf("%w: customer name is empty after removing reserved characters", ErrValidation)
	}

	now := s.now()
	c := &entity.Case{
		CreatedDate:  now,
		CustomerName: strings.TrimSpace(in.CustomerName),
		Phone:        strings.TrimSpace(in.Phone),
		LineID:       strings.TrimSpace(in.LineID),
		Address:      strings.TrimSpace(in.Address),
		AddressNote:  in.AddressNote,
		SpecialNote:  in.SpecialNote,
		Status:       entity.CaseStatusAssessment,
		Zones:        []entity.Zone{},
		Schedule:     []entity.ScheduleTask{},
		Logs:         []entity.ConstructionLog{},
		CreatedBy:    userID,
		UpdatedAt:    now,
	}
	s.locate(ctx, c)

	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := caseid.PrefixFor(caseid.Draft, caseid.DateOf(now))
	last, err := s.repo.MaxSequence(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("next case sequence: %w", err)
	}
	id, err := caseid.NewDraft(now, last+1, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	c.CaseID = id.String()

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create case: %w", err)
	}

	s.logger.Info("case created", zap.String("case_id", c.CaseID), zap.String("user_id", userID))
	s.publish(sse.CaseCreated, c, "", userID)
	return c, nil
}

// Update 修改案件基本资料，地址变化时重新定位
func (s *CaseService) Update(ctx context.Context, caseID string, in UpdateCaseInput, userID string) (*entity.Case, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	var status string
	if in.Status != nil {
		status = entity.NormalizeCaseStatus(*in.Status)
		if status == "" {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *in.Status)
		}
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return nil, fmt.Errorf("%w: latitude and longitude must be set together", ErrValidation)
	}
	for _, raw := range []json.RawMessage{in.WarrantyRecords, in.ChangeOrders} {
		if len(raw) > 0 && !json.Valid(raw) {
			return nil, fmt.Errorf("%w: invalid json", ErrValidation)
		}
	}

	current, err := s.load(ctx, caseID)
	if err != nil {
		return nil, err
	}

	// 网络请求放在加锁之外
	var located *entity.Case
	if in.Address != nil && in.Latitude == nil && strings.TrimSpace(*in.Address) != current.Address {
		located = &entity.Case{CaseID: caseID, Address: strings.TrimSpace(*in.Address)}
		s.locate(ctx, located)
	}

	return s.mutate(ctx, caseID, userID, func(c *entity.Case) error {
		if in.CustomerName != nil {
			c.CustomerName = strings.TrimSpace(*in.CustomerName)
		}
		if in.Phone != nil {
			c.Phone = strings.TrimSpace(*in.Phone)
		}
		if in.LineID != nil {
			c.LineID = strings.TrimSpace(*in.LineID)
		}
		if in.AddressNote != nil {
			c.AddressNote = *in.AddressNote
		}
		if in.SpecialNote != nil {
			c.SpecialNote = *in.SpecialNote
		}
		if in.StartDate != nil {
			c.StartDate = *in.StartDate
		}
		if in.Status != nil {
			c.Status = status
		}
		if in.ManualPriceAdjustment != nil {
			c.ManualPriceAdjustment = *in.ManualPriceAdjustment
		}
		if located != nil {
			c.Address = located.Address
			c.Latitude, c.Longitude, c.Geohash = located.Latitude, located.Longitude, located.Geohash
		} else if in.Address != nil {
			c.Address = strings.TrimSpace(*in.Address)
		}
		if in.Latitude != nil {
			setCoordinates(c, *in.Latitude, *in.Longitude)
		}
		if len(in.WarrantyRecords) > 0 {
			c.WarrantyRecords = []byte(in.WarrantyRecords)
		}
		if len(in.ChangeOrders) > 0 {
			c.ChangeOrders = []byte(in.ChangeOrders)
		}
		return nil
	})
}

// SetStatus 设置案件阶段，允许跳阶
func (s *CaseService) SetStatus(ctx context.Context, caseID, status, userID string) (*entity.Case, error) {
	normalized := entity.NormalizeCaseStatus(status)
	if normalized == "" {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	return s.mutate(ctx, caseID, userID, func(c *entity.Case) error {
		c.Status = normalized
		return nil
	})
}

// AdvanceStatus 进入下一阶段
func (s *CaseService) AdvanceStatus(ctx context.Context, caseID, userID string) (*entity.Case, error) {
	return s.mutate(ctx, caseID, userID, func(c *entity.Case) error {
		c.Status = entity.NextCaseStatus(c.Status)
		return nil
	})
}

// Formalize 评估案件成案：换发正式编号，旧记录在同一事务中删除
func (s *CaseService) Formalize(ctx context.Context, caseID, userID string) (*entity.Case, error) {
	id, err := caseid.Parse(caseID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !id.IsDraft() {
		return nil, ErrAlreadyFormal
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.wb.FlushCase(ctx, caseID); err != nil {
		return nil, fmt.Errorf("flush pending edits: %w", err)
	}
	c, err := s.repo.FindByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCaseNotFound
		}
		return nil, fmt.Errorf("load case: %w", err)
	}
	normalizeStatus(c)

	now := s.now()
	last, err := s.repo.MaxSequence(ctx, caseid.PrefixFor(caseid.Formal, caseid.DateOf(now)))
	if err != nil {
		return nil, fmt.Errorf("next case sequence: %w", err)
	}
	formal, err := id.Formalize(now, last+1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	recompute(c)
	c.CaseID = formal.String()
	c.FormalQuotedPrice = c.FinalPrice
	c.UpdatedAt = now

	if err := s.repo.Rekey(ctx, caseID, c); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCaseNotFound
		}
		return nil, fmt.Errorf("formalize case: %w", err)
	}
	s.wb.Discard(caseID)

	s.logger.Info("case formalized",
		zap.String("previous_id", caseID),
		zap.String("case_id", c.CaseID),
		zap.String("user_id", userID))
	s.publish(sse.CaseFormalized, c, caseID, userID)
	return c, nil
}

// Delete 删除案件，不可恢复
func (s *CaseService) Delete(ctx context.Context, caseID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wb.Discard(caseID)
	if err := s.repo.Delete(ctx, caseID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCaseNotFound
		}
		return fmt.Errorf("delete case: %w", err)
	}

	s.logger.Info("case deleted", zap.String("case_id", caseID), zap.String("user_id", userID))
	s.publish(sse.CaseDeleted, &entity.Case{CaseID: caseID}, "", userID)
	return nil
}

// ============================================================
// 区域与测量项
// ============================================================

// AddZone 新增施工区域，指定工法时带入单位和单价
func (s *CaseService) AddZone(ctx context.Context, caseID string, in ZoneInput, userID string) (*entity.Case, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	method, err := s.findMethod(ctx, in.MethodID)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, caseID, userID, func(c *entity.Case) error {
		zone := entity.Zone{
			ZoneID:                newShortID("Z"),
			ZoneName:              in.ZoneName,
			Category:              in.Category,
			Unit:                  entity.UnitPing,
			DifficultyCoefficient: 1,
			Items:                 []entity.ConstructionItem{newItem()},
		}
		if in.DifficultyCoefficient != nil {
			zone.DifficultyCoefficient = *in.DifficultyCoefficient
		}
		if method != nil {
			estimate.AssignMethod(&zone, method)
		}
		c.Zones = append(c.Zones, zone)
		return nil
	})
}

// UpdateZone 修改区域；更换工法会重新带入工法单位和单价，其后的字段覆盖带入值
func (s *CaseService) UpdateZone(ctx context.Context, caseID, zoneID string, in ZonePatch, userID string) (*entity.Case, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	var method *entity.Method
	if in.MethodID != nil {
		var err error
		if method, err = s.findMethod(ctx, *in.MethodID); err != nil {
			return nil, err
		}
	}

	return s.mutate(ctx, caseID, userID, func(c *entity.Case) error {
		zone := findZone(c, zoneID)
		if zone == nil {
			return fmt.Errorf("zone %s: %w", zoneID, ErrNotFound)
		}
		if in.MethodID != nil {
			if method != nil {
				estimate.AssignMethod(zone, method)
			} else {
				zone.MethodID, zone.MethodName = "", ""
			}
		}
		if in.ZoneName != nil {
			zone.ZoneName = *in.ZoneName
		}
		if in.Category != nil {
			zone.Category = *in.Category
		}
		if in.Unit != nil {
			zone.Unit = *in.Unit
		}
		if in.UnitPrice != nil {
			zone.UnitPrice = *in.UnitPrice
		}
		if in.DifficultyCoefficient != nil {
			zone.DifficultyCoefficient = *in.DifficultyCoefficient
		}
		return nil
	})
}

// DeleteZone 删除区域
func (s *CaseService) DeleteZone(ctx context.Context, caseID, zoneID, userID string) (*entity.Case, error) {
	return s.mutate(ctx, caseID, userID, func(c *entity.Case) error {
		for i := range c.Zones {
			if c.Zones[i].ZoneID == zoneID {
				c.Zones = append(c.Zones[:i], c.Zones[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("zone %s: %w", zoneID, ErrNotFound)
	})
}

// AddItem 区域新增测量项
func (s *CaseService) AddItem(ctx context.Context, caseID, zoneID, userID string) (*entity.Case, error) {
	return s.mutate(ctx, caseID, userID, func(c *entity.Case) error {
		zone := findZone(c, zoneID)
		if zone == nil {
			return fmt.Errorf("zone %s: %w", zoneID, ErrNotFound)
		}
		zone.Items = append(zone.Items, newItem())
		return nil
	})
}

// UpdateItem 修改测量项，面积和价格随之重算
func (s *CaseService) UpdateItem(ctx context.Context, caseID, zoneID, itemID string, in ItemPatch, userID string) (*entity.Case, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return s.mutate(ctx, caseID, userID, func(c *entity.Case) error {
		zone := findZone(c, zoneID)
		if zone == nil {
			return fmt.Errorf("zone %s: %w", zoneID, ErrNotFound)
		}
		idx := -1
		for i := range zone.Items {
			if zone.Items[i].ItemID == itemID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("item %s: %w", itemID, ErrNotFound)
		}

		edits := []struct {
			field string
			value *float64
		}{
			{estimate.FieldLength, in.Length},
			{estimate.FieldWidth, in.Width},
			{estimate.FieldQuantity, in.Quantity},
		}
		for _, e := range edits {
			if e.value == nil {
				continue
			}
			if err := estimate.ApplyItemEdit(zone, idx, e.field, *e.value); err != nil {
				return fmt.Errorf("%w: %v", ErrValidation, err)
			}
		}
		if in.Note != nil {
			zone.Items[idx].Note = *in.Note
		}
		if in.Photos != nil {
			zone.Items[idx].Photos = in.Photos
		}
		return nil
	})
}

// DeleteItem 删除测量项
func (s *CaseService) DeleteItem(ctx context.Context, caseID, zoneID, itemID, userID string) (*entity.Case, error) {
	return s.mutate(ctx, caseID, userID, func(c *entity.Case) error {
		zone := findZone(c, zoneID)
		if zone == nil {
			return fmt.Errorf("zone %s: %w", zoneID, ErrNotFound)
		}
		for i := range zone.Items {
			if zone.Items[i].ItemID == itemID {
				zone.Items = append(zone.Items[:i], zone.Items[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	})
}

// ============================================================
// 排程与施工日志
// ============================================================

// GenerateSchedule 按各区域工法步骤重新生成排程，未设开工日时以今天为开工日
func (s *CaseService) GenerateSchedule(ctx context.Context, caseID, userID string) (*entity.Case, error) {
	return s.mutate(ctx, caseID, userID, func(c *entity.Case) error {
		ids := make([]string, 0, len(c.Zones))
		for _, z := range c.Zones {
			if z.MethodID != "" {
				ids = append(ids, z.MethodID)
			}
		}
		methods, err := s.methodRepo.MapByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("load methods: %w", err)
		}

		start := s.now()
		if c.StartDate != "" {
			d, err := estimate.ParseDate(c.StartDate)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrValidation, err)
			}
			start = d
		} else {
			c.StartDate = start.Format(estimate.DateLayout)
		}
		c.Schedule = estimate.GenerateSchedule(start, c.Zones, methods)
		return nil
	})
}

// UpdateTask 手动标记完成或改期
func (s *CaseService) UpdateTask(ctx context.Context, caseID, taskID string, in TaskPatch, userID string) (*entity.Case, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return s.mutate(ctx, caseID, userID, func(c *entity.Case) error {
		for i := range c.Schedule {
			if c.Schedule[i].TaskID != taskID {
				continue
			}
			if in.IsCompleted != nil {
				c.Schedule[i].IsCompleted = *in.IsCompleted
			}
			if in.Date != nil {
				c.Schedule[i].Date = *in.Date
			}
			return nil
		}
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	})
}

// SaveLog 新增或修改施工日志，并据此顺延或完成排程
func (s *CaseService) SaveLog(ctx context.Context, caseID string, in LogInput, userID string) (*entity.Case, estimate.LogOutcome, error) {
	if err := validate.Struct(in); err != nil {
		return nil, estimate.OutcomeNone, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	log := entity.ConstructionLog{
		ID:           in.ID,
		Date:         in.Date,
		Weather:      in.Weather,
		Action:       in.Action,
		Description:  in.Description,
		BeforePhotos: nonNil(in.BeforePhotos),
		AfterPhotos:  nonNil(in.AfterPhotos),
		StartTime:    in.StartTime,
		Breaks:       nonNil(in.Breaks),
		EndTime:      in.EndTime,
		DelayDays:    in.DelayDays,
		IsNoWorkDay:  in.IsNoWorkDay,
	}
	if log.IsNoWorkDay && log.Action == "" {
		log.Action = entity.NoWorkDayAction
	}
	estimate.NormalizeLog(&log)
	if log.ID == "" {
		log.ID = newShortID("LOG")
	}

	outcome := estimate.OutcomeNone
	c, err := s.mutate(ctx, caseID, userID, func(c *entity.Case) error {
		schedule, o, err := estimate.ApplyLog(c.Schedule, &log)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		c.Schedule = schedule
		c.Logs = estimate.UpsertLog(c.Logs, log)
		outcome = o
		return nil
	})
	if err != nil {
		return nil, estimate.OutcomeNone, err
	}
	return c, outcome, nil
}

// DeleteLog 删除施工日志，已顺延的排程不回退
func (s *CaseService) DeleteLog(ctx context.Context, caseID, logID, userID string) (*entity.Case, error) {
	return s.mutate(ctx, caseID, userID, func(c *entity.Case) error {
		for i := range c.Logs {
			if c.Logs[i].ID == logID {
				c.Logs = append(c.Logs[:i], c.Logs[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("log %s: %w", logID, ErrNotFound)
	})
}

// SyncLogs 为今天以前尚无日志的排程任务补上占位日志，返回新增条数
func (s *CaseService) SyncLogs(ctx context.Context, caseID, userID string) (*entity.Case, int, error) {
	added := 0
	c, err := s.mutate(ctx, caseID, userID, func(c *entity.Case) error {
		today := s.now().Format(estimate.DateLayout)
		created := estimate.SyncLogs(c.Schedule, c.Logs, today, func() string { return newShortID("LOG-AUTO") })
		for _, l := range created {
			c.Logs = estimate.UpsertLog(c.Logs, l)
		}
		added = len(created)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return c, added, nil
}

// ============================================================
// 定位
// ============================================================

// RefreshLocation 按当前地址重新定位
func (s *CaseService) RefreshLocation(ctx context.Context, caseID, userID string) (*entity.Case, error) {
	current, err := s.load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	located := &entity.Case{CaseID: caseID, Address: current.Address}
	s.locate(ctx, located)
	if !located.HasCoordinates() {
		return current, nil
	}

	return s.mutate(ctx, caseID, userID, func(c *entity.Case) error {
		c.Latitude, c.Longitude, c.Geohash = located.Latitude, located.Longitude, located.Geohash
		return nil
	})
}

// BackfillLocations 为尚无坐标的案件补定位，返回成功数
func (s *CaseService) BackfillLocations(ctx context.Context, userID string) (int, error) {
	if s.geocoder == nil {
		return 0, nil
	}
	cases, err := s.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	first := true
	for _, c := range cases {
		if c.HasCoordinates() || strings.TrimSpace(c.Address) == "" {
			continue
		}
		if !first && s.geocodeDelay > 0 {
			select {
			case <-ctx.Done():
				return updated, ctx.Err()
			case <-time.After(s.geocodeDelay):
			}
		}
		first = false

		if _, err := s.RefreshLocation(ctx, c.CaseID, userID); err != nil {
			s.logger.Warn("backfill location failed", zap.String("case_id", c.CaseID), zap.Error(err))
			continue
		}
		if got, err := s.load(ctx, c.CaseID); err == nil && got.HasCoordinates() {
			updated++
		}
	}
	return updated, nil
}

// MapMarker 地图标记
type MapMarker struct {
	CaseID       string  `json:"case_id"`
	CustomerName string  `json:"customer_name"`
	Status       string  `json:"status"`
	Address      string  `json:"address"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Geohash      string  `json:"geohash"`
}

// Markers 有坐标的案件，可按状态和 geohash 前缀筛选
func (s *CaseService) Markers(ctx context.Context, status, prefix string) ([]MapMarker, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix != "" {
		if err := geohash.Validate(prefix); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	if status != "" {
		normalized := entity.NormalizeCaseStatus(status)
		if normalized == "" {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
		}
		status = normalized
	}

	cases, err := s.repo.ListWithCoordinates(ctx, status, prefix)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	cases = s.wb.Merge(cases)

	markers := make([]MapMarker, 0, len(cases))
	for i := range cases {
		c := &cases[i]
		normalizeStatus(c)
		// 待写副本可能已改变状态或坐标
		if !c.HasCoordinates() || (status != "" && c.Status != status) {
			continue
		}
		if prefix != "" && !strings.HasPrefix(c.Geohash, prefix) {
			continue
		}
		markers = append(markers, MapMarker{
			CaseID:       c.CaseID,
			CustomerName: c.CustomerName,
			Status:       c.Status,
			Address:      c.Address,
			Latitude:     *c.Latitude,
			Longitude:    *c.Longitude,
			Geohash:      c.Geohash,
		})
	}
	return markers, nil
}

// locate 解析地址并写入坐标；失败只记录日志，不影响编辑
func (s *CaseService) locate(ctx context.Context, c *entity.Case) {
	if s.geocoder == nil || c.Address == "" {
		return
	}
	res, err := s.geocoder.Geocode(ctx, c.Address)
	if err != nil {
		s.logger.Warn("geocode failed", zap.String("address", c.Address), zap.Error(err))
		return
	}
	if res == nil {
		s.logger.Info("address not found", zap.String("address", c.Address))
		return
	}
	if !geocode.InTaiwan(res.Latitude, res.Longitude) {
		s.logger.Warn("geocode result outside Taiwan",
			zap.String("address", c.Address),
			zap.Float64("lat", res.Latitude),
			zap.Float64("lng", res.Longitude))
	}
	setCoordinates(c, res.Latitude, res.Longitude)
}

// ============================================================
// 内部
// ============================================================

// mutate 读取、修改、重算价格后交给延迟写入
func (s *CaseService) mutate(ctx context.Context, caseID, userID string, fn func(c *entity.Case) error) (*entity.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	recompute(c)
	c.UpdatedAt = s.now()
	s.wb.Put(c)

	s.publish(sse.CaseUpdated, c, "", userID)
	return c, nil
}

func (s *CaseService) load(ctx context.Context, caseID string) (*entity.Case, error) {
	c, err := s.wb.Get(ctx, caseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCaseNotFound
		}
		return nil, fmt.Errorf("load case: %w", err)
	}
	normalizeStatus(c)
	return c, nil
}

func (s *CaseService) findMethod(ctx context.Context, methodID string) (*entity.Method, error) {
	if methodID == "" {
		return nil, nil
	}
	m, err := s.methodRepo.FindByID(ctx, methodID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown method %q", ErrValidation, methodID)
		}
		return nil, fmt.Errorf("load method: %w", err)
	}
	return m, nil
}

func (s *CaseService) publish(eventType string, c *entity.Case, previousID, userID string) {
	if s.hub == nil {
		return
	}
	s.hub.PublishCase(sse.CaseEvent{
		Type:       eventType,
		CaseID:     c.CaseID,
		PreviousID: previousID,
		Status:     c.Status,
		UserID:     userID,
		At:         s.now(),
	})
}

// recompute 价格只由测量值和区域参数决定，每次保存都重算
func recompute(c *entity.Case) {
	for i := range c.Zones {
		estimate.RepriceZone(&c.Zones[i])
	}
	c.FinalPrice = estimate.FinalPrice(c.Zones, c.ManualPriceAdjustment)
}

func normalizeStatus(c *entity.Case) {
	if s := entity.NormalizeCaseStatus(c.Status); s != "" {
		c.Status = s
	}
}

func setCoordinates(c *entity.Case, lat, lng float64) {
	c.Latitude = &lat
	c.Longitude = &lng
	c.Geohash = geohash.Encode(lat, lng)
}

func findZone(c *entity.Case, zoneID string) *entity.Zone {
	for i := range c.Zones {
		if c.Zones[i].ZoneID == zoneID {
			return &c.Zones[i]
		}
	}
	return nil
}

func newItem() entity.ConstructionItem {
	return entity.ConstructionItem{ItemID: newShortID("I"), Photos: []string{}}
}

func newShortID(prefix string) string {
	return prefix + "-" + uuid.New().String()[:8]
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
