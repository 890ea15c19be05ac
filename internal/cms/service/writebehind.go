package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bethreewater/island7/internal/cms/entity"
	"go.uber.org/zap"
)

const maxRetryDelay = 30 * time.Second

// CaseStore 案件持久化
type CaseStore interface {
	FindByID(ctx context.Context, caseID string) (*entity.Case, error)
	Save(ctx context.Context, c *entity.Case) error
}

type pendingCase struct {
	c       *entity.Case
	version uint64
	timer   *time.Timer
	retry   time.Duration
}

// WriteBehind 案件延迟写入
//
// 编辑立即更新内存中的待写副本，同一案件在 interval 内没有新编辑后才落库。
// 读取优先返回待写副本。落库失败时保留副本并按退避间隔重试。
type WriteBehind struct {
	store    CaseStore
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[string]*pendingCase
	closed  bool

	// 串行化落库，Discard 返回后不会再有该案件的写入
	saveMu sync.Mutex
}

// NewWriteBehind 创建延迟写入组件
func NewWriteBehind(store CaseStore, interval time.Duration, logger *zap.Logger) *WriteBehind {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WriteBehind{
		store:    store,
		interval: interval,
		logger:   logger,
		pending:  make(map[string]*pendingCase),
	}
}

// Get 读取案件，优先返回待写副本
func (w *WriteBehind) Get(ctx context.Context, caseID string) (*entity.Case, error) {
	w.mu.Lock()
	if p, ok := w.pending[caseID]; ok {
		c := cloneCase(p.c)
		w.mu.Unlock()
		return c, nil
	}
	w.mu.Unlock()
	return w.store.FindByID(ctx, caseID)
}

// Overlay 用待写副本替换列表中的旧数据
func (w *WriteBehind) Overlay(cases []entity.Case) []entity.Case {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range cases {
		if p, ok := w.pending[cases[i].CaseID]; ok {
			cases[i] = *cloneCase(p.c)
		}
	}
	return cases
}

// Merge 同 Overlay，并补上列表中没有的待写案件
func (w *WriteBehind) Merge(cases []entity.Case) []entity.Case {
	w.mu.Lock()
	defer w.mu.Unlock()
	seen := make(map[string]bool, len(cases))
	for i := range cases {
		seen[cases[i].CaseID] = true
		if p, ok := w.pending[cases[i].CaseID]; ok {
			cases[i] = *cloneCase(p.c)
		}
	}
	for id, p := range w.pending {
		if !seen[id] {
			cases = append(cases, *cloneCase(p.c))
		}
	}
	return cases
}

// Put 记录一次编辑并重置该案件的落库计时
func (w *WriteBehind) Put(c *entity.Case) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.pending[c.CaseID]
	if !ok {
		p = &pendingCase{}
		w.pending[c.CaseID] = p
	}
	p.c = cloneCase(c)
	p.version++
	p.retry = 0
	if w.closed {
		return
	}
	w.schedule(c.CaseID, p, w.interval)
}

// Pending 待写案件数
func (w *WriteBehind) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Discard 丢弃待写副本（案件已删除或改号）
func (w *WriteBehind) Discard(caseID string) {
	w.saveMu.Lock()
	defer w.saveMu.Unlock()
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.pending[caseID]; ok {
		if p.timer != nil {
			p.timer.Stop()
		}
		delete(w.pending, caseID)
	}
}

// FlushCase 立即落库单个案件
func (w *WriteBehind) FlushCase(ctx context.Context, caseID string) error {
	return w.flushOne(ctx, caseID)
}

// Flush 立即落库全部待写案件
func (w *WriteBehind) Flush(ctx context.Context) error {
	w.mu.Lock()
	ids := make([]string, 0, len(w.pending))
	for id := range w.pending {
		ids = append(ids, id)
	}
	w.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := w.flushOne(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close 停止计时并落库全部待写案件
func (w *WriteBehind) Close(ctx context.Context) error {
	w.mu.Lock()
	w.closed = true
	for _, p := range w.pending {
		if p.timer != nil {
			p.timer.Stop()
		}
	}
	w.mu.Unlock()
	return w.Flush(ctx)
}

// 调用方持有 w.mu
func (w *WriteBehind) schedule(caseID string, p *pendingCase, delay time.Duration) {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(delay, func() {
		_ = w.flushOne(context.Background(), caseID)
	})
}

func (w *WriteBehind) flushOne(ctx context.Context, caseID string) error {
	w.saveMu.Lock()
	defer w.saveMu.Unlock()

	w.mu.Lock()
	p, ok := w.pending[caseID]
	if !ok {
		w.mu.Unlock()
		return nil
	}
	snapshot := cloneCase(p.c)
	version := p.version
	w.mu.Unlock()

	err := w.store.Save(ctx, snapshot)

	w.mu.Lock()
	defer w.mu.Unlock()

	cur, ok := w.pending[caseID]
	if !ok || cur != p {
		// 落库期间被丢弃或替换
		return err
	}
	if err != nil {
		w.logger.Error("flush case failed, keeping pending copy",
			zap.String("case_id", caseID),
			zap.Error(err))
		if !w.closed && cur.version == version {
			cur.retry = nextRetry(cur.retry, w.interval)
			w.schedule(caseID, cur, cur.retry)
		}
		return err
	}
	if cur.version == version {
		if cur.timer != nil {
			cur.timer.Stop()
		}
		delete(w.pending, caseID)
	}
	w.logger.Debug("case flushed", zap.String("case_id", caseID))
	return nil
}

func nextRetry(prev, base time.Duration) time.Duration {
	if prev == 0 {
		return base
	}
	next := prev * 2
	if next > maxRetryDelay {
		next = maxRetryDelay
	}
	return next
}

// cloneCase 深拷贝，待写副本与调用方互不影响
func cloneCase(c *entity.Case) *entity.Case {
	out := *c
	if c.Latitude != nil {
		lat := *c.Latitude
		out.Latitude = &lat
	}
	if c.Longitude != nil {
		lng := *c.Longitude
		out.Longitude = &lng
	}
	if c.Zones != nil {
		out.Zones = make([]entity.Zone, len(c.Zones))
		for i, z := range c.Zones {
			nz := z
			if z.Items != nil {
				nz.Items = make([]entity.ConstructionItem, len(z.Items))
				for j, item := range z.Items {
					item.Photos = cloneSlice(item.Photos)
					nz.Items[j] = item
				}
			}
			out.Zones[i] = nz
		}
	}
	if c.Schedule != nil {
		out.Schedule = cloneSlice(c.Schedule)
	}
	if c.Logs != nil {
		out.Logs = make([]entity.ConstructionLog, len(c.Logs))
		for i, l := range c.Logs {
			l.BeforePhotos = cloneSlice(l.BeforePhotos)
			l.AfterPhotos = cloneSlice(l.AfterPhotos)
			l.Breaks = cloneSlice(l.Breaks)
			out.Logs[i] = l
		}
	}
	if c.WarrantyRecords != nil {
		out.WarrantyRecords = append([]byte(nil), c.WarrantyRecords...)
	}
	if c.ChangeOrders != nil {
		out.ChangeOrders = append([]byte(nil), c.ChangeOrders...)
	}
	return &out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}
