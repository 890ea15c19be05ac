package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bethreewater/island7/internal/cms/entity"
	"github.com/bethreewater/island7/internal/cms/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu    sync.Mutex
	cases map[string]entity.Case
	saves int
	fail  bool
}

func newMemStore() *memStore {
	return &memStore{cases: make(map[string]entity.Case)}
}

func (m *memStore) FindByID(_ context.Context, caseID string) (*entity.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[caseID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (m *memStore) Save(_ context.Context, c *entity.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("database unavailable")
	}
	m.saves++
	m.cases[c.CaseID] = *c
	return nil
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *memStore) setFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

func TestWriteBehindReadYourWrites(t *testing.T) {
	store := newMemStore()
	store.cases["C1"] = entity.Case{CaseID: "C1", CustomerName: "舊名"}
	wb := NewWriteBehind(store, time.Hour, nil)

	wb.Put(&entity.Case{CaseID: "C1", CustomerName: "新名"})

	got, err := wb.Get(context.Background(), "C1")
	require.NoError(t, err)
	assert.Equal(t, "新名", got.CustomerName)
	assert.Equal(t, 0, store.saveCount(), "nothing persisted before the interval")

	list := wb.Overlay([]entity.Case{{CaseID: "C1", CustomerName: "舊名"}, {CaseID: "C2"}})
	assert.Equal(t, "新名", list[0].CustomerName)
	assert.Equal(t, "C2", list[1].CaseID)
}

func TestWriteBehindMergeAddsUnlistedPending(t *testing.T) {
	wb := NewWriteBehind(newMemStore(), time.Hour, nil)
	wb.Put(&entity.Case{CaseID: "C1", CustomerName: "新名"})
	wb.Put(&entity.Case{CaseID: "C3", Geohash: "wsqqqm"})

	merged := wb.Merge([]entity.Case{{CaseID: "C1", CustomerName: "舊名"}, {CaseID: "C2"}})
	require.Len(t, merged, 3)
	assert.Equal(t, "新名", merged[0].CustomerName)
	assert.Equal(t, "C2", merged[1].CaseID)
	assert.Equal(t, "C3", merged[2].CaseID)
}

func TestWriteBehindCopiesAreIsolated(t *testing.T) {
	wb := NewWriteBehind(newMemStore(), time.Hour, nil)
	c := &entity.Case{CaseID: "C1", Zones: []entity.Zone{{ZoneID: "Z1", Items: []entity.ConstructionItem{{ItemID: "I1"}}}}}

	wb.Put(c)
	c.Zones[0].Items[0].ItemID = "changed"

	got, err := wb.Get(context.Background(), "C1")
	require.NoError(t, err)
	assert.Equal(t, "I1", got.Zones[0].Items[0].ItemID)
}

func TestWriteBehindCoalescesBurst(t *testing.T) {
	store := newMemStore()
	wb := NewWriteBehind(store, 50*time.Millisecond, nil)

	for i := 0; i < 10; i++ {
		wb.Put(&entity.Case{CaseID: "C1", FinalPrice: i})
	}

	require.Eventually(t, func() bool { return wb.Pending() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, store.saveCount())
	saved, err := store.FindByID(context.Background(), "C1")
	require.NoError(t, err)
	assert.Equal(t, 9, saved.FinalPrice)
}

func TestWriteBehindCloseFlushesEverything(t *testing.T) {
	store := newMemStore()
	wb := NewWriteBehind(store, time.Hour, nil)
	wb.Put(&entity.Case{CaseID: "C1"})
	wb.Put(&entity.Case{CaseID: "C2"})

	require.NoError(t, wb.Close(context.Background()))

	assert.Equal(t, 0, wb.Pending())
	assert.Equal(t, 2, store.saveCount())
}

func TestWriteBehindKeepsCopyOnFailure(t *testing.T) {
	store := newMemStore()
	store.setFail(true)
	wb := NewWriteBehind(store, time.Hour, nil)
	wb.Put(&entity.Case{CaseID: "C1", CustomerName: "王"})

	err := wb.FlushCase(context.Background(), "C1")
	require.Error(t, err)
	assert.Equal(t, 1, wb.Pending())

	got, err := wb.Get(context.Background(), "C1")
	require.NoError(t, err)
	assert.Equal(t, "王", got.CustomerName)

	store.setFail(false)
	require.NoError(t, wb.Flush(context.Background()))
	assert.Equal(t, 0, wb.Pending())
}

func TestWriteBehindDiscardDropsPending(t *testing.T) {
	store := newMemStore()
	wb := NewWriteBehind(store, time.Hour, nil)
	wb.Put(&entity.Case{CaseID: "C1"})

	wb.Discard("C1")

	require.NoError(t, wb.Flush(context.Background()))
	assert.Equal(t, 0, store.saveCount())
	_, err := wb.Get(context.Background(), "C1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestNextRetryCapped(t *testing.T) {
	assert.Equal(t, time.Second, nextRetry(0, time.Second))
	assert.Equal(t, 4*time.Second, nextRetry(2*time.Second, time.Second))
	assert.Equal(t, maxRetryDelay, nextRetry(20*time.Second, time.Second))
}

func TestCloneCasePreservesEmptySlices(t *testing.T) {
	c := &entity.Case{CaseID: "C1", Zones: []entity.Zone{}, Logs: nil}
	out := cloneCase(c)
	assert.NotNil(t, out.Zones)
	assert.Empty(t, out.Zones)
	assert.Nil(t, out.Logs)
}
