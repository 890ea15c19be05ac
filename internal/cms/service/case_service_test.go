package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bethreewater/island7/internal/cms/entity"
	"github.com/bethreewater/island7/internal/cms/estimate"
	"github.com/bethreewater/island7/internal/cms/repository"
	"github.com/bethreewater/island7/internal/cms/sse"
	"github.com/bethreewater/island7/internal/cms/testutil"
	"github.com/bethreewater/island7/internal/shared/geocode"
	"github.com/mmcloughlin/geohash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGeocoder struct {
	calls  int
	result *geocode.Result
	err    error
}

func (g *stubGeocoder) Geocode(_ context.Context, _ string) (*geocode.Result, error) {
	g.calls++
	return g.result, g.err
}

type caseFixture struct {
	svc   *CaseService
	repos *repository.Repositories
	wb    *WriteBehind
	hub   *sse.Hub
	geo   *stubGeocoder
}

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func newCaseFixture(t *testing.T) *caseFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	testutil.SeedTestMethod(t, db, "WP-01", entity.UnitPing, 3000, "高壓清洗", "底漆", "面漆")
	testutil.SeedTestMethod(t, db, "CR-01", entity.UnitMeter, 500, "裂縫填補")

	geo := &stubGeocoder{result: &geocode.Result{Latitude: 25.0330, Longitude: 121.5654}}
	hub := sse.NewHub(nil)
	wb := NewWriteBehind(repos.Case, time.Hour, nil)
	svc := NewCaseService(repos.Case, repos.Method, wb, geo, hub, nil)
	svc.SetClock(func() time.Time { return fixedNow })
	svc.SetGeocodeDelay(0)
	return &caseFixture{svc: svc, repos: repos, wb: wb, hub: hub, geo: geo}
}

func (f *caseFixture) create(t *testing.T, name string) *entity.Case {
	t.Helper()
	c, err := f.svc.Create(context.Background(), CreateCaseInput{CustomerName: name, Address: "台北市信義區市府路1號"}, "u1")
	require.NoError(t, err)
	return c
}

func TestCreateAssignsSequentialDraftIDs(t *testing.T) {
	f := newCaseFixture(t)

	first := f.create(t, "王先生")
	second := f.create(t, "林/小姐")

	assert.Equal(t, "EVAL-20240315-001-王先生", first.CaseID)
	assert.Equal(t, "EVAL-20240315-002-林小姐", second.CaseID)
	assert.Equal(t, entity.CaseStatusAssessment, first.Status)
	require.True(t, first.HasCoordinates())
	assert.Len(t, first.Geohash, 12)

	stored, err := f.repos.Case.FindByID(context.Background(), first.CaseID)
	require.NoError(t, err, "creation is persisted synchronously")
	assert.Equal(t, "王先生", stored.CustomerName)
}

func TestCreateValidation(t *testing.T) {
	f := newCaseFixture(t)

	_, err := f.svc.Create(context.Background(), CreateCaseInput{}, "u1")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Create(context.Background(), CreateCaseInput{CustomerName: "///"}, "u1")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateSurvivesGeocodeFailure(t *testing.T) {
	f := newCaseFixture(t)
	f.geo.result, f.geo.err = nil, errors.New("nominatim down")

	c := f.create(t, "王先生")

	assert.False(t, c.HasCoordinates())
	assert.Equal(t, 1, f.geo.calls)
}

func TestZoneAndItemEditsReprice(t *testing.T) {
	f := newCaseFixture(t)
	ctx := context.Background()
	c := f.create(t, "王先生")

	c, err := f.svc.AddZone(ctx, c.CaseID, ZoneInput{ZoneName: "頂樓", MethodID: "WP-01"}, "u1")
	require.NoError(t, err)
	require.Len(t, c.Zones, 1)
	zone := c.Zones[0]
	assert.Equal(t, entity.UnitPing, zone.Unit)
	assert.Equal(t, 3000.0, zone.UnitPrice)
	require.Len(t, zone.Items, 1)

	length, width := 1000.0, 1000.0
	c, err = f.svc.UpdateItem(ctx, c.CaseID, zone.ZoneID, zone.Items[0].ItemID, ItemPatch{Length: &length, Width: &width}, "u1")
	require.NoError(t, err)
	assert.Equal(t, 30.25, c.Zones[0].Items[0].AreaPing)
	assert.Equal(t, 90750, c.Zones[0].Items[0].ItemPrice)
	assert.Equal(t, 90750, c.FinalPrice)

	coef := 1.2
	c, err = f.svc.UpdateZone(ctx, c.CaseID, zone.ZoneID, ZonePatch{DifficultyCoefficient: &coef}, "u1")
	require.NoError(t, err)
	assert.Equal(t, 108900, c.FinalPrice)

	adj := -900
	c, err = f.svc.Update(ctx, c.CaseID, UpdateCaseInput{ManualPriceAdjustment: &adj}, "u1")
	require.NoError(t, err)
	assert.Equal(t, 108000, c.FinalPrice)

	// 编辑尚未落库，读取仍能看到
	assert.Equal(t, 1, f.wb.Pending())
	got, err := f.svc.Get(ctx, c.CaseID)
	require.NoError(t, err)
	assert.Equal(t, 108000, got.FinalPrice)

	require.NoError(t, f.wb.Flush(ctx))
	stored, err := f.repos.Case.FindByID(ctx, c.CaseID)
	require.NoError(t, err)
	assert.Equal(t, 108000, stored.FinalPrice)
}

func TestUpdateZoneUnknownMethod(t *testing.T) {
	f := newCaseFixture(t)
	c := f.create(t, "王先生")

	_, err := f.svc.AddZone(context.Background(), c.CaseID, ZoneInput{ZoneName: "頂樓", MethodID: "NOPE"}, "u1")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.DeleteZone(context.Background(), c.CaseID, "Z-missing", "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScheduleAndDelayLog(t *testing.T) {
	f := newCaseFixture(t)
	ctx := context.Background()
	c := f.create(t, "王先生")
	c, err := f.svc.AddZone(ctx, c.CaseID, ZoneInput{ZoneName: "頂樓", MethodID: "WP-01"}, "u1")
	require.NoError(t, err)
	start := "2024-03-20"
	_, err = f.svc.Update(ctx, c.CaseID, UpdateCaseInput{StartDate: &start}, "u1")
	require.NoError(t, err)

	c, err = f.svc.GenerateSchedule(ctx, c.CaseID, "u1")
	require.NoError(t, err)
	require.Len(t, c.Schedule, 3)
	assert.Equal(t, "2024-03-22", c.Schedule[2].Date)

	c, outcome, err := f.svc.SaveLog(ctx, c.CaseID, LogInput{Date: "2024-03-21", IsNoWorkDay: true, DelayDays: 1}, "u1")
	require.NoError(t, err)
	assert.Equal(t, estimate.OutcomeShifted, outcome)
	assert.Equal(t, "2024-03-22", c.Schedule[1].Date)
	assert.Equal(t, "2024-03-23", c.Schedule[2].Date)
	require.Len(t, c.Logs, 1)
	assert.Equal(t, entity.NoWorkDayAction, c.Logs[0].Action)
	assert.NotEmpty(t, c.Logs[0].ID)

	c, outcome, err = f.svc.SaveLog(ctx, c.CaseID, LogInput{Date: "2024-03-20", Action: "高壓清洗"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, estimate.OutcomeCompleted, outcome)
	assert.True(t, c.Schedule[0].IsCompleted)

	_, err = f.svc.DeleteLog(ctx, c.CaseID, "missing", "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGenerateScheduleDefaultsStartToToday(t *testing.T) {
	f := newCaseFixture(t)
	ctx := context.Background()
	c := f.create(t, "王先生")
	_, err := f.svc.AddZone(ctx, c.CaseID, ZoneInput{ZoneName: "裂縫", MethodID: "CR-01"}, "u1")
	require.NoError(t, err)

	c, err = f.svc.GenerateSchedule(ctx, c.CaseID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", c.StartDate)
	require.Len(t, c.Schedule, 1)
	assert.Equal(t, "2024-03-15", c.Schedule[0].Date)
}

func TestFormalizeRekeysCase(t *testing.T) {
	f := newCaseFixture(t)
	ctx := context.Background()
	client := &sse.Client{ID: "c1", Events: make(chan sse.Event, 16)}
	f.hub.Register(client)
	defer f.hub.Unregister("c1")

	c := f.create(t, "王先生")
	c, err := f.svc.AddZone(ctx, c.CaseID, ZoneInput{ZoneName: "外牆", MethodID: "CR-01"}, "u1")
	require.NoError(t, err)
	qty := 10.0
	c, err = f.svc.UpdateItem(ctx, c.CaseID, c.Zones[0].ZoneID, c.Zones[0].Items[0].ItemID, ItemPatch{Quantity: &qty}, "u1")
	require.NoError(t, err)
	draftID := c.CaseID

	formal, err := f.svc.Formalize(ctx, draftID, "u1")
	require.NoError(t, err)

	assert.Equal(t, "20240315-001-王先生", formal.CaseID)
	assert.Equal(t, 5000, formal.FinalPrice)
	assert.Equal(t, 5000, formal.FormalQuotedPrice)
	assert.Equal(t, 0, f.wb.Pending())

	_, err = f.svc.Get(ctx, draftID)
	assert.ErrorIs(t, err, ErrCaseNotFound)
	stored, err := f.svc.Get(ctx, formal.CaseID)
	require.NoError(t, err)
	require.Len(t, stored.Zones, 1)

	_, err = f.svc.Formalize(ctx, formal.CaseID, "u1")
	assert.ErrorIs(t, err, ErrAlreadyFormal)

	var last sse.Event
	for len(client.Events) > 0 {
		last = <-client.Events
	}
	assert.Equal(t, sse.CaseFormalized, last.EventType)
	assert.Contains(t, last.Data, draftID)
}

func TestDeleteDiscardsPendingEdits(t *testing.T) {
	f := newCaseFixture(t)
	ctx := context.Background()
	c := f.create(t, "王先生")
	_, err := f.svc.AddZone(ctx, c.CaseID, ZoneInput{ZoneName: "頂樓"}, "u1")
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, c.CaseID, "u1"))
	require.NoError(t, f.wb.Flush(ctx))

	_, err = f.repos.Case.FindByID(ctx, c.CaseID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, c.CaseID, "u1"), ErrCaseNotFound)
}

func TestStatusTransitions(t *testing.T) {
	f := newCaseFixture(t)
	ctx := context.Background()
	c := f.create(t, "王先生")

	c, err := f.svc.AdvanceStatus(ctx, c.CaseID, "u1")
	require.NoError(t, err)
	assert.Equal(t, entity.CaseStatusDeposit, c.Status)

	c, err = f.svc.SetStatus(ctx, c.CaseID, "done", "u1")
	require.NoError(t, err)
	assert.Equal(t, entity.CaseStatusCompleted, c.Status)

	_, err = f.svc.SetStatus(ctx, c.CaseID, "bogus", "u1")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNoWorkDayLogShiftsOneDayByDefault(t *testing.T) {
	f := newCaseFixture(t)
	ctx := context.Background()
	c := f.create(t, "王先生")
	_, err := f.svc.AddZone(ctx, c.CaseID, ZoneInput{ZoneName: "頂樓", MethodID: "WP-01"}, "u1")
	require.NoError(t, err)
	start := "2024-01-01"
	_, err = f.svc.Update(ctx, c.CaseID, UpdateCaseInput{StartDate: &start}, "u1")
	require.NoError(t, err)
	_, err = f.svc.GenerateSchedule(ctx, c.CaseID, "u1")
	require.NoError(t, err)

	c, outcome, err := f.svc.SaveLog(ctx, c.CaseID, LogInput{Date: "2024-01-02", IsNoWorkDay: true}, "u1")
	require.NoError(t, err)

	assert.Equal(t, estimate.OutcomeShifted, outcome)
	assert.Equal(t, "2024-01-01", c.Schedule[0].Date)
	assert.Equal(t, "2024-01-03", c.Schedule[1].Date)
	assert.Equal(t, "2024-01-04", c.Schedule[2].Date)
	require.Len(t, c.Logs, 1)
	assert.Equal(t, 1, c.Logs[0].DelayDays)
}

func TestLogsSavedAtSameInstantKeepBoth(t *testing.T) {
	f := newCaseFixture(t)
	ctx := context.Background()
	c := f.create(t, "王先生")

	_, _, err := f.svc.SaveLog(ctx, c.CaseID, LogInput{Date: "2024-01-01", Action: "first"}, "u1")
	require.NoError(t, err)
	c, _, err = f.svc.SaveLog(ctx, c.CaseID, LogInput{Date: "2024-01-02", Action: "second"}, "u1")
	require.NoError(t, err)

	require.Len(t, c.Logs, 2)
	assert.NotEqual(t, c.Logs[0].ID, c.Logs[1].ID)
	assert.Equal(t, "second", c.Logs[0].Action)
	assert.Equal(t, "first", c.Logs[1].Action)
}

func TestRefreshLocationFailureLeavesCaseUntouched(t *testing.T) {
	f := newCaseFixture(t)
	ctx := context.Background()
	f.geo.result = nil
	c := f.create(t, "王先生")
	require.False(t, c.HasCoordinates())

	client := &sse.Client{ID: "watcher", Events: make(chan sse.Event, 4)}
	f.hub.Register(client)
	defer f.hub.Unregister(client.ID)

	got, err := f.svc.RefreshLocation(ctx, c.CaseID, "u1")
	require.NoError(t, err)

	assert.False(t, got.HasCoordinates())
	assert.Equal(t, 2, f.geo.calls)
	assert.Zero(t, f.wb.Pending(), "nothing queued for writing")
	assert.Empty(t, client.Events, "no update event")

	f.geo.result = &geocode.Result{Latitude: 25.0330, Longitude: 121.5654}
	got, err = f.svc.RefreshLocation(ctx, c.CaseID, "u1")
	require.NoError(t, err)
	assert.True(t, got.HasCoordinates())
	assert.Equal(t, 1, f.wb.Pending())
	assert.Len(t, client.Events, 1)
}

func TestAddressChangeRelocates(t *testing.T) {
	f := newCaseFixture(t)
	ctx := context.Background()
	c := f.create(t, "王先生")
	f.geo.result = &geocode.Result{Latitude: 22.6273, Longitude: 120.3014}

	addr := "高雄市前金區中正四路211號"
	c, err := f.svc.Update(ctx, c.CaseID, UpdateCaseInput{Address: &addr}, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, f.geo.calls)
	assert.InDelta(t, 22.6273, *c.Latitude, 1e-9)

	lat, lng := 24.1477, 120.6736
	c, err = f.svc.Update(ctx, c.CaseID, UpdateCaseInput{Latitude: &lat, Longitude: &lng}, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, f.geo.calls, "manual pin skips lookup")
	assert.InDelta(t, 24.1477, *c.Latitude, 1e-9)

	_, err = f.svc.Update(ctx, c.CaseID, UpdateCaseInput{Latitude: &lat}, "u1")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBackfillLocations(t *testing.T) {
	f := newCaseFixture(t)
	ctx := context.Background()
	f.geo.result = nil
	f.create(t, "王先生")
	f.create(t, "林小姐")

	f.geo.result = &geocode.Result{Latitude: 25.0330, Longitude: 121.5654}
	n, err := f.svc.BackfillLocations(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.svc.BackfillLocations(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestListOverlaysPendingEdits(t *testing.T) {
	f := newCaseFixture(t)
	ctx := context.Background()
	c := f.create(t, "王先生")
	name := "王大明"
	_, err := f.svc.Update(ctx, c.CaseID, UpdateCaseInput{CustomerName: &name}, "u1")
	require.NoError(t, err)

	cases, total, err := f.svc.List(ctx, repository.CaseFilter{Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, cases, 1)
	assert.Equal(t, "王大明", cases[0].CustomerName)
}

func TestMarkersIncludePendingPins(t *testing.T) {
	f := newCaseFixture(t)
	ctx := context.Background()

	first := f.create(t, "王先生")
	second, err := f.svc.Create(ctx, CreateCaseInput{CustomerName: "林小姐"}, "u1")
	require.NoError(t, err)
	require.False(t, second.HasCoordinates())

	lat, lng := 22.6273, 120.3014
	_, err = f.svc.Update(ctx, second.CaseID, UpdateCaseInput{Latitude: &lat, Longitude: &lng}, "u1")
	require.NoError(t, err)
	_, err = f.svc.AdvanceStatus(ctx, first.CaseID, "u1")
	require.NoError(t, err)

	markers, err := f.svc.Markers(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, markers, 2)

	markers, err = f.svc.Markers(ctx, "", geohash.Encode(lat, lng)[:4])
	require.NoError(t, err)
	require.Len(t, markers, 1)
	assert.Equal(t, second.CaseID, markers[0].CaseID)

	markers, err = f.svc.Markers(ctx, entity.CaseStatusDeposit, "")
	require.NoError(t, err)
	require.Len(t, markers, 1)
	assert.Equal(t, first.CaseID, markers[0].CaseID)

	_, err = f.svc.Markers(ctx, "bogus", "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.Markers(ctx, "", "ai")
	assert.ErrorIs(t, err, ErrValidation)
}
