package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/carbon-monitor/internal/database"
	"github.com/smukkama/carbon-monitor/internal/dispatch"
	"github.com/smukkama/carbon-monitor/internal/generation"
	"github.com/smukkama/carbon-monitor/internal/jobstate"
	"github.com/smukkama/carbon-monitor/internal/metrics"
	"github.com/smukkama/carbon-monitor/pkg/config"
)

type fakeStore struct {
	zones        map[int64]*database.Zone
	measurements map[int64][]database.Measurement
	nextID       int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{zones: map[int64]*database.Zone{}, measurements: map[int64][]database.Measurement{}}
}

func (f *fakeStore) CreateZone(_ context.Context, z *database.Zone) error {
	f.nextID++
	z.ID = f.nextID
	z.CreatedAt = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	cp := *z
	f.zones[z.ID] = &cp
	return nil
}

func (f *fakeStore) GetZone(_ context.Context, id int64) (*database.Zone, error) {
	z, ok := f.zones[id]
	if !ok {
		return nil, database.ErrZoneNotFound
	}
	cp := *z
	return &cp, nil
}

func (f *fakeStore) ListZones(_ context.Context, skip, limit int) ([]database.Zone, error) {
	ids := make([]int64, 0, len(f.zones))
	for id := range f.zones {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var out []database.Zone
	for i, id := range ids {
		if i < skip || len(out) >= limit {
			continue
		}
		out = append(out, *f.zones[id])
	}
	return out, nil
}

func (f *fakeStore) UpdateZone(_ context.Context, z *database.Zone) error {
	if _, ok := f.zones[z.ID]; !ok {
		return database.ErrZoneNotFound
	}
	cp := *z
	f.zones[z.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteZone(_ context.Context, id int64) error {
	if _, ok := f.zones[id]; !ok {
		return database.ErrZoneNotFound
	}
	delete(f.zones, id)
	delete(f.measurements, id)
	return nil
}

func (f *fakeStore) ZoneStats(_ context.Context, ids []int64) (map[int64]*database.ZoneStats, error) {
	out := make(map[int64]*database.ZoneStats, len(ids))
	for _, id := range ids {
		st := &database.ZoneStats{}
		ms := f.measurements[id]
		for _, m := range ms {
			st.TotalCarbonAbsorption += m.CarbonAbsorption
			st.AverageNDVI += m.NDVI
		}
		if len(ms) > 0 {
			st.AverageNDVI /= float64(len(ms))
			st.MeasurementsCount = len(ms)
		}
		out[id] = st
	}
	return out, nil
}

func (f *fakeStore) ListMeasurements(_ context.Context, zoneID int64, skip, limit int) ([]database.Measurement, error) {
	ms := f.measurements[zoneID]
	if skip > len(ms) {
		return nil, nil
	}
	ms = ms[skip:]
	if limit < len(ms) {
		ms = ms[:limit]
	}
	return ms, nil
}

func (f *fakeStore) RecentMeasurements(_ context.Context, zoneID int64, limit int) ([]database.Measurement, error) {
	ms := f.measurements[zoneID]
	if limit < len(ms) {
		ms = ms[len(ms)-limit:]
	}
	return ms, nil
}

func (f *fakeStore) ListDailySummaries(_ context.Context, zoneID int64, _ time.Time) ([]database.DailySummary, error) {
	return []database.DailySummary{{ZoneID: zoneID, AvgNDVI: 0.6, SampleCount: 2}}, nil
}

type dispatchCall struct {
	zoneID int64
	req    generation.Request
}

type fakeDispatcher struct {
	calls []dispatchCall
	err   error
}

func (f *fakeDispatcher) Dispatch(zoneID int64, req generation.Request) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, dispatchCall{zoneID, req})
	return "job-1", nil
}

type fakePrices struct{}

func (fakePrices) Current(context.Context) (*database.CarbonPrice, error) {
	return &database.CarbonPrice{ID: 1, Price: 75.5, Source: "Mock Data Service"}, nil
}

func (fakePrices) History(_ context.Context, limit int) ([]database.CarbonPrice, error) {
	out := make([]database.CarbonPrice, limit)
	for i := range out {
		out[i] = database.CarbonPrice{ID: int64(i + 1), Price: 70}
	}
	return out, nil
}

func (fakePrices) GenerateMock(context.Context) (*database.CarbonPrice, error) {
	return &database.CarbonPrice{ID: 2, Price: 80}, nil
}

type fakeStatus map[int64]*jobstate.Status

func (f fakeStatus) Get(_ context.Context, zoneID int64) (*jobstate.Status, error) {
	st, ok := f[zoneID]
	if !ok {
		return nil, jobstate.ErrNotTracked
	}
	return st, nil
}

type fixture struct {
	store      *fakeStore
	dispatcher *fakeDispatcher
	server     *Server
}

func newFixture(t *testing.T, cfg config.HTTPConfig) *fixture {
	t.Helper()
	m, err := metrics.New()
	require.NoError(t, err)

	f := &fixture{store: newFakeStore(), dispatcher: &fakeDispatcher{}}
	f.server = New(cfg, Deps{
		Store:      f.store,
		Dispatcher: f.dispatcher,
		Prices:     fakePrices{},
		Status:     fakeStatus{1: {ZoneID: 1, State: jobstate.StateCompleted, Count: 360}},
		Metrics:    m,
	})
	return f
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Engine().ServeHTTP(rec, req)
	return rec
}

var square = []map[string]float64{
	{"lat": 30.0, "lng": 120.0},
	{"lat": 30.0, "lng": 120.002},
	{"lat": 30.002, "lng": 120.002},
	{"lat": 30.002, "lng": 120.0},
}

func TestCreateZone_DispatchesDefaultBackfill(t *testing.T) {
	f := newFixture(t, config.HTTPConfig{})

	rec := f.do(http.MethodPost, "/api/zones", map[string]any{"name": "Pine forest", "coordinates": square})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var zone database.Zone
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &zone))
	assert.Equal(t, int64(1), zone.ID)
	assert.Equal(t, database.ZoneStatusActive, zone.Status)
	assert.InDelta(t, 0.002*0.002*111319.5*111319.5, zone.Area, 1)

	require.Len(t, f.dispatcher.calls, 1)
	assert.Equal(t, dispatchCall{1, generation.DefaultRequest}, f.dispatcher.calls[0])
}

func TestCreateZone_QueueFullStillCreates(t *testing.T) {
	f := newFixture(t, config.HTTPConfig{})
	f.dispatcher.err = dispatch.ErrQueueFull

	rec := f.do(http.MethodPost, "/api/zones", map[string]any{"name": "Wetland", "coordinates": square})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, f.store.zones, 1)
}

func TestCreateZone_Validation(t *testing.T) {
	f := newFixture(t, config.HTTPConfig{})

	tests := []struct {
		name string
		body map[string]any
	}{
		{"short name", map[string]any{"name": "A", "coordinates": square}},
		{"long name", map[string]any{"name": "a zone name that is far too long", "coordinates": square}},
		{"two points", map[string]any{"name": "Zone", "coordinates": square[:2]}},
		{"bad latitude", map[string]any{"name": "Zone", "coordinates": []map[string]float64{
			{"lat": 95, "lng": 0}, {"lat": 0, "lng": 1}, {"lat": 1, "lng": 1},
		}}},
		{"collinear", map[string]any{"name": "Zone", "coordinates": []map[string]float64{
			{"lat": 0, "lng": 0}, {"lat": 1, "lng": 1}, {"lat": 2, "lng": 2},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/zones", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, f.store.zones)
	assert.Empty(t, f.dispatcher.calls)
}

func TestListZones_IncludesStats(t *testing.T) {
	f := newFixture(t, config.HTTPConfig{})
	f.do(http.MethodPost, "/api/zones", map[string]any{"name": "Zone one", "coordinates": square})
	f.do(http.MethodPost, "/api/zones", map[string]any{"name": "Zone two", "coordinates": square})
	f.store.measurements[1] = []database.Measurement{
		{ZoneID: 1, NDVI: 0.5, CarbonAbsorption: 0.01},
		{ZoneID: 1, NDVI: 0.7, CarbonAbsorption: 0.03},
	}

	rec := f.do(http.MethodGet, "/api/zones", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var zones []zoneWithStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &zones))
	require.Len(t, zones, 2)
	assert.Equal(t, 2, zones[0].MeasurementsCount)
	assert.InDelta(t, 0.04, zones[0].TotalCarbonAbsorption, 1e-9)
	assert.InDelta(t, 0.6, zones[0].CurrentNDVI, 1e-9)
	assert.Zero(t, zones[1].MeasurementsCount)

	rec = f.do(http.MethodGet, "/api/zones?skip=1&limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &zones))
	require.Len(t, zones, 1)
	assert.Equal(t, int64(2), zones[0].ID)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/zones?limit=0", nil).Code)
}

func TestZoneLifecycle(t *testing.T) {
	f := newFixture(t, config.HTTPConfig{})
	f.do(http.MethodPost, "/api/zones", map[string]any{"name": "Grassland", "coordinates": square})

	rec := f.do(http.MethodGet, "/api/zones/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPut, "/api/zones/1", map[string]any{"name": "Meadow", "status": "inactive"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Meadow", f.store.zones[1].Name)
	assert.Equal(t, database.ZoneStatusInactive, f.store.zones[1].Status)

	bigger := []map[string]float64{{"lat": 0, "lng": 0}, {"lat": 0, "lng": 0.01}, {"lat": 0.01, "lng": 0.01}}
	rec = f.do(http.MethodPut, "/api/zones/1", map[string]any{"coordinates": bigger})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 0.5*0.01*0.01*111319.5*111319.5, f.store.zones[1].Area, 1)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/api/zones/1", map[string]any{"status": "paused"}).Code)

	assert.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/api/zones/1", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/zones/1", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/zones/1", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/zones/abc", nil).Code)
}

func TestRegenerate(t *testing.T) {
	f := newFixture(t, config.HTTPConfig{})
	f.do(http.MethodPost, "/api/zones", map[string]any{"name": "Forest", "coordinates": square})

	rec := f.do(http.MethodPost, "/api/zones/1/regenerate?days=30&interval_hours=6&force=true", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "job-1", body["job_id"])
	require.Len(t, f.dispatcher.calls, 2)
	assert.Equal(t, generation.Request{Days: 30, IntervalHours: 6, Force: true}, f.dispatcher.calls[1].req)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/api/zones/9/regenerate", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/zones/1/regenerate?days=0", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/zones/1/regenerate?force=maybe", nil).Code)

	f.dispatcher.err = dispatch.ErrQueueFull
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodPost, "/api/zones/1/regenerate", nil).Code)
}

func TestBackfillStatus(t *testing.T) {
	f := newFixture(t, config.HTTPConfig{})

	rec := f.do(http.MethodGet, "/api/zones/1/backfill", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st jobstate.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, jobstate.StateCompleted, st.State)
	assert.Equal(t, 360, st.Count)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/zones/2/backfill", nil).Code)
}

func TestMeasurementEndpoints(t *testing.T) {
	f := newFixture(t, config.HTTPConfig{})
	f.do(http.MethodPost, "/api/zones", map[string]any{"name": "Forest", "coordinates": square})
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		f.store.measurements[1] = append(f.store.measurements[1], database.Measurement{
			ID: int64(i + 1), ZoneID: 1, Timestamp: base.Add(time.Duration(i) * 12 * time.Hour),
			NDVI: 0.6, CarbonAbsorption: 0.01,
		})
	}

	rec := f.do(http.MethodGet, "/api/measurements/zone/1?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ms []database.Measurement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ms))
	assert.Len(t, ms, 5)

	rec = f.do(http.MethodGet, "/api/measurements/zone/1/chart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var chart chartData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chart))
	require.Len(t, chart.Timestamps, 10)
	assert.Len(t, chart.NDVIValues, 10)
	assert.Len(t, chart.CarbonValues, 10)
	assert.True(t, chart.Timestamps[0].Before(chart.Timestamps[9]))

	rec = f.do(http.MethodGet, "/api/measurements/zone/1/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st database.ZoneStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 15, st.MeasurementsCount)
	assert.InDelta(t, 0.15, st.TotalCarbonAbsorption, 1e-9)

	rec = f.do(http.MethodGet, "/api/measurements/zone/1/daily?days=7", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/measurements/zone/2", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/measurements/zone/2/chart", nil).Code)
}

func TestPriceEndpoints(t *testing.T) {
	f := newFixture(t, config.HTTPConfig{})

	rec := f.do(http.MethodGet, "/api/prices/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var current map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &current))
	assert.Equal(t, 75.5, current["price"])

	rec = f.do(http.MethodGet, "/api/prices/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []database.CarbonPrice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history, 30)

	rec = f.do(http.MethodPost, "/api/prices/generate-mock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Mock price generated")
}

func TestBearerAuth(t *testing.T) {
	f := newFixture(t, config.HTTPConfig{BearerToken: "secret"})

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/zones", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/zones", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	f.server.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// probes stay open
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/metrics", nil).Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, config.HTTPConfig{})
	rec := f.do(http.MethodOptions, "/api/zones", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
