package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/triagemap/internal/boundary"
	"github.com/sells-group/triagemap/internal/config"
	"github.com/sells-group/triagemap/internal/feed"
	"github.com/sells-group/triagemap/internal/geo"
	"github.com/sells-group/triagemap/internal/mapview"
	"github.com/sells-group/triagemap/internal/model"
	"github.com/sells-group/triagemap/internal/registry"
	"github.com/sells-group/triagemap/internal/store"
	"github.com/sells-group/triagemap/internal/zone"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Port: 8080, AllowedOrigins: []string{"*"}},
		Store:     config.StoreConfig{Driver: store.DriverSQLite},
		Feed:      config.FeedConfig{Source: "store"},
		Zone:      config.ZoneConfig{RedThreshold: 10, BlueThreshold: 4},
		Territory: config.TerritoryConfig{CenterLat: 30.3753, CenterLon: 69.3451},
	}
}

func testCatalog() *boundary.Catalog {
	return boundary.NewCatalog([]boundary.Feature{
		{Name2: "Obscure District", Geometry: geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
			{70, 30}, {72, 30}, {72, 32}, {70, 32}, {70, 30},
		}})},
		{Name2: "Lahore", Geometry: geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
			{74, 31}, {75, 31}, {75, 32}, {74, 32}, {74, 31},
		}})},
	}, nil)
}

func testRegistry() *registry.Registry {
	return registry.New(map[string]geo.Point{
		"Lahore":  {Lat: 31.5204, Lon: 74.3587},
		"Karachi": {Lat: 24.8607, Lon: 67.0011},
	})
}

// seedCases adds 40 dengue cases: Lahore 20 (50%), Karachi 10 (25%),
// Quetta 2 (5%), Multan 1 (2.5%) and 7 with no location.
func seedCases(t *testing.T, st store.Store) {
	t.Helper()
	var cases []model.Case
	add := func(loc string, n int) {
		for i := 0; i < n; i++ {
			cases = append(cases, model.Case{DiseaseID: 1, SeverityLevel: 3, Location: loc, Confidence: 0.9})
		}
	}
	add("Lahore", 20)
	add("Karachi", 10)
	add("Quetta", 2)
	add("Multan", 1)
	add("", 7)

	n, err := st.AddCases(context.Background(), cases)
	require.NoError(t, err)
	require.Equal(t, 40, n)
}

func newTestEnv(t *testing.T) *mapEnv {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, store.DriverSQLite, filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	seedCases(t, st)

	cfg := testConfig()
	env := newMapEnv(cfg, testCatalog(), testRegistry(), st, feed.NewStoreSource(st, cfg.Zone.Thresholds()))
	env.loadCatalogs = func(context.Context) (*boundary.Catalog, *registry.Registry, error) {
		return testCatalog(), registry.New(map[string]geo.Point{"Obscure District": {Lat: 31, Lon: 71}}), nil
	}
	t.Cleanup(env.Close)
	return env
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	h := newRouter(newTestEnv(t), []string{"*"})

	rr := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestListDiseases(t *testing.T) {
	h := newRouter(newTestEnv(t), []string{"*"})

	rr := do(t, h, http.MethodGet, "/api/diseases", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var diseases []model.Disease
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &diseases))
	assert.Equal(t, model.SeedDiseases, diseases)
}

func TestDiseaseLocation(t *testing.T) {
	h := newRouter(newTestEnv(t), []string{"*"})

	rr := do(t, h, http.MethodGet, "/api/disease-location/1", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp feed.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 40, resp.TotalPatients)
	require.Len(t, resp.Regions, 4)
	assert.Equal(t, zone.TierRed, resp.Regions["Lahore"].ZoneType)
	assert.InDelta(t, 50.0, resp.Regions["Lahore"].Percentage, 1e-9)
	assert.Equal(t, zone.TierBlue, resp.Regions["Quetta"].ZoneType)
	assert.Equal(t, zone.TierGreen, resp.Regions["Multan"].ZoneType)
	assert.Equal(t, zone.ColorGreen, resp.Regions["Multan"].Color)
}

func TestDiseaseLocation_NoCases(t *testing.T) {
	h := newRouter(newTestEnv(t), []string{"*"})

	rr := do(t, h, http.MethodGet, "/api/disease-location/5", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"regions":{},"total_patients":0}`, rr.Body.String())
}

func TestDiseaseLocation_BadID(t *testing.T) {
	h := newRouter(newTestEnv(t), []string{"*"})

	for _, id := range []string{"abc", "0", "-3"} {
		rr := do(t, h, http.MethodGet, "/api/disease-location/"+id, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, id)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, false, body["success"])
		assert.Contains(t, body["error"], "invalid disease id")
	}
}

func TestDiseaseLocation_FeedFailure(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.Store.Close())
	h := newRouter(env, []string{"*"})

	rr := do(t, h, http.MethodGet, "/api/disease-location/1", "")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), `"success":false`)
}

func TestDiseaseMap(t *testing.T) {
	h := newRouter(newTestEnv(t), []string{"*"})

	rr := do(t, h, http.MethodGet, "/api/map/1", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var r mapview.Render
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &r))
	assert.True(t, r.Loaded)
	assert.Equal(t, 40, r.TotalPatients)

	// Catalog regions are styled even without cases.
	assert.Contains(t, r.Styles, "Obscure District")
	assert.Equal(t, zone.ColorRed, r.Styles["Lahore"].FillColor)

	require.Len(t, r.Hotspots, 2)
	assert.Equal(t, "Karachi", r.Hotspots[0].Name)
	assert.Equal(t, geo.Point{Lat: 24.8607, Lon: 67.0011}, r.Hotspots[0].Center)
	assert.Equal(t, "Lahore", r.Hotspots[1].Name)
	assert.Len(t, r.Legend, 3)
}

func TestAddCase(t *testing.T) {
	env := newTestEnv(t)
	h := newRouter(env, []string{"*"})

	rr := do(t, h, http.MethodPost, "/api/cases",
		`{"disease_id": 2, "severity_level": 1, "location": "  Peshawar ", "confidence": 0.75}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	var saved model.Case
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &saved))
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "Peshawar", saved.Location)
	assert.False(t, saved.CreatedAt.IsZero())

	rr = do(t, h, http.MethodGet, "/api/disease-location/2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"regions":{"Peshawar":{"count":1,"percentage":100,"zone_type":"red","color":"#FF4D4F"}},"total_patients":1}`, rr.Body.String())
}

func TestAddCase_Invalid(t *testing.T) {
	h := newRouter(newTestEnv(t), []string{"*"})

	rr := do(t, h, http.MethodPost, "/api/cases", `not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/cases", `{"disease_id": 1, "severity_level": 9}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid severity level")
}

func TestResolveEndpoints(t *testing.T) {
	h := newRouter(newTestEnv(t), []string{"*"})

	rr := do(t, h, http.MethodGet, "/api/resolve/Lahore", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"name":"Lahore","center":[31.5204,74.3587],"source":"registry"}`, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/api/resolve/Nowhere", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"name":"Nowhere","center":[30.3753,69.3451],"source":"fallback"}`, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/api/resolve-stats", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.EqualValues(t, 2, stats["entries"])
	assert.EqualValues(t, 2, stats["misses"])
}

func TestReload(t *testing.T) {
	env := newTestEnv(t)
	h := newRouter(env, []string{"*"})

	rr := do(t, h, http.MethodGet, "/api/resolve/Obscure%20District", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"source":"boundary"`)

	rr = do(t, h, http.MethodPost, "/api/admin/reload", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/resolve/Obscure%20District", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"name":"Obscure District","center":[31,71],"source":"registry"}`, rr.Body.String())
}

func TestView_SelectAndSnapshot(t *testing.T) {
	env := newTestEnv(t)
	h := newRouter(env, []string{"*"})

	rr := do(t, h, http.MethodGet, "/api/view/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"state":"idle"`)

	rr = do(t, h, http.MethodPost, "/api/view/retry", "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/view/select", `{"disease_id": 1}`)
	require.Equal(t, http.StatusAccepted, rr.Code)

	var pending map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pending))
	assert.Equal(t, "loading", pending["status"])
	assert.EqualValues(t, 1, pending["disease_id"])

	require.Eventually(t, func() bool {
		return env.View.Snapshot().State == mapview.StateReady
	}, 5*time.Second, 10*time.Millisecond)

	rr = do(t, h, http.MethodGet, "/api/view/", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var snap struct {
		State      string          `json:"state"`
		DiseaseID  int             `json:"disease_id"`
		Generation uint64          `json:"generation"`
		Render     *mapview.Render `json:"render"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, "ready", snap.State)
	assert.Equal(t, 1, snap.DiseaseID)
	require.NotNil(t, snap.Render)
	assert.Len(t, snap.Render.Hotspots, 2)

	rr = do(t, h, http.MethodPost, "/api/view/retry", "")
	assert.Equal(t, http.StatusAccepted, rr.Code)
}

func TestView_SelectRequiresDisease(t *testing.T) {
	h := newRouter(newTestEnv(t), []string{"*"})

	rr := do(t, h, http.MethodPost, "/api/view/select", `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newRouter(newTestEnv(t), []string{"https://map.example.org"})

	req := httptest.NewRequest(http.MethodOptions, "/api/diseases", nil)
	req.Header.Set("Origin", "https://map.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "https://map.example.org", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCollectHotspots(t *testing.T) {
	env := newTestEnv(t)

	got, err := collectHotspots(context.Background(), env, model.SeedDiseases, 2)
	require.NoError(t, err)
	require.Len(t, got, len(model.SeedDiseases))

	assert.Equal(t, 1, got[0].DiseaseID)
	assert.Equal(t, "Dengue", got[0].Disease)
	require.Len(t, got[0].Hotspots, 2)
	for _, d := range got[1:] {
		assert.NotNil(t, d.Hotspots)
		assert.Empty(t, d.Hotspots)
	}

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(got[1]))
	assert.Contains(t, buf.String(), `"hotspots":[]`)
}
