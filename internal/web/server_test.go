package web

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uidai-stress/internal/dataset"
	"github.com/uidai-stress/internal/export"
	"github.com/uidai-stress/internal/model"
	"github.com/uidai-stress/internal/store"
	"github.com/uidai-stress/internal/web/handlers"
)

func sampleProfiles() []model.StressProfile {
	return []model.StressProfile{
		{
			State: "Odisha", District: "Cuttack", WindowClass: model.WindowShortTerm,
			EURMean: 0.42, EURStd: 0.05, StressPercentile: 91.5, PeerCount: 12,
			Category: model.CategoryCritical, Recommendation: model.RecMobileVan, Reason: "urgent",
			TotalEnrolments: 1000, TotalUpdates: 420, ObservedDays: 10,
			AvgDailyEnrolments: 100, AvgDailyUpdates: 42,
			DailyGap:           142, OperatorsNeeded: 3, MonthlyCost: 45000,
		},
		{
			State: "Kerala", District: "Ernakulam", WindowClass: model.WindowMidTerm,
			EURMean: 0.22, EURStd: 0.04, StressPercentile: 60, PeerCount: 8,
			Category: model.CategoryWarning, Recommendation: model.RecExtraCounters, Reason: "sustained",
			TotalEnrolments: 900, TotalUpdates: 198, ObservedDays: 45,
			AvgDailyEnrolments: 20, AvgDailyUpdates: 4.4,
			DailyGap:           24.4, OperatorsNeeded: 1, MonthlyCost: 15000,
		},
		{
			State: "Goa", District: "North Goa", WindowClass: model.WindowLongTerm,
			EURMean: 0.1, EURStd: 0, StressPercentile: math.NaN(), PeerCount: 1,
			Category: model.CategoryNormal, Recommendation: model.RecMonitorClosely, Reason: "sparse",
			TotalEnrolments: 120, TotalUpdates: 12, ObservedDays: 120,
			AvgDailyEnrolments: 1, AvgDailyUpdates: 0.1,
		},
	}
}

func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()

	dir := t.TempDir()
	ex := export.NewExporter(dir)
	_, err := ex.WriteRecommendations(sampleProfiles())
	require.NoError(t, err)
	_, err = ex.WriteRequirements(sampleProfiles())
	require.NoError(t, err)

	t.Setenv("STRESS_DB_DRIVER", store.DriverSQLite)
	t.Setenv("STRESS_DB_PATH", ":memory:")

	cfg := DefaultConfig()
	cfg.Data.OutputDir = dir
	if mutate != nil {
		mutate(cfg)
	}

	s, err := NewServer(cfg)
	require.NoError(t, err)
	if s.store != nil {
		t.Cleanup(func() { s.store.Close() })
	}
	return s
}

func doRequest(t *testing.T, s *Server, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestServer_ListDistricts(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/districts", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.DistrictsResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, 3, resp.Total)

	rec = doRequest(t, s, http.MethodGet, "/api/districts?category=Critical", nil)
	decodeBody(t, rec, &resp)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "Cuttack", resp.Districts[0].District)
	require.NotNil(t, resp.Districts[0].StressPercentile)
	assert.Equal(t, 91.5, *resp.Districts[0].StressPercentile)

	rec = doRequest(t, s, http.MethodGet, "/api/districts?recommendation=Monitor+Closely", nil)
	decodeBody(t, rec, &resp)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "North Goa", resp.Districts[0].District)
	assert.Nil(t, resp.Districts[0].StressPercentile)
}

func TestServer_Rankings(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/districts/top?n=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp handlers.DistrictsResponse
	decodeBody(t, rec, &resp)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "Cuttack", resp.Districts[0].District)

	rec = doRequest(t, s, http.MethodGet, "/api/districts/least?n=5", nil)
	decodeBody(t, rec, &resp)
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, "Ernakulam", resp.Districts[0].District)
}

func TestServer_Summary(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var sum dataset.Summary
	decodeBody(t, rec, &sum)
	assert.Equal(t, 3, sum.Districts)
	assert.Equal(t, 3, sum.States)
	assert.Equal(t, 4, sum.TotalOperators)
	assert.Equal(t, 60000.0, sum.MonthlyCost)
}

func TestServer_States(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/states", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var states struct {
		States []string `json:"states"`
		Total  int      `json:"total"`
	}
	decodeBody(t, rec, &states)
	assert.Equal(t, []string{"Goa", "Kerala", "Odisha"}, states.States)

	rec = doRequest(t, s, http.MethodGet, "/api/states/Odisha/districts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var districts struct {
		Districts []string `json:"districts"`
	}
	decodeBody(t, rec, &districts)
	assert.Equal(t, []string{"Cuttack"}, districts.Districts)

	rec = doRequest(t, s, http.MethodGet, "/api/states/Atlantis/districts", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_MapPoints(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/map", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Points []dataset.MapPoint `json:"points"`
		Total  int                `json:"total"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, 3, resp.Total)
}

func TestServer_RunHistory(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	rec := doRequest(t, s, http.MethodGet, "/api/runs/latest", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	run := store.Run{
		RunID:      "01HV0000000000000000000001",
		StartedAt:  time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2025, 3, 2, 10, 1, 0, 0, time.UTC),
		InputRows:  500,
		Districts:  3,
	}
	require.NoError(t, s.store.SaveRun(ctx, run))
	require.NoError(t, s.store.SaveProfiles(ctx, run.RunID, sampleProfiles()))

	rec = doRequest(t, s, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Runs  []handlers.RunResponse `json:"runs"`
		Total int                    `json:"total"`
	}
	decodeBody(t, rec, &list)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, run.RunID, list.Runs[0].RunID)
	assert.Equal(t, 500, list.Runs[0].InputRows)

	rec = doRequest(t, s, http.MethodGet, "/api/runs/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/runs/"+run.RunID+"/districts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp handlers.DistrictsResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, 3, resp.Total)

	rec = doRequest(t, s, http.MethodGet, "/api/runs/nope/districts", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Downloads(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/downloads/recommendations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), export.RecommendationsFile)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "state,district,window_class"))

	rec = doRequest(t, s, http.MethodGet, "/api/downloads/workbook", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/downloads/passwd", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_APIKey(t *testing.T) {
	s := newTestServer(t, func(cfg *Config) {
		cfg.Auth.APIKey = "sesame"
	})

	rec := doRequest(t, s, http.MethodGet, "/api/summary", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/summary", map[string]string{"X-API-Key": "sesame"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Refresh(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success   bool `json:"success"`
		Districts int  `json:"districts"`
	}
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.Districts)
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Status    string `json:"status"`
		Districts int    `json:"districts"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Districts)

	s.loader = dataset.NewLoader(t.TempDir())
	s.setupRoutes()
	rec = doRequest(t, s, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_CORSHeader(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/summary", map[string]string{"Origin": "http://localhost:3000"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
