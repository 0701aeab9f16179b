package ui

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phenoprofile/app"
	"phenoprofile/domain/profile"
	"phenoprofile/internal/config"
	"phenoprofile/internal/testkit"
)

func newTestApp() *App {
	cfg := config.Default()
	return NewApp(Config{MaxUploadMB: 1, Analysis: cfg.Analysis},
		app.NewProfilingService(nil, nil), app.NewPairedService(nil))
}

func csvBody(t *testing.T, table *profile.Table) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, testkit.WriteCSV(&buf, table))
	return &buf
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestApp().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAnalysis(t *testing.T) {
	body := csvBody(t, testkit.SeparationScenario())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses?dataset=separation&params=p1,p2,p3&tiers=2", body)
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	newTestApp().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result app.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "separation", result.Dataset)
	assert.True(t, result.Sweep.Best.Found)
	assert.Equal(t, 2, result.Sweep.Best.K)
	assert.Len(t, result.Subjects, 20)
	require.NotNil(t, result.TwoTier)
	assert.Len(t, result.TwoTier.Subjects, 20)
}

func TestAnalysis_HTMLReport(t *testing.T) {
	body := csvBody(t, testkit.SeparationScenario())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses?dataset=separation&params=p1,p2,p3&report=html", body)
	rec := httptest.NewRecorder()
	newTestApp().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "separation")
}

func TestAnalysis_NoOptimum(t *testing.T) {
	table := testkit.SeparationScenario()
	for i := 10; i < 20; i++ {
		table.Subjects[i].Values = append([]float64(nil), table.Subjects[i-10].Values...)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses?params=p1,p2,p3", csvBody(t, table))
	rec := httptest.NewRecorder()
	newTestApp().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp struct {
		Error  errorBody          `json:"error"`
		Result app.AnalysisResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "NO_OPTIMUM", resp.Error.Code)
	assert.NotEmpty(t, resp.Result.Sweep.Curve)
}

func TestAnalysis_BadRequests(t *testing.T) {
	good := func() *bytes.Buffer { return csvBody(t, testkit.SeparationScenario()) }
	tests := []struct {
		name   string
		query  string
		body   *bytes.Buffer
		status int
		code   string
	}{
		{"bad tiers", "params=p1,p2&tiers=3", good(), http.StatusBadRequest, "INVALID_INPUT"},
		{"bad control", "params=p1,p2&control=x", good(), http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown control", "params=p1,p2&control=7", good(), http.StatusBadRequest, "CONFIG_INVALID"},
		{"nothing selected", "", good(), http.StatusBadRequest, "CONFIG_INVALID"},
		{"bad direction", "params=p1&directions=p1:sideways", good(), http.StatusBadRequest, ""},
		{"missing columns", "params=p1", bytes.NewBufferString("group,subject\n0,a\n"), http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses?"+tt.query, tt.body)
			rec := httptest.NewRecorder()
			newTestApp().ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.code != "" {
				var resp errorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, tt.code, resp.Error.Code)
			}
		})
	}
}

func TestAnalysis_BodyTooLarge(t *testing.T) {
	body := strings.NewReader("group,subject,p1\n" + strings.Repeat("0,a,1\n", 400000))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses?params=p1", body)
	rec := httptest.NewRecorder()
	newTestApp().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaired(t *testing.T) {
	table := testkit.NewCohortGenerator(testkit.DefaultCohortConfig()).GeneratePaired()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/paired?dataset=paired", csvBody(t, table))
	rec := httptest.NewRecorder()
	newTestApp().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var analysis struct {
		Pairs  int `json:"pairs"`
		Result struct {
			Levels []json.RawMessage `json:"levels"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analysis))
	assert.Equal(t, 30, analysis.Pairs)
	assert.Len(t, analysis.Result.Levels, 11)
}

func TestRuns_WithoutRepository(t *testing.T) {
	a := newTestApp()

	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = httptest.NewRecorder()
	a.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	a.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/0190c5a4-8f2e-7c1a-9b3d-2f4e6a8c0d1e", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParseParameters(t *testing.T) {
	cfg, err := parseParameters("", "")
	require.NoError(t, err)
	assert.Nil(t, cfg)

	cfg, err = parseParameters("P1, p2", "p2:below,p3:above")
	require.NoError(t, err)
	assert.Equal(t, profile.ParameterConfig{
		{Name: "p1", Selected: true, Direction: profile.DirectionBoth},
		{Name: "p2", Selected: true, Direction: profile.DirectionBelow},
		{Name: "p3", Direction: profile.DirectionAbove},
	}, cfg)

	_, err = parseParameters("p1", "p1")
	assert.Error(t, err)
}

func TestParseGroups(t *testing.T) {
	groups, err := parseGroups("0, group_2")
	require.NoError(t, err)
	assert.Len(t, groups, 2)
	assert.EqualValues(t, 2, groups[1])

	_, err = parseGroups("a")
	assert.Error(t, err)
}
