package ui

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"phenoprofile/adapters/excel"
	"phenoprofile/adapters/report"
	"phenoprofile/app"
	"phenoprofile/domain/core"
	apperrors "phenoprofile/internal/errors"
	"phenoprofile/ports"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// analysisQuery is the query string of POST /api/v1/analyses
type analysisQuery struct {
	Dataset    string
	Control    int `validate:"gte=0"`
	Groups     string
	Params     string
	Directions string
	Tiers      int `validate:"oneof=1 2"`
	AutoSelect bool
	Format     string `validate:"oneof=csv xlsx"`
	Report     string `validate:"omitempty,oneof=json html md"`
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// uploadFormat picks csv or xlsx from ?format= or the content type
func uploadFormat(r *http.Request) string {
	if f := strings.ToLower(r.URL.Query().Get("format")); f != "" {
		return f
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), xlsxContentType) {
		return "xlsx"
	}
	return "csv"
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperrors.InvalidInput("query parameter " + key + " must be an integer")
	}
	return n, nil
}

func (a *App) parseAnalysisQuery(r *http.Request) (analysisQuery, error) {
	q := r.URL.Query()
	aq := analysisQuery{
		Dataset:    q.Get("dataset"),
		Groups:     q.Get("groups"),
		Params:     q.Get("params"),
		Directions: q.Get("directions"),
		Format:     uploadFormat(r),
		Report:     strings.ToLower(q.Get("report")),
	}
	if aq.Dataset == "" {
		aq.Dataset = "upload"
	}
	var err error
	if aq.Control, err = queryInt(r, "control", a.analysis.Control); err != nil {
		return aq, err
	}
	if aq.Tiers, err = queryInt(r, "tiers", 1); err != nil {
		return aq, err
	}
	aq.AutoSelect = a.analysis.Selection.Auto
	if v := q.Get("auto_select"); v != "" {
		if aq.AutoSelect, err = strconv.ParseBool(v); err != nil {
			return aq, apperrors.InvalidInput("query parameter auto_select must be a boolean")
		}
	}
	if err := a.validate.Struct(aq); err != nil {
		return aq, validationError(err)
	}
	return aq, nil
}

// handleAnalysis runs a single- or two-tier analysis on the uploaded table
func (a *App) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	aq, err := a.parseAnalysisQuery(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	groups, err := parseGroups(aq.Groups)
	if err != nil {
		a.writeError(w, err)
		return
	}
	params, err := parseParameters(aq.Params, aq.Directions)
	if err != nil {
		a.writeError(w, err)
		return
	}

	selection := a.analysis.Selection
	selection.Auto = aq.AutoSelect
	req := app.AnalysisRequest{
		Dataset:    aq.Dataset,
		Reader:     excel.NewStreamReader(r.Body, aq.Format),
		Control:    core.GroupID(aq.Control),
		Groups:     groups,
		Parameters: params,
		TwoTier:    aq.Tiers == 2,
		Selection:  selection,
		Sweep:      a.analysis.Sweep,
		Tiers:      a.analysis.Tiers,
	}

	result, err := a.profiler.Analyze(r.Context(), req)
	if err != nil && !errors.Is(err, core.ErrNoOptimum) {
		a.writeError(w, err)
		return
	}

	switch aq.Report {
	case "html", "md":
		contentType := "text/html; charset=utf-8"
		if aq.Report == "md" {
			contentType = "text/markdown; charset=utf-8"
		}
		w.Header().Set("Content-Type", contentType)
		if err := report.Write(w, result.Summary(), aq.Report); err != nil {
			a.logger.Error("[HTTP] failed to render report: %v", err)
		}
		return
	}

	if err != nil {
		code := apperrors.GetCode(err)
		a.writeJSON(w, apperrors.HTTPStatus(code), map[string]interface{}{
			"error":  errorBody{Code: code, Message: err.Error()},
			"result": result,
		})
		return
	}
	a.writeJSON(w, http.StatusOK, result)
}

// handlePaired runs the paired difference sweep on the uploaded table
func (a *App) handlePaired(w http.ResponseWriter, r *http.Request) {
	cfg := a.analysis.Paired
	if r.URL.Query().Get("baseline") != "" {
		baseline, err := queryInt(r, "baseline", 0)
		if err != nil {
			a.writeError(w, err)
			return
		}
		g := core.GroupID(baseline)
		cfg.Baseline = &g
	}
	if sep := r.URL.Query().Get("separator"); sep != "" {
		cfg.Separator = sep
	}
	params, err := parseParameters(r.URL.Query().Get("params"), r.URL.Query().Get("directions"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	format := uploadFormat(r)
	if format != "csv" && format != "xlsx" {
		a.writeError(w, apperrors.InvalidInput("format must be csv or xlsx"))
		return
	}
	dataset := r.URL.Query().Get("dataset")
	if dataset == "" {
		dataset = "upload"
	}

	analysis, err := a.paired.Analyze(r.Context(), app.PairedRequest{
		Dataset:    dataset,
		Reader:     excel.NewStreamReader(r.Body, format),
		Parameters: params,
		Config:     cfg,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, analysis)
}

func (a *App) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		a.writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		a.writeError(w, err)
		return
	}
	runs, err := a.profiler.ListRuns(r.Context(), ports.RunFilters{
		Dataset: r.URL.Query().Get("dataset"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, runs)
}

func (a *App) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, apperrors.InvalidInput(err.Error()))
		return
	}
	run, err := a.profiler.GetRun(r.Context(), id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, run)
}
