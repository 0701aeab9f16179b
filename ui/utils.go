package ui

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"phenoprofile/domain/core"
	"phenoprofile/domain/profile"
	apperrors "phenoprofile/internal/errors"
)

// errorBody is the JSON error envelope
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("[HTTP] failed to encode response: %v", err)
	}
}

// writeError maps err to a status through its error code
func (a *App) writeError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		code = apperrors.CodeInvalidInput
	}
	status := apperrors.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		a.logger.Error("[HTTP] %s: %v", code, err)
	}
	a.writeJSON(w, status, map[string]errorBody{"error": {Code: code, Message: err.Error()}})
}

// validationError turns the first failed tag into an INVALID_INPUT error
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperrors.InvalidInput(fmt.Sprintf("query parameter %s fails %q", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return apperrors.InvalidInput(err.Error())
}

// splitList splits a comma separated query value, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseGroups accepts "0,1,2" or "group_0,group_1"
func parseGroups(s string) ([]core.GroupID, error) {
	var groups []core.GroupID
	for _, part := range splitList(s) {
		g, err := core.ParseGroupID(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrInvalidGroupID, err)
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// parseParameters builds a parameter configuration from "p1,p2" and
// "p1:above,p2:below". It returns nil when neither is given so stored
// preferences apply.
func parseParameters(params, directions string) (profile.ParameterConfig, error) {
	names := splitList(strings.ToLower(params))
	dirs := splitList(directions)
	if len(names) == 0 && len(dirs) == 0 {
		return nil, nil
	}

	var cfg profile.ParameterConfig
	index := make(map[string]int)
	for _, n := range names {
		index[n] = len(cfg)
		cfg = append(cfg, profile.ParameterSetting{Name: n, Selected: true, Direction: profile.DirectionBoth})
	}
	for _, d := range dirs {
		name, value, ok := strings.Cut(d, ":")
		if !ok {
			return nil, fmt.Errorf("%w: %q, expected name:direction", core.ErrUnknownDirection, d)
		}
		dir, err := profile.ParseDirection(value)
		if err != nil {
			return nil, err
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if i, ok := index[name]; ok {
			cfg[i].Direction = dir
			continue
		}
		index[name] = len(cfg)
		cfg = append(cfg, profile.ParameterSetting{Name: name, Direction: dir})
	}
	return cfg, nil
}
