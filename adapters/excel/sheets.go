package excel

import (
	"math"
	"strconv"
	"strings"

	"phenoprofile/domain/profile"
)

// sheet is one exported result table
type sheet struct {
	name   string
	header []string
	rows   [][]interface{}
}

func statsSheet(rows []profile.GroupStats) sheet {
	s := sheet{name: "group_stats", header: []string{"group", "parameter", "count", "mean", "std"}}
	for _, r := range rows {
		s.rows = append(s.rows, []interface{}{r.Group.Label(), r.Parameter, r.Count, r.Mean, r.Std})
	}
	return s
}

func curveSheet(points []profile.CurvePoint) sheet {
	s := sheet{name: "percent_curve", header: []string{"threshold", "group", "k", "percent"}}
	for _, p := range points {
		s.rows = append(s.rows, []interface{}{p.Threshold, p.Group.Label(), p.K, p.Percent})
	}
	return s
}

func subjectsSheet(rows []profile.SubjectResult) sheet {
	s := sheet{name: "final_table_1_levels", header: []string{"group", "subject", "affected", "affected_count", "observed", "params"}}
	for _, r := range rows {
		s.rows = append(s.rows, []interface{}{int(r.Group), r.Subject, r.Affected, r.AffectedCount, r.Observed, r.Params})
	}
	return s
}

func twoTierSheet(rows []profile.TwoTierSubjectResult) sheet {
	s := sheet{name: "final_table_2_levels", header: []string{
		"group", "subject", "tier", "affected_high", "affected_med", "pct_high", "pct_med",
		"corrected_score", "params_high", "params_med",
	}}
	for _, r := range rows {
		s.rows = append(s.rows, []interface{}{
			int(r.Group), r.Subject, string(r.Tier), r.AffectedHigh, r.AffectedMedium,
			r.PctHigh, r.PctMedium, r.CorrectedScore, r.ParamsHigh, r.ParamsMedium,
		})
	}
	return s
}

func talliesSheet(multiplier float64, rows []profile.ParameterTally) sheet {
	s := sheet{name: "tallies_" + formatFloat(multiplier), header: []string{"parameter", "count", "above", "below", "within", "affected"}}
	for _, r := range rows {
		s.rows = append(s.rows, []interface{}{r.Parameter, r.Count, r.Above, r.Below, r.Within, r.Affected()})
	}
	return s
}

func combinationsSheet(multiplier float64, rows []profile.TaskCombination) sheet {
	s := sheet{name: "combinations_" + formatFloat(multiplier), header: []string{"combination", "tasks", "flagged", "percent"}}
	for _, r := range rows {
		s.rows = append(s.rows, []interface{}{r.Name(), r.Tasks, r.Flagged, r.Percent})
	}
	return s
}

// ParamsSeparator joins parameter lists inside a single cell
const ParamsSeparator = ";"

// cellString renders a value for CSV output
func cellString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return formatFloat(x)
	case bool:
		return strconv.FormatBool(x)
	case []string:
		return strings.Join(x, ParamsSeparator)
	}
	return ""
}

// cellValue renders a value for an XLSX cell; undefined numbers stay empty
func cellValue(v interface{}) interface{} {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
	case []string:
		return strings.Join(x, ParamsSeparator)
	}
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// splitParams parses a params cell back into names
func splitParams(cell string) []string {
	if strings.TrimSpace(cell) == "" {
		return []string{}
	}
	parts := strings.Split(cell, ParamsSeparator)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
