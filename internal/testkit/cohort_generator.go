package testkit

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"

	"phenoprofile/domain/core"
	"phenoprofile/domain/profile"
)

// CohortGeneratorConfig configures the synthetic cohort generator. Group 0
// is control; Effect is the shift in control SDs applied to the first
// ShiftedParams parameters of AffectedFraction of each treated group.
type CohortGeneratorConfig struct {
	Groups           int      `json:"groups"`
	SubjectsPerGroup int      `json:"subjects_per_group"`
	Parameters       []string `json:"parameters"`
	Mean             float64  `json:"mean"`
	Std              float64  `json:"std"`
	Effect           float64  `json:"effect"`
	AffectedFraction float64  `json:"affected_fraction"`
	ShiftedParams    int      `json:"shifted_params"`
	MissingRate      float64  `json:"missing_rate"`
	Seed             int64    `json:"seed"`
}

// DefaultCohortConfig returns a two-group cohort with a clear effect on half
// of six parameters.
func DefaultCohortConfig() CohortGeneratorConfig {
	return CohortGeneratorConfig{
		Groups:           2,
		SubjectsPerGroup: 30,
		Parameters:       []string{"openfield_distance", "openfield_rearing", "rotarod_latency", "rotarod_falls", "grip_strength", "grip_duration"},
		Mean:             10,
		Std:              1,
		Effect:           3,
		AffectedFraction: 0.7,
		ShiftedParams:    3,
		Seed:             42,
	}
}

// CohortGenerator builds deterministic subject tables
type CohortGenerator struct {
	config CohortGeneratorConfig
	rng    *rand.Rand
}

// NewCohortGenerator creates a new cohort generator
func NewCohortGenerator(config CohortGeneratorConfig) *CohortGenerator {
	return &CohortGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate draws one row per subject. Group 0 is control; in every other
// group the first AffectedFraction of subjects are shifted by Effect SDs on
// the first ShiftedParams parameters.
func (g *CohortGenerator) Generate() *profile.Table {
	c := g.config
	table := &profile.Table{
		GroupColumn:   "group",
		SubjectColumn: "subject",
		Parameters:    append([]string(nil), c.Parameters...),
	}
	for grp := 0; grp < c.Groups; grp++ {
		shifted := int(math.Round(c.AffectedFraction * float64(c.SubjectsPerGroup)))
		for i := 0; i < c.SubjectsPerGroup; i++ {
			values := make([]float64, len(c.Parameters))
			for j := range values {
				v := c.Mean + g.rng.NormFloat64()*c.Std
				if grp > 0 && i < shifted && j < c.ShiftedParams {
					v += c.Effect * c.Std
				}
				if c.MissingRate > 0 && g.rng.Float64() < c.MissingRate {
					v = math.NaN()
				}
				values[j] = v
			}
			table.Subjects = append(table.Subjects, profile.Subject{
				Group:  core.GroupID(grp),
				ID:     fmt.Sprintf("s%02d_%03d", grp, i+1),
				Values: values,
			})
		}
	}
	return table
}

// GeneratePaired draws a baseline row (group 1) and a post row (group 2) per
// subject. Affected subjects move by Effect SDs on the shifted parameters.
func (g *CohortGenerator) GeneratePaired() *profile.Table {
	c := g.config
	table := &profile.Table{
		GroupColumn:   "group",
		SubjectColumn: "subject",
		Parameters:    append([]string(nil), c.Parameters...),
	}
	shifted := int(math.Round(c.AffectedFraction * float64(c.SubjectsPerGroup)))
	for i := 0; i < c.SubjectsPerGroup; i++ {
		id := fmt.Sprintf("m%03d", i+1)
		pre := make([]float64, len(c.Parameters))
		post := make([]float64, len(c.Parameters))
		for j := range pre {
			pre[j] = c.Mean + g.rng.NormFloat64()*c.Std
			post[j] = pre[j] + g.rng.NormFloat64()*c.Std*0.2
			if i < shifted && j < c.ShiftedParams {
				post[j] += c.Effect * c.Std
			}
		}
		table.Subjects = append(table.Subjects,
			profile.Subject{Group: 1, ID: id, Values: pre},
			profile.Subject{Group: 2, ID: id, Values: post},
		)
	}
	return table
}

// SeparationScenario is the hand-built 20 subject cohort: 10 control
// subjects (group 0) with mean 10 and sample std 1 on three parameters, and
// 10 treated subjects (group 1) of which 8 sit 3 SD above control on the
// first two parameters. Control subjects all sit sqrt(0.9) SD from the mean.
func SeparationScenario() *profile.Table {
	table := &profile.Table{
		GroupColumn:   "group",
		SubjectColumn: "subject",
		Parameters:    []string{"p1", "p2", "p3"},
	}
	a := math.Sqrt(0.9)
	for i := 0; i < 10; i++ {
		sign := 1.0
		if i%2 == 1 {
			sign = -1
		}
		v := 10 + sign*a
		table.Subjects = append(table.Subjects, profile.Subject{
			Group: 0, ID: "c" + strconv.Itoa(i+1), Values: []float64{v, v, v},
		})
	}
	for i := 0; i < 10; i++ {
		values := []float64{10, 10, 10}
		if i < 8 {
			values[0], values[1] = 13, 13
		}
		table.Subjects = append(table.Subjects, profile.Subject{
			Group: 1, ID: "t" + strconv.Itoa(i+1), Values: values,
		})
	}
	return table
}

// WriteCSV renders a table in the data-file layout: group, subject, then the
// parameter columns. Missing values are written as empty cells.
func WriteCSV(w io.Writer, table *profile.Table) error {
	cw := csv.NewWriter(w)
	header := append([]string{table.GroupColumn, table.SubjectColumn}, table.Parameters...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, s := range table.Subjects {
		row := []string{strconv.Itoa(int(s.Group)), s.ID}
		for _, v := range s.Values {
			if math.IsNaN(v) {
				row = append(row, "")
				continue
			}
			row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
