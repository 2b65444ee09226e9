package coverage

import (
	"fmt"
	"io"
	"sort"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"gonum.org/v1/gonum/stat"
)

// FileSummary counts the statements of one file.
type FileSummary struct {
	Path       string `json:"path" yaml:"path" toml:"path"`
	Statements int    `json:"statements" yaml:"statements" toml:"statements"`
	Covered    int    `json:"covered" yaml:"covered" toml:"covered"`
}

// Summary counts statements across a coverage map.
type Summary struct {
	Statements int           `json:"statements" yaml:"statements" toml:"statements"`
	Covered    int           `json:"covered" yaml:"covered" toml:"covered"`
	Files      []FileSummary `json:"files" yaml:"files" toml:"files"`
}

// Percent returns the covered share of statements, 100 when there are none.
func Percent(covered, statements int) float64 {
	if statements == 0 {
		return 100
	}
	return 100 * float64(covered) / float64(statements)
}

// Summary counts the statements of every file in path order.
func (m CoverageMap) Summary() Summary {
	var s Summary
	for _, p := range m.Paths() {
		fs := FileSummary{Path: p, Statements: len(m[p].S)}
		for _, hits := range m[p].S {
			if hits > 0 {
				fs.Covered++
			}
		}
		s.Statements += fs.Statements
		s.Covered += fs.Covered
		s.Files = append(s.Files, fs)
	}
	return s
}

// Spread describes how coverage is distributed over the files of a summary,
// in percent.
type Spread struct {
	Files  int     `json:"files" yaml:"files" toml:"files"`
	Min    float64 `json:"min" yaml:"min" toml:"min"`
	Median float64 `json:"median" yaml:"median" toml:"median"`
	Mean   float64 `json:"mean" yaml:"mean" toml:"mean"`
	StdDev float64 `json:"stddev" yaml:"stddev" toml:"stddev"`
}

// Spread computes per-file coverage statistics. Files without statements
// are left out; the zero Spread is returned when none remain.
func (s Summary) Spread() Spread {
	percents := make([]float64, 0, len(s.Files))
	for _, f := range s.Files {
		if f.Statements > 0 {
			percents = append(percents, Percent(f.Covered, f.Statements))
		}
	}
	if len(percents) == 0 {
		return Spread{}
	}
	sort.Float64s(percents)

	sp := Spread{
		Files:  len(percents),
		Min:    percents[0],
		Median: stat.Quantile(0.5, stat.Empirical, percents, nil),
		Mean:   stat.Mean(percents, nil),
	}
	if len(percents) > 1 {
		sp.StdDev = stat.StdDev(percents, nil)
	}
	return sp
}

// SummaryFormats lists the encodings EncodeSummary accepts.
var SummaryFormats = []string{"json", "yaml", "toml"}

// EncodeSummary writes s to w as json, yaml or toml.
func EncodeSummary(w io.Writer, s Summary, format string) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case "json":
		data, err = sonic.ConfigStd.MarshalIndent(s, "", "  ")
	case "yaml":
		data, err = yaml.Marshal(s)
	case "toml":
		data, err = toml.Marshal(s)
	default:
		return fmt.Errorf("unknown summary format %q", format)
	}
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	_, err = w.Write(data)
	return err
}
