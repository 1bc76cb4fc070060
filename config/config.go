// Package config decodes the JSON run file shared by the hrsip tools.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/carbocation/hrsip"
	"github.com/carbocation/hrsip/dataset"
	"github.com/carbocation/hrsip/dispatch"
	"github.com/carbocation/hrsip/engine"
	"github.com/carbocation/hrsip/subset"
	"github.com/carbocation/pfx"
)

// DefaultSparsity is the set of occupancy thresholds tried when none are
// configured.
var DefaultSparsity = []float64{0, 0.15, 0.25}

// DefaultWindows are the customary HR-SIP buoyant density windows.
var DefaultWindows = []engine.Window{
	{Lower: 1.70, Upper: 1.73},
	{Lower: 1.72, Upper: 1.75},
	{Lower: 1.74, Upper: 1.77},
}

type JSONConfig struct {
	ConfigPath string `json:"-"`

	Dataset dataset.Paths `json:"dataset"`
	Design  subset.Design `json:"design"`

	Windows       []engine.Window `json:"windows"`
	Sparsity      []float64       `json:"sparsity"`
	Alpha         float64         `json:"alpha"`
	DensityColumn string          `json:"density_column"`
	Test          string          `json:"test"`

	Workers  int  `json:"workers"`
	FailFast bool `json:"fail_fast"`

	// BestSparsity keeps only the threshold yielding the most incorporators
	// per group.
	BestSparsity bool `json:"best_sparsity"`

	Output string `json:"output"`
	SQLite string `json:"sqlite"`
}

// ParseJSONConfigFromPath reads a run file. Unset tuning fields receive their
// defaults and ~ is expanded in every path.
func ParseJSONConfigFromPath(path string) (JSONConfig, error) {
	f, err := os.Open(hrsip.ExpandHome(path))
	if err != nil {
		return JSONConfig{ConfigPath: path}, pfx.Err(err)
	}
	defer f.Close()

	out, err := ParseJSONConfig(f)
	out.ConfigPath = hrsip.ExpandHome(path)

	return out, err
}

// ParseJSONConfig decodes a run file from r.
func ParseJSONConfig(r io.Reader) (JSONConfig, error) {
	out := JSONConfig{}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		if e, ok := err.(*json.SyntaxError); ok {
			log.Printf("syntax error at byte offset %d", e.Offset)
		}
		return out, pfx.Err(err)
	}

	out.ApplyDefaults()

	// Interpret ~ if present
	out.Dataset.Samples = hrsip.ExpandHome(out.Dataset.Samples)
	out.Dataset.Counts = hrsip.ExpandHome(out.Dataset.Counts)
	out.Dataset.Taxonomy = hrsip.ExpandHome(out.Dataset.Taxonomy)
	out.Output = hrsip.ExpandHome(out.Output)
	out.SQLite = hrsip.ExpandHome(out.SQLite)

	return out, pfx.Err(out.Validate())
}

// ApplyDefaults fills every unset tuning field.
func (c *JSONConfig) ApplyDefaults() {
	if len(c.Windows) == 0 {
		c.Windows = append([]engine.Window(nil), DefaultWindows...)
	}
	if len(c.Sparsity) == 0 {
		c.Sparsity = append([]float64(nil), DefaultSparsity...)
	}
	if c.Alpha == 0 {
		c.Alpha = 0.1
	}
	if c.DensityColumn == "" {
		c.DensityColumn = engine.DefaultDensityColumn
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
}

// Validate checks the tuning fields. The design itself is checked when the
// groups are built.
func (c JSONConfig) Validate() error {
	if c.Alpha <= 0 || c.Alpha >= 1 {
		return fmt.Errorf("alpha must lie in (0, 1), got %g", c.Alpha)
	}
	for _, w := range c.Windows {
		if w.Upper < w.Lower {
			return fmt.Errorf("density window %s is inverted", w)
		}
	}
	for _, s := range c.Sparsity {
		if s < 0 || s > 1 {
			return fmt.Errorf("sparsity threshold %g must lie in [0, 1]", s)
		}
	}
	if _, err := engine.ParseTestKind(c.Test); err != nil {
		return err
	}
	return nil
}

// DispatchOptions collects the tuning fields the dispatcher needs.
func (c JSONConfig) DispatchOptions() dispatch.Options {
	return dispatch.Options{
		Workers:            c.Workers,
		FailFast:           c.FailFast,
		DensityColumn:      c.DensityColumn,
		Windows:            c.Windows,
		SparsityThresholds: c.Sparsity,
		Alpha:              c.Alpha,
	}
}

// SplitList splits a comma-delimited flag value, trimming whitespace and
// dropping empty items.
func SplitList(s string) []string {
	out := []string{}
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
