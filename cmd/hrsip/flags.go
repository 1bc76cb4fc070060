package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/carbocation/hrsip/config"
	"github.com/carbocation/hrsip/engine"
)

// overrides are the command-line settings that take precedence over the run
// file.
type overrides struct {
	samples       string
	counts        string
	taxonomy      string
	idColumn      string
	axis          string
	control       string
	treatments    string
	strata        string
	template      string
	windows       string
	sparsity      string
	alpha         float64
	densityColumn string
	test          string
	workers       int
	failFast      bool
	best          bool
	output        string
	sqlite        string
}

func registerOverrides() *overrides {
	o := &overrides{}
	flag.StringVar(&o.samples, "samples", "", "Sample attribute table (local, gs://, optionally gzip/bzip2/xz/zip compressed)")
	flag.StringVar(&o.counts, "counts", "", "Feature count table: one row per OTU, one column per sample")
	flag.StringVar(&o.taxonomy, "taxonomy", "", "(Optional) Taxonomy table with an OTU column and Domain..Species ranks")
	flag.StringVar(&o.idColumn, "id", "", "(Optional) Sample ID column of the sample table. Defaults to the first column.")
	flag.StringVar(&o.axis, "axis", "", "Sample attribute that separates labeled treatments from the control, e.g., substrate")
	flag.StringVar(&o.control, "control", "", "Control level of -axis, e.g., 12C-Con")
	flag.StringVar(&o.treatments, "treatments", "", "(Optional) Comma-delimited treatment levels. Defaults to every non-control level.")
	flag.StringVar(&o.strata, "strata", "", "(Optional) Comma-delimited stratification attributes, e.g., day")
	flag.StringVar(&o.template, "template", "", "(Optional) Custom pairing expression, e.g., \"(substrate=='12C-Con' & day=='${day}') | (substrate=='${substrate}' & day=='${day}')\"")
	flag.StringVar(&o.windows, "windows", "", "(Optional) Comma-delimited buoyant density windows, e.g., 1.70-1.73,1.72-1.75")
	flag.StringVar(&o.sparsity, "sparsity", "", "(Optional) Comma-delimited sparsity thresholds, e.g., 0,0.15,0.25")
	flag.Float64Var(&o.alpha, "alpha", 0, "(Optional) Adjusted p value below which a feature is an incorporator. Default 0.1.")
	flag.StringVar(&o.densityColumn, "density", "", "(Optional) Sample attribute holding buoyant density. Default "+engine.DefaultDensityColumn)
	flag.StringVar(&o.test, "test", "", "(Optional) welch or presence")
	flag.IntVar(&o.workers, "workers", 0, "(Optional) Number of groups to test at once")
	flag.BoolVar(&o.failFast, "failfast", false, "Stop at the first group failure and write nothing")
	flag.BoolVar(&o.best, "best", false, "Keep only the sparsity threshold with the most incorporators per group")
	flag.StringVar(&o.output, "out", "", "(Optional) Output path (local or gs://). Defaults to stdout.")
	flag.StringVar(&o.sqlite, "sqlite", "", "(Optional) Also append results to this SQLite database")
	return o
}

// loadConfig reads the optional run file and then applies whichever flags were
// explicitly set.
func loadConfig(path string, o *overrides) (config.JSONConfig, error) {
	cfg := config.JSONConfig{}
	if path != "" {
		var err error
		if cfg, err = config.ParseJSONConfigFromPath(path); err != nil {
			return cfg, err
		}
	}

	var err error
	flag.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "samples":
			cfg.Dataset.Samples = o.samples
		case "counts":
			cfg.Dataset.Counts = o.counts
		case "taxonomy":
			cfg.Dataset.Taxonomy = o.taxonomy
		case "id":
			cfg.Dataset.SampleIDColumn = o.idColumn
		case "axis":
			cfg.Design.TreatmentAxis = o.axis
		case "control":
			cfg.Design.Control = o.control
		case "treatments":
			cfg.Design.Treatments = config.SplitList(o.treatments)
		case "strata":
			cfg.Design.Strata = config.SplitList(o.strata)
		case "template":
			cfg.Design.Template = o.template
		case "windows":
			cfg.Windows, err = parseWindows(o.windows)
		case "sparsity":
			cfg.Sparsity, err = parseFloats(o.sparsity)
		case "alpha":
			cfg.Alpha = o.alpha
		case "density":
			cfg.DensityColumn = o.densityColumn
		case "test":
			cfg.Test = o.test
		case "workers":
			cfg.Workers = o.workers
		case "failfast":
			cfg.FailFast = o.failFast
		case "best":
			cfg.BestSparsity = o.best
		case "out":
			cfg.Output = o.output
		case "sqlite":
			cfg.SQLite = o.sqlite
		}
	})
	if err != nil {
		return cfg, err
	}

	cfg.ApplyDefaults()
	return cfg, cfg.Validate()
}

func parseFloats(s string) ([]float64, error) {
	out := []float64{}
	for _, v := range config.SplitList(s) {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func parseWindows(s string) ([]engine.Window, error) {
	out := []engine.Window{}
	for _, v := range config.SplitList(s) {
		bounds := strings.SplitN(v, "-", 2)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("window %q should look like 1.70-1.73", v)
		}
		floats, err := parseFloats(bounds[0] + "," + bounds[1])
		if err != nil {
			return nil, err
		}
		if len(floats) != 2 {
			return nil, fmt.Errorf("window %q should look like 1.70-1.73", v)
		}
		out = append(out, engine.Window{Lower: floats[0], Upper: floats[1]})
	}
	return out, nil
}
