// hrsip builds one treatment-versus-control comparison group per labeled
// substrate and stratum of a DNA-SIP experiment, tests every group for
// isotope incorporation across buoyant density windows, and writes the merged
// per-feature results as a tab-delimited table.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/carbocation/hrsip"
	_ "github.com/carbocation/hrsip/compileinfoprint"
	"github.com/carbocation/hrsip/config"
	"github.com/carbocation/hrsip/dataset"
	"github.com/carbocation/hrsip/dispatch"
	"github.com/carbocation/hrsip/engine"
	"github.com/carbocation/hrsip/results"
	"github.com/carbocation/hrsip/subset"
	"go.uber.org/multierr"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "(Optional) JSON run file. Any flag given on the command line overrides it.")
	o := registerOverrides()
	flag.Parse()

	cfg, err := loadConfig(configPath, o)
	if err != nil {
		log.Fatalln(err)
	}

	if cfg.Dataset.Samples == "" || cfg.Dataset.Counts == "" || cfg.Design.TreatmentAxis == "" || cfg.Design.Control == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	log.Println("Started running at", time.Now())
	defer func() {
		log.Println("Completed at", time.Now())
	}()

	if err := run(context.Background(), cfg); err != nil {
		var ve *subset.ValidationError
		if errors.As(err, &ve) {
			for _, p := range ve.Problems {
				log.Println(p)
			}
		}
		log.Fatalln(err)
	}
}

func run(ctx context.Context, cfg config.JSONConfig) error {
	var client *storage.Client
	if hrsip.NeedsGoogleStorage(cfg.Dataset.Samples, cfg.Dataset.Counts, cfg.Dataset.Taxonomy, cfg.Output) {
		var err error
		client, err = storage.NewClient(ctx)
		if err != nil {
			return err
		}
		defer client.Close()
	}

	data, err := dataset.Load(ctx, cfg.Dataset, client)
	if err != nil {
		return err
	}

	if err := data.RequireColumns(cfg.DensityColumn); err != nil {
		return err
	}

	groups, err := subset.Build(data.Samples.Samples, cfg.Design)
	if err != nil {
		return err
	}
	log.Printf("Built %d comparison groups (%d combinations skipped)\n", len(groups.Groups), len(groups.Skipped))

	kind, err := engine.ParseTestKind(cfg.Test)
	if err != nil {
		return err
	}
	eng := engine.NewHeavyWindow()
	eng.Test = kind

	combined, err := dispatch.Run(ctx, data, groups, eng, cfg.DispatchOptions())
	if combined == nil {
		return err
	}

	// Failed groups are reported but do not keep the others from being saved.
	failures := err
	for _, e := range multierr.Errors(failures) {
		log.Println("Group failed:", e)
	}

	res := combined.Results
	if cfg.BestSparsity {
		res = engine.SelectSparsity(res, cfg.Alpha)
	}
	rows := results.FromResults(res, data.Taxonomy, cfg.Alpha)

	if err := save(ctx, cfg, rows, data.Taxonomy != nil, client); err != nil {
		return multierr.Append(failures, err)
	}

	if failures != nil {
		return fmt.Errorf("%d of %d groups failed", len(combined.Failed), len(combined.Labels))
	}

	return nil
}

func save(ctx context.Context, cfg config.JSONConfig, rows []results.Row, withTaxonomy bool, client *storage.Client) error {
	w, err := results.Create(ctx, cfg.Output, client)
	if err != nil {
		return err
	}

	if err := results.WriteTSV(w, rows, withTaxonomy); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	if cfg.Output != "" {
		log.Println("Wrote", len(rows), "rows to", cfg.Output)
	}

	if cfg.SQLite == "" {
		return nil
	}

	db, err := results.OpenSQLite(cfg.SQLite)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := results.SaveSQLite(db, rows); err != nil {
		return err
	}
	log.Println("Saved", len(rows), "rows to", cfg.SQLite)

	return nil
}
