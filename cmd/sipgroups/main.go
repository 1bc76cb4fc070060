// sipgroups prints the treatment/control comparison groups that hrsip would
// test, one line per (group, sample), without running any test. It is meant
// for checking an experimental design before committing to a long run.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/hrsip"
	_ "github.com/carbocation/hrsip/compileinfoprint"
	"github.com/carbocation/hrsip/config"
	"github.com/carbocation/hrsip/predicate"
	"github.com/carbocation/hrsip/sample"
	"github.com/carbocation/hrsip/subset"
)

var (
	BufferSize = 4096 * 8
	STDOUT     = bufio.NewWriterSize(os.Stdout, BufferSize)
)

func main() {
	defer STDOUT.Flush()

	var (
		configPath, samplesPath, idColumn string
		axis, control, treatments, strata string
		template                          string
		design                            subset.Design
	)
	flag.StringVar(&configPath, "config", "", "(Optional) JSON run file providing the sample table and design")
	flag.StringVar(&samplesPath, "samples", "", "Sample attribute table (local or gs://)")
	flag.StringVar(&idColumn, "id", "", "(Optional) Sample ID column. Defaults to the first column.")
	flag.StringVar(&axis, "axis", "", "Sample attribute that separates labeled treatments from the control, e.g., substrate")
	flag.StringVar(&control, "control", "", "Control level of -axis, e.g., 12C-Con")
	flag.StringVar(&treatments, "treatments", "", "(Optional) Comma-delimited treatment levels. Defaults to every non-control level.")
	flag.StringVar(&strata, "strata", "", "(Optional) Comma-delimited stratification attributes, e.g., day")
	flag.StringVar(&template, "template", "", "(Optional) Custom pairing expression with ${variable} placeholders")
	flag.Parse()

	if configPath != "" {
		cfg, err := config.ParseJSONConfigFromPath(configPath)
		if err != nil {
			log.Fatalln(err)
		}
		design = cfg.Design
		if samplesPath == "" {
			samplesPath = cfg.Dataset.Samples
		}
		if idColumn == "" {
			idColumn = cfg.Dataset.SampleIDColumn
		}
	}
	if axis != "" {
		design.TreatmentAxis = axis
	}
	if control != "" {
		design.Control = control
	}
	if treatments != "" {
		design.Treatments = config.SplitList(treatments)
	}
	if strata != "" {
		design.Strata = config.SplitList(strata)
	}
	if template != "" {
		design.Template = template
	}

	if samplesPath == "" || design.TreatmentAxis == "" || design.Control == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(samplesPath, idColumn, design); err != nil {
		var ve *subset.ValidationError
		if errors.As(err, &ve) {
			for _, p := range ve.Problems {
				log.Println(p)
			}
		}
		log.Fatalln(err)
	}
}

func run(samplesPath, idColumn string, design subset.Design) error {
	ctx := context.Background()

	var client *storage.Client
	if hrsip.NeedsGoogleStorage(samplesPath) {
		var err error
		client, err = storage.NewClient(ctx)
		if err != nil {
			return err
		}
		defer client.Close()
	}

	samples, err := sample.Load(ctx, samplesPath, idColumn, client)
	if err != nil {
		return err
	}

	groups, err := subset.Build(samples.Samples, design)
	if err != nil {
		return err
	}

	for _, label := range groups.Skipped {
		log.Println("No treatment samples for", label)
	}

	variables := groupVariables(groups)

	fmt.Fprintln(STDOUT, strings.Join(append([]string{"label", "treatment", "sample_id"}, variables...), "\t"))
	for _, g := range groups.Groups {
		for _, s := range g.Samples {
			line := []string{g.Label, g.Treatment, s.ID}
			for _, v := range variables {
				value, _ := s.Value(v)
				line = append(line, value)
			}
			fmt.Fprintln(STDOUT, strings.Join(line, "\t"))
		}
	}

	log.Printf("%d groups; %d combinations skipped\n", len(groups.Groups), len(groups.Skipped))

	return nil
}

// groupVariables lists every attribute read by the groups' bound predicates,
// in first-seen order, so each sample's membership can be checked by eye.
func groupVariables(c *subset.Collection) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, g := range c.Groups {
		for _, v := range predicate.Variables(g.Predicate) {
			if _, exists := seen[v]; !exists {
				seen[v] = struct{}{}
				out = append(out, v)
			}
		}
	}
	return out
}
