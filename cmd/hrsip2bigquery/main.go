// hrsip2bigquery loads an hrsip result table into BigQuery. Groups whose label
// is already present in the destination table are refused unless -replace is
// set, in which case the table is overwritten.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/storage"
	"github.com/carbocation/hrsip"
	_ "github.com/carbocation/hrsip/compileinfoprint"
	"github.com/carbocation/hrsip/results"
)

type WrappedBigQuery struct {
	Context  context.Context
	Client   *bigquery.Client
	Project  string
	Database string
	Table    string
}

func main() {
	var (
		resultPath string
		replace    bool
		BQ         = &WrappedBigQuery{}
	)
	flag.StringVar(&BQ.Project, "project", "", "Name of the Google Cloud project that hosts your BigQuery database instance")
	flag.StringVar(&BQ.Database, "bigquery", "", "BigQuery dataset name")
	flag.StringVar(&BQ.Table, "table", "hrsip", "BigQuery table name")
	flag.StringVar(&resultPath, "result", "", "hrsip output table (local, gs://, optionally compressed)")
	flag.BoolVar(&replace, "replace", false, "Overwrite the table instead of appending to it")
	flag.Parse()

	if resultPath == "" || BQ.Project == "" || BQ.Database == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	log.Println("Started running at", time.Now())
	defer func() {
		log.Println("Completed at", time.Now())
	}()

	BQ.Context = context.Background()

	rows, err := readResult(BQ.Context, resultPath)
	if err != nil {
		log.Fatalln(err)
	}
	log.Println("Read", len(rows), "rows from", resultPath)

	BQ.Client, err = bigquery.NewClient(BQ.Context, BQ.Project)
	if err != nil {
		log.Fatalln("Connecting to BigQuery:", err)
	}
	defer BQ.Client.Close()

	if !replace {
		known, err := FindExistingLabels(BQ)
		if err != nil {
			log.Fatalln(err)
		}

		for _, label := range Labels(rows) {
			if _, exists := known[label]; exists {
				log.Fatalf("%s is already present in %s.%s.%s; use -replace to overwrite the table\n", label, BQ.Project, BQ.Database, BQ.Table)
			}
		}
	}

	if err := Load(BQ, rows, replace); err != nil {
		log.Fatalln(err)
	}
	log.Println("Loaded", len(rows), "rows into", fmt.Sprintf("%s.%s.%s", BQ.Project, BQ.Database, BQ.Table))
}

func readResult(ctx context.Context, path string) ([]results.Row, error) {
	var client *storage.Client
	if hrsip.IsGoogleStoragePath(path) {
		var err error
		client, err = storage.NewClient(ctx)
		if err != nil {
			return nil, err
		}
		defer client.Close()
	}

	rc, err := hrsip.MaybeOpenFromGoogleStorage(ctx, path, client)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r, err := hrsip.MaybeDecompress(rc)
	if err != nil {
		return nil, err
	}

	return results.ReadTSV(r)
}

// Labels returns the distinct labels of rows in first-seen order.
func Labels(rows []results.Row) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, r := range rows {
		if _, exists := seen[r.Label]; !exists {
			seen[r.Label] = struct{}{}
			out = append(out, r.Label)
		}
	}
	return out
}

// Load re-serializes rows with every taxonomic column present so that the
// upload always matches Schema.
func Load(BQ *WrappedBigQuery, rows []results.Row, replace bool) error {
	var buf bytes.Buffer
	if err := results.WriteTSV(&buf, rows, true); err != nil {
		return err
	}

	src := bigquery.NewReaderSource(&buf)
	src.SourceFormat = bigquery.CSV
	src.FieldDelimiter = "\t"
	src.SkipLeadingRows = 1
	src.Schema = Schema

	loader := BQ.Client.Dataset(BQ.Database).Table(BQ.Table).LoaderFrom(src)
	loader.CreateDisposition = bigquery.CreateIfNeeded
	loader.WriteDisposition = bigquery.WriteAppend
	if replace {
		loader.WriteDisposition = bigquery.WriteTruncate
	}

	job, err := loader.Run(BQ.Context)
	if err != nil {
		return err
	}
	log.Println("Started load job", job.ID())

	status, err := job.Wait(BQ.Context)
	if err != nil {
		return err
	}

	return status.Err()
}
