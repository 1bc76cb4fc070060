package main

import (
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"github.com/carbocation/hrsip/results"
	"github.com/carbocation/hrsip/taxonomy"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// Schema mirrors the columns written by results.WriteTSV with taxonomy.
var Schema = func() bigquery.Schema {
	types := map[string]bigquery.FieldType{
		"label":        bigquery.StringFieldType,
		"feature":      bigquery.StringFieldType,
		"incorporator": bigquery.BooleanFieldType,
	}

	out := bigquery.Schema{}
	for _, name := range results.Header {
		t, exists := types[name]
		if !exists {
			t = bigquery.FloatFieldType
		}
		out = append(out, &bigquery.FieldSchema{Name: name, Type: t, Required: t != bigquery.FloatFieldType})
	}
	for _, rank := range taxonomy.Ranks {
		out = append(out, &bigquery.FieldSchema{Name: rank, Type: bigquery.StringFieldType})
	}

	return out
}()

// FindExistingLabels returns the group labels already loaded. A missing table
// has none.
func FindExistingLabels(BQ *WrappedBigQuery) (map[string]struct{}, error) {
	out := make(map[string]struct{})

	if _, err := BQ.Client.Dataset(BQ.Database).Table(BQ.Table).Metadata(BQ.Context); err != nil {
		if e, ok := err.(*googleapi.Error); ok && e.Code == http.StatusNotFound {
			return out, nil
		}
		return nil, err
	}

	query := BQ.Client.Query(fmt.Sprintf("SELECT DISTINCT label FROM `%s.%s.%s`", BQ.Project, BQ.Database, BQ.Table))
	itr, err := query.Read(BQ.Context)
	if err != nil {
		return nil, err
	}

	for {
		var row struct {
			Label string `bigquery:"label"`
		}
		err := itr.Next(&row)
		if err == iterator.Done {
			break
		} else if err != nil {
			return nil, err
		}
		out[row.Label] = struct{}{}
	}

	return out, nil
}
