package results

import (
	"sort"

	"github.com/carbocation/hrsip/taxonomy"
	"github.com/carbocation/pfx"
	"github.com/montanaflynn/stats"
)

// TaxonSummary counts the incorporators of one group that share a taxon.
type TaxonSummary struct {
	Label      string
	Taxon      string
	Count      int
	MeanL2FC   float64
	MedianL2FC float64
	MaxL2FC    float64
}

// Summarize groups incorporators by label and by their name at rank. A feature
// is counted once per label even when it incorporates at several sparsity
// thresholds; its largest log2 fold change among those rows is used. When tax
// is nil the taxonomy echoed into the rows is used. Labels keep their
// first-seen order; within a label, taxa are sorted by descending count.
func Summarize(rows []Row, tax *taxonomy.Table, rank string, alpha float64) ([]TaxonSummary, error) {
	type key struct{ label, taxon string }
	type featureKey struct{ label, feature string }

	labels := []string{}
	seenLabel := map[string]struct{}{}
	features := map[key][]string{}
	best := map[featureKey]float64{}
	taxa := map[string][]string{}

	for _, r := range rows {
		if _, ok := seenLabel[r.Label]; !ok {
			seenLabel[r.Label] = struct{}{}
			labels = append(labels, r.Label)
		}

		if !(r.PAdj < alpha && r.L2FC > 0) {
			continue
		}

		fk := featureKey{r.Label, r.Feature}
		if prev, ok := best[fk]; ok {
			if r.L2FC > prev {
				best[fk] = r.L2FC
			}
			continue
		}
		best[fk] = r.L2FC

		entry := r.Entry()
		if tax != nil {
			entry = tax.Lookup(r.Feature)
		}
		name, err := entry.Rank(rank)
		if err != nil {
			return nil, err
		}

		k := key{r.Label, name}
		if _, ok := features[k]; !ok {
			taxa[r.Label] = append(taxa[r.Label], name)
		}
		features[k] = append(features[k], r.Feature)
	}

	out := []TaxonSummary{}
	for _, label := range labels {
		group := []TaxonSummary{}
		for _, name := range taxa[label] {
			data := stats.Float64Data{}
			for _, f := range features[key{label, name}] {
				data = append(data, best[featureKey{label, f}])
			}

			mean, err := stats.Mean(data)
			if err != nil {
				return nil, pfx.Err(err)
			}
			median, err := stats.Median(data)
			if err != nil {
				return nil, pfx.Err(err)
			}
			max, err := stats.Max(data)
			if err != nil {
				return nil, pfx.Err(err)
			}

			group = append(group, TaxonSummary{
				Label:      label,
				Taxon:      name,
				Count:      len(data),
				MeanL2FC:   mean,
				MedianL2FC: median,
				MaxL2FC:    max,
			})
		}

		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Count != group[j].Count {
				return group[i].Count > group[j].Count
			}
			return group[i].Taxon < group[j].Taxon
		})

		out = append(out, group...)
	}

	return out, nil
}
