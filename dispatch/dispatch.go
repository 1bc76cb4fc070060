// Package dispatch runs the differential-abundance engine once per comparison
// group and merges the per-group results into one table.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/carbocation/hrsip/dataset"
	"github.com/carbocation/hrsip/engine"
	"github.com/carbocation/hrsip/subset"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	// Workers bounds how many groups are tested at once. Values below 2 run
	// the groups one after another.
	Workers int

	// FailFast cancels outstanding groups after the first engine failure and
	// returns no results. Otherwise every group runs and failures are
	// reported alongside the successful groups' results.
	FailFast bool

	DensityColumn      string
	Windows            []engine.Window
	SparsityThresholds []float64
	Alpha              float64
}

// GroupError tags an engine failure with the group that raised it.
type GroupError struct {
	Label string
	Err   error
}

func (e *GroupError) Error() string {
	return fmt.Sprintf("%s: %v", e.Label, e.Err)
}

func (e *GroupError) Unwrap() error { return e.Err }

// Combined is the merged output of every group, in collection order.
type Combined struct {
	Labels  []string
	Results []engine.Result

	// Failed lists the labels whose engine call returned an error.
	Failed []string
}

// outcome is what one group's engine call produced.
type outcome struct {
	results []engine.Result
	err     error
}

// Run tests every group in c against data. The returned error, if any,
// combines one *GroupError per failed group; extract them with
// multierr.Errors. Unless FailFast is set, Combined is returned even when
// some groups failed.
func Run(ctx context.Context, data *dataset.Dataset, c *subset.Collection, eng engine.Engine, opts Options) (*Combined, error) {
	requests := make([]engine.Request, len(c.Groups))
	outcomes := make([]outcome, len(c.Groups))
	for i, g := range c.Groups {
		requests[i] = engine.Request{
			Label:              g.Label,
			TreatmentAxis:      c.Design.TreatmentAxis,
			Control:            c.Design.Control,
			Treatment:          g.Treatment,
			DensityColumn:      opts.DensityColumn,
			Windows:            opts.Windows,
			SparsityThresholds: opts.SparsityThresholds,
			Alpha:              opts.Alpha,
		}

		sub, err := data.Subset(g.Samples)
		if err != nil {
			outcomes[i].err = err
			continue
		}
		requests[i].Data = sub
	}

	run := func(ctx context.Context, i int) {
		if outcomes[i].err != nil {
			return
		}
		start := time.Now()
		res, err := eng.Test(ctx, requests[i])
		outcomes[i] = outcome{results: res, err: err}
		if err == nil {
			log.Printf("Tested %s: %d rows in %s\n", requests[i].Label, len(res), time.Since(start))
		}
	}

	switch {
	case opts.FailFast:
		if err := runFailFast(ctx, eng, requests, outcomes, opts.Workers); err != nil {
			return nil, err
		}
	case opts.Workers < 2:
		for i := range requests {
			run(ctx, i)
		}
	default:
		runPool(ctx, len(requests), opts.Workers, run)
	}

	return merge(c, outcomes)
}

// runPool runs fn for every index with at most workers in flight. Each call
// writes only its own slot, so nothing else needs to be serialized.
func runPool(ctx context.Context, n, workers int, fn func(context.Context, int)) {
	semaphore := make(chan struct{}, workers)

	for i := 0; i < n; i++ {
		// Will block after `workers` simultaneous goroutines are running
		semaphore <- struct{}{}

		go func(i int) {
			// Be sure to permit unblocking once we finish
			defer func() { <-semaphore }()
			fn(ctx, i)
		}(i)
	}

	// Make sure every group has finished before merging
	for i := 0; i < cap(semaphore); i++ {
		semaphore <- struct{}{}
	}
}

func runFailFast(ctx context.Context, eng engine.Engine, requests []engine.Request, outcomes []outcome, workers int) error {
	for i := range outcomes {
		if outcomes[i].err != nil {
			return &GroupError{Label: requests[i].Label, Err: outcomes[i].err}
		}
	}

	if workers < 1 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range requests {
		i := i
		g.Go(func() error {
			res, err := eng.Test(ctx, requests[i])
			if err != nil {
				return &GroupError{Label: requests[i].Label, Err: err}
			}
			outcomes[i] = outcome{results: res}
			return nil
		})
	}

	return g.Wait()
}

func merge(c *subset.Collection, outcomes []outcome) (*Combined, error) {
	out := &Combined{Labels: c.Labels(), Results: make([]engine.Result, 0)}

	var errs error
	for i, g := range c.Groups {
		if err := outcomes[i].err; err != nil {
			log.Printf("Group %s failed: %v\n", g.Label, err)
			out.Failed = append(out.Failed, g.Label)
			errs = multierr.Append(errs, &GroupError{Label: g.Label, Err: err})
			continue
		}

		for _, r := range outcomes[i].results {
			// Every row carries the label of the group that produced it,
			// whatever the engine chose to put there.
			r.Label = g.Label
			out.Results = append(out.Results, r)
		}
	}

	return out, errs
}
