//go:generate mockgen -destination=./mocks/batch.go -package=mocks . Fetcher

// Package batch runs the fetch pipeline over a list of URLs and collects the
// results in input order.
package batch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/glorpus-work/imgfetch/internal/logger"
	"github.com/glorpus-work/imgfetch/pkg/fetch"
	"github.com/glorpus-work/imgfetch/pkg/store"
)

// Fetcher fetches one URL into a store. *fetch.Pipeline satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request, st store.Store) fetch.Result
}

// Hooks carries callbacks for progress notifications. Calls are serialized.
type Hooks struct {
	// OnStart is called before URL index is fetched.
	OnStart func(index int, url string)
	// OnResult is called once per URL when its result is known.
	OnResult func(index int, res fetch.Result)
}

// Driver runs a batch. A Concurrency of 1 or less fetches strictly one URL after another.
type Driver struct {
	Fetcher     Fetcher
	Store       store.Store
	Concurrency int
	Hooks       Hooks
	// RunID tags the log records of one run.
	RunID string
}

// ParseURLs splits every argument on commas, trims whitespace and drops empty entries.
func ParseURLs(raw ...string) []string {
	var urls []string
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			if u := strings.TrimSpace(part); u != "" {
				urls = append(urls, u)
			}
		}
	}
	return urls
}

// Run fetches every URL and returns one result per URL at the URL's index.
// Individual failures are reported in the results, never as an error.
func (d *Driver) Run(ctx context.Context, urls []string) []fetch.Result {
	results := make([]fetch.Result, len(urls))
	if len(urls) == 0 {
		return results
	}

	workers := d.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(urls) {
		workers = len(urls)
	}

	log := logger.With(logger.Fields{"run_id": d.RunID})
	log.Info("Batch started", "urls", len(urls), "workers", workers)
	start := time.Now()

	var hookMu sync.Mutex
	run := func(i int) {
		if d.Hooks.OnStart != nil {
			hookMu.Lock()
			d.Hooks.OnStart(i, urls[i])
			hookMu.Unlock()
		}
		res := d.Fetcher.Fetch(ctx, fetch.Request{URL: urls[i]}, d.Store)
		results[i] = res
		if d.Hooks.OnResult != nil {
			hookMu.Lock()
			d.Hooks.OnResult(i, res)
			hookMu.Unlock()
		}
	}

	if workers == 1 {
		for i := range urls {
			run(i)
		}
	} else {
		d.runWorkers(workers, len(urls), run)
	}

	summary := Summarize(results)
	log.Info("Batch finished",
		"duration", time.Since(start).String(),
		"saved", summary.Saved,
		"skipped", summary.Skipped,
		"rejected", summary.Rejected,
		"failed", summary.Failed)
	return results
}

// runWorkers hands out indexes to a fixed pool. Each index is written by exactly one worker.
func (d *Driver) runWorkers(workers, n int, run func(int)) {
	tasks := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range tasks {
				run(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		tasks <- i
	}
	close(tasks)
	wg.Wait()
}
