package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"github.com/glorpus-work/imgfetch/pkg/batch"
	"github.com/glorpus-work/imgfetch/pkg/fetch"
)

// formatResult renders the status line of one URL.
func formatResult(r fetch.Result) string {
	switch r.Outcome {
	case fetch.Saved:
		return fmt.Sprintf("✓ Saved: %s -> %s (%s)", r.Name, r.Path, humanize.Bytes(uint64(max(r.Size, 0))))
	case fetch.Skipped:
		return fmt.Sprintf("✓ Duplicate: %s already exists, skipping", r.Name)
	case fetch.Rejected:
		ct := r.ContentType
		if ct == "" {
			ct = "no content type"
		}
		return fmt.Sprintf("✗ Rejected: %s is not an image (%s)", r.URL, ct)
	default:
		return fmt.Sprintf("✗ Failed: %s: %v", r.URL, r.Err)
	}
}

// reporter prints status lines in input order as soon as every earlier URL is done,
// and keeps an optional progress bar on stderr. Its methods are called serially.
type reporter struct {
	out     io.Writer
	text    bool
	bar     *progressbar.ProgressBar
	results []fetch.Result
	done    []bool
	next    int
}

func newReporter(out, errOut io.Writer, total int, text, progress bool) *reporter {
	r := &reporter{
		out:     out,
		text:    text,
		results: make([]fetch.Result, total),
		done:    make([]bool, total),
	}
	if progress && total > 1 {
		r.bar = progressbar.NewOptions(
			total,
			progressbar.OptionSetWriter(errOut),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("fetching"),
			progressbar.OptionThrottle(80*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
	return r
}

func (r *reporter) onResult(i int, res fetch.Result) {
	r.results[i] = res
	r.done[i] = true
	if r.text {
		if r.bar != nil && r.next < len(r.done) && r.done[r.next] {
			_ = r.bar.Clear()
		}
		for r.next < len(r.done) && r.done[r.next] {
			_, _ = fmt.Fprintln(r.out, formatResult(r.results[r.next]))
			r.next++
		}
	}
	if r.bar != nil {
		_ = r.bar.Add(1)
	}
}

func (r *reporter) finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

type fetchReport struct {
	RunID   string         `json:"run_id"`
	Results []fetch.Result `json:"results"`
	Summary batch.Summary  `json:"summary"`
}

func writeJSONReport(w io.Writer, runID string, results []fetch.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(fetchReport{
		RunID:   runID,
		Results: results,
		Summary: batch.Summarize(results),
	})
}
