package batch

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/glorpus-work/imgfetch/pkg/fetch"
)

// Summary counts the outcomes of a batch.
type Summary struct {
	Total    int    `json:"total"`
	Saved    int    `json:"saved"`
	Skipped  int    `json:"skipped"`
	Rejected int    `json:"rejected"`
	Failed   int    `json:"failed"`
	Bytes    uint64 `json:"bytes_written"`
}

// Summarize counts results by outcome. Bytes only counts saved images.
func Summarize(results []fetch.Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Outcome {
		case fetch.Saved:
			s.Saved++
			if r.Size > 0 {
				s.Bytes += uint64(r.Size)
			}
		case fetch.Skipped:
			s.Skipped++
		case fetch.Rejected:
			s.Rejected++
		case fetch.Failed:
			s.Failed++
		}
	}
	return s
}

// HasFailures reports whether any URL failed or was rejected.
func (s Summary) HasFailures() bool {
	return s.Failed > 0 || s.Rejected > 0
}

func (s Summary) String() string {
	noun := "URLs"
	if s.Total == 1 {
		noun = "URL"
	}
	return fmt.Sprintf("Processed %d %s: %d saved, %d duplicate, %d rejected, %d failed (%s written)",
		s.Total, noun, s.Saved, s.Skipped, s.Rejected, s.Failed, humanize.Bytes(s.Bytes))
}
