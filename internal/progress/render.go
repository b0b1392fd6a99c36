package progress

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const barWidth = 20

// Renderer periodically paints a single-line progress bar from Aggregator
// snapshots. It never blocks workers; it only reads snapshots.
type Renderer struct {
	agg      *Aggregator
	out      io.Writer
	interval time.Duration
}

func NewRenderer(agg *Aggregator, out io.Writer) *Renderer {
	return &Renderer{
		agg:      agg,
		out:      out,
		interval: 500 * time.Millisecond,
	}
}

// Run repaints the progress line until ctx is cancelled. Call Finish
// afterwards to paint the final state and terminate the line.
func (r *Renderer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.render()
		case <-ctx.Done():
			return
		}
	}
}

// Finish paints the final counters and moves off the progress line.
func (r *Renderer) Finish() {
	r.render()
	fmt.Fprintln(r.out)
}

func (r *Renderer) render() {
	s := r.agg.Snapshot()
	if s.Total == 0 {
		return
	}

	percent := float64(s.Done()) / float64(s.Total) * 100

	// Progress bar [====>   ]
	completedWidth := int(percent / 100 * barWidth)
	bar := strings.Repeat("=", completedWidth)
	if completedWidth < barWidth {
		bar += ">" + strings.Repeat(" ", barWidth-completedWidth-1)
	}

	current := s.Current
	if len(current) > 30 {
		current = current[:27] + "..."
	}

	fmt.Fprintf(r.out, "\r[%s] %5.1f%% | %d/%d files | OK: %d Fail: %d Skip: %d | %s | %-30s",
		bar, percent, s.Done(), s.Total,
		s.Completed, s.Failed, s.Skipped,
		humanize.Bytes(s.Bytes), current)
}
