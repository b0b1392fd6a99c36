// Package engine contains the concurrent download/verify/retry core: a
// bounded worker pool that brings a local directory in line with a manifest.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/datallboy/gofetch/internal/domain"
	"github.com/datallboy/gofetch/internal/infra/logger"
	"github.com/datallboy/gofetch/internal/manifest"
	"github.com/datallboy/gofetch/internal/retry"
	"github.com/datallboy/gofetch/internal/verify"
	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
	"github.com/segmentio/ksuid"
	"golang.org/x/sync/errgroup"
)

// Syncer orchestrates a sync run: compute the pending set, drive the worker
// pool, and aggregate the outcomes into a Summary.
type Syncer struct {
	dir       string
	client    *Client
	verifier  *verify.Verifier
	policy    retry.Policy
	workers   int
	chunkSize int
	clock     clockwork.Clock
	reporter  Reporter
	log       *logger.Logger
}

// Options configures a Syncer. Zero values fall back to the documented
// defaults.
type Options struct {
	Dir       string
	Client    *Client
	Verifier  *verify.Verifier
	Policy    retry.Policy
	Workers   int
	ChunkSize int
	Clock     clockwork.Clock
	Reporter  Reporter
	Log       *logger.Logger
}

func NewSyncer(opts Options) *Syncer {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = verify.DefaultChunkSize
	}
	if opts.Verifier == nil {
		opts.Verifier = verify.New(opts.ChunkSize)
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Reporter == nil {
		opts.Reporter = NopReporter{}
	}
	if opts.Log == nil {
		opts.Log, _ = logger.New("", logger.LevelError, false)
	}

	return &Syncer{
		dir:       opts.Dir,
		client:    opts.Client,
		verifier:  opts.Verifier,
		policy:    opts.Policy,
		workers:   opts.Workers,
		chunkSize: opts.ChunkSize,
		clock:     opts.Clock,
		reporter:  opts.Reporter,
		log:       opts.Log,
	}
}

// Failure is the reporting view of one permanently failed record.
type Failure struct {
	Filename string
	Error    string
	Attempts int
}

// Summary is the final accounting of one sync run.
type Summary struct {
	RunID     string
	Pending   int
	Completed int
	Failed    int
	Skipped   int
	Elapsed   time.Duration
	Failures  []Failure
}

// NothingToDo reports whether the run found every file already verified.
func (s *Summary) NothingToDo() bool { return s.Pending == 0 }

// Sync brings targetDir in line with the manifest records. Already-verified
// files are never re-downloaded, so re-running over the same directory only
// reprocesses records still failing verification. The returned error is
// non-nil only for setup failures or interruption; per-record failures are
// reported inside the Summary.
func (s *Syncer) Sync(ctx context.Context, records []manifest.Record) (*Summary, error) {
	summary := &Summary{RunID: ksuid.New().String()}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	pending, err := s.pendingSet(ctx, records)
	if err != nil {
		return nil, err
	}

	// Records verified during the scan are final without ever touching the
	// network; they count as skipped in the accounting.
	summary.Skipped = len(records) - len(pending)

	if len(pending) == 0 {
		s.log.Info("All files are already downloaded and verified, nothing to do")
		return summary, nil
	}

	var totalSize int64
	for _, rec := range pending {
		totalSize += rec.Size
	}

	summary.Pending = len(pending)
	s.reporter.Begin(len(pending))
	s.log.Info("[%s] %d of %d files pending (%s to download)", summary.RunID, len(pending), len(records), humanize.Bytes(uint64(totalSize)))

	start := s.clock.Now()
	outcomes := s.runWorkerPool(ctx, pending)
	summary.Elapsed = s.clock.Since(start)

	for _, o := range outcomes {
		switch o.Status {
		case domain.StatusSuccess:
			summary.Completed++
		case domain.StatusSkipped:
			summary.Skipped++
		case domain.StatusFailed:
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{
				Filename: o.Filename,
				Error:    o.ErrorText(),
				Attempts: o.Attempts,
			})
		}
	}

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("sync interrupted: %w", err)
	}

	return summary, nil
}

// pendingSet filters the manifest down to records whose local file is absent,
// wrong-sized or corrupt. Verification is fanned out across the worker count
// since digesting thousands of large files is itself slow.
func (s *Syncer) pendingSet(ctx context.Context, records []manifest.Record) ([]manifest.Record, error) {
	needed := make([]bool, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			dest := filepath.Join(s.dir, rec.Filename)
			ok, err := s.verifier.Verified(dest, rec.MD5, rec.Size)
			if err != nil {
				// Unreadable local file: treat as pending, the download
				// attempt will surface a real error if the disk is bad.
				s.log.Warn("could not verify %s: %v", dest, err)
			}
			needed[i] = !ok
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	pending := make([]manifest.Record, 0, len(records))
	for i, rec := range records {
		if needed[i] {
			pending = append(pending, rec)
		}
	}

	return pending, nil
}
