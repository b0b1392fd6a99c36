package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/datallboy/gofetch/internal/domain"
	"github.com/datallboy/gofetch/internal/manifest"
)

// runWorkerPool drives the bounded-concurrency download of the pending set.
// Exactly one task is dispatched per record and exactly one outcome comes
// back for every dispatched task. Cancellation stops dispatch; workers finish
// the attempt they are on.
func (s *Syncer) runWorkerPool(ctx context.Context, pending []manifest.Record) []domain.Outcome {
	bufferSize := s.workers * 2

	jobs := make(chan Job, bufferSize)
	results := make(chan domain.Outcome, bufferSize)

	// Start the Workers
	var wg sync.WaitGroup
	for w := 1; w <= s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx, jobs, results)
		}()
	}

	// Dispatch Jobs
	go func() {
		defer close(jobs)
		for _, rec := range pending {
			select {
			case <-ctx.Done():
				return // stop submitting new tasks on interrupt
			case jobs <- Job{Record: rec}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect Results
	outcomes := make([]domain.Outcome, 0, len(pending))
	for res := range results {
		outcomes = append(outcomes, res)
	}

	return outcomes
}

// worker pulls jobs from the channel and executes them until it is closed.
func (s *Syncer) worker(ctx context.Context, jobs <-chan Job, results chan<- domain.Outcome) {
	for job := range jobs {
		outcome := s.processRecord(ctx, job.Record)
		s.reporter.Record(outcome)
		results <- outcome
	}
}

// processRecord runs the full verify/fetch/retry pipeline for one record.
// The loop is strictly sequential: one attempt at a time, with a policy-
// driven backoff between attempts that blocks only this worker.
func (s *Syncer) processRecord(ctx context.Context, rec manifest.Record) domain.Outcome {
	dest := filepath.Join(s.dir, rec.Filename)
	s.reporter.SetCurrent(rec.Filename)

	// Guard against the record having become valid since the pending-set
	// scan (a re-run racing a previous partial run, or an operator copying
	// files in by hand).
	if ok, err := s.verifier.Verified(dest, rec.MD5, rec.Size); err == nil && ok {
		s.log.Debug("%s already verified, skipping", rec.Filename)
		return domain.Outcome{
			RecordID: rec.ID,
			Filename: rec.Filename,
			Status:   domain.StatusSkipped,
		}
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = s.fetchAndVerify(ctx, rec, dest)
		if lastErr == nil {
			s.log.Debug("%s downloaded and verified (attempt %d)", rec.Filename, attempt+1)
			return domain.Outcome{
				RecordID: rec.ID,
				Filename: rec.Filename,
				Status:   domain.StatusSuccess,
				Attempts: attempt + 1,
			}
		}

		if !s.policy.Retryable(lastErr) {
			s.log.Error("[FAIL] %s permanently failed: %v", rec.Filename, lastErr)
			return domain.Outcome{
				RecordID: rec.ID,
				Filename: rec.Filename,
				Status:   domain.StatusFailed,
				Err:      lastErr,
				Attempts: attempt + 1,
			}
		}

		if attempt >= s.policy.MaxRetries {
			s.log.Error("[FAIL] %s failed after %d attempts: %v", rec.Filename, attempt+1, lastErr)
			return domain.Outcome{
				RecordID: rec.ID,
				Filename: rec.Filename,
				Status:   domain.StatusFailed,
				Err:      lastErr,
				Attempts: attempt + 1,
			}
		}

		delay := s.policy.Delay(attempt)
		s.log.Warn("[Retry] %s: attempt %d/%d failed (%v), retrying in %s",
			rec.Filename, attempt+1, s.policy.MaxRetries+1, lastErr, delay)

		select {
		case <-ctx.Done():
			// Interrupted mid-backoff: the current attempt already
			// finished, do not start another.
			return domain.Outcome{
				RecordID: rec.ID,
				Filename: rec.Filename,
				Status:   domain.StatusFailed,
				Err:      fmt.Errorf("interrupted: %w", lastErr),
				Attempts: attempt + 1,
			}
		case <-s.clock.After(delay):
		}
	}
}

// fetchAndVerify performs one complete attempt: stream the remote file to
// disk, then re-verify the written bytes. Any failure leaves no file behind.
func (s *Syncer) fetchAndVerify(ctx context.Context, rec manifest.Record, dest string) error {
	if _, err := s.client.FetchToFile(ctx, rec.ID, dest, s.chunkSize, s.reporter.AddBytes); err != nil {
		return err
	}

	ok, err := s.verifier.Verified(dest, rec.MD5, rec.Size)
	if err != nil {
		os.Remove(dest)
		return err
	}
	if !ok {
		os.Remove(dest)
		return errors.New("digest mismatch after download")
	}

	return nil
}
