package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// StatusError is a non-2xx response from the remote service. Its text carries
// the HTTP status line so the retry policy can classify it.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s", e.Status)
}

// Client fetches files from the remote service by record id.
type Client struct {
	baseURL   string
	statusURL string
	http      *http.Client
}

func NewClient(baseURL, statusURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		statusURL: statusURL,
		http:      &http.Client{Timeout: timeout},
	}
}

// FetchToFile streams the remote file for id into dest, writing in
// chunkSize slices and reporting written bytes through report. Any failure
// removes the partial file before returning, so a bad transfer never lingers
// on disk.
func (c *Client) FetchToFile(ctx context.Context, id, dest string, chunkSize int, report func(n int64)) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+id, nil)
	if err != nil {
		return 0, fmt.Errorf("could not create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little so the connection can be reused.
		io.CopyN(io.Discard, resp.Body, 512)
		return 0, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("could not create %s: %w", dest, err)
	}

	written, err := c.copyChunks(ctx, f, resp.Body, chunkSize, report)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return written, fmt.Errorf("transfer to %s failed: %w", dest, err)
	}

	return written, nil
}

// copyChunks copies src to dst in fixed-size chunks, checking for
// cancellation between reads.
func (c *Client) copyChunks(ctx context.Context, dst *os.File, src io.Reader, chunkSize int, report func(n int64)) (int64, error) {
	buf := make([]byte, chunkSize)
	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			total += int64(nw)
			if report != nil {
				report(int64(nw))
			}
			if werr != nil {
				return total, werr
			}
			if nw != nr {
				return total, io.ErrShortWrite
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return total, nil
			}
			return total, rerr
		}
	}
}

// Ping performs the one-shot reachability probe against the remote status
// endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if c.statusURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.statusURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.CopyN(io.Discard, resp.Body, 512)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	return nil
}
