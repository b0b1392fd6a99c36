package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_FetchToFile(t *testing.T) {
	content := []byte("remote file contents")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rec-1", r.URL.Path)
		w.Write(content)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "out.bin")
	client := NewClient(server.URL, "", 5*time.Second)

	var reported int64
	n, err := client.FetchToFile(context.Background(), "rec-1", dest, 8, func(n int64) {
		atomic.AddInt64(&reported, n)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)
	assert.Equal(t, int64(len(content)), reported)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestClient_FetchToFile_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "out.bin")
	client := NewClient(server.URL, "", 5*time.Second)

	_, err := client.FetchToFile(context.Background(), "gone", dest, 8192, nil)
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)

	// No file may be left behind for a failed fetch.
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestClient_FetchToFile_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "out.bin")
	client := NewClient(server.URL, "", 5*time.Second)

	_, err := client.FetchToFile(ctx, "rec", dest, 8192, nil)
	require.Error(t, err)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestClient_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/status" {
			w.Write([]byte("OK"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ok := NewClient(server.URL, server.URL+"/status", 5*time.Second)
	assert.NoError(t, ok.Ping(context.Background()))

	bad := NewClient(server.URL, server.URL+"/broken", 5*time.Second)
	err := bad.Ping(context.Background())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)

	// No status URL configured disables the probe.
	assert.NoError(t, NewClient(server.URL, "", time.Second).Ping(context.Background()))
}
