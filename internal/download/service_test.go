package download

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(n int) []byte {
	r := rand.New(rand.NewPCG(1, 2))
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(r.UintN(256))
	}
	return b
}

// rangeServer serves data with Range support and counts body bytes sent
func rangeServer(t *testing.T, data []byte, served *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cw := &countingWriter{ResponseWriter: w, n: served}
		http.ServeContent(cw, r, "file.vpk", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(srv.Close)
	return srv
}

type countingWriter struct {
	http.ResponseWriter
	n *atomic.Int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	if w.n != nil {
		w.n.Add(int64(len(p)))
	}
	return w.ResponseWriter.Write(p)
}

func waitDone(t *testing.T, item Item) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, item.Wait(ctx))
}

func TestDownloadChunked(t *testing.T) {
	data := payload(1<<20 + 123)
	srv := rangeServer(t, data, nil)

	fsys := afero.NewOsFs()
	dest := filepath.Join(t.TempDir(), "addon.vpk")
	svc := NewService(Options{Fs: fsys, Chunks: 4})

	item := svc.Download(srv.URL, dest)
	waitDone(t, item)

	require.Equal(t, StatusSucceeded, item.Status(), "err: %v", item.Err())
	assert.Equal(t, int64(len(data)), item.TotalBytes())
	assert.Equal(t, int64(len(data)), item.BytesDownloaded())

	got, err := afero.ReadFile(fsys, dest)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got), "downloaded content differs")

	exists, _ := afero.Exists(fsys, dest+InfoExt)
	assert.False(t, exists, "sidecar should be removed on success")
	exists, _ = afero.Exists(fsys, dest+DownloadingExt)
	assert.False(t, exists, "temp file should be renamed on success")
}

func TestDownloadReplacesExistingFile(t *testing.T) {
	data := payload(4096)
	srv := rangeServer(t, data, nil)

	fsys := afero.NewOsFs()
	dest := filepath.Join(t.TempDir(), "addon.vpk")
	require.NoError(t, afero.WriteFile(fsys, dest, []byte("old"), 0644))

	item := NewService(Options{Fs: fsys}).Download(srv.URL, dest)
	waitDone(t, item)

	require.Equal(t, StatusSucceeded, item.Status())
	got, err := afero.ReadFile(fsys, dest)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestDownloadResumesFromSidecar(t *testing.T) {
	data := payload(600 * 1024)
	var served atomic.Int64
	srv := rangeServer(t, data, &served)

	fsys := afero.NewOsFs()
	dest := filepath.Join(t.TempDir(), "addon.vpk")

	// First half of the only chunk already on disk
	half := int64(len(data) / 2)
	require.NoError(t, afero.WriteFile(fsys, dest+DownloadingExt, data[:half], 0644))
	info := sidecar{
		URL:    srv.URL,
		Total:  int64(len(data)),
		Ranges: true,
		Chunks: []chunk{{Start: 0, End: int64(len(data)) - 1, Written: half}},
	}
	raw, err := json.Marshal(info)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fsys, dest+InfoExt, raw, 0644))

	item := NewService(Options{Fs: fsys}).Download(srv.URL, dest)
	waitDone(t, item)

	require.Equal(t, StatusSucceeded, item.Status(), "err: %v", item.Err())
	assert.Equal(t, int64(len(data))-half, served.Load(), "only the missing half is transferred")

	got, err := afero.ReadFile(fsys, dest)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))
}

func TestDownloadIgnoresSidecarForOtherURL(t *testing.T) {
	data := payload(2048)
	srv := rangeServer(t, data, nil)

	fsys := afero.NewOsFs()
	dest := filepath.Join(t.TempDir(), "addon.vpk")
	require.NoError(t, afero.WriteFile(fsys, dest+DownloadingExt, []byte("garbage"), 0644))
	raw, _ := json.Marshal(sidecar{URL: "https://elsewhere/file", Total: 7, Ranges: true,
		Chunks: []chunk{{Start: 0, End: 6, Written: 7}}})
	require.NoError(t, afero.WriteFile(fsys, dest+InfoExt, raw, 0644))

	item := NewService(Options{Fs: fsys}).Download(srv.URL, dest)
	waitDone(t, item)

	require.Equal(t, StatusSucceeded, item.Status())
	got, _ := afero.ReadFile(fsys, dest)
	assert.Equal(t, data, got)
}

func TestDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	fsys := afero.NewOsFs()
	dest := filepath.Join(t.TempDir(), "addon.vpk")

	item := NewService(Options{Fs: fsys}).Download(srv.URL, dest)
	waitDone(t, item)

	assert.Equal(t, StatusFailed, item.Status())
	assert.ErrorIs(t, item.Err(), ErrBadStatus)
	exists, _ := afero.Exists(fsys, dest)
	assert.False(t, exists)
}

// stallingServer sends the first part of the body then holds the
// connection until release is closed or the client goes away.
func stallingServer(t *testing.T, data []byte, first int, release <-chan struct{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(data[:first])
		w.(http.Flusher).Flush()
		select {
		case <-release:
			_, _ = w.Write(data[first:])
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownloadCancelKeepsSidecar(t *testing.T) {
	data := payload(128 * 1024)
	release := make(chan struct{})
	defer close(release)
	srv := stallingServer(t, data, 64*1024, release)

	fsys := afero.NewOsFs()
	dest := filepath.Join(t.TempDir(), "addon.vpk")

	item := NewService(Options{Fs: fsys}).Download(srv.URL, dest)
	require.Eventually(t, func() bool {
		return item.BytesDownloaded() >= 64*1024
	}, 5*time.Second, 10*time.Millisecond)

	item.Cancel()
	waitDone(t, item)

	assert.Equal(t, StatusCancelled, item.Status())
	assert.NoError(t, item.Err())
	exists, _ := afero.Exists(fsys, dest+InfoExt)
	assert.True(t, exists, "sidecar is kept for a later resume")
	exists, _ = afero.Exists(fsys, dest)
	assert.False(t, exists)
}

func TestDownloadPauseResume(t *testing.T) {
	data := payload(128 * 1024)
	release := make(chan struct{})
	srv := stallingServer(t, data, 32*1024, release)

	fsys := afero.NewOsFs()
	dest := filepath.Join(t.TempDir(), "addon.vpk")

	item := NewService(Options{Fs: fsys}).Download(srv.URL, dest)
	require.Eventually(t, func() bool {
		return item.Status() == StatusRunning
	}, 5*time.Second, 5*time.Millisecond)

	item.Pause()
	assert.Equal(t, StatusPaused, item.Status())

	close(release)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StatusPaused, item.Status())

	item.Resume()
	waitDone(t, item)

	require.Equal(t, StatusSucceeded, item.Status(), "err: %v", item.Err())
	got, _ := afero.ReadFile(fsys, dest)
	assert.Equal(t, data, got)
}

func TestCloseCancelsRunningDownload(t *testing.T) {
	data := payload(64 * 1024)
	release := make(chan struct{})
	defer close(release)
	srv := stallingServer(t, data, 1024, release)

	item := NewService(Options{Fs: afero.NewOsFs()}).Download(srv.URL, filepath.Join(t.TempDir(), "a.vpk"))
	require.NoError(t, item.Close())

	assert.True(t, item.Status().Finished())
	assert.NotEqual(t, StatusSucceeded, item.Status())
}
