// Package download implements resumable, chunked HTTP downloads that report
// progress and survive restarts through a sidecar file.
package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/vpkctl/internal/logger"
)

const (
	// DownloadingExt is appended to the target path while data is transferred
	DownloadingExt = ".downloading"
	// InfoExt is appended to the target path for the resume sidecar
	InfoExt = ".downloadinfo"

	DefaultChunks       = 8
	DefaultSaveInterval = time.Second

	bufferSize     = 32 * 1024
	minChunkSize   = 256 * 1024
	speedWindow    = 500 * time.Millisecond
	unknownLastPos = -1
)

var (
	ErrBadStatus  = errors.New("unexpected http status")
	ErrIncomplete = errors.New("download incomplete")
)

// Service starts downloads
type Service struct {
	fs           afero.Fs
	client       *http.Client
	chunks       int
	saveInterval time.Duration
	userAgent    string
	log          *log.Logger
	now          func() time.Time
}

// Options configures a Service
type Options struct {
	Fs           afero.Fs
	HTTPClient   *http.Client
	Chunks       int
	SaveInterval time.Duration
	UserAgent    string
	Logger       *log.Logger
}

// NewService creates a download service
func NewService(opts Options) *Service {
	s := &Service{
		fs:           opts.Fs,
		client:       opts.HTTPClient,
		chunks:       opts.Chunks,
		saveInterval: opts.SaveInterval,
		userAgent:    opts.UserAgent,
		log:          logger.OrDiscard(opts.Logger),
		now:          time.Now,
	}
	if s.fs == nil {
		s.fs = afero.NewOsFs()
	}
	if s.client == nil {
		// No overall timeout: large files legitimately take minutes
		s.client = &http.Client{}
	}
	if s.chunks < 1 {
		s.chunks = DefaultChunks
	}
	if s.saveInterval <= 0 {
		s.saveInterval = DefaultSaveInterval
	}
	return s
}

// Download starts transferring url into filePath in the background. An
// existing sidecar for the same url resumes where it stopped.
func (s *Service) Download(url, filePath string) Item {
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{
		svc:      s,
		url:      url,
		filePath: filePath,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		status:   StatusPreparing,
	}
	go t.run()
	return t
}

// sidecar is the persisted transfer state
type sidecar struct {
	URL    string  `json:"url"`
	Total  int64   `json:"total"`
	Ranges bool    `json:"ranges"`
	Chunks []chunk `json:"chunks"`
}

type chunk struct {
	Start   int64 `json:"start"`
	End     int64 `json:"end"` // inclusive, unknownLastPos when the size is unknown
	Written int64 `json:"written"`
}

func (c chunk) complete() bool {
	return c.End != unknownLastPos && c.Start+c.Written > c.End
}

type task struct {
	svc      *Service
	url      string
	filePath string
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}

	progressMu   sync.Mutex
	downloaded   int64
	speed        float64
	sampleAt     time.Time
	sampleBytes  int64
	lastSaveTime time.Time

	totalMu sync.Mutex
	total   int64

	statusMu sync.Mutex
	status   Status
	err      error
	resumeCh chan struct{}

	infoMu sync.Mutex
	info   *sidecar
	saveMu sync.Mutex
}

func (t *task) URL() string      { return t.url }
func (t *task) FilePath() string { return t.filePath }

func (t *task) BytesDownloaded() int64 {
	t.progressMu.Lock()
	defer t.progressMu.Unlock()
	return t.downloaded
}

func (t *task) TotalBytes() int64 {
	t.totalMu.Lock()
	defer t.totalMu.Unlock()
	return t.total
}

func (t *task) Speed() float64 {
	t.progressMu.Lock()
	defer t.progressMu.Unlock()
	return t.speed
}

func (t *task) Status() Status {
	t.statusMu.Lock()
	defer t.statusMu.Unlock()
	return t.status
}

func (t *task) Err() error {
	t.statusMu.Lock()
	defer t.statusMu.Unlock()
	return t.err
}

func (t *task) Pause() {
	t.statusMu.Lock()
	defer t.statusMu.Unlock()
	if t.status == StatusRunning {
		t.status = StatusPaused
		t.resumeCh = make(chan struct{})
	}
}

func (t *task) Resume() {
	t.statusMu.Lock()
	defer t.statusMu.Unlock()
	if t.status == StatusPaused {
		t.status = StatusRunning
		close(t.resumeCh)
		t.resumeCh = nil
	}
}

func (t *task) Cancel() {
	t.cancel()
}

func (t *task) Done() <-chan struct{} {
	return t.done
}

func (t *task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *task) Close() error {
	t.cancel()
	<-t.done
	return nil
}

func (t *task) tempPath() string { return t.filePath + DownloadingExt }
func (t *task) infoPath() string { return t.filePath + InfoExt }

func (t *task) run() {
	defer close(t.done)
	defer t.cancel()

	err := t.transfer()

	t.statusMu.Lock()
	defer t.statusMu.Unlock()
	if t.resumeCh != nil {
		close(t.resumeCh)
		t.resumeCh = nil
	}
	switch {
	case err == nil:
		t.status = StatusSucceeded
	case t.ctx.Err() != nil:
		t.status = StatusCancelled
	default:
		t.status = StatusFailed
		t.err = err
	}
}

func (t *task) transfer() error {
	fs := t.svc.fs
	log := t.svc.log

	info := t.loadSidecar()
	if info == nil {
		var err error
		info, err = t.probe()
		if err != nil {
			return err
		}
		_ = fs.Remove(t.tempPath())
	}
	if err := t.ctx.Err(); err != nil {
		return err
	}

	t.infoMu.Lock()
	t.info = info
	t.infoMu.Unlock()

	var written int64
	for _, c := range info.Chunks {
		written += c.Written
	}
	t.totalMu.Lock()
	t.total = info.Total
	t.totalMu.Unlock()
	t.progressMu.Lock()
	t.downloaded = written
	t.sampleAt = t.svc.now()
	t.sampleBytes = written
	t.lastSaveTime = t.svc.now()
	t.progressMu.Unlock()

	t.statusMu.Lock()
	if t.status == StatusPreparing {
		t.status = StatusRunning
	}
	t.statusMu.Unlock()

	log.Debug("Starting download", "url", t.url, "path", t.filePath,
		"total", info.Total, "chunks", len(info.Chunks), "resumed_bytes", written)

	f, err := fs.OpenFile(t.tempPath(), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open temp file: %w", err)
	}

	g, ctx := errgroup.WithContext(t.ctx)
	for i := range info.Chunks {
		g.Go(func() error {
			return t.fetchChunk(ctx, f, i)
		})
	}
	err = g.Wait()
	closeErr := f.Close()

	if err != nil {
		t.saveSidecar()
		if t.ctx.Err() != nil {
			return t.ctx.Err()
		}
		return err
	}
	if closeErr != nil {
		t.saveSidecar()
		return fmt.Errorf("failed to close temp file: %w", closeErr)
	}

	if info.Total > 0 && t.BytesDownloaded() != info.Total {
		t.saveSidecar()
		return fmt.Errorf("%w: got %d of %d bytes", ErrIncomplete, t.BytesDownloaded(), info.Total)
	}

	if _, err := fs.Stat(t.filePath); err == nil {
		if err := fs.Remove(t.filePath); err != nil {
			return fmt.Errorf("failed to replace %s: %w", t.filePath, err)
		}
	}
	if err := fs.Rename(t.tempPath(), t.filePath); err != nil {
		return fmt.Errorf("failed to move download into place: %w", err)
	}
	if err := fs.Remove(t.infoPath()); err != nil && !os.IsNotExist(err) {
		log.Warn("Failed to delete download sidecar", "path", t.infoPath(), "error", err)
	}

	log.Debug("Download complete", "path", t.filePath, "bytes", t.BytesDownloaded())
	return nil
}

// loadSidecar returns the saved state when it belongs to the same url and
// the partial file is still there.
func (t *task) loadSidecar() *sidecar {
	fs := t.svc.fs
	data, err := afero.ReadFile(fs, t.infoPath())
	if err != nil {
		return nil
	}
	var info sidecar
	if err := json.Unmarshal(data, &info); err != nil {
		t.svc.log.Warn("Ignoring unreadable download sidecar", "path", t.infoPath(), "error", err)
		return nil
	}
	if info.URL != t.url || len(info.Chunks) == 0 {
		return nil
	}
	if _, err := fs.Stat(t.tempPath()); err != nil {
		return nil
	}
	if !info.Ranges {
		// Without range support a partial stream cannot be continued
		return nil
	}
	return &info
}

// probe asks the server for the size and range support and plans chunks
func (t *task) probe() (*sidecar, error) {
	info := &sidecar{URL: t.url}

	req, err := http.NewRequestWithContext(t.ctx, http.MethodHead, t.url, nil)
	if err != nil {
		return nil, err
	}
	t.setHeaders(req)
	resp, err := t.svc.client.Do(req)
	if err == nil {
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			info.Total = resp.ContentLength
			info.Ranges = resp.Header.Get("Accept-Ranges") == "bytes"
		}
	} else if t.ctx.Err() != nil {
		return nil, t.ctx.Err()
	}
	if info.Total < 0 {
		info.Total = 0
	}

	n := t.svc.chunks
	if !info.Ranges || info.Total == 0 {
		n = 1
	} else if limit := int(info.Total / minChunkSize); limit < n {
		n = limit
		if n < 1 {
			n = 1
		}
	}

	if info.Total == 0 {
		info.Chunks = []chunk{{Start: 0, End: unknownLastPos}}
		return info, nil
	}

	size := (info.Total + int64(n) - 1) / int64(n)
	for start := int64(0); start < info.Total; start += size {
		end := start + size - 1
		if end >= info.Total {
			end = info.Total - 1
		}
		info.Chunks = append(info.Chunks, chunk{Start: start, End: end})
	}
	return info, nil
}

func (t *task) fetchChunk(ctx context.Context, f afero.File, idx int) error {
	t.infoMu.Lock()
	c := t.info.Chunks[idx]
	ranged := t.info.Ranges
	t.infoMu.Unlock()

	if c.complete() {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return err
	}
	t.setHeaders(req)
	if ranged {
		rng := "bytes=" + strconv.FormatInt(c.Start+c.Written, 10) + "-"
		if c.End != unknownLastPos {
			rng += strconv.FormatInt(c.End, 10)
		}
		req.Header.Set("Range", rng)
	}

	resp, err := t.svc.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	want := http.StatusOK
	if ranged {
		want = http.StatusPartialContent
	}
	if resp.StatusCode != want {
		return fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	buf := make([]byte, bufferSize)
	offset := c.Start + c.Written
	for {
		if err := t.waitIfPaused(ctx); err != nil {
			return err
		}

		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if c.End != unknownLastPos && offset+int64(n) > c.End+1 {
				n = int(c.End + 1 - offset)
			}
			if _, werr := f.WriteAt(buf[:n], offset); werr != nil {
				return fmt.Errorf("failed to write file: %w", werr)
			}
			offset += int64(n)

			t.infoMu.Lock()
			t.info.Chunks[idx].Written += int64(n)
			t.infoMu.Unlock()
			t.addProgress(int64(n))
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			return rerr
		}
		if c.End != unknownLastPos && offset > c.End {
			break
		}
	}

	if c.End != unknownLastPos && offset <= c.End {
		return fmt.Errorf("%w: chunk %d-%d stopped at %d", ErrIncomplete, c.Start, c.End, offset)
	}
	return nil
}

func (t *task) waitIfPaused(ctx context.Context) error {
	for {
		t.statusMu.Lock()
		ch := t.resumeCh
		paused := t.status == StatusPaused
		t.statusMu.Unlock()
		if !paused {
			return ctx.Err()
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *task) addProgress(n int64) {
	now := t.svc.now()
	save := false

	t.progressMu.Lock()
	t.downloaded += n
	if elapsed := now.Sub(t.sampleAt); elapsed >= speedWindow {
		t.speed = float64(t.downloaded-t.sampleBytes) / elapsed.Seconds()
		t.sampleAt = now
		t.sampleBytes = t.downloaded
	}
	if now.Sub(t.lastSaveTime) >= t.svc.saveInterval {
		t.lastSaveTime = now
		save = true
	}
	t.progressMu.Unlock()

	if save {
		t.saveSidecar()
	}
}

func (t *task) saveSidecar() {
	t.saveMu.Lock()
	defer t.saveMu.Unlock()

	t.infoMu.Lock()
	if t.info == nil {
		t.infoMu.Unlock()
		return
	}
	data, err := json.MarshalIndent(t.info, "", "  ")
	t.infoMu.Unlock()
	if err != nil {
		return
	}

	if err := afero.WriteFile(t.svc.fs, t.infoPath(), data, 0644); err != nil {
		t.svc.log.Error("Failed to write download sidecar", "path", t.infoPath(), "error", err)
	}
}

func (t *task) setHeaders(req *http.Request) {
	if t.svc.userAgent != "" {
		req.Header.Set("User-Agent", t.svc.userAgent)
	}
}
