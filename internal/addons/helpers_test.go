package addons

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/bnema/vpkctl/internal/download"
	"github.com/bnema/vpkctl/internal/vpk"
	"github.com/bnema/vpkctl/internal/workshop"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestRoot binds a root to a fresh temporary directory on the OS
// filesystem, driven by its own loop scheduler
func newTestRoot(t *testing.T, opts RootOptions) (*Root, *LoopScheduler) {
	t.Helper()
	sched := NewLoopScheduler()
	t.Cleanup(sched.Close)

	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	opts.Scheduler = sched
	return NewRoot(t.TempDir(), opts), sched
}

func vpkBytes(t *testing.T, title string) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, vpk.Write(&buf, map[string][]byte{
		"addoninfo.txt":  []byte(`"AddonInfo" { "addontitle" "` + title + `" }`),
		"addonimage.jpg": {0xff, 0xd8, 0xff},
	}))
	return buf.Bytes()
}

func writeVpk(t *testing.T, fs afero.Fs, path, title string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, afero.WriteFile(fs, path, vpkBytes(t, title), 0644))
}

// mkGroup creates a group together with its directory
func mkGroup(t *testing.T, r *Root, parent *Group, name string) *Group {
	t.Helper()
	dir := r.dir
	if parent != nil {
		dir = parent.FullFilePath()
	}
	require.NoError(t, r.fs.MkdirAll(filepath.Join(dir, name), 0755))
	g, err := NewGroup(r, parent, name)
	require.NoError(t, err)
	return g
}

func mkPlain(t *testing.T, r *Root, parent *Group, name string) *PlainNode {
	t.Helper()
	n, err := NewPlainNode(r, parent, name)
	require.NoError(t, err)
	return n
}

// mkLocal creates a local addon together with a valid package file
func mkLocal(t *testing.T, r *Root, parent *Group, name string) *LocalVpkAddon {
	t.Helper()
	dir := r.dir
	if parent != nil {
		dir = parent.FullFilePath()
	}
	writeVpk(t, r.fs, filepath.Join(dir, name+LocalVpkExt), name)
	a, err := NewLocalVpkAddon(r, parent, name)
	require.NoError(t, err)
	return a
}

func problemKinds(n Node) []ProblemKind {
	var kinds []ProblemKind
	for _, p := range n.Problems() {
		kinds = append(kinds, p.Kind())
	}
	return kinds
}

func hasProblemKind(n Node, kind ProblemKind) bool {
	for _, p := range n.Problems() {
		if p.Kind() == kind {
			return true
		}
	}
	return false
}

// fakeWorkshop serves item details from a map
type fakeWorkshop struct {
	mu      sync.Mutex
	details map[uint64]*workshop.PublishedFileDetails
	// previews maps preview URLs to image bytes
	previews map[string][]byte
	err      error
	calls    int
	// block, when set, holds every details request until it is closed
	block chan struct{}
}

func (f *fakeWorkshop) GetPublishedFileDetails(ctx context.Context, id uint64) (*workshop.PublishedFileDetails, error) {
	f.mu.Lock()
	f.calls++
	block, err := f.block, f.err
	d, ok := f.details[id]
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, workshop.ErrInvalidPublishedFileID
	}
	cp := *d
	return &cp, nil
}

func (f *fakeWorkshop) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if data, ok := f.previews[url]; ok {
		return data, nil
	}
	return nil, errors.New("preview not found")
}

func (f *fakeWorkshop) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeDownloader finishes every download synchronously
type fakeDownloader struct {
	fs   afero.Fs
	data []byte
	fail error

	mu    sync.Mutex
	paths []string
}

func (d *fakeDownloader) Download(url, filePath string) download.Item {
	d.mu.Lock()
	d.paths = append(d.paths, filePath)
	d.mu.Unlock()

	item := &fakeItem{url: url, path: filePath, status: download.StatusSucceeded, done: make(chan struct{})}
	close(item.done)
	if d.fail != nil {
		item.status, item.err = download.StatusFailed, d.fail
		return item
	}
	if err := afero.WriteFile(d.fs, filePath, d.data, 0644); err != nil {
		item.status, item.err = download.StatusFailed, err
	}
	return item
}

func (d *fakeDownloader) Paths() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.paths...)
}

type fakeItem struct {
	url    string
	path   string
	status download.Status
	err    error
	done   chan struct{}
}

func (i *fakeItem) URL() string                    { return i.url }
func (i *fakeItem) FilePath() string               { return i.path }
func (i *fakeItem) BytesDownloaded() int64         { return 0 }
func (i *fakeItem) TotalBytes() int64              { return 0 }
func (i *fakeItem) Speed() float64                 { return 0 }
func (i *fakeItem) Status() download.Status        { return i.status }
func (i *fakeItem) Err() error                     { return i.err }
func (i *fakeItem) Pause()                         {}
func (i *fakeItem) Resume()                        {}
func (i *fakeItem) Cancel()                        {}
func (i *fakeItem) Done() <-chan struct{}          { return i.done }
func (i *fakeItem) Wait(ctx context.Context) error { return nil }
func (i *fakeItem) Close() error                   { return nil }
