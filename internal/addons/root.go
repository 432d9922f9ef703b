// Package addons is the addon library: a tree of groups and VPK addons that
// mirrors a directory, with enable strategies, problem tracking, workshop
// downloads, and pushing the enabled set into the game.
package addons

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/bnema/vpkctl/internal/download"
	"github.com/bnema/vpkctl/internal/logger"
	"github.com/bnema/vpkctl/internal/workshop"
)

// SaveFileName is the save file kept in the root directory
const SaveFileName = ".addonroot"

// WorkshopClient is the part of *workshop.Client the tree uses
type WorkshopClient interface {
	GetPublishedFileDetails(ctx context.Context, id uint64) (*workshop.PublishedFileDetails, error)
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Downloader starts package downloads; *download.Service implements it
type Downloader interface {
	Download(url, filePath string) download.Item
}

// RootOptions configures a Root. Every field is optional except Scheduler
// when background work is expected.
type RootOptions struct {
	Fs         afero.Fs
	Scheduler  Scheduler
	Workshop   WorkshopClient
	Downloader Downloader
	Logger     *log.Logger
	// BackupDir receives copies of the game manifest before a push
	BackupDir string
	// Now replaces time.Now in tests
	Now func() time.Time
}

// Root is the top of the tree and owns its directory. Like nodes, it must
// only be used from its scheduler.
type Root struct {
	dir   string
	fs    afero.Fs
	log   *log.Logger
	sched Scheduler
	now   func() time.Time

	workshop   WorkshopClient
	downloader Downloader
	backups    *BackupManager

	nodes  containerService
	vpks   map[NodeID]VpkAddon
	lastID NodeID

	blockAutoCheck     int
	loading            int
	autoUpdateWorkshop bool
	saveRequested      bool

	runningChecks int
	idleWaiters   []chan struct{}

	downloadListeners []func(*WorkshopVpkAddon, download.Item)
	vpkPathListeners  []func(VpkAddon, string)
}

// NewRoot binds a tree to dir. Nothing is read until Load.
func NewRoot(dir string, opts RootOptions) *Root {
	r := &Root{
		dir:                dir,
		fs:                 opts.Fs,
		log:                logger.OrDiscard(opts.Logger),
		sched:              opts.Scheduler,
		now:                opts.Now,
		workshop:           opts.Workshop,
		downloader:         opts.Downloader,
		nodes:              newContainerService(),
		vpks:               make(map[NodeID]VpkAddon),
		autoUpdateWorkshop: true,
	}
	if r.fs == nil {
		r.fs = afero.NewOsFs()
	}
	if r.sched == nil {
		r.sched = NewLoopScheduler()
	}
	if r.now == nil {
		r.now = time.Now
	}
	if opts.BackupDir != "" {
		r.backups = NewBackupManager(r.fs, opts.BackupDir, r.log)
	}
	return r
}

func (r *Root) Dir() string                { return r.dir }
func (r *Root) Fs() afero.Fs               { return r.fs }
func (r *Root) Scheduler() Scheduler       { return r.sched }
func (r *Root) Backups() *BackupManager    { return r.backups }
func (r *Root) SavePath() string           { return filepath.Join(r.dir, SaveFileName) }
func (r *Root) SaveRequested() bool        { return r.saveRequested }
func (r *Root) RequestSave()               { r.saveRequested = true }
func (r *Root) AutoUpdateWorkshop() bool   { return r.autoUpdateWorkshop }
func (r *Root) Nodes() []Node              { return r.nodes.list() }
func (r *Root) NameExists(n string) bool   { return r.nodes.nameExists(n) }
func (r *Root) UniqueName(n string) string { return r.nodes.uniqueName(n) }

func (r *Root) NodeByName(name string) (Node, bool) {
	return r.nodes.get(name)
}

func (r *Root) containerFor(g *Group) *containerService {
	if g == nil {
		return &r.nodes
	}
	return &g.children
}

// SetAutoUpdateWorkshop changes the default of AutoUpdateDefault packages
func (r *Root) SetAutoUpdateWorkshop(v bool) {
	r.autoUpdateWorkshop = v
}

// ShouldUpdateWorkshopItem resolves AutoUpdateDefault against the root
func (r *Root) ShouldUpdateWorkshopItem(s AutoUpdateStrategy) bool {
	if s == AutoUpdateDefault {
		return r.autoUpdateWorkshop
	}
	return s == AutoUpdateEnabled
}

// IsAutoCheck reports whether mutations revalidate the touched nodes
func (r *Root) IsAutoCheck() bool {
	return r.blockAutoCheck == 0
}

// BlockAutoCheck suspends automatic checks until every returned release
// func has been called
func (r *Root) BlockAutoCheck() (release func()) {
	r.blockAutoCheck++
	released := false
	return func() {
		if !released {
			released = true
			r.blockAutoCheck--
		}
	}
}

// Find resolves a slash separated path of names. "" and "/" are not nodes.
func (r *Root) Find(path string) (Node, error) {
	parts := splitNodePath(path)
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, path)
	}

	c := &r.nodes
	var n Node
	for i, name := range parts {
		next, ok := c.get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, path)
		}
		n = next
		if i == len(parts)-1 {
			break
		}
		g, ok := n.(*Group)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotGroup, strings.Join(parts[:i+1], "/"))
		}
		c = &g.children
	}
	return n, nil
}

// FindGroup resolves path to a group; "" and "/" give nil, the top level
func (r *Root) FindGroup(path string) (*Group, error) {
	if len(splitNodePath(path)) == 0 {
		return nil, nil
	}
	n, err := r.Find(path)
	if err != nil {
		return nil, err
	}
	g, ok := n.(*Group)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotGroup, path)
	}
	return g, nil
}

func splitNodePath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// AllNodes lists every node in pre-order
func (r *Root) AllNodes() []Node {
	var out []Node
	for _, n := range r.nodes.nodes {
		out = append(out, subtree(n)...)
	}
	return out
}

// CheckAll checks every node, children before their group
func (r *Root) CheckAll() {
	all := r.AllNodes()
	for i := len(all) - 1; i >= 0; i-- {
		all[i].Check()
	}
}

// VPK registry

func (r *Root) registerVpk(a VpkAddon) {
	r.vpks[a.ID()] = a
}

func (r *Root) unregisterVpk(a VpkAddon) {
	delete(r.vpks, a.ID())
}

// VpkAddons lists the live VPK addons in creation order
func (r *Root) VpkAddons() []VpkAddon {
	out := make([]VpkAddon, 0, len(r.vpks))
	for _, a := range r.vpks {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b VpkAddon) int {
		return int(a.ID()) - int(b.ID())
	})
	return out
}

// Downloads lists the downloads currently owned by workshop addons
func (r *Root) Downloads() []download.Item {
	var items []download.Item
	for _, a := range r.VpkAddons() {
		if w, ok := a.(*WorkshopVpkAddon); ok && w.download != nil {
			items = append(items, w.download)
		}
	}
	return items
}

// Listeners

// OnDownloadStarted registers fn to be called on the scheduler whenever a
// workshop addon starts a download
func (r *Root) OnDownloadStarted(fn func(*WorkshopVpkAddon, download.Item)) {
	r.downloadListeners = append(r.downloadListeners, fn)
}

// OnVpkPathResolved registers fn to be called after every workshop check
// with the resolved package path, "" when unresolved
func (r *Root) OnVpkPathResolved(fn func(VpkAddon, string)) {
	r.vpkPathListeners = append(r.vpkPathListeners, fn)
}

func (r *Root) notifyDownloadStarted(a *WorkshopVpkAddon, item download.Item) {
	for _, fn := range r.downloadListeners {
		fn(a, item)
	}
}

func (r *Root) notifyVpkPathResolved(a VpkAddon, path string) {
	for _, fn := range r.vpkPathListeners {
		fn(a, path)
	}
}

// Background checks

func (r *Root) checkStarted() {
	r.runningChecks++
}

func (r *Root) checkFinished() {
	r.runningChecks--
	if r.runningChecks > 0 {
		return
	}
	for _, ch := range r.idleWaiters {
		close(ch)
	}
	r.idleWaiters = nil
}

// WaitChecks blocks until no workshop check is running. It must not be
// called on the scheduler.
func (r *Root) WaitChecks(ctx context.Context) error {
	var ch chan struct{}
	err := postWait(ctx, r.sched, func() {
		if r.runningChecks > 0 {
			ch = make(chan struct{})
			r.idleWaiters = append(r.idleWaiters, ch)
		}
	})
	if err != nil || ch == nil {
		return err
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Persistence

// Save writes the tree to the save file through a temporary file
func (r *Root) Save() error {
	data, err := json.MarshalIndent(r.CreateRecord(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tree: %w", err)
	}
	if err := r.fs.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("failed to create library directory: %w", err)
	}

	path := r.SavePath()
	tmp := path + ".tmp"
	if err := afero.WriteFile(r.fs, tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write save file: %w", err)
	}
	if err := r.fs.Rename(tmp, path); err != nil {
		_ = r.fs.Remove(tmp)
		return fmt.Errorf("failed to replace save file: %w", err)
	}

	r.saveRequested = false
	r.log.Debug("Saved addon tree", "path", path)
	return nil
}

// Load reads the save file into the top level. A missing file leaves the
// tree empty.
func (r *Root) Load() error {
	data, err := afero.ReadFile(r.fs, r.SavePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	var rec RootRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("failed to decode %s: %w", r.SavePath(), err)
	}
	if rec.Version > RootRecordVersion {
		r.log.Warn("Save file is newer than this version", "version", rec.Version)
	}

	r.LoadRecord(&rec, nil)
	r.saveRequested = false
	return nil
}

// Close destroys every node and waits for their background work
func (r *Root) Close() <-chan struct{} {
	done := make(chan struct{})
	var waits []<-chan struct{}
	for _, n := range r.nodes.list() {
		waits = append(waits, n.Destroy())
	}
	go func() {
		defer close(done)
		for _, w := range waits {
			<-w
		}
	}()
	return done
}
