package addons

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/bnema/vpkctl/internal/download"
	"github.com/bnema/vpkctl/internal/workshop"
)

const (
	WorkshopVpkExt = ".workshop"
	// WorkshopMetaFileName is the meta file kept inside a workshop node's
	// directory
	WorkshopMetaFileName = ".workshop"
	workshopLinkPrefix   = "workshop_"
)

// AutoUpdateStrategy decides whether a workshop package follows new
// versions of its item
type AutoUpdateStrategy int

const (
	// AutoUpdateDefault follows Root.AutoUpdateWorkshop
	AutoUpdateDefault AutoUpdateStrategy = iota
	AutoUpdateEnabled
	AutoUpdateDisabled
)

func (s AutoUpdateStrategy) String() string {
	switch s {
	case AutoUpdateEnabled:
		return "enabled"
	case AutoUpdateDisabled:
		return "disabled"
	default:
		return "default"
	}
}

// WorkshopMeta records which item version is on disk
type WorkshopMeta struct {
	PublishedFileID uint64 `json:"published_file_id"`
	TimeUpdated     int64  `json:"time_updated"`
	CurrentFile     string `json:"current_file"`
}

// ReadWorkshopMeta reads the meta file in dir. A missing file yields nil
// without error.
func ReadWorkshopMeta(fs afero.Fs, dir string) (*WorkshopMeta, error) {
	data, err := afero.ReadFile(fs, filepath.Join(dir, WorkshopMetaFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var meta WorkshopMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse workshop meta: %w", err)
	}
	return &meta, nil
}

func writeWorkshopMeta(fs afero.Fs, dir string, meta *WorkshopMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(fs, filepath.Join(dir, WorkshopMetaFileName), data, 0644)
}

// workshopTask is the state of the background check of a workshop package
type workshopTask int

const (
	taskIdle workshopTask = iota
	taskRunning
	// taskPending is taskRunning with another check requested meanwhile
	taskPending
)

// WorkshopVpkAddon is a VPK downloaded from the Steam Workshop. Its backing
// file is a directory holding the meta file and the downloaded package.
type WorkshopVpkAddon struct {
	vpkBase

	publishedFileID    uint64
	hasID              bool
	autoUpdate         AutoUpdateStrategy
	requestAutoSetName bool

	details  *workshop.PublishedFileDetails
	vpkFile  string
	task     workshopTask
	download download.Item
	// stopCheck cancels the running check, nil when idle
	stopCheck context.CancelFunc
}

func NewWorkshopVpkAddon(root *Root, parent *Group, name string) (*WorkshopVpkAddon, error) {
	a := &WorkshopVpkAddon{}
	if err := root.initNode(&a.nodeBase, a, parent, name); err != nil {
		return nil, err
	}
	root.registerVpk(a)
	return a, nil
}

func (a *WorkshopVpkAddon) kind() Kind { return KindWorkshopVpk }

func (a *WorkshopVpkAddon) RequiresFile() bool    { return true }
func (a *WorkshopVpkAddon) FileExtension() string { return WorkshopVpkExt }

func (a *WorkshopVpkAddon) VpkPath() string {
	if a.vpkFile == "" {
		return ""
	}
	return filepath.Join(a.FullFilePath(), a.vpkFile)
}

func (a *WorkshopVpkAddon) PublishedFileID() (uint64, bool) {
	return a.publishedFileID, a.hasID
}

// SetPublishedFileID binds the node to another item. A running check and
// its download are cancelled, the cached details are dropped and a new check
// follows once the old one has stopped.
func (a *WorkshopVpkAddon) SetPublishedFileID(id uint64) {
	if a.hasID && a.publishedFileID == id {
		return
	}
	a.publishedFileID = id
	a.hasID = true
	if a.task != taskIdle {
		if a.stopCheck != nil {
			a.stopCheck()
		}
		a.task = taskPending
	}
	a.ClearCaches()
	a.root.RequestSave()
	a.AutoCheck()
}

func (a *WorkshopVpkAddon) AutoUpdateStrategy() AutoUpdateStrategy {
	return a.autoUpdate
}

func (a *WorkshopVpkAddon) SetAutoUpdateStrategy(s AutoUpdateStrategy) {
	if a.autoUpdate == s {
		return
	}
	a.autoUpdate = s
	a.root.RequestSave()
}

// IsAutoUpdate reports whether a newer item version triggers a download
func (a *WorkshopVpkAddon) IsAutoUpdate() bool {
	return a.root.ShouldUpdateWorkshopItem(a.autoUpdate)
}

func (a *WorkshopVpkAddon) RequestAutoSetName() bool {
	return a.requestAutoSetName
}

// SetRequestAutoSetName makes the next successful details fetch rename the
// node after the item title
func (a *WorkshopVpkAddon) SetRequestAutoSetName(v bool) {
	if a.requestAutoSetName == v {
		return
	}
	a.requestAutoSetName = v
	a.root.RequestSave()
}

// Details returns the cached item details, nil until a check fetched them
func (a *WorkshopVpkAddon) Details() *workshop.PublishedFileDetails {
	return a.details
}

// Download returns the running download, nil when there is none
func (a *WorkshopVpkAddon) Download() download.Item {
	return a.download
}

// CheckRunning reports whether the background check is in flight
func (a *WorkshopVpkAddon) CheckRunning() bool {
	return a.task != taskIdle
}

func (a *WorkshopVpkAddon) LinkFileName() string {
	if !a.hasID {
		return ""
	}
	return fmt.Sprintf("%s%d%s", workshopLinkPrefix, a.publishedFileID, LocalVpkExt)
}

func (a *WorkshopVpkAddon) ClearCaches() {
	a.vpkBase.ClearCaches()
	a.details = nil
}

func (a *WorkshopVpkAddon) onCheck() {
	if !a.hasID {
		return
	}
	switch a.task {
	case taskIdle:
		a.startCheck()
	case taskRunning:
		a.task = taskPending
	}
}

// checkInput is what the background check needs from the node
type checkInput struct {
	id            uint64
	dir           string
	meta          *WorkshopMeta
	requestUpdate bool
}

type checkResult struct {
	// id is the item the result belongs to
	id        uint64
	details   *workshop.PublishedFileDetails
	problems  []Problem
	vpkFile   string
	cancelled bool
}

// startCheck reads the meta file, then hands over to a background task.
// The node cannot be moved until finishCheck runs.
func (a *WorkshopVpkAddon) startCheck() {
	in := checkInput{
		id:            a.publishedFileID,
		dir:           a.FullFilePath(),
		requestUpdate: a.IsAutoUpdate(),
	}
	fs := a.root.fs

	if err := fs.MkdirAll(in.dir, 0755); err != nil {
		a.root.log.Error("Failed to create workshop directory", "path", in.dir, "error", err)
		return
	}
	meta, err := ReadWorkshopMeta(fs, in.dir)
	if err != nil {
		a.root.log.Error("Failed to read workshop meta", "path", in.dir, "error", err)
	}
	if meta != nil && meta.PublishedFileID == in.id {
		if exists, _ := afero.Exists(fs, filepath.Join(in.dir, meta.CurrentFile)); exists {
			a.vpkFile = meta.CurrentFile
		}
	}
	in.meta = meta

	release := a.blockMoves()
	a.task = taskRunning
	a.root.checkStarted()
	ctx, cancel := context.WithCancel(a.ctx)
	a.stopCheck = cancel
	started := a.goTask(func(context.Context) {
		res := a.runCheck(ctx, in)
		a.root.sched.Post(func() { a.finishCheck(res, release) })
	})
	if !started {
		cancel()
		a.stopCheck = nil
		release()
		a.task = taskIdle
		a.root.checkFinished()
	}
}

// runCheck fetches the details and downloads the package when the copy on
// disk is missing or outdated. It runs in the background and only touches
// the node through the scheduler.
func (a *WorkshopVpkAddon) runCheck(ctx context.Context, in checkInput) checkResult {
	res := checkResult{id: in.id}
	fs, log := a.root.fs, a.root.log
	var details *workshop.PublishedFileDetails

	client := a.root.workshop
	if client == nil {
		res.problems = append(res.problems, &PublishedFileDetailsProblem{source: a, Err: errors.New("no workshop client")})
	} else {
		d, err := client.GetPublishedFileDetails(ctx, in.id)
		switch {
		case ctx.Err() != nil:
			res.cancelled = true
			return res
		case err != nil:
			log.Warn("Failed to get published file details", "id", in.id, "error", err)
			res.problems = append(res.problems, &PublishedFileDetailsProblem{
				source:    a,
				InvalidID: errors.Is(err, workshop.ErrInvalidPublishedFileID),
				Err:       err,
			})
		default:
			details = d
			res.details = d
		}
	}

	meta := in.meta
	if details != nil && needDownload(fs, in, details) {
		meta = a.downloadPackage(ctx, in, details, &res)
		if res.cancelled {
			return res
		}
	}

	// a package of another item never resolves this one
	if meta != nil && meta.PublishedFileID == in.id {
		res.vpkFile = meta.CurrentFile
	}
	return res
}

func needDownload(fs afero.Fs, in checkInput, details *workshop.PublishedFileDetails) bool {
	meta := in.meta
	if meta == nil || meta.PublishedFileID != in.id {
		return true
	}
	if in.requestUpdate && meta.TimeUpdated != details.TimeUpdated {
		return true
	}
	exists, _ := afero.Exists(fs, filepath.Join(in.dir, meta.CurrentFile))
	return !exists
}

// downloadPackage deletes the meta file, downloads the package and writes
// a fresh meta file on success. It returns the meta describing the files on
// disk afterwards.
func (a *WorkshopVpkAddon) downloadPackage(ctx context.Context, in checkInput, details *workshop.PublishedFileDetails, res *checkResult) *WorkshopMeta {
	fs, log := a.root.fs, a.root.log
	old := in.meta

	metaPath := filepath.Join(in.dir, WorkshopMetaFileName)
	if err := fs.Remove(metaPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Failed to delete workshop meta", "path", metaPath, "error", err)
	}

	if a.root.downloader == nil {
		res.problems = append(res.problems, &DownloadFailedProblem{source: a, URL: details.FileURL, Err: errors.New("no download service")})
		return old
	}

	fileName := SanitizeFileName(fmt.Sprintf("%s-%d%s", details.Title, details.TimeUpdated, LocalVpkExt))
	if fileName == "" {
		fileName = UnnamedFileName + LocalVpkExt
	}
	ext := filepath.Ext(fileName)
	fileName = uniqueFileName(fs, in.dir, strings.TrimSuffix(fileName, ext), ext)
	filePath := filepath.Join(in.dir, fileName)

	item := a.root.downloader.Download(details.FileURL, filePath)
	defer func() { _ = item.Close() }()

	log.Info("Downloading workshop item", "id", in.id, "title", details.Title, "file", fileName)
	_ = postWait(ctx, a.root.sched, func() { a.setDownload(item) })
	err := item.Wait(ctx)
	a.root.sched.Post(func() { a.setDownload(nil) })
	if err != nil {
		res.cancelled = true
		return old
	}

	switch item.Status() {
	case download.StatusSucceeded:
		meta := &WorkshopMeta{
			PublishedFileID: in.id,
			TimeUpdated:     details.TimeUpdated,
			CurrentFile:     fileName,
		}
		if err := writeWorkshopMeta(fs, in.dir, meta); err != nil {
			log.Error("Failed to write workshop meta", "path", metaPath, "error", err)
		}
		if old != nil && old.CurrentFile != "" && old.CurrentFile != fileName {
			stale := filepath.Join(in.dir, old.CurrentFile)
			if err := fs.Remove(stale); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Warn("Failed to delete outdated package", "path", stale, "error", err)
			}
		}
		return meta
	case download.StatusFailed:
		log.Warn("Workshop download failed", "id", in.id, "url", details.FileURL, "error", item.Err())
		res.problems = append(res.problems, &DownloadFailedProblem{
			source:   a,
			URL:      details.FileURL,
			FilePath: filePath,
			Err:      item.Err(),
		})
	}
	return old
}

func (a *WorkshopVpkAddon) setDownload(item download.Item) {
	if !a.valid && item != nil {
		return
	}
	a.download = item
	if item != nil {
		a.root.notifyDownloadStarted(a, item)
	}
}

// finishCheck applies a check result on the scheduler
func (a *WorkshopVpkAddon) finishCheck(res checkResult, release func()) {
	defer a.root.checkFinished()
	release()
	if !a.valid {
		return
	}
	if a.stopCheck != nil {
		a.stopCheck()
		a.stopCheck = nil
	}
	pending := a.task == taskPending
	a.task = taskIdle

	// a result for an item the node no longer points at is dropped whole
	if !res.cancelled && res.id == a.publishedFileID {
		if res.details != nil {
			a.details = res.details
		}
		for _, p := range res.problems {
			a.addProblem(p)
		}
		if res.vpkFile != a.vpkFile {
			a.vpkBase.ClearCaches()
		}
		a.vpkFile = res.vpkFile
		if a.vpkFile == "" {
			a.addProblem(&UnresolvedPackageProblem{source: a})
		} else {
			a.checkPackage(a.VpkPath())
		}
		a.root.notifyVpkPathResolved(a, a.VpkPath())

		if a.requestAutoSetName && a.details != nil {
			a.applyAutoName()
		}
	}

	if pending && a.hasID {
		a.Check()
	}
}

// WorkshopItems collects the workshop items among nodes, descending into
// groups. Each item appears once, in tree order.
func WorkshopItems(nodes ...Node) []*WorkshopVpkAddon {
	var items []*WorkshopVpkAddon
	seen := make(map[*WorkshopVpkAddon]bool)
	for _, n := range nodes {
		for _, c := range subtree(n) {
			if w, ok := c.(*WorkshopVpkAddon); ok && !seen[w] {
				seen[w] = true
				items = append(items, w)
			}
		}
	}
	return items
}

// applyAutoName renames the node after the item title
func (a *WorkshopVpkAddon) applyAutoName() {
	name := SanitizeFileName(a.details.Title)
	if name == "" {
		name = UnnamedFileName
	}
	if name != a.name {
		name = a.container().uniqueName(name)
		if err := a.SetName(name); err != nil {
			a.root.log.Warn("Failed to rename workshop item after its title", "name", name, "error", err)
			return
		}
	}
	a.SetRequestAutoSetName(false)
}

func (a *WorkshopVpkAddon) onDestroy() func() {
	wait := a.vpkBase.onDestroy()
	a.task = taskIdle
	item := a.download
	a.download = nil
	return func() {
		if item != nil {
			_ = item.Close()
		}
		wait()
	}
}

// Image returns the item preview, falling back to addonimage.jpg inside the
// package when the preview cannot be fetched
func (a *WorkshopVpkAddon) Image(ctx context.Context) ([]byte, error) {
	st := &imageState{node: a}
	fs, log := a.root.fs, a.root.log

	prepare := stage[imageState]{
		name: "prepare",
		exec: onScheduler,
		run: func(_ context.Context, st *imageState) (bool, error) {
			st.publishedFileID, st.hasID = a.publishedFileID, a.hasID
			st.details = a.details
			st.client = a.root.workshop
			return false, nil
		},
	}
	preview := stage[imageState]{
		name: "preview",
		exec: onCaller,
		run: func(ctx context.Context, st *imageState) (bool, error) {
			if st.client == nil || !st.hasID {
				return false, nil
			}
			if st.details == nil {
				d, err := st.client.GetPublishedFileDetails(ctx, st.publishedFileID)
				if err != nil {
					if ctx.Err() != nil {
						return false, ctx.Err()
					}
					log.Warn("Failed to get published file details", "id", st.publishedFileID, "error", err)
					return false, nil
				}
				st.details, st.fetched = d, true
			}
			if st.details.PreviewURL == "" {
				return false, nil
			}
			data, err := st.client.Fetch(ctx, st.details.PreviewURL)
			if err != nil {
				if ctx.Err() != nil {
					return false, ctx.Err()
				}
				log.Warn("Failed to get preview image", "title", st.details.Title, "url", st.details.PreviewURL, "error", err)
				return false, nil
			}
			st.data = data
			return false, nil
		},
	}
	fallback := stage[imageState]{
		name: "fallback",
		exec: onScheduler,
		run: func(_ context.Context, st *imageState) (bool, error) {
			if !a.valid {
				return false, ErrNodeInvalid
			}
			// rebound while fetching: the preview belongs to the old item
			if st.hasID && st.publishedFileID != a.publishedFileID {
				st.data, st.fetched = nil, false
			}
			if st.fetched && a.details == nil {
				a.details = st.details
			}
			st.path = a.VpkPath()
			return false, nil
		},
	}

	err := runPipeline(ctx, a.root.sched, st,
		imageLookupStage(),
		prepare,
		preview,
		fallback,
		imageReadVpkStage(fs),
		imageStoreStage(),
	)
	return st.data, err
}

func (a *WorkshopVpkAddon) record() Record {
	rec := &WorkshopVpkRecord{
		NodeRecord:         a.nodeRecord(),
		AutoUpdate:         a.autoUpdate,
		RequestAutoSetName: a.requestAutoSetName,
	}
	if a.hasID {
		id := a.publishedFileID
		rec.PublishedFileID = &id
	}
	return rec
}

func (a *WorkshopVpkAddon) applyRecord(rec Record) {
	r, ok := rec.(*WorkshopVpkRecord)
	if !ok {
		return
	}
	a.autoUpdate = r.AutoUpdate
	a.requestAutoSetName = r.RequestAutoSetName
	if r.PublishedFileID != nil {
		a.SetPublishedFileID(*r.PublishedFileID)
		a.resolveCachedFile()
	}
	a.applyNodeRecord(&r.NodeRecord)
}

// resolveCachedFile points the node at the package its meta file names, so
// a loaded tree can be pushed before any check ran
func (a *WorkshopVpkAddon) resolveCachedFile() {
	dir := a.FullFilePath()
	meta, err := ReadWorkshopMeta(a.root.fs, dir)
	if err != nil {
		a.root.log.Warn("Failed to read workshop meta", "path", dir, "error", err)
		return
	}
	if meta == nil || meta.PublishedFileID != a.publishedFileID || meta.CurrentFile == "" {
		return
	}
	if exists, _ := afero.Exists(a.root.fs, filepath.Join(dir, meta.CurrentFile)); exists {
		a.vpkFile = meta.CurrentFile
	}
}
