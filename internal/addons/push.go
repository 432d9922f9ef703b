package addons

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/bnema/vpkctl/internal/game"
	"github.com/bnema/vpkctl/internal/keyvalues"
)

const (
	manifestRootKey = "AddonList"
	manifestOn      = "1"
	manifestOff     = "0"
)

var ErrSymlinkUnsupported = errors.New("filesystem does not support symlinks")

// PushResult reports what a push did
type PushResult struct {
	// Linked lists the link files created, all set to "1" in the manifest
	Linked []string
	// Remaining lists old link files that could not be deleted. They stay
	// in the manifest as "0".
	Remaining []string
	// Skipped lists enabled addons without a package file or link name
	Skipped []VpkAddon
	// Backup is the copy of the previous manifest, "" when there was none
	Backup string
}

// isManagedLink reports whether name is a link file Push creates
func isManagedLink(name string) bool {
	stem, ok := strings.CutSuffix(name, LocalVpkExt)
	if !ok {
		return false
	}
	if hex, ok := strings.CutPrefix(stem, localLinkPrefix); ok && len(hex) == 32 {
		_, err := uuid.Parse(hex)
		return err == nil
	}
	if id, ok := strings.CutPrefix(stem, workshopLinkPrefix); ok && id != "" {
		_, err := strconv.ParseUint(id, 10, 64)
		return err == nil
	}
	return false
}

// Push links every enabled package into the game's addon directory and
// rewrites addonlist.txt so the game loads exactly those links. Entries the
// user added to the manifest by hand are kept. Cleanup and manifest read
// failures are logged and do not stop the push.
func (r *Root) Push(gamePath string) (*PushResult, error) {
	if err := game.ValidatePath(r.fs, gamePath); err != nil {
		return nil, err
	}
	linker, ok := r.fs.(afero.Linker)
	if !ok {
		return nil, ErrSymlinkUnsupported
	}

	addonsDir := game.AddonsDir(gamePath)
	if err := r.fs.MkdirAll(addonsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create addons directory: %w", err)
	}

	res := &PushResult{}
	res.Remaining = r.deleteLinks(addonsDir)

	manifestPath := game.AddonListPath(gamePath)
	manifest := r.readManifest(manifestPath)
	kept := manifest.Children[:0]
	for _, e := range manifest.Children {
		if !isManagedLink(e.Key) {
			kept = append(kept, e)
		}
	}
	manifest.Children = kept
	for _, name := range res.Remaining {
		manifest.Set(name, manifestOff)
	}

	for _, n := range r.AllNodes() {
		a, ok := n.(VpkAddon)
		if !ok || !n.EnabledInHierarchy() {
			continue
		}
		vpkPath := a.VpkPath()
		if vpkPath == "" {
			res.Skipped = append(res.Skipped, a)
			continue
		}
		if exists, _ := afero.Exists(r.fs, vpkPath); !exists {
			res.Skipped = append(res.Skipped, a)
			continue
		}

		var link string
		switch v := a.(type) {
		case *LocalVpkAddon:
			link = localLinkName(v.ensureVpkID())
		case *WorkshopVpkAddon:
			link = v.LinkFileName()
		}
		if link == "" {
			res.Skipped = append(res.Skipped, a)
			continue
		}

		target, err := filepath.Abs(vpkPath)
		if err != nil {
			target = vpkPath
		}
		if err := linker.SymlinkIfPossible(target, filepath.Join(addonsDir, link)); err != nil {
			r.log.Warn("Failed to link addon", "name", n.FullName(), "link", link, "error", err)
			res.Skipped = append(res.Skipped, a)
			continue
		}
		manifest.Set(link, manifestOn)
		res.Linked = append(res.Linked, link)
	}

	if r.backups != nil {
		backup, err := r.backups.CreateBackup(manifestPath, ManifestBackupName)
		if err != nil {
			r.log.Warn("Failed to backup addon list", "path", manifestPath, "error", err)
		}
		res.Backup = backup
	}

	var buf bytes.Buffer
	if err := manifest.Write(&buf); err != nil {
		return res, fmt.Errorf("failed to encode addon list: %w", err)
	}
	if err := afero.WriteFile(r.fs, manifestPath, buf.Bytes(), 0644); err != nil {
		return res, fmt.Errorf("failed to write addon list: %w", err)
	}

	r.log.Info("Pushed addons", "game", gamePath, "linked", len(res.Linked),
		"remaining", len(res.Remaining), "skipped", len(res.Skipped))
	return res, nil
}

// deleteLinks removes the links a previous push created and returns the
// names of those that are still there
func (r *Root) deleteLinks(dir string) []string {
	entries, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		r.log.Warn("Failed to list addons directory", "path", dir, "error", err)
		return nil
	}

	var remaining []string
	for _, e := range entries {
		if e.Mode()&os.ModeSymlink == 0 || !isManagedLink(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := r.fs.Remove(path); err != nil {
			r.log.Warn("Failed to delete link file", "path", path, "error", err)
		}
		if r.linkExists(path) {
			remaining = append(remaining, e.Name())
		}
	}
	return remaining
}

func (r *Root) linkExists(path string) bool {
	if lst, ok := r.fs.(afero.Lstater); ok {
		_, _, err := lst.LstatIfPossible(path)
		return err == nil
	}
	exists, _ := afero.Exists(r.fs, path)
	return exists
}

// readManifest reads the manifest, falling back to an empty one
func (r *Root) readManifest(path string) *keyvalues.Node {
	empty := keyvalues.NewObject(manifestRootKey)
	f, err := r.fs.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.log.Warn("Failed to open addon list", "path", path, "error", err)
		}
		return empty
	}
	defer func() { _ = f.Close() }()

	manifest, err := keyvalues.Parse(f)
	if err != nil {
		r.log.Warn("Failed to parse addon list", "path", path, "error", err)
		return empty
	}
	if !manifest.IsObject() {
		return empty
	}
	return manifest
}
