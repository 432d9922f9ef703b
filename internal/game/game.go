// Package game locates the Left 4 Dead 2 installation and launches it
// through Steam.
package game

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/bnema/vpkctl/internal/keyvalues"
	"github.com/bnema/vpkctl/internal/logger"
)

const (
	// AppID is Left 4 Dead 2's Steam application id
	AppID = 550

	appIDFile     = "steam_appid.txt"
	installDir    = "Left 4 Dead 2"
	contentDir    = "left4dead2"
	addonsDir     = "addons"
	addonListFile = "addonlist.txt"
)

var (
	ErrInvalidGamePath = errors.New("invalid game path")
	ErrGameNotFound    = errors.New("left 4 dead 2 installation not found")
	ErrSteamNotFound   = errors.New("steam executable not found")
)

// Locator knows where vpkctl keeps its own files and where the game lives
type Locator struct {
	log      *log.Logger
	fs       afero.Fs
	home     string
	DataDir  string
	CacheDir string
	GamePath string
}

// New resolves the XDG directories. gamePath may be empty; Locate then
// probes the Steam libraries.
func New(log *log.Logger, fs afero.Fs, gamePath string) *Locator {
	homeDir, _ := os.UserHomeDir()

	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		cacheDir = filepath.Join(homeDir, ".cache")
	}

	l := &Locator{
		log:      logger.OrDiscard(log),
		fs:       fs,
		home:     homeDir,
		DataDir:  filepath.Join(dataDir, "vpkctl"),
		CacheDir: filepath.Join(cacheDir, "vpkctl"),
		GamePath: gamePath,
	}
	if l.fs == nil {
		l.fs = afero.NewOsFs()
	}

	l.log.Debug("Locator initialized",
		"data_dir", l.DataDir,
		"cache_dir", l.CacheDir,
		"game_path", l.GamePath,
	)
	return l
}

// EnsureDirs creates the data and cache directories
func (l *Locator) EnsureDirs() error {
	for _, dir := range []string{l.DataDir, l.CacheDir} {
		l.log.Debug("Creating directory", "path", dir)
		if err := l.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// BackupDir is where manifest backups are kept
func (l *Locator) BackupDir() string {
	return filepath.Join(l.DataDir, "backups")
}

// Locate returns the configured game path, or the first Steam library
// holding a valid installation
func (l *Locator) Locate() (string, error) {
	if l.GamePath != "" {
		if err := ValidatePath(l.fs, l.GamePath); err != nil {
			return "", err
		}
		return l.GamePath, nil
	}

	for _, lib := range l.steamLibraries() {
		candidate := filepath.Join(lib, "steamapps", "common", installDir)
		if err := ValidatePath(l.fs, candidate); err == nil {
			l.log.Debug("Found game installation", "path", candidate)
			l.GamePath = candidate
			return candidate, nil
		}
	}
	return "", ErrGameNotFound
}

// steamRoots are the usual Steam installation directories on Linux
func (l *Locator) steamRoots() []string {
	return []string{
		filepath.Join(l.home, ".local", "share", "Steam"),
		filepath.Join(l.home, ".steam", "steam"),
		filepath.Join(l.home, ".var", "app", "com.valvesoftware.Steam", ".local", "share", "Steam"),
	}
}

// steamLibraries lists library folders from every libraryfolders.vdf found,
// libraries that hold the game first
func (l *Locator) steamLibraries() []string {
	var withGame, others []string
	seen := make(map[string]bool)
	add := func(list *[]string, path string) {
		if path == "" || seen[path] {
			return
		}
		seen[path] = true
		*list = append(*list, path)
	}

	for _, root := range l.steamRoots() {
		vdf := filepath.Join(root, "steamapps", "libraryfolders.vdf")
		folders, err := l.readLibraryFolders(vdf)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				l.log.Warn("Failed to read Steam library folders", "path", vdf, "error", err)
			}
			add(&others, root)
			continue
		}
		for _, f := range folders {
			if f.hasGame {
				add(&withGame, f.path)
			} else {
				add(&others, f.path)
			}
		}
		add(&others, root)
	}
	return append(withGame, others...)
}

type libraryFolder struct {
	path    string
	hasGame bool
}

func (l *Locator) readLibraryFolders(path string) ([]libraryFolder, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, err
	}
	doc, err := keyvalues.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	root := doc.Get("libraryfolders")
	if root == nil {
		return nil, fmt.Errorf("%s: missing libraryfolders", path)
	}

	var folders []libraryFolder
	for _, entry := range root.Children {
		if !entry.IsObject() {
			continue
		}
		f := libraryFolder{path: entry.String("path")}
		if apps := entry.Get("apps"); apps != nil {
			f.hasGame = apps.Get(strconv.Itoa(AppID)) != nil
		}
		folders = append(folders, f)
	}
	return folders, nil
}

// ValidatePath accepts an absolute directory whose steam_appid.txt names
// the game
func ValidatePath(fs afero.Fs, path string) error {
	if path == "" || !filepath.IsAbs(path) {
		return fmt.Errorf("%w: %q is not absolute", ErrInvalidGamePath, path)
	}
	data, err := afero.ReadFile(fs, filepath.Join(path, appIDFile))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidGamePath, err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(AppID) {
		return fmt.Errorf("%w: %s is not a Left 4 Dead 2 installation", ErrInvalidGamePath, path)
	}
	return nil
}

// AddonsDir is the directory the game loads VPK addons from
func AddonsDir(gamePath string) string {
	return filepath.Join(gamePath, contentDir, addonsDir)
}

// AddonListPath is the manifest of enabled addons
func AddonListPath(gamePath string) string {
	return filepath.Join(gamePath, contentDir, addonListFile)
}

// Launch replaces the current process with `steam -applaunch 550`
func (l *Locator) Launch(args []string) error {
	steam, err := exec.LookPath("steam")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSteamNotFound, err)
	}

	cmdArgs := append([]string{steam, "-applaunch", strconv.Itoa(AppID)}, args...)
	l.log.Info("Launching Left 4 Dead 2", "steam", steam, "args", args)
	return syscall.Exec(steam, cmdArgs, os.Environ())
}
