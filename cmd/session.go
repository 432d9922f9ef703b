package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/bnema/vpkctl/internal/addons"
	"github.com/bnema/vpkctl/internal/config"
	"github.com/bnema/vpkctl/internal/download"
	"github.com/bnema/vpkctl/internal/game"
	"github.com/bnema/vpkctl/internal/workshop"
)

// session is an opened library. Tree access goes through do, which runs on
// the scheduler goroutine.
type session struct {
	cfg      *config.Config
	log      *log.Logger
	fs       afero.Fs
	locator  *game.Locator
	client   *workshop.Client
	sched    *addons.LoopScheduler
	root     *addons.Root
	readOnly bool
}

func openSession() (*session, error) {
	cfg := appConfig
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	l := getLogger()
	fs := afero.NewOsFs()

	locator := game.New(l, fs, cfg.GamePath)
	if err := locator.EnsureDirs(); err != nil {
		return nil, err
	}
	if err := fs.MkdirAll(cfg.LibraryDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create library directory: %w", err)
	}

	httpClient := workshop.NewHTTPClient(cfg.HTTP.Timeout)
	client := workshop.NewClient(workshop.Options{
		HTTPClient: httpClient,
		UserAgent:  cfg.HTTP.UserAgent,
		Logger:     l,
	})
	downloads := download.NewService(download.Options{
		Fs:           fs,
		Chunks:       cfg.Download.Chunks,
		SaveInterval: cfg.Download.SaveInterval,
		UserAgent:    cfg.HTTP.UserAgent,
		Logger:       l,
	})

	sched := addons.NewLoopScheduler()
	root := addons.NewRoot(cfg.LibraryDir, addons.RootOptions{
		Fs:         fs,
		Scheduler:  sched,
		Workshop:   client,
		Downloader: downloads,
		Logger:     l,
		BackupDir:  locator.BackupDir(),
	})

	var err error
	sched.Do(func() {
		root.SetAutoUpdateWorkshop(cfg.AutoUpdateWorkshop)
		err = root.Load()
	})
	if err != nil {
		sched.Close()
		return nil, fmt.Errorf("failed to load library: %w", err)
	}

	return &session{
		cfg:     cfg,
		log:     l,
		fs:      fs,
		locator: locator,
		client:  client,
		sched:   sched,
		root:    root,
	}, nil
}

// withSession opens the library, runs fn and closes it again
func withSession(fn func(s *session) error) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()
	return fn(s)
}

// do runs fn on the scheduler
func (s *session) do(fn func() error) error {
	var err error
	s.sched.Do(func() { err = fn() })
	return err
}

// save writes the tree when something changed
func (s *session) save() error {
	return s.do(func() error {
		if !s.root.SaveRequested() {
			return nil
		}
		return s.root.Save()
	})
}

// close saves pending changes, stops background work and the scheduler
func (s *session) close() {
	if !s.readOnly {
		if err := s.save(); err != nil {
			s.log.Error("Failed to save library", "error", err)
		}
	}
	var done <-chan struct{}
	s.sched.Do(func() { done = s.root.Close() })
	<-done
	s.sched.Close()
}

func (s *session) find(path string) (addons.Node, error) {
	var n addons.Node
	err := s.do(func() error {
		var err error
		n, err = s.root.Find(path)
		return err
	})
	return n, err
}

// gamePath resolves the game directory from the config or the Steam
// libraries
func (s *session) gamePath() (string, error) {
	path, err := s.locator.Locate()
	if err != nil {
		return "", fmt.Errorf("%w (set game_path with `vpkctl config set game_path <dir>`)", err)
	}
	return path, nil
}

// signalContext is cancelled on Ctrl+C
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
