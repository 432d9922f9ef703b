package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/bnema/vpkctl/internal/config"
	"github.com/bnema/vpkctl/internal/logger"
	"github.com/bnema/vpkctl/internal/ui/progress"
)

// Version info set via ldflags at build time
var (
	version = "dev"
	commit  = "unknown"
)

var (
	verbose    bool
	configDir  string
	libraryDir string

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:     "vpkctl",
	Short:   "Left 4 Dead 2 addon manager for Linux",
	Version: version + " (" + commit + ")",
	Long: `vpkctl keeps a library of Left 4 Dead 2 VPK addons organised in groups,
downloads Steam Workshop items, and links the enabled addons into the game.

Quick start:
  vpkctl import                 Pick up VPK files dropped into the library
  vpkctl workshop add <id|url>  Download a Workshop item
  vpkctl tree                   Browse and toggle addons
  vpkctl launch                 Push the enabled addons and start the game`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Init(verbose); err != nil {
			return err
		}
		cfg, path, err := config.Load(config.LoadOptions{ConfigDir: configDir})
		if err != nil {
			return err
		}
		if libraryDir != "" {
			cfg.LibraryDir = libraryDir
		}
		appConfig = cfg
		progress.SetNerdFonts(cfg.UI.NerdFonts)

		getLogger().Debug("Configuration loaded", "file", path, "library", cfg.LibraryDir)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, progress.FormatStep(progress.StateError, err.Error()))
		os.Exit(1)
	}
}

func getLogger() *log.Logger {
	return logger.OrDiscard(logger.Log)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Read config.toml from this directory")
	rootCmd.PersistentFlags().StringVarP(&libraryDir, "library", "L", "", "Use this library directory instead of the configured one")
}
