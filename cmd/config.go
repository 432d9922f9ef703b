package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bnema/vpkctl/internal/config"
	"github.com/bnema/vpkctl/internal/logger"
	"github.com/bnema/vpkctl/internal/ui/progress"
	"github.com/bnema/vpkctl/internal/ui/styles"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: fmt.Sprintf(`Show the effective configuration. Values come from the config file, then
from %s_* environment variables (a .env file in the working directory is
read too), then from flags.`, config.EnvPrefix),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig
		values := map[string]string{
			"library_dir":            cfg.LibraryDir,
			"game_path":              cfg.GamePath,
			"auto_update_workshop":   fmt.Sprint(cfg.AutoUpdateWorkshop),
			"download.chunks":        fmt.Sprint(cfg.Download.Chunks),
			"download.save_interval": cfg.Download.SaveInterval.String(),
			"http.timeout":           cfg.HTTP.Timeout.String(),
			"http.user_agent":        cfg.HTTP.UserAgent,
			"ui.nerd_fonts":          fmt.Sprint(cfg.UI.NerdFonts),
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "%s\t%s\n", styles.Title.Render("KEY"), styles.Title.Render("VALUE"))
		for _, k := range config.Keys() {
			v := values[k]
			if v == "" {
				v = styles.MutedText.Render("(unset)")
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\n", k, v)
		}
		_ = w.Flush()
		fmt.Printf("\nConfig file: %s\n", config.Path(configDir))
		fmt.Printf("Log file:    %s\n", logger.GetLogPath())
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write a key to the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Set(configDir, args[0], args[1]); err != nil {
			return err
		}
		progress.PrintComplete(fmt.Sprintf("%s = %s", args[0], args[1]))
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the known keys",
	Run: func(cmd *cobra.Command, args []string) {
		for _, k := range config.Keys() {
			fmt.Println(k)
		}
	},
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configKeysCmd)
	rootCmd.AddCommand(configCmd)
}
