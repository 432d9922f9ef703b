package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bnema/vpkctl/internal/addons"
	"github.com/bnema/vpkctl/internal/game"
	"github.com/bnema/vpkctl/internal/ui/progress"
)

var backupYes bool

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage addonlist.txt backups",
	Long: fmt.Sprintf(`Every push saves the previous left4dead2/addonlist.txt first. The %d
newest copies are kept.`, addons.MaxBackupsPerFile),
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the saved copies, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			s.readOnly = true
			backups, err := s.root.Backups().ListBackups(addons.ManifestBackupName)
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				fmt.Println("No backups yet")
				return nil
			}
			for i, id := range backups {
				if i == 0 {
					fmt.Printf("%s (latest)\n", id)
					continue
				}
				fmt.Println(id)
			}
			fmt.Printf("\nStored in %s\n", s.root.Backups().Dir(addons.ManifestBackupName))
			return nil
		})
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore [id]",
	Short: "Copy a backup over the game's addonlist.txt",
	Long: `Copy a backup over left4dead2/addonlist.txt. Without an id the latest
backup is restored. The links of the last push stay in the addons directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			s.readOnly = true
			gamePath, err := s.gamePath()
			if err != nil {
				return err
			}

			bm := s.root.Backups()
			var id string
			if len(args) == 1 {
				id = args[0]
			} else if id, err = bm.GetLatestBackup(addons.ManifestBackupName); err != nil {
				return err
			}

			dst := game.AddonListPath(gamePath)
			if !backupYes {
				fmt.Printf("Overwrite %s with backup %s? [y/N] ", dst, id)
				reader := bufio.NewReader(os.Stdin)
				response, _ := reader.ReadString('\n')
				response = strings.TrimSpace(strings.ToLower(response))
				if response != "y" && response != "yes" {
					fmt.Println("Cancelled")
					return nil
				}
			}

			if err := bm.RestoreBackup(addons.ManifestBackupName, id, dst); err != nil {
				return err
			}
			progress.PrintComplete("Restored " + id)
			return nil
		})
	},
}

var backupDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			s.readOnly = true
			if err := s.root.Backups().DeleteBackup(addons.ManifestBackupName, args[0]); err != nil {
				return fmt.Errorf("%w: %s", addons.ErrBackupNotFound, args[0])
			}
			progress.PrintComplete("Deleted " + args[0])
			return nil
		})
	},
}

func init() {
	backupRestoreCmd.Flags().BoolVarP(&backupYes, "yes", "y", false, "Do not ask for confirmation")
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	backupCmd.AddCommand(backupDeleteCmd)
	rootCmd.AddCommand(backupCmd)
}
