package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/vpkctl/internal/addons"
	"github.com/bnema/vpkctl/internal/ui/progress"
)

var importCmd = &cobra.Command{
	Use:   "import [group]",
	Short: "Add the VPK files found in the library directory",
	Long: `Scan the library directory (or the directory of one group) for files and
directories no node owns yet, and create nodes for them:

  *.vpk                        a local addon
  *.workshop with a meta file  a workshop addon
  other directories            groups, created only when they hold addons

Examples:
  vpkctl import
  vpkctl import Maps/Campaigns`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			var created []addons.Node
			err := s.do(func() error {
				var group *addons.Group
				if len(args) == 1 {
					g, err := s.root.FindGroup(args[0])
					if err != nil {
						return err
					}
					group = g
				}
				var err error
				created, err = s.root.Import(group)
				for _, n := range created {
					progress.PrintComplete(fmt.Sprintf("%s (%s)", n.FullName(), addons.KindOf(n)))
				}
				return err
			})
			if err != nil {
				return fmt.Errorf("import stopped: %w", err)
			}
			if len(created) == 0 {
				fmt.Println("Nothing new found")
				return nil
			}
			progress.PrintSummary("%d node(s) imported", len(created))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
