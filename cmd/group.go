package cmd

import (
	"path"

	"github.com/spf13/cobra"

	"github.com/bnema/vpkctl/internal/addons"
	"github.com/bnema/vpkctl/internal/ui/progress"
)

var groupStrategy string

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage groups",
}

var groupNewCmd = &cobra.Command{
	Use:   "new <path>",
	Short: "Create a group and its directory",
	Long: `Create a group. The parent groups must exist already.

Examples:
  vpkctl group new Maps
  vpkctl group new Maps/Campaigns --strategy single`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		strategy, err := addons.ParseEnableStrategy(groupStrategy)
		if err != nil {
			return err
		}
		return withSession(func(s *session) error {
			return s.do(func() error {
				parentPath, name := path.Split(path.Clean("/" + args[0]))
				parent, err := s.root.FindGroup(parentPath)
				if err != nil {
					return err
				}
				g, err := addons.NewGroup(s.root, parent, name)
				if err != nil {
					return err
				}
				if err := s.fs.MkdirAll(g.FullFilePath(), 0755); err != nil {
					g.Destroy()
					return err
				}
				g.SetEnableStrategy(strategy)
				progress.PrintComplete("Created group " + g.FullName())
				return nil
			})
		})
	},
}

func init() {
	groupNewCmd.Flags().StringVarP(&groupStrategy, "strategy", "s", "none", "Enable strategy: none, single, single-random or all")
	groupCmd.AddCommand(groupNewCmd)
	rootCmd.AddCommand(groupCmd)
}
