package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bnema/vpkctl/internal/addons"
	"github.com/bnema/vpkctl/internal/ui/progress"
)

var renameCmd = &cobra.Command{
	Use:   "rename <path> <name>",
	Short: "Rename a node and its file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			return s.do(func() error {
				n, err := s.root.Find(args[0])
				if err != nil {
					return err
				}
				if err := n.SetName(args[1]); err != nil {
					return err
				}
				// a workshop item named by hand keeps its name
				if w, ok := n.(*addons.WorkshopVpkAddon); ok {
					w.SetRequestAutoSetName(false)
				}
				progress.PrintComplete("Renamed to " + n.FullName())
				return nil
			})
		})
	},
}

func init() {
	rootCmd.AddCommand(renameCmd)
}
