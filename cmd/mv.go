package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bnema/vpkctl/internal/ui/progress"
)

var mvCmd = &cobra.Command{
	Use:   "mv <path> <group>",
	Short: "Move a node into another group",
	Long: `Move a node and its file into another group. Use / as the group to move
the node to the top level.

Moving is refused while a workshop check of the node runs.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			return s.do(func() error {
				n, err := s.root.Find(args[0])
				if err != nil {
					return err
				}
				g, err := s.root.FindGroup(args[1])
				if err != nil {
					return err
				}
				if err := n.MoveTo(g); err != nil {
					return err
				}
				progress.PrintComplete("Moved to " + n.FullName())
				return nil
			})
		})
	},
}

func init() {
	rootCmd.AddCommand(mvCmd)
}
