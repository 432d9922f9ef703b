package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bnema/vpkctl/internal/addons"
	"github.com/bnema/vpkctl/internal/ui/progress"
	"github.com/bnema/vpkctl/internal/ui/styles"
)

var enableCmd = &cobra.Command{
	Use:   "enable <path>...",
	Short: "Turn nodes on",
	Long: `Turn nodes on. Paths are slash separated names, such as Maps/Dead Center.

Enabling a child of a "single" group turns the group on and its other
children off.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(args, true)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable <path>...",
	Short: "Turn nodes off",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(args, false)
	},
}

func setEnabled(paths []string, enabled bool) error {
	return withSession(func(s *session) error {
		return s.do(func() error {
			for _, path := range paths {
				n, err := s.root.Find(path)
				if err != nil {
					return err
				}
				n.SetEnabled(enabled)
				printState(n)
			}
			return nil
		})
	})
}

// printState prints the flag of n and, for a group, of its children
func printState(n addons.Node) {
	progress.PrintComplete(styles.FormatEnabled(styles.NodeState(n.Enabled(), n.EnabledInHierarchy())) + " " + n.FullName())
	if g, ok := n.(*addons.Group); ok {
		for _, c := range g.Nodes() {
			progress.PrintDetail(styles.FormatEnabled(styles.NodeState(c.Enabled(), c.EnabledInHierarchy())) + " " + c.Name())
		}
	}
}

func init() {
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
}
