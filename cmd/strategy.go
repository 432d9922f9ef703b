package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/vpkctl/internal/addons"
)

var strategyCmd = &cobra.Command{
	Use:   "strategy <group> [none|single|single-random|all]",
	Short: "Show or set how a group enables its children",
	Long: `Show or set the enable strategy of a group:

  none           children are turned on and off freely
  single         at most one child is on; enabling one turns the others off
  single-random  like single; vpkctl random picks the child
  all            every child follows the group`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			return s.do(func() error {
				g, err := s.root.FindGroup(args[0])
				if err != nil {
					return err
				}
				if g == nil {
					return fmt.Errorf("the top level has no enable strategy")
				}
				if len(args) == 2 {
					strategy, err := addons.ParseEnableStrategy(args[1])
					if err != nil {
						return err
					}
					g.SetEnableStrategy(strategy)
				}
				fmt.Printf("%s: %s\n", g.FullName(), g.EnableStrategy())
				return nil
			})
		})
	},
}

func init() {
	rootCmd.AddCommand(strategyCmd)
}
