package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/vpkctl/internal/addons"
)

var randomCmd = &cobra.Command{
	Use:   "random <group>",
	Short: "Enable one random child of a single-random group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			return s.do(func() error {
				g, err := s.root.FindGroup(args[0])
				if err != nil {
					return err
				}
				if g == nil || g.EnableStrategy() != addons.StrategySingleRandom {
					return fmt.Errorf("%s is not a single-random group", args[0])
				}
				if !g.EnableRandomChild() {
					return fmt.Errorf("%s has no children", g.FullName())
				}
				printState(g)
				return nil
			})
		})
	},
}

func init() {
	rootCmd.AddCommand(randomCmd)
}
