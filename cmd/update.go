package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/vpkctl/internal/addons"
)

var updateAll bool

var updateCmd = &cobra.Command{
	Use:     "update [path]...",
	Aliases: []string{"upgrade"},
	Short:   "Download new versions of workshop items",
	Long: `Check workshop items and download the ones that are missing or outdated.
Without paths every workshop item is checked; a group path covers every item
below it. Items that do not auto update keep
their package unless --all is given.

Running downloads can be paused (p) and cancelled (c) from the progress view.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			ctx, cancel := signalContext()
			defer cancel()

			var items []*addons.WorkshopVpkAddon
			err := s.do(func() error {
				nodes := s.root.AllNodes()
				if len(args) > 0 {
					nodes = nil
					for _, path := range args {
						n, err := s.root.Find(path)
						if err != nil {
							return err
						}
						nodes = append(nodes, n)
					}
				}
				items = addons.WorkshopItems(nodes...)
				if updateAll {
					for _, w := range items {
						if !w.IsAutoUpdate() {
							// one-off: the check reads the strategy when it starts
							saved := w.AutoUpdateStrategy()
							w.SetAutoUpdateStrategy(addons.AutoUpdateEnabled)
							defer w.SetAutoUpdateStrategy(saved)
						}
					}
				}
				for _, w := range items {
					w.Check()
				}
				return nil
			})
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("No workshop items to update")
				return nil
			}

			if err := s.watchChecks(ctx, fmt.Sprintf("Updating %d workshop item(s)", len(items))); err != nil {
				return err
			}
			s.printProblems()
			return nil
		})
	},
}

func init() {
	updateCmd.Flags().BoolVarP(&updateAll, "all", "a", false, "Also update items whose auto update is off")
	rootCmd.AddCommand(updateCmd)
}
