package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bnema/vpkctl/internal/game"
	"github.com/bnema/vpkctl/internal/ui/progress"
)

var launchNoPush bool

var launchCmd = &cobra.Command{
	Use:     "launch [-- game args]",
	Aliases: []string{"start", "run", "play"},
	Short:   "Push the enabled addons and start Left 4 Dead 2",
	Long: `Push the enabled addons into the game, then start it through Steam.

Arguments after -- are passed on to the game, for example:
  vpkctl launch -- -novid -console`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var locator *game.Locator
		err := withSession(func(s *session) error {
			locator = s.locator
			if launchNoPush {
				return nil
			}
			progress.PrintTitle("Pushing addons")
			_, err := s.push()
			return err
		})
		if err != nil {
			return err
		}

		// the session must be closed first: Launch does not return on success
		progress.PrintComplete("Starting Left 4 Dead 2...")
		return locator.Launch(args)
	},
}

func init() {
	launchCmd.Flags().BoolVar(&launchNoPush, "no-push", false, "Start the game without pushing")
	rootCmd.AddCommand(launchCmd)
}
