package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bnema/vpkctl/internal/ui/progress"
)

var checkNoProgress bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate every node and refresh workshop items",
	Long: `Check every node of the library and report its problems: missing files,
invalid packages, enable strategy violations and workshop failures.

Workshop items are compared with the Steam Workshop, and outdated or missing
packages are downloaded before the report is printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			ctx, cancel := signalContext()
			defer cancel()

			s.sched.Do(s.root.CheckAll)
			if checkNoProgress {
				if err := s.root.WaitChecks(ctx); err != nil {
					return err
				}
			} else if err := s.watchChecks(ctx, "Checking workshop items"); err != nil {
				return err
			}

			if n := s.printProblems(); n > 0 {
				progress.PrintSummary("%d node(s) with problems", n)
				return nil
			}
			progress.PrintComplete("No problems found")
			return nil
		})
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkNoProgress, "no-progress", false, "Do not show the download view")
	rootCmd.AddCommand(checkCmd)
}
