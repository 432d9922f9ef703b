package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bnema/vpkctl/internal/ui/styles"
	"github.com/bnema/vpkctl/internal/ui/tree"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List every node of the library",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			var rows []tree.Row
			s.sched.Do(func() { rows = tree.AllRows(s.root) })

			if len(rows) == 0 {
				fmt.Println("The library is empty")
				fmt.Println("\nAdd addons with: vpkctl import, or vpkctl workshop add <id|url>")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				styles.Title.Render("NAME"),
				styles.Title.Render("ON"),
				styles.Title.Render("KIND"),
				styles.Title.Render("NOTES"),
			)
			for _, r := range rows {
				name := strings.Repeat("  ", r.Depth) + r.Name
				if r.IsGroup() {
					name += "/"
				}
				notes := strings.TrimSpace(styles.FormatStrategy(r.Strategy) + " " + styles.FormatProblems(r.Problems))
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					name,
					styles.FormatEnabled(styles.NodeState(r.Enabled, r.InHierarchy)),
					string(r.Kind),
					notes,
				)
			}
			_ = w.Flush()

			fmt.Printf("\n%d node(s) in %s\n", len(rows), s.cfg.LibraryDir)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
