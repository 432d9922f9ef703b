package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/bnema/vpkctl/internal/ui/tree"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Browse the library interactively",
	Long: `Open an interactive view of the library.

Keys:
  ↑/↓ or j/k   move
  →/←          open or close a group
  space        enable or disable
  r            enable a random child of a single-random group
  c            check the node
  i            node details
  /            search (text between slashes is a regular expression)
  s            save
  q            quit (changes are saved)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			model := tree.NewModel(s.root, s.sched.Do)
			p := tea.NewProgram(model, tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("error running TUI: %w", err)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)
}
