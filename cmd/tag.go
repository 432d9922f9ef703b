package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bnema/vpkctl/internal/addons"
	"github.com/bnema/vpkctl/internal/ui/progress"
	"github.com/bnema/vpkctl/internal/ui/styles"
)

var tagBuiltIn bool

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Label nodes with tags",
	Long: `Tags label nodes for searching. A node also carries the tags of the
groups above it; search with --tag to filter on them.

Examples:
  vpkctl tag add Maps/Campaigns Campaigns Co-op
  vpkctl tag rm "Maps/Dead Center" Co-op
  vpkctl tag rename Co-op Coop
  vpkctl tag list Maps/Campaigns`,
}

var tagAddCmd = &cobra.Command{
	Use:   "add <path> <tag>...",
	Short: "Add tags to a node",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			return s.do(func() error {
				n, err := s.root.Find(args[0])
				if err != nil {
					return err
				}
				for _, tag := range args[1:] {
					added, err := n.AddTag(tag)
					if err != nil {
						return err
					}
					if !added {
						fmt.Println(styles.MutedText.Render(fmt.Sprintf("%s already tagged %q", n.FullName(), tag)))
					}
				}
				progress.PrintComplete(fmt.Sprintf("%s: %s", n.FullName(), strings.Join(n.Tags(), ", ")))
				return nil
			})
		})
	},
}

var tagRemoveCmd = &cobra.Command{
	Use:     "remove <path> <tag>...",
	Aliases: []string{"rm"},
	Short:   "Remove tags from a node",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			return s.do(func() error {
				n, err := s.root.Find(args[0])
				if err != nil {
					return err
				}
				for _, tag := range args[1:] {
					if !n.RemoveTag(tag) {
						fmt.Println(styles.MutedText.Render(fmt.Sprintf("%s is not tagged %q", n.FullName(), tag)))
					}
				}
				progress.PrintComplete("Tags of " + n.FullName() + " updated")
				return nil
			})
		})
	},
}

var tagRenameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a tag on every node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			return s.do(func() error {
				count, err := s.root.RenameTagEverywhere(args[0], args[1])
				if err != nil {
					return err
				}
				progress.PrintComplete(fmt.Sprintf("Renamed %q to %q on %d node(s)", args[0], args[1], count))
				return nil
			})
		})
	},
}

var tagListCmd = &cobra.Command{
	Use:     "list [path]",
	Aliases: []string{"ls"},
	Short:   "List the tags of a node, or every tag in use",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if tagBuiltIn {
			for _, t := range addons.BuiltInTags {
				fmt.Println(t)
			}
			return nil
		}
		return withSession(func(s *session) error {
			s.readOnly = true
			return s.do(func() error {
				if len(args) == 0 {
					for _, t := range s.root.AllTags() {
						fmt.Println(t)
					}
					return nil
				}
				n, err := s.root.Find(args[0])
				if err != nil {
					return err
				}
				for _, t := range n.TagsInHierarchy() {
					if n.HasTag(t) {
						fmt.Println(t)
					} else {
						fmt.Println(styles.MutedText.Render(t + " (inherited)"))
					}
				}
				return nil
			})
		})
	},
}

func init() {
	tagListCmd.Flags().BoolVar(&tagBuiltIn, "builtin", false, "List the suggested tags instead")
	tagCmd.AddCommand(tagAddCmd, tagRemoveCmd, tagRenameCmd, tagListCmd)
	rootCmd.AddCommand(tagCmd)
}
