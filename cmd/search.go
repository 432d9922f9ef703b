package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/vpkctl/internal/addons"
	"github.com/bnema/vpkctl/internal/ui/styles"
)

var (
	searchRegex      bool
	searchIgnoreCase bool
	searchFlatten    bool
	searchIn         string
	searchTags       []string
	searchTagMode    string
)

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Find nodes by name",
	Long: `Find nodes whose name contains text. A group matches when one of its
descendants does, unless --flatten lists the matching addons themselves.

Examples:
  vpkctl search -i tank
  vpkctl search --regex '^c[0-9]+m' --in Maps --flatten
  vpkctl search "" --tag Tank --tag Witch --tag-mode all`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			s.readOnly = true
			ctx, cancel := signalContext()
			defer cancel()

			mode, err := addons.ParseTagFilterMode(searchTagMode)
			if err != nil {
				return err
			}

			var within []addons.Node
			if searchIn != "" {
				err := s.do(func() error {
					g, err := s.root.FindGroup(searchIn)
					if err != nil {
						return err
					}
					if g != nil {
						within = g.Nodes()
					}
					return nil
				})
				if err != nil {
					return err
				}
			}

			matches, err := s.root.Search(ctx, within, args[0], addons.SearchOptions{
				Regex:      searchRegex,
				IgnoreCase: searchIgnoreCase,
				Flatten:    searchFlatten,
				Tags:       searchTags,
				TagMode:    mode,
			})
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				fmt.Println("No match")
				return nil
			}
			for _, m := range matches {
				if m.IsGroup {
					fmt.Println(styles.GroupName.Render(m.FullName + "/"))
				} else {
					fmt.Println(styles.AddonName.Render(m.FullName))
				}
			}
			return nil
		})
	},
}

func init() {
	searchCmd.Flags().BoolVarP(&searchRegex, "regex", "r", false, "Treat text as a regular expression")
	searchCmd.Flags().BoolVarP(&searchIgnoreCase, "ignore-case", "i", false, "Ignore case")
	searchCmd.Flags().BoolVarP(&searchFlatten, "flatten", "f", false, "List matching addons instead of their groups")
	searchCmd.Flags().StringVar(&searchIn, "in", "", "Search inside this group only")
	searchCmd.Flags().StringArrayVarP(&searchTags, "tag", "t", nil, "Only nodes tagged with this, directly or through a group (repeatable)")
	searchCmd.Flags().StringVar(&searchTagMode, "tag-mode", "any", "How --tag filters: any, all or none")
	rootCmd.AddCommand(searchCmd)
}
