package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/vpkctl/internal/addons"
	"github.com/bnema/vpkctl/internal/ui/progress"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Link the enabled addons into the game",
	Long: `Replace the links of the previous push in left4dead2/addons with links to
every enabled addon, and rewrite addonlist.txt so the game loads them.

Files and manifest entries vpkctl did not create are left alone. The previous
addonlist.txt is backed up first; see vpkctl backup list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			_, err := s.push()
			return err
		})
	},
}

// push runs Root.Push against the located game and prints the result
func (s *session) push() (*addons.PushResult, error) {
	gamePath, err := s.gamePath()
	if err != nil {
		return nil, err
	}

	var (
		res     *addons.PushResult
		skipped []string
	)
	err = s.do(func() error {
		var err error
		res, err = s.root.Push(gamePath)
		if err != nil {
			return err
		}
		for _, a := range res.Skipped {
			skipped = append(skipped, a.FullName())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("push failed: %w", err)
	}

	for _, name := range skipped {
		progress.PrintWarning(name + " has no package file, skipped")
	}
	for _, link := range res.Remaining {
		progress.PrintWarning(link + " could not be removed and was turned off")
	}
	if res.Backup != "" {
		progress.PrintDetail("previous addonlist.txt saved to " + res.Backup)
	}
	progress.PrintComplete(fmt.Sprintf("%d addon(s) linked into %s", len(res.Linked), gamePath))
	return res, nil
}

func init() {
	rootCmd.AddCommand(pushCmd)
}
