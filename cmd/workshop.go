package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bnema/vpkctl/internal/addons"
	"github.com/bnema/vpkctl/internal/ui/progress"
	"github.com/bnema/vpkctl/internal/workshop"
)

var (
	workshopGroup  string
	workshopLinked bool
	workshopNoWait bool
	workshopEnable bool
)

var autoUpdateValues = map[string]addons.AutoUpdateStrategy{
	"default": addons.AutoUpdateDefault,
	"on":      addons.AutoUpdateEnabled,
	"off":     addons.AutoUpdateDisabled,
}

var workshopCmd = &cobra.Command{
	Use:     "workshop",
	Aliases: []string{"ws"},
	Short:   "Add and manage Steam Workshop items",
}

var workshopAddCmd = &cobra.Command{
	Use:   "add <id|url>...",
	Short: "Add Workshop items and download them",
	Long: `Add Steam Workshop items to the library. Items are named after their title
once their details arrive, and their packages are downloaded.

Examples:
  vpkctl workshop add 123456789
  vpkctl workshop add https://steamcommunity.com/sharedfiles/filedetails/?id=123456789 --group Maps`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]uint64, 0, len(args))
		for _, arg := range args {
			id, err := workshop.ParsePublishedFileID(arg)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return withSession(func(s *session) error {
			return s.addWorkshopItems(ids)
		})
	},
}

var workshopCollectionCmd = &cobra.Command{
	Use:   "collection <id|url>",
	Short: "Add every item of a Workshop collection",
	Long: `Add every item of a Steam Workshop collection. Nested collections are
expanded; with --linked the collections it links to are followed as well.
Items already in the library are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := workshop.ParsePublishedFileID(args[0])
		if err != nil {
			return err
		}
		return withSession(func(s *session) error {
			ctx, cancel := signalContext()
			defer cancel()

			progress.PrintPending("Reading collection " + strconv.FormatUint(id, 10))
			ids, err := s.client.GetCollectionContent(ctx, id, workshopLinked)
			if err != nil {
				return fmt.Errorf("failed to read collection: %w", err)
			}
			progress.PrintComplete(fmt.Sprintf("%d item(s) in the collection", len(ids)))
			return s.addWorkshopItems(ids)
		})
	},
}

var workshopAutoUpdateCmd = &cobra.Command{
	Use:   "auto-update <path> [default|on|off]",
	Short: "Show or set whether an item follows new versions",
	Long: `Show or set whether a Workshop item downloads new versions during checks.
"default" follows the auto_update_workshop config key.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			return s.do(func() error {
				n, err := s.root.Find(args[0])
				if err != nil {
					return err
				}
				w, ok := n.(*addons.WorkshopVpkAddon)
				if !ok {
					return fmt.Errorf("%s is not a workshop item", n.FullName())
				}
				if len(args) == 2 {
					strategy, ok := autoUpdateValues[args[1]]
					if !ok {
						return fmt.Errorf("unknown auto update value %q (default, on or off)", args[1])
					}
					w.SetAutoUpdateStrategy(strategy)
				}
				fmt.Printf("%s: %s (updating: %t)\n", w.FullName(), w.AutoUpdateStrategy(), w.IsAutoUpdate())
				return nil
			})
		})
	},
}

// addWorkshopItems creates a node per id not in the library yet, then
// follows their checks
func (s *session) addWorkshopItems(ids []uint64) error {
	var added int
	err := s.do(func() error {
		group, err := s.root.FindGroup(workshopGroup)
		if err != nil {
			return err
		}

		known := make(map[uint64]string)
		for _, a := range s.root.VpkAddons() {
			if w, ok := a.(*addons.WorkshopVpkAddon); ok {
				if id, ok := w.PublishedFileID(); ok {
					known[id] = w.FullName()
				}
			}
		}

		for _, id := range ids {
			if name, ok := known[id]; ok {
				progress.PrintWarning(fmt.Sprintf("%d is already in the library as %s", id, name))
				continue
			}
			name := "workshop-" + strconv.FormatUint(id, 10)
			if group != nil {
				name = group.UniqueName(name)
			} else {
				name = s.root.UniqueName(name)
			}
			w, err := addons.NewWorkshopVpkAddon(s.root, group, name)
			if err != nil {
				return err
			}
			w.SetRequestAutoSetName(true)
			if workshopEnable {
				w.SetEnabled(true)
			}
			w.SetPublishedFileID(id)
			known[id] = w.FullName()
			added++
		}
		return nil
	})
	if err != nil {
		return err
	}
	if added == 0 {
		return nil
	}

	// the items are saved before downloading so an interrupted run keeps them
	if err := s.save(); err != nil {
		return err
	}
	if workshopNoWait {
		progress.PrintSummary("%d item(s) added; run vpkctl check to download them", added)
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()
	if err := s.watchChecks(ctx, "Downloading workshop items"); err != nil {
		return err
	}
	s.printProblems()
	progress.PrintSummary("%d item(s) added", added)
	return nil
}

func init() {
	for _, c := range []*cobra.Command{workshopAddCmd, workshopCollectionCmd} {
		c.Flags().StringVarP(&workshopGroup, "group", "g", "", "Add the items to this group")
		c.Flags().BoolVar(&workshopNoWait, "no-wait", false, "Do not wait for the downloads")
		c.Flags().BoolVarP(&workshopEnable, "enable", "e", false, "Enable the new items")
	}
	workshopCollectionCmd.Flags().BoolVar(&workshopLinked, "linked", false, "Follow linked collections too")

	workshopCmd.AddCommand(workshopAddCmd)
	workshopCmd.AddCommand(workshopCollectionCmd)
	workshopCmd.AddCommand(workshopAutoUpdateCmd)
	rootCmd.AddCommand(workshopCmd)
}
