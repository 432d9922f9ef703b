package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bnema/vpkctl/internal/addons"
	"github.com/bnema/vpkctl/internal/ui/progress"
	"github.com/bnema/vpkctl/internal/ui/styles"
	"github.com/bnema/vpkctl/internal/ui/tree"
)

var infoImage string

var infoCmd = &cobra.Command{
	Use:   "info <path>",
	Short: "Show the details of a node",
	Long: `Show the details of a node: state, files, the addoninfo.txt of its
package and its problems from the last check.

With --image the preview image of a VPK addon is written to a file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			s.readOnly = true
			var (
				d     tree.Details
				addon addons.VpkAddon
			)
			err := s.do(func() error {
				n, err := s.root.Find(args[0])
				if err != nil {
					return err
				}
				// a workshop check talks to Steam; the last known state is enough here
				if _, ok := n.(*addons.WorkshopVpkAddon); !ok {
					n.Check()
				}
				d = tree.Describe(n)
				addon, _ = n.(addons.VpkAddon)
				return nil
			})
			if err != nil {
				return err
			}

			fmt.Println(styles.Title.Render(d.FullName))
			fmt.Print(tree.FormatDetails(d))

			if infoImage == "" {
				return nil
			}
			if addon == nil {
				return fmt.Errorf("%s has no image", d.FullName)
			}
			ctx, cancel := signalContext()
			defer cancel()
			data, err := addon.Image(ctx)
			if err != nil {
				return fmt.Errorf("failed to get image: %w", err)
			}
			if data == nil {
				progress.PrintWarning("No image found")
				return nil
			}
			if err := os.WriteFile(infoImage, data, 0644); err != nil {
				return err
			}
			progress.PrintComplete(fmt.Sprintf("Image written to %s (%s)", infoImage, styles.FormatSize(int64(len(data)))))
			return nil
		})
	},
}

func init() {
	infoCmd.Flags().StringVarP(&infoImage, "image", "o", "", "Write the preview image to this file")
	rootCmd.AddCommand(infoCmd)
}
