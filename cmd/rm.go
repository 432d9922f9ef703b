package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bnema/vpkctl/internal/ui/progress"
)

var (
	rmFiles bool
	rmYes   bool
)

var rmCmd = &cobra.Command{
	Use:     "rm <path>...",
	Aliases: []string{"remove"},
	Short:   "Remove nodes from the library",
	Long: `Remove nodes, with their children, from the library. Files stay on disk
unless --files is given; a later vpkctl import picks them up again.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if rmFiles && !rmYes {
			fmt.Printf("Delete %s and their files? [y/N] ", strings.Join(args, ", "))
			reader := bufio.NewReader(os.Stdin)
			response, _ := reader.ReadString('\n')
			response = strings.TrimSpace(strings.ToLower(response))
			if response != "y" && response != "yes" {
				fmt.Println("Cancelled")
				return nil
			}
		}

		return withSession(func(s *session) error {
			var waits []<-chan struct{}
			var names []string
			err := s.do(func() error {
				for _, path := range args {
					n, err := s.root.Find(path)
					if err != nil {
						return err
					}
					names = append(names, n.FullName())
					if rmFiles {
						waits = append(waits, n.DestroyWithFile())
					} else {
						waits = append(waits, n.Destroy())
					}
				}
				return nil
			})
			for _, done := range waits {
				<-done
			}
			for _, name := range names {
				progress.PrintComplete("Removed " + name)
			}
			return err
		})
	},
}

func init() {
	rmCmd.Flags().BoolVar(&rmFiles, "files", false, "Delete the backing files too")
	rmCmd.Flags().BoolVarP(&rmYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(rmCmd)
}
