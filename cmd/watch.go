package cmd

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bnema/vpkctl/internal/addons"
	"github.com/bnema/vpkctl/internal/download"
	"github.com/bnema/vpkctl/internal/ui/progress"
)

// watchChecks shows every download started by the running workshop checks
// until the checks are over or ctx ends
func (s *session) watchChecks(ctx context.Context, title string) error {
	feed := progress.NewFeed()
	s.sched.Do(func() {
		for _, a := range s.root.VpkAddons() {
			if w, ok := a.(*addons.WorkshopVpkAddon); ok && w.Download() != nil {
				feed.Add(w.FullName(), w.Download())
			}
		}
		s.root.OnDownloadStarted(func(a *addons.WorkshopVpkAddon, item download.Item) {
			feed.Add(a.FullName(), item)
		})
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	waitErr := make(chan error, 1)
	go func() {
		err := s.root.WaitChecks(ctx)
		feed.Done()
		waitErr <- err
	}()

	p := tea.NewProgram(progress.NewModel(title), tea.WithContext(ctx))
	feed.Attach(p)
	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running progress view: %w", err)
	}
	if m, ok := final.(progress.Model); ok && !m.IsDone() {
		// quit from the keyboard; the checks go on until the session closes
		cancel()
	}
	if err := <-waitErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// printProblems lists every node with problems and returns their count
func (s *session) printProblems() int {
	type entry struct {
		name     string
		messages []string
	}
	var found []entry
	s.sched.Do(func() {
		for _, n := range s.root.AllNodes() {
			// a group's children problem only repeats what its children report
			var msgs []string
			for _, p := range n.Problems() {
				if p.Kind() != addons.ProblemChildren {
					msgs = append(msgs, p.Message())
				}
			}
			if len(msgs) > 0 {
				found = append(found, entry{n.FullName(), msgs})
			}
		}
	})

	for _, e := range found {
		progress.PrintError(e.name)
		for _, msg := range e.messages {
			progress.PrintDetail(msg)
		}
	}
	return len(found)
}
