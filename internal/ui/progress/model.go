package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/vpkctl/internal/download"
	"github.com/bnema/vpkctl/internal/ui/styles"
)

// RefreshInterval is how often the rows poll their downloads
const RefreshInterval = 200 * time.Millisecond

type row struct {
	name string
	item download.Item
}

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Pause  key.Binding
	Cancel key.Binding
	Quit   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Pause:  key.NewBinding(key.WithKeys("p", " "), key.WithHelp("p", "pause/resume")),
		Cancel: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cancel")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// Model shows every download started while it runs, one row each
type Model struct {
	title   string
	rows    []row
	cursor  int
	closing bool
	done    bool

	keys        keyMap
	spinner     spinner.Model
	progressBar progress.Model
	width       int
}

// NewModel creates an empty downloads view
func NewModel(title string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Spinner

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(30),
		progress.WithoutPercentage(),
	)

	return Model{
		title:       title,
		keys:        defaultKeyMap(),
		spinner:     s,
		progressBar: p,
		width:       80,
	}
}

type (
	// AddItemMsg adds a row for a download
	AddItemMsg struct {
		Name string
		Item download.Item
	}

	// DoneMsg announces that no more downloads will be added. The model
	// quits once every row has finished.
	DoneMsg struct{}

	tickMsg time.Time
)

func tick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick(), tea.WindowSize())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.updateKeys(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = min(msg.Width-10, 40)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case AddItemMsg:
		m.rows = append(m.rows, row{name: msg.Name, item: msg.Item})
		return m, nil

	case DoneMsg:
		m.closing = true
		return m.maybeQuit(tick())

	case tickMsg:
		return m.maybeQuit(tick())
	}
	return m, nil
}

func (m Model) maybeQuit(next tea.Cmd) (tea.Model, tea.Cmd) {
	if m.closing && m.AllFinished() {
		m.done = true
		return m, tea.Quit
	}
	return m, next
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Pause):
		if item := m.selected(); item != nil {
			switch item.Status() {
			case download.StatusPaused:
				item.Resume()
			case download.StatusPreparing, download.StatusRunning:
				item.Pause()
			}
		}
	case key.Matches(msg, m.keys.Cancel):
		if item := m.selected(); item != nil && !item.Status().Finished() {
			item.Cancel()
		}
	}
	return m, nil
}

func (m Model) selected() download.Item {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return m.rows[m.cursor].item
}

// AllFinished reports whether every row reached a terminal state
func (m Model) AllFinished() bool {
	for _, r := range m.rows {
		if !r.item.Status().Finished() {
			return false
		}
	}
	return true
}

// Counts tallies the rows by outcome
func (m Model) Counts() (succeeded, failed, running int) {
	for _, r := range m.rows {
		switch r.item.Status() {
		case download.StatusSucceeded:
			succeeded++
		case download.StatusFailed, download.StatusCancelled:
			failed++
		default:
			running++
		}
	}
	return succeeded, failed, running
}

func (m Model) IsDone() bool { return m.done }

func (m Model) View() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Foreground(styles.Text).
		Bold(true)
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	if len(m.rows) == 0 {
		b.WriteString("  " + m.spinner.View() + " " + styles.MutedText.Render("Waiting for downloads..."))
		b.WriteString("\n\n")
	}

	for i, r := range m.rows {
		status := r.item.Status()
		state := StateOf(status)
		icon := StyledIcon(state)
		if state == StateInProgress {
			icon = m.spinner.View()
		}

		name := StepStyle(state).Render(r.name)
		if i == m.cursor {
			name = styles.Highlighted.Render(r.name)
		}
		fmt.Fprintf(&b, "  %s %s %s\n", icon, name, styles.MutedText.Render(status.String()))

		if !status.Finished() {
			b.WriteString("    " + m.progressBar.ViewAs(Percent(r.item)) + "  ")
		} else {
			b.WriteString("    ")
		}
		b.WriteString(styles.MutedText.Render(FormatTransfer(r.item)))
		if err := r.item.Err(); err != nil && status == download.StatusFailed {
			b.WriteString(" " + styles.ErrorText.Render(err.Error()))
		}
		b.WriteString("\n")
	}

	succeeded, failed, running := m.Counts()
	summary := fmt.Sprintf("%d running, %d done, %d failed", running, succeeded, failed)
	b.WriteString("\n" + styles.MutedText.Render(summary) + "\n")
	b.WriteString(styles.Help.Render("↑/↓:select  p:pause/resume  c:cancel  q:quit") + "\n")
	return b.String()
}
