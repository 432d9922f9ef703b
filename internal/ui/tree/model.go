// Package tree is the interactive browser of the addon tree
package tree

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bnema/vpkctl/internal/addons"
	"github.com/bnema/vpkctl/internal/ui/styles"
)

type viewState int

const (
	viewTree viewState = iota
	viewSearchInput
	viewSearchResults
	viewInfo
)

// RunFunc runs fn on the tree scheduler and waits for it, such as
// (*addons.LoopScheduler).Do
type RunFunc func(fn func())

// Model is the tree browser. Every tree access goes through run, inside
// commands, so the view itself only ever reads copied rows.
type Model struct {
	root *addons.Root
	run  RunFunc
	keys KeyMap

	state    viewState
	rows     []Row
	results  []Row
	cursor   int
	expanded map[addons.NodeID]bool
	details  *Details

	search  textinput.Model
	spinner spinner.Model
	busy    bool

	statusMsg string
	errorMsg  string
	height    int
}

func NewModel(root *addons.Root, run RunFunc) Model {
	ti := textinput.New()
	ti.Placeholder = "name or /regex/"
	ti.CharLimit = 256
	ti.Width = 40

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Spinner

	return Model{
		root:     root,
		run:      run,
		keys:     DefaultKeyMap(),
		expanded: make(map[addons.NodeID]bool),
		search:   ti,
		spinner:  s,
		height:   24,
	}
}

// Messages
type (
	rowsMsg    struct{ rows []Row }
	resultsMsg struct{ rows []Row }
	detailsMsg struct{ details Details }
	statusMsg  string
	errMsg     struct{ err error }
	mutatedMsg struct {
		status string
		err    error
		rows   []Row
	}
)

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), m.spinner.Tick)
}

func (m Model) snapshotExpanded() map[addons.NodeID]bool {
	expanded := make(map[addons.NodeID]bool, len(m.expanded))
	for id, v := range m.expanded {
		expanded[id] = v
	}
	return expanded
}

func (m Model) refresh() tea.Cmd {
	root, run, expanded := m.root, m.run, m.snapshotExpanded()
	return func() tea.Msg {
		var rows []Row
		run(func() { rows = BuildRows(root, expanded) })
		return rowsMsg{rows}
	}
}

// mutate runs fn on the scheduler against n, then reloads the rows in the
// same pass
func (m Model) mutate(n addons.Node, fn func(n addons.Node) (string, error)) tea.Cmd {
	root, run, expanded := m.root, m.run, m.snapshotExpanded()
	return func() tea.Msg {
		var res mutatedMsg
		run(func() {
			if !n.Valid() {
				res.err = addons.ErrNodeInvalid
			} else {
				res.status, res.err = fn(n)
			}
			res.rows = BuildRows(root, expanded)
		})
		return res
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.state == viewSearchInput {
			return m.updateSearchInput(msg)
		}
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		if key.Matches(msg, m.keys.Back) && m.state != viewTree {
			m.state = viewTree
			m.details = nil
			m.cursor = 0
			return m, nil
		}
		switch m.state {
		case viewTree, viewSearchResults:
			return m.updateList(msg)
		case viewInfo:
			if msg.Type == tea.KeyEnter {
				m.state = viewTree
				m.details = nil
			}
		}
		return m, nil

	case rowsMsg:
		m.setRows(msg.rows)
		return m, nil

	case mutatedMsg:
		m.setRows(msg.rows)
		if msg.err != nil {
			m.errorMsg, m.statusMsg = msg.err.Error(), ""
		} else {
			m.statusMsg, m.errorMsg = msg.status, ""
		}
		return m, nil

	case resultsMsg:
		m.busy = false
		m.results = msg.rows
		m.cursor = 0
		m.state = viewSearchResults
		m.statusMsg = fmt.Sprintf("%d match(es)", len(msg.rows))
		return m, nil

	case detailsMsg:
		m.details = &msg.details
		m.state = viewInfo
		return m, nil

	case statusMsg:
		m.busy = false
		m.statusMsg, m.errorMsg = string(msg), ""
		return m, nil

	case errMsg:
		m.busy = false
		m.errorMsg, m.statusMsg = msg.err.Error(), ""
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) setRows(rows []Row) {
	m.rows = rows
	if m.state == viewTree && m.cursor >= len(rows) {
		m.cursor = max(len(rows)-1, 0)
	}
}

func (m Model) list() []Row {
	if m.state == viewSearchResults {
		return m.results
	}
	return m.rows
}

func (m Model) current() (Row, bool) {
	rows := m.list()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return Row{}, false
	}
	return rows[m.cursor], true
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.list())-1 {
			m.cursor++
		}
		return m, nil
	case key.Matches(msg, m.keys.Search):
		m.state = viewSearchInput
		m.search.SetValue("")
		m.search.Focus()
		return m, textinput.Blink
	case key.Matches(msg, m.keys.Save):
		return m, m.save()
	}

	row, ok := m.current()
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Expand):
		if row.IsGroup() && m.state == viewTree {
			m.expanded[row.ID] = true
			return m, m.refresh()
		}
	case key.Matches(msg, m.keys.Collapse):
		if m.state == viewTree && m.expanded[row.ID] {
			delete(m.expanded, row.ID)
			return m, m.refresh()
		}
	case key.Matches(msg, m.keys.Toggle):
		return m, m.mutate(row.Node, func(n addons.Node) (string, error) {
			n.SetEnabled(!n.Enabled())
			return fmt.Sprintf("%s %s", onOff(n.Enabled()), n.FullName()), nil
		})
	case key.Matches(msg, m.keys.Random):
		return m, m.mutate(row.Node, func(n addons.Node) (string, error) {
			g, ok := n.(*addons.Group)
			if !ok || !g.EnableRandomChild() {
				return "", fmt.Errorf("%s is not a single-random group with children", n.FullName())
			}
			return "Enabled a random child of " + g.FullName(), nil
		})
	case key.Matches(msg, m.keys.Check):
		return m, m.mutate(row.Node, func(n addons.Node) (string, error) {
			n.Check()
			return fmt.Sprintf("Checked %s: %d problem(s)", n.FullName(), len(n.Problems())), nil
		})
	case key.Matches(msg, m.keys.Info):
		return m, m.describe(row.Node)
	}
	return m, nil
}

func (m Model) updateSearchInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		text := m.search.Value()
		m.search.Blur()
		if text == "" {
			m.state = viewTree
			return m, nil
		}
		m.busy = true
		return m, m.runSearch(text)
	case tea.KeyEsc, tea.KeyCtrlC:
		m.search.Blur()
		m.state = viewTree
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

// runSearch matches leaves; text between slashes is a regular expression
func (m Model) runSearch(text string) tea.Cmd {
	root, run := m.root, m.run
	opts := addons.SearchOptions{IgnoreCase: true, Flatten: true}
	if len(text) > 2 && strings.HasPrefix(text, "/") && strings.HasSuffix(text, "/") {
		text = text[1 : len(text)-1]
		opts.Regex = true
	}
	return func() tea.Msg {
		matches, err := root.Search(context.Background(), nil, text, opts)
		if err != nil {
			return errMsg{err}
		}
		rows := make([]Row, 0, len(matches))
		run(func() {
			for _, match := range matches {
				if match.Node.Valid() {
					row := newRow(match.Node, 0, false)
					row.Name = match.FullName
					rows = append(rows, row)
				}
			}
		})
		return resultsMsg{rows}
	}
}

func (m Model) describe(n addons.Node) tea.Cmd {
	run := m.run
	return func() tea.Msg {
		var d Details
		valid := true
		run(func() {
			if valid = n.Valid(); valid {
				d = Describe(n)
			}
		})
		if !valid {
			return errMsg{addons.ErrNodeInvalid}
		}
		return detailsMsg{d}
	}
}

func (m Model) save() tea.Cmd {
	root, run := m.root, m.run
	return func() tea.Msg {
		var err error
		run(func() { err = root.Save() })
		if err != nil {
			return errMsg{err}
		}
		return statusMsg("Saved")
	}
}

func onOff(v bool) string {
	if v {
		return "Enabled"
	}
	return "Disabled"
}

// View

func (m Model) View() string {
	var content string
	switch m.state {
	case viewInfo:
		content = m.viewInfo()
	case viewSearchInput:
		content = m.viewSearchInput()
	default:
		content = m.viewList()
	}
	return styles.App.Render(content)
}

func (m Model) viewList() string {
	var s strings.Builder

	title := "Addons"
	if m.state == viewSearchResults {
		title = "Search results"
	}
	s.WriteString(styles.Title.Render(title) + "\n\n")

	rows := m.list()
	if len(rows) == 0 {
		s.WriteString(styles.MutedText.Render("  (empty)") + "\n")
	}

	// keep the cursor inside a window of the terminal height
	visible := max(m.height-8, 5)
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}
	end := min(start+visible, len(rows))
	for i := start; i < end; i++ {
		s.WriteString(m.renderRow(rows[i], i == m.cursor) + "\n")
	}

	s.WriteString("\n")
	switch {
	case m.busy:
		s.WriteString(m.spinner.View() + " " + styles.MutedText.Render("Working...") + "\n")
	case m.errorMsg != "":
		s.WriteString(styles.FormatError(m.errorMsg) + "\n")
	case m.statusMsg != "":
		s.WriteString(styles.FormatSuccess(m.statusMsg) + "\n")
	}
	s.WriteString(styles.Help.Render("space:toggle  →/←:open/close  r:random  c:check  i:info  /:search  s:save  q:quit"))
	return s.String()
}

func (m Model) renderRow(r Row, selected bool) string {
	indent := strings.Repeat("  ", r.Depth)
	marker := "  "
	if r.IsGroup() {
		marker = "▸ "
		if r.Expanded {
			marker = "▾ "
		}
	}

	name := styles.AddonName.Render(r.Name)
	if r.IsGroup() {
		name = styles.GroupName.Render(r.Name)
	}
	if selected {
		name = styles.Highlighted.Render(r.Name)
	}

	parts := []string{
		indent + marker + styles.FormatEnabled(styles.NodeState(r.Enabled, r.InHierarchy)),
		name,
	}
	if !r.IsGroup() {
		parts = append(parts, styles.KindLabel.Render(string(r.Kind)))
	}
	if badge := styles.FormatStrategy(r.Strategy); badge != "" {
		parts = append(parts, badge)
	}
	if badge := styles.FormatProblems(r.Problems); badge != "" {
		parts = append(parts, badge)
	}
	return strings.Join(parts, " ")
}

func (m Model) viewSearchInput() string {
	var s strings.Builder
	s.WriteString(styles.Title.Render("Search") + "\n\n")
	s.WriteString(m.search.View() + "\n\n")
	s.WriteString(styles.Help.Render("enter:search  esc:cancel"))
	return s.String()
}

func (m Model) viewInfo() string {
	var s strings.Builder
	d := m.details
	if d == nil {
		return "No node selected"
	}

	s.WriteString(styles.Title.Render("Node Info") + "\n\n")
	s.WriteString(styles.AddonName.Render(d.FullName) + "\n")
	if d.Title != "" && d.Title != d.Name {
		s.WriteString(styles.MutedText.Render(d.Title) + "\n")
	}
	s.WriteString("\n")
	s.WriteString(FormatDetails(*d))
	s.WriteString("\n" + styles.Help.Render("esc/enter:back"))
	return s.String()
}

// FormatDetails renders the fields of d as aligned lines
func FormatDetails(d Details) string {
	var s strings.Builder
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&s, "%-12s %s\n", label+":", value)
		}
	}

	line("Kind", string(d.Kind))
	line("Enabled", fmt.Sprintf("%t (effective %t)", d.Enabled, d.InHierarchy))
	if d.IsGroup() {
		line("Strategy", d.Strategy)
		line("Children", fmt.Sprint(d.Children))
	}
	line("File", d.FilePath)
	line("Tags", strings.Join(d.Tags, ", "))
	line("Inherited", strings.Join(d.Inherited, ", "))
	if d.HasSize {
		line("Size", styles.FormatSize(d.Size))
	}
	line("Package", d.VpkPath)
	line("Title", d.Title)
	line("Version", d.Version)
	line("Author", d.Author)
	line("Description", d.Description)
	if d.InfoErr != nil {
		line("Addon info", styles.ErrorText.Render(d.InfoErr.Error()))
	}
	line("Workshop id", d.PublishedFileID)
	line("Auto update", d.AutoUpdate)
	if d.Downloading {
		line("Download", "in progress")
	}
	for _, msg := range d.Messages {
		s.WriteString(styles.FormatWarning(msg) + "\n")
	}
	return s.String()
}
