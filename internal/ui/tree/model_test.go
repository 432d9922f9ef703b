package tree

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/vpkctl/internal/addons"
)

type fixture struct {
	root  *addons.Root
	sched *addons.LoopScheduler
	maps  *addons.Group
	note  *addons.PlainNode
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sched := addons.NewLoopScheduler()
	t.Cleanup(sched.Close)
	f := &fixture{sched: sched}
	f.root = addons.NewRoot("/library", addons.RootOptions{Fs: afero.NewMemMapFs(), Scheduler: sched})

	sched.Do(func() {
		var err error
		f.maps, err = addons.NewGroup(f.root, nil, "Maps")
		require.NoError(t, err)
		f.maps.SetEnableStrategy(addons.StrategySingleRandom)
		_, err = addons.NewPlainNode(f.root, f.maps, "Dead Center")
		require.NoError(t, err)
		_, err = addons.NewPlainNode(f.root, f.maps, "Dark Carnival")
		require.NoError(t, err)
		f.note, err = addons.NewPlainNode(f.root, nil, "notes")
		require.NoError(t, err)
	})
	return f
}

// exec runs cmd and feeds its message back into the model
func exec(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	return send(t, m, cmd())
}

func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func press(t *testing.T, m Model, k string) (Model, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch k {
	case "space":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func names(rows []Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Name)
	}
	return out
}

func TestBrowserExpandAndCollapse(t *testing.T) {
	f := newFixture(t)
	m := NewModel(f.root, f.sched.Do)
	m = exec(t, m, m.refresh())
	assert.Equal(t, []string{"Maps", "notes"}, names(m.rows))
	assert.Equal(t, "single-random", m.rows[0].Strategy)

	m, cmd := press(t, m, "l")
	m = exec(t, m, cmd)
	assert.Equal(t, []string{"Maps", "Dead Center", "Dark Carnival", "notes"}, names(m.rows))
	assert.Equal(t, 1, m.rows[1].Depth)

	m, cmd = press(t, m, "h")
	m = exec(t, m, cmd)
	assert.Equal(t, []string{"Maps", "notes"}, names(m.rows))
}

func TestBrowserToggleRunsOnScheduler(t *testing.T) {
	f := newFixture(t)
	m := NewModel(f.root, f.sched.Do)
	m = exec(t, m, m.refresh())

	m, _ = press(t, m, "j")
	m, cmd := press(t, m, "space")
	m = exec(t, m, cmd)

	var enabled bool
	f.sched.Do(func() { enabled = f.note.Enabled() })
	assert.True(t, enabled)
	assert.True(t, m.rows[1].Enabled)
	assert.Equal(t, "Enabled notes", m.statusMsg)
	assert.Contains(t, m.View(), "[x]")
}

func TestBrowserRandomChild(t *testing.T) {
	f := newFixture(t)
	m := NewModel(f.root, f.sched.Do)
	m = exec(t, m, m.refresh())

	m, cmd := press(t, m, "r")
	m = exec(t, m, cmd)
	assert.Empty(t, m.errorMsg)

	var on int
	f.sched.Do(func() {
		for _, n := range f.maps.Nodes() {
			if n.Enabled() {
				on++
			}
		}
	})
	assert.Equal(t, 1, on)

	m, _ = press(t, m, "j")
	m, cmd = press(t, m, "r")
	m = exec(t, m, cmd)
	assert.Contains(t, m.errorMsg, "not a single-random group")
}

func TestBrowserSearch(t *testing.T) {
	f := newFixture(t)
	m := NewModel(f.root, f.sched.Do)
	m = exec(t, m, m.refresh())

	m, _ = press(t, m, "/")
	require.Equal(t, viewSearchInput, m.state)
	for _, r := range "dark" {
		m, _ = press(t, m, string(r))
	}
	m, cmd := press(t, m, "enter")
	m = exec(t, m, cmd)

	assert.Equal(t, viewSearchResults, m.state)
	assert.Equal(t, []string{"Maps/Dark Carnival"}, names(m.results))

	m, _ = press(t, m, "esc")
	assert.Equal(t, viewTree, m.state)
}

func TestBrowserInfo(t *testing.T) {
	f := newFixture(t)
	m := NewModel(f.root, f.sched.Do)
	m = exec(t, m, m.refresh())

	m, cmd := press(t, m, "i")
	m = exec(t, m, cmd)
	require.Equal(t, viewInfo, m.state)
	require.NotNil(t, m.details)
	assert.Equal(t, "Maps", m.details.FullName)
	assert.Equal(t, 2, m.details.Children)
	view := m.View()
	assert.Contains(t, view, "single-random")
	assert.Contains(t, view, "Children")
}

func TestBrowserReportsDestroyedNode(t *testing.T) {
	f := newFixture(t)
	m := NewModel(f.root, f.sched.Do)
	m = exec(t, m, m.refresh())

	var done <-chan struct{}
	f.sched.Do(func() { done = f.maps.Destroy() })
	<-done

	m, cmd := press(t, m, "space")
	m = exec(t, m, cmd)
	assert.Equal(t, addons.ErrNodeInvalid.Error(), m.errorMsg)
	assert.Equal(t, []string{"notes"}, names(m.rows))
}

func TestDescribeSplitsInheritedTags(t *testing.T) {
	f := newFixture(t)
	var d Details
	f.sched.Do(func() {
		_, _ = f.maps.AddTag("Campaigns")
		n, err := f.root.Find("Maps/Dead Center")
		require.NoError(t, err)
		_, _ = n.AddTag("Tank")
		d = Describe(n)
	})

	assert.Equal(t, []string{"Tank"}, d.Tags)
	assert.Equal(t, []string{"Campaigns"}, d.Inherited)
	out := FormatDetails(d)
	assert.Contains(t, out, "Tags:")
	assert.Contains(t, out, "Inherited:   Campaigns")
}
