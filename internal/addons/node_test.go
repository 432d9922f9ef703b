package addons

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnabledInHierarchy(t *testing.T) {
	r, _ := newTestRoot(t, RootOptions{})
	top := mkGroup(t, r, nil, "top")
	mid := mkGroup(t, r, top, "mid")
	leaf := mkPlain(t, r, mid, "leaf")
	side := mkPlain(t, r, top, "side")

	nodes := []Node{top, mid, leaf, side}
	verify := func() {
		t.Helper()
		for _, n := range nodes {
			want := n.Enabled()
			for g := n.Group(); g != nil; g = g.Group() {
				want = want && g.Enabled()
			}
			require.Equal(t, want, n.EnabledInHierarchy(), n.FullName())
		}
	}

	// every combination of the four flags, reached by single toggles
	for mask := 0; mask < 16; mask++ {
		for i, n := range nodes {
			n.SetEnabled(mask&(1<<i) != 0)
			verify()
		}
	}
}

func TestFullNameAndFilePath(t *testing.T) {
	r, _ := newTestRoot(t, RootOptions{})
	g := mkGroup(t, r, nil, "Maps")
	sub := mkGroup(t, r, g, "Custom")
	a := mkLocal(t, r, sub, "c1m1")

	assert.Equal(t, "Maps/Custom/c1m1", a.FullName())
	assert.Equal(t, filepath.Join("Maps", "Custom", "c1m1.vpk"), a.FilePath())
	assert.Equal(t, filepath.Join(r.Dir(), "Maps", "Custom", "c1m1.vpk"), a.FullFilePath())
	assert.Equal(t, testNow, a.CreationTime())

	found, err := r.Find("Maps/Custom/c1m1")
	require.NoError(t, err)
	assert.Same(t, a, found)

	_, err = r.Find("Maps/Custom/c1m1/deeper")
	assert.ErrorIs(t, err, ErrNotGroup)
	_, err = r.Find("Maps/Nope")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	top, err := r.FindGroup("/")
	require.NoError(t, err)
	assert.Nil(t, top)
}

func TestCreateRejectsBadNames(t *testing.T) {
	r, _ := newTestRoot(t, RootOptions{})
	mkPlain(t, r, nil, "taken")

	_, err := NewPlainNode(r, nil, "taken")
	assert.ErrorIs(t, err, ErrNameExists)

	for _, name := range []string{"", "a/b", "trailing.", " leading", "CON", "what?"} {
		_, err := NewPlainNode(r, nil, name)
		assert.ErrorIs(t, err, ErrInvalidName, "%q", name)
	}
	assert.Len(t, r.Nodes(), 1)
}

func TestRenameMovesBackingFile(t *testing.T) {
	r, _ := newTestRoot(t, RootOptions{})
	a := mkLocal(t, r, nil, "foo")

	require.NoError(t, a.SetName("bar"))

	assert.NoFileExists(t, filepath.Join(r.Dir(), "foo.vpk"))
	assert.FileExists(t, filepath.Join(r.Dir(), "bar.vpk"))
	assert.False(t, r.NameExists("foo"))
	assert.True(t, r.NameExists("bar"))
	assert.Equal(t, "bar", a.Name())
	assert.True(t, r.SaveRequested())
}

func TestRenameOntoExistingFileFails(t *testing.T) {
	r, _ := newTestRoot(t, RootOptions{})
	a := mkLocal(t, r, nil, "foo")
	writeVpk(t, r.fs, filepath.Join(r.Dir(), "bar.vpk"), "someone else's")

	err := a.SetName("bar")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFileExists)
	var moveErr *FileMoveError
	require.ErrorAs(t, err, &moveErr)
	assert.Equal(t, filepath.Join(r.Dir(), "foo.vpk"), moveErr.Source)

	assert.Equal(t, "foo", a.Name())
	assert.True(t, r.NameExists("foo"))
	assert.False(t, r.NameExists("bar"))
	assert.FileExists(t, filepath.Join(r.Dir(), "foo.vpk"))
	assert.FileExists(t, filepath.Join(r.Dir(), "bar.vpk"))
}

func TestRenameOntoSiblingNameFails(t *testing.T) {
	r, _ := newTestRoot(t, RootOptions{})
	a := mkPlain(t, r, nil, "a")
	mkPlain(t, r, nil, "b")

	assert.ErrorIs(t, a.SetName("b"), ErrNameExists)
	assert.ErrorIs(t, a.SetName("b/c"), ErrInvalidName)
	assert.NoError(t, a.SetName("a"))
}

func TestMoveGroup(t *testing.T) {
	r, _ := newTestRoot(t, RootOptions{})
	a := mkGroup(t, r, nil, "a")
	b := mkGroup(t, r, a, "b")
	leaf := mkLocal(t, r, b, "leaf")
	c := mkGroup(t, r, nil, "c")

	assert.False(t, a.CanMoveTo(b))
	assert.False(t, a.CanMoveTo(a))
	assert.ErrorIs(t, a.MoveTo(b), ErrMoveIntoSelf)
	assert.ErrorIs(t, a.MoveTo(a), ErrMoveIntoSelf)

	require.NoError(t, a.MoveTo(c))
	assert.Same(t, c, a.Group())
	assert.Equal(t, "c/a/b/leaf", leaf.FullName())
	assert.DirExists(t, filepath.Join(r.Dir(), "c", "a", "b"))
	assert.FileExists(t, leaf.FullFilePath())
	assert.NoDirExists(t, filepath.Join(r.Dir(), "a"))
	assert.False(t, r.NameExists("a"))
	assert.True(t, c.NameExists("a"))

	require.NoError(t, b.MoveTo(nil))
	assert.Nil(t, b.Group())
	assert.Equal(t, "b/leaf", leaf.FullName())
	assert.FileExists(t, filepath.Join(r.Dir(), "b", "leaf.vpk"))
}

func TestMoveUpdatesEnabledInHierarchy(t *testing.T) {
	r, _ := newTestRoot(t, RootOptions{})
	off := mkGroup(t, r, nil, "off")
	on := mkGroup(t, r, nil, "on")
	on.SetEnabled(true)
	n := mkPlain(t, r, off, "n")
	n.SetEnabled(true)
	require.False(t, n.EnabledInHierarchy())

	require.NoError(t, n.MoveTo(on))
	assert.True(t, n.EnabledInHierarchy())
}

func TestMoveDeniedWhileBlocked(t *testing.T) {
	r, _ := newTestRoot(t, RootOptions{})
	g := mkGroup(t, r, nil, "g")
	a := mkLocal(t, r, g, "busy")
	other := mkGroup(t, r, nil, "other")

	release := a.blockMoves()

	err := g.SetName("renamed")
	require.ErrorIs(t, err, ErrMoveDenied)
	var denied *MoveDeniedError
	require.True(t, errors.As(err, &denied))
	assert.Same(t, a, denied.Node)

	assert.ErrorIs(t, g.MoveTo(other), ErrMoveDenied)
	assert.ErrorIs(t, a.MoveTo(other), ErrMoveDenied)

	release()
	release()
	require.NoError(t, g.SetName("renamed"))
	assert.FileExists(t, filepath.Join(r.Dir(), "renamed", "busy.vpk"))
}

func TestDestroy(t *testing.T) {
	r, _ := newTestRoot(t, RootOptions{})
	g := mkGroup(t, r, nil, "g")
	a := mkLocal(t, r, g, "a")
	p := mkPlain(t, r, g, "p")

	<-g.Destroy()
	assert.False(t, g.Valid())
	assert.False(t, a.Valid())
	assert.False(t, p.Valid())
	assert.False(t, r.NameExists("g"))
	assert.Empty(t, r.VpkAddons())
	assert.FileExists(t, filepath.Join(r.Dir(), "g", "a.vpk"), "plain destroy keeps files")

	assert.ErrorIs(t, a.SetName("x"), ErrNodeInvalid)
	_, err := NewPlainNode(r, g, "late")
	assert.ErrorIs(t, err, ErrNodeInvalid)
}

func TestDestroyWithFile(t *testing.T) {
	r, _ := newTestRoot(t, RootOptions{})
	g := mkGroup(t, r, nil, "g")
	mkLocal(t, r, g, "a")
	keep := mkLocal(t, r, nil, "keep")

	<-g.DestroyWithFile()
	exists, err := afero.DirExists(r.fs, filepath.Join(r.Dir(), "g"))
	require.NoError(t, err)
	assert.False(t, exists)
	assert.FileExists(t, keep.FullFilePath())
	assert.Equal(t, []VpkAddon{keep}, r.VpkAddons())
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Better Rifles", "Better Rifles"},
		{"  spaced", "spaced"},
		{`a<b>c:d"e/f\g|h?i*j`, "abcdefghij"},
		{"tabs\tand\nnewlines", "tabsandnewlines"},
		{"dots...", "dots"},
		{"trailing . ", "trailing"},
		{"COM1", ""},
		{"nul.txt", ""},
		{"CONSOLE", "CONSOLE"},
		{"???", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFileName(tt.in), tt.in)
	}
}
