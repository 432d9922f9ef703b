package addons

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagEditing(t *testing.T) {
	r, _ := newTestRoot(t, RootOptions{})
	n := mkPlain(t, r, nil, "hud")
	require.NoError(t, r.Save())

	added, err := n.AddTag("UI")
	require.NoError(t, err)
	assert.True(t, added)
	assert.True(t, r.SaveRequested())

	added, err = n.AddTag("UI")
	require.NoError(t, err)
	assert.False(t, added, "a tag is held once")

	_, err = n.AddTag("  ")
	assert.ErrorIs(t, err, ErrInvalidTag)

	_, _ = n.AddTag("Sounds")
	_, _ = n.AddTag("Scripts")
	require.NoError(t, n.RenameTag("Sounds", "Audio"))
	assert.Equal(t, []string{"UI", "Audio", "Scripts"}, n.Tags(), "rename keeps the position")

	require.NoError(t, n.RenameTag("Audio", "UI"))
	assert.Equal(t, []string{"UI", "Scripts"}, n.Tags(), "renaming onto an existing tag merges them")

	require.NoError(t, n.RenameTag("missing", "Other"))
	assert.ErrorIs(t, n.RenameTag("UI", ""), ErrInvalidTag)

	assert.True(t, n.RemoveTag("UI"))
	assert.False(t, n.RemoveTag("UI"))
	assert.Equal(t, []string{"Scripts"}, n.Tags())
}

func TestTagsInHierarchy(t *testing.T) {
	r, _ := newTestRoot(t, RootOptions{})
	maps := mkGroup(t, r, nil, "Maps")
	campaigns := mkGroup(t, r, maps, "Campaigns")
	c1 := mkPlain(t, r, campaigns, "c1")

	_, _ = maps.AddTag("Campaigns")
	_, _ = maps.AddTag("Co-op")
	_, _ = campaigns.AddTag("Versus")
	_, _ = c1.AddTag("Co-op")
	_, _ = c1.AddTag("Tank")

	assert.Equal(t, []string{"Co-op", "Tank", "Versus", "Campaigns"}, c1.TagsInHierarchy())
	assert.Equal(t, []string{"Co-op", "Tank"}, c1.Tags())
	assert.Equal(t, []string{"Campaigns", "Co-op"}, maps.TagsInHierarchy())

	require.NoError(t, c1.MoveTo(nil))
	assert.Equal(t, []string{"Co-op", "Tank"}, c1.TagsInHierarchy(), "moving out drops inherited tags")
}

func TestTagsSurviveSaveAndLoad(t *testing.T) {
	r, _ := newTestRoot(t, RootOptions{})
	maps := mkGroup(t, r, nil, "Maps")
	c1 := mkLocal(t, r, maps, "c1")
	_, _ = maps.AddTag("Campaigns")
	_, _ = c1.AddTag("Tank")
	_, _ = c1.AddTag("Witch")
	require.NoError(t, r.Save())

	loaded := NewRoot(r.Dir(), RootOptions{Scheduler: r.sched})
	require.NoError(t, loaded.Load())
	assert.False(t, loaded.SaveRequested())
	assert.JSONEq(t, recordJSON(t, r), recordJSON(t, loaded))

	n, err := loaded.Find("Maps/c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Tank", "Witch"}, n.Tags())
	assert.Equal(t, []string{"Tank", "Witch", "Campaigns"}, n.TagsInHierarchy())
	assert.Equal(t, []string{"Campaigns", "Tank", "Witch"}, loaded.AllTags())
}

func TestRenameTagEverywhere(t *testing.T) {
	r, _ := newTestRoot(t, RootOptions{})
	a := mkPlain(t, r, nil, "a")
	b := mkPlain(t, r, nil, "b")
	mkPlain(t, r, nil, "c")
	_, _ = a.AddTag("Coop")
	_, _ = b.AddTag("Coop")
	_, _ = b.AddTag("Co-op")

	count, err := r.RenameTagEverywhere("Coop", "Co-op")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"Co-op"}, a.Tags())
	assert.Equal(t, []string{"Co-op"}, b.Tags())
	assert.Equal(t, []string{"Co-op"}, r.AllTags())
}

func TestSearchFiltersByTags(t *testing.T) {
	r, _ := newTestRoot(t, RootOptions{})
	buildSearchTree(t, r)
	maps, err := r.FindGroup("Maps")
	require.NoError(t, err)
	_, _ = maps.AddTag("Campaigns")
	ak, err := r.Find("Weapons/AK47 Reskin")
	require.NoError(t, err)
	_, _ = ak.AddTag("Rifle")
	_, _ = ak.AddTag("Campaigns")

	search := func(tags []string, mode TagFilterMode) []string {
		t.Helper()
		got, err := r.Search(context.Background(), nil, "", SearchOptions{Flatten: true, Tags: tags, TagMode: mode})
		require.NoError(t, err)
		return searchNames(got)
	}

	assert.ElementsMatch(t, []string{"Maps/Campaign/Dead Center", "Maps/Survival Arena", "Weapons/AK47 Reskin"},
		search([]string{"Campaigns"}, TagAny), "tags are inherited from groups")
	assert.Equal(t, []string{"Weapons/AK47 Reskin"}, search([]string{"Campaigns", "Rifle"}, TagAll))
	assert.Equal(t, []string{"hud"}, search([]string{"Campaigns"}, TagNone))

	got, err := r.Search(context.Background(), nil, "Center", SearchOptions{Tags: []string{"Rifle"}})
	require.NoError(t, err)
	assert.Empty(t, got, "both the name and the tags must match")

	mode, err := ParseTagFilterMode("ALL")
	require.NoError(t, err)
	assert.Equal(t, TagAll, mode)
	_, err = ParseTagFilterMode("xor")
	assert.Error(t, err)
}
