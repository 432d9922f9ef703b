package addons

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jpegHeader = []byte{0xff, 0xd8, 0xff}

func imageCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestLocalVpkImageIsCached(t *testing.T) {
	r, sched := newTestRoot(t, RootOptions{})
	var a *LocalVpkAddon
	sched.Do(func() { a = mkLocal(t, r, nil, "skin") })

	data, err := a.Image(imageCtx(t))
	require.NoError(t, err)
	assert.Equal(t, jpegHeader, data)

	require.NoError(t, os.Remove(a.VpkPath()))
	data, err = a.Image(imageCtx(t))
	require.NoError(t, err)
	assert.Equal(t, jpegHeader, data, "served from the cache")

	sched.Do(a.ClearCaches)
	data, err = a.Image(imageCtx(t))
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestImageOfDestroyedNode(t *testing.T) {
	r, sched := newTestRoot(t, RootOptions{})
	var a *LocalVpkAddon
	sched.Do(func() {
		a = mkLocal(t, r, nil, "gone")
		a.Destroy()
	})

	_, err := a.Image(imageCtx(t))
	assert.ErrorIs(t, err, ErrNodeInvalid)
}

func TestWorkshopImagePrefersPreview(t *testing.T) {
	f := newWorkshopFixture(t)
	f.client.details[123].PreviewURL = "https://cdn.example.com/ugc/cool-map.jpg"
	f.client.previews = map[string][]byte{"https://cdn.example.com/ugc/cool-map.jpg": []byte("preview")}
	a := f.bind(t, "cool", nil)

	data, err := a.Image(imageCtx(t))
	require.NoError(t, err)
	assert.Equal(t, []byte("preview"), data)
}

func TestWorkshopImageFallsBackToPackage(t *testing.T) {
	f := newWorkshopFixture(t)
	f.client.details[123].PreviewURL = "https://cdn.example.com/ugc/missing.jpg"
	a := f.bind(t, "cool", nil)

	data, err := a.Image(imageCtx(t))
	require.NoError(t, err)
	assert.Equal(t, jpegHeader, data)
}
