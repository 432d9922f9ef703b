package vpk

import (
	"bytes"
	"encoding/binary"
	"io/fs"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndOpen(t *testing.T) {
	files := map[string][]byte{
		"addoninfo.txt": []byte(`"AddonInfo"
{
	"addontitle" "  Better Rifles "
	"addonversion" "1.2"
	"addonauthor" "someone"
	"addonDescription" "rifles, but better"
}`),
		"addonimage.jpg":           {0xff, 0xd8, 0xff},
		"models/weapons/rifle.mdl": []byte("model"),
		"scripts/weapon_rifle":     []byte("no extension"),
		"materials/empty.vmt":      {},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, files))

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/addon.vpk", buf.Bytes(), 0644))

	p, err := Open(fsys, "/addon.vpk")
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	assert.Equal(t, uint32(2), p.Version)
	assert.Equal(t, []string{
		"addonimage.jpg",
		"addoninfo.txt",
		"materials/empty.vmt",
		"models/weapons/rifle.mdl",
		"scripts/weapon_rifle",
	}, p.Entries())

	data, err := p.ReadFile("MODELS/weapons/rifle.mdl")
	require.NoError(t, err)
	assert.Equal(t, "model", string(data))

	data, err = p.ReadFile("scripts/weapon_rifle")
	require.NoError(t, err)
	assert.Equal(t, "no extension", string(data))

	_, err = p.ReadFile("missing.txt")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	info, err := p.ReadAddonInfo()
	require.NoError(t, err)
	assert.Equal(t, "Better Rifles", info.Title)
	assert.Equal(t, "1.2", info.Version)
	assert.Equal(t, "someone", info.Author)
	assert.Equal(t, "rifles, but better", info.Description)

	img, err := p.AddonImage()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, img)
}

func TestReadRejectsGarbage(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("definitely not a pak file at all")), 32)
	assert.ErrorIs(t, err, ErrNotVPK)

	_, err = Read(bytes.NewReader([]byte{1, 2}), 2)
	assert.ErrorIs(t, err, ErrNotVPK)
}

func TestPackageWithoutAddonInfo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, map[string][]byte{"sound/a.wav": []byte("x")}))

	p, err := Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	info, err := p.ReadAddonInfo()
	require.NoError(t, err)
	assert.Equal(t, AddonInfo{}, *info)

	img, err := p.AddonImage()
	require.NoError(t, err)
	assert.Nil(t, img)
}

func TestReadFileRejectsOversizedEntry(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, map[string][]byte{"a.txt": []byte("x")}))
	data := buf.Bytes()

	// CRC, preload count, archive index and offset precede the length
	at := bytes.Index(data, []byte("a\x00")) + 2 + 12
	binary.LittleEndian.PutUint32(data[at:], 0xfffffff0)

	p, err := Read(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	_, err = p.ReadFile("a.txt")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestReadRejectsTreeBeyondFile(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, map[string][]byte{"a.txt": []byte("x")}))
	data := buf.Bytes()
	binary.LittleEndian.PutUint32(data[8:], 1<<30)

	_, err := Read(bytes.NewReader(data), int64(len(data)))
	assert.ErrorIs(t, err, ErrNotVPK)
}
