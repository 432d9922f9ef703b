package vpk

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"path"
	"sort"
	"strings"
)

// Write packs files into a single-file version 2 VPK. Keys are slash
// separated paths inside the package.
func Write(w io.Writer, files map[string][]byte) error {
	// ext -> dir -> names
	tree := make(map[string]map[string][]string)
	for p := range files {
		dir, file := path.Split(p)
		dir = strings.TrimSuffix(dir, "/")
		if dir == "" {
			dir = " "
		}
		ext := path.Ext(file)
		name := strings.TrimSuffix(file, ext)
		ext = strings.TrimPrefix(ext, ".")
		if ext == "" {
			ext = " "
		}
		if tree[ext] == nil {
			tree[ext] = make(map[string][]string)
		}
		tree[ext][dir] = append(tree[ext][dir], name)
	}

	var dirBuf, dataBuf bytes.Buffer
	le := binary.LittleEndian

	for _, ext := range sortedKeys(tree) {
		writeCString(&dirBuf, ext)
		dirs := tree[ext]
		for _, dir := range sortedKeys(dirs) {
			writeCString(&dirBuf, dir)
			names := dirs[dir]
			sort.Strings(names)
			for _, name := range names {
				writeCString(&dirBuf, name)
				data := files[joinPath(dir, name, ext)]
				_ = binary.Write(&dirBuf, le, struct {
					CRC          uint32
					PreloadBytes uint16
					ArchiveIndex uint16
					EntryOffset  uint32
					EntryLength  uint32
					Terminator   uint16
				}{
					CRC:          crc32.ChecksumIEEE(data),
					ArchiveIndex: inlineArchive,
					EntryOffset:  uint32(dataBuf.Len()),
					EntryLength:  uint32(len(data)),
					Terminator:   entryTerminator,
				})
				dataBuf.Write(data)
			}
			dirBuf.WriteByte(0)
		}
		dirBuf.WriteByte(0)
	}
	dirBuf.WriteByte(0)

	header := []uint32{
		Signature,
		2,
		uint32(dirBuf.Len()),
		uint32(dataBuf.Len()),
		0, 0, 0,
	}
	if err := binary.Write(w, le, header); err != nil {
		return err
	}
	if _, err := w.Write(dirBuf.Bytes()); err != nil {
		return err
	}
	_, err := w.Write(dataBuf.Bytes())
	return err
}

func writeCString(b *bytes.Buffer, s string) {
	b.WriteString(s)
	b.WriteByte(0)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
