// Package vpk reads the directory tree of single-file Valve pak archives,
// which is how Left 4 Dead 2 addons are distributed.
package vpk

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/bnema/vpkctl/internal/keyvalues"
)

const (
	Signature = 0x55aa1234

	// inlineArchive marks entries whose data follows the tree in the same file
	inlineArchive   = 0x7fff
	entryTerminator = 0xffff

	headerSizeV1 = 12
	headerSizeV2 = 28
)

var (
	ErrNotVPK             = errors.New("not a vpk file")
	ErrUnsupportedVersion = errors.New("unsupported vpk version")
	ErrExternalArchive    = errors.New("entry is stored in an external archive")
	ErrCorrupt            = errors.New("entry lies outside the package")
)

// Entry describes one file inside the package
type Entry struct {
	Path    string
	CRC     uint32
	preload []byte
	archive uint16
	offset  uint32
	length  uint32
}

// Size returns the uncompressed size of the entry
func (e Entry) Size() int64 {
	return int64(len(e.preload)) + int64(e.length)
}

// Package is an opened VPK directory
type Package struct {
	Version uint32

	r          io.ReaderAt
	closer     io.Closer
	size       int64
	dataOffset int64
	entries    map[string]Entry
}

// Open opens the VPK at path on fsys
func Open(fsys afero.Fs, path string) (*Package, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	p, err := Read(f, st.Size())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.closer = f
	return p, nil
}

// Read parses the header and directory tree from r, which holds size bytes
func Read(r io.ReaderAt, size int64) (*Package, error) {
	var header [headerSizeV2]byte
	n, err := r.ReadAt(header[:], 0)
	if n < headerSizeV1 {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, ErrNotVPK
		}
		return nil, err
	}

	le := binary.LittleEndian
	if le.Uint32(header[0:4]) != Signature {
		return nil, ErrNotVPK
	}

	p := &Package{
		Version: le.Uint32(header[4:8]),
		r:       r,
		size:    size,
		entries: make(map[string]Entry),
	}
	treeSize := int64(le.Uint32(header[8:12]))

	var headerSize int64
	switch p.Version {
	case 1:
		headerSize = headerSizeV1
	case 2:
		if n < headerSizeV2 {
			return nil, ErrNotVPK
		}
		headerSize = headerSizeV2
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, p.Version)
	}
	p.dataOffset = headerSize + treeSize
	if p.dataOffset > size {
		return nil, fmt.Errorf("%w: tree of %d bytes exceeds the file", ErrNotVPK, treeSize)
	}

	tree := bufio.NewReader(io.NewSectionReader(r, headerSize, treeSize))
	if err := p.readTree(tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotVPK, err)
	}
	return p, nil
}

func (p *Package) readTree(r *bufio.Reader) error {
	for {
		ext, err := readCString(r)
		if err != nil {
			return err
		}
		if ext == "" {
			return nil
		}
		for {
			dir, err := readCString(r)
			if err != nil {
				return err
			}
			if dir == "" {
				break
			}
			for {
				name, err := readCString(r)
				if err != nil {
					return err
				}
				if name == "" {
					break
				}
				e, err := readEntry(r)
				if err != nil {
					return err
				}
				e.Path = joinPath(dir, name, ext)
				p.entries[strings.ToLower(e.Path)] = e
			}
		}
	}
}

func readEntry(r *bufio.Reader) (Entry, error) {
	var raw struct {
		CRC          uint32
		PreloadBytes uint16
		ArchiveIndex uint16
		EntryOffset  uint32
		EntryLength  uint32
		Terminator   uint16
	}
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return Entry{}, err
	}
	if raw.Terminator != entryTerminator {
		return Entry{}, fmt.Errorf("bad entry terminator %#x", raw.Terminator)
	}

	e := Entry{
		CRC:     raw.CRC,
		archive: raw.ArchiveIndex,
		offset:  raw.EntryOffset,
		length:  raw.EntryLength,
	}
	if raw.PreloadBytes > 0 {
		e.preload = make([]byte, raw.PreloadBytes)
		if _, err := io.ReadFull(r, e.preload); err != nil {
			return Entry{}, err
		}
	}
	return e, nil
}

func readCString(r *bufio.Reader) (string, error) {
	s, err := r.ReadString(0)
	if err != nil {
		return "", err
	}
	return s[:len(s)-1], nil
}

func joinPath(dir, name, ext string) string {
	var b strings.Builder
	if dir != " " {
		b.WriteString(dir)
		b.WriteByte('/')
	}
	b.WriteString(name)
	if ext != " " {
		b.WriteByte('.')
		b.WriteString(ext)
	}
	return b.String()
}

// Entries returns every path in the package, sorted
func (p *Package) Entries() []string {
	paths := make([]string, 0, len(p.entries))
	for _, e := range p.entries {
		paths = append(paths, e.Path)
	}
	sort.Strings(paths)
	return paths
}

// Find looks up an entry by path, case-insensitively
func (p *Package) Find(path string) (Entry, bool) {
	e, ok := p.entries[strings.ToLower(path)]
	return e, ok
}

// ReadFile returns the full contents of the entry at path
func (p *Package) ReadFile(path string) ([]byte, error) {
	e, ok := p.Find(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, fs.ErrNotExist)
	}
	if e.length > 0 && e.archive != inlineArchive {
		return nil, fmt.Errorf("%w: %s (archive %d)", ErrExternalArchive, path, e.archive)
	}

	start := p.dataOffset + int64(e.offset)
	if e.length > 0 && start+int64(e.length) > p.size {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, path)
	}

	data := make([]byte, 0, e.Size())
	data = append(data, e.preload...)
	if e.length > 0 {
		buf := make([]byte, e.length)
		if _, err := p.r.ReadAt(buf, start); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		data = append(data, buf...)
	}
	return data, nil
}

// Close releases the underlying file when the package was opened by Open
func (p *Package) Close() error {
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

// AddonInfo is the metadata an addon author puts in addoninfo.txt
type AddonInfo struct {
	Title       string
	Version     string
	Author      string
	Description string
}

const (
	AddonInfoFile  = "addoninfo.txt"
	AddonImageFile = "addonimage.jpg"
)

// ReadAddonInfo parses addoninfo.txt. A package without one yields an empty info.
func (p *Package) ReadAddonInfo() (*AddonInfo, error) {
	info := &AddonInfo{}
	if _, ok := p.Find(AddonInfoFile); !ok {
		return info, nil
	}

	data, err := p.ReadFile(AddonInfoFile)
	if err != nil {
		return nil, err
	}
	doc, err := keyvalues.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", AddonInfoFile, err)
	}

	info.Title = strings.TrimSpace(doc.String("addontitle"))
	info.Version = strings.TrimSpace(doc.String("addonversion"))
	info.Author = strings.TrimSpace(doc.String("addonauthor"))
	info.Description = doc.String("addonDescription")
	return info, nil
}

// AddonImage returns addonimage.jpg, or nil when the package has none
func (p *Package) AddonImage() ([]byte, error) {
	if _, ok := p.Find(AddonImageFile); !ok {
		return nil, nil
	}
	return p.ReadFile(AddonImageFile)
}
