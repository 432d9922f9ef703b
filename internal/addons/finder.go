package addons

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

var errFinderDone = errors.New("file finder is finished")

type finderFrame struct {
	dir     string
	dirName string
	// group is nil for directories that have no group yet
	group   *Group
	files   map[string]Node
	entries []os.FileInfo
	pos     int
}

// FileFinder walks the library directory one entry at a time and tells,
// for each entry, whether a node already stands for it. Directories are
// tracked on an explicit stack of frames.
type FileFinder struct {
	root   *Root
	frames []*finderFrame
	isDir  bool
	err    error
}

// NewFileFinder walks the whole root directory, or only group's directory
// when group is not nil
func NewFileFinder(root *Root, group *Group) *FileFinder {
	f := &FileFinder{root: root}
	frame := &finderFrame{dir: root.dir}
	var c Container = root
	if group != nil {
		frame.dir = group.FullFilePath()
		frame.dirName = group.name
		frame.group = group
		c = group
	}
	frame.files = fileNameIndex(c)
	if f.fill(frame) {
		f.frames = append(f.frames, frame)
	}
	return f
}

func fileNameIndex(c Container) map[string]Node {
	m := make(map[string]Node)
	for _, n := range c.Nodes() {
		m[n.FileName()] = n
	}
	return m
}

func (f *FileFinder) fill(frame *finderFrame) bool {
	entries, err := afero.ReadDir(f.root.fs, frame.dir)
	if err != nil {
		if f.err == nil {
			f.err = err
		}
		f.root.log.Warn("Failed to list directory", "path", frame.dir, "error", err)
		return false
	}
	frame.entries = entries
	frame.pos = -1
	return true
}

func (f *FileFinder) top() *finderFrame {
	if len(f.frames) == 0 {
		return nil
	}
	return f.frames[len(f.frames)-1]
}

// Err is the first directory listing error met during the walk
func (f *FileFinder) Err() error {
	return f.err
}

// MoveNext advances to the next entry. When the current entry is a
// directory the walk descends into it unless skipDir is set or a non-group
// node already owns it.
func (f *FileFinder) MoveNext(skipDir bool) bool {
	top := f.top()
	if top == nil {
		return false
	}

	if f.isDir && !skipDir && top.pos >= 0 {
		entry := top.entries[top.pos]
		frame := &finderFrame{
			dir:     filepath.Join(top.dir, entry.Name()),
			dirName: entry.Name(),
		}
		descend := true
		if top.files != nil {
			if n, ok := top.files[entry.Name()]; ok {
				g, isGroup := n.(*Group)
				descend = isGroup
				if isGroup {
					frame.group = g
					frame.files = fileNameIndex(g)
				}
			}
		}
		if descend && f.fill(frame) {
			f.frames = append(f.frames, frame)
		}
	}

	f.isDir = false
	for {
		top = f.top()
		if top == nil {
			return false
		}
		top.pos++
		if top.pos < len(top.entries) {
			f.isDir = top.entries[top.pos].IsDir()
			return true
		}
		f.frames = f.frames[:len(f.frames)-1]
	}
}

// IsCurrentDirectory reports whether the current entry is a directory
func (f *FileFinder) IsCurrentDirectory() bool {
	return f.isDir
}

// CurrentNodeExists reports whether a node of the current directory's group
// has the current entry's file name
func (f *FileFinder) CurrentNodeExists() bool {
	top := f.top()
	if top == nil || top.files == nil {
		return false
	}
	_, ok := top.files[top.entries[top.pos].Name()]
	return ok
}

// CurrentFilePath is the full path of the current entry, "" once finished
func (f *FileFinder) CurrentFilePath() string {
	top := f.top()
	if top == nil {
		return ""
	}
	return filepath.Join(top.dir, top.entries[top.pos].Name())
}

// CurrentGroup is the group of the current directory, nil when the
// directory is the root or has no group yet
func (f *FileFinder) CurrentGroup() *Group {
	if top := f.top(); top != nil {
		return top.group
	}
	return nil
}

// GetOrCreateCurrentGroup returns the group of the current directory,
// creating the missing groups between it and the nearest existing one.
// Each created group is named after its directory.
func (f *FileFinder) GetOrCreateCurrentGroup() (*Group, error) {
	if len(f.frames) == 0 {
		return nil, errFinderDone
	}
	top := f.top()
	if len(f.frames) == 1 || top.group != nil {
		return top.group, nil
	}

	i := len(f.frames) - 1
	for i > 0 && f.frames[i].group == nil {
		i--
	}
	for j := i + 1; j < len(f.frames); j++ {
		g, err := NewGroup(f.root, f.frames[j-1].group, f.frames[j].dirName)
		if err != nil {
			return nil, err
		}
		f.frames[j].group = g
		f.frames[j].files = make(map[string]Node)
	}
	return top.group, nil
}
