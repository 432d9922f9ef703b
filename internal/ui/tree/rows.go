package tree

import (
	"strconv"

	"github.com/bnema/vpkctl/internal/addons"
)

// Row is one line of the browser, copied out of the tree on the scheduler
type Row struct {
	ID          addons.NodeID
	Node        addons.Node
	Depth       int
	Name        string
	FullName    string
	Kind        addons.Kind
	Enabled     bool
	InHierarchy bool
	Strategy    string
	Problems    int
	Children    int
	Expanded    bool
}

func (r Row) IsGroup() bool { return r.Kind == addons.KindGroup }

func newRow(n addons.Node, depth int, expanded bool) Row {
	row := Row{
		ID:          n.ID(),
		Node:        n,
		Depth:       depth,
		Name:        n.Name(),
		FullName:    n.FullName(),
		Kind:        addons.KindOf(n),
		Enabled:     n.Enabled(),
		InHierarchy: n.EnabledInHierarchy(),
		Problems:    len(n.Problems()),
		Expanded:    expanded,
	}
	if g, ok := n.(*addons.Group); ok {
		row.Strategy = g.EnableStrategy().String()
		row.Children = g.Len()
	}
	return row
}

// BuildRows flattens the visible part of the tree: top level nodes plus the
// children of every expanded group. It must run on the scheduler.
func BuildRows(root *addons.Root, expanded map[addons.NodeID]bool) []Row {
	return buildRows(root, func(id addons.NodeID) bool { return expanded[id] })
}

// AllRows flattens the whole tree in pre-order. It must run on the
// scheduler.
func AllRows(root *addons.Root) []Row {
	return buildRows(root, func(addons.NodeID) bool { return true })
}

func buildRows(root *addons.Root, isOpen func(addons.NodeID) bool) []Row {
	type frame struct {
		node  addons.Node
		depth int
	}
	top := root.Nodes()
	stack := make([]frame, 0, len(top))
	for i := len(top) - 1; i >= 0; i-- {
		stack = append(stack, frame{top[i], 0})
	}

	var rows []Row
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		open := isOpen(f.node.ID())
		rows = append(rows, newRow(f.node, f.depth, open))

		g, ok := f.node.(*addons.Group)
		if !ok || !open {
			continue
		}
		children := g.Nodes()
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{children[i], f.depth + 1})
		}
	}
	return rows
}

// Details is everything the info view shows about a node
type Details struct {
	Row
	FilePath string
	Size     int64
	HasSize  bool
	Messages []string
	// Tags are the node's own, Inherited those added by its groups
	Tags      []string
	Inherited []string

	VpkPath     string
	Title       string
	Version     string
	Author      string
	Description string
	InfoErr     error

	PublishedFileID string
	AutoUpdate      string
	Downloading     bool
}

// Describe collects the details of n. It must run on the scheduler; for
// VPK addons it reads addoninfo.txt from the package.
func Describe(n addons.Node) Details {
	d := Details{
		Row:      newRow(n, 0, false),
		FilePath: n.FullFilePath(),
	}
	d.Size, d.HasSize = n.FileSize()
	d.Tags = n.Tags()
	for _, t := range n.TagsInHierarchy() {
		if !n.HasTag(t) {
			d.Inherited = append(d.Inherited, t)
		}
	}
	for _, p := range n.Problems() {
		d.Messages = append(d.Messages, p.Message())
	}

	if a, ok := n.(addons.VpkAddon); ok {
		d.VpkPath = a.VpkPath()
		if d.VpkPath != "" {
			if info, err := a.AddonInfo(); err != nil {
				d.InfoErr = err
			} else if info != nil {
				d.Title, d.Version = info.Title, info.Version
				d.Author, d.Description = info.Author, info.Description
			}
		}
	}
	if w, ok := n.(*addons.WorkshopVpkAddon); ok {
		if id, ok := w.PublishedFileID(); ok {
			d.PublishedFileID = strconv.FormatUint(id, 10)
		}
		d.AutoUpdate = w.AutoUpdateStrategy().String()
		d.Downloading = w.Download() != nil
	}
	return d
}
