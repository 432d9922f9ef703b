package addons

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// NodeID identifies a node for the lifetime of its root
type NodeID uint64

// Node is an entry of the addon tree. The variants are *Group, *PlainNode,
// *LocalVpkAddon and *WorkshopVpkAddon.
//
// Nodes are not safe for concurrent use: call their methods on the root's
// scheduler.
type Node interface {
	ID() NodeID
	Name() string
	SetName(name string) error
	Enabled() bool
	SetEnabled(enabled bool)
	EnabledInHierarchy() bool
	// Valid is false once the node has been destroyed
	Valid() bool
	Group() *Group
	Root() *Root
	CreationTime() time.Time
	// FileSize is the size of the backing file found by the last check
	FileSize() (int64, bool)

	RequiresFile() bool
	FileExtension() string
	FileName() string
	// FilePath is the backing path relative to the root directory
	FilePath() string
	FullFilePath() string
	// FullName is the slash separated path of names from the root
	FullName() string

	Tags() []string
	HasTag(tag string) bool
	AddTag(tag string) (bool, error)
	RemoveTag(tag string) bool
	RenameTag(oldTag, newTag string) error
	TagsInHierarchy() []string

	Problems() []Problem
	HasProblem() bool
	Checking() bool
	Check()
	AutoCheck()

	CanMoveTo(group *Group) bool
	MoveTo(group *Group) error
	Destroy() <-chan struct{}
	DestroyWithFile() <-chan struct{}
	ClearCaches()

	base() *nodeBase
	kind() Kind
	onCheck()
	onPostCheck()
	onEnabledChanged()
	onDestroy() (wait func())
	record() Record
	applyRecord(rec Record)
}

type checkState int

const (
	checkIdle checkState = iota
	checkRunning
)

type nodeBase struct {
	self  Node
	id    NodeID
	root  *Root
	group *Group

	name             string
	enabled          bool
	ancestorsEnabled bool
	valid            bool
	created          time.Time
	fileSize         int64
	tags             []string

	problems  []Problem
	check     checkState
	blockMove int

	ctx    context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup
}

// initNode validates name against parent and attaches self. Every
// constructor goes through here.
func (r *Root) initNode(b *nodeBase, self Node, parent *Group, name string) error {
	if parent != nil {
		if parent.root != r {
			return ErrDifferentRoot
		}
		if !parent.valid {
			return ErrNodeInvalid
		}
	}
	if err := ValidateName(name); err != nil {
		return err
	}
	c := r.containerFor(parent)
	if err := c.checkName(name); err != nil {
		return err
	}

	r.lastID++
	b.self = self
	b.id = r.lastID
	b.root = r
	b.group = parent
	b.name = name
	b.valid = true
	b.created = r.now()
	b.fileSize = -1
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.ancestorsEnabled = parent == nil || parent.EnabledInHierarchy()

	if parent != nil {
		parent.addChild(self)
	} else {
		r.nodes.addWithoutNameCheck(self)
	}
	r.RequestSave()
	return nil
}

func (n *nodeBase) base() *nodeBase { return n }

func (n *nodeBase) ID() NodeID              { return n.id }
func (n *nodeBase) Name() string            { return n.name }
func (n *nodeBase) Enabled() bool           { return n.enabled }
func (n *nodeBase) Valid() bool             { return n.valid }
func (n *nodeBase) Group() *Group           { return n.group }
func (n *nodeBase) Root() *Root             { return n.root }
func (n *nodeBase) CreationTime() time.Time { return n.created }
func (n *nodeBase) Checking() bool          { return n.check == checkRunning }

func (n *nodeBase) EnabledInHierarchy() bool {
	return n.enabled && n.ancestorsEnabled
}

func (n *nodeBase) FileSize() (int64, bool) {
	return n.fileSize, n.fileSize >= 0
}

func (n *nodeBase) RequiresFile() bool    { return false }
func (n *nodeBase) FileExtension() string { return "" }

func (n *nodeBase) FileName() string {
	return n.name + n.self.FileExtension()
}

func (n *nodeBase) FilePath() string {
	var parts []string
	for g := n.group; g != nil; g = g.group {
		parts = append(parts, g.name)
	}
	slices.Reverse(parts)
	parts = append(parts, n.self.FileName())
	return filepath.Join(parts...)
}

func (n *nodeBase) FullFilePath() string {
	return filepath.Join(n.root.dir, n.self.FilePath())
}

func (n *nodeBase) FullName() string {
	if n.group == nil {
		return n.name
	}
	return path.Join(n.group.FullName(), n.name)
}

func (n *nodeBase) container() *containerService {
	return n.root.containerFor(n.group)
}

func (n *nodeBase) SetName(name string) error {
	if !n.valid {
		return ErrNodeInvalid
	}
	if name == n.name {
		return nil
	}
	if err := ValidateName(name); err != nil {
		return err
	}
	c := n.container()
	if err := c.checkName(name); err != nil {
		return err
	}
	if err := n.checkMoveDenied(); err != nil {
		return err
	}

	if n.self.RequiresFile() {
		src := n.FullFilePath()
		dst := filepath.Join(filepath.Dir(src), name+n.self.FileExtension())
		if err := n.root.moveFile(src, dst); err != nil {
			return err
		}
	}

	c.changeNameUnchecked(n.name, name, n.self)
	n.name = name
	n.root.RequestSave()
	n.self.AutoCheck()
	return nil
}

func (n *nodeBase) SetEnabled(enabled bool) {
	if !n.valid || n.enabled == enabled {
		return
	}
	n.enabled = enabled
	n.updateEnabledInHierarchy()
	n.self.onEnabledChanged()
	if n.group != nil {
		n.group.notifyChildEnabledChanged(n.self)
	}
	n.root.RequestSave()
}

func (n *nodeBase) onEnabledChanged() {}

// updateEnabledInHierarchy refreshes the derived flag of n and of every
// descendant whose value can change. Subtrees whose root keeps its value are
// skipped.
func (n *nodeBase) updateEnabledInHierarchy() {
	stack := []Node{n.self}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		b := cur.base()
		before := b.EnabledInHierarchy()
		b.ancestorsEnabled = b.group == nil || b.group.EnabledInHierarchy()
		if cur != n.self && b.EnabledInHierarchy() == before {
			continue
		}
		if g, ok := cur.(*Group); ok {
			children := g.children.nodes
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i])
			}
		}
	}
}

// Problems

func (n *nodeBase) Problems() []Problem {
	return slices.Clone(n.problems)
}

func (n *nodeBase) HasProblem() bool {
	return len(n.problems) > 0
}

func (n *nodeBase) addProblem(p Problem) {
	had := n.HasProblem()
	n.problems = append(n.problems, p)
	if !had {
		n.problemStateChanged()
	}
}

func (n *nodeBase) removeProblem(p Problem) {
	i := slices.Index(n.problems, p)
	if i < 0 {
		return
	}
	n.problems = slices.Delete(n.problems, i, i+1)
	if !n.HasProblem() {
		n.problemStateChanged()
	}
}

func (n *nodeBase) clearProblems() {
	if !n.HasProblem() {
		return
	}
	n.problems = nil
	n.problemStateChanged()
}

func (n *nodeBase) problemStateChanged() {
	if n.group != nil {
		n.group.refreshChildrenProblem()
	}
}

// Check revalidates the node and replaces its problems. A node that is
// already checking ignores the call.
func (n *nodeBase) Check() {
	if !n.valid || n.check == checkRunning {
		return
	}
	n.check = checkRunning
	n.clearProblems()
	n.self.onCheck()
	n.self.onPostCheck()
	n.check = checkIdle
}

// AutoCheck runs Check unless the root is suppressing automatic checks
func (n *nodeBase) AutoCheck() {
	if n.root.IsAutoCheck() {
		n.self.Check()
	}
}

func (n *nodeBase) onCheck() {}

func (n *nodeBase) onPostCheck() {
	n.fileSize = -1
	if !n.self.RequiresFile() {
		return
	}
	info, err := n.root.fs.Stat(n.FullFilePath())
	if err != nil {
		n.addProblem(&FileMissingProblem{source: n.self, Path: n.FullFilePath()})
		return
	}
	if !info.IsDir() {
		n.fileSize = info.Size()
	}
}

func (n *nodeBase) ClearCaches() {}

// Moving

// CanMoveTo reports whether group is neither n nor one of its descendants.
// A nil group stands for the root.
func (n *nodeBase) CanMoveTo(group *Group) bool {
	if group == nil {
		return true
	}
	if group.root != n.root {
		return false
	}
	for g := group; g != nil; g = g.group {
		if Node(g) == n.self {
			return false
		}
	}
	return true
}

func (n *nodeBase) MoveTo(group *Group) error {
	if !n.valid || (group != nil && !group.valid) {
		return ErrNodeInvalid
	}
	if group != nil && group.root != n.root {
		return ErrDifferentRoot
	}
	if !n.CanMoveTo(group) {
		return fmt.Errorf("%w: %s", ErrMoveIntoSelf, n.FullName())
	}
	if group == n.group {
		return nil
	}
	if err := n.checkMoveDenied(); err != nil {
		return err
	}
	target := n.root.containerFor(group)
	if err := target.checkName(n.name); err != nil {
		return err
	}

	if n.self.RequiresFile() {
		dir := n.root.dir
		if group != nil {
			dir = group.FullFilePath()
		}
		if err := n.root.moveFile(n.FullFilePath(), filepath.Join(dir, n.self.FileName())); err != nil {
			return err
		}
	}

	old := n.group
	if old != nil {
		old.removeChild(n.self)
	} else {
		n.root.nodes.remove(n.self)
	}
	n.group = group
	if group != nil {
		group.addChild(n.self)
	} else {
		n.root.nodes.addWithoutNameCheck(n.self)
	}
	n.updateEnabledInHierarchy()
	n.root.RequestSave()
	n.self.AutoCheck()
	return nil
}

// blockMoves forbids renaming or moving n, or any group above it, until the
// returned func runs
func (n *nodeBase) blockMoves() (release func()) {
	n.blockMove++
	var once sync.Once
	return func() {
		once.Do(func() { n.blockMove-- })
	}
}

func (n *nodeBase) checkMoveDenied() error {
	for _, d := range subtree(n.self) {
		if d.base().blockMove > 0 {
			return &MoveDeniedError{Node: d}
		}
	}
	return nil
}

// Destruction

func (n *nodeBase) Destroy() <-chan struct{} {
	return n.destroy(false)
}

// DestroyWithFile destroys the subtree and then deletes the backing file
func (n *nodeBase) DestroyWithFile() <-chan struct{} {
	return n.destroy(true)
}

func (n *nodeBase) destroy(withFile bool) <-chan struct{} {
	done := make(chan struct{})
	if !n.valid {
		close(done)
		return done
	}

	var file string
	if withFile && n.self.RequiresFile() {
		file = n.FullFilePath()
	}

	nodes := subtree(n.self)
	waits := make([]func(), 0, len(nodes))
	for _, d := range nodes {
		waits = append(waits, d.onDestroy())
	}

	if n.group != nil {
		n.group.removeChild(n.self)
	} else {
		n.root.nodes.remove(n.self)
	}
	n.root.RequestSave()

	fs, log := n.root.fs, n.root.log
	go func() {
		defer close(done)
		for _, wait := range waits {
			wait()
		}
		if file == "" {
			return
		}
		if err := fs.RemoveAll(file); err != nil {
			log.Error("Failed to delete node file", "path", file, "error", err)
		}
	}()
	return done
}

func (n *nodeBase) onDestroy() func() {
	n.valid = false
	n.cancel()
	return n.tasks.Wait
}

// goTask runs fn in the background, scoped to the node's lifetime.
// Destroy cancels ctx and waits for fn to return.
func (n *nodeBase) goTask(fn func(ctx context.Context)) bool {
	if !n.valid {
		return false
	}
	n.tasks.Add(1)
	go func() {
		defer n.tasks.Done()
		fn(n.ctx)
	}()
	return true
}

// post runs fn on the scheduler if the node is still alive by then
func (n *nodeBase) post(fn func()) {
	n.root.sched.Post(func() {
		if n.valid {
			fn()
		}
	})
}

// Records

func (n *nodeBase) nodeRecord() NodeRecord {
	return NodeRecord{
		Name:         n.name,
		Enabled:      n.enabled,
		CreationTime: n.created,
		Tags:         slices.Clone(n.tags),
	}
}

func (n *nodeBase) applyNodeRecord(rec *NodeRecord) {
	if !rec.CreationTime.IsZero() {
		n.created = rec.CreationTime
	}
	n.self.SetEnabled(rec.Enabled)
	for _, t := range rec.Tags {
		if _, err := n.AddTag(t); err != nil {
			n.root.log.Warn("Skipping saved tag", "node", n.name, "tag", t, "error", err)
		}
	}
}

// subtree lists n and its descendants in pre-order
func subtree(n Node) []Node {
	var out []Node
	stack := []Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, cur)
		if g, ok := cur.(*Group); ok {
			children := g.children.nodes
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i])
			}
		}
	}
	return out
}

func (r *Root) moveFile(src, dst string) error {
	exists, err := afero.Exists(r.fs, src)
	if err != nil {
		return &FileMoveError{Source: src, Target: dst, Err: err}
	}
	if !exists {
		return nil
	}
	if taken, _ := afero.Exists(r.fs, dst); taken {
		return &FileMoveError{Source: src, Target: dst, Err: ErrFileExists}
	}
	if err := r.fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return &FileMoveError{Source: src, Target: dst, Err: err}
	}
	if err := r.fs.Rename(src, dst); err != nil {
		return &FileMoveError{Source: src, Target: dst, Err: err}
	}
	r.log.Debug("Moved node file", "from", src, "to", dst)
	return nil
}
