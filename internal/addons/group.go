package addons

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// EnableStrategy couples the enabled flags of a group's children
type EnableStrategy int

const (
	StrategyNone EnableStrategy = iota
	// StrategySingle keeps at most one child enabled
	StrategySingle
	// StrategySingleRandom is StrategySingle plus EnableRandomChild
	StrategySingleRandom
	// StrategyAll keeps the group and all children equal
	StrategyAll
)

func (s EnableStrategy) String() string {
	switch s {
	case StrategyNone:
		return "none"
	case StrategySingle:
		return "single"
	case StrategySingleRandom:
		return "single-random"
	case StrategyAll:
		return "all"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseEnableStrategy accepts the names printed by String
func ParseEnableStrategy(s string) (EnableStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return StrategyNone, nil
	case "single":
		return StrategySingle, nil
	case "single-random", "singlerandom", "random":
		return StrategySingleRandom, nil
	case "all":
		return StrategyAll, nil
	}
	return StrategyNone, fmt.Errorf("unknown enable strategy %q", s)
}

func (s EnableStrategy) single() bool {
	return s == StrategySingle || s == StrategySingleRandom
}

// strategyState guards the group against reacting to the flag changes it is
// making itself
type strategyState int

const (
	strategyIdle strategyState = iota
	strategyHandling
)

// Group is a node that owns child nodes and mirrors a directory
type Group struct {
	nodeBase
	children containerService
	strategy EnableStrategy
	state    strategyState
}

// NewGroup creates an empty group under parent, or at the top level when
// parent is nil
func NewGroup(root *Root, parent *Group, name string) (*Group, error) {
	g := &Group{children: newContainerService()}
	if err := root.initNode(&g.nodeBase, g, parent, name); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Group) kind() Kind { return KindGroup }

func (g *Group) RequiresFile() bool { return true }

func (g *Group) Nodes() []Node { return g.children.list() }

func (g *Group) NodeByName(name string) (Node, bool) { return g.children.get(name) }

func (g *Group) NameExists(name string) bool { return g.children.nameExists(name) }

func (g *Group) UniqueName(name string) string { return g.children.uniqueName(name) }

func (g *Group) Len() int { return len(g.children.nodes) }

func (g *Group) EnableStrategy() EnableStrategy { return g.strategy }

// SetEnableStrategy changes the strategy without touching any flag; a group
// that now violates it reports an EnableStrategyProblem
func (g *Group) SetEnableStrategy(s EnableStrategy) {
	if g.strategy == s {
		return
	}
	g.strategy = s
	g.root.RequestSave()
	g.AutoCheck()
}

// EnableRandomChild enables one child picked uniformly at random. It only
// applies to StrategySingleRandom groups and reports whether a child was
// enabled.
func (g *Group) EnableRandomChild() bool {
	if g.strategy != StrategySingleRandom || len(g.children.nodes) == 0 {
		return false
	}
	child := g.children.nodes[rand.IntN(len(g.children.nodes))]
	child.SetEnabled(true)
	return true
}

func (g *Group) addChild(n Node) {
	g.children.addWithoutNameCheck(n)
	g.childAdded(n)
	if n.HasProblem() {
		g.refreshChildrenProblem()
	}
	g.AutoCheck()
}

func (g *Group) removeChild(n Node) {
	g.children.remove(n)
	g.refreshChildrenProblem()
	g.AutoCheck()
}

// childAdded brings a new child in line with the strategy. Under
// StrategyAll the child adopts the group's flag.
func (g *Group) childAdded(n Node) {
	switch {
	case g.strategy == StrategyAll:
		if !g.beginHandling() {
			return
		}
		defer g.endHandling()
		n.SetEnabled(g.enabled)
	case g.strategy.single() && n.Enabled():
		g.notifyChildEnabledChanged(n)
	}
}

// beginHandling enters the handling state. Saved flags are applied as they
// are while a record loads, so the group does not react then either.
func (g *Group) beginHandling() bool {
	if g.state == strategyHandling || g.root.loading > 0 {
		return false
	}
	g.state = strategyHandling
	return true
}

func (g *Group) endHandling() {
	g.state = strategyIdle
}

func (g *Group) notifyChildEnabledChanged(child Node) {
	if !g.beginHandling() {
		return
	}
	defer g.endHandling()

	switch g.strategy {
	case StrategySingle, StrategySingleRandom:
		if !child.Enabled() {
			return
		}
		g.SetEnabled(true)
		for _, other := range g.children.list() {
			if other != child {
				other.SetEnabled(false)
			}
		}
	case StrategyAll:
		v := child.Enabled()
		g.SetEnabled(v)
		for _, c := range g.children.list() {
			c.SetEnabled(v)
		}
	}
	g.AutoCheck()
}

func (g *Group) onEnabledChanged() {
	if g.strategy != StrategyAll || !g.beginHandling() {
		return
	}
	defer g.endHandling()
	for _, c := range g.children.list() {
		c.SetEnabled(g.enabled)
	}
}

// enableStrategyViolated reports whether the flags break the strategy
func (g *Group) enableStrategyViolated() bool {
	enabled := 0
	for _, c := range g.children.nodes {
		if c.Enabled() {
			enabled++
		}
	}
	switch g.strategy {
	case StrategySingle, StrategySingleRandom:
		return enabled > 1
	case StrategyAll:
		if g.enabled {
			enabled++
		}
		return enabled != 0 && enabled != len(g.children.nodes)+1
	}
	return false
}

// repairEnableStrategy disables every child of a single group, or forces
// the children of an all group to the group's own flag
func (g *Group) repairEnableStrategy() bool {
	if !g.beginHandling() {
		return false
	}
	switch {
	case g.strategy.single():
		for _, c := range g.children.list() {
			c.SetEnabled(false)
		}
	case g.strategy == StrategyAll:
		for _, c := range g.children.list() {
			c.SetEnabled(g.enabled)
		}
	}
	g.endHandling()
	g.Check()
	return !g.enableStrategyViolated()
}

func (g *Group) onCheck() {
	if g.enableStrategyViolated() {
		g.addProblem(&EnableStrategyProblem{group: g})
	}
	g.refreshChildrenProblem()
}

// refreshChildrenProblem keeps a single ChildrenProblem on g while any
// direct child has problems. Changes bubble up through addProblem and
// removeProblem.
func (g *Group) refreshChildrenProblem() {
	if !g.valid {
		return
	}
	has := false
	for _, c := range g.children.nodes {
		if c.HasProblem() {
			has = true
			break
		}
	}

	var existing Problem
	for _, p := range g.problems {
		if _, ok := p.(*ChildrenProblem); ok {
			existing = p
			break
		}
	}

	switch {
	case has && existing == nil:
		g.addProblem(&ChildrenProblem{group: g})
	case !has && existing != nil:
		g.removeProblem(existing)
	}
}

func (g *Group) record() Record {
	return &GroupRecord{
		NodeRecord:     g.nodeRecord(),
		EnableStrategy: g.strategy,
	}
}

func (g *Group) applyRecord(rec Record) {
	r, ok := rec.(*GroupRecord)
	if !ok {
		return
	}
	g.strategy = r.EnableStrategy
	g.applyNodeRecord(&r.NodeRecord)
}
