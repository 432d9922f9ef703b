package addons

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// SearchOptions tunes Search
type SearchOptions struct {
	// Regex treats the text as a regular expression
	Regex      bool
	IgnoreCase bool
	// Flatten drops groups and searches their leaves one by one
	Flatten bool
	// Tags, when set, also requires the tags a node inherits to pass TagMode
	Tags    []string
	TagMode TagFilterMode
}

// SearchMatch is a node matched by Search, with what was read of it while
// taking the snapshot
type SearchMatch struct {
	Node     Node
	FullName string
	IsGroup  bool
}

type searchEntry struct {
	node     Node
	name     string
	fullName string
	tags     []string
	children []*searchEntry
}

func (e *searchEntry) isGroup() bool {
	_, ok := e.node.(*Group)
	return ok
}

type matcher func(string) bool

func newMatcher(text string, opts SearchOptions) (matcher, error) {
	if opts.Regex {
		pattern := text
		if opts.IgnoreCase {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid search pattern: %w", err)
		}
		return re.MatchString, nil
	}
	if opts.IgnoreCase {
		text = strings.ToLower(text)
		return func(s string) bool { return strings.Contains(strings.ToLower(s), text) }, nil
	}
	return func(s string) bool { return strings.Contains(s, text) }, nil
}

// Search matches node names against text, narrowed by the tag filter of
// opts. A group matches when it or any of its descendants does. nodes nil
// searches the top level.
//
// The tree is copied on the scheduler and matched on the calling
// goroutine, so Search must not be called on the scheduler itself.
func (r *Root) Search(ctx context.Context, nodes []Node, text string, opts SearchOptions) ([]SearchMatch, error) {
	nameMatch, err := newMatcher(text, opts)
	if err != nil {
		return nil, err
	}
	match := func(e *searchEntry) bool {
		if opts.Tags != nil && !opts.TagMode.match(opts.Tags, e.tags) {
			return false
		}
		return nameMatch(e.name)
	}

	var entries []*searchEntry
	err = postWait(ctx, r.sched, func() {
		if nodes == nil {
			nodes = r.nodes.list()
		}
		for _, n := range nodes {
			if n.Valid() {
				entries = append(entries, snapshotSearch(n))
			}
		}
	})
	if err != nil {
		return nil, err
	}

	if opts.Flatten {
		entries = flattenSearch(entries)
	}

	var out []SearchMatch
	for _, e := range entries {
		ok, err := e.match(ctx, match)
		if err != nil {
			return out, err
		}
		if ok {
			out = append(out, SearchMatch{Node: e.node, FullName: e.fullName, IsGroup: e.isGroup()})
		}
	}
	return out, nil
}

// snapshotSearch copies the subtree under n
func snapshotSearch(n Node) *searchEntry {
	top := newSearchEntry(n)
	stack := []*searchEntry{top}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		g, ok := cur.node.(*Group)
		if !ok {
			continue
		}
		for _, c := range g.children.nodes {
			child := newSearchEntry(c)
			cur.children = append(cur.children, child)
			stack = append(stack, child)
		}
	}
	return top
}

func newSearchEntry(n Node) *searchEntry {
	return &searchEntry{node: n, name: n.Name(), fullName: n.FullName(), tags: n.TagsInHierarchy()}
}

// flattenSearch replaces every group by the leaves below it
func flattenSearch(entries []*searchEntry) []*searchEntry {
	var out []*searchEntry
	for i := 0; i < len(entries); i++ {
		e := entries[i]
		if e.isGroup() {
			entries = append(entries, e.children...)
			continue
		}
		out = append(out, e)
	}
	return out
}

// match walks the entry breadth-first
func (e *searchEntry) match(ctx context.Context, match func(*searchEntry) bool) (bool, error) {
	queue := []*searchEntry{e}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		cur := queue[0]
		queue = queue[1:]
		if match(cur) {
			return true, nil
		}
		queue = append(queue, cur.children...)
	}
	return false, nil
}
