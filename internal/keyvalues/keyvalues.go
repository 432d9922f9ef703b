// Package keyvalues reads and writes the KeyValues1 text format used by
// Source engine files such as addonlist.txt and addoninfo.txt. Reading is
// done by the vdf decoder; writing keeps the layout the game writes itself.
package keyvalues

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/andygrunwald/vdf"
)

var (
	ErrSyntax = errors.New("keyvalues syntax error")
)

// Node is a key with either a string value or a list of children
type Node struct {
	Key      string
	Value    string
	Children []*Node
	isObject bool
}

// NewObject returns an empty object node
func NewObject(key string) *Node {
	return &Node{Key: key, isObject: true}
}

// IsObject reports whether the node holds children rather than a value
func (n *Node) IsObject() bool {
	return n.isObject
}

// Get returns the first child whose key matches case-insensitively
func (n *Node) Get(key string) *Node {
	for _, c := range n.Children {
		if strings.EqualFold(c.Key, key) {
			return c
		}
	}
	return nil
}

// String returns the value of the named child, or "" when absent
func (n *Node) String(key string) string {
	if c := n.Get(key); c != nil && !c.isObject {
		return c.Value
	}
	return ""
}

// Set replaces the value of the first child matching key, or appends one
func (n *Node) Set(key, value string) {
	if c := n.Get(key); c != nil {
		c.Value = value
		c.Children = nil
		c.isObject = false
		return
	}
	n.Children = append(n.Children, &Node{Key: key, Value: value})
}

// Remove deletes every child matching key
func (n *Node) Remove(key string) {
	kept := n.Children[:0]
	for _, c := range n.Children {
		if !strings.EqualFold(c.Key, key) {
			kept = append(kept, c)
		}
	}
	n.Children = kept
}

// Parse reads a single top-level "key { ... }" document. Children come back
// sorted by key since the decoder does not keep file order.
func Parse(r io.Reader) (*Node, error) {
	m, err := vdf.NewParser(r).Parse()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	if len(m) != 1 {
		return nil, fmt.Errorf("%w: expected one root key, found %d", ErrSyntax, len(m))
	}
	for key, v := range m {
		obj, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: root key %q has no object", ErrSyntax, key)
		}
		return fromMap(key, obj), nil
	}
	return nil, nil
}

func fromMap(key string, m map[string]interface{}) *Node {
	n := NewObject(key)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := m[k].(type) {
		case map[string]interface{}:
			n.Children = append(n.Children, fromMap(k, v))
		default:
			n.Children = append(n.Children, &Node{Key: k, Value: fmt.Sprint(v)})
		}
	}
	return n
}

// Write serializes n in the tab-indented layout the game writes itself
func (n *Node) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	writeNode(bw, n, 0)
	return bw.Flush()
}

func writeNode(w *bufio.Writer, n *Node, depth int) {
	indent := strings.Repeat("\t", depth)
	if !n.isObject {
		_, _ = fmt.Fprintf(w, "%s%s\t\t%s\n", indent, quote(n.Key), quote(n.Value))
		return
	}
	_, _ = fmt.Fprintf(w, "%s%s\n%s{\n", indent, quote(n.Key), indent)
	for _, c := range n.Children {
		writeNode(w, c, depth+1)
	}
	_, _ = fmt.Fprintf(w, "%s}\n", indent)
}

var escaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`)

func quote(s string) string {
	return `"` + escaper.Replace(s) + `"`
}
