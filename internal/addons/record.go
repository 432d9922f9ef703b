package addons

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind tags a record with the node variant it rebuilds into
type Kind string

const (
	KindNode        Kind = "node"
	KindGroup       Kind = "group"
	KindLocalVpk    Kind = "local_vpk"
	KindWorkshopVpk Kind = "workshop_vpk"
)

// KindOf returns the variant of n
func KindOf(n Node) Kind { return n.kind() }

// RootRecordVersion is written into every save file
const RootRecordVersion = 1

// Record is the saved form of one node
type Record interface {
	Kind() Kind
	Base() *NodeRecord
}

// NodeRecord holds the fields every node saves. It is also the record of a
// *PlainNode.
type NodeRecord struct {
	Name         string    `json:"name"`
	Enabled      bool      `json:"enabled"`
	CreationTime time.Time `json:"creation_time"`
	Tags         []string  `json:"tags,omitempty"`
}

func (r *NodeRecord) Kind() Kind        { return KindNode }
func (r *NodeRecord) Base() *NodeRecord { return r }

type GroupRecord struct {
	NodeRecord
	EnableStrategy EnableStrategy `json:"enable_strategy"`
	Children       []Envelope     `json:"children"`
}

func (r *GroupRecord) Kind() Kind { return KindGroup }

type LocalVpkRecord struct {
	NodeRecord
	VpkID uuid.UUID `json:"vpk_id"`
}

func (r *LocalVpkRecord) Kind() Kind { return KindLocalVpk }

type WorkshopVpkRecord struct {
	NodeRecord
	PublishedFileID    *uint64            `json:"published_file_id,omitempty"`
	AutoUpdate         AutoUpdateStrategy `json:"auto_update"`
	RequestAutoSetName bool               `json:"request_auto_set_name,omitempty"`
}

func (r *WorkshopVpkRecord) Kind() Kind { return KindWorkshopVpk }

// RootRecord is the content of the save file
type RootRecord struct {
	Version int        `json:"version"`
	Nodes   []Envelope `json:"nodes"`
}

// Envelope wraps a Record with its kind so the matching record type can be
// chosen when decoding
type Envelope struct {
	Record Record
}

type envelopeJSON struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

var recordFactories = map[Kind]func() Record{
	KindNode:        func() Record { return &NodeRecord{} },
	KindGroup:       func() Record { return &GroupRecord{} },
	KindLocalVpk:    func() Record { return &LocalVpkRecord{} },
	KindWorkshopVpk: func() Record { return &WorkshopVpkRecord{} },
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(e.Record)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelopeJSON{Kind: e.Record.Kind(), Data: data})
}

func (e *Envelope) UnmarshalJSON(b []byte) error {
	var raw envelopeJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	factory, ok := recordFactories[raw.Kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, raw.Kind)
	}
	rec := factory()
	if err := json.Unmarshal(raw.Data, rec); err != nil {
		return fmt.Errorf("failed to decode %s record: %w", raw.Kind, err)
	}
	e.Record = rec
	return nil
}

// newNode is the factory rebuilding a live node from the kind of its record
func newNode(kind Kind, root *Root, parent *Group, name string) (Node, error) {
	var (
		n   Node
		err error
	)
	switch kind {
	case KindNode:
		n, err = wrapNode(NewPlainNode(root, parent, name))
	case KindGroup:
		n, err = wrapNode(NewGroup(root, parent, name))
	case KindLocalVpk:
		n, err = wrapNode(NewLocalVpkAddon(root, parent, name))
	case KindWorkshopVpk:
		n, err = wrapNode(NewWorkshopVpkAddon(root, parent, name))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return n, err
}

// wrapNode keeps a nil *T from turning into a non-nil Node
func wrapNode[T Node](n T, err error) (Node, error) {
	if err != nil {
		return nil, err
	}
	return n, nil
}

// NewRecord converts n and its subtree into records. The tree is walked
// with an explicit stack.
func NewRecord(n Node) Record {
	rec := n.record()
	g, ok := n.(*Group)
	if !ok {
		return rec
	}

	type frame struct {
		children []Node
		rec      *GroupRecord
		next     int
	}
	stack := []*frame{{children: g.children.nodes, rec: rec.(*GroupRecord)}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if f.next >= len(f.children) {
			stack = stack[:len(stack)-1]
			continue
		}
		child := f.children[f.next]
		f.next++

		crec := child.record()
		f.rec.Children = append(f.rec.Children, Envelope{Record: crec})
		if cg, ok := child.(*Group); ok {
			stack = append(stack, &frame{children: cg.children.nodes, rec: crec.(*GroupRecord)})
		}
	}
	return rec
}

// CreateRecord converts the whole tree
func (r *Root) CreateRecord() *RootRecord {
	rec := &RootRecord{Version: RootRecordVersion, Nodes: []Envelope{}}
	for _, n := range r.nodes.nodes {
		rec.Nodes = append(rec.Nodes, Envelope{Record: NewRecord(n)})
	}
	return rec
}

// LoadRecord rebuilds the nodes of rec under parent (nil for the top
// level). Names taken by an existing node get a unique suffix; records that
// cannot be rebuilt are skipped and logged. All children of a group are
// attached before any grandchild is created.
func (r *Root) LoadRecord(rec *RootRecord, parent *Group) {
	release := r.BlockAutoCheck()
	defer release()
	r.loading++
	defer func() { r.loading-- }()

	type pending struct {
		group   *Group
		records []Envelope
	}
	stack := []pending{{group: parent, records: rec.Nodes}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var next []pending
		for _, env := range p.records {
			n, err := r.createFromRecord(env.Record, p.group)
			if err != nil {
				r.log.Warn("Skipping saved node", "error", err)
				continue
			}
			g, ok := n.(*Group)
			if !ok {
				continue
			}
			if grec, ok := env.Record.(*GroupRecord); ok && len(grec.Children) > 0 {
				next = append(next, pending{group: g, records: grec.Children})
			}
		}
		for i := len(next) - 1; i >= 0; i-- {
			stack = append(stack, next[i])
		}
	}
}

func (r *Root) createFromRecord(rec Record, parent *Group) (Node, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: empty envelope", ErrUnknownKind)
	}
	name := rec.Base().Name
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	c := r.containerFor(parent)
	if c.nameExists(name) {
		unique := c.uniqueName(name)
		r.log.Warn("Saved node name already taken", "name", name, "renamed", unique)
		name = unique
	}

	n, err := newNode(rec.Kind(), r, parent, name)
	if err != nil {
		return nil, err
	}
	n.applyRecord(rec)
	return n, nil
}
