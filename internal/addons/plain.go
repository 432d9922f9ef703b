package addons

// PlainNode is a free-form entry without a backing file
type PlainNode struct {
	nodeBase
}

func NewPlainNode(root *Root, parent *Group, name string) (*PlainNode, error) {
	n := &PlainNode{}
	if err := root.initNode(&n.nodeBase, n, parent, name); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *PlainNode) kind() Kind { return KindNode }

func (n *PlainNode) record() Record {
	rec := n.nodeRecord()
	return &rec
}

func (n *PlainNode) applyRecord(rec Record) {
	n.applyNodeRecord(rec.Base())
}
