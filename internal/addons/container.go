package addons

import (
	"fmt"
	"slices"
)

// Container is implemented by Root and *Group
type Container interface {
	Nodes() []Node
	NodeByName(name string) (Node, bool)
	NameExists(name string) bool
	UniqueName(name string) string
}

// containerService keeps the ordered children of one container and the
// name index over them
type containerService struct {
	nodes []Node
	names map[string]Node
}

func newContainerService() containerService {
	return containerService{names: make(map[string]Node)}
}

func (c *containerService) addWithoutNameCheck(n Node) {
	c.changeNameUnchecked("", n.Name(), n)
	c.nodes = append(c.nodes, n)
}

func (c *containerService) remove(n Node) {
	if name := n.Name(); name != "" && c.names[name] == n {
		delete(c.names, name)
	}
	if i := slices.Index(c.nodes, n); i >= 0 {
		c.nodes = slices.Delete(c.nodes, i, i+1)
	}
}

func (c *containerService) nameExists(name string) bool {
	_, ok := c.names[name]
	return ok
}

func (c *containerService) checkName(name string) error {
	if c.nameExists(name) {
		return fmt.Errorf("%w: %s", ErrNameExists, name)
	}
	return nil
}

func (c *containerService) changeNameUnchecked(oldName, newName string, n Node) {
	if oldName != "" {
		delete(c.names, oldName)
	}
	c.names[newName] = n
}

func (c *containerService) uniqueName(name string) string {
	if !c.nameExists(name) {
		return name
	}
	for i := 1; ; i++ {
		try := fmt.Sprintf("%s(%d)", name, i)
		if !c.nameExists(try) {
			return try
		}
	}
}

func (c *containerService) list() []Node {
	return slices.Clone(c.nodes)
}

func (c *containerService) get(name string) (Node, bool) {
	n, ok := c.names[name]
	return n, ok
}
