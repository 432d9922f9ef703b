package addons

import (
	"path/filepath"
	"strings"
)

// importItem is a node staged by Import. Nodes are only created once the
// directory walk is over.
type importItem struct {
	kind            Kind
	name            string
	group           *Group
	publishedFileID uint64
}

func (it importItem) create(root *Root) (Node, error) {
	switch it.kind {
	case KindWorkshopVpk:
		a, err := NewWorkshopVpkAddon(root, it.group, it.name)
		if err != nil {
			return nil, err
		}
		a.SetPublishedFileID(it.publishedFileID)
		return a, nil
	default:
		return NewLocalVpkAddon(root, it.group, it.name)
	}
}

// Import creates nodes for the files under the root directory, or under
// group's directory, that no node stands for yet: ".vpk" files become local
// addons and ".workshop" directories holding a meta file become workshop
// addons. Missing groups are created after their directories. Import does
// not stop at the first failure; it returns the created nodes and the first
// directory listing error.
func (r *Root) Import(group *Group) ([]Node, error) {
	if group != nil && !group.valid {
		return nil, ErrNodeInvalid
	}

	var items []importItem
	finder := NewFileFinder(r, group)
	skipDir := false
	for finder.MoveNext(skipDir) {
		skipDir = false
		if finder.CurrentNodeExists() {
			continue
		}

		path := finder.CurrentFilePath()
		ext := filepath.Ext(path)
		name := strings.TrimSuffix(filepath.Base(path), ext)

		var item importItem
		switch {
		case finder.IsCurrentDirectory() && ext == WorkshopVpkExt:
			meta, err := ReadWorkshopMeta(r.fs, path)
			if err != nil {
				r.log.Error("Failed to read workshop meta", "path", path, "error", err)
				continue
			}
			if meta == nil {
				continue
			}
			skipDir = true
			item = importItem{kind: KindWorkshopVpk, name: name, publishedFileID: meta.PublishedFileID}
		case !finder.IsCurrentDirectory() && ext == LocalVpkExt:
			item = importItem{kind: KindLocalVpk, name: name}
		default:
			continue
		}

		g, err := finder.GetOrCreateCurrentGroup()
		if err != nil {
			r.log.Warn("Failed to create group for imported file", "path", path, "error", err)
			skipDir = finder.IsCurrentDirectory()
			continue
		}
		item.group = g
		items = append(items, item)
	}

	created := make([]Node, 0, len(items))
	for _, it := range items {
		n, err := it.create(r)
		if err != nil {
			r.log.Warn("Failed to import addon", "name", it.name, "error", err)
			continue
		}
		created = append(created, n)
	}
	if len(created) > 0 {
		r.log.Info("Imported addons", "count", len(created))
	}
	return created, finder.Err()
}
