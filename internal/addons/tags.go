package addons

import (
	"fmt"
	"slices"
	"strings"
)

// BuiltInTags are offered when tagging nodes; any other non-empty tag is
// accepted as well
var BuiltInTags = []string{
	"Survivors", "Bill", "Francis", "Louis", "Zoey", "Coach", "Ellis", "Nick", "Rochelle",
	"Common Infected", "Special Infected", "Boomer", "Charger", "Hunter", "Jockey", "Smoker", "Spitter", "Tank", "Witch",
	"Campaigns", "Weapons", "Items", "Sounds", "Scripts", "UI", "Miscellaneous", "Models", "Textures",
	"Single Player", "Co-op", "Versus", "Scavenge", "Survival", "Realism", "Realism Versus", "Mutations",
	"Grenade Launcher", "M60", "Melee", "Pistol", "Rifle", "Shotgun", "SMG", "Sniper", "Throwable",
	"Adrenaline", "Defibrillator", "Medkit", "Pills", "Other",
}

func validateTag(tag string) error {
	if strings.TrimSpace(tag) == "" {
		return ErrInvalidTag
	}
	return nil
}

// Tags returns the node's own tags in the order they were added
func (n *nodeBase) Tags() []string {
	return slices.Clone(n.tags)
}

func (n *nodeBase) HasTag(tag string) bool {
	return slices.Contains(n.tags, tag)
}

// AddTag appends tag. It reports false when the node already carries it.
func (n *nodeBase) AddTag(tag string) (bool, error) {
	if err := validateTag(tag); err != nil {
		return false, err
	}
	if !n.valid {
		return false, ErrNodeInvalid
	}
	if n.HasTag(tag) {
		return false, nil
	}
	n.tags = append(n.tags, tag)
	n.root.RequestSave()
	return true, nil
}

func (n *nodeBase) RemoveTag(tag string) bool {
	i := slices.Index(n.tags, tag)
	if i < 0 {
		return false
	}
	n.tags = slices.Delete(n.tags, i, i+1)
	n.root.RequestSave()
	return true
}

// RenameTag replaces oldTag in place. When the node already has newTag the
// old one is only removed. A node without oldTag is left alone.
func (n *nodeBase) RenameTag(oldTag, newTag string) error {
	if err := validateTag(newTag); err != nil {
		return err
	}
	i := slices.Index(n.tags, oldTag)
	if i < 0 || oldTag == newTag {
		return nil
	}
	if n.HasTag(newTag) {
		n.tags = slices.Delete(n.tags, i, i+1)
	} else {
		n.tags[i] = newTag
	}
	n.root.RequestSave()
	return nil
}

// TagsInHierarchy is the node's tags followed by those of its groups up to
// the top level, each listed once
func (n *nodeBase) TagsInHierarchy() []string {
	out := slices.Clone(n.tags)
	for g := n.group; g != nil; g = g.group {
		for _, t := range g.tags {
			if !slices.Contains(out, t) {
				out = append(out, t)
			}
		}
	}
	return out
}

// RenameTagEverywhere renames a tag on every node of the tree and returns
// how many nodes carried it
func (r *Root) RenameTagEverywhere(oldTag, newTag string) (int, error) {
	if err := validateTag(newTag); err != nil {
		return 0, err
	}
	count := 0
	for _, n := range r.AllNodes() {
		b := n.base()
		if !b.HasTag(oldTag) {
			continue
		}
		if err := b.RenameTag(oldTag, newTag); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// AllTags lists every tag used in the tree, sorted
func (r *Root) AllTags() []string {
	var out []string
	for _, n := range r.AllNodes() {
		for _, t := range n.base().tags {
			if !slices.Contains(out, t) {
				out = append(out, t)
			}
		}
	}
	slices.Sort(out)
	return out
}

// TagFilterMode selects how SearchOptions.Tags narrows a search
type TagFilterMode int

const (
	// TagAny keeps nodes carrying at least one of the tags
	TagAny TagFilterMode = iota
	// TagAll keeps nodes carrying every tag
	TagAll
	// TagNone keeps nodes carrying none of the tags
	TagNone
)

// ParseTagFilterMode accepts any, all and none
func ParseTagFilterMode(s string) (TagFilterMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "any", "or", "":
		return TagAny, nil
	case "all", "and":
		return TagAll, nil
	case "none", "not":
		return TagNone, nil
	}
	return TagAny, fmt.Errorf("unknown tag filter mode %q", s)
}

func (m TagFilterMode) match(filter, tags []string) bool {
	switch m {
	case TagAll:
		for _, t := range filter {
			if !slices.Contains(tags, t) {
				return false
			}
		}
		return true
	case TagNone:
		for _, t := range filter {
			if slices.Contains(tags, t) {
				return false
			}
		}
		return true
	default:
		for _, t := range filter {
			if slices.Contains(tags, t) {
				return true
			}
		}
		return false
	}
}
