// Package navspy tracks which page section a reader is looking at and
// resolves navigation highlighting for a nested table of contents.
package navspy

import (
	"errors"
	"fmt"
)

// ErrUnknownItem is returned when an id does not name any NavItem in the tree.
var ErrUnknownItem = errors.New("navspy: unknown nav item")

// NavItem is one entry of the navigation tree. Items with children are
// groups; a group's own anchor may be absent from the page.
type NavItem struct {
	ID       string    `json:"id" yaml:"id"`
	Label    string    `json:"label" yaml:"label"`
	Children []NavItem `json:"children,omitempty" yaml:"children,omitempty"`
}

// Flatten returns every id in the tree in depth-first order, parents
// before their children.
func Flatten(items []NavItem) []string {
	var ids []string
	for _, item := range items {
		ids = append(ids, item.ID)
		ids = append(ids, Flatten(item.Children)...)
	}
	return ids
}

// Validate checks that every item has an id and that ids are unique
// across the whole tree.
func Validate(items []NavItem) error {
	seen := make(map[string]bool)
	return validate(items, seen)
}

func validate(items []NavItem, seen map[string]bool) error {
	for _, item := range items {
		if item.ID == "" {
			return fmt.Errorf("nav item %q has an empty id", item.Label)
		}
		if seen[item.ID] {
			return fmt.Errorf("duplicate nav item id %q", item.ID)
		}
		seen[item.ID] = true
		if err := validate(item.Children, seen); err != nil {
			return err
		}
	}
	return nil
}

// Contains reports whether id names item itself or any of its descendants.
func Contains(item NavItem, id string) bool {
	if id == "" {
		return false
	}
	if item.ID == id {
		return true
	}
	for _, child := range item.Children {
		if Contains(child, id) {
			return true
		}
	}
	return false
}

// Find locates the item with the given id and returns its depth
// (0 for top-level items).
func Find(items []NavItem, id string) (NavItem, int, bool) {
	return find(items, id, 0)
}

func find(items []NavItem, id string, depth int) (NavItem, int, bool) {
	for _, item := range items {
		if item.ID == id {
			return item, depth, true
		}
		if found, d, ok := find(item.Children, id, depth+1); ok {
			return found, d, true
		}
	}
	return NavItem{}, 0, false
}

// IsActive reports whether the item named id should render as active
// when activeID is the tracked section. Top-level items are active when
// activeID is the item or any descendant; nested items only on an exact
// match.
func IsActive(items []NavItem, activeID, id string) bool {
	item, depth, ok := Find(items, id)
	if !ok || activeID == "" {
		return false
	}
	if depth == 0 {
		return Contains(item, activeID)
	}
	return item.ID == activeID
}
