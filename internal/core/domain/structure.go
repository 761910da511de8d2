package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Structure is the nested representation of a document tree: an ordered
// list of nodes mirroring traversal order at every level. It serialises to
// the compact form
//
//	[{"id1": []}, {"id2": [{"id3": []}]}]
//
// which is also the shape persisted on snapshots and fed to the structure
// diff.
type Structure []StructureNode

// StructureNode is one element and its ordered children.
type StructureNode struct {
	ID       string
	Children Structure
}

// MarshalJSON renders the node as a single-key object {id: [children]}.
func (n StructureNode) MarshalJSON() ([]byte, error) {
	children := n.Children
	if children == nil {
		children = Structure{}
	}
	return json.Marshal(map[string]Structure{n.ID: children})
}

// UnmarshalJSON parses the single-key object form.
func (n *StructureNode) UnmarshalJSON(data []byte) error {
	var m map[string]Structure
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("structure node must have exactly one key, got %d", len(m))
	}
	for id, children := range m {
		n.ID = id
		n.Children = children
	}
	return nil
}

// Count returns the total number of elements in the tree.
func (s Structure) Count() int {
	count := 0
	for _, node := range s {
		count += 1 + node.Children.Count()
	}
	return count
}

// FlatElement is one element of a flattened structure tree. Position is
// the strict pre-order index over the whole tree, so flattening and
// rebuilding are exact inverses.
type FlatElement struct {
	ID       string
	Parent   *string
	Level    int
	Position int
}

// Flatten walks the tree in pre-order and returns (id, parent, level,
// position) tuples. The position of each element equals its index in the
// returned slice.
func (s Structure) Flatten() []FlatElement {
	var out []FlatElement
	s.flattenInto(&out, nil, 0)
	return out
}

func (s Structure) flattenInto(out *[]FlatElement, parent *string, level int) {
	for _, node := range s {
		id := node.ID
		*out = append(*out, FlatElement{
			ID:       id,
			Parent:   parent,
			Level:    level,
			Position: len(*out),
		})
		node.Children.flattenInto(out, &id, level+1)
	}
}

// BuildStructure reassembles a nested tree from flattened elements.
// Siblings are ordered by position; elements with a nil parent form the
// root level. The inverse of Flatten for any well-formed input.
func BuildStructure(elements []FlatElement) Structure {
	childrenByParent := make(map[string][]FlatElement)
	var roots []FlatElement

	for _, el := range elements {
		if el.Parent == nil {
			roots = append(roots, el)
			continue
		}
		childrenByParent[*el.Parent] = append(childrenByParent[*el.Parent], el)
	}

	var build func(els []FlatElement) Structure
	build = func(els []FlatElement) Structure {
		sort.Slice(els, func(i, j int) bool {
			return els[i].Position < els[j].Position
		})
		structure := make(Structure, 0, len(els))
		for _, el := range els {
			structure = append(structure, StructureNode{
				ID:       el.ID,
				Children: build(childrenByParent[el.ID]),
			})
		}
		return structure
	}

	return build(roots)
}
