package domain

// StructureOp classifies one structural change between two snapshots.
type StructureOp string

const (
	// StructureInsert means the element appears only in the new tree.
	StructureInsert StructureOp = "insert"

	// StructureDelete means the element appears only in the old tree.
	StructureDelete StructureOp = "delete"

	// StructureMove means the element exists in both trees but under a
	// different parent or at a different position. The same ID reappearing
	// elsewhere is always a move, never a delete plus insert.
	StructureMove StructureOp = "move"
)

// StructureChange is one classified difference between two structure trees.
type StructureChange struct {
	ElementID string      `json:"element_id"`
	Op        StructureOp `json:"op"`

	// Old placement; only set for delete and move.
	OldParent   *string `json:"old_parent,omitempty"`
	OldPosition *int    `json:"old_position,omitempty"`

	// New placement; only set for insert and move.
	NewParent   *string `json:"new_parent,omitempty"`
	NewPosition *int    `json:"new_position,omitempty"`
}

// StructureDiff summarises the tree comparison between a snapshot and its
// predecessor, written back onto the snapshot by the structure diff job.
type StructureDiff struct {
	// OldElementCount is the number of elements in the preceding tree.
	OldElementCount int `json:"old_element_count"`

	// NewElementCount is the number of elements in the current tree.
	NewElementCount int `json:"new_element_count"`

	// Changes is the raw diff payload in old-tree traversal order for
	// deletes, then new-tree order for inserts and moves.
	Changes []StructureChange `json:"changes"`
}

// Empty reports whether the diff contains no structural changes.
func (d StructureDiff) Empty() bool {
	return len(d.Changes) == 0
}
