package services

import (
	"github.com/custodia-labs/atlas/internal/core/domain"
)

// DiffStructures compares two document trees and classifies every
// difference as an insert, delete or move.
//
// Matching is by element ID across the whole tree, not per path: an ID
// present in both trees under a different parent or at a different
// position is reported as a single move, never as a delete from the old
// location plus an insert at the new one. Comparison follows the trees'
// own {id: [children]} shape; nothing is re-sorted.
func DiffStructures(oldTree, newTree domain.Structure) *domain.StructureDiff {
	oldFlat := oldTree.Flatten()
	newFlat := newTree.Flatten()

	oldByID := make(map[string]domain.FlatElement, len(oldFlat))
	for _, el := range oldFlat {
		oldByID[el.ID] = el
	}
	newByID := make(map[string]domain.FlatElement, len(newFlat))
	for _, el := range newFlat {
		newByID[el.ID] = el
	}

	diff := &domain.StructureDiff{
		OldElementCount: len(oldFlat),
		NewElementCount: len(newFlat),
	}

	// Deletes first, in old-tree traversal order.
	for _, el := range oldFlat {
		if _, ok := newByID[el.ID]; ok {
			continue
		}
		pos := el.Position
		diff.Changes = append(diff.Changes, domain.StructureChange{
			ElementID:   el.ID,
			Op:          domain.StructureDelete,
			OldParent:   el.Parent,
			OldPosition: &pos,
		})
	}

	// Inserts and moves, in new-tree traversal order.
	for _, el := range newFlat {
		newPos := el.Position
		old, ok := oldByID[el.ID]
		if !ok {
			diff.Changes = append(diff.Changes, domain.StructureChange{
				ElementID:   el.ID,
				Op:          domain.StructureInsert,
				NewParent:   el.Parent,
				NewPosition: &newPos,
			})
			continue
		}
		if samePlacement(old, el) {
			continue
		}
		oldPos := old.Position
		diff.Changes = append(diff.Changes, domain.StructureChange{
			ElementID:   el.ID,
			Op:          domain.StructureMove,
			OldParent:   old.Parent,
			OldPosition: &oldPos,
			NewParent:   el.Parent,
			NewPosition: &newPos,
		})
	}

	return diff
}

func samePlacement(a, b domain.FlatElement) bool {
	if a.Position != b.Position || a.Level != b.Level {
		return false
	}
	if a.Parent == nil || b.Parent == nil {
		return a.Parent == nil && b.Parent == nil
	}
	return *a.Parent == *b.Parent
}
