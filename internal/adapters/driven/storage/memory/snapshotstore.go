package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/atlas/internal/core/domain"
	"github.com/custodia-labs/atlas/internal/core/ports/driven"
)

// Ensure SnapshotStore implements the interface.
var _ driven.SnapshotStore = (*SnapshotStore)(nil)

// SnapshotStore is an in-memory implementation of driven.SnapshotStore.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]domain.Snapshot
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[string]domain.Snapshot)}
}

// Create stores a freshly triggered snapshot.
func (s *SnapshotStore) Create(_ context.Context, snapshot *domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.snapshots[snapshot.ID]; exists {
		return domain.ErrAlreadyExists
	}
	s.snapshots[snapshot.ID] = *snapshot
	return nil
}

// Get retrieves a snapshot by ID.
func (s *SnapshotStore) Get(_ context.Context, id string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &snap, nil
}

// SetPending marks the snapshot as being normalized.
func (s *SnapshotStore) SetPending(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[id]
	if !ok {
		return domain.ErrNotFound
	}
	snap.Status = domain.SnapshotPending
	s.snapshots[id] = snap
	return nil
}

// SetStructureDiff writes the structure diff result column.
func (s *SnapshotStore) SetStructureDiff(_ context.Context, id string, diff *domain.StructureDiff) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[id]
	if !ok {
		return domain.ErrNotFound
	}
	snap.StructureDiff = diff
	s.snapshots[id] = snap
	return nil
}

// SetContentDiff writes the per-element content diff column.
func (s *SnapshotStore) SetContentDiff(_ context.Context, id string, diffs map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[id]
	if !ok {
		return domain.ErrNotFound
	}
	if diffs == nil {
		diffs = map[string]string{}
	}
	snap.ChangedElementsDiff = diffs
	s.snapshots[id] = snap
	return nil
}

// SetError moves the snapshot to the error state.
func (s *SnapshotStore) SetError(_ context.Context, id string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	snap.Status = domain.SnapshotError
	snap.Error = message
	snap.FinishedAt = &now
	s.snapshots[id] = snap
	return nil
}

// FinishIfComplete flips a processing_diffs snapshot to done once both
// diff columns are present.
func (s *SnapshotStore) FinishIfComplete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if snap.Status != domain.SnapshotProcessingDiffs ||
		snap.StructureDiff == nil || snap.ChangedElementsDiff == nil {
		return false, nil
	}
	now := time.Now().UTC()
	snap.Status = domain.SnapshotDone
	snap.FinishedAt = &now
	s.snapshots[id] = snap
	return true, nil
}

// PreviousSnapshot returns the snapshot immediately preceding the given
// one for the same document, by triggered-time ordering.
func (s *SnapshotStore) PreviousSnapshot(_ context.Context, snapshotID string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	current, ok := s.snapshots[snapshotID]
	if !ok || current.DocumentID == nil {
		return nil, domain.ErrNotFound
	}

	var best *domain.Snapshot
	for id := range s.snapshots {
		snap := s.snapshots[id]
		if snap.ID == current.ID || snap.DocumentID == nil || *snap.DocumentID != *current.DocumentID {
			continue
		}
		if !snap.TriggeredAt.Before(current.TriggeredAt) {
			continue
		}
		if best == nil || snap.TriggeredAt.After(best.TriggeredAt) {
			copied := snap
			best = &copied
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	return best, nil
}

// update replaces the stored snapshot row wholesale. Used by the version
// store when a normalization pass commits.
func (s *SnapshotStore) update(snapshot *domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[snapshot.ID]; !ok {
		return domain.ErrNotFound
	}
	s.snapshots[snapshot.ID] = *snapshot
	return nil
}
