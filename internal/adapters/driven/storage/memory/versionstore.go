package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/atlas/internal/core/domain"
	"github.com/custodia-labs/atlas/internal/core/ports/driven"
)

// Ensure VersionStore implements the interface.
var _ driven.VersionStore = (*VersionStore)(nil)

// VersionStore is an in-memory implementation of driven.VersionStore.
// It enforces the same cached-pointer rule as the SQLite store: appending
// a version row bumps the element's pointer only when the new version is
// strictly newer.
type VersionStore struct {
	mu          sync.RWMutex
	documents   map[string]domain.Document // by document ID
	byReference map[string]string          // reference ID -> document ID
	elements    map[string]domain.DocumentElement
	metadata    map[string][]domain.ElementMetadata
	contents    map[string][]domain.ElementContent

	// snapshots receives the snapshot update of ApplyPass so a pass
	// commits "atomically" from the caller's point of view.
	snapshots *SnapshotStore
}

// NewVersionStore creates a new in-memory version store. The snapshot
// store receives the snapshot row updated by ApplyPass.
func NewVersionStore(snapshots *SnapshotStore) *VersionStore {
	return &VersionStore{
		documents:   make(map[string]domain.Document),
		byReference: make(map[string]string),
		elements:    make(map[string]domain.DocumentElement),
		metadata:    make(map[string][]domain.ElementMetadata),
		contents:    make(map[string][]domain.ElementContent),
		snapshots:   snapshots,
	}
}

// GetDocumentByReference retrieves a document by external reference ID.
func (s *VersionStore) GetDocumentByReference(_ context.Context, referenceID string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byReference[referenceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	doc := s.documents[id]
	return &doc, nil
}

// GetElement retrieves an element by its stable external ID.
func (s *VersionStore) GetElement(_ context.Context, id string) (*domain.DocumentElement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	el, ok := s.elements[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &el, nil
}

// ElementsWithCurrentMetadata returns all elements of a document joined to
// their current metadata version, ordered by position.
func (s *VersionStore) ElementsWithCurrentMetadata(_ context.Context, documentID string) ([]domain.ElementWithMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ElementWithMetadata
	for _, el := range s.elements {
		if el.DocumentID != documentID || el.LatestMetadataVersion == nil {
			continue
		}
		for _, meta := range s.metadata[el.ID] {
			if meta.Version.Equal(*el.LatestMetadataVersion) {
				out = append(out, domain.ElementWithMetadata{Element: el, Metadata: meta})
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Metadata.Position < out[j].Metadata.Position
	})
	return out, nil
}

// LatestContentVersions returns up to limit content versions, newest first.
func (s *VersionStore) LatestContentVersions(_ context.Context, elementID string, limit int) ([]domain.ElementContent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := make([]domain.ElementContent, len(s.contents[elementID]))
	copy(versions, s.contents[elementID])
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version.After(versions[j].Version)
	})
	if limit > 0 && len(versions) > limit {
		versions = versions[:limit]
	}
	return versions, nil
}

// InsertElement writes a first-seen element with its initial versions.
func (s *VersionStore) InsertElement(_ context.Context, el *domain.NewElement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertElementLocked(el)
	return nil
}

// InsertMetadataVersion appends a metadata version and conditionally bumps
// the cached pointer.
func (s *VersionStore) InsertMetadataVersion(_ context.Context, meta *domain.ElementMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertMetadataLocked(*meta)
	return nil
}

// InsertContentVersion appends a content version and conditionally bumps
// the cached pointer and hash.
func (s *VersionStore) InsertContentVersion(_ context.Context, content *domain.ElementContent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertContentLocked(*content)
	return nil
}

// ApplyPass applies one normalization write set under a single lock, so
// readers never observe a partial element tree.
func (s *VersionStore) ApplyPass(_ context.Context, pass *domain.NormalizationPass) error {
	s.mu.Lock()
	s.documents[pass.Document.ID] = pass.Document
	s.byReference[pass.Document.ReferenceID] = pass.Document.ID
	for i := range pass.NewElements {
		s.insertElementLocked(&pass.NewElements[i])
	}
	for _, meta := range pass.NewMetadata {
		s.insertMetadataLocked(meta)
	}
	for _, content := range pass.NewContent {
		s.insertContentLocked(content)
	}
	s.mu.Unlock()

	if s.snapshots != nil {
		return s.snapshots.update(&pass.Snapshot)
	}
	return nil
}

func (s *VersionStore) insertElementLocked(el *domain.NewElement) {
	s.elements[el.Element.ID] = el.Element
	s.insertMetadataLocked(el.Metadata)
	s.insertContentLocked(el.Content)
}

func (s *VersionStore) insertMetadataLocked(meta domain.ElementMetadata) {
	s.metadata[meta.ElementID] = append(s.metadata[meta.ElementID], meta)
	el, ok := s.elements[meta.ElementID]
	if !ok {
		return
	}
	if el.LatestMetadataVersion == nil || meta.Version.After(*el.LatestMetadataVersion) {
		version := meta.Version
		el.LatestMetadataVersion = &version
		s.elements[meta.ElementID] = el
	}
}

func (s *VersionStore) insertContentLocked(content domain.ElementContent) {
	s.contents[content.ElementID] = append(s.contents[content.ElementID], content)
	el, ok := s.elements[content.ElementID]
	if !ok {
		return
	}
	if el.LatestContentVersion == nil || content.Version.After(*el.LatestContentVersion) {
		version := content.Version
		el.LatestContentVersion = &version
		el.LatestContentHash = content.HashRaw
		s.elements[content.ElementID] = el
	}
}
