package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/custodia-labs/atlas/internal/core/domain"
	"github.com/custodia-labs/atlas/internal/core/ports/driven"
	"github.com/custodia-labs/atlas/internal/logger"
)

// HashContent returns the hex-encoded BLAKE2b digest of an element's plain
// text. Only the plain text participates: formatting markup, position and
// depth are excluded, so a structural move or a formatting-only edit never
// registers as a content change.
func HashContent(raw string) string {
	sum := blake2b.Sum512([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Normalizer converts an external block tree into the internal versioned
// element representation. One run produces a NormalizationPass that the
// version store applies in a single transaction.
type Normalizer struct {
	versions driven.VersionStore
}

// NewNormalizer creates a normalizer backed by a version store.
func NewNormalizer(versions driven.VersionStore) *Normalizer {
	return &Normalizer{versions: versions}
}

// NormalizeResult is the outcome of one normalizer run. The pass has not
// been applied yet; the orchestrator fills in the snapshot fields and
// commits it.
type NormalizeResult struct {
	// Structure is the full current document tree in traversal order.
	Structure domain.Structure

	// ChangedElements lists existing elements whose content hash changed
	// in this pass. First-seen elements are not listed; they have nothing
	// to diff against.
	ChangedElements []string

	// Pass is the accumulated write set.
	Pass *domain.NormalizationPass

	// IsUpdate is true when the document existed before this run. The
	// orchestrator needs this separately from ChangedElements: on a first
	// ingestion every element is new and the changed set is empty, which
	// is indistinguishable from a no-change update by itself.
	IsUpdate bool

	// StructureChanged is true when elements were added, removed or
	// repositioned relative to the stored tree.
	StructureChanged bool
}

// Run walks the external block tree for the snapshot's reference depth
// first and accumulates version rows for everything that changed. Any
// source or shape error aborts the whole traversal; nothing is persisted
// here, so an abort leaves no partial tree behind.
func (n *Normalizer) Run(
	ctx context.Context,
	source driven.BlockSource,
	snapshot *domain.Snapshot,
	now time.Time,
) (*NormalizeResult, error) {
	root, err := source.GetRoot(ctx, snapshot.ReferenceID)
	if err != nil {
		return nil, fmt.Errorf("resolve document %s: %w", snapshot.ReferenceID, err)
	}

	pass := &domain.NormalizationPass{}
	isUpdate := true

	doc, err := n.versions.GetDocumentByReference(ctx, snapshot.ReferenceID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		isUpdate = false
		pass.IsNewDocument = true
		pass.Document = domain.Document{
			ID:           uuid.NewString(),
			ReferenceID:  snapshot.ReferenceID,
			URL:          root.URL,
			Title:        root.Title,
			DocumentType: "notion_page",
			CreatedAt:    now,
			UpdatedAt:    now,
			IsActive:     true,
		}
		logger.Info("New document for reference %s", snapshot.ReferenceID)
	case err != nil:
		return nil, fmt.Errorf("look up document %s: %w", snapshot.ReferenceID, err)
	default:
		pass.Document = *doc
		pass.Document.UpdatedAt = now
		logger.Info("Updating document %s", doc.ID)
	}

	// Current state of all known elements, keyed by external block ID.
	// One joined read up front instead of a lookup per visited block.
	existing := make(map[string]domain.ElementWithMetadata)
	if isUpdate {
		current, err := n.versions.ElementsWithCurrentMetadata(ctx, pass.Document.ID)
		if err != nil {
			return nil, fmt.Errorf("load current elements: %w", err)
		}
		for _, ewm := range current {
			existing[ewm.Element.ID] = ewm
		}
	}

	w := &treeWalker{
		source:   source,
		now:      now,
		document: pass.Document.ID,
		existing: existing,
		visited:  make(map[string]bool),
		pass:     pass,
	}

	structure, _, err := w.walk(ctx, snapshot.ReferenceID, 0, 0, nil)
	if err != nil {
		return nil, err
	}

	// Elements known before but absent from this traversal were removed
	// at the source. Content and metadata rows are never deleted; the
	// removal surfaces through the structure diff.
	removed := 0
	for id := range existing {
		if !w.visited[id] {
			removed++
		}
	}

	if structure == nil {
		structure = domain.Structure{}
	}
	changed := w.changed
	if changed == nil {
		changed = []string{}
	}

	return &NormalizeResult{
		Structure:        structure,
		ChangedElements:  changed,
		Pass:             pass,
		IsUpdate:         isUpdate,
		StructureChanged: len(pass.NewElements) > 0 || len(pass.NewMetadata) > 0 || removed > 0,
	}, nil
}

// treeWalker carries the traversal state of one normalization run.
type treeWalker struct {
	source   driven.BlockSource
	now      time.Time
	document string
	existing map[string]domain.ElementWithMetadata
	visited  map[string]bool
	pass     *domain.NormalizationPass
	changed  []string
}

// metaRef addresses a metadata row already appended to the pass, so a
// later sibling can wire up the successor link. Slices reallocate on
// append, so rows are addressed by index, never by pointer.
type metaRef struct {
	inNewElements bool
	index         int
}

func (w *treeWalker) metaAt(ref metaRef) *domain.ElementMetadata {
	if ref.inNewElements {
		return &w.pass.NewElements[ref.index].Metadata
	}
	return &w.pass.NewMetadata[ref.index]
}

// walk visits the children of blockID depth first. position is the next
// free pre-order index; the returned int is the next free index after this
// subtree, so descendants consume position slots before the next sibling.
func (w *treeWalker) walk(
	ctx context.Context,
	blockID string,
	depth, position int,
	parent *string,
) (domain.Structure, int, error) {
	blocks, err := w.source.GetChildren(ctx, blockID)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch children of %s: %w", blockID, err)
	}
	logger.Debug("Found %d children for block %s", len(blocks), blockID)

	structure := make(domain.Structure, 0, len(blocks))
	var predecessor *string
	var prevRef *metaRef

	for i := range blocks {
		block := blocks[i]
		if block.ID == "" {
			return nil, 0, fmt.Errorf("%w: block without id under %s", domain.ErrMalformedBlock, blockID)
		}
		if w.visited[block.ID] {
			return nil, 0, fmt.Errorf("%w: block %s appears twice", domain.ErrMalformedBlock, block.ID)
		}
		w.visited[block.ID] = true
		id := block.ID

		hash := HashContent(block.PlainText)
		observed := domain.ElementMetadata{
			ElementID:     id,
			Version:       w.now,
			Level:         depth,
			Position:      position,
			ParentElement: parent,
			Predecessor:   predecessor,
		}

		var ref *metaRef
		if known, ok := w.existing[id]; ok {
			if hash != known.Element.LatestContentHash {
				w.pass.NewContent = append(w.pass.NewContent, domain.ElementContent{
					ElementID:        id,
					Version:          w.now,
					ContentRaw:       block.PlainText,
					ContentFormatted: block.FormattedText,
					HashRaw:          hash,
				})
				w.changed = append(w.changed, id)
			}
			if !observed.StructurallyEqual(known.Metadata) {
				w.pass.NewMetadata = append(w.pass.NewMetadata, observed)
				ref = &metaRef{index: len(w.pass.NewMetadata) - 1}
			}
		} else {
			w.pass.NewElements = append(w.pass.NewElements, domain.NewElement{
				Element: domain.DocumentElement{
					ID:          id,
					DocumentID:  w.document,
					ElementType: block.Type,
				},
				Metadata: observed,
				Content: domain.ElementContent{
					ElementID:        id,
					Version:          w.now,
					ContentRaw:       block.PlainText,
					ContentFormatted: block.FormattedText,
					HashRaw:          hash,
				},
			})
			ref = &metaRef{inNewElements: true, index: len(w.pass.NewElements) - 1}
		}

		if prevRef != nil {
			w.metaAt(*prevRef).Successor = &id
		}

		position++
		children := domain.Structure{}
		if block.HasChildren {
			children, position, err = w.walk(ctx, id, depth+1, position, &id)
			if err != nil {
				return nil, 0, err
			}
		}

		structure = append(structure, domain.StructureNode{ID: id, Children: children})
		predecessor = &id
		prevRef = ref
	}

	return structure, position, nil
}
