package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/custodia-labs/atlas/internal/core/domain"
	"github.com/custodia-labs/atlas/internal/core/ports/driven"
)

// Ensure versionStore implements the interface.
var _ driven.VersionStore = (*versionStore)(nil)

// versionStore is the SQLite implementation of driven.VersionStore.
// Version rows are append-only; the cached latest-version pointers on
// document_elements are bumped in the same transaction as the insert, and
// only when the new version is strictly newer than the cached one.
type versionStore struct {
	store *Store
}

// GetDocumentByReference retrieves a document by external reference ID.
func (s *versionStore) GetDocumentByReference(ctx context.Context, referenceID string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, reference_id, url, title, document_type, created_at, updated_at, is_active
		FROM documents
		WHERE reference_id = ?
	`, referenceID)

	var doc domain.Document
	var createdAt, updatedAt int64
	err := row.Scan(&doc.ID, &doc.ReferenceID, &doc.URL, &doc.Title, &doc.DocumentType, &createdAt, &updatedAt, &doc.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying document: %w", err)
	}
	doc.CreatedAt = fromNano(createdAt)
	doc.UpdatedAt = fromNano(updatedAt)
	return &doc, nil
}

// GetElement retrieves an element by its stable external ID.
func (s *versionStore) GetElement(ctx context.Context, id string) (*domain.DocumentElement, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, document_id, element_type, latest_metadata_version, latest_content_version, latest_content_hash
		FROM document_elements
		WHERE id = ?
	`, id)

	el, err := scanElement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying element: %w", err)
	}
	return el, nil
}

// ElementsWithCurrentMetadata returns all elements of a document joined to
// their current metadata version, ordered by position.
func (s *versionStore) ElementsWithCurrentMetadata(ctx context.Context, documentID string) ([]domain.ElementWithMetadata, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT e.id, e.document_id, e.element_type,
		       e.latest_metadata_version, e.latest_content_version, e.latest_content_hash,
		       m.version, m.level, m.position, m.parent_element, m.predecessor, m.successor
		FROM document_elements e
		JOIN document_element_metadatas m
		  ON m.document_element_id = e.id
		 AND m.version = e.latest_metadata_version
		WHERE e.document_id = ?
		ORDER BY m.position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying elements: %w", err)
	}
	defer rows.Close()

	var out []domain.ElementWithMetadata
	for rows.Next() {
		var item domain.ElementWithMetadata
		var metaVersion, contentVersion sql.NullInt64
		var hash, parent, pred, succ sql.NullString
		var version int64
		err := rows.Scan(
			&item.Element.ID, &item.Element.DocumentID, &item.Element.ElementType,
			&metaVersion, &contentVersion, &hash,
			&version, &item.Metadata.Level, &item.Metadata.Position, &parent, &pred, &succ,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning element row: %w", err)
		}
		item.Element.LatestMetadataVersion = fromNanoNull(metaVersion)
		item.Element.LatestContentVersion = fromNanoNull(contentVersion)
		item.Element.LatestContentHash = hash.String
		item.Metadata.ElementID = item.Element.ID
		item.Metadata.Version = fromNano(version)
		item.Metadata.ParentElement = stringPtr(parent)
		item.Metadata.Predecessor = stringPtr(pred)
		item.Metadata.Successor = stringPtr(succ)
		out = append(out, item)
	}
	return out, rows.Err()
}

// LatestContentVersions returns up to limit content versions, newest first.
func (s *versionStore) LatestContentVersions(ctx context.Context, elementID string, limit int) ([]domain.ElementContent, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT document_element_id, version, content_raw, content_formatted, hash_raw
		FROM document_element_contents
		WHERE document_element_id = ?
		ORDER BY version DESC
		LIMIT ?
	`, elementID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying content versions: %w", err)
	}
	defer rows.Close()

	var out []domain.ElementContent
	for rows.Next() {
		var content domain.ElementContent
		var version int64
		err := rows.Scan(&content.ElementID, &version, &content.ContentRaw, &content.ContentFormatted, &content.HashRaw)
		if err != nil {
			return nil, fmt.Errorf("scanning content row: %w", err)
		}
		content.Version = fromNano(version)
		out = append(out, content)
	}
	return out, rows.Err()
}

// InsertElement writes a first-seen element with its initial versions.
func (s *versionStore) InsertElement(ctx context.Context, el *domain.NewElement) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertElementTx(ctx, tx, el)
	})
}

// InsertMetadataVersion appends a metadata version and conditionally bumps
// the cached pointer.
func (s *versionStore) InsertMetadataVersion(ctx context.Context, meta *domain.ElementMetadata) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertMetadataTx(ctx, tx, meta)
	})
}

// InsertContentVersion appends a content version and conditionally bumps
// the cached pointer and hash.
func (s *versionStore) InsertContentVersion(ctx context.Context, content *domain.ElementContent) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertContentTx(ctx, tx, content)
	})
}

// ApplyPass applies one normalization write set in a single transaction,
// including the snapshot row update.
func (s *versionStore) ApplyPass(ctx context.Context, pass *domain.NormalizationPass) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		doc := pass.Document
		if pass.IsNewDocument {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO documents (id, reference_id, url, title, document_type, created_at, updated_at, is_active)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, doc.ID, doc.ReferenceID, doc.URL, doc.Title, doc.DocumentType, toNano(doc.CreatedAt), toNano(doc.UpdatedAt), doc.IsActive)
			if err != nil {
				return fmt.Errorf("inserting document: %w", err)
			}
		} else {
			_, err := tx.ExecContext(ctx, `
				UPDATE documents SET url = ?, title = ?, updated_at = ? WHERE id = ?
			`, doc.URL, doc.Title, toNano(doc.UpdatedAt), doc.ID)
			if err != nil {
				return fmt.Errorf("updating document: %w", err)
			}
		}

		for i := range pass.NewElements {
			if err := insertElementTx(ctx, tx, &pass.NewElements[i]); err != nil {
				return err
			}
		}
		for i := range pass.NewMetadata {
			if err := insertMetadataTx(ctx, tx, &pass.NewMetadata[i]); err != nil {
				return err
			}
		}
		for i := range pass.NewContent {
			if err := insertContentTx(ctx, tx, &pass.NewContent[i]); err != nil {
				return err
			}
		}

		return updateSnapshotTx(ctx, tx, &pass.Snapshot)
	})
}

func (s *versionStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func insertElementTx(ctx context.Context, tx *sql.Tx, el *domain.NewElement) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO document_elements (id, document_id, element_type)
		VALUES (?, ?, ?)
	`, el.Element.ID, el.Element.DocumentID, el.Element.ElementType)
	if err != nil {
		return fmt.Errorf("inserting element %s: %w", el.Element.ID, err)
	}
	if err := insertMetadataTx(ctx, tx, &el.Metadata); err != nil {
		return err
	}
	return insertContentTx(ctx, tx, &el.Content)
}

func insertMetadataTx(ctx context.Context, tx *sql.Tx, meta *domain.ElementMetadata) error {
	version := toNano(meta.Version)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO document_element_metadatas
			(document_element_id, version, level, position, parent_element, predecessor, successor)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, meta.ElementID, version, meta.Level, meta.Position,
		nullString(meta.ParentElement), nullString(meta.Predecessor), nullString(meta.Successor))
	if err != nil {
		return fmt.Errorf("inserting metadata version for %s: %w", meta.ElementID, err)
	}

	// Bump the cached pointer only for a strictly newer version.
	_, err = tx.ExecContext(ctx, `
		UPDATE document_elements
		SET latest_metadata_version = ?
		WHERE id = ?
		  AND (latest_metadata_version IS NULL OR latest_metadata_version < ?)
	`, version, meta.ElementID, version)
	if err != nil {
		return fmt.Errorf("bumping metadata pointer for %s: %w", meta.ElementID, err)
	}
	return nil
}

func insertContentTx(ctx context.Context, tx *sql.Tx, content *domain.ElementContent) error {
	version := toNano(content.Version)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO document_element_contents
			(document_element_id, version, content_raw, content_formatted, hash_raw)
		VALUES (?, ?, ?, ?, ?)
	`, content.ElementID, version, content.ContentRaw, content.ContentFormatted, content.HashRaw)
	if err != nil {
		return fmt.Errorf("inserting content version for %s: %w", content.ElementID, err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE document_elements
		SET latest_content_version = ?, latest_content_hash = ?
		WHERE id = ?
		  AND (latest_content_version IS NULL OR latest_content_version < ?)
	`, version, content.HashRaw, content.ElementID, version)
	if err != nil {
		return fmt.Errorf("bumping content pointer for %s: %w", content.ElementID, err)
	}
	return nil
}

// updateSnapshotTx rewrites the snapshot row as part of a normalization
// pass commit.
func updateSnapshotTx(ctx context.Context, tx *sql.Tx, snap *domain.Snapshot) error {
	structure, changed, err := marshalPassResults(snap)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE snapshots
		SET document_id = ?, executed_at = ?, finished_at = ?, status = ?,
		    structure = ?, changed_elements = ?, error = ?
		WHERE id = ?
	`, nullString(snap.DocumentID), toNanoPtr(snap.ExecutedAt), toNanoPtr(snap.FinishedAt),
		string(snap.Status), structure, changed, snap.Error, snap.ID)
	if err != nil {
		return fmt.Errorf("updating snapshot %s: %w", snap.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking snapshot update: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func marshalPassResults(snap *domain.Snapshot) (structure any, changed any, err error) {
	if snap.Structure != nil {
		b, err := json.Marshal(snap.Structure)
		if err != nil {
			return nil, nil, fmt.Errorf("marshalling structure: %w", err)
		}
		structure = string(b)
	}
	if snap.ChangedElements != nil {
		b, err := json.Marshal(snap.ChangedElements)
		if err != nil {
			return nil, nil, fmt.Errorf("marshalling changed elements: %w", err)
		}
		changed = string(b)
	}
	return structure, changed, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanElement(row rowScanner) (*domain.DocumentElement, error) {
	var el domain.DocumentElement
	var metaVersion, contentVersion sql.NullInt64
	var hash sql.NullString
	err := row.Scan(&el.ID, &el.DocumentID, &el.ElementType, &metaVersion, &contentVersion, &hash)
	if err != nil {
		return nil, err
	}
	el.LatestMetadataVersion = fromNanoNull(metaVersion)
	el.LatestContentVersion = fromNanoNull(contentVersion)
	el.LatestContentHash = hash.String
	return &el, nil
}
