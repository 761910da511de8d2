package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/atlas/internal/core/domain"
	"github.com/custodia-labs/atlas/internal/core/ports/driven"
)

// Ensure snapshotStore implements the interface.
var _ driven.SnapshotStore = (*snapshotStore)(nil)

// snapshotStore is the SQLite implementation of driven.SnapshotStore.
type snapshotStore struct {
	store *Store
}

const snapshotColumns = `id, document_id, reference_id, triggered_at, executed_at, finished_at,
	status, structure, structure_diff, changed_elements, changed_elements_diff, error`

// Create stores a freshly triggered snapshot.
func (s *snapshotStore) Create(ctx context.Context, snapshot *domain.Snapshot) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, document_id, reference_id, triggered_at, status)
		VALUES (?, ?, ?, ?, ?)
	`, snapshot.ID, nullString(snapshot.DocumentID), snapshot.ReferenceID,
		toNano(snapshot.TriggeredAt), string(snapshot.Status))
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	return nil
}

// Get retrieves a snapshot by ID.
func (s *snapshotStore) Get(ctx context.Context, id string) (*domain.Snapshot, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots WHERE id = ?`, id)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}
	return snap, nil
}

// SetPending marks the snapshot as being normalized.
func (s *snapshotStore) SetPending(ctx context.Context, id string) error {
	return s.exec(ctx, `UPDATE snapshots SET status = ? WHERE id = ?`,
		string(domain.SnapshotPending), id)
}

// SetStructureDiff writes the structure diff result column.
func (s *snapshotStore) SetStructureDiff(ctx context.Context, id string, diff *domain.StructureDiff) error {
	b, err := json.Marshal(diff)
	if err != nil {
		return fmt.Errorf("marshalling structure diff: %w", err)
	}
	return s.exec(ctx, `UPDATE snapshots SET structure_diff = ? WHERE id = ?`, string(b), id)
}

// SetContentDiff writes the per-element content diff column.
func (s *snapshotStore) SetContentDiff(ctx context.Context, id string, diffs map[string]string) error {
	if diffs == nil {
		diffs = map[string]string{}
	}
	b, err := json.Marshal(diffs)
	if err != nil {
		return fmt.Errorf("marshalling content diffs: %w", err)
	}
	return s.exec(ctx, `UPDATE snapshots SET changed_elements_diff = ? WHERE id = ?`, string(b), id)
}

// SetError moves the snapshot to the error state.
func (s *snapshotStore) SetError(ctx context.Context, id string, message string) error {
	return s.exec(ctx, `
		UPDATE snapshots SET status = ?, error = ?, finished_at = ? WHERE id = ?
	`, string(domain.SnapshotError), message, toNano(time.Now().UTC()), id)
}

// FinishIfComplete flips a processing_diffs snapshot to done once both diff
// columns are present. The conditional update makes the transition atomic;
// whichever diff job commits last wins the flip.
func (s *snapshotStore) FinishIfComplete(ctx context.Context, id string) (bool, error) {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE snapshots
		SET status = ?, finished_at = ?
		WHERE id = ?
		  AND status = ?
		  AND structure_diff IS NOT NULL
		  AND changed_elements_diff IS NOT NULL
	`, string(domain.SnapshotDone), toNano(time.Now().UTC()), id, string(domain.SnapshotProcessingDiffs))
	if err != nil {
		return false, fmt.Errorf("finishing snapshot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking finish update: %w", err)
	}
	return affected > 0, nil
}

// PreviousSnapshot returns the snapshot immediately preceding the given one
// for the same document, by triggered-time ordering.
func (s *snapshotStore) PreviousSnapshot(ctx context.Context, snapshotID string) (*domain.Snapshot, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+prefixedSnapshotColumns("prev")+`
		FROM snapshots cur
		JOIN snapshots prev
		  ON prev.document_id = cur.document_id
		 AND prev.id != cur.id
		 AND prev.triggered_at < cur.triggered_at
		WHERE cur.id = ?
		ORDER BY prev.triggered_at DESC
		LIMIT 1
	`, snapshotID)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying previous snapshot: %w", err)
	}
	return snap, nil
}

func (s *snapshotStore) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating snapshot: %w", err)
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

func prefixedSnapshotColumns(alias string) string {
	return alias + `.id, ` + alias + `.document_id, ` + alias + `.reference_id, ` +
		alias + `.triggered_at, ` + alias + `.executed_at, ` + alias + `.finished_at, ` +
		alias + `.status, ` + alias + `.structure, ` + alias + `.structure_diff, ` +
		alias + `.changed_elements, ` + alias + `.changed_elements_diff, ` + alias + `.error`
}

func scanSnapshot(row rowScanner) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	var documentID sql.NullString
	var triggeredAt int64
	var executedAt, finishedAt sql.NullInt64
	var status string
	var structure, structureDiff, changed, changedDiff, errMsg sql.NullString

	err := row.Scan(&snap.ID, &documentID, &snap.ReferenceID, &triggeredAt,
		&executedAt, &finishedAt, &status,
		&structure, &structureDiff, &changed, &changedDiff, &errMsg)
	if err != nil {
		return nil, err
	}

	snap.DocumentID = stringPtr(documentID)
	snap.TriggeredAt = fromNano(triggeredAt)
	snap.ExecutedAt = fromNanoNull(executedAt)
	snap.FinishedAt = fromNanoNull(finishedAt)
	snap.Status = domain.SnapshotStatus(status)
	snap.Error = errMsg.String

	if structure.Valid {
		if err := json.Unmarshal([]byte(structure.String), &snap.Structure); err != nil {
			return nil, fmt.Errorf("unmarshalling structure: %w", err)
		}
	}
	if structureDiff.Valid {
		var diff domain.StructureDiff
		if err := json.Unmarshal([]byte(structureDiff.String), &diff); err != nil {
			return nil, fmt.Errorf("unmarshalling structure diff: %w", err)
		}
		snap.StructureDiff = &diff
	}
	if changed.Valid {
		if err := json.Unmarshal([]byte(changed.String), &snap.ChangedElements); err != nil {
			return nil, fmt.Errorf("unmarshalling changed elements: %w", err)
		}
		if snap.ChangedElements == nil {
			snap.ChangedElements = []string{}
		}
	}
	if changedDiff.Valid {
		if err := json.Unmarshal([]byte(changedDiff.String), &snap.ChangedElementsDiff); err != nil {
			return nil, fmt.Errorf("unmarshalling content diffs: %w", err)
		}
		if snap.ChangedElementsDiff == nil {
			snap.ChangedElementsDiff = map[string]string{}
		}
	}
	return &snap, nil
}
