package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
)

// PatchThreadRepo stores discussion threads attached to patch cards.
type PatchThreadRepo struct{ db *sql.DB }

// NewPatchThreadRepo creates a Postgres-backed patch thread repository.
func NewPatchThreadRepo(db *sql.DB) *PatchThreadRepo { return &PatchThreadRepo{db: db} }

const patchThreadColumns = `
	id, patch_card_message_id_header, thread_id, thread_name, is_active,
	COALESCE(overview_message_id,''), COALESCE(sub_patch_messages,'{}'),
	created_at, archived_at`

func scanPatchThread(row interface{ Scan(...any) error }) (*domain.PatchThread, error) {
	t := &domain.PatchThread{}
	var sub []byte
	var archived sql.NullTime
	err := row.Scan(
		&t.ID, &t.PatchCardMessageIDHeader, &t.ThreadID, &t.ThreadName, &t.IsActive,
		&t.OverviewMessageID, &sub, &t.CreatedAt, &archived,
	)
	if err != nil {
		return nil, err
	}
	if archived.Valid {
		at := archived.Time.UTC()
		t.ArchivedAt = &at
	}
	t.SubPatchMessages, err = decodeSubPatchMessages(sub)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// sub_patch_messages is stored as a JSON object with string keys; keys are
// patch indices.
func decodeSubPatchMessages(raw []byte) (map[int]string, error) {
	var asStrings map[string]string
	if err := json.Unmarshal(raw, &asStrings); err != nil {
		return nil, fmt.Errorf("decode sub_patch_messages: %w", err)
	}
	out := make(map[int]string, len(asStrings))
	for k, v := range asStrings {
		idx, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("decode sub_patch_messages key %q: %w", k, err)
		}
		out[idx] = v
	}
	return out, nil
}

func encodeSubPatchMessages(m map[int]string) ([]byte, error) {
	asStrings := make(map[string]string, len(m))
	for k, v := range m {
		asStrings[strconv.Itoa(k)] = v
	}
	buf, err := json.Marshal(asStrings)
	if err != nil {
		return nil, fmt.Errorf("encode sub_patch_messages: %w", err)
	}
	return buf, nil
}

// FindByCardHeader returns (nil, nil) when the card has no thread record.
func (r *PatchThreadRepo) FindByCardHeader(ctx context.Context, header string) (*domain.PatchThread, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+patchThreadColumns+` FROM patch_threads WHERE patch_card_message_id_header = $1`, header)
	t, err := scanPatchThread(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find patch thread: %w", err)
	}
	return t, nil
}

// Create inserts a thread record. The card header is unique; when a
// concurrent watch already inserted one, the existing record's id is
// returned.
func (r *PatchThreadRepo) Create(ctx context.Context, t *domain.PatchThread) (int64, error) {
	sub, err := encodeSubPatchMessages(t.SubPatchMessages)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO patch_threads
			(patch_card_message_id_header, thread_id, thread_name, is_active,
			 overview_message_id, sub_patch_messages, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW())
		RETURNING id
	`, t.PatchCardMessageIDHeader, t.ThreadID, t.ThreadName, t.IsActive,
		nullable(t.OverviewMessageID), sub).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			existing, ferr := r.FindByCardHeader(ctx, t.PatchCardMessageIDHeader)
			if ferr == nil && existing != nil {
				return existing.ID, nil
			}
		}
		return 0, fmt.Errorf("create patch thread: %w", err)
	}
	return id, nil
}

// MarkInactive retires a thread whose platform counterpart vanished.
func (r *PatchThreadRepo) MarkInactive(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE patch_threads SET is_active = false, archived_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark thread inactive: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark thread inactive: no thread %d", id)
	}
	return nil
}

// Delete removes a thread record, reporting whether a row was deleted.
func (r *PatchThreadRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM patch_threads WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete patch thread: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// UpdateSubPatchMessages replaces the patch_index to message id mapping.
func (r *PatchThreadRepo) UpdateSubPatchMessages(ctx context.Context, id int64, m map[int]string) error {
	sub, err := encodeSubPatchMessages(m)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE patch_threads SET sub_patch_messages = $1 WHERE id = $2`, sub, id)
	if err != nil {
		return fmt.Errorf("update sub_patch_messages: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update sub_patch_messages: no thread %d", id)
	}
	return nil
}
