package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
)

// PatchCardRepo stores surfaced patch cards.
type PatchCardRepo struct{ db *sql.DB }

// NewPatchCardRepo creates a Postgres-backed patch card repository.
func NewPatchCardRepo(db *sql.DB) *PatchCardRepo { return &PatchCardRepo{db: db} }

const patchCardColumns = `
	id, message_id_header, subsystem_name,
	COALESCE(platform_message_id,''), COALESCE(platform_channel_id,''),
	subject, author, COALESCE(url,''), has_thread,
	is_series_patch, COALESCE(series_message_id,''), COALESCE(patch_version,''),
	patch_index, patch_total, is_cover_letter,
	COALESCE(to_cc_list,'[]'), expires_at, created_at`

func scanPatchCard(row interface{ Scan(...any) error }) (*domain.PatchCard, error) {
	c := &domain.PatchCard{}
	var toCC []byte
	err := row.Scan(
		&c.ID, &c.MessageIDHeader, &c.SubsystemName,
		&c.PlatformMessageID, &c.PlatformChannelID,
		&c.Subject, &c.Author, &c.URL, &c.HasThread,
		&c.IsSeriesPatch, &c.SeriesMessageID, &c.PatchVersion,
		&c.PatchIndex, &c.PatchTotal, &c.IsCoverLetter,
		&toCC, &c.ExpiresAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(toCC, &c.ToCCList); err != nil {
		return nil, fmt.Errorf("decode to_cc_list: %w", err)
	}
	return c, nil
}

// FindByMessageIDHeader returns (nil, nil) when no card exists.
func (r *PatchCardRepo) FindByMessageIDHeader(ctx context.Context, header string) (*domain.PatchCard, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+patchCardColumns+` FROM patch_cards WHERE message_id_header = $1`, header)
	c, err := scanPatchCard(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find patch card: %w", err)
	}
	return c, nil
}

// FindBySubsystem returns the newest cards for one subsystem.
func (r *PatchCardRepo) FindBySubsystem(ctx context.Context, subsystem string, limit int) ([]domain.PatchCard, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+patchCardColumns+`
		FROM patch_cards
		WHERE subsystem_name = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, subsystem, limit)
	if err != nil {
		return nil, fmt.Errorf("list patch cards: %w", err)
	}
	defer rows.Close()

	var out []domain.PatchCard
	for rows.Next() {
		c, err := scanPatchCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan patch card: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Create inserts a card. A concurrent duplicate insert resolves to the
// already-stored row's id.
func (r *PatchCardRepo) Create(ctx context.Context, c *domain.PatchCard) (int64, error) {
	toCC, err := json.Marshal(emptyIfNil(c.ToCCList))
	if err != nil {
		return 0, fmt.Errorf("encode to_cc_list: %w", err)
	}

	var id int64
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO patch_cards
			(message_id_header, subsystem_name, platform_message_id, platform_channel_id,
			 subject, author, url, has_thread,
			 is_series_patch, series_message_id, patch_version,
			 patch_index, patch_total, is_cover_letter,
			 to_cc_list, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,NOW())
		RETURNING id
	`, c.MessageIDHeader, c.SubsystemName, nullable(c.PlatformMessageID), nullable(c.PlatformChannelID),
		c.Subject, c.Author, nullable(c.URL), c.HasThread,
		c.IsSeriesPatch, nullable(c.SeriesMessageID), nullable(c.PatchVersion),
		c.PatchIndex, c.PatchTotal, c.IsCoverLetter,
		toCC, c.ExpiresAt).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			existing, ferr := r.FindByMessageIDHeader(ctx, c.MessageIDHeader)
			if ferr == nil && existing != nil {
				return existing.ID, nil
			}
		}
		return 0, fmt.Errorf("create patch card: %w", err)
	}
	return id, nil
}

// MarkHasThread flags the card as having a thread.
func (r *PatchCardRepo) MarkHasThread(ctx context.Context, header string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE patch_cards SET has_thread = true WHERE message_id_header = $1`, header)
	if err != nil {
		return fmt.Errorf("mark has_thread: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark has_thread: no card %s", header)
	}
	return nil
}

// UpdatePlatformMessageID replaces the primary platform message id.
func (r *PatchCardRepo) UpdatePlatformMessageID(ctx context.Context, header, platformMessageID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE patch_cards SET platform_message_id = $1 WHERE message_id_header = $2`,
		platformMessageID, header)
	if err != nil {
		return fmt.Errorf("update platform_message_id: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update platform_message_id: no card %s", header)
	}
	return nil
}

// UpdateToCCList caches the series root's To+CC addresses.
func (r *PatchCardRepo) UpdateToCCList(ctx context.Context, header string, toCC []string) error {
	buf, err := json.Marshal(emptyIfNil(toCC))
	if err != nil {
		return fmt.Errorf("encode to_cc_list: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE patch_cards SET to_cc_list = $1 WHERE message_id_header = $2`, buf, header)
	if err != nil {
		return fmt.Errorf("update to_cc_list: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update to_cc_list: no card %s", header)
	}
	return nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
