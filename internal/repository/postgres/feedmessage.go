package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
)

// FeedMessageRepo stores every email ever observed on a feed.
type FeedMessageRepo struct{ db *sql.DB }

// NewFeedMessageRepo creates a Postgres-backed feed message repository.
func NewFeedMessageRepo(db *sql.DB) *FeedMessageRepo { return &FeedMessageRepo{db: db} }

const feedMessageColumns = `
	id, subsystem_name, message_id, message_id_header,
	COALESCE(in_reply_to_header,''), subject, author, COALESCE(author_email,''),
	COALESCE(content,''), COALESCE(url,''), received_at,
	is_patch, is_reply, is_series_patch, COALESCE(patch_version,''),
	patch_index, patch_total, is_cover_letter, COALESCE(series_message_id,'')`

func scanFeedMessage(row interface{ Scan(...any) error }) (*domain.FeedMessage, error) {
	m := &domain.FeedMessage{}
	err := row.Scan(
		&m.ID, &m.SubsystemName, &m.MessageID, &m.MessageIDHeader,
		&m.InReplyToHeader, &m.Subject, &m.Author, &m.AuthorEmail,
		&m.Content, &m.URL, &m.ReceivedAt,
		&m.IsPatch, &m.IsReply, &m.IsSeriesPatch, &m.PatchVersion,
		&m.PatchIndex, &m.PatchTotal, &m.IsCoverLetter, &m.SeriesMessageID,
	)
	if err != nil {
		return nil, err
	}
	m.ReceivedAt = m.ReceivedAt.UTC()
	return m, nil
}

// Upsert inserts a message keyed on message_id_header, overwriting derived
// fields on re-sight while keeping identity columns intact. Returns the
// stored row.
func (r *FeedMessageRepo) Upsert(ctx context.Context, m *domain.FeedMessage) (*domain.FeedMessage, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO feed_messages
			(subsystem_name, message_id, message_id_header, in_reply_to_header,
			 subject, author, author_email, content, url, received_at,
			 is_patch, is_reply, is_series_patch, patch_version,
			 patch_index, patch_total, is_cover_letter, series_message_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		ON CONFLICT (message_id_header) DO UPDATE SET
			subject = EXCLUDED.subject,
			author = EXCLUDED.author,
			author_email = EXCLUDED.author_email,
			content = EXCLUDED.content,
			url = EXCLUDED.url,
			in_reply_to_header = EXCLUDED.in_reply_to_header,
			is_patch = EXCLUDED.is_patch,
			is_reply = EXCLUDED.is_reply,
			is_series_patch = EXCLUDED.is_series_patch,
			patch_version = EXCLUDED.patch_version,
			patch_index = EXCLUDED.patch_index,
			patch_total = EXCLUDED.patch_total,
			is_cover_letter = EXCLUDED.is_cover_letter,
			series_message_id = EXCLUDED.series_message_id
		RETURNING `+feedMessageColumns,
		m.SubsystemName, m.MessageID, m.MessageIDHeader, nullable(m.InReplyToHeader),
		m.Subject, m.Author, nullable(m.AuthorEmail), nullable(m.Content), nullable(m.URL), m.ReceivedAt.UTC(),
		m.IsPatch, m.IsReply, m.IsSeriesPatch, nullable(m.PatchVersion),
		m.PatchIndex, m.PatchTotal, m.IsCoverLetter, nullable(m.SeriesMessageID),
	)
	stored, err := scanFeedMessage(row)
	if err != nil {
		return nil, fmt.Errorf("upsert feed message: %w", err)
	}
	return stored, nil
}

// FindByMessageIDHeader returns (nil, nil) when the header is unknown.
func (r *FeedMessageRepo) FindByMessageIDHeader(ctx context.Context, header string) (*domain.FeedMessage, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+feedMessageColumns+` FROM feed_messages WHERE message_id_header = $1`, header)
	m, err := scanFeedMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find feed message: %w", err)
	}
	return m, nil
}

// FindRepliesTo returns messages whose in_reply_to_header contains the
// given id, ordered by received_at ascending. The substring match tolerates
// angle brackets and multi-id headers; position() keeps it literal, since
// message ids routinely contain LIKE metacharacters like underscores.
func (r *FeedMessageRepo) FindRepliesTo(ctx context.Context, header string, limit int) ([]domain.FeedMessage, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+feedMessageColumns+`
		FROM feed_messages
		WHERE position($1 in in_reply_to_header) > 0
		ORDER BY received_at ASC, id ASC
		LIMIT $2
	`, header, limit)
	if err != nil {
		return nil, fmt.Errorf("find replies: %w", err)
	}
	defer rows.Close()

	var out []domain.FeedMessage
	for rows.Next() {
		m, err := scanFeedMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// FindSeriesPatches returns every PATCH belonging to a series, including
// the cover letter, ordered by patch index then arrival.
func (r *FeedMessageRepo) FindSeriesPatches(ctx context.Context, seriesMessageID string) ([]domain.FeedMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+feedMessageColumns+`
		FROM feed_messages
		WHERE (message_id_header = $1 OR series_message_id = $1) AND is_patch
		ORDER BY patch_index ASC, received_at ASC
	`, seriesMessageID)
	if err != nil {
		return nil, fmt.Errorf("find series patches: %w", err)
	}
	defer rows.Close()

	var out []domain.FeedMessage
	for rows.Next() {
		m, err := scanFeedMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan series patch: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// LatestReceivedAt returns the newest received_at for a subsystem, or the
// zero time when nothing is stored yet.
func (r *FeedMessageRepo) LatestReceivedAt(ctx context.Context, subsystem string) (time.Time, error) {
	var t sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(received_at) FROM feed_messages WHERE subsystem_name = $1`, subsystem).Scan(&t)
	if err != nil {
		return time.Time{}, fmt.Errorf("latest received_at: %w", err)
	}
	if !t.Valid {
		return time.Time{}, nil
	}
	return t.Time.UTC(), nil
}

// nullable maps "" to NULL so COALESCE reads stay symmetrical.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
