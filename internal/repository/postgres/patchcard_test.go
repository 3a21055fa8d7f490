package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
)

func patchCardRows(c domain.PatchCard, toCC string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "message_id_header", "subsystem_name",
		"platform_message_id", "platform_channel_id",
		"subject", "author", "url", "has_thread",
		"is_series_patch", "series_message_id", "patch_version",
		"patch_index", "patch_total", "is_cover_letter",
		"to_cc_list", "expires_at", "created_at",
	}).AddRow(
		c.ID, c.MessageIDHeader, c.SubsystemName,
		c.PlatformMessageID, c.PlatformChannelID,
		c.Subject, c.Author, c.URL, c.HasThread,
		c.IsSeriesPatch, c.SeriesMessageID, c.PatchVersion,
		c.PatchIndex, c.PatchTotal, c.IsCoverLetter,
		[]byte(toCC), c.ExpiresAt, c.CreatedAt,
	)
}

func TestPatchCardFind_DecodesToCCList(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewPatchCardRepo(db)

	card := domain.PatchCard{
		ID: 3, MessageIDHeader: "cov@x", SubsystemName: "rust",
		Subject: "[PATCH 0/2] series X", Author: "Alice",
		ExpiresAt: time.Now().UTC(), CreatedAt: time.Now().UTC(),
	}
	mock.ExpectQuery("FROM patch_cards WHERE message_id_header").
		WithArgs("cov@x").
		WillReturnRows(patchCardRows(card, `["a@x.y","b@x.y"]`))

	out, err := repo.FindByMessageIDHeader(context.Background(), "cov@x")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, []string{"a@x.y", "b@x.y"}, out.ToCCList)
}

func TestPatchCardCreate(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewPatchCardRepo(db)

	mock.ExpectQuery("INSERT INTO patch_cards").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	id, err := repo.Create(context.Background(), &domain.PatchCard{
		MessageIDHeader: "abc@d",
		SubsystemName:   "rust",
		Subject:         "[PATCH] rust: fix alloc",
		Author:          "Alice",
		ExpiresAt:       time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
}

func TestPatchCardCreate_ConcurrentDuplicateResolvesToExisting(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewPatchCardRepo(db)

	mock.ExpectQuery("INSERT INTO patch_cards").
		WillReturnError(&pq.Error{Code: "23505"})
	existing := domain.PatchCard{
		ID: 9, MessageIDHeader: "abc@d", SubsystemName: "rust",
		Subject: "[PATCH] rust: fix alloc", Author: "Alice",
		ExpiresAt: time.Now().UTC(), CreatedAt: time.Now().UTC(),
	}
	mock.ExpectQuery("FROM patch_cards WHERE message_id_header").
		WithArgs("abc@d").
		WillReturnRows(patchCardRows(existing, "[]"))

	id, err := repo.Create(context.Background(), &domain.PatchCard{
		MessageIDHeader: "abc@d",
		SubsystemName:   "rust",
		ExpiresAt:       time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
}

func TestPatchCardMarkHasThread_Missing(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewPatchCardRepo(db)

	mock.ExpectExec("UPDATE patch_cards SET has_thread").
		WithArgs("nope@x").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkHasThread(context.Background(), "nope@x")
	assert.Error(t, err)
}
