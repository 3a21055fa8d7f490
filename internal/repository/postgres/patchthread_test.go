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

func TestPatchThreadFind_DecodesSubPatchMessages(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewPatchThreadRepo(db)

	rows := sqlmock.NewRows([]string{
		"id", "patch_card_message_id_header", "thread_id", "thread_name", "is_active",
		"overview_message_id", "sub_patch_messages", "created_at", "archived_at",
	}).AddRow(
		int64(5), "cov@x", "thr-1", "series X", true,
		"", []byte(`{"1":"ov-1","2":"ov-2"}`), time.Now().UTC(), nil,
	)
	mock.ExpectQuery("FROM patch_threads WHERE patch_card_message_id_header").
		WithArgs("cov@x").
		WillReturnRows(rows)

	out, err := repo.FindByCardHeader(context.Background(), "cov@x")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, map[int]string{1: "ov-1", 2: "ov-2"}, out.SubPatchMessages)
	assert.Nil(t, out.ArchivedAt)
}

func TestPatchThreadCreate(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewPatchThreadRepo(db)

	mock.ExpectQuery("INSERT INTO patch_threads").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))

	id, err := repo.Create(context.Background(), &domain.PatchThread{
		PatchCardMessageIDHeader: "cov@x",
		ThreadID:                 "thr-1",
		ThreadName:               "series X",
		IsActive:                 true,
		SubPatchMessages:         map[int]string{1: "ov-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
}

func TestPatchThreadCreate_ConcurrentDuplicateResolvesToExisting(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewPatchThreadRepo(db)

	mock.ExpectQuery("INSERT INTO patch_threads").
		WillReturnError(&pq.Error{Code: "23505"})
	rows := sqlmock.NewRows([]string{
		"id", "patch_card_message_id_header", "thread_id", "thread_name", "is_active",
		"overview_message_id", "sub_patch_messages", "created_at", "archived_at",
	}).AddRow(
		int64(7), "cov@x", "thr-1", "series X", true,
		"", []byte(`{}`), time.Now().UTC(), nil,
	)
	mock.ExpectQuery("FROM patch_threads WHERE patch_card_message_id_header").
		WithArgs("cov@x").
		WillReturnRows(rows)

	id, err := repo.Create(context.Background(), &domain.PatchThread{
		PatchCardMessageIDHeader: "cov@x",
		ThreadID:                 "thr-2",
		ThreadName:               "series X",
		IsActive:                 true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestPatchThreadDelete(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewPatchThreadRepo(db)

	mock.ExpectExec("DELETE FROM patch_threads").
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := repo.Delete(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestSubPatchMessagesCodec(t *testing.T) {
	buf, err := encodeSubPatchMessages(map[int]string{1: "a", 12: "b"})
	require.NoError(t, err)

	out, err := decodeSubPatchMessages(buf)
	require.NoError(t, err)
	assert.Equal(t, map[int]string{1: "a", 12: "b"}, out)

	_, err = decodeSubPatchMessages([]byte(`{"x":"a"}`))
	assert.Error(t, err)
}
