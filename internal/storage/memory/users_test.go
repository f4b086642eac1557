package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/scenyx-editor/internal/models"
	"github.com/Vasu1712/scenyx-editor/internal/storage"
)

func TestUserStore_EnterExit(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()
	u := s.CreateUser("ada")
	fileID := models.NewFileID("doc")

	require.NoError(t, s.EnterFile(ctx, u.ID, fileID))
	require.NoError(t, s.EnterFile(ctx, u.ID, fileID))

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.FileID{fileID}, got.Presence.FileIDs)

	present, err := s.PresentUsers(ctx, fileID)
	require.NoError(t, err)
	assert.Equal(t, []string{u.ID}, present)

	require.NoError(t, s.ExitFile(ctx, u.ID, fileID))
	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Presence.FileIDs)

	present, err = s.PresentUsers(ctx, fileID)
	require.NoError(t, err)
	assert.Empty(t, present)
}

func TestUserStore_UnknownUser(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()

	_, err := s.GetUser(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
	assert.ErrorIs(t, s.EnterFile(ctx, "nobody", "file:x"), storage.ErrUserNotFound)
	assert.ErrorIs(t, s.ExitFile(ctx, "nobody", "file:x"), storage.ErrUserNotFound)
	assert.ErrorIs(t, s.RecordEdit(ctx, models.EditRecord{UserID: "nobody"}), storage.ErrUserNotFound)
}

func TestUserStore_GetUserReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()
	s.PutUser(&models.User{ID: "u1", Presence: models.Presence{FileIDs: []models.FileID{"file:a"}}})

	got, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	got.Presence.FileIDs = nil

	again, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []models.FileID{"file:a"}, again.Presence.FileIDs)
}

func TestUserStore_PutUserReindexesPresence(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()
	s.PutUser(&models.User{ID: "u1", Presence: models.Presence{FileIDs: []models.FileID{"file:a", "file:b"}}})
	s.PutUser(&models.User{ID: "u1", Presence: models.Presence{FileIDs: []models.FileID{"file:b"}}})

	present, err := s.PresentUsers(ctx, "file:a")
	require.NoError(t, err)
	assert.Empty(t, present)

	present, err = s.PresentUsers(ctx, "file:b")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, present)
}

func TestUserStore_RecordEditKeepsLatest(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()
	u := s.CreateUser("ada")
	opened := time.Unix(100, 0)

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.RecordEdit(ctx, models.EditRecord{
			UserID:       u.ID,
			FileID:       "file:a",
			FileOpenedAt: opened,
			EditedAt:     time.Unix(int64(100+i), 0),
		}))
	}

	rec, ok := s.LastEdit(ctx, u.ID, "file:a")
	require.True(t, ok)
	assert.Equal(t, time.Unix(103, 0), rec.EditedAt)
	assert.Equal(t, opened, rec.FileOpenedAt)
	assert.NotEmpty(t, rec.ID)
}

func TestFileStore_CreateFiles(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore()

	ids, err := s.CreateFiles(ctx, "u1", []models.FileSnapshot{
		{Name: "a", Document: []byte(`{}`)},
		{Name: "b", Document: []byte(`{}`)},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])

	file, err := s.GetFile(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, "b", file.Name)
	assert.Equal(t, "u1", file.OwnerID)

	owned, err := s.FilesForOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	_, err = s.GetFile(ctx, "file:missing")
	assert.ErrorIs(t, err, storage.ErrFileNotFound)
}
