package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Vasu1712/scenyx-editor/internal/logging"
	"github.com/Vasu1712/scenyx-editor/internal/models"
	"github.com/Vasu1712/scenyx-editor/internal/storage"
)

// UserStore keeps users, their presence and their edit records in memory.
type UserStore struct {
	mu        sync.RWMutex
	users     map[string]*models.User
	edits     map[editKey]models.EditRecord // last edit per (user, file)
	fileIndex map[models.FileID][]string    // fileID -> present userIDs
	log       *zap.Logger
}

type editKey struct {
	userID string
	fileID models.FileID
}

// NewUserStore creates an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{
		users:     make(map[string]*models.User),
		edits:     make(map[editKey]models.EditRecord),
		fileIndex: make(map[models.FileID][]string),
		log:       logging.L().Named("memory"),
	}
}

// CreateUser adds a user with a fresh id and an empty presence set.
func (s *UserStore) CreateUser(name string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := &models.User{
		ID:       uuid.NewString(),
		Name:     name,
		Presence: models.Presence{FileIDs: []models.FileID{}},
	}
	s.users[user.ID] = user

	s.log.Debug("user created", logging.User(user.ID))
	return user.Clone()
}

// PutUser inserts or replaces a user record.
func (s *UserStore) PutUser(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.users[user.ID]; ok {
		for _, fileID := range prev.Presence.FileIDs {
			s.unindexLocked(user.ID, fileID)
		}
	}
	s.users[user.ID] = user.Clone()
	for _, fileID := range user.Presence.FileIDs {
		if !slices.Contains(s.fileIndex[fileID], user.ID) {
			s.fileIndex[fileID] = append(s.fileIndex[fileID], user.ID)
		}
	}
}

// GetUser returns a copy of the user record.
func (s *UserStore) GetUser(_ context.Context, userID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user.Clone(), nil
}

// EnterFile adds fileID to the user's presence set. Entering twice is a no-op.
func (s *UserStore) EnterFile(_ context.Context, userID string, fileID models.FileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	if user.Presence.Has(fileID) {
		return nil
	}

	user.Presence.FileIDs = append(user.Presence.FileIDs, fileID)
	s.fileIndex[fileID] = append(s.fileIndex[fileID], userID)

	s.log.Debug("user entered file", logging.User(userID), logging.File(string(fileID)),
		zap.Int("present", len(s.fileIndex[fileID])))
	return nil
}

// ExitFile removes fileID from the user's presence set. Exiting a file the
// user is not present in is a no-op.
func (s *UserStore) ExitFile(_ context.Context, userID string, fileID models.FileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}

	user.Presence.FileIDs = slices.DeleteFunc(user.Presence.FileIDs, func(id models.FileID) bool {
		return id == fileID
	})
	s.unindexLocked(userID, fileID)

	s.log.Debug("user exited file", logging.User(userID), logging.File(string(fileID)))
	return nil
}

func (s *UserStore) unindexLocked(userID string, fileID models.FileID) {
	s.fileIndex[fileID] = slices.DeleteFunc(s.fileIndex[fileID], func(id string) bool {
		return id == userID
	})
	if len(s.fileIndex[fileID]) == 0 {
		delete(s.fileIndex, fileID)
	}
}

// PresentUsers lists the users currently present in fileID.
func (s *UserStore) PresentUsers(_ context.Context, fileID models.FileID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.fileIndex[fileID]), nil
}

// RecordEdit stores rec as the latest edit of (rec.UserID, rec.FileID).
func (s *UserStore) RecordEdit(_ context.Context, rec models.EditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[rec.UserID]; !ok {
		return storage.ErrUserNotFound
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	s.edits[editKey{rec.UserID, rec.FileID}] = rec
	return nil
}

// LastEdit returns the latest edit record of (userID, fileID).
func (s *UserStore) LastEdit(_ context.Context, userID string, fileID models.FileID) (models.EditRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.edits[editKey{userID, fileID}]
	return rec, ok
}

// Accounts exposes user creation with the signature the postgres store uses.
type Accounts struct{ *UserStore }

func (a Accounts) CreateUser(_ context.Context, name string) (*models.User, error) {
	return a.UserStore.CreateUser(name), nil
}
