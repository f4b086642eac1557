package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Vasu1712/scenyx-editor/internal/models"
	"github.com/Vasu1712/scenyx-editor/internal/storage"
)

// FileStore keeps file records in memory.
type FileStore struct {
	mu         sync.RWMutex
	files      map[models.FileID]*models.File
	ownerIndex map[string][]models.FileID // ownerID -> fileIDs
}

func NewFileStore() *FileStore {
	return &FileStore{
		files:      make(map[models.FileID]*models.File),
		ownerIndex: make(map[string][]models.FileID),
	}
}

// CreateFiles stores one new file per snapshot, each under a fresh slug.
func (s *FileStore) CreateFiles(_ context.Context, ownerID string, snapshots []models.FileSnapshot) ([]models.FileID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]models.FileID, 0, len(snapshots))
	for _, snap := range snapshots {
		file := &models.File{
			ID:        models.NewFileID(uuid.NewString()),
			OwnerID:   ownerID,
			Name:      snap.Name,
			Document:  snap.Document,
			CreatedAt: time.Now(),
		}
		s.files[file.ID] = file
		s.ownerIndex[ownerID] = append(s.ownerIndex[ownerID], file.ID)
		ids = append(ids, file.ID)
	}
	return ids, nil
}

func (s *FileStore) GetFile(_ context.Context, fileID models.FileID) (*models.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	file, ok := s.files[fileID]
	if !ok {
		return nil, storage.ErrFileNotFound
	}
	c := *file
	return &c, nil
}

// FilesForOwner lists the files owned by ownerID in creation order.
func (s *FileStore) FilesForOwner(_ context.Context, ownerID string) ([]*models.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var files []*models.File
	for _, id := range s.ownerIndex[ownerID] {
		if file, ok := s.files[id]; ok {
			c := *file
			files = append(files, &c)
		}
	}
	return files, nil
}
