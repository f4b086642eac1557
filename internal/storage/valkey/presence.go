// Package valkey keeps presence sets in Valkey so several server instances
// share them.
package valkey

import (
	"context"
	"fmt"

	"github.com/valkey-io/valkey-go"

	"github.com/Vasu1712/scenyx-editor/internal/models"
)

// PresenceStore maintains two mirrored sets per entry: the files a user is
// present in, and the users present in a file.
type PresenceStore struct {
	client valkey.Client
}

// NewClient connects to a single Valkey node.
func NewClient(addr string) (valkey.Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey at %s: %w", addr, err)
	}
	return client, nil
}

func NewPresenceStore(client valkey.Client) *PresenceStore {
	return &PresenceStore{client: client}
}

func userKey(userID string) string { return "presence:user:" + userID }

func fileKey(fileID models.FileID) string { return "presence:file:" + string(fileID) }

// EnterFile adds the (user, file) pair to both sets.
func (s *PresenceStore) EnterFile(ctx context.Context, userID string, fileID models.FileID) error {
	cmds := valkey.Commands{
		s.client.B().Sadd().Key(userKey(userID)).Member(string(fileID)).Build(),
		s.client.B().Sadd().Key(fileKey(fileID)).Member(userID).Build(),
	}
	for _, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return fmt.Errorf("failed to enter file %s: %w", fileID, err)
		}
	}
	return nil
}

// ExitFile removes the (user, file) pair from both sets.
func (s *PresenceStore) ExitFile(ctx context.Context, userID string, fileID models.FileID) error {
	cmds := valkey.Commands{
		s.client.B().Srem().Key(userKey(userID)).Member(string(fileID)).Build(),
		s.client.B().Srem().Key(fileKey(fileID)).Member(userID).Build(),
	}
	for _, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return fmt.Errorf("failed to exit file %s: %w", fileID, err)
		}
	}
	return nil
}

// FileIDs returns the files userID is present in.
func (s *PresenceStore) FileIDs(ctx context.Context, userID string) ([]models.FileID, error) {
	members, err := s.client.Do(ctx, s.client.B().Smembers().Key(userKey(userID)).Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to read presence of %s: %w", userID, err)
	}
	ids := make([]models.FileID, len(members))
	for i, m := range members {
		ids[i] = models.FileID(m)
	}
	return ids, nil
}

// PresentUsers returns the users present in fileID.
func (s *PresenceStore) PresentUsers(ctx context.Context, fileID models.FileID) ([]string, error) {
	members, err := s.client.Do(ctx, s.client.B().Smembers().Key(fileKey(fileID)).Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to read presence of %s: %w", fileID, err)
	}
	return members, nil
}
