package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Vasu1712/scenyx-editor/internal/editor"
	"github.com/Vasu1712/scenyx-editor/internal/models"
)

const filesContent = "files"

// SnapshotReader turns dropped native document files into snapshots. Files
// that do not hold a valid document are skipped.
type SnapshotReader interface {
	ReadSnapshots(ctx context.Context, files []models.DroppedFile) ([]models.FileSnapshot, error)
}

// JSONSnapshotReader accepts files whose content is a JSON object.
type JSONSnapshotReader struct {
	Log *zap.Logger
}

func (r JSONSnapshotReader) ReadSnapshots(_ context.Context, files []models.DroppedFile) ([]models.FileSnapshot, error) {
	var snapshots []models.FileSnapshot
	for _, f := range files {
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(f.Data, &doc); err != nil {
			if r.Log != nil {
				r.Log.Warn("skipping unreadable document", zap.String("name", f.Name), zap.Error(err))
			}
			continue
		}
		snapshots = append(snapshots, models.FileSnapshot{
			Name:     strings.TrimSuffix(f.Name, models.NativeFileExtension),
			Document: f.Data,
		})
	}
	return snapshots, nil
}

// installDropHandler intercepts dropped files: native documents are imported
// as new files through app, everything else goes to the handler that was
// registered before.
func installDropHandler(app App, e editor.Handle, reader SnapshotReader, log *zap.Logger) (restore func()) {
	defaultOnDrop := e.ExternalContentHandler(filesContent)

	e.RegisterExternalContentHandler(filesContent, func(ctx context.Context, content editor.ExternalContent) error {
		var native, other []models.DroppedFile
		for _, f := range content.Files {
			if f.IsNativeDocument() {
				native = append(native, f)
			} else {
				other = append(other, f)
			}
		}

		if len(native) > 0 {
			snapshots, err := reader.ReadSnapshots(ctx, native)
			if err != nil {
				return fmt.Errorf("read dropped documents: %w", err)
			}
			if len(snapshots) > 0 {
				ids, err := app.CreateFilesFromSnapshots(ctx, snapshots)
				if err != nil {
					return fmt.Errorf("import dropped documents: %w", err)
				}
				log.Info("imported dropped documents", zap.Int("count", len(ids)))
			}
		}

		if len(other) > 0 && defaultOnDrop != nil {
			content.Files = other
			return defaultOnDrop(ctx, content)
		}
		return nil
	})

	return func() { e.RegisterExternalContentHandler(filesContent, defaultOnDrop) }
}
