package multiplayer

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/Vasu1712/scenyx-editor/internal/editor"
)

// AssetStore uploads asset bytes and resolves stored assets to URLs.
type AssetStore interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
	Resolve(src string) string
}

// HTTPAssetStore stores assets under <BaseURL>/uploads/.
type HTTPAssetStore struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPAssetStore(baseURL string) *HTTPAssetStore {
	return &HTTPAssetStore{BaseURL: baseURL, Client: &http.Client{Timeout: 30 * time.Second}}
}

// Upload PUTs data under a unique object name and returns its URL.
func (s *HTTPAssetStore) Upload(ctx context.Context, name string, data []byte) (string, error) {
	object := uuid.NewString() + "-" + path.Base(name)
	target := s.BaseURL + "/uploads/" + url.PathEscape(object)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload asset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload asset: unexpected status %d", resp.StatusCode)
	}
	return target, nil
}

// Resolve returns src unchanged; stored assets are addressed by their upload URL.
func (s *HTTPAssetStore) Resolve(src string) string { return src }

// NewURLAssetHandler creates assets for external URLs. Only http and https
// URLs are accepted.
func NewURLAssetHandler() editor.AssetHandler {
	return func(_ context.Context, raw string) (*editor.Asset, error) {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse asset url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("unsupported asset url scheme %q", u.Scheme)
		}
		return &editor.Asset{ID: "asset:" + uuid.NewString(), URL: u.String()}, nil
	}
}
