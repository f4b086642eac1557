package session

import (
	"context"
	"fmt"
	"net/url"

	"github.com/Vasu1712/scenyx-editor/internal/multiplayer"
)

// User is the signed-in user as seen by the store connection.
type User interface {
	ID() string
	Token(ctx context.Context) (string, error)
}

// connKey identifies a store connection. A new key means a new connection.
type connKey struct {
	userID    string
	slug      string
	temporary bool
}

func keyFor(p Props) connKey {
	k := connKey{slug: p.FileSlug, temporary: p.Temporary}
	if p.User != nil {
		k.userID = p.User.ID()
	}
	return k
}

// NewURIResolver builds <server>/app/file/<slug>, adding an access token when
// user is non-nil and temporary=true for temporary sessions.
func NewURIResolver(server, slug string, user User, temporary bool) multiplayer.URIResolver {
	return func(ctx context.Context) (string, error) {
		u, err := url.Parse(server)
		if err != nil {
			return "", fmt.Errorf("parse multiplayer server: %w", err)
		}
		u = u.JoinPath("app", "file", slug)

		q := u.Query()
		if user != nil {
			token, err := user.Token(ctx)
			if err != nil {
				return "", fmt.Errorf("get access token: %w", err)
			}
			q.Set("accessToken", token)
		}
		if temporary {
			q.Set("temporary", "true")
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
}
