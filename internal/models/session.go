package models

import "time"

// Theme is the two-valued application theme preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// IsDark reports whether t is the dark theme. Anything else counts as light.
func (t Theme) IsDark() bool { return t == ThemeDark }

// Auth identifies the authenticated user of a session.
type Auth struct {
	UserID string `json:"userId"`
}

// SessionState is the process-local record of the current application session.
// It is always replaced as a whole value.
type SessionState struct {
	ID        string    `json:"id"`
	Auth      *Auth     `json:"auth,omitempty"` // nil when signed out
	Theme     Theme     `json:"theme"`
	CreatedAt time.Time `json:"createdAt"`
}

// WithTheme returns a copy of s with the theme replaced.
func (s SessionState) WithTheme(theme Theme) SessionState {
	s.Theme = theme
	return s
}
