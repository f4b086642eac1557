// Package storage holds what the user, presence and file backends share.
package storage

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrFileNotFound = errors.New("file not found")
)
