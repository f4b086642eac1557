package models

import "slices"

// Presence lists the files a user is currently recorded as viewing.
type Presence struct {
	FileIDs []FileID `json:"fileIds"`
}

// Has reports whether fileID is in the presence set.
func (p Presence) Has(fileID FileID) bool {
	return slices.Contains(p.FileIDs, fileID)
}

// User is the persisted user record.
type User struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Presence Presence `json:"presence"`
}

// Clone returns a copy of u that shares no slices with it.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Presence.FileIDs = slices.Clone(u.Presence.FileIDs)
	return &c
}
