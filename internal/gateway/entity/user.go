package entity

import "strings"

// DemoUserID owns every request when the gateway runs without configured
// access tokens (local profile only).
const DemoUserID UserID = "demo-user"

// UserID identifies the owner of sessions.
type UserID string

func NormalizeUserID(raw string) UserID {
	return UserID(strings.TrimSpace(raw))
}

func (id UserID) String() string {
	return strings.TrimSpace(string(id))
}

func (id UserID) IsZero() bool {
	return id.String() == ""
}
