// Package bundle stores downloadable component archives.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store persists archives under sessionID/name.
type Store interface {
	Put(ctx context.Context, sessionID, name string, content []byte) error
	Get(ctx context.Context, sessionID, name string) ([]byte, error)
	// GetURL returns a time-limited download URL, or "" when the backend
	// cannot serve objects directly.
	GetURL(ctx context.Context, sessionID, name string) (string, error)
}

var ErrNotFound = errors.New("bundle not found")

func objectKey(sessionID, name string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	name = strings.TrimLeft(strings.TrimSpace(name), "/")
	if sessionID == "" {
		return "", fmt.Errorf("session id is required")
	}
	if name == "" {
		return "", fmt.Errorf("bundle name is required")
	}
	return sessionID + "/" + name, nil
}
