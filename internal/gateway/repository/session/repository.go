package session

import (
	"context"
	"errors"
	"time"

	"uigen/internal/gateway/entity"
)

var (
	ErrNotFound = errors.New("session not found")
	// ErrConflict reports that the session changed between read and write.
	ErrConflict = errors.New("session revision conflict")
	ErrExists   = errors.New("session already exists")
)

// Store persists sessions as whole documents.
//
// Update runs fn against a private copy of the stored session and persists the
// result atomically; when fn returns an error nothing is written. Every
// successful write recomputes statistics, bumps Revision and sets UpdatedAt.
type Store interface {
	Create(ctx context.Context, s *entity.Session) (*entity.Session, error)
	Get(ctx context.Context, id string) (*entity.Session, error)
	Update(ctx context.Context, id string, fn func(*entity.Session) error) (*entity.Session, error)
	List(ctx context.Context, filter ListFilter) (ListResult, error)
	Close() error
}

// ListFilter selects sessions of one user. An empty Status matches every
// status except deleted.
type ListFilter struct {
	UserID entity.UserID
	Status entity.SessionStatus
	Search string
	Offset int
	Limit  int
}

// ListResult is one page, most recently active first, plus the total number
// of matches.
type ListResult struct {
	Sessions []*entity.Session
	Total    int
}

func (f ListFilter) matches(s *entity.Session) bool {
	if s.UserID.String() != f.UserID.String() {
		return false
	}
	if f.Status == "" {
		if s.Status == entity.SessionDeleted {
			return false
		}
	} else if s.Status != f.Status {
		return false
	}
	return s.MatchesSearch(f.Search)
}

func stamp(s *entity.Session, now time.Time) {
	s.RecomputeStatistics(now)
	s.UpdatedAt = now
	s.Revision++
}
