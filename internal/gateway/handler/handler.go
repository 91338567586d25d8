// Package handler translates HTTP requests into session service calls and
// service results into JSON envelopes.
package handler

import (
	sessionsvc "uigen/internal/gateway/service/session"
)

// Set groups the handlers the router mounts.
type Set struct {
	AI         *AIHandler
	Sessions   *SessionHandler
	Components *ComponentHandler
	Watch      *WatchHandler
	Health     *HealthHandler
}

func NewSet(svc *sessionsvc.Service, env string) *Set {
	return &Set{
		AI:         NewAIHandler(svc),
		Sessions:   NewSessionHandler(svc),
		Components: NewComponentHandler(svc),
		Watch:      NewWatchHandler(svc),
		Health:     NewHealthHandler(env),
	}
}
