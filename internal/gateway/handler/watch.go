package handler

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	sessionsvc "uigen/internal/gateway/service/session"
	"uigen/internal/gateway/service/sessionevent"
)

// WatchHandler streams session change events over a websocket.
type WatchHandler struct {
	svc *sessionsvc.Service
}

func NewWatchHandler(svc *sessionsvc.Service) *WatchHandler {
	return &WatchHandler{svc: svc}
}

const (
	watchWriteWait = 10 * time.Second
	watchPongWait  = 60 * time.Second
	watchPingEvery = (watchPongWait * 9) / 10
)

var watchUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type watchInbound struct {
	Type string `json:"type"`
}

type watchOutbound struct {
	Type           string     `json:"type"`
	SessionID      string     `json:"sessionId,omitempty"`
	Version        int        `json:"version,omitempty"`
	CurrentVersion int        `json:"currentVersion,omitempty"`
	Revision       int64      `json:"revision,omitempty"`
	At             *time.Time `json:"at,omitempty"`
	Message        string     `json:"message,omitempty"`
}

func outboundFromEvent(evt sessionevent.Event) watchOutbound {
	at := evt.At
	return watchOutbound{
		Type:           string(evt.Kind),
		SessionID:      evt.SessionID,
		Version:        evt.Version,
		CurrentVersion: evt.CurrentVersion,
		Revision:       evt.Revision,
		At:             &at,
	}
}

func (h *WatchHandler) Watch(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	sessionID := strings.TrimSpace(r.PathValue("id"))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Access is checked before the upgrade so unknown sessions get a JSON 404.
	subCh, err := h.svc.Watch(ctx, user, sessionID)
	if err != nil {
		WriteError(w, err)
		return
	}

	conn, err := watchUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(watchPongWait)); err != nil {
		log.Printf("watch ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(watchPongWait))
	})

	writeCh := make(chan watchOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(watchPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(watchWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(watchWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	pushWatch(writeCh, watchOutbound{Type: "subscribed", SessionID: sessionID})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-subCh:
				if !ok {
					return
				}
				pushWatch(writeCh, outboundFromEvent(evt))
			}
		}
	}()

	for {
		var in watchInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case "ping":
			pushWatch(writeCh, watchOutbound{Type: "pong"})
		default:
			pushWatch(writeCh, watchOutbound{Type: "error", Message: "unsupported type: " + in.Type})
		}
	}
}

// pushWatch drops the oldest queued message when the writer falls behind.
func pushWatch(writeCh chan watchOutbound, out watchOutbound) {
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
