package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"linoslms.org/internal/session"
)

type createNotificationRequest struct {
	Message    string `json:"message"`
	Type       string `json:"type"`
	DurationMS int64  `json:"durationMs"`
}

func (a *API) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if a.notices == nil {
		writeError(w, r, http.StatusServiceUnavailable, "notifications disabled")
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, listOrEmpty(a.notices.List()))
	case http.MethodPost:
		var req createNotificationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			writeError(w, r, http.StatusBadRequest, "message is required")
			return
		}
		id := a.notices.Add(req.Message, session.NotificationType(req.Type), time.Duration(req.DurationMS)*time.Millisecond)
		writeJSON(w, http.StatusCreated, map[string]any{"id": id})
	case http.MethodDelete:
		a.notices.Clear()
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func (a *API) handleNotificationResource(w http.ResponseWriter, r *http.Request) {
	if a.notices == nil {
		writeError(w, r, http.StatusServiceUnavailable, "notifications disabled")
		return
	}
	raw, action := resourceID(r.URL.Path, "/v1/notifications/")
	if raw == "" || action != "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "notification id must be numeric")
		return
	}
	// Remove is idempotent; a stale id is not an error for the dismisser.
	a.notices.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

// StreamNotifications pushes notification events to the client as
// server-sent events until the client disconnects.
func (a *API) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	if a.notices == nil {
		writeError(w, r, http.StatusServiceUnavailable, "notifications disabled")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	// The response writer arrives wrapped by the logging and metrics
	// middleware; the controller walks their Unwrap chain to the real
	// flusher.
	rc := http.NewResponseController(w)

	// Subscribe before the headers go out so no event added between the
	// client seeing 200 and the loop starting is lost.
	events, cancel := a.notices.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev.Notification)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, payload)
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
