package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/anonto42/sidequest/backend/internal/follow"
	"github.com/labstack/echo/v4"
)

const streamHeartbeat = 25 * time.Second

// StreamStatus pushes the caller's follow snapshot as server-sent events:
// the current one first, then one per change. Bursts collapse to the newest
// snapshot and versions never go backwards.
func (h *FollowHandler) StreamStatus(c echo.Context) error {
	ctrl, err := controllerFor(c, h.registry)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	var latest follow.Snapshot
	pending := make(chan struct{}, 1)
	offer := func(s follow.Snapshot) {
		mu.Lock()
		if s.Version > latest.Version {
			latest = s
		}
		mu.Unlock()
		select {
		case pending <- struct{}{}:
		default:
		}
	}

	unsubscribe := ctrl.Subscribe(offer)
	defer unsubscribe()
	offer(ctrl.Snapshot())

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	var sent uint64
	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case <-heartbeat.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case <-pending:
			mu.Lock()
			snap := latest
			mu.Unlock()
			if snap.Version <= sent {
				continue
			}

			data, err := json.Marshal(snap)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(res, "event: status\ndata: %s\n\n", data); err != nil {
				return nil
			}
			res.Flush()
			sent = snap.Version
		}
	}
}
