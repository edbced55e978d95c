package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/BradenHooton/admingate/internal/gatekeeper"
	pkghttp "github.com/BradenHooton/admingate/pkg/http"
)

// Events handles GET /auth/events as a server-sent event stream.
// Each transition and countdown tick is sent as a "state" event whose id is
// the state version; older versions that arrive late are skipped.
func (h *GateHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		pkghttp.WriteInternalError(w, "Streaming unsupported")
		return
	}

	browserID, g, ok := h.tab(w, r)
	if !ok {
		return
	}
	tabID := g.TabID()

	// Newest version wins; a slow client never blocks the gatekeeper
	updates := make(chan gatekeeper.State, 1)
	stop := g.Watch(func(st gatekeeper.State) {
		for {
			select {
			case updates <- st:
				return
			default:
			}
			select {
			case pending := <-updates:
				if pending.Version > st.Version {
					st = pending
				}
			default:
			}
		}
	})
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	var last uint64
	send := func(st gatekeeper.State) error {
		if st.Version != 0 && st.Version <= last {
			return nil
		}
		last = st.Version
		if err := writeEvent(w, "state", st.Version, h.stateResponse(browserID, tabID, st)); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := send(g.State()); err != nil {
		return
	}

	heartbeat := h.cfg.Clock.NewTicker(h.cfg.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case st := <-updates:
			if err := send(st); err != nil {
				h.cfg.Logger.Debug("event stream closed", "error", err, "tab_id", tabID)
				return
			}
		case <-heartbeat.C():
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, id uint64, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, event, data)
	return err
}
