package orders_api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// streamChanges отдаёт подсказки об изменениях заказа как Server-Sent Events.
// Это только сигнал "перечитай", не само состояние.
func (a *OrdersAPI) streamChanges(w http.ResponseWriter, r *http.Request) {
	if a.deps.Changes == nil {
		writeErrorCode(w, http.StatusNotImplemented, "not_implemented", "change feed is not configured")
		return
	}
	id := chi.URLParam(r, "orderID")
	if _, err := a.deps.Orders.GetOrder(r.Context(), actorFrom(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErrorCode(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}

	hints, stop, err := a.deps.Changes.Subscribe(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": subscribed\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(a.opts.SSEHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case h, ok := <-hints:
			if !ok {
				return
			}
			b, err := json.Marshal(h)
			if err != nil {
				slog.Warn("marshal change hint", "order_id", id, "error", err.Error())
				continue
			}
			_, _ = fmt.Fprintf(w, "event: change\ndata: %s\n\n", b)
			flusher.Flush()
		}
	}
}
