package api

import (
	"net/http"
	"time"
)

func (h *Handler) watchItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := itemIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	stream, ok := newEventStream(w)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub := h.items.Subscribe(r.Context(), itemID)
	defer sub.Close()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case snap, open := <-sub.Snapshots():
			if !open {
				if err := sub.Err(); err != nil {
					h.logger.Warn("Item watch ended", "item_id", itemID, "error", err)
				}
				return
			}
			if snap.Missing {
				_ = stream.send("missing", map[string]string{"id": itemID.String()})
				return
			}
			if err := stream.send("item", toItemResponse(snap.Item)); err != nil {
				return
			}
		case <-ticker.C:
			if err := stream.heartbeat(); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
