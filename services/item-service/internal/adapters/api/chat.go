package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/floroz/accio/services/item-service/internal/domain/chat"
)

type sendMessageRequest struct {
	Text string `json:"text"`
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		var err error
		if limit, err = strconv.Atoi(v); err != nil {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	msgs, err := h.chat.ListMessages(r.Context(), limit)
	if err != nil {
		h.internalError(w, r, "Failed to list messages", err)
		return
	}
	if msgs == nil {
		msgs = []*chat.Message{}
	}
	respondJSON(w, http.StatusOK, msgs)
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := identity(r)
	msg, err := h.chat.SendMessage(r.Context(), chat.SendMessageCommand{
		SenderID:    id.UserID,
		DisplayName: id.DisplayName,
		Email:       id.Email,
		Text:        req.Text,
	})
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage),
			errors.Is(err, chat.ErrMessageTooLong),
			errors.Is(err, chat.ErrMissingSender):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			h.internalError(w, r, "Failed to send message", err)
		}
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

func (h *Handler) chatStream(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.chat.Subscribe(r.Context())
	if err != nil {
		h.internalError(w, r, "Failed to subscribe to chat", err)
		return
	}

	stream, ok := newEventStream(w)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, open := <-msgs:
			if !open {
				return
			}
			if err := stream.send("message", msg); err != nil {
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
