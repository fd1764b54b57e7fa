package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"chatcore/internal/realtime"
	"chatcore/internal/service"
)

type messageCreateRequest struct {
	Content string `json:"content"`
}

func handleSendMessage(msgSvc *service.MessageService, hub *realtime.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := CurrentProfile(r)
		if p == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		var req messageCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}

		msg, err := msgSvc.Send(r.Context(), p.ID, chi.URLParam(r, "conversationID"), req.Content)
		if err != nil {
			writeError(w, err)
			return
		}

		// Push the insert to everyone whose membership makes it visible.
		if memberIDs, err := msgSvc.MemberIDs(r.Context(), msg.ConversationID); err == nil {
			hub.BroadcastToUsers(memberIDs, map[string]any{
				"type":            "message",
				"message_id":      msg.ID,
				"conversation_id": msg.ConversationID,
				"sender_id":       msg.SenderID,
				"content":         msg.Content,
				"created_at":      msg.CreatedAt,
			})
		}

		writeJSON(w, http.StatusCreated, msg)
	}
}

func handleListMessages(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := CurrentProfile(r)
		if p == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		msgs, err := msgSvc.List(r.Context(), p.ID, chi.URLParam(r, "conversationID"), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

type messageEditRequest struct {
	Content string `json:"content"`
}

func handleEditMessage(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := CurrentProfile(r)
		if p == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		var req messageEditRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		msg, err := msgSvc.Edit(r.Context(), p.ID, chi.URLParam(r, "messageID"), req.Content)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}

func handleDeleteMessage(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := CurrentProfile(r)
		if p == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		if err := msgSvc.Delete(r.Context(), p.ID, chi.URLParam(r, "messageID")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}
