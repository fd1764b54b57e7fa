package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"chatcore/internal/service"
)

type membershipAddRequest struct {
	UserID string `json:"user_id"`
}

func handleAddMember(memberSvc *service.MembershipService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := CurrentProfile(r)
		if p == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		var req membershipAddRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		if req.UserID == "" {
			req.UserID = p.ID
		}
		m, err := memberSvc.Add(r.Context(), p.ID, chi.URLParam(r, "conversationID"), req.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	}
}

func handleListMembers(memberSvc *service.MembershipService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := CurrentProfile(r)
		if p == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		members, err := memberSvc.List(r.Context(), p.ID, chi.URLParam(r, "conversationID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, members)
	}
}

func handleRemoveMember(memberSvc *service.MembershipService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := CurrentProfile(r)
		if p == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		err := memberSvc.Leave(r.Context(), p.ID, chi.URLParam(r, "conversationID"), chi.URLParam(r, "userID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
	}
}
