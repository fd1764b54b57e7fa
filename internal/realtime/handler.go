package realtime

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"chatcore/internal/domain"
	"chatcore/internal/security"
	"chatcore/internal/service"
)

type wsAuthError struct {
	status int
	msg    string
}

func (e wsAuthError) Error() string {
	return e.msg
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

func extractTokenFromWSRequest(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[len("Bearer "):])
		if token != "" {
			return token, nil
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			token := parts[1]
			if token != "" {
				return token, nil
			}
		}
	}

	return "", wsAuthError{status: http.StatusUnauthorized, msg: "missing bearer token"}
}

// HandlerOptions carries the collaborators of the /ws endpoint.
type HandlerOptions struct {
	Hub            *Hub
	Tokens         *security.TokenService
	Profiles       domain.ProfileRepository
	Messages       *service.MessageService
	Receipts       *service.ReceiptService
	AllowedOrigins []string
	Log            *zap.Logger

	// Per-connection message send throttle.
	SendRate  rate.Limit
	SendBurst int
}

// MakeHandler returns the HTTP handler for the /ws endpoint.
// Authenticates via bearer token (Authorization header or
// Sec-WebSocket-Protocol), then dispatches events:
//   - message   -> append to the log & broadcast to current members
//   - mark_read -> record a read receipt & broadcast receipt event
//   - typing    -> forward the indicator to the other members
func MakeHandler(opts HandlerOptions) http.HandlerFunc {
	checkOrigin := makeCheckOrigin(opts.AllowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
		Subprotocols: []string{
			"bearer",
		},
	}
	if opts.SendRate <= 0 {
		opts.SendRate = rate.Limit(5)
	}
	if opts.SendBurst <= 0 {
		opts.SendBurst = 10
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		tokenStr, err := extractTokenFromWSRequest(r)
		if err != nil {
			if authErr, ok := err.(wsAuthError); ok {
				http.Error(w, authErr.msg, authErr.status)
				return
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		sub, err := opts.Tokens.Subject(tokenStr)
		if err != nil || sub == "" {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := r.Context()
		profile, err := opts.Profiles.GetByID(ctx, sub)
		if err != nil || profile == nil {
			http.Error(w, "unknown identity", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		opts.Hub.Register(profile.ID, conn)
		defer opts.Hub.Unregister(profile.ID, conn)

		limiter := rate.NewLimiter(opts.SendRate, opts.SendBurst)

		for {
			var payload map[string]any
			if err := conn.ReadJSON(&payload); err != nil {
				break
			}
			event, _ := payload["type"].(string)
			switch event {

			case "message":
				convID, _ := payload["conversation_id"].(string)
				content, _ := payload["content"].(string)
				if convID == "" || content == "" {
					sendError(conn, "message requires conversation_id and non-empty content")
					continue
				}
				if !limiter.Allow() {
					sendError(conn, "sending too fast")
					continue
				}
				msg, err := opts.Messages.Send(ctx, profile.ID, convID, content)
				if err != nil {
					opts.Log.Debug("ws send rejected", zap.String("user", profile.ID), zap.Error(err))
					sendError(conn, "failed to send message")
					continue
				}
				memberIDs, err := opts.Messages.MemberIDs(ctx, msg.ConversationID)
				if err != nil {
					opts.Log.Warn("ws member lookup failed", zap.Error(err))
					continue
				}
				opts.Hub.BroadcastToUsers(memberIDs, map[string]any{
					"type":            "message",
					"message_id":      msg.ID,
					"conversation_id": msg.ConversationID,
					"sender_id":       msg.SenderID,
					"content":         msg.Content,
					"created_at":      msg.CreatedAt,
				})

			case "mark_read":
				msgID, _ := payload["message_id"].(string)
				if msgID == "" {
					continue
				}
				receipt, convID, err := opts.Receipts.MarkRead(ctx, profile.ID, msgID)
				if err != nil {
					opts.Log.Debug("ws mark_read rejected", zap.String("user", profile.ID), zap.Error(err))
					sendError(conn, "failed to mark message read")
					continue
				}
				memberIDs, err := opts.Messages.MemberIDs(ctx, convID)
				if err != nil {
					continue
				}
				opts.Hub.BroadcastToUsers(memberIDs, map[string]any{
					"type":       "message_read",
					"message_id": receipt.MessageID,
					"user_id":    receipt.UserID,
					"read_at":    receipt.ReadAt,
				})

			case "typing":
				convID, _ := payload["conversation_id"].(string)
				if convID == "" {
					continue
				}
				memberIDs, err := opts.Messages.MemberIDs(ctx, convID)
				if err != nil || !contains(memberIDs, profile.ID) {
					sendError(conn, "not allowed for this conversation")
					continue
				}
				var others []string
				for _, id := range memberIDs {
					if id != profile.ID {
						others = append(others, id)
					}
				}
				opts.Hub.BroadcastToUsers(others, map[string]any{
					"type":            "typing",
					"conversation_id": convID,
					"user_id":         profile.ID,
					"display_name":    profile.DisplayName,
				})

			default:
				opts.Log.Debug("ws unknown event", zap.String("event", event), zap.String("user", profile.ID))
			}
		}
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func sendError(conn *websocket.Conn, msg string) {
	_ = conn.WriteJSON(map[string]any{
		"type":    "error",
		"message": msg,
	})
}
