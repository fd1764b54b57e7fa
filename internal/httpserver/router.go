package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"chatcore/internal/access"
	"chatcore/internal/config"
	"chatcore/internal/domain"
	"chatcore/internal/metrics"
	"chatcore/internal/realtime"
	"chatcore/internal/security"
	"chatcore/internal/service"
)

// Repos bundles the store backend picked at startup.
type Repos struct {
	Identities    domain.IdentityRepository
	Profiles      domain.ProfileRepository
	Conversations domain.ConversationRepository
	Memberships   domain.MembershipRepository
	Messages      domain.MessageRepository
	Receipts      domain.ReceiptRepository
}

// NewRouter constructs the main HTTP router and wires routes, services, and
// middleware.
func NewRouter(
	cfg *config.Config,
	repos Repos,
	hub *realtime.Hub,
	tokenSvc *security.TokenService,
	passwordHasher *security.PasswordHasher,
	rec metrics.Recorder,
	gatherer prometheus.Gatherer,
	log *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// One gate serves every policy check.
	gate := access.NewGate(repos.Memberships)

	authSvc := service.NewAuthService(repos.Identities, tokenSvc, passwordHasher)
	profileSvc := service.NewProfileService(repos.Profiles)
	convSvc := service.NewConversationService(repos.Conversations, gate, rec)
	memberSvc := service.NewMembershipService(repos.Memberships, gate, rec)
	msgSvc := service.NewMessageService(repos.Conversations, repos.Memberships, repos.Messages, gate, rec, cfg.MessagePageSize)
	receiptSvc := service.NewReceiptService(repos.Messages, repos.Receipts, gate, rec)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", handleSignup(authSvc))
			r.Post("/login", handleLogin(authSvc, profileSvc))
		})

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(tokenSvc, repos.Profiles))

			r.Get("/auth/me", handleMe())

			r.Route("/profiles", func(r chi.Router) {
				r.Get("/", handleListProfiles(profileSvc))
				r.Put("/me", handleUpdateOwnProfile(profileSvc))
				r.Get("/{profileID}", handleGetProfile(profileSvc))
			})

			r.Route("/conversations", func(r chi.Router) {
				r.Post("/", handleCreateConversation(convSvc))
				r.Get("/", handleListConversations(convSvc))
				r.Get("/{conversationID}", handleGetConversation(convSvc))
				r.Patch("/{conversationID}", handleRenameConversation(convSvc))

				r.Post("/{conversationID}/members", handleAddMember(memberSvc))
				r.Get("/{conversationID}/members", handleListMembers(memberSvc))
				r.Delete("/{conversationID}/members/{userID}", handleRemoveMember(memberSvc))

				r.Get("/{conversationID}/messages", handleListMessages(msgSvc))
				r.Post("/{conversationID}/messages", handleSendMessage(msgSvc, hub))
			})

			r.Route("/messages", func(r chi.Router) {
				r.Patch("/{messageID}", handleEditMessage(msgSvc))
				r.Delete("/{messageID}", handleDeleteMessage(msgSvc))
				r.Post("/{messageID}/receipts", handleMarkRead(receiptSvc))
				r.Get("/{messageID}/receipts", handleListReceipts(receiptSvc))
			})
		})
	})

	r.Get("/ws", realtime.MakeHandler(realtime.HandlerOptions{
		Hub:            hub,
		Tokens:         tokenSvc,
		Profiles:       repos.Profiles,
		Messages:       msgSvc,
		Receipts:       receiptSvc,
		AllowedOrigins: cfg.CORSOrigins,
		Log:            log,
		SendRate:       rate.Limit(cfg.SendRatePerSec),
		SendBurst:      cfg.SendBurst,
	}))

	return r
}
