package httpserver_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chatcore/internal/config"
	"chatcore/internal/httpserver"
	"chatcore/internal/metrics"
	"chatcore/internal/realtime"
	"chatcore/internal/security"
	"chatcore/internal/store/sqlite"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(db))

	repos := httpserver.Repos{
		Identities:    sqlite.NewIdentityRepo(db),
		Profiles:      sqlite.NewProfileRepo(db),
		Conversations: sqlite.NewConversationRepo(db),
		Memberships:   sqlite.NewMembershipRepo(db),
		Messages:      sqlite.NewMessageRepo(db),
		Receipts:      sqlite.NewReceiptRepo(db),
	}

	cfg := &config.Config{
		CORSOrigins:     []string{"http://localhost:3000"},
		MessagePageSize: 100,
		SendRatePerSec:  100,
		SendBurst:       100,
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	tokenSvc := security.NewTokenService("test-secret", time.Hour)
	hasher := security.NewPasswordHasher(4)
	hub := realtime.NewHub(collector)

	router := httpserver.NewRouter(cfg, repos, hub, tokenSvc, hasher, collector, registry, zap.NewNop())
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c *client) do(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, buf)
	require.NoError(c.t, err)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(c.t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func signupClient(t *testing.T, srv *httptest.Server, email string) *client {
	t.Helper()
	c := &client{t: t, base: srv.URL}
	status, body := c.do(http.MethodPost, "/api/auth/signup", map[string]any{
		"email":    email,
		"password": "password1",
	})
	require.Equal(t, http.StatusCreated, status)
	c.token = body["access_token"].(string)
	require.NotEmpty(t, c.token)
	return c
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	srv := newTestServer(t)
	c := &client{t: t, base: srv.URL}

	status, body := c.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSignupLoginAndMe(t *testing.T) {
	srv := newTestServer(t)
	c := signupClient(t, srv, "alice@example.com")

	status, me := c.do(http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, status)
	// Display name fell back to the email at signup.
	assert.Equal(t, "alice@example.com", me["display_name"])

	// Second signup with the same email conflicts.
	fresh := &client{t: t, base: srv.URL}
	status, _ = fresh.do(http.MethodPost, "/api/auth/signup", map[string]any{
		"email":    "alice@example.com",
		"password": "other",
	})
	assert.Equal(t, http.StatusConflict, status)

	// Bad password on login.
	status, _ = fresh.do(http.MethodPost, "/api/auth/login", map[string]any{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := fresh.do(http.MethodPost, "/api/auth/login", map[string]any{
		"email":    "alice@example.com",
		"password": "password1",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "bearer", body["token_type"])
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	srv := newTestServer(t)
	c := &client{t: t, base: srv.URL}

	status, _ := c.do(http.MethodGet, "/api/conversations", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestConversationFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	alice := signupClient(t, srv, "alice@example.com")
	bob := signupClient(t, srv, "bob@example.com")

	status, conv := alice.do(http.MethodPost, "/api/conversations", map[string]any{
		"kind": "group",
		"name": "plans",
	})
	require.Equal(t, http.StatusCreated, status)
	convID := conv["id"].(string)

	// Bob cannot see the conversation or post into it.
	status, _ = bob.do(http.MethodGet, "/api/conversations/"+convID, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = bob.do(http.MethodPost, fmt.Sprintf("/api/conversations/%s/messages", convID), map[string]any{
		"content": "hi",
	})
	assert.Equal(t, http.StatusNotFound, status)

	// Alice posts, then invites Bob.
	status, msg := alice.do(http.MethodPost, fmt.Sprintf("/api/conversations/%s/messages", convID), map[string]any{
		"content": "welcome",
	})
	require.Equal(t, http.StatusCreated, status)
	msgID := msg["id"].(string)

	status, meBob := bob.do(http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = alice.do(http.MethodPost, fmt.Sprintf("/api/conversations/%s/members", convID), map[string]any{
		"user_id": meBob["id"].(string),
	})
	require.Equal(t, http.StatusCreated, status)

	// Now Bob sees it, including history from before he joined.
	status, _ = bob.do(http.MethodGet, "/api/conversations/"+convID, nil)
	assert.Equal(t, http.StatusOK, status)

	listReq, err := http.NewRequest(http.MethodGet, srv.URL+fmt.Sprintf("/api/conversations/%s/messages", convID), nil)
	require.NoError(t, err)
	listReq.Header.Set("Authorization", "Bearer "+bob.token)
	res, err := http.DefaultClient.Do(listReq)
	require.NoError(t, err)
	defer res.Body.Close()
	var msgs []map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "welcome", msgs[0]["content"])

	// Bob acks the message; a second ack stays a success.
	status, _ = bob.do(http.MethodPost, "/api/messages/"+msgID+"/receipts", nil)
	assert.Equal(t, http.StatusCreated, status)
	status, _ = bob.do(http.MethodPost, "/api/messages/"+msgID+"/receipts", nil)
	assert.Equal(t, http.StatusCreated, status)

	// Bob cannot edit Alice's message.
	status, _ = bob.do(http.MethodPatch, "/api/messages/"+msgID, map[string]any{
		"content": "hijacked",
	})
	assert.Equal(t, http.StatusNotFound, status)

	// Bob leaves and loses access again.
	status, _ = bob.do(http.MethodDelete, fmt.Sprintf("/api/conversations/%s/members/%s", convID, meBob["id"].(string)), nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = bob.do(http.MethodGet, "/api/conversations/"+convID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}
