package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/isdelr/catalog-api/internal/auth"
	"github.com/isdelr/catalog-api/internal/database"
	"github.com/isdelr/catalog-api/internal/monitoring"
	"github.com/isdelr/catalog-api/internal/services"
	"github.com/isdelr/catalog-api/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	router http.Handler
	issuer *auth.TokenIssuer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.New(context.Background(), ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })

	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	events := services.NewEventService(db, hub)
	issuer := auth.NewTokenIssuer([]byte("router-test-secret"), time.Hour)

	router := NewRouter(Dependencies{
		Hub:            hub,
		UserService:    services.NewUserService(db, auth.NewPasswordHasher(bcrypt.MinCost), events),
		ProductService: services.NewProductService(db, events),
		EventService:   events,
		TokenService:   services.NewTokenService(db),
		Issuer:         issuer,
		Monitor:        monitoring.NewSystemMonitor(db),
		AllowedOrigins: []string{"*"},
	})
	return &testServer{router: router, issuer: issuer}
}

type response struct {
	Code int
	Body map[string]interface{}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	res := response{Code: w.Code}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res.Body), w.Body.String())
	}
	return res
}

func (s *testServer) register(t *testing.T, email, username, password string) {
	t.Helper()
	res := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "username": username, "password": password,
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	res := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	token, ok := res.Body["token"].(string)
	require.True(t, ok)
	return token
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, true, res.Body["success"])
	assert.Equal(t, "Server is running", res.Body["message"])

	res = s.do(t, http.MethodGet, "/health/system", "", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	data := res.Body["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["database"])
}

func TestUnknownRouteAndMethod(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "Route not found", res.Body["message"])
	assert.Equal(t, false, res.Body["success"])

	res = s.do(t, http.MethodPatch, "/api/products", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, res.Code)
}

func TestRegister(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "Alice@Example.com", "username": "alice", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, res.Code)
	assert.Equal(t, true, res.Body["success"])
	assert.Equal(t, map[string]interface{}{"email": "alice@example.com", "username": "alice"}, res.Body["data"])

	t.Run("duplicate email", func(t *testing.T) {
		res := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
			"email": "alice@example.com", "username": "other", "password": "another1",
		})
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Equal(t, "Email is already registered", res.Body["message"])

		// the first account still logs in with its own password
		s.login(t, "alice@example.com", "secret1")
	})

	t.Run("duplicate username", func(t *testing.T) {
		res := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
			"email": "b@example.com", "username": "alice", "password": "another1",
		})
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Equal(t, "Username is already taken", res.Body["message"])
	})

	t.Run("validation", func(t *testing.T) {
		res := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
			"email": "bad", "username": "x", "password": "1",
		})
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Equal(t, "Validation failed", res.Body["message"])
		assert.Len(t, res.Body["errors"], 3)
	})

	t.Run("malformed body", func(t *testing.T) {
		res := s.do(t, http.MethodPost, "/api/auth/register", "", "{not json")
		assert.Equal(t, http.StatusBadRequest, res.Code)
	})

	t.Run("oversized body", func(t *testing.T) {
		body := `{"email":"big@example.com","username":"big","password":"` + strings.Repeat("p", 2<<20) + `"}`
		res := s.do(t, http.MethodPost, "/api/auth/register", "", body)
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Equal(t, "Invalid request body", res.Body["message"])

		// nothing was stored
		res = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "big@example.com", "password": "x",
		})
		assert.Equal(t, http.StatusNotFound, res.Code)
	})
}

func TestRegister_ConcurrentDuplicates(t *testing.T) {
	s := newTestServer(t)

	const n = 4
	codes := make([]int, n)
	messages := make([]interface{}, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
				"email": "race@example.com", "username": "racer" + string(rune('a'+i)), "password": "secret1",
			})
			codes[i] = res.Code
			messages[i] = res.Body["message"]
		}(i)
	}
	wg.Wait()

	created := 0
	for i, code := range codes {
		if code == http.StatusCreated {
			created++
			continue
		}
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Email is already registered", messages[i])
	}
	assert.Equal(t, 1, created)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@example.com", "alice", "secret1")

	token := s.login(t, " A@example.com ", "secret1")
	res := s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	user := res.Body["data"].(map[string]interface{})
	assert.Equal(t, "alice", user["username"])
	assert.NotContains(t, user, "passwordHash")
	assert.NotContains(t, user, "password_hash")

	for i := 0; i < 3; i++ {
		res := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@example.com", "password": "nope"})
		assert.Equal(t, http.StatusUnauthorized, res.Code)
		assert.Equal(t, "Invalid credentials", res.Body["message"])
	}

	res = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ghost@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "Invalid credentials", res.Body["message"])

	res = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@example.com"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestGate(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, auth.MsgNoToken, res.Body["message"])

	res = s.do(t, http.MethodGet, "/api/auth/me", "garbage", nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, auth.MsgInvalidToken, res.Body["message"])
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@example.com", "alice", "secret1")
	token := s.login(t, "a@example.com", "secret1")

	res := s.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "Token not provided", res.Body["message"])

	res = s.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "Logged out successfully", res.Body["message"])

	// the signature and expiry still verify, the gate still refuses it
	_, err := s.issuer.Verify(token)
	require.NoError(t, err)

	res = s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, auth.MsgTokenRevoked, res.Body["message"])

	// logging out twice is fine
	res = s.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, res.Code)

	// a fresh login works again
	fresh := s.login(t, "a@example.com", "secret1")
	res = s.do(t, http.MethodGet, "/api/auth/me", fresh, nil)
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestLogout_OtherSessionSurvives(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@example.com", "alice", "secret1")

	// both logins land within the same second
	first := s.login(t, "a@example.com", "secret1")
	second := s.login(t, "a@example.com", "secret1")
	require.NotEqual(t, first, second)

	res := s.do(t, http.MethodPost, "/api/auth/logout", first, nil)
	require.Equal(t, http.StatusOK, res.Code)

	res = s.do(t, http.MethodGet, "/api/auth/me", first, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = s.do(t, http.MethodGet, "/api/auth/me", second, nil)
	assert.Equal(t, http.StatusOK, res.Code)

	// logging straight back in yields a usable token
	third := s.login(t, "a@example.com", "secret1")
	res = s.do(t, http.MethodGet, "/api/auth/me", third, nil)
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestUpdateAndDeleteAccount(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@example.com", "alice", "secret1")
	s.register(t, "b@example.com", "bob", "secret1")
	token := s.login(t, "a@example.com", "secret1")

	res := s.do(t, http.MethodPut, "/api/auth/update", token, map[string]string{"username": "alicia"})
	require.Equal(t, http.StatusOK, res.Code)
	user := res.Body["data"].(map[string]interface{})
	assert.Equal(t, "alicia", user["username"])
	assert.Equal(t, "a@example.com", user["email"])

	res = s.do(t, http.MethodPut, "/api/auth/update", token, map[string]string{"email": "b@example.com"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Email is already registered", res.Body["message"])

	res = s.do(t, http.MethodPut, "/api/auth/update", token, map[string]string{"email": "nope"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Validation failed", res.Body["message"])

	res = s.do(t, http.MethodPut, "/api/auth/password", token, map[string]string{"currentPassword": "wrong1", "newPassword": "secret2"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	res = s.do(t, http.MethodPut, "/api/auth/password", token, map[string]string{"currentPassword": "secret1", "newPassword": "secret2"})
	assert.Equal(t, http.StatusOK, res.Code)
	s.login(t, "a@example.com", "secret2")

	res = s.do(t, http.MethodDelete, "/api/auth/delete", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "User account deleted successfully", res.Body["message"])

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodPut, "/api/auth/update"},
		{http.MethodDelete, "/api/auth/delete"},
	} {
		res = s.do(t, tc.method, tc.path, token, map[string]string{"username": "ghost"})
		assert.Equal(t, http.StatusNotFound, res.Code, tc.path)
		assert.Equal(t, "User not found", res.Body["message"], tc.path)
	}
}

func TestProducts(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@example.com", "alice", "secret1")
	token := s.login(t, "a@example.com", "secret1")

	widget := map[string]interface{}{"name": "Widget", "price": 10, "category": "c", "stock": 5}

	res := s.do(t, http.MethodPost, "/api/products", "", widget)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = s.do(t, http.MethodPost, "/api/products", token, widget)
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	created := res.Body["data"].(map[string]interface{})
	id := created["id"].(string)

	res = s.do(t, http.MethodGet, "/api/products/"+id, "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	got := res.Body["data"].(map[string]interface{})
	assert.Equal(t, "Widget", got["name"])
	assert.Equal(t, 10.0, got["price"])
	assert.Equal(t, "c", got["category"])
	assert.Equal(t, 5.0, got["stock"])

	res = s.do(t, http.MethodPut, "/api/products/"+id, token, map[string]interface{}{"stock": 0})
	require.Equal(t, http.StatusOK, res.Code)
	updated := res.Body["data"].(map[string]interface{})
	assert.Equal(t, 0.0, updated["stock"])
	assert.Equal(t, "Widget", updated["name"])
	assert.Equal(t, 10.0, updated["price"])

	res = s.do(t, http.MethodPost, "/api/products", token, map[string]interface{}{"name": "Bad", "price": -1, "category": "c", "stock": 1})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Invalid product data", res.Body["message"])
	assert.NotEmpty(t, res.Body["errors"])

	res = s.do(t, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.Body["data"], 1)

	res = s.do(t, http.MethodDelete, "/api/products/"+id, token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "Product deleted successfully", res.Body["message"])

	res = s.do(t, http.MethodGet, "/api/products/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "Product not found", res.Body["message"])

	res = s.do(t, http.MethodDelete, "/api/products/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestEvents(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@example.com", "alice", "secret1")
	token := s.login(t, "a@example.com", "secret1")

	res := s.do(t, http.MethodGet, "/api/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = s.do(t, http.MethodPost, "/api/products", token, map[string]interface{}{"name": "Widget", "price": 1, "category": "c", "stock": 1})
	require.Equal(t, http.StatusCreated, res.Code)

	res = s.do(t, http.MethodGet, "/api/events?limit=10", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	events := res.Body["data"].([]interface{})
	require.Len(t, events, 2)
	assert.Equal(t, "product.create", events[0].(map[string]interface{})["type"])
	assert.Equal(t, "user.register", events[1].(map[string]interface{})["type"])
}

func TestEventFeed(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@example.com", "alice", "secret1")
	token := s.login(t, "a@example.com", "secret1")

	srv := httptest.NewServer(s.router)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events/ws"

	_, resp, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := gorillaws.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(websocket.Message{Action: websocket.ActionPing}))
	var msg websocket.Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, websocket.ActionPong, msg.Action)

	res := s.do(t, http.MethodPost, "/api/products", token, map[string]interface{}{"name": "Live", "price": 1, "category": "c", "stock": 1})
	require.Equal(t, http.StatusCreated, res.Code)

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, websocket.ActionEvent, msg.Action)
	payload := msg.Payload.(map[string]interface{})
	assert.Equal(t, "product.create", payload["type"])
}
