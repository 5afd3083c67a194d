package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"agora/cmd/internal/accounts"
	"agora/cmd/internal/auth/authn"
	"agora/cmd/internal/auth/epoch"
	"agora/cmd/internal/auth/jwt"
	"agora/cmd/internal/auth/refresh"
	"agora/cmd/security/token"
)

type testEnv struct {
	srv    *httptest.Server
	client *http.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	codec, err := jwt.NewCodec(jwt.Config{
		Secret: []byte("0123456789abcdef0123456789abcdef"),
		Issuer: "agora-test",
	})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	epochs := epoch.NewMemoryStore()
	ref := refresh.NewService(refresh.DefaultConfig(), refresh.NewMemoryStore(), token.Hasher{}, nil)

	cfg := LoadConfigFromEnv()
	cfg.RefreshCookieEnabled = false // tokens in JSON keeps assertions simple
	cfg.MinPasswordLength = 10

	h, err := NewHandler(nil, cfg, nil, accounts.NewMemoryStore(), ref, epochs, codec)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)
	auth := authn.New(codec, epochs, nil)

	srv := httptest.NewServer(auth.Middleware(mux))
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, client: srv.Client()}
}

func (e *testEnv) do(t *testing.T, method, path, bearer string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (e *testEnv) register(t *testing.T, email, pass string) {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    email,
		"password": pass,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: status %d, body %v", resp.StatusCode, body)
	}
}

// login returns (accessToken, refreshSecret).
func (e *testEnv) login(t *testing.T, email, pass string) (string, string) {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": pass,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d, body %v", resp.StatusCode, body)
	}
	tokens := body["tokens"].(map[string]any)
	return tokens["access_token"].(string), tokens["refresh_token"].(string)
}

func TestRegisterValidation(t *testing.T) {
	e := newTestEnv(t)

	resp, _ := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "no-at-sign", "password": "long-enough-password",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad email: status %d", resp.StatusCode)
	}

	resp, _ = e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "a@example.com", "password": "short",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("short password: status %d", resp.StatusCode)
	}

	e.register(t, "a@example.com", "correct horse battery")
	resp, _ = e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "A@Example.com", "password": "correct horse battery",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate email: status %d", resp.StatusCode)
	}
}

func TestLoginAndMe(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice@example.com", "correct horse battery")

	access, _ := e.login(t, "alice@example.com", "correct horse battery")

	resp, body := e.do(t, http.MethodGet, "/me", access, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: status %d, body %v", resp.StatusCode, body)
	}
	acct := body["account"].(map[string]any)
	if acct["email"] != "alice@example.com" {
		t.Fatalf("me email %v", acct["email"])
	}

	// Wrong password and unknown email give the same answer.
	for _, creds := range []map[string]string{
		{"email": "alice@example.com", "password": "wrong password here"},
		{"email": "nobody@example.com", "password": "correct horse battery"},
	} {
		resp, body := e.do(t, http.MethodPost, "/auth/login", "", creds)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status %d, want 401", resp.StatusCode)
		}
		errObj := body["error"].(map[string]any)
		if errObj["code"] != "invalid_credentials" {
			t.Fatalf("code %v", errObj["code"])
		}
	}

	// /me without a token.
	resp, _ = e.do(t, http.MethodGet, "/me", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous me: status %d", resp.StatusCode)
	}
}

func TestRefreshRotationAndUniformRejection(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "bob@example.com", "correct horse battery")
	_, refreshSecret := e.login(t, "bob@example.com", "correct horse battery")

	// First rotation succeeds.
	resp, body := e.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refresh_token": refreshSecret,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: status %d, body %v", resp.StatusCode, body)
	}
	tokens := body["tokens"].(map[string]any)
	next := tokens["refresh_token"].(string)
	if next == refreshSecret {
		t.Fatal("rotation must hand out a fresh secret")
	}
	if tokens["access_token"].(string) == "" {
		t.Fatal("rotation must mint an access token")
	}

	// The consumed secret and pure garbage get byte-identical rejections.
	var bodies []map[string]any
	for _, secret := range []string{refreshSecret, "complete-garbage"} {
		resp, body := e.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{
			"refresh_token": secret,
		})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status %d, want 401", resp.StatusCode)
		}
		bodies = append(bodies, body)
	}
	a, _ := json.Marshal(bodies[0])
	b, _ := json.Marshal(bodies[1])
	if !bytes.Equal(a, b) {
		t.Fatalf("reuse and garbage responses differ: %s vs %s", a, b)
	}

	// The reuse signal does not take down the legitimate successor: the
	// session that won the rotation keeps working.
	resp, body = e.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refresh_token": next,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("successor after reuse: status %d, body %v", resp.StatusCode, body)
	}
}

func TestPasswordChangeInvalidatesEverything(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "carol@example.com", "correct horse battery")

	// Two devices.
	accessA, _ := e.login(t, "carol@example.com", "correct horse battery")
	accessB, refreshB := e.login(t, "carol@example.com", "correct horse battery")

	resp, body := e.do(t, http.MethodPost, "/auth/password", accessA, map[string]string{
		"current_password": "correct horse battery",
		"new_password":     "even more correct horse",
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("password change: status %d, body %v", resp.StatusCode, body)
	}

	// Device B's access token is cryptographically fine but epoch-stale.
	resp, _ = e.do(t, http.MethodGet, "/me", accessB, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("stale access token: status %d, want 401", resp.StatusCode)
	}

	// Device B's refresh credential is revoked.
	resp, _ = e.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refresh_token": refreshB,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked refresh: status %d, want 401", resp.StatusCode)
	}

	// Old password no longer works; the new one does.
	resp, _ = e.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "carol@example.com", "password": "correct horse battery",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("old password: status %d, want 401", resp.StatusCode)
	}
	access, _ := e.login(t, "carol@example.com", "even more correct horse")
	if resp, _ := e.do(t, http.MethodGet, "/me", access, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("fresh token after password change: status %d", resp.StatusCode)
	}
}

func TestLogoutAllRetiresAccessTokens(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "dave@example.com", "correct horse battery")
	access, refreshSecret := e.login(t, "dave@example.com", "correct horse battery")

	resp, _ := e.do(t, http.MethodPost, "/auth/logout_all", access, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout_all: status %d", resp.StatusCode)
	}

	// The very token that authorized logout_all is now stale.
	resp, _ = e.do(t, http.MethodGet, "/me", access, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("access after logout_all: status %d, want 401", resp.StatusCode)
	}
	resp, _ = e.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refresh_token": refreshSecret,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after logout_all: status %d, want 401", resp.StatusCode)
	}
}

func TestLogoutWithRefreshSecretAlone(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "grace@example.com", "correct horse battery")
	_, refreshSecret := e.login(t, "grace@example.com", "correct horse battery")

	// No bearer token: an expired access token must not trap a client in a
	// session it can prove it owns.
	resp, _ := e.do(t, http.MethodPost, "/auth/logout", "", map[string]string{
		"refresh_token": refreshSecret,
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout with secret only: status %d, want 204", resp.StatusCode)
	}

	// The credential is gone.
	resp, _ = e.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refresh_token": refreshSecret,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: status %d, want 401", resp.StatusCode)
	}

	// With neither a secret nor an identity there is nothing to authorize.
	resp, _ = e.do(t, http.MethodPost, "/auth/logout", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous logout: status %d, want 401", resp.StatusCode)
	}
}

func TestSessionsListing(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "erin@example.com", "correct horse battery")
	access, _ := e.login(t, "erin@example.com", "correct horse battery")
	_, _ = e.login(t, "erin@example.com", "correct horse battery")

	resp, body := e.do(t, http.MethodGet, "/auth/sessions", access, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sessions: status %d, body %v", resp.StatusCode, body)
	}
	sessions := body["sessions"].([]any)
	if len(sessions) != 2 {
		t.Fatalf("sessions %d, want 2", len(sessions))
	}
}

func TestAccountDelete(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "frank@example.com", "correct horse battery")
	access, refreshSecret := e.login(t, "frank@example.com", "correct horse battery")

	// Wrong password is rejected.
	resp, _ := e.do(t, http.MethodDelete, "/auth/account", access, map[string]string{
		"password": "not the password okay",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password delete: status %d", resp.StatusCode)
	}

	resp, _ = e.do(t, http.MethodDelete, "/auth/account", access, map[string]string{
		"password": "correct horse battery",
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}

	// Everything about the account is dead.
	resp, _ = e.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "frank@example.com", "password": "correct horse battery",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("login after delete: status %d", resp.StatusCode)
	}
	resp, _ = e.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refresh_token": refreshSecret,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after delete: status %d", resp.StatusCode)
	}
}
