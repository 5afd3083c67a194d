package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"agora/cmd/internal/accounts"
	"agora/cmd/internal/auth/authn"
	"agora/cmd/internal/auth/epoch"
	"agora/cmd/internal/auth/jwt"
	"agora/cmd/internal/auth/refresh"
	"agora/cmd/security/password"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Handler wires HTTP auth endpoints to the account, refresh, and epoch
// services. The pool is only used for audit rows and may be nil (memory
// deployments), which disables auditing.
type Handler struct {
	log *slog.Logger
	cfg Config

	pool     *pgxpool.Pool
	accounts accounts.Store
	refresh  *refresh.Service
	epochs   epoch.Store
	codec    *jwt.Codec

	// dummyHash absorbs password verification time for unknown emails.
	dummyHash string

	now func() time.Time
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, pool *pgxpool.Pool, accts accounts.Store, ref *refresh.Service, epochs epoch.Store, codec *jwt.Codec) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if accts == nil || ref == nil || epochs == nil || codec == nil {
		return nil, errors.New("api: missing dependency")
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		pool:     pool,
		accounts: accts,
		refresh:  ref,
		epochs:   epochs,
		codec:    codec,
		now:      func() time.Time { return time.Now().UTC() },
	}

	if hash, err := password.Hash("dummy-password-for-timing-only", password.DefaultParams()); err == nil {
		h.dummyHash = hash
	}

	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/auth/register", h.handleRegister)
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/auth/logout", h.handleLogout)
	mux.HandleFunc("/auth/logout_all", h.handleLogoutAll)
	mux.HandleFunc("/auth/password", h.handlePasswordChange)
	mux.HandleFunc("/auth/account", h.handleAccountDelete)
	mux.HandleFunc("/auth/sessions", h.handleSessions)
	mux.HandleFunc("/me", h.handleMe)
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := readJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		respondError(w, http.StatusBadRequest, "invalid_request", "a valid email is required")
		return
	}
	if len(req.Password) < h.cfg.MinPasswordLength {
		respondError(w, http.StatusBadRequest, "password_too_short", "password does not meet the minimum length")
		return
	}

	hash, err := password.Hash(req.Password, password.DefaultParams())
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooLong) {
			respondError(w, http.StatusBadRequest, "invalid_request", "password is too long")
			return
		}
		h.log.Error("password hash failed", "err", err)
		respondError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	ctx := r.Context()
	acct, err := h.accounts.Create(ctx, accounts.CreateInput{
		Email:        email,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		PasswordHash: hash,
		Now:          h.now(),
	})
	if err != nil {
		switch {
		case errors.Is(err, accounts.ErrConflict):
			respondError(w, http.StatusConflict, "conflict", "email already registered")
		case errors.Is(err, accounts.ErrInvalidInput):
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid input")
		default:
			h.log.Error("account create failed", "err", err)
			respondError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.auditSignup(ctx, acct.ID, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	respondJSON(w, http.StatusCreated, meResponse{Account: toAccountResponse(acct)})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := readJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	ctx := r.Context()
	now := h.now()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := r.UserAgent()
	identifier := accounts.NormalizeEmail(email)

	acct, err := h.accounts.ByEmail(ctx, email)
	if err != nil {
		// Timing resistance: run a verify against a throwaway hash so an
		// unknown email costs the same as a wrong password.
		if h.dummyHash != "" {
			_, _ = password.Verify(h.dummyHash, req.Password)
		}
		loginTotal.WithLabelValues("unknown_email").Inc()
		h.auditLoginFailed(ctx, nil, ip, ua, identifier, "not_found")
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	ok, err := password.Verify(acct.PasswordHash, req.Password)
	if err != nil || !ok {
		loginTotal.WithLabelValues("bad_password").Inc()
		h.auditLoginFailed(ctx, &acct.ID, ip, ua, identifier, "bad_password")
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	tokens, rawRefresh, err := h.issueTokens(ctx, now, acct)
	if err != nil {
		h.log.Error("token issue failed", "err", err)
		respondError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	loginTotal.WithLabelValues("success").Inc()
	h.auditLoginSuccess(ctx, acct.ID, ip, ua)

	if h.cfg.RefreshCookieEnabled {
		h.setRefreshCookie(w, rawRefresh, tokens.RefreshExpiresAt)
		tokens.RefreshToken = ""
	}
	respondJSON(w, http.StatusOK, loginResponse{
		Account: toAccountResponse(acct),
		Tokens:  tokens,
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req refreshRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
	}
	secret := strings.TrimSpace(req.RefreshToken)
	fromCookie := false
	if cookieSecret, ok := h.refreshSecretFromCookie(r); ok && secret == "" {
		secret = cookieSecret
		fromCookie = true
	}
	if secret == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	ctx := r.Context()
	now := h.now()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := r.UserAgent()

	rotated, err := h.refresh.Rotate(ctx, now, secret)
	if err != nil {
		// One external answer for every rejection. The distinction between
		// garbage and reuse lives in the audit log and metrics only.
		switch {
		case errors.Is(err, refresh.ErrReuseDetected):
			h.auditRefreshReuse(ctx, ip, ua)
			h.writeRefreshRejected(w, fromCookie)
		case errors.Is(err, refresh.ErrInvalid):
			h.writeRefreshRejected(w, fromCookie)
		default:
			h.log.Error("refresh rotate failed", "err", err)
			respondError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	acct, err := h.accounts.ByID(ctx, rotated.OwnerID)
	if err != nil {
		// Owner gone (deleted account); the successor credential is useless.
		_ = h.refresh.Revoke(ctx, now, rotated.Secret)
		h.writeRefreshRejected(w, fromCookie)
		return
	}

	tokens, err := h.accessTokenFor(ctx, now, acct)
	if err != nil {
		h.log.Error("access token issue failed", "err", err)
		respondError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	tokens.RefreshToken = rotated.Secret
	tokens.RefreshExpiresAt = rotated.ExpiresAt

	h.auditRefreshSuccess(ctx, acct.ID, ip, ua)

	if fromCookie || h.cfg.RefreshCookieEnabled {
		h.setRefreshCookie(w, rotated.Secret, rotated.ExpiresAt)
		tokens.RefreshToken = ""
	}
	respondJSON(w, http.StatusOK, refreshResponse{Tokens: tokens})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	now := h.now()

	var req refreshRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
	}
	secret := strings.TrimSpace(req.RefreshToken)
	if secret == "" {
		secret, _ = h.refreshSecretFromCookie(r)
	}

	// Possession of the refresh secret authorizes ending its own session,
	// so a client whose access token already expired can still log out.
	id, authed := authn.FromContext(ctx)
	if secret == "" && !authed {
		respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	// Logout is idempotent: an unknown or already revoked secret is fine.
	if secret != "" {
		if err := h.refresh.Revoke(ctx, now, secret); err != nil && !errors.Is(err, refresh.ErrNotFound) {
			h.log.Error("logout revoke failed", "err", err)
			respondError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
	}

	var acctID *string
	if authed {
		acctID = &id.AccountID
	}
	h.auditLogout(ctx, acctID, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	now := h.now()

	if _, err := h.refresh.RevokeAll(ctx, now, id.AccountID); err != nil {
		h.log.Error("logout_all revoke failed", "err", err)
		respondError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	// Bumping the epoch also retires every outstanding access token,
	// including the one that authorized this request.
	if _, err := h.epochs.Bump(ctx, now, id.AccountID); err != nil {
		h.log.Error("epoch bump failed", "err", err)
		respondError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditLogoutAll(ctx, id.AccountID, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePasswordChange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}

	var req passwordChangeRequest
	if err := readJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if len(req.NewPassword) < h.cfg.MinPasswordLength {
		respondError(w, http.StatusBadRequest, "password_too_short", "password does not meet the minimum length")
		return
	}

	ctx := r.Context()
	now := h.now()

	acct, err := h.accounts.ByID(ctx, id.AccountID)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "account not found")
		return
	}
	ok, err = password.Verify(acct.PasswordHash, req.CurrentPassword)
	if err != nil || !ok {
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "current password is incorrect")
		return
	}

	newHash, err := password.Hash(req.NewPassword, password.DefaultParams())
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "unusable password")
		return
	}
	if err := h.accounts.SetPasswordHash(ctx, acct.ID, newHash, now); err != nil {
		h.log.Error("password update failed", "err", err)
		respondError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	// A password change invalidates everything previously issued: refresh
	// credentials by revocation, access tokens by epoch bump.
	if _, err := h.refresh.RevokeAll(ctx, now, acct.ID); err != nil {
		h.log.Error("password change revoke failed", "err", err)
		respondError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if _, err := h.epochs.Bump(ctx, now, acct.ID); err != nil {
		h.log.Error("epoch bump failed", "err", err)
		respondError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditPasswordChanged(ctx, acct.ID, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAccountDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}

	var req accountDeleteRequest
	if err := readJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	now := h.now()

	acct, err := h.accounts.ByID(ctx, id.AccountID)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "account not found")
		return
	}
	ok, err = password.Verify(acct.PasswordHash, req.Password)
	if err != nil || !ok {
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "password is incorrect")
		return
	}

	if _, err := h.refresh.RevokeAll(ctx, now, acct.ID); err != nil {
		h.log.Error("account delete revoke failed", "err", err)
		respondError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if _, err := h.epochs.Bump(ctx, now, acct.ID); err != nil {
		h.log.Error("epoch bump failed", "err", err)
		respondError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if err := h.accounts.Delete(ctx, acct.ID); err != nil {
		h.log.Error("account delete failed", "err", err)
		respondError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditAccountDeleted(ctx, acct.ID, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}

	records, err := h.refresh.Sessions(r.Context(), h.now(), id.AccountID)
	if err != nil {
		h.log.Error("session list failed", "err", err)
		respondError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	out := sessionsResponse{Sessions: make([]sessionResponse, 0, len(records))}
	for _, rec := range records {
		out.Sessions = append(out.Sessions, toSessionResponse(rec))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}

	acct, err := h.accounts.ByID(r.Context(), id.AccountID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			respondError(w, http.StatusUnauthorized, "unauthorized", "account not found")
			return
		}
		h.log.Error("account lookup failed", "err", err)
		respondError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	respondJSON(w, http.StatusOK, meResponse{Account: toAccountResponse(acct)})
}

// ---- helpers ----

func (h *Handler) requireIdentity(w http.ResponseWriter, r *http.Request) (authn.Identity, bool) {
	id, ok := authn.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return authn.Identity{}, false
	}
	return id, true
}

// writeRefreshRejected is the single answer for every failed refresh. It
// also clears the cookie so browsers stop replaying a dead secret.
func (h *Handler) writeRefreshRejected(w http.ResponseWriter, fromCookie bool) {
	if fromCookie {
		h.clearRefreshCookie(w)
	}
	respondError(w, http.StatusUnauthorized, "invalid_refresh", "invalid refresh token")
}

// issueTokens mints the access token and a fresh refresh credential for a
// successful login. Returns the raw refresh secret separately for the cookie
// transport decision.
func (h *Handler) issueTokens(ctx context.Context, now time.Time, acct accounts.Account) (tokenResponse, string, error) {
	tokens, err := h.accessTokenFor(ctx, now, acct)
	if err != nil {
		return tokenResponse{}, "", err
	}

	cred, err := h.refresh.Issue(ctx, now, acct.ID)
	if err != nil {
		return tokenResponse{}, "", err
	}
	tokens.RefreshToken = cred.Secret
	tokens.RefreshExpiresAt = cred.ExpiresAt
	return tokens, cred.Secret, nil
}

func (h *Handler) accessTokenFor(ctx context.Context, now time.Time, acct accounts.Account) (tokenResponse, error) {
	e, err := h.epochs.Current(ctx, acct.ID)
	if err != nil {
		return tokenResponse{}, err
	}
	access, accessExp, err := h.codec.Encode(now, acct.ID, e, acct.Roles)
	if err != nil {
		return tokenResponse{}, err
	}
	return tokenResponse{AccessToken: access, AccessExpiresAt: accessExp}, nil
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
