package authn

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"agora/cmd/internal/auth/epoch"
	"agora/cmd/internal/auth/jwt"
)

// Identity is the authenticated principal attached to a request context.
type Identity struct {
	AccountID string
	Roles     []string
	Epoch     int64
}

type ctxKey struct{}

// FromContext returns the request identity, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// WithIdentity attaches an identity to a context. Exported for handler tests.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// Authenticator verifies bearer tokens and enforces the revocation epoch.
type Authenticator struct {
	codec  *jwt.Codec
	epochs epoch.Store
	log    *slog.Logger
}

// New constructs an Authenticator. A nil logger falls back to slog.Default.
func New(codec *jwt.Codec, epochs epoch.Store, log *slog.Logger) *Authenticator {
	if log == nil {
		log = slog.Default()
	}
	return &Authenticator{codec: codec, epochs: epochs, log: log}
}

// Middleware authenticates the request when a bearer token is present and
// valid. Failures never short-circuit the request.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		compact := bearerToken(r)
		if compact == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := a.codec.Decode(compact)
		if err != nil {
			a.log.Debug("access token rejected", slog.String("error", err.Error()))
			next.ServeHTTP(w, r)
			return
		}

		current, err := a.epochs.Current(r.Context(), claims.AccountID())
		if err != nil {
			// Fail closed on lookup errors: no identity, not a guess.
			a.log.Error("epoch lookup failed",
				slog.String("account_id", claims.AccountID()),
				slog.String("error", err.Error()))
			next.ServeHTTP(w, r)
			return
		}
		if claims.Epoch != current {
			a.log.Debug("access token epoch stale",
				slog.String("account_id", claims.AccountID()),
				slog.Int64("token_epoch", claims.Epoch),
				slog.Int64("current_epoch", current))
			next.ServeHTTP(w, r)
			return
		}

		id := Identity{
			AccountID: claims.AccountID(),
			Roles:     claims.Roles,
			Epoch:     claims.Epoch,
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireAuth rejects unauthenticated requests with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthenticated"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
