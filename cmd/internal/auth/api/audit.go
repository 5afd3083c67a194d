package api

import (
	"context"
	"encoding/json"
	"net"
	"strings"
)

func (h *Handler) auditLoginFailed(ctx context.Context, accountID *string, ip net.IP, ua, identifier, reason string) {
	h.insertAudit(ctx, "auth.login.failed", accountID, ip, ua, map[string]any{
		"identifier": identifier,
		"reason":     reason,
	})
}

func (h *Handler) auditLoginSuccess(ctx context.Context, accountID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.login.success", &accountID, ip, ua, nil)
}

func (h *Handler) auditSignup(ctx context.Context, accountID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.signup", &accountID, ip, ua, nil)
}

func (h *Handler) auditRefreshSuccess(ctx context.Context, accountID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.refresh.success", &accountID, ip, ua, nil)
}

func (h *Handler) auditRefreshReuse(ctx context.Context, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.refresh.reuse_detected", nil, ip, ua, nil)
}

// auditLogout takes a pointer because a refresh-secret logout may not know
// which account it ended.
func (h *Handler) auditLogout(ctx context.Context, accountID *string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.logout", accountID, ip, ua, nil)
}

func (h *Handler) auditLogoutAll(ctx context.Context, accountID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.logout_all", &accountID, ip, ua, nil)
}

func (h *Handler) auditPasswordChanged(ctx context.Context, accountID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.password.changed", &accountID, ip, ua, nil)
}

func (h *Handler) auditAccountDeleted(ctx context.Context, accountID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.account.deleted", &accountID, ip, ua, nil)
}

// insertAudit writes one audit row; best-effort, never fails the request.
func (h *Handler) insertAudit(ctx context.Context, action string, accountID *string, ip net.IP, ua string, meta map[string]any) {
	if h.pool == nil {
		return
	}

	var ipVal any
	if ip != nil {
		ipVal = ip.String()
	}

	var metaVal *string
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			s := string(b)
			metaVal = &s
		}
	}

	_, err := h.pool.Exec(ctx, `
		INSERT INTO agora.audit_log (
			account_id, action, created_at, ip, user_agent, meta
		) VALUES ($1, $2, now(), $3, $4, $5::jsonb)
	`, accountID, action, ipVal, trimOrNil(ua), metaVal)
	if err != nil {
		h.log.Error("audit insert failed", "err", err, "action", action)
	}
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}
