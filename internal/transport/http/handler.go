package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"attendance-auth/internal/domain"
	"attendance-auth/internal/dto"
	"attendance-auth/internal/netutil"
	"attendance-auth/internal/service"
	"attendance-auth/internal/service/impl"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type handler struct {
	cfg      Config
	auth     service.AuthService
	tokens   service.TokenService
	policies PolicyProvider
}

// ====== Public auth endpoints ======

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.auth.Register(r.Context(), req, clientIP(r), userAgent(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.setSessionCookie(w, res.Token)
	writeJSON(w, http.StatusCreated, res)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	policy, err := h.policies.CurrentPolicy(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req, policy, clientIP(r), userAgent(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if res.Token != "" {
		h.setSessionCookie(w, res.Token)
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) verifySecondFactor(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifySecondFactorRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.auth.VerifySecondFactor(r.Context(), req, clientIP(r), userAgent(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.setSessionCookie(w, res.Token)
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.auth.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.auth.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password reset successful"})
}

// ====== Authenticated 2FA management ======

func (h *handler) setupTwoFactor(w http.ResponseWriter, r *http.Request) {
	res, err := h.auth.SetupTwoFactor(r.Context(), sessionAccountID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) confirmTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req dto.ConfirmSetupRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.auth.ConfirmTwoFactor(r.Context(), sessionAccountID(r.Context()), req.Code); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": true})
}

func (h *handler) twoFactorStatus(w http.ResponseWriter, r *http.Request) {
	res, err := h.auth.TwoFactorStatus(r.Context(), sessionAccountID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) disableTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req dto.PasswordGatedRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.auth.DisableTwoFactor(r.Context(), sessionAccountID(r.Context()), req.Password); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
}

func (h *handler) regenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	var req dto.PasswordGatedRequest
	if !h.decode(w, r, &req) {
		return
	}
	codes, err := h.auth.RegenerateBackupCodes(r.Context(), sessionAccountID(r.Context()), req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.RegenerateBackupCodesResponse{BackupCodes: codes})
}

// ====== Session middleware ======

type sessionCtxKey string

const ctxKeyAccountID sessionCtxKey = "session_account_id"

func (h *handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.sessionToken(r)
		if token == "" {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		accountID, _, err := h.tokens.VerifySession(token)
		if err != nil {
			http.Error(w, "invalid or expired session", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyAccountID, accountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *handler) sessionToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
		return auth[7:]
	}
	if c, err := r.Cookie(h.cfg.CookieName); err == nil {
		return c.Value
	}
	return ""
}

func sessionAccountID(ctx context.Context) domain.AccountID {
	id, _ := ctx.Value(ctxKeyAccountID).(domain.AccountID)
	return id
}

// ====== Helpers ======

func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError maps the domain taxonomy onto HTTP statuses. Anything outside
// the taxonomy is a persistence or internal failure and stays generic.
func (h *handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrInvalidSecondFactor),
		errors.Is(err, domain.ErrInvalidOrExpiredToken):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, domain.ErrAccountLocked):
		http.Error(w, "account temporarily locked, try again later", http.StatusForbidden)
	case errors.Is(err, domain.ErrSetupNotConfirmed),
		errors.Is(err, domain.ErrTwoFactorNotSetUp),
		errors.Is(err, domain.ErrTwoFactorNotEnabled),
		errors.Is(err, domain.ErrSecondFactorRequired),
		errors.Is(err, domain.ErrInvalidResetToken),
		errors.Is(err, impl.ErrEmptyCredential),
		errors.Is(err, impl.ErrPasswordLength),
		errors.Is(err, impl.ErrInvalidRole):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrEmailTaken):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("request failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}

func userAgent(r *http.Request) string {
	return netutil.TruncateUserAgent(r.UserAgent())
}
