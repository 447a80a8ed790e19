package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gooji/deployer/pkg/crypto"
)

// BotSecretHeader carries the shared secret on bot-originated requests.
const BotSecretHeader = "X-Bot-Secret-Key"

type authContextKey string

type authInfo struct {
	UserID string
	Actor  string
}

const contextKeyAuth authContextKey = "gooji-auth-info"

type contextSetter interface {
	SetContext(context.Context)
}

// requireAuth ensures the request has a valid bearer token before invoking the handler.
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, _, ok := r.ensureAuth(w, req)
		if !ok {
			return
		}
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// ensureAuth validates the Authorization header and enriches the context.
func (r *Router) ensureAuth(w http.ResponseWriter, req *http.Request) (context.Context, authInfo, bool) {
	token, err := bearerToken(req.Header.Get("Authorization"))
	if err != nil {
		r.logger.Warn("authorization header invalid", "error", err, "path", req.URL.Path)
		writeError(w, http.StatusUnauthorized, "authentication required")
		return req.Context(), authInfo{}, false
	}
	uid, err := r.account.Authorize(req.Context(), token)
	if err != nil {
		r.logger.Warn("token validation failed", "error", err, "path", req.URL.Path)
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return req.Context(), authInfo{}, false
	}
	info := authInfo{UserID: uid, Actor: "user"}
	ctx := context.WithValue(req.Context(), contextKeyAuth, info)
	return ctx, info, true
}

// requireBotSecret admits only requests presenting the configured bot secret.
// An unconfigured secret rejects everything.
func (r *Router) requireBotSecret(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		provided := strings.TrimSpace(req.Header.Get(BotSecretHeader))
		if !crypto.SecretsEqual(r.botSecret, provided) {
			if r.botSecret == "" {
				r.logger.Error("bot secret not configured", "path", req.URL.Path)
			} else {
				r.logger.Warn("bot secret mismatch", "path", req.URL.Path)
			}
			writeError(w, http.StatusForbidden, "Unauthorized")
			return
		}
		ctx := context.WithValue(req.Context(), contextKeyAuth, authInfo{Actor: "bot"})
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// authInfoFromContext extracts auth metadata from context.
func authInfoFromContext(ctx context.Context) (authInfo, bool) {
	value := ctx.Value(contextKeyAuth)
	if value == nil {
		return authInfo{}, false
	}
	info, ok := value.(authInfo)
	return info, ok
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}
