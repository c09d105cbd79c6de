package auth

import (
	"context"
	"net/http"

	"github.com/frahmantamala/securemind/internal"
	"github.com/frahmantamala/securemind/internal/roles"
	"github.com/frahmantamala/securemind/internal/transport"
	"github.com/frahmantamala/securemind/pkg/logger"
)

type ServiceAPI interface {
	AuthService
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     svc,
	}
}

// Signup handles POST /auth/signup
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var dto SignupDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	tokens, err := h.Service.Signup(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, tokens)
}

// Login handles POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	tokens, err := h.Service.Authenticate(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, tokens)
}

// RefreshToken handles POST /auth/refresh
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var dto RefreshTokenDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	tokens, err := h.Service.RefreshTokens(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, tokens)
}

// AuthMiddleware requires a valid bearer token and puts the caller on the context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := h.Service.VerifyBearer(r.Context(), h.ExtractTokenFromHeader(r))
		if err != nil {
			h.WriteAppError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withActor(r, actor)))
	})
}

// OptionalAuthMiddleware adds the caller when a valid bearer token is present
// and lets the request through either way.
func (h *Handler) OptionalAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		actor, err := h.Service.VerifyBearer(r.Context(), token)
		if err != nil {
			logger.From(r.Context()).DebugContext(r.Context(), "ignoring invalid bearer token", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(withActor(r, actor)))
	})
}

// RequireRole admits callers whose role claim is exactly one of allowed.
func (h *Handler) RequireRole(allowed ...roles.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := internal.ActorFromContext(r.Context())
			if !ok {
				h.WriteAppError(w, r, internal.ErrMissingToken)
				return
			}
			if role, valid := roles.FromClaim(actor.Role); valid {
				for _, a := range allowed {
					if role == a {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			logger.From(r.Context()).WarnContext(r.Context(), "access denied",
				"uid", actor.UserID, "role", actor.Role, "required", roles.Strings(allowed))
			if len(allowed) == 1 && allowed[0] == roles.Admin {
				h.WriteAppError(w, r, internal.ErrAdminOnly)
				return
			}
			h.WriteAppError(w, r, internal.ErrInsufficientRole)
		})
	}
}

func withActor(r *http.Request, actor internal.Actor) context.Context {
	ctx := internal.ContextWithActor(r.Context(), actor)
	return logger.With(ctx, "uid", actor.UserID)
}
