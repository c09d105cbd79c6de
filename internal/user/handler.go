package user

import (
	"context"
	"net/http"

	"github.com/frahmantamala/securemind/internal"
	"github.com/frahmantamala/securemind/internal/transport"
)

type ServiceAPI interface {
	GetProfile(ctx context.Context, uid string) (*Profile, error)
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

// GetCurrentUser handles GET /users/me
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, r, internal.ErrMissingToken)
		return
	}

	p, err := h.Service.GetProfile(r.Context(), actor.UserID)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, NewProfileResponse(p))
}
