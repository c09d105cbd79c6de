package gate

import (
	"context"
	"net/http"
	"strings"

	"github.com/frahmantamala/securemind/internal"
	"github.com/frahmantamala/securemind/internal/core/common/validation"
	"github.com/frahmantamala/securemind/internal/roles"
	"github.com/frahmantamala/securemind/internal/transport"
)

type Evaluator interface {
	Evaluate(ctx context.Context, uid string, req Requirement) Decision
}

type Handler struct {
	*transport.BaseHandler
	Gate Evaluator
}

func NewHandler(baseHandler *transport.BaseHandler, gate Evaluator) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Gate:        gate,
	}
}

// Check handles GET /session/gate?role=<role|any>
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequirement(r.URL.Query().Get("role"))
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	decision := h.Gate.Evaluate(r.Context(), internal.UserIDFromContext(r.Context()), req)
	h.WriteJSON(w, http.StatusOK, decision)
}

func parseRequirement(raw string) (Requirement, error) {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "any") {
		return Requirement{Any: true}, nil
	}

	v := validation.NewValidator()
	v.Field("role", raw).Required().Role()
	if err := v.Validate(); err != nil {
		return Requirement{}, err
	}
	role, _ := roles.Parse(raw)
	return Requirement{Role: role}, nil
}
