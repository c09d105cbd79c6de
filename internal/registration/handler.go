package registration

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/frahmantamala/securemind/internal"
	"github.com/frahmantamala/securemind/internal/transport"
	"github.com/frahmantamala/securemind/internal/transport/callable"
)

type ServiceAPI interface {
	CompleteRegistration(ctx context.Context, cmd CompleteCommand) (*CompleteResult, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

type CompleteRequest struct {
	EmployeeID string `json:"employeeId"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
}

// Complete handles POST /registration/complete
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	result, err := h.complete(r.Context(), req)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) complete(ctx context.Context, req CompleteRequest) (*CompleteResult, error) {
	actor, ok := internal.ActorFromContext(ctx)
	if !ok {
		return nil, internal.ErrMissingToken
	}
	return h.Service.CompleteRegistration(ctx, CompleteCommand{
		UID:        actor.UserID,
		Email:      actor.Email,
		EmployeeID: req.EmployeeID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
	})
}

func (h *Handler) CallableFunctions() []callable.Function {
	return []callable.Function{
		{
			Name:          "completeRegistration",
			Authenticated: true,
			Handle: func(ctx context.Context, data json.RawMessage) (interface{}, error) {
				var req CompleteRequest
				if err := callable.Decode(data, &req); err != nil {
					return nil, err
				}
				return h.complete(ctx, req)
			},
		},
	}
}
