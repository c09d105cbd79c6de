package notification

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/frahmantamala/securemind/internal"
	"github.com/frahmantamala/securemind/internal/roles"
	"github.com/frahmantamala/securemind/internal/transport"
	"github.com/frahmantamala/securemind/internal/transport/callable"
)

type ServiceAPI interface {
	Broadcast(ctx context.Context, req Broadcast) (int, error)
	PublishFact(ctx context.Context, cmd PublishFactCommand) (*PublishFactResponse, error)
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

// BroadcastFact handles POST /notifications/facts/broadcast
func (h *Handler) BroadcastFact(w http.ResponseWriter, r *http.Request) {
	var req FactBroadcastRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	count, err := h.broadcastFact(r.Context(), req)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, CountResponse{Count: count})
}

// BroadcastPolicy handles POST /notifications/policies/broadcast
func (h *Handler) BroadcastPolicy(w http.ResponseWriter, r *http.Request) {
	var req PolicyBroadcastRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	count, err := h.broadcastPolicy(r.Context(), req)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, CountResponse{Count: count})
}

// PublishFact handles POST /facts
func (h *Handler) PublishFact(w http.ResponseWriter, r *http.Request) {
	var req PublishFactRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	resp, err := h.publishFact(r.Context(), req)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) broadcastFact(ctx context.Context, req FactBroadcastRequest) (int, error) {
	b, err := req.Validate()
	if err != nil {
		return 0, err
	}
	return h.Service.Broadcast(ctx, b)
}

func (h *Handler) broadcastPolicy(ctx context.Context, req PolicyBroadcastRequest) (int, error) {
	b, err := req.Validate()
	if err != nil {
		return 0, err
	}
	return h.Service.Broadcast(ctx, b)
}

func (h *Handler) publishFact(ctx context.Context, req PublishFactRequest) (*PublishFactResponse, error) {
	cmd, err := req.Validate(internal.UserIDFromContext(ctx))
	if err != nil {
		return nil, err
	}
	return h.Service.PublishFact(ctx, cmd)
}

func (h *Handler) CallableFunctions() []callable.Function {
	admin := []roles.Role{roles.Admin}
	return []callable.Function{
		{
			Name:  "broadcastFactNotification",
			Roles: admin,
			Handle: func(ctx context.Context, data json.RawMessage) (interface{}, error) {
				var req FactBroadcastRequest
				if err := callable.Decode(data, &req); err != nil {
					return nil, err
				}
				count, err := h.broadcastFact(ctx, req)
				if err != nil {
					return nil, err
				}
				return CountResponse{Count: count}, nil
			},
		},
		{
			Name:  "broadcastPolicyNotification",
			Roles: admin,
			Handle: func(ctx context.Context, data json.RawMessage) (interface{}, error) {
				var req PolicyBroadcastRequest
				if err := callable.Decode(data, &req); err != nil {
					return nil, err
				}
				count, err := h.broadcastPolicy(ctx, req)
				if err != nil {
					return nil, err
				}
				return CountResponse{Count: count}, nil
			},
		},
		{
			Name:  "publishFact",
			Roles: []roles.Role{roles.Admin, roles.Security},
			Handle: func(ctx context.Context, data json.RawMessage) (interface{}, error) {
				var req PublishFactRequest
				if err := callable.Decode(data, &req); err != nil {
					return nil, err
				}
				return h.publishFact(ctx, req)
			},
		},
	}
}
