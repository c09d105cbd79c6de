package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/frahmantamala/securemind/internal"
	"github.com/frahmantamala/securemind/internal/roles"
	"github.com/frahmantamala/securemind/internal/transport"
	"github.com/frahmantamala/securemind/internal/transport/callable"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	CreateUser(ctx context.Context, cmd CreateUserCommand) (*CreateResult, error)
	UpdateUser(ctx context.Context, cmd UpdateUserCommand) (*UpdateResult, error)
	DeleteUser(ctx context.Context, cmd DeleteUserCommand) (*DeleteResult, error)
	SetRole(ctx context.Context, cmd SetRoleCommand) (*SetRoleResult, error)
}

// Handler serves the admin mutations. Callers are authorized by the router
// (HTTP) or the callable server before any handler runs.
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

// CreateUser handles POST /admin/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	cmd, err := req.ValidateHTTP(internal.UserIDFromContext(r.Context()))
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	result, err := h.Service.CreateUser(r.Context(), cmd)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, CreateUserResponse{
		Success: true,
		UID:     result.UID,
		Role:    result.Role,
		Message: "User created successfully",
	})
}

// UpdateUser handles PUT|PATCH /admin/users and /admin/users/{uid}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if uid := chi.URLParam(r, "uid"); uid != "" {
		req.UID = uid
	}
	cmd, err := req.Validate(internal.UserIDFromContext(r.Context()))
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	result, err := h.Service.UpdateUser(r.Context(), cmd)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, UpdateUserResponse{
		Success:       true,
		Message:       "User updated successfully",
		UpdatedFields: result.Changed,
	})
}

// DeleteUser handles DELETE /admin/users and /admin/users/{uid}. The uid is
// read from the body, then the path, then the query string.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	var req DeleteUserRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if strings.TrimSpace(req.UID) == "" {
		req.UID = chi.URLParam(r, "uid")
	}
	if strings.TrimSpace(req.UID) == "" {
		req.UID = r.URL.Query().Get("uid")
	}
	cmd, err := req.Validate(internal.UserIDFromContext(r.Context()))
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	result, err := h.Service.DeleteUser(r.Context(), cmd)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, DeleteUserResponse{
		Success:  true,
		Message:  "User deleted successfully",
		UID:      result.UID,
		Outcome:  result.Outcome,
		Failures: result.Failures,
	})
}

// SetRole handles POST /admin/users/{uid}/role
func (h *Handler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req SetRoleRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if uid := chi.URLParam(r, "uid"); uid != "" {
		req.UID = uid
	}
	result, err := h.setRole(r.Context(), req)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) setRole(ctx context.Context, req SetRoleRequest) (*SetRoleResponse, error) {
	cmd, err := req.Validate(internal.UserIDFromContext(ctx))
	if err != nil {
		return nil, err
	}
	result, err := h.Service.SetRole(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return &SetRoleResponse{OK: true, Role: result.Role}, nil
}

func (h *Handler) CallableFunctions() []callable.Function {
	admin := []roles.Role{roles.Admin}
	return []callable.Function{
		{
			Name:  "adminCreateUser",
			Roles: admin,
			Handle: func(ctx context.Context, data json.RawMessage) (interface{}, error) {
				var req CreateUserRequest
				if err := callable.Decode(data, &req); err != nil {
					return nil, err
				}
				cmd, err := req.ValidateCallable(internal.UserIDFromContext(ctx))
				if err != nil {
					return nil, err
				}
				return h.Service.CreateUser(ctx, cmd)
			},
		},
		{
			Name:  "adminUpdateUser",
			Roles: admin,
			Handle: func(ctx context.Context, data json.RawMessage) (interface{}, error) {
				var req UpdateUserRequest
				if err := callable.Decode(data, &req); err != nil {
					return nil, err
				}
				cmd, err := req.Validate(internal.UserIDFromContext(ctx))
				if err != nil {
					return nil, err
				}
				result, err := h.Service.UpdateUser(ctx, cmd)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{"ok": true, "updatedFields": result.Changed}, nil
			},
		},
		{
			Name:  "adminDeleteUser",
			Roles: admin,
			Handle: func(ctx context.Context, data json.RawMessage) (interface{}, error) {
				var req DeleteUserRequest
				if err := callable.Decode(data, &req); err != nil {
					return nil, err
				}
				cmd, err := req.Validate(internal.UserIDFromContext(ctx))
				if err != nil {
					return nil, err
				}
				result, err := h.Service.DeleteUser(ctx, cmd)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{"ok": true, "outcome": result.Outcome, "failures": result.Failures}, nil
			},
		},
		{
			Name:  "setUserRole",
			Roles: admin,
			Handle: func(ctx context.Context, data json.RawMessage) (interface{}, error) {
				var req SetRoleRequest
				if err := callable.Decode(data, &req); err != nil {
					return nil, err
				}
				return h.setRole(ctx, req)
			},
		},
	}
}
