package callable

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"sync"

	"github.com/frahmantamala/securemind/internal"
	"github.com/frahmantamala/securemind/internal/roles"
	"github.com/frahmantamala/securemind/internal/transport"
	"github.com/frahmantamala/securemind/pkg/logger"
	"github.com/go-chi/chi"
)

const maxRequestBytes = 1 << 20

// HandlerFunc receives the raw "data" member of the request.
type HandlerFunc func(ctx context.Context, data json.RawMessage) (interface{}, error)

// Function is a named remote procedure. A function with Roles requires the
// caller's role claim to be one of them. Authenticated alone requires only a
// verified caller.
type Function struct {
	Name          string
	Authenticated bool
	Roles         []roles.Role
	Handle        HandlerFunc
}

type Registrar interface {
	CallableFunctions() []Function
}

type request struct {
	Data json.RawMessage `json:"data"`
}

type errorBody struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Server dispatches POST /callable/{name} to registered functions.
type Server struct {
	*transport.BaseHandler
	mu        sync.RWMutex
	functions map[string]Function
}

func NewServer(baseHandler *transport.BaseHandler) *Server {
	return &Server{
		BaseHandler: baseHandler,
		functions:   make(map[string]Function),
	}
}

func (s *Server) Register(fns ...Function) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, fn := range fns {
		s.functions[fn.Name] = fn
		s.Logger.Debug("callable registered", "name", fn.Name, "roles", roles.Strings(fn.Roles))
	}
}

func (s *Server) RegisterAll(registrars ...Registrar) {
	for _, r := range registrars {
		s.Register(r.CallableFunctions()...)
	}
}

func (s *Server) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.functions))
	for name := range s.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	s.mu.RLock()
	fn, ok := s.functions[name]
	s.mu.RUnlock()
	if !ok {
		s.writeError(w, r, internal.NewNotFoundError("Function not found: "+name, internal.ErrCodeValidationFailed))
		return
	}

	ctx := r.Context()
	if err := authorize(ctx, fn); err != nil {
		s.writeError(w, r, err)
		return
	}

	var req request
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		s.writeError(w, r, internal.NewValidationError("Invalid request body", internal.ErrCodeValidationFailed))
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			s.writeError(w, r, internal.NewValidationError("Request body must be {\"data\": ...}", internal.ErrCodeValidationFailed))
			return
		}
	}
	if len(req.Data) == 0 {
		req.Data = json.RawMessage("null")
	}

	ctx = logger.With(ctx, "callable", name)
	result, err := fn.Handle(ctx, req.Data)
	if err != nil {
		s.writeError(w, r.WithContext(ctx), err)
		return
	}
	s.WriteJSON(w, http.StatusOK, map[string]interface{}{"result": result})
}

func authorize(ctx context.Context, fn Function) error {
	if !fn.Authenticated && len(fn.Roles) == 0 {
		return nil
	}
	actor, ok := internal.ActorFromContext(ctx)
	if !ok {
		return internal.ErrMissingToken
	}
	if len(fn.Roles) == 0 {
		return nil
	}
	role, valid := roles.FromClaim(actor.Role)
	if valid {
		for _, allowed := range fn.Roles {
			if role == allowed {
				return nil
			}
		}
	}
	if len(fn.Roles) == 1 && fn.Roles[0] == roles.Admin {
		return internal.ErrAdminOnly
	}
	return internal.ErrInsufficientRole
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := internal.AsAppError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	lg := logger.From(r.Context())
	if status >= http.StatusInternalServerError {
		lg.ErrorContext(r.Context(), "callable failed", "error", appErr.GetDetailedMessage())
	} else {
		lg.WarnContext(r.Context(), "callable rejected", "status", appErr.CallableStatus(), "message", appErr.Message)
	}

	s.WriteJSON(w, status, map[string]interface{}{
		"error": errorBody{
			Status:  appErr.CallableStatus(),
			Message: appErr.GetDetailedMessage(),
			Details: appErr.Details,
		},
	})
}

// Decode unmarshals data into dst. A null payload leaves dst untouched.
func Decode(data json.RawMessage, dst interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return internal.NewValidationError("Invalid data payload", internal.ErrCodeValidationFailed).WithCause(err)
	}
	return nil
}
