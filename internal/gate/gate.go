package gate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/frahmantamala/securemind/internal/identity"
	"github.com/frahmantamala/securemind/internal/obs"
	"github.com/frahmantamala/securemind/internal/roles"
	"golang.org/x/sync/singleflight"
)

type State string

const (
	StateChecking   State = "checking"
	StateGranted    State = "granted"
	StateRedirected State = "redirected"
)

const (
	SourceClaim   = "claim"
	SourceProfile = "profile"
	SourceNone    = "none"
)

const (
	LoginPath = "/login"
	HomePath  = "/"
)

// ClaimReader reads the current claims of an account.
type ClaimReader interface {
	GetUser(ctx context.Context, uid string) (*identity.Account, error)
}

type ProfileRoleReader interface {
	ProfileRole(ctx context.Context, uid string) (roles.Role, bool, error)
}

// Requirement is the role a page needs. Any accepts every resolved role.
type Requirement struct {
	Role roles.Role
	Any  bool
}

type Decision struct {
	State    State      `json:"state"`
	Redirect string     `json:"redirect,omitempty"`
	Role     roles.Role `json:"role,omitempty"`
	Source   string     `json:"source"`
}

type resolved struct {
	role   roles.Role
	source string
}

type Gate struct {
	claims   ClaimReader
	profiles ProfileRoleReader
	group    singleflight.Group
	logger   *slog.Logger
}

func New(claims ClaimReader, profiles ProfileRoleReader, logger *slog.Logger) *Gate {
	return &Gate{
		claims:   claims,
		profiles: profiles,
		logger:   logger,
	}
}

// Evaluate decides whether uid may see a page guarded by req. An empty uid
// means no signed-in identity.
func (g *Gate) Evaluate(ctx context.Context, uid string, req Requirement) Decision {
	if uid == "" {
		return g.record(Decision{State: StateRedirected, Redirect: LoginPath, Source: SourceNone})
	}

	r := g.resolve(ctx, uid)
	switch {
	case r.role.IsZero():
		return g.record(Decision{State: StateRedirected, Redirect: HomePath, Source: r.source})
	case req.Any || r.role == req.Role:
		return g.record(Decision{State: StateGranted, Role: r.role, Source: r.source})
	default:
		return g.record(Decision{State: StateRedirected, Redirect: r.role.LandingPath(), Role: r.role, Source: r.source})
	}
}

// resolve prefers the claim and falls back to the profile role. Concurrent
// calls for one uid share a single lookup, which outlives any one caller.
func (g *Gate) resolve(ctx context.Context, uid string) resolved {
	ctx = context.WithoutCancel(ctx)
	v, _, _ := g.group.Do(uid, func() (interface{}, error) {
		account, err := g.claims.GetUser(ctx, uid)
		if err != nil {
			g.logger.WarnContext(ctx, "claim lookup failed, falling back to profile", "uid", uid, "error", err)
		} else if role, ok := account.Role(); ok {
			return resolved{role: role, source: SourceClaim}, nil
		}

		role, found, err := g.profiles.ProfileRole(ctx, uid)
		if err != nil {
			g.logger.WarnContext(ctx, "profile role lookup failed", "uid", uid, "error", err)
			return resolved{source: SourceNone}, nil
		}
		if !found {
			return resolved{source: SourceNone}, nil
		}
		return resolved{role: role, source: SourceProfile}, nil
	})
	return v.(resolved)
}

func (g *Gate) record(d Decision) Decision {
	obs.GateDecision(string(d.State), d.Source)
	return d
}

// Guard tracks the decision for one page as the signed-in identity changes.
// It is checking until the first evaluation for the current identity ends.
type Guard struct {
	gate *Gate
	req  Requirement

	mu         sync.Mutex
	generation uint64
	decision   Decision
}

func NewGuard(gate *Gate, req Requirement) *Guard {
	return &Guard{
		gate:     gate,
		req:      req,
		decision: Decision{State: StateChecking},
	}
}

// Observe re-evaluates for uid. A result for an identity that has since been
// replaced by a newer Observe call is discarded.
func (g *Guard) Observe(ctx context.Context, uid string) Decision {
	g.mu.Lock()
	g.generation++
	gen := g.generation
	g.decision = Decision{State: StateChecking}
	g.mu.Unlock()

	d := g.gate.Evaluate(ctx, uid, g.req)

	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.generation {
		return g.decision
	}
	g.decision = d
	return d
}

func (g *Guard) Decision() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decision
}
