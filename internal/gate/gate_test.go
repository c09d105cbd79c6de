package gate_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/frahmantamala/securemind/internal"
	"github.com/frahmantamala/securemind/internal/gate"
	"github.com/frahmantamala/securemind/internal/identity"
	"github.com/frahmantamala/securemind/internal/roles"
	"github.com/frahmantamala/securemind/internal/testutil"
	"github.com/frahmantamala/securemind/internal/transport"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestGate(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Gate Suite")
}

type fakeClaims struct {
	claims  map[string]map[string]any
	err     error
	calls   atomic.Int32
	release chan struct{}
}

func (f *fakeClaims) GetUser(ctx context.Context, uid string) (*identity.Account, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.claims[uid]
	if !ok {
		return nil, &identity.Error{Code: identity.CodeUserNotFound, Message: "no user"}
	}
	return &identity.Account{UID: uid, CustomClaims: c}, nil
}

type fakeProfiles struct {
	roles map[string]roles.Role
	err   error
}

func (f *fakeProfiles) ProfileRole(ctx context.Context, uid string) (roles.Role, bool, error) {
	if f.err != nil {
		return roles.Role{}, false, f.err
	}
	r, ok := f.roles[uid]
	return r, ok, nil
}

var _ = Describe("Gate", func() {
	var (
		ctx      context.Context
		claims   *fakeClaims
		profiles *fakeProfiles
		g        *gate.Gate
	)

	BeforeEach(func() {
		ctx = context.Background()
		claims = &fakeClaims{claims: map[string]map[string]any{
			"u-sec":    {"role": "security"},
			"u-none":   {},
			"u-legacy": {"role": "Security"},
		}}
		profiles = &fakeProfiles{roles: map[string]roles.Role{
			"u-none":   roles.Trainer,
			"u-legacy": roles.Accounting,
		}}
		g = gate.New(claims, profiles, testutil.Logger())
	})

	It("sends visitors without an identity to login", func() {
		d := g.Evaluate(ctx, "", gate.Requirement{Role: roles.Admin})
		Expect(d.State).To(Equal(gate.StateRedirected))
		Expect(d.Redirect).To(Equal("/login"))
	})

	It("grants a matching claim", func() {
		d := g.Evaluate(ctx, "u-sec", gate.Requirement{Role: roles.Security})
		Expect(d.State).To(Equal(gate.StateGranted))
		Expect(d.Source).To(Equal(gate.SourceClaim))
	})

	It("redirects a mismatch to the caller's own dashboard", func() {
		d := g.Evaluate(ctx, "u-sec", gate.Requirement{Role: roles.Admin})
		Expect(d.State).To(Equal(gate.StateRedirected))
		Expect(d.Redirect).To(Equal("/dashboard/security"))
	})

	It("falls back to the profile when the claim is missing or not exact", func() {
		d := g.Evaluate(ctx, "u-none", gate.Requirement{Role: roles.Trainer})
		Expect(d.State).To(Equal(gate.StateGranted))
		Expect(d.Source).To(Equal(gate.SourceProfile))

		d = g.Evaluate(ctx, "u-legacy", gate.Requirement{Any: true})
		Expect(d.Role).To(Equal(roles.Accounting))
	})

	It("falls back to the profile when the claim lookup fails", func() {
		claims.err = errors.New("identity provider down")
		d := g.Evaluate(ctx, "u-legacy", gate.Requirement{Role: roles.Accounting})
		Expect(d.State).To(Equal(gate.StateGranted))
	})

	It("sends users without any role home", func() {
		d := g.Evaluate(ctx, "u-ghost", gate.Requirement{Any: true})
		Expect(d.State).To(Equal(gate.StateRedirected))
		Expect(d.Redirect).To(Equal("/"))
		Expect(d.Source).To(Equal(gate.SourceNone))
	})

	It("collapses concurrent checks for one uid into a single claim read", func() {
		claims.release = make(chan struct{})
		var wg sync.WaitGroup
		results := make([]gate.Decision, 5)
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = g.Evaluate(ctx, "u-sec", gate.Requirement{Role: roles.Security})
			}()
		}

		Eventually(claims.calls.Load).Should(Equal(int32(1)))
		Consistently(claims.calls.Load, 50*time.Millisecond).Should(Equal(int32(1)))
		close(claims.release)
		wg.Wait()

		for _, d := range results {
			Expect(d.State).To(Equal(gate.StateGranted))
		}
		Expect(claims.calls.Load()).To(Equal(int32(1)))
	})

	It("answers waiting callers even when the first caller goes away", func() {
		claims.release = make(chan struct{})
		firstCtx, cancelFirst := context.WithCancel(ctx)
		first := make(chan gate.Decision, 1)
		go func() {
			first <- g.Evaluate(firstCtx, "u-sec", gate.Requirement{Role: roles.Security})
		}()
		Eventually(claims.calls.Load).Should(Equal(int32(1)))

		second := make(chan gate.Decision, 1)
		go func() {
			second <- g.Evaluate(ctx, "u-sec", gate.Requirement{Role: roles.Security})
		}()
		Consistently(claims.calls.Load, 50*time.Millisecond).Should(Equal(int32(1)))

		cancelFirst()
		close(claims.release)

		var d gate.Decision
		Eventually(second).Should(Receive(&d))
		Expect(d.State).To(Equal(gate.StateGranted))
		Expect(d.Source).To(Equal(gate.SourceClaim))
		Eventually(first).Should(Receive())
		Expect(claims.calls.Load()).To(Equal(int32(1)))
	})
})

var _ = Describe("Guard", func() {
	It("starts checking and follows identity changes", func() {
		claims := &fakeClaims{claims: map[string]map[string]any{
			"u-admin": {"role": "admin"},
			"u-sec":   {"role": "security"},
		}}
		g := gate.New(claims, &fakeProfiles{}, testutil.Logger())
		guard := gate.NewGuard(g, gate.Requirement{Role: roles.Admin})
		ctx := context.Background()

		Expect(guard.Decision().State).To(Equal(gate.StateChecking))

		Expect(guard.Observe(ctx, "u-admin").State).To(Equal(gate.StateGranted))
		Expect(guard.Observe(ctx, "u-sec").Redirect).To(Equal("/dashboard/security"))
		Expect(guard.Observe(ctx, "").Redirect).To(Equal("/login"))
		Expect(guard.Decision().State).To(Equal(gate.StateRedirected))
	})
})

var _ = Describe("Handler", func() {
	var handler *gate.Handler

	BeforeEach(func() {
		claims := &fakeClaims{claims: map[string]map[string]any{"u-sec": {"role": "security"}}}
		handler = gate.NewHandler(transport.NewBaseHandler(testutil.Logger()), gate.New(claims, &fakeProfiles{}, testutil.Logger()))
	})

	check := func(query string, actor *internal.Actor) (*httptest.ResponseRecorder, map[string]interface{}) {
		req := httptest.NewRequest(http.MethodGet, "/session/gate"+query, nil)
		if actor != nil {
			req = req.WithContext(internal.ContextWithActor(req.Context(), *actor))
		}
		rec := httptest.NewRecorder()
		handler.Check(rec, req)
		var body map[string]interface{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return rec, body
	}

	It("decides for the bearer of the request", func() {
		rec, body := check("?role=Security", &internal.Actor{UserID: "u-sec", Role: "security"})
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(body["state"]).To(Equal("granted"))
	})

	It("redirects anonymous callers to login", func() {
		_, body := check("?role=any", nil)
		Expect(body["redirect"]).To(Equal("/login"))
	})

	It("rejects an unknown role", func() {
		rec, _ := check("?role=wizard", nil)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})
})
