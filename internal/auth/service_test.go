package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/frahmantamala/securemind/internal"
	"github.com/frahmantamala/securemind/internal/core/events"
	"github.com/frahmantamala/securemind/internal/identity"
	"github.com/frahmantamala/securemind/internal/roles"
	"github.com/frahmantamala/securemind/internal/testutil"
	"github.com/frahmantamala/securemind/internal/transport"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func TestAuth(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Auth Module Suite")
}

// Mock AccountProvider for testing
type mockAccountProvider struct {
	passwords map[string]string // email -> password
	uids      map[string]string // email -> uid
	tokens    map[string]*identity.Token
	createErr error
	signInErr error
	verifyErr error
	signIns   int
}

func newMockAccountProvider() *mockAccountProvider {
	return &mockAccountProvider{
		passwords: map[string]string{"admin@example.com": "correct_password"},
		uids:      map[string]string{"admin@example.com": "uid-admin"},
		tokens: map[string]*identity.Token{
			"admin-token": {UID: "uid-admin", Email: "admin@example.com", Claims: map[string]any{"role": "admin"}},
			"sec-token":   {UID: "uid-sec", Email: "sec@example.com", Claims: map[string]any{"role": "security"}},
			"odd-token":   {UID: "uid-odd", Email: "odd@example.com", Claims: map[string]any{"role": "Admin"}},
		},
	}
}

func (m *mockAccountProvider) CreateUser(ctx context.Context, params identity.CreateParams) (*identity.Account, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	email := strings.ToLower(strings.TrimSpace(params.Email))
	m.passwords[email] = params.Password
	m.uids[email] = "uid-" + strings.Split(email, "@")[0]
	return &identity.Account{UID: m.uids[email], Email: email}, nil
}

func (m *mockAccountProvider) SignIn(ctx context.Context, email, password string) (*identity.Tokens, error) {
	m.signIns++
	if m.signInErr != nil {
		return nil, m.signInErr
	}
	if m.passwords[email] != password {
		return nil, &identity.Error{Code: identity.CodeWrongPassword, Message: "wrong password"}
	}
	return &identity.Tokens{IDToken: "id-" + m.uids[email], RefreshToken: "refresh-" + m.uids[email], UID: m.uids[email]}, nil
}

func (m *mockAccountProvider) Refresh(ctx context.Context, refreshToken string) (*identity.Tokens, error) {
	if refreshToken == "revoked" {
		return nil, &identity.Error{Code: identity.CodeTokenRevoked, Message: "revoked"}
	}
	return &identity.Tokens{IDToken: "id-new", RefreshToken: "refresh-new"}, nil
}

func (m *mockAccountProvider) VerifyIDToken(ctx context.Context, idToken string) (*identity.Token, error) {
	if m.verifyErr != nil {
		return nil, m.verifyErr
	}
	if t, ok := m.tokens[idToken]; ok {
		return t, nil
	}
	return nil, &identity.Error{Code: identity.CodeInvalidToken, Message: "bad token"}
}

type recordingPublisher struct {
	published []events.Event
	err       error
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	return p.PublishSync(ctx, event)
}

func (p *recordingPublisher) PublishSync(ctx context.Context, event events.Event) error {
	p.published = append(p.published, event)
	return p.err
}

var _ = ginkgo.Describe("AuthService", func() {
	var (
		ctx       context.Context
		service   *Service
		accounts  *mockAccountProvider
		publisher *recordingPublisher
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		accounts = newMockAccountProvider()
		publisher = &recordingPublisher{}
		service = NewService(accounts, publisher, testutil.Logger())
	})

	ginkgo.Describe("Signup", func() {
		ginkgo.It("should announce the new account before signing it in", func() {
			// When
			tokens, err := service.Signup(ctx, SignupDTO{Email: "new@example.com", Password: "Passw0rd!"})

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(tokens.UID).To(gomega.Equal("uid-new"))
			gomega.Expect(publisher.published).To(gomega.HaveLen(1))
			signedUp, ok := publisher.published[0].(*events.UserSignedUpEvent)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(signedUp.UID).To(gomega.Equal("uid-new"))
		})

		ginkgo.It("should still return tokens when a first sign-in handler fails", func() {
			// Given
			publisher.err = errors.New("claim write failed")

			// When
			tokens, err := service.Signup(ctx, SignupDTO{Email: "new@example.com", Password: "Passw0rd!"})

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(tokens.IDToken).ToNot(gomega.BeEmpty())
		})

		ginkgo.Context("when the input is invalid", func() {
			ginkgo.It("should reject a malformed email without creating anything", func() {
				_, err := service.Signup(ctx, SignupDTO{Email: "nope", Password: "Passw0rd!"})

				appErr, ok := internal.IsAppError(err)
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(appErr.Type).To(gomega.Equal(internal.ErrorTypeInvalidArgument))
				gomega.Expect(publisher.published).To(gomega.BeEmpty())
			})

			ginkgo.It("should map a taken email to conflict", func() {
				accounts.createErr = &identity.Error{Code: identity.CodeEmailExists, Message: "taken"}

				_, err := service.Signup(ctx, SignupDTO{Email: "admin@example.com", Password: "Passw0rd!"})

				appErr, ok := internal.IsAppError(err)
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(appErr.StatusCode).To(gomega.Equal(http.StatusConflict))
				gomega.Expect(appErr.Message).To(gomega.Equal("Email already exists"))
			})
		})
	})

	ginkgo.Describe("Authenticate", func() {
		ginkgo.It("should return tokens for valid credentials", func() {
			tokens, err := service.Authenticate(ctx, LoginDTO{Email: "admin@example.com", Password: "correct_password"})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(tokens.IDToken).ToNot(gomega.Equal(tokens.RefreshToken))
		})

		ginkgo.It("should return invalid login for a wrong password", func() {
			_, err := service.Authenticate(ctx, LoginDTO{Email: "admin@example.com", Password: "wrong"})

			gomega.Expect(err).To(gomega.Equal(internal.ErrInvalidLogin))
		})

		ginkgo.It("should report a disabled account", func() {
			accounts.signInErr = &identity.Error{Code: identity.CodeUserDisabled, Message: "disabled"}

			_, err := service.Authenticate(ctx, LoginDTO{Email: "admin@example.com", Password: "correct_password"})

			gomega.Expect(err).To(gomega.Equal(internal.ErrUserDisabled))
		})

		ginkgo.It("should require both fields", func() {
			_, err := service.Authenticate(ctx, LoginDTO{Email: "admin@example.com"})

			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(accounts.signIns).To(gomega.BeZero())
		})
	})

	ginkgo.Describe("RefreshTokens", func() {
		ginkgo.It("should reject a revoked refresh token", func() {
			_, err := service.RefreshTokens(ctx, RefreshTokenDTO{RefreshToken: "revoked"})

			gomega.Expect(err).To(gomega.Equal(internal.ErrTokenRevoked))
		})
	})

	ginkgo.Describe("VerifyBearer", func() {
		ginkgo.It("should carry the raw role claim", func() {
			actor, err := service.VerifyBearer(ctx, "sec-token")

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(actor.UserID).To(gomega.Equal("uid-sec"))
			gomega.Expect(actor.Role).To(gomega.Equal("security"))
		})

		ginkgo.It("should report a missing token", func() {
			_, err := service.VerifyBearer(ctx, "")

			gomega.Expect(err).To(gomega.Equal(internal.ErrMissingToken))
		})
	})
})

var _ = ginkgo.Describe("Handler middleware", func() {
	var (
		handler *Handler
		reached *internal.Actor
		server  http.Handler
	)

	ginkgo.BeforeEach(func() {
		service := NewService(newMockAccountProvider(), nil, testutil.Logger())
		handler = NewHandler(transport.NewBaseHandler(testutil.Logger()), service)
		reached = nil
		final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := internal.ActorFromContext(r.Context())
			if ok {
				reached = &actor
			} else {
				reached = &internal.Actor{}
			}
			w.WriteHeader(http.StatusNoContent)
		})
		server = handler.AuthMiddleware(handler.RequireRole(roles.Admin)(final))
	})

	serve := func(h http.Handler, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	ginkgo.It("should admit an admin", func() {
		rec := serve(server, "admin-token")

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
		gomega.Expect(reached.UserID).To(gomega.Equal("uid-admin"))
	})

	ginkgo.It("should return 401 without a token", func() {
		rec := serve(server, "")

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		gomega.Expect(reached).To(gomega.BeNil())
	})

	ginkgo.It("should return 401 for an unverifiable token", func() {
		rec := serve(server, "forged")

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
	})

	ginkgo.It("should return 403 for other roles and for a role claim that is not exact", func() {
		gomega.Expect(serve(server, "sec-token").Code).To(gomega.Equal(http.StatusForbidden))
		gomega.Expect(serve(server, "odd-token").Code).To(gomega.Equal(http.StatusForbidden))
		gomega.Expect(reached).To(gomega.BeNil())
	})

	ginkgo.It("should pass anonymous requests through the optional middleware", func() {
		optional := handler.OptionalAuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok := internal.ActorFromContext(r.Context())
			gomega.Expect(ok).To(gomega.BeFalse())
			w.WriteHeader(http.StatusOK)
		}))

		gomega.Expect(serve(optional, "").Code).To(gomega.Equal(http.StatusOK))
		gomega.Expect(serve(optional, "forged").Code).To(gomega.Equal(http.StatusOK))
	})
})
