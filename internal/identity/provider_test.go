package identity_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"
	"time"

	"github.com/frahmantamala/securemind/internal/identity"
	identityPostgres "github.com/frahmantamala/securemind/internal/identity/postgres"
	"github.com/frahmantamala/securemind/internal/roles"
	"github.com/frahmantamala/securemind/internal/testutil"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

func TestIdentity(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Identity Suite")
}

var signingKey *rsa.PrivateKey

var _ = BeforeSuite(func() {
	var err error
	signingKey, err = rsa.GenerateKey(rand.Reader, 2048)
	Expect(err).NotTo(HaveOccurred())
})

var _ = Describe("Provider", func() {
	var (
		ctx         context.Context
		provider    *identity.Provider
		newProvider func(idTTL time.Duration) *identity.Provider
	)

	BeforeEach(func() {
		ctx = context.Background()
		db, err := testutil.NewDB()
		Expect(err).NotTo(HaveOccurred())
		repo := identityPostgres.NewAccountRepository(db)

		newProvider = func(idTTL time.Duration) *identity.Provider {
			issuer := identity.NewTokenIssuer(signingKey, "securemind-test", idTTL, time.Hour)
			return identity.NewProvider(repo, issuer, identity.Options{
				BCryptCost:        bcrypt.MinCost,
				MinPasswordLength: 8,
			}, testutil.Logger())
		}
		provider = newProvider(15 * time.Minute)
	})

	create := func(email string) *identity.Account {
		account, err := provider.CreateUser(ctx, identity.CreateParams{
			Email:       email,
			Password:    "Sup3rSecret!",
			DisplayName: "Ann Lee",
		})
		Expect(err).NotTo(HaveOccurred())
		return account
	}

	Describe("CreateUser", func() {
		It("stores the email lowercased", func() {
			account := create("  Ann.Lee@Example.COM ")
			Expect(account.UID).NotTo(BeEmpty())
			Expect(account.Email).To(Equal("ann.lee@example.com"))
			Expect(account.CustomClaims).To(BeEmpty())
		})

		It("rejects a taken email", func() {
			create("ann@example.com")
			_, err := provider.CreateUser(ctx, identity.CreateParams{Email: "ANN@example.com", Password: "Sup3rSecret!"})
			Expect(identity.ErrorCode(err)).To(Equal(identity.CodeEmailExists))
		})

		It("rejects a malformed email", func() {
			_, err := provider.CreateUser(ctx, identity.CreateParams{Email: "not-an-email", Password: "Sup3rSecret!"})
			Expect(identity.ErrorCode(err)).To(Equal(identity.CodeInvalidEmail))
		})

		It("rejects a short password", func() {
			_, err := provider.CreateUser(ctx, identity.CreateParams{Email: "ann@example.com", Password: "short"})
			Expect(identity.ErrorCode(err)).To(Equal(identity.CodeWeakPassword))
		})
	})

	Describe("UpdateUser", func() {
		It("changes only the supplied fields", func() {
			account := create("ann@example.com")
			disabled := true
			updated, err := provider.UpdateUser(ctx, account.UID, identity.UpdateParams{Disabled: &disabled})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Disabled).To(BeTrue())
			Expect(updated.DisplayName).To(Equal("Ann Lee"))
			Expect(updated.Email).To(Equal("ann@example.com"))
		})

		It("reports an unknown uid", func() {
			name := "x"
			_, err := provider.UpdateUser(ctx, "missing", identity.UpdateParams{DisplayName: &name})
			Expect(identity.IsUserNotFound(err)).To(BeTrue())
		})

		It("refuses an email owned by someone else", func() {
			create("ann@example.com")
			bob := create("bob@example.com")
			email := "ann@example.com"
			_, err := provider.UpdateUser(ctx, bob.UID, identity.UpdateParams{Email: &email})
			Expect(identity.ErrorCode(err)).To(Equal(identity.CodeEmailExists))
		})
	})

	Describe("SetCustomUserClaims", func() {
		It("replaces the whole claim set", func() {
			account := create("ann@example.com")
			Expect(provider.SetCustomUserClaims(ctx, account.UID, map[string]any{"role": "admin", "admin": true})).To(Succeed())
			Expect(provider.SetCustomUserClaims(ctx, account.UID, map[string]any{"role": "trainer"})).To(Succeed())

			fetched, err := provider.GetUser(ctx, account.UID)
			Expect(err).NotTo(HaveOccurred())
			Expect(fetched.CustomClaims).To(Equal(map[string]any{"role": "trainer"}))
			role, ok := fetched.Role()
			Expect(ok).To(BeTrue())
			Expect(role).To(Equal(roles.Trainer))
		})

		It("rejects oversized payloads", func() {
			account := create("ann@example.com")
			err := provider.SetCustomUserClaims(ctx, account.UID, map[string]any{"blob": strings.Repeat("x", 1200)})
			Expect(identity.ErrorCode(err)).To(Equal(identity.CodeInvalidClaims))
		})

		It("reports an unknown uid", func() {
			err := provider.SetCustomUserClaims(ctx, "missing", map[string]any{"role": "user"})
			Expect(identity.IsUserNotFound(err)).To(BeTrue())
		})
	})

	Describe("tokens", func() {
		It("signs in and verifies the ID token with its claims", func() {
			account := create("ann@example.com")
			Expect(provider.SetCustomUserClaims(ctx, account.UID, map[string]any{"role": "security"})).To(Succeed())

			tokens, err := provider.SignIn(ctx, "ANN@example.com", "Sup3rSecret!")
			Expect(err).NotTo(HaveOccurred())
			Expect(tokens.UID).To(Equal(account.UID))

			token, err := provider.VerifyIDToken(ctx, tokens.IDToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(token.UID).To(Equal(account.UID))
			Expect(token.RawRole()).To(Equal("security"))
		})

		It("rejects a wrong password and a disabled account", func() {
			account := create("ann@example.com")
			_, err := provider.SignIn(ctx, "ann@example.com", "wrong-password")
			Expect(identity.ErrorCode(err)).To(Equal(identity.CodeWrongPassword))

			disabled := true
			_, err = provider.UpdateUser(ctx, account.UID, identity.UpdateParams{Disabled: &disabled})
			Expect(err).NotTo(HaveOccurred())
			_, err = provider.SignIn(ctx, "ann@example.com", "Sup3rSecret!")
			Expect(identity.ErrorCode(err)).To(Equal(identity.CodeUserDisabled))
		})

		It("does not accept a refresh token as an ID token", func() {
			create("ann@example.com")
			tokens, err := provider.SignIn(ctx, "ann@example.com", "Sup3rSecret!")
			Expect(err).NotTo(HaveOccurred())
			_, err = provider.VerifyIDToken(ctx, tokens.RefreshToken)
			Expect(identity.ErrorCode(err)).To(Equal(identity.CodeInvalidToken))
		})

		It("reports expired tokens", func() {
			create("ann@example.com")
			expiring := newProvider(-time.Minute)
			tokens, err := expiring.SignIn(ctx, "ann@example.com", "Sup3rSecret!")
			Expect(err).NotTo(HaveOccurred())
			_, err = expiring.VerifyIDToken(ctx, tokens.IDToken)
			Expect(identity.ErrorCode(err)).To(Equal(identity.CodeTokenExpired))
		})

		It("refreshes with the current claims", func() {
			account := create("ann@example.com")
			tokens, err := provider.SignIn(ctx, "ann@example.com", "Sup3rSecret!")
			Expect(err).NotTo(HaveOccurred())
			Expect(provider.SetCustomUserClaims(ctx, account.UID, map[string]any{"role": "design"})).To(Succeed())

			refreshed, err := provider.Refresh(ctx, tokens.RefreshToken)
			Expect(err).NotTo(HaveOccurred())
			token, err := provider.VerifyIDToken(ctx, refreshed.IDToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(token.RawRole()).To(Equal("design"))
		})

		It("invalidates earlier tokens after revocation", func() {
			account := create("ann@example.com")
			tokens, err := provider.SignIn(ctx, "ann@example.com", "Sup3rSecret!")
			Expect(err).NotTo(HaveOccurred())

			Expect(provider.RevokeRefreshTokens(ctx, account.UID)).To(Succeed())

			_, err = provider.VerifyIDToken(ctx, tokens.IDToken)
			Expect(identity.ErrorCode(err)).To(Equal(identity.CodeTokenRevoked))
			_, err = provider.Refresh(ctx, tokens.RefreshToken)
			Expect(identity.ErrorCode(err)).To(Equal(identity.CodeTokenRevoked))

			fresh, err := provider.SignIn(ctx, "ann@example.com", "Sup3rSecret!")
			Expect(err).NotTo(HaveOccurred())
			_, err = provider.VerifyIDToken(ctx, fresh.IDToken)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("DeleteUser", func() {
		It("reports not found on the second delete", func() {
			account := create("ann@example.com")
			Expect(provider.DeleteUser(ctx, account.UID)).To(Succeed())
			err := provider.DeleteUser(ctx, account.UID)
			Expect(identity.IsUserNotFound(err)).To(BeTrue())
		})
	})
})
