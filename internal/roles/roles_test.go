package roles_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/frahmantamala/securemind/internal"
	"github.com/frahmantamala/securemind/internal/roles"
	"github.com/frahmantamala/securemind/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestRoles(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Roles Suite")
}

type stubEmployees struct {
	roles map[string]string
	err   error
}

func (s *stubEmployees) EmployeeRole(ctx context.Context, employeeID string) (string, bool, error) {
	if s.err != nil {
		return "", false, s.err
	}
	role, ok := s.roles[employeeID]
	return role, ok, nil
}

type stubPreapprovals struct {
	roles map[string]string
	err   error
}

func (s *stubPreapprovals) PreapprovedRole(ctx context.Context, userID string) (string, bool, error) {
	if s.err != nil {
		return "", false, s.err
	}
	role, ok := s.roles[userID]
	return role, ok, nil
}

var _ = Describe("Role", func() {
	It("parses case-insensitively and trims", func() {
		r, ok := roles.Parse("  SeCuRiTy ")
		Expect(ok).To(BeTrue())
		Expect(r).To(Equal(roles.Security))
	})

	It("rejects values outside the enumeration", func() {
		_, ok := roles.Parse("superuser")
		Expect(ok).To(BeFalse())
		Expect(roles.Normalize("superuser")).To(Equal(roles.User))
		Expect(roles.NormalizeOr("", roles.Security)).To(Equal(roles.Security))
	})

	It("only accepts the exact name from a claim", func() {
		_, ok := roles.FromClaim("Admin")
		Expect(ok).To(BeFalse())
		r, ok := roles.FromClaim("admin")
		Expect(ok).To(BeTrue())
		Expect(r).To(Equal(roles.Admin))
		_, ok = roles.FromClaim(true)
		Expect(ok).To(BeFalse())
	})

	It("round trips through JSON and refuses unknown names", func() {
		b, err := json.Marshal(struct {
			Role roles.Role `json:"role"`
		}{roles.Trainer})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(b)).To(Equal(`{"role":"trainer"}`))

		var r roles.Role
		Expect(json.Unmarshal([]byte(`"DESIGN"`), &r)).To(Succeed())
		Expect(r).To(Equal(roles.Design))
		Expect(json.Unmarshal([]byte(`"root"`), &r)).To(MatchError(roles.ErrInvalidRole))
	})

	It("drops blank entries when normalizing a list", func() {
		Expect(roles.NormalizeAll([]string{"security", " ", "nope"}, roles.Security)).
			To(Equal([]roles.Role{roles.Security, roles.Security}))
	})

	It("knows each landing path", func() {
		Expect(roles.Accounting.LandingPath()).To(Equal("/dashboard/accounting"))
		Expect(roles.All()).To(HaveLen(8))
	})
})

var _ = Describe("Resolver", func() {
	var (
		employees    *stubEmployees
		preapprovals *stubPreapprovals
		resolver     *roles.Resolver
		ctx          context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		employees = &stubEmployees{roles: map[string]string{
			"E1": "accounting",
			"E2": "",
			"E3": "wizard",
		}}
		preapprovals = &stubPreapprovals{roles: map[string]string{"U-pre": "Trainer", "U-bad": "ceo"}}
		resolver = roles.NewResolver(employees, preapprovals, logger.Discard())
	})

	Describe("ResolveOnFirstSignIn", func() {
		It("uses a valid preapproval", func() {
			Expect(resolver.ResolveOnFirstSignIn(ctx, "U-pre")).To(Equal(roles.Trainer))
		})

		It("defaults to user without a preapproval", func() {
			Expect(resolver.ResolveOnFirstSignIn(ctx, "U-none")).To(Equal(roles.User))
		})

		It("defaults to user for an invalid preapproved role", func() {
			Expect(resolver.ResolveOnFirstSignIn(ctx, "U-bad")).To(Equal(roles.User))
		})

		It("defaults to user when the lookup fails", func() {
			preapprovals.err = errors.New("store unavailable")
			Expect(resolver.ResolveOnFirstSignIn(ctx, "U-pre")).To(Equal(roles.User))
		})
	})

	Describe("ResolveOnRegistrationCompletion", func() {
		reg := func(uid, emp, first, last string) roles.Registration {
			return roles.Registration{UserID: uid, EmployeeID: emp, FirstName: first, LastName: last}
		}

		It("returns the employee role", func() {
			r, err := resolver.ResolveOnRegistrationCompletion(ctx, reg("U1", "E1", "Ann", "Lee"))
			Expect(err).NotTo(HaveOccurred())
			Expect(r).To(Equal(roles.Accounting))
		})

		It("requires an authenticated caller", func() {
			_, err := resolver.ResolveOnRegistrationCompletion(ctx, reg("", "E1", "Ann", "Lee"))
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeUnauthenticated))
		})

		It("rejects blank fields", func() {
			_, err := resolver.ResolveOnRegistrationCompletion(ctx, reg("U1", "E1", " ", "Lee"))
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeInvalidArgument))
		})

		It("fails with not found for an unknown employee", func() {
			_, err := resolver.ResolveOnRegistrationCompletion(ctx, reg("U1", "E404", "Ann", "Lee"))
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeNotFound))
		})

		It("names the missing role", func() {
			_, err := resolver.ResolveOnRegistrationCompletion(ctx, reg("U1", "E2", "Ann", "Lee"))
			Expect(err).To(MatchError(ContainSubstring("no role set")))
		})

		It("coerces an unknown stored role to user", func() {
			r, err := resolver.ResolveOnRegistrationCompletion(ctx, reg("U1", "E3", "Ann", "Lee"))
			Expect(err).NotTo(HaveOccurred())
			Expect(r).To(Equal(roles.User))
		})
	})

	Describe("ResolveForAdminAssignment", func() {
		It("coerces unknown roles to user", func() {
			Expect(resolver.ResolveForAdminAssignment("superuser")).To(Equal(roles.User))
		})

		It("is idempotent", func() {
			first := resolver.ResolveForAdminAssignment("MARKETING")
			Expect(resolver.ResolveForAdminAssignment(first.String())).To(Equal(first))
			Expect(first).To(Equal(roles.Marketing))
		})
	})
})
