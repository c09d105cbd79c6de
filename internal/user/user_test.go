package user_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/frahmantamala/securemind/internal"
	"github.com/frahmantamala/securemind/internal/roles"
	"github.com/frahmantamala/securemind/internal/testutil"
	"github.com/frahmantamala/securemind/internal/transport"
	"github.com/frahmantamala/securemind/internal/user"
	userPostgres "github.com/frahmantamala/securemind/internal/user/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Profile repository", func() {
	var (
		ctx  context.Context
		repo user.RepositoryAPI
	)

	BeforeEach(func() {
		ctx = context.Background()
		db, err := testutil.NewDB()
		Expect(err).NotTo(HaveOccurred())
		repo = userPostgres.NewUserRepository(db)
	})

	It("creates a profile with the user role when none is given", func() {
		Expect(repo.Upsert(ctx, "U1", user.ProfilePatch{Email: user.String("ann@example.com")})).To(Succeed())

		p, err := repo.GetByID(ctx, "U1")
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Role).To(Equal(roles.User))
		Expect(p.Email).To(Equal("ann@example.com"))
	})

	It("merges only the supplied fields", func() {
		Expect(repo.Upsert(ctx, "U1", user.ProfilePatch{
			Email:     user.String("ann@example.com"),
			FirstName: user.String("Ann"),
			Role:      user.RoleRef(roles.Trainer),
		})).To(Succeed())

		Expect(repo.Upsert(ctx, "U1", user.ProfilePatch{LastName: user.String("Lee")})).To(Succeed())

		p, err := repo.GetByID(ctx, "U1")
		Expect(err).NotTo(HaveOccurred())
		Expect(p.FirstName).To(Equal("Ann"))
		Expect(p.LastName).To(Equal("Lee"))
		Expect(p.Email).To(Equal("ann@example.com"))
		Expect(p.Role).To(Equal(roles.Trainer))
	})

	It("lists ids by role", func() {
		Expect(repo.Upsert(ctx, "A", user.ProfilePatch{Role: user.RoleRef(roles.Security)})).To(Succeed())
		Expect(repo.Upsert(ctx, "B", user.ProfilePatch{Role: user.RoleRef(roles.Accounting)})).To(Succeed())
		Expect(repo.Upsert(ctx, "C", user.ProfilePatch{Role: user.RoleRef(roles.Design)})).To(Succeed())

		ids, err := repo.ListIDsByRoles(ctx, []roles.Role{roles.Security, roles.Accounting})
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal([]string{"A", "B"}))

		all, err := repo.ListIDs(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(HaveLen(3))
	})

	It("reports a missing profile on delete", func() {
		Expect(repo.Delete(ctx, "nobody")).To(MatchError(user.ErrNotFound))
	})
})

var _ = Describe("Profile handler", func() {
	var (
		ctx     context.Context
		handler *user.Handler
	)

	BeforeEach(func() {
		ctx = context.Background()
		db, err := testutil.NewDB()
		Expect(err).NotTo(HaveOccurred())
		repo := userPostgres.NewUserRepository(db)
		Expect(repo.Upsert(ctx, "U1", user.ProfilePatch{
			Email: user.String("ann@example.com"),
			Role:  user.RoleRef(roles.Accounting),
		})).To(Succeed())

		lg := testutil.Logger()
		handler = user.NewHandler(transport.NewBaseHandler(lg), user.NewService(repo, lg))
	})

	It("returns the caller's profile", func() {
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		req = req.WithContext(internal.ContextWithActor(ctx, internal.Actor{UserID: "U1"}))
		w := httptest.NewRecorder()

		handler.GetCurrentUser(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		var body map[string]interface{}
		Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
		Expect(body["role"]).To(Equal("accounting"))
		Expect(body["landingPath"]).To(Equal("/dashboard/accounting"))
	})

	It("rejects anonymous callers", func() {
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		w := httptest.NewRecorder()

		handler.GetCurrentUser(w, req)

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})

	It("returns 404 when the profile does not exist", func() {
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		req = req.WithContext(internal.ContextWithActor(ctx, internal.Actor{UserID: "ghost"}))
		w := httptest.NewRecorder()

		handler.GetCurrentUser(w, req)

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})
})
