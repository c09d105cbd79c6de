package notification_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/frahmantamala/securemind/internal"
	"github.com/frahmantamala/securemind/internal/notification"
	notificationPostgres "github.com/frahmantamala/securemind/internal/notification/postgres"
	"github.com/frahmantamala/securemind/internal/roles"
	"github.com/frahmantamala/securemind/internal/testutil"
	"github.com/frahmantamala/securemind/internal/transport"
	"github.com/frahmantamala/securemind/internal/transport/callable"
	"github.com/frahmantamala/securemind/internal/user"
	userPostgres "github.com/frahmantamala/securemind/internal/user/postgres"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type callableReply struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

var _ = Describe("Handler", func() {
	var (
		ctx      context.Context
		profiles user.RepositoryAPI
		facts    notification.FactRepositoryAPI
		repo     notification.RepositoryAPI
		handler  *notification.Handler
		router   chi.Router
		actor    *internal.Actor
	)

	BeforeEach(func() {
		ctx = context.Background()
		db, err := testutil.NewDB()
		Expect(err).NotTo(HaveOccurred())
		profiles = userPostgres.NewUserRepository(db)
		repo = notificationPostgres.NewNotificationRepository(db)
		facts = notificationPostgres.NewFactRepository(db)

		broadcaster := notification.NewBroadcaster(profiles, repo, notification.BroadcasterConfig{}, testutil.Logger())
		service := notification.NewService(facts, broadcaster, testutil.Logger())
		base := transport.NewBaseHandler(testutil.Logger())
		handler = notification.NewHandler(base, service)

		server := callable.NewServer(base)
		server.RegisterAll(handler)

		actor = nil
		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if actor != nil {
					r = r.WithContext(internal.ContextWithActor(r.Context(), *actor))
				}
				next.ServeHTTP(w, r)
			})
		})
		router.Post("/callable/{name}", server.ServeHTTP)
		router.Post("/facts", handler.PublishFact)
		router.Post("/notifications/facts/broadcast", handler.BroadcastFact)
	})

	call := func(name string, data interface{}) (int, callableReply) {
		body, err := json.Marshal(map[string]interface{}{"data": data})
		Expect(err).NotTo(HaveOccurred())
		req := httptest.NewRequest(http.MethodPost, "/callable/"+name, bytes.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		var reply callableReply
		Expect(json.Unmarshal(rec.Body.Bytes(), &reply)).To(Succeed())
		return rec.Code, reply
	}

	Describe("broadcastFactNotification", func() {
		It("requires an admin caller", func() {
			actor = &internal.Actor{UserID: "sec-1", Role: "security"}
			status, reply := call("broadcastFactNotification", map[string]string{"title": "t", "message": "m"})
			Expect(status).To(Equal(http.StatusForbidden))
			Expect(reply.Error.Status).To(Equal("PERMISSION_DENIED"))
			Expect(reply.Error.Message).To(Equal("Admin only"))
		})

		It("rejects an anonymous caller before reading the payload", func() {
			status, reply := call("broadcastFactNotification", nil)
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(reply.Error.Status).To(Equal("UNAUTHENTICATED"))
		})

		It("requires title and message", func() {
			actor = &internal.Actor{UserID: "adm-1", Role: "admin"}
			status, reply := call("broadcastFactNotification", map[string]string{"title": "only a title"})
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(reply.Error.Message).To(Equal("title and message are required"))
		})

		It("targets everyone by default", func() {
			seedProfiles(ctx, profiles, "usr", roles.User, 2)
			seedProfiles(ctx, profiles, "sec", roles.Security, 1)
			actor = &internal.Actor{UserID: "adm-1", Role: "admin"}

			status, reply := call("broadcastFactNotification", map[string]string{"title": "t", "message": "m"})
			Expect(status).To(Equal(http.StatusOK))
			var result notification.CountResponse
			Expect(json.Unmarshal(reply.Result, &result)).To(Succeed())
			Expect(result.Count).To(Equal(3))
		})
	})

	Describe("broadcastPolicyNotification", func() {
		It("requires policyId, title and roles", func() {
			actor = &internal.Actor{UserID: "adm-1", Role: "admin"}
			status, reply := call("broadcastPolicyNotification", map[string]interface{}{"policyId": "p1", "title": "t", "roles": []string{}})
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(reply.Error.Message).To(Equal("policyId, title, and roles are required"))
		})

		It("notifies holders of the listed roles", func() {
			seedProfiles(ctx, profiles, "acc", roles.Accounting, 2)
			seedProfiles(ctx, profiles, "usr", roles.User, 2)
			actor = &internal.Actor{UserID: "adm-1", Role: "admin"}

			status, reply := call("broadcastPolicyNotification", map[string]interface{}{
				"policyId": "travel-2026", "title": "Travel policy", "roles": []string{"accounting"},
			})
			Expect(status).To(Equal(http.StatusOK))
			var result notification.CountResponse
			Expect(json.Unmarshal(reply.Result, &result)).To(Succeed())
			Expect(result.Count).To(Equal(2))

			stored, err := repo.CountByRef(ctx, notification.KindPolicy, "travel-2026")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(Equal(int64(2)))
		})
	})

	Describe("publishFact", func() {
		It("is open to security staff and defaults the audience to security", func() {
			seedProfiles(ctx, profiles, "sec", roles.Security, 2)
			seedProfiles(ctx, profiles, "usr", roles.User, 3)
			actor = &internal.Actor{UserID: "sec-000", Role: "security"}

			status, reply := call("publishFact", map[string]string{"message": "Lock your screen"})
			Expect(status).To(Equal(http.StatusOK))
			var result notification.PublishFactResponse
			Expect(json.Unmarshal(reply.Result, &result)).To(Succeed())
			Expect(result.ID).NotTo(BeEmpty())
			Expect(result.Count).To(Equal(2))

			fact, err := facts.GetByID(ctx, result.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(fact.Roles).To(Equal([]roles.Role{roles.Security}))
			Expect(fact.Priority).To(Equal("normal"))
			Expect(fact.Type).To(Equal("security"))
			Expect(fact.CreatedBy).To(Equal("sec-000"))
			Expect(fact.ViewCount).To(BeZero())
		})

		It("maps unknown audience roles to security", func() {
			actor = &internal.Actor{UserID: "adm-1", Role: "admin"}
			status, reply := call("publishFact", map[string]interface{}{"message": "m", "roles": []string{"Trainer", "interns"}})
			Expect(status).To(Equal(http.StatusOK))
			var result notification.PublishFactResponse
			Expect(json.Unmarshal(reply.Result, &result)).To(Succeed())

			fact, err := facts.GetByID(ctx, result.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(fact.Roles).To(ConsistOf(roles.Trainer, roles.Security))
		})

		It("refuses other roles", func() {
			actor = &internal.Actor{UserID: "dev-1", Role: "developer"}
			status, reply := call("publishFact", map[string]string{"message": "m"})
			Expect(status).To(Equal(http.StatusForbidden))
			Expect(reply.Error.Message).To(Equal("Insufficient role"))
		})

		It("returns 201 over plain HTTP and requires a message", func() {
			actor = &internal.Actor{UserID: "adm-1", Role: "admin"}

			req := httptest.NewRequest(http.MethodPost, "/facts", bytes.NewBufferString(`{"message":"  "}`))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring("message required"))

			req = httptest.NewRequest(http.MethodPost, "/facts", bytes.NewBufferString(`{"message":"Badge in"}`))
			rec = httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusCreated))
		})
	})

	It("answers unknown callables with not found", func() {
		actor = &internal.Actor{UserID: "adm-1", Role: "admin"}
		status, reply := call("dropDatabase", nil)
		Expect(status).To(Equal(http.StatusNotFound))
		Expect(reply.Error.Status).To(Equal("NOT_FOUND"))
	})

	It("rejects an invalid target over plain HTTP", func() {
		actor = &internal.Actor{UserID: "adm-1", Role: "admin"}
		req := httptest.NewRequest(http.MethodPost, "/notifications/facts/broadcast",
			bytes.NewBufferString(`{"title":"t","message":"m","targetType":"galaxy"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(rec.Body.String()).To(ContainSubstring("Invalid targetType"))
	})
})
