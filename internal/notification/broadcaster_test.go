package notification_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/frahmantamala/securemind/internal"
	notificationDatamodel "github.com/frahmantamala/securemind/internal/core/datamodel/notification"
	"github.com/frahmantamala/securemind/internal/notification"
	notificationPostgres "github.com/frahmantamala/securemind/internal/notification/postgres"
	"github.com/frahmantamala/securemind/internal/queue"
	"github.com/frahmantamala/securemind/internal/roles"
	"github.com/frahmantamala/securemind/internal/testutil"
	"github.com/frahmantamala/securemind/internal/user"
	userPostgres "github.com/frahmantamala/securemind/internal/user/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

type recordingDelivery struct {
	jobs []queue.DeliveryJob
	err  error
}

func (d *recordingDelivery) Enqueue(ctx context.Context, job queue.DeliveryJob) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

// failingRepo fails every commit after the first `okBatches`.
type failingRepo struct {
	notification.RepositoryAPI
	okBatches int
	calls     int
}

func (r *failingRepo) CommitBatch(ctx context.Context, batch []*notification.Notification) error {
	r.calls++
	if r.calls > r.okBatches {
		return errors.New("write conflict")
	}
	return r.RepositoryAPI.CommitBatch(ctx, batch)
}

func seedProfiles(ctx context.Context, profiles user.RepositoryAPI, prefix string, role roles.Role, n int) {
	for i := 0; i < n; i++ {
		uid := fmt.Sprintf("%s-%03d", prefix, i)
		Expect(profiles.Upsert(ctx, uid, user.ProfilePatch{
			Email: user.String(uid + "@example.com"),
			Role:  user.RoleRef(role),
		})).To(Succeed())
	}
}

var _ = Describe("Broadcaster", func() {
	var (
		ctx         context.Context
		db          *gorm.DB
		profiles    user.RepositoryAPI
		repo        notification.RepositoryAPI
		broadcaster *notification.Broadcaster
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		db, err = testutil.NewDB()
		Expect(err).NotTo(HaveOccurred())
		profiles = userPostgres.NewUserRepository(db)
		repo = notificationPostgres.NewNotificationRepository(db)
		broadcaster = notification.NewBroadcaster(profiles, repo, notification.BroadcasterConfig{}, testutil.Logger())
	})

	It("writes one record per holder of the target roles", func() {
		seedProfiles(ctx, profiles, "sec", roles.Security, 12)
		seedProfiles(ctx, profiles, "acc", roles.Accounting, 3)
		seedProfiles(ctx, profiles, "dev", roles.Developer, 4)

		count, err := broadcaster.Broadcast(ctx, notification.Broadcast{
			Kind:    notification.KindPolicy,
			RefID:   "pol-7",
			Title:   "Updated travel policy",
			Message: "Read before booking",
			Target:  notification.Target{Type: notification.TargetRoles, Roles: []string{"security", "ACCOUNTING", "security"}},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(15))

		stored, err := repo.CountByRef(ctx, notification.KindPolicy, "pol-7")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored).To(Equal(int64(15)))

		var rows []notificationDatamodel.Notification
		Expect(db.WithContext(ctx).Find(&rows).Error).To(Succeed())
		Expect(rows).To(HaveLen(15))
		recipients := make(map[string]struct{}, len(rows))
		for _, row := range rows {
			recipients[row.UserID] = struct{}{}
			Expect(row.Type).To(Equal(notification.KindPolicy))
			Expect(row.Title).To(Equal("Updated travel policy"))
			Expect(row.Message).To(Equal("Read before booking"))
			Expect(row.RefID).NotTo(BeNil())
			Expect(*row.RefID).To(Equal("pol-7"))
			Expect(row.Read).To(BeFalse())
			Expect(row.UserID).To(Or(HavePrefix("sec-"), HavePrefix("acc-")))
		}
		Expect(recipients).To(HaveLen(15))

		inbox, err := repo.ListByUser(ctx, "dev-000", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(inbox).To(BeEmpty())
	})

	It("maps unknown role names to user", func() {
		seedProfiles(ctx, profiles, "usr", roles.User, 2)
		seedProfiles(ctx, profiles, "sec", roles.Security, 1)

		count, err := broadcaster.Broadcast(ctx, notification.Broadcast{
			Kind:   notification.KindFact,
			Title:  "t",
			Target: notification.Target{Type: notification.TargetRoles, Roles: []string{"contractor"}},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(2))
	})

	It("unions role queries split into chunks", func() {
		chunked := notification.NewBroadcaster(profiles, repo, notification.BroadcasterConfig{RoleChunkSize: 1}, testutil.Logger())
		seedProfiles(ctx, profiles, "sec", roles.Security, 2)
		seedProfiles(ctx, profiles, "des", roles.Design, 2)

		uids, err := chunked.ResolveRecipients(ctx, notification.Target{
			Type:  notification.TargetRoles,
			Roles: []string{"design", "security"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(uids).To(Equal([]string{"des-000", "des-001", "sec-000", "sec-001"}))
	})

	It("writes nothing for an empty user list", func() {
		seedProfiles(ctx, profiles, "usr", roles.User, 3)
		count, err := broadcaster.Broadcast(ctx, notification.Broadcast{
			Kind:   notification.KindFact,
			Title:  "t",
			Target: notification.Target{Type: notification.TargetUsers, UserIDs: []string{}},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(BeZero())
	})

	It("reaches every profile for the all target", func() {
		seedProfiles(ctx, profiles, "usr", roles.User, 3)
		seedProfiles(ctx, profiles, "adm", roles.Admin, 1)
		count, err := broadcaster.Broadcast(ctx, notification.Broadcast{
			Kind:   notification.KindFact,
			Title:  "t",
			Target: notification.Target{Type: notification.TargetAll},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(4))
	})

	It("rejects an unknown target type", func() {
		_, err := broadcaster.Broadcast(ctx, notification.Broadcast{
			Kind:   notification.KindFact,
			Target: notification.Target{Type: "everyone"},
		})
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidTarget))
		Expect(appErr.Message).To(Equal("Invalid targetType"))
	})

	It("splits large fan-outs into batches and enqueues one delivery per batch", func() {
		seedProfiles(ctx, profiles, "usr", roles.User, 7)
		delivery := &recordingDelivery{}
		batched := notification.NewBroadcaster(profiles, repo, notification.BroadcasterConfig{BatchSize: 3}, testutil.Logger()).
			WithDelivery(delivery)

		count, err := batched.Broadcast(ctx, notification.Broadcast{
			Kind:   notification.KindFact,
			RefID:  "fact-1",
			Title:  "t",
			Target: notification.Target{Type: notification.TargetAll},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(7))
		Expect(delivery.jobs).To(HaveLen(3))
		Expect(delivery.jobs[2].UserIDs).To(Equal([]string{"usr-006"}))
		Expect(delivery.jobs[0].RefID).To(Equal("fact-1"))
	})

	It("does not fail the broadcast when the delivery queue is down", func() {
		seedProfiles(ctx, profiles, "usr", roles.User, 2)
		b := notification.NewBroadcaster(profiles, repo, notification.BroadcasterConfig{}, testutil.Logger()).
			WithDelivery(&recordingDelivery{err: errors.New("connection refused")})

		count, err := b.Broadcast(ctx, notification.Broadcast{
			Kind:   notification.KindFact,
			Title:  "t",
			Target: notification.Target{Type: notification.TargetAll},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(2))
	})

	It("keeps earlier batches when a later one fails", func() {
		seedProfiles(ctx, profiles, "usr", roles.User, 5)
		flaky := &failingRepo{RepositoryAPI: repo, okBatches: 1}
		b := notification.NewBroadcaster(profiles, flaky, notification.BroadcasterConfig{BatchSize: 2}, testutil.Logger())

		count, err := b.Broadcast(ctx, notification.Broadcast{
			Kind:   notification.KindFact,
			RefID:  "fact-2",
			Title:  "t",
			Target: notification.Target{Type: notification.TargetAll},
		})
		Expect(err).To(HaveOccurred())
		Expect(count).To(Equal(2))

		stored, err := repo.CountByRef(ctx, notification.KindFact, "fact-2")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored).To(Equal(int64(2)))
	})
})
