package notification

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/frahmantamala/securemind/internal"
	"github.com/frahmantamala/securemind/internal/core/bulk"
	"github.com/frahmantamala/securemind/internal/ids"
	"github.com/frahmantamala/securemind/internal/obs"
	"github.com/frahmantamala/securemind/internal/queue"
	"github.com/frahmantamala/securemind/internal/roles"
	"golang.org/x/sync/errgroup"
)

var ErrFactNotFound = errors.New("fact not found")

// DeliveryEnqueuer hands committed batches to the delivery queue.
type DeliveryEnqueuer interface {
	Enqueue(ctx context.Context, job queue.DeliveryJob) error
}

type BroadcasterConfig struct {
	BatchSize     int
	RoleChunkSize int
}

// Broadcaster fans one notification out to every recipient of a target.
type Broadcaster struct {
	recipients    RecipientSource
	repo          RepositoryAPI
	delivery      DeliveryEnqueuer
	batchSize     int
	roleChunkSize int
	logger        *slog.Logger
	now           func() time.Time
}

func NewBroadcaster(recipients RecipientSource, repo RepositoryAPI, cfg BroadcasterConfig, logger *slog.Logger) *Broadcaster {
	if cfg.BatchSize <= 0 || cfg.BatchSize > bulk.MaxBatchSize {
		cfg.BatchSize = bulk.MaxBatchSize
	}
	if cfg.RoleChunkSize <= 0 || cfg.RoleChunkSize > internal.MaxRoleChunkSize {
		cfg.RoleChunkSize = internal.MaxRoleChunkSize
	}
	return &Broadcaster{
		recipients:    recipients,
		repo:          repo,
		batchSize:     cfg.BatchSize,
		roleChunkSize: cfg.RoleChunkSize,
		logger:        logger,
		now:           time.Now,
	}
}

// WithDelivery enables a delivery job per committed batch.
func (b *Broadcaster) WithDelivery(d DeliveryEnqueuer) *Broadcaster {
	b.delivery = d
	return b
}

// Broadcast writes one record per recipient and returns how many were
// committed. On a batch failure the earlier batches stay committed.
func (b *Broadcaster) Broadcast(ctx context.Context, req Broadcast) (int, error) {
	recipients, err := b.ResolveRecipients(ctx, req.Target)
	if err != nil {
		return 0, err
	}
	if len(recipients) == 0 {
		return 0, nil
	}

	createdAt := b.now().UTC()
	items := make([]*Notification, len(recipients))
	for i, uid := range recipients {
		items[i] = &Notification{
			ID:        ids.New(),
			UserID:    uid,
			Type:      req.Kind,
			RefID:     req.RefID,
			Title:     req.Title,
			Message:   req.Message,
			CreatedAt: createdAt,
		}
	}

	writer := bulk.NewWriter(b.batchSize, b.repo.CommitBatch).
		AfterEach(func(ctx context.Context, index int, batch []*Notification) {
			b.enqueueDelivery(ctx, req, index, batch)
		})

	report, err := writer.Write(ctx, items)
	obs.NotificationsWritten(req.Kind, report.Committed)
	if err != nil {
		var batchErr *bulk.BatchError
		if errors.As(err, &batchErr) {
			b.logger.ErrorContext(ctx, "notification batch failed",
				"kind", req.Kind, "batch", batchErr.Index, "committed", batchErr.Committed, "error", batchErr.Err)
		}
		return report.Committed, internal.NewInternalError("failed to write notifications", err)
	}

	b.logger.InfoContext(ctx, "notifications broadcast",
		"kind", req.Kind, "ref_id", req.RefID, "target", req.Target.Type, "count", report.Committed, "batches", report.Batches)
	return report.Committed, nil
}

// ResolveRecipients expands a target into profile ids.
func (b *Broadcaster) ResolveRecipients(ctx context.Context, target Target) ([]string, error) {
	switch target.Type {
	case TargetAll:
		uids, err := b.recipients.ListIDs(ctx)
		if err != nil {
			return nil, internal.NewInternalError("failed to list users", err)
		}
		return uids, nil
	case TargetRoles:
		return b.idsByRoles(ctx, roles.NormalizeAll(target.Roles, roles.User))
	case TargetUsers:
		return target.UserIDs, nil
	default:
		return nil, internal.NewValidationError("Invalid targetType", internal.ErrCodeInvalidTarget)
	}
}

// idsByRoles queries role chunks concurrently and returns the sorted union.
func (b *Broadcaster) idsByRoles(ctx context.Context, rs []roles.Role) ([]string, error) {
	rs = uniqueRoles(rs)
	if len(rs) == 0 {
		return nil, nil
	}

	var chunks [][]roles.Role
	for start := 0; start < len(rs); start += b.roleChunkSize {
		chunks = append(chunks, rs[start:min(start+b.roleChunkSize, len(rs))])
	}

	results := make([][]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			uids, err := b.recipients.ListIDsByRoles(gctx, chunk)
			if err != nil {
				return err
			}
			results[i] = uids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, internal.NewInternalError("failed to list users by role", err)
	}

	seen := make(map[string]struct{})
	var out []string
	for _, uids := range results {
		for _, uid := range uids {
			if _, dup := seen[uid]; dup {
				continue
			}
			seen[uid] = struct{}{}
			out = append(out, uid)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (b *Broadcaster) enqueueDelivery(ctx context.Context, req Broadcast, index int, batch []*Notification) {
	if b.delivery == nil {
		return
	}
	uids := make([]string, len(batch))
	for i, n := range batch {
		uids[i] = n.UserID
	}
	err := b.delivery.Enqueue(ctx, queue.DeliveryJob{
		Kind:       req.Kind,
		RefID:      req.RefID,
		Title:      req.Title,
		BatchIndex: index,
		UserIDs:    uids,
		CreatedAt:  b.now().UTC(),
	})
	if err != nil {
		b.logger.WarnContext(ctx, "delivery job not enqueued", "kind", req.Kind, "batch", index, "error", err)
	}
}

func uniqueRoles(rs []roles.Role) []roles.Role {
	seen := make(map[roles.Role]struct{}, len(rs))
	out := make([]roles.Role, 0, len(rs))
	for _, r := range rs {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
