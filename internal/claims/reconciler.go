package claims

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frahmantamala/securemind/internal/obs"
	"github.com/frahmantamala/securemind/internal/roles"
	"github.com/frahmantamala/securemind/internal/user"
)

// RoleState is one account's claim set next to its profile role.
type RoleState struct {
	UID          string
	CustomClaims string
	ProfileRole  string
}

type RoleStateSource interface {
	ListRoleStates(ctx context.Context) ([]RoleState, error)
}

type ReconcileReport struct {
	Scanned         int64 `json:"scanned"`
	ProfileRepaired int64 `json:"profileRepaired"`
	ClaimRepaired   int64 `json:"claimRepaired"`
	Unresolvable    int64 `json:"unresolvable"`
	Failed          int64 `json:"failed"`
}

type repair int

const (
	repairNone repair = iota
	repairProfile
	repairClaim
	repairUnresolvable
)

// Reconciler finds accounts whose claim role and profile role disagree and
// rewrites the stale side. A valid claim always wins over the profile.
type Reconciler struct {
	source     RoleStateSource
	propagator *Propagator
	profiles   ProfileWriter
	workers    int
	legacyFlag bool
	logger     *slog.Logger
}

func NewReconciler(source RoleStateSource, propagator *Propagator, profiles ProfileWriter, workers int, legacyFlag bool, logger *slog.Logger) *Reconciler {
	if workers <= 0 {
		workers = 4
	}
	return &Reconciler{
		source:     source,
		propagator: propagator,
		profiles:   profiles,
		workers:    workers,
		legacyFlag: legacyFlag,
		logger:     logger,
	}
}

// Run reconciles every interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.ErrorContext(ctx, "reconcile pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single pass with a bounded pool of workers.
func (r *Reconciler) RunOnce(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	states, err := r.source.ListRoleStates(ctx)
	if err != nil {
		return report, err
	}
	report.Scanned = int64(len(states))

	jobs := make(chan RoleState)
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for state := range jobs {
				r.reconcile(ctx, state, &report)
			}
		}()
	}

feed:
	for _, state := range states {
		select {
		case jobs <- state:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	r.logger.InfoContext(ctx, "reconcile pass finished",
		"scanned", report.Scanned,
		"profile_repaired", atomic.LoadInt64(&report.ProfileRepaired),
		"claim_repaired", atomic.LoadInt64(&report.ClaimRepaired),
		"unresolvable", atomic.LoadInt64(&report.Unresolvable),
		"failed", atomic.LoadInt64(&report.Failed))
	return report, ctx.Err()
}

func (r *Reconciler) reconcile(ctx context.Context, state RoleState, report *ReconcileReport) {
	action, role := plan(state)
	switch action {
	case repairProfile:
		if err := r.profiles.UpsertProfile(ctx, state.UID, user.ProfilePatch{Role: &role}); err != nil {
			atomic.AddInt64(&report.Failed, 1)
			r.logger.ErrorContext(ctx, "profile repair failed", "uid", state.UID, "error", err)
			return
		}
		atomic.AddInt64(&report.ProfileRepaired, 1)
		obs.ReconcileRepair("profile")
		r.logger.InfoContext(ctx, "profile role repaired from claim", "uid", state.UID, "role", role.String())
	case repairClaim:
		if err := r.propagator.WriteClaim(ctx, state.UID, role, LegacyFlagIf(r.legacyFlag)); err != nil {
			atomic.AddInt64(&report.Failed, 1)
			r.logger.ErrorContext(ctx, "claim repair failed", "uid", state.UID, "error", err)
			return
		}
		atomic.AddInt64(&report.ClaimRepaired, 1)
		obs.ReconcileRepair("claim")
		r.logger.InfoContext(ctx, "claim role repaired from profile", "uid", state.UID, "role", role.String())
	case repairUnresolvable:
		atomic.AddInt64(&report.Unresolvable, 1)
		r.logger.WarnContext(ctx, "neither claim nor profile holds a valid role", "uid", state.UID)
	}
}

func plan(state RoleState) (repair, roles.Role) {
	claimRole, claimOK := claimRoleOf(state.CustomClaims)
	profileRole, profileOK := roles.FromClaim(state.ProfileRole)

	switch {
	case claimOK && profileOK && claimRole == profileRole:
		return repairNone, claimRole
	case claimOK:
		return repairProfile, claimRole
	case profileOK:
		return repairClaim, profileRole
	default:
		return repairUnresolvable, roles.Role{}
	}
}

func claimRoleOf(raw string) (roles.Role, bool) {
	if raw == "" {
		return roles.Role{}, false
	}
	var set map[string]any
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		return roles.Role{}, false
	}
	return roles.FromClaim(set["role"])
}
