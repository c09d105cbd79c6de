package claims

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/securemind/internal"
	"github.com/frahmantamala/securemind/internal/identity"
	"github.com/frahmantamala/securemind/internal/obs"
	"github.com/frahmantamala/securemind/internal/roles"
	"github.com/frahmantamala/securemind/internal/user"
	"github.com/sethvargo/go-retry"
)

// ClaimWriter replaces an account's custom claims.
type ClaimWriter interface {
	SetCustomUserClaims(ctx context.Context, uid string, claims map[string]any) error
}

type ProfileWriter interface {
	UpsertProfile(ctx context.Context, uid string, patch user.ProfilePatch) error
}

type RetryConfig struct {
	Attempts  int
	BaseDelay time.Duration
}

// Propagator writes a role to the signed claim and then to the profile.
type Propagator struct {
	claims   ClaimWriter
	profiles ProfileWriter
	retry    RetryConfig
	logger   *slog.Logger
}

func NewPropagator(claims ClaimWriter, profiles ProfileWriter, cfg RetryConfig, logger *slog.Logger) *Propagator {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 50 * time.Millisecond
	}
	if cfg.Attempts < 0 {
		cfg.Attempts = 0
	}
	return &Propagator{
		claims:   claims,
		profiles: profiles,
		retry:    cfg,
		logger:   logger,
	}
}

type applyOptions struct {
	legacyFlag bool
}

type ApplyOption func(*applyOptions)

// WithLegacyRoleFlag also sets "<role>: true" in the claim set.
func WithLegacyRoleFlag() ApplyOption {
	return func(o *applyOptions) {
		o.legacyFlag = true
	}
}

// LegacyFlagIf returns WithLegacyRoleFlag when enabled, otherwise a no-op option.
func LegacyFlagIf(enabled bool) ApplyOption {
	if enabled {
		return WithLegacyRoleFlag()
	}
	return func(*applyOptions) {}
}

// ClaimSet builds the claim map written for role.
func ClaimSet(role roles.Role, opts ...ApplyOption) map[string]any {
	var o applyOptions
	for _, opt := range opts {
		opt(&o)
	}
	set := map[string]any{"role": role.String()}
	if o.legacyFlag {
		set[role.String()] = true
	}
	return set
}

// ApplyRole writes the claim, then upserts the profile with role and patch.
// If the claim write fails the profile is not touched. If the profile write
// fails the claim stays written.
func (p *Propagator) ApplyRole(ctx context.Context, uid string, role roles.Role, patch user.ProfilePatch, opts ...ApplyOption) error {
	if uid == "" {
		return internal.NewValidationError("uid is required", internal.ErrCodeMissingField)
	}
	if role.IsZero() {
		return internal.NewValidationError("role is required", internal.ErrCodeInvalidRole)
	}

	claimSet := ClaimSet(role, opts...)
	err := p.withRetry(ctx, func(ctx context.Context) error {
		return p.claims.SetCustomUserClaims(ctx, uid, claimSet)
	})
	if err != nil {
		obs.ClaimPropagation("claim_failed")
		p.logger.ErrorContext(ctx, "role claim write failed", "uid", uid, "role", role.String(), "error", err)
		return translateIdentityError(err)
	}

	patch.Role = &role
	err = p.withRetry(ctx, func(ctx context.Context) error {
		return p.profiles.UpsertProfile(ctx, uid, patch)
	})
	if err != nil {
		obs.ClaimPropagation("profile_failed")
		p.logger.ErrorContext(ctx, "profile role write failed after claim was set", "uid", uid, "role", role.String(), "error", err)
		return internal.NewInternalError("failed to update user profile", err)
	}

	obs.ClaimPropagation("applied")
	p.logger.InfoContext(ctx, "role propagated", "uid", uid, "role", role.String())
	return nil
}

// WriteClaim sets only the claim. Used when the profile already holds the role.
func (p *Propagator) WriteClaim(ctx context.Context, uid string, role roles.Role, opts ...ApplyOption) error {
	claimSet := ClaimSet(role, opts...)
	err := p.withRetry(ctx, func(ctx context.Context) error {
		return p.claims.SetCustomUserClaims(ctx, uid, claimSet)
	})
	if err != nil {
		return translateIdentityError(err)
	}
	return nil
}

func (p *Propagator) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(uint64(p.retry.Attempts), retry.NewExponential(p.retry.BaseDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !transient(err) {
			return err
		}
		return retry.RetryableError(err)
	})
}

// transient reports whether err may succeed on a later attempt.
func transient(err error) bool {
	switch identity.ErrorCode(err) {
	case identity.CodeUserNotFound, identity.CodeInvalidClaims, identity.CodeUserDisabled:
		return false
	}
	if _, ok := internal.IsAppError(err); ok {
		return false
	}
	return true
}

func translateIdentityError(err error) error {
	switch identity.ErrorCode(err) {
	case identity.CodeUserNotFound:
		return internal.NewNotFoundError("User not found", internal.ErrCodeUserNotFound)
	case identity.CodeInvalidClaims:
		return internal.NewValidationError("Invalid claims", internal.ErrCodeValidationFailed)
	}
	return internal.NewInternalError("failed to write role claim", err)
}
