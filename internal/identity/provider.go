package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	identityDatamodel "github.com/frahmantamala/securemind/internal/core/datamodel/identity"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const maxClaimsPayloadSize = 1000

var ErrAccountNotFound = errors.New("account not found")

type Repository interface {
	Create(ctx context.Context, account *identityDatamodel.Account) error
	GetByID(ctx context.Context, id string) (*identityDatamodel.Account, error)
	GetByEmail(ctx context.Context, email string) (*identityDatamodel.Account, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	BumpSessionVersion(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

type Options struct {
	BCryptCost        int
	MinPasswordLength int
}

// Provider owns accounts, their custom claims and their sessions.
type Provider struct {
	repo              Repository
	tokens            *TokenIssuer
	bcryptCost        int
	minPasswordLength int
	logger            *slog.Logger
	now               func() time.Time
}

func NewProvider(repo Repository, tokens *TokenIssuer, opts Options, logger *slog.Logger) *Provider {
	if opts.BCryptCost == 0 {
		opts.BCryptCost = bcrypt.DefaultCost
	}
	if opts.MinPasswordLength == 0 {
		opts.MinPasswordLength = 6
	}
	return &Provider{
		repo:              repo,
		tokens:            tokens,
		bcryptCost:        opts.BCryptCost,
		minPasswordLength: opts.MinPasswordLength,
		logger:            logger,
		now:               time.Now,
	}
}

func (p *Provider) CreateUser(ctx context.Context, params CreateParams) (*Account, error) {
	email, err := normalizeEmail(params.Email)
	if err != nil {
		return nil, err
	}
	if err := p.checkPassword(params.Password); err != nil {
		return nil, err
	}
	if err := p.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), p.bcryptCost)
	if err != nil {
		return nil, internalError("failed to hash password", err)
	}

	now := p.now().UTC()
	row := &identityDatamodel.Account{
		ID:               uuid.NewString(),
		Email:            email,
		PasswordHash:     string(hash),
		DisplayName:      strings.TrimSpace(params.DisplayName),
		Disabled:         params.Disabled,
		TokensValidAfter: now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := p.repo.Create(ctx, row); err != nil {
		return nil, internalError("failed to create account", err)
	}

	p.logger.InfoContext(ctx, "identity account created", "uid", row.ID)
	return FromDataModel(row)
}

func (p *Provider) GetUser(ctx context.Context, uid string) (*Account, error) {
	row, err := p.load(ctx, uid)
	if err != nil {
		return nil, err
	}
	return FromDataModel(row)
}

func (p *Provider) GetUserByEmail(ctx context.Context, email string) (*Account, error) {
	row, err := p.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, newError(CodeUserNotFound, "no user record for the given email")
		}
		return nil, internalError("failed to load account", err)
	}
	return FromDataModel(row)
}

// UpdateUser applies only the supplied fields.
func (p *Provider) UpdateUser(ctx context.Context, uid string, params UpdateParams) (*Account, error) {
	row, err := p.load(ctx, uid)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if params.Email != nil {
		email, err := normalizeEmail(*params.Email)
		if err != nil {
			return nil, err
		}
		if email != row.Email {
			if err := p.ensureEmailFree(ctx, email, uid); err != nil {
				return nil, err
			}
			fields["email"] = email
		}
	}
	if params.Password != nil {
		if err := p.checkPassword(*params.Password); err != nil {
			return nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*params.Password), p.bcryptCost)
		if err != nil {
			return nil, internalError("failed to hash password", err)
		}
		fields["password_hash"] = string(hash)
	}
	if params.DisplayName != nil {
		fields["display_name"] = strings.TrimSpace(*params.DisplayName)
	}
	if params.Disabled != nil {
		fields["disabled"] = *params.Disabled
	}

	if len(fields) > 0 {
		fields["updated_at"] = p.now().UTC()
		if err := p.repo.Update(ctx, uid, fields); err != nil {
			return nil, p.mapRepoError("failed to update account", err)
		}
	}
	return p.GetUser(ctx, uid)
}

func (p *Provider) DeleteUser(ctx context.Context, uid string) error {
	if err := p.repo.Delete(ctx, uid); err != nil {
		return p.mapRepoError("failed to delete account", err)
	}
	p.logger.InfoContext(ctx, "identity account deleted", "uid", uid)
	return nil
}

// SetCustomUserClaims replaces the whole claim set. Keys not present in claims
// are dropped.
func (p *Provider) SetCustomUserClaims(ctx context.Context, uid string, claims map[string]any) error {
	encoded, err := encodeClaims(claims)
	if err != nil {
		return newError(CodeInvalidClaims, "claims must be JSON serializable")
	}
	if len(encoded) > maxClaimsPayloadSize {
		return newError(CodeInvalidClaims, "claims payload too large")
	}

	fields := map[string]interface{}{
		"custom_claims": encoded,
		"updated_at":    p.now().UTC(),
	}
	if err := p.repo.Update(ctx, uid, fields); err != nil {
		return p.mapRepoError("failed to write claims", err)
	}
	return nil
}

// RevokeRefreshTokens invalidates every token issued to uid so far.
func (p *Provider) RevokeRefreshTokens(ctx context.Context, uid string) error {
	if err := p.repo.BumpSessionVersion(ctx, uid, p.now().UTC()); err != nil {
		return p.mapRepoError("failed to revoke sessions", err)
	}
	p.logger.InfoContext(ctx, "sessions revoked", "uid", uid)
	return nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (*Tokens, error) {
	row, err := p.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, newError(CodeWrongPassword, "invalid email or password")
		}
		return nil, internalError("failed to load account", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(password)); err != nil {
		return nil, newError(CodeWrongPassword, "invalid email or password")
	}
	if row.Disabled {
		return nil, newError(CodeUserDisabled, "user account is disabled")
	}
	return p.issueFor(row)
}

// Refresh exchanges a refresh token for a new pair carrying the current claims.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	claims, err := p.tokens.parse(refreshToken, tokenUseRefresh)
	if err != nil {
		return nil, err
	}
	row, err := p.checkSession(ctx, claims)
	if err != nil {
		return nil, err
	}
	return p.issueFor(row)
}

// VerifyIDToken checks signature, expiry, account state and revocation.
func (p *Provider) VerifyIDToken(ctx context.Context, idToken string) (*Token, error) {
	claims, err := p.tokens.parse(idToken, tokenUseID)
	if err != nil {
		return nil, err
	}
	if _, err := p.checkSession(ctx, claims); err != nil {
		return nil, err
	}

	custom := claims.Claims
	if custom == nil {
		custom = map[string]any{}
	}
	token := &Token{
		UID:    claims.Subject,
		Email:  claims.Email,
		Claims: custom,
	}
	if claims.IssuedAt != nil {
		token.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		token.ExpiresAt = claims.ExpiresAt.Time
	}
	return token, nil
}

func (p *Provider) checkSession(ctx context.Context, claims *tokenClaims) (*identityDatamodel.Account, error) {
	row, err := p.repo.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, newError(CodeUserNotFound, "token subject no longer exists")
		}
		return nil, internalError("failed to load account", err)
	}
	if row.Disabled {
		return nil, newError(CodeUserDisabled, "user account is disabled")
	}
	if claims.SessionVersion != row.SessionVersion {
		return nil, newError(CodeTokenRevoked, "token has been revoked")
	}
	return row, nil
}

func (p *Provider) issueFor(row *identityDatamodel.Account) (*Tokens, error) {
	claims, err := decodeClaims(row.CustomClaims)
	if err != nil {
		return nil, internalError("stored claims are corrupt", err)
	}
	return p.tokens.issue(subject{
		uid:            row.ID,
		email:          row.Email,
		claims:         claims,
		sessionVersion: row.SessionVersion,
	})
}

func (p *Provider) load(ctx context.Context, uid string) (*identityDatamodel.Account, error) {
	if uid == "" {
		return nil, newError(CodeUserNotFound, "uid is empty")
	}
	row, err := p.repo.GetByID(ctx, uid)
	if err != nil {
		return nil, p.mapRepoError("failed to load account", err)
	}
	return row, nil
}

func (p *Provider) ensureEmailFree(ctx context.Context, email, ownerUID string) error {
	existing, err := p.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil
		}
		return internalError("failed to check email", err)
	}
	if existing.ID != ownerUID {
		return newError(CodeEmailExists, "the email address is already in use by another account")
	}
	return nil
}

func (p *Provider) checkPassword(password string) error {
	if len(password) < p.minPasswordLength {
		return newError(CodeWeakPassword, "password is too weak")
	}
	return nil
}

func (p *Provider) mapRepoError(message string, err error) error {
	if errors.Is(err, ErrAccountNotFound) {
		return newError(CodeUserNotFound, "no user record for the given uid")
	}
	return internalError(message, err)
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", newError(CodeInvalidEmail, "email is empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", newError(CodeInvalidEmail, "email is malformed")
	}
	return email, nil
}
