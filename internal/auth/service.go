package auth

import (
	"context"
	"log/slog"
	"strings"

	"github.com/frahmantamala/securemind/internal"
	"github.com/frahmantamala/securemind/internal/core/events"
	"github.com/frahmantamala/securemind/internal/identity"
)

// Service is the main auth service with dependencies
type Service struct {
	accounts AccountProvider
	events   events.Publisher
	logger   *slog.Logger
}

// NewService creates a new auth service. Sign-ups are announced on publisher.
func NewService(accounts AccountProvider, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		accounts: accounts,
		events:   publisher,
		logger:   logger,
	}
}

// Signup creates the account, runs the first sign-in handlers and signs the
// new user in. Handler failures are logged; the tokens are returned anyway.
func (s *Service) Signup(ctx context.Context, dto SignupDTO) (*identity.Tokens, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	account, err := s.accounts.CreateUser(ctx, identity.CreateParams{
		Email:       dto.Email,
		Password:    dto.Password,
		DisplayName: strings.TrimSpace(dto.DisplayName),
	})
	if err != nil {
		return nil, translateError(err)
	}
	s.logger.InfoContext(ctx, "account signed up", "uid", account.UID)

	if s.events != nil {
		if err := s.events.PublishSync(ctx, events.NewUserSignedUpEvent(account.UID, account.Email)); err != nil {
			s.logger.ErrorContext(ctx, "first sign-in handlers failed", "uid", account.UID, "error", err)
		}
	}

	tokens, err := s.accounts.SignIn(ctx, account.Email, dto.Password)
	if err != nil {
		return nil, translateError(err)
	}
	return tokens, nil
}

// Authenticate validates credentials and returns tokens
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (*identity.Tokens, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	tokens, err := s.accounts.SignIn(ctx, dto.Email, dto.Password)
	if err != nil {
		s.logger.WarnContext(ctx, "sign-in rejected", "code", identity.ErrorCode(err))
		return nil, translateError(err)
	}
	return tokens, nil
}

// RefreshTokens exchanges a refresh token for a new pair carrying the current claims.
func (s *Service) RefreshTokens(ctx context.Context, dto RefreshTokenDTO) (*identity.Tokens, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	tokens, err := s.accounts.Refresh(ctx, dto.RefreshToken)
	if err != nil {
		return nil, translateError(err)
	}
	return tokens, nil
}

// VerifyBearer turns an ID token into the request's actor.
func (s *Service) VerifyBearer(ctx context.Context, token string) (internal.Actor, error) {
	if token == "" {
		return internal.Actor{}, internal.ErrMissingToken
	}
	verified, err := s.accounts.VerifyIDToken(ctx, token)
	if err != nil {
		return internal.Actor{}, translateError(err)
	}
	return internal.Actor{
		UserID: verified.UID,
		Email:  verified.Email,
		Role:   verified.RawRole(),
	}, nil
}
