package auth

import (
	"context"

	"github.com/frahmantamala/securemind/internal"
	"github.com/frahmantamala/securemind/internal/identity"
)

// AccountProvider is the part of the identity provider the auth endpoints use.
type AccountProvider interface {
	CreateUser(ctx context.Context, params identity.CreateParams) (*identity.Account, error)
	SignIn(ctx context.Context, email, password string) (*identity.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*identity.Tokens, error)
	VerifyIDToken(ctx context.Context, idToken string) (*identity.Token, error)
}

// AuthService performs authentication-related business logic.
type AuthService interface {
	Signup(ctx context.Context, dto SignupDTO) (*identity.Tokens, error)
	Authenticate(ctx context.Context, dto LoginDTO) (*identity.Tokens, error)
	RefreshTokens(ctx context.Context, dto RefreshTokenDTO) (*identity.Tokens, error)
	VerifyBearer(ctx context.Context, token string) (internal.Actor, error)
}

// translateError maps identity provider codes onto transport errors.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	switch identity.ErrorCode(err) {
	case identity.CodeEmailExists:
		return internal.NewConflictError("Email already exists", internal.ErrCodeEmailExists)
	case identity.CodeInvalidEmail:
		return internal.NewValidationError("Invalid email format", internal.ErrCodeInvalidEmail)
	case identity.CodeWeakPassword:
		return internal.NewValidationError("Password is too weak", internal.ErrCodeWeakPassword)
	case identity.CodeUserNotFound, identity.CodeWrongPassword:
		return internal.ErrInvalidLogin
	case identity.CodeUserDisabled:
		return internal.ErrUserDisabled
	case identity.CodeTokenRevoked:
		return internal.ErrTokenRevoked
	case identity.CodeInvalidToken, identity.CodeTokenExpired:
		return internal.ErrInvalidToken
	}
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	return internal.NewInternalError("authentication failed", err)
}
