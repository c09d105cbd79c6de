package identity

import (
	"encoding/json"
	"errors"
	"time"

	identityDatamodel "github.com/frahmantamala/securemind/internal/core/datamodel/identity"
	"github.com/frahmantamala/securemind/internal/roles"
)

// Error codes reported by the provider. Callers match on these rather than on
// error values.
const (
	CodeEmailExists   = "auth/email-already-exists"
	CodeInvalidEmail  = "auth/invalid-email"
	CodeWeakPassword  = "auth/weak-password"
	CodeUserNotFound  = "auth/user-not-found"
	CodeUserDisabled  = "auth/user-disabled"
	CodeWrongPassword = "auth/wrong-password"
	CodeInvalidToken  = "auth/invalid-id-token"
	CodeTokenExpired  = "auth/id-token-expired"
	CodeTokenRevoked  = "auth/id-token-revoked"
	CodeInvalidClaims = "auth/invalid-claims"
	CodeInternalError = "auth/internal-error"
)

type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Code + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func internalError(message string, cause error) *Error {
	return &Error{Code: CodeInternalError, Message: message, Cause: cause}
}

// ErrorCode returns the provider code carried by err, or "" when err did not
// come from the provider.
func ErrorCode(err error) string {
	var idErr *Error
	if errors.As(err, &idErr) {
		return idErr.Code
	}
	return ""
}

func IsUserNotFound(err error) bool {
	return ErrorCode(err) == CodeUserNotFound
}

// Account is the provider's view of a user.
type Account struct {
	UID              string         `json:"uid"`
	Email            string         `json:"email"`
	DisplayName      string         `json:"displayName,omitempty"`
	Disabled         bool           `json:"disabled"`
	CustomClaims     map[string]any `json:"customClaims,omitempty"`
	TokensValidAfter time.Time      `json:"tokensValidAfter,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// Role reads the role claim. It reports false when the claim is absent or not
// an exact role name.
func (a *Account) Role() (roles.Role, bool) {
	if a == nil {
		return roles.Role{}, false
	}
	return roles.FromClaim(a.CustomClaims["role"])
}

type CreateParams struct {
	Email       string
	Password    string
	DisplayName string
	Disabled    bool
}

// UpdateParams carries only the fields to change.
type UpdateParams struct {
	Email       *string
	Password    *string
	DisplayName *string
	Disabled    *bool
}

func (p UpdateParams) IsEmpty() bool {
	return p.Email == nil && p.Password == nil && p.DisplayName == nil && p.Disabled == nil
}

// Token is a verified ID token.
type Token struct {
	UID       string
	Email     string
	Claims    map[string]any
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Role reads the role claim as it was when the token was issued.
func (t *Token) Role() (roles.Role, bool) {
	if t == nil {
		return roles.Role{}, false
	}
	return roles.FromClaim(t.Claims["role"])
}

// RawRole is the role claim as a string, whatever its value.
func (t *Token) RawRole() string {
	if t == nil {
		return ""
	}
	s, _ := t.Claims["role"].(string)
	return s
}

type Tokens struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	UID          string `json:"uid"`
}

func FromDataModel(a *identityDatamodel.Account) (*Account, error) {
	claims, err := decodeClaims(a.CustomClaims)
	if err != nil {
		return nil, err
	}
	return &Account{
		UID:              a.ID,
		Email:            a.Email,
		DisplayName:      a.DisplayName,
		Disabled:         a.Disabled,
		CustomClaims:     claims,
		TokensValidAfter: a.TokensValidAfter,
		CreatedAt:        a.CreatedAt,
	}, nil
}

func decodeClaims(raw string) (map[string]any, error) {
	claims := map[string]any{}
	if raw == "" {
		return claims, nil
	}
	if err := json.Unmarshal([]byte(raw), &claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func encodeClaims(claims map[string]any) (string, error) {
	if len(claims) == 0 {
		return "", nil
	}
	b, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
