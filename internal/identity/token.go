package identity

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenUseID      = "id"
	tokenUseRefresh = "refresh"
)

// tokenClaims is the payload of both ID and refresh tokens. Custom claims only
// travel in ID tokens.
type tokenClaims struct {
	Email          string         `json:"email,omitempty"`
	Claims         map[string]any `json:"claims,omitempty"`
	SessionVersion int64          `json:"sv"`
	TokenUse       string         `json:"token_use"`
	jwt.RegisteredClaims
}

type TokenIssuer struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
	idTTL      time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenIssuer(privateKey *rsa.PrivateKey, issuer string, idTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		issuer:     issuer,
		idTTL:      idTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

type subject struct {
	uid            string
	email          string
	claims         map[string]any
	sessionVersion int64
}

func (t *TokenIssuer) issue(s subject) (*Tokens, error) {
	now := t.now()

	idToken, err := t.sign(tokenClaims{
		Email:          s.email,
		Claims:         s.claims,
		SessionVersion: s.sessionVersion,
		TokenUse:       tokenUseID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   s.uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.idTTL)),
		},
	})
	if err != nil {
		return nil, err
	}

	refreshToken, err := t.sign(tokenClaims{
		SessionVersion: s.sessionVersion,
		TokenUse:       tokenUseRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   s.uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.refreshTTL)),
		},
	})
	if err != nil {
		return nil, err
	}

	return &Tokens{
		IDToken:      idToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(t.idTTL.Seconds()),
		UID:          s.uid,
	}, nil
}

func (t *TokenIssuer) sign(claims tokenClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(t.privateKey)
	if err != nil {
		return "", internalError("failed to sign token", err)
	}
	return signed, nil
}

func (t *TokenIssuer) parse(tokenString, use string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.publicKey, nil
	},
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &Error{Code: CodeTokenExpired, Message: "token has expired", Cause: err}
		}
		return nil, &Error{Code: CodeInvalidToken, Message: "token could not be verified", Cause: err}
	}
	if claims.TokenUse != use || claims.Subject == "" {
		return nil, newError(CodeInvalidToken, "token has the wrong type")
	}
	return claims, nil
}
