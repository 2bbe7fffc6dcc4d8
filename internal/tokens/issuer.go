package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/snaptranslate/auth-service/internal/autherr"
)

const (
	AccessTTL  = 24 * time.Hour
	RefreshTTL = 7 * 24 * time.Hour
)

// Issuer signs and verifies both token kinds. Access and refresh tokens
// use distinct secrets, so an access token can never be replayed as a
// refresh token even with an attacker-controlled claim shape.
// Verification is a pure cryptographic/temporal check and never touches
// persisted state.
type Issuer struct {
	AccessSecret  []byte
	RefreshSecret []byte
}

func (i *Issuer) IssueAccess(subject string, roles []string) (string, error) {
	if roles == nil {
		roles = []string{}
	}
	claims := AccessClaims{
		Roles:     roles,
		TokenType: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(AccessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.AccessSecret)
}

func (i *Issuer) IssueRefresh(subject, jti string) (string, error) {
	claims := RefreshClaims{
		TokenType: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(RefreshTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.RefreshSecret)
}

func (i *Issuer) VerifyAccess(tokenStr string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := i.parse(tokenStr, &claims, i.AccessSecret); err != nil {
		return nil, err
	}
	if claims.TokenType != TypeAccess {
		return nil, autherr.ErrWrongTokenType
	}
	return &claims, nil
}

func (i *Issuer) VerifyRefresh(tokenStr string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := i.parse(tokenStr, &claims, i.RefreshSecret); err != nil {
		return nil, err
	}
	if claims.TokenType != TypeRefresh {
		return nil, autherr.ErrWrongTokenType
	}
	return &claims, nil
}

func (i *Issuer) parse(tokenStr string, claims jwt.Claims, secret []byte) error {
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	})
	switch {
	// Expiry wins over any other parse failure so a stale token is
	// always reported as expired.
	case err != nil && errors.Is(err, jwt.ErrTokenExpired):
		return autherr.ErrTokenExpired
	case err != nil && pastExpiry(claims):
		return autherr.ErrTokenExpired
	case err != nil:
		return autherr.ErrTokenMalformed
	case !tkn.Valid:
		return autherr.ErrTokenMalformed
	}
	return nil
}

// pastExpiry reports whether the decoded exp claim has passed. The
// parser rejects a bad signature before it ever validates claims, so a
// stale token with an invalid signature never carries ErrTokenExpired;
// the claims are still decoded, which lets expiry win here too.
func pastExpiry(claims jwt.Claims) bool {
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Now().After(exp.Time)
}
