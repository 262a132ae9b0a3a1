package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, carries a bad signature, or has unexpected claims.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when a well-signed token is past its expiry.
	ErrExpiredToken = errors.New("token expired")
)

// SessionClaims holds JWT claims for the session token.
// IssuedAtMs repeats iat in Unix milliseconds; iat alone only has second resolution.
type SessionClaims struct {
	jwt.RegisteredClaims
	IssuedAtMs int64 `json:"iat_ms,omitempty"`
}

// Verified is the result of verifying a session token.
type Verified struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenProvider issues and validates session JWTs. It signs with HS256 when built with a
// shared secret, or with RS256/ES256 when built with a key pair.
type TokenProvider struct {
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
	issuer    string
	ttl       time.Duration
	now       func() time.Time
}

// NewHMACTokenProvider returns a TokenProvider that signs and verifies with secret (HS256).
func NewHMACTokenProvider(secret []byte, issuer string, ttl time.Duration) *TokenProvider {
	return &TokenProvider{
		method:    jwt.SigningMethodHS256,
		signKey:   secret,
		verifyKey: secret,
		issuer:    issuer,
		ttl:       ttl,
		now:       time.Now,
	}
}

// NewKeyPairTokenProvider returns a TokenProvider that signs with the given private key (RS256 or ES256).
func NewKeyPairTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer string, ttl time.Duration) (*TokenProvider, error) {
	var method jwt.SigningMethod
	switch privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return nil, ErrInvalidKey
	}
	return &TokenProvider{
		method:    method,
		signKey:   privateKey,
		verifyKey: publicKey,
		issuer:    issuer,
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

// WithClock returns a copy of p that reads the current time from now. Used by tests.
func (p *TokenProvider) WithClock(now func() time.Time) *TokenProvider {
	c := *p
	c.now = now
	return &c
}

// TTL returns the token lifetime.
func (p *TokenProvider) TTL() time.Duration { return p.ttl }

// Sign issues a session token for subject. Returns the token string and its expiration time.
func (p *TokenProvider) Sign(subject string) (token string, expiresAt time.Time, err error) {
	if subject == "" {
		return "", time.Time{}, ErrInvalidToken
	}
	now := p.now().UTC()
	expiresAt = now.Add(p.ttl)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		IssuedAtMs: now.UnixMilli(),
	}
	t := jwt.NewWithClaims(p.method, claims)
	token, err = t.SignedString(p.signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt.Truncate(time.Second), nil
}

// Verify parses and validates the token (algorithm, signature, exp, iss).
// Returns ErrExpiredToken when only the expiry check fails and ErrInvalidToken otherwise.
func (p *TokenProvider) Verify(tokenString string) (*Verified, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != p.method.Alg() {
			return nil, ErrInvalidToken
		}
		return p.verifyKey, nil
	},
		jwt.WithIssuer(p.issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Subject == "" || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}
	issuedAt := claims.IssuedAt.Time
	if claims.IssuedAtMs != 0 {
		ms := time.UnixMilli(claims.IssuedAtMs).UTC()
		if ms.Unix() != issuedAt.Unix() {
			return nil, ErrInvalidToken
		}
		issuedAt = ms
	}
	return &Verified{
		Subject:   claims.Subject,
		IssuedAt:  issuedAt,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
