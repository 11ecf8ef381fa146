package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired, or signed with the wrong key.
	ErrInvalidToken = errors.New("invalid token")
)

// AccessClaims holds JWT claims for the access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// RefreshClaims holds JWT claims for the refresh token. Only the subject and a jti are carried.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// signingKey pairs a signing method with the keys used to sign and verify.
type signingKey struct {
	method jwt.SigningMethod
	sign   any
	verify any
}

func hmacKey(secret string) signingKey {
	b := []byte(secret)
	return signingKey{method: jwt.SigningMethodHS256, sign: b, verify: b}
}

func asymmetricKey(priv crypto.Signer, pub crypto.PublicKey) (signingKey, error) {
	switch pub.(type) {
	case *rsa.PublicKey:
		return signingKey{method: jwt.SigningMethodRS256, sign: priv, verify: pub}, nil
	case *ecdsa.PublicKey:
		return signingKey{method: jwt.SigningMethodES256, sign: priv, verify: pub}, nil
	default:
		return signingKey{}, ErrInvalidKey
	}
}

// TokenOptions configures a TokenProvider.
type TokenOptions struct {
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Now defaults to time.Now. Tests inject a fixed clock.
	Now func() time.Time
}

// TokenProvider issues and validates access and refresh JWTs. Access and refresh tokens are signed
// with distinct keys, so a refresh token is never accepted as an access token and vice versa.
type TokenProvider struct {
	access     signingKey
	refresh    signingKey
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenProvider returns an HS256 TokenProvider. The two secrets must differ.
func NewTokenProvider(accessSecret, refreshSecret string, opts TokenOptions) (*TokenProvider, error) {
	if accessSecret == "" || refreshSecret == "" || accessSecret == refreshSecret {
		return nil, ErrInvalidKey
	}
	return newProvider(hmacKey(accessSecret), hmacKey(refreshSecret), opts), nil
}

// NewKeyTokenProvider returns a TokenProvider that signs access tokens with priv (RS256 or ES256)
// and refresh tokens with the HS256 refreshSecret.
func NewKeyTokenProvider(priv crypto.Signer, pub crypto.PublicKey, refreshSecret string, opts TokenOptions) (*TokenProvider, error) {
	if refreshSecret == "" {
		return nil, ErrInvalidKey
	}
	access, err := asymmetricKey(priv, pub)
	if err != nil {
		return nil, err
	}
	return newProvider(access, hmacKey(refreshSecret), opts), nil
}

func newProvider(access, refresh signingKey, opts TokenOptions) *TokenProvider {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &TokenProvider{
		access:     access,
		refresh:    refresh,
		issuer:     opts.Issuer,
		audience:   opts.Audience,
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		now:        now,
	}
}

// AccessTTL returns the configured access token lifetime.
func (p *TokenProvider) AccessTTL() time.Duration { return p.accessTTL }

// IssueAccess issues a short-lived access JWT carrying the user's id, email and role names.
func (p *TokenProvider) IssueAccess(userID, email string, roles []string) (token string, expiresAt time.Time, err error) {
	now := p.now().UTC()
	expiresAt = now.Add(p.accessTTL)
	if roles == nil {
		roles = []string{}
	}
	claims := AccessClaims{
		RegisteredClaims: p.registered(userID, now, expiresAt, ""),
		Email:            email,
		Roles:            roles,
	}
	token, err = jwt.NewWithClaims(p.access.method, claims).SignedString(p.access.sign)
	return token, expiresAt, err
}

// IssueRefresh issues a long-lived refresh JWT. Each token carries a random jti so two tokens
// issued for the same user in the same second never collide.
func (p *TokenProvider) IssueRefresh(userID string) (token string, expiresAt time.Time, err error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := p.now().UTC()
	expiresAt = now.Add(p.refreshTTL)
	claims := RefreshClaims{RegisteredClaims: p.registered(userID, now, expiresAt, jti)}
	token, err = jwt.NewWithClaims(p.refresh.method, claims).SignedString(p.refresh.sign)
	return token, expiresAt, err
}

func (p *TokenProvider) registered(subject string, now, exp time.Time, jti string) jwt.RegisteredClaims {
	rc := jwt.RegisteredClaims{
		ID:        jti,
		Subject:   subject,
		Issuer:    p.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	if p.audience != "" {
		rc.Audience = jwt.ClaimStrings{p.audience}
	}
	return rc
}

// ValidateAccess parses and validates the access token (signature, exp, iss, aud).
func (p *TokenProvider) ValidateAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := p.parse(tokenString, claims, p.access); err != nil {
		return nil, err
	}
	return claims, nil
}

// ValidateRefresh parses and validates the refresh token (signature, exp, iss, aud).
func (p *TokenProvider) ValidateRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := p.parse(tokenString, claims, p.refresh); err != nil {
		return nil, err
	}
	return claims, nil
}

func (p *TokenProvider) parse(tokenString string, claims jwt.Claims, key signingKey) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{key.method.Alg()}),
		jwt.WithTimeFunc(p.now),
		jwt.WithExpirationRequired(),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	if p.audience != "" {
		opts = append(opts, jwt.WithAudience(p.audience))
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return key.verify, nil
	}, opts...)
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return ErrInvalidToken
	}
	return nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
