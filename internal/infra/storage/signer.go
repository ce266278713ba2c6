package storage

import (
	"errors"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// SignatureParam carries a media signature in the query string.
	SignatureParam = "sig"

	mediaAudience = "media"
)

// ErrInvalidSignature is returned for missing, forged, expired or mismatched media signatures.
var ErrInvalidSignature = errors.New("storage: invalid or expired media signature")

// MediaSigner issues short-lived HS256 tokens bound to one storage key, so a
// locally served URL grants exactly the rendition it names.
type MediaSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewMediaSigner returns a signer whose signatures live for ttl.
func NewMediaSigner(secret []byte, ttl time.Duration) *MediaSigner {
	return &MediaSigner{secret: secret, ttl: ttl, now: time.Now}
}

// Sign returns a token valid for key only.
func (s *MediaSigner) Sign(key string) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("storage: media signing secret is not configured")
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   key,
		Audience:  jwt.ClaimStrings{mediaAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks that token was issued for key and has not expired.
func (s *MediaSigner) Verify(key, token string) error {
	if len(s.secret) == 0 || token == "" {
		return ErrInvalidSignature
	}
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(mediaAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.Subject != key {
		return ErrInvalidSignature
	}
	return nil
}

// SignedURL appends a signature for key to base + "/" + key. A nil signer
// leaves the URL unsigned.
func (s *MediaSigner) SignedURL(base, key string) (string, error) {
	raw := base + "/" + key
	if s == nil {
		return raw, nil
	}
	token, err := s.Sign(key)
	if err != nil {
		return "", err
	}
	return raw + "?" + SignatureParam + "=" + url.QueryEscape(token), nil
}
