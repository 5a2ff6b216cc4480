package services

import (
	"errors"
	"time"

	"noisewatch/internal/config"
	contextutils "noisewatch/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token purposes
const (
	PurposeAccess      = "access"
	PurposeVerifyEmail = "verify_email"
)

const tokenIssuer = "noisewatch"

// TokenClaims are the claims carried by every NoiseWatch token
type TokenClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 signed tokens
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a token service keyed by secret
func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for subject with the given purpose and lifetime
func (s *TokenService) Issue(subject, purpose string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := TokenClaims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", contextutils.WrapError(err, "failed to sign token")
	}
	return signed, nil
}

// IssueAccessToken returns a bearer token for userID
func (s *TokenService) IssueAccessToken(userID string) (string, error) {
	return s.Issue(userID, PurposeAccess, config.AccessTokenTTL)
}

// IssueVerificationToken returns the token embedded in the verification link
func (s *TokenService) IssueVerificationToken(userID string) (string, error) {
	return s.Issue(userID, PurposeVerifyEmail, config.VerificationTokenTTL)
}

// Verify checks signature, expiry and purpose and returns the subject
func (s *TokenService) Verify(token, purpose string) (string, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", contextutils.WrapError(contextutils.ErrInvalidToken, "token has expired")
		}
		return "", contextutils.WrapError(contextutils.ErrInvalidToken, "token is invalid")
	}
	if claims.Purpose != purpose {
		return "", contextutils.WrapErrorf(contextutils.ErrInvalidToken, "token is not valid for %s", purpose)
	}
	if claims.Subject == "" {
		return "", contextutils.WrapError(contextutils.ErrInvalidToken, "token has no subject")
	}
	return claims.Subject, nil
}
