package security

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ChallengeClaims are the claims of the short-lived token that carries a
// pending second-factor challenge between the login hop and the verify hop.
type ChallengeClaims struct {
	Methods []string `json:"methods"`
	jwt.RegisteredClaims
}

// ChallengeTokenService signs and parses MFA challenge tokens.
type ChallengeTokenService interface {
	Issue(userID uuid.UUID, methods []string) (string, error)
	Parse(token string) (uuid.UUID, []string, error)
}

type hmacChallengeTokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewChallengeTokenService creates an HMAC-SHA256 signed token service.
func NewChallengeTokenService(secret, issuer string, ttl time.Duration) ChallengeTokenService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &hmacChallengeTokenService{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

func (s *hmacChallengeTokenService) Issue(userID uuid.UUID, methods []string) (string, error) {
	now := time.Now()
	claims := ChallengeClaims{
		Methods: methods,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign challenge token: %w", err)
	}
	return signed, nil
}

func (s *hmacChallengeTokenService) Parse(tokenString string) (uuid.UUID, []string, error) {
	claims := &ChallengeClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("invalid challenge token: %w", err)
	}
	if !token.Valid {
		return uuid.Nil, nil, fmt.Errorf("invalid challenge token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("invalid challenge token subject: %w", err)
	}
	return userID, claims.Methods, nil
}

var _ ChallengeTokenService = (*hmacChallengeTokenService)(nil)
