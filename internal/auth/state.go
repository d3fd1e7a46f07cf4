package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultStateTTL はOAuth stateの有効期間。
const DefaultStateTTL = 10 * time.Minute

// ErrInvalidState はOAuth stateの検証失敗を表す。
var ErrInvalidState = errors.New("invalid oauth state")

// StateSigner はOAuthのstateパラメータをHS256署名付きJWTとして発行・検証する。
// subjectにプロバイダー名を入れ、別プロバイダーのコールバックへの流用を防ぐ。
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateSigner はStateSignerを生成する。ttlが0以下の場合はDefaultStateTTLを使う。
func NewStateSigner(secret string, ttl time.Duration) *StateSigner {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL はstateの有効期間を返す。
func (s *StateSigner) TTL() time.Duration {
	return s.ttl
}

// Issue は指定プロバイダー向けのstateを発行する。
func (s *StateSigner) Issue(provider string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   provider,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign state: %w", err)
	}
	return signed, nil
}

// Verify はstateの署名、有効期限、プロバイダーを検証する。
func (s *StateSigner) Verify(state, provider string) error {
	if state == "" {
		return ErrInvalidState
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(state, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithSubject(provider),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return nil
}
