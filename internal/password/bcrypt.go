// Package password はパスワードの一方向ハッシュ化と検証を提供する。
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxBytes はbcryptが扱える平文の最大バイト数。
const MaxBytes = 72

// ErrTooLong は平文がMaxBytesを超える場合に返る。
var ErrTooLong = bcrypt.ErrPasswordTooLong

// Hasher はパスワードハッシュのインターフェース。
type Hasher interface {
	// Hash は平文パスワードをソルト付きでハッシュ化する。
	Hash(plaintext string) (string, error)
	// Verify は平文パスワードとハッシュが一致するかを返す。
	Verify(plaintext, hash string) bool
}

// BcryptHasher はbcryptによるHasher実装。
// costはハードウェアの性能向上に合わせて引き上げられるよう設定値として保持する。
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher はBcryptHasherを生成する。
// costがbcryptの許容範囲外の場合は範囲内に丸める。
func NewBcryptHasher(cost int) *BcryptHasher {
	switch {
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{cost: cost}
}

// Cost は設定されたコストを返す。
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hash は平文パスワードをハッシュ化する。
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	return Hash(plaintext, h.cost)
}

// Verify は平文パスワードとハッシュを定数時間で比較する。
func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	return Verify(plaintext, hash)
}

// Hash は指定コストでパスワードをハッシュ化する。
func Hash(plaintext string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}

// Verify はパスワードがハッシュと一致する場合にtrueを返す。
// 不正な形式のハッシュは不一致として扱う。
func Verify(plaintext, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false
	}
	return err == nil
}

// compile-time interface check
var _ Hasher = (*BcryptHasher)(nil)
