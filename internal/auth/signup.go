package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hitoshi/pensinova/internal/model"
	"github.com/hitoshi/pensinova/internal/password"
	"github.com/hitoshi/pensinova/internal/repository"
)

// StrategySignup はローカル登録戦略の名前。
const StrategySignup = "signup"

// signupInput はサインアップ入力の検証ルール。
type signupInput struct {
	FirstName string `validate:"required,max=100"`
	LastName  string `validate:"required,max=100"`
	Email     string `validate:"required,email,max=320"`
	Password  string `validate:"required"`
}

// SignupStrategy はローカルアカウントを作成し、作成したユーザーを返す。
type SignupStrategy struct {
	users     repository.UserRepository
	hasher    password.Hasher
	validate  *validator.Validate
	sanitizer NameSanitizer
}

// NewSignupStrategy はSignupStrategyを生成する。sanitizerがnilの場合は氏名をそのまま保存する。
func NewSignupStrategy(users repository.UserRepository, hasher password.Hasher, sanitizer NameSanitizer) *SignupStrategy {
	if sanitizer == nil {
		sanitizer = noopSanitizer{}
	}
	return &SignupStrategy{
		users:     users,
		hasher:    hasher,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		sanitizer: sanitizer,
	}
}

// Name は戦略名を返す。
func (s *SignupStrategy) Name() string {
	return StrategySignup
}

// Authenticate は入力を検証してユーザーを作成する。
// パスワード不一致の場合はストアに一切アクセスしない。
// メールアドレス重複の最終判定はストアの一意制約で行う。
func (s *SignupStrategy) Authenticate(ctx context.Context, cred Credentials) Result {
	if cred.Password != cred.ConfirmPassword {
		return fail(ReasonPasswordMismatch, nil)
	}

	in := signupInput{
		FirstName: strings.TrimSpace(s.sanitizer.SanitizeName(cred.FirstName)),
		LastName:  strings.TrimSpace(s.sanitizer.SanitizeName(cred.LastName)),
		Email:     strings.TrimSpace(cred.Email),
		Password:  cred.Password,
	}
	if err := s.validate.Struct(in); err != nil {
		return fail(ReasonInvalidInput, describeValidation(err))
	}
	if len(in.Password) > password.MaxBytes {
		return fail(ReasonInvalidInput, fmt.Errorf("password longer than %d bytes", password.MaxBytes))
	}

	existing, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return fail(ReasonStoreFailure, fmt.Errorf("failed to find user: %w", err))
	}
	if existing != nil {
		return fail(ReasonEmailAlreadyExists, nil)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, password.ErrTooLong) {
			return fail(ReasonInvalidInput, err)
		}
		return fail(ReasonStoreFailure, err)
	}

	user := &model.User{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Password:  &hash,
		Photo:     cred.Photo,
	}
	if err := s.users.Insert(ctx, user); err != nil {
		if errors.Is(err, model.ErrConstraintViolation) {
			return fail(ReasonEmailAlreadyExists, err)
		}
		return fail(ReasonStoreFailure, err)
	}

	return success(user)
}

// describeValidation はvalidatorのエラーをフィールド名と規則の一覧にまとめる。
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field()+":"+fe.Tag())
	}
	return fmt.Errorf("validation failed: %s", strings.Join(fields, ", "))
}

// compile-time interface check
var _ Strategy = (*SignupStrategy)(nil)
