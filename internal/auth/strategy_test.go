package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/pensinova/internal/model"
	"github.com/hitoshi/pensinova/internal/repository"
)

func hashedUser(id, email, plain string) *model.User {
	h := "hashed:" + plain
	return &model.User{ID: id, FirstName: "A", LastName: "B", Email: email, Password: &h}
}

// --- LocalStrategy ---

func TestLocalStrategy_Success(t *testing.T) {
	repo := &mockUserRepo{
		findByEmailFn: func(_ context.Context, email string) (*model.User, error) {
			return hashedUser("user1", email, "pw"), nil
		},
	}
	s := NewLocalStrategy(repo, &plainHasher{})

	res := s.Authenticate(context.Background(), Credentials{Email: "a@b.com", Password: "pw"})
	if !res.OK() {
		t.Fatalf("Authenticate() failure = %v", res.Failure)
	}
	if res.User.ID != "user1" {
		t.Errorf("User.ID = %q, want user1", res.User.ID)
	}
	if res.Redirect != DefaultRedirect {
		t.Errorf("Redirect = %q, want %q", res.Redirect, DefaultRedirect)
	}
}

func TestLocalStrategy_UnknownEmail_UserNotFound(t *testing.T) {
	s := NewLocalStrategy(&mockUserRepo{}, &plainHasher{})

	res := s.Authenticate(context.Background(), Credentials{Email: "nobody@example.com", Password: "pw"})
	if res.OK() || res.Failure.Reason != ReasonUserNotFound {
		t.Fatalf("Authenticate() = %+v, want UserNotFound", res)
	}
}

// 正しいメールアドレスで誤ったパスワードの場合は常にWrongPasswordになること
func TestLocalStrategy_WrongPassword_NeverUserNotFound(t *testing.T) {
	repo := &mockUserRepo{
		findByEmailFn: func(_ context.Context, email string) (*model.User, error) {
			return hashedUser("user1", email, "right"), nil
		},
	}
	s := NewLocalStrategy(repo, &plainHasher{})

	for _, pw := range []string{"wrong", "", "RIGHT", "right "} {
		res := s.Authenticate(context.Background(), Credentials{Email: "a@b.com", Password: pw})
		if res.OK() {
			t.Fatalf("password %q should not authenticate", pw)
		}
		if res.Failure.Reason != ReasonWrongPassword {
			t.Errorf("password %q: Reason = %q, want %q", pw, res.Failure.Reason, ReasonWrongPassword)
		}
	}
}

func TestLocalStrategy_ProviderUserWithoutPassword_WrongPassword(t *testing.T) {
	repo := &mockUserRepo{
		findByEmailFn: func(_ context.Context, email string) (*model.User, error) {
			return &model.User{ID: "g123", Email: email}, nil
		},
	}
	s := NewLocalStrategy(repo, &plainHasher{})

	res := s.Authenticate(context.Background(), Credentials{Email: "g@example.com", Password: ""})
	if res.OK() || res.Failure.Reason != ReasonWrongPassword {
		t.Fatalf("Authenticate() = %+v, want WrongPassword", res)
	}
}

func TestLocalStrategy_StoreError_StoreFailure(t *testing.T) {
	repo := &mockUserRepo{
		findByEmailFn: func(context.Context, string) (*model.User, error) {
			return nil, errors.New("connection refused")
		},
	}
	s := NewLocalStrategy(repo, &plainHasher{})

	res := s.Authenticate(context.Background(), Credentials{Email: "a@b.com", Password: "pw"})
	if res.OK() || res.Failure.Reason != ReasonStoreFailure {
		t.Fatalf("Authenticate() = %+v, want StoreFailure", res)
	}
	if res.Failure.Reason.Kind() != KindStore {
		t.Errorf("Kind() = %v, want KindStore", res.Failure.Reason.Kind())
	}
}

// --- SignupStrategy ---

func validSignup() Credentials {
	return Credentials{
		FirstName:       "A",
		LastName:        "B",
		Email:           "a@b.com",
		Password:        "x",
		ConfirmPassword: "x",
	}
}

func TestSignupStrategy_EmptyStore_CreatesUser1(t *testing.T) {
	repo := repository.NewMemoryUserRepo()
	s := NewSignupStrategy(repo, &plainHasher{}, nil)

	res := s.Authenticate(context.Background(), validSignup())
	if !res.OK() {
		t.Fatalf("Authenticate() failure = %v", res.Failure)
	}
	if res.User.ID != "user1" {
		t.Errorf("User.ID = %q, want user1", res.User.ID)
	}
	if res.Redirect != "/home" {
		t.Errorf("Redirect = %q, want /home", res.Redirect)
	}
	if res.User.Password == nil || *res.User.Password != "hashed:x" {
		t.Errorf("Password = %v, want hashed value", res.User.Password)
	}

	stored, _ := repo.FindByID(context.Background(), "user1")
	if stored == nil || stored.Email != "a@b.com" {
		t.Errorf("stored user = %+v", stored)
	}
}

// パスワード不一致の場合はストアを一切変更しないこと
func TestSignupStrategy_PasswordMismatch_NeverTouchesStore(t *testing.T) {
	touched := false
	repo := &mockUserRepo{
		findByEmailFn: func(context.Context, string) (*model.User, error) {
			touched = true
			return nil, nil
		},
	}
	s := NewSignupStrategy(repo, &plainHasher{}, nil)

	cred := validSignup()
	cred.ConfirmPassword = "y"
	res := s.Authenticate(context.Background(), cred)

	if res.OK() || res.Failure.Reason != ReasonPasswordMismatch {
		t.Fatalf("Authenticate() = %+v, want PasswordMismatch", res)
	}
	if res.Failure.Reason.Kind() != KindValidation {
		t.Errorf("Kind() = %v, want KindValidation", res.Failure.Reason.Kind())
	}
	if repo.insertCalls != 0 {
		t.Errorf("Insert called %d times, want 0", repo.insertCalls)
	}
	if touched {
		t.Error("store should not be queried on password mismatch")
	}
}

func TestSignupStrategy_DuplicateEmail_EmailAlreadyExists(t *testing.T) {
	repo := &mockUserRepo{
		findByEmailFn: func(_ context.Context, email string) (*model.User, error) {
			return hashedUser("user1", email, "x"), nil
		},
	}
	s := NewSignupStrategy(repo, &plainHasher{}, nil)

	res := s.Authenticate(context.Background(), validSignup())
	if res.OK() || res.Failure.Reason != ReasonEmailAlreadyExists {
		t.Fatalf("Authenticate() = %+v, want EmailAlreadyExists", res)
	}
	if repo.insertCalls != 0 {
		t.Errorf("Insert called %d times, want 0", repo.insertCalls)
	}
}

// 検索と挿入の間に同じメールアドレスが登録された場合はストアの一意制約で判定する
func TestSignupStrategy_ConcurrentDuplicate_EmailAlreadyExists(t *testing.T) {
	repo := &mockUserRepo{
		insertFn: func(context.Context, *model.User) error {
			return model.ErrConstraintViolation
		},
	}
	s := NewSignupStrategy(repo, &plainHasher{}, nil)

	res := s.Authenticate(context.Background(), validSignup())
	if res.OK() || res.Failure.Reason != ReasonEmailAlreadyExists {
		t.Fatalf("Authenticate() = %+v, want EmailAlreadyExists", res)
	}
}

func TestSignupStrategy_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Credentials)
	}{
		{"missing first name", func(c *Credentials) { c.FirstName = "" }},
		{"missing last name", func(c *Credentials) { c.LastName = "  " }},
		{"bad email", func(c *Credentials) { c.Email = "not-an-email" }},
		{"empty password", func(c *Credentials) { c.Password, c.ConfirmPassword = "", "" }},
		{"too long password", func(c *Credentials) {
			c.Password = strings.Repeat("p", 73)
			c.ConfirmPassword = c.Password
		}},
		{"first name too long", func(c *Credentials) { c.FirstName = strings.Repeat("a", 101) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockUserRepo{}
			s := NewSignupStrategy(repo, &plainHasher{}, nil)
			cred := validSignup()
			tt.modify(&cred)

			res := s.Authenticate(context.Background(), cred)
			if res.OK() || res.Failure.Reason != ReasonInvalidInput {
				t.Fatalf("Authenticate() = %+v, want InvalidInput", res)
			}
			if repo.insertCalls != 0 {
				t.Errorf("Insert called %d times, want 0", repo.insertCalls)
			}
		})
	}
}

func TestSignupStrategy_SanitizesNamesAndKeepsPhoto(t *testing.T) {
	var inserted *model.User
	repo := &mockUserRepo{
		insertFn: func(_ context.Context, u *model.User) error {
			inserted = u
			u.ID = "user7"
			return nil
		},
	}
	s := NewSignupStrategy(repo, &plainHasher{}, bracketSanitizer{})

	cred := validSignup()
	photo := "/uploads/p.png"
	cred.Photo = &photo
	res := s.Authenticate(context.Background(), cred)
	if !res.OK() {
		t.Fatalf("Authenticate() failure = %v", res.Failure)
	}
	if inserted.FirstName != "[A]" || inserted.LastName != "[B]" {
		t.Errorf("names = %q %q, want sanitized", inserted.FirstName, inserted.LastName)
	}
	if inserted.Photo == nil || *inserted.Photo != photo {
		t.Errorf("Photo = %v, want %q", inserted.Photo, photo)
	}
	if res.User.ID != "user7" {
		t.Errorf("User.ID = %q, want store-assigned id", res.User.ID)
	}
}

func TestSignupStrategy_StoreError_StoreFailure(t *testing.T) {
	repo := &mockUserRepo{
		insertFn: func(context.Context, *model.User) error {
			return errors.New("disk full")
		},
	}
	s := NewSignupStrategy(repo, &plainHasher{}, nil)

	res := s.Authenticate(context.Background(), validSignup())
	if res.OK() || res.Failure.Reason != ReasonStoreFailure {
		t.Fatalf("Authenticate() = %+v, want StoreFailure", res)
	}
}

// --- ProviderStrategy ---

func googleProfile(id string) *mockProvider {
	return &mockProvider{
		name: "google",
		exchangeFn: func(_ context.Context, code string) (*model.ExternalProfile, error) {
			if code != "good-code" {
				return nil, model.NewProviderExchangeError("google", errors.New("invalid_grant"))
			}
			return &model.ExternalProfile{
				Provider:   "google",
				ExternalID: id,
				GivenName:  "Grace",
				FamilyName: "Hopper",
				Email:      "grace@example.com",
				PhotoURL:   "https://example.com/grace.png",
			}, nil
		},
	}
}

func TestProviderStrategy_FirstLogin_CreatesUserWithoutPassword(t *testing.T) {
	repo := repository.NewMemoryUserRepo()
	s := NewProviderStrategy(googleProfile("g123"), repo, nil)

	res := s.Authenticate(context.Background(), Credentials{Code: "good-code"})
	if !res.OK() {
		t.Fatalf("Authenticate() failure = %v", res.Failure)
	}
	if res.User.ID != "g123" {
		t.Errorf("User.ID = %q, want g123", res.User.ID)
	}
	if res.User.Password != nil {
		t.Error("provider user should have nil password")
	}
	if res.User.Photo == nil || *res.User.Photo != "https://example.com/grace.png" {
		t.Errorf("Photo = %v", res.User.Photo)
	}
	if s.Name() != "google" {
		t.Errorf("Name() = %q, want google", s.Name())
	}
}

// IdPの氏名が列幅を超える場合は文字単位で切り詰めて作成すること
func TestProviderStrategy_FirstLogin_LongNamesAreTruncated(t *testing.T) {
	given := strings.Repeat("é", 150)
	family := strings.Repeat("山", 255)
	provider := &mockProvider{
		name: "github",
		exchangeFn: func(context.Context, string) (*model.ExternalProfile, error) {
			return &model.ExternalProfile{Provider: "github", ExternalID: "42", GivenName: given, FamilyName: family}, nil
		},
	}
	var inserted *model.User
	repo := &mockUserRepo{
		insertFn: func(_ context.Context, u *model.User) error {
			inserted = u
			return nil
		},
	}

	res := NewProviderStrategy(provider, repo, nil).Authenticate(context.Background(), Credentials{Code: "c"})
	if !res.OK() {
		t.Fatalf("Authenticate() failure = %v", res.Failure)
	}
	if inserted == nil {
		t.Fatal("user should be inserted")
	}
	if inserted.FirstName != strings.Repeat("é", 100) {
		t.Errorf("FirstName has %d runes, want 100", len([]rune(inserted.FirstName)))
	}
	if inserted.LastName != strings.Repeat("山", 100) {
		t.Errorf("LastName has %d runes, want 100", len([]rune(inserted.LastName)))
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"Grace", 100, "Grace"},
		{"", 3, ""},
		{"abcdef", 3, "abc"},
		{"ab cd", 3, "ab"},
		{"日本語テキスト", 3, "日本語"},
	}
	for _, tt := range tests {
		if got := truncateRunes(tt.in, tt.n); got != tt.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

// 同じ外部IDで再認証した場合は同一レコードを返し、重複行を作らないこと
func TestProviderStrategy_RepeatLogin_ResolvesSameRecord(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryUserRepo()
	s := NewProviderStrategy(googleProfile("g123"), repo, nil)

	first := s.Authenticate(ctx, Credentials{Code: "good-code"})
	second := s.Authenticate(ctx, Credentials{Code: "good-code"})
	if !first.OK() || !second.OK() {
		t.Fatalf("Authenticate() failures = %v, %v", first.Failure, second.Failure)
	}
	if second.User.ID != first.User.ID || second.User.Email != first.User.Email ||
		second.User.FirstName != first.User.FirstName {
		t.Errorf("second login = %+v, want %+v", second.User, first.User)
	}

	n, _ := repo.Count(ctx)
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestProviderStrategy_ExistingUser_NotUpdated(t *testing.T) {
	stored := &model.User{ID: "g123", FirstName: "Old", Email: "old@example.com"}
	repo := &mockUserRepo{
		findByIDFn: func(_ context.Context, id string) (*model.User, error) {
			if id == "g123" {
				return stored, nil
			}
			return nil, nil
		},
	}
	s := NewProviderStrategy(googleProfile("g123"), repo, nil)

	res := s.Authenticate(context.Background(), Credentials{Code: "good-code"})
	if !res.OK() {
		t.Fatalf("Authenticate() failure = %v", res.Failure)
	}
	if res.User.FirstName != "Old" {
		t.Errorf("FirstName = %q, want unchanged Old", res.User.FirstName)
	}
	if repo.insertCalls != 0 {
		t.Errorf("Insert called %d times, want 0", repo.insertCalls)
	}
}

func TestProviderStrategy_ExchangeFailure(t *testing.T) {
	repo := &mockUserRepo{}
	s := NewProviderStrategy(googleProfile("g123"), repo, nil)

	res := s.Authenticate(context.Background(), Credentials{Code: "bad-code"})
	if res.OK() || res.Failure.Reason != ReasonProviderExchangeFailed {
		t.Fatalf("Authenticate() = %+v, want ProviderExchangeFailed", res)
	}
	if res.Failure.Reason.Kind() != KindAuthentication {
		t.Errorf("Kind() = %v, want KindAuthentication", res.Failure.Reason.Kind())
	}
	var pe *model.ProviderExchangeError
	if !errors.As(res.Failure, &pe) || pe.Provider != "google" {
		t.Errorf("Failure should wrap ProviderExchangeError, got %v", res.Failure.Err)
	}
}

func TestProviderStrategy_PlainExchangeError_IsWrapped(t *testing.T) {
	p := &mockProvider{
		name: "github",
		exchangeFn: func(context.Context, string) (*model.ExternalProfile, error) {
			return nil, errors.New("boom")
		},
	}
	s := NewProviderStrategy(p, &mockUserRepo{}, nil)

	res := s.Authenticate(context.Background(), Credentials{Code: "x"})
	var pe *model.ProviderExchangeError
	if !errors.As(res.Failure, &pe) || pe.Provider != "github" {
		t.Errorf("Failure = %v, want ProviderExchangeError for github", res.Failure)
	}
}

// ID衝突はリトライせずConstraintViolationとすること
func TestProviderStrategy_InsertCollision_ConstraintViolationNoRetry(t *testing.T) {
	repo := &mockUserRepo{
		insertFn: func(context.Context, *model.User) error {
			return model.ErrConstraintViolation
		},
	}
	s := NewProviderStrategy(googleProfile("g123"), repo, nil)

	res := s.Authenticate(context.Background(), Credentials{Code: "good-code"})
	if res.OK() || res.Failure.Reason != ReasonConstraintViolation {
		t.Fatalf("Authenticate() = %+v, want ConstraintViolation", res)
	}
	if repo.insertCalls != 1 {
		t.Errorf("Insert called %d times, want 1", repo.insertCalls)
	}
}

func TestProviderStrategy_LookupError_StoreFailure(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(context.Context, string) (*model.User, error) {
			return nil, errors.New("timeout")
		},
	}
	s := NewProviderStrategy(googleProfile("g123"), repo, nil)

	res := s.Authenticate(context.Background(), Credentials{Code: "good-code"})
	if res.OK() || res.Failure.Reason != ReasonStoreFailure {
		t.Fatalf("Authenticate() = %+v, want StoreFailure", res)
	}
}

func TestReason_KindAndAPIError(t *testing.T) {
	tests := []struct {
		reason Reason
		kind   Kind
	}{
		{ReasonPasswordMismatch, KindValidation},
		{ReasonEmailAlreadyExists, KindValidation},
		{ReasonInvalidInput, KindValidation},
		{ReasonUserNotFound, KindAuthentication},
		{ReasonWrongPassword, KindAuthentication},
		{ReasonProviderExchangeFailed, KindAuthentication},
		{ReasonConstraintViolation, KindAuthentication},
		{ReasonStoreFailure, KindStore},
	}
	for _, tt := range tests {
		if got := tt.reason.Kind(); got != tt.kind {
			t.Errorf("%s.Kind() = %v, want %v", tt.reason, got, tt.kind)
		}
		apiErr := tt.reason.APIError()
		if apiErr.Code == "" || apiErr.Message == "" {
			t.Errorf("%s.APIError() = %+v, want code and message", tt.reason, apiErr)
		}
		if tt.kind != KindStore && apiErr.Code == model.ErrCodeInternal {
			t.Errorf("%s.APIError() should not be the internal error", tt.reason)
		}
	}
}
