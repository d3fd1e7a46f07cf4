package auth

import (
	"context"
	"testing"

	"github.com/hitoshi/pensinova/internal/model"
	"github.com/hitoshi/pensinova/internal/repository"
)

func TestResolver_DispatchesByName_AndRecordsOutcome(t *testing.T) {
	repo := repository.NewMemoryUserRepo()
	rec := &mockRecorder{}
	r := NewResolver(rec,
		NewLocalStrategy(repo, &plainHasher{}),
		NewSignupStrategy(repo, &plainHasher{}, nil),
	)
	ctx := context.Background()

	res := r.Resolve(ctx, StrategySignup, validSignup())
	if !res.OK() {
		t.Fatalf("signup failure = %v", res.Failure)
	}

	res = r.Resolve(ctx, StrategyLocal, Credentials{Email: "a@b.com", Password: "x"})
	if !res.OK() || res.User.ID != "user1" {
		t.Fatalf("login = %+v", res)
	}

	res = r.Resolve(ctx, StrategyLocal, Credentials{Email: "a@b.com", Password: "nope"})
	if res.OK() {
		t.Fatal("wrong password should fail")
	}

	want := []recordedAttempt{
		{StrategySignup, OutcomeSuccess},
		{StrategyLocal, OutcomeSuccess},
		{StrategyLocal, string(ReasonWrongPassword)},
	}
	if len(rec.attempts) != len(want) {
		t.Fatalf("attempts = %v, want %v", rec.attempts, want)
	}
	for i := range want {
		if rec.attempts[i] != want[i] {
			t.Errorf("attempts[%d] = %v, want %v", i, rec.attempts[i], want[i])
		}
	}
}

func TestResolver_UnknownStrategy_InvalidInput(t *testing.T) {
	rec := &mockRecorder{}
	r := NewResolver(rec)

	res := r.Resolve(context.Background(), "twitter", Credentials{})
	if res.OK() || res.Failure.Reason != ReasonInvalidInput {
		t.Fatalf("Resolve() = %+v, want InvalidInput", res)
	}
	if len(rec.attempts) != 1 || rec.attempts[0].outcome != string(ReasonInvalidInput) {
		t.Errorf("attempts = %v", rec.attempts)
	}
}

func TestResolver_NilRecorder(t *testing.T) {
	r := NewResolver(nil, NewLocalStrategy(&mockUserRepo{}, &plainHasher{}))

	res := r.Resolve(context.Background(), StrategyLocal, Credentials{Email: "a@b.com"})
	if res.OK() || res.Failure.Reason != ReasonUserNotFound {
		t.Fatalf("Resolve() = %+v, want UserNotFound", res)
	}
}

func TestResolver_Providers_SortedByName(t *testing.T) {
	repo := &mockUserRepo{}
	r := NewResolver(nil,
		NewLocalStrategy(repo, &plainHasher{}),
		NewProviderStrategy(&mockProvider{name: "google"}, repo, nil),
		NewProviderStrategy(&mockProvider{name: "github"}, repo, nil),
	)

	ps := r.Providers()
	if len(ps) != 2 {
		t.Fatalf("len(Providers()) = %d, want 2", len(ps))
	}
	if ps[0].Name() != "github" || ps[1].Name() != "google" {
		t.Errorf("Providers() = [%s %s], want [github google]", ps[0].Name(), ps[1].Name())
	}

	if _, ok := r.Strategy("google"); !ok {
		t.Error("google strategy should be registered")
	}
	if _, ok := r.Strategy("twitter"); ok {
		t.Error("twitter strategy should not be registered")
	}
}

func TestResolver_ProviderRoundTrip(t *testing.T) {
	repo := repository.NewMemoryUserRepo()
	p := &mockProvider{
		name: "github",
		exchangeFn: func(context.Context, string) (*model.ExternalProfile, error) {
			return &model.ExternalProfile{Provider: "github", ExternalID: "4242", GivenName: "Mona"}, nil
		},
	}
	r := NewResolver(nil, NewProviderStrategy(p, repo, nil))

	for i := 0; i < 3; i++ {
		res := r.Resolve(context.Background(), "github", Credentials{Code: "c"})
		if !res.OK() || res.User.ID != "4242" {
			t.Fatalf("Resolve() #%d = %+v", i, res)
		}
	}
	if n, _ := repo.Count(context.Background()); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}
