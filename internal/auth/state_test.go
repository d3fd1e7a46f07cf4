package auth

import (
	"errors"
	"testing"
	"time"
)

func TestStateSigner_IssueVerify_RoundTrip(t *testing.T) {
	s := NewStateSigner("test-secret", time.Minute)

	state, err := s.Issue("google")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if err := s.Verify(state, "google"); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestStateSigner_Issue_Unique(t *testing.T) {
	s := NewStateSigner("test-secret", time.Minute)

	a, _ := s.Issue("google")
	b, _ := s.Issue("google")
	if a == b {
		t.Error("consecutive states should differ")
	}
}

func TestStateSigner_Verify_Rejects(t *testing.T) {
	signer := NewStateSigner("test-secret", time.Minute)
	valid, err := signer.Issue("google")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	expiredSigner := NewStateSigner("test-secret", time.Minute)
	expiredSigner.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _ := expiredSigner.Issue("google")

	otherSecret, _ := NewStateSigner("other-secret", time.Minute).Issue("google")

	tests := []struct {
		name     string
		state    string
		provider string
	}{
		{"empty", "", "google"},
		{"garbage", "not-a-jwt", "google"},
		{"wrong provider", valid, "github"},
		{"expired", expired, "google"},
		{"other secret", otherSecret, "google"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := signer.Verify(tt.state, tt.provider)
			if !errors.Is(err, ErrInvalidState) {
				t.Errorf("Verify() error = %v, want ErrInvalidState", err)
			}
		})
	}
}

func TestNewStateSigner_DefaultTTL(t *testing.T) {
	s := NewStateSigner("secret", 0)
	if s.TTL() != DefaultStateTTL {
		t.Errorf("TTL() = %v, want %v", s.TTL(), DefaultStateTTL)
	}
}
