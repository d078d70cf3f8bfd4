package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"shopledger/backend/internal/domain"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if ok {
		user.Password = password
		s.users[username] = user
		s.updates++
	}
	return nil
}

func newStubAuth(t *testing.T, users ...domain.UserAccount) (*AuthManager, *userStoreStub) {
	t.Helper()
	stub := &userStoreStub{users: make(map[string]domain.UserAccount)}
	for _, user := range users {
		stub.users[user.Username] = user
	}
	return NewAuthManager(testSecret, time.Hour, stub), stub
}

func TestLoginAndParseToken(t *testing.T) {
	auth, _ := newStubAuth(t, domain.UserAccount{
		Username: "admin", Password: "admin123", Role: domain.RoleAdmin, Active: true, CreatedAt: time.Now().UTC(),
	})

	resp, err := auth.Login(domain.LoginRequest{Username: "Admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Role != domain.RoleAdmin || resp.AccessToken == "" {
		t.Fatalf("unexpected login response: %+v", resp)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Username != "admin" || actor.Role != domain.RoleAdmin {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	auth, _ := newStubAuth(t, domain.UserAccount{
		Username: "admin", Password: "admin123", Role: domain.RoleAdmin, Active: true,
	})

	if _, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "nope"}); err == nil {
		t.Fatalf("expected error for wrong password")
	}
	if _, err := auth.Login(domain.LoginRequest{Username: "ghost", Password: "admin123"}); err == nil {
		t.Fatalf("expected error for unknown user")
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	auth, _ := newStubAuth(t, domain.UserAccount{
		Username: "former", Password: "secret99", Role: domain.RoleStaff, Active: false,
	})

	if _, err := auth.Login(domain.LoginRequest{Username: "former", Password: "secret99"}); err == nil {
		t.Fatalf("expected error for inactive account")
	}
}

func TestBootstrapUpgradesPlaintextPasswords(t *testing.T) {
	auth, stub := newStubAuth(t, domain.UserAccount{
		Username: "admin", Password: "admin123", Role: domain.RoleAdmin, Active: true,
	})

	if _, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "admin123"}); err != nil {
		t.Fatalf("login after bootstrap: %v", err)
	}

	stub.mu.Lock()
	stored := stub.users["admin"].Password
	updates := stub.updates
	stub.mu.Unlock()
	if !isPasswordHash(stored) {
		t.Fatalf("expected stored password to be hashed, got %q", stored)
	}
	if updates == 0 {
		t.Fatalf("expected password upgrade to be written back to the store")
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	auth, _ := newStubAuth(t, domain.UserAccount{
		Username: "admin", Password: "admin123", Role: domain.RoleAdmin, Active: true,
	})
	resp, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	other := NewAuthManager("another-secret-that-is-long-enough!!", time.Hour, nil)
	if _, err := other.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with a different secret to fail")
	}

	if _, err := auth.ParseToken(resp.AccessToken + "x"); err == nil {
		t.Fatalf("expected mangled token to fail")
	}
}

func TestSignupValidation(t *testing.T) {
	auth, _ := newStubAuth(t)

	cases := []domain.SignupRequest{
		{Username: "ab", Password: "secret99"},
		{Username: "has space", Password: "secret99"},
		{Username: "cashier1", Password: "123"},
		{Username: "cashier1", Password: "secret99", Role: "owner"},
	}
	for i, req := range cases {
		if _, err := auth.Signup(req); err == nil {
			t.Fatalf("case %d: expected signup to fail for %+v", i, req)
		}
	}
}

func TestSignupDefaultsToStaffRole(t *testing.T) {
	auth, stub := newStubAuth(t)

	user, err := auth.Signup(domain.SignupRequest{Username: "Cashier1", Password: "secret99"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.Username != "cashier1" || user.Role != domain.RoleStaff || !user.Active {
		t.Fatalf("unexpected user: %+v", user)
	}

	stub.mu.Lock()
	stored, ok := stub.users["cashier1"]
	stub.mu.Unlock()
	if !ok {
		t.Fatalf("expected user persisted to store")
	}
	if !strings.HasPrefix(stored.Password, "$2") {
		t.Fatalf("expected persisted password to be a bcrypt hash, got %q", stored.Password)
	}

	if _, err := auth.Signup(domain.SignupRequest{Username: "cashier1", Password: "secret99"}); err == nil {
		t.Fatalf("expected duplicate username to be rejected")
	}
}
