package identity

import (
	"context"
	"errors"
	"testing"
)

func TestBootstrapAndAuthenticate(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)

	ctx := context.Background()
	user, err := svc.EnsureBootstrap(ctx, " Root@Bank.test ", "correct-horse")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if user.Role != RoleSuperAdmin {
		t.Fatalf("expected superadmin, got %s", user.Role)
	}

	again, err := svc.EnsureBootstrap(ctx, "root@bank.test", "ignored-password")
	if err != nil {
		t.Fatalf("bootstrap twice: %v", err)
	}
	if again.ID != user.ID {
		t.Fatalf("expected bootstrap to be idempotent")
	}

	authed, err := svc.Authenticate(ctx, Credentials{Email: "root@bank.test", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if authed.LastLogin == nil {
		t.Fatalf("expected last login to be recorded")
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.EnsureBootstrap(ctx, "root@bank.test", "correct-horse"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	if _, err := svc.Authenticate(ctx, Credentials{Email: "root@bank.test", Password: "nope-nope"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, Credentials{Email: "ghost@bank.test", Password: "whatever"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
}

func TestRegisterRequiresSuperadmin(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()
	input := RegisterInput{Email: "clerk@bank.test", Name: "Clerk", Password: "long-enough", Role: RoleAuditor}

	if _, err := svc.Register(ctx, Actor{ID: "a", Role: RoleAdmin}, input); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	user, err := svc.Register(ctx, Actor{ID: "s", Role: RoleSuperAdmin}, input)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role.CanMutate() || !user.Role.CanRead() {
		t.Fatalf("auditor permissions wrong")
	}

	if _, err := svc.Register(ctx, Actor{ID: "s", Role: RoleSuperAdmin}, input); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected duplicate email error, got %v", err)
	}
}
