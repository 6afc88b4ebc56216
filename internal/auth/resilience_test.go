package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// Resilience tests verify that the auth subsystem handles failure scenarios
// gracefully. These tests use the TestResilience_ prefix for easy filtering:
//
//	go test -run TestResilience -race ./internal/auth/...

// TestResilience_ConcurrentRegistration_SameUsername verifies that racing
// registrations for one username leave exactly one account behind. The
// losers must see ErrUsernameExists, never a raw constraint error.
func TestResilience_ConcurrentRegistration_SameUsername(t *testing.T) {
	db := testDB(t)
	svc := NewService(NewUserRepository(db), testHasher(t), testTokens(t))
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(ctx, "ethan", "mission-impossible")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, exists int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrUsernameExists):
			exists++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if ok != 1 {
		t.Errorf("successful registrations = %d, want 1", ok)
	}
	if exists != attempts-1 {
		t.Errorf("ErrUsernameExists = %d, want %d", exists, attempts-1)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE username = ?", "ethan").Scan(&count); err != nil {
		t.Fatalf("counting users: %v", err)
	}
	if count != 1 {
		t.Errorf("stored accounts = %d, want 1", count)
	}
}

// TestResilience_ConcurrentLogin verifies that parallel logins for one
// account all succeed and all name the same subject.
func TestResilience_ConcurrentLogin(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "luther", "hack-the-planet")
	svc := NewService(NewUserRepository(db), testHasher(t), testTokens(t))
	ctx := context.Background()

	const attempts = 6
	var wg sync.WaitGroup
	errs := make(chan error, attempts)

	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Login(ctx, "luther", "hack-the-planet")
			if err != nil {
				errs <- err
				return
			}
			subject, err := svc.Tokens().Verify(res.Token)
			if err != nil {
				errs <- err
				return
			}
			if subject != user.ID {
				errs <- errors.New("token subject does not match user")
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent login: %v", err)
	}
}

// TestResilience_ContextCancellation_RepositoryOps verifies that repository
// operations respect context cancellation and do not leave partial rows.
func TestResilience_ContextCancellation_RepositoryOps(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := repo.Create(ctx, &User{Username: "cancelled", PasswordHash: "x"}); err == nil {
		t.Error("Create() with cancelled context should fail")
	}
	if _, err := repo.GetByUsername(ctx, "cancelled"); err == nil {
		t.Error("GetByUsername() with cancelled context should fail")
	}

	if _, err := repo.GetByUsername(context.Background(), "cancelled"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("user should not exist after a cancelled Create, got %v", err)
	}
}

// TestResilience_Login_RepositoryFailure verifies that a storage fault is
// reported as an internal error, not as bad credentials.
func TestResilience_Login_RepositoryFailure(t *testing.T) {
	db := testDB(t)
	seedTestUser(t, db, "benji", "field-agent-now")
	svc := NewService(NewUserRepository(db), testHasher(t), testTokens(t))

	if err := db.Close(); err != nil {
		t.Fatalf("closing db: %v", err)
	}

	_, err := svc.Login(context.Background(), "benji", "field-agent-now")
	if err == nil {
		t.Fatal("Login() on a closed database should fail")
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, storage faults must not look like bad credentials", err)
	}
}
