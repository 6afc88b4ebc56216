package auth

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/imf-gadgets/gadget-core/internal/infrastructure/database"
	"github.com/imf-gadgets/gadget-core/migrations"
)

const testSecret = "test-secret-key-at-least-32-chars!"

// fastArgon2 keeps tests quick while exercising the real algorithm.
var fastArgon2 = Argon2Params{Time: 1, Memory: 1024, Threads: 1}

// testDB opens a temp-file SQLite database with every migration applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "auth-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(t.Context(), migrations.FS); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	return db.DB
}

func testHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewPasswordHasher(HasherOptions{Algorithm: AlgorithmArgon2id, Argon2: fastArgon2})
	if err != nil {
		t.Fatalf("NewPasswordHasher() error = %v", err)
	}
	return h
}

func testTokens(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testSecret, 0)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	return ts
}

// seedTestUser inserts a user with the given password and returns it.
func seedTestUser(t *testing.T, db *sql.DB, username, password string) *User {
	t.Helper()

	hash, err := testHasher(t).Hash(password)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	user := &User{Username: username, PasswordHash: hash}
	if err := NewUserRepository(db).Create(t.Context(), user); err != nil {
		t.Fatalf("creating test user %s: %v", username, err)
	}
	return user
}
