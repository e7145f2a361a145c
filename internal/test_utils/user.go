package test_utils

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klokku/pennywise/pkg/user"
)

// CreateTestUser stores a fresh user and returns a context carrying it.
func CreateTestUser(t *testing.T, db *pgxpool.Pool) (context.Context, user.User) {
	t.Helper()
	ctx := context.Background()
	testUser := user.User{
		Uid:         uuid.NewString(),
		Username:    "test_user_" + uuid.NewString()[:8],
		DisplayName: "Test User",
		Settings: user.Settings{
			Timezone: "Europe/Warsaw",
			Currency: "PLN",
		},
	}
	id, err := user.NewUserRepo(db).CreateUser(ctx, testUser)
	if err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	testUser.Id = id
	return user.WithUser(ctx, testUser), testUser
}
