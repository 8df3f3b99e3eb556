package repository

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"codedesk/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL is not set, skip postgres integration test")
	}

	ctx := context.Background()
	pool, err := OpenPool(ctx, dbURL, true)
	if err != nil {
		t.Skipf("Failed to connect to test database: %v", err)
	}

	if err := ApplyMigrations(ctx, pool, zerolog.Nop()); err != nil {
		pool.Close()
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM users"); err != nil {
		pool.Close()
		t.Fatalf("Failed to clean up users table: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func grantAt(ts time.Time, customer, subscription string) model.ProGrant {
	return model.ProGrant{
		StripeCustomerID:     customer,
		StripeSubscriptionID: subscription,
		GrantedAt:            ts.UTC().Truncate(time.Microsecond),
	}
}

func TestUserRepo_CreateUserIfNotExists(t *testing.T) {
	repo := NewUserRepo(setupTestDB(t))
	ctx := context.Background()

	created, err := repo.CreateUserIfNotExists(ctx, &model.User{UserID: "user_1", Email: "a@x.com", Name: "Ada"})
	if err != nil {
		t.Fatalf("CreateUserIfNotExists failed: %v", err)
	}
	if !created {
		t.Fatal("expected first insert to create a row")
	}

	created, err = repo.CreateUserIfNotExists(ctx, &model.User{UserID: "user_1", Email: "other@x.com", Name: "Other"})
	if err != nil {
		t.Fatalf("second CreateUserIfNotExists failed: %v", err)
	}
	if created {
		t.Fatal("expected second insert to be a no-op")
	}

	u, err := repo.GetUserByID(ctx, "user_1")
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if u == nil || u.Email != "a@x.com" || u.Name != "Ada" {
		t.Fatalf("expected original record to be kept, got %+v", u)
	}
	if u.IsPro || u.ProSince != nil {
		t.Fatalf("expected new user to be non-pro, got %+v", u)
	}
}

func TestUserRepo_GetMissingReturnsNil(t *testing.T) {
	repo := NewUserRepo(setupTestDB(t))
	ctx := context.Background()

	u, err := repo.GetUserByID(ctx, "missing")
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if u != nil {
		t.Fatalf("expected nil user, got %+v", u)
	}

	u, err = repo.GetUserByEmail(ctx, "missing@x.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if u != nil {
		t.Fatalf("expected nil user, got %+v", u)
	}
}

func TestUserRepo_UpsertProUserKeepsProSince(t *testing.T) {
	repo := NewUserRepo(setupTestDB(t))
	ctx := context.Background()

	first := grantAt(time.Now().Add(-time.Hour), "cus_1", "sub_1")
	u, err := repo.UpsertProUser(ctx, &model.User{UserID: "user_2", Email: "b@x.com", Name: "b"}, first)
	if err != nil {
		t.Fatalf("UpsertProUser failed: %v", err)
	}
	if !u.IsPro || u.ProSince == nil || !u.ProSince.Equal(first.GrantedAt) {
		t.Fatalf("expected pro user with pro_since %v, got %+v", first.GrantedAt, u)
	}

	second := grantAt(time.Now(), "cus_2", "sub_2")
	u, err = repo.UpsertProUser(ctx, &model.User{UserID: "user_2", Email: "b@x.com", Name: "b"}, second)
	if err != nil {
		t.Fatalf("second UpsertProUser failed: %v", err)
	}
	if !u.ProSince.Equal(first.GrantedAt) {
		t.Fatalf("expected pro_since to stay %v, got %v", first.GrantedAt, u.ProSince)
	}
	if u.StripeCustomerID == nil || *u.StripeCustomerID != "cus_2" {
		t.Fatalf("expected latest customer id, got %v", u.StripeCustomerID)
	}
	if u.StripeSubscriptionID == nil || *u.StripeSubscriptionID != "sub_2" {
		t.Fatalf("expected latest subscription id, got %v", u.StripeSubscriptionID)
	}
}

func TestUserRepo_GrantProByInternalID(t *testing.T) {
	repo := NewUserRepo(setupTestDB(t))
	ctx := context.Background()

	seed := &model.User{UserID: "user_3", Email: "C@x.com", Name: "c"}
	if _, err := repo.CreateUserIfNotExists(ctx, seed); err != nil {
		t.Fatalf("CreateUserIfNotExists failed: %v", err)
	}

	byEmail, err := repo.GetUserByEmail(ctx, "c@X.com")
	if err != nil || byEmail == nil {
		t.Fatalf("expected case-insensitive email lookup, got %+v err=%v", byEmail, err)
	}

	g := grantAt(time.Now(), "cus_3", "sub_3")
	u, err := repo.GrantProByInternalID(ctx, byEmail.ID, g)
	if err != nil {
		t.Fatalf("GrantProByInternalID failed: %v", err)
	}
	if !u.IsPro || !u.ProSince.Equal(g.GrantedAt) {
		t.Fatalf("expected pro user, got %+v", u)
	}

	byCustomer, err := repo.GetUserByStripeCustomerID(ctx, "cus_3")
	if err != nil || byCustomer == nil || byCustomer.UserID != "user_3" {
		t.Fatalf("expected lookup by customer id, got %+v err=%v", byCustomer, err)
	}

	missing, err := repo.GrantProByInternalID(ctx, "00000000-0000-0000-0000-000000000000", g)
	if err != nil {
		t.Fatalf("GrantProByInternalID for missing id failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing id, got %+v", missing)
	}
}

func TestUserRepo_ConcurrentUpsertsLeaveOneRow(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewUserRepo(pool)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = repo.CreateUserIfNotExists(ctx, &model.User{UserID: "user_4", Email: "d@x.com", Name: "d"})
				return
			}
			_, _ = repo.UpsertProUser(ctx, &model.User{UserID: "user_4", Email: "d@x.com", Name: "d"}, grantAt(time.Now(), "cus_4", "sub_4"))
		}(i)
	}
	wg.Wait()

	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM users WHERE user_id = $1", "user_4").Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one row, got %d", count)
	}
	u, _ := repo.GetUserByID(ctx, "user_4")
	if u == nil || !u.IsPro {
		t.Fatalf("expected user to be pro, got %+v", u)
	}
}
