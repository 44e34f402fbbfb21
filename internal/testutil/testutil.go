// Package testutil opens throwaway databases and seeds fixtures for tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	casbin "github.com/casbin/casbin/v2"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bookspot/bookspot_backend/internal/schema"
	"github.com/bookspot/bookspot_backend/pkg/authorize"
	rediscli "github.com/bookspot/bookspot_backend/pkg/redis"
	"github.com/bookspot/bookspot_backend/pkg/util/password"
)

// OpenDB returns a migrated in-memory sqlite database private to t. The pool
// holds a single connection, so concurrent transactions queue behind each
// other the way row-locked transactions do on Postgres.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := schema.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// CreateUser inserts a user with the given role and a unique email.
func CreateUser(t *testing.T, db *gorm.DB, role schema.Role) *schema.User {
	t.Helper()

	u := &schema.User{
		Name:         string(role) + " user",
		Email:        fmt.Sprintf("%s-%s@example.com", role, uuid.NewString()[:8]),
		PasswordHash: "not-a-real-hash",
		Role:         role,
		Timezone:     "UTC",
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// Link connects provider and client with the given status.
func Link(t *testing.T, db *gorm.DB, providerID, clientID uuid.UUID, status schema.LinkStatus) *schema.ProviderClientLink {
	t.Helper()

	l := &schema.ProviderClientLink{
		ProviderID:        providerID,
		ClientID:          clientID,
		CreatedByProvider: true,
		Status:            status,
	}
	if err := db.Create(l).Error; err != nil {
		t.Fatalf("create link: %v", err)
	}
	return l
}

// Slot inserts a timeslot directly, bypassing the scheduling rules. A non-nil
// clientID makes it booked.
func Slot(t *testing.T, db *gorm.DB, providerID uuid.UUID, start time.Time, minutes int, clientID *uuid.UUID) *schema.Timeslot {
	t.Helper()

	s := &schema.Timeslot{
		ProviderID:      providerID,
		ClientID:        clientID,
		StartTime:       start,
		DurationMinutes: minutes,
		Status:          schema.StatusAvailable,
	}
	if clientID != nil {
		s.Status = schema.StatusBooked
	}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("create timeslot: %v", err)
	}
	return s
}

// PasswordParams are argon2id parameters cheap enough for tests.
func PasswordParams() *password.Params {
	return &password.Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

// Redis connects to the server named by BOOKSPOT_TEST_REDIS_ADDR and skips t
// when it is unset.
func Redis(t *testing.T) *goredis.Client {
	t.Helper()
	addr := os.Getenv("BOOKSPOT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BOOKSPOT_TEST_REDIS_ADDR not set")
	}
	cfg := rediscli.DefaultConfig()
	cfg.Addr = addr
	rdb, err := rediscli.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

// Authorization returns a casbin authorizer over the shipped model with the
// default policies seeded and a throwaway file-backed policy store.
func Authorization(t *testing.T) authorize.IAuthorization {
	t.Helper()

	_, file, _, _ := runtime.Caller(0)
	model := filepath.Join(filepath.Dir(file), "..", "..", "config", "casbin_model.conf")

	policyPath := filepath.Join(t.TempDir(), "policy.csv")
	if err := os.WriteFile(policyPath, nil, 0644); err != nil {
		t.Fatalf("write policy file: %v", err)
	}
	e, err := casbin.NewDistributedEnforcer(model, fileadapter.NewAdapter(policyPath))
	if err != nil {
		t.Fatalf("create enforcer: %v", err)
	}
	e.EnableAutoSave(false)

	auth, err := authorize.NewAuthorization(e)
	if err != nil {
		t.Fatalf("NewAuthorization() error = %v", err)
	}
	if err := authorize.SeedDefaultPolicies(context.Background(), auth); err != nil {
		t.Fatalf("seed policies: %v", err)
	}
	return auth
}

// Grant assigns the casbin roles matching each user's account role.
func Grant(t *testing.T, auth authorize.IAuthorization, users ...*schema.User) {
	t.Helper()
	for _, u := range users {
		if err := authorize.AssignAccountRoles(context.Background(), auth, u.ID.String(), string(u.Role)); err != nil {
			t.Fatalf("assign roles: %v", err)
		}
	}
}
