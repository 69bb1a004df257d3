package testutil

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/commandgrid/pmt/internal/db"
	"github.com/commandgrid/pmt/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// MigrationFiles returns the embedded migration names for one direction ("up" or "down"),
// ordered the way they must be applied.
func MigrationFiles(direction string) ([]string, error) {
	names, err := fs.Glob(db.MigrationFS, "migrations/*."+direction+".sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)
	if direction == "down" {
		for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
			names[i], names[j] = names[j], names[i]
		}
	}
	return names, nil
}

// ApplyMigration executes one embedded migration file by name, e.g. "000002_projects.up.sql".
func ApplyMigration(ctx context.Context, pool *pgxpool.Pool, name string) error {
	if !strings.HasPrefix(name, "migrations/") {
		name = "migrations/" + name
	}
	sql, err := fs.ReadFile(db.MigrationFS, name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	return nil
}

// ResetSchema drops every table and recreates the full schema.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, direction := range []string{"down", "up"} {
		names, err := MigrationFiles(direction)
		if err != nil {
			return err
		}
		for _, name := range names {
			if err := ApplyMigration(ctx, pool, name); err != nil {
				return err
			}
		}
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, strings.ToLower(ulid.Make().String()))
}

// NewTestCompany creates a company with sensible defaults.
func NewTestCompany(t testing.TB) *model.Company {
	t.Helper()
	now := time.Now().UTC()
	return &model.Company{
		ID:        ulid.Make().String(),
		Name:      UniqueID("company"),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestUser creates a member of companyID with a throwaway password hash.
func NewTestUser(t testing.TB, companyID string) *model.User {
	t.Helper()
	now := time.Now().UTC()
	handle := UniqueID("user")
	user := &model.User{
		ID:               ulid.Make().String(),
		Name:             "Test " + handle,
		Email:            handle + "@example.com",
		Username:         handle,
		PasswordHash:     "$2a$04$not-a-real-hash",
		Role:             model.RoleMember,
		RegistrationType: model.RegistrationIndividual,
		Tier:             model.TierFree,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if companyID != "" {
		user.CompanyID = &companyID
	}
	return user
}

// NewTestProject creates an active project owned by ownerID.
func NewTestProject(t testing.TB, companyID, ownerID string) *model.Project {
	t.Helper()
	now := time.Now().UTC()
	return &model.Project{
		ID:        ulid.Make().String(),
		CompanyID: companyID,
		Name:      UniqueID("project"),
		Status:    model.ProjectActive,
		Priority:  model.PriorityMedium,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestTask creates a todo task in projectID.
func NewTestTask(t testing.TB, projectID, createdBy string) *model.Task {
	t.Helper()
	now := time.Now().UTC()
	return &model.Task{
		ID:        ulid.Make().String(),
		ProjectID: projectID,
		Title:     UniqueID("task"),
		Status:    model.TaskTodo,
		Priority:  model.PriorityMedium,
		CreatedBy: createdBy,
		Tags:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
