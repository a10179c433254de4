//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/taskflow/taskflow/internal/model"
	"github.com/taskflow/taskflow/internal/testutil"
)

// ============================================================================
// Postgres Repository Integration Tests
// ============================================================================

func TestIntegrationMigration_ApplyAllTables(t *testing.T) {
	ctx, repo := newPostgresTestEnv(t)

	for _, table := range []string{"accounts", "tasks"} {
		t.Run(table, func(t *testing.T) {
			var exists bool
			err := repo.Pool().QueryRow(ctx, `
				SELECT EXISTS (
					SELECT 1 FROM information_schema.tables
					WHERE table_schema = 'public' AND table_name = $1
				)`, table).Scan(&exists)
			if err != nil {
				t.Fatalf("query information_schema: %v", err)
			}
			if !exists {
				t.Errorf("Table %q should exist after migrations", table)
			}
		})
	}
}

func TestIntegrationAccount_DuplicateEmail(t *testing.T) {
	ctx, repo := newPostgresTestEnv(t)

	email := testutil.UniqueEmail("dup")
	if err := repo.CreateAccount(ctx, testutil.NewTestAccount(t, email)); err != nil {
		t.Fatalf("CreateAccount (first) failed: %v", err)
	}
	if err := repo.CreateAccount(ctx, testutil.NewTestAccount(t, email)); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestIntegrationTask_PriorityCheckConstraint(t *testing.T) {
	ctx, repo := newPostgresTestEnv(t)

	owner := testutil.NewTestAccount(t, testutil.UniqueEmail("owner"))
	if err := repo.CreateAccount(ctx, owner); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	_, err := repo.Pool().Exec(ctx, `
		INSERT INTO tasks (id, user_id, title, priority)
		VALUES ($1, $2, 'bad', 'urgent')`, "01ARZ3NDEKTSV4RRFFQ69G5FAV", owner.ID)
	if err == nil {
		t.Fatal("expected CHECK constraint to reject priority 'urgent'")
	}
}

func TestIntegrationTask_LifecycleAndIsolation(t *testing.T) {
	ctx, repo := newPostgresTestEnv(t)

	alice := testutil.NewTestAccount(t, testutil.UniqueEmail("alice"))
	bob := testutil.NewTestAccount(t, testutil.UniqueEmail("bob"))
	for _, a := range []*model.Account{alice, bob} {
		if err := repo.CreateAccount(ctx, a); err != nil {
			t.Fatalf("CreateAccount failed: %v", err)
		}
	}

	task := testutil.NewTestTask(t, alice.ID, "Quarterly Report")
	if err := repo.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	if _, err := repo.GetTask(ctx, bob.ID, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound for other owner, got %v", err)
	}

	list, err := repo.ListTasks(ctx, alice.ID, model.TaskFilter{Search: "report"})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != task.ID {
		t.Errorf("search should find the task, got %v", list)
	}

	high := model.PriorityHigh
	updated, err := repo.UpdateTask(ctx, alice.ID, task.ID, model.TaskPatch{Priority: &high})
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	if updated.Priority != model.PriorityHigh || updated.Title != "Quarterly Report" {
		t.Errorf("unexpected update result %+v", updated)
	}
	if updated.UpdatedAt.Before(task.UpdatedAt) {
		t.Errorf("UpdatedAt moved backwards")
	}

	deleted, err := repo.DeleteTask(ctx, alice.ID, task.ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteTask = %v, %v", deleted, err)
	}
}

func newPostgresTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)
	if repo.Pool() == nil {
		t.Skip("DATABASE_URL does not point at postgres")
	}

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return ctx, repo
}
