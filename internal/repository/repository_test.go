package repository

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/taskflow/taskflow/internal/model"
)

// testClock is a manually advanced clock.
type testClock struct {
	nanos atomic.Int64
}

func newTestClock(start time.Time) *testClock {
	c := &testClock{}
	c.nanos.Store(start.UnixNano())
	return c
}

func (c *testClock) Now() time.Time { return time.Unix(0, c.nanos.Load()).UTC() }

func (c *testClock) Set(t time.Time) { c.nanos.Store(t.UnixNano()) }

func (c *testClock) Advance(d time.Duration) { c.nanos.Add(int64(d)) }

func newSQLiteRepository(t *testing.T) (*Repository, *testClock) {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}

	clock := newTestClock(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))
	repo, err := NewWithDB(db, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("wrap db: %v", err)
	}
	repo.sql.SetMaxOpenConns(1)
	t.Cleanup(repo.Close)

	if err := repo.AutoMigrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo, clock
}

func mustCreateAccount(t *testing.T, repo *Repository, email string) *model.Account {
	t.Helper()
	acct := &model.Account{Email: email, Name: "Test User", HashedPassword: "hash"}
	if err := repo.CreateAccount(context.Background(), acct); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return acct
}

func mustCreateTask(t *testing.T, repo *Repository, owner, title string, priority model.Priority) *model.Task {
	t.Helper()
	task := &model.Task{UserID: owner, Title: title, Priority: priority}
	if err := repo.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("create task %q: %v", title, err)
	}
	return task
}
