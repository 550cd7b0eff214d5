package audit_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lavente-care/iam-gateway/internal/audit"
	"github.com/lavente-care/iam-gateway/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu      sync.Mutex
	entries []*storage.AuditEntry
	failNext bool
}

func (f *fakeRepo) Insert(ctx context.Context, e *storage.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("insert failed")
	}
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAsyncWriter_WritesEventuallyPersist(t *testing.T) {
	repo := &fakeRepo{}
	w := audit.NewAsyncWriter(repo, discardLogger(), 2, 16)
	defer w.Close()

	userID := uuid.New()
	w.Write(context.Background(), &userID, "user.login.success", map[string]interface{}{"app_id": "a"})
	w.Write(context.Background(), &userID, "user.login.failed", nil)

	require.Eventually(t, func() bool { return repo.count() == 2 }, time.Second, 10*time.Millisecond)
}

func TestAsyncWriter_NeverBlocksCallerWhenQueueIsFull(t *testing.T) {
	repo := &fakeRepo{}
	w := audit.NewAsyncWriter(repo, discardLogger(), 0, 1) // no workers draining
	defer w.Close()

	userID := uuid.New()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			w.Write(context.Background(), &userID, "user.register", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Write blocked instead of dropping on a full queue")
	}
	assert.LessOrEqual(t, repo.count(), 1)
}

func TestAsyncWriter_InsertFailureIsLoggedNotPropagated(t *testing.T) {
	repo := &fakeRepo{failNext: true}
	w := audit.NewAsyncWriter(repo, discardLogger(), 1, 4)
	defer w.Close()

	userID := uuid.New()
	w.Write(context.Background(), &userID, "user.password_change", nil)

	require.Eventually(t, func() bool { return repo.count() == 0 }, time.Second, 10*time.Millisecond)
}
