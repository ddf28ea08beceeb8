package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backendauth/identity-service/internal/core/domain"
	"github.com/backendauth/identity-service/internal/pkg/metrics"
)

type memAuditRepo struct {
	mu     sync.Mutex
	events []domain.AuditEvent
	err    error
}

func (r *memAuditRepo) InsertAuditEvent(_ context.Context, e *domain.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, *e)
	return nil
}

func (r *memAuditRepo) snapshot() []domain.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AuditEvent(nil), r.events...)
}

func TestDispatcher_WritesEventsInOrderPerUser(t *testing.T) {
	repo := &memAuditRepo{}
	d := NewDispatcher(4, repo, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()

	actions := []domain.AuditAction{domain.AuditUserCreated, domain.AuditUserUpdated, domain.AuditUserDeleted}
	for _, a := range actions {
		d.Record(domain.AuditEvent{Action: a, UserID: 42, Subject: "alice"})
	}

	require.Eventually(t, func() bool { return len(repo.snapshot()) == len(actions) }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	got := repo.snapshot()
	for i, e := range got {
		assert.Equal(t, actions[i], e.Action)
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.OccurredAt.IsZero())
	}
}

func TestDispatcher_KeepsCallerID(t *testing.T) {
	repo := &memAuditRepo{}
	d := NewDispatcher(1, repo, zerolog.Nop())

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	d.Record(domain.AuditEvent{ID: "fixed", Action: domain.AuditLoginFailed, Subject: "x@example.com", OccurredAt: at})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	got := repo.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "fixed", got[0].ID)
	assert.Equal(t, at, got[0].OccurredAt)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	repo := &memAuditRepo{}
	d := NewDispatcher(1, repo, zerolog.Nop())
	dropped := metrics.AuditEventsTotal.WithLabelValues("dropped")
	before := testutil.ToFloat64(dropped)

	for i := 0; i < channelBuffer+3; i++ {
		d.Record(domain.AuditEvent{Action: domain.AuditLoginFailed, Subject: "x@example.com"})
	}
	assert.Equal(t, before+3, testutil.ToFloat64(dropped))

	// Run on a cancelled context only flushes the buffer.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))
	assert.Len(t, repo.snapshot(), channelBuffer)
}

func TestDispatcher_StoreErrorsAreCounted(t *testing.T) {
	repo := &memAuditRepo{err: errors.New("store down")}
	d := NewDispatcher(1, repo, zerolog.Nop())
	failed := metrics.AuditEventsTotal.WithLabelValues("failed")
	before := testutil.ToFloat64(failed)

	d.Record(domain.AuditEvent{Action: domain.AuditUserDeleted, UserID: 7})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))
	assert.Equal(t, before+1, testutil.ToFloat64(failed))
}

func TestDispatcher_ShardIndexIsStable(t *testing.T) {
	d := NewDispatcher(8, &memAuditRepo{}, zerolog.Nop())
	e := domain.AuditEvent{UserID: 99, Subject: "ignored"}
	first := d.shardIndex(e)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, d.shardIndex(e))
	}
	assert.Equal(t, first, d.shardIndex(domain.AuditEvent{UserID: 99, Subject: "other"}))
}

func TestNewDispatcher_DefaultWorkers(t *testing.T) {
	d := NewDispatcher(0, &memAuditRepo{}, zerolog.Nop())
	assert.Len(t, d.workers, defaultWorkers)
}
