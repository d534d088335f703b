package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirphl/humanflow/app/scheduler"
	businessflow "github.com/amirphl/humanflow/business_flow"
	"github.com/amirphl/humanflow/models"
	testingutil "github.com/amirphl/humanflow/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type failureCounter struct {
	businessflow.NopMetrics
	failed atomic.Int64
}

func (m *failureCounter) StatusUpdateFailed() { m.failed.Add(1) }

// cancellableWriter fails writes whose context is already done
type cancellableWriter struct {
	written atomic.Int64
	failed  atomic.Int64
}

func (w *cancellableWriter) UpdateContactStatus(ctx context.Context, _ uint, _, _ string) error {
	select {
	case <-ctx.Done():
		w.failed.Add(1)
		return ctx.Err()
	case <-time.After(100 * time.Microsecond):
	}
	w.written.Add(1)
	return nil
}

func seedStore(t *testing.T) (*testingutil.MemorySessionStore, uint) {
	t.Helper()
	ctx := context.Background()
	store := testingutil.NewMemorySessionStore()
	id, err := store.CreateUpload(ctx, "ana@example.com", "leads.csv", "Sheet1", testingutil.SampleMapping())
	require.NoError(t, err)
	require.NoError(t, store.SaveContacts(ctx, id, "ana@example.com", []models.Prospect{
		{ID: "row-0", Nombre: "Ana", Telefono: "5551112222", Estado: "Nuevo"},
		{ID: "row-1", Nombre: "Luis", Telefono: "5553334444", Estado: "Nuevo"},
	}))
	return store, id
}

func update(uploadID uint, contactID string) businessflow.StatusUpdate {
	return businessflow.StatusUpdate{UploadID: uploadID, ContactID: contactID, Status: "Contactado", UserEmail: "ana@example.com"}
}

func TestStatusDispatcher_WritesQueuedUpdates(t *testing.T) {
	defer goleak.VerifyNone(t)

	store, id := seedStore(t)
	metrics := &failureCounter{}
	d := scheduler.NewStatusDispatcher(store, 2, 8, time.Second, metrics, zaptest.NewLogger(t))
	stop := d.Start(context.Background())

	assert.True(t, d.Enqueue(update(id, "row-0")))
	assert.True(t, d.Enqueue(update(id, "row-1")))
	stop()

	assert.Equal(t, "Contactado", store.StatusOf(id, "row-0"))
	assert.Equal(t, "Contactado", store.StatusOf(id, "row-1"))
	assert.Equal(t, int64(0), metrics.failed.Load())

	// stopping twice is harmless and later updates are refused
	stop()
	assert.False(t, d.Enqueue(update(id, "row-0")))
	assert.Equal(t, int64(1), metrics.failed.Load())
}

func TestStatusDispatcher_StopWritesEveryQueuedUpdate(t *testing.T) {
	defer goleak.VerifyNone(t)

	const queued = 40
	for i := 0; i < 20; i++ {
		writer := &cancellableWriter{}
		metrics := &failureCounter{}
		d := scheduler.NewStatusDispatcher(writer, 1, queued, time.Second, metrics, zap.NewNop())
		stop := d.Start(context.Background())
		for j := 0; j < queued; j++ {
			require.True(t, d.Enqueue(update(1, fmt.Sprintf("row-%d", j))))
		}
		stop()

		require.Equal(t, int64(queued), writer.written.Load(), "run %d", i)
		require.Zero(t, writer.failed.Load(), "run %d", i)
		require.Zero(t, metrics.failed.Load(), "run %d", i)
	}
}

func TestStatusDispatcher_FailuresAreCountedAndLogged(t *testing.T) {
	defer goleak.VerifyNone(t)

	store, id := seedStore(t)
	store.FailStatusUpdate = errors.New("connection reset")
	core, logs := observer.New(zap.WarnLevel)
	metrics := &failureCounter{}

	d := scheduler.NewStatusDispatcher(store, 1, 4, time.Second, metrics, zap.New(core))
	stop := d.Start(context.Background())
	require.True(t, d.Enqueue(update(id, "row-0")))
	stop()

	assert.Equal(t, int64(1), metrics.failed.Load())
	entries := logs.FilterMessage("Contact status update failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "row-0", entries[0].ContextMap()["contact_id"])
	assert.Equal(t, "Nuevo", store.StatusOf(id, "row-0"))
}

func TestStatusDispatcher_WriteTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	store, id := seedStore(t)
	store.StatusUpdateLatency = time.Second
	metrics := &failureCounter{}

	d := scheduler.NewStatusDispatcher(store, 1, 4, 20*time.Millisecond, metrics, zaptest.NewLogger(t))
	stop := d.Start(context.Background())
	require.True(t, d.Enqueue(update(id, "row-0")))
	stop()

	assert.Equal(t, int64(1), metrics.failed.Load())
	assert.Equal(t, "Nuevo", store.StatusOf(id, "row-0"))
}

func TestStatusDispatcher_FullQueueDrops(t *testing.T) {
	store, id := seedStore(t)
	core, logs := observer.New(zap.WarnLevel)
	metrics := &failureCounter{}

	// not started, so nothing consumes the queue
	d := scheduler.NewStatusDispatcher(store, 1, 1, time.Second, metrics, zap.New(core))
	assert.True(t, d.Enqueue(update(id, "row-0")))
	assert.False(t, d.Enqueue(update(id, "row-1")))

	assert.Equal(t, int64(1), metrics.failed.Load())
	assert.Equal(t, 1, logs.FilterMessage("Contact status update dropped").Len())
	assert.Equal(t, 0, store.StatusUpdateCount())
}

func TestStatusDispatcher_ParentCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	store, id := seedStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	d := scheduler.NewStatusDispatcher(store, 3, 4, time.Second, nil, zaptest.NewLogger(t))
	stop := d.Start(ctx)

	require.True(t, d.Enqueue(update(id, "row-1")))
	cancel()
	stop()

	assert.Equal(t, "Contactado", store.StatusOf(id, "row-1"))
}
