package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(tenant, id, docType, taskID string, createdAt time.Time) *Document {
	return &Document{
		ID:        id,
		TenantID:  tenant,
		DocType:   docType,
		TaskID:    taskID,
		CreatedAt: createdAt,
		Body:      json.RawMessage(`{"id":"` + id + `"}`),
	}
}

func TestMemoryStore_CRUD(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	now := time.Now().UTC()

	t.Run("get missing returns ErrNotFound", func(t *testing.T) {
		_, err := m.Get(ctx, "t1", "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("create then get round-trips", func(t *testing.T) {
		require.NoError(t, m.Create(ctx, doc("t1", "d1", "Task", "", now)))
		got, err := m.Get(ctx, "t1", "d1")
		require.NoError(t, err)
		assert.Equal(t, "Task", got.DocType)
	})

	t.Run("duplicate create conflicts", func(t *testing.T) {
		err := m.Create(ctx, doc("t1", "d1", "Task", "", now))
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("replace keeps the original createdAt", func(t *testing.T) {
		updated := doc("t1", "d1", "Task", "", now.Add(time.Hour))
		require.NoError(t, m.Replace(ctx, updated))
		got, err := m.Get(ctx, "t1", "d1")
		require.NoError(t, err)
		assert.True(t, got.CreatedAt.Equal(now))
	})

	t.Run("replace of missing document fails", func(t *testing.T) {
		err := m.Replace(ctx, doc("t1", "ghost", "Task", "", now))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("tenants are isolated", func(t *testing.T) {
		_, err := m.Get(ctx, "t2", "d1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete removes", func(t *testing.T) {
		require.NoError(t, m.Delete(ctx, "t1", "d1"))
		_, err := m.Get(ctx, "t1", "d1")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, m.Delete(ctx, "t1", "d1"), ErrNotFound)
	})
}

func TestMemoryStore_Query(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, m.Create(ctx, doc("t1", "b", "TaskEvent", "task-1", base.Add(2*time.Minute))))
	require.NoError(t, m.Create(ctx, doc("t1", "a", "TaskEvent", "task-1", base)))
	require.NoError(t, m.Create(ctx, doc("t1", "c", "TaskEvent", "task-2", base.Add(time.Minute))))
	require.NoError(t, m.Create(ctx, doc("t1", "d", "Expense", "task-1", base)))

	t.Run("filters by docType and taskId", func(t *testing.T) {
		docs, err := m.Query(ctx, "t1", Filter{DocType: "TaskEvent", TaskID: "task-1"})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "a", docs[0].ID, "ordered createdAt ascending")
		assert.Equal(t, "b", docs[1].ID)
	})

	t.Run("docType alone spans tasks", func(t *testing.T) {
		docs, err := m.Query(ctx, "t1", Filter{DocType: "TaskEvent"})
		require.NoError(t, err)
		assert.Len(t, docs, 3)
	})

	t.Run("mutating a result does not leak into the store", func(t *testing.T) {
		docs, err := m.Query(ctx, "t1", Filter{DocType: "Expense"})
		require.NoError(t, err)
		docs[0].Body[0] = 'X'

		again, err := m.Get(ctx, "t1", "d")
		require.NoError(t, err)
		assert.Equal(t, byte('{'), again.Body[0])
	})
}
