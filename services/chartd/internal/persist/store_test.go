package persist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/component"
	cerr "github.com/Ap3pp3rs94/chartly-apex/pkg/errors"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/seriesstore"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s, err := Open(context.Background(), DriverSQLite, "file::memory:", Options{Clock: func() time.Time { return at }})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func snap(id, title string) component.Snapshot {
	return component.Snapshot{
		ID:         id,
		Attributes: map[string]string{"type": "bar", "title": title},
		Store: seriesstore.Snapshot{
			Series:     []seriesstore.Record{{Name: "s", Data: []any{1.0, nil}}},
			Categories: []string{"a", "b"},
		},
	}
}

func TestStore_SaveUpsertsAndLoads(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, snap("c1", "first")))
	require.NoError(t, s.Save(ctx, snap("c1", "second")))

	rec, err := s.Load(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "second", rec.Snapshot.Attributes["title"])
	require.Equal(t, []string{"a", "b"}, rec.Snapshot.Store.Categories)
	require.Equal(t, []any{1.0, nil}, rec.Snapshot.Store.Series[0].Data)
	require.True(t, rec.UpdatedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
}

func TestStore_ListOrderedAndDelete(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, s.Save(ctx, snap(id, id)))
	}
	require.NoError(t, s.Delete(ctx, "c"))
	require.NoError(t, s.Delete(ctx, "missing"))

	recs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "a", recs[0].Snapshot.ID)
	require.Equal(t, "b", recs[1].Snapshot.ID)

	_, err = s.Load(ctx, "c")
	require.True(t, cerr.HasCode(err, cerr.ChartNotFound))
}

func TestStore_Rejects(t *testing.T) {
	s := openMemory(t)
	require.True(t, cerr.HasCode(s.Save(context.Background(), component.Snapshot{}), cerr.RequestInvalid))

	_, err := Open(context.Background(), "mysql", "x", Options{})
	require.True(t, cerr.HasCode(err, cerr.RequestInvalid))
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	require.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))
	lite := &Store{driver: DriverSQLite}
	require.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestSaver_CoalescesAndDeletes(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	sv := NewSaver(s, nil)

	sv.Enqueue(snap("c1", "one"))
	sv.Enqueue(snap("c1", "two"))
	sv.Enqueue(snap("c2", "x"))
	require.Equal(t, 2, sv.Pending())
	require.NoError(t, sv.Flush(ctx))
	require.Zero(t, sv.Pending())

	rec, err := s.Load(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "two", rec.Snapshot.Attributes["title"])

	sv.Enqueue(snap("c2", "y"))
	require.NoError(t, sv.Delete(ctx, "c2"))
	require.NoError(t, sv.Flush(ctx))
	_, err = s.Load(ctx, "c2")
	require.True(t, cerr.HasCode(err, cerr.ChartNotFound))
}

func TestSaver_RunFlushesOnShutdown(t *testing.T) {
	s := openMemory(t)
	sv := NewSaver(s, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sv.Run(ctx) }()

	sv.Enqueue(snap("c9", "late"))
	cancel()
	require.NoError(t, <-done)

	_, err := s.Load(context.Background(), "c9")
	require.NoError(t, err)
}
