package persist

import (
	"context"
	"sort"
	"sync"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/component"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/telemetry"
)

// Saver writes snapshots in the background. Enqueue never blocks; repeated
// snapshots of one chart collapse to the latest before the next write.
type Saver struct {
	store *Store
	log   *telemetry.Logger

	mu      sync.Mutex
	pending map[string]component.Snapshot
	wake    chan struct{}

	// writeMu orders flushes against deletes.
	writeMu sync.Mutex
}

func NewSaver(store *Store, log *telemetry.Logger) *Saver {
	if log == nil {
		log = telemetry.Nop()
	}
	return &Saver{
		store:   store,
		log:     log,
		pending: map[string]component.Snapshot{},
		wake:    make(chan struct{}, 1),
	}
}

func (s *Saver) Enqueue(snap component.Snapshot) {
	s.mu.Lock()
	s.pending[snap.ID] = snap
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run writes pending snapshots until ctx is done, then flushes once more.
func (s *Saver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return s.Flush(context.WithoutCancel(ctx))
		case <-s.wake:
			_ = s.Flush(ctx)
		}
	}
}

// Flush writes everything pending now. Failed snapshots are re-queued unless
// a newer one arrived meanwhile.
func (s *Saver) Flush(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	batch := s.pending
	s.pending = map[string]component.Snapshot{}
	s.mu.Unlock()

	ids := make([]string, 0, len(batch))
	for id := range batch {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var firstErr error
	for _, id := range ids {
		if err := s.store.Save(ctx, batch[id]); err != nil {
			s.log.Error(ctx, "persist.save_failed", map[string]any{"chart_id": id, "error": err.Error()})
			s.mu.Lock()
			if _, newer := s.pending[id]; !newer {
				s.pending[id] = batch[id]
			}
			s.mu.Unlock()
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Delete drops any pending snapshot for id and removes its row.
func (s *Saver) Delete(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
	return s.store.Delete(ctx, id)
}

// Pending is the number of snapshots waiting to be written.
func (s *Saver) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
