package component

import (
	"context"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/chart"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/seriesstore"
)

// Snapshot is the persistent state of a component.
type Snapshot struct {
	ID         string               `json:"id"`
	Attributes map[string]string    `json:"attributes"`
	Store      seriesstore.Snapshot `json:"store"`
}

func (c *Component) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Component) snapshotLocked() Snapshot {
	return Snapshot{ID: c.id, Attributes: c.st.Map(), Store: c.store.Snapshot()}
}

// Restore replaces attributes and store with snap and rebuilds a mounted chart.
func (c *Component) Restore(ctx context.Context, snap Snapshot) error {
	st, err := chart.StateFrom(snap.Attributes)
	if err != nil {
		return err
	}
	defer c.enter(ctx)()
	if c.closed {
		return ErrClosed
	}
	c.st = st
	c.store.Restore(snap.Store)
	if c.inst == nil {
		return nil
	}
	return c.rebuildLocked()
}
