// Package reorder holds the client-side half of the drag-and-drop protocol:
// an optimistic state machine that applies a new arrangement locally, issues
// the matching gateway call, and reconciles or rolls back on the result. It
// is deliberately free of any UI framework so it can be tested headless.
package reorder

import (
	"context"
	"sync"

	"core-playlist-service/internal/coreplaylist"
)

// State is the controller's position in the drag lifecycle.
type State int

const (
	StateIdle State = iota
	StateDragging
	StatePending
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDragging:
		return "dragging"
	case StatePending:
		return "pending"
	}
	return "unknown"
}

// Gateway is the mutation path the controller fires on drag-end. Implemented
// over the service's reorder endpoints.
type Gateway interface {
	Reorder(ctx context.Context, parentID string, items []coreplaylist.OrderPair, baseVersion int64) (newVersion int64, err error)
}

// Request is one in-flight reorder. Resolutions carry it back so superseded
// requests can be recognized and dropped.
type Request struct {
	seq         uint64
	Items       []coreplaylist.OrderPair
	BaseVersion int64
	snapshot    []string
}

// Controller owns one orderable sibling list.
type Controller struct {
	mu sync.Mutex

	gw       Gateway
	parentID string

	state   State
	ids     []string
	version int64

	dragID string
	seq    uint64
}

func NewController(gw Gateway, parentID string, ids []string, version int64) *Controller {
	return &Controller{
		gw:       gw,
		parentID: parentID,
		state:    StateIdle,
		ids:      append([]string(nil), ids...),
		version:  version,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Version() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// IDs returns the current local arrangement, optimistic updates included.
func (c *Controller) IDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ids...)
}

// BeginDrag starts a drag on id. Allowed from Idle, and from Pending so a new
// gesture can supersede a request that has not resolved yet.
func (c *Controller) BeginDrag(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDragging {
		return false
	}
	found := false
	for _, v := range c.ids {
		if v == id {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	c.dragID = id
	c.state = StateDragging
	return true
}

// Drop ends the drag at toIndex. When the position actually changed the local
// list is updated immediately (the optimistic update) and a Request to send
// through the gateway is returned; a drop back onto the original position is
// a no-op and returns nil.
func (c *Controller) Drop(toIndex int) *Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateDragging {
		return nil
	}

	snapshot := append([]string(nil), c.ids...)
	next := coreplaylist.MoveID(c.ids, c.dragID, toIndex)
	moved := false
	for i := range next {
		if next[i] != c.ids[i] {
			moved = true
			break
		}
	}
	c.dragID = ""
	if !moved {
		c.state = StateIdle
		return nil
	}

	c.ids = next
	c.state = StatePending
	c.seq++

	return &Request{
		seq:         c.seq,
		Items:       coreplaylist.Renumber(next),
		BaseVersion: c.version,
		snapshot:    snapshot,
	}
}

// Resolve completes a request. Success clears the in-flight state; failure
// rolls the local list back to the snapshot captured at drag-end. A
// resolution for a superseded request is dropped and reported as stale.
func (c *Controller) Resolve(req *Request, newVersion int64, err error) (stale bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if req == nil || req.seq != c.seq {
		return true
	}
	if c.state != StatePending {
		return true
	}

	if err != nil {
		c.ids = append([]string(nil), req.snapshot...)
		c.state = StateIdle
		return false
	}

	c.version = newVersion
	c.state = StateIdle
	return false
}

// Submit sends req through the gateway and resolves it with the outcome. The
// gateway error is handed back so the caller can surface it; the rollback has
// already happened by then.
func (c *Controller) Submit(ctx context.Context, req *Request) error {
	if req == nil {
		return nil
	}
	newVersion, err := c.gw.Reorder(ctx, c.parentID, req.Items, req.BaseVersion)
	c.Resolve(req, newVersion, err)
	return err
}

// ApplyServerState feeds the canonical arrangement from the event stream.
// It is ignored mid-gesture and while a request is in flight; the resolution
// of that request decides what the list looks like.
func (c *Controller) ApplyServerState(ids []string, version int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return false
	}
	if version < c.version {
		return false
	}
	c.ids = append([]string(nil), ids...)
	c.version = version
	return true
}
