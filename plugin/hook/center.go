package hook

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrInterrupt signals that a handler wants to stop further processing.
var ErrInterrupt = errors.New("hook interrupted")

// ---- Turn events ----

const (
	// TurnTyped runs before matching; handlers may rewrite TurnData.Typed.
	TurnTyped = "turn.typed"
	// TurnLines runs after rendering; handlers may rewrite TurnData.Lines.
	TurnLines = "turn.lines"
)

// TurnData flows through the handlers of one turn event.
type TurnData struct {
	SessionID string
	NPC       string
	Typed     string
	Outcome   string
	Lines     []string
}

// HookFn is a hook handler. Returning ErrInterrupt stops the chain; any
// other error is reported to the caller and the chain continues.
type HookFn func(ctx context.Context, event string, data *TurnData) error

type hookEntry struct {
	priority int
	seq      int
	fn       HookFn
	name     string
}

// Center manages turn hook registrations.
type Center struct {
	mu    sync.RWMutex
	hooks map[string][]*hookEntry
	seq   int
}

// NewCenter creates an empty Center.
func NewCenter() *Center {
	return &Center{hooks: make(map[string][]*hookEntry)}
}

// Register adds fn for event. Lower priority runs first; equal priorities
// run in registration order. name is used for Unregister.
func (c *Center) Register(event string, priority int, name string, fn HookFn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	entries := append(c.hooks[event], &hookEntry{priority: priority, seq: c.seq, fn: fn, name: name})
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority < entries[j].priority
		}
		return entries[i].seq < entries[j].seq
	})
	c.hooks[event] = entries
}

// Unregister removes all hooks with the given name for the given event.
func (c *Center) Unregister(event, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.hooks[event]
	n := 0
	for _, e := range entries {
		if e.name != name {
			entries[n] = e
			n++
		}
	}
	c.hooks[event] = entries[:n]
}

// Len returns the number of handlers registered for event.
func (c *Center) Len(event string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.hooks[event])
}

// Run executes the handlers of event in priority order over data.
// A panicking handler is skipped and reported in the returned error.
func (c *Center) Run(ctx context.Context, event string, data *TurnData) error {
	c.mu.RLock()
	entries := make([]*hookEntry, len(c.hooks[event]))
	copy(entries, c.hooks[event])
	c.mu.RUnlock()

	var errs []error
	for _, e := range entries {
		err := call(ctx, e, event, data)
		if errors.Is(err, ErrInterrupt) {
			return errors.Join(append(errs, err)...)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func call(ctx context.Context, e *hookEntry, event string, data *TurnData) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook %q panicked on %s: %v", e.name, event, r)
		}
	}()
	return e.fn(ctx, event, data)
}
