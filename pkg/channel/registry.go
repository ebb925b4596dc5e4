// Package channel resolves logical agent names to addressable tmux pane
// targets. The registry is built once at startup from the configured pool
// size; resolution is a pure map lookup with no I/O.
package channel

import "fmt"

// ManagerName is the fixed logical name of the manager agent.
const ManagerName = "manager"

// WorkerName returns the logical name for worker slot id (1-based).
func WorkerName(id int) string {
	return fmt.Sprintf("worker-%d", id)
}

// Channel is an addressable destination capable of receiving injected text.
type Channel struct {
	// Name is the logical agent name ("manager", "worker-3").
	Name string
	// Target is the tmux pane target ("herd:worker-3").
	Target string
}

// NotFoundError is returned when a name does not resolve to any channel.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no channel registered for agent %q", e.Name)
}

// Registry maps logical agent names to channels. Build it with New; the
// zero value resolves nothing.
type Registry struct {
	channels map[string]Channel
	order    []string
}

// New builds a registry for the manager plus poolSize worker slots, all
// hosted in the named tmux session. Each agent occupies one window, so the
// pane target is "<session>:<name>".
func New(session string, poolSize int) *Registry {
	r := &Registry{channels: make(map[string]Channel, poolSize+1)}
	add := func(name string) {
		r.channels[name] = Channel{Name: name, Target: session + ":" + name}
		r.order = append(r.order, name)
	}
	add(ManagerName)
	for i := 1; i <= poolSize; i++ {
		add(WorkerName(i))
	}
	return r
}

// Resolve returns the channel for name, or a NotFoundError. It never returns
// a partially populated channel.
func (r *Registry) Resolve(name string) (Channel, error) {
	ch, ok := r.channels[name]
	if !ok {
		return Channel{}, &NotFoundError{Name: name}
	}
	return ch, nil
}

// Names returns all registered agent names, manager first, workers in slot
// order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
