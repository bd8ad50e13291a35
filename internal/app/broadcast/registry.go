// Package broadcast tracks live observer connections and fans payloads out to them.
package broadcast

import (
	"context"
	"sync"

	"npcgateway/internal/app/ports"
	"npcgateway/internal/logging"

	"go.uber.org/zap"
)

// Observer is a passive subscriber. Send must only enqueue: it may not wait on
// the network. The registry owns membership only; the connection's own loop is
// responsible for calling Unregister.
type Observer interface {
	ID() string
	Send(payload []byte) error
	Close() error
}

type Result struct {
	Delivered int
	Failed    int
}

type Registry struct {
	mu      sync.RWMutex
	members map[string]Observer

	metrics ports.DecisionMetrics
	log     *logging.Logger
}

func NewRegistry(metrics ports.DecisionMetrics, log *logging.Logger) *Registry {
	if log == nil {
		log = logging.Nop()
	}
	return &Registry{
		members: map[string]Observer{},
		metrics: metrics,
		log:     log.Named("broadcast"),
	}
}

func (r *Registry) Register(o Observer) {
	r.mu.Lock()
	r.members[o.ID()] = o
	n := len(r.members)
	r.mu.Unlock()
	r.recordObservers(n)
}

// Unregister removes o if it is still the member registered under its id.
func (r *Registry) Unregister(o Observer) {
	r.mu.Lock()
	if cur, ok := r.members[o.ID()]; ok && cur == o {
		delete(r.members, o.ID())
	}
	n := len(r.members)
	r.mu.Unlock()
	r.recordObservers(n)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *Registry) snapshot() []Observer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Observer, 0, len(r.members))
	for _, o := range r.members {
		out = append(out, o)
	}
	return out
}

// Broadcast hands payload to every observer registered at call time. An observer
// that refuses it is closed and left for its own loop to unregister.
func (r *Registry) Broadcast(ctx context.Context, payload []byte) Result {
	members := r.snapshot()
	if len(members) == 0 {
		return Result{}
	}

	var res Result
	for _, o := range members {
		if err := o.Send(payload); err != nil {
			res.Failed++
			r.log.Warn(ctx, "observer send failed, closing", zap.String("observer_id", o.ID()), zap.Error(err))
			_ = o.Close()
			continue
		}
		res.Delivered++
	}
	if r.metrics != nil {
		r.metrics.RecordBroadcast(res.Delivered, res.Failed)
	}
	return res
}

func (r *Registry) recordObservers(n int) {
	if r.metrics != nil {
		r.metrics.RecordObservers(n)
	}
}
